package zorder

// Interleave32 spreads x over the even bits and y over the odd bits of a
// 32 bit key.
func Interleave32(x, y uint16) uint32 {
	return spread16(uint32(x)) | spread16(uint32(y))<<1
}

// Interleave64 spreads x over the even bits and y over the odd bits of a
// 64 bit key.
func Interleave64(x, y uint32) uint64 {
	return spread32(uint64(x)) | spread32(uint64(y))<<1
}

// Deinterleave32 is the inverse of Interleave32.
func Deinterleave32(key uint32) (x, y uint16) {
	return uint16(compact16(key)), uint16(compact16(key >> 1))
}

// Deinterleave64 is the inverse of Interleave64.
func Deinterleave64(key uint64) (x, y uint32) {
	return uint32(compact32(key)), uint32(compact32(key >> 1))
}

func spread16(v uint32) uint32 {
	v &= 0x0000FFFF
	v = (v | v<<8) & 0x00FF00FF
	v = (v | v<<4) & 0x0F0F0F0F
	v = (v | v<<2) & 0x33333333
	v = (v | v<<1) & 0x55555555

	return v
}

func compact16(v uint32) uint32 {
	v &= 0x55555555
	v = (v | v>>1) & 0x33333333
	v = (v | v>>2) & 0x0F0F0F0F
	v = (v | v>>4) & 0x00FF00FF
	v = (v | v>>8) & 0x0000FFFF

	return v
}

func spread32(v uint64) uint64 {
	v &= 0x00000000FFFFFFFF
	v = (v | v<<16) & 0x0000FFFF0000FFFF
	v = (v | v<<8) & 0x00FF00FF00FF00FF
	v = (v | v<<4) & 0x0F0F0F0F0F0F0F0F
	v = (v | v<<2) & 0x3333333333333333
	v = (v | v<<1) & 0x5555555555555555

	return v
}

func compact32(v uint64) uint64 {
	v &= 0x5555555555555555
	v = (v | v>>1) & 0x3333333333333333
	v = (v | v>>2) & 0x0F0F0F0F0F0F0F0F
	v = (v | v>>4) & 0x00FF00FF00FF00FF
	v = (v | v>>8) & 0x0000FFFF0000FFFF
	v = (v | v>>16) & 0x00000000FFFFFFFF

	return v
}
