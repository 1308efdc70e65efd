// Package zorder projects geographic coordinates onto a Morton (Z-order)
// curve so that two-dimensional boxes can be indexed as one-dimensional
// intervals.
//
// The curve is monotone in each axis: a point inside a box always encodes to
// a key between the encodings of the box's lower-left and upper-right corners.
// Two boxes whose encoded intervals are disjoint therefore cannot intersect,
// which is what lets the cracking index prune on keys alone and only re-check
// the boxes whose intervals overlap a query.
package zorder

import (
	"math"

	"github.com/cockroachdb/errors"

	"github.com/MasoumehVahedi/IntervalCracking/interval"
)

// Width selects the key size produced by an Encoder.
type Width uint8

const (
	// Width32 interleaves two 16 bit lattice coordinates into a 32 bit key.
	Width32 Width = 32

	// Width64 interleaves two 32 bit lattice coordinates into a 64 bit key.
	Width64 Width = 64
)

const (
	// DefaultScaleFactor gives a lattice resolution of 0.01 degrees, which
	// fits 360 degrees into 16 bits.
	DefaultScaleFactor = 100

	// lngRange and latRange are the widths of the normalized axes.
	lngRange = 360.0
	latRange = 180.0
)

// ErrScaleOverflow is returned when the scale factor would push lattice
// coordinates beyond the per-axis bits of the chosen width.
var ErrScaleOverflow = errors.New("zorder: scale factor overflows lattice")

// ErrUnknownWidth is returned for a Width other than Width32 or Width64.
var ErrUnknownWidth = errors.New("zorder: unknown key width")

// Option configures an Encoder.
type Option func(*Encoder)

// WithScaleFactor sets the number of lattice cells per degree.
func WithScaleFactor(f float64) Option {
	return func(e *Encoder) {
		e.scale = f
	}
}

// WithWidth selects the key width.
func WithWidth(w Width) Option {
	return func(e *Encoder) {
		e.width = w
	}
}

// Encoder maps (lat, lng) pairs to Morton keys. It is immutable and safe for
// concurrent use.
type Encoder struct {
	scale float64
	width Width
	limit float64
}

// New creates an Encoder, by default 32 bits wide with DefaultScaleFactor.
func New(opts ...Option) (*Encoder, error) {
	e := &Encoder{scale: DefaultScaleFactor, width: Width32}

	for _, opt := range opts {
		opt(e)
	}

	switch e.width {
	case Width32:
		e.limit = math.MaxUint16
	case Width64:
		e.limit = math.MaxUint32
	default:
		return nil, errors.Wrapf(ErrUnknownWidth, "width %d", e.width)
	}

	if !(e.scale > 0) || math.IsInf(e.scale, 0) {
		return nil, errors.Wrapf(ErrScaleOverflow, "scale factor %v must be positive", e.scale)
	}

	if lngRange*e.scale > e.limit {
		return nil, errors.Wrapf(
			ErrScaleOverflow,
			"scale factor %v needs %.0f cells per axis, %d bit keys allow %.0f",
			e.scale, lngRange*e.scale, e.width, e.limit,
		)
	}

	return e, nil
}

// Default returns the 32 bit encoder with DefaultScaleFactor.
func Default() *Encoder {
	return &Encoder{scale: DefaultScaleFactor, width: Width32, limit: math.MaxUint16}
}

// Width returns the key width of e.
func (e *Encoder) Width() Width {
	return e.width
}

// ScaleFactor returns the number of lattice cells per degree.
func (e *Encoder) ScaleFactor() float64 {
	return e.scale
}

// Lattice returns the integer lattice coordinates of (lat, lng). Longitude
// is shifted by 180 and latitude by 90 so both are positive; values outside
// the geographic range wrap around into [0, 360) and [0, 180).
func (e *Encoder) Lattice(lat, lng float64) (x, y uint64) {
	return e.quantize(shift(lng, lngRange)), e.quantize(shift(lat, latRange))
}

// Encode returns the key of (lat, lng) at the configured width.
func (e *Encoder) Encode(lat, lng float64) uint64 {
	x, y := e.Lattice(lat, lng)

	if e.width == Width64 {
		return Interleave64(uint32(x), uint32(y))
	}

	return uint64(Interleave32(uint16(x), uint16(y)))
}

// Encode32 returns the 32 bit key of (lat, lng). Lattice coordinates beyond
// 16 bits are clamped.
func (e *Encoder) Encode32(lat, lng float64) uint32 {
	x, y := e.Lattice(lat, lng)

	return Interleave32(uint16(min(x, math.MaxUint16)), uint16(min(y, math.MaxUint16)))
}

// Encode64 returns the 64 bit key of (lat, lng).
func (e *Encoder) Encode64(lat, lng float64) uint64 {
	x, y := e.Lattice(lat, lng)

	return Interleave64(uint32(x), uint32(y))
}

// Interval returns the key interval of a box: the encodings of its
// (ymin, xmin) and (ymax, xmax) corners, in ascending order.
func (e *Encoder) Interval(b interval.Box) interval.Interval {
	return interval.New(e.Encode(b.YMin, b.XMin), e.Encode(b.YMax, b.XMax))
}

// quantize scales a normalized coordinate onto the lattice. Rounding is half
// to even so identical inputs always land on the same cell.
func (e *Encoder) quantize(v float64) uint64 {
	cell := math.RoundToEven(v * e.scale)

	switch {
	case math.IsNaN(cell), cell < 0:
		return 0
	case cell > e.limit:
		return uint64(e.limit)
	}

	return uint64(cell)
}

// shift moves v from [-m/2, m/2] to [0, m]. Out of range values wrap.
func shift(v, m float64) float64 {
	if v < -m/2 || v > m/2 {
		return wrap(v+m/2, m)
	}

	return v + m/2
}

// wrap returns v mod m in [0, m).
func wrap(v, m float64) float64 {
	r := math.Mod(v, m)
	if r < 0 {
		r += m
	}

	// math.Mod of a tiny negative value can round up to m itself.
	if r >= m {
		r = 0
	}

	return r
}
