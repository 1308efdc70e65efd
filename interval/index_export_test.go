package interval

const (
	// MaxBucketFanout re-exports [maxBucketFanout] for testing purposes.
	MaxBucketFanout = maxBucketFanout

	// BinFanout re-exports [binFanout] for testing purposes.
	BinFanout = binFanout
)

// Bucket reexports the internal [bucket] type.
type Bucket = bucket

// Splittable reexports the internal [splittable] method.
func (l *Bucket) Splittable() bool {
	return l.splittable()
}

// Add reexports the internal [add] method, reporting whether the bucket was
// promoted.
func (l *Bucket) Add(iv Interval, ref int) bool {
	_, promoted := l.add(iv, ref).(*binNode)

	return promoted
}
