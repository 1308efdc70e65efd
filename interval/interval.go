// Package interval holds the one-dimensional key space shared by the
// cracking index: closed uint64 intervals, the axis-aligned boxes they are
// derived from, and a multi-binned stabbing index over intervals.
package interval

import (
	"fmt"
	"math"

	"github.com/paulmach/orb"
)

// Interval represents the closed interval [Min, Max].
//
// Both Z-order key widths fit in a uint64, so one key type serves the 32 and
// 64 bit encodings alike.
type Interval struct {
	Min uint64
	Max uint64
}

// New returns the interval spanning a and b, swapping them when the raw
// encoding inverts their order.
func New(a, b uint64) Interval {
	if a > b {
		a, b = b, a
	}

	return Interval{Min: a, Max: b}
}

// Point returns the degenerate interval [v, v].
func Point(v uint64) Interval {
	return Interval{Min: v, Max: v}
}

// Empty returns the accumulator sentinel. It covers nothing, and covering it
// with any interval yields that interval.
func Empty() Interval {
	return Interval{Min: math.MaxUint64, Max: 0}
}

// IsEmpty reports whether i is an inverted (accumulator) interval.
func (i Interval) IsEmpty() bool {
	return i.Min > i.Max
}

// Overlaps reports whether the closed intervals i and o share a key. An
// empty interval overlaps nothing.
func (i Interval) Overlaps(o Interval) bool {
	if i.IsEmpty() || o.IsEmpty() {
		return false
	}

	return !(i.Max < o.Min || i.Min > o.Max)
}

// Contains reports whether o lies entirely within i.
func (i Interval) Contains(o Interval) bool {
	return i.Min <= o.Min && o.Max <= i.Max
}

// Cover returns the smallest interval covering both i and o.
func (i Interval) Cover(o Interval) Interval {
	if o.Min < i.Min {
		i.Min = o.Min
	}

	if o.Max > i.Max {
		i.Max = o.Max
	}

	return i
}

// Extend grows i in place so that it covers o.
func (i *Interval) Extend(o Interval) {
	*i = i.Cover(o)
}

// Width returns Max - Min, or zero for an empty interval.
func (i Interval) Width() uint64 {
	if i.IsEmpty() {
		return 0
	}

	return i.Max - i.Min
}

// Enlargement returns how much wider i must become to also cover o.
func (i Interval) Enlargement(o Interval) uint64 {
	return i.Cover(o).Width() - i.Width()
}

// String implements fmt.Stringer.
func (i Interval) String() string {
	return fmt.Sprintf("[%d, %d]", i.Min, i.Max)
}

// Box is an axis-aligned rectangle (xmin, ymin, xmax, ymax), in the same
// order as a geometry's bounds. X is longitude and Y is latitude.
type Box struct {
	XMin float64 `json:"xmin"`
	YMin float64 `json:"ymin"`
	XMax float64 `json:"xmax"`
	YMax float64 `json:"ymax"`
}

// Intersects is the exact rectangle test applied before any result is
// returned. Edges that merely touch do not intersect.
func (b Box) Intersects(q Box) bool {
	return b.XMax > q.XMin && b.XMin < q.XMax && b.YMax > q.YMin && b.YMin < q.YMax
}

// Valid reports whether the box has non-inverted extents on both axes.
func (b Box) Valid() bool {
	return b.XMin <= b.XMax && b.YMin <= b.YMax
}

// Union returns the smallest box covering b and o.
func (b Box) Union(o Box) Box {
	return Box{
		XMin: math.Min(b.XMin, o.XMin),
		YMin: math.Min(b.YMin, o.YMin),
		XMax: math.Max(b.XMax, o.XMax),
		YMax: math.Max(b.YMax, o.YMax),
	}
}

// Bound converts the box to an orb.Bound.
func (b Box) Bound() orb.Bound {
	return orb.Bound{
		Min: orb.Point{b.XMin, b.YMin},
		Max: orb.Point{b.XMax, b.YMax},
	}
}

// BoxFromBound converts an orb.Bound, such as the result of a geometry's
// Bound method, into a Box.
func BoxFromBound(bound orb.Bound) Box {
	return Box{
		XMin: bound.Min.X(),
		YMin: bound.Min.Y(),
		XMax: bound.Max.X(),
		YMax: bound.Max.Y(),
	}
}

// BoxOf returns the bounding box of a geometry.
func BoxOf(g orb.Geometry) Box {
	return BoxFromBound(g.Bound())
}
