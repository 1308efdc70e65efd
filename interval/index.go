package interval

import (
	"maps"
	"math"
	"slices"
)

const (
	// binBitsPower is the number of high key bits consumed by one level of
	// the binned index.
	//
	// i.e. 4 -> 2^4 = 16 bins per level
	binBitsPower uint64 = 4

	// binFanout is the number of child slots in a single bin node.
	binFanout uint64 = 1 << binBitsPower

	// binShift moves the bin selector bits of a key down to the bottom.
	binShift = 64 - binBitsPower

	// maxBinDepth is the depth at which every key bit has been consumed.
	// Buckets at this depth are never promoted.
	maxBinDepth = int(64 / binBitsPower)

	// maxBucketFanout is the number of intervals a bucket holds before it is
	// considered for promotion into a bin node.
	//
	// Partition routing indexes one interval per partition, so this stays
	// small; it is a tweakable and not a correctness parameter.
	maxBucketFanout = 16
)

// Index is a multi-binned stabbing index over intervals. It answers "which
// stored intervals overlap this one" and is used to route a query interval to
// the partitions whose bounding interval it touches.
//
// Values are stored in a side slice and referenced by position, so an
// interval spanning several bins costs one value and several references.
type Index[V any] struct {
	root   *binNode
	values []V
}

// NewIndex creates an empty index.
func NewIndex[V any]() *Index[V] {
	return &Index[V]{root: newBinNode(0)}
}

// Len returns the number of values stored.
func (x *Index[V]) Len() int {
	return len(x.values)
}

// Add stores value under iv.
func (x *Index[V]) Add(iv Interval, value V) {
	ref := len(x.values)
	x.values = append(x.values, value)

	x.root.add(iv, ref)
}

// Intersecting returns every value whose interval overlaps q, in insertion
// order, and whether there was at least one.
func (x *Index[V]) Intersecting(q Interval) ([]V, bool) {
	refs := x.root.collect(q)

	if len(refs) == 0 {
		return nil, false
	}

	values := make([]V, 0, len(refs))

	for _, ref := range refs.sorted() {
		values = append(values, x.values[ref])
	}

	return values, true
}

// refSet is a set of value positions.
type refSet map[int]struct{}

// merge adds every position of other to s.
func (s refSet) merge(other refSet) {
	for ref := range other {
		s[ref] = struct{}{}
	}
}

// sorted returns the positions in ascending order.
func (s refSet) sorted() []int {
	refs := slices.Collect(maps.Keys(s))

	slices.Sort(refs)

	return refs
}

// bin is implemented by both kinds of node in the index. add returns the
// node that should replace the receiver in its parent slot.
type bin interface {
	add(iv Interval, ref int) bin
	collect(q Interval) refSet
}

// binNode fans out over the high bits of the key.
type binNode struct {
	depth    int
	children []bin
}

func newBinNode(depth int) *binNode {
	return &binNode{depth: depth, children: make([]bin, binFanout)}
}

var _ bin = &binNode{}

// bucket stores intervals directly and is scanned linearly.
type bucket struct {
	depth     int
	refs      []int
	intervals []Interval
}

var _ bin = &bucket{}

// span calls fn once for every bin touched by iv, passing the slot and the
// part of iv that falls inside it, rescaled to the child's key space.
//
//	MSB bits:  0123   4567 ...
//	           bin    key inside the bin
func span(iv Interval, fn func(slot uint64, inner Interval)) {
	first := iv.Min >> binShift
	last := iv.Max >> binShift

	inner := Interval{Min: iv.Min << binBitsPower, Max: math.MaxUint64}

	for slot := first; slot <= last; slot++ {
		if slot > first {
			inner.Min = 0
		}

		if slot == last {
			inner.Max = iv.Max << binBitsPower
		}

		fn(slot, inner)
	}
}

func (b *binNode) add(iv Interval, ref int) bin {
	span(iv, func(slot uint64, inner Interval) {
		if b.children[slot] == nil {
			b.children[slot] = &bucket{depth: b.depth + 1}
		}

		b.children[slot] = b.children[slot].add(inner, ref)
	})

	return b
}

func (b *binNode) collect(q Interval) refSet {
	found := make(refSet)

	span(q, func(slot uint64, inner Interval) {
		if b.children[slot] == nil {
			return
		}

		if refs := b.children[slot].collect(inner); len(refs) > 0 {
			found.merge(refs)
		}
	})

	return found
}

func (l *bucket) add(iv Interval, ref int) bin {
	// Only look at promotion every maxBucketFanout additions, so a bucket of
	// unsplittable intervals is not rescanned on every add but still cannot
	// grow unchecked.
	if len(l.intervals) > 0 &&
		len(l.intervals)%maxBucketFanout == 0 &&
		l.depth < maxBinDepth &&
		l.splittable() {
		promoted := newBinNode(l.depth)

		for i, stored := range l.intervals {
			promoted.add(stored, l.refs[i])
		}

		return promoted.add(iv, ref)
	}

	l.intervals = append(l.intervals, iv)
	l.refs = append(l.refs, ref)

	return l
}

// splittable reports whether promoting the bucket could separate any of its
// intervals. Identical intervals land in the same bins at every depth.
func (l *bucket) splittable() bool {
	for _, iv := range l.intervals[1:] {
		if iv != l.intervals[0] {
			return true
		}
	}

	return false
}

func (l *bucket) collect(q Interval) refSet {
	found := make(refSet, len(l.intervals))

	for i, iv := range l.intervals {
		if iv.Overlaps(q) {
			found[l.refs[i]] = struct{}{}
		}
	}

	return found
}
