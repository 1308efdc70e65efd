package cracking

import (
	"github.com/MasoumehVahedi/IntervalCracking/interval"
)

// side decides which items a partition pass keeps on its left.
type side uint8

const (
	// keepBelow keeps items ending strictly before the pivot. It is the first
	// pass of a crack, at the query minimum.
	keepBelow side = iota

	// keepNotAbove keeps items starting at or before the pivot, sending the
	// ones starting strictly after it right. It is the second pass, at the
	// query maximum.
	keepNotAbove
)

func (s side) keeps(iv interval.Interval, pivot uint64) bool {
	if s == keepBelow {
		return iv.Max < pivot
	}

	return iv.Min <= pivot
}

// partition reorders items[low:high] in place so that the items kept by s
// come first, and returns the index of the first item that was not kept.
// Every kept item grows left and every other item grows right.
//
// Two cursors move inward; when the left one stops on an item that belongs
// on the right, the right cursor skips past items already in place and the
// two are swapped.
func partition[V any](items []Item[V], low, high int, pivot uint64, left, right *interval.Interval, s side) int {
	x1, x2 := low, high-1

	for x1 <= x2 {
		if s.keeps(items[x1].Interval, pivot) {
			left.Extend(items[x1].Interval)
			x1++

			continue
		}

		for x2 > x1 && !s.keeps(items[x2].Interval, pivot) {
			right.Extend(items[x2].Interval)
			x2--
		}

		if x2 == x1 {
			right.Extend(items[x1].Interval)
			x2--

			continue
		}

		items[x1], items[x2] = items[x2], items[x1]

		left.Extend(items[x1].Interval)
		right.Extend(items[x2].Interval)

		x1++
		x2--
	}

	return x1
}
