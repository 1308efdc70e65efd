package cracking

import (
	"cmp"
	"slices"

	"github.com/MasoumehVahedi/IntervalCracking/interval"
)

// BulkEngine is an interval tree shaped by insertion rather than by queries.
// Items descend by least enlargement and a leaf that overflows is split in
// place.
type BulkEngine[V any] struct {
	tree[V]
}

// NewBulk creates an empty BulkEngine whose root is an empty leaf.
func NewBulk[V any](opts ...Option) (*BulkEngine[V], error) {
	o, err := newOptions(opts)
	if err != nil {
		return nil, err
	}

	b := &BulkEngine[V]{tree: newTree[V](o)}
	b.root = b.newLeaf(0, nil)

	return b, nil
}

// Bulk builds a BulkEngine by inserting items in order.
func Bulk[V any](items []Item[V], opts ...Option) (*BulkEngine[V], error) {
	if len(items) == 0 {
		return nil, ErrEmptyInput
	}

	b, err := NewBulk[V](opts...)
	if err != nil {
		return nil, err
	}

	b.InsertAll(items)

	return b, nil
}

// InsertAll inserts each item in turn.
func (b *BulkEngine[V]) InsertAll(items []Item[V]) {
	for _, item := range items {
		b.Insert(item)
	}
}

// Insert adds item to the leaf reached by least enlargement, widening every
// branch on the way down so bounds stay exact.
func (b *BulkEngine[V]) Insert(item Item[V]) {
	slot := &b.root

	for {
		switch n := (*slot).(type) {
		case *internalNode[V]:
			i := chooseBranch(n.branches, item.Interval)
			n.branches[i].bounds.Extend(item.Interval)
			slot = &n.branches[i].child
		case *leafNode[V]:
			n.items = append(n.items, item)

			if len(n.items) > b.maxEntries {
				*slot = b.split(n)
			}

			return
		}
	}
}

// Search returns the payload of every item whose box intersects box, pruning
// with q. Leaves of a bulk built tree are within capacity, so searching does
// not restructure it.
func (b *BulkEngine[V]) Search(q interval.Interval, box interval.Box) []Payload[V] {
	b.queries++

	var results []Payload[V]

	queue := []node[V]{b.root}

	for len(queue) > 0 {
		n := queue[0]
		queue = queue[1:]

		switch n := n.(type) {
		case *internalNode[V]:
			for i := range n.branches {
				if n.branches[i].bounds.Overlaps(q) {
					queue = append(queue, n.branches[i].child)
				}
			}
		case *leafNode[V]:
			results = append(results, scan(n.items, box)...)
		}
	}

	return results
}

// chooseBranch returns the first branch needing the least enlargement to
// cover iv.
func chooseBranch[V any](branches []branch[V], iv interval.Interval) int {
	best := 0
	least := branches[0].bounds.Enlargement(iv)

	for i := 1; i < len(branches); i++ {
		if grow := branches[i].bounds.Enlargement(iv); grow < least {
			best, least = i, grow
		}
	}

	return best
}

// split turns an overflowing leaf into an internal node at the same level.
// Small leaves are halved in insertion order; larger ones are split around
// the median minimum key unless that leaves everything in one group.
func (b *BulkEngine[V]) split(leaf *leafNode[V]) *internalNode[V] {
	b.splits++

	n := &internalNode[V]{header: leaf.header}

	if len(leaf.items) > b.minEntries {
		if groups, ok := medianGroups(leaf.items); ok {
			b.fill(n, groups...)

			return n
		}
	}

	b.fill(n, midpointGroups(leaf.items)...)

	return n
}

func midpointGroups[V any](items []Item[V]) []group[V] {
	mid := len(items) / 2

	return []group[V]{
		{items: slices.Clip(items[:mid]), bounds: cover(items[:mid])},
		{items: slices.Clip(items[mid:]), bounds: cover(items[mid:])},
	}
}

// medianGroups splits items into those ending at or before the median
// minimum, those starting after it, and the rest, in order of minimum key.
// It reports false when only one group is non-empty.
func medianGroups[V any](items []Item[V]) ([]group[V], bool) {
	sorted := slices.Clone(items)
	slices.SortStableFunc(sorted, func(a, b Item[V]) int {
		return cmp.Compare(a.Interval.Min, b.Interval.Min)
	})

	median := sorted[len(sorted)/2].Interval.Min

	var left, right, overlap []Item[V]

	for _, item := range sorted {
		switch {
		case item.Interval.Max <= median:
			left = append(left, item)
		case item.Interval.Min > median:
			right = append(right, item)
		default:
			overlap = append(overlap, item)
		}
	}

	groups := []group[V]{
		{items: left, bounds: cover(left)},
		{items: right, bounds: cover(right)},
		{items: overlap, bounds: cover(overlap)},
	}

	return groups, populated(groups) > 1
}

func cover[V any](items []Item[V]) interval.Interval {
	bounds := interval.Empty()

	for i := range items {
		bounds.Extend(items[i].Interval)
	}

	return bounds
}
