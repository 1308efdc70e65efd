package cracking

import (
	"slices"

	"github.com/MasoumehVahedi/IntervalCracking/interval"
)

// Engine is a cracking index. Its tree is refined by the searches it serves.
type Engine[V any] struct {
	tree[V]
}

// New builds the seed tree over items: a root with one branch over a single
// leaf holding every item. The slice is owned by the engine afterwards and is
// reordered in place as leaves crack.
func New[V any](items []Item[V], opts ...Option) (*Engine[V], error) {
	o, err := newOptions(opts)
	if err != nil {
		return nil, err
	}

	if len(items) == 0 {
		return nil, ErrEmptyInput
	}

	e := &Engine[V]{tree: newTree[V](o)}

	root := e.newInternal(0)
	e.fill(root, group[V]{items: items, bounds: cover(items)})
	e.root = root

	return e, nil
}

// Search returns the payload of every item whose box intersects box, pruning
// with q, the interval box encodes to. Leaves that are too large and are
// reached by the search are cracked around q.
//
// The result order is deterministic for a given tree and query sequence.
func (e *Engine[V]) Search(q interval.Interval, box interval.Box) []Payload[V] {
	return e.search(q, box, nil)
}

// search is a breadth first walk over the slots holding nodes, so that a
// leaf can be replaced in its parent. visit, when set, sees every leaf before
// it is scanned.
func (e *Engine[V]) search(q interval.Interval, box interval.Box, visit func(id uint64)) []Payload[V] {
	e.queries++

	var results []Payload[V]

	queue := []*node[V]{&e.root}

	for len(queue) > 0 {
		slot := queue[0]
		queue = queue[1:]

		switch n := (*slot).(type) {
		case *internalNode[V]:
			for i := range n.branches {
				if n.branches[i].bounds.Overlaps(q) {
					queue = append(queue, &n.branches[i].child)
				}
			}
		case *leafNode[V]:
			if visit != nil {
				visit(n.id)
			}

			results = append(results, e.searchAndCrack(slot, n, q, box)...)
		}
	}

	return results
}

// searchAndCrack answers q against one leaf. A leaf over capacity is split
// into the items left of q, right of q, and overlapping q, and only the
// overlapping ones are tested against box.
func (e *Engine[V]) searchAndCrack(slot *node[V], leaf *leafNode[V], q interval.Interval, box interval.Box) []Payload[V] {
	items := leaf.items
	if len(items) <= e.maxEntries {
		return scan(items, box)
	}

	left, rest := interval.Empty(), interval.Empty()
	low := partition(items, 0, len(items), q.Min, &left, &rest, keepBelow)

	overlap, right := interval.Empty(), interval.Empty()
	high := partition(items, low, len(items), q.Max, &overlap, &right, keepNotAbove)

	groups := []group[V]{
		{items: slices.Clip(items[:low]), bounds: left},
		{items: slices.Clip(items[high:]), bounds: right},
		{items: slices.Clip(items[low:high]), bounds: overlap},
	}

	// All items fell on one side; the crack would only add a level.
	if populated(groups) < 2 {
		return scan(items[low:high], box)
	}

	cracked := &internalNode[V]{header: leaf.header}
	e.fill(cracked, groups...)
	*slot = cracked
	e.cracks++

	return scan(items[low:high], box)
}
