package cracking

import (
	"fmt"
	"strings"

	"github.com/cockroachdb/errors"

	"github.com/MasoumehVahedi/IntervalCracking/interval"
)

// Payload is what an engine hands back: the original box of an item and the
// caller's value. It is never modified by the engine.
type Payload[V any] struct {
	Box   interval.Box
	Value V
}

// Item is a keyed payload, the unit stored in leaves.
type Item[V any] struct {
	Interval interval.Interval
	Payload  Payload[V]
}

// NewItem pairs an interval with the box it was derived from and a value.
func NewItem[V any](iv interval.Interval, box interval.Box, value V) Item[V] {
	return Item[V]{
		Interval: iv,
		Payload:  Payload[V]{Box: box, Value: value},
	}
}

// node is implemented by the two node kinds. A leaf only ever holds items and
// an internal node only ever holds branches.
type node[V any] interface {
	meta() *header
}

// header is the part shared by both node kinds.
type header struct {
	id    uint64
	level int
}

func (h *header) meta() *header {
	return h
}

// leafNode stores items directly and is scanned linearly.
type leafNode[V any] struct {
	header
	items []Item[V]
}

var _ node[int] = &leafNode[int]{}

// internalNode routes to children by their bounding intervals.
type internalNode[V any] struct {
	header
	branches []branch[V]
}

var _ node[int] = &internalNode[int]{}

// branch is an entry of an internal node. bounds covers every key in the
// subtree below child.
type branch[V any] struct {
	bounds interval.Interval
	child  node[V]
}

// tree is the state shared by Engine and BulkEngine.
type tree[V any] struct {
	root   node[V]
	nextID uint64

	maxEntries int
	minEntries int

	queries uint64
	cracks  uint64
	splits  uint64
}

func newTree[V any](o options) tree[V] {
	return tree[V]{maxEntries: o.maxEntries, minEntries: o.minEntries}
}

func (t *tree[V]) newLeaf(level int, items []Item[V]) *leafNode[V] {
	t.nextID++

	return &leafNode[V]{header: header{id: t.nextID, level: level}, items: items}
}

func (t *tree[V]) newInternal(level int) *internalNode[V] {
	t.nextID++

	return &internalNode[V]{header: header{id: t.nextID, level: level}}
}

// group is a run of items bound for one child, with its covering interval.
type group[V any] struct {
	items  []Item[V]
	bounds interval.Interval
}

// fill appends one leaf branch per non-empty group to n.
func (t *tree[V]) fill(n *internalNode[V], groups ...group[V]) {
	for _, g := range groups {
		if len(g.items) == 0 {
			continue
		}

		n.branches = append(n.branches, branch[V]{
			bounds: g.bounds,
			child:  t.newLeaf(n.level+1, g.items),
		})
	}
}

func populated[V any](groups []group[V]) int {
	n := 0

	for _, g := range groups {
		if len(g.items) > 0 {
			n++
		}
	}

	return n
}

// scan is the exact rectangle test over a run of items.
func scan[V any](items []Item[V], box interval.Box) []Payload[V] {
	var found []Payload[V]

	for i := range items {
		if items[i].Payload.Box.Intersects(box) {
			found = append(found, items[i].Payload)
		}
	}

	return found
}

// Info describes one node to a Walk visitor.
type Info struct {
	// ID is unique within the tree and follows creation order. A cracked
	// leaf keeps its ID when it becomes internal.
	ID    uint64
	Level int
	Leaf  bool

	// Entries is the number of items for a leaf, or branches otherwise.
	Entries int

	// Bounds covers every entry of the node. It is empty for an empty leaf.
	Bounds interval.Interval
}

func describe[V any](n node[V]) Info {
	h := n.meta()
	info := Info{ID: h.id, Level: h.level, Bounds: interval.Empty()}

	switch n := n.(type) {
	case *leafNode[V]:
		info.Leaf = true
		info.Entries = len(n.items)

		for i := range n.items {
			info.Bounds.Extend(n.items[i].Interval)
		}
	case *internalNode[V]:
		info.Entries = len(n.branches)

		for i := range n.branches {
			info.Bounds.Extend(n.branches[i].bounds)
		}
	}

	return info
}

// Walk visits every node breadth first, children in branch order, until fn
// returns false.
func (t *tree[V]) Walk(fn func(Info) bool) {
	queue := []node[V]{t.root}

	for len(queue) > 0 {
		n := queue[0]
		queue = queue[1:]

		if !fn(describe[V](n)) {
			return
		}

		if in, ok := n.(*internalNode[V]); ok {
			for i := range in.branches {
				queue = append(queue, in.branches[i].child)
			}
		}
	}
}

// Stats summarises the shape of a tree and the work done on it.
type Stats struct {
	Nodes  int
	Leaves int
	Items  int

	// Depth is the deepest node level; the root is level 0.
	Depth int

	// Queries counts searches, Cracks counts leaves cracked by a search, and
	// Splits counts leaves split by an insert.
	Queries uint64
	Cracks  uint64
	Splits  uint64
}

// Cracks returns the number of leaves cracked by searches so far. Unlike
// Stats it does not walk the tree.
func (t *tree[V]) Cracks() uint64 {
	return t.cracks
}

// Stats walks the tree and returns its current shape.
func (t *tree[V]) Stats() Stats {
	s := Stats{Queries: t.queries, Cracks: t.cracks, Splits: t.splits}

	t.Walk(func(info Info) bool {
		s.Nodes++
		s.Depth = max(s.Depth, info.Level)

		if info.Leaf {
			s.Leaves++
			s.Items += info.Entries
		}

		return true
	})

	return s
}

// Lines renders the tree breadth first, one line per entry. A branch prints as
//
//	Node <level>: Interval = [min, max]
//
// and an item of a leaf at level l prints as
//
//	Leaf <l+1>: [min, max]
//
// Each line is indented by four spaces per level of the node holding it.
func (t *tree[V]) Lines() []string {
	var lines []string

	queue := []node[V]{t.root}

	for len(queue) > 0 {
		n := queue[0]
		queue = queue[1:]

		level := n.meta().level
		indent := strings.Repeat(" ", 4*level)

		switch n := n.(type) {
		case *internalNode[V]:
			for i := range n.branches {
				lines = append(lines, fmt.Sprintf("%sNode %d: Interval = %s", indent, level, n.branches[i].bounds))
				queue = append(queue, n.branches[i].child)
			}
		case *leafNode[V]:
			for i := range n.items {
				lines = append(lines, fmt.Sprintf("%sLeaf %d: %s", indent, level+1, n.items[i].Interval))
			}
		}
	}

	return lines
}

// Validate checks that every branch bound equals the cover of its subtree,
// that children sit one level below their parent, and that no internal node
// is empty. It returns an error marked with ErrCorrupt on the first failure.
func (t *tree[V]) Validate() error {
	order := []node[V]{t.root}

	for i := 0; i < len(order); i++ {
		if in, ok := order[i].(*internalNode[V]); ok {
			for j := range in.branches {
				order = append(order, in.branches[j].child)
			}
		}
	}

	covers := make(map[node[V]]interval.Interval, len(order))

	// Children always follow their parent in breadth first order, so walking
	// it backwards sees every subtree before the branch pointing at it.
	for i := len(order) - 1; i >= 0; i-- {
		n := order[i]

		in, ok := n.(*internalNode[V])
		if !ok {
			covers[n] = describe[V](n).Bounds

			continue
		}

		if len(in.branches) == 0 {
			return errors.Mark(errors.Newf("internal node %d has no branches", in.id), ErrCorrupt)
		}

		cover := interval.Empty()

		for _, br := range in.branches {
			child := br.child.meta()

			if child.level != in.level+1 {
				return errors.Mark(
					errors.Newf("node %d at level %d under node %d at level %d", child.id, child.level, in.id, in.level),
					ErrCorrupt,
				)
			}

			want := covers[br.child]
			if br.bounds != want {
				return errors.Mark(
					errors.Newf("branch to node %d bounds %s, subtree covers %s", child.id, br.bounds, want),
					ErrCorrupt,
				)
			}

			cover.Extend(want)
		}

		covers[n] = cover
	}

	return nil
}
