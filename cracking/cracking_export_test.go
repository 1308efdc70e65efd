package cracking

import (
	"github.com/MasoumehVahedi/IntervalCracking/interval"
)

// SearchVisiting runs Search and also returns the IDs of the leaves it
// scanned, in visiting order.
func (e *Engine[V]) SearchVisiting(q interval.Interval, box interval.Box) ([]Payload[V], []uint64) {
	var visited []uint64

	found := e.search(q, box, func(id uint64) {
		visited = append(visited, id)
	})

	return found, visited
}

// LeafValues returns the values held by each leaf, breadth first.
func (t *tree[V]) LeafValues() [][]V {
	var leaves [][]V

	queue := []node[V]{t.root}

	for len(queue) > 0 {
		n := queue[0]
		queue = queue[1:]

		switch n := n.(type) {
		case *internalNode[V]:
			for i := range n.branches {
				queue = append(queue, n.branches[i].child)
			}
		case *leafNode[V]:
			values := make([]V, len(n.items))
			for i := range n.items {
				values[i] = n.items[i].Payload.Value
			}

			leaves = append(leaves, values)
		}
	}

	return leaves
}
