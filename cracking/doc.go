// Package cracking implements an adaptive interval index that reorganises
// itself around the queries it answers.
//
// An Engine starts as a two level tree: a root with a single branch and one
// leaf holding every item unsplit. Each Search walks the tree breadth first,
// pruning branches whose bounding interval misses the query interval. When a
// search reaches a leaf that holds more than the configured maximum number of
// items, the leaf is cracked: its items are partitioned in place into the
// ones strictly left of the query interval, the ones strictly right of it,
// and the ones overlapping it, and the leaf becomes an internal node over
// those groups. Later queries touching only one side skip the others.
//
// Basic usage:
//
//	enc := zorder.Default()
//	items := make([]cracking.Item[string], len(boxes))
//	for i, b := range boxes {
//		items[i] = cracking.NewItem(enc.Interval(b), b, names[i])
//	}
//	engine, err := cracking.New(items, cracking.WithMaxEntries(64))
//	// ...
//	found := engine.Search(enc.Interval(query), query)
//
// Keys only ever prune conservatively; every returned payload has passed the
// exact rectangle test against the query box.
//
// # Bulk insertion
//
// A BulkEngine shares the same tree shape and search but takes its structure
// from insertion instead of queries: items descend by least enlargement and
// overflowing leaves are split around the median of their minimum keys.
//
// Neither engine is safe for concurrent use; Search mutates the tree.
package cracking
