package cracking_test

import (
	"math/rand/v2"
	"slices"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/MasoumehVahedi/IntervalCracking/cracking"
	"github.com/MasoumehVahedi/IntervalCracking/interval"
	"github.com/MasoumehVahedi/IntervalCracking/zorder"
)

// randomBox returns a box inside the world with sides of at most span
// degrees.
func randomBox(r *rand.Rand, span float64) interval.Box {
	lng := r.Float64()*(360-span) - 180
	lat := r.Float64()*(180-span) - 90

	return interval.Box{
		XMin: lng,
		YMin: lat,
		XMax: lng + r.Float64()*span,
		YMax: lat + r.Float64()*span,
	}
}

func bruteForce(items []cracking.Item[int], box interval.Box) []int {
	var found []int

	for _, item := range items {
		if item.Payload.Box.Intersects(box) {
			found = append(found, item.Payload.Value)
		}
	}

	return found
}

func FuzzEngine(f *testing.F) {
	f.Add(uint64(1), uint16(100), uint8(4), uint8(10))
	f.Add(uint64(7), uint16(1000), uint8(16), uint8(50))
	f.Add(uint64(42), uint16(3), uint8(1), uint8(3))

	f.Fuzz(func(
		t *testing.T,
		seed uint64,
		itemCount uint16,
		maxEntries uint8,
		queryCount uint8,
	) {
		if itemCount == 0 || maxEntries == 0 {
			t.Skip()
		}

		r := rand.New(rand.NewPCG(seed, seed))
		enc := zorder.Default()

		items := make([]cracking.Item[int], itemCount)
		for i := range items {
			box := randomBox(r, 20)
			items[i] = cracking.NewItem(enc.Interval(box), box, i)
		}

		snapshot := slices.Clone(items)

		engine, err := cracking.New(items, cracking.WithMaxEntries(int(maxEntries)))
		require.NoError(t, err)

		bulk, err := cracking.Bulk(snapshot, cracking.WithMaxEntries(int(maxEntries)))
		require.NoError(t, err)

		for range queryCount {
			box := randomBox(r, 60)
			q := enc.Interval(box)
			expected := bruteForce(snapshot, box)

			// ElementsMatch treats a nil and an empty result alike.
			require.ElementsMatch(t, expected, values(engine.Search(q, box)), "crack %+v", box)
			require.ElementsMatch(t, expected, values(bulk.Search(q, box)), "bulk %+v", box)
		}

		require.NoError(t, engine.Validate())
		require.NoError(t, bulk.Validate())

		require.Equal(t, int(itemCount), engine.Stats().Items)
		require.Equal(t, int(itemCount), bulk.Stats().Items)

		leaves := slices.Concat(engine.LeafValues()...)
		slices.Sort(leaves)
		require.Len(t, slices.Compact(leaves), int(itemCount))
	})
}
