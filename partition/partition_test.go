package partition_test

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/davecgh/go-spew/spew"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/MasoumehVahedi/IntervalCracking/cracking"
	"github.com/MasoumehVahedi/IntervalCracking/internal/logging"
	"github.com/MasoumehVahedi/IntervalCracking/interval"
	"github.com/MasoumehVahedi/IntervalCracking/partition"
	"github.com/MasoumehVahedi/IntervalCracking/zorder"
)

// memorySource serves partitions from memory and counts loads.
type memorySource struct {
	mu         sync.Mutex
	partitions map[string][]cracking.Payload[string]
	order      []string
	loads      atomic.Int64
	failWith   error
}

func newMemorySource() *memorySource {
	return &memorySource{partitions: make(map[string][]cracking.Payload[string])}
}

func (s *memorySource) put(id string, payloads ...cracking.Payload[string]) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.partitions[id]; !ok {
		s.order = append(s.order, id)
	}

	s.partitions[id] = append(s.partitions[id], payloads...)
}

func (s *memorySource) Load(_ context.Context, id string) ([]cracking.Payload[string], error) {
	s.loads.Add(1)

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.failWith != nil {
		return nil, s.failWith
	}

	payloads, ok := s.partitions[id]
	if !ok {
		return nil, errors.Wrapf(partition.ErrNoSuchPartition, "%s", id)
	}

	return append([]cracking.Payload[string](nil), payloads...), nil
}

func (s *memorySource) Partitions(_ context.Context) ([]partition.Descriptor, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	descriptors := make([]partition.Descriptor, 0, len(s.order))

	for _, id := range s.order {
		d := partition.Descriptor{ID: id, Count: len(s.partitions[id])}

		for i, p := range s.partitions[id] {
			if i == 0 {
				d.Box = p.Box
			} else {
				d.Box = d.Box.Union(p.Box)
			}
		}

		descriptors = append(descriptors, d)
	}

	return descriptors, nil
}

// sourceOnly hides the Lister of a source.
type sourceOnly struct {
	partition.Source[string]
}

func payload(xmin, ymin, xmax, ymax float64, name string) cracking.Payload[string] {
	return cracking.Payload[string]{
		Box:   interval.Box{XMin: xmin, YMin: ymin, XMax: xmax, YMax: ymax},
		Value: name,
	}
}

func names(payloads []cracking.Payload[string]) []string {
	out := make([]string, len(payloads))
	for i, p := range payloads {
		out[i] = p.Value
	}

	return out
}

// cityGrid fills a partition with a 10x10 grid of 0.1 degree cells at lng,
// lat.
func cityGrid(src *memorySource, id string, lng, lat float64) {
	for i := range 10 {
		for j := range 10 {
			x, y := lng+float64(i)*0.1, lat+float64(j)*0.1
			src.put(id, payload(x, y, x+0.1, y+0.1, fmt.Sprintf("%s-%d-%d", id, i, j)))
		}
	}
}

func testContext(t *testing.T) (context.Context, *observer.ObservedLogs) {
	t.Helper()

	core, logs := observer.New(zapcore.DebugLevel)

	return logging.WithLogger(context.Background(), zap.New(core).Sugar()), logs
}

func TestRegistry_materializeOnce(t *testing.T) {
	t.Parallel()

	ctx, logs := testContext(t)

	src := newMemorySource()
	cityGrid(src, "copenhagen", 12.0, 55.0)

	registry := partition.New[string](src, zorder.Default(), partition.WithEngineOptions(cracking.WithMaxEntries(8)))

	box := interval.Box{XMin: 12.05, YMin: 55.05, XMax: 12.25, YMax: 55.15}

	first, err := registry.Query(ctx, "copenhagen", box)
	require.NoError(t, err)
	require.ElementsMatch(t, []string{
		"copenhagen-0-0", "copenhagen-1-0", "copenhagen-2-0",
		"copenhagen-0-1", "copenhagen-1-1", "copenhagen-2-1",
	}, names(first))

	second, err := registry.Query(ctx, "copenhagen", box)
	require.NoError(t, err)
	require.Equal(t, names(first), names(second))

	require.Equal(t, int64(1), src.loads.Load())
	require.Equal(t, []string{"copenhagen"}, registry.Materialized())
	require.Equal(t, 1, logs.FilterMessageSnippet("materialized partition copenhagen").Len())

	tree, err := registry.Engine(ctx, "copenhagen")
	require.NoError(t, err)
	require.NoError(t, tree.Validate())

	stats := tree.Stats()
	require.Equal(t, uint64(2), stats.Queries)
	require.Positive(t, stats.Cracks, spew.Sdump(tree.Lines()))
	require.Equal(t, 100, stats.Items)
}

func TestRegistry_unknownPartition(t *testing.T) {
	t.Parallel()

	ctx, _ := testContext(t)
	registry := partition.New[string](newMemorySource(), zorder.Default())

	_, err := registry.Engine(ctx, "nowhere")
	require.ErrorIs(t, err, partition.ErrNoSuchPartition)

	_, err = registry.Query(ctx, "nowhere", interval.Box{XMax: 1, YMax: 1})
	require.ErrorIs(t, err, partition.ErrNoSuchPartition)

	require.Empty(t, registry.Materialized())
}

func TestRegistry_emptyPartition(t *testing.T) {
	t.Parallel()

	ctx, _ := testContext(t)

	src := newMemorySource()
	src.put("empty")

	registry := partition.New[string](src, zorder.Default())

	_, err := registry.Engine(ctx, "empty")
	require.ErrorIs(t, err, cracking.ErrEmptyInput)

	// Failed builds are not cached.
	_, err = registry.Engine(ctx, "empty")
	require.ErrorIs(t, err, cracking.ErrEmptyInput)
	require.Equal(t, int64(2), src.loads.Load())
}

func TestRegistry_sourceFailure(t *testing.T) {
	t.Parallel()

	ctx, logs := testContext(t)

	src := newMemorySource()
	src.failWith = errors.New("disk on fire")

	registry := partition.New[string](src, zorder.Default())

	_, err := registry.Query(ctx, "p", interval.Box{XMax: 1, YMax: 1})
	require.ErrorContains(t, err, "disk on fire")
	require.False(t, errors.Is(err, partition.ErrNoSuchPartition))
	require.Equal(t, 1, logs.FilterLevelExact(zapcore.ErrorLevel).Len())
}

func TestRegistry_invalidQuery(t *testing.T) {
	t.Parallel()

	ctx, _ := testContext(t)

	src := newMemorySource()
	cityGrid(src, "p", 0, 0)

	registry := partition.New[string](src, zorder.Default())
	inverted := interval.Box{XMin: 1, YMin: 0, XMax: 0, YMax: 1}

	_, err := registry.Query(ctx, "p", inverted)
	require.ErrorIs(t, err, partition.ErrInvalidQuery)

	_, err = registry.QueryCandidates(ctx, inverted, []partition.Candidate{{ID: "p", Weight: 1}})
	require.ErrorIs(t, err, partition.ErrInvalidQuery)

	_, err = registry.Search(ctx, inverted)
	require.ErrorIs(t, err, partition.ErrInvalidQuery)

	require.Zero(t, src.loads.Load())
}

func TestRegistry_drop(t *testing.T) {
	t.Parallel()

	ctx, _ := testContext(t)

	src := newMemorySource()
	cityGrid(src, "p", 0, 0)

	registry := partition.New[string](src, zorder.Default(), partition.WithEngineOptions(cracking.WithMaxEntries(4)))
	box := interval.Box{XMin: 0.05, YMin: 0.05, XMax: 0.15, YMax: 0.15}

	before, err := registry.Query(ctx, "p", box)
	require.NoError(t, err)

	registry.Drop("p")
	require.Empty(t, registry.Materialized())

	tree, err := registry.Engine(ctx, "p")
	require.NoError(t, err)
	require.Zero(t, tree.Stats().Cracks)

	after, err := registry.Query(ctx, "p", box)
	require.NoError(t, err)
	require.ElementsMatch(t, names(before), names(after))
	require.Equal(t, int64(2), src.loads.Load())
}

func TestRegistry_bulkMode(t *testing.T) {
	t.Parallel()

	ctx, _ := testContext(t)

	src := newMemorySource()
	cityGrid(src, "p", 0, 0)

	registry := partition.New[string](src, zorder.Default(),
		partition.WithMode(partition.ModeBulk),
		partition.WithEngineOptions(cracking.WithMaxEntries(4)),
	)

	found, err := registry.Query(ctx, "p", interval.Box{XMin: 0.05, YMin: 0.05, XMax: 0.15, YMax: 0.15})
	require.NoError(t, err)
	require.ElementsMatch(t, []string{"p-0-0", "p-1-0", "p-0-1", "p-1-1"}, names(found))

	tree, err := registry.Engine(ctx, "p")
	require.NoError(t, err)
	require.IsType(t, &cracking.BulkEngine[string]{}, tree)
	require.Positive(t, tree.Stats().Splits)
	require.Zero(t, tree.Stats().Cracks)
}

func TestRegistry_queryCandidates(t *testing.T) {
	t.Parallel()

	ctx, logs := testContext(t)

	src := newMemorySource()
	src.put("a", payload(0, 0, 2, 2, "a1"), payload(5, 5, 6, 6, "a2"))
	src.put("b", payload(1, 1, 3, 3, "b1"))
	src.put("c", payload(50, 50, 51, 51, "c1"))

	registry := partition.New[string](src, zorder.Default(), partition.WithMaxConcurrency(2))

	found, err := registry.QueryCandidates(ctx, interval.Box{XMin: 0.5, YMin: 0.5, XMax: 1.5, YMax: 1.5}, []partition.Candidate{
		{ID: "b", Weight: 0.25},
		{ID: "missing", Weight: 0.25},
		{ID: "a", Weight: 0.25},
		{ID: "c", Weight: 0.25},
	})
	require.NoError(t, err)
	require.Equal(t, []string{"b1", "a1"}, names(found))
	require.Equal(t, 1, logs.FilterMessage("skipping unknown partition missing").Len())

	require.Equal(t, []string{"a", "b", "c"}, registry.Materialized())
}

func TestRegistry_concurrentQueries(t *testing.T) {
	t.Parallel()

	ctx, _ := testContext(t)

	src := newMemorySource()
	cityGrid(src, "north", 10, 60)
	cityGrid(src, "south", 10, 40)

	registry := partition.New[string](src, zorder.Default(), partition.WithEngineOptions(cracking.WithMaxEntries(2)))

	var wg sync.WaitGroup

	for i := range 32 {
		wg.Add(1)

		go func() {
			defer wg.Done()

			id, lat := "north", 60.0
			if i%2 == 1 {
				id, lat = "south", 40.0
			}

			offset := float64(i%8) * 0.1
			box := interval.Box{XMin: 10 + offset + 0.01, YMin: lat + 0.01, XMax: 10 + offset + 0.09, YMax: lat + 0.09}

			found, err := registry.Query(ctx, id, box)
			if assert.NoError(t, err) {
				assert.Len(t, found, 1, "query %d", i)
			}
		}()
	}

	wg.Wait()

	require.Equal(t, int64(2), src.loads.Load())

	for _, id := range []string{"north", "south"} {
		tree, err := registry.Engine(ctx, id)
		require.NoError(t, err)
		require.NoError(t, tree.Validate())
		require.Equal(t, uint64(16), tree.Stats().Queries)
	}
}

// flakySource fails its first load, after being released, and serves
// payloads afterwards.
type flakySource struct {
	entered chan struct{}
	release chan struct{}
	loads   atomic.Int64
	payload cracking.Payload[string]
}

func (s *flakySource) Load(_ context.Context, _ string) ([]cracking.Payload[string], error) {
	if s.loads.Add(1) == 1 {
		close(s.entered)
		<-s.release

		return nil, errors.New("transient failure")
	}

	return []cracking.Payload[string]{s.payload}, nil
}

func TestRegistry_retryAfterFailedBuild(t *testing.T) {
	t.Parallel()

	ctx, _ := testContext(t)

	src := &flakySource{
		entered: make(chan struct{}),
		release: make(chan struct{}),
		payload: payload(0, 0, 1, 1, "p1"),
	}

	registry := partition.New[string](src, zorder.Default())
	box := interval.Box{XMin: 0.2, YMin: 0.2, XMax: 0.8, YMax: 0.8}

	failed := make(chan error, 1)

	go func() {
		_, err := registry.Query(ctx, "p", box)
		failed <- err
	}()

	<-src.entered

	succeeded := make(chan error, 1)

	go func() {
		found, err := registry.Query(ctx, "p", box)
		if err == nil && len(found) != 1 {
			err = errors.Newf("found %d payloads", len(found))
		}

		succeeded <- err
	}()

	// Give the second query time to queue behind the failing build.
	time.Sleep(20 * time.Millisecond)
	close(src.release)

	require.ErrorContains(t, <-failed, "transient failure")
	require.NoError(t, <-succeeded)

	// The retried build is the cached one.
	require.Equal(t, []string{"p"}, registry.Materialized())

	_, err := registry.Query(ctx, "p", box)
	require.NoError(t, err)
	require.Equal(t, int64(2), src.loads.Load())
}
