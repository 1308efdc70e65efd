// Package partition keeps one cracking tree per data partition. Trees are
// built from a Source the first time a partition is queried and reused for
// every later query, so the refinement done by one query benefits the next.
package partition

import (
	"context"
	"maps"
	"slices"
	"sync"

	"github.com/cockroachdb/errors"
	"golang.org/x/sync/errgroup"

	"github.com/MasoumehVahedi/IntervalCracking/cracking"
	"github.com/MasoumehVahedi/IntervalCracking/internal/logging"
	"github.com/MasoumehVahedi/IntervalCracking/internal/metrics"
	"github.com/MasoumehVahedi/IntervalCracking/interval"
	"github.com/MasoumehVahedi/IntervalCracking/zorder"
)

var (
	// ErrNoSuchPartition is returned, possibly wrapped, for an id the source
	// does not know.
	ErrNoSuchPartition = errors.New("partition: no such partition")

	// ErrInvalidQuery is returned for a query box with inverted extents.
	ErrInvalidQuery = errors.New("partition: invalid query box")

	// ErrUnlistable is returned when routing needs a source that cannot list
	// its partitions.
	ErrUnlistable = errors.New("partition: source does not list partitions")
)

// Source loads the payloads of a partition.
type Source[V any] interface {
	// Load returns every payload of partition id, or an error marked with
	// ErrNoSuchPartition when there is no such partition.
	Load(ctx context.Context, id string) ([]cracking.Payload[V], error)
}

// Descriptor summarises a stored partition.
type Descriptor struct {
	ID    string       `json:"id"`
	Box   interval.Box `json:"box"`
	Count int          `json:"count"`
}

// Lister is implemented by sources that can enumerate their partitions.
type Lister interface {
	Partitions(ctx context.Context) ([]Descriptor, error)
}

// Candidate is a partition picked for a query, with the router's weight.
type Candidate struct {
	ID     string
	Weight float64
}

// Tree is the part of a cracking engine the registry relies on. Both
// *cracking.Engine and *cracking.BulkEngine implement it.
type Tree[V any] interface {
	Search(q interval.Interval, box interval.Box) []cracking.Payload[V]
	Cracks() uint64
	Stats() cracking.Stats
	Lines() []string
	Validate() error
}

var (
	_ Tree[int] = (*cracking.Engine[int])(nil)
	_ Tree[int] = (*cracking.BulkEngine[int])(nil)
)

// Mode selects how a partition tree is built.
type Mode string

const (
	// ModeCrack builds a cracking engine refined by queries.
	ModeCrack Mode = "CRACK"

	// ModeBulk builds a bulk inserted tree.
	ModeBulk Mode = "BULK"
)

// ParseMode returns the mode named by s.
func ParseMode(s string) (Mode, error) {
	switch m := Mode(s); m {
	case ModeCrack, ModeBulk:
		return m, nil
	}

	return "", errors.Newf("partition: unknown mode %q", s)
}

// Option configures a Registry.
type Option func(*options)

type options struct {
	mode           Mode
	engineOptions  []cracking.Option
	maxConcurrency int
}

// WithMode sets how trees are built. The default is ModeCrack.
func WithMode(m Mode) Option {
	return func(o *options) {
		o.mode = m
	}
}

// WithEngineOptions sets the options every tree is built with.
func WithEngineOptions(opts ...cracking.Option) Option {
	return func(o *options) {
		o.engineOptions = opts
	}
}

// WithMaxConcurrency caps the partitions QueryCandidates searches at once.
// Values below one mean no cap.
func WithMaxConcurrency(n int) Option {
	return func(o *options) {
		o.maxConcurrency = n
	}
}

// handle guards one partition tree. mu is held while building the tree and
// for the whole of every search, so at most one query runs per tree.
type handle[V any] struct {
	mu   sync.Mutex
	tree Tree[V]
}

// Registry maps partition ids to their trees. It is safe for concurrent use;
// queries on different partitions run in parallel.
type Registry[V any] struct {
	src  Source[V]
	enc  *zorder.Encoder
	opts options

	mu      sync.Mutex
	handles map[string]*handle[V]
	router  *Router
}

// New creates a registry over src that keys boxes with enc.
func New[V any](src Source[V], enc *zorder.Encoder, opts ...Option) *Registry[V] {
	o := options{mode: ModeCrack}

	for _, opt := range opts {
		opt(&o)
	}

	return &Registry[V]{
		src:     src,
		enc:     enc,
		opts:    o,
		handles: make(map[string]*handle[V]),
	}
}

// Encoder returns the encoder used to key boxes.
func (r *Registry[V]) Encoder() *zorder.Encoder {
	return r.enc
}

// Engine returns the tree of partition id, building it on first use. The
// tree must not be used while a Query on the same id may be running.
func (r *Registry[V]) Engine(ctx context.Context, id string) (Tree[V], error) {
	h, err := r.acquire(ctx, id)
	if err != nil {
		return nil, err
	}
	defer h.mu.Unlock()

	return h.tree, nil
}

// acquire returns the locked handle of id with its tree built. A handle
// forgotten after a failed build while we waited for it is abandoned, and
// the lookup starts over.
func (r *Registry[V]) acquire(ctx context.Context, id string) (*handle[V], error) {
	for {
		r.mu.Lock()
		h, ok := r.handles[id]
		if !ok {
			h = &handle[V]{}
			r.handles[id] = h
		}
		r.mu.Unlock()

		h.mu.Lock()

		if h.tree != nil {
			return h, nil
		}

		if !r.current(id, h) {
			h.mu.Unlock()

			continue
		}

		tree, err := r.build(ctx, id)
		if err != nil {
			h.mu.Unlock()
			r.forget(id, h)

			return nil, err
		}

		h.tree = tree

		return h, nil
	}
}

// current reports whether h is still the registered handle of id.
func (r *Registry[V]) current(id string, h *handle[V]) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.handles[id] == h
}

// forget removes h from the registry unless it has been replaced already.
func (r *Registry[V]) forget(id string, h *handle[V]) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.handles[id] == h {
		delete(r.handles, id)
	}
}

func (r *Registry[V]) build(ctx context.Context, id string) (Tree[V], error) {
	logger := logging.FromContext(ctx)

	payloads, err := r.src.Load(ctx, id)
	if err != nil {
		if !errors.Is(err, ErrNoSuchPartition) {
			logger.Errorf("loading partition %s: %v", id, err)
		}

		return nil, errors.Wrapf(err, "load partition %s", id)
	}

	items := make([]cracking.Item[V], len(payloads))
	for i, p := range payloads {
		items[i] = cracking.Item[V]{Interval: r.enc.Interval(p.Box), Payload: p}
	}

	var tree Tree[V]

	switch r.opts.mode {
	case ModeBulk:
		tree, err = cracking.Bulk(items, r.opts.engineOptions...)
	default:
		tree, err = cracking.New(items, r.opts.engineOptions...)
	}

	if err != nil {
		return nil, errors.Wrapf(err, "build partition %s", id)
	}

	logger.Infof("materialized partition %s: %d items, mode %s", id, len(items), r.opts.mode)
	metrics.Record(ctx, id, metrics.Materialized.M(1))

	return tree, nil
}

// Query searches partition id for payloads whose box intersects box.
func (r *Registry[V]) Query(ctx context.Context, id string, box interval.Box) ([]cracking.Payload[V], error) {
	if !box.Valid() {
		return nil, errors.Wrapf(ErrInvalidQuery, "%+v", box)
	}

	return r.query(ctx, id, box)
}

func (r *Registry[V]) query(ctx context.Context, id string, box interval.Box) ([]cracking.Payload[V], error) {
	h, err := r.acquire(ctx, id)
	if err != nil {
		return nil, err
	}
	defer h.mu.Unlock()

	cracks := h.tree.Cracks()
	found := h.tree.Search(r.enc.Interval(box), box)

	metrics.Record(ctx, id,
		metrics.Queries.M(1),
		metrics.Results.M(int64(len(found))),
		metrics.Cracks.M(int64(h.tree.Cracks()-cracks)),
	)

	return found, nil
}

// QueryCandidates queries every candidate partition and concatenates the
// results in candidate order. Candidates the source does not know are
// skipped; any other failure cancels the remaining queries.
func (r *Registry[V]) QueryCandidates(ctx context.Context, box interval.Box, candidates []Candidate) ([]cracking.Payload[V], error) {
	if !box.Valid() {
		return nil, errors.Wrapf(ErrInvalidQuery, "%+v", box)
	}

	logger := logging.FromContext(ctx)
	logger.Debugf("querying %d candidate partitions", len(candidates))

	results := make([][]cracking.Payload[V], len(candidates))

	g, ctx := errgroup.WithContext(ctx)
	if r.opts.maxConcurrency > 0 {
		g.SetLimit(r.opts.maxConcurrency)
	}

	for i, c := range candidates {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}

			found, err := r.query(ctx, c.ID, box)
			if errors.Is(err, ErrNoSuchPartition) {
				logger.Debugf("skipping unknown partition %s", c.ID)

				return nil
			}

			if err != nil {
				return err
			}

			results[i] = found

			return nil
		})
	}

	if err := g.Wait(); err != nil {
		logger.Errorf("querying candidates: %v", err)

		return nil, err
	}

	return slices.Concat(results...), nil
}

// Drop discards the tree of partition id. The next query rebuilds it from
// the source, losing the refinement done so far.
func (r *Registry[V]) Drop(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.handles, id)
}

// Materialized returns the ids of the partitions that currently have a tree,
// in ascending order.
func (r *Registry[V]) Materialized() []string {
	r.mu.Lock()
	handles := maps.Clone(r.handles)
	r.mu.Unlock()

	var ids []string

	for id, h := range handles {
		h.mu.Lock()
		built := h.tree != nil
		h.mu.Unlock()

		if built {
			ids = append(ids, id)
		}
	}

	slices.Sort(ids)

	return ids
}
