package partition

import (
	"context"

	"github.com/cockroachdb/errors"

	"github.com/MasoumehVahedi/IntervalCracking/cracking"
	"github.com/MasoumehVahedi/IntervalCracking/interval"
	"github.com/MasoumehVahedi/IntervalCracking/zorder"
)

// Router picks the partitions a query box may touch by the key interval of
// each partition's bounding box.
type Router struct {
	enc   *zorder.Encoder
	index *interval.Index[string]
}

// NewRouter indexes the bounding box of every non-empty descriptor.
func NewRouter(enc *zorder.Encoder, descriptors []Descriptor) *Router {
	index := interval.NewIndex[string]()

	for _, d := range descriptors {
		if d.Count == 0 {
			continue
		}

		index.Add(enc.Interval(d.Box), d.ID)
	}

	return &Router{enc: enc, index: index}
}

// Len returns the number of routable partitions.
func (rt *Router) Len() int {
	return rt.index.Len()
}

// Route returns a candidate for every partition whose key interval overlaps
// the key interval of box, in the order the partitions were listed. The
// weights are uniform and sum to one.
func (rt *Router) Route(box interval.Box) []Candidate {
	ids, ok := rt.index.Intersecting(rt.enc.Interval(box))
	if !ok {
		return nil
	}

	weight := 1 / float64(len(ids))

	candidates := make([]Candidate, len(ids))
	for i, id := range ids {
		candidates[i] = Candidate{ID: id, Weight: weight}
	}

	return candidates
}

// Router lists the source's partitions and installs a fresh router for
// Search, which is also returned.
func (r *Registry[V]) Router(ctx context.Context) (*Router, error) {
	lister, ok := r.src.(Lister)
	if !ok {
		return nil, ErrUnlistable
	}

	descriptors, err := lister.Partitions(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "list partitions")
	}

	rt := NewRouter(r.enc, descriptors)

	r.mu.Lock()
	r.router = rt
	r.mu.Unlock()

	return rt, nil
}

// Search routes box to candidate partitions and queries them. The router is
// built on first use; call Router again after the source changes.
func (r *Registry[V]) Search(ctx context.Context, box interval.Box) ([]cracking.Payload[V], error) {
	if !box.Valid() {
		return nil, errors.Wrapf(ErrInvalidQuery, "%+v", box)
	}

	r.mu.Lock()
	rt := r.router
	r.mu.Unlock()

	if rt == nil {
		var err error

		if rt, err = r.Router(ctx); err != nil {
			return nil, err
		}
	}

	return r.QueryCandidates(ctx, box, rt.Route(box))
}
