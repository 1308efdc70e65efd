package cracking

import (
	"github.com/cockroachdb/errors"
)

// DefaultMaxEntries is the number of items a leaf may hold before a query
// cracks it, or before an insert splits it.
const DefaultMaxEntries = 128

var (
	// ErrEmptyInput is returned when an engine is constructed over no items.
	ErrEmptyInput = errors.New("cracking: no items to index")

	// ErrInvalidCapacity is returned for a non-positive maximum or a negative
	// minimum leaf size.
	ErrInvalidCapacity = errors.New("cracking: invalid leaf capacity")

	// ErrCorrupt is returned by Validate when a structural invariant is broken.
	ErrCorrupt = errors.New("cracking: corrupt tree")
)

// Option configures an engine.
type Option func(*options)

type options struct {
	maxEntries int
	minEntries int
}

// WithMaxEntries sets the largest leaf that is scanned instead of cracked
// (or split, for a BulkEngine).
func WithMaxEntries(n int) Option {
	return func(o *options) {
		o.maxEntries = n
	}
}

// WithMinEntries sets the leaf size at or below which a BulkEngine splits by
// insertion order instead of by median. Zero means half of the maximum,
// rounded up.
func WithMinEntries(n int) Option {
	return func(o *options) {
		o.minEntries = n
	}
}

func newOptions(opts []Option) (options, error) {
	o := options{maxEntries: DefaultMaxEntries}

	for _, opt := range opts {
		opt(&o)
	}

	if o.maxEntries < 1 {
		return o, errors.Wrapf(ErrInvalidCapacity, "max entries %d", o.maxEntries)
	}

	if o.minEntries < 0 {
		return o, errors.Wrapf(ErrInvalidCapacity, "min entries %d", o.minEntries)
	}

	if o.minEntries == 0 {
		o.minEntries = (o.maxEntries + 1) / 2
	}

	return o, nil
}
