package main

import (
	"context"
	"encoding/json"
	"io"
	"strconv"

	"github.com/cockroachdb/errors"

	"github.com/MasoumehVahedi/IntervalCracking/boltstore"
	"github.com/MasoumehVahedi/IntervalCracking/cracking"
	"github.com/MasoumehVahedi/IntervalCracking/interval"
)

func parseBox(args []string) (interval.Box, error) {
	if len(args) != 4 {
		return interval.Box{}, errors.Newf("want xmin ymin xmax ymax, got %d values", len(args))
	}

	var v [4]float64

	for i, arg := range args {
		f, err := strconv.ParseFloat(arg, 64)
		if err != nil {
			return interval.Box{}, errors.Wrapf(err, "coordinate %d", i)
		}

		v[i] = f
	}

	return interval.Box{XMin: v[0], YMin: v[1], XMax: v[2], YMax: v[3]}, nil
}

func values(payloads []cracking.Payload[boltstore.Record]) []boltstore.Record {
	records := make([]boltstore.Record, len(payloads))
	for i, p := range payloads {
		records[i] = p.Value
	}

	return records
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")

	return enc.Encode(v)
}

type closer interface {
	Close(ctx context.Context) error
}

// closeStore closes c and folds its error into *err. An earlier error stays
// the primary one.
func closeStore(ctx context.Context, c closer, err *error) {
	if closeErr := c.Close(ctx); closeErr != nil {
		*err = errors.CombineErrors(*err, errors.Wrap(closeErr, "closing store"))
	}
}
