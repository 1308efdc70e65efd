// Command crackctl loads partitioned boxes into a store and queries them
// through a partition registry. Configuration comes from CRACKING_*
// environment variables.
//
//	crackctl put -partition p records.json
//	crackctl partitions
//	crackctl query [-partition p] xmin ymin xmax ymax
//	crackctl dump -partition p [xmin ymin xmax ymax]
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/cockroachdb/errors"

	"github.com/MasoumehVahedi/IntervalCracking/boltstore"
	"github.com/MasoumehVahedi/IntervalCracking/cracking"
	"github.com/MasoumehVahedi/IntervalCracking/internal/logging"
	"github.com/MasoumehVahedi/IntervalCracking/internal/metrics"
	"github.com/MasoumehVahedi/IntervalCracking/interval"
	"github.com/MasoumehVahedi/IntervalCracking/partition"
)

func main() {
	ctx, done := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer done()

	if err := run(ctx, os.Args[1:], os.Stdout); err != nil {
		logging.FromContext(ctx).Error(err)
		done()
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, out io.Writer) (err error) {
	if len(args) == 0 {
		return errors.New("usage: crackctl put|partitions|query|dump [flags] [args]")
	}

	config, err := partition.ConfigFromEnv()
	if err != nil {
		return err
	}

	logger := logging.NewLogger(config.LogLevel, false)
	defer func() {
		_ = logger.Sync()
	}()

	ctx = logging.WithLogger(ctx, logger)

	if err := metrics.Register(); err != nil {
		return errors.Wrap(err, "registering views")
	}

	db, err := boltstore.Open(ctx, config.StorePath)
	if err != nil {
		return err
	}
	defer closeStore(ctx, db, &err)

	registry, err := partition.NewFromConfig[boltstore.Record](db, config)
	if err != nil {
		return err
	}

	cmd, args := args[0], args[1:]

	flags := flag.NewFlagSet(cmd, flag.ContinueOnError)
	id := flags.String("partition", "", "partition id")

	if err := flags.Parse(args); err != nil {
		return err
	}

	switch cmd {
	case "put":
		return put(ctx, db, *id, flags.Args())
	case "partitions":
		descriptors, err := db.Partitions(ctx)
		if err != nil {
			return err
		}

		return writeJSON(out, descriptors)
	case "query":
		box, err := parseBox(flags.Args())
		if err != nil {
			return err
		}

		return query(ctx, registry, *id, box, out)
	case "dump":
		return dump(ctx, registry, *id, flags.Args(), out)
	}

	return errors.Newf("unknown command %q", cmd)
}

func put(ctx context.Context, db *boltstore.DB, id string, files []string) error {
	if id == "" || len(files) != 1 {
		return errors.New("usage: crackctl put -partition p records.json")
	}

	data, err := os.ReadFile(files[0])
	if err != nil {
		return errors.Wrap(err, "reading records")
	}

	var records []boltstore.Record

	if err := json.Unmarshal(data, &records); err != nil {
		return errors.Wrapf(err, "decoding %s", files[0])
	}

	_, err = db.Put(ctx, id, records...)

	return err
}

func query(ctx context.Context, registry *partition.Registry[boltstore.Record], id string, box interval.Box, out io.Writer) error {
	var (
		payloads []cracking.Payload[boltstore.Record]
		err      error
	)

	if id == "" {
		payloads, err = registry.Search(ctx, box)
	} else {
		payloads, err = registry.Query(ctx, id, box)
	}

	if err != nil {
		return err
	}

	return writeJSON(out, values(payloads))
}

func dump(ctx context.Context, registry *partition.Registry[boltstore.Record], id string, args []string, out io.Writer) error {
	if id == "" {
		return errors.New("usage: crackctl dump -partition p [xmin ymin xmax ymax]")
	}

	if len(args) > 0 {
		box, err := parseBox(args)
		if err != nil {
			return err
		}

		if _, err := registry.Query(ctx, id, box); err != nil {
			return err
		}
	}

	tree, err := registry.Engine(ctx, id)
	if err != nil {
		return err
	}

	for _, line := range tree.Lines() {
		if _, err := fmt.Fprintln(out, line); err != nil {
			return err
		}
	}

	return nil
}
