// Package boltstore keeps partitioned records in a bbolt file and serves them
// to a partition registry.
//
// Every partition is a bucket of JSON encoded records keyed by record id. A
// separate bucket keeps one descriptor per partition with its bounding box
// and record count, so routing does not need to read the records.
package boltstore

import (
	"context"
	"encoding/json"
	"slices"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	bolt "go.etcd.io/bbolt"

	"github.com/MasoumehVahedi/IntervalCracking/cracking"
	"github.com/MasoumehVahedi/IntervalCracking/internal/logging"
	"github.com/MasoumehVahedi/IntervalCracking/interval"
	"github.com/MasoumehVahedi/IntervalCracking/partition"
)

const (
	partitionsBucket = "partitions"
	recordPrefix     = "partition:"
)

// Record is a stored polygon summary: its bounding box and whatever the
// producer wants to keep alongside it.
type Record struct {
	ID    uuid.UUID         `json:"id"`
	Name  string            `json:"name,omitempty"`
	Box   interval.Box      `json:"box"`
	Attrs map[string]string `json:"attrs,omitempty"`
}

// DB is a bbolt backed partition store.
type DB struct {
	DB *bolt.DB
}

var (
	_ partition.Source[Record] = (*DB)(nil)
	_ partition.Lister         = (*DB)(nil)
)

// Open opens or creates the store at path.
func Open(ctx context.Context, path string) (*DB, error) {
	logger := logging.FromContext(ctx)
	logger.Infof("opening store %s", path)

	db, err := bolt.Open(path, 0o600, nil)
	if err != nil {
		return nil, errors.Wrapf(err, "opening store %s", path)
	}

	if err := db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(partitionsBucket))

		return err
	}); err != nil {
		_ = db.Close()

		return nil, errors.Wrap(err, "creating partitions bucket")
	}

	return &DB{DB: db}, nil
}

// Close closes the underlying file.
func (db *DB) Close(ctx context.Context) error {
	logger := logging.FromContext(ctx)
	logger.Infof("closing store %s", db.DB.Path())

	if err := db.DB.Close(); err != nil {
		return errors.Wrap(err, "closing store")
	}

	return nil
}

func recordBucket(id string) []byte {
	return []byte(recordPrefix + id)
}

// Put stores records in partition id, creating the partition if needed, and
// returns the stored ids in record order. Records with a zero ID are given a
// new one. A record whose ID exists already replaces the stored one.
func (db *DB) Put(ctx context.Context, id string, records ...Record) ([]uuid.UUID, error) {
	if id == "" {
		return nil, errors.New("boltstore: empty partition id")
	}

	records = slices.Clone(records)
	ids := make([]uuid.UUID, len(records))
	values := make([][]byte, len(records))

	for i := range records {
		if records[i].ID == uuid.Nil {
			records[i].ID = uuid.New()
		}

		value, err := json.Marshal(records[i])
		if err != nil {
			return nil, errors.Wrapf(err, "encoding record %s", records[i].ID)
		}

		ids[i] = records[i].ID
		values[i] = value
	}

	if err := db.DB.Batch(func(tx *bolt.Tx) error {
		b, err := tx.CreateBucketIfNotExists(recordBucket(id))
		if err != nil {
			return errors.Wrap(err, "create bucket")
		}

		meta := tx.Bucket([]byte(partitionsBucket))

		d, err := descriptor(meta, id)
		if err != nil {
			return err
		}

		// Replacing a record never shrinks the box; it stays a cover.
		covered := d.Count > 0

		for i, record := range records {
			key := []byte(record.ID.String())

			if b.Get(key) == nil {
				d.Count++
			}

			if err := b.Put(key, values[i]); err != nil {
				return errors.Wrap(err, "put to bucket")
			}

			if covered {
				d.Box = d.Box.Union(record.Box)
			} else {
				d.Box, covered = record.Box, true
			}
		}

		return putDescriptor(meta, d)
	}); err != nil {
		return nil, errors.Wrapf(err, "storing %d records in %s", len(records), id)
	}

	logging.FromContext(ctx).Debugf("stored %d records in partition %s", len(records), id)

	return ids, nil
}

func descriptor(meta *bolt.Bucket, id string) (partition.Descriptor, error) {
	d := partition.Descriptor{ID: id}

	value := meta.Get([]byte(id))
	if value == nil {
		return d, nil
	}

	if err := json.Unmarshal(value, &d); err != nil {
		return d, errors.Wrapf(err, "decoding descriptor of %s", id)
	}

	return d, nil
}

func putDescriptor(meta *bolt.Bucket, d partition.Descriptor) error {
	value, err := json.Marshal(d)
	if err != nil {
		return errors.Wrapf(err, "encoding descriptor of %s", d.ID)
	}

	return meta.Put([]byte(d.ID), value)
}

// Load returns the records of partition id as payloads, in record id order.
func (db *DB) Load(_ context.Context, id string) ([]cracking.Payload[Record], error) {
	var payloads []cracking.Payload[Record]

	err := db.DB.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(recordBucket(id))
		if b == nil {
			return errors.Wrapf(partition.ErrNoSuchPartition, "%s", id)
		}

		payloads = make([]cracking.Payload[Record], 0, b.Stats().KeyN)

		return b.ForEach(func(k, v []byte) error {
			var record Record

			if err := json.Unmarshal(v, &record); err != nil {
				return errors.Wrapf(err, "decoding record %s", k)
			}

			payloads = append(payloads, cracking.Payload[Record]{Box: record.Box, Value: record})

			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	return payloads, nil
}

// Partitions returns the descriptor of every partition, in id order.
func (db *DB) Partitions(_ context.Context) ([]partition.Descriptor, error) {
	var descriptors []partition.Descriptor

	err := db.DB.View(func(tx *bolt.Tx) error {
		return tx.Bucket([]byte(partitionsBucket)).ForEach(func(k, v []byte) error {
			var d partition.Descriptor

			if err := json.Unmarshal(v, &d); err != nil {
				return errors.Wrapf(err, "decoding descriptor of %s", k)
			}

			descriptors = append(descriptors, d)

			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	return descriptors, nil
}

// Delete removes partition id and its records. Deleting a missing partition
// returns a wrapped partition.ErrNoSuchPartition.
func (db *DB) Delete(ctx context.Context, id string) error {
	if err := db.DB.Update(func(tx *bolt.Tx) error {
		if err := tx.DeleteBucket(recordBucket(id)); err != nil {
			if errors.Is(err, bolt.ErrBucketNotFound) {
				return errors.Wrapf(partition.ErrNoSuchPartition, "%s", id)
			}

			return err
		}

		return tx.Bucket([]byte(partitionsBucket)).Delete([]byte(id))
	}); err != nil {
		return errors.Wrapf(err, "deleting partition %s", id)
	}

	logging.FromContext(ctx).Infof("deleted partition %s", id)

	return nil
}
