// Package metrics defines the opencensus measures recorded by the partition
// registry and the views that aggregate them.
package metrics

import (
	"context"

	"go.opencensus.io/stats"
	"go.opencensus.io/stats/view"
	"go.opencensus.io/tag"
)

const prefix = "cracking/"

var (
	// Queries counts searches run against a partition's tree.
	Queries = stats.Int64(prefix+"queries", "searches run against a partition tree", stats.UnitDimensionless)

	// Cracks counts leaves restructured by searches.
	Cracks = stats.Int64(prefix+"cracks", "leaves cracked by searches", stats.UnitDimensionless)

	// Results counts payloads returned by searches.
	Results = stats.Int64(prefix+"results", "payloads returned by searches", stats.UnitDimensionless)

	// Materialized counts trees built from a partition source.
	Materialized = stats.Int64(prefix+"materialized", "partition trees built", stats.UnitDimensionless)
)

// PartitionKey tags every measurement with its partition id.
var PartitionKey = tag.MustNewKey("partition")

// Views aggregates every measure per partition.
var Views = []*view.View{
	{
		Name:        prefix + "queries_count",
		Description: "Total searches per partition",
		Measure:     Queries,
		TagKeys:     []tag.Key{PartitionKey},
		Aggregation: view.Sum(),
	},
	{
		Name:        prefix + "cracks_count",
		Description: "Total leaves cracked per partition",
		Measure:     Cracks,
		TagKeys:     []tag.Key{PartitionKey},
		Aggregation: view.Sum(),
	},
	{
		Name:        prefix + "results",
		Description: "Distribution of result sizes per partition",
		Measure:     Results,
		TagKeys:     []tag.Key{PartitionKey},
		Aggregation: view.Distribution(1, 10, 100, 1000, 10000, 100000),
	},
	{
		Name:        prefix + "materialized_count",
		Description: "Total trees built per partition",
		Measure:     Materialized,
		TagKeys:     []tag.Key{PartitionKey},
		Aggregation: view.Count(),
	},
}

// Register registers Views with the opencensus view worker.
func Register() error {
	return view.Register(Views...)
}

// Record records measurements tagged with partition. Tagging failures drop
// the measurement.
func Record(ctx context.Context, partition string, ms ...stats.Measurement) {
	_ = stats.RecordWithTags(ctx, []tag.Mutator{tag.Upsert(PartitionKey, partition)}, ms...)
}
