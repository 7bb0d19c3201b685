package ingest

import (
	"github.com/google/uuid"

	"github.com/roach88/tdq/internal/compiler"
	"github.com/roach88/tdq/internal/interval"
	"github.com/roach88/tdq/internal/qerr"
	"github.com/roach88/tdq/internal/queryir"
)

// ReindexOptions configure ReindexTask.
type ReindexOptions struct {
	// Source is the shared data source to read. Empty means
	// compiler.DefaultDataSource.
	Source string

	// Target is the data source that receives the rows.
	Target string

	Interval interval.QueryTimeInterval

	// MaxSubTasks bounds parallelism. Zero leaves the engine default.
	MaxSubTasks int
}

// ReindexTask builds an index_parallel task that copies the rows of appIDs
// from the shared data source into a data source of their own, rolled up
// hourly into daily segments. The input filter is the same app scope the
// compiler applies to thisOrganization queries.
func ReindexTask(appIDs []uuid.UUID, opts ReindexOptions) (*IndexParallelTask, error) {
	if len(appIDs) == 0 {
		return nil, qerr.KeyMissing("appIDs", "reindexing needs at least one app")
	}
	if opts.Target == "" {
		return nil, qerr.KeyMissing("target", "reindexing needs a target data source")
	}
	source := opts.Source
	if source == "" {
		source = compiler.DefaultDataSource
	}

	tuning := &IndexParallelTuningConfig{
		PartitionsSpec:        &HashedPartitions{},
		ForceGuaranteedRollup: queryir.Ptr(false),
	}
	if opts.MaxSubTasks > 0 {
		tuning.MaxNumConcurrentSubTasks = queryir.Ptr(opts.MaxSubTasks)
	}

	return &IndexParallelTask{
		Spec: IndexParallelSpec{
			IOConfig: &IndexParallelIOConfig{
				InputFormat: &InputFormat{Type: "json"},
				InputSource: &DruidInputSource{
					DataSource: source,
					Interval:   opts.Interval,
					Filter:     compiler.AppIDFilter(appIDs...),
				},
				AppendToExisting: queryir.Ptr(false),
			},
			TuningConfig: tuning,
			DataSchema: DataSchema{
				DataSource:    opts.Target,
				TimestampSpec: &TimestampSpec{Column: "__time", Format: TimestampMillis},
				MetricsSpec:   []queryir.Aggregator{queryir.LongSum("count", "count")},
				GranularitySpec: &GranularitySpec{
					SegmentGranularity: interval.GranularityDay,
					QueryGranularity:   interval.GranularityHour,
					Rollup:             queryir.Ptr(true),
				},
				DimensionsSpec: &DimensionsSpec{DimensionExclusions: []string{"count"}},
			},
		},
	}, nil
}
