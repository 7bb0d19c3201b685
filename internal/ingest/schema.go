package ingest

import (
	"encoding/json"
	"fmt"

	"github.com/roach88/tdq/internal/interval"
	"github.com/roach88/tdq/internal/queryir"
)

// DataSchema describes the rows an ingestion task writes.
type DataSchema struct {
	DataSource      string               `json:"dataSource"`
	TimestampSpec   *TimestampSpec       `json:"timestampSpec,omitempty"`
	MetricsSpec     []queryir.Aggregator `json:"metricsSpec,omitempty"`
	GranularitySpec *GranularitySpec     `json:"granularitySpec,omitempty"`
	TransformSpec   *TransformSpec       `json:"transformSpec,omitempty"`
	DimensionsSpec  *DimensionsSpec      `json:"dimensionsSpec,omitempty"`
}

// UnmarshalJSON decodes the metrics through the aggregator codec.
func (d *DataSchema) UnmarshalJSON(data []byte) error {
	type plain DataSchema
	var w struct {
		plain
		MetricsSpec []json.RawMessage `json:"metricsSpec"`
	}
	if err := json.Unmarshal(data, &w); err != nil {
		return fmt.Errorf("dataSchema: %w", err)
	}
	metrics, err := queryir.DecodeAggregators(w.MetricsSpec)
	if err != nil {
		return fmt.Errorf("dataSchema: metricsSpec: %w", err)
	}
	*d = DataSchema(w.plain)
	d.MetricsSpec = metrics
	return nil
}

// Timestamp formats.
const (
	TimestampISO    = "iso"
	TimestampMillis = "millis"
	TimestampPosix  = "posix"
	TimestampAuto   = "auto"
)

type TimestampSpec struct {
	Column string `json:"column,omitempty"`
	Format string `json:"format,omitempty"`
}

type GranularitySpec struct {
	SegmentGranularity interval.Granularity `json:"segmentGranularity,omitempty"`
	QueryGranularity   interval.Granularity `json:"queryGranularity,omitempty"`
	Rollup             *bool                `json:"rollup,omitempty"`
}

// TransformSpec filters rows during ingestion.
type TransformSpec struct {
	Filter queryir.Filter `json:"filter,omitempty"`
}

func (t *TransformSpec) UnmarshalJSON(data []byte) error {
	var w struct {
		Filter json.RawMessage `json:"filter"`
	}
	if err := json.Unmarshal(data, &w); err != nil {
		return fmt.Errorf("transformSpec: %w", err)
	}
	f, err := queryir.DecodeOptionalFilter(w.Filter)
	if err != nil {
		return fmt.Errorf("transformSpec: %w", err)
	}
	t.Filter = f
	return nil
}

// DimensionsSpec lists the columns stored as dimensions.
type DimensionsSpec struct {
	Dimensions             []Dimension `json:"dimensions,omitempty"`
	DimensionExclusions    []string    `json:"dimensionExclusions,omitempty"`
	SpatialDimensions      []string    `json:"spatialDimensions,omitempty"`
	IncludeAllDimensions   *bool       `json:"includeAllDimensions,omitempty"`
	UseSchemaDiscovery     *bool       `json:"useSchemaDiscovery,omitempty"`
	ForceSegmentSortByTime *bool       `json:"forceSegmentSortByTime,omitempty"`
}

// Dimension column types.
const (
	DimensionString = "string"
	DimensionLong   = "long"
	DimensionFloat  = "float"
	DimensionDouble = "double"
	DimensionJSON   = "json"
)

// Multi-value handling modes.
const (
	MultiValueSortedArray = "SORTED_ARRAY"
	MultiValueSortedSet   = "SORTED_SET"
	MultiValueArray       = "ARRAY"
)

type Dimension struct {
	Type               string  `json:"type"`
	Name               string  `json:"name"`
	CreateBitmapIndex  *bool   `json:"createBitmapIndex,omitempty"`
	MultiValueHandling *string `json:"multiValueHandling,omitempty"`
}

// InputFormat is how the input source's bytes are parsed.
type InputFormat struct {
	// Type is "json".
	Type            string `json:"type"`
	KeepNullColumns *bool  `json:"keepNullColumns,omitempty"`
}
