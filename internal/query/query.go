package query

import (
	"encoding/json"
	"errors"
	"fmt"
	"slices"

	"github.com/google/uuid"

	"github.com/roach88/tdq/internal/interval"
	"github.com/roach88/tdq/internal/ir"
	"github.com/roach88/tdq/internal/queryir"
)

// CustomQuery is the tenant-facing query document.
//
// The engine fields map one to one onto the engine's native query. The
// extension fields (AppID, TestMode, BaseFilters, Steps, StepNames, Sample1,
// Sample2, SuccessCriterion) only exist in the tenant language and are nil
// once a document has been precompiled. RelativeIntervals survives
// precompile and is resolved into Intervals as the last step.
type CustomQuery struct {
	QueryType  QueryType `json:"queryType"`
	DataSource string    `json:"dataSource,omitempty"`
	Descending *bool     `json:"descending,omitempty"`

	BaseFilters *BaseFilters `json:"baseFilters,omitempty"`
	TestMode    *bool        `json:"testMode,omitempty"`
	AppID       *uuid.UUID   `json:"appID,omitempty"`

	Filter            queryir.Filter                  `json:"filter,omitempty"`
	Intervals         []interval.QueryTimeInterval    `json:"intervals,omitempty"`
	RelativeIntervals []interval.RelativeTimeInterval `json:"relativeIntervals,omitempty"`
	Granularity       interval.Granularity            `json:"granularity"`

	Aggregations     []queryir.Aggregator     `json:"aggregations,omitempty"`
	PostAggregations []queryir.PostAggregator `json:"postAggregations,omitempty"`
	Limit            *int                     `json:"limit,omitempty"`
	Context          *QueryContext            `json:"context,omitempty"`

	// topN
	Threshold *int                   `json:"threshold,omitempty"`
	Metric    queryir.TopNMetricSpec `json:"metric,omitempty"`
	Dimension queryir.DimensionSpec  `json:"dimension,omitempty"`

	// groupBy
	Dimensions []queryir.DimensionSpec `json:"dimensions,omitempty"`

	// funnel
	Steps     []queryir.Filter `json:"steps,omitempty"`
	StepNames []string         `json:"stepNames,omitempty"`

	// experiment
	Sample1          *NamedFilter `json:"sample1,omitempty"`
	Sample2          *NamedFilter `json:"sample2,omitempty"`
	SuccessCriterion *NamedFilter `json:"successCriterion,omitempty"`
}

// wireQuery mirrors CustomQuery with the algebra fields left raw so they can
// be decoded through the tagged-union decoders.
type wireQuery struct {
	QueryType  QueryType `json:"queryType"`
	DataSource string    `json:"dataSource"`
	Descending *bool     `json:"descending"`

	BaseFilters *BaseFilters `json:"baseFilters"`
	TestMode    *bool        `json:"testMode"`
	AppID       *uuid.UUID   `json:"appID"`

	Filter            json.RawMessage                 `json:"filter"`
	Intervals         []interval.QueryTimeInterval    `json:"intervals"`
	RelativeIntervals []interval.RelativeTimeInterval `json:"relativeIntervals"`
	Granularity       *interval.Granularity           `json:"granularity"`

	Aggregations     []json.RawMessage `json:"aggregations"`
	PostAggregations []json.RawMessage `json:"postAggregations"`
	Limit            *int              `json:"limit"`
	Context          *QueryContext     `json:"context"`

	Threshold  *int              `json:"threshold"`
	Metric     json.RawMessage   `json:"metric"`
	Dimension  json.RawMessage   `json:"dimension"`
	Dimensions []json.RawMessage `json:"dimensions"`

	Steps     []json.RawMessage `json:"steps"`
	StepNames []string          `json:"stepNames"`

	Sample1          *NamedFilter `json:"sample1"`
	Sample2          *NamedFilter `json:"sample2"`
	SuccessCriterion *NamedFilter `json:"successCriterion"`
}

// ErrMissingQueryType is returned when a document has no queryType.
var ErrMissingQueryType = errors.New("query: missing queryType")

// ErrMissingGranularity is returned when a document has no granularity.
var ErrMissingGranularity = errors.New("query: missing granularity")

// Decode parses a query document.
func Decode(data []byte) (*CustomQuery, error) {
	var q CustomQuery
	if err := json.Unmarshal(data, &q); err != nil {
		return nil, err
	}
	return &q, nil
}

func (q *CustomQuery) UnmarshalJSON(data []byte) error {
	var w wireQuery
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	if w.QueryType == "" {
		return ErrMissingQueryType
	}
	if w.Granularity == nil {
		return ErrMissingGranularity
	}

	out := CustomQuery{
		QueryType:         w.QueryType,
		DataSource:        w.DataSource,
		Descending:        w.Descending,
		BaseFilters:       w.BaseFilters,
		TestMode:          w.TestMode,
		AppID:             w.AppID,
		Intervals:         w.Intervals,
		RelativeIntervals: w.RelativeIntervals,
		Granularity:       *w.Granularity,
		Limit:             w.Limit,
		Context:           w.Context,
		Threshold:         w.Threshold,
		StepNames:         w.StepNames,
		Sample1:           w.Sample1,
		Sample2:           w.Sample2,
		SuccessCriterion:  w.SuccessCriterion,
	}

	var err error
	if out.Filter, err = queryir.DecodeOptionalFilter(w.Filter); err != nil {
		return fmt.Errorf("filter: %w", err)
	}
	if out.Aggregations, err = queryir.DecodeAggregators(w.Aggregations); err != nil {
		return fmt.Errorf("aggregations: %w", err)
	}
	if out.PostAggregations, err = queryir.DecodePostAggregators(w.PostAggregations); err != nil {
		return fmt.Errorf("postAggregations: %w", err)
	}
	if out.Steps, err = queryir.DecodeFilters(w.Steps); err != nil {
		return fmt.Errorf("steps: %w", err)
	}
	if out.Dimensions, err = queryir.DecodeDimensionSpecs(w.Dimensions); err != nil {
		return fmt.Errorf("dimensions: %w", err)
	}
	if len(w.Metric) > 0 && string(w.Metric) != "null" {
		if out.Metric, err = queryir.DecodeTopNMetricSpec(w.Metric); err != nil {
			return fmt.Errorf("metric: %w", err)
		}
	}
	if len(w.Dimension) > 0 && string(w.Dimension) != "null" {
		if out.Dimension, err = queryir.DecodeDimensionSpec(w.Dimension); err != nil {
			return fmt.Errorf("dimension: %w", err)
		}
	}

	*q = out
	return nil
}

// Canonical returns the canonical JSON encoding of q.
func (q *CustomQuery) Canonical() ([]byte, error) {
	return ir.MarshalCanonical(q)
}

// Hash returns the content hash of q. Documents differing only in key order
// or in omitted versus null optionals hash the same.
func (q *CustomQuery) Hash() (string, error) {
	return ir.Hash(ir.DomainQuery, q)
}

// Equal reports whether q and other have the same canonical encoding.
// Documents that cannot be encoded are never equal.
func (q *CustomQuery) Equal(other *CustomQuery) bool {
	eq, err := ir.Equal(q, other)
	return err == nil && eq
}

// Clone returns a copy of q that can be modified without affecting q.
//
// Slices are copied; algebra nodes are shared since they are never mutated
// in place.
func (q *CustomQuery) Clone() *CustomQuery {
	c := *q
	c.Intervals = slices.Clone(q.Intervals)
	c.RelativeIntervals = slices.Clone(q.RelativeIntervals)
	c.Aggregations = slices.Clone(q.Aggregations)
	c.PostAggregations = slices.Clone(q.PostAggregations)
	c.Dimensions = slices.Clone(q.Dimensions)
	c.Steps = slices.Clone(q.Steps)
	c.StepNames = slices.Clone(q.StepNames)
	if q.Context != nil {
		ctx := *q.Context
		c.Context = &ctx
	}
	return &c
}

// ExtensionFieldsSet lists the tenant-only fields of q that are still set,
// in document order. A precompiled query has none.
func (q *CustomQuery) ExtensionFieldsSet() []string {
	var set []string
	if q.BaseFilters != nil {
		set = append(set, "baseFilters")
	}
	if q.TestMode != nil {
		set = append(set, "testMode")
	}
	if q.AppID != nil {
		set = append(set, "appID")
	}
	if q.Steps != nil {
		set = append(set, "steps")
	}
	if q.StepNames != nil {
		set = append(set, "stepNames")
	}
	if q.Sample1 != nil {
		set = append(set, "sample1")
	}
	if q.Sample2 != nil {
		set = append(set, "sample2")
	}
	if q.SuccessCriterion != nil {
		set = append(set, "successCriterion")
	}
	return set
}

// ClearExtensionFields nils every tenant-only field except
// RelativeIntervals.
func (q *CustomQuery) ClearExtensionFields() {
	q.BaseFilters = nil
	q.TestMode = nil
	q.AppID = nil
	q.Steps = nil
	q.StepNames = nil
	q.Sample1 = nil
	q.Sample2 = nil
	q.SuccessCriterion = nil
}
