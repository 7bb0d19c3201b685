package query

import (
	"encoding/json"
	"fmt"

	"github.com/roach88/tdq/internal/queryir"
)

// QueryType selects the engine query, or one of the virtual types the
// compiler expands before the engine sees the document.
type QueryType string

const (
	QueryTypeTimeseries   QueryType = "timeseries"
	QueryTypeGroupBy      QueryType = "groupBy"
	QueryTypeTopN         QueryType = "topN"
	QueryTypeScan         QueryType = "scan"
	QueryTypeTimeBoundary QueryType = "timeBoundary"

	// Virtual types, replaced by a generator during precompile.
	QueryTypeFunnel     QueryType = "funnel"
	QueryTypeRetention  QueryType = "retention"
	QueryTypeExperiment QueryType = "experiment"
)

var queryTypes = map[QueryType]bool{
	QueryTypeTimeseries:   false,
	QueryTypeGroupBy:      false,
	QueryTypeTopN:         false,
	QueryTypeScan:         false,
	QueryTypeTimeBoundary: false,
	QueryTypeFunnel:       true,
	QueryTypeRetention:    true,
	QueryTypeExperiment:   true,
}

// Valid reports whether t is a known query type.
func (t QueryType) Valid() bool {
	_, ok := queryTypes[t]
	return ok
}

// IsVirtual reports whether t never reaches the engine.
func (t QueryType) IsVirtual() bool {
	return queryTypes[t]
}

// UnmarshalJSON rejects unknown query types.
func (t *QueryType) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("queryType: %w", err)
	}
	if !QueryType(s).Valid() {
		return fmt.Errorf("queryType: unknown value %q", s)
	}
	*t = QueryType(s)
	return nil
}

// BaseFilters is the tenant isolation policy of a query.
type BaseFilters string

const (
	// BaseFiltersThisOrganization restricts to the caller's apps. Default.
	BaseFiltersThisOrganization BaseFilters = "thisOrganization"

	// BaseFiltersThisApp restricts to the query's own appID.
	BaseFiltersThisApp BaseFilters = "thisApp"

	// BaseFiltersExampleData restricts to the public demo app.
	BaseFiltersExampleData BaseFilters = "exampleData"

	// BaseFiltersNoFilter adds no restriction. Super organizations only.
	BaseFiltersNoFilter BaseFilters = "noFilter"
)

// UnmarshalJSON rejects unknown policies.
func (b *BaseFilters) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("baseFilters: %w", err)
	}
	switch BaseFilters(s) {
	case BaseFiltersThisOrganization, BaseFiltersThisApp, BaseFiltersExampleData, BaseFiltersNoFilter:
		*b = BaseFilters(s)
		return nil
	default:
		return fmt.Errorf("baseFilters: unknown value %q", s)
	}
}

// NamedFilter is a filter with a display name, used for experiment cohorts.
type NamedFilter struct {
	Filter queryir.Filter `json:"filter,omitempty"`
	Name   string         `json:"name"`
}

func (n *NamedFilter) UnmarshalJSON(data []byte) error {
	var w struct {
		Filter json.RawMessage `json:"filter"`
		Name   string          `json:"name"`
	}
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	f, err := queryir.DecodeOptionalFilter(w.Filter)
	if err != nil {
		return err
	}
	*n = NamedFilter{Filter: f, Name: w.Name}
	return nil
}

// QueryContext carries engine execution settings.
type QueryContext struct {
	Timeout               *string `json:"timeout,omitempty"`
	Priority              *int    `json:"priority,omitempty"`
	Timestamp             *int64  `json:"timestamp,omitempty"`
	CacheValidityDuration *int64  `json:"cacheValidityDuration,omitempty"`
	SkipEmptyBuckets      *bool   `json:"skipEmptyBuckets,omitempty"`
	GrandTotal            *bool   `json:"grandTotal,omitempty"`
	UseCache              *bool   `json:"useCache,omitempty"`
	PopulateCache         *bool   `json:"populateCache,omitempty"`
}

// Merge returns a copy of c with every nil field taken from defaults.
func (c *QueryContext) Merge(defaults QueryContext) *QueryContext {
	out := defaults
	if c == nil {
		return &out
	}
	merged := *c
	if merged.Timeout == nil {
		merged.Timeout = out.Timeout
	}
	if merged.Priority == nil {
		merged.Priority = out.Priority
	}
	if merged.Timestamp == nil {
		merged.Timestamp = out.Timestamp
	}
	if merged.CacheValidityDuration == nil {
		merged.CacheValidityDuration = out.CacheValidityDuration
	}
	if merged.SkipEmptyBuckets == nil {
		merged.SkipEmptyBuckets = out.SkipEmptyBuckets
	}
	if merged.GrandTotal == nil {
		merged.GrandTotal = out.GrandTotal
	}
	if merged.UseCache == nil {
		merged.UseCache = out.UseCache
	}
	if merged.PopulateCache == nil {
		merged.PopulateCache = out.PopulateCache
	}
	return &merged
}
