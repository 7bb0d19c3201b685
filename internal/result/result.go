package result

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/roach88/tdq/internal/interval"
	"github.com/roach88/tdq/internal/qerr"
	"github.com/roach88/tdq/internal/query"
	"github.com/roach88/tdq/internal/queryir"
)

// Result type discriminators.
const (
	TypeTimeSeries   = "timeSeriesResult"
	TypeTopN         = "topNResult"
	TypeGroupBy      = "groupByResult"
	TypeScan         = "scanResult"
	TypeTimeBoundary = "timeBoundaryResult"
)

// QueryResult is the tagged result of one engine query.
type QueryResult interface {
	Type() string
	resultNode()
}

// TimeSeriesResult holds one row per granularity bucket.
type TimeSeriesResult struct {
	// Restrictions lists the intervals the result was limited to, if any.
	Restrictions []interval.QueryTimeInterval `json:"restrictions,omitempty"`
	Rows         []TimeSeriesRow              `json:"rows"`
}

// TimeSeriesRow maps aggregator names to values. A nil value is a null
// from the engine.
type TimeSeriesRow struct {
	Timestamp *time.Time          `json:"timestamp,omitempty"`
	Result    map[string]*float64 `json:"result"`
}

// Values returns the non-null values of r.
func (r TimeSeriesRow) Values() queryir.Row {
	row := make(queryir.Row, len(r.Result))
	for k, v := range r.Result {
		if v != nil {
			row[k] = *v
		}
	}
	return row
}

// TopNResult holds the ranked items of each bucket.
type TopNResult struct {
	Restrictions []interval.QueryTimeInterval `json:"restrictions,omitempty"`
	Rows         []TopNRow                    `json:"rows"`
}

type TopNRow struct {
	Timestamp time.Time       `json:"timestamp"`
	Result    []AdaptableItem `json:"result"`
}

// GroupByResult holds one row per group and bucket.
type GroupByResult struct {
	Restrictions []interval.QueryTimeInterval `json:"restrictions,omitempty"`
	Rows         []GroupByRow                 `json:"rows"`
}

type GroupByRow struct {
	Version   string        `json:"version"`
	Timestamp time.Time     `json:"timestamp"`
	Event     AdaptableItem `json:"event"`
}

// ScanResult holds raw rows, batched by segment.
type ScanResult struct {
	Restrictions []interval.QueryTimeInterval `json:"restrictions,omitempty"`
	Rows         []ScanRow                    `json:"rows"`
}

type ScanRow struct {
	SegmentID    *string         `json:"segmentId,omitempty"`
	Columns      []string        `json:"columns"`
	Events       []AdaptableItem `json:"events"`
	RowSignature []RowSignature  `json:"rowSignature,omitempty"`
}

// RowSignature describes one scan column.
type RowSignature struct {
	Name string  `json:"name"`
	Type *string `json:"type,omitempty"`
}

// TimeBoundaryResult holds the earliest and latest timestamps of a data
// source.
type TimeBoundaryResult struct {
	Restrictions []interval.QueryTimeInterval `json:"restrictions,omitempty"`
	Rows         []TimeBoundaryRow            `json:"rows"`
}

type TimeBoundaryRow struct {
	Timestamp time.Time            `json:"timestamp"`
	Result    map[string]time.Time `json:"result"`
}

func (*TimeSeriesResult) Type() string   { return TypeTimeSeries }
func (*TopNResult) Type() string         { return TypeTopN }
func (*GroupByResult) Type() string      { return TypeGroupBy }
func (*ScanResult) Type() string         { return TypeScan }
func (*TimeBoundaryResult) Type() string { return TypeTimeBoundary }

func (*TimeSeriesResult) resultNode()   {}
func (*TopNResult) resultNode()         {}
func (*GroupByResult) resultNode()      {}
func (*ScanResult) resultNode()         {}
func (*TimeBoundaryResult) resultNode() {}

func (r *TimeSeriesResult) MarshalJSON() ([]byte, error) {
	type plain TimeSeriesResult
	return queryir.MarshalTagged(TypeTimeSeries, (*plain)(r))
}

func (r *TopNResult) MarshalJSON() ([]byte, error) {
	type plain TopNResult
	return queryir.MarshalTagged(TypeTopN, (*plain)(r))
}

func (r *GroupByResult) MarshalJSON() ([]byte, error) {
	type plain GroupByResult
	return queryir.MarshalTagged(TypeGroupBy, (*plain)(r))
}

func (r *ScanResult) MarshalJSON() ([]byte, error) {
	type plain ScanResult
	return queryir.MarshalTagged(TypeScan, (*plain)(r))
}

func (r *TimeBoundaryResult) MarshalJSON() ([]byte, error) {
	type plain TimeBoundaryResult
	return queryir.MarshalTagged(TypeTimeBoundary, (*plain)(r))
}

var resultCtors = map[string]func() QueryResult{
	TypeTimeSeries:   func() QueryResult { return &TimeSeriesResult{} },
	TypeTopN:         func() QueryResult { return &TopNResult{} },
	TypeGroupBy:      func() QueryResult { return &GroupByResult{} },
	TypeScan:         func() QueryResult { return &ScanResult{} },
	TypeTimeBoundary: func() QueryResult { return &TimeBoundaryResult{} },
}

// Decode decodes a tagged query result.
func Decode(data []byte) (QueryResult, error) {
	return queryir.DecodeTagged("queryResult", data, resultCtors)
}

// ParseTimeseriesResponse parses the engine's reply to a timeseries query.
func ParseTimeseriesResponse(data []byte) (*TimeSeriesResult, error) {
	var rows []TimeSeriesRow
	if err := json.Unmarshal(data, &rows); err != nil {
		return nil, fmt.Errorf("parse timeseries response: %w", err)
	}
	return &TimeSeriesResult{Rows: nonNil(rows)}, nil
}

// ParseTopNResponse parses the engine's reply to a topN query.
func ParseTopNResponse(data []byte) (*TopNResult, error) {
	var rows []TopNRow
	if err := json.Unmarshal(data, &rows); err != nil {
		return nil, fmt.Errorf("parse topN response: %w", err)
	}
	return &TopNResult{Rows: nonNil(rows)}, nil
}

// ParseGroupByResponse parses the engine's reply to a groupBy query.
func ParseGroupByResponse(data []byte) (*GroupByResult, error) {
	var rows []GroupByRow
	if err := json.Unmarshal(data, &rows); err != nil {
		return nil, fmt.Errorf("parse groupBy response: %w", err)
	}
	return &GroupByResult{Rows: nonNil(rows)}, nil
}

// ParseScanResponse parses the engine's reply to a scan query.
func ParseScanResponse(data []byte) (*ScanResult, error) {
	var rows []ScanRow
	if err := json.Unmarshal(data, &rows); err != nil {
		return nil, fmt.Errorf("parse scan response: %w", err)
	}
	return &ScanResult{Rows: nonNil(rows)}, nil
}

// ParseTimeBoundaryResponse parses the engine's reply to a timeBoundary
// query.
func ParseTimeBoundaryResponse(data []byte) (*TimeBoundaryResult, error) {
	var rows []TimeBoundaryRow
	if err := json.Unmarshal(data, &rows); err != nil {
		return nil, fmt.Errorf("parse timeBoundary response: %w", err)
	}
	return &TimeBoundaryResult{Rows: nonNil(rows)}, nil
}

// ParseResponse parses an engine reply for a runnable query of type qt.
// Virtual query types never reach the engine; their expansion is a groupBy.
func ParseResponse(qt query.QueryType, data []byte) (QueryResult, error) {
	switch qt {
	case query.QueryTypeTimeseries:
		return wrap[*TimeSeriesResult](ParseTimeseriesResponse(data))
	case query.QueryTypeTopN:
		return wrap[*TopNResult](ParseTopNResponse(data))
	case query.QueryTypeGroupBy, query.QueryTypeFunnel, query.QueryTypeRetention, query.QueryTypeExperiment:
		return wrap[*GroupByResult](ParseGroupByResponse(data))
	case query.QueryTypeScan:
		return wrap[*ScanResult](ParseScanResponse(data))
	case query.QueryTypeTimeBoundary:
		return wrap[*TimeBoundaryResult](ParseTimeBoundaryResponse(data))
	default:
		return nil, qerr.NotImplemented("no result parser for queryType %q", qt)
	}
}

// wrap keeps a failed parse from returning a typed nil QueryResult.
func wrap[T QueryResult](r T, err error) (QueryResult, error) {
	if err != nil {
		return nil, err
	}
	return r, nil
}

func nonNil[T any](rows []T) []T {
	if rows == nil {
		return []T{}
	}
	return rows
}
