package queryir

import (
	"encoding/json"
	"fmt"
)

// Aggregator computes a value over the rows of each result bucket.
//
// This is a sealed interface - only types in this package implement it.
type Aggregator interface {
	Type() string

	// OutputName is the result column the aggregator writes.
	OutputName() string

	aggregatorNode()
}

// Aggregator wire discriminators.
const (
	AggregatorCount                  = "count"
	AggregatorLongSum                = "longSum"
	AggregatorDoubleSum              = "doubleSum"
	AggregatorFloatSum               = "floatSum"
	AggregatorLongMin                = "longMin"
	AggregatorLongMax                = "longMax"
	AggregatorDoubleMin              = "doubleMin"
	AggregatorDoubleMax              = "doubleMax"
	AggregatorFloatMin               = "floatMin"
	AggregatorFloatMax               = "floatMax"
	AggregatorLongFirst              = "longFirst"
	AggregatorLongLast               = "longLast"
	AggregatorDoubleFirst            = "doubleFirst"
	AggregatorDoubleLast             = "doubleLast"
	AggregatorStringFirst            = "stringFirst"
	AggregatorStringLast             = "stringLast"
	AggregatorThetaSketch            = "thetaSketch"
	AggregatorHyperUnique            = "hyperUnique"
	AggregatorCardinality            = "cardinality"
	AggregatorQuantilesDoublesSketch = "quantilesDoublesSketch"
	AggregatorFiltered               = "filtered"

	// Convenience aggregators, lowered before a query reaches the engine.
	AggregatorUserCount  = "userCount"
	AggregatorEventCount = "eventCount"
	AggregatorHistogram  = "histogram"
)

// fieldAggregatorKinds are the discriminators sharing the FieldAggregator
// shape.
var fieldAggregatorKinds = []string{
	AggregatorLongSum, AggregatorDoubleSum, AggregatorFloatSum,
	AggregatorLongMin, AggregatorLongMax,
	AggregatorDoubleMin, AggregatorDoubleMax,
	AggregatorFloatMin, AggregatorFloatMax,
	AggregatorLongFirst, AggregatorLongLast,
	AggregatorDoubleFirst, AggregatorDoubleLast,
	AggregatorStringFirst, AggregatorStringLast,
}

// Count counts rows.
type Count struct {
	Name string `json:"name"`
}

// FieldAggregator is a sum, min, max, first or last over one column. Kind
// holds the discriminator and must be one of the field aggregator kinds.
type FieldAggregator struct {
	Kind      string `json:"-"`
	Name      string `json:"name"`
	FieldName string `json:"fieldName"`
}

// NewFieldAggregator builds a field aggregator of the given kind.
func NewFieldAggregator(kind, name, fieldName string) *FieldAggregator {
	return &FieldAggregator{Kind: kind, Name: name, FieldName: fieldName}
}

// LongSum sums a long column.
func LongSum(name, fieldName string) *FieldAggregator {
	return NewFieldAggregator(AggregatorLongSum, name, fieldName)
}

// DoubleSum sums a double column.
func DoubleSum(name, fieldName string) *FieldAggregator {
	return NewFieldAggregator(AggregatorDoubleSum, name, fieldName)
}

// ThetaSketch builds an approximate distinct-count sketch over a column.
type ThetaSketch struct {
	Name               string `json:"name"`
	FieldName          string `json:"fieldName"`
	IsInputThetaSketch *bool  `json:"isInputThetaSketch,omitempty"`
	Size               *int   `json:"size,omitempty"`
	ShouldFinalize     *bool  `json:"shouldFinalize,omitempty"`
}

// HyperUnique aggregates a pre-built HyperLogLog column.
type HyperUnique struct {
	Name               string `json:"name"`
	FieldName          string `json:"fieldName"`
	IsInputHyperUnique *bool  `json:"isInputHyperUnique,omitempty"`
	Round              *bool  `json:"round,omitempty"`
}

// Cardinality estimates the distinct values across fields.
type Cardinality struct {
	Name   string   `json:"name"`
	Fields []string `json:"fields"`
	ByRow  *bool    `json:"byRow,omitempty"`
	Round  *bool    `json:"round,omitempty"`
}

// QuantilesDoublesSketch builds a quantiles sketch over a numeric column.
type QuantilesDoublesSketch struct {
	Name            string `json:"name"`
	FieldName       string `json:"fieldName"`
	K               *int   `json:"k,omitempty"`
	MaxStreamLength *int   `json:"maxStreamLength,omitempty"`
	ShouldFinalize  *bool  `json:"shouldFinalize,omitempty"`
}

// Filtered applies Aggregator only to rows matching Filter. Name, when
// set, overrides the wrapped aggregator's output name.
type Filtered struct {
	Filter     Filter     `json:"filter"`
	Aggregator Aggregator `json:"aggregator"`
	Name       *string    `json:"name,omitempty"`
}

// UserCount counts distinct users. Lowered to a theta sketch over the user
// field, named "Users" unless Name is set.
type UserCount struct {
	Name *string `json:"name,omitempty"`
}

// EventCount counts events. Lowered to a longSum over "count", named
// "Events" unless Name is set.
type EventCount struct {
	Name *string `json:"name,omitempty"`
}

// Histogram builds a histogram of floatValue. Lowered to a quantiles sketch
// plus a histogram post-aggregator named "Histogram" unless Name is set.
type Histogram struct {
	Name        *string   `json:"name,omitempty"`
	SplitPoints []float64 `json:"splitPoints,omitempty"`
	NumBins     *int      `json:"numBins,omitempty"`
}

// Default output names of the convenience aggregators.
const (
	DefaultUserCountName  = "Users"
	DefaultEventCountName = "Events"
	DefaultHistogramName  = "Histogram"
)

func (*Count) Type() string                  { return AggregatorCount }
func (a *FieldAggregator) Type() string      { return a.Kind }
func (*ThetaSketch) Type() string            { return AggregatorThetaSketch }
func (*HyperUnique) Type() string            { return AggregatorHyperUnique }
func (*Cardinality) Type() string            { return AggregatorCardinality }
func (*QuantilesDoublesSketch) Type() string { return AggregatorQuantilesDoublesSketch }
func (*Filtered) Type() string               { return AggregatorFiltered }
func (*UserCount) Type() string              { return AggregatorUserCount }
func (*EventCount) Type() string             { return AggregatorEventCount }
func (*Histogram) Type() string              { return AggregatorHistogram }

func (a *Count) OutputName() string                  { return a.Name }
func (a *FieldAggregator) OutputName() string        { return a.Name }
func (a *ThetaSketch) OutputName() string            { return a.Name }
func (a *HyperUnique) OutputName() string            { return a.Name }
func (a *Cardinality) OutputName() string            { return a.Name }
func (a *QuantilesDoublesSketch) OutputName() string { return a.Name }

func (a *Filtered) OutputName() string {
	if a.Name != nil {
		return *a.Name
	}
	if a.Aggregator == nil {
		return ""
	}
	return a.Aggregator.OutputName()
}

func (a *UserCount) OutputName() string  { return nameOr(a.Name, DefaultUserCountName) }
func (a *EventCount) OutputName() string { return nameOr(a.Name, DefaultEventCountName) }
func (a *Histogram) OutputName() string  { return nameOr(a.Name, DefaultHistogramName) }

func (*Count) aggregatorNode()                  {}
func (*FieldAggregator) aggregatorNode()        {}
func (*ThetaSketch) aggregatorNode()            {}
func (*HyperUnique) aggregatorNode()            {}
func (*Cardinality) aggregatorNode()            {}
func (*QuantilesDoublesSketch) aggregatorNode() {}
func (*Filtered) aggregatorNode()               {}
func (*UserCount) aggregatorNode()              {}
func (*EventCount) aggregatorNode()             {}
func (*Histogram) aggregatorNode()              {}

// IsConvenience reports whether a is a tenant-only aggregator that the
// engine does not understand.
func IsConvenience(a Aggregator) bool {
	switch a.(type) {
	case *UserCount, *EventCount, *Histogram:
		return true
	default:
		return false
	}
}

func nameOr(name *string, fallback string) string {
	if name != nil {
		return *name
	}
	return fallback
}

func (a *Count) MarshalJSON() ([]byte, error) {
	type plain Count
	return MarshalTagged(AggregatorCount, (*plain)(a))
}

func (a *FieldAggregator) MarshalJSON() ([]byte, error) {
	if !isFieldAggregatorKind(a.Kind) {
		return nil, fmt.Errorf("marshal aggregator: %q is not a field aggregator kind", a.Kind)
	}
	type plain FieldAggregator
	return MarshalTagged(a.Kind, (*plain)(a))
}

func (a *ThetaSketch) MarshalJSON() ([]byte, error) {
	type plain ThetaSketch
	return MarshalTagged(AggregatorThetaSketch, (*plain)(a))
}

func (a *HyperUnique) MarshalJSON() ([]byte, error) {
	type plain HyperUnique
	return MarshalTagged(AggregatorHyperUnique, (*plain)(a))
}

func (a *Cardinality) MarshalJSON() ([]byte, error) {
	type plain Cardinality
	return MarshalTagged(AggregatorCardinality, (*plain)(a))
}

func (a *QuantilesDoublesSketch) MarshalJSON() ([]byte, error) {
	type plain QuantilesDoublesSketch
	return MarshalTagged(AggregatorQuantilesDoublesSketch, (*plain)(a))
}

func (a *Filtered) MarshalJSON() ([]byte, error) {
	type plain Filtered
	return MarshalTagged(AggregatorFiltered, (*plain)(a))
}

func (a *UserCount) MarshalJSON() ([]byte, error) {
	type plain UserCount
	return MarshalTagged(AggregatorUserCount, (*plain)(a))
}

func (a *EventCount) MarshalJSON() ([]byte, error) {
	type plain EventCount
	return MarshalTagged(AggregatorEventCount, (*plain)(a))
}

func (a *Histogram) MarshalJSON() ([]byte, error) {
	type plain Histogram
	return MarshalTagged(AggregatorHistogram, (*plain)(a))
}

func (a *Filtered) UnmarshalJSON(data []byte) error {
	var w struct {
		Filter     json.RawMessage `json:"filter"`
		Aggregator json.RawMessage `json:"aggregator"`
		Name       *string         `json:"name"`
	}
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	filter, err := DecodeFilter(w.Filter)
	if err != nil {
		return err
	}
	inner, err := DecodeAggregator(w.Aggregator)
	if err != nil {
		return err
	}
	*a = Filtered{Filter: filter, Aggregator: inner, Name: w.Name}
	return nil
}

func isFieldAggregatorKind(kind string) bool {
	for _, k := range fieldAggregatorKinds {
		if k == kind {
			return true
		}
	}
	return false
}

var aggregatorCtors = func() map[string]func() Aggregator {
	m := map[string]func() Aggregator{
		AggregatorCount:                  func() Aggregator { return &Count{} },
		AggregatorThetaSketch:            func() Aggregator { return &ThetaSketch{} },
		AggregatorHyperUnique:            func() Aggregator { return &HyperUnique{} },
		AggregatorCardinality:            func() Aggregator { return &Cardinality{} },
		AggregatorQuantilesDoublesSketch: func() Aggregator { return &QuantilesDoublesSketch{} },
		AggregatorFiltered:               func() Aggregator { return &Filtered{} },
		AggregatorUserCount:              func() Aggregator { return &UserCount{} },
		AggregatorEventCount:             func() Aggregator { return &EventCount{} },
		AggregatorHistogram:              func() Aggregator { return &Histogram{} },
	}
	for _, kind := range fieldAggregatorKinds {
		m[kind] = func() Aggregator { return &FieldAggregator{Kind: kind} }
	}
	return m
}()

// DecodeAggregator decodes an aggregator node.
func DecodeAggregator(data []byte) (Aggregator, error) {
	return DecodeTagged("aggregator", data, aggregatorCtors)
}

// DecodeAggregators decodes a list of aggregator nodes.
func DecodeAggregators(raws []json.RawMessage) ([]Aggregator, error) {
	return decodeList(raws, DecodeAggregator)
}
