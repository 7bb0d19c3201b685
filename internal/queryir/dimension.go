package queryir

import (
	"bytes"
	"encoding/json"
)

// DimensionSpec selects a dimension for groupBy and topN queries.
//
// This is a sealed interface - only types in this package implement it.
type DimensionSpec interface {
	Type() string
	dimensionSpecNode()
}

// TopNMetricSpec orders topN results.
//
// This is a sealed interface - only types in this package implement it.
type TopNMetricSpec interface {
	Type() string
	topNMetricNode()
}

// Dimension spec and topN metric spec wire discriminators.
const (
	DimensionDefault    = "default"
	DimensionExtraction = "extraction"

	MetricNumeric   = "numeric"
	MetricDimension = "dimension"
	MetricInverted  = "inverted"
)

// DefaultDimension returns a dimension as is under OutputName.
type DefaultDimension struct {
	Dimension  string `json:"dimension"`
	OutputName string `json:"outputName"`

	// OutputType is "STRING", "LONG", "FLOAT" or "DOUBLE".
	OutputType *string `json:"outputType,omitempty"`
}

// ExtractionDimension transforms a dimension through ExtractionFn.
type ExtractionDimension struct {
	Dimension    string             `json:"dimension"`
	OutputName   string             `json:"outputName"`
	OutputType   *string            `json:"outputType,omitempty"`
	ExtractionFn ExtractionFunction `json:"extractionFn"`
}

// NumericMetric orders by a metric, descending.
type NumericMetric struct {
	Metric string `json:"metric"`
}

// DimensionMetric orders by the dimension value.
type DimensionMetric struct {
	Ordering     *string `json:"ordering,omitempty"`
	PreviousStop *string `json:"previousStop,omitempty"`
}

// InvertedMetric reverses the order of Metric.
type InvertedMetric struct {
	Metric TopNMetricSpec `json:"metric"`
}

func (*DefaultDimension) Type() string    { return DimensionDefault }
func (*ExtractionDimension) Type() string { return DimensionExtraction }
func (*NumericMetric) Type() string       { return MetricNumeric }
func (*DimensionMetric) Type() string     { return MetricDimension }
func (*InvertedMetric) Type() string      { return MetricInverted }

func (*DefaultDimension) dimensionSpecNode()    {}
func (*ExtractionDimension) dimensionSpecNode() {}
func (*NumericMetric) topNMetricNode()          {}
func (*DimensionMetric) topNMetricNode()        {}
func (*InvertedMetric) topNMetricNode()         {}

func (d *DefaultDimension) MarshalJSON() ([]byte, error) {
	type plain DefaultDimension
	return MarshalTagged(DimensionDefault, (*plain)(d))
}

func (d *ExtractionDimension) MarshalJSON() ([]byte, error) {
	type plain ExtractionDimension
	return MarshalTagged(DimensionExtraction, (*plain)(d))
}

func (d *ExtractionDimension) UnmarshalJSON(data []byte) error {
	var w struct {
		Dimension    string          `json:"dimension"`
		OutputName   string          `json:"outputName"`
		OutputType   *string         `json:"outputType"`
		ExtractionFn json.RawMessage `json:"extractionFn"`
	}
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	fn, err := DecodeExtractionFunction(w.ExtractionFn)
	if err != nil {
		return err
	}
	*d = ExtractionDimension{
		Dimension:    w.Dimension,
		OutputName:   w.OutputName,
		OutputType:   w.OutputType,
		ExtractionFn: fn,
	}
	return nil
}

func (m *NumericMetric) MarshalJSON() ([]byte, error) {
	type plain NumericMetric
	return MarshalTagged(MetricNumeric, (*plain)(m))
}

func (m *DimensionMetric) MarshalJSON() ([]byte, error) {
	type plain DimensionMetric
	return MarshalTagged(MetricDimension, (*plain)(m))
}

func (m *InvertedMetric) MarshalJSON() ([]byte, error) {
	type plain InvertedMetric
	return MarshalTagged(MetricInverted, (*plain)(m))
}

func (m *InvertedMetric) UnmarshalJSON(data []byte) error {
	var w struct {
		Metric json.RawMessage `json:"metric"`
	}
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	inner, err := DecodeTopNMetricSpec(w.Metric)
	if err != nil {
		return err
	}
	m.Metric = inner
	return nil
}

var dimensionCtors = map[string]func() DimensionSpec{
	DimensionDefault:    func() DimensionSpec { return &DefaultDimension{} },
	DimensionExtraction: func() DimensionSpec { return &ExtractionDimension{} },
}

var topNMetricCtors = map[string]func() TopNMetricSpec{
	MetricNumeric:   func() TopNMetricSpec { return &NumericMetric{} },
	MetricDimension: func() TopNMetricSpec { return &DimensionMetric{} },
	MetricInverted:  func() TopNMetricSpec { return &InvertedMetric{} },
}

// DecodeDimensionSpec decodes a dimension spec node. A bare JSON string is
// shorthand for a default spec whose output name is the dimension.
func DecodeDimensionSpec(data []byte) (DimensionSpec, error) {
	if name, ok := bareString(data); ok {
		return &DefaultDimension{Dimension: name, OutputName: name}, nil
	}
	return DecodeTagged("dimension", data, dimensionCtors)
}

// DecodeDimensionSpecs decodes a list of dimension spec nodes.
func DecodeDimensionSpecs(raws []json.RawMessage) ([]DimensionSpec, error) {
	return decodeList(raws, DecodeDimensionSpec)
}

// DecodeTopNMetricSpec decodes a topN metric spec node. A bare JSON string
// is shorthand for a numeric spec.
func DecodeTopNMetricSpec(data []byte) (TopNMetricSpec, error) {
	if metric, ok := bareString(data); ok {
		return &NumericMetric{Metric: metric}, nil
	}
	return DecodeTagged("metric", data, topNMetricCtors)
}

func bareString(data []byte) (string, bool) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || trimmed[0] != '"' {
		return "", false
	}
	var s string
	if err := json.Unmarshal(trimmed, &s); err != nil {
		return "", false
	}
	return s, true
}
