package result

import (
	"encoding/json"
	"fmt"
	"slices"
)

// AdaptableItem is one result object whose members are either dimension
// values (strings), metrics (numbers) or null.
//
// Members are classified in a fixed order: a JSON string is a dimension, a
// JSON number is a metric, anything else (null, bool, object, array) is
// recorded as a null value.
type AdaptableItem struct {
	Dimensions map[string]string
	Metrics    map[string]float64

	// NullValues lists the remaining keys, sorted.
	NullValues []string
}

// Kind is the classification of one item member.
type Kind int

const (
	KindNull Kind = iota
	KindDimension
	KindMetric
)

func (k Kind) String() string {
	switch k {
	case KindDimension:
		return "dimension"
	case KindMetric:
		return "metric"
	default:
		return "null"
	}
}

// Classify returns the kind of a raw member value together with its
// decoded string or number.
func Classify(raw json.RawMessage) (Kind, string, float64) {
	// A JSON null decodes into a nil pointer without error.
	var s *string
	if err := json.Unmarshal(raw, &s); err == nil && s != nil {
		return KindDimension, *s, 0
	}
	var f *float64
	if err := json.Unmarshal(raw, &f); err == nil && f != nil {
		return KindMetric, "", *f
	}
	return KindNull, "", 0
}

// UnmarshalJSON classifies every member of a JSON object.
func (a *AdaptableItem) UnmarshalJSON(data []byte) error {
	var members map[string]json.RawMessage
	if err := json.Unmarshal(data, &members); err != nil {
		return fmt.Errorf("result item: %w", err)
	}
	item := AdaptableItem{
		Dimensions: map[string]string{},
		Metrics:    map[string]float64{},
	}
	for key, raw := range members {
		switch kind, s, f := Classify(raw); kind {
		case KindDimension:
			item.Dimensions[key] = s
		case KindMetric:
			item.Metrics[key] = f
		default:
			item.NullValues = append(item.NullValues, key)
		}
	}
	slices.Sort(item.NullValues)
	*a = item
	return nil
}

// MarshalJSON writes the item back as a single flat object.
func (a AdaptableItem) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(a.Dimensions)+len(a.Metrics)+len(a.NullValues))
	for k, v := range a.Metrics {
		out[k] = v
	}
	for k, v := range a.Dimensions {
		out[k] = v
	}
	for _, k := range a.NullValues {
		out[k] = nil
	}
	return json.Marshal(out)
}

// Metric returns the metric named key.
func (a AdaptableItem) Metric(key string) (float64, bool) {
	v, ok := a.Metrics[key]
	return v, ok
}

// Dimension returns the dimension value named key.
func (a AdaptableItem) Dimension(key string) (string, bool) {
	v, ok := a.Dimensions[key]
	return v, ok
}
