package queryir

import (
	"encoding/json"

	"github.com/roach88/tdq/internal/interval"
)

// Filter restricts the rows an engine query considers.
//
// This is a sealed interface - only types in this package implement it.
//
// Filter types:
//   - Selector, ColumnComparison, Regex, Search, In, Like, Bound, Interval
//   - And, Or, Not (recursive)
//   - True, False (neutral elements)
type Filter interface {
	// Type returns the wire discriminator.
	Type() string

	filterNode() // Marker method - seals interface to this package
}

// Filter wire discriminators.
const (
	FilterSelector         = "selector"
	FilterColumnComparison = "columnComparison"
	FilterRegex            = "regex"
	FilterSearch           = "search"
	FilterIn               = "in"
	FilterLike             = "like"
	FilterBound            = "bound"
	FilterInterval         = "interval"
	FilterAnd              = "and"
	FilterOr               = "or"
	FilterNot              = "not"
	FilterTrue             = "true"
	FilterFalse            = "false"
)

// Selector matches rows whose dimension equals value.
type Selector struct {
	Dimension string `json:"dimension"`
	Value     string `json:"value"`
}

// ColumnComparison matches rows whose dimensions all hold the same value.
type ColumnComparison struct {
	Dimensions []string `json:"dimensions"`
}

// Regex matches dimension values against a Java regular expression.
type Regex struct {
	Dimension string `json:"dimension"`
	Pattern   string `json:"pattern"`
}

// SearchQuery is the match specification of a Search filter.
type SearchQuery struct {
	// Type is "contains", "insensitive_contains" or "fragment".
	Type          string `json:"type"`
	Value         string `json:"value"`
	CaseSensitive *bool  `json:"caseSensitive,omitempty"`
}

// Search matches on partial string values.
type Search struct {
	Dimension string      `json:"dimension"`
	Query     SearchQuery `json:"query"`
}

// In matches rows whose dimension is one of values.
type In struct {
	Dimension string   `json:"dimension"`
	Values    []string `json:"values"`
}

// Like matches with SQL LIKE wildcards.
type Like struct {
	Dimension string  `json:"dimension"`
	Pattern   string  `json:"pattern"`
	Escape    *string `json:"escape,omitempty"`
}

// Bound matches a range of dimension values.
type Bound struct {
	Dimension   string  `json:"dimension"`
	Lower       *string `json:"lower,omitempty"`
	Upper       *string `json:"upper,omitempty"`
	LowerStrict *bool   `json:"lowerStrict,omitempty"`
	UpperStrict *bool   `json:"upperStrict,omitempty"`

	// Ordering is "lexicographic", "alphanumeric", "numeric", "strlen" or
	// "version".
	Ordering *string `json:"ordering,omitempty"`
}

// Interval matches time-like dimensions (usually "__time") falling into
// any of the intervals.
type Interval struct {
	Dimension string                       `json:"dimension"`
	Intervals []interval.QueryTimeInterval `json:"intervals"`
}

// And matches rows matched by every field.
type And struct {
	Fields []Filter `json:"fields"`
}

// Or matches rows matched by at least one field.
type Or struct {
	Fields []Filter `json:"fields"`
}

// Not inverts its field.
type Not struct {
	Field Filter `json:"field"`
}

// True matches every row.
type True struct{}

// False matches no row.
type False struct{}

func (*Selector) Type() string         { return FilterSelector }
func (*ColumnComparison) Type() string { return FilterColumnComparison }
func (*Regex) Type() string            { return FilterRegex }
func (*Search) Type() string           { return FilterSearch }
func (*In) Type() string               { return FilterIn }
func (*Like) Type() string             { return FilterLike }
func (*Bound) Type() string            { return FilterBound }
func (*Interval) Type() string         { return FilterInterval }
func (*And) Type() string              { return FilterAnd }
func (*Or) Type() string               { return FilterOr }
func (*Not) Type() string              { return FilterNot }
func (*True) Type() string             { return FilterTrue }
func (*False) Type() string            { return FilterFalse }

func (*Selector) filterNode()         {}
func (*ColumnComparison) filterNode() {}
func (*Regex) filterNode()            {}
func (*Search) filterNode()           {}
func (*In) filterNode()               {}
func (*Like) filterNode()             {}
func (*Bound) filterNode()            {}
func (*Interval) filterNode()         {}
func (*And) filterNode()              {}
func (*Or) filterNode()               {}
func (*Not) filterNode()              {}
func (*True) filterNode()             {}
func (*False) filterNode()            {}

func (f *Selector) MarshalJSON() ([]byte, error) {
	type plain Selector
	return MarshalTagged(FilterSelector, (*plain)(f))
}

func (f *ColumnComparison) MarshalJSON() ([]byte, error) {
	type plain ColumnComparison
	return MarshalTagged(FilterColumnComparison, (*plain)(f))
}

func (f *Regex) MarshalJSON() ([]byte, error) {
	type plain Regex
	return MarshalTagged(FilterRegex, (*plain)(f))
}

func (f *Search) MarshalJSON() ([]byte, error) {
	type plain Search
	return MarshalTagged(FilterSearch, (*plain)(f))
}

func (f *In) MarshalJSON() ([]byte, error) {
	type plain In
	return MarshalTagged(FilterIn, (*plain)(f))
}

func (f *Like) MarshalJSON() ([]byte, error) {
	type plain Like
	return MarshalTagged(FilterLike, (*plain)(f))
}

func (f *Bound) MarshalJSON() ([]byte, error) {
	type plain Bound
	return MarshalTagged(FilterBound, (*plain)(f))
}

func (f *Interval) MarshalJSON() ([]byte, error) {
	type plain Interval
	return MarshalTagged(FilterInterval, (*plain)(f))
}

func (f *And) MarshalJSON() ([]byte, error) {
	type plain And
	return MarshalTagged(FilterAnd, (*plain)(f))
}

func (f *Or) MarshalJSON() ([]byte, error) {
	type plain Or
	return MarshalTagged(FilterOr, (*plain)(f))
}

func (f *Not) MarshalJSON() ([]byte, error) {
	type plain Not
	return MarshalTagged(FilterNot, (*plain)(f))
}

func (f *True) MarshalJSON() ([]byte, error) {
	return MarshalTagged(FilterTrue, struct{}{})
}

func (f *False) MarshalJSON() ([]byte, error) {
	return MarshalTagged(FilterFalse, struct{}{})
}

func (f *And) UnmarshalJSON(data []byte) error {
	var w struct {
		Fields []json.RawMessage `json:"fields"`
	}
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	fields, err := decodeList(w.Fields, DecodeFilter)
	if err != nil {
		return err
	}
	f.Fields = fields
	return nil
}

func (f *Or) UnmarshalJSON(data []byte) error {
	var w struct {
		Fields []json.RawMessage `json:"fields"`
	}
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	fields, err := decodeList(w.Fields, DecodeFilter)
	if err != nil {
		return err
	}
	f.Fields = fields
	return nil
}

func (f *Not) UnmarshalJSON(data []byte) error {
	var w struct {
		Field json.RawMessage `json:"field"`
	}
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	field, err := DecodeFilter(w.Field)
	if err != nil {
		return err
	}
	f.Field = field
	return nil
}

var filterCtors = map[string]func() Filter{
	FilterSelector:         func() Filter { return &Selector{} },
	FilterColumnComparison: func() Filter { return &ColumnComparison{} },
	FilterRegex:            func() Filter { return &Regex{} },
	FilterSearch:           func() Filter { return &Search{} },
	FilterIn:               func() Filter { return &In{} },
	FilterLike:             func() Filter { return &Like{} },
	FilterBound:            func() Filter { return &Bound{} },
	FilterInterval:         func() Filter { return &Interval{} },
	FilterAnd:              func() Filter { return &And{} },
	FilterOr:               func() Filter { return &Or{} },
	FilterNot:              func() Filter { return &Not{} },
	FilterTrue:             func() Filter { return &True{} },
	FilterFalse:            func() Filter { return &False{} },
}

// DecodeFilter decodes a filter node, dispatching on its "type" member.
func DecodeFilter(data []byte) (Filter, error) {
	return DecodeTagged("filter", data, filterCtors)
}

// DecodeOptionalFilter is DecodeFilter that maps an absent or null member
// to a nil Filter.
func DecodeOptionalFilter(raw json.RawMessage) (Filter, error) {
	if isNull(raw) {
		return nil, nil
	}
	return DecodeFilter(raw)
}

// DecodeFilters decodes a list of filter nodes.
func DecodeFilters(raws []json.RawMessage) ([]Filter, error) {
	return decodeList(raws, DecodeFilter)
}
