package queryir

import "encoding/json"

// ExtractionFunction transforms each dimension value before it is grouped
// or filtered.
//
// This is a sealed interface - only types in this package implement it.
type ExtractionFunction interface {
	Type() string
	extractionNode()
}

// Lookup is the key/value source of a LookupExtraction.
//
// This is a sealed interface - only types in this package implement it.
type Lookup interface {
	Type() string
	lookupNode()
}

// Extraction function and lookup wire discriminators.
const (
	ExtractionRegex  = "regex"
	ExtractionLookup = "lookup"

	LookupRegistered = "registeredLookup"
	LookupMap        = "map"
)

// RegexExtraction returns the capture group Index of Expr. When there is no
// match the value passes through unchanged, unless ReplaceMissingValue is
// set, in which case it becomes ReplaceMissingValueWith (or null).
type RegexExtraction struct {
	Expr                    string  `json:"expr"`
	Index                   int     `json:"index"`
	ReplaceMissingValue     bool    `json:"replaceMissingValue"`
	ReplaceMissingValueWith *string `json:"replaceMissingValueWith,omitempty"`
}

// NewRegexExtraction returns a regex extraction of the first capture group.
func NewRegexExtraction(expr string) *RegexExtraction {
	return &RegexExtraction{Expr: expr, Index: 1}
}

// LookupExtraction replaces dimension values through Lookup.
//
// RetainMissingValue and ReplaceMissingValueWith are mutually exclusive on
// the engine side.
type LookupExtraction struct {
	Lookup                  Lookup  `json:"lookup"`
	RetainMissingValue      bool    `json:"retainMissingValue"`
	Injective               bool    `json:"injective"`
	ReplaceMissingValueWith *string `json:"replaceMissingValueWith,omitempty"`
}

// RegisteredLookup references a lookup registered with the engine by name.
type RegisteredLookup struct {
	Lookup string `json:"lookup"`
}

// MapLookup is an inline key/value map.
type MapLookup struct {
	Map map[string]string `json:"map"`
}

func (*RegexExtraction) Type() string  { return ExtractionRegex }
func (*LookupExtraction) Type() string { return ExtractionLookup }
func (*RegisteredLookup) Type() string { return LookupRegistered }
func (*MapLookup) Type() string        { return LookupMap }

func (*RegexExtraction) extractionNode()  {}
func (*LookupExtraction) extractionNode() {}
func (*RegisteredLookup) lookupNode()     {}
func (*MapLookup) lookupNode()            {}

func (e *RegexExtraction) MarshalJSON() ([]byte, error) {
	type plain RegexExtraction
	return MarshalTagged(ExtractionRegex, (*plain)(e))
}

// UnmarshalJSON defaults a missing index to the first capture group.
func (e *RegexExtraction) UnmarshalJSON(data []byte) error {
	type plain RegexExtraction
	p := plain{Index: 1}
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	*e = RegexExtraction(p)
	return nil
}

func (e *LookupExtraction) MarshalJSON() ([]byte, error) {
	type plain LookupExtraction
	return MarshalTagged(ExtractionLookup, (*plain)(e))
}

func (e *LookupExtraction) UnmarshalJSON(data []byte) error {
	var w struct {
		Lookup                  json.RawMessage `json:"lookup"`
		RetainMissingValue      bool            `json:"retainMissingValue"`
		Injective               bool            `json:"injective"`
		ReplaceMissingValueWith *string         `json:"replaceMissingValueWith"`
	}
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	lookup, err := DecodeLookup(w.Lookup)
	if err != nil {
		return err
	}
	*e = LookupExtraction{
		Lookup:                  lookup,
		RetainMissingValue:      w.RetainMissingValue,
		Injective:               w.Injective,
		ReplaceMissingValueWith: w.ReplaceMissingValueWith,
	}
	return nil
}

func (l *RegisteredLookup) MarshalJSON() ([]byte, error) {
	type plain RegisteredLookup
	return MarshalTagged(LookupRegistered, (*plain)(l))
}

func (l *MapLookup) MarshalJSON() ([]byte, error) {
	type plain MapLookup
	return MarshalTagged(LookupMap, (*plain)(l))
}

var extractionCtors = map[string]func() ExtractionFunction{
	ExtractionRegex:  func() ExtractionFunction { return &RegexExtraction{} },
	ExtractionLookup: func() ExtractionFunction { return &LookupExtraction{} },
}

var lookupCtors = map[string]func() Lookup{
	LookupRegistered: func() Lookup { return &RegisteredLookup{} },
	LookupMap:        func() Lookup { return &MapLookup{} },
}

// DecodeExtractionFunction decodes an extraction function node.
func DecodeExtractionFunction(data []byte) (ExtractionFunction, error) {
	return DecodeTagged("extractionFn", data, extractionCtors)
}

// DecodeLookup decodes a lookup node.
func DecodeLookup(data []byte) (Lookup, error) {
	return DecodeTagged("lookup", data, lookupCtors)
}
