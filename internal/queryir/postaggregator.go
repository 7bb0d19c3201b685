package queryir

import (
	"encoding/json"
	"fmt"
)

// PostAggregator computes a value from aggregator results after
// aggregation has finished.
//
// This is a sealed interface - only types in this package implement it.
type PostAggregator interface {
	Type() string

	// OutputName is the result column, empty for unnamed operands.
	OutputName() string

	postAggregatorNode()
}

// Post-aggregator wire discriminators.
const (
	PostAggArithmetic             = "arithmetic"
	PostAggFieldAccess            = "fieldAccess"
	PostAggFinalizingFieldAccess  = "finalizingFieldAccess"
	PostAggConstant               = "constant"
	PostAggDoubleGreatest         = "doubleGreatest"
	PostAggLongGreatest           = "longGreatest"
	PostAggDoubleLeast            = "doubleLeast"
	PostAggLongLeast              = "longLeast"
	PostAggDoubleMax              = "doubleMax"
	PostAggExpression             = "expression"
	PostAggHyperUniqueCardinality = "hyperUniqueCardinality"
	PostAggThetaSketchEstimate    = "thetaSketchEstimate"
	PostAggThetaSketchSetOp       = "thetaSketchSetOp"
	PostAggQuantilesToHistogram   = "quantilesDoublesSketchToHistogram"
	PostAggZScore2Sample          = "zscore2sample"
	PostAggPValue2TailedZTest     = "pvalue2tailedZtest"
)

// Arithmetic functions.
const (
	FnAdd      = "+"
	FnSubtract = "-"
	FnMultiply = "*"
	FnDivide   = "/"
	FnQuotient = "quotient"
)

// Theta sketch set operations.
const (
	SetOpUnion     = "UNION"
	SetOpIntersect = "INTERSECT"
	SetOpNot       = "NOT"
)

// Arithmetic applies Fn left to right over Fields.
type Arithmetic struct {
	Name   string           `json:"name"`
	Fn     string           `json:"fn"`
	Fields []PostAggregator `json:"fields"`

	// Ordering is nil or "numericFirst".
	Ordering *string `json:"ordering,omitempty"`
}

// FieldAccess reads an aggregator result without finalising it, so sketch
// aggregators yield the sketch itself.
type FieldAccess struct {
	Name      *string `json:"name,omitempty"`
	FieldName string  `json:"fieldName"`
}

// FinalizingFieldAccess reads the finalised aggregator result.
type FinalizingFieldAccess struct {
	Name      *string `json:"name,omitempty"`
	FieldName string  `json:"fieldName"`
}

// Constant always yields Value.
type Constant struct {
	Name  string  `json:"name"`
	Value float64 `json:"value"`
}

// Extremum is the greatest or least of Fields. Kind holds the
// discriminator; doubleMax folds like doubleGreatest.
type Extremum struct {
	Kind   string           `json:"-"`
	Name   string           `json:"name"`
	Fields []PostAggregator `json:"fields"`
}

// Expression evaluates an engine expression.
type Expression struct {
	Name       string  `json:"name"`
	Expression string  `json:"expression"`
	Ordering   *string `json:"ordering,omitempty"`
}

// HyperUniqueCardinality finalises a hyperUnique aggregator.
type HyperUniqueCardinality struct {
	Name      string `json:"name"`
	FieldName string `json:"fieldName"`
}

// ThetaSketchEstimate turns a sketch into its cardinality estimate.
type ThetaSketchEstimate struct {
	Name  string         `json:"name"`
	Field PostAggregator `json:"field"`
}

// ThetaSketchSetOp combines sketches with Func.
type ThetaSketchSetOp struct {
	Name   *string          `json:"name,omitempty"`
	Func   string           `json:"func"`
	Size   *int             `json:"size,omitempty"`
	Fields []PostAggregator `json:"fields"`
}

// QuantilesDoublesSketchToHistogram turns a quantiles sketch into a
// histogram, either over SplitPoints or NumBins equal bins.
type QuantilesDoublesSketchToHistogram struct {
	Name        string         `json:"name"`
	Field       PostAggregator `json:"field"`
	SplitPoints []float64      `json:"splitPoints,omitempty"`
	NumBins     *int           `json:"numBins,omitempty"`
}

// ZScore2Sample is the two-proportion z statistic of two samples.
type ZScore2Sample struct {
	Name          string         `json:"name"`
	Sample1Size   PostAggregator `json:"sample1Size"`
	SuccessCount1 PostAggregator `json:"successCount1"`
	Sample2Size   PostAggregator `json:"sample2Size"`
	SuccessCount2 PostAggregator `json:"successCount2"`
}

// PValue2TailedZTest is the two-tailed p-value of a z statistic.
type PValue2TailedZTest struct {
	Name   string         `json:"name"`
	ZScore PostAggregator `json:"zScore"`
}

func (*Arithmetic) Type() string                        { return PostAggArithmetic }
func (*FieldAccess) Type() string                       { return PostAggFieldAccess }
func (*FinalizingFieldAccess) Type() string             { return PostAggFinalizingFieldAccess }
func (*Constant) Type() string                          { return PostAggConstant }
func (p *Extremum) Type() string                        { return p.Kind }
func (*Expression) Type() string                        { return PostAggExpression }
func (*HyperUniqueCardinality) Type() string            { return PostAggHyperUniqueCardinality }
func (*ThetaSketchEstimate) Type() string               { return PostAggThetaSketchEstimate }
func (*ThetaSketchSetOp) Type() string                  { return PostAggThetaSketchSetOp }
func (*QuantilesDoublesSketchToHistogram) Type() string { return PostAggQuantilesToHistogram }
func (*ZScore2Sample) Type() string                     { return PostAggZScore2Sample }
func (*PValue2TailedZTest) Type() string                { return PostAggPValue2TailedZTest }

func (p *Arithmetic) OutputName() string                        { return p.Name }
func (p *FieldAccess) OutputName() string                       { return nameOr(p.Name, "") }
func (p *FinalizingFieldAccess) OutputName() string             { return nameOr(p.Name, "") }
func (p *Constant) OutputName() string                          { return p.Name }
func (p *Extremum) OutputName() string                          { return p.Name }
func (p *Expression) OutputName() string                        { return p.Name }
func (p *HyperUniqueCardinality) OutputName() string            { return p.Name }
func (p *ThetaSketchEstimate) OutputName() string               { return p.Name }
func (p *ThetaSketchSetOp) OutputName() string                  { return nameOr(p.Name, "") }
func (p *QuantilesDoublesSketchToHistogram) OutputName() string { return p.Name }
func (p *ZScore2Sample) OutputName() string                     { return p.Name }
func (p *PValue2TailedZTest) OutputName() string                { return p.Name }

func (*Arithmetic) postAggregatorNode()                        {}
func (*FieldAccess) postAggregatorNode()                       {}
func (*FinalizingFieldAccess) postAggregatorNode()             {}
func (*Constant) postAggregatorNode()                          {}
func (*Extremum) postAggregatorNode()                          {}
func (*Expression) postAggregatorNode()                        {}
func (*HyperUniqueCardinality) postAggregatorNode()            {}
func (*ThetaSketchEstimate) postAggregatorNode()               {}
func (*ThetaSketchSetOp) postAggregatorNode()                  {}
func (*QuantilesDoublesSketchToHistogram) postAggregatorNode() {}
func (*ZScore2Sample) postAggregatorNode()                     {}
func (*PValue2TailedZTest) postAggregatorNode()                {}

// NewFieldAccess returns an unnamed fieldAccess of fieldName.
func NewFieldAccess(fieldName string) *FieldAccess {
	return &FieldAccess{FieldName: fieldName}
}

// NewFinalizingFieldAccess returns an unnamed finalizingFieldAccess of
// fieldName.
func NewFinalizingFieldAccess(fieldName string) *FinalizingFieldAccess {
	return &FinalizingFieldAccess{FieldName: fieldName}
}

// NewExtremum builds a greatest/least post-aggregator of the given kind.
func NewExtremum(kind, name string, fields ...PostAggregator) *Extremum {
	return &Extremum{Kind: kind, Name: name, Fields: fields}
}

func isExtremumKind(kind string) bool {
	switch kind {
	case PostAggDoubleGreatest, PostAggLongGreatest, PostAggDoubleLeast, PostAggLongLeast, PostAggDoubleMax:
		return true
	default:
		return false
	}
}

func (p *Arithmetic) MarshalJSON() ([]byte, error) {
	type plain Arithmetic
	return MarshalTagged(PostAggArithmetic, (*plain)(p))
}

func (p *FieldAccess) MarshalJSON() ([]byte, error) {
	type plain FieldAccess
	return MarshalTagged(PostAggFieldAccess, (*plain)(p))
}

func (p *FinalizingFieldAccess) MarshalJSON() ([]byte, error) {
	type plain FinalizingFieldAccess
	return MarshalTagged(PostAggFinalizingFieldAccess, (*plain)(p))
}

func (p *Constant) MarshalJSON() ([]byte, error) {
	type plain Constant
	return MarshalTagged(PostAggConstant, (*plain)(p))
}

func (p *Extremum) MarshalJSON() ([]byte, error) {
	if !isExtremumKind(p.Kind) {
		return nil, fmt.Errorf("marshal postAggregator: %q is not a greatest/least kind", p.Kind)
	}
	type plain Extremum
	return MarshalTagged(p.Kind, (*plain)(p))
}

func (p *Expression) MarshalJSON() ([]byte, error) {
	type plain Expression
	return MarshalTagged(PostAggExpression, (*plain)(p))
}

func (p *HyperUniqueCardinality) MarshalJSON() ([]byte, error) {
	type plain HyperUniqueCardinality
	return MarshalTagged(PostAggHyperUniqueCardinality, (*plain)(p))
}

func (p *ThetaSketchEstimate) MarshalJSON() ([]byte, error) {
	type plain ThetaSketchEstimate
	return MarshalTagged(PostAggThetaSketchEstimate, (*plain)(p))
}

func (p *ThetaSketchSetOp) MarshalJSON() ([]byte, error) {
	type plain ThetaSketchSetOp
	return MarshalTagged(PostAggThetaSketchSetOp, (*plain)(p))
}

func (p *QuantilesDoublesSketchToHistogram) MarshalJSON() ([]byte, error) {
	type plain QuantilesDoublesSketchToHistogram
	return MarshalTagged(PostAggQuantilesToHistogram, (*plain)(p))
}

func (p *ZScore2Sample) MarshalJSON() ([]byte, error) {
	type plain ZScore2Sample
	return MarshalTagged(PostAggZScore2Sample, (*plain)(p))
}

func (p *PValue2TailedZTest) MarshalJSON() ([]byte, error) {
	type plain PValue2TailedZTest
	return MarshalTagged(PostAggPValue2TailedZTest, (*plain)(p))
}

func (p *Arithmetic) UnmarshalJSON(data []byte) error {
	var w struct {
		Name     string            `json:"name"`
		Fn       string            `json:"fn"`
		Fields   []json.RawMessage `json:"fields"`
		Ordering *string           `json:"ordering"`
	}
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	switch w.Fn {
	case FnAdd, FnSubtract, FnMultiply, FnDivide, FnQuotient:
	default:
		return fmt.Errorf("unknown arithmetic function %q", w.Fn)
	}
	fields, err := DecodePostAggregators(w.Fields)
	if err != nil {
		return err
	}
	*p = Arithmetic{Name: w.Name, Fn: w.Fn, Fields: fields, Ordering: w.Ordering}
	return nil
}

func (p *Extremum) UnmarshalJSON(data []byte) error {
	var w struct {
		Name   string            `json:"name"`
		Fields []json.RawMessage `json:"fields"`
	}
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	fields, err := DecodePostAggregators(w.Fields)
	if err != nil {
		return err
	}
	p.Name = w.Name
	p.Fields = fields
	return nil
}

func (p *ThetaSketchEstimate) UnmarshalJSON(data []byte) error {
	var w struct {
		Name  string          `json:"name"`
		Field json.RawMessage `json:"field"`
	}
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	field, err := DecodePostAggregator(w.Field)
	if err != nil {
		return err
	}
	*p = ThetaSketchEstimate{Name: w.Name, Field: field}
	return nil
}

func (p *ThetaSketchSetOp) UnmarshalJSON(data []byte) error {
	var w struct {
		Name   *string           `json:"name"`
		Func   string            `json:"func"`
		Size   *int              `json:"size"`
		Fields []json.RawMessage `json:"fields"`
	}
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	switch w.Func {
	case SetOpUnion, SetOpIntersect, SetOpNot:
	default:
		return fmt.Errorf("unknown set operation %q", w.Func)
	}
	fields, err := DecodePostAggregators(w.Fields)
	if err != nil {
		return err
	}
	*p = ThetaSketchSetOp{Name: w.Name, Func: w.Func, Size: w.Size, Fields: fields}
	return nil
}

func (p *QuantilesDoublesSketchToHistogram) UnmarshalJSON(data []byte) error {
	var w struct {
		Name        string          `json:"name"`
		Field       json.RawMessage `json:"field"`
		SplitPoints []float64       `json:"splitPoints"`
		NumBins     *int            `json:"numBins"`
	}
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	field, err := DecodePostAggregator(w.Field)
	if err != nil {
		return err
	}
	*p = QuantilesDoublesSketchToHistogram{Name: w.Name, Field: field, SplitPoints: w.SplitPoints, NumBins: w.NumBins}
	return nil
}

func (p *ZScore2Sample) UnmarshalJSON(data []byte) error {
	var w struct {
		Name          string          `json:"name"`
		Sample1Size   json.RawMessage `json:"sample1Size"`
		SuccessCount1 json.RawMessage `json:"successCount1"`
		Sample2Size   json.RawMessage `json:"sample2Size"`
		SuccessCount2 json.RawMessage `json:"successCount2"`
	}
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	raws := []json.RawMessage{w.Sample1Size, w.SuccessCount1, w.Sample2Size, w.SuccessCount2}
	operands, err := DecodePostAggregators(raws)
	if err != nil {
		return err
	}
	*p = ZScore2Sample{
		Name:          w.Name,
		Sample1Size:   operands[0],
		SuccessCount1: operands[1],
		Sample2Size:   operands[2],
		SuccessCount2: operands[3],
	}
	return nil
}

func (p *PValue2TailedZTest) UnmarshalJSON(data []byte) error {
	var w struct {
		Name   string          `json:"name"`
		ZScore json.RawMessage `json:"zScore"`
	}
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	z, err := DecodePostAggregator(w.ZScore)
	if err != nil {
		return err
	}
	*p = PValue2TailedZTest{Name: w.Name, ZScore: z}
	return nil
}

var postAggregatorCtors = map[string]func() PostAggregator{
	PostAggArithmetic:             func() PostAggregator { return &Arithmetic{} },
	PostAggFieldAccess:            func() PostAggregator { return &FieldAccess{} },
	PostAggFinalizingFieldAccess:  func() PostAggregator { return &FinalizingFieldAccess{} },
	PostAggConstant:               func() PostAggregator { return &Constant{} },
	PostAggDoubleGreatest:         func() PostAggregator { return &Extremum{Kind: PostAggDoubleGreatest} },
	PostAggLongGreatest:           func() PostAggregator { return &Extremum{Kind: PostAggLongGreatest} },
	PostAggDoubleLeast:            func() PostAggregator { return &Extremum{Kind: PostAggDoubleLeast} },
	PostAggLongLeast:              func() PostAggregator { return &Extremum{Kind: PostAggLongLeast} },
	PostAggDoubleMax:              func() PostAggregator { return &Extremum{Kind: PostAggDoubleMax} },
	PostAggExpression:             func() PostAggregator { return &Expression{} },
	PostAggHyperUniqueCardinality: func() PostAggregator { return &HyperUniqueCardinality{} },
	PostAggThetaSketchEstimate:    func() PostAggregator { return &ThetaSketchEstimate{} },
	PostAggThetaSketchSetOp:       func() PostAggregator { return &ThetaSketchSetOp{} },
	PostAggQuantilesToHistogram:   func() PostAggregator { return &QuantilesDoublesSketchToHistogram{} },
	PostAggZScore2Sample:          func() PostAggregator { return &ZScore2Sample{} },
	PostAggPValue2TailedZTest:     func() PostAggregator { return &PValue2TailedZTest{} },
}

// DecodePostAggregator decodes a post-aggregator node.
func DecodePostAggregator(data []byte) (PostAggregator, error) {
	return DecodeTagged("postAggregator", data, postAggregatorCtors)
}

// DecodePostAggregators decodes a list of post-aggregator nodes.
func DecodePostAggregators(raws []json.RawMessage) ([]PostAggregator, error) {
	return decodeList(raws, DecodePostAggregator)
}
