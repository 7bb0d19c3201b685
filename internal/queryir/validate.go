package queryir

import (
	"fmt"
)

// ValidationResult lists constructs the engine would reject or evaluate
// surprisingly.
type ValidationResult struct {
	// Valid is true when there are no warnings.
	Valid bool

	// Warnings lists the problems found, in traversal order.
	Warnings []string
}

// Validate checks a compiled query's filter and aggregation trees:
//  1. Output names are unique across aggregators and post-aggregators
//  2. Field accesses reference an aggregator or an earlier post-aggregator
//  3. No convenience aggregator is left (they must be lowered first)
//  4. Arithmetic has at least two operands
//  5. and/or have at least one operand and not has a field
//
// Validate is a pure function with no side effects. Problems are reported as
// warnings rather than errors so callers can decide to send the query anyway.
func Validate(filter Filter, aggs []Aggregator, postAggs []PostAggregator) ValidationResult {
	v := &validator{
		warnings: []string{},
		names:    map[string]bool{},
	}
	if filter != nil {
		v.validateFilter(filter)
	}
	for _, a := range aggs {
		v.validateAggregator(a, false)
	}
	for _, p := range postAggs {
		v.validatePostAggregator(p)
		v.define(p.OutputName())
	}

	return ValidationResult{
		Valid:    len(v.warnings) == 0,
		Warnings: v.warnings,
	}
}

// validator accumulates warnings during traversal.
type validator struct {
	warnings []string

	// names are the output names defined so far.
	names map[string]bool
}

func (v *validator) addWarning(format string, args ...any) {
	v.warnings = append(v.warnings, fmt.Sprintf(format, args...))
}

func (v *validator) define(name string) {
	if name == "" {
		return
	}
	if v.names[name] {
		v.addWarning("Duplicate output name %q", name)
		return
	}
	v.names[name] = true
}

func (v *validator) validateFilter(f Filter) {
	switch filter := f.(type) {
	case nil:
		v.addWarning("nil filter operand")
	case *And:
		if len(filter.Fields) == 0 {
			v.addWarning("Empty and filter - matches every row")
		}
		for _, field := range filter.Fields {
			v.validateFilter(field)
		}
	case *Or:
		if len(filter.Fields) == 0 {
			v.addWarning("Empty or filter - matches no row")
		}
		for _, field := range filter.Fields {
			v.validateFilter(field)
		}
	case *Not:
		v.validateFilter(filter.Field)
	}
}

// validateAggregator checks a; nested is true inside a filtered aggregator,
// whose own name (if any) takes precedence.
func (v *validator) validateAggregator(a Aggregator, nested bool) {
	if a == nil {
		v.addWarning("nil aggregator")
		return
	}
	if IsConvenience(a) {
		v.addWarning("Convenience aggregator %q (%s) was not lowered", a.OutputName(), a.Type())
	}
	if f, ok := a.(*Filtered); ok {
		if f.Filter == nil {
			v.addWarning("Filtered aggregator %q has no filter", f.OutputName())
		} else {
			v.validateFilter(f.Filter)
		}
		v.validateAggregator(f.Aggregator, true)
		if !nested {
			v.define(f.OutputName())
		}
		return
	}
	if !nested {
		v.define(a.OutputName())
	}
}

func (v *validator) validatePostAggregator(p PostAggregator) {
	switch post := p.(type) {
	case nil:
		v.addWarning("nil post-aggregator")
	case *FieldAccess:
		v.checkReference(post.FieldName)
	case *FinalizingFieldAccess:
		v.checkReference(post.FieldName)
	case *HyperUniqueCardinality:
		v.checkReference(post.FieldName)
	case *Arithmetic:
		if len(post.Fields) < 2 {
			v.addWarning("Arithmetic %q has %d operands - at least two are required", post.Name, len(post.Fields))
		}
		v.validatePostAggregators(post.Fields)
	case *Extremum:
		v.validatePostAggregators(post.Fields)
	case *ThetaSketchEstimate:
		v.validatePostAggregator(post.Field)
	case *ThetaSketchSetOp:
		v.validatePostAggregators(post.Fields)
	case *QuantilesDoublesSketchToHistogram:
		v.validatePostAggregator(post.Field)
	case *ZScore2Sample:
		v.validatePostAggregators([]PostAggregator{post.Sample1Size, post.SuccessCount1, post.Sample2Size, post.SuccessCount2})
	case *PValue2TailedZTest:
		v.validatePostAggregator(post.ZScore)
	}
}

func (v *validator) validatePostAggregators(ps []PostAggregator) {
	for _, p := range ps {
		v.validatePostAggregator(p)
	}
}

func (v *validator) checkReference(name string) {
	if !v.names[name] {
		v.addWarning("Field access %q references no aggregator or earlier post-aggregator", name)
	}
}
