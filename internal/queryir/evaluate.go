package queryir

import (
	"math"

	"github.com/roach88/tdq/internal/qerr"
)

// Row holds the finalised aggregator values of one result bucket, keyed by
// output name.
type Row map[string]float64

// Evaluate computes a scalar post-aggregator against row, following the
// engine's semantics: division by zero yields 0, quotient is plain IEEE
// division. Sketch and expression post-aggregators need the engine and fail
// with NOT_IMPLEMENTED.
func Evaluate(p PostAggregator, row Row) (float64, error) {
	switch v := p.(type) {
	case *Constant:
		return v.Value, nil
	case *FieldAccess:
		return lookupField(row, v.FieldName)
	case *FinalizingFieldAccess:
		return lookupField(row, v.FieldName)
	case *HyperUniqueCardinality:
		return lookupField(row, v.FieldName)
	case *Arithmetic:
		return evalArithmetic(v, row)
	case *Extremum:
		return evalExtremum(v, row)
	case *ZScore2Sample:
		return evalZScore(v, row)
	case *PValue2TailedZTest:
		z, err := Evaluate(v.ZScore, row)
		if err != nil {
			return 0, err
		}
		return PValue2Tailed(z), nil
	case nil:
		return 0, qerr.KeyMissing("field", "nil post-aggregator")
	default:
		return 0, qerr.NotImplemented("post-aggregator %q cannot be evaluated locally", p.Type())
	}
}

// EvaluateAll evaluates postAggs in order. Each named result is added to a
// copy of row so later post-aggregators can read it; the copy is returned.
func EvaluateAll(postAggs []PostAggregator, row Row) (Row, error) {
	out := make(Row, len(row)+len(postAggs))
	for k, v := range row {
		out[k] = v
	}
	for _, p := range postAggs {
		value, err := Evaluate(p, out)
		if err != nil {
			return nil, err
		}
		if name := p.OutputName(); name != "" {
			out[name] = value
		}
	}
	return out, nil
}

func lookupField(row Row, name string) (float64, error) {
	value, ok := row[name]
	if !ok {
		return 0, qerr.KeyMissing(name, "no aggregator value in row")
	}
	return value, nil
}

func evalArithmetic(a *Arithmetic, row Row) (float64, error) {
	if len(a.Fields) == 0 {
		return 0, qerr.KeyMissing("fields", "arithmetic %q has no fields", a.Name)
	}
	acc, err := Evaluate(a.Fields[0], row)
	if err != nil {
		return 0, err
	}
	for _, field := range a.Fields[1:] {
		operand, err := Evaluate(field, row)
		if err != nil {
			return 0, err
		}
		switch a.Fn {
		case FnAdd:
			acc += operand
		case FnSubtract:
			acc -= operand
		case FnMultiply:
			acc *= operand
		case FnDivide:
			if operand == 0 {
				acc = 0
			} else {
				acc /= operand
			}
		case FnQuotient:
			acc /= operand
		default:
			return 0, qerr.NotImplemented("arithmetic function %q", a.Fn)
		}
	}
	return acc, nil
}

func evalExtremum(e *Extremum, row Row) (float64, error) {
	if len(e.Fields) == 0 {
		return 0, qerr.KeyMissing("fields", "%s %q has no fields", e.Kind, e.Name)
	}
	long := e.Kind == PostAggLongGreatest || e.Kind == PostAggLongLeast
	greatest := e.Kind == PostAggDoubleGreatest || e.Kind == PostAggLongGreatest || e.Kind == PostAggDoubleMax

	var acc float64
	for i, field := range e.Fields {
		value, err := Evaluate(field, row)
		if err != nil {
			return 0, err
		}
		if long {
			value = math.Trunc(value)
		}
		switch {
		case i == 0:
			acc = value
		case greatest:
			acc = math.Max(acc, value)
		default:
			acc = math.Min(acc, value)
		}
	}
	return acc, nil
}

func evalZScore(z *ZScore2Sample, row Row) (float64, error) {
	var values [4]float64
	for i, operand := range []PostAggregator{z.Sample1Size, z.SuccessCount1, z.Sample2Size, z.SuccessCount2} {
		v, err := Evaluate(operand, row)
		if err != nil {
			return 0, err
		}
		values[i] = v
	}
	return ZScore2Proportions(values[0], values[1], values[2], values[3]), nil
}

// ZScore2Proportions is the pooled two-proportion z statistic. It is 0 when
// either sample is empty or the pooled standard error vanishes.
func ZScore2Proportions(sample1Size, successCount1, sample2Size, successCount2 float64) float64 {
	if sample1Size <= 0 || sample2Size <= 0 {
		return 0
	}
	p1 := successCount1 / sample1Size
	p2 := successCount2 / sample2Size
	pooled := (successCount1 + successCount2) / (sample1Size + sample2Size)
	se := math.Sqrt(pooled * (1 - pooled) * (1/sample1Size + 1/sample2Size))
	if se == 0 || math.IsNaN(se) {
		return 0
	}
	return (p1 - p2) / se
}

// PValue2Tailed is the two-tailed p-value of z under the standard normal.
func PValue2Tailed(z float64) float64 {
	return math.Erfc(math.Abs(z) / math.Sqrt2)
}
