package generator

import (
	"github.com/roach88/tdq/internal/queryir"
)

// Engine names used by the convenience lowering.
const (
	EventCountField  = "count"
	HistogramField   = "floatValue"
	HistogramSketch  = "_histogramSketch"
	HistogramSketchK = 1024
)

// LowerConvenience replaces userCount, eventCount and histogram aggregators
// (also inside filtered aggregators) with engine aggregators. Histograms
// add a quantilesDoublesSketchToHistogram post-aggregator, appended after
// postAggs. The inputs are not modified.
func LowerConvenience(aggs []queryir.Aggregator, postAggs []queryir.PostAggregator, opts Options) ([]queryir.Aggregator, []queryir.PostAggregator) {
	if aggs == nil {
		return nil, postAggs
	}
	outAggs := make([]queryir.Aggregator, 0, len(aggs))
	var extra []queryir.PostAggregator
	for _, a := range aggs {
		lowered, post := lowerAggregator(a, opts)
		outAggs = append(outAggs, lowered)
		if post != nil {
			extra = append(extra, post)
		}
	}
	if extra == nil {
		return outAggs, postAggs
	}
	outPosts := make([]queryir.PostAggregator, 0, len(postAggs)+len(extra))
	outPosts = append(outPosts, postAggs...)
	outPosts = append(outPosts, extra...)
	return outAggs, outPosts
}

func lowerAggregator(a queryir.Aggregator, opts Options) (queryir.Aggregator, queryir.PostAggregator) {
	switch v := a.(type) {
	case *queryir.UserCount:
		return userSketch(v.OutputName(), opts), nil
	case *queryir.EventCount:
		return queryir.LongSum(v.OutputName(), EventCountField), nil
	case *queryir.Histogram:
		sketch := &queryir.QuantilesDoublesSketch{
			Name:      HistogramSketch,
			FieldName: HistogramField,
			K:         queryir.Ptr(HistogramSketchK),
		}
		post := &queryir.QuantilesDoublesSketchToHistogram{
			Name:        v.OutputName(),
			Field:       queryir.NewFieldAccess(HistogramSketch),
			SplitPoints: v.SplitPoints,
			NumBins:     v.NumBins,
		}
		return sketch, post
	case *queryir.Filtered:
		inner, post := lowerAggregator(v.Aggregator, opts)
		if inner == v.Aggregator {
			return v, nil
		}
		return &queryir.Filtered{Filter: v.Filter, Aggregator: inner, Name: v.Name}, post
	default:
		return a, nil
	}
}
