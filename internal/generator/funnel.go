package generator

import (
	"fmt"

	"github.com/roach88/tdq/internal/interval"
	"github.com/roach88/tdq/internal/qerr"
	"github.com/roach88/tdq/internal/query"
	"github.com/roach88/tdq/internal/queryir"
)

// FunnelStepPrefix prefixes the sketch aggregator of each funnel step.
const FunnelStepPrefix = "_funnel_step_"

// Funnel expands a funnel document. Step i counts the users matching
// Steps[i]; its post-aggregator "<i>_<name>" estimates the users who
// matched every step from 0 to i, in any order within the interval.
//
// The filter becomes the existing filter AND the OR of all steps.
func Funnel(q *query.CustomQuery, opts Options) (*query.CustomQuery, error) {
	if q.Steps == nil {
		return nil, qerr.KeyMissing("steps", "funnel queries need steps")
	}
	if len(q.Steps) == 0 {
		return nil, qerr.KeyMissing("steps", "funnel queries need at least one step")
	}

	aggs := make([]queryir.Aggregator, 0, len(q.Steps))
	posts := make([]queryir.PostAggregator, 0, len(q.Steps))
	for i, step := range q.Steps {
		if step == nil {
			return nil, qerr.KeyMissing("steps", "step %d has no filter", i)
		}
		aggs = append(aggs, &queryir.Filtered{
			Filter:     step,
			Aggregator: userSketch(funnelStepName(i), opts),
		})
		posts = append(posts, &queryir.ThetaSketchEstimate{
			Name:  fmt.Sprintf("%d_%s", i, stepLabel(q.StepNames, i)),
			Field: cumulativeIntersection(i),
		})
	}

	out := q.Clone()
	out.QueryType = query.QueryTypeGroupBy
	out.Granularity = interval.GranularityAll
	out.Filter = queryir.AllOf(q.Filter, queryir.AnyOf(q.Steps...))
	out.Aggregations = aggs
	out.PostAggregations = posts
	out.Steps = nil
	out.StepNames = nil
	return out, nil
}

func funnelStepName(i int) string {
	return fmt.Sprintf("%s%d", FunnelStepPrefix, i)
}

// stepLabel is names[i], or the step's aggregator name when there is none.
func stepLabel(names []string, i int) string {
	if i < len(names) {
		return names[i]
	}
	return funnelStepName(i)
}

// cumulativeIntersection reads step 0 directly and intersects steps 0..i
// for later steps.
func cumulativeIntersection(i int) queryir.PostAggregator {
	if i == 0 {
		return queryir.NewFieldAccess(funnelStepName(0))
	}
	fields := make([]queryir.PostAggregator, 0, i+1)
	for step := 0; step <= i; step++ {
		fields = append(fields, queryir.NewFieldAccess(funnelStepName(step)))
	}
	return &queryir.ThetaSketchSetOp{Func: queryir.SetOpIntersect, Fields: fields}
}
