package generator

import (
	"github.com/roach88/tdq/internal/interval"
	"github.com/roach88/tdq/internal/qerr"
	"github.com/roach88/tdq/internal/query"
	"github.com/roach88/tdq/internal/queryir"
)

// Output names of the experiment aggregators and post-aggregators.
const (
	ExperimentCohort1        = "cohort_1"
	ExperimentCohort2        = "cohort_2"
	ExperimentSuccess        = "success"
	ExperimentCohort1Success = "cohort_1_success"
	ExperimentCohort2Success = "cohort_2_success"
	ExperimentZScore         = "zscore"
	ExperimentPValue         = "pvalue"
)

// Experiment expands an A/B experiment document into a two-proportion
// z-test: one user sketch per cohort and one for the success criterion.
// Each cohort's success count is the estimate of its sketch intersected with
// the success sketch, so a user who saw a cohort in one event and succeeded
// in another still counts. "zscore" and its two-tailed "pvalue" follow.
//
// The filter becomes the existing filter AND (sample1 OR sample2 OR
// successCriterion).
func Experiment(q *query.CustomQuery, opts Options) (*query.CustomQuery, error) {
	sample1, err := namedFilter("sample1", q.Sample1)
	if err != nil {
		return nil, err
	}
	sample2, err := namedFilter("sample2", q.Sample2)
	if err != nil {
		return nil, err
	}
	success, err := namedFilter("successCriterion", q.SuccessCriterion)
	if err != nil {
		return nil, err
	}

	aggs := []queryir.Aggregator{
		&queryir.Filtered{Filter: sample1, Aggregator: userSketch(ExperimentCohort1, opts)},
		&queryir.Filtered{Filter: sample2, Aggregator: userSketch(ExperimentCohort2, opts)},
		&queryir.Filtered{Filter: success, Aggregator: userSketch(ExperimentSuccess, opts)},
	}
	posts := []queryir.PostAggregator{
		cohortSuccess(ExperimentCohort1Success, ExperimentCohort1),
		cohortSuccess(ExperimentCohort2Success, ExperimentCohort2),
		&queryir.ZScore2Sample{
			Name:          ExperimentZScore,
			Sample1Size:   queryir.NewFinalizingFieldAccess(ExperimentCohort1),
			SuccessCount1: queryir.NewFieldAccess(ExperimentCohort1Success),
			Sample2Size:   queryir.NewFinalizingFieldAccess(ExperimentCohort2),
			SuccessCount2: queryir.NewFieldAccess(ExperimentCohort2Success),
		},
		&queryir.PValue2TailedZTest{
			Name:   ExperimentPValue,
			ZScore: queryir.NewFieldAccess(ExperimentZScore),
		},
	}

	out := q.Clone()
	out.QueryType = query.QueryTypeGroupBy
	out.Granularity = interval.GranularityAll
	out.Filter = queryir.AllOf(q.Filter, queryir.AnyOf(sample1, sample2, success))
	out.Aggregations = aggs
	out.PostAggregations = posts
	out.Sample1 = nil
	out.Sample2 = nil
	out.SuccessCriterion = nil
	return out, nil
}

// cohortSuccess estimates the users in both the cohort sketch and the
// success sketch.
func cohortSuccess(name, cohort string) *queryir.ThetaSketchEstimate {
	return &queryir.ThetaSketchEstimate{
		Name: name,
		Field: &queryir.ThetaSketchSetOp{
			Func: queryir.SetOpIntersect,
			Fields: []queryir.PostAggregator{
				queryir.NewFieldAccess(cohort),
				queryir.NewFieldAccess(ExperimentSuccess),
			},
		},
	}
}

func namedFilter(field string, n *query.NamedFilter) (queryir.Filter, error) {
	if n == nil {
		return nil, qerr.KeyMissing(field, "experiment queries need %s", field)
	}
	if n.Filter == nil {
		return nil, qerr.KeyMissing(field, "cohort %q has no filter", n.Name)
	}
	return n.Filter, nil
}
