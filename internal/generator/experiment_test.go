package generator

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/tdq/internal/interval"
	"github.com/roach88/tdq/internal/query"
	"github.com/roach88/tdq/internal/queryir"
)

type event struct {
	user string
	typ  string
}

type userSet map[string]bool

// matchEvent covers the filter shapes experiment expansion produces.
func matchEvent(t *testing.T, f queryir.Filter, e event) bool {
	t.Helper()
	switch f := f.(type) {
	case nil, *queryir.True:
		return true
	case *queryir.Selector:
		require.Equal(t, "type", f.Dimension)
		return f.Value == e.typ
	case *queryir.And:
		for _, field := range f.Fields {
			if !matchEvent(t, field, e) {
				return false
			}
		}
		return true
	case *queryir.Or:
		for _, field := range f.Fields {
			if matchEvent(t, field, e) {
				return true
			}
		}
		return false
	case *queryir.Not:
		return !matchEvent(t, f.Field, e)
	}
	t.Fatalf("unexpected filter %T", f)
	return false
}

// runSketches feeds events through the query filter and its filtered theta
// sketch aggregators, keeping exact user sets in place of sketches.
func runSketches(t *testing.T, q *query.CustomQuery, events []event) map[string]userSet {
	t.Helper()
	sketches := map[string]userSet{}
	for _, a := range q.Aggregations {
		f, ok := a.(*queryir.Filtered)
		require.True(t, ok, "aggregator %T", a)
		_, ok = f.Aggregator.(*queryir.ThetaSketch)
		require.True(t, ok, "inner aggregator %T", f.Aggregator)
		sketches[f.OutputName()] = userSet{}
	}
	for _, e := range events {
		if !matchEvent(t, q.Filter, e) {
			continue
		}
		for _, a := range q.Aggregations {
			f := a.(*queryir.Filtered)
			if matchEvent(t, f.Filter, e) {
				sketches[f.OutputName()][e.user] = true
			}
		}
	}
	return sketches
}

func sketchOperand(t *testing.T, p queryir.PostAggregator, sketches map[string]userSet) userSet {
	t.Helper()
	switch p := p.(type) {
	case *queryir.FieldAccess:
		s, ok := sketches[p.FieldName]
		require.True(t, ok, "no sketch %q", p.FieldName)
		return s
	case *queryir.ThetaSketchSetOp:
		require.NotEmpty(t, p.Fields)
		out := userSet{}
		for user := range sketchOperand(t, p.Fields[0], sketches) {
			out[user] = true
		}
		for _, field := range p.Fields[1:] {
			other := sketchOperand(t, field, sketches)
			for user := range out {
				keep := other[user]
				if p.Func == queryir.SetOpNot {
					keep = !keep
				}
				if !keep {
					delete(out, user)
				}
			}
			if p.Func == queryir.SetOpUnion {
				for user := range other {
					out[user] = true
				}
			}
		}
		return out
	}
	t.Fatalf("unexpected sketch operand %T", p)
	return nil
}

// evaluateExperiment resolves the sketch estimates over exact user sets and
// hands the numeric post-aggregators to queryir.EvaluateAll.
func evaluateExperiment(t *testing.T, q *query.CustomQuery, events []event) queryir.Row {
	t.Helper()
	sketches := runSketches(t, q, events)
	row := queryir.Row{}
	for name, users := range sketches {
		row[name] = float64(len(users))
	}

	var numeric []queryir.PostAggregator
	for _, p := range q.PostAggregations {
		if est, ok := p.(*queryir.ThetaSketchEstimate); ok {
			row[est.Name] = float64(len(sketchOperand(t, est.Field, sketches)))
			continue
		}
		numeric = append(numeric, p)
	}
	out, err := queryir.EvaluateAll(numeric, row)
	require.NoError(t, err)
	return out
}

func payscreenExperiment(t *testing.T) *query.CustomQuery {
	t.Helper()
	out, err := Experiment(&query.CustomQuery{
		QueryType:        query.QueryTypeExperiment,
		Granularity:      interval.GranularityAll,
		Sample1:          &query.NamedFilter{Name: "Payscreen A", Filter: sel("type", "payScreenALaunched")},
		Sample2:          &query.NamedFilter{Name: "Payscreen B", Filter: sel("type", "payScreenBLaunched")},
		SuccessCriterion: &query.NamedFilter{Name: "Payment Succeeded", Filter: sel("type", "paymentSucceeded")},
	}, Options{})
	require.NoError(t, err)
	return out
}

func TestExperimentCountsSuccessAcrossEvents(t *testing.T) {
	tests := []struct {
		name   string
		events []event
		want   map[string]float64
	}{
		{
			name: "single user converts after cohort A",
			events: []event{
				{user: "u1", typ: "payScreenALaunched"},
				{user: "u1", typ: "paymentSucceeded"},
			},
			want: map[string]float64{
				ExperimentCohort1: 1, ExperimentCohort1Success: 1,
				ExperimentCohort2: 0, ExperimentCohort2Success: 0,
			},
		},
		{
			name: "success without a cohort is not attributed",
			events: []event{
				{user: "u1", typ: "payScreenALaunched"},
				{user: "u2", typ: "paymentSucceeded"},
				{user: "u3", typ: "payScreenBLaunched"},
				{user: "u3", typ: "paymentSucceeded"},
				{user: "u3", typ: "paymentSucceeded"},
			},
			want: map[string]float64{
				ExperimentCohort1: 1, ExperimentCohort1Success: 0,
				ExperimentCohort2: 1, ExperimentCohort2Success: 1,
			},
		},
		{
			name: "unrelated events are filtered out",
			events: []event{
				{user: "u1", typ: "appLaunched"},
				{user: "u1", typ: "payScreenBLaunched"},
				{user: "u2", typ: "payScreenBLaunched"},
				{user: "u2", typ: "paymentSucceeded"},
			},
			want: map[string]float64{
				ExperimentCohort1: 0, ExperimentCohort1Success: 0,
				ExperimentCohort2: 2, ExperimentCohort2Success: 1,
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			row := evaluateExperiment(t, payscreenExperiment(t), tt.events)
			for name, want := range tt.want {
				assert.Equal(t, want, row[name], name)
			}
			assert.Contains(t, row, ExperimentZScore)
			assert.Contains(t, row, ExperimentPValue)
		})
	}
}

func TestExperimentZScoreUsesIntersectedCounts(t *testing.T) {
	var events []event
	add := func(prefix, cohort string, users, converted int) {
		for i := 0; i < users; i++ {
			user := prefix + string(rune('a'+i%26)) + string(rune('a'+i/26))
			events = append(events, event{user: user, typ: cohort})
			if i < converted {
				events = append(events, event{user: user, typ: "paymentSucceeded"})
			}
		}
	}
	add("a-", "payScreenALaunched", 100, 30)
	add("b-", "payScreenBLaunched", 100, 10)

	row := evaluateExperiment(t, payscreenExperiment(t), events)

	assert.Equal(t, 30.0, row[ExperimentCohort1Success])
	assert.Equal(t, 10.0, row[ExperimentCohort2Success])
	assert.InDelta(t, queryir.ZScore2Proportions(100, 30, 100, 10), row[ExperimentZScore], 1e-12)
	assert.Greater(t, row[ExperimentZScore], 3.0)
	assert.Less(t, row[ExperimentPValue], 0.01)
}
