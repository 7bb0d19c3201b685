package compiler

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/tdq/internal/interval"
	"github.com/roach88/tdq/internal/ir"
	"github.com/roach88/tdq/internal/qerr"
	"github.com/roach88/tdq/internal/query"
	"github.com/roach88/tdq/internal/queryir"
	"github.com/roach88/tdq/internal/testutil"
)

const testNow = "2022-10-14T09:30:00Z"

func newTestCompiler(t *testing.T) (*Compiler, *testutil.FixedClock) {
	t.Helper()
	clock := testutil.NewFixedClock(testutil.MustTime(t, testNow))
	c := New(
		WithClock(clock.Now),
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
	)
	return c, clock
}

func sel(dim, value string) *queryir.Selector {
	return &queryir.Selector{Dimension: dim, Value: value}
}

func baseQuery(t *testing.T) *query.CustomQuery {
	t.Helper()
	i, err := interval.Parse("2022-08-01T00:00:00.000Z/2022-09-30T00:00:00.000Z")
	require.NoError(t, err)
	return &query.CustomQuery{
		QueryType:    query.QueryTypeTimeseries,
		DataSource:   "somewhere-else",
		Intervals:    []interval.QueryTimeInterval{i},
		Granularity:  interval.GranularityDay,
		Aggregations: []queryir.Aggregator{&queryir.EventCount{}},
	}
}

func policy(b query.BaseFilters) *query.BaseFilters {
	return &b
}

func TestCompileGoldenTopN(t *testing.T) {
	c, _ := newTestCompiler(t)
	data, err := os.ReadFile(filepath.Join("testdata", "topn_this_app.json"))
	require.NoError(t, err)

	out, err := c.CompileJSON(data, nil, false)
	require.NoError(t, err)

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, "topn_this_app", out)
}

func TestBaseFilterThisOrganization(t *testing.T) {
	c, _ := newTestCompiler(t)
	a, b := testutil.AppID(1), testutil.AppID(2)

	out, err := c.Compile(baseQuery(t), []uuid.UUID{a, b}, false)
	require.NoError(t, err)

	want := &queryir.And{Fields: []queryir.Filter{
		&queryir.Or{Fields: []queryir.Filter{
			sel("appID", "00000000-0000-0000-0000-000000000001"),
			sel("appID", "00000000-0000-0000-0000-000000000002"),
		}},
		sel("isTestMode", "false"),
	}}
	assert.Equal(t, want, out.Filter)
}

func TestBaseFilterPolicies(t *testing.T) {
	appID := uuid.MustParse("4a8b5a0e-3b5e-4bd8-9b8e-2a1b2c3d4e5f")

	tests := []struct {
		name       string
		policy     *query.BaseFilters
		appID      *uuid.UUID
		testMode   *bool
		orgAppIDs  []uuid.UUID
		superOrg   bool
		wantFilter queryir.Filter
		wantCode   qerr.Code
	}{
		{
			name:      "default policy with one app is a plain selector",
			orgAppIDs: []uuid.UUID{testutil.AppID(7)},
			wantFilter: &queryir.And{Fields: []queryir.Filter{
				sel("appID", "00000000-0000-0000-0000-000000000007"),
				sel("isTestMode", "false"),
			}},
		},
		{
			name:     "organization without apps",
			policy:   policy(query.BaseFiltersThisOrganization),
			wantCode: qerr.CodeKeyMissing,
		},
		{
			name:     "this app in test mode",
			policy:   policy(query.BaseFiltersThisApp),
			appID:    &appID,
			testMode: queryir.Ptr(true),
			wantFilter: &queryir.And{Fields: []queryir.Filter{
				sel("appID", "4A8B5A0E-3B5E-4BD8-9B8E-2A1B2C3D4E5F"),
				sel("isTestMode", "true"),
			}},
		},
		{
			name:     "this app without appID",
			policy:   policy(query.BaseFiltersThisApp),
			wantCode: qerr.CodeKeyMissing,
		},
		{
			name:   "example data",
			policy: policy(query.BaseFiltersExampleData),
			wantFilter: &queryir.And{Fields: []queryir.Filter{
				sel("appID", DefaultExampleDataAppID),
				sel("isTestMode", "false"),
			}},
		},
		{
			name:     "no filter for a regular organization",
			policy:   policy(query.BaseFiltersNoFilter),
			wantCode: qerr.CodeNotAllowed,
		},
		{
			name:       "no filter for a super organization",
			policy:     policy(query.BaseFiltersNoFilter),
			superOrg:   true,
			wantFilter: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, _ := newTestCompiler(t)
			q := baseQuery(t)
			q.BaseFilters = tt.policy
			q.AppID = tt.appID
			q.TestMode = tt.testMode

			p, err := c.Precompile(q, tt.orgAppIDs, tt.superOrg)
			if tt.wantCode != "" {
				require.Error(t, err)
				assert.Equal(t, tt.wantCode, qerr.CodeOf(err))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantFilter, p.Query().Filter)
		})
	}
}

func TestPrecompileKeepsExistingFilter(t *testing.T) {
	c, _ := newTestCompiler(t)
	q := baseQuery(t)
	q.Filter = &queryir.And{Fields: []queryir.Filter{sel("type", "launch"), &queryir.True{}}}

	p, err := c.Precompile(q, testutil.AppIDs(1), false)
	require.NoError(t, err)

	want := &queryir.And{Fields: []queryir.Filter{
		sel("type", "launch"),
		sel("appID", "00000000-0000-0000-0000-000000000001"),
		sel("isTestMode", "false"),
	}}
	assert.Equal(t, want, p.Query().Filter)
}

func TestPrecompileDataSourceAndContext(t *testing.T) {
	c, _ := newTestCompiler(t)

	q := baseQuery(t)
	q.Context = &query.QueryContext{Priority: queryir.Ptr(3), SkipEmptyBuckets: queryir.Ptr(true)}
	p, err := c.Precompile(q, testutil.AppIDs(1), false)
	require.NoError(t, err)
	out := p.Query()
	assert.Equal(t, DefaultDataSource, out.DataSource)
	assert.Equal(t, &query.QueryContext{
		Timeout:          queryir.Ptr(DefaultContextTimeout),
		Priority:         queryir.Ptr(3),
		SkipEmptyBuckets: queryir.Ptr(true),
	}, out.Context)

	q = baseQuery(t)
	q.BaseFilters = policy(query.BaseFiltersNoFilter)
	p, err = c.Precompile(q, nil, true)
	require.NoError(t, err)
	out = p.Query()
	assert.Equal(t, "somewhere-else", out.DataSource)
	assert.Nil(t, out.Context)
	assert.Nil(t, out.Filter)
}

func TestPrecompileIntervals(t *testing.T) {
	c, _ := newTestCompiler(t)

	q := baseQuery(t)
	q.Intervals = nil
	_, err := c.Precompile(q, testutil.AppIDs(1), false)
	assert.True(t, qerr.IsKeyMissing(err))

	q = baseQuery(t)
	q.RelativeIntervals = []interval.RelativeTimeInterval{{
		BeginningDate: interval.RelativeDate{Component: interval.ComponentDay, Offset: -7, Position: interval.PositionBeginning},
		EndDate:       interval.RelativeDate{Component: interval.ComponentDay, Offset: 0, Position: interval.PositionEnd},
	}}
	_, err = c.Precompile(q, testutil.AppIDs(1), false)
	assert.True(t, qerr.IsKeyMissing(err))
}

func TestPrecompileClearsExtensionFields(t *testing.T) {
	appID := testutil.AppID(3)
	steps := []queryir.Filter{sel("type", "a"), sel("type", "b")}

	queries := map[string]func(q *query.CustomQuery){
		"timeseries": func(q *query.CustomQuery) {},
		"groupBy": func(q *query.CustomQuery) {
			q.QueryType = query.QueryTypeGroupBy
		},
		"funnel": func(q *query.CustomQuery) {
			q.QueryType = query.QueryTypeFunnel
			q.Steps = steps
			q.StepNames = []string{"A", "B"}
		},
		"retention": func(q *query.CustomQuery) {
			q.QueryType = query.QueryTypeRetention
		},
		"experiment": func(q *query.CustomQuery) {
			q.QueryType = query.QueryTypeExperiment
			q.Sample1 = &query.NamedFilter{Name: "A", Filter: sel("type", "a")}
			q.Sample2 = &query.NamedFilter{Name: "B", Filter: sel("type", "b")}
			q.SuccessCriterion = &query.NamedFilter{Name: "S", Filter: sel("type", "s")}
		},
	}

	for name, setup := range queries {
		t.Run(name, func(t *testing.T) {
			c, _ := newTestCompiler(t)
			q := baseQuery(t)
			q.BaseFilters = policy(query.BaseFiltersThisApp)
			q.AppID = &appID
			q.TestMode = queryir.Ptr(false)
			setup(q)

			p, err := c.Precompile(q, nil, false)
			require.NoError(t, err)
			out := p.Query()

			assert.Nil(t, out.AppID)
			assert.Nil(t, out.TestMode)
			assert.Nil(t, out.Steps)
			assert.Nil(t, out.StepNames)
			assert.Empty(t, out.ExtensionFieldsSet())
			assert.False(t, out.QueryType.IsVirtual())
			assert.Equal(t, q.QueryType, p.SourceQueryType)

			// The input is untouched.
			assert.Equal(t, &appID, q.AppID)
		})
	}
}

func TestPrecompileLowersConvenienceAggregators(t *testing.T) {
	c, _ := newTestCompiler(t)
	q := baseQuery(t)
	q.Aggregations = []queryir.Aggregator{&queryir.UserCount{}, &queryir.EventCount{}, &queryir.Histogram{}}

	p, err := c.Precompile(q, testutil.AppIDs(1), false)
	require.NoError(t, err)
	out := p.Query()

	require.Len(t, out.Aggregations, 3)
	assert.Equal(t, &queryir.ThetaSketch{Name: "Users", FieldName: "clientUser"}, out.Aggregations[0])
	assert.Equal(t, queryir.LongSum("Events", "count"), out.Aggregations[1])
	assert.IsType(t, &queryir.QuantilesDoublesSketch{}, out.Aggregations[2])
	require.Len(t, out.PostAggregations, 1)
	assert.Equal(t, "Histogram", out.PostAggregations[0].OutputName())
	for _, a := range out.Aggregations {
		assert.False(t, queryir.IsConvenience(a))
	}
}

func TestPrecompileTopNRequirements(t *testing.T) {
	c, _ := newTestCompiler(t)
	q := baseQuery(t)
	q.QueryType = query.QueryTypeTopN
	q.Metric = &queryir.NumericMetric{Metric: "Events"}
	q.Dimension = &queryir.DefaultDimension{Dimension: "appVersion", OutputName: "appVersion"}

	_, err := c.Precompile(q, testutil.AppIDs(1), false)
	require.Error(t, err)
	var qe *qerr.Error
	require.ErrorAs(t, err, &qe)
	assert.Equal(t, "threshold", qe.Field)

	q.Threshold = queryir.Ptr(10)
	_, err = c.Precompile(q, testutil.AppIDs(1), false)
	assert.NoError(t, err)
}

func TestFunnelCompilesCumulativeIntersections(t *testing.T) {
	c, _ := newTestCompiler(t)
	q := baseQuery(t)
	q.QueryType = query.QueryTypeFunnel
	q.Steps = []queryir.Filter{sel("type", "s0"), sel("type", "s1"), sel("type", "s2"), sel("type", "s3")}

	out, err := c.Compile(q, testutil.AppIDs(1), false)
	require.NoError(t, err)

	assert.Equal(t, query.QueryTypeGroupBy, out.QueryType)
	require.Len(t, out.PostAggregations, 4)
	estimate := out.PostAggregations[3].(*queryir.ThetaSketchEstimate)
	setOp := estimate.Field.(*queryir.ThetaSketchSetOp)
	assert.Len(t, setOp.Fields, 4)

	_, err = c.Compile(&query.CustomQuery{
		QueryType:   query.QueryTypeFunnel,
		Intervals:   q.Intervals,
		Granularity: interval.GranularityAll,
	}, testutil.AppIDs(1), false)
	assert.True(t, qerr.IsKeyMissing(err))
}

func TestCompileToRunnableResolvesRelativeIntervals(t *testing.T) {
	c, clock := newTestCompiler(t)
	q := baseQuery(t)
	q.Intervals = nil
	q.RelativeIntervals = []interval.RelativeTimeInterval{{
		BeginningDate: interval.RelativeDate{Component: interval.ComponentMonth, Offset: 0, Position: interval.PositionBeginning},
		EndDate:       interval.RelativeDate{Component: interval.ComponentMonth, Offset: 0, Position: interval.PositionEnd},
	}}

	p, err := c.Precompile(q, testutil.AppIDs(1), false)
	require.NoError(t, err)
	assert.NotNil(t, p.Query().RelativeIntervals)
	hash := p.Hash()

	out, err := c.CompileToRunnable(p)
	require.NoError(t, err)
	assert.Nil(t, out.RelativeIntervals)
	require.Len(t, out.Intervals, 1)
	assert.Equal(t, "2022-10-01T00:00:00.000Z/2022-10-31T23:59:59.000Z", out.Intervals[0].String())

	clock.Set(testutil.MustTime(t, "2022-11-02T00:00:00Z"))
	out, err = c.CompileToRunnable(p)
	require.NoError(t, err)
	assert.Equal(t, "2022-11-01T00:00:00.000Z/2022-11-30T23:59:59.000Z", out.Intervals[0].String())

	again, err := c.Precompile(q, testutil.AppIDs(1), false)
	require.NoError(t, err)
	assert.Equal(t, hash, again.Hash(), "precompiled hash must not depend on the clock")
}

func TestRelativeRetentionHashFollowsMonthWindow(t *testing.T) {
	c, clock := newTestCompiler(t)
	q := baseQuery(t)
	q.QueryType = query.QueryTypeRetention
	q.Intervals = nil
	q.RelativeIntervals = []interval.RelativeTimeInterval{{
		BeginningDate: interval.RelativeDate{Component: interval.ComponentMonth, Offset: -2, Position: interval.PositionBeginning},
		EndDate:       interval.RelativeDate{Component: interval.ComponentMonth, Offset: 0, Position: interval.PositionEnd},
	}}

	p, err := c.Precompile(q, testutil.AppIDs(1), false)
	require.NoError(t, err)

	clock.Set(testutil.MustTime(t, "2022-10-28T00:00:00Z"))
	sameMonth, err := c.Precompile(q, testutil.AppIDs(1), false)
	require.NoError(t, err)
	assert.Equal(t, p.Hash(), sameMonth.Hash())

	clock.Set(testutil.MustTime(t, "2022-11-02T00:00:00Z"))
	nextMonth, err := c.Precompile(q, testutil.AppIDs(1), false)
	require.NoError(t, err)
	assert.NotEqual(t, p.Hash(), nextMonth.Hash())
}

func TestCompileToRunnableQueryRequiresPrecompile(t *testing.T) {
	c, _ := newTestCompiler(t)
	appID := testutil.AppID(1)

	tests := map[string]func(q *query.CustomQuery){
		"appID":     func(q *query.CustomQuery) { q.AppID = &appID },
		"testMode":  func(q *query.CustomQuery) { q.TestMode = queryir.Ptr(false) },
		"steps":     func(q *query.CustomQuery) { q.Steps = []queryir.Filter{sel("type", "a")} },
		"stepNames": func(q *query.CustomQuery) { q.StepNames = []string{"a"} },
		"virtual":   func(q *query.CustomQuery) { q.QueryType = query.QueryTypeRetention },
	}
	for name, setup := range tests {
		t.Run(name, func(t *testing.T) {
			q := baseQuery(t)
			setup(q)
			_, err := c.CompileToRunnableQuery(q)
			assert.True(t, qerr.IsNotAllowed(err), "got %v", err)
		})
	}

	_, err := c.CompileToRunnable(nil)
	assert.True(t, qerr.IsNotAllowed(err))

	out, err := c.CompileToRunnableQuery(baseQuery(t))
	require.NoError(t, err)
	assert.Len(t, out.Intervals, 1)
}

func TestRetentionThroughCompiler(t *testing.T) {
	c, _ := newTestCompiler(t)
	q := baseQuery(t)
	q.QueryType = query.QueryTypeRetention

	p, err := c.Precompile(q, testutil.AppIDs(1), false)
	require.NoError(t, err)
	assert.Equal(t, query.QueryTypeRetention, p.SourceQueryType)
	assert.Len(t, p.Query().PostAggregations, 3)

	short, err := interval.Parse("2022-08-01T00:00:00.000Z/2022-08-15T00:00:00.000Z")
	require.NoError(t, err)
	q.Intervals = []interval.QueryTimeInterval{short}
	_, err = c.Precompile(q, testutil.AppIDs(1), false)
	assert.True(t, qerr.IsNotImplemented(err))
}

func TestPrecompiledMarshalsCanonically(t *testing.T) {
	c, _ := newTestCompiler(t)
	p, err := c.Precompile(baseQuery(t), testutil.AppIDs(1), false)
	require.NoError(t, err)

	data, err := p.MarshalJSON()
	require.NoError(t, err)
	assert.Equal(t, ir.HashCanonical(ir.DomainPrecompiled, data), p.Hash())
}

func TestCompileUsesConfiguredUserField(t *testing.T) {
	cfg := DefaultConfig()
	cfg.UserField = "userHash"
	cfg.DataSource = "signals-eu"
	c := New(WithConfig(cfg), WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))

	q := baseQuery(t)
	q.Aggregations = []queryir.Aggregator{&queryir.UserCount{Name: queryir.Ptr("People")}}
	out, err := c.Compile(q, testutil.AppIDs(1), false)
	require.NoError(t, err)

	assert.Equal(t, "signals-eu", out.DataSource)
	assert.Equal(t, &queryir.ThetaSketch{Name: "People", FieldName: "userHash"}, out.Aggregations[0])
}

func TestCheck(t *testing.T) {
	c, _ := newTestCompiler(t)

	t.Run("lowered convenience aggregators are valid", func(t *testing.T) {
		q := baseQuery(t)
		q.Aggregations = []queryir.Aggregator{&queryir.UserCount{}, &queryir.EventCount{}}
		result, err := c.Check(q)
		require.NoError(t, err)
		assert.True(t, result.Valid)
		assert.Empty(t, result.Warnings)
	})

	t.Run("dangling field access warns", func(t *testing.T) {
		q := baseQuery(t)
		q.PostAggregations = []queryir.PostAggregator{
			&queryir.Arithmetic{Name: "ratio", Fn: "/", Fields: []queryir.PostAggregator{
				&queryir.FieldAccess{FieldName: "Events"},
				&queryir.FieldAccess{FieldName: "Users"},
			}},
		}
		result, err := c.Check(q)
		require.NoError(t, err)
		assert.False(t, result.Valid)
		require.Len(t, result.Warnings, 1)
		assert.Contains(t, result.Warnings[0], `"Users"`)
	})

	t.Run("structural errors are returned", func(t *testing.T) {
		q := baseQuery(t)
		q.Intervals = nil
		_, err := c.Check(q)
		assert.True(t, qerr.IsKeyMissing(err))
	})

	t.Run("no organization needed", func(t *testing.T) {
		q := baseQuery(t)
		q.BaseFilters = policy(query.BaseFiltersThisOrganization)
		_, err := c.Check(q)
		assert.NoError(t, err)
	})
}
