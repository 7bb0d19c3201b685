package generator

import (
	"time"

	"github.com/roach88/tdq/internal/interval"
	"github.com/roach88/tdq/internal/qerr"
	"github.com/roach88/tdq/internal/query"
	"github.com/roach88/tdq/internal/queryir"
)

// Retention expands a retention document over the calendar months of its
// first interval. Each month gets a user sketch named "_<begin>_<end>" and
// every pair of months (a, b) with a <= b gets an intersection estimate
// named "retention_<a>_<b>", the upper triangle of the retention matrix.
//
// Relative intervals are resolved against opts.Now to choose the months;
// the returned document keeps them for final compilation.
func Retention(q *query.CustomQuery, opts Options) (*query.CustomQuery, error) {
	window, err := retentionWindow(q, opts)
	if err != nil {
		return nil, err
	}

	if interval.MonthsBetween(window.Begin, window.End) < 1 {
		return nil, qerr.NotImplemented(
			"retention queries need at least one month between begin and end, got %s", window)
	}

	months := RetentionMonths(window.Begin, window.End)
	aggs := make([]queryir.Aggregator, 0, len(months))
	for _, month := range months {
		aggs = append(aggs, &queryir.Filtered{
			Filter: &queryir.Interval{
				Dimension: "__time",
				Intervals: []interval.QueryTimeInterval{month},
			},
			Aggregator: userSketch(monthSketchName(month), opts),
		})
	}

	var posts []queryir.PostAggregator
	for r, row := range months {
		for _, column := range months[r:] {
			posts = append(posts, &queryir.ThetaSketchEstimate{
				Name: "retention_" + monthTitle(row) + "_" + monthTitle(column),
				Field: &queryir.ThetaSketchSetOp{
					Func: queryir.SetOpIntersect,
					Fields: []queryir.PostAggregator{
						queryir.NewFieldAccess(monthSketchName(row)),
						queryir.NewFieldAccess(monthSketchName(column)),
					},
				},
			})
		}
	}

	out := q.Clone()
	out.QueryType = query.QueryTypeGroupBy
	out.Granularity = interval.GranularityAll
	out.Aggregations = uniqued(aggs)
	out.PostAggregations = uniqued(posts)
	return out, nil
}

// RetentionMonths returns the calendar months from the month of begin up
// to MonthsBetween(begin, end) months later. Each month runs from its first
// instant to its last second.
func RetentionMonths(begin, end time.Time) []interval.QueryTimeInterval {
	n := interval.MonthsBetween(begin, end)
	months := make([]interval.QueryTimeInterval, 0, n+1)
	for i := 0; i <= n; i++ {
		shifted := interval.Add(begin, interval.ComponentMonth, i)
		start := interval.BeginningOf(shifted, interval.ComponentMonth)
		months = append(months, interval.New(start, interval.EndOf(start, interval.ComponentMonth)))
	}
	return months
}

func retentionWindow(q *query.CustomQuery, opts Options) (interval.QueryTimeInterval, error) {
	intervals := q.Intervals
	if intervals == nil && q.RelativeIntervals != nil {
		intervals = interval.ResolveAll(q.RelativeIntervals, opts.now())
	}
	if len(intervals) == 0 {
		return interval.QueryTimeInterval{}, qerr.KeyMissing("intervals", "retention queries need an interval")
	}
	return intervals[0], nil
}

func monthTitle(month interval.QueryTimeInterval) string {
	return interval.FormatTime(month.Begin) + "_" + interval.FormatTime(month.End)
}

func monthSketchName(month interval.QueryTimeInterval) string {
	return "_" + monthTitle(month)
}
