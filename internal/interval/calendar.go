package interval

import (
	"encoding/json"
	"fmt"
	"time"
)

// Component is a calendar unit used for relative dates and segmentation.
//
// All calendar arithmetic is done in UTC with ISO-8601 weeks (weeks start on
// Monday) so that client and engine agree on boundaries.
type Component string

const (
	ComponentHour    Component = "hour"
	ComponentDay     Component = "day"
	ComponentWeek    Component = "week"
	ComponentMonth   Component = "month"
	ComponentQuarter Component = "quarter"
	ComponentYear    Component = "year"
)

// UnmarshalJSON rejects unknown components.
func (c *Component) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("component: %w", err)
	}
	switch Component(s) {
	case ComponentHour, ComponentDay, ComponentWeek, ComponentMonth, ComponentQuarter, ComponentYear:
		*c = Component(s)
		return nil
	default:
		return fmt.Errorf("component: unknown value %q", s)
	}
}

// Add shifts t by n units of c. Month-based components clamp the day to the
// last day of the target month (Jan 31 + 1 month = Feb 28/29).
func Add(t time.Time, c Component, n int) time.Time {
	t = t.UTC()
	switch c {
	case ComponentHour:
		return t.Add(time.Duration(n) * time.Hour)
	case ComponentDay:
		return t.AddDate(0, 0, n)
	case ComponentWeek:
		return t.AddDate(0, 0, 7*n)
	case ComponentMonth:
		return addMonths(t, n)
	case ComponentQuarter:
		return addMonths(t, 3*n)
	case ComponentYear:
		return addMonths(t, 12*n)
	default:
		return t
	}
}

// BeginningOf returns the first instant of the component containing t.
func BeginningOf(t time.Time, c Component) time.Time {
	t = t.UTC()
	y, m, d := t.Date()
	switch c {
	case ComponentHour:
		return time.Date(y, m, d, t.Hour(), 0, 0, 0, time.UTC)
	case ComponentDay:
		return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	case ComponentWeek:
		sinceMonday := (int(t.Weekday()) + 6) % 7
		return time.Date(y, m, d-sinceMonday, 0, 0, 0, 0, time.UTC)
	case ComponentMonth:
		return time.Date(y, m, 1, 0, 0, 0, 0, time.UTC)
	case ComponentQuarter:
		first := time.Month((int(m)-1)/3*3 + 1)
		return time.Date(y, first, 1, 0, 0, 0, 0, time.UTC)
	case ComponentYear:
		return time.Date(y, time.January, 1, 0, 0, 0, 0, time.UTC)
	default:
		return t
	}
}

// EndOf returns the last second of the component containing t.
func EndOf(t time.Time, c Component) time.Time {
	next := Add(BeginningOf(t, c), c, 1)
	return next.Add(-time.Second)
}

// MonthsBetween returns the number of whole calendar months from a to b,
// or 0 when b precedes a.
func MonthsBetween(a, b time.Time) int {
	a, b = a.UTC(), b.UTC()
	if b.Before(a) {
		return 0
	}
	n := (b.Year()-a.Year())*12 + int(b.Month()) - int(a.Month())
	if addMonths(a, n).After(b) {
		n--
	}
	return n
}

func addMonths(t time.Time, n int) time.Time {
	y, m, d := t.Date()
	total := int(m) - 1 + n
	years := total / 12
	months := total % 12
	if months < 0 {
		months += 12
		years--
	}
	ny, nm := y+years, time.Month(months+1)
	if last := daysIn(ny, nm); d > last {
		d = last
	}
	return time.Date(ny, nm, d, t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), time.UTC)
}

func daysIn(y int, m time.Month) int {
	return time.Date(y, m+1, 0, 0, 0, 0, 0, time.UTC).Day()
}
