// Package interval implements the time arithmetic of the query language:
// absolute intervals, granularity-aligned segments and relative dates.
//
// Every computation uses UTC and ISO-8601 weeks. Timestamps are written in
// the engine's wire form, 2006-01-02T15:04:05.000Z.
package interval

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/roach88/tdq/internal/qerr"
)

// WireLayout is the timestamp layout used on the wire.
const WireLayout = "2006-01-02T15:04:05.000Z"

var parseLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02",
	"2006-01",
	"2006",
}

// extendedYear matches timestamps whose year is outside 0000-9999, as in the
// engine's "eternity" interval.
var extendedYear = regexp.MustCompile(`^([+-]?\d+)-(\d{2})-(\d{2})T(\d{2}):(\d{2}):(\d{2})(?:\.(\d{1,9}))?Z$`)

// FormatTime renders t in the wire layout.
func FormatTime(t time.Time) string {
	return t.UTC().Format(WireLayout)
}

// ParseTime parses a single wire timestamp. Date-only, year-month and year
// forms are accepted and resolve to their first instant.
func ParseTime(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range parseLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	if t, ok := parseExtendedYear(s); ok {
		return t, nil
	}
	return time.Time{}, fmt.Errorf("interval: cannot parse timestamp %q", s)
}

func parseExtendedYear(s string) (time.Time, bool) {
	m := extendedYear.FindStringSubmatch(s)
	if m == nil {
		return time.Time{}, false
	}
	var parts [6]int
	for i := range parts {
		n, err := strconv.Atoi(m[i+1])
		if err != nil {
			return time.Time{}, false
		}
		parts[i] = n
	}
	nanos := 0
	if frac := m[7]; frac != "" {
		frac += strings.Repeat("0", 9-len(frac))
		nanos, _ = strconv.Atoi(frac)
	}
	return time.Date(parts[0], time.Month(parts[1]), parts[2], parts[3], parts[4], parts[5], nanos, time.UTC), true
}

// QueryTimeInterval is an absolute time window. Begin is inclusive and End
// is exclusive, following the engine's convention.
type QueryTimeInterval struct {
	Begin time.Time
	End   time.Time
}

// New returns the interval [begin, end) normalised to UTC.
func New(begin, end time.Time) QueryTimeInterval {
	return QueryTimeInterval{Begin: begin.UTC(), End: end.UTC()}
}

// Parse decodes the "begin/end" wire form.
func Parse(s string) (QueryTimeInterval, error) {
	begin, end, ok := strings.Cut(s, "/")
	if !ok {
		return QueryTimeInterval{}, fmt.Errorf("interval: %q is not of the form begin/end", s)
	}
	b, err := ParseTime(begin)
	if err != nil {
		return QueryTimeInterval{}, err
	}
	e, err := ParseTime(end)
	if err != nil {
		return QueryTimeInterval{}, err
	}
	return QueryTimeInterval{Begin: b, End: e}, nil
}

// String renders the "begin/end" wire form.
func (i QueryTimeInterval) String() string {
	return FormatTime(i.Begin) + "/" + FormatTime(i.End)
}

// MarshalJSON encodes the interval as a single string.
func (i QueryTimeInterval) MarshalJSON() ([]byte, error) {
	return json.Marshal(i.String())
}

// UnmarshalJSON decodes the "begin/end" string form.
func (i *QueryTimeInterval) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("interval: %w", err)
	}
	parsed, err := Parse(s)
	if err != nil {
		return err
	}
	*i = parsed
	return nil
}

// Compare orders intervals by begin, then by end.
func (i QueryTimeInterval) Compare(other QueryTimeInterval) int {
	if c := i.Begin.Compare(other.Begin); c != 0 {
		return c
	}
	return i.End.Compare(other.End)
}

// Equal reports whether both bounds are the same instant.
func (i QueryTimeInterval) Equal(other QueryTimeInterval) bool {
	return i.Compare(other) == 0
}

// TimeSegments enumerates the granularity-aligned segments starting at the
// aligned beginning of i and ending before i.End. Only hour, day, month and
// year granularities are supported.
func (i QueryTimeInterval) TimeSegments(g Granularity) ([]TimeSegment, error) {
	c, ok := g.segmentComponent()
	if !ok {
		return nil, qerr.NotImplemented("granularity %s not implemented for windowed caching", g)
	}
	var segments []TimeSegment
	for current := BeginningOf(i.Begin, c); current.Before(i.End); current = Add(current, c, 1) {
		segments = append(segments, TimeSegment{Begin: current, Granularity: g})
	}
	return segments, nil
}
