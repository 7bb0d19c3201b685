package interval

import (
	"cmp"
	"encoding/json"
	"fmt"
	"slices"
	"time"

	"github.com/roach88/tdq/internal/qerr"
)

// TimeSegment is one atomic, granularity-aligned unit of time.
type TimeSegment struct {
	Begin       time.Time
	Granularity Granularity
}

type timeSegmentWire struct {
	BeginningDate string      `json:"beginningDate"`
	Duration      Granularity `json:"duration"`
}

// MarshalJSON encodes the segment as {"beginningDate": ..., "duration": ...}.
func (s TimeSegment) MarshalJSON() ([]byte, error) {
	return json.Marshal(timeSegmentWire{BeginningDate: FormatTime(s.Begin), Duration: s.Granularity})
}

// UnmarshalJSON decodes the segment wire form.
func (s *TimeSegment) UnmarshalJSON(data []byte) error {
	var w timeSegmentWire
	if err := json.Unmarshal(data, &w); err != nil {
		return fmt.Errorf("time segment: %w", err)
	}
	begin, err := ParseTime(w.BeginningDate)
	if err != nil {
		return fmt.Errorf("time segment: %w", err)
	}
	*s = TimeSegment{Begin: begin, Granularity: w.Duration}
	return nil
}

// End returns the exclusive end of the segment.
func (s TimeSegment) End() (time.Time, error) {
	c, ok := s.Granularity.segmentComponent()
	if !ok {
		return time.Time{}, qerr.NotImplemented("granularity %s has no segment length", s.Granularity)
	}
	return Add(s.Begin, c, 1), nil
}

// NormalizeSegments sorts segments by start and removes duplicates.
func NormalizeSegments(segments []TimeSegment) []TimeSegment {
	out := slices.Clone(segments)
	slices.SortFunc(out, func(a, b TimeSegment) int {
		if c := a.Begin.Compare(b.Begin); c != 0 {
			return c
		}
		return cmp.Compare(a.Granularity, b.Granularity)
	})
	return slices.CompactFunc(out, func(a, b TimeSegment) bool {
		return a.Begin.Equal(b.Begin) && a.Granularity == b.Granularity
	})
}

// MergeSegments collapses sorted, contiguous runs of segments into the
// minimal set of covering intervals. A gap between two segments starts a
// new interval. All segments must share one granularity.
func MergeSegments(segments []TimeSegment) ([]QueryTimeInterval, error) {
	normalized := NormalizeSegments(segments)
	if len(normalized) == 0 {
		return []QueryTimeInterval{}, nil
	}

	g := normalized[0].Granularity
	c, ok := g.segmentComponent()
	if !ok {
		return nil, qerr.NotImplemented("granularity %s not implemented for windowed caching", g)
	}

	var intervals []QueryTimeInterval
	current := QueryTimeInterval{Begin: normalized[0].Begin, End: normalized[0].Begin}
	for _, seg := range normalized {
		if seg.Granularity != g {
			return nil, qerr.NotImplemented("merging segments of granularities %s and %s", g, seg.Granularity)
		}
		if next := Add(current.End, c, 1); seg.Begin.After(next) {
			current.End = next
			intervals = append(intervals, current)
			current = QueryTimeInterval{Begin: seg.Begin, End: seg.Begin}
		}
		if seg.Begin.After(current.End) {
			current.End = seg.Begin
		}
	}
	current.End = Add(current.End, c, 1)
	return append(intervals, current), nil
}

// ContainerTypeIntervals is the only intervals container variant.
const ContainerTypeIntervals = "intervals"

// IntervalsContainer is the engine's {"type":"intervals"} wrapper.
type IntervalsContainer struct {
	Type      string              `json:"type"`
	Intervals []QueryTimeInterval `json:"intervals"`
}

// NewIntervalsContainer wraps intervals.
func NewIntervalsContainer(intervals []QueryTimeInterval) IntervalsContainer {
	return IntervalsContainer{Type: ContainerTypeIntervals, Intervals: intervals}
}

// NewIntervalsContainerFromSegments builds the minimal covering container
// for segments.
func NewIntervalsContainerFromSegments(segments []TimeSegment) (IntervalsContainer, error) {
	intervals, err := MergeSegments(segments)
	if err != nil {
		return IntervalsContainer{}, err
	}
	return NewIntervalsContainer(intervals), nil
}

// UnmarshalJSON validates the container type.
func (c *IntervalsContainer) UnmarshalJSON(data []byte) error {
	type plain IntervalsContainer
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return fmt.Errorf("intervals container: %w", err)
	}
	if p.Type != ContainerTypeIntervals {
		return fmt.Errorf("intervals container: unknown type %q", p.Type)
	}
	*c = IntervalsContainer(p)
	return nil
}

// TimeSegments returns the sorted, deduplicated union of the segments of
// every contained interval.
func (c IntervalsContainer) TimeSegments(g Granularity) ([]TimeSegment, error) {
	var all []TimeSegment
	for _, i := range c.Intervals {
		segs, err := i.TimeSegments(g)
		if err != nil {
			return nil, err
		}
		all = append(all, segs...)
	}
	return NormalizeSegments(all), nil
}
