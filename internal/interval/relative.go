package interval

import (
	"encoding/json"
	"fmt"
	"time"
)

// Position selects where inside a component a relative date lands.
type Position string

const (
	// PositionBeginning is the first instant of the component.
	PositionBeginning Position = "beginning"
	// PositionEnd is the last second of the component.
	PositionEnd Position = "end"
)

// UnmarshalJSON rejects unknown positions.
func (p *Position) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("position: %w", err)
	}
	switch Position(s) {
	case PositionBeginning, PositionEnd:
		*p = Position(s)
		return nil
	default:
		return fmt.Errorf("position: unknown value %q", s)
	}
}

// RelativeDate is a point in time expressed relative to "now": shift by
// Offset units of Component, then snap to Position of that component.
type RelativeDate struct {
	Component Component `json:"component"`
	Offset    int       `json:"offset"`
	Position  Position  `json:"position"`
}

// Resolve returns the absolute instant for now.
func (d RelativeDate) Resolve(now time.Time) time.Time {
	shifted := Add(now.UTC(), d.Component, d.Offset)
	if d.Position == PositionEnd {
		return EndOf(shifted, d.Component)
	}
	return BeginningOf(shifted, d.Component)
}

// RelativeTimeInterval is a window whose bounds are relative dates.
type RelativeTimeInterval struct {
	BeginningDate RelativeDate `json:"beginningDate"`
	EndDate       RelativeDate `json:"endDate"`
}

// Resolve returns the absolute interval for now.
func (r RelativeTimeInterval) Resolve(now time.Time) QueryTimeInterval {
	return QueryTimeInterval{Begin: r.BeginningDate.Resolve(now), End: r.EndDate.Resolve(now)}
}

// ResolveAll resolves every interval against the same instant.
func ResolveAll(intervals []RelativeTimeInterval, now time.Time) []QueryTimeInterval {
	out := make([]QueryTimeInterval, 0, len(intervals))
	for _, r := range intervals {
		out = append(out, r.Resolve(now))
	}
	return out
}
