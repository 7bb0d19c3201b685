package interval

import (
	"encoding/json"
	"fmt"
)

// Granularity is the bucketing granularity of a query or a time segment.
type Granularity string

const (
	GranularityAll           Granularity = "all"
	GranularityNone          Granularity = "none"
	GranularitySecond        Granularity = "second"
	GranularityMinute        Granularity = "minute"
	GranularityFifteenMinute Granularity = "fifteen_minute"
	GranularityThirtyMinute  Granularity = "thirty_minute"
	GranularityHour          Granularity = "hour"
	GranularityDay           Granularity = "day"
	GranularityWeek          Granularity = "week"
	GranularityMonth         Granularity = "month"
	GranularityQuarter       Granularity = "quarter"
	GranularityYear          Granularity = "year"
)

var validGranularities = map[Granularity]bool{
	GranularityAll:           true,
	GranularityNone:          true,
	GranularitySecond:        true,
	GranularityMinute:        true,
	GranularityFifteenMinute: true,
	GranularityThirtyMinute:  true,
	GranularityHour:          true,
	GranularityDay:           true,
	GranularityWeek:          true,
	GranularityMonth:         true,
	GranularityQuarter:       true,
	GranularityYear:          true,
}

// Valid reports whether g is a known granularity.
func (g Granularity) Valid() bool {
	return validGranularities[g]
}

// UnmarshalJSON rejects unknown granularity names.
func (g *Granularity) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("granularity: %w", err)
	}
	if !Granularity(s).Valid() {
		return fmt.Errorf("granularity: unknown value %q", s)
	}
	*g = Granularity(s)
	return nil
}

// segmentComponent maps the granularities usable for segmentation to their
// calendar component. Only hour, day, month and year have a segment lowering.
func (g Granularity) segmentComponent() (Component, bool) {
	switch g {
	case GranularityHour:
		return ComponentHour, true
	case GranularityDay:
		return ComponentDay, true
	case GranularityMonth:
		return ComponentMonth, true
	case GranularityYear:
		return ComponentYear, true
	default:
		return "", false
	}
}
