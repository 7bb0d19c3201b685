package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/tdq/internal/interval"
)

// SegmentsOptions holds flags for the segments command.
type SegmentsOptions struct {
	*RootOptions
	Granularity string
}

// SegmentsResult lists the segments of the given intervals and the minimal
// intervals that cover them again.
type SegmentsResult struct {
	Segments []interval.TimeSegment      `json:"segments"`
	Merged   interval.IntervalsContainer `json:"merged"`
}

// NewSegmentsCommand creates the segments command.
func NewSegmentsCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &SegmentsOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "segments <interval>...",
		Short: "Split intervals into granularity-aligned segments",
		Long: `Split intervals into granularity-aligned time segments, then merge
the segments back into the minimal covering intervals.

Intervals are written begin/end in ISO 8601; date-only bounds are allowed.
Only hour, day, month and year granularities have segments.

Examples:
  tdq segments --granularity day 2022-07-28/2022-07-30 2022-07-31/2022-08-04
  tdq segments --granularity month --format json 2022-01-01/2023-01-01`,
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSegments(opts, args, cmd)
		},
	}

	cmd.Flags().StringVarP(&opts.Granularity, "granularity", "g", string(interval.GranularityDay), "segment granularity (hour|day|month|year)")

	return cmd
}

func runSegments(opts *SegmentsOptions, args []string, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)

	g := interval.Granularity(opts.Granularity)
	if !g.Valid() {
		return outputCommandError(formatter, ErrCodeBadArgument, fmt.Sprintf("unknown granularity %q", opts.Granularity))
	}

	intervals := make([]interval.QueryTimeInterval, 0, len(args))
	for _, arg := range args {
		i, err := interval.Parse(arg)
		if err != nil {
			return outputCommandError(formatter, ErrCodeBadArgument, err.Error())
		}
		intervals = append(intervals, i)
	}

	segments, err := interval.NewIntervalsContainer(intervals).TimeSegments(g)
	if err != nil {
		return outputCommandError(formatter, MapErrorToCode(err), err.Error())
	}
	merged, err := interval.NewIntervalsContainerFromSegments(segments)
	if err != nil {
		return outputCommandError(formatter, MapErrorToCode(err), err.Error())
	}
	formatter.VerboseLog("%d interval(s) -> %d segment(s) -> %d interval(s)", len(intervals), len(segments), len(merged.Intervals))

	result := SegmentsResult{Segments: segments, Merged: merged}
	if result.Segments == nil {
		result.Segments = []interval.TimeSegment{}
	}
	if formatter.Format == "json" {
		return formatter.Success(result)
	}

	w := formatter.Writer
	fmt.Fprintf(w, "Segments (%s):\n", g)
	for _, s := range segments {
		fmt.Fprintf(w, "  %s\n", interval.FormatTime(s.Begin))
	}
	fmt.Fprintln(w, "Merged:")
	for _, i := range merged.Intervals {
		fmt.Fprintf(w, "  %s\n", i)
	}
	return nil
}
