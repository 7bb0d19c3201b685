package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/tdq/internal/ingest"
	"github.com/roach88/tdq/internal/interval"
	"github.com/roach88/tdq/internal/ir"
)

// ReindexOptions holds flags for the reindex command.
type ReindexOptions struct {
	*RootOptions
	AppIDs      []string
	Source      string
	Target      string
	Interval    string
	MaxSubTasks int
}

// NewReindexCommand creates the reindex command.
func NewReindexCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ReindexOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "reindex",
		Short: "Build an ingestion task that moves apps into their own data source",
		Long: `Build an index_parallel ingestion task that copies the rows of the
given apps out of the shared data source into a data source of their own.

The task is printed as canonical JSON, ready to submit to the engine's
task endpoint.

Examples:
  tdq reindex --app-id 73b9ca2a-30e6-46c9-b6b8-9034e68aad21 \
    --target org-acme --interval 2022-01-01/2023-01-01`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReindex(opts, cmd)
		},
	}

	cmd.Flags().StringArrayVar(&opts.AppIDs, "app-id", nil, "app ID to move (repeatable)")
	cmd.Flags().StringVar(&opts.Source, "source", "", "shared data source to read (default: config data source)")
	cmd.Flags().StringVar(&opts.Target, "target", "", "data source to write")
	cmd.Flags().StringVar(&opts.Interval, "interval", "", "interval to copy, begin/end in ISO 8601")
	cmd.Flags().IntVar(&opts.MaxSubTasks, "max-subtasks", 0, "maximum concurrent sub tasks (0 = engine default)")

	return cmd
}

func runReindex(opts *ReindexOptions, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)

	appIDs, err := parseAppIDs(opts.AppIDs)
	if err != nil {
		return outputCommandError(formatter, ErrCodeBadArgument, err.Error())
	}
	if opts.Interval == "" {
		return outputCommandError(formatter, ErrCodeBadArgument, "--interval is required")
	}
	window, err := interval.Parse(opts.Interval)
	if err != nil {
		return outputCommandError(formatter, ErrCodeBadArgument, err.Error())
	}
	if opts.MaxSubTasks < 0 {
		return outputCommandError(formatter, ErrCodeBadArgument, "--max-subtasks must not be negative")
	}

	source := opts.Source
	if source == "" {
		cfg, err := opts.loadConfig()
		if err != nil {
			return outputCommandError(formatter, MapErrorToCode(err), err.Error())
		}
		source = cfg.DataSource
	}

	task, err := ingest.ReindexTask(appIDs, ingest.ReindexOptions{
		Source:      source,
		Target:      opts.Target,
		Interval:    window,
		MaxSubTasks: opts.MaxSubTasks,
	})
	if err != nil {
		return outputCommandError(formatter, MapErrorToCode(err), err.Error())
	}
	formatter.VerboseLog("Reindexing %d app(s) from %s into %s", len(appIDs), source, opts.Target)

	data, err := ir.MarshalCanonical(task)
	if err != nil {
		return outputCommandError(formatter, ErrCodeGeneric, fmt.Sprintf("encoding task: %v", err))
	}
	if formatter.Format == "json" {
		return formatter.Success(json.RawMessage(data))
	}
	fmt.Fprintln(formatter.Writer, string(data))
	return nil
}
