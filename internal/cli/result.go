package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/roach88/tdq/internal/ir"
	"github.com/roach88/tdq/internal/query"
	"github.com/roach88/tdq/internal/result"
)

// ResultOptions holds flags for the result command.
type ResultOptions struct {
	*RootOptions
	QueryType string
}

// NewResultCommand creates the result command.
func NewResultCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ResultOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "result <response-file>",
		Short: "Convert an engine response into a tagged query result",
		Long: `Convert the engine's raw JSON reply to a runnable query into the
tagged query result stored for it. Use "-" to read the reply from stdin.

Funnel, retention and experiment queries run as groupBy, so their replies
parse as groupBy results.

Examples:
  tdq result --query-type topN response.json
  curl ... | tdq result --query-type timeseries -`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runResult(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.QueryType, "query-type", string(query.QueryTypeTimeseries), "queryType of the query that produced the reply")

	return cmd
}

func runResult(opts *ResultOptions, path string, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)

	qt := query.QueryType(opts.QueryType)
	if !qt.Valid() {
		return outputCommandError(formatter, ErrCodeBadArgument, fmt.Sprintf("unknown query type %q", opts.QueryType))
	}

	var (
		data []byte
		err  error
	)
	if path == "-" {
		data, err = io.ReadAll(cmd.InOrStdin())
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return outputCommandError(formatter, MapErrorToCode(err), fmt.Sprintf("reading response: %v", err))
	}

	res, err := result.ParseResponse(qt, data)
	if err != nil {
		return outputCommandError(formatter, ErrCodeDecodeFailed, err.Error())
	}
	formatter.VerboseLog("Parsed %s", res.Type())

	out, err := ir.MarshalCanonical(res)
	if err != nil {
		return outputCommandError(formatter, ErrCodeGeneric, fmt.Sprintf("encoding result: %v", err))
	}
	if formatter.Format == "json" {
		return formatter.Success(json.RawMessage(out))
	}
	fmt.Fprintln(formatter.Writer, string(out))
	return nil
}
