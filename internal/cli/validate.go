package cli

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/roach88/tdq/internal/compiler"
)

// DocumentValidation is the validation outcome of one document.
type DocumentValidation struct {
	Path     string    `json:"path"`
	Valid    bool      `json:"valid"`
	Warnings []string  `json:"warnings,omitempty"`
	Error    *CLIError `json:"error,omitempty"`

	err error
}

// ValidationResult holds validation results.
type ValidationResult struct {
	Valid     bool                 `json:"valid"`
	Documents []DocumentValidation `json:"documents"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate <path>...",
		Short: "Validate query documents without tenant scoping",
		Long: `Validate query documents without compiling them for a tenant.

Runs the structural compile steps (interval and topN checks, funnel,
retention and experiment expansion, convenience lowering) and then checks
the aggregation trees: unique output names, field accesses that resolve,
and arithmetic with at least two operands. Faster than compile for
development feedback, and needs no organization.`,
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(rootOpts, args, cmd)
		},
	}

	return cmd
}

func runValidate(opts *RootOptions, paths []string, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)

	cfg, err := opts.loadConfig()
	if err != nil {
		return outputCommandError(formatter, MapErrorToCode(err), err.Error())
	}
	files, err := FindQueries(paths)
	if err != nil {
		return outputCommandError(formatter, MapErrorToCode(err), err.Error())
	}
	formatter.VerboseLog("Found %d document(s)", len(files))

	// Warnings are reported in the result, not logged.
	c := compiler.New(
		compiler.WithConfig(cfg),
		compiler.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
	)

	result := ValidationResult{Valid: true}
	for _, doc := range LoadQueries(files) {
		formatter.VerboseLog("Validating %s", doc.Path)
		v := validateOne(c, doc)
		result.Documents = append(result.Documents, v)
		if !v.Valid {
			result.Valid = false
		}
	}

	return outputValidationResult(formatter, result)
}

func validateOne(c *compiler.Compiler, doc LoadedQuery) DocumentValidation {
	out := DocumentValidation{Path: doc.Path}
	err := doc.Err
	if err == nil {
		res, cerr := c.Check(doc.Query)
		if cerr == nil {
			out.Valid = res.Valid
			out.Warnings = res.Warnings
			return out
		}
		err = cerr
	}
	out.err = err
	out.Error = &CLIError{Code: MapErrorToCode(err), Message: err.Error()}
	return out
}

func outputValidationResult(formatter *OutputFormatter, result ValidationResult) error {
	invalid := 0
	for _, d := range result.Documents {
		if !d.Valid {
			invalid++
		}
	}

	if formatter.Format == "json" {
		resp := CLIResponse{Status: statusOf(invalid), Data: result}
		if invalid > 0 {
			resp.Error = &CLIError{Code: ErrCodeValidation, Message: fmt.Sprintf("%d document(s) invalid", invalid)}
		}
		if err := formatter.encode(resp); err != nil {
			return err
		}
		return validationExitError(invalid)
	}

	w := formatter.Writer
	for _, d := range result.Documents {
		if d.Valid {
			fmt.Fprintf(w, "✓ %s\n", d.Path)
			continue
		}
		fmt.Fprintf(w, "✗ %s\n", d.Path)
		if d.Error != nil {
			if loc := errorLocation(d.err); loc != "" {
				fmt.Fprintf(w, "  %s\n", loc)
			}
			fmt.Fprintf(w, "  %s: %s\n", d.Error.Code, d.Error.Message)
		}
		for _, warning := range d.Warnings {
			fmt.Fprintf(w, "  %s: %s\n", ErrCodeValidation, warning)
		}
	}

	if invalid == 0 {
		fmt.Fprintln(w, "✓ All documents valid")
	}
	return validationExitError(invalid)
}

func validationExitError(invalid int) error {
	if invalid == 0 {
		return nil
	}
	return NewExitError(ExitFailure, fmt.Sprintf("validation failed for %d document(s)", invalid))
}
