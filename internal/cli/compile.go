package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/roach88/tdq/internal/compiler"
	"github.com/roach88/tdq/internal/ir"
)

// Compile stages.
const (
	StagePrecompile = "precompile"
	StageRunnable   = "runnable"
)

// compileParallelism bounds how many documents compile at once.
const compileParallelism = 8

// CompileOptions holds flags for the compile command.
type CompileOptions struct {
	*RootOptions
	OrganizationAppIDs []string
	SuperOrg           bool
	Stage              string
	Output             string // output file path, single document only

	// Clock allows overriding the compiler clock (for testing).
	// If nil, defaults to time.Now.
	Clock func() time.Time
}

// CompiledDocument is the compile outcome of one document.
type CompiledDocument struct {
	Path  string          `json:"path"`
	Stage string          `json:"stage"`
	Hash  string          `json:"hash,omitempty"`
	Query json.RawMessage `json:"query,omitempty"`
	Error *CLIError       `json:"error,omitempty"`

	err error
}

// CompilationResult holds the outcome of every document.
type CompilationResult struct {
	Documents []CompiledDocument `json:"documents"`
	Compiled  int                `json:"compiled"`
	Failed    int                `json:"failed"`
}

// NewCompileCommand creates the compile command.
func NewCompileCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &CompileOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "compile <path>...",
		Short: "Compile query documents to engine queries",
		Long: `Compile query documents to canonical engine JSON.

Each path is a JSON, YAML or CUE document, or a directory searched
recursively for them. Documents are scoped to the organization given by
--org-app-id (repeatable) and compiled concurrently.

With --stage precompile, relative intervals are kept and the output is
stable across runs; with --stage runnable (the default), they are resolved
against the current time.

Examples:
  tdq compile --org-app-id 73b9ca2a-30e6-46c9-b6b8-9034e68aad21 topn.json
  tdq compile --super-org --stage precompile ./queries
  tdq compile --config tdq.yaml -o compiled.json funnel.cue`,
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true, // Don't print usage on errors - we handle our own error output
		SilenceErrors: true, // Don't print errors - we handle our own error output
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCompile(cmd.Context(), opts, args, cmd)
		},
	}

	cmd.Flags().StringArrayVar(&opts.OrganizationAppIDs, "org-app-id", nil, "app ID of the calling organization (repeatable)")
	cmd.Flags().BoolVar(&opts.SuperOrg, "super-org", false, "compile for a super organization (allows noFilter)")
	cmd.Flags().StringVar(&opts.Stage, "stage", StageRunnable, "compile stage (precompile|runnable)")
	cmd.Flags().StringVarP(&opts.Output, "output", "o", "", "output file path")

	return cmd
}

func runCompile(ctx context.Context, opts *CompileOptions, paths []string, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)

	if opts.Stage != StagePrecompile && opts.Stage != StageRunnable {
		return outputCommandError(formatter, ErrCodeBadArgument, fmt.Sprintf("invalid stage %q: must be precompile or runnable", opts.Stage))
	}
	appIDs, err := parseAppIDs(opts.OrganizationAppIDs)
	if err != nil {
		return outputCommandError(formatter, ErrCodeBadArgument, err.Error())
	}
	cfg, err := opts.loadConfig()
	if err != nil {
		return outputCommandError(formatter, MapErrorToCode(err), err.Error())
	}

	files, err := FindQueries(paths)
	if err != nil {
		return outputCommandError(formatter, MapErrorToCode(err), err.Error())
	}
	if opts.Output != "" && len(files) != 1 {
		return outputCommandError(formatter, ErrCodeBadArgument, fmt.Sprintf("--output needs exactly one document, got %d", len(files)))
	}
	formatter.VerboseLog("Found %d document(s)", len(files))

	compilerOpts := []compiler.Option{
		compiler.WithConfig(cfg),
		compiler.WithLogger(opts.logger(formatter.GetErrWriter())),
	}
	if opts.Clock != nil {
		compilerOpts = append(compilerOpts, compiler.WithClock(opts.Clock))
	}
	c := compiler.New(compilerOpts...)

	result, err := compileAll(ctx, c, LoadQueries(files), appIDs, opts)
	if err != nil {
		return outputCommandError(formatter, ErrCodeGeneric, err.Error())
	}

	if opts.Output != "" && result.Failed == 0 {
		if err := os.WriteFile(opts.Output, result.Documents[0].Query, 0o644); err != nil {
			return outputCommandError(formatter, ErrCodeWriteFailed, fmt.Sprintf("writing output file: %v", err))
		}
	}

	return outputCompileResult(formatter, result, opts.Output)
}

// compileAll compiles every loaded document with bounded parallelism.
// Documents fail independently; the result keeps input order.
func compileAll(ctx context.Context, c *compiler.Compiler, loaded []LoadedQuery, appIDs []uuid.UUID, opts *CompileOptions) (*CompilationResult, error) {
	docs := make([]CompiledDocument, len(loaded))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(compileParallelism)
	for i := range loaded {
		doc := loaded[i]
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			docs[i] = compileOne(c, doc, appIDs, opts)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("compile documents: %w", err)
	}

	result := &CompilationResult{Documents: docs}
	for _, d := range docs {
		if d.err != nil {
			result.Failed++
		} else {
			result.Compiled++
		}
	}
	return result, nil
}

func compileOne(c *compiler.Compiler, doc LoadedQuery, appIDs []uuid.UUID, opts *CompileOptions) CompiledDocument {
	out := CompiledDocument{Path: doc.Path, Stage: opts.Stage}
	fail := func(err error) CompiledDocument {
		out.err = err
		out.Error = &CLIError{Code: MapErrorToCode(err), Message: err.Error()}
		return out
	}
	if doc.Err != nil {
		return fail(doc.Err)
	}

	p, err := c.Precompile(doc.Query, appIDs, opts.SuperOrg)
	if err != nil {
		return fail(err)
	}
	out.Hash = p.Hash()

	var data []byte
	if opts.Stage == StagePrecompile {
		data, err = ir.MarshalCanonical(p)
	} else {
		runnable, rerr := c.CompileToRunnable(p)
		if rerr != nil {
			return fail(rerr)
		}
		data, err = ir.MarshalCanonical(runnable)
	}
	if err != nil {
		return fail(err)
	}
	out.Query = data
	return out
}

func parseAppIDs(raw []string) ([]uuid.UUID, error) {
	ids := make([]uuid.UUID, 0, len(raw))
	for _, s := range raw {
		id, err := uuid.Parse(s)
		if err != nil {
			return nil, fmt.Errorf("invalid --org-app-id %q: %v", s, err)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// outputCompileResult prints every document. A single compiled document is
// printed bare in text mode so the output can be piped.
func outputCompileResult(formatter *OutputFormatter, result *CompilationResult, outputFile string) error {
	if formatter.Format == "json" {
		if err := formatter.encode(CLIResponse{Status: statusOf(result.Failed), Data: result}); err != nil {
			return err
		}
		return compileExitError(result)
	}

	w := formatter.Writer
	if len(result.Documents) == 1 && result.Failed == 0 {
		if outputFile != "" {
			fmt.Fprintf(w, "Wrote compiled query to %s\n", outputFile)
			return nil
		}
		fmt.Fprintln(w, string(result.Documents[0].Query))
		return nil
	}

	for _, d := range result.Documents {
		if d.err != nil {
			fmt.Fprintf(w, "✗ %s\n", d.Path)
			if loc := errorLocation(d.err); loc != "" {
				fmt.Fprintf(w, "  %s\n", loc)
			}
			fmt.Fprintf(w, "  %s: %s\n", d.Error.Code, d.Error.Message)
			continue
		}
		fmt.Fprintf(w, "✓ %s\n", d.Path)
		fmt.Fprintf(w, "  %s\n", d.Query)
	}
	fmt.Fprintf(w, "\nCompiled %d document(s), %d failed\n", result.Compiled, result.Failed)
	return compileExitError(result)
}

func compileExitError(result *CompilationResult) error {
	if result.Failed == 0 {
		return nil
	}
	// Documents that cannot be compiled are command-level errors (exit code 2)
	return NewExitError(ExitCommandError, fmt.Sprintf("compilation failed for %d document(s)", result.Failed))
}
