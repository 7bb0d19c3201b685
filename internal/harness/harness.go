package harness

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/roach88/tdq/internal/compiler"
	"github.com/roach88/tdq/internal/document"
	"github.com/roach88/tdq/internal/ir"
	"github.com/roach88/tdq/internal/qerr"
	"github.com/roach88/tdq/internal/query"
	"github.com/roach88/tdq/internal/testutil"
)

// Run compiles the scenario's document and checks the outcome.
//
// Each scenario gets its own compiler with a frozen clock, so runnable
// output is byte-identical across runs. Run returns an error only when the
// scenario itself cannot be set up (unreadable document or config, bad
// clock or app IDs); compile errors are part of the result.
//
// Execution flow:
// 1. Load the document and the compiler config
// 2. Precompile for the scenario's organization
// 3. Resolve to a runnable query unless the stage is precompile
// 4. Compare the error, or evaluate assertions against the output
func Run(scenario *Scenario) (*Result, error) {
	q, err := loadDocument(scenario)
	if err != nil {
		return nil, fmt.Errorf("failed to load document: %w", err)
	}

	cfg := compiler.DefaultConfig()
	if scenario.Config != "" {
		if cfg, err = compiler.LoadConfig(scenario.Config); err != nil {
			return nil, err
		}
	}

	nowText := scenario.Now
	if nowText == "" {
		nowText = DefaultNow
	}
	now, err := time.Parse(time.RFC3339Nano, nowText)
	if err != nil {
		return nil, fmt.Errorf("invalid now: %w", err)
	}

	appIDs, err := parseAppIDs(scenario.OrganizationAppIDs)
	if err != nil {
		return nil, err
	}

	clock := testutil.NewFixedClock(now)
	c := compiler.New(
		compiler.WithConfig(cfg),
		compiler.WithClock(clock.Now),
		compiler.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
	)

	result := NewResult()
	output, hash, compileErr := compile(c, q, appIDs, scenario.SuperOrg, scenario.Stage)
	if compileErr != nil {
		var qe *qerr.Error
		if !errors.As(compileErr, &qe) {
			return nil, fmt.Errorf("failed to compile: %w", compileErr)
		}
		result.ErrorCode = string(qe.Code)
		result.ErrorField = qe.Field
		checkExpectedError(scenario.Expect, qe, result)
		return result, nil
	}

	result.Output = output
	result.Hash = hash
	if scenario.Expect != nil {
		result.AddError(fmt.Sprintf("expected error %s, but the document compiled", scenario.Expect.Error))
		return result, nil
	}

	var doc any
	if err := json.Unmarshal(output, &doc); err != nil {
		return nil, fmt.Errorf("failed to read compiled document: %w", err)
	}
	for _, errMsg := range EvaluateAssertions(doc, scenario.Assertions) {
		result.AddError(errMsg)
	}
	return result, nil
}

func loadDocument(scenario *Scenario) (*query.CustomQuery, error) {
	if scenario.Query != "" {
		return document.LoadQuery(scenario.Query)
	}
	data, err := json.Marshal(scenario.Document)
	if err != nil {
		return nil, err
	}
	return query.Decode(data)
}

func parseAppIDs(raw []string) ([]uuid.UUID, error) {
	ids := make([]uuid.UUID, 0, len(raw))
	for _, s := range raw {
		id, err := uuid.Parse(s)
		if err != nil {
			return nil, fmt.Errorf("invalid organization app ID %q: %w", s, err)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func compile(c *compiler.Compiler, q *query.CustomQuery, appIDs []uuid.UUID, superOrg bool, stage string) (json.RawMessage, string, error) {
	p, err := c.Precompile(q, appIDs, superOrg)
	if err != nil {
		return nil, "", err
	}
	if stage == StagePrecompile {
		out, err := ir.MarshalCanonical(p)
		return out, p.Hash(), err
	}
	runnable, err := c.CompileToRunnable(p)
	if err != nil {
		return nil, "", err
	}
	out, err := ir.MarshalCanonical(runnable)
	return out, p.Hash(), err
}

func checkExpectedError(expect *ExpectClause, got *qerr.Error, result *Result) {
	if expect == nil {
		result.AddError(fmt.Sprintf("unexpected compile error: %v", got))
		return
	}
	if string(got.Code) != expect.Error {
		result.AddError(fmt.Sprintf("expected error %s, got %v", expect.Error, got))
		return
	}
	if expect.Field != "" && got.Field != expect.Field {
		result.AddError(fmt.Sprintf("expected error on field %q, got %q", expect.Field, got.Field))
	}
}
