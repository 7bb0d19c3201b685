package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"slices"

	"gopkg.in/yaml.v3"

	"github.com/roach88/tdq/internal/qerr"
)

// DefaultNow is the instant relative intervals resolve against when a
// scenario does not set one.
const DefaultNow = "2022-10-14T09:30:00Z"

// Compile stages a scenario can stop after.
const (
	StagePrecompile = "precompile"
	StageRunnable   = "runnable"
)

// Scenario defines a compile conformance scenario: one query document, the
// tenant it is compiled for, and what the output must look like.
type Scenario struct {
	// Name uniquely identifies this scenario.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Query is the path of the query document, relative to the scenario
	// file. Exactly one of Query and Document is set.
	Query string `yaml:"query,omitempty"`

	// Document is an inline query document.
	Document map[string]any `yaml:"document,omitempty"`

	// Config is an optional compiler config file, relative to the scenario.
	Config string `yaml:"config,omitempty"`

	// Now is the RFC 3339 instant relative intervals resolve against.
	// Empty means DefaultNow.
	Now string `yaml:"now,omitempty"`

	OrganizationAppIDs []string `yaml:"organization_app_ids,omitempty"`
	SuperOrg           bool     `yaml:"super_org,omitempty"`

	// Stage is precompile or runnable. Empty means runnable.
	Stage string `yaml:"stage,omitempty"`

	// Expect describes an expected compile error. Without it the
	// document must compile.
	Expect *ExpectClause `yaml:"expect,omitempty"`

	// Assertions inspect the compiled document.
	Assertions []Assertion `yaml:"assertions,omitempty"`
}

// ExpectClause names the compile error a scenario must produce.
type ExpectClause struct {
	// Error is KEY_MISSING, NOT_ALLOWED or NOT_IMPLEMENTED.
	Error string `yaml:"error"`

	// Field, if set, must match the error's field.
	Field string `yaml:"field,omitempty"`
}

// Assertion inspects the compiled document.
type Assertion struct {
	// Type specifies the assertion type:
	// - "field_equals": the value at Path equals Value
	// - "field_absent": nothing is at Path
	// - "field_count": the array or object at Path has Count entries
	// - "filter_contains": some node of the filter tree matches Filter
	// - "output_names": every name in Names is an aggregation or
	//   post-aggregation output
	Type string `yaml:"type"`

	// Path is a dot-separated path into the compiled document. Array
	// elements are addressed by index, e.g. "filter.fields.0.value".
	Path string `yaml:"path,omitempty"`

	Value any `yaml:"value,omitempty"`

	Count int `yaml:"count,omitempty"`

	// Filter is matched as a subset: only the listed keys are compared.
	Filter map[string]any `yaml:"filter,omitempty"`

	Names []string `yaml:"names,omitempty"`
}

// Assertion type constants.
const (
	AssertFieldEquals    = "field_equals"
	AssertFieldAbsent    = "field_absent"
	AssertFieldCount     = "field_count"
	AssertFilterContains = "filter_contains"
	AssertOutputNames    = "output_names"
)

var expectableCodes = []qerr.Code{qerr.CodeKeyMissing, qerr.CodeNotAllowed, qerr.CodeNotImplemented}

// LoadScenario reads and parses a scenario YAML file. Relative document
// and config paths are resolved against the scenario's directory.
// Returns an error if the file doesn't exist, is malformed, contains
// unknown fields (typos), or is missing required fields.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}

	scenario, err := ParseScenario(data)
	if err != nil {
		return nil, err
	}

	base := filepath.Dir(path)
	if scenario.Query != "" && !filepath.IsAbs(scenario.Query) {
		scenario.Query = filepath.Join(base, scenario.Query)
	}
	if scenario.Config != "" && !filepath.IsAbs(scenario.Config) {
		scenario.Config = filepath.Join(base, scenario.Config)
	}

	if err := validateScenario(scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return scenario, nil
}

// ParseScenario parses scenario YAML without resolving or checking paths.
func ParseScenario(data []byte) (*Scenario, error) {
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}
	return &scenario, nil
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}

	switch {
	case s.Query == "" && s.Document == nil:
		return fmt.Errorf("one of query and document is required")
	case s.Query != "" && s.Document != nil:
		return fmt.Errorf("only one of query and document may be set")
	}
	if s.Query != "" {
		if _, err := os.Stat(s.Query); os.IsNotExist(err) {
			return fmt.Errorf("query file not found: %s", s.Query)
		}
	}

	switch s.Stage {
	case "", StagePrecompile, StageRunnable:
	default:
		return fmt.Errorf("unknown stage %q", s.Stage)
	}

	if s.Expect != nil {
		if !slices.Contains(expectableCodes, qerr.Code(s.Expect.Error)) {
			return fmt.Errorf("expect: unknown error code %q", s.Expect.Error)
		}
		if len(s.Assertions) > 0 {
			return fmt.Errorf("assertions cannot be combined with an expected error")
		}
	} else if len(s.Assertions) == 0 {
		return fmt.Errorf("assertions list is required unless an error is expected")
	}

	for i, assertion := range s.Assertions {
		if err := validateAssertion(i, &assertion); err != nil {
			return err
		}
	}
	return nil
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a *Assertion) error {
	if a.Type == "" {
		return fmt.Errorf("assertions[%d]: type is required", index)
	}

	switch a.Type {
	case AssertFieldEquals, AssertFieldAbsent:
		if a.Path == "" {
			return fmt.Errorf("assertions[%d]: path is required for %s", index, a.Type)
		}
	case AssertFieldCount:
		if a.Path == "" {
			return fmt.Errorf("assertions[%d]: path is required for field_count", index)
		}
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for field_count", index)
		}
	case AssertFilterContains:
		if len(a.Filter) == 0 {
			return fmt.Errorf("assertions[%d]: filter is required for filter_contains", index)
		}
	case AssertOutputNames:
		if len(a.Names) == 0 {
			return fmt.Errorf("assertions[%d]: names list is required for output_names", index)
		}
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}
	return nil
}
