package harness

import "encoding/json"

// Result is the outcome of running a scenario.
type Result struct {
	// Pass is true when the compile outcome and every assertion matched.
	Pass bool `json:"pass"`

	// Output is the canonical compiled document. It is empty when
	// compilation failed.
	Output json.RawMessage `json:"output,omitempty"`

	// Hash is the precompiled document hash.
	Hash string `json:"hash,omitempty"`

	// ErrorCode and ErrorField describe the compile error, if any.
	ErrorCode  string `json:"error_code,omitempty"`
	ErrorField string `json:"error_field,omitempty"`

	// Errors lists the mismatches. Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Errors: []string{},
	}
}

// AddError records a mismatch and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// Snapshot is what golden files record: the compiled document, or the
// error the scenario expects.
func (r *Result) Snapshot() map[string]any {
	snap := map[string]any{}
	if len(r.Output) > 0 {
		snap["output"] = r.Output
		snap["hash"] = r.Hash
	}
	if r.ErrorCode != "" {
		snap["error_code"] = r.ErrorCode
		if r.ErrorField != "" {
			snap["error_field"] = r.ErrorField
		}
	}
	return snap
}
