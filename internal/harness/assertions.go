package harness

import (
	"encoding/json"
	"fmt"
	"reflect"
	"strconv"
	"strings"
)

// AssertionError is returned when an assertion fails.
type AssertionError struct {
	Type     string // Assertion type for categorization
	Path     string
	Expected string // Human-readable expected outcome
	Actual   string // Human-readable actual outcome
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder
	fmt.Fprintf(&buf, "Assertion failed: %s", e.Type)
	if e.Path != "" {
		fmt.Fprintf(&buf, " at %s", e.Path)
	}
	fmt.Fprintf(&buf, "\n  Expected: %s\n  Actual: %s", e.Expected, e.Actual)
	return buf.String()
}

// EvaluateAssertions runs every assertion against doc, the compiled
// document decoded with encoding/json, and returns one message per failure.
func EvaluateAssertions(doc any, assertions []Assertion) []string {
	var failures []string
	for i, a := range assertions {
		if err := evaluateAssertion(doc, a); err != nil {
			failures = append(failures, fmt.Sprintf("assertions[%d]: %v", i, err))
		}
	}
	return failures
}

func evaluateAssertion(doc any, a Assertion) error {
	switch a.Type {
	case AssertFieldEquals:
		return assertFieldEquals(doc, a)
	case AssertFieldAbsent:
		return assertFieldAbsent(doc, a)
	case AssertFieldCount:
		return assertFieldCount(doc, a)
	case AssertFilterContains:
		return assertFilterContains(doc, a)
	case AssertOutputNames:
		return assertOutputNames(doc, a)
	default:
		return fmt.Errorf("unknown assertion type %q", a.Type)
	}
}

func assertFieldEquals(doc any, a Assertion) error {
	got, ok := lookup(doc, a.Path)
	if !ok {
		return &AssertionError{Type: a.Type, Path: a.Path, Expected: describe(a.Value), Actual: "missing"}
	}
	want, err := normalize(a.Value)
	if err != nil {
		return err
	}
	if !reflect.DeepEqual(want, got) {
		return &AssertionError{Type: a.Type, Path: a.Path, Expected: describe(want), Actual: describe(got)}
	}
	return nil
}

func assertFieldAbsent(doc any, a Assertion) error {
	if got, ok := lookup(doc, a.Path); ok {
		return &AssertionError{Type: a.Type, Path: a.Path, Expected: "missing", Actual: describe(got)}
	}
	return nil
}

func assertFieldCount(doc any, a Assertion) error {
	got, ok := lookup(doc, a.Path)
	if !ok {
		return &AssertionError{Type: a.Type, Path: a.Path, Expected: fmt.Sprintf("%d entries", a.Count), Actual: "missing"}
	}
	n := -1
	switch v := got.(type) {
	case []any:
		n = len(v)
	case map[string]any:
		n = len(v)
	}
	if n != a.Count {
		return &AssertionError{Type: a.Type, Path: a.Path, Expected: fmt.Sprintf("%d entries", a.Count), Actual: describe(got)}
	}
	return nil
}

// assertFilterContains walks the and/or/not structure of the top-level
// filter and passes when any node matches the expected subset.
func assertFilterContains(doc any, a Assertion) error {
	want, err := normalize(a.Filter)
	if err != nil {
		return err
	}
	root, _ := lookup(doc, "filter")
	var found bool
	walkFilter(root, func(node map[string]any) {
		if !found && matchSubset(node, want.(map[string]any)) {
			found = true
		}
	})
	if !found {
		return &AssertionError{Type: a.Type, Path: "filter", Expected: describe(want), Actual: describe(root)}
	}
	return nil
}

func walkFilter(node any, visit func(map[string]any)) {
	m, ok := node.(map[string]any)
	if !ok {
		return
	}
	visit(m)
	if fields, ok := m["fields"].([]any); ok {
		for _, f := range fields {
			walkFilter(f, visit)
		}
	}
	if field, ok := m["field"]; ok {
		walkFilter(field, visit)
	}
}

func assertOutputNames(doc any, a Assertion) error {
	names := map[string]bool{}
	for _, key := range []string{"aggregations", "postAggregations"} {
		list, _ := lookup(doc, key)
		items, _ := list.([]any)
		for _, item := range items {
			if m, ok := item.(map[string]any); ok {
				if name, ok := m["name"].(string); ok {
					names[name] = true
				}
			}
		}
	}
	var missing []string
	for _, name := range a.Names {
		if !names[name] {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		return &AssertionError{
			Type:     a.Type,
			Expected: fmt.Sprintf("outputs %v", a.Names),
			Actual:   fmt.Sprintf("missing %v", missing),
		}
	}
	return nil
}

// lookup follows a dot-separated path. Numeric segments index arrays.
func lookup(doc any, path string) (any, bool) {
	current := doc
	for _, segment := range strings.Split(path, ".") {
		switch node := current.(type) {
		case map[string]any:
			next, ok := node[segment]
			if !ok {
				return nil, false
			}
			current = next
		case []any:
			i, err := strconv.Atoi(segment)
			if err != nil || i < 0 || i >= len(node) {
				return nil, false
			}
			current = node[i]
		default:
			return nil, false
		}
	}
	return current, true
}

// matchSubset reports whether every key of want is in got with an equal
// value. Nested objects are matched as subsets too.
func matchSubset(got, want map[string]any) bool {
	for k, wv := range want {
		gv, ok := got[k]
		if !ok {
			return false
		}
		wm, wIsMap := wv.(map[string]any)
		gm, gIsMap := gv.(map[string]any)
		if wIsMap && gIsMap {
			if !matchSubset(gm, wm) {
				return false
			}
			continue
		}
		if !reflect.DeepEqual(gv, wv) {
			return false
		}
	}
	return true
}

// normalize passes a YAML value through encoding/json so numbers and maps
// have the same Go types as the decoded document.
func normalize(v any) (any, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("assertion value: %w", err)
	}
	var out any
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("assertion value: %w", err)
	}
	return out, nil
}

func describe(v any) string {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	return string(data)
}
