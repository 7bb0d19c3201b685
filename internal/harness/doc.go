// Package harness runs compile conformance scenarios.
//
// A scenario names one query document and the tenant it is compiled for,
// then asserts on the compiled output or on the error compilation must
// produce. Scenarios are the executable contract for tenant scoping and the
// query generators.
//
// # Scenario Format
//
// Scenarios are defined in YAML files with the following structure:
//
//	name: topn_this_app
//	description: "thisApp scoping adds the app and test-mode selectors"
//	query: ../queries/topn.json   # or an inline `document:` map
//	now: "2022-10-14T09:30:00Z"   # optional, DefaultNow otherwise
//	organization_app_ids: [...]
//	super_org: false
//	stage: runnable               # or precompile
//	assertions:
//	  - type: field_equals
//	    path: context.timeout
//	    value: "200000"
//	  - type: filter_contains
//	    filter: { type: selector, dimension: isTestMode, value: "false" }
//
// A scenario that must fail replaces assertions with an expected error:
//
//	expect:
//	  error: KEY_MISSING
//	  field: organizationAppIDs
//
// # Assertion Types
//
//   - field_equals: the value at a dot-separated path equals the given value
//   - field_absent: nothing is at the path
//   - field_count: the array or object at the path has the given size
//   - filter_contains: some node of the filter tree matches a subset
//   - output_names: the named aggregations or post-aggregations exist
//
// # Deterministic Testing
//
// Every scenario compiles with a frozen clock and a discarding logger, so
// relative intervals resolve identically on every run and snapshots can be
// compared byte for byte against golden files.
package harness
