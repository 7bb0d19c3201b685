// Package queryir provides the recursive query algebra that is sent to the
// analytics engine: filters, extraction functions, lookups, aggregators,
// post-aggregators, dimension specs and topN metric specs.
//
// SEALED INTERFACES:
//
// Every node kind is a sealed interface using the marker method pattern.
// Only types in this package implement Filter, Aggregator, PostAggregator,
// ExtractionFunction, Lookup, DimensionSpec or TopNMetricSpec.
//
// This enables:
//   - Exhaustive type switches in the compiler and generators
//   - A closed set of wire variants per node kind
//
// Example:
//
//	switch f := filter.(type) {
//	case *Selector:
//	    // Handle selector
//	case *And:
//	    // Handle conjunction
//	default:
//	    // Impossible - the package knows all Filter types
//	}
//
// WIRE FORMAT:
//
// Every node is a JSON object whose "type" member selects the variant.
// Encoding always emits "type" as the first member. Decoding reads "type"
// before touching any variant field; a missing or unknown discriminator is
// a *DecodeError and is never defaulted.
//
//	{"type":"selector","dimension":"appID","value":"B97579B6-..."}
//	{"type":"and","fields":[{"type":"true"},{"type":"not","field":{...}}]}
//
// CONVENIENCE NODES:
//
// UserCount, EventCount and Histogram are aggregators that only exist in the
// tenant-facing language. The compiler lowers them to engine aggregators
// before a query leaves the process; Validate warns when one survives.
package queryir
