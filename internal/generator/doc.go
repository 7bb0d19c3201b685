// Package generator expands the virtual query types into engine queries.
//
// Funnel, Retention and Experiment each take a tenant document and return a
// new groupBy document whose aggregations are theta sketches and whose
// post-aggregations combine them with sketch set algebra. LowerConvenience
// rewrites the tenant-only aggregators into engine aggregators.
//
// Generators are pure: they never modify their input and read the clock
// only through Options.Now.
package generator
