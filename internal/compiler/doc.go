// Package compiler turns tenant query documents into engine queries.
//
// Compilation has two phases. Precompile is pure: it expands funnel,
// retention and experiment documents, lowers convenience aggregators, scopes
// the query to the caller's apps and clears the tenant-only fields. The
// result is a Precompiled value whose hash is stable across time.
//
// CompileToRunnable reads the clock once to resolve relative intervals and
// returns the document that is sent to the engine.
//
// Errors are *qerr.Error values (KEY_MISSING, NOT_ALLOWED, NOT_IMPLEMENTED)
// or decode errors from the query package.
package compiler
