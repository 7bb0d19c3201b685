// Package document loads query documents from disk.
//
// Documents are JSON on the wire, but authors may write them in YAML or CUE.
// Both are converted to JSON before decoding, so every notation goes through
// the same query decoder and reports the same errors. A CUE file may either
// be the query itself or hold it under a top-level "query" field.
package document
