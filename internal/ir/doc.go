// Package ir provides the canonical JSON form and content hashes used to
// compare and identify query documents.
//
// Two documents that differ only in key order, in omitted-versus-null
// optionals or in Unicode normalisation of strings have the same canonical
// bytes and therefore the same hash.
//
// Key design constraints:
//   - Object keys are sorted by UTF-16 code units (RFC 8785)
//   - Strings are NFC normalised at the serialisation boundary
//   - Numbers keep their literal digits; only float spellings are normalised
//   - ir imports nothing internal
package ir
