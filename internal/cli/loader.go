package cli

import (
	"errors"
	"fmt"
	"os"

	"cuelang.org/go/cue/token"

	"github.com/roach88/tdq/internal/document"
	"github.com/roach88/tdq/internal/qerr"
	"github.com/roach88/tdq/internal/query"
	"github.com/roach88/tdq/internal/queryir"
)

// LoadedQuery is one document found on the command line.
type LoadedQuery struct {
	Path  string
	Query *query.CustomQuery
	Err   error
}

// LoadError represents an error that occurred while locating or reading
// documents.
type LoadError struct {
	Code    string
	Message string
	Pos     token.Pos // CUE position if available
}

func (e *LoadError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s", e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(), e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// FindQueries expands paths into document files. It fails only when a path
// does not exist or names nothing loadable.
func FindQueries(paths []string) ([]string, error) {
	files, err := document.Find(paths)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, &LoadError{Code: ErrCodeNotFound, Message: err.Error()}
		}
		return nil, &LoadError{Code: ErrCodeScanError, Message: fmt.Sprintf("error scanning paths: %v", err)}
	}
	if len(files) == 0 {
		return nil, &LoadError{Code: ErrCodeNoFiles, Message: fmt.Sprintf("no query documents found in %v", paths)}
	}
	return files, nil
}

// LoadQueries loads every file. Per-file failures are kept on the entry so
// callers can report all of them.
func LoadQueries(files []string) []LoadedQuery {
	out := make([]LoadedQuery, len(files))
	for i, path := range files {
		q, err := document.LoadQuery(path)
		out[i] = LoadedQuery{Path: path, Query: q, Err: err}
	}
	return out
}

// Error code constants - unified across all CLI commands.
const (
	ErrCodeGeneric      = "E001" // Generic/unknown error
	ErrCodeScanError    = "E002" // Directory scan error
	ErrCodeNoFiles      = "E003" // No documents found
	ErrCodeLoadFailed   = "E004" // Document could not be read or converted
	ErrCodeNotFound     = "E005" // Path not found
	ErrCodeDecodeFailed = "E006" // Document is not a valid query
	ErrCodeWriteFailed  = "E007" // File write error
	ErrCodeBadArgument  = "E008" // Invalid flag or argument value

	// Compile errors
	ErrCodeKeyMissing     = "E101" // Required key absent
	ErrCodeNotAllowed     = "E102" // Forbidden for this tenant or call order
	ErrCodeNotImplemented = "E103" // No lowering for this construct

	// Validation warnings
	ErrCodeValidation = "E110"
)

// MapErrorToCode maps an error from loading or compiling to an error code.
func MapErrorToCode(err error) string {
	switch qerr.CodeOf(err) {
	case qerr.CodeKeyMissing:
		return ErrCodeKeyMissing
	case qerr.CodeNotAllowed:
		return ErrCodeNotAllowed
	case qerr.CodeNotImplemented:
		return ErrCodeNotImplemented
	}

	var loadErr *LoadError
	if errors.As(err, &loadErr) {
		return loadErr.Code
	}
	var decodeErr *queryir.DecodeError
	switch {
	case errors.As(err, &decodeErr),
		errors.Is(err, query.ErrMissingQueryType),
		errors.Is(err, query.ErrMissingGranularity):
		return ErrCodeDecodeFailed
	case errors.Is(err, os.ErrNotExist):
		return ErrCodeNotFound
	case errors.Is(err, document.ErrUnsupportedFormat):
		return ErrCodeLoadFailed
	}
	var docErr *document.Error
	if errors.As(err, &docErr) {
		return ErrCodeLoadFailed
	}
	return ErrCodeGeneric
}
