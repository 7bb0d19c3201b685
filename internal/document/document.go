package document

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"
	"gopkg.in/yaml.v3"

	"github.com/roach88/tdq/internal/query"
)

// Format is the source notation of a query document.
type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
	FormatCUE  Format = "cue"
)

// QueryPath is the field a CUE document may nest its query under, so that
// definitions and helpers can sit next to it.
const QueryPath = "query"

// ErrUnsupportedFormat is returned for files whose extension names no known
// notation.
var ErrUnsupportedFormat = errors.New("document: unsupported format")

// Error is a document that could not be converted to JSON. Pos is set for
// CUE sources.
type Error struct {
	Path    string
	Message string
	Pos     token.Pos
	Err     error
}

func (e *Error) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s", e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(), e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Path, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// FormatOf maps a file extension to its Format.
func FormatOf(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return FormatJSON, nil
	case ".yaml", ".yml":
		return FormatYAML, nil
	case ".cue":
		return FormatCUE, nil
	default:
		return "", fmt.Errorf("%w: %s", ErrUnsupportedFormat, path)
	}
}

// Load reads path and returns the document as JSON.
func Load(path string) ([]byte, error) {
	format, err := FormatOf(path)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read document: %w", err)
	}
	return Convert(path, format, data)
}

// Convert turns data written in format into JSON. path only labels errors.
func Convert(path string, format Format, data []byte) ([]byte, error) {
	switch format {
	case FormatJSON:
		return data, nil
	case FormatYAML:
		return yamlToJSON(path, data)
	case FormatCUE:
		return cueToJSON(path, data)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, format)
	}
}

// LoadQuery loads and decodes a query document.
func LoadQuery(path string) (*query.CustomQuery, error) {
	data, err := Load(path)
	if err != nil {
		return nil, err
	}
	q, err := query.Decode(data)
	if err != nil {
		return nil, &Error{Path: path, Message: err.Error(), Err: err}
	}
	return q, nil
}

// Find expands paths into the document files they name. Directories are
// walked recursively and contribute every file with a known extension, in
// lexical order. Files named explicitly are kept whatever their extension,
// so Load reports the unsupported format.
func Find(paths []string) ([]string, error) {
	var files []string
	for _, p := range paths {
		info, err := os.Stat(p)
		if err != nil {
			return nil, err
		}
		if !info.IsDir() {
			files = append(files, p)
			continue
		}
		err = filepath.Walk(p, func(path string, info os.FileInfo, err error) error {
			if err != nil {
				return err
			}
			if info.IsDir() {
				return nil
			}
			if _, err := FormatOf(path); err == nil {
				files = append(files, path)
			}
			return nil
		})
		if err != nil {
			return nil, err
		}
	}
	return slices.Compact(files), nil
}

func yamlToJSON(path string, data []byte) ([]byte, error) {
	var v any
	dec := yaml.NewDecoder(bytes.NewReader(data))
	if err := dec.Decode(&v); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, &Error{Path: path, Message: "empty document"}
		}
		return nil, &Error{Path: path, Message: err.Error(), Err: err}
	}
	out, err := json.Marshal(v)
	if err != nil {
		return nil, &Error{Path: path, Message: err.Error(), Err: err}
	}
	return out, nil
}

func cueToJSON(path string, data []byte) ([]byte, error) {
	ctx := cuecontext.New()
	value := ctx.CompileBytes(data, cue.Filename(path))
	if err := value.Err(); err != nil {
		return nil, cueError(path, err)
	}
	if q := value.LookupPath(cue.ParsePath(QueryPath)); q.Exists() {
		value = q
	}
	if err := value.Validate(cue.Concrete(true)); err != nil {
		return nil, cueError(path, err)
	}
	out, err := value.MarshalJSON()
	if err != nil {
		return nil, cueError(path, err)
	}
	return out, nil
}

// cueError keeps the position of the first CUE error.
func cueError(path string, err error) error {
	errs := cueerrors.Errors(err)
	if len(errs) == 0 {
		return &Error{Path: path, Message: err.Error(), Err: err}
	}
	first := errs[0]
	out := &Error{Path: path, Message: first.Error(), Err: err}
	if positions := cueerrors.Positions(first); len(positions) > 0 {
		out.Pos = positions[0]
	}
	return out
}
