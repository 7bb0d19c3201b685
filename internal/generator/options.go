package generator

import (
	"time"

	"github.com/roach88/tdq/internal/ir"
	"github.com/roach88/tdq/internal/queryir"
)

// DefaultUserField is the dimension that identifies a user.
const DefaultUserField = "clientUser"

// Options configure the generators.
type Options struct {
	// UserField is the dimension the sketches count. Empty means
	// DefaultUserField.
	UserField string

	// Now resolves relative intervals where a generator needs concrete
	// dates. Nil means time.Now.
	Now func() time.Time
}

func (o Options) userField() string {
	if o.UserField == "" {
		return DefaultUserField
	}
	return o.UserField
}

func (o Options) now() time.Time {
	if o.Now == nil {
		return time.Now().UTC()
	}
	return o.Now().UTC()
}

func userSketch(name string, opts Options) *queryir.ThetaSketch {
	return &queryir.ThetaSketch{Name: name, FieldName: opts.userField()}
}

// uniqued drops later elements whose canonical encoding repeats an earlier
// one. Elements that cannot be encoded are kept.
func uniqued[T any](items []T) []T {
	seen := make(map[string]bool, len(items))
	out := make([]T, 0, len(items))
	for _, item := range items {
		key, err := ir.MarshalCanonical(item)
		if err == nil {
			if seen[string(key)] {
				continue
			}
			seen[string(key)] = true
		}
		out = append(out, item)
	}
	return out
}
