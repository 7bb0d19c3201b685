package queryir

// AllOf conjoins filters. Nil operands are skipped and nested conjunctions are
// flattened. It returns nil when nothing remains and the single operand when
// only one does.
func AllOf(filters ...Filter) Filter {
	fields := flatten(filters, func(f Filter) ([]Filter, bool) {
		if a, ok := f.(*And); ok {
			return a.Fields, true
		}
		return nil, false
	})
	switch len(fields) {
	case 0:
		return nil
	case 1:
		return fields[0]
	default:
		return &And{Fields: fields}
	}
}

// AnyOf disjoins filters with the same rules as AllOf.
func AnyOf(filters ...Filter) Filter {
	fields := flatten(filters, func(f Filter) ([]Filter, bool) {
		if o, ok := f.(*Or); ok {
			return o.Fields, true
		}
		return nil, false
	})
	switch len(fields) {
	case 0:
		return nil
	case 1:
		return fields[0]
	default:
		return &Or{Fields: fields}
	}
}

// Negate negates f. Negate(nil) is nil.
func Negate(f Filter) Filter {
	if f == nil {
		return nil
	}
	return &Not{Field: f}
}

func flatten(filters []Filter, children func(Filter) ([]Filter, bool)) []Filter {
	var out []Filter
	for _, f := range filters {
		if f == nil {
			continue
		}
		if nested, ok := children(f); ok {
			out = append(out, flatten(nested, children)...)
			continue
		}
		out = append(out, f)
	}
	return out
}

// Normalize rewrites f into the form the compiler emits:
//   - and[] is true, or[] is false
//   - true inside and, and false inside or, are dropped
//   - single-operand and/or collapse to the operand
//   - nested and/or of the same kind are flattened
//   - not(true) is false and not(false) is true
//
// The input is not modified.
func Normalize(f Filter) Filter {
	switch v := f.(type) {
	case nil:
		return nil
	case *And:
		return normalizeJunction(v.Fields, FilterAnd)
	case *Or:
		return normalizeJunction(v.Fields, FilterOr)
	case *Not:
		inner := Normalize(v.Field)
		switch inner.(type) {
		case *True:
			return &False{}
		case *False:
			return &True{}
		}
		return &Not{Field: inner}
	default:
		return f
	}
}

func normalizeJunction(fields []Filter, op string) Filter {
	var out []Filter
	for _, field := range fields {
		n := Normalize(field)
		if n == nil {
			continue
		}
		switch nv := n.(type) {
		case *True:
			if op == FilterAnd {
				continue
			}
		case *False:
			if op == FilterOr {
				continue
			}
		case *And:
			if op == FilterAnd {
				out = append(out, nv.Fields...)
				continue
			}
		case *Or:
			if op == FilterOr {
				out = append(out, nv.Fields...)
				continue
			}
		}
		out = append(out, n)
	}

	switch {
	case len(out) == 0 && op == FilterAnd:
		return &True{}
	case len(out) == 0:
		return &False{}
	case len(out) == 1:
		return out[0]
	case op == FilterAnd:
		return &And{Fields: out}
	default:
		return &Or{Fields: out}
	}
}
