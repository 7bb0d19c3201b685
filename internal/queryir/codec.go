package queryir

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

var (
	// ErrMissingType is returned when a node has no "type" member.
	ErrMissingType = errors.New("missing type discriminator")

	// ErrUnknownType is returned when "type" names no known variant.
	ErrUnknownType = errors.New("unknown type")
)

// DecodeError reports a node that could not be decoded.
type DecodeError struct {
	// Node is the node kind, e.g. "filter" or "postAggregator".
	Node string

	// Type is the discriminator that was read, if any.
	Type string

	Err error
}

func (e *DecodeError) Error() string {
	if e.Type != "" {
		return fmt.Sprintf("decode %s %q: %v", e.Node, e.Type, e.Err)
	}
	return fmt.Sprintf("decode %s: %v", e.Node, e.Err)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

// MarshalTagged encodes body (which must not itself implement
// json.Marshaler) and prepends the "type" member.
func MarshalTagged(typ string, body any) ([]byte, error) {
	data, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}
	if len(data) < 2 || data[0] != '{' {
		return nil, fmt.Errorf("marshal %s: body is not an object", typ)
	}

	var buf bytes.Buffer
	buf.WriteString(`{"type":`)
	tag, _ := json.Marshal(typ)
	buf.Write(tag)
	if !bytes.Equal(data, []byte("{}")) {
		buf.WriteByte(',')
		buf.Write(data[1:])
	} else {
		buf.WriteByte('}')
	}
	return buf.Bytes(), nil
}

// peekType reads the discriminator of a node without decoding the rest.
func peekType(node string, data []byte) (string, error) {
	var head struct {
		Type *string `json:"type"`
	}
	if err := json.Unmarshal(data, &head); err != nil {
		return "", &DecodeError{Node: node, Err: err}
	}
	if head.Type == nil {
		return "", &DecodeError{Node: node, Err: ErrMissingType}
	}
	return *head.Type, nil
}

// DecodeTagged dispatches on "type" to a constructor and decodes data into
// the fresh variant.
func DecodeTagged[T any](node string, data []byte, ctors map[string]func() T) (T, error) {
	var zero T
	typ, err := peekType(node, data)
	if err != nil {
		return zero, err
	}
	ctor, ok := ctors[typ]
	if !ok {
		return zero, &DecodeError{Node: node, Type: typ, Err: ErrUnknownType}
	}
	v := ctor()
	if err := json.Unmarshal(data, v); err != nil {
		var de *DecodeError
		if errors.As(err, &de) {
			return zero, err
		}
		return zero, &DecodeError{Node: node, Type: typ, Err: err}
	}
	return v, nil
}

func isNull(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null"))
}

func decodeList[T any](raws []json.RawMessage, decode func([]byte) (T, error)) ([]T, error) {
	if raws == nil {
		return nil, nil
	}
	out := make([]T, 0, len(raws))
	for _, raw := range raws {
		v, err := decode(raw)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

// Ptr returns a pointer to v. Optional node fields are pointers.
func Ptr[T any](v T) *T {
	return &v
}
