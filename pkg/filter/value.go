// Package filter builds the query constraints understood by the catalog:
// criteria trees, named-query trees and flat key/value maps.
package filter

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
)

// Kind discriminates the shape held by a Value.
type Kind int

const (
	// KindScalar is a JSON string, number, boolean or null.
	KindScalar Kind = iota

	// KindObject is an ordered list of key/value fields.
	KindObject

	// KindArray is an ordered list of values.
	KindArray
)

// String returns the kind name.
func (k Kind) String() string {
	switch k {
	case KindScalar:
		return "scalar"
	case KindObject:
		return "object"
	case KindArray:
		return "array"
	default:
		return "unknown"
	}
}

// Field is one key/value pair of an object Value.
type Field struct {
	Key   string
	Value Value
}

// Value is a JSON tree node used as a filter payload. Object fields keep
// the order they were added in, so encoding is deterministic.
type Value struct {
	kind   Kind
	fields []Field
	items  []Value
	scalar any
}

// Object returns an object Value with the given fields.
func Object(fields ...Field) Value {
	return Value{kind: KindObject, fields: append([]Field(nil), fields...)}
}

// Array returns an array Value with the given items.
func Array(items ...Value) Value {
	return Value{kind: KindArray, items: append([]Value(nil), items...)}
}

// Scalar wraps a string, number, boolean or nil.
func Scalar(v any) Value {
	return Value{kind: KindScalar, scalar: v}
}

// F is shorthand for a Field.
func F(key string, v Value) Field {
	return Field{Key: key, Value: v}
}

// WithSimpleCriteria returns {"key": value}.
func WithSimpleCriteria(key string, value any) Value {
	return Object(F(key, Scalar(value)))
}

// WithArray returns {"key": [items...]}.
func WithArray(key string, items ...Value) Value {
	return Object(F(key, Array(items...)))
}

// Kind returns the value's kind.
func (v Value) Kind() Kind { return v.kind }

// Fields returns a copy of the object fields. It is nil for other kinds.
func (v Value) Fields() []Field { return append([]Field(nil), v.fields...) }

// Items returns a copy of the array items. It is nil for other kinds.
func (v Value) Items() []Value { return append([]Value(nil), v.items...) }

// IsEmpty reports whether the value carries nothing worth sending.
func (v Value) IsEmpty() bool {
	switch v.kind {
	case KindObject:
		return len(v.fields) == 0
	case KindArray:
		return len(v.items) == 0
	default:
		return v.scalar == nil
	}
}

// With returns a copy of an object Value with key set to value. An existing
// key keeps its position and takes the new value. Calling With on a
// non-object starts a new object.
func (v Value) With(key string, value Value) Value {
	if v.kind != KindObject {
		return Object(F(key, value))
	}
	out := Object(v.fields...)
	for i := range out.fields {
		if out.fields[i].Key == key {
			out.fields[i].Value = value
			return out
		}
	}
	out.fields = append(out.fields, F(key, value))
	return out
}

// MarshalJSON encodes the tree, objects in insertion order.
func (v Value) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	if err := v.encode(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (v Value) encode(buf *bytes.Buffer) error {
	switch v.kind {
	case KindObject:
		buf.WriteByte('{')
		for i, f := range v.fields {
			if i > 0 {
				buf.WriteByte(',')
			}
			key, err := json.Marshal(f.Key)
			if err != nil {
				return err
			}
			buf.Write(key)
			buf.WriteByte(':')
			if err := f.Value.encode(buf); err != nil {
				return err
			}
		}
		buf.WriteByte('}')
	case KindArray:
		buf.WriteByte('[')
		for i, item := range v.items {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := item.encode(buf); err != nil {
				return err
			}
		}
		buf.WriteByte(']')
	default:
		data, err := json.Marshal(v.scalar)
		if err != nil {
			return fmt.Errorf("encode scalar: %w", err)
		}
		buf.Write(data)
	}
	return nil
}

// ParseValue decodes JSON into a Value, keeping the key order of objects.
func ParseValue(data []byte) (Value, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	v, err := parseNext(dec)
	if err != nil {
		return Value{}, fmt.Errorf("parse filter value: %w", err)
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return Value{}, fmt.Errorf("parse filter value: trailing data")
	}
	return v, nil
}

func parseNext(dec *json.Decoder) (Value, error) {
	tok, err := dec.Token()
	if err != nil {
		return Value{}, err
	}

	switch t := tok.(type) {
	case json.Delim:
		switch t {
		case '{':
			obj := Object()
			for dec.More() {
				keyTok, err := dec.Token()
				if err != nil {
					return Value{}, err
				}
				key, ok := keyTok.(string)
				if !ok {
					return Value{}, fmt.Errorf("object key is %T, want string", keyTok)
				}
				child, err := parseNext(dec)
				if err != nil {
					return Value{}, err
				}
				obj.fields = append(obj.fields, F(key, child))
			}
			if _, err := dec.Token(); err != nil {
				return Value{}, err
			}
			return obj, nil
		case '[':
			arr := Array()
			for dec.More() {
				child, err := parseNext(dec)
				if err != nil {
					return Value{}, err
				}
				arr.items = append(arr.items, child)
			}
			if _, err := dec.Token(); err != nil {
				return Value{}, err
			}
			return arr, nil
		default:
			return Value{}, fmt.Errorf("unexpected delimiter %q", t)
		}
	default:
		return Scalar(t), nil
	}
}
