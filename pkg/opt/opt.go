// Package opt provides an explicit optional value for fields where "not
// provided" must stay distinguishable from the zero value (a measurement of
// 0.00 is not the same as no measurement).
//
// On the wire an absent value is written as JSON false, which is how the
// backend encodes empty scalar and relational fields. Both false and null
// decode to absent, so Value[bool] must not be used.
package opt

import (
	"bytes"

	"github.com/goccy/go-json"
)

// Value holds a T that may be absent. The zero Value is absent.
type Value[T any] struct {
	v     T
	valid bool
}

// Some returns a present value.
func Some[T any](v T) Value[T] {
	return Value[T]{v: v, valid: true}
}

// None returns an absent value.
func None[T any]() Value[T] {
	return Value[T]{}
}

// FromPtr converts a nullable pointer, as scanned from a database row.
func FromPtr[T any](p *T) Value[T] {
	if p == nil {
		return None[T]()
	}
	return Some(*p)
}

// Get returns the value and whether it is present.
func (o Value[T]) Get() (T, bool) {
	return o.v, o.valid
}

// IsSet reports whether the value is present.
func (o Value[T]) IsSet() bool {
	return o.valid
}

// Or returns the value, or def when absent.
func (o Value[T]) Or(def T) T {
	if !o.valid {
		return def
	}
	return o.v
}

// Ptr returns a pointer to a copy of the value, or nil when absent. Useful as
// a SQL argument where absent maps to NULL.
func (o Value[T]) Ptr() *T {
	if !o.valid {
		return nil
	}
	v := o.v
	return &v
}

var falseLiteral = []byte("false")

// MarshalJSON writes false for an absent value.
func (o Value[T]) MarshalJSON() ([]byte, error) {
	if !o.valid {
		return falseLiteral, nil
	}
	return json.Marshal(o.v)
}

// UnmarshalJSON treats false and null as absent.
func (o *Value[T]) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if bytes.Equal(trimmed, falseLiteral) || bytes.Equal(trimmed, []byte("null")) {
		*o = None[T]()
		return nil
	}
	var v T
	if err := json.Unmarshal(trimmed, &v); err != nil {
		return err
	}
	*o = Some(v)
	return nil
}
