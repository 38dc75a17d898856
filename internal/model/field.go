package model

import "encoding/json"

type fieldState uint8

const (
	fieldAbsent fieldState = iota
	fieldHidden
	fieldSet
)

// Field is a value that may be absent (not requested), hidden by revision
// deletion, or set.
type Field[T any] struct {
	value T
	state fieldState
}

// FieldOf returns a set field
func FieldOf[T any](v T) Field[T] {
	return Field[T]{value: v, state: fieldSet}
}

// HiddenField returns a field suppressed on the remote
func HiddenField[T any]() Field[T] {
	return Field[T]{state: fieldHidden}
}

// Get returns the value and whether it is set
func (f Field[T]) Get() (T, bool) {
	return f.value, f.state == fieldSet
}

// OrZero returns the value, or the zero value when hidden or absent
func (f Field[T]) OrZero() T {
	return f.value
}

// IsHidden reports whether the remote suppressed the value
func (f Field[T]) IsHidden() bool {
	return f.state == fieldHidden
}

// IsSet reports whether a value is present
func (f Field[T]) IsSet() bool {
	return f.state == fieldSet
}

// Requested reports whether the field was part of the response at all
func (f Field[T]) Requested() bool {
	return f.state != fieldAbsent
}

// MarshalJSON renders hidden and absent values as null
func (f Field[T]) MarshalJSON() ([]byte, error) {
	if f.state != fieldSet {
		return []byte("null"), nil
	}
	return json.Marshal(f.value)
}
