package kv

import (
	"errors"
	"fmt"
)

var (
	// ErrNoDocument is returned by Collection.FindOne when no record has the key.
	ErrNoDocument = errors.New("no document with key")
	// ErrNotArray is matched by the ShapeError returned from Push.
	ErrNotArray = errors.New("not an array")
	// ErrNotNumber is matched by the ShapeError returned from Add and Subtract.
	ErrNotNumber = errors.New("not a number")
	// ErrNotObject is returned by Import when the file does not hold a JSON object.
	ErrNotObject = errors.New("not a JSON object")
	// ErrConflict is returned when a read-modify-write keeps losing the
	// compare-and-swap race to concurrent writers.
	ErrConflict = errors.New("too many concurrent updates")
	// ErrUnsupportedValue is returned when a Go value has no JSON representation.
	ErrUnsupportedValue = errors.New("unsupported value type")
)

var _ error = (*ShapeError)(nil)

// ShapeError reports that the value stored under Key is missing or does not
// have the shape an operation requires.
type ShapeError struct {
	Key string
	// Want is ErrNotArray or ErrNotNumber.
	Want error
}

func (e *ShapeError) Error() string {
	return fmt.Sprintf("%s is %s", e.Key, e.Want)
}

// Unwrap lets errors.Is match the ShapeError against Want.
func (e *ShapeError) Unwrap() error {
	return e.Want
}
