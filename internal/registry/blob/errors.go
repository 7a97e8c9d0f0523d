package blob

import (
	"errors"
	"fmt"
)

// ErrInvalidJSON is returned by Store.GetJSON, wrapped, when an object exists
// but does not hold valid JSON.
var ErrInvalidJSON = errors.New("object is not valid JSON")

// NotFoundError indicates the room, message, or file was not found.
type NotFoundError struct {
	Resource string
	ID       string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Resource, e.ID)
}

// ValidationError indicates the request lacks what is needed to act.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error on %s: %s", e.Field, e.Message)
}

// UpstreamError indicates the messaging platform could not be reached or
// answered with something other than its API envelope. Description is safe to
// show to operators.
type UpstreamError struct {
	Description string
	Err         error
}

func (e *UpstreamError) Error() string {
	return "upstream failure: " + e.Description
}

func (e *UpstreamError) Unwrap() error { return e.Err }

// StoreError indicates the object store is unreachable or rejected an
// operation.
type StoreError struct {
	Op  string
	Key string
	Err error
}

func (e *StoreError) Error() string {
	if e.Key == "" {
		return fmt.Sprintf("store %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("store %s %s: %v", e.Op, e.Key, e.Err)
}

func (e *StoreError) Unwrap() error {
	return e.Err
}
