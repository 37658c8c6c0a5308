package model

import "fmt"

// InputError reports a caller that violated a precondition, such as an
// inverted date range. It is returned at construction time and never coerced.
type InputError struct {
	Field string
	Msg   string
}

func (e *InputError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Msg)
}

func inputErr(field, format string, args ...any) error {
	return &InputError{Field: field, Msg: fmt.Sprintf(format, args...)}
}

// CollaboratorError wraps a failure of something outside the calendar core:
// fetching a feed or reading/writing the blob store. Callers surface it as a
// single opaque message.
type CollaboratorError struct {
	Op  string
	Err error
}

func (e *CollaboratorError) Error() string {
	return e.Op + ": " + e.Err.Error()
}

func (e *CollaboratorError) Unwrap() error {
	return e.Err
}
