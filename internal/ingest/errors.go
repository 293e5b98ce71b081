package ingest

import (
	"errors"
	"fmt"
)

// Kind classifies why a run failed.
type Kind int

const (
	KindUnexpected Kind = iota
	KindNetwork
	KindParse
	KindField
)

func (k Kind) String() string {
	switch k {
	case KindNetwork:
		return "network"
	case KindParse:
		return "parse"
	case KindField:
		return "field"
	default:
		return "unexpected"
	}
}

func (k Kind) describe() string {
	switch k {
	case KindNetwork:
		return "error making the request"
	case KindParse:
		return "error parsing JSON"
	case KindField:
		return "error accessing data path"
	default:
		return "an unexpected error occurred"
	}
}

type Error struct {
	Kind Kind
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %v", e.Kind.describe(), e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func newError(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Err: fmt.Errorf(format, args...)}
}

// KindOf reports the kind of err. Errors that were never classified are unexpected.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnexpected
}

func classify(err error) error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return err
	}
	return &Error{Kind: KindUnexpected, Err: err}
}
