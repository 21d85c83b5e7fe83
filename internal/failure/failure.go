// Package failure classifies errors raised while moving files through the
// pipeline so callers can log and report them by kind.
package failure

import (
	"errors"
	"fmt"
)

// Kind is the coarse category of a failure.
type Kind int

const (
	// KindUnexpected covers anything not otherwise classified.
	KindUnexpected Kind = iota
	// KindIO covers vanished files, permission errors, listing failures and
	// rejected moves.
	KindIO
	// KindConfiguration covers missing or invalid directories and settings.
	KindConfiguration
)

func (k Kind) String() string {
	switch k {
	case KindIO:
		return "io"
	case KindConfiguration:
		return "configuration"
	default:
		return "unexpected"
	}
}

// Error attaches a Kind, the failed operation and the path involved to an
// underlying cause.
type Error struct {
	Kind Kind
	Op   string
	Path string
	Err  error
}

func (e *Error) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("%s %q: %v", e.Op, e.Path, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// IO wraps err as a KindIO failure. A nil err yields nil.
func IO(op, path string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: KindIO, Op: op, Path: path, Err: err}
}

// Configuration wraps err as a KindConfiguration failure. A nil err yields nil.
func Configuration(op, path string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: KindConfiguration, Op: op, Path: path, Err: err}
}

// Unexpected wraps err as a KindUnexpected failure. A nil err yields nil.
func Unexpected(op string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: KindUnexpected, Op: op, Err: err}
}

// KindOf returns the Kind of the outermost *Error in err's chain, or
// KindUnexpected when there is none.
func KindOf(err error) Kind {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Kind
	}
	return KindUnexpected
}
