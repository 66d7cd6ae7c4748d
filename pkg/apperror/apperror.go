package apperror

import (
	"errors"
	"fmt"
	"runtime/debug"
)

type Error struct {
	Kind    Kind   // category used for status mapping and retry decisions
	Op      string // <layer>.<domain>.<action>
	Err     error  // wrapped cause
	Message string // client safe message
	Stack   []byte
}

func (e *Error) Error() string {
	switch {
	case e.Op != "" && e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	case e.Err != nil:
		return e.Err.Error()
	case e.Op != "" && e.Message != "":
		return fmt.Sprintf("%s: %s", e.Op, e.Message)
	case e.Op != "":
		return e.Op
	default:
		return "unknown error"
	}
}

func (e *Error) Unwrap() error {
	return e.Err
}

func (e *Error) WithMessage(msg string) *Error {
	cp := *e
	cp.Message = msg
	return &cp
}

func (e *Error) WithOp(op string) *Error {
	cp := *e
	cp.Op = op
	return &cp
}

func (e *Error) WithErr(err error) *Error {
	cp := *e
	cp.Err = err
	if cp.Stack == nil && captureStack(cp.Kind) {
		cp.Stack = debug.Stack()
	}
	return &cp
}

func New(kind Kind, op string, err error) *Error {
	e := &Error{
		Kind: kind,
		Op:   op,
		Err:  err,
	}
	if captureStack(kind) {
		e.Stack = debug.Stack()
	}
	return e
}

func captureStack(kind Kind) bool {
	return kind == Internal || kind == Dependency
}

func IsKind(err error, kind Kind) bool {
	var target *Error
	if errors.As(err, &target) {
		return target.Kind == kind
	}
	return false
}

// KindOf returns Internal for errors that are not *Error.
func KindOf(err error) Kind {
	var target *Error
	if errors.As(err, &target) {
		return target.Kind
	}
	return Internal
}

// Retryable reports whether the operation may succeed on a later attempt.
// Only kinds that describe the request itself are final; an error without a
// kind is treated as transient.
func Retryable(err error) bool {
	if err == nil {
		return false
	}
	var target *Error
	if !errors.As(err, &target) {
		return true
	}
	switch target.Kind {
	case InvalidInput, NotFound, Conflict, Unauthorised, Forbidden:
		return false
	}
	return true
}
