package edgex

import (
	"errors"
	"fmt"
)

// Code is the high-level error taxonomy from spec.md §7.
type Code string

const (
	CodeInvalidArgument Code = "invalid argument"
	CodeInvalidHandle   Code = "invalid handle"
	CodePermissionDenied Code = "permission denied"
	CodeBusy            Code = "busy"
	CodeTimeout         Code = "timeout"
	CodeOverflow        Code = "overflow"
	CodeQueueFull       Code = "queue full"
	CodeQueueEmpty      Code = "queue empty"
	CodeNoRoute         Code = "no route"
	CodeOwnerDead       Code = "owner dead"
	CodeOutOfMemory     Code = "out of memory"
	CodeNameCollision   Code = "name collision"
	CodeAlreadyMapped   Code = "already mapped"
	CodeNoResize        Code = "no resize"
	CodeFatal           Code = "fatal"
)

// Error is the structured error type every public edgex operation
// returns: an operation name, a taxonomy code, a human message, and an
// optional wrapped inner error, modeled on the teacher's errors.go.
type Error struct {
	Op    string
	Code  Code
	Msg   string
	Inner error
}

func (e *Error) Error() string {
	msg := e.Msg
	if msg == "" {
		msg = string(e.Code)
	}
	if e.Op != "" {
		return fmt.Sprintf("edgex: %s: %s", e.Op, msg)
	}
	return fmt.Sprintf("edgex: %s", msg)
}

func (e *Error) Unwrap() error { return e.Inner }

// Is supports errors.Is against another *Error, matching when both carry
// the same Code; any other kind of target never matches.
func (e *Error) Is(target error) bool {
	if target == nil {
		return false
	}
	if te, ok := target.(*Error); ok {
		return e.Code == te.Code
	}
	return false
}

// NewError builds a plain structured error.
func NewError(op string, code Code, msg string) *Error {
	return &Error{Op: op, Code: code, Msg: msg}
}

// NewHandleError builds an InvalidHandle error for the named operation.
func NewHandleError(op string, msg string) *Error {
	return &Error{Op: op, Code: CodeInvalidHandle, Msg: msg}
}

// NewQueueOpError builds a queue-specific error (QueueFull/QueueEmpty/
// NoRoute/Timeout) for the named operation.
func NewQueueOpError(op string, code Code, msg string) *Error {
	return &Error{Op: op, Code: code, Msg: msg}
}

// WrapError wraps inner under op. If inner is already an *Error, its Code,
// Msg and Inner are carried over; otherwise the result carries code and
// inner's message. A nil inner yields nil.
func WrapError(op string, code Code, inner error) *Error {
	if inner == nil {
		return nil
	}
	if ee, ok := inner.(*Error); ok {
		return &Error{Op: op, Code: ee.Code, Msg: ee.Msg, Inner: ee.Inner}
	}
	return &Error{Op: op, Code: code, Msg: inner.Error(), Inner: inner}
}

// IsCode reports whether err is an *Error carrying the given Code.
func IsCode(err error, code Code) bool {
	var ee *Error
	if errors.As(err, &ee) {
		return ee.Code == code
	}
	return false
}
