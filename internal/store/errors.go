package store

import (
	"errors"
	"fmt"

	"github.com/roach88/perstore/internal/ir"
)

// ErrNoDatabase is returned by New when no kv store is supplied.
var ErrNoDatabase = errors.New("store: a database must be provided")

// ErrorCode categorizes store errors.
type ErrorCode string

const (
	// CodeAlreadyExists indicates a NoOverwrite put hit an occupied key.
	CodeAlreadyExists ErrorCode = "ALREADY_EXISTS"

	// CodeLockConflict indicates a NoOverwrite put stayed contended until
	// the retry policy gave up.
	CodeLockConflict ErrorCode = "LOCK_CONFLICT"

	// CodeIteratorFailure indicates the raw iterator failed mid-scan.
	CodeIteratorFailure ErrorCode = "ITERATOR_FAILURE"

	// CodeInvalidRecord indicates a record or identifier that cannot be
	// encoded.
	CodeInvalidRecord ErrorCode = "INVALID_RECORD"

	// CodeInvalidQuery indicates query text or IR that does not compile.
	CodeInvalidQuery ErrorCode = "INVALID_QUERY"
)

// Error is a store failure with a category and, where known, the identifier
// involved.
type Error struct {
	Code    ErrorCode
	Message string
	Key     ir.IRValue
	Err     error
}

// Error implements the error interface.
func (e *Error) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Code, e.Message)
	if e.Key != nil {
		msg = fmt.Sprintf("%s (key=%s)", msg, ir.String(e.Key))
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

// Unwrap exposes the underlying cause, so errors.Is(err, kv.ErrExists)
// holds for ALREADY_EXISTS.
func (e *Error) Unwrap() error {
	return e.Err
}

// CodeOf returns the Code of the first *Error in err's chain, or "".
func CodeOf(err error) ErrorCode {
	var se *Error
	if errors.As(err, &se) {
		return se.Code
	}
	return ""
}

// IsAlreadyExists returns true if the error is an existence conflict.
// Uses errors.As to handle wrapped errors.
func IsAlreadyExists(err error) bool {
	return CodeOf(err) == CodeAlreadyExists
}

// IsLockConflict returns true if the error is exhausted lock contention.
func IsLockConflict(err error) bool {
	return CodeOf(err) == CodeLockConflict
}

// IsIteratorFailure returns true if the error ended a query stream.
func IsIteratorFailure(err error) bool {
	return CodeOf(err) == CodeIteratorFailure
}

// IsInvalidQuery returns true if the error rejected a query.
func IsInvalidQuery(err error) bool {
	return CodeOf(err) == CodeInvalidQuery
}

func newAlreadyExistsError(id ir.IRValue, err error) *Error {
	return &Error{
		Code:    CodeAlreadyExists,
		Message: "a record already exists at this key",
		Key:     id,
		Err:     err,
	}
}

func newLockConflictError(id ir.IRValue, err error) *Error {
	return &Error{
		Code:    CodeLockConflict,
		Message: "key stayed locked by another writer",
		Key:     id,
		Err:     err,
	}
}

func newInvalidRecordError(id ir.IRValue, err error) *Error {
	return &Error{
		Code:    CodeInvalidRecord,
		Message: "record cannot be stored",
		Key:     id,
		Err:     err,
	}
}

func newInvalidQueryError(err error) *Error {
	return &Error{
		Code:    CodeInvalidQuery,
		Message: "query does not compile",
		Err:     err,
	}
}

func newIteratorFailureError(err error) *Error {
	return &Error{
		Code:    CodeIteratorFailure,
		Message: "iteration failed",
		Err:     err,
	}
}
