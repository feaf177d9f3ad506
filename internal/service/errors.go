package service

import (
	"context"
	"errors"
	"fmt"
)

// Kind classifies a lifecycle failure.
type Kind string

const (
	KindValidation        Kind = "ValidationFailed"
	KindNotFound          Kind = "NotFound"
	KindInvalidTransition Kind = "InvalidStateTransition"
	KindBlobOperation     Kind = "BlobOperationFailed"
	KindMetadataWrite     Kind = "MetadataWriteFailed"
)

// Sentinels for errors.Is matching against a *Error of the same kind.
var (
	ErrValidation        = errors.New("validation failed")
	ErrNotFound          = errors.New("file not found")
	ErrInvalidTransition = errors.New("invalid state transition")
	ErrBlobOperation     = errors.New("blob operation failed")
	ErrMetadataWrite     = errors.New("metadata write failed")
)

func (k Kind) sentinel() error {
	switch k {
	case KindValidation:
		return ErrValidation
	case KindNotFound:
		return ErrNotFound
	case KindInvalidTransition:
		return ErrInvalidTransition
	case KindBlobOperation:
		return ErrBlobOperation
	case KindMetadataWrite:
		return ErrMetadataWrite
	}
	return nil
}

// Compensation reports the undo step taken after a partial failure.
// Attempted is false when no undo was possible, e.g. a blob already deleted by a purge.
type Compensation struct {
	Attempted bool `json:"attempted"`
	Succeeded bool `json:"succeeded"`
}

// Error is returned by every FileService transition.
type Error struct {
	Kind         Kind
	Op           string
	FileID       int64
	Err          error
	Compensation *Compensation
	// ClaimStuck is set when the transition claim could not be released; the record
	// refuses new transitions until the claim expires.
	ClaimStuck bool
}

func (e *Error) Error() string {
	msg := e.Op
	if e.FileID != 0 {
		msg += fmt.Sprintf(" file %d", e.FileID)
	}
	msg += ": " + string(e.Kind)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	if c := e.Compensation; c != nil {
		switch {
		case !c.Attempted:
			msg += " (no compensation possible)"
		case c.Succeeded:
			msg += " (compensated)"
		default:
			msg += " (compensation failed)"
		}
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

func (e *Error) Is(target error) bool {
	s := e.Kind.sentinel()
	return s != nil && target == s
}

// PartialEffect reports whether the stores may have diverged or a side effect may have
// happened. Callers must re-read the record before retrying when it is true.
func (e *Error) PartialEffect() bool {
	switch e.Kind {
	case KindMetadataWrite:
		return true
	case KindBlobOperation:
		if e.ClaimStuck || errors.Is(e.Err, context.DeadlineExceeded) {
			return true
		}
		return e.Compensation != nil && !e.Compensation.Succeeded
	}
	return false
}

func newError(kind Kind, op string, id int64, err error) *Error {
	return &Error{Kind: kind, Op: op, FileID: id, Err: err}
}
