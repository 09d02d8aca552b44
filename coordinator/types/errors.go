package types

import (
	"encoding/json"
	"errors"
	"fmt"
)

// ErrorKind classifies a domain failure so callers can tell an expired
// proposal from a duplicate signature without parsing messages.
type ErrorKind string

const (
	ErrNotFound             ErrorKind = "not_found"
	ErrUnauthorized         ErrorKind = "unauthorized"
	ErrAlreadySigned        ErrorKind = "already_signed"
	ErrInvalidSignature     ErrorKind = "invalid_signature"
	ErrStaleSignature       ErrorKind = "stale_signature"
	ErrNotPending           ErrorKind = "not_pending"
	ErrExpired              ErrorKind = "expired"
	ErrAlreadyResolved      ErrorKind = "already_resolved"
	ErrInsufficientWeight   ErrorKind = "insufficient_weight"
	ErrExecutionFailed      ErrorKind = "execution_failed"
	ErrInvalidThreshold     ErrorKind = "invalid_threshold"
	ErrLastValidatorRemoval ErrorKind = "last_validator_removal"
	ErrInvalidRequest       ErrorKind = "invalid_request"
)

// Error is a typed domain error.
type Error struct {
	Kind    ErrorKind `json:"kind"`
	Message string    `json:"message"`
}

func (e *Error) Error() string {
	return string(e.Kind) + ": " + e.Message
}

func (e *Error) MarshalJSON() ([]byte, error) {
	return json.Marshal(&struct {
		Kind    ErrorKind `json:"kind"`
		Message string    `json:"message"`
	}{Kind: e.Kind, Message: e.Message})
}

func NewError(kind ErrorKind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

func NewErrorf(kind ErrorKind, format string, values ...interface{}) *Error {
	if len(values) == 0 {
		return &Error{Kind: kind, Message: format}
	}
	return &Error{Kind: kind, Message: fmt.Sprintf(format, values...)}
}

// IsKind reports whether err (or anything it wraps) is a domain Error of
// the given kind.
func IsKind(err error, kind ErrorKind) bool {
	var domainErr *Error
	if errors.As(err, &domainErr) {
		return domainErr.Kind == kind
	}
	return false
}
