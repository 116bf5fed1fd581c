package shared

import "fmt"

// ErrorKind classifies a DomainError so callers can decide how to react
// without matching on individual codes
type ErrorKind string

const (
	// KindValidation is a rejected input; nothing was written
	KindValidation ErrorKind = "VALIDATION"
	// KindNotFound is an unresolved purchase, item, payment or return id
	KindNotFound ErrorKind = "NOT_FOUND"
	// KindSideEffect is a failed stock ledger or accounting journal call
	KindSideEffect ErrorKind = "SIDE_EFFECT"
	// KindTimeline is a failed timeline append
	KindTimeline ErrorKind = "TIMELINE"
	// KindTransientDataAccess is a read that kept failing after bounded retry
	KindTransientDataAccess ErrorKind = "TRANSIENT_DATA_ACCESS"
)

// DomainError represents a domain-level error
type DomainError struct {
	Kind    ErrorKind `json:"kind"`
	Code    string    `json:"code"`
	Message string    `json:"message"`
	Err     error     `json:"-"`
}

// Error implements the error interface
func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap returns the underlying cause, if any
func (e *DomainError) Unwrap() error {
	return e.Err
}

// Is matches by code, or by kind when the target carries no code.
// The kind sentinels below rely on the latter.
func (e *DomainError) Is(target error) bool {
	t, ok := target.(*DomainError)
	if !ok {
		return false
	}
	if t.Code == "" {
		return t.Kind == e.Kind
	}
	return t.Code == e.Code
}

// NewDomainError creates a new domain error of the given kind
func NewDomainError(kind ErrorKind, code, message string) *DomainError {
	return &DomainError{
		Kind:    kind,
		Code:    code,
		Message: message,
	}
}

// NewValidationError creates a validation error
func NewValidationError(code, message string) *DomainError {
	return NewDomainError(KindValidation, code, message)
}

// NewNotFoundError creates a not-found error
func NewNotFoundError(code, message string) *DomainError {
	return NewDomainError(KindNotFound, code, message)
}

// NewSideEffectError wraps a failed stock or journal call
func NewSideEffectError(code, message string, cause error) *DomainError {
	e := NewDomainError(KindSideEffect, code, message)
	e.Err = cause
	return e
}

// NewTimelineError wraps a failed timeline append
func NewTimelineError(message string, cause error) *DomainError {
	e := NewDomainError(KindTimeline, "TIMELINE_APPEND_FAILED", message)
	e.Err = cause
	return e
}

// NewTransientDataAccessError wraps a read failure that survived retry
func NewTransientDataAccessError(message string, cause error) *DomainError {
	e := NewDomainError(KindTransientDataAccess, "TRANSIENT_DATA_ACCESS", message)
	e.Err = cause
	return e
}

// Kind sentinels, for use with errors.Is
var (
	ErrValidation          = &DomainError{Kind: KindValidation, Message: "Validation failed"}
	ErrNotFound            = &DomainError{Kind: KindNotFound, Message: "Resource not found"}
	ErrSideEffect          = &DomainError{Kind: KindSideEffect, Message: "Side effect failed"}
	ErrTimeline            = &DomainError{Kind: KindTimeline, Message: "Timeline append failed"}
	ErrTransientDataAccess = &DomainError{Kind: KindTransientDataAccess, Message: "Data access failed"}
)

// IsKind reports whether err is a DomainError of the given kind
func IsKind(err error, kind ErrorKind) bool {
	for err != nil {
		if de, ok := err.(*DomainError); ok && de.Kind == kind {
			return true
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = u.Unwrap()
	}
	return false
}
