package ordering

import (
	"errors"
	"fmt"
	"strings"
)

// ErrorClass represents the classification of an error for recovery logic.
type ErrorClass string

const (
	// ErrorClassTransient indicates a temporary failure that may succeed on retry.
	// Examples: a locked metadata database, a schema file being rewritten.
	ErrorClassTransient ErrorClass = "transient"

	// ErrorClassPermanent indicates a non-recoverable error.
	// Examples: malformed schema metadata, an unresolvable dependency cycle.
	ErrorClassPermanent ErrorClass = "permanent"
)

// Common error codes.
const (
	ErrCodeValidation       = "VALIDATION_ERROR"
	ErrCodeProviderFailed   = "PROVIDER_FAILED"
	ErrCodeCyclicDependency = "CYCLIC_DEPENDENCY"
	ErrCodeInternal         = "INTERNAL_ERROR"
)

// ErrCyclicDependency matches any *CyclicDependencyError with errors.Is.
var ErrCyclicDependency = errors.New("cyclic dependency")

// Error represents a classified ordering error with context.
type Error struct {
	// Class is the error classification.
	Class ErrorClass `json:"class"`

	// Message is the human-readable error message.
	Message string `json:"message"`

	// Code is an optional error code for programmatic handling.
	Code string `json:"code,omitempty"`

	// Type is the type identifier that caused the error, if applicable.
	Type TypeID `json:"type,omitempty"`

	// Err is the underlying error that caused this error.
	Err error `json:"-"`

	// Details contains additional context-specific information.
	Details map[string]interface{} `json:"details,omitempty"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Type != "" {
		return fmt.Sprintf("[%s] %s (type=%s): %s", e.Class, e.Message, e.Type, e.unwrapMessage())
	}
	return fmt.Sprintf("[%s] %s: %s", e.Class, e.Message, e.unwrapMessage())
}

// Unwrap returns the underlying error for error chain inspection.
func (e *Error) Unwrap() error {
	return e.Err
}

func (e *Error) unwrapMessage() string {
	if e.Err != nil {
		return e.Err.Error()
	}
	return ""
}

// Is implements error equality checking for errors.Is.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Class == t.Class && e.Code == t.Code
}

// NewTransientError creates a new transient error.
func NewTransientError(message string, err error) *Error {
	return &Error{
		Class:   ErrorClassTransient,
		Message: message,
		Err:     err,
	}
}

// NewPermanentError creates a new permanent error.
func NewPermanentError(message string, err error) *Error {
	return &Error{
		Class:   ErrorClassPermanent,
		Message: message,
		Err:     err,
	}
}

// WithType adds type context to an error.
func (e *Error) WithType(id TypeID) *Error {
	e.Type = id
	return e
}

// WithCode adds an error code to an error.
func (e *Error) WithCode(code string) *Error {
	e.Code = code
	return e
}

// WithDetail adds a detail field to the error context.
func (e *Error) WithDetail(key string, value interface{}) *Error {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

// IsTransient returns true if the error is classified as transient.
func IsTransient(err error) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Class == ErrorClassTransient
	}
	return false
}

// ErrorCode returns the code carried by err. Cyclic dependency errors report
// ErrCodeCyclicDependency and unclassified errors ErrCodeInternal.
func ErrorCode(err error) string {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) && e.Code != "" {
		return e.Code
	}
	var ce *CyclicDependencyError
	if errors.As(err, &ce) {
		return ce.Code()
	}
	return ErrCodeInternal
}

// IsPermanent returns true if the error is classified as permanent.
// Cyclic dependency errors are always permanent.
func IsPermanent(err error) bool {
	if errors.Is(err, ErrCyclicDependency) {
		return true
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Class == ErrorClassPermanent
	}
	return false
}

// CyclicDependencyError is returned by Add when a rebuild re-enters a type
// that is still on the active traversal path. Back-edge cycles never produce
// it; those are flagged on the attribute instead.
type CyclicDependencyError struct {
	// Type is the type that was re-entered.
	Type TypeID

	// Path is the active traversal path at the time of detection, ending
	// with Type.
	Path []TypeID
}

// Error implements the error interface.
func (e *CyclicDependencyError) Error() string {
	if len(e.Path) == 0 {
		return fmt.Sprintf("circular dependency detected at %s", e.Type)
	}
	return fmt.Sprintf("circular dependency detected: %s", formatCycle(e.Path))
}

// Code returns ErrCodeCyclicDependency.
func (e *CyclicDependencyError) Code() string {
	return ErrCodeCyclicDependency
}

// Is reports whether target is ErrCyclicDependency.
func (e *CyclicDependencyError) Is(target error) bool {
	return target == ErrCyclicDependency
}

// classifyProviderError wraps a provider failure for id. A provider error
// that is already classified keeps its class and details.
func classifyProviderError(id TypeID, err error) *Error {
	var pe *Error
	if !errors.As(err, &pe) {
		return NewPermanentError("failed to resolve dependencies", err).
			WithType(id).
			WithCode(ErrCodeProviderFailed)
	}

	e := &Error{
		Class:   pe.Class,
		Message: "failed to resolve dependencies",
		Code:    pe.Code,
		Type:    id,
		Err:     err,
	}
	if e.Code == "" {
		e.Code = ErrCodeProviderFailed
	}
	for k, v := range pe.Details {
		e.WithDetail(k, v)
	}
	return e
}

// formatCycle formats a cycle path for error messages.
func formatCycle(cycle []TypeID) string {
	parts := make([]string, len(cycle))
	for i, id := range cycle {
		parts[i] = string(id)
	}
	return strings.Join(parts, " -> ")
}
