package types

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// ErrorCode represents a unified error code across the module.
type ErrorCode string

// Graph construction and routing error codes
const (
	ErrConfiguration ErrorCode = "CONFIGURATION"
	ErrUnknownRoute  ErrorCode = "UNKNOWN_ROUTE"
	ErrStepLimit     ErrorCode = "STEP_LIMIT"
	ErrInvalidState  ErrorCode = "INVALID_STATE"
	ErrInvalidLog    ErrorCode = "INVALID_LOG"
)

// Capability error codes
const (
	ErrToolValidation ErrorCode = "TOOL_VALIDATION"
	ErrToolExecution  ErrorCode = "TOOL_EXECUTION"
	ErrCapability     ErrorCode = "CAPABILITY"
)

// Error represents a structured error with code, message, and metadata.
type Error struct {
	Code      ErrorCode      `json:"code"`
	Message   string         `json:"message"`
	Node      string         `json:"node,omitempty"`
	Retryable bool           `json:"retryable"`
	Details   map[string]any `json:"details,omitempty"`
	Cause     error          `json:"-"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "[%s] %s", e.Code, e.Message)
	if e.Node != "" {
		fmt.Fprintf(&b, " (node=%s)", e.Node)
	}
	if len(e.Details) > 0 {
		keys := make([]string, 0, len(e.Details))
		for k := range e.Details {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			fmt.Fprintf(&b, " %s=%v", k, e.Details[k])
		}
	}
	if e.Cause != nil {
		fmt.Fprintf(&b, ": %v", e.Cause)
	}
	return b.String()
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Cause
}

// NewError creates a new Error with the given code and message.
func NewError(code ErrorCode, message string) *Error {
	return &Error{Code: code, Message: message}
}

// WithCause adds a cause to the error.
func (e *Error) WithCause(cause error) *Error {
	e.Cause = cause
	return e
}

// WithNode records the graph node the error is attributed to.
func (e *Error) WithNode(node string) *Error {
	e.Node = node
	return e
}

// WithDetail attaches a key/value pair to the error.
func (e *Error) WithDetail(key string, value any) *Error {
	if e.Details == nil {
		e.Details = make(map[string]any)
	}
	e.Details[key] = value
	return e
}

// WithRetryable marks the error as retryable.
func (e *Error) WithRetryable(retryable bool) *Error {
	e.Retryable = retryable
	return e
}

// AsError extracts an *Error from an error chain.
func AsError(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// IsCode reports whether any *Error in err's chain carries code.
func IsCode(err error, code ErrorCode) bool {
	for err != nil {
		var e *Error
		if !errors.As(err, &e) {
			return false
		}
		if e.Code == code {
			return true
		}
		err = e.Cause
	}
	return false
}

// IsRetryable checks if an error is retryable.
func IsRetryable(err error) bool {
	if e, ok := AsError(err); ok {
		return e.Retryable
	}
	return false
}

// GetErrorCode extracts the error code from an error.
func GetErrorCode(err error) ErrorCode {
	if e, ok := AsError(err); ok {
		return e.Code
	}
	return ""
}

// NewConfigurationError reports a graph definition defect found at compile time.
func NewConfigurationError(format string, args ...any) *Error {
	return NewError(ErrConfiguration, fmt.Sprintf(format, args...))
}

// NewUnknownRouteError reports a router result outside its declared targets.
func NewUnknownRouteError(from, target string, declared []string) *Error {
	return NewError(ErrUnknownRoute, fmt.Sprintf("router returned undeclared target %q", target)).
		WithNode(from).
		WithDetail("declared", declared)
}

// NewCapabilityError wraps a model capability failure.
func NewCapabilityError(node string, cause error) *Error {
	return NewError(ErrCapability, "model capability failed").
		WithNode(node).
		WithCause(cause).
		WithRetryable(IsRetryable(cause))
}
