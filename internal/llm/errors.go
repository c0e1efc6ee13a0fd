package llm

import (
	"context"
	"errors"
	"fmt"
	"net"
)

// ErrType classifies adapter failures so callers can pick the right
// fallback without inspecting provider-specific errors.
type ErrType string

// Error type tags.
const (
	ErrTimeout          ErrType = "timeout"
	ErrRateLimit        ErrType = "rate_limit"
	ErrConnection       ErrType = "connection"
	ErrParse            ErrType = "parse_error"
	ErrAPINotConfigured ErrType = "api_not_configured"
)

// Error is the structured error every adapter returns. Raw transport and
// provider errors never escape the llm package.
type Error struct {
	Err     error
	Type    ErrType
	Message string
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Type, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// NewError creates a tagged adapter error.
func NewError(errType ErrType, message string, err error) *Error {
	return &Error{Type: errType, Message: message, Err: err}
}

// TypeOf returns the tag of an adapter error, or an empty tag for other
// errors.
func TypeOf(err error) ErrType {
	var llmErr *Error
	if errors.As(err, &llmErr) {
		return llmErr.Type
	}
	return ""
}

// IsRateLimited reports whether an error is a rate-limit or quota signal.
func IsRateLimited(err error) bool {
	return TypeOf(err) == ErrRateLimit
}

// classifyTransportError converts raw HTTP transport failures into tagged
// errors.
func classifyTransportError(err error) *Error {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return NewError(ErrTimeout, "request deadline exceeded", err)
	case errors.Is(err, context.Canceled):
		return NewError(ErrTimeout, "request canceled", err)
	default:
		var netErr net.Error
		if errors.As(err, &netErr) && netErr.Timeout() {
			return NewError(ErrTimeout, "network timeout", err)
		}
		return NewError(ErrConnection, "request failed", err)
	}
}
