package repositories

import "fmt"

// SessionErrorCode enumerates repository error causes for checkout session operations.
type SessionErrorCode string

const (
	// SessionErrorUnknown represents an unspecified failure.
	SessionErrorUnknown SessionErrorCode = "session_unknown"
	// SessionErrorNotFound indicates the session document is missing.
	SessionErrorNotFound SessionErrorCode = "session_not_found"
	// SessionErrorInvalidState indicates the stored status forbids the operation.
	SessionErrorInvalidState SessionErrorCode = "session_invalid_state"
	// SessionErrorDuplicate indicates a session with the same ID already exists.
	SessionErrorDuplicate SessionErrorCode = "session_duplicate"
)

// SessionError wraps session-specific failures with machine readable codes.
type SessionError struct {
	Op      string
	Code    SessionErrorCode
	Message string
	Err     error
}

// Error implements the error interface.
func (e *SessionError) Error() string {
	if e == nil {
		return ""
	}
	if e.Op != "" {
		return fmt.Sprintf("%s: %s", e.Op, e.Message)
	}
	return e.Message
}

// Unwrap exposes the underlying error, if any.
func (e *SessionError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// NewSessionError constructs a typed session error.
func NewSessionError(code SessionErrorCode, message string, err error) *SessionError {
	if message == "" {
		message = string(code)
	}
	return &SessionError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}
