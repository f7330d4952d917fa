package firestore

import (
	"errors"
	"fmt"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// Error classifies Firestore failures so callers can react to the class
// rather than the raw gRPC status.
type Error struct {
	Op   string
	Code codes.Code
	Err  error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Op == "" {
		return fmt.Sprintf("firestore: %v", e.Err)
	}
	return fmt.Sprintf("firestore: %s: %v", e.Op, e.Err)
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// WrapError normalises err into *Error, extracting the gRPC status code when present.
func WrapError(op string, err error) error {
	if err == nil {
		return nil
	}
	var ferr *Error
	if errors.As(err, &ferr) {
		return err
	}
	code := codes.Unknown
	if st, ok := status.FromError(err); ok {
		code = st.Code()
	}
	return &Error{Op: op, Code: code, Err: err}
}

// IsNotFound reports whether err represents a missing document.
func IsNotFound(err error) bool {
	return hasCode(err, codes.NotFound)
}

// IsConflict reports whether err represents a contention or precondition failure.
func IsConflict(err error) bool {
	return hasCode(err, codes.Aborted) || hasCode(err, codes.FailedPrecondition) || hasCode(err, codes.AlreadyExists)
}

// IsUnavailable reports whether err represents a transient backend failure.
func IsUnavailable(err error) bool {
	return hasCode(err, codes.Unavailable) || hasCode(err, codes.DeadlineExceeded)
}

func hasCode(err error, code codes.Code) bool {
	if err == nil {
		return false
	}
	var ferr *Error
	if errors.As(err, &ferr) {
		return ferr.Code == code
	}
	return status.Code(err) == code
}
