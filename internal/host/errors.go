package host

import (
	"errors"
	"fmt"
)

// Code classifies a native messaging failure so callers can branch on the
// kind of fault without string matching.
type Code string

const (
	// CodeTimeout means the host did not answer within the request timeout
	CodeTimeout Code = "TIMEOUT"
	// CodeChannel means the transport failed before or after the request was written
	CodeChannel Code = "CHANNEL_ERROR"
	// CodeInvalidResponse means the host answered with an unintelligible envelope
	CodeInvalidResponse Code = "INVALID_RESPONSE"
	// CodeRemote means the host processed the request and reported an error
	CodeRemote Code = "REMOTE_ERROR"
	// CodeShuttingDown means the messenger was stopped before the request settled
	CodeShuttingDown Code = "SHUTTING_DOWN"
)

// Error is a classified native messaging failure
type Error struct {
	Code    Code
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// CodeOf extracts the failure code from err, or empty when err is not a
// native messaging error.
func CodeOf(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// IsTimeout reports whether err is a request timeout
func IsTimeout(err error) bool {
	return CodeOf(err) == CodeTimeout
}

// IsShuttingDown reports whether err is a shutdown rejection
func IsShuttingDown(err error) bool {
	return CodeOf(err) == CodeShuttingDown
}
