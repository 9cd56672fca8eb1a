package domain

import (
	"fmt"
	"time"

	"github.com/pkg/errors"
)

// Standard error codes used on the wire. The list is not exhaustive: servers
// may return codes this package has never heard of and they are passed through.
const (
	CodeForbidden     = "M_FORBIDDEN"
	CodeInvalidParam  = "M_INVALID_PARAM"
	CodeLimitExceeded = "M_LIMIT_EXCEEDED"
	CodeMissingToken  = "M_MISSING_TOKEN"
	CodeNotFound      = "M_NOT_FOUND"
	CodeUnknown       = "M_UNKNOWN"
	CodeUnknownToken  = "M_UNKNOWN_TOKEN"
	CodeUnrecognized  = "M_UNRECOGNIZED"
)

var (
	// ErrMalformedIdentifier is returned when a room or event ID fails syntax checks
	// while a request is being encoded. Retrying will not help.
	ErrMalformedIdentifier = errors.New("malformed identifier")

	// ErrNoMoreResults is returned when forward continuation is requested from a
	// response that carries no next_batch. It never reaches the wire.
	ErrNoMoreResults = errors.New("no more results")
)

// RemoteError is a request-level failure reported by the server.
type RemoteError struct {
	StatusCode int
	Code       string
	Message    string
	RetryAfter time.Duration
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("remote rejected request: %d %s: %s", e.StatusCode, e.Code, e.Message)
}

// TransportError is a network or serialization failure below the protocol layer.
type TransportError struct {
	Err error
}

func (e *TransportError) Error() string {
	return "transport failure: " + e.Err.Error()
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// IsRetryable reports whether err is worth retrying later. Transport failures
// and rate limiting qualify; every other error should stop pagination.
func IsRetryable(err error) bool {
	var te *TransportError
	if errors.As(err, &te) {
		return true
	}

	var re *RemoteError
	if errors.As(err, &re) {
		return re.Code == CodeLimitExceeded
	}
	return false
}
