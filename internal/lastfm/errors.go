package lastfm

import (
	"errors"
	"fmt"
)

var (
	// ErrUnexpectedStatus is returned for non-2xx responses that carry no
	// Last.fm error body.
	ErrUnexpectedStatus = errors.New("unexpected http status")

	// ErrTooManyScrobbles is returned when a batch exceeds MaxBatchSize.
	ErrTooManyScrobbles = errors.New("too many scrobbles in one batch")

	// ErrNoScrobbles is returned for an empty batch.
	ErrNoScrobbles = errors.New("no scrobbles to submit")
)

// Code is a numeric error code reported by the service.
type Code int

// Codes documented by the Last.fm API.
const (
	CodeInvalidService    Code = 2
	CodeInvalidMethod     Code = 3
	CodeAuthentication    Code = 4
	CodeMissingParameter  Code = 6
	CodeInvalidResource   Code = 7
	CodeOperationFailed   Code = 8
	CodeInvalidSessionKey Code = 9
	CodeInvalidAPIKey     Code = 10
	CodeServiceOffline    Code = 11
	CodeInvalidSignature  Code = 13
	CodeUnauthorizedToken Code = 14 // token not confirmed by the user yet
	CodeTemporary         Code = 16
	CodeSuspendedAPIKey   Code = 26
	CodeRateLimited       Code = 29
)

// Cause is the closed set of failure reasons a Code maps to.
type Cause int

const (
	CauseUnknown Cause = iota
	CauseInvalidService
	CauseInvalidMethod
	CauseAuthenticationFailed
	CauseMissingParameter
	CauseInvalidResource
	CauseOperationFailed
	CauseInvalidSessionKey
	CauseInvalidAPIKey
	CauseServiceOffline
	CauseInvalidSignature
	CauseTemporary
	CauseSuspendedAPIKey
	CauseRateLimited
)

// Cause classifies the code. Codes the service has not documented map to
// CauseUnknown.
func (c Code) Cause() Cause {
	switch c {
	case CodeInvalidService:
		return CauseInvalidService
	case CodeInvalidMethod:
		return CauseInvalidMethod
	case CodeAuthentication:
		return CauseAuthenticationFailed
	case CodeMissingParameter:
		return CauseMissingParameter
	case CodeInvalidResource:
		return CauseInvalidResource
	case CodeOperationFailed:
		return CauseOperationFailed
	case CodeInvalidSessionKey:
		return CauseInvalidSessionKey
	case CodeInvalidAPIKey:
		return CauseInvalidAPIKey
	case CodeServiceOffline:
		return CauseServiceOffline
	case CodeInvalidSignature:
		return CauseInvalidSignature
	case CodeTemporary:
		return CauseTemporary
	case CodeSuspendedAPIKey:
		return CauseSuspendedAPIKey
	case CodeRateLimited:
		return CauseRateLimited
	default:
		return CauseUnknown
	}
}

// String returns a short description of the cause.
func (c Cause) String() string {
	switch c {
	case CauseInvalidService:
		return "invalid service"
	case CauseInvalidMethod:
		return "invalid method"
	case CauseAuthenticationFailed:
		return "authentication failed"
	case CauseMissingParameter:
		return "missing required parameter"
	case CauseInvalidResource:
		return "invalid resource specified"
	case CauseOperationFailed:
		return "operation failed"
	case CauseInvalidSessionKey:
		return "session key is invalid"
	case CauseInvalidAPIKey:
		return "api key is invalid"
	case CauseServiceOffline:
		return "service is offline"
	case CauseInvalidSignature:
		return "invalid method signature"
	case CauseTemporary:
		return "temporary error"
	case CauseSuspendedAPIKey:
		return "api key suspended"
	case CauseRateLimited:
		return "rate limit exceeded"
	case CauseUnknown:
		return "unknown error"
	}
	return "unknown error"
}

// Error is an error reported by the service in a response body.
type Error struct {
	Code    Code
	Message string
}

func (e *Error) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("last.fm error %d: %s", e.Code, e.Code.Cause())
	}
	return fmt.Sprintf("last.fm error %d: %s: %s", e.Code, e.Code.Cause(), e.Message)
}

// Cause returns the classified cause of the error.
func (e *Error) Cause() Cause {
	return e.Code.Cause()
}

// Temporary reports whether retrying later may succeed.
func (e *Error) Temporary() bool {
	switch e.Code.Cause() {
	case CauseServiceOffline, CauseTemporary, CauseRateLimited:
		return true
	default:
		return false
	}
}

// CauseOf extracts the Cause from err, if it wraps an *Error.
func CauseOf(err error) (Cause, bool) {
	var lfmErr *Error
	if errors.As(err, &lfmErr) {
		return lfmErr.Cause(), true
	}
	return CauseUnknown, false
}
