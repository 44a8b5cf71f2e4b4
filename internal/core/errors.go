package core

import (
	"fmt"

	"attendance.service/internal/core/model"
)

// Code classifies a failed attendance operation. Handlers map codes to HTTP
// statuses; domain codes are terminal for the attempt, STORE_UNAVAILABLE is
// retryable.
type Code string

const (
	CodeInvalidToken          Code = "INVALID_TOKEN"
	CodeNotAuthorized         Code = "NOT_AUTHORIZED"
	CodeLocationNotConfigured Code = "LOCATION_NOT_CONFIGURED"
	CodeOutOfRange            Code = "OUT_OF_RANGE"
	CodeAlreadyCheckedIn      Code = "ALREADY_CHECKED_IN"
	CodeNotCheckedIn          Code = "NOT_CHECKED_IN"
	CodeConflict              Code = "CONFLICT"
	CodeStoreUnavailable      Code = "STORE_UNAVAILABLE"
)

// Error is the typed failure every core operation returns. Reason carries
// the sub-cause (e.g. which token check failed); Day carries the current
// state on conflicts so callers can refresh instead of retrying blindly.
type Error struct {
	Code   Code
	Reason string
	Day    *model.AttendanceDay
	cause  error
}

func (e *Error) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("%s: %s", e.Code, e.Reason)
	}
	return string(e.Code)
}

func (e *Error) Unwrap() error {
	return e.cause
}

func newError(code Code, reason string, cause error) *Error {
	return &Error{Code: code, Reason: reason, cause: cause}
}

func conflictError(code Code, day *model.AttendanceDay) *Error {
	return &Error{Code: code, Day: day}
}
