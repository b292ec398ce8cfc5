package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Error represents a typed domain error with HTTP awareness.
type Error struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Status  int    `json:"status"`
	Err     error  `json:"-"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap returns the wrapped error.
func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// New creates a new Error instance.
func New(code string, status int, message string) *Error {
	return &Error{Code: code, Status: status, Message: message}
}

// Wrap attaches context to an existing error.
func Wrap(err error, code string, status int, message string) *Error {
	return &Error{Code: code, Status: status, Message: message, Err: err}
}

// Predefined errors for common scenarios.
var (
	ErrInvalidCredentials = New("INVALID_CREDENTIALS", http.StatusUnauthorized, "invalid email or password")
	ErrInactiveAccount    = New("ACCOUNT_INACTIVE", http.StatusForbidden, "account is inactive")
	ErrNotFound           = New("NOT_FOUND", http.StatusNotFound, "resource not found")
	ErrForbidden          = New("FORBIDDEN", http.StatusForbidden, "forbidden")
	ErrUnauthorized       = New("UNAUTHORIZED", http.StatusUnauthorized, "unauthorized")
	ErrConflict           = New("CONFLICT", http.StatusConflict, "conflict")
	ErrValidation         = New("VALIDATION_ERROR", http.StatusBadRequest, "validation failed")
	ErrInternal           = New("INTERNAL_ERROR", http.StatusInternalServerError, "internal server error")
	ErrCacheMiss          = New("CACHE_MISS", http.StatusNotFound, "cache miss")
)

// Scheduling conflict taxonomy. Every placement rejection carries one of
// these codes so the UI can render a specific, correctable reason.
var (
	ErrInvalidInterval        = New("INVALID_INTERVAL", http.StatusBadRequest, "end time must be after start time")
	ErrOutsideWorkingHours    = New("OUTSIDE_WORKING_HOURS", http.StatusConflict, "lesson falls outside working hours")
	ErrTeacherUnavailable     = New("TEACHER_UNAVAILABLE", http.StatusConflict, "teacher is unavailable in this window")
	ErrTeacherDoubleBooked    = New("TEACHER_DOUBLE_BOOKED", http.StatusConflict, "teacher already has a lesson in this window")
	ErrClassDoubleBooked      = New("CLASS_DOUBLE_BOOKED", http.StatusConflict, "class already has a lesson in this window")
	ErrRoomDoubleBooked       = New("ROOM_DOUBLE_BOOKED", http.StatusConflict, "room already booked in this window")
	ErrOverlappingBlock       = New("OVERLAPPING_AVAILABILITY_BLOCK", http.StatusConflict, "overlaps an existing unavailability block")
	ErrUnauthorizedTransition = New("UNAUTHORIZED_TRANSITION", http.StatusConflict, "request is not in a state this actor may transition")
	ErrStaleState             = New("STALE_STATE_CONFLICT", http.StatusConflict, "the schedule changed since this request was submitted")
)

// IsCode reports whether err carries the same code as target.
func IsCode(err error, target *Error) bool {
	if err == nil || target == nil {
		return false
	}
	var e *Error
	if !errors.As(err, &e) {
		return false
	}
	return e.Code == target.Code
}

// FromError normalises any error into an *Error.
func FromError(err error) *Error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return Wrap(err, ErrInternal.Code, ErrInternal.Status, ErrInternal.Message)
}

// Clone returns a copy of the error allowing for message overrides.
func Clone(err *Error, message string) *Error {
	if err == nil {
		return nil
	}
	clone := *err
	if message != "" {
		clone.Message = message
	}
	return &clone
}
