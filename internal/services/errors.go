package services

import (
	"errors"
	"fmt"
)

type ErrorKind int

const (
	KindInternal ErrorKind = iota
	KindValidation
	KindUnauthorized
	KindNotFound
	KindConflict
	KindUpstream
)

// Error is the failure type every service returns. Message is safe to show to
// the caller; Err, when set, is only logged.
type Error struct {
	Kind    ErrorKind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches another *Error by kind and message so sentinels work with errors.Is.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind && t.Message == e.Message
}

func validation(msg string) *Error   { return &Error{Kind: KindValidation, Message: msg} }
func unauthorized(msg string) *Error { return &Error{Kind: KindUnauthorized, Message: msg} }
func notFound(msg string) *Error     { return &Error{Kind: KindNotFound, Message: msg} }
func conflict(msg string) *Error     { return &Error{Kind: KindConflict, Message: msg} }

func upstream(msg string, err error) *Error {
	return &Error{Kind: KindUpstream, Message: msg, Err: err}
}

func internal(err error) *Error {
	return &Error{Kind: KindInternal, Message: "Something went wrong. Please try again later.", Err: err}
}

// Caller-visible failures that more than one operation reports.
var (
	ErrNotAuthorized       = unauthorized("Not Authorized Login Again")
	ErrUnauthorizedAction  = unauthorized("Unauthorized action")
	ErrInvalidCredentials  = unauthorized("Invalid credentials")
	ErrUserNotFound        = notFound("User not found")
	ErrDoctorNotFound      = notFound("Doctor not found")
	ErrAppointmentNotFound = notFound("Appointment not found")
	ErrReviewNotFound      = notFound("Review not found")
	ErrSlotBooked          = conflict("Slot is already booked")
	ErrDoctorUnavailable   = conflict("Doctor is not available at this time")
	ErrAlreadyCancelled    = conflict("Appointment already cancelled")
	ErrAlreadyCompleted    = conflict("Appointment already completed")
	ErrAlreadyPaid         = conflict("Payment already completed")
	ErrReviewExists        = conflict("Review already exists for this appointment")
	ErrWeakPassword        = validation("Password must be at least 8 characters long")
)

// AsError extracts the service error from err, wrapping unknown errors as internal.
func AsError(err error) *Error {
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return internal(err)
}
