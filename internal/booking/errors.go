package booking

import "errors"

// Business-rule failures visible to callers. None of these are retried by the
// service itself; only ErrTransientUnavailable is safe and useful to retry,
// since a failed booking leaves no partial state behind.
var (
	ErrInvalidBookingTime   = errors.New("appointment time must be in the future")
	ErrPatientConflict      = errors.New("patient has a conflicting appointment at this time")
	ErrDoctorConflict       = errors.New("doctor is not available at this time")
	ErrCapacityExceeded     = errors.New("doctor has reached maximum appointments for this day")
	ErrInvalidStatus        = errors.New("invalid appointment status")
	ErrAlreadyCancelled     = errors.New("appointment is already cancelled")
	ErrAppointmentNotFound  = errors.New("appointment not found")
	ErrTransientUnavailable = errors.New("booking temporarily unavailable, retry the request")
)
