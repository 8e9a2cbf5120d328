package appointment

import "errors"

var (
	ErrNotFound                = errors.New("appointment not found")
	ErrConflict                = errors.New("appointment time slot is already booked")
	ErrInvalidStatusTransition = errors.New("invalid appointment status transition")
	ErrScheduledInPast         = errors.New("appointment date must be in the future")
	ErrInvalidDuration         = errors.New("appointment duration must be positive")
	ErrInvalidStatus           = errors.New("invalid appointment status")

	// ErrStatusRace is returned when a conditional status update loses to a
	// concurrent transition on the same appointment.
	ErrStatusRace = errors.New("appointment status changed concurrently")
)
