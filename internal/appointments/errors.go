package appointments

import "errors"

var (
	// ErrNotFound is returned when no appointment has the requested id.
	ErrNotFound = errors.New("appointments: not found")
	// ErrStorage wraps failures of the underlying store.
	ErrStorage = errors.New("appointments: storage error")
	// ErrSlotTaken is returned by Create when the doctor's slot is already occupied.
	ErrSlotTaken = errors.New("appointments: slot already booked")
	// ErrInvalidTransition is returned when a status change is not allowed.
	ErrInvalidTransition = errors.New("appointments: invalid status transition")
)
