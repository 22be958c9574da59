// Package appointments owns appointment records and their lifecycle.
package appointments

import (
	"fmt"
	"strings"
	"time"
)

// Status is the lifecycle state of an appointment.
//
//	scheduled → completed
//	scheduled → cancelled
type Status string

const (
	StatusScheduled Status = "scheduled"
	StatusCompleted Status = "completed"
	StatusCancelled Status = "cancelled"
)

// ParseStatus normalises a status string.
func ParseStatus(raw string) (Status, error) {
	s := Status(strings.ToLower(strings.TrimSpace(raw)))
	if !s.Valid() {
		return "", fmt.Errorf("appointments: unknown status %q", raw)
	}
	return s, nil
}

func (s Status) Valid() bool {
	switch s {
	case StatusScheduled, StatusCompleted, StatusCancelled:
		return true
	}
	return false
}

// Terminal reports whether no further transitions are allowed.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusCancelled
}

// CanTransition reports whether from may move to to.
func CanTransition(from, to Status) bool {
	return from == StatusScheduled && to.Terminal()
}

// Appointment is a stored booking.
type Appointment struct {
	ID           int64     `json:"id"`
	PatientID    int64     `json:"patient_id"`
	DoctorID     int64     `json:"doctor_id"`
	ScheduledFor time.Time `json:"scheduled_for"`
	Status       Status    `json:"status"`
	Remarks      string    `json:"remarks,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// NewAppointment is a validated booking ready to persist.
type NewAppointment struct {
	PatientID    int64
	DoctorID     int64
	ScheduledFor time.Time
	Remarks      string
}

// Filter narrows List results. Zero values mean "any".
type Filter struct {
	Status    Status
	PatientID int64
	DoctorID  int64
	// From is inclusive, To is exclusive.
	From      *time.Time
	To        *time.Time
	Ascending bool
	Limit     int
	Offset    int
}

// StatusCounts summarises appointments for the dashboard.
type StatusCounts struct {
	Total     int64 `json:"total"`
	Scheduled int64 `json:"scheduled"`
	Completed int64 `json:"completed"`
	Cancelled int64 `json:"cancelled"`
	Today     int64 `json:"today"`
}

func (c *StatusCounts) add(status Status, n int64) {
	switch status {
	case StatusScheduled:
		c.Scheduled += n
	case StatusCompleted:
		c.Completed += n
	case StatusCancelled:
		c.Cancelled += n
	}
	c.Total += n
}
