package events

import "time"

// Appointment lifecycle event types.
const (
	TypeAppointmentScheduled   = "appointment.scheduled.v1"
	TypeAppointmentCompleted   = "appointment.completed.v1"
	TypeAppointmentCancelled   = "appointment.cancelled.v1"
	TypeAppointmentRescheduled = "appointment.rescheduled.v1"
)

type AppointmentScheduledV1 struct {
	AppointmentID int64     `json:"appointment_id"`
	PatientID     int64     `json:"patient_id"`
	DoctorID      int64     `json:"doctor_id"`
	ScheduledFor  time.Time `json:"scheduled_for"`
	Remarks       string    `json:"remarks,omitempty"`
	OccurredAt    time.Time `json:"occurred_at"`
}

type AppointmentStatusChangedV1 struct {
	AppointmentID int64     `json:"appointment_id"`
	Status        string    `json:"status"`
	OccurredAt    time.Time `json:"occurred_at"`
}

type AppointmentRescheduledV1 struct {
	AppointmentID int64     `json:"appointment_id"`
	DoctorID      int64     `json:"doctor_id"`
	PreviousSlot  time.Time `json:"previous_slot"`
	ScheduledFor  time.Time `json:"scheduled_for"`
	Remarks       string    `json:"remarks,omitempty"`
	OccurredAt    time.Time `json:"occurred_at"`
}
