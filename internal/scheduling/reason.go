package scheduling

import "fmt"

// Reason classifies why a request was rejected.
type Reason string

const (
	ReasonNone              Reason = ""
	ReasonMissingField      Reason = "missing_field"
	ReasonNotInFuture       Reason = "not_in_future"
	ReasonSameDayHourPassed Reason = "same_day_hour_passed"
	ReasonDoctorConflict    Reason = "doctor_conflict"
)

// Message returns the user-facing text for the reason.
func (r Reason) Message() string {
	switch r {
	case ReasonMissingField:
		return "Please fill all required fields."
	case ReasonNotInFuture:
		return "Appointment time must be in the future."
	case ReasonSameDayHourPassed:
		return "Please select a future hour for today."
	case ReasonDoctorConflict:
		return "Doctor already has an appointment at this time. Please choose another hour."
	default:
		return ""
	}
}

// RejectionError carries a rejection through error-returning call paths.
type RejectionError struct {
	Reason Reason
	Field  string
}

func (e *RejectionError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("scheduling: rejected (%s: %s)", e.Reason, e.Field)
	}
	return fmt.Sprintf("scheduling: rejected (%s)", e.Reason)
}

// Message is the user-facing text for the rejection.
func (e *RejectionError) Message() string {
	return e.Reason.Message()
}
