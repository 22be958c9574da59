// Package scheduling decides whether an appointment request may be booked.
package scheduling

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// DateLayout is the calendar date format accepted in requests.
const DateLayout = "2006-01-02"

// SlotsPerDay is the number of whole-hour slots offered for a date.
const SlotsPerDay = 24

var (
	// ErrInvalidDate is returned when a request date cannot be parsed.
	ErrInvalidDate = errors.New("scheduling: invalid date")
	// ErrInvalidHour is returned when a request hour is outside [0,23].
	ErrInvalidHour = errors.New("scheduling: invalid hour")
	// ErrNonexistentHour marks a local hour skipped by a daylight-saving jump.
	// It matches ErrInvalidHour under errors.Is.
	ErrNonexistentHour = fmt.Errorf("%w: hour does not exist on this date", ErrInvalidHour)
)

// AppointmentRequest is a candidate booking as submitted by a front end.
type AppointmentRequest struct {
	PatientID int64  `json:"patient_id"`
	DoctorID  int64  `json:"doctor_id"`
	Date      string `json:"date"`
	Hour      *int   `json:"hour"`
	Remarks   string `json:"remarks,omitempty"`
}

// HourPtr is a convenience for building requests in code.
func HourPtr(h int) *int {
	return &h
}

// SlotFor combines a YYYY-MM-DD date and an hour into the slot start in loc.
func SlotFor(date string, hour int, loc *time.Location) (time.Time, error) {
	if loc == nil {
		loc = time.UTC
	}
	day, err := time.ParseInLocation(DateLayout, strings.TrimSpace(date), loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidDate, date)
	}
	if hour < 0 || hour >= SlotsPerDay {
		return time.Time{}, fmt.Errorf("%w: %d", ErrInvalidHour, hour)
	}
	slot := time.Date(day.Year(), day.Month(), day.Day(), hour, 0, 0, 0, loc)
	// time.Date normalises hours skipped by a daylight-saving jump.
	if slot.Hour() != hour || !sameDate(slot, day) {
		return time.Time{}, fmt.Errorf("%w: %02d:00 on %s in %s", ErrNonexistentHour, hour, date, loc)
	}
	return slot, nil
}

// missingField reports the first required field that is absent, or "".
func (r AppointmentRequest) missingField() string {
	switch {
	case r.PatientID <= 0:
		return "patient_id"
	case r.DoctorID <= 0:
		return "doctor_id"
	case strings.TrimSpace(r.Date) == "":
		return "date"
	case r.Hour == nil:
		return "hour"
	}
	return ""
}
