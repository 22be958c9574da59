package scheduling

import (
	"context"
	"errors"
	"time"
)

// HourStatus describes one hourly slot on a doctor's day.
type HourStatus struct {
	Hour     int       `json:"hour"`
	Slot     time.Time `json:"slot"`
	Bookable bool      `json:"bookable"`
	Reason   Reason    `json:"reason,omitempty"`
	Message  string    `json:"message,omitempty"`
}

// DaySlots runs every hour of date through Validate for doctorID so a front
// end can offer only bookable hours. The placeholder patient ID only satisfies
// the presence check. Hours skipped by a daylight-saving jump are left out.
func DaySlots(ctx context.Context, doctorID int64, date string, now time.Time, hasConflict ConflictFunc) ([]HourStatus, error) {
	out := make([]HourStatus, 0, SlotsPerDay)
	for h := 0; h < SlotsPerDay; h++ {
		req := AppointmentRequest{PatientID: 1, DoctorID: doctorID, Date: date, Hour: HourPtr(h)}
		decision, err := Validate(ctx, req, now, hasConflict)
		if errors.Is(err, ErrNonexistentHour) {
			continue
		}
		if err != nil {
			return nil, err
		}
		status := HourStatus{
			Hour:     h,
			Slot:     decision.Slot,
			Bookable: decision.Accepted(),
			Reason:   decision.Reason,
		}
		if !status.Bookable {
			status.Message = decision.Reason.Message()
		}
		out = append(out, status)
	}
	return out, nil
}
