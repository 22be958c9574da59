package scheduling

import (
	"context"
	"fmt"
	"time"
)

// ConflictFunc reports whether the doctor already holds a non-cancelled
// appointment starting at slot.
type ConflictFunc func(ctx context.Context, doctorID int64, slot time.Time) (bool, error)

// Decision is the outcome of Validate.
type Decision struct {
	Request AppointmentRequest
	Slot    time.Time
	Reason  Reason
	// Field names the missing input when Reason is ReasonMissingField.
	Field string
}

// Accepted reports whether the request may be created.
func (d Decision) Accepted() bool {
	return d.Reason == ReasonNone
}

// Err returns nil for accepted decisions and a *RejectionError otherwise.
func (d Decision) Err() error {
	if d.Accepted() {
		return nil
	}
	return &RejectionError{Reason: d.Reason, Field: d.Field}
}

// Validate applies the booking rules in order and stops at the first failure.
// Rejections are reported in the Decision; the returned error is reserved for
// malformed input (ErrInvalidDate, ErrInvalidHour) and conflict check failures.
//
// Slots are computed in now's location, so callers should pass a clinic-local now.
func Validate(ctx context.Context, req AppointmentRequest, now time.Time, hasConflict ConflictFunc) (Decision, error) {
	decision := Decision{Request: req}

	if field := req.missingField(); field != "" {
		decision.Reason = ReasonMissingField
		decision.Field = field
		return decision, nil
	}

	slot, err := SlotFor(req.Date, *req.Hour, now.Location())
	if err != nil {
		return decision, err
	}
	decision.Slot = slot

	// Today's bookings must start in a later hour, even with minutes left in
	// the current one.
	if sameDate(slot, now) && *req.Hour <= now.Hour() {
		decision.Reason = ReasonSameDayHourPassed
		return decision, nil
	}
	if !slot.After(now) {
		decision.Reason = ReasonNotInFuture
		return decision, nil
	}

	if hasConflict != nil {
		taken, err := hasConflict(ctx, req.DoctorID, slot)
		if err != nil {
			return decision, fmt.Errorf("scheduling: conflict check: %w", err)
		}
		if taken {
			decision.Reason = ReasonDoctorConflict
			return decision, nil
		}
	}

	return decision, nil
}

func sameDate(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}
