package appointments

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/wolfman30/clinic-scheduling/internal/events"
	"github.com/wolfman30/clinic-scheduling/internal/observability/metrics"
	"github.com/wolfman30/clinic-scheduling/internal/scheduling"
	"github.com/wolfman30/clinic-scheduling/internal/slotlock"
	"github.com/wolfman30/clinic-scheduling/pkg/logging"
)

var appointmentsTracer = otel.Tracer("clinic.internal.appointments")

// SlotHolder reserves a doctor's slot while an appointment is being created.
type SlotHolder interface {
	Hold(ctx context.Context, doctorID int64, slot time.Time, ttl time.Duration) (slotlock.Release, error)
}

// EventRecorder queues lifecycle events for downstream consumers.
type EventRecorder interface {
	Insert(ctx context.Context, eventType string, aggregateID string, payload any) (uuid.UUID, error)
}

// Service validates scheduling requests and drives the appointment lifecycle.
type Service struct {
	store   Store
	clock   scheduling.Clock
	logger  *logging.Logger
	holds   SlotHolder
	holdTTL time.Duration
	events  EventRecorder
	metrics *metrics.SchedulingMetrics
}

// NewService constructs an appointments service.
func NewService(store Store, clock scheduling.Clock, logger *logging.Logger) *Service {
	if store == nil {
		panic("appointments: store required")
	}
	if clock == nil {
		clock = scheduling.SystemClock{}
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Service{store: store, clock: clock, logger: logger}
}

// WithSlotHolds enables short-lived slot holds around Create.
func (s *Service) WithSlotHolds(holder SlotHolder, ttl time.Duration) *Service {
	s.holds = holder
	s.holdTTL = ttl
	return s
}

func (s *Service) WithEvents(recorder EventRecorder) *Service {
	s.events = recorder
	return s
}

func (s *Service) WithMetrics(m *metrics.SchedulingMetrics) *Service {
	s.metrics = m
	return s
}

// Now returns the service clock's current time.
func (s *Service) Now() time.Time {
	return s.clock.Now()
}

// Schedule validates req against the current time and the doctor's bookings and
// creates a scheduled appointment. Rejections are returned as
// *scheduling.RejectionError.
func (s *Service) Schedule(ctx context.Context, req scheduling.AppointmentRequest) (*Appointment, error) {
	ctx, span := appointmentsTracer.Start(ctx, "appointments.schedule")
	defer span.End()
	span.SetAttributes(
		attribute.Int64("clinic.patient_id", req.PatientID),
		attribute.Int64("clinic.doctor_id", req.DoctorID),
	)

	decision, err := scheduling.Validate(ctx, req, s.clock.Now(), s.store.HasConflict)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "validation failed")
		s.metrics.ObserveDecision("error")
		return nil, err
	}
	if !decision.Accepted() {
		return nil, s.reject(span, decision)
	}

	unhold, ok := s.holdSlot(ctx, req.DoctorID, decision.Slot)
	if !ok {
		decision.Reason = scheduling.ReasonDoctorConflict
		return nil, s.reject(span, decision)
	}
	defer unhold()

	start := time.Now()
	id, err := s.store.Create(ctx, NewAppointment{
		PatientID:    req.PatientID,
		DoctorID:     req.DoctorID,
		ScheduledFor: decision.Slot,
		Remarks:      req.Remarks,
	})
	s.metrics.ObserveStoreLatency("create", time.Since(start).Seconds())
	if errors.Is(err, ErrSlotTaken) {
		decision.Reason = scheduling.ReasonDoctorConflict
		return nil, s.reject(span, decision)
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "create failed")
		s.metrics.ObserveDecision("error")
		s.logger.Error("failed to create appointment", "error", err, "doctor_id", req.DoctorID, "slot", decision.Slot)
		return nil, err
	}

	appt, err := s.store.Get(ctx, id)
	if err != nil {
		// The row is committed; answer from what was written.
		span.RecordError(err)
		s.logger.Warn("appointment created but reload failed", "error", err, "appointment_id", id)
		now := s.clock.Now()
		appt = &Appointment{
			ID:           id,
			PatientID:    req.PatientID,
			DoctorID:     req.DoctorID,
			ScheduledFor: decision.Slot,
			Status:       StatusScheduled,
			Remarks:      req.Remarks,
			CreatedAt:    now,
			UpdatedAt:    now,
		}
	}
	span.SetAttributes(attribute.Int64("clinic.appointment_id", id))
	s.metrics.ObserveDecision("accepted")
	s.record(ctx, events.TypeAppointmentScheduled, id, events.AppointmentScheduledV1{
		AppointmentID: id,
		PatientID:     appt.PatientID,
		DoctorID:      appt.DoctorID,
		ScheduledFor:  appt.ScheduledFor,
		Remarks:       appt.Remarks,
		OccurredAt:    s.clock.Now(),
	})
	s.logger.Info("appointment scheduled",
		"appointment_id", id,
		"patient_id", appt.PatientID,
		"doctor_id", appt.DoctorID,
		"scheduled_for", appt.ScheduledFor,
	)
	return appt, nil
}

// holdSlot takes the optional Redis hold and returns its release. ok is false
// when another request holds the slot. Other hold errors only skip the hold,
// since the store still enforces one active booking per slot.
func (s *Service) holdSlot(ctx context.Context, doctorID int64, slot time.Time) (release func(), ok bool) {
	noop := func() {}
	if s.holds == nil {
		return noop, true
	}
	rel, err := s.holds.Hold(ctx, doctorID, slot, s.holdTTL)
	switch {
	case errors.Is(err, slotlock.ErrSlotHeld):
		return nil, false
	case err != nil:
		s.logger.Warn("slot hold unavailable", "error", err, "doctor_id", doctorID)
		return noop, true
	}
	return func() {
		if err := rel(context.WithoutCancel(ctx)); err != nil {
			s.logger.Warn("slot hold release failed", "error", err, "doctor_id", doctorID)
		}
	}, true
}

func (s *Service) reject(span trace.Span, decision scheduling.Decision) error {
	span.SetAttributes(attribute.String("clinic.rejection", string(decision.Reason)))
	s.metrics.ObserveDecision(string(decision.Reason))
	s.logger.Info("appointment rejected",
		"reason", decision.Reason,
		"field", decision.Field,
		"doctor_id", decision.Request.DoctorID,
	)
	return decision.Err()
}

// RescheduleRequest moves a booking to another date and hour. A nil Remarks
// keeps the current remarks.
type RescheduleRequest struct {
	Date    string  `json:"date"`
	Hour    *int    `json:"hour"`
	Remarks *string `json:"remarks,omitempty"`
}

// Reschedule moves a scheduled appointment to a new slot for the same doctor
// and patient. The new slot passes the same rules as a new booking, except
// that the appointment does not conflict with itself.
func (s *Service) Reschedule(ctx context.Context, id int64, req RescheduleRequest) (*Appointment, error) {
	ctx, span := appointmentsTracer.Start(ctx, "appointments.reschedule")
	defer span.End()
	span.SetAttributes(attribute.Int64("clinic.appointment_id", id))

	current, err := s.store.Get(ctx, id)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	if current.Status != StatusScheduled {
		return nil, ErrInvalidTransition
	}

	candidate := scheduling.AppointmentRequest{
		PatientID: current.PatientID,
		DoctorID:  current.DoctorID,
		Date:      req.Date,
		Hour:      req.Hour,
		Remarks:   current.Remarks,
	}
	if req.Remarks != nil {
		candidate.Remarks = *req.Remarks
	}
	hasConflict := func(ctx context.Context, doctorID int64, slot time.Time) (bool, error) {
		if slot.Equal(current.ScheduledFor) {
			return false, nil
		}
		return s.store.HasConflict(ctx, doctorID, slot)
	}

	decision, err := scheduling.Validate(ctx, candidate, s.clock.Now(), hasConflict)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "validation failed")
		s.metrics.ObserveDecision("error")
		return nil, err
	}
	if !decision.Accepted() {
		return nil, s.reject(span, decision)
	}

	if !decision.Slot.Equal(current.ScheduledFor) {
		unhold, ok := s.holdSlot(ctx, current.DoctorID, decision.Slot)
		if !ok {
			decision.Reason = scheduling.ReasonDoctorConflict
			return nil, s.reject(span, decision)
		}
		defer unhold()
	}

	start := time.Now()
	err = s.store.Reschedule(ctx, id, decision.Slot, candidate.Remarks)
	s.metrics.ObserveStoreLatency("reschedule", time.Since(start).Seconds())
	switch {
	case errors.Is(err, ErrSlotTaken):
		decision.Reason = scheduling.ReasonDoctorConflict
		return nil, s.reject(span, decision)
	case errors.Is(err, ErrNotFound), errors.Is(err, ErrInvalidTransition):
		span.RecordError(err)
		return nil, err
	case err != nil:
		span.RecordError(err)
		span.SetStatus(codes.Error, "reschedule failed")
		s.metrics.ObserveDecision("error")
		s.logger.Error("failed to reschedule appointment", "error", err, "appointment_id", id, "slot", decision.Slot)
		return nil, err
	}

	s.metrics.ObserveDecision("rescheduled")
	s.record(ctx, events.TypeAppointmentRescheduled, id, events.AppointmentRescheduledV1{
		AppointmentID: id,
		DoctorID:      current.DoctorID,
		PreviousSlot:  current.ScheduledFor,
		ScheduledFor:  decision.Slot,
		Remarks:       candidate.Remarks,
		OccurredAt:    s.clock.Now(),
	})
	s.logger.Info("appointment rescheduled",
		"appointment_id", id,
		"doctor_id", current.DoctorID,
		"from", current.ScheduledFor,
		"to", decision.Slot,
	)
	return s.store.Get(ctx, id)
}

// Complete marks a scheduled appointment as completed.
func (s *Service) Complete(ctx context.Context, id int64) (*Appointment, error) {
	return s.transition(ctx, id, StatusCompleted, events.TypeAppointmentCompleted)
}

// Cancel marks a scheduled appointment as cancelled, freeing its slot.
func (s *Service) Cancel(ctx context.Context, id int64) (*Appointment, error) {
	return s.transition(ctx, id, StatusCancelled, events.TypeAppointmentCancelled)
}

func (s *Service) transition(ctx context.Context, id int64, status Status, eventType string) (*Appointment, error) {
	ctx, span := appointmentsTracer.Start(ctx, "appointments.set_status")
	defer span.End()
	span.SetAttributes(
		attribute.Int64("clinic.appointment_id", id),
		attribute.String("clinic.status", string(status)),
	)

	if err := s.store.SetStatus(ctx, id, status); err != nil {
		span.RecordError(err)
		s.metrics.ObserveTransition(string(status), false)
		if !errors.Is(err, ErrNotFound) && !errors.Is(err, ErrInvalidTransition) {
			s.logger.Error("failed to update appointment status", "error", err, "appointment_id", id, "status", status)
		}
		return nil, err
	}
	s.metrics.ObserveTransition(string(status), true)
	s.record(ctx, eventType, id, events.AppointmentStatusChangedV1{
		AppointmentID: id,
		Status:        string(status),
		OccurredAt:    s.clock.Now(),
	})
	s.logger.Info("appointment status updated", "appointment_id", id, "status", status)
	return s.store.Get(ctx, id)
}

// record queues an event; failures are logged because the appointment change
// has already been committed.
func (s *Service) record(ctx context.Context, eventType string, id int64, payload any) {
	if s.events == nil {
		return
	}
	if _, err := s.events.Insert(ctx, eventType, strconv.FormatInt(id, 10), payload); err != nil {
		s.logger.Error("failed to queue appointment event", "error", err, "type", eventType, "appointment_id", id)
	}
}

// Get returns one appointment.
func (s *Service) Get(ctx context.Context, id int64) (*Appointment, error) {
	return s.store.Get(ctx, id)
}

// List returns appointments matching filter, newest first unless Ascending.
func (s *Service) List(ctx context.Context, filter Filter) ([]*Appointment, error) {
	return s.store.List(ctx, filter)
}

// SearchQuery matches appointments by patient, doctor and calendar date.
type SearchQuery struct {
	PatientID int64
	DoctorID  int64
	Date      string
}

func (q SearchQuery) empty() bool {
	return q.PatientID <= 0 && q.DoctorID <= 0 && q.Date == ""
}

// Search returns matching appointments, newest first. An empty query returns
// no results.
func (s *Service) Search(ctx context.Context, q SearchQuery) ([]*Appointment, error) {
	if q.empty() {
		return []*Appointment{}, nil
	}
	filter := Filter{PatientID: q.PatientID, DoctorID: q.DoctorID}
	if q.Date != "" {
		from, err := scheduling.SlotFor(q.Date, 0, s.clock.Now().Location())
		if err != nil {
			return nil, err
		}
		to := from.AddDate(0, 0, 1)
		filter.From, filter.To = &from, &to
	}
	return s.store.List(ctx, filter)
}

// TodaySchedule returns today's appointments in time order.
func (s *Service) TodaySchedule(ctx context.Context) ([]*Appointment, error) {
	from, to := s.today()
	return s.store.List(ctx, Filter{From: &from, To: &to, Ascending: true})
}

// Upcoming returns the next scheduled appointments from now.
func (s *Service) Upcoming(ctx context.Context, limit int) ([]*Appointment, error) {
	if limit <= 0 {
		limit = 5
	}
	now := s.clock.Now()
	return s.store.List(ctx, Filter{Status: StatusScheduled, From: &now, Ascending: true, Limit: limit})
}

// Summary returns status counts plus the number of appointments today.
func (s *Service) Summary(ctx context.Context) (StatusCounts, error) {
	counts, err := s.store.CountByStatus(ctx)
	if err != nil {
		return counts, err
	}
	today, err := s.TodaySchedule(ctx)
	if err != nil {
		return counts, err
	}
	counts.Today = int64(len(today))
	return counts, nil
}

// DaySlots reports which hours of date the doctor can still be booked for.
func (s *Service) DaySlots(ctx context.Context, doctorID int64, date string) ([]scheduling.HourStatus, error) {
	return scheduling.DaySlots(ctx, doctorID, date, s.clock.Now(), s.store.HasConflict)
}

func (s *Service) today() (time.Time, time.Time) {
	now := s.clock.Now()
	from := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	return from, from.AddDate(0, 0, 1)
}
