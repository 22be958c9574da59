package appointments

import (
	"context"
	"sort"
	"sync"
	"time"
)

// Store persists appointments. Implementations must make Create reject a second
// non-cancelled appointment for the same doctor and slot with ErrSlotTaken.
type Store interface {
	HasConflict(ctx context.Context, doctorID int64, slot time.Time) (bool, error)
	Create(ctx context.Context, appt NewAppointment) (int64, error)
	SetStatus(ctx context.Context, id int64, status Status) error
	// Reschedule moves a scheduled appointment to slot and replaces its
	// remarks. Another active booking on the slot yields ErrSlotTaken.
	Reschedule(ctx context.Context, id int64, slot time.Time, remarks string) error
	Get(ctx context.Context, id int64) (*Appointment, error)
	List(ctx context.Context, filter Filter) ([]*Appointment, error)
	CountByStatus(ctx context.Context) (StatusCounts, error)
}

// MemoryStore is an in-process Store used for development and tests.
type MemoryStore struct {
	mu     sync.RWMutex
	nextID int64
	rows   map[int64]*Appointment
	now    func() time.Time
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		rows: make(map[int64]*Appointment),
		now:  func() time.Time { return time.Now().UTC() },
	}
}

func (s *MemoryStore) HasConflict(_ context.Context, doctorID int64, slot time.Time) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.occupiedLocked(doctorID, slot, 0), nil
}

// occupiedLocked ignores the row with id except.
func (s *MemoryStore) occupiedLocked(doctorID int64, slot time.Time, except int64) bool {
	for id, a := range s.rows {
		if id != except && a.DoctorID == doctorID && a.ScheduledFor.Equal(slot) && a.Status != StatusCancelled {
			return true
		}
	}
	return false
}

// Create inserts a scheduled appointment, re-checking the slot under the lock.
func (s *MemoryStore) Create(_ context.Context, appt NewAppointment) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.occupiedLocked(appt.DoctorID, appt.ScheduledFor, 0) {
		return 0, ErrSlotTaken
	}
	s.nextID++
	now := s.now()
	s.rows[s.nextID] = &Appointment{
		ID:           s.nextID,
		PatientID:    appt.PatientID,
		DoctorID:     appt.DoctorID,
		ScheduledFor: appt.ScheduledFor,
		Status:       StatusScheduled,
		Remarks:      appt.Remarks,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	return s.nextID, nil
}

func (s *MemoryStore) SetStatus(_ context.Context, id int64, status Status) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.rows[id]
	if !ok {
		return ErrNotFound
	}
	if !CanTransition(a.Status, status) {
		return ErrInvalidTransition
	}
	a.Status = status
	a.UpdatedAt = s.now()
	return nil
}

func (s *MemoryStore) Reschedule(_ context.Context, id int64, slot time.Time, remarks string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.rows[id]
	if !ok {
		return ErrNotFound
	}
	if a.Status != StatusScheduled {
		return ErrInvalidTransition
	}
	if s.occupiedLocked(a.DoctorID, slot, id) {
		return ErrSlotTaken
	}
	a.ScheduledFor = slot
	a.Remarks = remarks
	a.UpdatedAt = s.now()
	return nil
}

func (s *MemoryStore) Get(_ context.Context, id int64) (*Appointment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	a, ok := s.rows[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *a
	return &cp, nil
}

func (s *MemoryStore) List(_ context.Context, filter Filter) ([]*Appointment, error) {
	s.mu.RLock()
	out := make([]*Appointment, 0, len(s.rows))
	for _, a := range s.rows {
		if matches(a, filter) {
			cp := *a
			out = append(out, &cp)
		}
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].ScheduledFor.Equal(out[j].ScheduledFor) {
			return out[i].ID < out[j].ID
		}
		if filter.Ascending {
			return out[i].ScheduledFor.Before(out[j].ScheduledFor)
		}
		return out[i].ScheduledFor.After(out[j].ScheduledFor)
	})

	if filter.Offset > 0 {
		if filter.Offset >= len(out) {
			return []*Appointment{}, nil
		}
		out = out[filter.Offset:]
	}
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

func (s *MemoryStore) CountByStatus(_ context.Context) (StatusCounts, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var counts StatusCounts
	for _, a := range s.rows {
		counts.add(a.Status, 1)
	}
	return counts, nil
}

func matches(a *Appointment, f Filter) bool {
	if f.Status != "" && a.Status != f.Status {
		return false
	}
	if f.PatientID > 0 && a.PatientID != f.PatientID {
		return false
	}
	if f.DoctorID > 0 && a.DoctorID != f.DoctorID {
		return false
	}
	if f.From != nil && a.ScheduledFor.Before(*f.From) {
		return false
	}
	if f.To != nil && !a.ScheduledFor.Before(*f.To) {
		return false
	}
	return true
}
