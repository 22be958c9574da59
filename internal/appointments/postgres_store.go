package appointments

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const uniqueViolation = "23505"

const appointmentColumns = `id, patient_id, doctor_id, scheduled_for, status, remarks, created_at, updated_at`

type rowQuerier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresStore persists appointments in Postgres. The partial unique index
// appointments_doctor_slot_active_idx enforces one active booking per slot.
type PostgresStore struct {
	db rowQuerier
}

// NewPostgresStore creates a store backed by a pgx pool.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	if pool == nil {
		panic("appointments: pgx pool required")
	}
	return &PostgresStore{db: pool}
}

func newPostgresStoreWithDB(db rowQuerier) *PostgresStore {
	if db == nil {
		panic("appointments: db required")
	}
	return &PostgresStore{db: db}
}

func (s *PostgresStore) HasConflict(ctx context.Context, doctorID int64, slot time.Time) (bool, error) {
	query := `
		SELECT EXISTS (
			SELECT 1 FROM appointments
			WHERE doctor_id = $1 AND scheduled_for = $2 AND status <> 'cancelled'
		)
	`
	var exists bool
	if err := s.db.QueryRow(ctx, query, doctorID, slot).Scan(&exists); err != nil {
		return false, fmt.Errorf("%w: check conflict: %w", ErrStorage, err)
	}
	return exists, nil
}

func (s *PostgresStore) Create(ctx context.Context, appt NewAppointment) (int64, error) {
	query := `
		INSERT INTO appointments (patient_id, doctor_id, scheduled_for, status, remarks)
		VALUES ($1, $2, $3, 'scheduled', $4)
		RETURNING id
	`
	var id int64
	err := s.db.QueryRow(ctx, query, appt.PatientID, appt.DoctorID, appt.ScheduledFor, appt.Remarks).Scan(&id)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return 0, ErrSlotTaken
		}
		return 0, fmt.Errorf("%w: create: %w", ErrStorage, err)
	}
	return id, nil
}

// SetStatus moves a scheduled appointment to a terminal status. When no row is
// updated it looks the id up to tell a missing row from a terminal one.
func (s *PostgresStore) SetStatus(ctx context.Context, id int64, status Status) error {
	if !status.Terminal() {
		return ErrInvalidTransition
	}
	query := `
		UPDATE appointments
		SET status = $2, updated_at = now()
		WHERE id = $1 AND status = 'scheduled'
	`
	ct, err := s.db.Exec(ctx, query, id, string(status))
	if err != nil {
		return fmt.Errorf("%w: set status: %w", ErrStorage, err)
	}
	if ct.RowsAffected() == 1 {
		return nil
	}
	return s.notScheduled(ctx, id)
}

// Reschedule relies on appointments_doctor_slot_active_idx to reject a slot
// that another active booking holds.
func (s *PostgresStore) Reschedule(ctx context.Context, id int64, slot time.Time, remarks string) error {
	query := `
		UPDATE appointments
		SET scheduled_for = $2, remarks = $3, updated_at = now()
		WHERE id = $1 AND status = 'scheduled'
	`
	ct, err := s.db.Exec(ctx, query, id, slot, remarks)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return ErrSlotTaken
		}
		return fmt.Errorf("%w: reschedule: %w", ErrStorage, err)
	}
	if ct.RowsAffected() == 1 {
		return nil
	}
	return s.notScheduled(ctx, id)
}

// notScheduled explains why a scheduled-only update touched no row.
func (s *PostgresStore) notScheduled(ctx context.Context, id int64) error {
	var current string
	err := s.db.QueryRow(ctx, `SELECT status FROM appointments WHERE id = $1`, id).Scan(&current)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("%w: load status: %w", ErrStorage, err)
	}
	return ErrInvalidTransition
}

func (s *PostgresStore) Get(ctx context.Context, id int64) (*Appointment, error) {
	query := `SELECT ` + appointmentColumns + ` FROM appointments WHERE id = $1`
	appt, err := scanAppointment(s.db.QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("%w: get: %w", ErrStorage, err)
	}
	return appt, nil
}

func (s *PostgresStore) List(ctx context.Context, filter Filter) ([]*Appointment, error) {
	query, args := buildListQuery(filter)
	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%w: list: %w", ErrStorage, err)
	}
	defer rows.Close()

	out := []*Appointment{}
	for rows.Next() {
		appt, err := scanAppointment(rows)
		if err != nil {
			return nil, fmt.Errorf("%w: scan: %w", ErrStorage, err)
		}
		out = append(out, appt)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: list rows: %w", ErrStorage, err)
	}
	return out, nil
}

func (s *PostgresStore) CountByStatus(ctx context.Context) (StatusCounts, error) {
	var counts StatusCounts
	rows, err := s.db.Query(ctx, `SELECT status, COUNT(*) FROM appointments GROUP BY status`)
	if err != nil {
		return counts, fmt.Errorf("%w: count: %w", ErrStorage, err)
	}
	defer rows.Close()

	for rows.Next() {
		var status string
		var n int64
		if err := rows.Scan(&status, &n); err != nil {
			return counts, fmt.Errorf("%w: scan count: %w", ErrStorage, err)
		}
		counts.add(Status(status), n)
	}
	if err := rows.Err(); err != nil {
		return counts, fmt.Errorf("%w: count rows: %w", ErrStorage, err)
	}
	return counts, nil
}

func buildListQuery(f Filter) (string, []any) {
	var b strings.Builder
	b.WriteString(`SELECT ` + appointmentColumns + ` FROM appointments WHERE 1=1`)
	var args []any
	add := func(cond string, v any) {
		args = append(args, v)
		fmt.Fprintf(&b, " AND "+cond, len(args))
	}
	if f.Status != "" {
		add("status = $%d", string(f.Status))
	}
	if f.PatientID > 0 {
		add("patient_id = $%d", f.PatientID)
	}
	if f.DoctorID > 0 {
		add("doctor_id = $%d", f.DoctorID)
	}
	if f.From != nil {
		add("scheduled_for >= $%d", *f.From)
	}
	if f.To != nil {
		add("scheduled_for < $%d", *f.To)
	}
	if f.Ascending {
		b.WriteString(" ORDER BY scheduled_for ASC, id ASC")
	} else {
		b.WriteString(" ORDER BY scheduled_for DESC, id ASC")
	}
	if f.Limit > 0 {
		args = append(args, f.Limit)
		fmt.Fprintf(&b, " LIMIT $%d", len(args))
	}
	if f.Offset > 0 {
		args = append(args, f.Offset)
		fmt.Fprintf(&b, " OFFSET $%d", len(args))
	}
	return b.String(), args
}

func scanAppointment(row pgx.Row) (*Appointment, error) {
	var a Appointment
	var status string
	if err := row.Scan(&a.ID, &a.PatientID, &a.DoctorID, &a.ScheduledFor, &status, &a.Remarks, &a.CreatedAt, &a.UpdatedAt); err != nil {
		return nil, err
	}
	a.Status = Status(status)
	return &a, nil
}
