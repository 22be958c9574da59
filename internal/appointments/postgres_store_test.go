package appointments

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	pgxmock "github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var appointmentRowColumns = []string{"id", "patient_id", "doctor_id", "scheduled_for", "status", "remarks", "created_at", "updated_at"}

func newMockStore(t *testing.T) (*PostgresStore, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)
	return newPostgresStoreWithDB(mock), mock
}

func TestPostgresHasConflict(t *testing.T) {
	store, mock := newMockStore(t)
	slot := slotAt(11, 10)

	mock.ExpectQuery(`SELECT EXISTS`).WithArgs(int64(2), slot).
		WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(true))
	taken, err := store.HasConflict(context.Background(), 2, slot)
	require.NoError(t, err)
	assert.True(t, taken)

	mock.ExpectQuery(`SELECT EXISTS`).WithArgs(int64(2), slot).WillReturnError(errors.New("conn closed"))
	_, err = store.HasConflict(context.Background(), 2, slot)
	assert.ErrorIs(t, err, ErrStorage)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresCreate(t *testing.T) {
	store, mock := newMockStore(t)
	slot := slotAt(11, 10)
	appt := NewAppointment{PatientID: 5, DoctorID: 2, ScheduledFor: slot, Remarks: "first visit"}

	mock.ExpectQuery(`INSERT INTO appointments`).WithArgs(int64(5), int64(2), slot, "first visit").
		WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow(int64(41)))
	id, err := store.Create(context.Background(), appt)
	require.NoError(t, err)
	assert.Equal(t, int64(41), id)

	mock.ExpectQuery(`INSERT INTO appointments`).WithArgs(int64(5), int64(2), slot, "first visit").
		WillReturnError(&pgconn.PgError{Code: "23505", ConstraintName: "appointments_doctor_slot_active_idx"})
	_, err = store.Create(context.Background(), appt)
	assert.ErrorIs(t, err, ErrSlotTaken)

	mock.ExpectQuery(`INSERT INTO appointments`).WithArgs(int64(5), int64(2), slot, "first visit").
		WillReturnError(errors.New("connection refused"))
	_, err = store.Create(context.Background(), appt)
	assert.ErrorIs(t, err, ErrStorage)
	assert.NotErrorIs(t, err, ErrSlotTaken)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresSetStatus(t *testing.T) {
	store, mock := newMockStore(t)
	ctx := context.Background()

	mock.ExpectExec(`UPDATE appointments`).WithArgs(int64(7), "cancelled").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	require.NoError(t, store.SetStatus(ctx, 7, StatusCancelled))

	mock.ExpectExec(`UPDATE appointments`).WithArgs(int64(8), "completed").
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))
	mock.ExpectQuery(`SELECT status FROM appointments`).WithArgs(int64(8)).
		WillReturnError(pgx.ErrNoRows)
	assert.ErrorIs(t, store.SetStatus(ctx, 8, StatusCompleted), ErrNotFound)

	mock.ExpectExec(`UPDATE appointments`).WithArgs(int64(9), "completed").
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))
	mock.ExpectQuery(`SELECT status FROM appointments`).WithArgs(int64(9)).
		WillReturnRows(pgxmock.NewRows([]string{"status"}).AddRow("cancelled"))
	assert.ErrorIs(t, store.SetStatus(ctx, 9, StatusCompleted), ErrInvalidTransition)

	assert.ErrorIs(t, store.SetStatus(ctx, 9, StatusScheduled), ErrInvalidTransition)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresReschedule(t *testing.T) {
	store, mock := newMockStore(t)
	ctx := context.Background()
	slot := time.Date(2024, time.March, 12, 11, 0, 0, 0, time.UTC)

	mock.ExpectExec(`UPDATE appointments\s+SET scheduled_for = \$2, remarks = \$3`).
		WithArgs(int64(7), slot, "moved").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	require.NoError(t, store.Reschedule(ctx, 7, slot, "moved"))

	mock.ExpectExec(`UPDATE appointments`).WithArgs(int64(7), slot, "").
		WillReturnError(&pgconn.PgError{Code: "23505", ConstraintName: "appointments_doctor_slot_active_idx"})
	assert.ErrorIs(t, store.Reschedule(ctx, 7, slot, ""), ErrSlotTaken)

	mock.ExpectExec(`UPDATE appointments`).WithArgs(int64(8), slot, "").
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))
	mock.ExpectQuery(`SELECT status FROM appointments`).WithArgs(int64(8)).
		WillReturnRows(pgxmock.NewRows([]string{"status"}).AddRow("completed"))
	assert.ErrorIs(t, store.Reschedule(ctx, 8, slot, ""), ErrInvalidTransition)

	mock.ExpectExec(`UPDATE appointments`).WithArgs(int64(9), slot, "").
		WillReturnError(errors.New("broken pipe"))
	assert.ErrorIs(t, store.Reschedule(ctx, 9, slot, ""), ErrStorage)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresGet(t *testing.T) {
	store, mock := newMockStore(t)
	created := time.Date(2024, time.March, 1, 8, 0, 0, 0, time.UTC)

	mock.ExpectQuery(`SELECT id, patient_id`).WithArgs(int64(3)).
		WillReturnRows(pgxmock.NewRows(appointmentRowColumns).
			AddRow(int64(3), int64(5), int64(2), slotAt(11, 10), "scheduled", "", created, created))
	appt, err := store.Get(context.Background(), 3)
	require.NoError(t, err)
	assert.Equal(t, StatusScheduled, appt.Status)
	assert.Equal(t, slotAt(11, 10), appt.ScheduledFor)

	mock.ExpectQuery(`SELECT id, patient_id`).WithArgs(int64(4)).WillReturnError(pgx.ErrNoRows)
	_, err = store.Get(context.Background(), 4)
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresList(t *testing.T) {
	store, mock := newMockStore(t)
	from, to := slotAt(11, 0), slotAt(12, 0)
	created := time.Date(2024, time.March, 1, 8, 0, 0, 0, time.UTC)

	mock.ExpectQuery(`AND status = \$1 AND doctor_id = \$2 AND scheduled_for >= \$3 AND scheduled_for < \$4 ORDER BY scheduled_for ASC, id ASC LIMIT \$5`).
		WithArgs("scheduled", int64(2), from, to, 10).
		WillReturnRows(pgxmock.NewRows(appointmentRowColumns).
			AddRow(int64(1), int64(5), int64(2), slotAt(11, 9), "scheduled", "", created, created).
			AddRow(int64(2), int64(6), int64(2), slotAt(11, 14), "scheduled", "bring x-ray", created, created))

	list, err := store.List(context.Background(), Filter{Status: StatusScheduled, DoctorID: 2, From: &from, To: &to, Ascending: true, Limit: 10})
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "bring x-ray", list[1].Remarks)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestBuildListQueryDefaults(t *testing.T) {
	query, args := buildListQuery(Filter{PatientID: 3, Offset: 20})
	assert.Contains(t, query, "WHERE 1=1 AND patient_id = $1")
	assert.Contains(t, query, "ORDER BY scheduled_for DESC")
	assert.Contains(t, query, "OFFSET $2")
	assert.NotContains(t, query, "LIMIT")
	assert.Equal(t, []any{int64(3), 20}, args)
}

func TestPostgresCountByStatus(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectQuery(`SELECT status, COUNT\(\*\) FROM appointments GROUP BY status`).
		WillReturnRows(pgxmock.NewRows([]string{"status", "count"}).
			AddRow("scheduled", int64(4)).
			AddRow("completed", int64(2)).
			AddRow("cancelled", int64(1)))

	counts, err := store.CountByStatus(context.Background())
	require.NoError(t, err)
	assert.Equal(t, StatusCounts{Total: 7, Scheduled: 4, Completed: 2, Cancelled: 1}, counts)

	require.NoError(t, mock.ExpectationsWereMet())
}
