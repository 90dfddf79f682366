package scheduling

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/clinicware/clinicops/internal/clinicerr"
)

// DB is the pgx surface the store needs; satisfied by pgxpool.Pool and
// pgxmock.
type DB interface {
	Begin(ctx context.Context) (pgx.Tx, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Store persists appointments. The conflict check and insert run in one
// transaction holding the doctor's advisory lock; a partial unique index
// on (doctor_id, scheduled_at) WHERE status='scheduled' backstops it.
type Store struct {
	db DB
}

// NewStore creates an appointment store.
func NewStore(db DB) *Store {
	if db == nil {
		panic("scheduling: db required")
	}
	return &Store{db: db}
}

const apptColumns = "id, doctor_id, patient_id, scheduled_at, status, created_at, updated_at"

func scanAppointment(row pgx.Row) (*Appointment, error) {
	var a Appointment
	err := row.Scan(&a.ID, &a.DoctorID, &a.PatientID, &a.ScheduledAt, &a.Status, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &a, nil
}

func lockDoctor(ctx context.Context, tx pgx.Tx, doctorID uuid.UUID) error {
	if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtextextended($1::text, 0))`, doctorID); err != nil {
		return fmt.Errorf("scheduling: lock doctor: %w", err)
	}
	return nil
}

func slotTaken() *clinicerr.Error {
	return clinicerr.Conflict("Doctor already has an appointment at this time.").
		WithField("scheduled_at", "Doctor already has an appointment at this time.")
}

// GetByID loads one appointment; NotFound domain error when absent.
func (s *Store) GetByID(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	appt, err := scanAppointment(s.db.QueryRow(ctx, `SELECT `+apptColumns+` FROM appointments WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, clinicerr.NotFound("Appointment not found.").WithField("id", "Appointment not found.")
	}
	if err != nil {
		return nil, fmt.Errorf("scheduling: get by id: %w", err)
	}
	return appt, nil
}

// Create inserts an appointment after verifying no scheduled appointment
// already occupies (doctor, scheduledAt). Check and insert share a
// doctor-locked transaction.
func (s *Store) Create(ctx context.Context, doctorID, patientID uuid.UUID, scheduledAt time.Time, status string) (*Appointment, error) {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("scheduling: begin create: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := lockDoctor(ctx, tx, doctorID); err != nil {
		return nil, err
	}

	var taken bool
	if err := tx.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM appointments
			WHERE doctor_id = $1 AND scheduled_at = $2 AND status = 'scheduled'
		)
	`, doctorID, scheduledAt).Scan(&taken); err != nil {
		return nil, fmt.Errorf("scheduling: conflict check: %w", err)
	}
	if taken {
		return nil, slotTaken()
	}

	appt, err := scanAppointment(tx.QueryRow(ctx, `
		INSERT INTO appointments (id, doctor_id, patient_id, scheduled_at, status)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING `+apptColumns+`
	`, uuid.New(), doctorID, patientID, scheduledAt, status))
	if err != nil {
		return nil, fmt.Errorf("scheduling: insert: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("scheduling: commit create: %w", err)
	}
	return appt, nil
}

// Update patches an appointment. When the patch carries both a doctor and
// a time, the double-booking check reruns against the new pair, excluding
// the appointment itself; changing only one of the two skips the check.
func (s *Store) Update(ctx context.Context, id uuid.UUID, patch UpdatePatch) (*Appointment, error) {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("scheduling: begin update: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var exists bool
	if err := tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM appointments WHERE id = $1)`, id).Scan(&exists); err != nil {
		return nil, fmt.Errorf("scheduling: load for update: %w", err)
	}
	if !exists {
		return nil, clinicerr.NotFound("Appointment not found.").WithField("id", "Appointment not found.")
	}

	if patch.DoctorID != nil && patch.ScheduledAt != nil {
		if err := lockDoctor(ctx, tx, *patch.DoctorID); err != nil {
			return nil, err
		}
		var taken bool
		if err := tx.QueryRow(ctx, `
			SELECT EXISTS (
				SELECT 1 FROM appointments
				WHERE doctor_id = $1 AND scheduled_at = $2 AND status = 'scheduled' AND id <> $3
			)
		`, *patch.DoctorID, *patch.ScheduledAt, id).Scan(&taken); err != nil {
			return nil, fmt.Errorf("scheduling: recheck conflict: %w", err)
		}
		if taken {
			return nil, slotTaken()
		}
	}

	sets := []string{"updated_at = now()"}
	args := []any{id}
	idx := 2
	add := func(column string, value any) {
		sets = append(sets, column+" = $"+strconv.Itoa(idx))
		args = append(args, value)
		idx++
	}
	if patch.DoctorID != nil {
		add("doctor_id", *patch.DoctorID)
	}
	if patch.PatientID != nil {
		add("patient_id", *patch.PatientID)
	}
	if patch.ScheduledAt != nil {
		add("scheduled_at", *patch.ScheduledAt)
	}
	if patch.Status != nil {
		add("status", *patch.Status)
	}

	query := `UPDATE appointments SET ` + strings.Join(sets, ", ") + ` WHERE id = $1 RETURNING ` + apptColumns
	appt, err := scanAppointment(tx.QueryRow(ctx, query, args...))
	if err != nil {
		return nil, fmt.Errorf("scheduling: update: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("scheduling: commit update: %w", err)
	}
	return appt, nil
}

// Delete removes an appointment and returns its final state for the
// queue cascade.
func (s *Store) Delete(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	appt, err := scanAppointment(s.db.QueryRow(ctx, `DELETE FROM appointments WHERE id = $1 RETURNING `+apptColumns, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, clinicerr.NotFound("Appointment not found.").WithField("id", "Appointment not found.")
	}
	if err != nil {
		return nil, fmt.Errorf("scheduling: delete: %w", err)
	}
	return appt, nil
}

// ListFilter narrows an appointment listing. Zero values skip the
// corresponding predicate; From/To bound scheduled_at as [From, To).
type ListFilter struct {
	DoctorID  uuid.UUID
	PatientID uuid.UUID
	Status    string
	From      time.Time
	To        time.Time
	Limit     int
	Offset    int
}

// List returns appointments matching the filter, ordered by scheduled
// time.
func (s *Store) List(ctx context.Context, f ListFilter) ([]*Appointment, error) {
	where := []string{}
	args := []any{}
	add := func(clause string, value any) {
		args = append(args, value)
		where = append(where, clause+" $"+strconv.Itoa(len(args)))
	}
	if f.DoctorID != uuid.Nil {
		add("doctor_id =", f.DoctorID)
	}
	if f.PatientID != uuid.Nil {
		add("patient_id =", f.PatientID)
	}
	if f.Status != "" {
		add("status =", f.Status)
	}
	if !f.From.IsZero() {
		add("scheduled_at >=", f.From)
	}
	if !f.To.IsZero() {
		add("scheduled_at <", f.To)
	}
	query := `SELECT ` + apptColumns + ` FROM appointments`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY scheduled_at"
	if f.Limit > 0 {
		args = append(args, f.Limit)
		query += " LIMIT $" + strconv.Itoa(len(args))
	}
	if f.Offset > 0 {
		args = append(args, f.Offset)
		query += " OFFSET $" + strconv.Itoa(len(args))
	}

	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("scheduling: list: %w", err)
	}
	defer rows.Close()

	var out []*Appointment
	for rows.Next() {
		var a Appointment
		if err := rows.Scan(&a.ID, &a.DoctorID, &a.PatientID, &a.ScheduledAt, &a.Status, &a.CreatedAt, &a.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scheduling: scan: %w", err)
		}
		out = append(out, &a)
	}
	return out, rows.Err()
}
