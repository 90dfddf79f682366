package queue

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

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

// Store persists queue entries. Every mutation that reads positions and
// writes them back runs inside a transaction holding the doctor's
// advisory lock, so concurrent joiners or removers for the same doctor
// serialize while different doctors never contend.
type Store struct {
	db DB
}

// NewStore creates a queue store.
func NewStore(db DB) *Store {
	if db == nil {
		panic("queue: db required")
	}
	return &Store{db: db}
}

const entryColumns = "id, doctor_id, patient_id, position, status, called_at, created_at, updated_at"

func scanEntry(row pgx.Row) (*Entry, error) {
	var e Entry
	err := row.Scan(&e.ID, &e.DoctorID, &e.PatientID, &e.Position, &e.Status, &e.CalledAt, &e.CreatedAt, &e.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &e, nil
}

// lockDoctor serializes queue mutations per doctor for the remainder of
// the transaction.
func lockDoctor(ctx context.Context, tx pgx.Tx, doctorID uuid.UUID) error {
	if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtextextended($1::text, 0))`, doctorID); err != nil {
		return fmt.Errorf("queue: lock doctor: %w", err)
	}
	return nil
}

// GetByID loads one entry; NotFound domain error when absent.
func (s *Store) GetByID(ctx context.Context, id uuid.UUID) (*Entry, error) {
	query := `SELECT ` + entryColumns + ` FROM queues WHERE id = $1`
	entry, err := scanEntry(s.db.QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, clinicerr.NotFound("Queue entry not found.").WithField("id", "Queue entry not found.")
	}
	if err != nil {
		return nil, fmt.Errorf("queue: get by id: %w", err)
	}
	return entry, nil
}

// FindWaiting returns the doctor's waiting entry for the patient, or nil.
func (s *Store) FindWaiting(ctx context.Context, doctorID, patientID uuid.UUID) (*Entry, error) {
	query := `
		SELECT ` + entryColumns + `
		FROM queues
		WHERE doctor_id = $1 AND patient_id = $2 AND status = 'waiting'
	`
	entry, err := scanEntry(s.db.QueryRow(ctx, query, doctorID, patientID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("queue: find waiting: %w", err)
	}
	return entry, nil
}

// InsertWaiting atomically assigns the next position and inserts a waiting
// entry. If a waiting entry already exists for (doctor, patient): with
// ifAbsent the existing entry is returned unchanged, otherwise a Conflict
// domain error is raised.
func (s *Store) InsertWaiting(ctx context.Context, doctorID, patientID uuid.UUID, ifAbsent bool) (*Entry, bool, error) {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return nil, false, fmt.Errorf("queue: begin insert: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := lockDoctor(ctx, tx, doctorID); err != nil {
		return nil, false, err
	}

	existing, err := scanEntry(tx.QueryRow(ctx, `
		SELECT `+entryColumns+`
		FROM queues
		WHERE doctor_id = $1 AND patient_id = $2 AND status = 'waiting'
	`, doctorID, patientID))
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return nil, false, fmt.Errorf("queue: check duplicate: %w", err)
	}
	if existing != nil {
		if ifAbsent {
			if err := tx.Commit(ctx); err != nil {
				return nil, false, fmt.Errorf("queue: commit noop: %w", err)
			}
			return existing, false, nil
		}
		return nil, false, clinicerr.Conflict("Patient is already in the queue for this doctor.").
			WithField("patient_id", "Patient is already in the queue for this doctor.")
	}

	var next int
	if err := tx.QueryRow(ctx, `
		SELECT COALESCE(MAX(position), 0) + 1
		FROM queues
		WHERE doctor_id = $1 AND status = 'waiting'
	`, doctorID).Scan(&next); err != nil {
		return nil, false, fmt.Errorf("queue: next position: %w", err)
	}

	entry, err := scanEntry(tx.QueryRow(ctx, `
		INSERT INTO queues (id, doctor_id, patient_id, position, status)
		VALUES ($1, $2, $3, $4, 'waiting')
		RETURNING `+entryColumns+`
	`, uuid.New(), doctorID, patientID, next))
	if err != nil {
		return nil, false, fmt.Errorf("queue: insert: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, false, fmt.Errorf("queue: commit insert: %w", err)
	}
	return entry, true, nil
}

// ApplyPatch persists the patched fields and returns the updated entry.
func (s *Store) ApplyPatch(ctx context.Context, id uuid.UUID, patch UpdatePatch) (*Entry, error) {
	sets := []string{"updated_at = now()"}
	args := []any{id}
	idx := 2

	if patch.Status != nil {
		sets = append(sets, "status = $"+strconv.Itoa(idx))
		args = append(args, *patch.Status)
		idx++
	}
	if patch.Position != nil {
		sets = append(sets, "position = $"+strconv.Itoa(idx))
		args = append(args, *patch.Position)
		idx++
	}
	if patch.CalledAtSet {
		sets = append(sets, "called_at = $"+strconv.Itoa(idx))
		args = append(args, patch.CalledAt)
		idx++
	}

	query := `UPDATE queues SET ` + strings.Join(sets, ", ") + ` WHERE id = $1 RETURNING ` + entryColumns
	entry, err := scanEntry(s.db.QueryRow(ctx, query, args...))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, clinicerr.NotFound("Queue entry not found.").WithField("id", "Queue entry not found.")
	}
	if err != nil {
		return nil, fmt.Errorf("queue: apply patch: %w", err)
	}
	return entry, nil
}

// DeleteAndReorder removes the entry and renumbers the doctor's remaining
// waiting entries to 1..N in their prior relative order, all in one
// advisory-locked transaction. Returns the removed entry and the
// remaining waiting count.
func (s *Store) DeleteAndReorder(ctx context.Context, id uuid.UUID) (*Entry, int, error) {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return nil, 0, fmt.Errorf("queue: begin delete: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	removed, err := scanEntry(tx.QueryRow(ctx, `SELECT `+entryColumns+` FROM queues WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, 0, clinicerr.NotFound("Queue entry not found.").WithField("id", "Queue entry not found.")
	}
	if err != nil {
		return nil, 0, fmt.Errorf("queue: load for delete: %w", err)
	}

	if err := lockDoctor(ctx, tx, removed.DoctorID); err != nil {
		return nil, 0, err
	}

	if _, err := tx.Exec(ctx, `DELETE FROM queues WHERE id = $1`, id); err != nil {
		return nil, 0, fmt.Errorf("queue: delete: %w", err)
	}

	rows, err := tx.Query(ctx, `
		SELECT id, position
		FROM queues
		WHERE doctor_id = $1 AND status = 'waiting'
		ORDER BY position
	`, removed.DoctorID)
	if err != nil {
		return nil, 0, fmt.Errorf("queue: list remaining: %w", err)
	}

	type slot struct {
		id       uuid.UUID
		position int
	}
	var remaining []slot
	for rows.Next() {
		var s slot
		if err := rows.Scan(&s.id, &s.position); err != nil {
			rows.Close()
			return nil, 0, fmt.Errorf("queue: scan remaining: %w", err)
		}
		remaining = append(remaining, s)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("queue: iterate remaining: %w", err)
	}

	for i, s := range remaining {
		want := i + 1
		if s.position == want {
			continue
		}
		if _, err := tx.Exec(ctx, `UPDATE queues SET position = $2, updated_at = now() WHERE id = $1`, s.id, want); err != nil {
			return nil, 0, fmt.Errorf("queue: reorder: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, 0, fmt.Errorf("queue: commit delete: %w", err)
	}
	return removed, len(remaining), nil
}

// ListByDoctor returns a doctor's entries ordered by position; pass
// uuid.Nil to list every doctor's queue ordered by doctor then position.
func (s *Store) ListByDoctor(ctx context.Context, doctorID uuid.UUID) ([]*Entry, error) {
	var (
		rows pgx.Rows
		err  error
	)
	if doctorID == uuid.Nil {
		rows, err = s.db.Query(ctx, `SELECT `+entryColumns+` FROM queues ORDER BY doctor_id, position`)
	} else {
		rows, err = s.db.Query(ctx, `SELECT `+entryColumns+` FROM queues WHERE doctor_id = $1 ORDER BY position`, doctorID)
	}
	if err != nil {
		return nil, fmt.Errorf("queue: list: %w", err)
	}
	defer rows.Close()

	var out []*Entry
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.ID, &e.DoctorID, &e.PatientID, &e.Position, &e.Status, &e.CalledAt, &e.CreatedAt, &e.UpdatedAt); err != nil {
			return nil, fmt.Errorf("queue: scan: %w", err)
		}
		out = append(out, &e)
	}
	return out, rows.Err()
}
