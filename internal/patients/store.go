// Package patients holds the minimal patient lookups scheduling needs.
package patients

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/clinicware/clinicops/internal/clinicerr"
)

// Patient is a bookable patient profile referenced by id.
type Patient struct {
	ID   uuid.UUID `json:"id"`
	Name string    `json:"name"`
}

// DB is the pgx query surface the store needs.
type DB interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Store reads patient rows.
type Store struct {
	db DB
}

// NewStore creates a patient store.
func NewStore(db DB) *Store {
	if db == nil {
		panic("patients: db required")
	}
	return &Store{db: db}
}

// GetByID loads one patient; NotFound domain error when absent.
func (s *Store) GetByID(ctx context.Context, id uuid.UUID) (*Patient, error) {
	query := `
		SELECT id, name
		FROM patients
		WHERE id = $1
	`
	var p Patient
	err := s.db.QueryRow(ctx, query, id).Scan(&p.ID, &p.Name)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, clinicerr.NotFound("Patient not found.").WithField("patient_id", "Patient not found.")
	}
	if err != nil {
		return nil, fmt.Errorf("patients: get by id: %w", err)
	}
	return &p, nil
}

// Exists reports whether the patient id references a row.
func (s *Store) Exists(ctx context.Context, id uuid.UUID) (bool, error) {
	var exists bool
	query := `SELECT EXISTS (SELECT 1 FROM patients WHERE id = $1)`
	if err := s.db.QueryRow(ctx, query, id).Scan(&exists); err != nil {
		return false, fmt.Errorf("patients: exists: %w", err)
	}
	return exists, nil
}
