// Package doctors persists the doctor profiles the scheduling core
// references. Only the fields scheduling touches live here; full profile
// management belongs to the account subsystem.
package doctors

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/clinicware/clinicops/internal/availability"
	"github.com/clinicware/clinicops/internal/clinicerr"
)

// Doctor is a bookable provider with declared weekly availability.
type Doctor struct {
	ID           uuid.UUID           `json:"id"`
	Name         string              `json:"name"`
	Availability []availability.Slot `json:"availability"`
}

// DB is the narrow pgx surface the store needs; satisfied by pgxpool.Pool
// and by pgxmock in tests.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Store reads and writes doctor rows, keeping the availability cache
// coherent on writes.
type Store struct {
	db    DB
	cache *availability.Cache
}

// NewStore creates a doctor store. cache may be nil.
func NewStore(db DB, cache *availability.Cache) *Store {
	if db == nil {
		panic("doctors: db required")
	}
	return &Store{db: db, cache: cache}
}

// GetByID loads one doctor. Returns a NotFound domain error when absent.
func (s *Store) GetByID(ctx context.Context, id uuid.UUID) (*Doctor, error) {
	query := `
		SELECT id, name, availability
		FROM doctors
		WHERE id = $1
	`
	var (
		doc Doctor
		raw []byte
	)
	err := s.db.QueryRow(ctx, query, id).Scan(&doc.ID, &doc.Name, &raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, clinicerr.NotFound("Doctor not found.").WithField("doctor_id", "Doctor not found.")
	}
	if err != nil {
		return nil, fmt.Errorf("doctors: get by id: %w", err)
	}
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &doc.Availability); err != nil {
			return nil, fmt.Errorf("doctors: decode availability: %w", err)
		}
	}
	return &doc, nil
}

// Exists reports whether a doctor row exists.
func (s *Store) Exists(ctx context.Context, id uuid.UUID) (bool, error) {
	var exists bool
	err := s.db.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM doctors WHERE id = $1)`, id).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("doctors: exists: %w", err)
	}
	return exists, nil
}

// List returns all doctors ordered by name.
func (s *Store) List(ctx context.Context) ([]*Doctor, error) {
	query := `
		SELECT id, name, availability
		FROM doctors
		ORDER BY name
	`
	rows, err := s.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("doctors: list: %w", err)
	}
	defer rows.Close()

	var out []*Doctor
	for rows.Next() {
		var (
			doc Doctor
			raw []byte
		)
		if err := rows.Scan(&doc.ID, &doc.Name, &raw); err != nil {
			return nil, fmt.Errorf("doctors: scan: %w", err)
		}
		if len(raw) > 0 {
			if err := json.Unmarshal(raw, &doc.Availability); err != nil {
				return nil, fmt.Errorf("doctors: decode availability: %w", err)
			}
		}
		out = append(out, &doc)
	}
	return out, rows.Err()
}

// Availability returns the doctor's slots, read through the cache.
func (s *Store) Availability(ctx context.Context, id uuid.UUID) ([]availability.Slot, error) {
	if slots, hit, err := s.cache.Get(ctx, id); err == nil && hit {
		return slots, nil
	}
	doc, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	// Cache failures only cost the next read a database trip.
	_ = s.cache.Set(ctx, id, doc.Availability)
	return doc.Availability, nil
}

// UpdateAvailability replaces the doctor's slot list and invalidates the
// cached copy.
func (s *Store) UpdateAvailability(ctx context.Context, id uuid.UUID, slots []availability.Slot) (*Doctor, error) {
	data, err := json.Marshal(slots)
	if err != nil {
		return nil, fmt.Errorf("doctors: encode availability: %w", err)
	}
	query := `
		UPDATE doctors
		SET availability = $2, updated_at = now()
		WHERE id = $1
		RETURNING id, name
	`
	var doc Doctor
	err = s.db.QueryRow(ctx, query, id, data).Scan(&doc.ID, &doc.Name)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, clinicerr.NotFound("Doctor not found.").WithField("doctor_id", "Doctor not found.")
	}
	if err != nil {
		return nil, fmt.Errorf("doctors: update availability: %w", err)
	}
	doc.Availability = slots
	_ = s.cache.Invalidate(ctx, id)
	return &doc, nil
}
