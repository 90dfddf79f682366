// Package queue maintains each doctor's ordered walk-in waiting list.
package queue

import (
	"time"

	"github.com/google/uuid"
)

// Entry statuses. Transitions are deliberately unrestricted: the update
// operation accepts any recognized status regardless of the current one.
const (
	StatusWaiting   = "waiting"
	StatusCalled    = "called"
	StatusCompleted = "completed"
	StatusCancelled = "cancelled"
)

// ValidStatus reports whether s is a recognized queue status.
func ValidStatus(s string) bool {
	switch s {
	case StatusWaiting, StatusCalled, StatusCompleted, StatusCancelled:
		return true
	}
	return false
}

// Entry is one patient's place in a doctor's waiting queue. Position is
// 1-based and contiguous across the doctor's waiting entries.
type Entry struct {
	ID        uuid.UUID  `json:"id"`
	DoctorID  uuid.UUID  `json:"doctor_id"`
	PatientID uuid.UUID  `json:"patient_id"`
	Position  int        `json:"position"`
	Status    string     `json:"status"`
	CalledAt  *time.Time `json:"called_at"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

// UpdatePatch carries the optional fields of a queue entry update. Nil
// means "leave unchanged"; CalledAt uses an explicit set flag so callers
// can null the timestamp.
type UpdatePatch struct {
	Status      *string
	Position    *int
	CalledAt    *time.Time
	CalledAtSet bool
}
