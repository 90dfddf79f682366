// Package scheduling books, reschedules, and cancels doctor appointments,
// guarding each doctor's calendar against double-booking.
package scheduling

import (
	"time"

	"github.com/google/uuid"
)

// Appointment statuses.
const (
	StatusScheduled = "scheduled"
	StatusCompleted = "completed"
	StatusCancelled = "cancelled"
)

// ValidStatus reports whether s is a recognized appointment status.
func ValidStatus(s string) bool {
	switch s {
	case StatusScheduled, StatusCompleted, StatusCancelled:
		return true
	}
	return false
}

// Appointment is one booked slot on a doctor's calendar. At most one
// scheduled appointment may exist per (doctor, scheduled_at) instant.
type Appointment struct {
	ID          uuid.UUID `json:"id"`
	DoctorID    uuid.UUID `json:"doctor_id"`
	PatientID   uuid.UUID `json:"patient_id"`
	ScheduledAt time.Time `json:"scheduled_at"`
	Status      string    `json:"status"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// UpdatePatch carries the optional fields of an appointment update. Nil
// means "leave unchanged". The double-booking recheck fires only when
// both DoctorID and ScheduledAt are present.
type UpdatePatch struct {
	DoctorID    *uuid.UUID
	PatientID   *uuid.UUID
	ScheduledAt *time.Time
	Status      *string
}
