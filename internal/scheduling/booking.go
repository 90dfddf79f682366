package scheduling

import (
	"time"

	"github.com/google/uuid"

	"github.com/clinicware/clinicops/internal/clinicerr"
	"github.com/clinicware/clinicops/internal/identity"
)

// Booking is a role-tagged booking request. The two variants pin down who
// the appointment is for: patients always book for themselves, admins
// name the patient explicitly. Construct one with NewBooking so the role
// rules live in a single place.
type Booking interface {
	fields() bookingFields
	// verifyPatient reports whether the patient id was caller-supplied
	// and must be checked against the patient directory.
	verifyPatient() bool
}

type bookingFields struct {
	DoctorID    uuid.UUID
	PatientID   uuid.UUID
	ScheduledAt time.Time
	Status      string
}

// PatientBooking is a patient booking for themselves; the patient id
// comes from the principal, never the request body.
type PatientBooking struct {
	DoctorID    uuid.UUID
	PatientID   uuid.UUID
	ScheduledAt time.Time
	Status      string
}

func (b PatientBooking) fields() bookingFields {
	return bookingFields(b)
}

func (PatientBooking) verifyPatient() bool { return false }

// AdminBooking is an admin booking on a named patient's behalf.
type AdminBooking struct {
	DoctorID    uuid.UUID
	PatientID   uuid.UUID
	ScheduledAt time.Time
	Status      string
}

func (b AdminBooking) fields() bookingFields {
	return bookingFields(b)
}

func (AdminBooking) verifyPatient() bool { return true }

// NewBooking dispatches the raw request on the principal's role. Doctors
// may not book; patients need a linked patient profile and book only for
// themselves; admins must name a patient.
func NewBooking(p identity.Principal, doctorID, patientID uuid.UUID, scheduledAt time.Time, status string) (Booking, error) {
	if !identity.CanCreateAppointment(p) {
		return nil, clinicerr.Forbidden("Doctors may not book appointments.")
	}
	if p.IsAdmin() {
		if patientID == uuid.Nil {
			return nil, clinicerr.Validation("The given data was invalid.").
				WithField("patient_id", "The patient id field is required.")
		}
		return AdminBooking{
			DoctorID:    doctorID,
			PatientID:   patientID,
			ScheduledAt: scheduledAt,
			Status:      status,
		}, nil
	}
	if p.PatientID == uuid.Nil {
		return nil, clinicerr.Forbidden("No patient profile is linked to this account.")
	}
	return PatientBooking{
		DoctorID:    doctorID,
		PatientID:   p.PatientID,
		ScheduledAt: scheduledAt,
		Status:      status,
	}, nil
}
