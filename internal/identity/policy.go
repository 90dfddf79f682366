package identity

import "github.com/google/uuid"

// Authorization rules for appointments and queue entries. The owning
// patient and admins may cancel an appointment; the assigned doctor may
// update but not cancel it.

// CanViewAppointment reports whether p may read the appointment.
func CanViewAppointment(p Principal, doctorID, patientID uuid.UUID) bool {
	if p.IsAdmin() {
		return true
	}
	if p.Role == RoleDoctor && p.DoctorID != uuid.Nil && p.DoctorID == doctorID {
		return true
	}
	return p.Role == RolePatient && p.PatientID != uuid.Nil && p.PatientID == patientID
}

// CanCreateAppointment reports whether p may book appointments at all.
func CanCreateAppointment(p Principal) bool {
	return p.Role == RoleAdmin || p.Role == RolePatient
}

// CanUpdateAppointment allows admins and the assigned doctor.
func CanUpdateAppointment(p Principal, doctorID uuid.UUID) bool {
	if p.IsAdmin() {
		return true
	}
	return p.Role == RoleDoctor && p.DoctorID != uuid.Nil && p.DoctorID == doctorID
}

// CanCancelAppointment allows admins and the owning patient.
func CanCancelAppointment(p Principal, patientID uuid.UUID) bool {
	if p.IsAdmin() {
		return true
	}
	return p.Role == RolePatient && p.PatientID != uuid.Nil && p.PatientID == patientID
}

// CanViewQueueEntry allows admins, the assigned doctor, and the queued patient.
func CanViewQueueEntry(p Principal, doctorID, patientID uuid.UUID) bool {
	if p.IsAdmin() {
		return true
	}
	if p.Role == RoleDoctor && p.DoctorID != uuid.Nil && p.DoctorID == doctorID {
		return true
	}
	return p.Role == RolePatient && p.PatientID != uuid.Nil && p.PatientID == patientID
}

// CanJoinQueue reports whether p may create queue entries.
func CanJoinQueue(p Principal) bool {
	return p.Role == RoleAdmin || p.Role == RolePatient
}

// CanUpdateQueueEntry allows admins and the assigned doctor (call, move).
func CanUpdateQueueEntry(p Principal, doctorID uuid.UUID) bool {
	if p.IsAdmin() {
		return true
	}
	return p.Role == RoleDoctor && p.DoctorID != uuid.Nil && p.DoctorID == doctorID
}

// CanDeleteQueueEntry allows admins and the queued patient (leave).
func CanDeleteQueueEntry(p Principal, patientID uuid.UUID) bool {
	if p.IsAdmin() {
		return true
	}
	return p.Role == RolePatient && p.PatientID != uuid.Nil && p.PatientID == patientID
}
