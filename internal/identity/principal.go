// Package identity resolves the calling principal from a signed token and
// centralizes the authorization rules for scheduling and queue mutations.
package identity

import (
	"context"

	"github.com/google/uuid"
)

// Role is the principal's role within the clinic.
type Role string

const (
	RoleAdmin   Role = "admin"
	RoleDoctor  Role = "doctor"
	RolePatient Role = "patient"
)

// Valid reports whether the role is one the system recognizes.
func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleDoctor, RolePatient:
		return true
	}
	return false
}

// Principal describes the authenticated caller. DoctorID/PatientID are the
// linked profile ids for doctor/patient accounts; uuid.Nil when absent.
type Principal struct {
	Subject   string
	Role      Role
	DoctorID  uuid.UUID
	PatientID uuid.UUID
}

// IsAdmin reports whether the principal holds the admin role.
func (p Principal) IsAdmin() bool { return p.Role == RoleAdmin }

type contextKey string

const principalKey contextKey = "principal"

// WithPrincipal installs the principal into the context.
func WithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, principalKey, p)
}

// FromContext returns the authenticated principal if present.
func FromContext(ctx context.Context) (Principal, bool) {
	p, ok := ctx.Value(principalKey).(Principal)
	return p, ok
}
