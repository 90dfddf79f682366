package scheduling

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/clinicware/clinicops/internal/availability"
	"github.com/clinicware/clinicops/internal/clinicerr"
	"github.com/clinicware/clinicops/internal/identity"
	"github.com/clinicware/clinicops/internal/observability/metrics"
	"github.com/clinicware/clinicops/internal/queue"
	"github.com/clinicware/clinicops/pkg/logging"
)

// AppointmentStore is the persistence surface the service depends on.
type AppointmentStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (*Appointment, error)
	Create(ctx context.Context, doctorID, patientID uuid.UUID, scheduledAt time.Time, status string) (*Appointment, error)
	Update(ctx context.Context, id uuid.UUID, patch UpdatePatch) (*Appointment, error)
	Delete(ctx context.Context, id uuid.UUID) (*Appointment, error)
	List(ctx context.Context, f ListFilter) ([]*Appointment, error)
}

// DoctorDirectory resolves doctors and their working slots. The doctor
// store satisfies it, serving slots through the availability cache.
type DoctorDirectory interface {
	Exists(ctx context.Context, id uuid.UUID) (bool, error)
	Availability(ctx context.Context, id uuid.UUID) ([]availability.Slot, error)
}

// PatientDirectory reports patient existence.
type PatientDirectory interface {
	Exists(ctx context.Context, id uuid.UUID) (bool, error)
}

// QueueGateway is the slice of the queue service bookings touch: the
// same-day auto-enqueue and the cancel cascade.
type QueueGateway interface {
	EnqueueIfAbsent(ctx context.Context, doctorID, patientID uuid.UUID) (*queue.Entry, bool, error)
	RemoveWaitingFor(ctx context.Context, doctorID, patientID uuid.UUID) error
}

// Service enforces the booking rules: availability gate, double-booking
// rejection, and same-day queue enrollment.
type Service struct {
	store    AppointmentStore
	doctors  DoctorDirectory
	patients PatientDirectory
	queue    QueueGateway
	loc      *time.Location
	metrics  *metrics.SchedulingMetrics
	logger   *logging.Logger
	tracer   trace.Tracer
	now      func() time.Time
}

// NewService wires a scheduling service. loc is the clinic's calendar
// timezone for availability and "today" evaluation; nil means time.Local.
func NewService(store AppointmentStore, doctors DoctorDirectory, patients PatientDirectory, q QueueGateway, loc *time.Location, m *metrics.SchedulingMetrics, logger *logging.Logger) *Service {
	if loc == nil {
		loc = time.Local
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Service{
		store:    store,
		doctors:  doctors,
		patients: patients,
		queue:    q,
		loc:      loc,
		metrics:  m,
		logger:   logger,
		tracer:   otel.Tracer("clinicops/scheduling"),
		now:      time.Now,
	}
}

// WithClock overrides the service clock for tests.
func (s *Service) WithClock(now func() time.Time) *Service {
	if now != nil {
		s.now = now
	}
	return s
}

// Location returns the clinic timezone bookings are evaluated in.
func (s *Service) Location() *time.Location {
	return s.loc
}

func (s *Service) observeOutcome(err error) {
	if err == nil {
		s.metrics.ObserveBooking("created")
		return
	}
	domainErr, ok := clinicerr.As(err)
	if !ok {
		s.metrics.ObserveBooking("error")
		return
	}
	s.metrics.ObserveBooking(string(domainErr.Kind))
}

// Book validates and creates an appointment from a role-tagged booking.
// On a same-day booking the patient is enqueued for the doctor's walk-in
// queue, best-effort.
func (s *Service) Book(ctx context.Context, b Booking) (appt *Appointment, err error) {
	ctx, span := s.tracer.Start(ctx, "scheduling.Book")
	defer span.End()
	start := time.Now()
	defer func() {
		s.metrics.ObserveBookingLatency(time.Since(start).Seconds())
		s.observeOutcome(err)
	}()

	req := b.fields()
	if b.verifyPatient() {
		if ok, err := s.patients.Exists(ctx, req.PatientID); err != nil {
			return nil, err
		} else if !ok {
			return nil, clinicerr.Validation("The given data was invalid.").
				WithField("patient_id", "The selected patient id is invalid.")
		}
	}

	status := req.Status
	if status == "" {
		status = StatusScheduled
	}
	if !ValidStatus(status) {
		return nil, clinicerr.Validation("The given data was invalid.").
			WithField("status", "The selected status is invalid.")
	}
	if req.ScheduledAt.IsZero() {
		return nil, clinicerr.Validation("The given data was invalid.").
			WithField("scheduled_at", "The scheduled at field is required.")
	}

	slots, err := s.doctors.Availability(ctx, req.DoctorID)
	if err != nil {
		return nil, err
	}
	local := req.ScheduledAt.In(s.loc)
	if !availability.IsAvailable(slots, local) {
		s.metrics.ObserveConflict("unavailable")
		return nil, clinicerr.Conflict("Doctor is not available at the selected time.").
			WithField("scheduled_at", "Doctor is not available at the selected time.")
	}

	appt, err = s.store.Create(ctx, req.DoctorID, req.PatientID, req.ScheduledAt, status)
	if err != nil {
		if domainErr, ok := clinicerr.As(err); ok && domainErr.Kind == clinicerr.KindConflict {
			s.metrics.ObserveConflict("double_booked")
		}
		return nil, err
	}

	if s.sameDay(appt.ScheduledAt) && s.queue != nil {
		if _, _, qerr := s.queue.EnqueueIfAbsent(ctx, appt.DoctorID, appt.PatientID); qerr != nil {
			// The appointment stands even if enrollment fails.
			s.logger.Error("same-day enqueue failed", "appointment_id", appt.ID, "doctor_id", appt.DoctorID, "error", qerr)
		}
	}

	s.logger.Info("appointment booked", "appointment_id", appt.ID, "doctor_id", appt.DoctorID, "scheduled_at", appt.ScheduledAt)
	return appt, nil
}

// sameDay reports whether t falls on the clinic's current calendar date.
func (s *Service) sameDay(t time.Time) bool {
	now := s.now().In(s.loc)
	local := t.In(s.loc)
	return now.Year() == local.Year() && now.YearDay() == local.YearDay()
}

// Get loads an appointment, enforcing view access for the principal.
func (s *Service) Get(ctx context.Context, principal identity.Principal, id uuid.UUID) (*Appointment, error) {
	appt, err := s.store.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !identity.CanViewAppointment(principal, appt.DoctorID, appt.PatientID) {
		return nil, clinicerr.Forbidden("You may not view this appointment.")
	}
	return appt, nil
}

// List returns the appointments visible to the principal: admins see all
// and may filter freely, doctors are pinned to their calendar, patients
// to their own bookings.
func (s *Service) List(ctx context.Context, principal identity.Principal, f ListFilter) ([]*Appointment, error) {
	switch {
	case principal.IsAdmin():
	case principal.Role == identity.RoleDoctor && principal.DoctorID != uuid.Nil:
		f.DoctorID = principal.DoctorID
	case principal.Role == identity.RolePatient && principal.PatientID != uuid.Nil:
		f.PatientID = principal.PatientID
	default:
		return nil, clinicerr.Forbidden("No profile is linked to this account.")
	}
	return s.store.List(ctx, f)
}

// Update patches an appointment. Admins and the assigned doctor may
// update; the double-booking recheck applies only when the patch moves
// both the doctor and the time.
func (s *Service) Update(ctx context.Context, principal identity.Principal, id uuid.UUID, patch UpdatePatch) (*Appointment, error) {
	ctx, span := s.tracer.Start(ctx, "scheduling.Update")
	defer span.End()

	existing, err := s.store.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !identity.CanUpdateAppointment(principal, existing.DoctorID) {
		return nil, clinicerr.Forbidden("Only admins or the assigned doctor may update this appointment.")
	}

	if patch.Status != nil && !ValidStatus(*patch.Status) {
		return nil, clinicerr.Validation("The given data was invalid.").
			WithField("status", "The selected status is invalid.")
	}
	if patch.DoctorID != nil {
		if ok, err := s.doctors.Exists(ctx, *patch.DoctorID); err != nil {
			return nil, err
		} else if !ok {
			return nil, clinicerr.Validation("The given data was invalid.").
				WithField("doctor_id", "The selected doctor id is invalid.")
		}
	}
	if patch.PatientID != nil {
		if ok, err := s.patients.Exists(ctx, *patch.PatientID); err != nil {
			return nil, err
		} else if !ok {
			return nil, clinicerr.Validation("The given data was invalid.").
				WithField("patient_id", "The selected patient id is invalid.")
		}
	}

	appt, err := s.store.Update(ctx, id, patch)
	if err != nil {
		if domainErr, ok := clinicerr.As(err); ok && domainErr.Kind == clinicerr.KindConflict {
			s.metrics.ObserveConflict("double_booked")
		}
		return nil, err
	}
	return appt, nil
}

// Cancel deletes an appointment and drops the patient's waiting queue
// entry for that doctor, closing ranks behind it. Admins and the owning
// patient may cancel; the assigned doctor may not.
func (s *Service) Cancel(ctx context.Context, principal identity.Principal, id uuid.UUID) error {
	ctx, span := s.tracer.Start(ctx, "scheduling.Cancel")
	defer span.End()

	existing, err := s.store.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if !identity.CanCancelAppointment(principal, existing.PatientID) {
		return clinicerr.Forbidden("Only admins or the owning patient may cancel this appointment.")
	}

	appt, err := s.store.Delete(ctx, id)
	if err != nil {
		return err
	}
	if s.queue != nil {
		if err := s.queue.RemoveWaitingFor(ctx, appt.DoctorID, appt.PatientID); err != nil {
			s.logger.Error("queue cascade on cancel failed", "appointment_id", appt.ID, "doctor_id", appt.DoctorID, "error", err)
		}
	}
	s.logger.Info("appointment cancelled", "appointment_id", appt.ID, "doctor_id", appt.DoctorID)
	return nil
}
