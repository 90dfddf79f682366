package queue

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/clinicware/clinicops/internal/clinicerr"
	"github.com/clinicware/clinicops/internal/events"
	"github.com/clinicware/clinicops/internal/notify"
	"github.com/clinicware/clinicops/internal/observability/metrics"
	"github.com/clinicware/clinicops/pkg/logging"
)

// EntryStore is the persistence surface the service depends on.
type EntryStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (*Entry, error)
	FindWaiting(ctx context.Context, doctorID, patientID uuid.UUID) (*Entry, error)
	InsertWaiting(ctx context.Context, doctorID, patientID uuid.UUID, ifAbsent bool) (*Entry, bool, error)
	ApplyPatch(ctx context.Context, id uuid.UUID, patch UpdatePatch) (*Entry, error)
	DeleteAndReorder(ctx context.Context, id uuid.UUID) (*Entry, int, error)
	ListByDoctor(ctx context.Context, doctorID uuid.UUID) ([]*Entry, error)
}

// ExistenceChecker reports whether a referenced row exists. Both the
// doctor and patient stores satisfy it.
type ExistenceChecker interface {
	Exists(ctx context.Context, id uuid.UUID) (bool, error)
}

// Service coordinates queue mutations: position assignment through the
// store's locked transactions, then notification emission once the
// mutation has committed. Notifications are best-effort and never fail
// the request.
type Service struct {
	store    EntryStore
	doctors  ExistenceChecker
	patients ExistenceChecker
	notifier notify.Notifier
	metrics  *metrics.SchedulingMetrics
	logger   *logging.Logger
	tracer   trace.Tracer
	now      func() time.Time
}

// NewService wires a queue service. notifier may be nil (no
// notifications); metrics may be nil.
func NewService(store EntryStore, doctors, patients ExistenceChecker, notifier notify.Notifier, m *metrics.SchedulingMetrics, logger *logging.Logger) *Service {
	if logger == nil {
		logger = logging.Default()
	}
	return &Service{
		store:    store,
		doctors:  doctors,
		patients: patients,
		notifier: notifier,
		metrics:  m,
		logger:   logger,
		tracer:   otel.Tracer("clinicops/queue"),
		now:      time.Now,
	}
}

// WithClock overrides the service clock; used by tests and by callers
// that already resolved the clinic timezone.
func (s *Service) WithClock(now func() time.Time) *Service {
	if now != nil {
		s.now = now
	}
	return s
}

func (s *Service) base(entry *Entry) (string, string, string, int, string, *time.Time, time.Time) {
	return uuid.NewString(), entry.ID.String(), entry.DoctorID.String(), entry.Position, entry.Status, entry.CalledAt, s.now().UTC()
}

func (s *Service) emitJoined(ctx context.Context, entry *Entry) {
	if s.notifier == nil {
		return
	}
	evtID, entryID, doctorID, pos, status, calledAt, at := s.base(entry)
	s.notifier.QueueJoined(ctx, events.QueueJoinedV1{
		EventID:    evtID,
		EntryID:    entryID,
		DoctorID:   doctorID,
		PatientID:  entry.PatientID.String(),
		Position:   pos,
		Status:     status,
		CalledAt:   calledAt,
		OccurredAt: at,
	})
}

func (s *Service) emitLeft(ctx context.Context, entry *Entry) {
	if s.notifier == nil {
		return
	}
	evtID, entryID, doctorID, pos, status, calledAt, at := s.base(entry)
	s.notifier.QueueLeft(ctx, events.QueueLeftV1{
		EventID:    evtID,
		EntryID:    entryID,
		DoctorID:   doctorID,
		PatientID:  entry.PatientID.String(),
		Position:   pos,
		Status:     status,
		CalledAt:   calledAt,
		OccurredAt: at,
	})
}

func (s *Service) emitCalled(ctx context.Context, entry *Entry) {
	if s.notifier == nil {
		return
	}
	evtID, entryID, doctorID, pos, status, calledAt, at := s.base(entry)
	s.notifier.PatientCalled(ctx, events.QueueCalledV1{
		EventID:    evtID,
		EntryID:    entryID,
		DoctorID:   doctorID,
		PatientID:  entry.PatientID.String(),
		Position:   pos,
		Status:     status,
		CalledAt:   calledAt,
		OccurredAt: at,
	})
}

func (s *Service) emitPositionChanged(ctx context.Context, entry *Entry) {
	if s.notifier == nil {
		return
	}
	evtID, entryID, doctorID, pos, status, calledAt, at := s.base(entry)
	s.notifier.PositionChanged(ctx, events.QueuePositionChangedV1{
		EventID:    evtID,
		EntryID:    entryID,
		DoctorID:   doctorID,
		PatientID:  entry.PatientID.String(),
		Position:   pos,
		Status:     status,
		CalledAt:   calledAt,
		OccurredAt: at,
	})
}

// Create is an explicit walk-in join. Unknown doctor or patient is a
// validation failure; an existing waiting entry for the pair is a
// conflict.
func (s *Service) Create(ctx context.Context, doctorID, patientID uuid.UUID) (*Entry, error) {
	ctx, span := s.tracer.Start(ctx, "queue.Create")
	defer span.End()

	verr := clinicerr.Validation("The given data was invalid.")
	if ok, err := s.doctors.Exists(ctx, doctorID); err != nil {
		return nil, err
	} else if !ok {
		verr = verr.WithField("doctor_id", "The selected doctor id is invalid.")
	}
	if ok, err := s.patients.Exists(ctx, patientID); err != nil {
		return nil, err
	} else if !ok {
		verr = verr.WithField("patient_id", "The selected patient id is invalid.")
	}
	if len(verr.Fields) > 0 {
		return nil, verr
	}

	entry, _, err := s.store.InsertWaiting(ctx, doctorID, patientID, false)
	if err != nil {
		return nil, err
	}

	s.metrics.ObserveQueueOp("join")
	s.metrics.SetQueueDepth(entry.DoctorID.String(), entry.Position)
	s.emitJoined(ctx, entry)
	s.logger.Info("queue join", "entry_id", entry.ID, "doctor_id", entry.DoctorID, "position", entry.Position)
	return entry, nil
}

// EnqueueIfAbsent adds the patient to the doctor's queue unless a waiting
// entry already exists, in which case the existing entry is returned.
// Same-day bookings use this to auto-enqueue without failing on repeats.
func (s *Service) EnqueueIfAbsent(ctx context.Context, doctorID, patientID uuid.UUID) (*Entry, bool, error) {
	ctx, span := s.tracer.Start(ctx, "queue.EnqueueIfAbsent")
	defer span.End()

	entry, created, err := s.store.InsertWaiting(ctx, doctorID, patientID, true)
	if err != nil {
		return nil, false, err
	}
	if created {
		s.metrics.ObserveQueueOp("enqueue")
		s.metrics.SetQueueDepth(entry.DoctorID.String(), entry.Position)
		s.emitJoined(ctx, entry)
		s.logger.Info("queue auto-enqueue", "entry_id", entry.ID, "doctor_id", entry.DoctorID, "position", entry.Position)
	}
	return entry, created, nil
}

// Get loads one queue entry.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Entry, error) {
	return s.store.GetByID(ctx, id)
}

// List returns queue entries; uuid.Nil lists every doctor's queue.
func (s *Service) List(ctx context.Context, doctorID uuid.UUID) ([]*Entry, error) {
	return s.store.ListByDoctor(ctx, doctorID)
}

// Update patches an entry. Any recognized status is accepted regardless
// of the current one. When the status transitions to called and the
// caller supplied no timestamp, called_at is stamped with the current
// time. Exactly one notification is chosen per update: called wins over
// a position change; otherwise nothing is emitted.
func (s *Service) Update(ctx context.Context, id uuid.UUID, patch UpdatePatch) (*Entry, error) {
	ctx, span := s.tracer.Start(ctx, "queue.Update")
	defer span.End()

	if patch.Status != nil && !ValidStatus(*patch.Status) {
		return nil, clinicerr.Validation("The given data was invalid.").
			WithField("status", "The selected status is invalid.")
	}
	if patch.Position != nil && *patch.Position < 1 {
		return nil, clinicerr.Validation("The given data was invalid.").
			WithField("position", "The position must be at least 1.")
	}

	prior, err := s.store.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	becameCalled := patch.Status != nil && *patch.Status == StatusCalled && prior.Status != StatusCalled
	if becameCalled && !patch.CalledAtSet {
		at := s.now().UTC()
		patch.CalledAt = &at
		patch.CalledAtSet = true
	}

	entry, err := s.store.ApplyPatch(ctx, id, patch)
	if err != nil {
		return nil, err
	}

	s.metrics.ObserveQueueOp("update")
	switch {
	case becameCalled:
		s.emitCalled(ctx, entry)
	case patch.Position != nil && entry.Position != prior.Position:
		s.emitPositionChanged(ctx, entry)
	}
	return entry, nil
}

// RemoveAndReorder deletes an entry and closes the gap in the doctor's
// waiting positions, then reports the departure with the entry's final
// pre-removal state.
func (s *Service) RemoveAndReorder(ctx context.Context, id uuid.UUID) error {
	ctx, span := s.tracer.Start(ctx, "queue.RemoveAndReorder")
	defer span.End()

	removed, remaining, err := s.store.DeleteAndReorder(ctx, id)
	if err != nil {
		return err
	}

	s.metrics.ObserveQueueOp("remove")
	s.metrics.SetQueueDepth(removed.DoctorID.String(), remaining)
	s.emitLeft(ctx, removed)
	s.logger.Info("queue remove", "entry_id", removed.ID, "doctor_id", removed.DoctorID, "remaining", remaining)
	return nil
}

// RemoveWaitingFor drops the patient's waiting entry for the doctor if
// one exists. Used when a same-day appointment is cancelled.
func (s *Service) RemoveWaitingFor(ctx context.Context, doctorID, patientID uuid.UUID) error {
	entry, err := s.store.FindWaiting(ctx, doctorID, patientID)
	if err != nil {
		return err
	}
	if entry == nil {
		return nil
	}
	return s.RemoveAndReorder(ctx, entry.ID)
}
