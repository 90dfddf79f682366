// Package notify is the boundary between queue mutations and whatever
// delivers their notifications. Implementations must never fail the
// mutation that produced the event: errors are swallowed and logged.
package notify

import (
	"context"

	"github.com/google/uuid"

	"github.com/clinicware/clinicops/internal/events"
	"github.com/clinicware/clinicops/pkg/logging"
)

// Notifier receives queue lifecycle notifications after the corresponding
// mutation has committed.
type Notifier interface {
	QueueJoined(ctx context.Context, evt events.QueueJoinedV1)
	QueueLeft(ctx context.Context, evt events.QueueLeftV1)
	PatientCalled(ctx context.Context, evt events.QueueCalledV1)
	PositionChanged(ctx context.Context, evt events.QueuePositionChangedV1)
}

// LogNotifier writes notifications to the structured log. Useful in
// development and as the terminal fallback sink.
type LogNotifier struct {
	logger *logging.Logger
}

// NewLogNotifier creates a log-backed notifier.
func NewLogNotifier(logger *logging.Logger) *LogNotifier {
	if logger == nil {
		logger = logging.Default()
	}
	return &LogNotifier{logger: logger}
}

func (n *LogNotifier) QueueJoined(ctx context.Context, evt events.QueueJoinedV1) {
	n.logger.Info("queue notification", "type", evt.EventType(), "entry_id", evt.EntryID, "doctor_id", evt.DoctorID, "position", evt.Position)
}

func (n *LogNotifier) QueueLeft(ctx context.Context, evt events.QueueLeftV1) {
	n.logger.Info("queue notification", "type", evt.EventType(), "entry_id", evt.EntryID, "doctor_id", evt.DoctorID, "position", evt.Position)
}

func (n *LogNotifier) PatientCalled(ctx context.Context, evt events.QueueCalledV1) {
	n.logger.Info("queue notification", "type", evt.EventType(), "entry_id", evt.EntryID, "doctor_id", evt.DoctorID, "position", evt.Position)
}

func (n *LogNotifier) PositionChanged(ctx context.Context, evt events.QueuePositionChangedV1) {
	n.logger.Info("queue notification", "type", evt.EventType(), "entry_id", evt.EntryID, "doctor_id", evt.DoctorID, "position", evt.Position)
}

// OutboxNotifier records notifications durably; a Deliverer drains them to
// the configured transport out of band, so the mutating request never
// blocks on delivery.
type OutboxNotifier struct {
	store  *events.OutboxStore
	logger *logging.Logger
}

// NewOutboxNotifier creates an outbox-backed notifier.
func NewOutboxNotifier(store *events.OutboxStore, logger *logging.Logger) *OutboxNotifier {
	if logger == nil {
		logger = logging.Default()
	}
	return &OutboxNotifier{store: store, logger: logger}
}

func (n *OutboxNotifier) record(ctx context.Context, doctorID string, evt events.CanonicalEvent) {
	id, err := uuid.Parse(doctorID)
	if err != nil {
		n.logger.Error("notify: bad doctor id on event", "type", evt.EventType(), "doctor_id", doctorID)
		return
	}
	if _, err := n.store.Insert(ctx, id, evt); err != nil {
		n.logger.Error("notify: outbox insert failed", "type", evt.EventType(), "error", err)
	}
}

func (n *OutboxNotifier) QueueJoined(ctx context.Context, evt events.QueueJoinedV1) {
	n.record(ctx, evt.DoctorID, evt)
}

func (n *OutboxNotifier) QueueLeft(ctx context.Context, evt events.QueueLeftV1) {
	n.record(ctx, evt.DoctorID, evt)
}

func (n *OutboxNotifier) PatientCalled(ctx context.Context, evt events.QueueCalledV1) {
	n.record(ctx, evt.DoctorID, evt)
}

func (n *OutboxNotifier) PositionChanged(ctx context.Context, evt events.QueuePositionChangedV1) {
	n.record(ctx, evt.DoctorID, evt)
}
