// Package events defines the canonical queue lifecycle notifications and
// the durable outbox they are recorded in.
package events

import "time"

// Event type identifiers recorded in the outbox.
const (
	TypeQueueJoined          = "queue.joined.v1"
	TypeQueueLeft            = "queue.left.v1"
	TypeQueueCalled          = "queue.called.v1"
	TypeQueuePositionChanged = "queue.position_changed.v1"
)

// QueueJoinedV1 is emitted when a patient enters a doctor's waiting queue.
type QueueJoinedV1 struct {
	EventID    string     `json:"event_id"`
	EntryID    string     `json:"entry_id"`
	DoctorID   string     `json:"doctor_id"`
	PatientID  string     `json:"patient_id"`
	Position   int        `json:"position"`
	Status     string     `json:"status"`
	CalledAt   *time.Time `json:"called_at,omitempty"`
	OccurredAt time.Time  `json:"occurred_at"`
}

func (QueueJoinedV1) EventType() string { return TypeQueueJoined }

// QueueLeftV1 is emitted when an entry is removed, carrying its final state.
type QueueLeftV1 struct {
	EventID    string     `json:"event_id"`
	EntryID    string     `json:"entry_id"`
	DoctorID   string     `json:"doctor_id"`
	PatientID  string     `json:"patient_id"`
	Position   int        `json:"position"`
	Status     string     `json:"status"`
	CalledAt   *time.Time `json:"called_at,omitempty"`
	OccurredAt time.Time  `json:"occurred_at"`
}

func (QueueLeftV1) EventType() string { return TypeQueueLeft }

// QueueCalledV1 is emitted when an entry's status transitions to called.
type QueueCalledV1 struct {
	EventID    string     `json:"event_id"`
	EntryID    string     `json:"entry_id"`
	DoctorID   string     `json:"doctor_id"`
	PatientID  string     `json:"patient_id"`
	Position   int        `json:"position"`
	Status     string     `json:"status"`
	CalledAt   *time.Time `json:"called_at,omitempty"`
	OccurredAt time.Time  `json:"occurred_at"`
}

func (QueueCalledV1) EventType() string { return TypeQueueCalled }

// QueuePositionChangedV1 is emitted when an entry moves to a new position
// without being called.
type QueuePositionChangedV1 struct {
	EventID    string     `json:"event_id"`
	EntryID    string     `json:"entry_id"`
	DoctorID   string     `json:"doctor_id"`
	PatientID  string     `json:"patient_id"`
	Position   int        `json:"position"`
	Status     string     `json:"status"`
	CalledAt   *time.Time `json:"called_at,omitempty"`
	OccurredAt time.Time  `json:"occurred_at"`
}

func (QueuePositionChangedV1) EventType() string { return TypeQueuePositionChanged }

// CanonicalEvent is any versioned queue notification payload.
type CanonicalEvent interface {
	EventType() string
}
