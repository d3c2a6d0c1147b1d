package integration

import (
	"time"

	"github.com/google/uuid"
)

// ---------------------------------------------------------------------------
// DeadLetterStatus
// ---------------------------------------------------------------------------

// DeadLetterStatus is the lifecycle state of a dead-letter record.
type DeadLetterStatus string

const (
	// DeadLetterStatusPending means the record is awaiting replay
	DeadLetterStatusPending DeadLetterStatus = "PENDING"
	// DeadLetterStatusProcessed means a replay succeeded
	DeadLetterStatusProcessed DeadLetterStatus = "PROCESSED"
	// DeadLetterStatusFailed means a replay failed terminally
	DeadLetterStatusFailed DeadLetterStatus = "FAILED"
)

// IsValid returns true if the status is a known value
func (s DeadLetterStatus) IsValid() bool {
	switch s {
	case DeadLetterStatusPending, DeadLetterStatusProcessed, DeadLetterStatusFailed:
		return true
	default:
		return false
	}
}

// String returns the string representation of DeadLetterStatus
func (s DeadLetterStatus) String() string {
	return string(s)
}

// ---------------------------------------------------------------------------
// DeadLetterRecord Entity
// ---------------------------------------------------------------------------

// DeadLetterRecord is a durably stored failed order operation. The payload is
// the complete request body needed to re-submit the operation, so a replay
// never depends on in-memory state from the failed run.
//
// Records are never deleted; terminal states are recorded alongside the
// history so no order is ever silently lost.
type DeadLetterRecord struct {
	// ID is the unique identifier of this record
	ID uuid.UUID
	// EntityID is the Shopify order ID the failed operation belongs to
	EntityID string
	// Payload is the full request body needed to retry the operation
	Payload []byte
	// Reason describes why the operation was dead-lettered
	Reason string
	// CreatedAt is when the record was written
	CreatedAt time.Time
	// Status is the replay lifecycle state
	Status DeadLetterStatus
}

// NewDeadLetterRecord creates a pending dead-letter record for an entity.
func NewDeadLetterRecord(entityID string, payload []byte, reason string) *DeadLetterRecord {
	return &DeadLetterRecord{
		ID:        uuid.New(),
		EntityID:  entityID,
		Payload:   payload,
		Reason:    reason,
		CreatedAt: time.Now(),
		Status:    DeadLetterStatusPending,
	}
}
