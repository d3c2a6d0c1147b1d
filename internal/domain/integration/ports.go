package integration

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// ---------------------------------------------------------------------------
// MappingStore Port
// ---------------------------------------------------------------------------

// MappingStore is the durable, crash-safe store for identifier mappings,
// per-type sync watermarks and comment sync records.
//
// UpsertMapping is idempotent: recording the same (kind, local, remote) pair
// twice leaves exactly one row and is not an error. Lookups signal absence
// with ErrMappingNotFound rather than inventing rows; absence is how an
// orchestrator decides between "create" and "update".
type MappingStore interface {
	// UpsertMapping records a mapping; a duplicate pair is a no-op
	UpsertMapping(ctx context.Context, kind MappingKind, localID int64, remoteID string) error

	// UpsertProductMapping records a product mapping together with its SKU
	UpsertProductMapping(ctx context.Context, localID int64, remoteID, sku string) error

	// LookupByLocal finds a mapping by its PowerBody-side identifier
	LookupByLocal(ctx context.Context, kind MappingKind, localID int64) (*KeyMapping, error)

	// LookupByRemote finds a mapping by its Shopify-side identifier
	LookupByRemote(ctx context.Context, kind MappingKind, remoteID string) (*KeyMapping, error)

	// LookupProductBySKU finds a product mapping by SKU
	LookupProductBySKU(ctx context.Context, sku string) (*KeyMapping, error)

	// TouchProductMapping stamps last_synced on a product mapping
	TouchProductMapping(ctx context.Context, sku string, syncedAt time.Time) error

	// GetWatermark returns the watermark for a sync type. On first run it
	// returns a watermark of now minus one day.
	GetWatermark(ctx context.Context, syncType SyncType) (*SyncWatermark, error)

	// SetWatermark records the completion time of a successful full pass
	SetWatermark(ctx context.Context, syncType SyncType, lastSync time.Time) error

	// MarkCommentSynced records that a comment was forwarded in a direction.
	// Recording the same (direction, commentID) twice is a no-op.
	MarkCommentSynced(ctx context.Context, direction CommentDirection, commentID string) error

	// IsCommentSynced reports whether a comment was already forwarded
	IsCommentSynced(ctx context.Context, direction CommentDirection, commentID string) (bool, error)
}

// ---------------------------------------------------------------------------
// ProductCache Port
// ---------------------------------------------------------------------------

// ProductCache trades staleness for availability: reads are served from disk
// while the entry is younger than its TTL, short-circuiting the remote call.
// A malformed or expired entry is a miss, never an error.
type ProductCache interface {
	// Get returns the cached payload for an entity, or ErrCacheMiss
	Get(ctx context.Context, entityID string) ([]byte, error)

	// Put writes the payload for an entity, replacing any previous entry
	Put(ctx context.Context, entityID string, payload []byte) error

	// Invalidate removes a single entry
	Invalidate(ctx context.Context, entityID string) error

	// InvalidateAll removes every entry
	InvalidateAll(ctx context.Context) error
}

// ---------------------------------------------------------------------------
// DeadLetterQueue Port
// ---------------------------------------------------------------------------

// DeadLetterQueue guarantees that no order-sync failure is silently lost.
// Only the order orchestrator writes records; adapters never dead-letter.
type DeadLetterQueue interface {
	// Record persists a retryable failed operation
	Record(ctx context.Context, entityID string, payload []byte, reason string) (*DeadLetterRecord, error)

	// ListPending returns pending records ordered most recent first
	ListPending(ctx context.Context) ([]*DeadLetterRecord, error)

	// Claim takes exclusive ownership of a record before replay. A second
	// claim of the same record returns ErrDeadLetterClaimed.
	Claim(ctx context.Context, id uuid.UUID) (*DeadLetterRecord, error)

	// MarkProcessed transitions a claimed record to Processed
	MarkProcessed(ctx context.Context, id uuid.UUID) error

	// MarkFailed transitions a claimed record to Failed
	MarkFailed(ctx context.Context, id uuid.UUID) error
}
