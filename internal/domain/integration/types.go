package integration

import (
	"time"
)

// ---------------------------------------------------------------------------
// MappingKind
// ---------------------------------------------------------------------------

// MappingKind identifies which kind of entity a KeyMapping associates.
type MappingKind string

const (
	// MappingKindOrder maps a PowerBody order ID to a Shopify order ID
	MappingKindOrder MappingKind = "ORDER"
	// MappingKindProduct maps a PowerBody product ID to a Shopify product ID
	MappingKindProduct MappingKind = "PRODUCT"
	// MappingKindRefund maps a PowerBody refund ID to a Shopify refund ID
	MappingKindRefund MappingKind = "REFUND"
)

// IsValid returns true if the mapping kind is valid
func (k MappingKind) IsValid() bool {
	switch k {
	case MappingKindOrder, MappingKindProduct, MappingKindRefund:
		return true
	default:
		return false
	}
}

// String returns the string representation of MappingKind
func (k MappingKind) String() string {
	return string(k)
}

// ---------------------------------------------------------------------------
// SyncType
// ---------------------------------------------------------------------------

// SyncType identifies a synchronization pass for watermark bookkeeping.
type SyncType string

const (
	// SyncTypeProduct is the catalog synchronization pass
	SyncTypeProduct SyncType = "PRODUCT"
	// SyncTypeOrder is the order lifecycle synchronization pass
	SyncTypeOrder SyncType = "ORDER"
	// SyncTypeComment is the bidirectional order comment pass
	SyncTypeComment SyncType = "COMMENT"
	// SyncTypeRefund is the refund synchronization pass
	SyncTypeRefund SyncType = "REFUND"
)

// IsValid returns true if the sync type is valid
func (t SyncType) IsValid() bool {
	switch t {
	case SyncTypeProduct, SyncTypeOrder, SyncTypeComment, SyncTypeRefund:
		return true
	default:
		return false
	}
}

// String returns the string representation of SyncType
func (t SyncType) String() string {
	return string(t)
}

// ---------------------------------------------------------------------------
// CommentDirection
// ---------------------------------------------------------------------------

// CommentDirection identifies which way an order comment travelled.
type CommentDirection string

const (
	// CommentDirectionPowerBodyToShopify marks comments pulled from PowerBody
	// and posted on the Shopify order
	CommentDirectionPowerBodyToShopify CommentDirection = "PB_TO_SHOPIFY"
	// CommentDirectionShopifyToPowerBody marks comments pulled from Shopify
	// and inserted into the PowerBody order
	CommentDirectionShopifyToPowerBody CommentDirection = "SHOPIFY_TO_PB"
)

// IsValid returns true if the direction is valid
func (d CommentDirection) IsValid() bool {
	switch d {
	case CommentDirectionPowerBodyToShopify, CommentDirectionShopifyToPowerBody:
		return true
	default:
		return false
	}
}

// String returns the string representation of CommentDirection
func (d CommentDirection) String() string {
	return string(d)
}

// ---------------------------------------------------------------------------
// KeyMapping Entity
// ---------------------------------------------------------------------------

// KeyMapping is the persisted association between an entity's identifier on
// PowerBody (LocalID) and its counterpart on Shopify (RemoteID).
//
// A mapping is created exactly once per successfully synced entity and is
// immutable afterwards; the store enforces uniqueness on (Kind, LocalID) and
// (Kind, RemoteID).
type KeyMapping struct {
	// Kind identifies the entity kind this mapping belongs to
	Kind MappingKind
	// LocalID is the PowerBody-side identifier
	LocalID int64
	// RemoteID is the Shopify-side identifier
	RemoteID string
	// SKU is carried for product mappings only, to allow lookup by SKU
	SKU string
	// CreatedAt is when this mapping was first recorded
	CreatedAt time.Time
	// LastSyncedAt is when the mapped entity was last pushed (products only)
	LastSyncedAt *time.Time
}

// Validate validates the key mapping
func (m *KeyMapping) Validate() error {
	if !m.Kind.IsValid() {
		return ErrMappingInvalidKind
	}
	if m.LocalID <= 0 {
		return ErrMappingInvalidLocalID
	}
	if m.RemoteID == "" {
		return ErrMappingInvalidRemoteID
	}
	return nil
}

// ---------------------------------------------------------------------------
// SyncWatermark
// ---------------------------------------------------------------------------

// SyncWatermark records the end of the last successful pass for a sync type.
// It bounds the polling window of the next pass.
type SyncWatermark struct {
	// Type is the sync pass this watermark belongs to
	Type SyncType
	// LastSync is when the last successful full pass completed
	LastSync time.Time
}

// ---------------------------------------------------------------------------
// CommentSyncRecord
// ---------------------------------------------------------------------------

// CommentSyncRecord marks a single comment as already forwarded in one
// direction, preventing duplicate sends across runs.
type CommentSyncRecord struct {
	// Direction is the direction the comment was forwarded in
	Direction CommentDirection
	// CommentID is the source-side comment identifier
	CommentID string
	// SyncedAt is when the comment was forwarded
	SyncedAt time.Time
}
