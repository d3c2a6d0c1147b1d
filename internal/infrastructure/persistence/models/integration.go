// Package models contains the GORM persistence models for the sync state
// database. Models are kept separate from domain entities; each model knows
// how to convert to and from its domain counterpart.
package models

import (
	"time"

	"github.com/dropsync/backend/internal/domain/integration"
)

// OrderMappingModel is the GORM model for order identifier mappings
type OrderMappingModel struct {
	ID        uint      `gorm:"primaryKey;autoIncrement"`
	LocalID   int64     `gorm:"column:local_id;not null;uniqueIndex:idx_order_mapping_pair;index:idx_order_mapping_local,unique"`
	RemoteID  string    `gorm:"column:remote_id;size:64;not null;uniqueIndex:idx_order_mapping_pair;index:idx_order_mapping_remote,unique"`
	CreatedAt time.Time `gorm:"column:created_at;not null"`
}

// TableName specifies the table name
func (OrderMappingModel) TableName() string {
	return "order_mapping"
}

// ToDomain converts the model to a domain KeyMapping
func (m *OrderMappingModel) ToDomain() *integration.KeyMapping {
	return &integration.KeyMapping{
		Kind:      integration.MappingKindOrder,
		LocalID:   m.LocalID,
		RemoteID:  m.RemoteID,
		CreatedAt: m.CreatedAt,
	}
}

// ProductMappingModel is the GORM model for product identifier mappings
type ProductMappingModel struct {
	ID         uint       `gorm:"primaryKey;autoIncrement"`
	LocalID    int64      `gorm:"column:local_id;not null;uniqueIndex:idx_product_mapping_pair;index:idx_product_mapping_local,unique"`
	RemoteID   string     `gorm:"column:remote_id;size:64;not null;uniqueIndex:idx_product_mapping_pair;index:idx_product_mapping_remote,unique"`
	SKU        string     `gorm:"column:sku;size:128;index:idx_product_mapping_sku"`
	LastSynced *time.Time `gorm:"column:last_synced"`
	CreatedAt  time.Time  `gorm:"column:created_at;not null"`
}

// TableName specifies the table name
func (ProductMappingModel) TableName() string {
	return "product_mapping"
}

// ToDomain converts the model to a domain KeyMapping
func (m *ProductMappingModel) ToDomain() *integration.KeyMapping {
	return &integration.KeyMapping{
		Kind:         integration.MappingKindProduct,
		LocalID:      m.LocalID,
		RemoteID:     m.RemoteID,
		SKU:          m.SKU,
		CreatedAt:    m.CreatedAt,
		LastSyncedAt: m.LastSynced,
	}
}

// RefundMappingModel is the GORM model for refund identifier mappings
type RefundMappingModel struct {
	ID        uint      `gorm:"primaryKey;autoIncrement"`
	LocalID   int64     `gorm:"column:local_id;not null;uniqueIndex:idx_refund_mapping_pair;index:idx_refund_mapping_local,unique"`
	RemoteID  string    `gorm:"column:remote_id;size:64;not null;uniqueIndex:idx_refund_mapping_pair;index:idx_refund_mapping_remote,unique"`
	CreatedAt time.Time `gorm:"column:created_at;not null"`
}

// TableName specifies the table name
func (RefundMappingModel) TableName() string {
	return "refund_mapping"
}

// ToDomain converts the model to a domain KeyMapping
func (m *RefundMappingModel) ToDomain() *integration.KeyMapping {
	return &integration.KeyMapping{
		Kind:      integration.MappingKindRefund,
		LocalID:   m.LocalID,
		RemoteID:  m.RemoteID,
		CreatedAt: m.CreatedAt,
	}
}

// SyncStateModel is the GORM model for per-type sync watermarks
type SyncStateModel struct {
	SyncType string    `gorm:"column:sync_type;size:32;primaryKey"`
	LastSync time.Time `gorm:"column:last_sync;not null"`
}

// TableName specifies the table name
func (SyncStateModel) TableName() string {
	return "sync_state"
}

// ToDomain converts the model to a domain SyncWatermark
func (m *SyncStateModel) ToDomain() *integration.SyncWatermark {
	return &integration.SyncWatermark{
		Type:     integration.SyncType(m.SyncType),
		LastSync: m.LastSync,
	}
}

// CommentSyncModel is the GORM model for forwarded comment records
type CommentSyncModel struct {
	ID        uint      `gorm:"primaryKey;autoIncrement"`
	Direction string    `gorm:"column:direction;size:16;not null;uniqueIndex:idx_comment_sync_pair"`
	CommentID string    `gorm:"column:comment_id;size:64;not null;uniqueIndex:idx_comment_sync_pair"`
	SyncedAt  time.Time `gorm:"column:synced_at;not null"`
}

// TableName specifies the table name
func (CommentSyncModel) TableName() string {
	return "comment_sync"
}

// ToDomain converts the model to a domain CommentSyncRecord
func (m *CommentSyncModel) ToDomain() *integration.CommentSyncRecord {
	return &integration.CommentSyncRecord{
		Direction: integration.CommentDirection(m.Direction),
		CommentID: m.CommentID,
		SyncedAt:  m.SyncedAt,
	}
}

// AllModels returns every model for schema migration
func AllModels() []any {
	return []any{
		&OrderMappingModel{},
		&ProductMappingModel{},
		&RefundMappingModel{},
		&SyncStateModel{},
		&CommentSyncModel{},
	}
}
