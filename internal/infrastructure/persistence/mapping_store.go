package persistence

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/dropsync/backend/internal/domain/integration"
	"github.com/dropsync/backend/internal/infrastructure/persistence/models"
)

// firstRunWindow bounds the initial polling window when no watermark exists
const firstRunWindow = 24 * time.Hour

// GormMappingStore implements integration.MappingStore using GORM.
//
// Upserts rely on the unique indexes: a conflicting insert is dropped
// silently, which makes a lost race or a crash-replayed insert
// indistinguishable from a clean no-op. That is exactly the "already handled"
// semantics the orchestrators need.
type GormMappingStore struct {
	db      *gorm.DB
	nowFunc func() time.Time
}

// NewGormMappingStore creates a new GormMappingStore
func NewGormMappingStore(db *gorm.DB) *GormMappingStore {
	return &GormMappingStore{db: db, nowFunc: time.Now}
}

// ---------------------------------------------------------------------------
// Mapping operations
// ---------------------------------------------------------------------------

// UpsertMapping records a mapping; recording the same pair twice is a no-op
func (s *GormMappingStore) UpsertMapping(ctx context.Context, kind integration.MappingKind, localID int64, remoteID string) error {
	mapping := integration.KeyMapping{Kind: kind, LocalID: localID, RemoteID: remoteID}
	if err := mapping.Validate(); err != nil {
		return err
	}

	now := s.nowFunc()
	var model any
	switch kind {
	case integration.MappingKindOrder:
		model = &models.OrderMappingModel{LocalID: localID, RemoteID: remoteID, CreatedAt: now}
	case integration.MappingKindProduct:
		model = &models.ProductMappingModel{LocalID: localID, RemoteID: remoteID, CreatedAt: now}
	case integration.MappingKindRefund:
		model = &models.RefundMappingModel{LocalID: localID, RemoteID: remoteID, CreatedAt: now}
	default:
		return integration.ErrMappingInvalidKind
	}

	if err := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(model).Error; err != nil {
		return fmt.Errorf("upsert %s mapping: %w", kind, err)
	}
	return nil
}

// UpsertProductMapping records a product mapping together with its SKU
func (s *GormMappingStore) UpsertProductMapping(ctx context.Context, localID int64, remoteID, sku string) error {
	mapping := integration.KeyMapping{Kind: integration.MappingKindProduct, LocalID: localID, RemoteID: remoteID}
	if err := mapping.Validate(); err != nil {
		return err
	}

	model := &models.ProductMappingModel{
		LocalID:   localID,
		RemoteID:  remoteID,
		SKU:       sku,
		CreatedAt: s.nowFunc(),
	}
	if err := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(model).Error; err != nil {
		return fmt.Errorf("upsert product mapping: %w", err)
	}
	return nil
}

// LookupByLocal finds a mapping by its PowerBody-side identifier
func (s *GormMappingStore) LookupByLocal(ctx context.Context, kind integration.MappingKind, localID int64) (*integration.KeyMapping, error) {
	return s.lookup(ctx, kind, "local_id = ?", localID)
}

// LookupByRemote finds a mapping by its Shopify-side identifier
func (s *GormMappingStore) LookupByRemote(ctx context.Context, kind integration.MappingKind, remoteID string) (*integration.KeyMapping, error) {
	return s.lookup(ctx, kind, "remote_id = ?", remoteID)
}

// lookup runs a single-row query against the table for the given kind
func (s *GormMappingStore) lookup(ctx context.Context, kind integration.MappingKind, cond string, arg any) (*integration.KeyMapping, error) {
	db := s.db.WithContext(ctx)
	switch kind {
	case integration.MappingKindOrder:
		var model models.OrderMappingModel
		if err := db.Where(cond, arg).First(&model).Error; err != nil {
			return nil, translateLookupError(err)
		}
		return model.ToDomain(), nil
	case integration.MappingKindProduct:
		var model models.ProductMappingModel
		if err := db.Where(cond, arg).First(&model).Error; err != nil {
			return nil, translateLookupError(err)
		}
		return model.ToDomain(), nil
	case integration.MappingKindRefund:
		var model models.RefundMappingModel
		if err := db.Where(cond, arg).First(&model).Error; err != nil {
			return nil, translateLookupError(err)
		}
		return model.ToDomain(), nil
	default:
		return nil, integration.ErrMappingInvalidKind
	}
}

// LookupProductBySKU finds a product mapping by SKU
func (s *GormMappingStore) LookupProductBySKU(ctx context.Context, sku string) (*integration.KeyMapping, error) {
	var model models.ProductMappingModel
	if err := s.db.WithContext(ctx).Where("sku = ?", sku).First(&model).Error; err != nil {
		return nil, translateLookupError(err)
	}
	return model.ToDomain(), nil
}

// TouchProductMapping stamps last_synced on a product mapping
func (s *GormMappingStore) TouchProductMapping(ctx context.Context, sku string, syncedAt time.Time) error {
	result := s.db.WithContext(ctx).
		Model(&models.ProductMappingModel{}).
		Where("sku = ?", sku).
		Update("last_synced", syncedAt)
	if result.Error != nil {
		return fmt.Errorf("touch product mapping: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return integration.ErrMappingNotFound
	}
	return nil
}

// ---------------------------------------------------------------------------
// Watermark operations
// ---------------------------------------------------------------------------

// GetWatermark returns the watermark for a sync type. On first run, before
// any pass has completed, the window is bounded to the last 24 hours.
func (s *GormMappingStore) GetWatermark(ctx context.Context, syncType integration.SyncType) (*integration.SyncWatermark, error) {
	var model models.SyncStateModel
	err := s.db.WithContext(ctx).Where("sync_type = ?", syncType.String()).First(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return &integration.SyncWatermark{
				Type:     syncType,
				LastSync: s.nowFunc().Add(-firstRunWindow),
			}, nil
		}
		return nil, fmt.Errorf("get watermark: %w", err)
	}
	return model.ToDomain(), nil
}

// SetWatermark records the completion time of a successful full pass
func (s *GormMappingStore) SetWatermark(ctx context.Context, syncType integration.SyncType, lastSync time.Time) error {
	model := &models.SyncStateModel{SyncType: syncType.String(), LastSync: lastSync}
	if err := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "sync_type"}},
			DoUpdates: clause.AssignmentColumns([]string{"last_sync"}),
		}).
		Create(model).Error; err != nil {
		return fmt.Errorf("set watermark: %w", err)
	}
	return nil
}

// ---------------------------------------------------------------------------
// Comment sync operations
// ---------------------------------------------------------------------------

// MarkCommentSynced records a forwarded comment; duplicates are a no-op
func (s *GormMappingStore) MarkCommentSynced(ctx context.Context, direction integration.CommentDirection, commentID string) error {
	model := &models.CommentSyncModel{
		Direction: direction.String(),
		CommentID: commentID,
		SyncedAt:  s.nowFunc(),
	}
	if err := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(model).Error; err != nil {
		return fmt.Errorf("mark comment synced: %w", err)
	}
	return nil
}

// IsCommentSynced reports whether a comment was already forwarded
func (s *GormMappingStore) IsCommentSynced(ctx context.Context, direction integration.CommentDirection, commentID string) (bool, error) {
	var count int64
	if err := s.db.WithContext(ctx).
		Model(&models.CommentSyncModel{}).
		Where("direction = ? AND comment_id = ?", direction.String(), commentID).
		Count(&count).Error; err != nil {
		return false, fmt.Errorf("check comment synced: %w", err)
	}
	return count > 0, nil
}

// translateLookupError maps gorm.ErrRecordNotFound to the domain sentinel
func translateLookupError(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return integration.ErrMappingNotFound
	}
	return err
}

// Ensure GormMappingStore implements the MappingStore port
var _ integration.MappingStore = (*GormMappingStore)(nil)
