package persistence

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dropsync/backend/internal/domain/integration"
	"github.com/dropsync/backend/internal/infrastructure/persistence/models"
)

func newTestStore(t *testing.T) *GormMappingStore {
	t.Helper()
	db, err := NewDatabase(":memory:")
	require.NoError(t, err)
	require.NoError(t, db.Migrate())
	t.Cleanup(func() { _ = db.Close() })
	return NewGormMappingStore(db.DB)
}

func TestGormMappingStore_UpsertIdempotent(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	kinds := []integration.MappingKind{
		integration.MappingKindOrder,
		integration.MappingKindProduct,
		integration.MappingKindRefund,
	}

	for _, kind := range kinds {
		t.Run(kind.String(), func(t *testing.T) {
			require.NoError(t, store.UpsertMapping(ctx, kind, 1001, "450789469"))
			// Second call with the same pair must be a no-op
			require.NoError(t, store.UpsertMapping(ctx, kind, 1001, "450789469"))

			var count int64
			switch kind {
			case integration.MappingKindOrder:
				store.db.Model(&models.OrderMappingModel{}).Count(&count)
			case integration.MappingKindProduct:
				store.db.Model(&models.ProductMappingModel{}).Count(&count)
			case integration.MappingKindRefund:
				store.db.Model(&models.RefundMappingModel{}).Count(&count)
			}
			assert.Equal(t, int64(1), count)
		})
	}
}

func TestGormMappingStore_UpsertValidation(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	err := store.UpsertMapping(ctx, integration.MappingKindOrder, 0, "450789469")
	assert.ErrorIs(t, err, integration.ErrMappingInvalidLocalID)

	err = store.UpsertMapping(ctx, integration.MappingKindOrder, 1001, "")
	assert.ErrorIs(t, err, integration.ErrMappingInvalidRemoteID)

	err = store.UpsertMapping(ctx, "BOGUS", 1001, "450789469")
	assert.ErrorIs(t, err, integration.ErrMappingInvalidKind)
}

func TestGormMappingStore_Lookups(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.UpsertMapping(ctx, integration.MappingKindOrder, 1001, "450789469"))

	byLocal, err := store.LookupByLocal(ctx, integration.MappingKindOrder, 1001)
	require.NoError(t, err)
	assert.Equal(t, "450789469", byLocal.RemoteID)
	assert.Equal(t, integration.MappingKindOrder, byLocal.Kind)

	byRemote, err := store.LookupByRemote(ctx, integration.MappingKindOrder, "450789469")
	require.NoError(t, err)
	assert.Equal(t, int64(1001), byRemote.LocalID)

	// Absence is signalled, not an error value of nil
	_, err = store.LookupByLocal(ctx, integration.MappingKindOrder, 9999)
	assert.ErrorIs(t, err, integration.ErrMappingNotFound)

	_, err = store.LookupByRemote(ctx, integration.MappingKindProduct, "450789469")
	assert.ErrorIs(t, err, integration.ErrMappingNotFound)
}

func TestGormMappingStore_ProductMappingBySKU(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.UpsertProductMapping(ctx, 501, "789100", "PB-WHEY-2KG"))
	// Duplicate is a no-op
	require.NoError(t, store.UpsertProductMapping(ctx, 501, "789100", "PB-WHEY-2KG"))

	mapping, err := store.LookupProductBySKU(ctx, "PB-WHEY-2KG")
	require.NoError(t, err)
	assert.Equal(t, int64(501), mapping.LocalID)
	assert.Equal(t, "789100", mapping.RemoteID)
	assert.Nil(t, mapping.LastSyncedAt)

	syncedAt := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	require.NoError(t, store.TouchProductMapping(ctx, "PB-WHEY-2KG", syncedAt))

	mapping, err = store.LookupProductBySKU(ctx, "PB-WHEY-2KG")
	require.NoError(t, err)
	require.NotNil(t, mapping.LastSyncedAt)
	assert.True(t, mapping.LastSyncedAt.Equal(syncedAt))

	err = store.TouchProductMapping(ctx, "NO-SUCH-SKU", syncedAt)
	assert.ErrorIs(t, err, integration.ErrMappingNotFound)
}

func TestGormMappingStore_WatermarkFirstRunDefault(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	before := time.Now().Add(-firstRunWindow)
	wm, err := store.GetWatermark(ctx, integration.SyncTypeOrder)
	require.NoError(t, err)
	after := time.Now().Add(-firstRunWindow)

	assert.Equal(t, integration.SyncTypeOrder, wm.Type)
	assert.False(t, wm.LastSync.Before(before))
	assert.False(t, wm.LastSync.After(after))
}

func TestGormMappingStore_WatermarkRoundTrip(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	first := time.Date(2024, 3, 1, 6, 0, 0, 0, time.UTC)
	require.NoError(t, store.SetWatermark(ctx, integration.SyncTypeProduct, first))

	wm, err := store.GetWatermark(ctx, integration.SyncTypeProduct)
	require.NoError(t, err)
	assert.True(t, wm.LastSync.Equal(first))

	// One row per type: a later pass replaces, not appends
	second := first.Add(time.Hour)
	require.NoError(t, store.SetWatermark(ctx, integration.SyncTypeProduct, second))

	wm, err = store.GetWatermark(ctx, integration.SyncTypeProduct)
	require.NoError(t, err)
	assert.True(t, wm.LastSync.Equal(second))

	var count int64
	store.db.Model(&models.SyncStateModel{}).Count(&count)
	assert.Equal(t, int64(1), count)
}

func TestGormMappingStore_CommentSync(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	synced, err := store.IsCommentSynced(ctx, integration.CommentDirectionPowerBodyToShopify, "c-17")
	require.NoError(t, err)
	assert.False(t, synced)

	require.NoError(t, store.MarkCommentSynced(ctx, integration.CommentDirectionPowerBodyToShopify, "c-17"))
	// Duplicate mark is a no-op
	require.NoError(t, store.MarkCommentSynced(ctx, integration.CommentDirectionPowerBodyToShopify, "c-17"))

	synced, err = store.IsCommentSynced(ctx, integration.CommentDirectionPowerBodyToShopify, "c-17")
	require.NoError(t, err)
	assert.True(t, synced)

	// Same comment ID in the other direction is independent
	synced, err = store.IsCommentSynced(ctx, integration.CommentDirectionShopifyToPowerBody, "c-17")
	require.NoError(t, err)
	assert.False(t, synced)

	var count int64
	store.db.Model(&models.CommentSyncModel{}).Count(&count)
	assert.Equal(t, int64(1), count)
}
