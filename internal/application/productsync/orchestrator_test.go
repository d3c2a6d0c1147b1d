package productsync

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/dropsync/backend/internal/domain/integration"
	"github.com/dropsync/backend/internal/infrastructure/powerbody"
	"github.com/dropsync/backend/internal/infrastructure/shopify"
)

// ---------------------------------------------------------------------------
// Fakes
// ---------------------------------------------------------------------------

type fakeMappings struct {
	rows       map[string]*integration.KeyMapping // keyed by SKU
	watermarks map[integration.SyncType]time.Time
	touched    []string
}

func newFakeMappings() *fakeMappings {
	return &fakeMappings{
		rows:       map[string]*integration.KeyMapping{},
		watermarks: map[integration.SyncType]time.Time{},
	}
}

func (m *fakeMappings) UpsertMapping(context.Context, integration.MappingKind, int64, string) error {
	return nil
}

func (m *fakeMappings) UpsertProductMapping(_ context.Context, localID int64, remoteID, sku string) error {
	if _, ok := m.rows[sku]; ok {
		return nil
	}
	m.rows[sku] = &integration.KeyMapping{
		Kind: integration.MappingKindProduct, LocalID: localID, RemoteID: remoteID, SKU: sku,
	}
	return nil
}

func (m *fakeMappings) LookupByLocal(context.Context, integration.MappingKind, int64) (*integration.KeyMapping, error) {
	return nil, integration.ErrMappingNotFound
}

func (m *fakeMappings) LookupByRemote(context.Context, integration.MappingKind, string) (*integration.KeyMapping, error) {
	return nil, integration.ErrMappingNotFound
}

func (m *fakeMappings) LookupProductBySKU(_ context.Context, sku string) (*integration.KeyMapping, error) {
	if row, ok := m.rows[sku]; ok {
		return row, nil
	}
	return nil, integration.ErrMappingNotFound
}

func (m *fakeMappings) TouchProductMapping(_ context.Context, sku string, _ time.Time) error {
	m.touched = append(m.touched, sku)
	return nil
}

func (m *fakeMappings) GetWatermark(_ context.Context, syncType integration.SyncType) (*integration.SyncWatermark, error) {
	return &integration.SyncWatermark{Type: syncType, LastSync: time.Now().Add(-24 * time.Hour)}, nil
}

func (m *fakeMappings) SetWatermark(_ context.Context, syncType integration.SyncType, lastSync time.Time) error {
	m.watermarks[syncType] = lastSync
	return nil
}

func (m *fakeMappings) MarkCommentSynced(context.Context, integration.CommentDirection, string) error {
	return nil
}

func (m *fakeMappings) IsCommentSynced(context.Context, integration.CommentDirection, string) (bool, error) {
	return false, nil
}

type fakeCatalog struct {
	list  []powerbody.ProductSummary
	infos map[int64]*powerbody.ProductInfo
}

func (c *fakeCatalog) GetProductList(context.Context) ([]powerbody.ProductSummary, error) {
	return c.list, nil
}

func (c *fakeCatalog) GetProductInfo(_ context.Context, productID int64) (*powerbody.ProductInfo, error) {
	if info, ok := c.infos[productID]; ok {
		return info, nil
	}
	return nil, integration.ErrProductNotFound
}

type fakeShopCatalog struct {
	created     []shopify.Product
	updated     []shopify.Product
	failSKU     string
	metafields  []string
	collections []string
	assigned    []string
	nextID      int64
}

func (s *fakeShopCatalog) bulk(products []shopify.Product, sink *[]shopify.Product) *shopify.BulkResult {
	result := &shopify.BulkResult{}
	for _, p := range products {
		sku := p.Variants[0].SKU
		if sku == s.failSKU {
			result.Failed = append(result.Failed, shopify.BulkFailure{
				SKU: sku, Err: errors.New("rejected"),
			})
			continue
		}
		if p.ID == 0 {
			s.nextID++
			p.ID = 5000 + s.nextID
		}
		*sink = append(*sink, p)
		result.Succeeded = append(result.Succeeded, p)
	}
	return result
}

func (s *fakeShopCatalog) CreateProducts(_ context.Context, products []shopify.Product, chunkSize int) *shopify.BulkResult {
	return s.bulk(products, &s.created)
}

func (s *fakeShopCatalog) UpdateProducts(_ context.Context, products []shopify.Product, chunkSize int) *shopify.BulkResult {
	return s.bulk(products, &s.updated)
}

func (s *fakeShopCatalog) SetProductMetafield(_ context.Context, productID int64, metafield shopify.Metafield) error {
	s.metafields = append(s.metafields, fmt.Sprintf("%d:%s=%s", productID, metafield.Key, metafield.Value))
	return nil
}

func (s *fakeShopCatalog) EnsureCollection(_ context.Context, title string) (*shopify.CustomCollection, error) {
	s.collections = append(s.collections, title)
	return &shopify.CustomCollection{ID: int64(100 + len(s.collections)), Title: title}, nil
}

func (s *fakeShopCatalog) AddProductToCollection(_ context.Context, productID, collectionID int64) error {
	s.assigned = append(s.assigned, fmt.Sprintf("%d->%d", productID, collectionID))
	return nil
}

func catalogWith(products ...*powerbody.ProductInfo) *fakeCatalog {
	c := &fakeCatalog{infos: map[int64]*powerbody.ProductInfo{}}
	for _, p := range products {
		c.list = append(c.list, powerbody.ProductSummary{
			ProductID: p.ProductID, SKU: p.SKU, Name: p.Name, Price: p.Price, Qty: p.Qty,
		})
		c.infos[p.ProductID] = p
	}
	return c
}

func pbProduct(id int64, sku, category string) *powerbody.ProductInfo {
	return &powerbody.ProductInfo{
		ProductID: id, SKU: sku, Name: "Product " + sku,
		Price: d("10.00"), Qty: 5, Category: category, Servings: 20,
	}
}

func newTestOrchestrator(t *testing.T, supplier SupplierCatalog, shop ShopCatalog, mappings integration.MappingStore, cfg Config) *Orchestrator {
	t.Helper()
	if cfg.MarkupPercent == "" {
		cfg.MarkupPercent = "22"
	}
	orch, err := New(supplier, shop, mappings, cfg, zap.NewNop())
	require.NoError(t, err)
	return orch
}

// ---------------------------------------------------------------------------
// Tests
// ---------------------------------------------------------------------------

func TestRunCreatesAndMapsNewProducts(t *testing.T) {
	supplier := catalogWith(
		pbProduct(1, "PB-1", "Protein"),
		pbProduct(2, "PB-2", "Protein"),
	)
	shop := &fakeShopCatalog{}
	mappings := newFakeMappings()

	report, err := newTestOrchestrator(t, supplier, shop, mappings, Config{}).Run(context.Background())
	require.NoError(t, err)

	assert.Len(t, shop.created, 2)
	assert.Empty(t, shop.updated)
	assert.Equal(t, 2, report.Succeeded)
	assert.Equal(t, 0, report.ExitCode())

	mapping, err := mappings.LookupProductBySKU(context.Background(), "PB-1")
	require.NoError(t, err)
	assert.Equal(t, int64(1), mapping.LocalID)
	assert.NotEmpty(t, mapping.RemoteID)
	assert.ElementsMatch(t, []string{"PB-1", "PB-2"}, mappings.touched)

	// 10.00 at 22% markup, 20 servings
	require.Len(t, shop.metafields, 2)
	assert.Contains(t, shop.metafields[0], "price_per_serving=0.61")

	assert.Equal(t, []string{"Protein"}, shop.collections, "shared category ensured once")
	assert.Len(t, shop.assigned, 2)

	assert.False(t, mappings.watermarks[integration.SyncTypeProduct].IsZero())
}

func TestRunUpdatesMappedProducts(t *testing.T) {
	supplier := catalogWith(pbProduct(1, "PB-1", ""))
	shop := &fakeShopCatalog{}
	mappings := newFakeMappings()
	require.NoError(t, mappings.UpsertProductMapping(context.Background(), 1, "7001", "PB-1"))

	report, err := newTestOrchestrator(t, supplier, shop, mappings, Config{}).Run(context.Background())
	require.NoError(t, err)

	assert.Empty(t, shop.created)
	require.Len(t, shop.updated, 1)
	assert.Equal(t, int64(7001), shop.updated[0].ID, "update addresses the mapped product")
	assert.Equal(t, 1, report.Succeeded)
}

func TestRunResumesFromStartBatch(t *testing.T) {
	supplier := catalogWith(
		pbProduct(1, "PB-1", ""), pbProduct(2, "PB-2", ""),
		pbProduct(3, "PB-3", ""), pbProduct(4, "PB-4", ""),
	)
	shop := &fakeShopCatalog{}
	mappings := newFakeMappings()

	cfg := Config{BatchSize: 2, StartBatch: 1}
	report, err := newTestOrchestrator(t, supplier, shop, mappings, cfg).Run(context.Background())
	require.NoError(t, err)

	require.Len(t, shop.created, 2)
	skus := []string{shop.created[0].Variants[0].SKU, shop.created[1].Variants[0].SKU}
	assert.ElementsMatch(t, []string{"PB-3", "PB-4"}, skus)
	assert.Equal(t, 2, report.Succeeded)
}

func TestRunContinuesPastRejectedProduct(t *testing.T) {
	supplier := catalogWith(
		pbProduct(1, "PB-1", ""), pbProduct(2, "PB-2", ""), pbProduct(3, "PB-3", ""),
	)
	shop := &fakeShopCatalog{failSKU: "PB-2"}
	mappings := newFakeMappings()

	report, err := newTestOrchestrator(t, supplier, shop, mappings, Config{}).Run(context.Background())
	require.NoError(t, err)

	assert.Len(t, shop.created, 2)
	assert.Equal(t, 2, report.Succeeded)
	assert.Equal(t, 1, report.Failed)
	assert.Equal(t, 1, report.ExitCode())

	_, err = mappings.LookupProductBySKU(context.Background(), "PB-2")
	assert.ErrorIs(t, err, integration.ErrMappingNotFound)
}

func TestRunMarkupAppliedToOutgoingPrices(t *testing.T) {
	supplier := catalogWith(pbProduct(1, "PB-1", ""))
	shop := &fakeShopCatalog{}
	mappings := newFakeMappings()

	_, err := newTestOrchestrator(t, supplier, shop, mappings, Config{MarkupPercent: "22"}).Run(context.Background())
	require.NoError(t, err)

	require.Len(t, shop.created, 1)
	price := shop.created[0].Variants[0].Price
	assert.True(t, price.Equal(d("12.20")), "got %s", price)
}

func TestNewRejectsBadMarkup(t *testing.T) {
	_, err := New(&fakeCatalog{}, &fakeShopCatalog{}, newFakeMappings(),
		Config{MarkupPercent: "abc"}, zap.NewNop())
	assert.Error(t, err)
}
