package productsync

import (
	"context"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/dropsync/backend/internal/domain/integration"
	"github.com/dropsync/backend/internal/infrastructure/powerbody"
	"github.com/dropsync/backend/internal/infrastructure/shopify"
)

// Metafield placement for supplier-derived product data
const (
	metafieldNamespace      = "pb_products"
	metafieldKeyPerServing  = "price_per_serving"
	metafieldTypeSingleLine = "single_line_text_field"
)

// SupplierCatalog is the PowerBody surface the product orchestrator drives
type SupplierCatalog interface {
	GetProductList(ctx context.Context) ([]powerbody.ProductSummary, error)
	GetProductInfo(ctx context.Context, productID int64) (*powerbody.ProductInfo, error)
}

// ShopCatalog is the Shopify surface the product orchestrator drives
type ShopCatalog interface {
	CreateProducts(ctx context.Context, products []shopify.Product, chunkSize int) *shopify.BulkResult
	UpdateProducts(ctx context.Context, products []shopify.Product, chunkSize int) *shopify.BulkResult
	SetProductMetafield(ctx context.Context, productID int64, metafield shopify.Metafield) error
	EnsureCollection(ctx context.Context, title string) (*shopify.CustomCollection, error)
	AddProductToCollection(ctx context.Context, productID, collectionID int64) error
}

// Config holds the catalog sync settings
type Config struct {
	// MarkupPercent is the price markup, e.g. "22" turns 10.00 into 12.20
	MarkupPercent string
	// TitleCleanupPatterns are regular expressions removed from titles
	TitleCleanupPatterns []string
	// BatchSize is how many products one batch processes
	BatchSize int
	// StartBatch resumes a pass from a batch index after interruption
	StartBatch int
	// ChunkSize is how many products one bulk API call carries
	ChunkSize int
	// PublishZeroInventory publishes zero-stock products instead of keeping
	// them as drafts
	PublishZeroInventory bool
}

// Orchestrator drives catalog sync from the supplier to the shop. Products
// are never dead-lettered: a failed product is counted and retried naturally
// on the next pass.
type Orchestrator struct {
	supplier SupplierCatalog
	shop     ShopCatalog
	mappings integration.MappingStore
	config   Config
	trans    *transformer
	logger   *zap.Logger

	nowFunc func() time.Time
}

// New creates a product sync orchestrator. It fails fast on an unparseable
// markup or title pattern rather than discovering it mid-pass.
func New(
	supplier SupplierCatalog,
	shop ShopCatalog,
	mappings integration.MappingStore,
	config Config,
	logger *zap.Logger,
) (*Orchestrator, error) {
	if config.BatchSize <= 0 {
		config.BatchSize = 100
	}
	if config.ChunkSize <= 0 {
		config.ChunkSize = 5
	}
	if config.MarkupPercent == "" {
		config.MarkupPercent = "0"
	}

	markup, err := decimal.NewFromString(config.MarkupPercent)
	if err != nil {
		return nil, err
	}
	trans, err := newTransformer(markup, config.TitleCleanupPatterns, config.PublishZeroInventory)
	if err != nil {
		return nil, err
	}

	return &Orchestrator{
		supplier: supplier,
		shop:     shop,
		mappings: mappings,
		config:   config,
		trans:    trans,
		logger:   logger.Named("productsync"),
		nowFunc:  time.Now,
	}, nil
}

// Run executes one full catalog pass in fixed-size batches
func (o *Orchestrator) Run(ctx context.Context) (*integration.RunReport, error) {
	report := integration.NewRunReport(integration.SyncTypeProduct)

	listing, err := o.supplier.GetProductList(ctx)
	if err != nil {
		return nil, err
	}
	o.logger.Info("catalog pass started",
		zap.Int("products", len(listing)),
		zap.Int("batch_size", o.config.BatchSize),
		zap.Int("start_batch", o.config.StartBatch))

	collections := map[string]int64{}
	for batch := o.config.StartBatch; batch*o.config.BatchSize < len(listing); batch++ {
		start := batch * o.config.BatchSize
		end := start + o.config.BatchSize
		if end > len(listing) {
			end = len(listing)
		}
		o.syncBatch(ctx, batch, listing[start:end], collections, report)
	}

	if err := o.mappings.SetWatermark(ctx, integration.SyncTypeProduct, o.nowFunc()); err != nil {
		o.logger.Error("set product watermark", zap.Error(err))
		report.Failed++
	}

	report.Finish()
	o.logger.Info("catalog pass finished",
		zap.Int("succeeded", report.Succeeded),
		zap.Int("skipped", report.Skipped),
		zap.Int("failed", report.Failed),
		zap.Duration("took", report.Duration()))
	return report, nil
}

// syncBatch transforms one batch and pushes it as chunked bulk calls
func (o *Orchestrator) syncBatch(ctx context.Context, batch int, summaries []powerbody.ProductSummary, collections map[string]int64, report *integration.RunReport) {
	var creates, updates []shopify.Product
	details := map[string]*powerbody.ProductInfo{}

	for _, summary := range summaries {
		info, err := o.supplier.GetProductInfo(ctx, summary.ProductID)
		if err != nil {
			o.logger.Warn("product detail fetch failed",
				zap.Int64("product_id", summary.ProductID), zap.Error(err))
			report.Failed++
			continue
		}

		product := o.trans.product(info)
		details[info.SKU] = info

		mapping, err := o.mappings.LookupProductBySKU(ctx, info.SKU)
		if err == nil {
			remoteID, parseErr := strconv.ParseInt(mapping.RemoteID, 10, 64)
			if parseErr != nil {
				o.logger.Error("product mapping with malformed remote ID",
					zap.String("sku", info.SKU), zap.String("remote_id", mapping.RemoteID))
				report.Failed++
				continue
			}
			product.ID = remoteID
			updates = append(updates, product)
			continue
		}
		creates = append(creates, product)
	}

	o.logger.Info("pushing batch",
		zap.Int("batch", batch),
		zap.Int("creates", len(creates)),
		zap.Int("updates", len(updates)))

	o.push(ctx, o.shop.CreateProducts(ctx, creates, o.config.ChunkSize), details, collections, report)
	o.push(ctx, o.shop.UpdateProducts(ctx, updates, o.config.ChunkSize), details, collections, report)
}

// push records mappings and enrichment for every product the bulk call
// accepted, and counts the ones it rejected.
func (o *Orchestrator) push(ctx context.Context, result *shopify.BulkResult, details map[string]*powerbody.ProductInfo, collections map[string]int64, report *integration.RunReport) {
	for _, failure := range result.Failed {
		o.logger.Warn("product push failed",
			zap.String("sku", failure.SKU), zap.Error(failure.Err))
		report.Failed++
	}

	for i := range result.Succeeded {
		product := &result.Succeeded[i]
		sku := ""
		if len(product.Variants) > 0 {
			sku = product.Variants[0].SKU
		}
		info, ok := details[sku]
		if !ok {
			o.logger.Warn("pushed product missing supplier detail", zap.String("sku", sku))
			report.Failed++
			continue
		}

		if err := o.mappings.UpsertProductMapping(ctx, info.ProductID,
			strconv.FormatInt(product.ID, 10), sku); err != nil {
			o.logger.Error("record product mapping", zap.String("sku", sku), zap.Error(err))
			report.Failed++
			continue
		}

		o.enrich(ctx, product, info, collections)

		if err := o.mappings.TouchProductMapping(ctx, sku, o.nowFunc()); err != nil {
			o.logger.Warn("touch product mapping", zap.String("sku", sku), zap.Error(err))
		}
		report.Succeeded++
	}
}

// enrich writes the per-serving metafield and the category collection.
// Enrichment failures are logged, not counted: the product itself synced.
func (o *Orchestrator) enrich(ctx context.Context, product *shopify.Product, info *powerbody.ProductInfo, collections map[string]int64) {
	if perServing := o.trans.pricePerServing(info); perServing.IsPositive() {
		err := o.shop.SetProductMetafield(ctx, product.ID, shopify.Metafield{
			Namespace: metafieldNamespace,
			Key:       metafieldKeyPerServing,
			Value:     perServing.StringFixed(2),
			Type:      metafieldTypeSingleLine,
		})
		if err != nil {
			o.logger.Warn("set per-serving metafield",
				zap.String("sku", info.SKU), zap.Error(err))
		}
	}

	if info.Category == "" {
		return
	}
	collectionID, ok := collections[info.Category]
	if !ok {
		collection, err := o.shop.EnsureCollection(ctx, info.Category)
		if err != nil {
			o.logger.Warn("ensure collection",
				zap.String("category", info.Category), zap.Error(err))
			return
		}
		collectionID = collection.ID
		collections[info.Category] = collectionID
	}
	if err := o.shop.AddProductToCollection(ctx, product.ID, collectionID); err != nil {
		o.logger.Warn("assign collection",
			zap.String("sku", info.SKU), zap.String("category", info.Category), zap.Error(err))
	}
}
