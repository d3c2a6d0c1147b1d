package ordersync

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/dropsync/backend/internal/domain/integration"
	"github.com/dropsync/backend/internal/infrastructure/powerbody"
	"github.com/dropsync/backend/internal/infrastructure/shopify"
)

// forwardedCommentPrefix marks Shopify order comments that originated at the
// supplier; they must not travel back.
const forwardedCommentPrefix = "c_"

// ShopClient is the Shopify surface the order orchestrator drives
type ShopClient interface {
	ListOpenOrders(ctx context.Context, excludeTag string) ([]shopify.Order, error)
	TagOrder(ctx context.Context, order *shopify.Order, tag string) error
	CreateFulfillment(ctx context.Context, orderID int64, trackingNumber, trackingCompany string) (*shopify.Fulfillment, error)
	ListFulfillments(ctx context.Context, orderID int64) ([]shopify.Fulfillment, error)
	UpdateFulfillmentTracking(ctx context.Context, fulfillmentID int64, trackingNumber, trackingCompany string) error
	CreateRefund(ctx context.Context, orderID int64, refund *shopify.Refund) (*shopify.Refund, error)
	ListOrderComments(ctx context.Context, orderID int64) ([]shopify.OrderComment, error)
	AddOrderComment(ctx context.Context, orderID int64, sourceCommentID, message string) error
}

// SupplierClient is the PowerBody surface the order orchestrator drives
type SupplierClient interface {
	CreateOrder(ctx context.Context, order *powerbody.OrderRequest) (integration.Outcome, error)
	UpdateOrder(ctx context.Context, order *powerbody.OrderRequest) (integration.Outcome, error)
	InsertComment(ctx context.Context, orderID, text string) (integration.Outcome, error)
	GetOrderStatus(ctx context.Context, orderID string) (*powerbody.OrderStatus, error)
	GetRefunds(ctx context.Context, since time.Time) ([]powerbody.RefundInfo, error)
	GetComments(ctx context.Context, since time.Time) ([]powerbody.CommentInfo, error)
}

// Config holds the order sync settings
type Config struct {
	// SyncTag is applied to submitted Shopify orders so an order that lost
	// its mapping is still never submitted twice
	SyncTag string
	// OrderBatchFile optionally points at a pre-fetched JSON batch of orders;
	// when absent or unreadable the orchestrator pulls from the API
	OrderBatchFile string
}

// Orchestrator drives the order lifecycle between the two platforms. One
// order's failure never aborts the pass: transport exhaustion and domain
// rejections are dead-lettered and the orchestrator moves on.
type Orchestrator struct {
	shop        ShopClient
	supplier    SupplierClient
	mappings    integration.MappingStore
	deadLetters integration.DeadLetterQueue
	config      Config
	logger      *zap.Logger

	nowFunc func() time.Time
}

// New creates an order sync orchestrator
func New(
	shop ShopClient,
	supplier SupplierClient,
	mappings integration.MappingStore,
	deadLetters integration.DeadLetterQueue,
	config Config,
	logger *zap.Logger,
) *Orchestrator {
	return &Orchestrator{
		shop:        shop,
		supplier:    supplier,
		mappings:    mappings,
		deadLetters: deadLetters,
		config:      config,
		logger:      logger.Named("ordersync"),
		nowFunc:     time.Now,
	}
}

// Run executes one full order sync pass: submit new orders, poll submitted
// ones for dispatch, mirror refunds, sync comments both ways, then advance
// the watermark.
func (o *Orchestrator) Run(ctx context.Context) (*integration.RunReport, error) {
	report := integration.NewRunReport(integration.SyncTypeOrder)

	orders, err := o.candidates(ctx)
	if err != nil {
		return nil, err
	}
	o.logger.Info("order pass started", zap.Int("candidates", len(orders)))

	var mapped []int64
	for i := range orders {
		if orderID := o.syncOrder(ctx, &orders[i], report); orderID != 0 {
			mapped = append(mapped, orderID)
		}
	}

	o.syncRefunds(ctx, report)
	o.syncComments(ctx, mapped, report)

	if err := o.mappings.SetWatermark(ctx, integration.SyncTypeOrder, o.nowFunc()); err != nil {
		o.logger.Error("set order watermark", zap.Error(err))
		report.Failed++
	}

	report.Finish()
	o.logger.Info("order pass finished",
		zap.Int("succeeded", report.Succeeded),
		zap.Int("skipped", report.Skipped),
		zap.Int("dead_lettered", report.DeadLettered),
		zap.Int("failed", report.Failed),
		zap.Duration("took", report.Duration()))
	return report, nil
}

// candidates returns the orders this pass works on: the pre-fetched batch
// when configured and readable, the live listing otherwise.
func (o *Orchestrator) candidates(ctx context.Context) ([]shopify.Order, error) {
	if o.config.OrderBatchFile != "" {
		orders, err := loadOrderBatch(o.config.OrderBatchFile)
		if err == nil {
			o.logger.Info("using pre-fetched order batch",
				zap.String("file", o.config.OrderBatchFile), zap.Int("orders", len(orders)))
			return orders, nil
		}
		o.logger.Warn("order batch unusable, falling back to live listing",
			zap.String("file", o.config.OrderBatchFile), zap.Error(err))
	}
	return o.shop.ListOpenOrders(ctx, "")
}

// syncOrder advances one order through the state machine. It returns the
// Shopify order ID when the order holds a mapping afterwards, for the
// comment pass.
func (o *Orchestrator) syncOrder(ctx context.Context, order *shopify.Order, report *integration.RunReport) int64 {
	remoteID := strconv.FormatInt(order.ID, 10)

	_, err := o.mappings.LookupByRemote(ctx, integration.MappingKindOrder, remoteID)
	switch {
	case err == nil:
		o.pollStatus(ctx, order, report)
		return order.ID
	case errors.Is(err, integration.ErrMappingNotFound):
		if order.HasTag(o.config.SyncTag) {
			// Tagged but unmapped: submitted by an earlier run whose mapping
			// write was lost. Never resubmit; leave it for manual review.
			o.logger.Warn("order tagged but unmapped, skipping", zap.Int64("order_id", order.ID))
			report.Skipped++
			return 0
		}
		if o.submitOrder(ctx, order, report) {
			return order.ID
		}
		return 0
	default:
		o.logger.Error("mapping lookup failed", zap.Int64("order_id", order.ID), zap.Error(err))
		report.Failed++
		return 0
	}
}

// submitOrder transforms and creates the order at the supplier. Terminal
// failures become dead-letter records; the caller continues with the next
// order either way. Returns true when a mapping now exists.
func (o *Orchestrator) submitOrder(ctx context.Context, order *shopify.Order, report *integration.RunReport) bool {
	remoteID := strconv.FormatInt(order.ID, 10)

	request, err := transformOrder(order)
	if err != nil {
		payload, _ := json.Marshal(order)
		o.deadLetter(ctx, remoteID, payload, err.Error(), report)
		return false
	}

	payload, _ := json.Marshal(request)

	outcome, err := o.supplier.CreateOrder(ctx, request)
	if err != nil {
		// Retries are already exhausted inside the adapter
		o.deadLetter(ctx, remoteID, payload, err.Error(), report)
		return false
	}

	switch outcome {
	case integration.OutcomeSuccess, integration.OutcomeUpdateSuccess:
		report.Succeeded++
	case integration.OutcomeAlreadyExists:
		// The supplier already holds this order; record the mapping and
		// move on, this is not a failure.
		o.logger.Info("order already at supplier", zap.Int64("order_id", order.ID))
		report.Skipped++
	default:
		o.deadLetter(ctx, remoteID, payload, "rejected by supplier: "+outcome.String(), report)
		return false
	}

	if err := o.mappings.UpsertMapping(ctx, integration.MappingKindOrder, order.ID, remoteID); err != nil {
		o.logger.Error("record order mapping", zap.Int64("order_id", order.ID), zap.Error(err))
		report.Failed++
		return false
	}
	if err := o.shop.TagOrder(ctx, order, o.config.SyncTag); err != nil {
		// The mapping is durable; the tag is only a second guard
		o.logger.Warn("tag order", zap.Int64("order_id", order.ID), zap.Error(err))
	}
	return true
}

// pollStatus checks a submitted order for dispatch and pushes tracking back
func (o *Orchestrator) pollStatus(ctx context.Context, order *shopify.Order, report *integration.RunReport) {
	status, err := o.supplier.GetOrderStatus(ctx, strconv.FormatInt(order.ID, 10))
	if err != nil {
		o.logger.Warn("status poll failed", zap.Int64("order_id", order.ID), zap.Error(err))
		report.Failed++
		return
	}

	if !status.Dispatched() {
		report.Skipped++
		return
	}

	fulfillments, err := o.shop.ListFulfillments(ctx, order.ID)
	if err != nil {
		o.logger.Warn("list fulfillments failed", zap.Int64("order_id", order.ID), zap.Error(err))
		report.Failed++
		return
	}

	if len(fulfillments) == 0 {
		if _, err := o.shop.CreateFulfillment(ctx, order.ID, status.TrackingNumber, status.Carrier); err != nil {
			o.logger.Warn("create fulfillment failed", zap.Int64("order_id", order.ID), zap.Error(err))
			report.Failed++
			return
		}
	} else if fulfillments[0].TrackingNumber != status.TrackingNumber {
		if err := o.shop.UpdateFulfillmentTracking(ctx, fulfillments[0].ID, status.TrackingNumber, status.Carrier); err != nil {
			o.logger.Warn("update tracking failed", zap.Int64("order_id", order.ID), zap.Error(err))
			report.Failed++
			return
		}
	}
	report.Succeeded++
}

// syncRefunds mirrors supplier refunds issued since the refund watermark
func (o *Orchestrator) syncRefunds(ctx context.Context, report *integration.RunReport) {
	watermark, err := o.mappings.GetWatermark(ctx, integration.SyncTypeRefund)
	if err != nil {
		o.logger.Error("refund watermark", zap.Error(err))
		report.Failed++
		return
	}

	refunds, err := o.supplier.GetRefunds(ctx, watermark.LastSync)
	if err != nil {
		o.logger.Error("pull refunds", zap.Error(err))
		report.Failed++
		return
	}

	for _, refund := range refunds {
		o.syncRefund(ctx, refund, report)
	}

	if err := o.mappings.SetWatermark(ctx, integration.SyncTypeRefund, o.nowFunc()); err != nil {
		o.logger.Error("set refund watermark", zap.Error(err))
		report.Failed++
	}
}

func (o *Orchestrator) syncRefund(ctx context.Context, refund powerbody.RefundInfo, report *integration.RunReport) {
	localID, err := strconv.ParseInt(refund.ID, 10, 64)
	if err != nil {
		o.logger.Warn("refund with non-numeric ID", zap.String("refund_id", refund.ID))
		report.Failed++
		return
	}

	if _, err := o.mappings.LookupByLocal(ctx, integration.MappingKindRefund, localID); err == nil {
		report.Skipped++
		return
	} else if !errors.Is(err, integration.ErrMappingNotFound) {
		o.logger.Error("refund mapping lookup", zap.String("refund_id", refund.ID), zap.Error(err))
		report.Failed++
		return
	}

	orderID, err := strconv.ParseInt(refund.OrderID, 10, 64)
	if err != nil {
		o.logger.Warn("refund references non-numeric order", zap.String("order_id", refund.OrderID))
		report.Failed++
		return
	}

	created, err := o.shop.CreateRefund(ctx, orderID, &shopify.Refund{
		Note: refund.Reason,
		Transactions: []shopify.Transaction{
			{Kind: "refund", Amount: refund.Amount},
		},
	})
	if err != nil {
		o.logger.Warn("create refund failed",
			zap.String("refund_id", refund.ID), zap.Int64("order_id", orderID), zap.Error(err))
		report.Failed++
		return
	}

	if err := o.mappings.UpsertMapping(ctx, integration.MappingKindRefund,
		localID, strconv.FormatInt(created.ID, 10)); err != nil {
		o.logger.Error("record refund mapping", zap.String("refund_id", refund.ID), zap.Error(err))
		report.Failed++
		return
	}
	report.Succeeded++
}

// syncComments forwards order comments both ways, deduplicating through the
// comment sync records so a comment travels each direction at most once.
func (o *Orchestrator) syncComments(ctx context.Context, mappedOrders []int64, report *integration.RunReport) {
	watermark, err := o.mappings.GetWatermark(ctx, integration.SyncTypeComment)
	if err != nil {
		o.logger.Error("comment watermark", zap.Error(err))
		report.Failed++
		return
	}

	o.forwardSupplierComments(ctx, watermark.LastSync, report)
	o.forwardShopComments(ctx, mappedOrders, report)

	if err := o.mappings.SetWatermark(ctx, integration.SyncTypeComment, o.nowFunc()); err != nil {
		o.logger.Error("set comment watermark", zap.Error(err))
		report.Failed++
	}
}

func (o *Orchestrator) forwardSupplierComments(ctx context.Context, since time.Time, report *integration.RunReport) {
	comments, err := o.supplier.GetComments(ctx, since)
	if err != nil {
		o.logger.Error("pull supplier comments", zap.Error(err))
		report.Failed++
		return
	}

	for _, comment := range comments {
		synced, err := o.mappings.IsCommentSynced(ctx,
			integration.CommentDirectionPowerBodyToShopify, comment.ID)
		if err != nil {
			report.Failed++
			continue
		}
		if synced {
			report.Skipped++
			continue
		}

		orderID, err := strconv.ParseInt(comment.OrderID, 10, 64)
		if err != nil {
			o.logger.Warn("comment references non-numeric order", zap.String("order_id", comment.OrderID))
			report.Failed++
			continue
		}

		if err := o.shop.AddOrderComment(ctx, orderID, comment.ID, comment.Text); err != nil {
			o.logger.Warn("forward comment to shop failed",
				zap.String("comment_id", comment.ID), zap.Error(err))
			report.Failed++
			continue
		}
		if err := o.mappings.MarkCommentSynced(ctx,
			integration.CommentDirectionPowerBodyToShopify, comment.ID); err != nil {
			report.Failed++
			continue
		}
		report.Succeeded++
	}
}

func (o *Orchestrator) forwardShopComments(ctx context.Context, mappedOrders []int64, report *integration.RunReport) {
	for _, orderID := range mappedOrders {
		comments, err := o.shop.ListOrderComments(ctx, orderID)
		if err != nil {
			o.logger.Warn("list shop comments failed", zap.Int64("order_id", orderID), zap.Error(err))
			report.Failed++
			continue
		}

		for _, comment := range comments {
			if strings.HasPrefix(comment.Key, forwardedCommentPrefix) {
				continue
			}
			commentID := strconv.FormatInt(comment.ID, 10)

			synced, err := o.mappings.IsCommentSynced(ctx,
				integration.CommentDirectionShopifyToPowerBody, commentID)
			if err != nil {
				report.Failed++
				continue
			}
			if synced {
				report.Skipped++
				continue
			}

			outcome, err := o.supplier.InsertComment(ctx, strconv.FormatInt(orderID, 10), comment.Message)
			if err != nil || !outcome.Accepted() {
				o.logger.Warn("forward comment to supplier failed",
					zap.String("comment_id", commentID),
					zap.String("outcome", outcome.String()),
					zap.Error(err))
				report.Failed++
				continue
			}
			if err := o.mappings.MarkCommentSynced(ctx,
				integration.CommentDirectionShopifyToPowerBody, commentID); err != nil {
				report.Failed++
				continue
			}
			report.Succeeded++
		}
	}
}

// deadLetter records a terminal order failure and counts it
func (o *Orchestrator) deadLetter(ctx context.Context, entityID string, payload []byte, reason string, report *integration.RunReport) {
	o.logger.Error("order dead-lettered",
		zap.String("order_id", entityID), zap.String("reason", reason))
	if _, err := o.deadLetters.Record(ctx, entityID, payload, reason); err != nil {
		// Losing a dead letter is the one thing this queue exists to prevent
		o.logger.Error("dead letter write failed", zap.String("order_id", entityID), zap.Error(err))
		report.Failed++
		return
	}
	report.DeadLettered++
}
