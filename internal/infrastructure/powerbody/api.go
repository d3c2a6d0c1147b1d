package powerbody

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/dropsync/backend/internal/domain/integration"
)

// Remote method names of the dropshipping API
const (
	methodGetProductInfo = "dropshipping.getProductInfo"
	methodGetProductList = "dropshipping.getProductList"
	methodCreateOrder    = "dropshipping.createOrder"
	methodUpdateOrder    = "dropshipping.updateOrder"
	methodInsertComment  = "dropshipping.insertComment"
	methodGetOrderStatus = "dropshipping.getOrderStatus"
	methodGetRefunds     = "dropshipping.getRefundOrders"
	methodGetComments    = "dropshipping.getComments"
)

// productListCacheID is the cache entity holding the aggregate listing
const productListCacheID = "product_list"

// sinceFormat is the timestamp format the remote API expects in filters
const sinceFormat = "2006-01-02 15:04:05"

// ---------------------------------------------------------------------------
// Product reads (cache-first)
// ---------------------------------------------------------------------------

// GetProductInfo returns the full detail record for a product, served from
// cache when a fresh entry exists. A live result is cached only when it
// actually carries a product.
func (c *Client) GetProductInfo(ctx context.Context, productID int64) (*ProductInfo, error) {
	cacheID := fmt.Sprintf("product_%d", productID)

	if payload, err := c.cache.Get(ctx, cacheID); err == nil {
		var info ProductInfo
		if err := json.Unmarshal(payload, &info); err == nil {
			return &info, nil
		}
		// Undecodable entries are dropped, then treated as a miss
		_ = c.cache.Invalidate(ctx, cacheID)
	}

	raw, err := c.call(ctx, methodGetProductInfo, map[string]any{"product_id": productID})
	if err != nil {
		return nil, err
	}

	var info ProductInfo
	if err := json.Unmarshal(raw, &info); err != nil {
		return nil, fmt.Errorf("%w: product info: %v", integration.ErrInvalidResponse, err)
	}
	if info.SKU == "" {
		return nil, fmt.Errorf("%w: product %d", integration.ErrProductNotFound, productID)
	}

	if err := c.cache.Put(ctx, cacheID, raw); err != nil {
		c.logger.Warn("cache write failed", zap.String("entity", cacheID), zap.Error(err))
	}
	return &info, nil
}

// GetProductList returns the full product listing, served from cache when a
// fresh entry exists. An empty live listing is passed through but never
// cached, so a flaky upstream cannot poison a week of reads.
func (c *Client) GetProductList(ctx context.Context) ([]ProductSummary, error) {
	if payload, err := c.cache.Get(ctx, productListCacheID); err == nil {
		var products []ProductSummary
		if err := json.Unmarshal(payload, &products); err == nil {
			return products, nil
		}
		_ = c.cache.Invalidate(ctx, productListCacheID)
	}

	raw, err := c.call(ctx, methodGetProductList, map[string]any{})
	if err != nil {
		return nil, err
	}

	var products []ProductSummary
	if err := json.Unmarshal(raw, &products); err != nil {
		return nil, fmt.Errorf("%w: product list: %v", integration.ErrInvalidResponse, err)
	}

	if len(products) > 0 {
		if err := c.cache.Put(ctx, productListCacheID, raw); err != nil {
			c.logger.Warn("cache write failed",
				zap.String("entity", productListCacheID), zap.Error(err))
		}
	}
	return products, nil
}

// ---------------------------------------------------------------------------
// Order mutations (never cached)
// ---------------------------------------------------------------------------

// CreateOrder submits a new order. The returned Outcome is a domain-level
// answer, not a transport error: AlreadyExists and Failed are definitive and
// must not be retried.
func (c *Client) CreateOrder(ctx context.Context, order *OrderRequest) (integration.Outcome, error) {
	return c.mutate(ctx, methodCreateOrder, order)
}

// UpdateOrder modifies an order that was previously submitted
func (c *Client) UpdateOrder(ctx context.Context, order *OrderRequest) (integration.Outcome, error) {
	return c.mutate(ctx, methodUpdateOrder, order)
}

// InsertComment attaches a comment to a previously submitted order
func (c *Client) InsertComment(ctx context.Context, orderID, text string) (integration.Outcome, error) {
	return c.mutate(ctx, methodInsertComment, map[string]any{
		"order_id": orderID,
		"comment":  text,
	})
}

// mutationResponse is the envelope all mutating methods answer with
type mutationResponse struct {
	APIResponse string `json:"api_response"`
	Message     string `json:"message,omitempty"`
}

// mutate runs a mutating call and maps its response to an Outcome
func (c *Client) mutate(ctx context.Context, method string, params any) (integration.Outcome, error) {
	raw, err := c.call(ctx, method, params)
	if err != nil {
		return integration.OutcomeFailed, err
	}

	var resp mutationResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return integration.OutcomeFailed,
			fmt.Errorf("%w: %s response: %v", integration.ErrInvalidResponse, method, err)
	}

	outcome := mapOutcome(resp.APIResponse)
	if outcome == integration.OutcomeFailed {
		c.logger.Warn("call rejected",
			zap.String("method", method),
			zap.String("api_response", resp.APIResponse),
			zap.String("message", resp.Message))
	}
	return outcome, nil
}

// mapOutcome translates the remote status vocabulary into an Outcome
func mapOutcome(apiResponse string) integration.Outcome {
	switch strings.ToUpper(strings.TrimSpace(apiResponse)) {
	case "OK", "SUCCESS":
		return integration.OutcomeSuccess
	case "ORDER_EXISTS", "ALREADY_EXISTS":
		return integration.OutcomeAlreadyExists
	case "UPDATE_OK", "UPDATED":
		return integration.OutcomeUpdateSuccess
	default:
		return integration.OutcomeFailed
	}
}

// ---------------------------------------------------------------------------
// Polls
// ---------------------------------------------------------------------------

// GetOrderStatus polls one order for status and tracking details
func (c *Client) GetOrderStatus(ctx context.Context, orderID string) (*OrderStatus, error) {
	raw, err := c.call(ctx, methodGetOrderStatus, map[string]any{"id": orderID})
	if err != nil {
		return nil, err
	}

	var status OrderStatus
	if err := json.Unmarshal(raw, &status); err != nil {
		return nil, fmt.Errorf("%w: order status: %v", integration.ErrInvalidResponse, err)
	}
	if status.ID == "" {
		return nil, fmt.Errorf("%w: order %s", integration.ErrOrderNotFound, orderID)
	}
	return &status, nil
}

// GetRefunds returns refunds issued since the given time
func (c *Client) GetRefunds(ctx context.Context, since time.Time) ([]RefundInfo, error) {
	raw, err := c.call(ctx, methodGetRefunds, map[string]any{
		"from_date": since.UTC().Format(sinceFormat),
	})
	if err != nil {
		return nil, err
	}

	var refunds []RefundInfo
	if err := json.Unmarshal(raw, &refunds); err != nil {
		return nil, fmt.Errorf("%w: refunds: %v", integration.ErrInvalidResponse, err)
	}
	return refunds, nil
}

// GetComments returns order comments written since the given time
func (c *Client) GetComments(ctx context.Context, since time.Time) ([]CommentInfo, error) {
	raw, err := c.call(ctx, methodGetComments, map[string]any{
		"from_date": since.UTC().Format(sinceFormat),
	})
	if err != nil {
		return nil, err
	}

	var comments []CommentInfo
	if err := json.Unmarshal(raw, &comments); err != nil {
		return nil, fmt.Errorf("%w: comments: %v", integration.ErrInvalidResponse, err)
	}
	return comments, nil
}

// ---------------------------------------------------------------------------
// Cache maintenance
// ---------------------------------------------------------------------------

// RefreshProductCache drops every cached product read so the next call hits
// the live API.
func (c *Client) RefreshProductCache(ctx context.Context) error {
	if err := c.cache.InvalidateAll(ctx); err != nil {
		return fmt.Errorf("powerbody: refresh product cache: %w", err)
	}
	return nil
}
