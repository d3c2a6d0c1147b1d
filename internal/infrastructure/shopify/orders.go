package shopify

import (
	"context"
	"fmt"
	"net/http"
	"strings"
)

// commentNamespace is the metafield namespace holding forwarded comments
const commentNamespace = "pb_comments"

// ordersPageSize is the page size for order listing; 250 is the API maximum
const ordersPageSize = 250

// ListOpenOrders returns open, unfulfilled orders that do not carry
// excludeTag, following pagination cursors until no next page remains.
func (c *Client) ListOpenOrders(ctx context.Context, excludeTag string) ([]Order, error) {
	path := fmt.Sprintf("/orders.json?status=open&fulfillment_status=unfulfilled&limit=%d", ordersPageSize)

	var orders []Order
	for path != "" {
		resp, err := c.Request(ctx, http.MethodGet, path, nil)
		if err != nil {
			return nil, err
		}

		var page struct {
			Orders []Order `json:"orders"`
		}
		if err := resp.Decode(&page); err != nil {
			return nil, err
		}

		for _, order := range page.Orders {
			if excludeTag != "" && order.HasTag(excludeTag) {
				continue
			}
			orders = append(orders, order)
		}

		path = resp.NextPageURL
	}

	return orders, nil
}

// GetOrder fetches a single order by ID
func (c *Client) GetOrder(ctx context.Context, orderID int64) (*Order, error) {
	resp, err := c.Request(ctx, http.MethodGet, fmt.Sprintf("/orders/%d.json", orderID), nil)
	if err != nil {
		return nil, err
	}

	var body struct {
		Order Order `json:"order"`
	}
	if err := resp.Decode(&body); err != nil {
		return nil, err
	}
	return &body.Order, nil
}

// TagOrder appends a tag to an order so later runs skip it
func (c *Client) TagOrder(ctx context.Context, order *Order, tag string) error {
	tags := splitTags(order.Tags)
	for _, t := range tags {
		if t == tag {
			return nil
		}
	}
	tags = append(tags, tag)

	payload := map[string]any{
		"order": map[string]any{
			"id":   order.ID,
			"tags": strings.Join(tags, ", "),
		},
	}
	_, err := c.Request(ctx, http.MethodPut, fmt.Sprintf("/orders/%d.json", order.ID), payload)
	if err != nil {
		return fmt.Errorf("tag order %d: %w", order.ID, err)
	}
	order.Tags = strings.Join(tags, ", ")
	return nil
}

// CreateFulfillment creates a fulfillment with tracking details on an order
func (c *Client) CreateFulfillment(ctx context.Context, orderID int64, trackingNumber, trackingCompany string) (*Fulfillment, error) {
	payload := map[string]any{
		"fulfillment": map[string]any{
			"tracking_number":  trackingNumber,
			"tracking_company": trackingCompany,
			"notify_customer":  true,
		},
	}
	resp, err := c.Request(ctx, http.MethodPost, fmt.Sprintf("/orders/%d/fulfillments.json", orderID), payload)
	if err != nil {
		return nil, fmt.Errorf("create fulfillment for order %d: %w", orderID, err)
	}

	var body struct {
		Fulfillment Fulfillment `json:"fulfillment"`
	}
	if err := resp.Decode(&body); err != nil {
		return nil, err
	}
	return &body.Fulfillment, nil
}

// ListFulfillments returns the fulfillments of an order
func (c *Client) ListFulfillments(ctx context.Context, orderID int64) ([]Fulfillment, error) {
	resp, err := c.Request(ctx, http.MethodGet, fmt.Sprintf("/orders/%d/fulfillments.json", orderID), nil)
	if err != nil {
		return nil, err
	}

	var body struct {
		Fulfillments []Fulfillment `json:"fulfillments"`
	}
	if err := resp.Decode(&body); err != nil {
		return nil, err
	}
	return body.Fulfillments, nil
}

// UpdateFulfillmentTracking replaces the tracking details of a fulfillment
func (c *Client) UpdateFulfillmentTracking(ctx context.Context, fulfillmentID int64, trackingNumber, trackingCompany string) error {
	payload := map[string]any{
		"fulfillment": map[string]any{
			"tracking_info": map[string]any{
				"number":  trackingNumber,
				"company": trackingCompany,
			},
			"notify_customer": true,
		},
	}
	_, err := c.Request(ctx, http.MethodPost, fmt.Sprintf("/fulfillments/%d/update_tracking.json", fulfillmentID), payload)
	if err != nil {
		return fmt.Errorf("update tracking on fulfillment %d: %w", fulfillmentID, err)
	}
	return nil
}

// CreateRefund creates a refund on an order
func (c *Client) CreateRefund(ctx context.Context, orderID int64, refund *Refund) (*Refund, error) {
	payload := map[string]any{
		"refund": refund,
	}
	resp, err := c.Request(ctx, http.MethodPost, fmt.Sprintf("/orders/%d/refunds.json", orderID), payload)
	if err != nil {
		return nil, fmt.Errorf("create refund for order %d: %w", orderID, err)
	}

	var body struct {
		Refund Refund `json:"refund"`
	}
	if err := resp.Decode(&body); err != nil {
		return nil, err
	}
	return &body.Refund, nil
}

// ListOrderComments returns the comments stored on an order
func (c *Client) ListOrderComments(ctx context.Context, orderID int64) ([]OrderComment, error) {
	path := fmt.Sprintf("/orders/%d/metafields.json?namespace=%s", orderID, commentNamespace)
	resp, err := c.Request(ctx, http.MethodGet, path, nil)
	if err != nil {
		return nil, err
	}

	var body struct {
		Metafields []Metafield `json:"metafields"`
	}
	if err := resp.Decode(&body); err != nil {
		return nil, err
	}

	comments := make([]OrderComment, 0, len(body.Metafields))
	for _, mf := range body.Metafields {
		comments = append(comments, OrderComment{
			ID:        mf.ID,
			Key:       mf.Key,
			Message:   mf.Value,
			CreatedAt: mf.CreatedAt,
		})
	}
	return comments, nil
}

// AddOrderComment stores a comment on an order, keyed by the source comment
// ID so a repeated send overwrites rather than duplicates.
func (c *Client) AddOrderComment(ctx context.Context, orderID int64, sourceCommentID, message string) error {
	payload := map[string]any{
		"metafield": Metafield{
			Namespace: commentNamespace,
			Key:       "c_" + sourceCommentID,
			Value:     message,
			Type:      "multi_line_text_field",
		},
	}
	_, err := c.Request(ctx, http.MethodPost, fmt.Sprintf("/orders/%d/metafields.json", orderID), payload)
	if err != nil {
		return fmt.Errorf("add comment to order %d: %w", orderID, err)
	}
	return nil
}

// splitTags splits a Shopify comma-separated tag string
func splitTags(tags string) []string {
	if strings.TrimSpace(tags) == "" {
		return nil
	}
	parts := strings.Split(tags, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
