package shopify

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"
)

// interChunkPause spaces bulk chunks out to avoid bursty quota exhaustion
const interChunkPause = 500 * time.Millisecond

// CreateProduct creates a product
func (c *Client) CreateProduct(ctx context.Context, product *Product) (*Product, error) {
	resp, err := c.Request(ctx, http.MethodPost, "/products.json", map[string]any{"product": product})
	if err != nil {
		return nil, fmt.Errorf("create product %q: %w", product.Title, err)
	}

	var body struct {
		Product Product `json:"product"`
	}
	if err := resp.Decode(&body); err != nil {
		return nil, err
	}
	return &body.Product, nil
}

// UpdateProduct updates an existing product by its ID
func (c *Client) UpdateProduct(ctx context.Context, product *Product) (*Product, error) {
	if product.ID == 0 {
		return nil, fmt.Errorf("update product %q: missing product ID", product.Title)
	}

	resp, err := c.Request(ctx, http.MethodPut, fmt.Sprintf("/products/%d.json", product.ID), map[string]any{"product": product})
	if err != nil {
		return nil, fmt.Errorf("update product %d: %w", product.ID, err)
	}

	var body struct {
		Product Product `json:"product"`
	}
	if err := resp.Decode(&body); err != nil {
		return nil, err
	}
	return &body.Product, nil
}

// CreateProducts creates products in chunks of chunkSize with a pause
// between chunks. A failure on one product does not abort the rest; per-item
// outcomes are collected in the result.
func (c *Client) CreateProducts(ctx context.Context, products []Product, chunkSize int) *BulkResult {
	return c.bulk(ctx, products, chunkSize, c.CreateProduct)
}

// UpdateProducts updates products in chunks, continue-on-error
func (c *Client) UpdateProducts(ctx context.Context, products []Product, chunkSize int) *BulkResult {
	return c.bulk(ctx, products, chunkSize, c.UpdateProduct)
}

// bulk runs op over products in chunks, pausing between chunks
func (c *Client) bulk(ctx context.Context, products []Product, chunkSize int, op func(context.Context, *Product) (*Product, error)) *BulkResult {
	if chunkSize <= 0 {
		chunkSize = 5
	}

	result := &BulkResult{}
	for start := 0; start < len(products); start += chunkSize {
		if start > 0 {
			c.sleepFunc(interChunkPause)
		}

		end := start + chunkSize
		if end > len(products) {
			end = len(products)
		}

		for i := start; i < end; i++ {
			created, err := op(ctx, &products[i])
			if err != nil {
				result.Failed = append(result.Failed, BulkFailure{
					SKU: productSKU(&products[i]),
					Err: err,
				})
				continue
			}
			result.Succeeded = append(result.Succeeded, *created)
		}
	}
	return result
}

// SetProductMetafield writes a metafield on a product
func (c *Client) SetProductMetafield(ctx context.Context, productID int64, metafield Metafield) error {
	payload := map[string]any{"metafield": metafield}
	_, err := c.Request(ctx, http.MethodPost, fmt.Sprintf("/products/%d/metafields.json", productID), payload)
	if err != nil {
		return fmt.Errorf("set metafield %s.%s on product %d: %w",
			metafield.Namespace, metafield.Key, productID, err)
	}
	return nil
}

// EnsureCollection returns the custom collection with the given title,
// creating it when absent.
func (c *Client) EnsureCollection(ctx context.Context, title string) (*CustomCollection, error) {
	path := "/custom_collections.json?title=" + url.QueryEscape(title)
	resp, err := c.Request(ctx, http.MethodGet, path, nil)
	if err != nil {
		return nil, err
	}

	var listing struct {
		CustomCollections []CustomCollection `json:"custom_collections"`
	}
	if err := resp.Decode(&listing); err != nil {
		return nil, err
	}
	if len(listing.CustomCollections) > 0 {
		return &listing.CustomCollections[0], nil
	}

	payload := map[string]any{
		"custom_collection": CustomCollection{Title: title},
	}
	resp, err = c.Request(ctx, http.MethodPost, "/custom_collections.json", payload)
	if err != nil {
		return nil, fmt.Errorf("create collection %q: %w", title, err)
	}

	var created struct {
		CustomCollection CustomCollection `json:"custom_collection"`
	}
	if err := resp.Decode(&created); err != nil {
		return nil, err
	}
	return &created.CustomCollection, nil
}

// AddProductToCollection assigns a product to a custom collection
func (c *Client) AddProductToCollection(ctx context.Context, productID, collectionID int64) error {
	payload := map[string]any{
		"collect": Collect{ProductID: productID, CollectionID: collectionID},
	}
	_, err := c.Request(ctx, http.MethodPost, "/collects.json", payload)
	if err != nil {
		return fmt.Errorf("assign product %d to collection %d: %w", productID, collectionID, err)
	}
	return nil
}

// productSKU returns the first variant SKU for reporting
func productSKU(p *Product) string {
	if len(p.Variants) > 0 {
		return p.Variants[0].SKU
	}
	return ""
}
