package ordersync

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/dropsync/backend/internal/infrastructure/shopify"
)

// loadOrderBatch reads a pre-fetched order listing from disk. The file holds
// either a bare array of orders or the listing envelope as returned by the
// API ({"orders": [...]}).
func loadOrderBatch(path string) ([]shopify.Order, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("ordersync: read order batch: %w", err)
	}

	var orders []shopify.Order
	if err := json.Unmarshal(data, &orders); err == nil {
		return orders, nil
	}

	var envelope struct {
		Orders []shopify.Order `json:"orders"`
	}
	if err := json.Unmarshal(data, &envelope); err != nil {
		return nil, fmt.Errorf("ordersync: decode order batch: %w", err)
	}
	return envelope.Orders, nil
}
