package powerbody

import (
	"time"

	"github.com/shopspring/decimal"
)

// ---------------------------------------------------------------------------
// Product types
// ---------------------------------------------------------------------------

// ProductInfo is the full detail record for one product
type ProductInfo struct {
	ProductID    int64           `json:"product_id"`
	SKU          string          `json:"sku"`
	Name         string          `json:"name"`
	Description  string          `json:"description,omitempty"`
	Price        decimal.Decimal `json:"price"`
	Currency     string          `json:"currency,omitempty"`
	Qty          int             `json:"qty"`
	Category     string          `json:"category,omitempty"`
	Manufacturer string          `json:"manufacturer,omitempty"`
	// Servings is the per-container serving count, zero when unknown
	Servings int `json:"servings,omitempty"`
	// PricePerServing is supplied pre-computed for some products
	PricePerServing decimal.Decimal `json:"price_per_serving,omitempty"`
	EAN             string          `json:"ean,omitempty"`
	Weight          decimal.Decimal `json:"weight,omitempty"`
}

// ProductSummary is one row of the full product listing
type ProductSummary struct {
	ProductID int64           `json:"product_id"`
	SKU       string          `json:"sku"`
	Name      string          `json:"name"`
	Price     decimal.Decimal `json:"price"`
	Qty       int             `json:"qty"`
}

// ---------------------------------------------------------------------------
// Order types
// ---------------------------------------------------------------------------

// OrderRequest is the payload for createOrder/updateOrder
type OrderRequest struct {
	// ID is the caller-side order identifier, echoed back by the API
	ID            string          `json:"id"`
	Currency      string          `json:"currency_code,omitempty"`
	TransportCode string          `json:"transport_code,omitempty"`
	Comment       string          `json:"comment,omitempty"`
	Total         decimal.Decimal `json:"total,omitempty"`
	Address       OrderAddress    `json:"address"`
	Products      []OrderProduct  `json:"products"`
}

// OrderAddress is the delivery address of an order
type OrderAddress struct {
	Name        string `json:"name"`
	Address1    string `json:"address1"`
	Address2    string `json:"address2,omitempty"`
	City        string `json:"city"`
	PostCode    string `json:"post_code"`
	CountryCode string `json:"country_code"`
	Phone       string `json:"phone,omitempty"`
	Email       string `json:"email,omitempty"`
}

// OrderProduct is one order line
type OrderProduct struct {
	SKU   string          `json:"sku"`
	Name  string          `json:"name,omitempty"`
	Qty   int             `json:"qty"`
	Price decimal.Decimal `json:"price"`
}

// OrderStatus is the per-order poll result
type OrderStatus struct {
	ID             string `json:"id"`
	Status         string `json:"status"`
	TrackingNumber string `json:"tracking_number,omitempty"`
	TrackingURL    string `json:"tracking_url,omitempty"`
	Carrier        string `json:"carrier,omitempty"`
	DispatchDate   string `json:"dispatch_date,omitempty"`
}

// Order status values reported by the supplier
const (
	OrderStatusPending    = "pending"
	OrderStatusProcessing = "processing"
	OrderStatusDispatched = "dispatched"
	OrderStatusCancelled  = "cancelled"
)

// Dispatched reports whether the order has shipped and carries tracking
func (s *OrderStatus) Dispatched() bool {
	return s.Status == OrderStatusDispatched && s.TrackingNumber != ""
}

// RefundInfo is one supplier-side refund
type RefundInfo struct {
	ID      string          `json:"id"`
	OrderID string          `json:"order_id"`
	Amount  decimal.Decimal `json:"amount"`
	Reason  string          `json:"reason,omitempty"`
	Date    time.Time       `json:"date"`
}

// CommentInfo is one supplier-side order comment
type CommentInfo struct {
	ID      string    `json:"id"`
	OrderID string    `json:"order_id"`
	Text    string    `json:"text"`
	Date    time.Time `json:"date"`
}
