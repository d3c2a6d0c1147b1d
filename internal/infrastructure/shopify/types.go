package shopify

import (
	"time"

	"github.com/shopspring/decimal"
)

// ---------------------------------------------------------------------------
// Order types
// ---------------------------------------------------------------------------

// Order is a Shopify Admin REST order
type Order struct {
	ID                int64           `json:"id"`
	Name              string          `json:"name"`
	Email             string          `json:"email,omitempty"`
	Tags              string          `json:"tags"`
	FinancialStatus   string          `json:"financial_status,omitempty"`
	FulfillmentStatus string          `json:"fulfillment_status,omitempty"`
	Currency          string          `json:"currency,omitempty"`
	TotalPrice        decimal.Decimal `json:"total_price"`
	CreatedAt         time.Time       `json:"created_at"`
	Note              string          `json:"note,omitempty"`
	LineItems         []LineItem      `json:"line_items"`
	ShippingAddress   *Address        `json:"shipping_address,omitempty"`
	ShippingLines     []ShippingLine  `json:"shipping_lines,omitempty"`
}

// HasTag reports whether the order carries the given tag
func (o *Order) HasTag(tag string) bool {
	for _, t := range splitTags(o.Tags) {
		if t == tag {
			return true
		}
	}
	return false
}

// LineItem is a single order line
type LineItem struct {
	ID        int64           `json:"id"`
	ProductID int64           `json:"product_id,omitempty"`
	VariantID int64           `json:"variant_id,omitempty"`
	SKU       string          `json:"sku"`
	Title     string          `json:"title"`
	Quantity  int             `json:"quantity"`
	Price     decimal.Decimal `json:"price"`
}

// Address is a Shopify postal address
type Address struct {
	FirstName   string `json:"first_name,omitempty"`
	LastName    string `json:"last_name,omitempty"`
	Company     string `json:"company,omitempty"`
	Address1    string `json:"address1,omitempty"`
	Address2    string `json:"address2,omitempty"`
	City        string `json:"city,omitempty"`
	Province    string `json:"province,omitempty"`
	Country     string `json:"country,omitempty"`
	CountryCode string `json:"country_code,omitempty"`
	Zip         string `json:"zip,omitempty"`
	Phone       string `json:"phone,omitempty"`
}

// ShippingLine is a selected shipping method on an order
type ShippingLine struct {
	Title string          `json:"title"`
	Code  string          `json:"code,omitempty"`
	Price decimal.Decimal `json:"price"`
}

// Fulfillment is a Shopify order fulfillment
type Fulfillment struct {
	ID              int64     `json:"id"`
	OrderID         int64     `json:"order_id,omitempty"`
	Status          string    `json:"status,omitempty"`
	TrackingNumber  string    `json:"tracking_number,omitempty"`
	TrackingCompany string    `json:"tracking_company,omitempty"`
	CreatedAt       time.Time `json:"created_at,omitempty"`
	NotifyCustomer  bool      `json:"notify_customer,omitempty"`
}

// Refund is a Shopify order refund
type Refund struct {
	ID           int64         `json:"id"`
	OrderID      int64         `json:"order_id,omitempty"`
	Note         string        `json:"note,omitempty"`
	CreatedAt    time.Time     `json:"created_at,omitempty"`
	Transactions []Transaction `json:"transactions,omitempty"`
}

// Transaction is a payment transaction attached to a refund
type Transaction struct {
	Kind     string          `json:"kind"`
	Amount   decimal.Decimal `json:"amount"`
	Gateway  string          `json:"gateway,omitempty"`
	ParentID int64           `json:"parent_id,omitempty"`
}

// OrderComment is a comment stored on an order as a metafield. Comments
// forwarded from the supplier land here; merchant comments travel the other
// way.
type OrderComment struct {
	// ID is the Shopify metafield ID, used for dedup bookkeeping
	ID int64
	// Key is the metafield key carrying the source comment ID
	Key string
	// Message is the comment text
	Message string
	// CreatedAt is when the comment was stored
	CreatedAt time.Time
}

// ---------------------------------------------------------------------------
// Product types
// ---------------------------------------------------------------------------

// Product status values
const (
	ProductStatusActive = "active"
	ProductStatusDraft  = "draft"
)

// Product is a Shopify Admin REST product
type Product struct {
	ID          int64     `json:"id,omitempty"`
	Title       string    `json:"title"`
	BodyHTML    string    `json:"body_html,omitempty"`
	Vendor      string    `json:"vendor,omitempty"`
	ProductType string    `json:"product_type,omitempty"`
	Status      string    `json:"status,omitempty"`
	Tags        string    `json:"tags,omitempty"`
	Variants    []Variant `json:"variants,omitempty"`
}

// Variant is a product variant
type Variant struct {
	ID                  int64           `json:"id,omitempty"`
	ProductID           int64           `json:"product_id,omitempty"`
	SKU                 string          `json:"sku"`
	Price               decimal.Decimal `json:"price"`
	InventoryQuantity   int             `json:"inventory_quantity,omitempty"`
	InventoryManagement string          `json:"inventory_management,omitempty"`
}

// Metafield is a Shopify metafield
type Metafield struct {
	ID        int64     `json:"id,omitempty"`
	Namespace string    `json:"namespace"`
	Key       string    `json:"key"`
	Value     string    `json:"value"`
	Type      string    `json:"type"`
	CreatedAt time.Time `json:"created_at,omitempty"`
}

// CustomCollection is a Shopify custom collection
type CustomCollection struct {
	ID    int64  `json:"id,omitempty"`
	Title string `json:"title"`
}

// Collect assigns a product to a custom collection
type Collect struct {
	ID           int64 `json:"id,omitempty"`
	ProductID    int64 `json:"product_id"`
	CollectionID int64 `json:"collection_id"`
}

// ---------------------------------------------------------------------------
// Bulk operation results
// ---------------------------------------------------------------------------

// BulkFailure records one failed item of a bulk operation
type BulkFailure struct {
	// SKU identifies the failed product
	SKU string
	// Err is the failure cause
	Err error
}

// BulkResult collects per-item outcomes of a chunked bulk operation. One
// item's failure never aborts the remaining items.
type BulkResult struct {
	// Succeeded holds the products as returned by the platform
	Succeeded []Product
	// Failed holds the per-item failures
	Failed []BulkFailure
}
