package productsync

import (
	"regexp"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/dropsync/backend/internal/infrastructure/powerbody"
	"github.com/dropsync/backend/internal/infrastructure/shopify"
)

var whitespaceRun = regexp.MustCompile(`\s+`)

// transformer applies the deterministic catalog transform pipeline: price
// markup, title cleanup, status routing for zero-inventory products.
type transformer struct {
	// markupFactor is 1 + markup/100, applied to every outgoing price
	markupFactor decimal.Decimal
	// titlePatterns are removed from product titles
	titlePatterns []*regexp.Regexp
	// publishZeroInventory publishes zero-stock products instead of keeping
	// them as drafts
	publishZeroInventory bool
}

func newTransformer(markupPercent decimal.Decimal, patterns []string, publishZeroInventory bool) (*transformer, error) {
	compiled := make([]*regexp.Regexp, 0, len(patterns))
	for _, pattern := range patterns {
		re, err := regexp.Compile(pattern)
		if err != nil {
			return nil, err
		}
		compiled = append(compiled, re)
	}

	hundred := decimal.NewFromInt(100)
	return &transformer{
		markupFactor:         markupPercent.Div(hundred).Add(decimal.NewFromInt(1)),
		titlePatterns:        compiled,
		publishZeroInventory: publishZeroInventory,
	}, nil
}

// price applies the configured markup, rounded to cents
func (t *transformer) price(base decimal.Decimal) decimal.Decimal {
	return base.Mul(t.markupFactor).Round(2)
}

// title removes the configured patterns and collapses leftover whitespace
func (t *transformer) title(title string) string {
	for _, re := range t.titlePatterns {
		title = re.ReplaceAllString(title, "")
	}
	return strings.TrimSpace(whitespaceRun.ReplaceAllString(title, " "))
}

// pricePerServing returns the marked-up per-serving price, or zero when the
// product has no serving information.
func (t *transformer) pricePerServing(info *powerbody.ProductInfo) decimal.Decimal {
	if info.PricePerServing.IsPositive() {
		return t.price(info.PricePerServing)
	}
	if info.Servings > 0 {
		return t.price(info.Price).Div(decimal.NewFromInt(int64(info.Servings))).Round(2)
	}
	return decimal.Zero
}

// product builds the Shopify product for one supplier record
func (t *transformer) product(info *powerbody.ProductInfo) shopify.Product {
	status := shopify.ProductStatusActive
	if info.Qty <= 0 && !t.publishZeroInventory {
		status = shopify.ProductStatusDraft
	}

	return shopify.Product{
		Title:       t.title(info.Name),
		BodyHTML:    info.Description,
		Vendor:      info.Manufacturer,
		ProductType: info.Category,
		Status:      status,
		Variants: []shopify.Variant{
			{
				SKU:                 info.SKU,
				Price:               t.price(info.Price),
				InventoryQuantity:   info.Qty,
				InventoryManagement: "shopify",
			},
		},
	}
}
