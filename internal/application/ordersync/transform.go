package ordersync

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/dropsync/backend/internal/domain/integration"
	"github.com/dropsync/backend/internal/infrastructure/powerbody"
	"github.com/dropsync/backend/internal/infrastructure/shopify"
)

// transformOrder converts a Shopify order into a supplier order request.
// The supplier keys orders by the merchant-side identifier, so the request ID
// is the Shopify order ID.
func transformOrder(order *shopify.Order) (*powerbody.OrderRequest, error) {
	if len(order.LineItems) == 0 {
		return nil, fmt.Errorf("%w: order %d has no line items", integration.ErrOrderInvalid, order.ID)
	}
	if order.ShippingAddress == nil {
		return nil, fmt.Errorf("%w: order %d has no shipping address", integration.ErrOrderInvalid, order.ID)
	}

	products := make([]powerbody.OrderProduct, 0, len(order.LineItems))
	for _, item := range order.LineItems {
		if item.SKU == "" {
			return nil, fmt.Errorf("%w: order %d line %q has no SKU",
				integration.ErrOrderInvalid, order.ID, item.Title)
		}
		if item.Quantity <= 0 {
			return nil, fmt.Errorf("%w: order %d line %q has quantity %d",
				integration.ErrOrderInvalid, order.ID, item.SKU, item.Quantity)
		}
		products = append(products, powerbody.OrderProduct{
			SKU:   item.SKU,
			Name:  item.Title,
			Qty:   item.Quantity,
			Price: item.Price,
		})
	}

	if allPricesZero(products) && order.TotalPrice.IsPositive() {
		distributeTotal(products, order.TotalPrice)
	}

	request := &powerbody.OrderRequest{
		ID:       strconv.FormatInt(order.ID, 10),
		Currency: order.Currency,
		Comment:  order.Note,
		Total:    order.TotalPrice,
		Address:  transformAddress(order),
		Products: products,
	}
	if len(order.ShippingLines) > 0 {
		request.TransportCode = order.ShippingLines[0].Code
	}
	return request, nil
}

func transformAddress(order *shopify.Order) powerbody.OrderAddress {
	addr := order.ShippingAddress
	return powerbody.OrderAddress{
		Name:        strings.TrimSpace(addr.FirstName + " " + addr.LastName),
		Address1:    addr.Address1,
		Address2:    addr.Address2,
		City:        addr.City,
		PostCode:    addr.Zip,
		CountryCode: addr.CountryCode,
		Phone:       addr.Phone,
		Email:       order.Email,
	}
}

func allPricesZero(products []powerbody.OrderProduct) bool {
	for _, p := range products {
		if !p.Price.IsZero() {
			return false
		}
	}
	return true
}

// distributeTotal recalculates unit prices from the order total when every
// line arrives priced at zero, a data defect some upstream exports show. The
// total is spread proportionally by quantity at cent granularity: all lines
// take the rounded unit price, the last line takes its share of what is left,
// and any residual cents are settled on a line whose quantity divides them so
// the line totals re-sum to the order total.
func distributeTotal(products []powerbody.OrderProduct, total decimal.Decimal) {
	totalQty := 0
	for _, p := range products {
		totalQty += p.Qty
	}
	if totalQty == 0 {
		return
	}

	unit := total.DivRound(decimal.NewFromInt(int64(totalQty)), 2)
	allocated := decimal.Zero
	for i := range products[:len(products)-1] {
		products[i].Price = unit
		allocated = allocated.Add(unit.Mul(decimal.NewFromInt(int64(products[i].Qty))))
	}

	last := &products[len(products)-1]
	lastQty := decimal.NewFromInt(int64(last.Qty))
	last.Price = total.Sub(allocated).DivRound(lastQty, 2)

	// Rounding the last unit price can leave a sub-total slice of cents
	// unassigned (or over-assigned). Fold it into the first line whose
	// quantity divides it without breaking cent granularity.
	residual := total.Sub(allocated.Add(last.Price.Mul(lastQty)))
	if residual.IsZero() {
		return
	}
	for i := range products {
		adjust := residual.Div(decimal.NewFromInt(int64(products[i].Qty)))
		if adjust.Equal(adjust.Round(2)) {
			products[i].Price = products[i].Price.Add(adjust)
			return
		}
	}
}
