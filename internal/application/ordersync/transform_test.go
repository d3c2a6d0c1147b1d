package ordersync

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dropsync/backend/internal/domain/integration"
	"github.com/dropsync/backend/internal/infrastructure/shopify"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func sampleOrder() *shopify.Order {
	return &shopify.Order{
		ID:         1001,
		Name:       "#1001",
		Email:      "jo@example.com",
		Currency:   "GBP",
		TotalPrice: d("34.98"),
		Note:       "leave at door",
		LineItems: []shopify.LineItem{
			{SKU: "PB-1", Title: "Whey 1kg", Quantity: 1, Price: d("19.99")},
			{SKU: "PB-2", Title: "Creatine", Quantity: 1, Price: d("14.99")},
		},
		ShippingAddress: &shopify.Address{
			FirstName:   "Jo",
			LastName:    "Bloggs",
			Address1:    "1 High St",
			City:        "Leeds",
			Zip:         "LS1 1AA",
			CountryCode: "GB",
		},
		ShippingLines: []shopify.ShippingLine{{Title: "Standard", Code: "std", Price: d("2.99")}},
	}
}

func TestTransformOrder(t *testing.T) {
	request, err := transformOrder(sampleOrder())
	require.NoError(t, err)

	assert.Equal(t, "1001", request.ID)
	assert.Equal(t, "GBP", request.Currency)
	assert.Equal(t, "leave at door", request.Comment)
	assert.Equal(t, "std", request.TransportCode)
	assert.Equal(t, "Jo Bloggs", request.Address.Name)
	assert.Equal(t, "LS1 1AA", request.Address.PostCode)
	assert.Equal(t, "jo@example.com", request.Address.Email)

	require.Len(t, request.Products, 2)
	assert.Equal(t, "PB-1", request.Products[0].SKU)
	assert.True(t, request.Products[0].Price.Equal(d("19.99")))
}

func TestTransformOrderValidation(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*shopify.Order)
	}{
		{name: "no line items", mutate: func(o *shopify.Order) { o.LineItems = nil }},
		{name: "no shipping address", mutate: func(o *shopify.Order) { o.ShippingAddress = nil }},
		{name: "missing sku", mutate: func(o *shopify.Order) { o.LineItems[0].SKU = "" }},
		{name: "zero quantity", mutate: func(o *shopify.Order) { o.LineItems[1].Quantity = 0 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			order := sampleOrder()
			tt.mutate(order)
			_, err := transformOrder(order)
			assert.ErrorIs(t, err, integration.ErrOrderInvalid)
		})
	}
}

func TestTransformOrderDistributesTotalWhenPricesZero(t *testing.T) {
	order := sampleOrder()
	order.TotalPrice = d("30.00")
	order.LineItems = []shopify.LineItem{
		{SKU: "PB-1", Title: "A", Quantity: 1, Price: decimal.Zero},
		{SKU: "PB-2", Title: "B", Quantity: 2, Price: decimal.Zero},
	}

	request, err := transformOrder(order)
	require.NoError(t, err)

	assert.True(t, request.Products[0].Price.Equal(d("10.00")),
		"got %s", request.Products[0].Price)
	assert.True(t, request.Products[1].Price.Equal(d("10.00")),
		"got %s", request.Products[1].Price)
}

func TestTransformOrderDistributionRemainderSettled(t *testing.T) {
	order := sampleOrder()
	order.TotalPrice = d("10.00")
	order.LineItems = []shopify.LineItem{
		{SKU: "PB-1", Title: "A", Quantity: 1, Price: decimal.Zero},
		{SKU: "PB-2", Title: "B", Quantity: 2, Price: decimal.Zero},
	}

	request, err := transformOrder(order)
	require.NoError(t, err)

	// 10.00 over 3 units: the rounding residual lands on the single-unit
	// line, every price stays at cent granularity, and line totals re-sum
	assert.True(t, request.Products[0].Price.Equal(d("3.32")),
		"got %s", request.Products[0].Price)
	assert.True(t, request.Products[1].Price.Equal(d("3.34")),
		"got %s", request.Products[1].Price)

	lineTotals := request.Products[0].Price.Mul(decimal.NewFromInt(1)).
		Add(request.Products[1].Price.Mul(decimal.NewFromInt(2)))
	assert.True(t, lineTotals.Equal(d("10.00")), "line totals sum to %s", lineTotals)
}

func TestTransformOrderDistributionSubCentShares(t *testing.T) {
	order := sampleOrder()
	order.TotalPrice = d("0.10")
	order.LineItems = []shopify.LineItem{
		{SKU: "PB-1", Title: "A", Quantity: 1, Price: decimal.Zero},
		{SKU: "PB-2", Title: "B", Quantity: 3, Price: decimal.Zero},
	}

	request, err := transformOrder(order)
	require.NoError(t, err)

	// 0.10 over 4 units does not divide at cent granularity per unit; the
	// unit prices must still be clean cents and the totals must still re-sum
	for i, p := range request.Products {
		assert.True(t, p.Price.Equal(p.Price.Round(2)),
			"line %d price %s is not at cent granularity", i, p.Price)
	}

	lineTotals := request.Products[0].Price.Mul(decimal.NewFromInt(1)).
		Add(request.Products[1].Price.Mul(decimal.NewFromInt(3)))
	assert.True(t, lineTotals.Equal(d("0.10")), "line totals sum to %s", lineTotals)
}

func TestTransformOrderKeepsNonZeroPrices(t *testing.T) {
	order := sampleOrder()
	order.LineItems[0].Price = decimal.Zero // one zero line is not the defect

	request, err := transformOrder(order)
	require.NoError(t, err)
	assert.True(t, request.Products[0].Price.IsZero())
	assert.True(t, request.Products[1].Price.Equal(d("14.99")))
}
