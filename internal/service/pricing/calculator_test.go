package pricing_test

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vladislavdragonenkov/shopcore/internal/domain"
	"github.com/vladislavdragonenkov/shopcore/internal/service/discount"
	"github.com/vladislavdragonenkov/shopcore/internal/service/pricing"
	"github.com/vladislavdragonenkov/shopcore/internal/service/shipping"
	"github.com/vladislavdragonenkov/shopcore/internal/storage/memory"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func newCalculator(t *testing.T, discounts []domain.Discount, methods []domain.ShippingMethod) *pricing.Calculator {
	t.Helper()

	discountRepo := memory.NewDiscountRepository()
	for _, d := range discounts {
		require.NoError(t, discountRepo.Create(d))
	}
	shippingRepo := memory.NewShippingMethodRepository()
	for _, m := range methods {
		require.NoError(t, shippingRepo.Create(m))
	}
	return pricing.NewCalculator(
		discount.NewResolver(discountRepo),
		shipping.NewSelector(shippingRepo, nil),
		domain.NewVAT(dec("19")),
	)
}

func TestCalculator_Quote(t *testing.T) {
	amount := dec("2.00")
	threshold := dec("20.00")
	calc := newCalculator(t,
		[]domain.Discount{{ID: "two-off", OrderAmount: &amount}},
		[]domain.ShippingMethod{
			{ID: "standard", OrderCost: dec("4.95"), Position: 1},
			{ID: "free", OrderCost: decimal.Zero, MinimumOrderAmount: &threshold, Position: 2},
		},
	)

	tests := []struct {
		name         string
		qty          int
		wantShipping string
		wantTotal    string
		wantVAT      string
	}{
		{name: "paid shipping", qty: 1, wantShipping: "4.95", wantTotal: "13.45", wantVAT: "2.56"},
		// 21.00 до скидки, но 19.00 после: порог считается от цены со скидкой.
		{name: "threshold after discount", qty: 2, wantShipping: "4.95", wantTotal: "23.95", wantVAT: "4.55"},
		{name: "free shipping", qty: 3, wantShipping: "0.00", wantTotal: "29.50", wantVAT: "5.61"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			basket := domain.Basket{
				Lines: []domain.LineItem{{ProductID: "mug", Quantity: tt.qty, PiecePrice: dec("10.50")}},
			}
			q, err := calc.Quote(basket, "NL")
			require.NoError(t, err)

			if !q.ShippingCost.Equal(dec(tt.wantShipping)) {
				t.Fatalf("shipping = %s, want %s", q.ShippingCost, tt.wantShipping)
			}
			if !q.Total.Equal(dec(tt.wantTotal)) {
				t.Fatalf("total = %s, want %s", q.Total, tt.wantTotal)
			}
			if !q.VAT.Equal(dec(tt.wantVAT)) {
				t.Fatalf("vat = %s, want %s", q.VAT, tt.wantVAT)
			}
			assert.True(t, q.TotalInclVAT.Equal(q.Total.Add(q.VAT)))
			assert.Equal(t, []string{"two-off"}, q.AppliedIDs())
		})
	}
}

func TestCalculator_QuoteWithoutCountry(t *testing.T) {
	calc := newCalculator(t, nil, nil)

	q, err := calc.Quote(domain.Basket{Lines: []domain.LineItem{{ProductID: "mug", Quantity: 2, PiecePrice: dec("5.00")}}}, "")
	require.NoError(t, err)
	assert.Nil(t, q.ShippingMethod)
	assert.True(t, q.ShippingCost.IsZero())
	assert.True(t, q.Total.Equal(dec("10.00")))
}

func TestCalculator_NoShippingForCountry(t *testing.T) {
	calc := newCalculator(t, nil, []domain.ShippingMethod{{ID: "nl", OrderCost: dec("1.00"), Countries: []string{"NL"}}})

	_, err := calc.Quote(domain.Basket{Lines: []domain.LineItem{{ProductID: "mug", Quantity: 1, PiecePrice: dec("5.00")}}}, "JP")
	assert.True(t, errors.Is(err, domain.ErrNoEligibleShippingMethod))
}
