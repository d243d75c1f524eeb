package domain

import "github.com/shopspring/decimal"

// LineItem — строка, по которой считаются скидки и остатки.
type LineItem struct {
	ProductID   string
	VariationID string
	CategoryIDs []string
	Quantity    int
	PiecePrice  decimal.Decimal
}

func (l LineItem) Ref() UnitRef {
	return UnitRef{ProductID: l.ProductID, VariationID: l.VariationID}
}

func (l LineItem) Subtotal() decimal.Decimal {
	return l.PiecePrice.Mul(decimal.NewFromInt(int64(l.Quantity)))
}

// Discountable — то, к чему применяются правила скидок (корзина или заказ).
type Discountable interface {
	DiscountLines() []LineItem
	Coupon() string
}

// Shippable — то, что доставляется в страну назначения.
type Shippable interface {
	ShippingCountry() string
}

// Basket — снимок корзины для расчёта цены.
type Basket struct {
	Lines      []LineItem
	CouponCode string
	Country    string
}

func (b Basket) DiscountLines() []LineItem { return b.Lines }
func (b Basket) Coupon() string { return b.CouponCode }
func (b Basket) ShippingCountry() string { return b.Country }

// SubtotalOf суммирует строки без скидок.
func SubtotalOf(lines []LineItem) decimal.Decimal {
	total := decimal.Zero
	for _, line := range lines {
		total = total.Add(line.Subtotal())
	}
	return total
}

var (
	_ Discountable = Basket{}
	_ Shippable    = Basket{}
)
