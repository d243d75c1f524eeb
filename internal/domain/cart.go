package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// CartItem — строка корзины. Цена фиксируется в момент добавления.
type CartItem struct {
	ID          string
	ProductID   string
	VariationID string
	Quantity    int
	PiecePrice  decimal.Decimal
	AddedAt     time.Time
}

// Ref возвращает адрес складской единицы строки.
func (i CartItem) Ref() UnitRef {
	return UnitRef{ProductID: i.ProductID, VariationID: i.VariationID}
}

// Subtotal — цена строки без скидок.
func (i CartItem) Subtotal() decimal.Decimal {
	return i.PiecePrice.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

// Cart — изменяемая корзина до оформления заказа.
type Cart struct {
	ID string
	// CustomerID пустой у анонимной корзины.
	CustomerID string
	CouponCode string
	Items      []CartItem
	Version    int64
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// Find возвращает индекс строки для пары товар/вариация или -1.
func (c *Cart) Find(productID, variationID string) int {
	for i, item := range c.Items {
		if item.ProductID == productID && item.VariationID == variationID {
			return i
		}
	}
	return -1
}

// QuantityOf суммирует количество единицы во всех строках корзины.
func (c *Cart) QuantityOf(ref UnitRef) int {
	total := 0
	for _, item := range c.Items {
		if item.Ref() == ref {
			total += item.Quantity
		}
	}
	return total
}

// TotalItems — общее количество штук в корзине.
func (c *Cart) TotalItems() int {
	total := 0
	for _, item := range c.Items {
		total += item.Quantity
	}
	return total
}

// Subtotal — сумма корзины без скидок и доставки.
func (c *Cart) Subtotal() decimal.Decimal {
	total := decimal.Zero
	for _, item := range c.Items {
		total = total.Add(item.Subtotal())
	}
	return total
}
