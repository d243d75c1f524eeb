package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// OrderState описывает жизненный цикл заказа магазина.
type OrderState string

const (
	// OrderStateNew - заказ создан из корзины, оплата не начата.
	OrderStateNew OrderState = "new"
	// OrderStatePending - клиент ушёл на оплату, ждём ответ провайдера.
	OrderStatePending OrderState = "pending"
	// OrderStatePaid - провайдер подтвердил оплату.
	OrderStatePaid OrderState = "paid"
	// OrderStateFailed - платёж закрыт без оплаты.
	OrderStateFailed OrderState = "failed"
	// OrderStateRejected - оплаченный заказ отклонён магазином.
	OrderStateRejected OrderState = "rejected"
	// OrderStateProcessed - заказ собран.
	OrderStateProcessed OrderState = "processed"
	// OrderStateShipped - заказ передан в доставку.
	OrderStateShipped OrderState = "shipped"
	// OrderStateCancelled - заказ отменён.
	OrderStateCancelled OrderState = "cancelled"
)

var orderTransitions = map[OrderState][]OrderState{
	OrderStateNew:       {OrderStatePending, OrderStateCancelled},
	OrderStatePending:   {OrderStatePaid, OrderStateFailed, OrderStateCancelled},
	OrderStateFailed:    {OrderStatePending, OrderStateCancelled},
	OrderStatePaid:      {OrderStateRejected, OrderStateProcessed, OrderStateCancelled},
	OrderStateProcessed: {OrderStateShipped, OrderStateCancelled},
}

// Valid проверяет, что состояние известно.
func (s OrderState) Valid() bool {
	switch s {
	case OrderStateNew, OrderStatePending, OrderStatePaid, OrderStateFailed,
		OrderStateRejected, OrderStateProcessed, OrderStateShipped, OrderStateCancelled:
		return true
	default:
		return false
	}
}

// Terminal сообщает, что из состояния нет переходов.
func (s OrderState) Terminal() bool {
	return s == OrderStateShipped || s == OrderStateCancelled || s == OrderStateRejected
}

// CanTransition проверяет переход по таблице состояний. Повтор того же состояния
// здесь не разрешается: он допустим только с комментарием и проверяется выше.
func (s OrderState) CanTransition(to OrderState) bool {
	for _, next := range orderTransitions[s] {
		if next == to {
			return true
		}
	}
	return false
}

// Notifiable сообщает, уведомляется ли клиент о переходе в это состояние.
func (s OrderState) Notifiable() bool {
	switch s {
	case OrderStatePaid, OrderStateFailed, OrderStateRejected, OrderStateShipped:
		return true
	default:
		return false
	}
}

// OrderItem — неизменяемый снимок строки корзины.
type OrderItem struct {
	ID                 string
	ProductID          string
	VariationID        string
	ProductSlug        string
	ProductName        string
	ProductDescription string
	ArticleNumber      string
	VariationName      string
	CategoryIDs        []string
	Quantity           int
	PiecePrice         decimal.Decimal
}

// Subtotal — цена строки без скидок.
func (i OrderItem) Subtotal() decimal.Decimal {
	return i.PiecePrice.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

// Line переводит строку заказа в строку расчёта.
func (i OrderItem) Line() LineItem {
	return LineItem{
		ProductID:   i.ProductID,
		VariationID: i.VariationID,
		CategoryIDs: i.CategoryIDs,
		Quantity:    i.Quantity,
		PiecePrice:  i.PiecePrice,
	}
}

// Order агрегирует состояние заказа и его позиции.
type Order struct {
	ID              string
	CartID          string
	CustomerID      string
	ShippingAddress Address
	OrderNumber     string
	// InvoiceNumber == 0 пока заказ не подтверждён.
	InvoiceNumber      int64
	CouponCode         string
	Discount           decimal.Decimal
	ShippingCost       decimal.Decimal
	ShippingMethodID   string
	AppliedDiscountIDs []string
	State              OrderState
	Items              []OrderItem
	PaymentReference   string
	Version            int64
	CreatedAt          time.Time
	UpdatedAt          time.Time
	ConfirmedAt        time.Time
}

// Confirmed сообщает, что номер счёта уже выдан.
func (o *Order) Confirmed() bool {
	return o.InvoiceNumber != 0
}

func (o Order) DiscountLines() []LineItem {
	lines := make([]LineItem, 0, len(o.Items))
	for _, item := range o.Items {
		lines = append(lines, item.Line())
	}
	return lines
}

func (o Order) Coupon() string { return o.CouponCode }

func (o Order) ShippingCountry() string { return o.ShippingAddress.Country }

// Subtotal — сумма позиций без скидок и доставки.
func (o *Order) Subtotal() decimal.Decimal {
	total := decimal.Zero
	for _, item := range o.Items {
		total = total.Add(item.Subtotal())
	}
	return total
}

// PriceWithoutShipping — сумма после скидок, не меньше нуля.
func (o *Order) PriceWithoutShipping() decimal.Decimal {
	return NonNegative(o.Subtotal().Sub(o.Discount))
}

// Total — итог к оплате.
func (o *Order) Total() decimal.Decimal {
	return o.PriceWithoutShipping().Add(o.ShippingCost)
}

// TotalItems — общее количество штук.
func (o *Order) TotalItems() int {
	total := 0
	for _, item := range o.Items {
		total += item.Quantity
	}
	return total
}

// ValidateInvariants проверяет базовые инварианты заказа и возвращает список замечаний.
func (o *Order) ValidateInvariants() []error {
	var errs []error

	if o.CustomerID == "" {
		errs = append(errs, ErrCustomerRequired)
	}
	if o.OrderNumber == "" {
		errs = append(errs, ErrOrderNumberRequired)
	}
	if len(o.Items) == 0 {
		errs = append(errs, ErrItemsRequired)
	}
	if !o.State.Valid() {
		errs = append(errs, ErrUnknownState)
	}
	for _, item := range o.Items {
		if item.Quantity <= 0 {
			errs = append(errs, ErrItemQtyInvalid)
		}
		if item.PiecePrice.IsNegative() {
			errs = append(errs, ErrItemPriceInvalid)
		}
	}

	return errs
}

var (
	_ Discountable = Order{}
	_ Shippable    = Order{}
)

// OrderStateChange — запись журнала состояний заказа. Только добавляется.
type OrderStateChange struct {
	ID         string
	OrderID    string
	State      OrderState
	Note       string
	OccurredAt time.Time
}
