// Package pricing собирает итоговую цену корзины или заказа: скидки, доставка, НДС.
package pricing

import (
	"strings"

	"github.com/shopspring/decimal"

	"github.com/vladislavdragonenkov/shopcore/internal/domain"
	"github.com/vladislavdragonenkov/shopcore/internal/service/discount"
	"github.com/vladislavdragonenkov/shopcore/internal/service/shipping"
)

// Quote — расчёт цены. Суммы округлены до копеек.
type Quote struct {
	Subtotal             decimal.Decimal
	Discount             decimal.Decimal
	PriceWithoutShipping decimal.Decimal
	// ShippingMethod пуст, если страна доставки не известна.
	ShippingMethod *domain.ShippingMethod
	ShippingCost   decimal.Decimal
	Total          decimal.Decimal
	VAT            decimal.Decimal
	TotalInclVAT   decimal.Decimal
	Applied        []domain.Discount
	LineDiscounts  []decimal.Decimal
}

// AppliedIDs возвращает идентификаторы применённых скидок.
func (q Quote) AppliedIDs() []string {
	ids := make([]string, 0, len(q.Applied))
	for _, d := range q.Applied {
		ids = append(ids, d.ID)
	}
	return ids
}

// Calculator считает цену. Используется и для превью корзины, и для пересчёта заказа.
type Calculator struct {
	discounts *discount.Resolver
	shipping  *shipping.Selector
	vat       domain.VAT
}

// NewCalculator создаёт калькулятор цены.
func NewCalculator(discounts *discount.Resolver, selector *shipping.Selector, vat domain.VAT) *Calculator {
	return &Calculator{discounts: discounts, shipping: selector, vat: vat}
}

// Quote считает цену. Для пустой страны доставка не выбирается (анонимное превью).
func (c *Calculator) Quote(basket domain.Discountable, country string) (Quote, error) {
	resolved, err := c.discounts.Resolve(basket)
	if err != nil {
		return Quote{}, err
	}

	q := Quote{
		Subtotal:             domain.RoundMoney(resolved.Subtotal),
		Discount:             resolved.Discount,
		PriceWithoutShipping: domain.RoundMoney(domain.NonNegative(resolved.Subtotal.Sub(resolved.Discount))),
		ShippingCost:         decimal.Zero,
		Applied:              resolved.Applied,
		LineDiscounts:        resolved.LineDiscounts,
	}

	if strings.TrimSpace(country) != "" {
		sel, err := c.shipping.SelectCheapest(country, q.PriceWithoutShipping)
		if err != nil {
			return Quote{}, err
		}
		method := sel.Method
		q.ShippingMethod = &method
		q.ShippingCost = sel.Cost
	}

	q.Total = q.PriceWithoutShipping.Add(q.ShippingCost)
	q.VAT = c.vat.Amount(q.Total)
	q.TotalInclVAT = q.Total.Add(q.VAT)
	return q, nil
}

// VAT возвращает ставку НДС магазина.
func (c *Calculator) VAT() domain.VAT {
	return c.vat
}
