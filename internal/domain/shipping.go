package domain

import (
	"strings"

	"github.com/shopspring/decimal"
)

// ShippingMethod — способ доставки каталога.
type ShippingMethod struct {
	ID        string
	Name      string
	OrderCost decimal.Decimal
	// Countries пустой - доставка в любую страну.
	Countries          []string
	MinimumOrderAmount *decimal.Decimal
	// Position задаёт порядок в каталоге.
	Position int
}

// ServesCountry проверяет страновое ограничение.
func (m ShippingMethod) ServesCountry(country string) bool {
	if len(m.Countries) == 0 {
		return true
	}
	country = strings.ToUpper(strings.TrimSpace(country))
	for _, c := range m.Countries {
		if strings.ToUpper(strings.TrimSpace(c)) == country {
			return true
		}
	}
	return false
}

// EligibleFor: страна подходит и сумма заказа не ниже порога.
func (m ShippingMethod) EligibleFor(country string, preShippingPrice decimal.Decimal) bool {
	if !m.ServesCountry(country) {
		return false
	}
	if m.MinimumOrderAmount != nil && preShippingPrice.LessThan(*m.MinimumOrderAmount) {
		return false
	}
	return true
}
