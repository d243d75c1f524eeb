// Package shipping выбирает самый дешёвый подходящий способ доставки.
package shipping

import (
	"fmt"

	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/shopcore/internal/domain"
)

// Selection — выбранный способ доставки и его стоимость.
type Selection struct {
	Method domain.ShippingMethod
	Cost   decimal.Decimal
}

// Selector выбирает доставку по каталогу. Результат не кешируется: каталог и
// сумма заказа могут измениться между вызовами.
type Selector struct {
	methods domain.ShippingMethodRepository
	logger  *log.Entry
}

// NewSelector создаёт селектор доставки.
func NewSelector(methods domain.ShippingMethodRepository, logger *log.Entry) *Selector {
	if logger == nil {
		logger = log.WithField("component", "shipping-selector")
	}
	return &Selector{methods: methods, logger: logger}
}

// SelectCheapest возвращает самый дешёвый способ, доступный для страны и суммы
// заказа без доставки. При равной цене побеждает способ, стоящий раньше в каталоге.
func (s *Selector) SelectCheapest(country string, preShippingPrice decimal.Decimal) (Selection, error) {
	methods, err := s.methods.List()
	if err != nil {
		return Selection{}, fmt.Errorf("list shipping methods: %w", err)
	}

	var (
		best  domain.ShippingMethod
		found bool
	)
	for _, m := range methods {
		if !m.EligibleFor(country, preShippingPrice) {
			continue
		}
		if !found || m.OrderCost.LessThan(best.OrderCost) {
			best = m
			found = true
		}
	}

	if !found {
		s.logger.WithFields(log.Fields{
			"country": country,
			"price":   preShippingPrice.StringFixed(domain.MoneyPlaces),
		}).Warn("no eligible shipping method")
		return Selection{}, &domain.NoEligibleShippingMethodError{Destination: country}
	}
	return Selection{Method: best, Cost: domain.RoundMoney(best.OrderCost)}, nil
}
