package order

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/shopcore/internal/domain"
)

// CreateFromCart оформляет заказ: сохраняет его, пересчитывает цену, проверяет
// остатки и удаляет прочие неподтверждённые заказы той же корзины. Если любой
// шаг после сохранения не прошёл, новый заказ удаляется.
func (s *Service) CreateFromCart(ctx context.Context, cartID string) (order domain.Order, err error) {
	started := time.Now()
	ctx, span := s.startSpan(ctx, "order.CreateFromCart", "")
	defer func() {
		s.metrics.ObserveOperation("create", started)
		endSpan(span, err)
	}()

	order, err = s.FromCart(ctx, cartID)
	if err != nil {
		return domain.Order{}, err
	}

	if err := s.orders.Create(order); err != nil {
		if errors.Is(err, domain.ErrOrderNumberTaken) {
			return domain.Order{}, &domain.ConcurrentNumberingConflictError{
				Sequence: s.numbers.OrderSequence(order.CreatedAt),
				Number:   order.OrderNumber,
				Err:      err,
			}
		}
		return domain.Order{}, fmt.Errorf("create order: %w", err)
	}
	logger := s.logger.WithFields(log.Fields{"order_id": order.ID, "order_number": order.OrderNumber})

	discard := func(cause error) error {
		if delErr := s.orders.Delete(order.ID); delErr != nil {
			logger.WithError(delErr).Error("failed to delete order after unsuccessful creation")
		}
		return cause
	}

	if err := s.appendChange(order.ID, domain.OrderStateNew, ""); err != nil {
		return domain.Order{}, discard(err)
	}
	order, err = s.Update(ctx, order.ID)
	if err != nil {
		return domain.Order{}, discard(err)
	}
	if err := s.PrepareConfirm(ctx, order.ID); err != nil {
		return domain.Order{}, discard(err)
	}

	s.dropStaleOrders(order)
	s.metrics.RecordOrderCreated()
	logger.Info("order created")
	return order, nil
}

// Update пересчитывает скидки и доставку. После подтверждения заказ неизменяем.
func (s *Service) Update(ctx context.Context, orderID string) (order domain.Order, err error) {
	_, span := s.startSpan(ctx, "order.Update", orderID)
	defer func() { endSpan(span, err) }()

	order, err = s.orders.Get(orderID)
	if err != nil {
		return domain.Order{}, err
	}
	if order.Confirmed() {
		return domain.Order{}, &domain.AlreadyConfirmedError{OrderID: order.ID, InvoiceNumber: order.InvoiceNumber}
	}

	quote, err := s.pricing.Quote(order, order.ShippingCountry())
	if err != nil {
		return domain.Order{}, err
	}
	order.Discount = quote.Discount
	order.ShippingCost = quote.ShippingCost
	order.ShippingMethodID = ""
	if quote.ShippingMethod != nil {
		order.ShippingMethodID = quote.ShippingMethod.ID
	}
	order.AppliedDiscountIDs = quote.AppliedIDs()

	if err := s.save(&order); err != nil {
		return domain.Order{}, fmt.Errorf("save order: %w", err)
	}
	return order, nil
}

// Checkout готовит заказ к оплате: пересчёт, проверка остатков, ссылка на
// платёж и переход в pending. Повторный checkout после неудачной оплаты
// использует ту же ссылку, если новая не передана.
func (s *Service) Checkout(ctx context.Context, orderID, paymentReference string) (order domain.Order, err error) {
	ctx, span := s.startSpan(ctx, "order.Checkout", orderID)
	defer func() { endSpan(span, err) }()

	order, err = s.Update(ctx, orderID)
	if err != nil {
		return domain.Order{}, err
	}
	if err := s.PrepareConfirm(ctx, orderID); err != nil {
		return domain.Order{}, err
	}

	switch {
	case paymentReference != "":
		order.PaymentReference = paymentReference
	case order.PaymentReference == "":
		order.PaymentReference = uuid.NewString()
	}
	return s.transition(ctx, order, domain.OrderStatePending, "")
}

// dropStaleOrders удаляет неподтверждённые заказы корзины, кроме текущего.
func (s *Service) dropStaleOrders(current domain.Order) {
	orders, err := s.orders.ListByCart(current.CartID)
	if err != nil {
		s.logger.WithError(err).WithField("cart_id", current.CartID).Warn("failed to list orders of cart")
		return
	}
	for _, o := range orders {
		if o.ID == current.ID || o.Confirmed() {
			continue
		}
		if err := s.orders.Delete(o.ID); err != nil && !errors.Is(err, domain.ErrOrderNotFound) {
			s.logger.WithError(err).WithField("order_id", o.ID).Warn("failed to delete stale order")
		}
	}
}
