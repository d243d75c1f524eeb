package order

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/shopcore/internal/domain"
	"github.com/vladislavdragonenkov/shopcore/internal/service/numbering"
)

// PrepareConfirm проверяет, что заказ ещё можно подтвердить. Ничего не меняет:
// окончательная проверка выполняется в Confirm.
func (s *Service) PrepareConfirm(ctx context.Context, orderID string) (err error) {
	_, span := s.startSpan(ctx, "order.PrepareConfirm", orderID)
	defer func() { endSpan(span, err) }()

	order, err := s.orders.Get(orderID)
	if err != nil {
		return err
	}
	if order.Confirmed() {
		return &domain.AlreadyConfirmedError{OrderID: order.ID, InvoiceNumber: order.InvoiceNumber}
	}
	return s.ledger.CheckLines(order.DiscountLines())
}

// Confirm фиксирует заказ: списывает остатки, учитывает использование скидок,
// выдаёт номер счёта и удаляет корзину. Подтверждение выполняется ровно один раз.
// Состояние заказа не меняется.
func (s *Service) Confirm(ctx context.Context, orderID string) (order domain.Order, err error) {
	started := time.Now()
	_, span := s.startSpan(ctx, "order.Confirm", orderID)
	defer func() {
		s.metrics.ObserveOperation("confirm", started)
		endSpan(span, err)
	}()

	confirmMu.Lock()
	defer confirmMu.Unlock()

	logger := s.logger.WithField("order_id", orderID)

	order, err = s.orders.Get(orderID)
	if err != nil {
		return domain.Order{}, err
	}
	if order.Confirmed() {
		logger.WithField("invoice_number", order.InvoiceNumber).Error("order confirmed twice")
		s.metrics.RecordConfirmFailure("already_confirmed")
		return domain.Order{}, &domain.AlreadyConfirmedError{OrderID: order.ID, InvoiceNumber: order.InvoiceNumber}
	}

	if exhausted := s.exhaustedDiscounts(order.AppliedDiscountIDs); len(exhausted) > 0 {
		s.metrics.RecordConfirmFailure("discount_exhausted")
		return domain.Order{}, &domain.DiscountExhaustedError{DiscountIDs: exhausted}
	}

	lines := order.DiscountLines()
	if err := s.ledger.Consume(lines); err != nil {
		s.metrics.RecordConfirmFailure("stock")
		return domain.Order{}, err
	}

	used := make([]string, 0, len(order.AppliedDiscountIDs))
	rollback := func(cause error, reason string) error {
		s.metrics.RecordConfirmFailure(reason)
		if compErr := s.compensate(lines, used); compErr != nil {
			logger.WithError(compErr).Error("confirm compensation failed")
		}
		return cause
	}

	for _, id := range order.AppliedDiscountIDs {
		if err := s.discounts.IncrementUsage(id); err != nil {
			if errors.Is(err, domain.ErrDiscountUseLimitReached) {
				return domain.Order{}, rollback(&domain.DiscountExhaustedError{DiscountIDs: []string{id}}, "discount_exhausted")
			}
			return domain.Order{}, rollback(fmt.Errorf("increment discount %s usage: %w", id, err), "discount")
		}
		used = append(used, id)
	}

	invoice, err := s.numbers.NextInvoiceNumber()
	if err != nil {
		return domain.Order{}, rollback(err, "invoice")
	}

	order.InvoiceNumber = invoice
	order.ConfirmedAt = s.clock.Now()
	if err := s.save(&order); err != nil {
		if errors.Is(err, domain.ErrInvoiceNumberTaken) {
			conflict := &domain.ConcurrentNumberingConflictError{
				Sequence: numbering.InvoiceSequence,
				Number:   strconv.FormatInt(invoice, 10),
				Err:      err,
			}
			return domain.Order{}, rollback(conflict, "numbering_conflict")
		}
		return domain.Order{}, rollback(fmt.Errorf("save confirmed order: %w", err), "save")
	}

	if err := s.carts.Delete(order.CartID); err != nil && !errors.Is(err, domain.ErrCartNotFound) {
		logger.WithError(err).WithField("cart_id", order.CartID).Warn("failed to delete cart of confirmed order")
	}

	s.metrics.RecordOrderConfirmed()
	logger.WithFields(log.Fields{
		"invoice_number": invoice,
		"total":          order.Total().StringFixed(domain.MoneyPlaces),
	}).Info("order confirmed")
	return order, nil
}

// exhaustedDiscounts возвращает скидки заказа, лимит которых уже выбран.
func (s *Service) exhaustedDiscounts(ids []string) []string {
	var exhausted []string
	for _, id := range ids {
		d, err := s.discounts.Get(id)
		if err != nil {
			if !errors.Is(err, domain.ErrDiscountNotFound) {
				s.logger.WithError(err).WithField("discount_id", id).Warn("failed to load discount")
			}
			exhausted = append(exhausted, id)
			continue
		}
		if d.Exhausted() {
			exhausted = append(exhausted, id)
		}
	}
	return exhausted
}

// compensate возвращает остатки и откатывает счётчики скидок.
func (s *Service) compensate(lines []domain.LineItem, discountIDs []string) error {
	var errs []error
	if err := s.ledger.Release(lines); err != nil {
		errs = append(errs, err)
	}
	for _, id := range discountIDs {
		if err := s.discounts.DecrementUsage(id); err != nil {
			errs = append(errs, fmt.Errorf("decrement discount %s usage: %w", id, err))
		}
	}
	return errors.Join(errs...)
}
