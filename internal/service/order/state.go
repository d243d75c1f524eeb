package order

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/oklog/ulid/v2"
	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"

	"github.com/vladislavdragonenkov/shopcore/internal/domain"
)

// SetState переводит заказ в новое состояние по таблице переходов. Повторная
// установка того же состояния допустима только с комментарием.
func (s *Service) SetState(ctx context.Context, orderID string, state domain.OrderState, note string) (order domain.Order, err error) {
	ctx, span := s.startSpan(ctx, "order.SetState", orderID)
	defer func() { endSpan(span, err) }()

	order, err = s.orders.Get(orderID)
	if err != nil {
		return domain.Order{}, err
	}
	return s.transition(ctx, order, state, note)
}

// MarkPaid обрабатывает подтверждение оплаты: pending -> paid и подтверждение заказа.
func (s *Service) MarkPaid(ctx context.Context, orderID, paymentReference string) (order domain.Order, err error) {
	ctx, span := s.startSpan(ctx, "order.MarkPaid", orderID)
	defer func() { endSpan(span, err) }()

	order, err = s.expectPending(orderID, domain.OrderStatePaid)
	if err != nil {
		return domain.Order{}, err
	}
	if order.PaymentReference == "" {
		order.PaymentReference = paymentReference
	}

	order, err = s.transition(ctx, order, domain.OrderStatePaid, "")
	if err != nil {
		return domain.Order{}, err
	}

	confirmed, err := s.Confirm(ctx, order.ID)
	switch {
	case errors.Is(err, domain.ErrAlreadyConfirmed):
		s.logger.WithField("order_id", order.ID).Warn("paid order was already confirmed")
		return order, nil
	case err != nil:
		return order, fmt.Errorf("confirm paid order: %w", err)
	}
	return confirmed, nil
}

// MarkClosed обрабатывает закрытие платежа без оплаты: pending -> failed.
func (s *Service) MarkClosed(ctx context.Context, orderID string) (order domain.Order, err error) {
	ctx, span := s.startSpan(ctx, "order.MarkClosed", orderID)
	defer func() { endSpan(span, err) }()

	order, err = s.expectPending(orderID, domain.OrderStateFailed)
	if err != nil {
		return domain.Order{}, err
	}
	return s.transition(ctx, order, domain.OrderStateFailed, "")
}

// History возвращает журнал состояний заказа в хронологическом порядке.
func (s *Service) History(orderID string) ([]domain.OrderStateChange, error) {
	return s.states.List(orderID)
}

// LatestState возвращает последнюю запись журнала.
func (s *Service) LatestState(orderID string) (domain.OrderStateChange, error) {
	return s.states.Latest(orderID)
}

func (s *Service) expectPending(orderID string, to domain.OrderState) (domain.Order, error) {
	order, err := s.orders.Get(orderID)
	if err != nil {
		return domain.Order{}, err
	}
	if order.State != domain.OrderStatePending {
		s.logger.WithFields(log.Fields{
			"order_id": orderID,
			"state":    order.State,
			"target":   to,
		}).Error("payment event for order that is not pending")
		return domain.Order{}, &domain.InvalidTransitionError{OrderID: orderID, From: order.State, To: to}
	}
	return order, nil
}

// transition проверяет переход, сохраняет заказ, пишет журнал и уведомляет клиента.
func (s *Service) transition(ctx context.Context, order domain.Order, state domain.OrderState, note string) (domain.Order, error) {
	if !state.Valid() {
		return domain.Order{}, domain.ErrUnknownState
	}
	note = s.sanitizer.Sanitize(strings.TrimSpace(note))

	from := order.State
	if from == state {
		if note == "" {
			return domain.Order{}, domain.ErrNoteRequired
		}
	} else if !from.CanTransition(state) {
		return domain.Order{}, &domain.InvalidTransitionError{OrderID: order.ID, From: from, To: state}
	}

	order.State = state
	if err := s.save(&order); err != nil {
		return domain.Order{}, fmt.Errorf("save order state: %w", err)
	}

	change, err := s.recordChange(order.ID, state, note)
	if err != nil {
		// Без записи в журнале переход не считается состоявшимся.
		s.revertState(&order, from)
		return domain.Order{}, err
	}
	s.metrics.RecordStateTransition(string(from), string(state))
	s.logger.WithFields(log.Fields{
		"order_id": order.ID,
		"from":     from,
		"to":       state,
	}).Info("order state changed")

	if state.Notifiable() {
		s.notify(ctx, order, change)
	}
	return order, nil
}

// revertState возвращает заказу прежнее состояние после неудачной записи журнала.
func (s *Service) revertState(order *domain.Order, from domain.OrderState) {
	order.State = from
	if err := s.save(order); err != nil {
		s.logger.WithError(err).WithFields(log.Fields{
			"order_id": order.ID,
			"state":    from,
		}).Error("failed to revert order state")
	}
}

func (s *Service) appendChange(orderID string, state domain.OrderState, note string) error {
	_, err := s.recordChange(orderID, state, note)
	return err
}

func (s *Service) recordChange(orderID string, state domain.OrderState, note string) (domain.OrderStateChange, error) {
	change := domain.OrderStateChange{
		ID:         ulid.Make().String(),
		OrderID:    orderID,
		State:      state,
		Note:       note,
		OccurredAt: s.clock.Now(),
	}
	if err := s.states.Append(change); err != nil {
		return domain.OrderStateChange{}, fmt.Errorf("append state change: %w", err)
	}
	return change, nil
}

// notify отправляет уведомление. Ошибки доставки не влияют на заказ.
func (s *Service) notify(ctx context.Context, order domain.Order, change domain.OrderStateChange) {
	kind, ok := domain.NotificationKindFor(change.State)
	if !ok || s.notifier == nil {
		return
	}
	ctx, span := s.startSpan(ctx, "order.notify", order.ID)
	span.SetAttributes(attribute.String("notification.kind", string(kind)))
	defer span.End()

	logger := s.logger.WithFields(log.Fields{"order_id": order.ID, "kind": kind})

	customer, err := s.customers.Get(order.CustomerID)
	if err != nil {
		logger.WithError(err).Warn("customer not loaded for notification")
		customer = domain.Customer{ID: order.CustomerID}
	}

	err = s.notifier.Send(ctx, kind, order, change, customer)
	s.metrics.RecordNotification(string(kind), err)
	if err != nil {
		span.RecordError(err)
		logger.WithError(err).Error("notification failed")
	}
}
