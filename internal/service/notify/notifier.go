// Package notify доставляет уведомления о смене состояния заказа через
// transactional outbox или в лог.
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/shopcore/internal/domain"
)

const (
	// AggregateOrder - тип агрегата для outbox.
	AggregateOrder = "order"
	// EventPrefix - префикс типа события уведомления.
	EventPrefix = "notification."
	// EventManagerPaymentFailed - письмо менеджерам о неудачной оплате.
	EventManagerPaymentFailed = EventPrefix + "manager.order_failed"
)

// Message — полезная нагрузка уведомления в outbox.
type Message struct {
	Kind        domain.NotificationKind `json:"kind"`
	OrderID     string                  `json:"order_id"`
	OrderNumber string                  `json:"order_number"`
	CustomerID  string                  `json:"customer_id"`
	To          []string                `json:"to"`
	Language    string                  `json:"language"`
	Subject     string                  `json:"subject"`
	State       domain.OrderState       `json:"state"`
	Note        string                  `json:"note,omitempty"`
	Total       string                  `json:"total"`
	OccurredAt  time.Time               `json:"occurred_at"`
}

// OutboxNotifier кладёт уведомления в outbox; публикует их outbox worker.
type OutboxNotifier struct {
	outbox   domain.OutboxRepository
	managers []string
	logger   *log.Entry
}

// NewOutboxNotifier создаёт notifier. managers получают копию уведомлений о неудачной оплате.
func NewOutboxNotifier(outbox domain.OutboxRepository, managers []string, logger *log.Entry) *OutboxNotifier {
	if logger == nil {
		logger = log.WithField("component", "outbox-notifier")
	}
	cleaned := make([]string, 0, len(managers))
	for _, m := range managers {
		if m = strings.TrimSpace(m); m != "" {
			cleaned = append(cleaned, m)
		}
	}
	return &OutboxNotifier{outbox: outbox, managers: cleaned, logger: logger}
}

// Send ставит уведомление клиенту в outbox, для failed - ещё и менеджерам.
func (n *OutboxNotifier) Send(ctx context.Context, kind domain.NotificationKind, order domain.Order, change domain.OrderStateChange, customer domain.Customer) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	tag := MatchLanguage(customer.Language)
	msg := Message{
		Kind:        kind,
		OrderID:     order.ID,
		OrderNumber: order.OrderNumber,
		CustomerID:  customer.ID,
		Language:    tag.String(),
		Subject:     Subject(tag, kind, order.OrderNumber),
		State:       change.State,
		Note:        change.Note,
		Total:       order.Total().StringFixed(domain.MoneyPlaces),
		OccurredAt:  change.OccurredAt,
	}
	if customer.Email != "" {
		msg.To = []string{customer.Email}
	}

	if len(msg.To) > 0 {
		if err := n.enqueue(order.ID, EventPrefix+string(kind), msg); err != nil {
			return err
		}
	} else {
		n.logger.WithField("order_id", order.ID).Warn("customer has no email, skipping customer notification")
	}

	if kind == domain.NotificationOrderFailed && len(n.managers) > 0 {
		manager := msg
		manager.To = n.managers
		manager.Language = "en"
		manager.Subject = ManagerSubject(order.OrderNumber, customer.Email)
		if err := n.enqueue(order.ID, EventManagerPaymentFailed, manager); err != nil {
			return err
		}
	}
	return nil
}

func (n *OutboxNotifier) enqueue(orderID, eventType string, msg Message) error {
	payload, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal notification: %w", err)
	}
	stored, err := n.outbox.Enqueue(domain.OutboxMessage{
		AggregateType: AggregateOrder,
		AggregateID:   orderID,
		EventType:     eventType,
		Payload:       payload,
	})
	if err != nil {
		return fmt.Errorf("enqueue notification: %w", err)
	}
	n.logger.WithFields(log.Fields{
		"order_id":   orderID,
		"event_type": eventType,
		"outbox_id":  stored.ID,
	}).Debug("notification enqueued")
	return nil
}

// LogNotifier пишет уведомления в лог. Для запуска без брокера.
type LogNotifier struct {
	logger *log.Entry
}

// NewLogNotifier создаёт notifier, который только логирует.
func NewLogNotifier(logger *log.Entry) *LogNotifier {
	if logger == nil {
		logger = log.WithField("component", "log-notifier")
	}
	return &LogNotifier{logger: logger}
}

func (n *LogNotifier) Send(_ context.Context, kind domain.NotificationKind, order domain.Order, change domain.OrderStateChange, customer domain.Customer) error {
	tag := MatchLanguage(customer.Language)
	n.logger.WithFields(log.Fields{
		"order_id":    order.ID,
		"customer_id": customer.ID,
		"email":       customer.Email,
		"state":       change.State,
		"subject":     Subject(tag, kind, order.OrderNumber),
	}).Info("notification")
	return nil
}

var (
	_ domain.Notifier = (*OutboxNotifier)(nil)
	_ domain.Notifier = (*LogNotifier)(nil)
)
