package payment

import (
	"context"
	"errors"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/shopcore/internal/domain"
	"github.com/vladislavdragonenkov/shopcore/internal/metrics"
	"github.com/vladislavdragonenkov/shopcore/internal/service/order"
)

// DefaultDedupTTL — сколько помнить обработанные события.
const DefaultDedupTTL = 72 * time.Hour

// OrderTransitions — переходы заказа, которые вызывают события оплаты.
type OrderTransitions interface {
	GetByNumber(orderNumber string) (domain.Order, error)
	MarkPaid(ctx context.Context, orderID, paymentReference string) (domain.Order, error)
	MarkClosed(ctx context.Context, orderID string) (domain.Order, error)
	Confirm(ctx context.Context, orderID string) (domain.Order, error)
}

// Result — исход обработки события.
type Result string

const (
	ResultPaid      Result = "paid"
	ResultClosed    Result = "closed"
	ResultIgnored   Result = "ignored"
	ResultDuplicate Result = "duplicate"
	ResultFailed    Result = "failed"
)

// Handler применяет события оплаты к заказам.
type Handler struct {
	orders    OrderTransitions
	processed domain.ProcessedEventRepository
	retry     order.RetryConfig
	ttl       time.Duration
	clock     domain.Clock
	logger    *log.Entry
	metrics   *metrics.CommerceMetrics
}

// HandlerConfig задаёт параметры обработчика.
type HandlerConfig struct {
	Retry    order.RetryConfig
	DedupTTL time.Duration
	Clock    domain.Clock
	Metrics  *metrics.CommerceMetrics
}

// NewHandler создаёт обработчик событий оплаты.
func NewHandler(orders OrderTransitions, processed domain.ProcessedEventRepository, cfg HandlerConfig, logger *log.Entry) *Handler {
	if cfg.Retry.MaxAttempts <= 0 {
		cfg.Retry = order.DefaultRetryConfig()
	}
	if cfg.DedupTTL <= 0 {
		cfg.DedupTTL = DefaultDedupTTL
	}
	if cfg.Clock == nil {
		cfg.Clock = domain.SystemClock{}
	}
	if logger == nil {
		logger = log.WithField("component", "payment-handler")
	}
	return &Handler{
		orders:    orders,
		processed: processed,
		retry:     cfg.Retry,
		ttl:       cfg.DedupTTL,
		clock:     cfg.Clock,
		logger:    logger,
		metrics:   cfg.Metrics,
	}
}

// Handle обрабатывает событие. Повтор события с тем же id пропускается.
// Несовпадение состояния заказа (не pending) возвращается как ошибка и не
// повторяется; при прочих ошибках отметка снимается, чтобы событие пришло снова.
func (h *Handler) Handle(ctx context.Context, event domain.PaymentEvent) (Result, error) {
	result, err := h.handle(ctx, event)
	h.metrics.RecordPaymentEvent(string(event.Source), string(result))
	return result, err
}

func (h *Handler) handle(ctx context.Context, event domain.PaymentEvent) (Result, error) {
	if err := event.Validate(); err != nil {
		return ResultFailed, err
	}
	logger := h.logger.WithFields(log.Fields{
		"event_id":     event.EventID,
		"source":       event.Source,
		"order_id":     event.OrderID,
		"order_number": event.OrderNumber,
	})

	if !event.Paid && !event.Closed {
		logger.Debug("payment event without final status ignored")
		return ResultIgnored, nil
	}

	key := event.DedupKey()
	if key != "" {
		fresh, err := h.processed.MarkProcessed(key, string(event.Source), h.clock.Now().Add(h.ttl))
		if err != nil {
			return ResultFailed, err
		}
		if !fresh {
			logger.Info("duplicate payment event skipped")
			return ResultDuplicate, nil
		}
	}

	result, transitioned, err := h.apply(ctx, event)
	if err != nil {
		// После перехода в paid повтор события упрётся в InvalidTransition,
		// поэтому ключ оставляем и в этом случае.
		if key != "" && !transitioned && !errors.Is(err, domain.ErrInvalidTransition) {
			if forgetErr := h.processed.Forget(key); forgetErr != nil {
				logger.WithError(forgetErr).Error("failed to release payment event key")
			}
		}
		logger.WithError(err).Error("payment event failed")
		return ResultFailed, err
	}
	logger.WithField("result", result).Info("payment event applied")
	return result, nil
}

// apply выполняет переход; transitioned сообщает, что состояние заказа уже изменено.
func (h *Handler) apply(ctx context.Context, event domain.PaymentEvent) (Result, bool, error) {
	orderID := event.OrderID
	if orderID == "" {
		o, err := h.orders.GetByNumber(event.OrderNumber)
		if err != nil {
			return ResultFailed, false, err
		}
		orderID = o.ID
	}

	if !event.Paid {
		_, err := h.orders.MarkClosed(ctx, orderID)
		return ResultClosed, false, err
	}

	paid, err := h.orders.MarkPaid(ctx, orderID, event.PaymentReference)
	if err == nil {
		return ResultPaid, true, nil
	}
	if paid.State != domain.OrderStatePaid {
		return ResultFailed, false, err
	}
	if !errors.Is(err, domain.ErrConcurrentNumberingConflict) {
		return ResultFailed, true, err
	}

	// Заказ уже оплачен, но номер счёта занят параллельным подтверждением.
	err = order.RetryOnNumberingConflict(ctx, h.retry, h.logger, func(ctx context.Context) error {
		_, err := h.orders.Confirm(ctx, orderID)
		if errors.Is(err, domain.ErrAlreadyConfirmed) {
			return nil
		}
		return err
	})
	if err != nil {
		return ResultFailed, true, err
	}
	return ResultPaid, true, nil
}
