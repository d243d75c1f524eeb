// Package rabbitmq публикует уведомления из outbox в RabbitMQ.
package rabbitmq

import (
	"context"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/shopcore/internal/domain"
)

const (
	DefaultExchange        = "shop.notifications"
	DefaultQueue           = "shop.notifications"
	DefaultDeadLetterQueue = "shop.notifications.dlq"

	// bindingKey собирает все события с префиксом notification.
	bindingKey     = "notification.#"
	publishTimeout = 5 * time.Second
)

// Channel — часть *amqp.Channel, нужная паблишеру.
type Channel interface {
	ExchangeDeclare(name, kind string, durable, autoDelete, internal, noWait bool, args amqp.Table) error
	QueueDeclare(name string, durable, autoDelete, exclusive, noWait bool, args amqp.Table) (amqp.Queue, error)
	QueueBind(name, key, exchange string, noWait bool, args amqp.Table) error
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

// Config описывает топологию брокера.
type Config struct {
	URL             string
	Exchange        string
	Queue           string
	DeadLetterQueue string
}

func (c Config) withDefaults() Config {
	if c.Exchange == "" {
		c.Exchange = DefaultExchange
	}
	if c.Queue == "" {
		c.Queue = DefaultQueue
	}
	if c.DeadLetterQueue == "" {
		c.DeadLetterQueue = DefaultDeadLetterQueue
	}
	return c
}

func (c Config) deadLetterExchange() string {
	return c.DeadLetterQueue + "_exchange"
}

// Publisher реализует domain.OutboxPublisher поверх AMQP.
type Publisher struct {
	ch     Channel
	conn   *amqp.Connection
	cfg    Config
	logger *log.Entry
	now    func() time.Time
}

// Dial подключается к брокеру и объявляет топологию.
func Dial(cfg Config, logger *log.Entry) (*Publisher, error) {
	conn, err := amqp.Dial(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("dial rabbitmq: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("open rabbitmq channel: %w", err)
	}

	p := NewPublisher(ch, cfg, logger)
	p.conn = conn
	if err := p.Setup(); err != nil {
		_ = p.Close()
		return nil, err
	}
	return p, nil
}

// NewPublisher создаёт паблишер поверх открытого канала. Топологию объявляет Setup.
func NewPublisher(ch Channel, cfg Config, logger *log.Entry) *Publisher {
	if logger == nil {
		logger = log.WithField("component", "rabbitmq-publisher")
	}
	return &Publisher{
		ch:     ch,
		cfg:    cfg.withDefaults(),
		logger: logger,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// Setup объявляет exchange уведомлений, очередь с dead-letter и саму DLQ.
func (p *Publisher) Setup() error {
	dlx := p.cfg.deadLetterExchange()
	if err := p.ch.ExchangeDeclare(dlx, amqp.ExchangeDirect, true, false, false, false, nil); err != nil {
		return fmt.Errorf("declare dead letter exchange: %w", err)
	}
	if _, err := p.ch.QueueDeclare(p.cfg.DeadLetterQueue, true, false, false, false, amqp.Table{
		"x-queue-type": "classic",
	}); err != nil {
		return fmt.Errorf("declare dead letter queue: %w", err)
	}
	if err := p.ch.QueueBind(p.cfg.DeadLetterQueue, p.cfg.DeadLetterQueue, dlx, false, nil); err != nil {
		return fmt.Errorf("bind dead letter queue: %w", err)
	}

	if err := p.ch.ExchangeDeclare(p.cfg.Exchange, amqp.ExchangeTopic, true, false, false, false, nil); err != nil {
		return fmt.Errorf("declare exchange: %w", err)
	}
	if _, err := p.ch.QueueDeclare(p.cfg.Queue, true, false, false, false, amqp.Table{
		"x-dead-letter-exchange":    dlx,
		"x-dead-letter-routing-key": p.cfg.DeadLetterQueue,
	}); err != nil {
		return fmt.Errorf("declare queue: %w", err)
	}
	if err := p.ch.QueueBind(p.cfg.Queue, bindingKey, p.cfg.Exchange, false, nil); err != nil {
		return fmt.Errorf("bind queue: %w", err)
	}

	p.logger.WithFields(log.Fields{
		"exchange": p.cfg.Exchange,
		"queue":    p.cfg.Queue,
		"dlq":      p.cfg.DeadLetterQueue,
	}).Info("rabbitmq topology declared")
	return nil
}

// Publish отправляет сообщение outbox с routing key, равным типу события.
func (p *Publisher) Publish(event domain.OutboxMessage) error {
	if p == nil || p.ch == nil {
		return fmt.Errorf("rabbitmq publisher is not initialized")
	}

	ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
	defer cancel()

	msg := amqp.Publishing{
		MessageId:    event.ID,
		Type:         event.EventType,
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    p.now(),
		Body:         event.Payload,
		Headers: amqp.Table{
			"x-aggregate-type": event.AggregateType,
			"x-aggregate-id":   event.AggregateID,
		},
	}
	if err := p.ch.PublishWithContext(ctx, p.cfg.Exchange, event.EventType, false, false, msg); err != nil {
		p.logger.WithError(err).WithFields(log.Fields{
			"event_type": event.EventType,
			"message_id": event.ID,
		}).Error("failed to publish to rabbitmq")
		return fmt.Errorf("%w: %w", domain.ErrOutboxPublish, err)
	}
	return nil
}

// Close закрывает канал и соединение.
func (p *Publisher) Close() error {
	var err error
	if p.ch != nil {
		err = p.ch.Close()
	}
	if p.conn != nil {
		if cerr := p.conn.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}
	return err
}

var _ domain.OutboxPublisher = (*Publisher)(nil)
