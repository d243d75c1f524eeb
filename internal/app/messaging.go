package app

import (
	"errors"
	"fmt"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/shopcore/internal/domain"
	"github.com/vladislavdragonenkov/shopcore/internal/messaging/kafka"
	"github.com/vladislavdragonenkov/shopcore/internal/messaging/rabbitmq"
	"github.com/vladislavdragonenkov/shopcore/internal/service/outbox"
)

// Messaging — внешние брокеры процесса.
type Messaging struct {
	// Publisher получает уведомления из outbox.
	Publisher domain.OutboxPublisher
	// DLQ - куда outbox worker складывает сообщения после исчерпания попыток; может быть nil.
	DLQ domain.OutboxPublisher
	// Consumer читает события оплаты; nil без Kafka.
	Consumer *kafka.Consumer

	producer *kafka.Producer
	rabbit   *rabbitmq.Publisher
	logger   *log.Entry
}

// NewMessaging подключает брокеры согласно NotificationTransport. Kafka consumer
// событий оплаты запускается всегда, когда заданы брокеры.
func NewMessaging(cfg Config, payments kafka.PaymentEventHandler, logger *log.Entry) (*Messaging, error) {
	if logger == nil {
		logger = log.WithField("component", "messaging")
	}
	m := &Messaging{logger: logger}

	if len(cfg.KafkaBrokers) > 0 {
		producer, err := kafka.NewProducer(cfg.KafkaBrokers)
		if err != nil {
			return nil, fmt.Errorf("init kafka producer: %w", err)
		}
		m.producer = producer
		logger.WithField("brokers", cfg.KafkaBrokers).Info("kafka producer initialized")

		topic := cfg.KafkaPaymentTopic
		if topic == "" {
			topic = kafka.TopicPaymentEvents
		}
		consumer, err := kafka.NewConsumerWithDLQ(
			cfg.KafkaBrokers,
			cfg.KafkaGroupID,
			[]string{topic},
			kafka.PaymentMessageHandler(payments, logger.WithField("component", "payment-consumer")),
			producer,
			cfg.KafkaMaxRetries,
		)
		if err != nil {
			m.Close()
			return nil, fmt.Errorf("init kafka consumer: %w", err)
		}
		m.Consumer = consumer
		m.DLQ = kafka.NewOutboxPublisher(producer, kafka.TopicDeadLetterQueue)
	}

	if cfg.NotificationTransport == TransportRabbitMQ || cfg.NotificationTransport == TransportBoth {
		rabbit, err := rabbitmq.Dial(rabbitmq.Config{URL: cfg.AMQPURL, Exchange: cfg.AMQPExchange}, logger.WithField("component", "rabbitmq-publisher"))
		if err != nil {
			m.Close()
			return nil, fmt.Errorf("init rabbitmq: %w", err)
		}
		m.rabbit = rabbit
		logger.Info("rabbitmq publisher initialized")
	}

	var kafkaPublisher domain.OutboxPublisher
	if m.producer != nil {
		kafkaPublisher = kafka.NewOutboxPublisher(m.producer, cfg.KafkaNotificationTopic)
	}
	var rabbitPublisher domain.OutboxPublisher
	if m.rabbit != nil {
		rabbitPublisher = m.rabbit
	}

	publisher, err := selectPublisher(cfg.NotificationTransport, kafkaPublisher, rabbitPublisher, logger)
	if err != nil {
		m.Close()
		return nil, err
	}
	m.Publisher = publisher
	return m, nil
}

// selectPublisher выбирает публикатор уведомлений по транспорту.
func selectPublisher(transport NotificationTransport, kafkaPub, rabbitPub domain.OutboxPublisher, logger *log.Entry) (domain.OutboxPublisher, error) {
	switch transport {
	case TransportLog, "":
		return outbox.NewLogPublisher(logger.WithField("component", "notification-log")), nil
	case TransportKafka:
		if kafkaPub == nil {
			return nil, errors.New("kafka transport requires kafka brokers")
		}
		return kafkaPub, nil
	case TransportRabbitMQ:
		if rabbitPub == nil {
			return nil, errors.New("rabbitmq transport requires amqp url")
		}
		return rabbitPub, nil
	case TransportBoth:
		if kafkaPub == nil || rabbitPub == nil {
			return nil, errors.New("both transport requires kafka and rabbitmq")
		}
		return outbox.FanOut{kafkaPub, rabbitPub}, nil
	default:
		return nil, fmt.Errorf("unknown notification transport %q", transport)
	}
}

// Close закрывает соединения с брокерами. Consumer останавливается отдельно.
func (m *Messaging) Close() {
	if m == nil {
		return
	}
	if m.rabbit != nil {
		if err := m.rabbit.Close(); err != nil {
			m.logger.WithError(err).Warn("failed to close rabbitmq publisher")
		}
	}
	if m.producer != nil {
		if err := m.producer.Close(); err != nil {
			m.logger.WithError(err).Warn("failed to close kafka producer")
		} else {
			m.logger.Info("kafka producer closed")
		}
	}
}
