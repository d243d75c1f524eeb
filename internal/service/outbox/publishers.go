package outbox

import (
	"errors"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/shopcore/internal/domain"
)

// FanOut публикует сообщение во все брокеры. Сообщение считается отправленным,
// только если все публикации прошли; повтор допустим, получатели идемпотентны.
type FanOut []domain.OutboxPublisher

func (f FanOut) Publish(event domain.OutboxMessage) error {
	var errs []error
	for _, p := range f {
		if err := p.Publish(event); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// LogPublisher пишет уведомление в лог. Используется без брокера.
type LogPublisher struct {
	logger *log.Entry
}

func NewLogPublisher(logger *log.Entry) *LogPublisher {
	if logger == nil {
		logger = log.WithField("component", "outbox-log-publisher")
	}
	return &LogPublisher{logger: logger}
}

func (p *LogPublisher) Publish(event domain.OutboxMessage) error {
	p.logger.WithFields(log.Fields{
		"outbox_id":    event.ID,
		"aggregate_id": event.AggregateID,
		"event_type":   event.EventType,
		"payload":      string(event.Payload),
	}).Info("notification published")
	return nil
}

var (
	_ domain.OutboxPublisher = FanOut(nil)
	_ domain.OutboxPublisher = (*LogPublisher)(nil)
)
