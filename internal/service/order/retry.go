package order

import (
	"context"
	"errors"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/shopcore/internal/domain"
)

// RetryConfig конфигурация повторов при конфликте нумерации.
type RetryConfig struct {
	MaxAttempts   int
	InitialDelay  time.Duration
	MaxDelay      time.Duration
	BackoffFactor float64
}

// DefaultRetryConfig возвращает конфигурацию по умолчанию.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:   3,
		InitialDelay:  100 * time.Millisecond,
		MaxDelay:      5 * time.Second,
		BackoffFactor: 2.0,
	}
}

// RetryOnNumberingConflict повторяет fn целиком, пока она падает с
// ConcurrentNumberingConflictError. Остальные ошибки возвращаются сразу.
func RetryOnNumberingConflict(ctx context.Context, cfg RetryConfig, logger *log.Entry, fn func(ctx context.Context) error) error {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 1
	}
	if cfg.BackoffFactor < 1 {
		cfg.BackoffFactor = 1
	}
	if logger == nil {
		logger = log.WithField("component", "numbering-retry")
	}

	delay := cfg.InitialDelay
	var lastErr error
	for attempt := 1; attempt <= cfg.MaxAttempts; attempt++ {
		err := fn(ctx)
		if err == nil {
			if attempt > 1 {
				logger.WithField("attempt", attempt).Info("operation succeeded after numbering conflict")
			}
			return nil
		}
		if !errors.Is(err, domain.ErrConcurrentNumberingConflict) {
			return err
		}
		lastErr = err

		if attempt == cfg.MaxAttempts {
			break
		}
		logger.WithFields(log.Fields{
			"attempt": attempt,
			"delay":   delay,
			"error":   err,
		}).Warn("numbering conflict, retrying")

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return errors.Join(lastErr, ctx.Err())
		case <-timer.C:
		}

		delay = time.Duration(float64(delay) * cfg.BackoffFactor)
		if cfg.MaxDelay > 0 && delay > cfg.MaxDelay {
			delay = cfg.MaxDelay
		}
	}

	logger.WithFields(log.Fields{
		"max_attempts": cfg.MaxAttempts,
		"error":        lastErr,
	}).Error("numbering conflict persisted after all retry attempts")
	return lastErr
}
