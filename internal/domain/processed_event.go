package domain

import "time"

// ProcessedEvent фиксирует уже обработанное входящее событие.
type ProcessedEvent struct {
	Key       string
	Source    string
	CreatedAt time.Time
	ExpiresAt time.Time
}
