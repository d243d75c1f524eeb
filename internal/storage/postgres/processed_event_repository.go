package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/vladislavdragonenkov/shopcore/internal/domain"
)

type processedEventRepository struct {
	db *sql.DB
}

// NewProcessedEventRepository создаёт PostgreSQL-реализацию ProcessedEventRepository.
func NewProcessedEventRepository(store *Store) domain.ProcessedEventRepository {
	return &processedEventRepository{db: store.DB()}
}

// MarkProcessed вставляет ключ; просроченная запись перезаписывается.
// Возвращает false, если ключ уже обработан и ещё действует.
func (r *processedEventRepository) MarkProcessed(key, source string, expiresAt time.Time) (bool, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return false, domain.ErrEventKeyRequired
	}

	now := time.Now().UTC()
	if expiresAt.IsZero() {
		expiresAt = now.Add(24 * time.Hour)
	}

	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	var stored string
	err := r.db.QueryRowContext(ctx, `
		INSERT INTO processed_events (key, source, created_at, expires_at)
		VALUES ($1,$2,$3,$4)
		ON CONFLICT (key) DO UPDATE SET
			source = EXCLUDED.source,
			created_at = EXCLUDED.created_at,
			expires_at = EXCLUDED.expires_at
		WHERE processed_events.expires_at <= EXCLUDED.created_at
		RETURNING key
	`, key, source, now, expiresAt).Scan(&stored)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("mark event processed: %w", err)
	}
	return true, nil
}

func (r *processedEventRepository) Forget(key string) error {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	if _, err := r.db.ExecContext(ctx, `DELETE FROM processed_events WHERE key = $1`, strings.TrimSpace(key)); err != nil {
		return fmt.Errorf("forget processed event: %w", err)
	}
	return nil
}

func (r *processedEventRepository) DeleteExpired(before time.Time, limit int) (int, error) {
	if before.IsZero() {
		before = time.Now().UTC()
	}

	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	var (
		res sql.Result
		err error
	)
	if limit > 0 {
		res, err = r.db.ExecContext(ctx, `
			DELETE FROM processed_events
			WHERE key IN (
				SELECT key
				FROM processed_events
				WHERE expires_at <= $1
				ORDER BY expires_at ASC
				LIMIT $2
			)
		`, before, limit)
	} else {
		res, err = r.db.ExecContext(ctx, `DELETE FROM processed_events WHERE expires_at <= $1`, before)
	}
	if err != nil {
		return 0, fmt.Errorf("delete expired processed events: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("processed events rows affected: %w", err)
	}
	return int(affected), nil
}

var _ domain.ProcessedEventRepository = (*processedEventRepository)(nil)
