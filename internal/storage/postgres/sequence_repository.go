package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/vladislavdragonenkov/shopcore/internal/domain"
)

type sequenceRepository struct {
	db *sql.DB
}

// NewSequenceRepository создаёт именованные счётчики в таблице sequences.
func NewSequenceRepository(store *Store) domain.SequenceRepository {
	return &sequenceRepository{db: store.DB()}
}

// Next — атомарный upsert: первая строка получает start, дальше value + 1.
func (r *sequenceRepository) Next(name string, start int64) (int64, error) {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	var value int64
	err := r.db.QueryRowContext(ctx, `
		INSERT INTO sequences (name, value) VALUES ($1, $2)
		ON CONFLICT (name) DO UPDATE SET value = sequences.value + 1
		RETURNING value
	`, name, start).Scan(&value)
	if err != nil {
		return 0, fmt.Errorf("next value of sequence %s: %w", name, err)
	}
	return value, nil
}

var _ domain.SequenceRepository = (*sequenceRepository)(nil)
