package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/vladislavdragonenkov/shopcore/internal/domain"
)

type stateChangeRepository struct {
	db *sql.DB
}

// NewStateChangeRepository создаёт PostgreSQL-реализацию журнала состояний.
func NewStateChangeRepository(store *Store) domain.StateChangeRepository {
	return &stateChangeRepository{db: store.DB()}
}

func (r *stateChangeRepository) Append(change domain.OrderStateChange) error {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO order_state_changes (id, order_id, state, note, occurred_at)
		VALUES ($1,$2,$3,$4,$5)
	`, change.ID, change.OrderID, string(change.State), change.Note, change.OccurredAt)
	if err != nil {
		return fmt.Errorf("append state change: %w", err)
	}
	return nil
}

// List возвращает журнал в хронологическом порядке; seq разрешает равные метки времени.
func (r *stateChangeRepository) List(orderID string) ([]domain.OrderStateChange, error) {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	rows, err := r.db.QueryContext(ctx, `
		SELECT id, order_id, state, note, occurred_at
		FROM order_state_changes
		WHERE order_id = $1
		ORDER BY occurred_at ASC, seq ASC
	`, orderID)
	if err != nil {
		return nil, fmt.Errorf("list state changes: %w", err)
	}
	defer rows.Close()

	result := make([]domain.OrderStateChange, 0)
	for rows.Next() {
		change, err := scanStateChange(rows)
		if err != nil {
			return nil, fmt.Errorf("scan state change: %w", err)
		}
		result = append(result, change)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate state changes: %w", err)
	}
	return result, nil
}

func (r *stateChangeRepository) Latest(orderID string) (domain.OrderStateChange, error) {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	row := r.db.QueryRowContext(ctx, `
		SELECT id, order_id, state, note, occurred_at
		FROM order_state_changes
		WHERE order_id = $1
		ORDER BY occurred_at DESC, seq DESC
		LIMIT 1
	`, orderID)
	change, err := scanStateChange(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.OrderStateChange{}, domain.ErrStateChangeNotFound
		}
		return domain.OrderStateChange{}, fmt.Errorf("select latest state change: %w", err)
	}
	return change, nil
}

func scanStateChange(row rowScanner) (domain.OrderStateChange, error) {
	var (
		change domain.OrderStateChange
		state  string
	)
	if err := row.Scan(&change.ID, &change.OrderID, &state, &change.Note, &change.OccurredAt); err != nil {
		return domain.OrderStateChange{}, err
	}
	change.State = domain.OrderState(state)
	change.OccurredAt = change.OccurredAt.UTC()
	return change, nil
}

var _ domain.StateChangeRepository = (*stateChangeRepository)(nil)
