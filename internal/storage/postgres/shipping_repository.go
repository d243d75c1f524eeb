package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/vladislavdragonenkov/shopcore/internal/domain"
)

type shippingRepository struct {
	db *sql.DB
}

// NewShippingMethodRepository создаёт PostgreSQL-реализацию каталога доставки.
func NewShippingMethodRepository(store *Store) domain.ShippingMethodRepository {
	return &shippingRepository{db: store.DB()}
}

func (r *shippingRepository) List() ([]domain.ShippingMethod, error) {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	rows, err := r.db.QueryContext(ctx, `
		SELECT id, name, order_cost, countries, minimum_order_amount, position
		FROM shipping_methods
		ORDER BY position ASC, created_seq ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("list shipping methods: %w", err)
	}
	defer rows.Close()

	result := make([]domain.ShippingMethod, 0)
	for rows.Next() {
		var (
			m       domain.ShippingMethod
			minimum decimal.NullDecimal
		)
		if err := rows.Scan(&m.ID, &m.Name, &m.OrderCost, textArray(&m.Countries), &minimum, &m.Position); err != nil {
			return nil, fmt.Errorf("scan shipping method: %w", err)
		}
		m.MinimumOrderAmount = decimalFromNull(minimum)
		result = append(result, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate shipping methods: %w", err)
	}
	return result, nil
}

func (r *shippingRepository) Create(m domain.ShippingMethod) error {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO shipping_methods (id, name, order_cost, countries, minimum_order_amount, position)
		VALUES ($1,$2,$3,$4,$5,$6)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			order_cost = EXCLUDED.order_cost,
			countries = EXCLUDED.countries,
			minimum_order_amount = EXCLUDED.minimum_order_amount,
			position = EXCLUDED.position
	`, m.ID, m.Name, m.OrderCost, nonNilStrings(m.Countries), nullDecimal(m.MinimumOrderAmount), m.Position)
	if err != nil {
		return fmt.Errorf("insert shipping method: %w", err)
	}
	return nil
}

var _ domain.ShippingMethodRepository = (*shippingRepository)(nil)
