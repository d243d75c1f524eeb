package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/vladislavdragonenkov/shopcore/internal/domain"
)

// CustomerRepository читает клиентов и их адреса.
type CustomerRepository struct {
	db *sql.DB
}

func NewCustomerRepository(store *Store) *CustomerRepository {
	return &CustomerRepository{db: store.DB()}
}

// Upsert заменяет клиента вместе со списком адресов.
func (r *CustomerRepository) Upsert(customer domain.Customer) error {
	return withTx(r.db, func(ctx context.Context, tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO customers (id, email, full_name, language, default_address_id)
			VALUES ($1,$2,$3,$4,$5)
			ON CONFLICT (id) DO UPDATE SET
				email = EXCLUDED.email,
				full_name = EXCLUDED.full_name,
				language = EXCLUDED.language,
				default_address_id = EXCLUDED.default_address_id
		`, customer.ID, customer.Email, customer.FullName, customer.Language, customer.DefaultAddressID); err != nil {
			return fmt.Errorf("upsert customer: %w", err)
		}

		if _, err := tx.ExecContext(ctx, `DELETE FROM customer_addresses WHERE customer_id = $1`, customer.ID); err != nil {
			return fmt.Errorf("delete customer addresses: %w", err)
		}
		for i, addr := range customer.Addresses {
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO customer_addresses (id, customer_id, name, street, postal_code, city, country, position)
				VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
			`, addr.ID, customer.ID, addr.Name, addr.Street, addr.PostalCode, addr.City, addr.Country, i); err != nil {
				return fmt.Errorf("insert customer address: %w", err)
			}
		}
		return nil
	})
}

func (r *CustomerRepository) Get(id string) (domain.Customer, error) {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	var customer domain.Customer
	err := r.db.QueryRowContext(ctx, `
		SELECT id, email, full_name, language, default_address_id
		FROM customers
		WHERE id = $1
	`, id).Scan(&customer.ID, &customer.Email, &customer.FullName, &customer.Language, &customer.DefaultAddressID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Customer{}, domain.ErrCustomerNotFound
		}
		return domain.Customer{}, fmt.Errorf("select customer: %w", err)
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT id, name, street, postal_code, city, country
		FROM customer_addresses
		WHERE customer_id = $1
		ORDER BY position ASC
	`, id)
	if err != nil {
		return domain.Customer{}, fmt.Errorf("load customer addresses: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var addr domain.Address
		if err := rows.Scan(&addr.ID, &addr.Name, &addr.Street, &addr.PostalCode, &addr.City, &addr.Country); err != nil {
			return domain.Customer{}, fmt.Errorf("scan customer address: %w", err)
		}
		customer.Addresses = append(customer.Addresses, addr)
	}
	if err := rows.Err(); err != nil {
		return domain.Customer{}, fmt.Errorf("iterate customer addresses: %w", err)
	}

	return customer, nil
}

var _ domain.CustomerRepository = (*CustomerRepository)(nil)
