package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/vladislavdragonenkov/shopcore/internal/domain"
)

type cartRepository struct {
	db *sql.DB
}

// NewCartRepository создаёт PostgreSQL-реализацию CartRepository.
func NewCartRepository(store *Store) domain.CartRepository {
	return &cartRepository{db: store.DB()}
}

func (r *cartRepository) Create(cart domain.Cart) error {
	return withTx(r.db, func(ctx context.Context, tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO carts (id, customer_id, coupon_code, version, created_at, updated_at)
			VALUES ($1,$2,$3,$4,$5,$6)
		`, cart.ID, cart.CustomerID, cart.CouponCode, cart.Version, cart.CreatedAt, cart.UpdatedAt)
		if err != nil {
			if isUniqueViolation(err) {
				return domain.ErrCartVersionConflict
			}
			return fmt.Errorf("insert cart: %w", err)
		}
		return insertCartItems(ctx, tx, cart)
	})
}

func (r *cartRepository) Get(id string) (domain.Cart, error) {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	var cart domain.Cart
	err := r.db.QueryRowContext(ctx, `
		SELECT id, customer_id, coupon_code, version, created_at, updated_at
		FROM carts
		WHERE id = $1
	`, id).Scan(&cart.ID, &cart.CustomerID, &cart.CouponCode, &cart.Version, &cart.CreatedAt, &cart.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Cart{}, domain.ErrCartNotFound
		}
		return domain.Cart{}, fmt.Errorf("select cart: %w", err)
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT id, product_id, variation_id, quantity, piece_price, added_at
		FROM cart_items
		WHERE cart_id = $1
		ORDER BY position ASC, added_at ASC
	`, id)
	if err != nil {
		return domain.Cart{}, fmt.Errorf("load cart items: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var item domain.CartItem
		if err := rows.Scan(&item.ID, &item.ProductID, &item.VariationID, &item.Quantity, &item.PiecePrice, &item.AddedAt); err != nil {
			return domain.Cart{}, fmt.Errorf("scan cart item: %w", err)
		}
		cart.Items = append(cart.Items, item)
	}
	if err := rows.Err(); err != nil {
		return domain.Cart{}, fmt.Errorf("iterate cart items: %w", err)
	}

	return cart, nil
}

// Save обновляет заголовок с проверкой версии и полностью перезаписывает строки.
func (r *cartRepository) Save(cart domain.Cart) error {
	return withTx(r.db, func(ctx context.Context, tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `
			UPDATE carts
			SET customer_id = $1,
			    coupon_code = $2,
			    version = version + 1,
			    updated_at = $3
			WHERE id = $4
			  AND version = $5
		`, cart.CustomerID, cart.CouponCode, cart.UpdatedAt, cart.ID, cart.Version)
		if err != nil {
			return fmt.Errorf("update cart: %w", err)
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("rows affected: %w", err)
		}
		if affected == 0 {
			var exists bool
			if err := tx.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM carts WHERE id = $1)`, cart.ID).Scan(&exists); err != nil {
				return fmt.Errorf("check cart exists: %w", err)
			}
			if !exists {
				return domain.ErrCartNotFound
			}
			return domain.ErrCartVersionConflict
		}

		if _, err := tx.ExecContext(ctx, `DELETE FROM cart_items WHERE cart_id = $1`, cart.ID); err != nil {
			return fmt.Errorf("delete cart items: %w", err)
		}
		return insertCartItems(ctx, tx, cart)
	})
}

func (r *cartRepository) Delete(id string) error {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	res, err := r.db.ExecContext(ctx, `DELETE FROM carts WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete cart: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return domain.ErrCartNotFound
	}
	return nil
}

func insertCartItems(ctx context.Context, tx *sql.Tx, cart domain.Cart) error {
	for i, item := range cart.Items {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO cart_items (id, cart_id, product_id, variation_id, quantity, piece_price, added_at, position)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
		`, item.ID, cart.ID, item.ProductID, item.VariationID, item.Quantity, item.PiecePrice, item.AddedAt, i); err != nil {
			return fmt.Errorf("insert cart item: %w", err)
		}
	}
	return nil
}

var _ domain.CartRepository = (*cartRepository)(nil)
