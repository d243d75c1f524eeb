package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/vladislavdragonenkov/shopcore/internal/domain"
)

const (
	orderNumberConstraint   = "orders_order_number_key"
	invoiceNumberConstraint = "orders_invoice_number_key"
)

const orderColumns = `
	id, cart_id, customer_id,
	ship_address_id, ship_name, ship_street, ship_postal_code, ship_city, ship_country,
	order_number, invoice_number, coupon_code, discount, shipping_cost, shipping_method_id,
	applied_discount_ids, state, payment_reference, version, created_at, updated_at, confirmed_at`

type orderRepository struct {
	db *sql.DB
}

// NewOrderRepository создаёт PostgreSQL-реализацию OrderRepository.
func NewOrderRepository(store *Store) domain.OrderRepository {
	return &orderRepository{db: store.DB()}
}

// Create вставляет заказ с позициями. Уникальность номера заказа гарантирует
// ограничение orders_order_number_key.
func (r *orderRepository) Create(order domain.Order) error {
	return withTx(r.db, func(ctx context.Context, tx *sql.Tx) error {
		addr := order.ShippingAddress
		_, err := tx.ExecContext(ctx, `
			INSERT INTO orders (`+orderColumns+`)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20,$21,$22)
		`,
			order.ID, order.CartID, order.CustomerID,
			addr.ID, addr.Name, addr.Street, addr.PostalCode, addr.City, addr.Country,
			order.OrderNumber, nullInvoice(order.InvoiceNumber), order.CouponCode, order.Discount, order.ShippingCost,
			order.ShippingMethodID, nonNilStrings(order.AppliedDiscountIDs), string(order.State), order.PaymentReference,
			order.Version, order.CreatedAt, order.UpdatedAt, nullTime(&order.ConfirmedAt),
		)
		if err != nil {
			if constraint, ok := uniqueViolation(err); ok {
				if constraint == orderNumberConstraint {
					return domain.ErrOrderNumberTaken
				}
				return domain.ErrOrderVersionConflict
			}
			return fmt.Errorf("insert order: %w", err)
		}

		for i, item := range order.Items {
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO order_items (
					id, order_id, product_id, variation_id, product_slug, product_name, product_description,
					article_number, variation_name, category_ids, quantity, piece_price, position
				) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)
			`,
				item.ID, order.ID, item.ProductID, item.VariationID, item.ProductSlug, item.ProductName,
				item.ProductDescription, item.ArticleNumber, item.VariationName, nonNilStrings(item.CategoryIDs),
				item.Quantity, item.PiecePrice, i,
			); err != nil {
				return fmt.Errorf("insert order item: %w", err)
			}
		}
		return nil
	})
}

func (r *orderRepository) Get(id string) (domain.Order, error) {
	return r.getBy("id", id)
}

func (r *orderRepository) GetByNumber(orderNumber string) (domain.Order, error) {
	return r.getBy("order_number", orderNumber)
}

func (r *orderRepository) getBy(column, value string) (domain.Order, error) {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	row := r.db.QueryRowContext(ctx, `SELECT `+orderColumns+` FROM orders WHERE `+column+` = $1`, value)
	order, err := scanOrder(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Order{}, domain.ErrOrderNotFound
		}
		return domain.Order{}, fmt.Errorf("select order: %w", err)
	}

	items, err := r.loadItems(ctx, order.ID)
	if err != nil {
		return domain.Order{}, err
	}
	order.Items = items
	return order, nil
}

// ListByCart возвращает заказы корзины, новые первыми.
func (r *orderRepository) ListByCart(cartID string) ([]domain.Order, error) {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	rows, err := r.db.QueryContext(ctx, `
		SELECT `+orderColumns+`
		FROM orders
		WHERE cart_id = $1
		ORDER BY created_at DESC, id DESC
	`, cartID)
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	defer rows.Close()

	orders := make([]domain.Order, 0)
	for rows.Next() {
		order, err := scanOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("scan order row: %w", err)
		}
		orders = append(orders, order)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate order rows: %w", err)
	}

	for i := range orders {
		items, err := r.loadItems(ctx, orders[i].ID)
		if err != nil {
			return nil, err
		}
		orders[i].Items = items
	}
	return orders, nil
}

// Save обновляет изменяемые поля заказа. Позиции и номер заказа неизменны.
func (r *orderRepository) Save(order domain.Order) error {
	return withTx(r.db, func(ctx context.Context, tx *sql.Tx) error {
		addr := order.ShippingAddress
		res, err := tx.ExecContext(ctx, `
			UPDATE orders
			SET ship_address_id = $1,
			    ship_name = $2,
			    ship_street = $3,
			    ship_postal_code = $4,
			    ship_city = $5,
			    ship_country = $6,
			    invoice_number = $7,
			    coupon_code = $8,
			    discount = $9,
			    shipping_cost = $10,
			    shipping_method_id = $11,
			    applied_discount_ids = $12,
			    state = $13,
			    payment_reference = $14,
			    version = version + 1,
			    updated_at = $15,
			    confirmed_at = $16
			WHERE id = $17
			  AND version = $18
		`,
			addr.ID, addr.Name, addr.Street, addr.PostalCode, addr.City, addr.Country,
			nullInvoice(order.InvoiceNumber), order.CouponCode, order.Discount, order.ShippingCost,
			order.ShippingMethodID, nonNilStrings(order.AppliedDiscountIDs), string(order.State),
			order.PaymentReference, order.UpdatedAt, nullTime(&order.ConfirmedAt),
			order.ID, order.Version,
		)
		if err != nil {
			if constraint, ok := uniqueViolation(err); ok && constraint == invoiceNumberConstraint {
				return domain.ErrInvoiceNumberTaken
			}
			return fmt.Errorf("update order: %w", err)
		}

		affected, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("rows affected: %w", err)
		}
		if affected == 0 {
			exists, err := orderExistsTx(ctx, tx, order.ID)
			if err != nil {
				return err
			}
			if !exists {
				return domain.ErrOrderNotFound
			}
			return domain.ErrOrderVersionConflict
		}
		return nil
	})
}

func (r *orderRepository) Delete(id string) error {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	res, err := r.db.ExecContext(ctx, `DELETE FROM orders WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete order: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return domain.ErrOrderNotFound
	}
	return nil
}

func (r *orderRepository) loadItems(ctx context.Context, orderID string) ([]domain.OrderItem, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, product_id, variation_id, product_slug, product_name, product_description,
		       article_number, variation_name, category_ids, quantity, piece_price
		FROM order_items
		WHERE order_id = $1
		ORDER BY position ASC, id ASC
	`, orderID)
	if err != nil {
		return nil, fmt.Errorf("load order items: %w", err)
	}
	defer rows.Close()

	items := make([]domain.OrderItem, 0)
	for rows.Next() {
		var item domain.OrderItem
		if err := rows.Scan(
			&item.ID, &item.ProductID, &item.VariationID, &item.ProductSlug, &item.ProductName,
			&item.ProductDescription, &item.ArticleNumber, &item.VariationName, textArray(&item.CategoryIDs),
			&item.Quantity, &item.PiecePrice,
		); err != nil {
			return nil, fmt.Errorf("scan order item: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate order items: %w", err)
	}

	return items, nil
}

func scanOrder(row rowScanner) (domain.Order, error) {
	var (
		order       domain.Order
		addr        domain.Address
		invoice     sql.NullInt64
		state       string
		confirmedAt sql.NullTime
	)
	if err := row.Scan(
		&order.ID, &order.CartID, &order.CustomerID,
		&addr.ID, &addr.Name, &addr.Street, &addr.PostalCode, &addr.City, &addr.Country,
		&order.OrderNumber, &invoice, &order.CouponCode, &order.Discount, &order.ShippingCost,
		&order.ShippingMethodID, textArray(&order.AppliedDiscountIDs), &state, &order.PaymentReference,
		&order.Version, &order.CreatedAt, &order.UpdatedAt, &confirmedAt,
	); err != nil {
		return domain.Order{}, err
	}
	order.ShippingAddress = addr
	order.InvoiceNumber = invoice.Int64
	order.State = domain.OrderState(state)
	if confirmedAt.Valid {
		order.ConfirmedAt = confirmedAt.Time.UTC()
	}
	return order, nil
}

func orderExistsTx(ctx context.Context, tx *sql.Tx, orderID string) (bool, error) {
	var id string
	err := tx.QueryRowContext(ctx, `SELECT id FROM orders WHERE id = $1`, orderID).Scan(&id)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	return false, fmt.Errorf("check order exists: %w", err)
}

// nullInvoice: номер счёта 0 хранится как NULL, чтобы не мешать уникальности.
func nullInvoice(v int64) sql.NullInt64 {
	return sql.NullInt64{Int64: v, Valid: v != 0}
}

var _ domain.OrderRepository = (*orderRepository)(nil)
