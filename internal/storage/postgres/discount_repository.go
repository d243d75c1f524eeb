package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/vladislavdragonenkov/shopcore/internal/domain"
)

const discountColumns = `
	id, name, order_amount, order_percentage, item_amount, item_percentage,
	scope, product_ids, category_ids, use_coupon, coupon_code, use_limit, used,
	valid_from, valid_until`

type discountRepository struct {
	db *sql.DB
}

// NewDiscountRepository создаёт PostgreSQL-реализацию каталога скидок.
func NewDiscountRepository(store *Store) domain.DiscountRepository {
	return &discountRepository{db: store.DB()}
}

func (r *discountRepository) List() ([]domain.Discount, error) {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	rows, err := r.db.QueryContext(ctx, `SELECT `+discountColumns+` FROM discounts ORDER BY position ASC`)
	if err != nil {
		return nil, fmt.Errorf("list discounts: %w", err)
	}
	defer rows.Close()

	result := make([]domain.Discount, 0)
	for rows.Next() {
		discount, err := scanDiscount(rows)
		if err != nil {
			return nil, fmt.Errorf("scan discount: %w", err)
		}
		result = append(result, discount)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate discounts: %w", err)
	}
	return result, nil
}

func (r *discountRepository) Get(id string) (domain.Discount, error) {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	discount, err := scanDiscount(r.db.QueryRowContext(ctx, `SELECT `+discountColumns+` FROM discounts WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Discount{}, domain.ErrDiscountNotFound
		}
		return domain.Discount{}, fmt.Errorf("select discount: %w", err)
	}
	return discount, nil
}

// Create добавляет скидку или заменяет существующую с тем же ID.
func (r *discountRepository) Create(d domain.Discount) error {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	scope := d.Scope
	if scope == "" {
		scope = domain.DiscountScopeAll
	}

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO discounts (`+discountColumns+`)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			order_amount = EXCLUDED.order_amount,
			order_percentage = EXCLUDED.order_percentage,
			item_amount = EXCLUDED.item_amount,
			item_percentage = EXCLUDED.item_percentage,
			scope = EXCLUDED.scope,
			product_ids = EXCLUDED.product_ids,
			category_ids = EXCLUDED.category_ids,
			use_coupon = EXCLUDED.use_coupon,
			coupon_code = EXCLUDED.coupon_code,
			use_limit = EXCLUDED.use_limit,
			used = EXCLUDED.used,
			valid_from = EXCLUDED.valid_from,
			valid_until = EXCLUDED.valid_until
	`,
		d.ID, d.Name,
		nullDecimal(d.OrderAmount), nullDecimal(d.OrderPercentage), nullDecimal(d.ItemAmount), nullDecimal(d.ItemPercentage),
		string(scope), nonNilStrings(d.ProductIDs), nonNilStrings(d.CategoryIDs),
		d.UseCoupon, d.CouponCode, nullInt(d.UseLimit), d.Used,
		nullTime(d.ValidFrom), nullTime(d.ValidUntil),
	)
	if err != nil {
		return fmt.Errorf("insert discount: %w", err)
	}
	return nil
}

// IncrementUsage — гарантированный инкремент: строка меняется только пока used < use_limit.
func (r *discountRepository) IncrementUsage(id string) error {
	return r.changeUsage(id, `
		UPDATE discounts
		SET used = used + 1
		WHERE id = $1
		  AND (use_limit IS NULL OR used < use_limit)
	`, domain.ErrDiscountUseLimitReached)
}

func (r *discountRepository) DecrementUsage(id string) error {
	return r.changeUsage(id, `
		UPDATE discounts
		SET used = GREATEST(used - 1, 0)
		WHERE id = $1
	`, nil)
}

func (r *discountRepository) changeUsage(id, query string, guardErr error) error {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	res, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("update discount usage: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected > 0 {
		return nil
	}

	var exists bool
	if err := r.db.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM discounts WHERE id = $1)`, id).Scan(&exists); err != nil {
		return fmt.Errorf("check discount exists: %w", err)
	}
	if !exists {
		return domain.ErrDiscountNotFound
	}
	return guardErr
}

func scanDiscount(row rowScanner) (domain.Discount, error) {
	var (
		d               domain.Discount
		orderAmount     decimal.NullDecimal
		orderPercentage decimal.NullDecimal
		itemAmount      decimal.NullDecimal
		itemPercentage  decimal.NullDecimal
		scope           string
		useLimit        sql.NullInt64
		validFrom       sql.NullTime
		validUntil      sql.NullTime
	)
	if err := row.Scan(
		&d.ID, &d.Name, &orderAmount, &orderPercentage, &itemAmount, &itemPercentage,
		&scope, textArray(&d.ProductIDs), textArray(&d.CategoryIDs), &d.UseCoupon, &d.CouponCode,
		&useLimit, &d.Used, &validFrom, &validUntil,
	); err != nil {
		return domain.Discount{}, err
	}
	d.OrderAmount = decimalFromNull(orderAmount)
	d.OrderPercentage = decimalFromNull(orderPercentage)
	d.ItemAmount = decimalFromNull(itemAmount)
	d.ItemPercentage = decimalFromNull(itemPercentage)
	d.Scope = domain.DiscountScope(scope)
	d.UseLimit = intFromNull(useLimit)
	d.ValidFrom = timeFromNull(validFrom)
	d.ValidUntil = timeFromNull(validUntil)
	return d, nil
}

var _ domain.DiscountRepository = (*discountRepository)(nil)
