package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/vladislavdragonenkov/shopcore/internal/domain"
)

// CatalogRepository — PostgreSQL-каталог товаров. Остатки хранятся в тех же
// строках, поэтому он же реализует StockRepository.
type CatalogRepository struct {
	db *sql.DB
}

// NewCatalogRepository создаёт PostgreSQL-реализацию каталога и склада.
func NewCatalogRepository(store *Store) *CatalogRepository {
	return &CatalogRepository{db: store.DB()}
}

func (r *CatalogRepository) UpsertCategory(category domain.Category) error {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO categories (id, slug, name) VALUES ($1,$2,$3)
		ON CONFLICT (id) DO UPDATE SET slug = EXCLUDED.slug, name = EXCLUDED.name
	`, category.ID, category.Slug, category.Name)
	if err != nil {
		return fmt.Errorf("upsert category: %w", err)
	}
	return nil
}

func (r *CatalogRepository) UpsertProduct(product domain.Product) error {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO products (id, slug, name, description, number, price, stock, active, category_ids)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
		ON CONFLICT (id) DO UPDATE SET
			slug = EXCLUDED.slug,
			name = EXCLUDED.name,
			description = EXCLUDED.description,
			number = EXCLUDED.number,
			price = EXCLUDED.price,
			stock = EXCLUDED.stock,
			active = EXCLUDED.active,
			category_ids = EXCLUDED.category_ids
	`,
		product.ID, product.Slug, product.Name, product.Description, product.Number,
		product.Price, nullInt(product.Stock), product.Active, nonNilStrings(product.CategoryIDs),
	)
	if err != nil {
		return fmt.Errorf("upsert product: %w", err)
	}
	return nil
}

func (r *CatalogRepository) UpsertVariation(variation domain.Variation) error {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO product_variations (id, product_id, name, price, stock, active)
		VALUES ($1,$2,$3,$4,$5,$6)
		ON CONFLICT (id) DO UPDATE SET
			product_id = EXCLUDED.product_id,
			name = EXCLUDED.name,
			price = EXCLUDED.price,
			stock = EXCLUDED.stock,
			active = EXCLUDED.active
	`,
		variation.ID, variation.ProductID, variation.Name,
		nullDecimal(variation.Price), nullInt(variation.Stock), variation.Active,
	)
	if err != nil {
		return fmt.Errorf("upsert variation: %w", err)
	}
	return nil
}

func (r *CatalogRepository) GetProduct(id string) (domain.Product, error) {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	var (
		product domain.Product
		stock   sql.NullInt64
	)
	err := r.db.QueryRowContext(ctx, `
		SELECT id, slug, name, description, number, price, stock, active, category_ids
		FROM products
		WHERE id = $1
	`, id).Scan(
		&product.ID, &product.Slug, &product.Name, &product.Description, &product.Number,
		&product.Price, &stock, &product.Active, textArray(&product.CategoryIDs),
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Product{}, domain.ErrProductNotFound
		}
		return domain.Product{}, fmt.Errorf("select product: %w", err)
	}
	product.Stock = intFromNull(stock)
	return product, nil
}

func (r *CatalogRepository) GetVariation(id string) (domain.Variation, error) {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	row := r.db.QueryRowContext(ctx, `
		SELECT id, product_id, name, price, stock, active
		FROM product_variations
		WHERE id = $1
	`, id)
	variation, err := scanVariation(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Variation{}, domain.ErrVariationNotFound
		}
		return domain.Variation{}, fmt.Errorf("select variation: %w", err)
	}
	return variation, nil
}

func (r *CatalogRepository) ListVariations(productID string) ([]domain.Variation, error) {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	rows, err := r.db.QueryContext(ctx, `
		SELECT id, product_id, name, price, stock, active
		FROM product_variations
		WHERE product_id = $1
		ORDER BY position ASC
	`, productID)
	if err != nil {
		return nil, fmt.Errorf("list variations: %w", err)
	}
	defer rows.Close()

	result := make([]domain.Variation, 0)
	for rows.Next() {
		variation, err := scanVariation(rows)
		if err != nil {
			return nil, fmt.Errorf("scan variation: %w", err)
		}
		result = append(result, variation)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate variations: %w", err)
	}
	return result, nil
}

// Decrement — условное списание: UPDATE проходит только при stock >= qty.
// Для единиц без учёта остатка (stock IS NULL) строка не меняется.
func (r *CatalogRepository) Decrement(ref domain.UnitRef, qty int) error {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	var (
		res sql.Result
		err error
	)
	if ref.VariationID != "" {
		res, err = r.db.ExecContext(ctx, `
			UPDATE product_variations
			SET stock = CASE WHEN stock IS NULL THEN NULL ELSE stock - $3 END
			WHERE id = $1 AND product_id = $2
			  AND (stock IS NULL OR stock >= $3)
		`, ref.VariationID, ref.ProductID, qty)
	} else {
		res, err = r.db.ExecContext(ctx, `
			UPDATE products
			SET stock = CASE WHEN stock IS NULL THEN NULL ELSE stock - $2 END
			WHERE id = $1
			  AND (stock IS NULL OR stock >= $2)
		`, ref.ProductID, qty)
	}
	if err != nil {
		return fmt.Errorf("decrement stock for %s: %w", ref, err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		if err := r.unitExists(ctx, ref); err != nil {
			return err
		}
		return domain.ErrInsufficientStock
	}
	return nil
}

func (r *CatalogRepository) Increment(ref domain.UnitRef, qty int) error {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	var (
		res sql.Result
		err error
	)
	if ref.VariationID != "" {
		res, err = r.db.ExecContext(ctx, `
			UPDATE product_variations
			SET stock = CASE WHEN stock IS NULL THEN NULL ELSE stock + $3 END
			WHERE id = $1 AND product_id = $2
		`, ref.VariationID, ref.ProductID, qty)
	} else {
		res, err = r.db.ExecContext(ctx, `
			UPDATE products
			SET stock = CASE WHEN stock IS NULL THEN NULL ELSE stock + $2 END
			WHERE id = $1
		`, ref.ProductID, qty)
	}
	if err != nil {
		return fmt.Errorf("increment stock for %s: %w", ref, err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return r.unitExists(ctx, ref)
	}
	return nil
}

func (r *CatalogRepository) unitExists(ctx context.Context, ref domain.UnitRef) error {
	var id string
	var err error
	if ref.VariationID != "" {
		err = r.db.QueryRowContext(ctx,
			`SELECT id FROM product_variations WHERE id = $1 AND product_id = $2`,
			ref.VariationID, ref.ProductID).Scan(&id)
		if errors.Is(err, sql.ErrNoRows) {
			return domain.ErrVariationNotFound
		}
	} else {
		err = r.db.QueryRowContext(ctx, `SELECT id FROM products WHERE id = $1`, ref.ProductID).Scan(&id)
		if errors.Is(err, sql.ErrNoRows) {
			return domain.ErrProductNotFound
		}
	}
	if err != nil {
		return fmt.Errorf("check unit exists: %w", err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanVariation(row rowScanner) (domain.Variation, error) {
	var (
		variation domain.Variation
		price     decimal.NullDecimal
		stock     sql.NullInt64
	)
	if err := row.Scan(
		&variation.ID, &variation.ProductID, &variation.Name, &price, &stock, &variation.Active,
	); err != nil {
		return domain.Variation{}, err
	}
	variation.Price = decimalFromNull(price)
	variation.Stock = intFromNull(stock)
	return variation, nil
}

var (
	_ domain.CatalogRepository = (*CatalogRepository)(nil)
	_ domain.StockRepository   = (*CatalogRepository)(nil)
)
