package memory

import (
	"sort"
	"sync"

	"github.com/vladislavdragonenkov/shopcore/internal/domain"
)

// CatalogRepository хранит товары, вариации и остатки в памяти.
// Реализует и CatalogRepository, и StockRepository: остаток живёт рядом с товаром.
type CatalogRepository struct {
	mu         sync.RWMutex
	products   map[string]domain.Product
	variations map[string]domain.Variation
	order      map[string]int
	seq        int
	categories map[string]domain.Category
}

// NewCatalogRepository создаёт пустой каталог.
func NewCatalogRepository() *CatalogRepository {
	return &CatalogRepository{
		products:   make(map[string]domain.Product),
		variations: make(map[string]domain.Variation),
		order:      make(map[string]int),
		categories: make(map[string]domain.Category),
	}
}

// UpsertProduct добавляет или заменяет товар.
func (r *CatalogRepository) UpsertProduct(product domain.Product) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	product.Stock = copyInt(product.Stock)
	product.CategoryIDs = append([]string(nil), product.CategoryIDs...)
	r.products[product.ID] = product
	return nil
}

// UpsertVariation добавляет или заменяет вариацию, сохраняя порядок первого добавления.
func (r *CatalogRepository) UpsertVariation(variation domain.Variation) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	variation.Stock = copyInt(variation.Stock)
	if _, ok := r.order[variation.ID]; !ok {
		r.seq++
		r.order[variation.ID] = r.seq
	}
	r.variations[variation.ID] = variation
	return nil
}

func (r *CatalogRepository) UpsertCategory(category domain.Category) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.categories[category.ID] = category
	return nil
}

func (r *CatalogRepository) GetProduct(id string) (domain.Product, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	product, ok := r.products[id]
	if !ok {
		return domain.Product{}, domain.ErrProductNotFound
	}
	product.Stock = copyInt(product.Stock)
	product.CategoryIDs = append([]string(nil), product.CategoryIDs...)
	return product, nil
}

func (r *CatalogRepository) GetVariation(id string) (domain.Variation, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	variation, ok := r.variations[id]
	if !ok {
		return domain.Variation{}, domain.ErrVariationNotFound
	}
	variation.Stock = copyInt(variation.Stock)
	return variation, nil
}

func (r *CatalogRepository) ListVariations(productID string) ([]domain.Variation, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]domain.Variation, 0)
	for _, v := range r.variations {
		if v.ProductID != productID {
			continue
		}
		v.Stock = copyInt(v.Stock)
		result = append(result, v)
	}
	sort.Slice(result, func(i, j int) bool {
		return r.order[result[i].ID] < r.order[result[j].ID]
	})
	return result, nil
}

// Decrement списывает остаток только при достаточном количестве.
func (r *CatalogRepository) Decrement(ref domain.UnitRef, qty int) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	stock, err := r.stockOf(ref)
	if err != nil {
		return err
	}
	if stock == nil {
		return nil
	}
	if *stock < qty {
		return domain.ErrInsufficientStock
	}
	*stock -= qty
	return nil
}

// Increment возвращает остаток на склад.
func (r *CatalogRepository) Increment(ref domain.UnitRef, qty int) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	stock, err := r.stockOf(ref)
	if err != nil {
		return err
	}
	if stock == nil {
		return nil
	}
	*stock += qty
	return nil
}

// stockOf возвращает указатель на хранимый остаток. Вызывать под r.mu.
func (r *CatalogRepository) stockOf(ref domain.UnitRef) (*int, error) {
	if ref.VariationID != "" {
		v, ok := r.variations[ref.VariationID]
		if !ok || v.ProductID != ref.ProductID {
			return nil, domain.ErrVariationNotFound
		}
		return v.Stock, nil
	}
	p, ok := r.products[ref.ProductID]
	if !ok {
		return nil, domain.ErrProductNotFound
	}
	return p.Stock, nil
}

func copyInt(v *int) *int {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}

var (
	_ domain.CatalogRepository = (*CatalogRepository)(nil)
	_ domain.StockRepository   = (*CatalogRepository)(nil)
)
