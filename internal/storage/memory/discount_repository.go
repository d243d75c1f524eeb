package memory

import (
	"sync"

	"github.com/vladislavdragonenkov/shopcore/internal/domain"
)

type discountRepositoryInMemory struct {
	mu    sync.RWMutex
	items map[string]domain.Discount
	ids   []string
}

// NewDiscountRepository создаёт in-memory каталог скидок.
func NewDiscountRepository() domain.DiscountRepository {
	return &discountRepositoryInMemory{items: make(map[string]domain.Discount)}
}

func (r *discountRepositoryInMemory) List() ([]domain.Discount, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]domain.Discount, 0, len(r.ids))
	for _, id := range r.ids {
		result = append(result, cloneDiscount(r.items[id]))
	}
	return result, nil
}

func (r *discountRepositoryInMemory) Get(id string) (domain.Discount, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	discount, ok := r.items[id]
	if !ok {
		return domain.Discount{}, domain.ErrDiscountNotFound
	}
	return cloneDiscount(discount), nil
}

// Create добавляет скидку; повторный ID заменяет запись без смены порядка.
func (r *discountRepositoryInMemory) Create(discount domain.Discount) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.items[discount.ID]; !exists {
		r.ids = append(r.ids, discount.ID)
	}
	r.items[discount.ID] = cloneDiscount(discount)
	return nil
}

// IncrementUsage — условный инкремент, аналог UPDATE ... WHERE used < use_limit.
func (r *discountRepositoryInMemory) IncrementUsage(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	discount, ok := r.items[id]
	if !ok {
		return domain.ErrDiscountNotFound
	}
	if discount.Exhausted() {
		return domain.ErrDiscountUseLimitReached
	}
	discount.Used++
	r.items[id] = discount
	return nil
}

func (r *discountRepositoryInMemory) DecrementUsage(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	discount, ok := r.items[id]
	if !ok {
		return domain.ErrDiscountNotFound
	}
	if discount.Used > 0 {
		discount.Used--
	}
	r.items[id] = discount
	return nil
}

func cloneDiscount(src domain.Discount) domain.Discount {
	dst := src
	dst.ProductIDs = append([]string(nil), src.ProductIDs...)
	dst.CategoryIDs = append([]string(nil), src.CategoryIDs...)
	return dst
}

var _ domain.DiscountRepository = (*discountRepositoryInMemory)(nil)
