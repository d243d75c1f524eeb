package memory

import (
	"sort"
	"sync"

	"github.com/vladislavdragonenkov/shopcore/internal/domain"
)

type shippingRepositoryInMemory struct {
	mu      sync.RWMutex
	methods []domain.ShippingMethod
}

// NewShippingMethodRepository создаёт in-memory каталог способов доставки.
func NewShippingMethodRepository() domain.ShippingMethodRepository {
	return &shippingRepositoryInMemory{}
}

// List возвращает способы по Position, при равенстве - в порядке добавления.
func (r *shippingRepositoryInMemory) List() ([]domain.ShippingMethod, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]domain.ShippingMethod, len(r.methods))
	for i, m := range r.methods {
		m.Countries = append([]string(nil), m.Countries...)
		result[i] = m
	}
	sort.SliceStable(result, func(i, j int) bool { return result[i].Position < result[j].Position })
	return result, nil
}

func (r *shippingRepositoryInMemory) Create(method domain.ShippingMethod) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	method.Countries = append([]string(nil), method.Countries...)
	for i, existing := range r.methods {
		if existing.ID == method.ID {
			r.methods[i] = method
			return nil
		}
	}
	r.methods = append(r.methods, method)
	return nil
}

var _ domain.ShippingMethodRepository = (*shippingRepositoryInMemory)(nil)
