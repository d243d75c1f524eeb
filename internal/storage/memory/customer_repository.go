package memory

import (
	"sync"

	"github.com/vladislavdragonenkov/shopcore/internal/domain"
)

// CustomerRepository — in-memory справочник клиентов.
type CustomerRepository struct {
	mu    sync.RWMutex
	items map[string]domain.Customer
}

func NewCustomerRepository() *CustomerRepository {
	return &CustomerRepository{items: make(map[string]domain.Customer)}
}

// Upsert добавляет или заменяет клиента.
func (r *CustomerRepository) Upsert(customer domain.Customer) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	customer.Addresses = append([]domain.Address(nil), customer.Addresses...)
	r.items[customer.ID] = customer
	return nil
}

func (r *CustomerRepository) Get(id string) (domain.Customer, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	customer, ok := r.items[id]
	if !ok {
		return domain.Customer{}, domain.ErrCustomerNotFound
	}
	customer.Addresses = append([]domain.Address(nil), customer.Addresses...)
	return customer, nil
}

var _ domain.CustomerRepository = (*CustomerRepository)(nil)
