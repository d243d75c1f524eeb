package memory

import (
	"sync"

	"github.com/vladislavdragonenkov/shopcore/internal/domain"
)

type cartRepositoryInMemory struct {
	mu    sync.RWMutex
	items map[string]domain.Cart
}

// NewCartRepository возвращает in-memory хранилище корзин.
func NewCartRepository() domain.CartRepository {
	return &cartRepositoryInMemory{items: make(map[string]domain.Cart)}
}

func (r *cartRepositoryInMemory) Create(cart domain.Cart) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.items[cart.ID]; exists {
		return domain.ErrCartVersionConflict
	}
	r.items[cart.ID] = cloneCart(cart)
	return nil
}

func (r *cartRepositoryInMemory) Get(id string) (domain.Cart, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	cart, ok := r.items[id]
	if !ok {
		return domain.Cart{}, domain.ErrCartNotFound
	}
	return cloneCart(cart), nil
}

// Save сохраняет корзину, если версия совпадает с хранимой.
func (r *cartRepositoryInMemory) Save(cart domain.Cart) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	current, ok := r.items[cart.ID]
	if !ok {
		return domain.ErrCartNotFound
	}
	if current.Version != cart.Version {
		return domain.ErrCartVersionConflict
	}
	cart.Version++
	r.items[cart.ID] = cloneCart(cart)
	return nil
}

func (r *cartRepositoryInMemory) Delete(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.items[id]; !ok {
		return domain.ErrCartNotFound
	}
	delete(r.items, id)
	return nil
}

func cloneCart(src domain.Cart) domain.Cart {
	dst := src
	dst.Items = append([]domain.CartItem(nil), src.Items...)
	return dst
}

var _ domain.CartRepository = (*cartRepositoryInMemory)(nil)
