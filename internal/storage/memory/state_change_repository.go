package memory

import (
	"sort"
	"sync"

	"github.com/vladislavdragonenkov/shopcore/internal/domain"
)

// stateChangeRepositoryInMemory хранит журнал состояний в памяти (для разработки/тестов).
type stateChangeRepositoryInMemory struct {
	mu      sync.RWMutex
	changes map[string][]domain.OrderStateChange
}

// NewStateChangeRepository создаёт in-memory реализацию StateChangeRepository.
func NewStateChangeRepository() domain.StateChangeRepository {
	return &stateChangeRepositoryInMemory{changes: make(map[string][]domain.OrderStateChange)}
}

// Append добавляет запись; при равном времени сохраняется порядок добавления.
func (r *stateChangeRepositoryInMemory) Append(change domain.OrderStateChange) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	list := append(r.changes[change.OrderID], change)
	sort.SliceStable(list, func(i, j int) bool {
		return list[i].OccurredAt.Before(list[j].OccurredAt)
	})
	r.changes[change.OrderID] = list
	return nil
}

// List возвращает журнал заказа в хронологическом порядке.
func (r *stateChangeRepositoryInMemory) List(orderID string) ([]domain.OrderStateChange, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	changes := r.changes[orderID]
	result := make([]domain.OrderStateChange, len(changes))
	copy(result, changes)
	return result, nil
}

func (r *stateChangeRepositoryInMemory) Latest(orderID string) (domain.OrderStateChange, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	changes := r.changes[orderID]
	if len(changes) == 0 {
		return domain.OrderStateChange{}, domain.ErrStateChangeNotFound
	}
	return changes[len(changes)-1], nil
}

var _ domain.StateChangeRepository = (*stateChangeRepositoryInMemory)(nil)
