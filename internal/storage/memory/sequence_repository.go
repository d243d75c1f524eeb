package memory

import (
	"sync"

	"github.com/vladislavdragonenkov/shopcore/internal/domain"
)

type sequenceRepositoryInMemory struct {
	mu     sync.Mutex
	values map[string]int64
}

// NewSequenceRepository создаёт in-memory именованные счётчики.
func NewSequenceRepository() domain.SequenceRepository {
	return &sequenceRepositoryInMemory{values: make(map[string]int64)}
}

// Next увеличивает счётчик; первый вызов возвращает start.
func (r *sequenceRepositoryInMemory) Next(name string, start int64) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	current, ok := r.values[name]
	if !ok {
		r.values[name] = start
		return start, nil
	}
	current++
	r.values[name] = current
	return current, nil
}

var _ domain.SequenceRepository = (*sequenceRepositoryInMemory)(nil)
