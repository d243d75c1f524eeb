package memory

import (
	"strings"
	"sync"
	"time"

	"github.com/vladislavdragonenkov/shopcore/internal/domain"
)

type processedEventRepositoryInMemory struct {
	mu    sync.Mutex
	items map[string]domain.ProcessedEvent
	now   func() time.Time
}

// NewProcessedEventRepository создаёт in-memory реализацию ProcessedEventRepository.
func NewProcessedEventRepository() domain.ProcessedEventRepository {
	return &processedEventRepositoryInMemory{
		items: make(map[string]domain.ProcessedEvent),
		now:   func() time.Time { return time.Now().UTC() },
	}
}

func (r *processedEventRepositoryInMemory) MarkProcessed(key, source string, expiresAt time.Time) (bool, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return false, domain.ErrEventKeyRequired
	}

	now := r.now()
	if expiresAt.IsZero() {
		expiresAt = now.Add(24 * time.Hour)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if existing, ok := r.items[key]; ok && existing.ExpiresAt.After(now) {
		return false, nil
	}
	r.items[key] = domain.ProcessedEvent{
		Key:       key,
		Source:    source,
		CreatedAt: now,
		ExpiresAt: expiresAt,
	}
	return true, nil
}

func (r *processedEventRepositoryInMemory) Forget(key string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.items, strings.TrimSpace(key))
	return nil
}

func (r *processedEventRepositoryInMemory) DeleteExpired(before time.Time, limit int) (int, error) {
	if before.IsZero() {
		before = r.now()
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	removed := 0
	for key, record := range r.items {
		if record.ExpiresAt.After(before) {
			continue
		}
		delete(r.items, key)
		removed++
		if limit > 0 && removed >= limit {
			break
		}
	}
	return removed, nil
}

var _ domain.ProcessedEventRepository = (*processedEventRepositoryInMemory)(nil)
