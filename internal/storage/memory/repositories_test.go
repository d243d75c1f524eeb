package memory_test

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/vladislavdragonenkov/shopcore/internal/domain"
	"github.com/vladislavdragonenkov/shopcore/internal/storage/memory"
)

func TestCartRepository_OptimisticLocking(t *testing.T) {
	repo := memory.NewCartRepository()
	cart := domain.Cart{ID: "cart-1", Items: []domain.CartItem{{ID: "i-1", ProductID: "p-1", Quantity: 1}}}
	if err := repo.Create(cart); err != nil {
		t.Fatalf("create failed: %v", err)
	}

	stored, _ := repo.Get("cart-1")
	stored.Items[0].Quantity = 2
	if err := repo.Save(stored); err != nil {
		t.Fatalf("save failed: %v", err)
	}
	if err := repo.Save(stored); !errors.Is(err, domain.ErrCartVersionConflict) {
		t.Fatalf("expected version conflict, got %v", err)
	}

	if err := repo.Delete("cart-1"); err != nil {
		t.Fatalf("delete failed: %v", err)
	}
	if _, err := repo.Get("cart-1"); !errors.Is(err, domain.ErrCartNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestStateChangeRepository_LatestAndOrder(t *testing.T) {
	repo := memory.NewStateChangeRepository()
	base := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)

	if _, err := repo.Latest("order-1"); !errors.Is(err, domain.ErrStateChangeNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}

	_ = repo.Append(domain.OrderStateChange{ID: "2", OrderID: "order-1", State: domain.OrderStatePending, OccurredAt: base.Add(time.Minute)})
	_ = repo.Append(domain.OrderStateChange{ID: "1", OrderID: "order-1", State: domain.OrderStateNew, OccurredAt: base})
	_ = repo.Append(domain.OrderStateChange{ID: "3", OrderID: "order-1", State: domain.OrderStatePaid, OccurredAt: base.Add(time.Minute)})

	list, _ := repo.List("order-1")
	if len(list) != 3 || list[0].ID != "1" || list[2].ID != "3" {
		t.Fatalf("unexpected history: %+v", list)
	}

	latest, err := repo.Latest("order-1")
	if err != nil {
		t.Fatalf("latest failed: %v", err)
	}
	if latest.State != domain.OrderStatePaid {
		t.Fatalf("expected paid, got %s", latest.State)
	}
}

func TestDiscountRepository_GuardedIncrement(t *testing.T) {
	repo := memory.NewDiscountRepository()
	limit := 3
	amount := decimal.NewFromInt(2)
	if err := repo.Create(domain.Discount{ID: "d-1", OrderAmount: &amount, UseLimit: &limit}); err != nil {
		t.Fatalf("create failed: %v", err)
	}

	var wg sync.WaitGroup
	var mu sync.Mutex
	succeeded := 0
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := repo.IncrementUsage("d-1"); err == nil {
				mu.Lock()
				succeeded++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if succeeded != 3 {
		t.Fatalf("expected exactly 3 increments, got %d", succeeded)
	}
	if err := repo.IncrementUsage("d-1"); !errors.Is(err, domain.ErrDiscountUseLimitReached) {
		t.Fatalf("expected limit reached, got %v", err)
	}

	if err := repo.DecrementUsage("d-1"); err != nil {
		t.Fatalf("decrement failed: %v", err)
	}
	d, _ := repo.Get("d-1")
	if d.Used != 2 {
		t.Fatalf("expected used=2, got %d", d.Used)
	}
}

func TestShippingMethodRepository_ListOrder(t *testing.T) {
	repo := memory.NewShippingMethodRepository()
	_ = repo.Create(domain.ShippingMethod{ID: "b", Position: 2})
	_ = repo.Create(domain.ShippingMethod{ID: "a", Position: 1})
	_ = repo.Create(domain.ShippingMethod{ID: "c", Position: 2})

	methods, _ := repo.List()
	got := []string{methods[0].ID, methods[1].ID, methods[2].ID}
	want := []string{"a", "b", "c"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, got)
		}
	}
}

func TestSequenceRepository_ConcurrentNext(t *testing.T) {
	repo := memory.NewSequenceRepository()

	const workers = 50
	results := make(chan int64, workers)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			v, err := repo.Next("invoice", 1000)
			if err != nil {
				t.Errorf("next failed: %v", err)
				return
			}
			results <- v
		}()
	}
	wg.Wait()
	close(results)

	seen := make(map[int64]bool)
	for v := range results {
		if seen[v] {
			t.Fatalf("duplicate value %d", v)
		}
		seen[v] = true
	}
	for v := int64(1000); v < 1000+workers; v++ {
		if !seen[v] {
			t.Fatalf("missing value %d", v)
		}
	}
}

func TestProcessedEventRepository_Dedupe(t *testing.T) {
	repo := memory.NewProcessedEventRepository()
	expires := time.Now().UTC().Add(time.Hour)

	first, err := repo.MarkProcessed("stripe:evt_1", "stripe", expires)
	if err != nil || !first {
		t.Fatalf("expected first mark to succeed, got %v %v", first, err)
	}
	second, err := repo.MarkProcessed("stripe:evt_1", "stripe", expires)
	if err != nil || second {
		t.Fatalf("expected duplicate, got %v %v", second, err)
	}
	if _, err := repo.MarkProcessed(" ", "stripe", expires); !errors.Is(err, domain.ErrEventKeyRequired) {
		t.Fatalf("expected key required, got %v", err)
	}

	if err := repo.Forget("native:evt_2"); err != nil {
		t.Fatalf("forget unknown key: %v", err)
	}
	if _, err := repo.MarkProcessed("native:evt_2", "native", expires); err != nil {
		t.Fatalf("mark: %v", err)
	}
	if err := repo.Forget("native:evt_2"); err != nil {
		t.Fatalf("forget: %v", err)
	}
	again, err := repo.MarkProcessed("native:evt_2", "native", expires)
	if err != nil || !again {
		t.Fatalf("expected forgotten key to be marked again, got %v %v", again, err)
	}

	removed, err := repo.DeleteExpired(expires.Add(time.Second), 10)
	if err != nil || removed != 2 {
		t.Fatalf("expected 2 removed, got %d %v", removed, err)
	}
}

func TestCustomerRepository_Get(t *testing.T) {
	repo := memory.NewCustomerRepository()
	repo.Upsert(domain.Customer{ID: "c-1", Addresses: []domain.Address{{ID: "a-1", Country: "NL"}}})

	customer, err := repo.Get("c-1")
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if addr, ok := customer.DefaultAddress(); !ok || addr.ID != "a-1" {
		t.Fatalf("unexpected default address: %+v", addr)
	}
	if _, err := repo.Get("c-2"); !errors.Is(err, domain.ErrCustomerNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}
