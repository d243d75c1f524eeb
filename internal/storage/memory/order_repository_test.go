package memory_test

import (
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/vladislavdragonenkov/shopcore/internal/domain"
	"github.com/vladislavdragonenkov/shopcore/internal/storage/memory"
)

func newOrder(id, number string) domain.Order {
	now := time.Now().UTC()
	return domain.Order{
		ID:          id,
		CartID:      "cart-1",
		CustomerID:  "customer-1",
		OrderNumber: number,
		State:       domain.OrderStateNew,
		Items: []domain.OrderItem{
			{ID: "item-1", ProductID: "p-1", Quantity: 5, PiecePrice: decimal.NewFromInt(10), CategoryIDs: []string{"c-1"}},
		},
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func TestOrderRepository_CreateGet(t *testing.T) {
	repo := memory.NewOrderRepository()
	order := newOrder("order-1", "WS20240101001")

	if err := repo.Create(order); err != nil {
		t.Fatalf("create failed: %v", err)
	}

	stored, err := repo.Get(order.ID)
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if stored.OrderNumber != order.OrderNumber {
		t.Fatalf("expected number %s, got %s", order.OrderNumber, stored.OrderNumber)
	}

	byNumber, err := repo.GetByNumber(order.OrderNumber)
	if err != nil {
		t.Fatalf("get by number failed: %v", err)
	}
	if byNumber.ID != order.ID {
		t.Fatalf("expected id %s, got %s", order.ID, byNumber.ID)
	}
}

func TestOrderRepository_DuplicateNumber(t *testing.T) {
	repo := memory.NewOrderRepository()
	if err := repo.Create(newOrder("order-1", "WS20240101001")); err != nil {
		t.Fatalf("create failed: %v", err)
	}

	err := repo.Create(newOrder("order-2", "WS20240101001"))
	if !errors.Is(err, domain.ErrOrderNumberTaken) {
		t.Fatalf("expected ErrOrderNumberTaken, got %v", err)
	}
}

func TestOrderRepository_SaveVersionConflict(t *testing.T) {
	repo := memory.NewOrderRepository()
	order := newOrder("order-1", "WS20240101001")
	if err := repo.Create(order); err != nil {
		t.Fatalf("create failed: %v", err)
	}

	stored, _ := repo.Get(order.ID)
	stored.InvoiceNumber = 7
	if err := repo.Save(stored); err != nil {
		t.Fatalf("save failed: %v", err)
	}

	updated, _ := repo.Get(order.ID)
	if updated.Version != 1 || updated.InvoiceNumber != 7 {
		t.Fatalf("unexpected stored order: version=%d invoice=%d", updated.Version, updated.InvoiceNumber)
	}

	// stored всё ещё держит версию 0.
	if err := repo.Save(stored); !errors.Is(err, domain.ErrOrderVersionConflict) {
		t.Fatalf("expected version conflict, got %v", err)
	}
}

func TestOrderRepository_ReturnsCopies(t *testing.T) {
	repo := memory.NewOrderRepository()
	if err := repo.Create(newOrder("order-1", "WS20240101001")); err != nil {
		t.Fatalf("create failed: %v", err)
	}

	first, _ := repo.Get("order-1")
	first.Items[0].Quantity = 99
	first.Items[0].CategoryIDs[0] = "mutated"

	second, _ := repo.Get("order-1")
	if second.Items[0].Quantity != 5 || second.Items[0].CategoryIDs[0] != "c-1" {
		t.Fatal("stored order was mutated through a returned copy")
	}
}

func TestOrderRepository_ListByCartAndDelete(t *testing.T) {
	repo := memory.NewOrderRepository()
	older := newOrder("order-1", "WS20240101001")
	newer := newOrder("order-2", "WS20240101002")
	newer.CreatedAt = older.CreatedAt.Add(time.Minute)
	other := newOrder("order-3", "WS20240101003")
	other.CartID = "cart-2"

	for _, o := range []domain.Order{older, newer, other} {
		if err := repo.Create(o); err != nil {
			t.Fatalf("create failed: %v", err)
		}
	}

	orders, err := repo.ListByCart("cart-1")
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(orders) != 2 || orders[0].ID != "order-2" {
		t.Fatalf("unexpected orders: %+v", orders)
	}

	if err := repo.Delete("order-1"); err != nil {
		t.Fatalf("delete failed: %v", err)
	}
	if _, err := repo.GetByNumber("WS20240101001"); !errors.Is(err, domain.ErrOrderNotFound) {
		t.Fatalf("expected not found after delete, got %v", err)
	}
	if err := repo.Delete("order-1"); !errors.Is(err, domain.ErrOrderNotFound) {
		t.Fatalf("expected not found on second delete, got %v", err)
	}
}
