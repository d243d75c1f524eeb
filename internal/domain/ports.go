package domain

import (
	"context"
	"time"
)

// CatalogRepository — чтение каталога товаров.
type CatalogRepository interface {
	GetProduct(id string) (Product, error)
	GetVariation(id string) (Variation, error)
	// ListVariations возвращает вариации товара в порядке каталога.
	ListVariations(productID string) ([]Variation, error)
}

// StockRepository хранит остатки. Операции атомарны на уровне одной единицы.
type StockRepository interface {
	// Decrement списывает qty, только если остаток не меньше qty; иначе ErrInsufficientStock.
	// Для единиц без учёта остатка ничего не делает.
	Decrement(ref UnitRef, qty int) error
	// Increment возвращает qty на склад.
	Increment(ref UnitRef, qty int) error
}

// CustomerRepository — чтение клиентов.
type CustomerRepository interface {
	Get(id string) (Customer, error)
}

// CartRepository описывает требования к хранилищу корзин.
type CartRepository interface {
	Create(cart Cart) error
	Get(id string) (Cart, error)
	// Save применяет изменения с учётом optimistic locking.
	Save(cart Cart) error
	Delete(id string) error
}

// OrderRepository описывает требования к хранилищу заказов.
type OrderRepository interface {
	// Create сохраняет новый заказ. Повтор номера заказа - ErrOrderNumberTaken.
	Create(order Order) error
	// Get возвращает заказ по идентификатору или ErrOrderNotFound, если его нет.
	Get(id string) (Order, error)
	GetByNumber(orderNumber string) (Order, error)
	// ListByCart возвращает заказы, созданные из корзины.
	ListByCart(cartID string) ([]Order, error)
	// Save применяет обновления к заказу с учётом optimistic locking.
	Save(order Order) error
	Delete(id string) error
}

// StateChangeRepository хранит журнал состояний заказа.
type StateChangeRepository interface {
	Append(change OrderStateChange) error
	List(orderID string) ([]OrderStateChange, error)
	// Latest возвращает последнюю запись или ErrStateChangeNotFound.
	Latest(orderID string) (OrderStateChange, error)
}

// DiscountRepository — каталог скидок и счётчики использования.
type DiscountRepository interface {
	// List возвращает скидки в порядке добавления.
	List() ([]Discount, error)
	Get(id string) (Discount, error)
	Create(discount Discount) error
	// IncrementUsage увеличивает used на 1, если лимит не достигнут; иначе ErrDiscountUseLimitReached.
	IncrementUsage(id string) error
	// DecrementUsage откатывает инкремент (компенсация).
	DecrementUsage(id string) error
}

// ShippingMethodRepository — каталог способов доставки.
type ShippingMethodRepository interface {
	// List возвращает способы в порядке каталога.
	List() ([]ShippingMethod, error)
	Create(method ShippingMethod) error
}

// SequenceRepository выдаёт значения именованных счётчиков.
type SequenceRepository interface {
	// Next атомарно увеличивает счётчик и возвращает новое значение.
	// Новый счётчик начинается со start.
	Next(name string, start int64) (int64, error)
}

// OutboxPublisher публикует события из transactional outbox.
type OutboxPublisher interface {
	// Publish передаёт событие наружу; должен быть идемпотентным.
	Publish(event OutboxMessage) error
}

// OutboxRepository позволяет сохранять события для последующей публикации.
type OutboxRepository interface {
	Enqueue(msg OutboxMessage) (OutboxMessage, error)
	PullPending(limit int) ([]OutboxMessage, error)
	Stats() (OutboxStats, error)
	MarkSent(id string) error
	MarkFailed(id string) error
}

// ProcessedEventRepository хранит ключи обработанных входящих событий.
type ProcessedEventRepository interface {
	// MarkProcessed возвращает false, если ключ уже был обработан.
	MarkProcessed(key, source string, expiresAt time.Time) (bool, error)
	// Forget снимает отметку, чтобы событие можно было обработать повторно.
	Forget(key string) error
	DeleteExpired(before time.Time, limit int) (int, error)
}

// Notifier доставляет уведомления о смене состояния. Ошибки не влияют на заказ.
type Notifier interface {
	Send(ctx context.Context, kind NotificationKind, order Order, change OrderStateChange, customer Customer) error
}

// Clock — источник текущего времени.
type Clock interface {
	Now() time.Time
}

// SystemClock возвращает время в UTC.
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now().UTC() }

// ClockFunc адаптирует функцию к Clock.
type ClockFunc func() time.Time

func (f ClockFunc) Now() time.Time { return f() }

// OutboxMessage хранит данные для публикуемого события.
type OutboxMessage struct {
	ID            string
	AggregateType string
	AggregateID   string
	EventType     string
	Payload       []byte
}

// OutboxStats описывает текущее состояние backlog transactional outbox.
type OutboxStats struct {
	PendingCount    int
	OldestPendingAt time.Time
}
