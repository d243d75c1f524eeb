// Package stock ведёт складской учёт: проверку доступности и однократное списание.
package stock

import (
	"errors"
	"fmt"
	"sync"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/shopcore/internal/domain"
	"github.com/vladislavdragonenkov/shopcore/internal/metrics"
)

// Option настраивает Ledger.
type Option func(*Ledger)

// WithLogger задаёт logger.
func WithLogger(logger *log.Entry) Option {
	return func(l *Ledger) {
		l.logger = logger
	}
}

// WithMetrics подключает счётчик отказов по остаткам.
func WithMetrics(m *metrics.CommerceMetrics) Option {
	return func(l *Ledger) {
		l.metrics = m
	}
}

// Ledger — единственная точка изменения остатков. Списание всех единиц заказа
// выполняется под общим мьютексом, поэтому проверка и списание не разрываются.
type Ledger struct {
	catalog domain.CatalogRepository
	stock   domain.StockRepository
	logger  *log.Entry
	metrics *metrics.CommerceMetrics

	mu sync.Mutex
}

// NewLedger создаёт складской учёт поверх каталога и хранилища остатков.
func NewLedger(catalog domain.CatalogRepository, stock domain.StockRepository, opts ...Option) *Ledger {
	l := &Ledger{catalog: catalog, stock: stock}
	for _, opt := range opts {
		opt(l)
	}
	if l.logger == nil {
		l.logger = log.WithField("component", "stock-ledger")
	}
	return l
}

// Resolve загружает продаваемую единицу. Для товара с вариациями вариация обязательна.
func (l *Ledger) Resolve(productID, variationID string) (domain.SellableUnit, error) {
	unit, err := l.load(domain.UnitRef{ProductID: productID, VariationID: variationID})
	if err != nil {
		return domain.SellableUnit{}, err
	}

	if variationID == "" {
		variations, err := l.catalog.ListVariations(productID)
		if err != nil {
			return domain.SellableUnit{}, fmt.Errorf("list variations: %w", err)
		}
		if len(variations) > 0 {
			return domain.SellableUnit{}, domain.ErrVariationRequired
		}
	}

	if !unit.IsActive() {
		return domain.SellableUnit{}, domain.ErrUnitInactive
	}
	return unit, nil
}

// CheckAvailable проверяет, что единицы хватает на qty штук.
func (l *Ledger) CheckAvailable(unit domain.Stockable, qty int) error {
	if qty <= 0 {
		return domain.ErrQuantityInvalid
	}
	level := unit.StockLevel()
	if level == nil || *level >= qty {
		return nil
	}
	l.metrics.RecordStockRejection()
	return &domain.StockUnavailableError{Unit: unit.Ref(), Requested: qty, Available: *level}
}

// CheckLines суммирует количество по единицам и проверяет каждую. Ничего не меняет.
func (l *Ledger) CheckLines(lines []domain.LineItem) error {
	for _, d := range aggregate(lines) {
		unit, err := l.load(d.ref)
		if err != nil {
			return err
		}
		if err := l.CheckAvailable(unit, d.qty); err != nil {
			return err
		}
	}
	return nil
}

// Consume списывает остатки всех строк или не списывает ничего.
func (l *Ledger) Consume(lines []domain.LineItem) error {
	demands := aggregate(lines)

	l.mu.Lock()
	defer l.mu.Unlock()

	for _, d := range demands {
		unit, err := l.load(d.ref)
		if err != nil {
			return err
		}
		if err := l.CheckAvailable(unit, d.qty); err != nil {
			return err
		}
	}

	consumed := make([]demand, 0, len(demands))
	for _, d := range demands {
		err := l.stock.Decrement(d.ref, d.qty)
		if err == nil {
			consumed = append(consumed, d)
			continue
		}

		l.restore(consumed)
		if errors.Is(err, domain.ErrInsufficientStock) {
			// Остаток изменили в обход Ledger между проверкой и списанием.
			available := 0
			if unit, loadErr := l.load(d.ref); loadErr == nil && unit.StockLevel() != nil {
				available = *unit.StockLevel()
			}
			l.metrics.RecordStockRejection()
			return &domain.StockUnavailableError{Unit: d.ref, Requested: d.qty, Available: available}
		}
		return fmt.Errorf("decrement stock for %s: %w", d.ref, err)
	}

	l.logger.WithField("units", len(consumed)).Debug("stock consumed")
	return nil
}

// Release возвращает остатки строк на склад (компенсация Consume).
func (l *Ledger) Release(lines []domain.LineItem) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	return l.restore(aggregate(lines))
}

// ProductAvailable — есть ли у товара хоть что-то на складе.
func (l *Ledger) ProductAvailable(productID string) (bool, error) {
	product, err := l.catalog.GetProduct(productID)
	if err != nil {
		return false, err
	}
	if !product.Active {
		return false, nil
	}

	variations, err := l.catalog.ListVariations(productID)
	if err != nil {
		return false, fmt.Errorf("list variations: %w", err)
	}
	if len(variations) == 0 {
		return inStock(product.Stock), nil
	}
	for _, v := range variations {
		if v.Active && inStock(v.Stock) {
			return true, nil
		}
	}
	return false, nil
}

func (l *Ledger) load(ref domain.UnitRef) (domain.SellableUnit, error) {
	product, err := l.catalog.GetProduct(ref.ProductID)
	if err != nil {
		return domain.SellableUnit{}, err
	}
	unit := domain.SellableUnit{Product: product}
	if ref.VariationID == "" {
		return unit, nil
	}

	variation, err := l.catalog.GetVariation(ref.VariationID)
	if err != nil {
		return domain.SellableUnit{}, err
	}
	if variation.ProductID != product.ID {
		return domain.SellableUnit{}, domain.ErrVariationMismatch
	}
	unit.Variation = &variation
	return unit, nil
}

// restore вызывается под l.mu.
func (l *Ledger) restore(demands []demand) error {
	var errs []error
	for _, d := range demands {
		if err := l.stock.Increment(d.ref, d.qty); err != nil {
			l.logger.WithFields(log.Fields{
				"unit":  d.ref.Key(),
				"qty":   d.qty,
				"error": err,
			}).Error("failed to restore stock")
			errs = append(errs, fmt.Errorf("restore stock for %s: %w", d.ref, err))
		}
	}
	return errors.Join(errs...)
}

type demand struct {
	ref domain.UnitRef
	qty int
}

// aggregate складывает количество одной единицы из разных строк, сохраняя порядок.
func aggregate(lines []domain.LineItem) []demand {
	index := make(map[domain.UnitRef]int, len(lines))
	result := make([]demand, 0, len(lines))
	for _, line := range lines {
		ref := line.Ref()
		if i, ok := index[ref]; ok {
			result[i].qty += line.Quantity
			continue
		}
		index[ref] = len(result)
		result = append(result, demand{ref: ref, qty: line.Quantity})
	}
	return result
}

func inStock(level *int) bool {
	return level == nil || *level > 0
}
