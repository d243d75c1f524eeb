package app

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/shopcore/internal/domain"
	"github.com/vladislavdragonenkov/shopcore/internal/metrics"
	"github.com/vladislavdragonenkov/shopcore/internal/service/cart"
	"github.com/vladislavdragonenkov/shopcore/internal/service/discount"
	"github.com/vladislavdragonenkov/shopcore/internal/service/notify"
	"github.com/vladislavdragonenkov/shopcore/internal/service/numbering"
	"github.com/vladislavdragonenkov/shopcore/internal/service/order"
	"github.com/vladislavdragonenkov/shopcore/internal/service/payment"
	"github.com/vladislavdragonenkov/shopcore/internal/service/pricing"
	"github.com/vladislavdragonenkov/shopcore/internal/service/shipping"
	"github.com/vladislavdragonenkov/shopcore/internal/service/stock"
	"github.com/vladislavdragonenkov/shopcore/internal/storage/memory"
	"github.com/vladislavdragonenkov/shopcore/internal/storage/postgres"
)

// CatalogStore — каталог с остатками и записью, нужной для загрузки seed.
type CatalogStore interface {
	domain.CatalogRepository
	domain.StockRepository
	UpsertCategory(category domain.Category) error
	UpsertProduct(product domain.Product) error
	UpsertVariation(variation domain.Variation) error
}

// CustomerStore — клиенты с записью для seed.
type CustomerStore interface {
	domain.CustomerRepository
	Upsert(customer domain.Customer) error
}

// Repositories — набор хранилищ одного backend.
type Repositories struct {
	Catalog   CatalogStore
	Customers CustomerStore
	Carts     domain.CartRepository
	Orders    domain.OrderRepository
	States    domain.StateChangeRepository
	Discounts domain.DiscountRepository
	Shipping  domain.ShippingMethodRepository
	Sequences domain.SequenceRepository
	Outbox    domain.OutboxRepository
	Processed domain.ProcessedEventRepository
}

// NewMemoryRepositories создаёт in-memory хранилища.
func NewMemoryRepositories() Repositories {
	return Repositories{
		Catalog:   memory.NewCatalogRepository(),
		Customers: memory.NewCustomerRepository(),
		Carts:     memory.NewCartRepository(),
		Orders:    memory.NewOrderRepository(),
		States:    memory.NewStateChangeRepository(),
		Discounts: memory.NewDiscountRepository(),
		Shipping:  memory.NewShippingMethodRepository(),
		Sequences: memory.NewSequenceRepository(),
		Outbox:    memory.NewOutboxRepository(),
		Processed: memory.NewProcessedEventRepository(),
	}
}

// NewPostgresRepositories создаёт хранилища поверх одного подключения.
func NewPostgresRepositories(store *postgres.Store) Repositories {
	return Repositories{
		Catalog:   postgres.NewCatalogRepository(store),
		Customers: postgres.NewCustomerRepository(store),
		Carts:     postgres.NewCartRepository(store),
		Orders:    postgres.NewOrderRepository(store),
		States:    postgres.NewStateChangeRepository(store),
		Discounts: postgres.NewDiscountRepository(store),
		Shipping:  postgres.NewShippingMethodRepository(store),
		Sequences: postgres.NewSequenceRepository(store),
		Outbox:    postgres.NewOutboxRepository(store),
		Processed: postgres.NewProcessedEventRepository(store),
	}
}

// Dependencies содержит все зависимости приложения.
type Dependencies struct {
	Repos Repositories
	// Store != nil только для postgres.
	Store *postgres.Store

	Metrics  *metrics.CommerceMetrics
	Ledger   *stock.Ledger
	Resolver *discount.Resolver
	Selector *shipping.Selector
	Pricing  *pricing.Calculator
	Numbers  *numbering.Allocator
	Carts    *cart.Service
	Orders   *order.Service
	Notifier domain.Notifier
	Payments *payment.Handler

	Logger *log.Entry
}

// NewDependencies открывает хранилище по конфигурации и собирает сервисы.
func NewDependencies(ctx context.Context, cfg Config, registerer prometheus.Registerer, logger *log.Entry) (*Dependencies, error) {
	if logger == nil {
		logger = log.WithField("component", "app")
	}

	switch cfg.StorageDriver {
	case StorageDriverPostgres:
		store, err := postgres.Open(ctx, cfg.PostgresDSN)
		if err != nil {
			return nil, fmt.Errorf("open postgres: %w", err)
		}
		if cfg.PostgresAutoMigrate {
			if err := store.EnsureSchema(ctx); err != nil {
				_ = store.Close()
				return nil, fmt.Errorf("migrate postgres: %w", err)
			}
		}
		logger.Info("postgres storage initialized")
		deps, err := Wire(cfg, NewPostgresRepositories(store), registerer, logger)
		if err != nil {
			_ = store.Close()
			return nil, err
		}
		deps.Store = store
		return deps, nil
	case StorageDriverMemory, "":
		logger.Info("in-memory storage initialized")
		return Wire(cfg, NewMemoryRepositories(), registerer, logger)
	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.StorageDriver)
	}
}

// Wire собирает сервисы поверх готовых хранилищ.
func Wire(cfg Config, repos Repositories, registerer prometheus.Registerer, logger *log.Entry) (*Dependencies, error) {
	if logger == nil {
		logger = log.WithField("component", "app")
	}
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}
	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}

	m := metrics.NewCommerceMetricsWithRegisterer(registerer)
	deps := &Dependencies{Repos: repos, Metrics: m, Logger: logger}

	deps.Ledger = stock.NewLedger(repos.Catalog, repos.Catalog,
		stock.WithLogger(logger.WithField("component", "stock-ledger")),
		stock.WithMetrics(m),
	)
	deps.Resolver = discount.NewResolver(repos.Discounts,
		discount.WithLogger(logger.WithField("component", "discount-resolver")),
		discount.WithMetrics(m),
	)
	deps.Selector = shipping.NewSelector(repos.Shipping, logger.WithField("component", "shipping-selector"))
	deps.Pricing = pricing.NewCalculator(deps.Resolver, deps.Selector, domain.NewVAT(cfg.VATPercentage))
	deps.Numbers = numbering.NewAllocator(repos.Sequences, numbering.Config{
		OrderPrefix:  cfg.OrderPrefix,
		InvoiceStart: cfg.InvoiceStart,
		Location:     loc,
	}, logger.WithField("component", "numbering"))
	deps.Carts = cart.NewService(repos.Carts, repos.Catalog, repos.Customers, deps.Ledger, deps.Resolver, deps.Pricing,
		cart.WithLogger(logger.WithField("component", "cart-service")),
	)
	deps.Notifier = notify.NewOutboxNotifier(repos.Outbox, cfg.ManagerEmails, logger.WithField("component", "notifier"))

	orderOpts := []order.Option{
		order.WithLogger(logger.WithField("component", "order-service")),
		order.WithMetrics(m),
	}
	if cfg.ArticleWidth > 0 {
		orderOpts = append(orderOpts, order.WithArticleWidth(cfg.ArticleWidth))
	}
	deps.Orders = order.NewService(order.Deps{
		Orders:    repos.Orders,
		States:    repos.States,
		Carts:     repos.Carts,
		Catalog:   repos.Catalog,
		Customers: repos.Customers,
		Discounts: repos.Discounts,
		Ledger:    deps.Ledger,
		Pricing:   deps.Pricing,
		Numbers:   deps.Numbers,
		Notifier:  deps.Notifier,
	}, orderOpts...)

	deps.Payments = payment.NewHandler(deps.Orders, repos.Processed, payment.HandlerConfig{
		DedupTTL: cfg.ProcessedEventTTL,
		Metrics:  m,
	}, logger.WithField("component", "payment-handler"))

	return deps, nil
}

// Close освобождает подключение к БД, если оно есть.
func (d *Dependencies) Close() error {
	if d == nil || d.Store == nil {
		return nil
	}
	if err := d.Store.Close(); err != nil {
		return fmt.Errorf("close postgres: %w", err)
	}
	return nil
}
