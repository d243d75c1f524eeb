// Package order оформляет заказы из корзин и ведёт их жизненный цикл:
// пересчёт, подтверждение со списанием остатков и смену состояний.
package order

import (
	"context"
	"sync"

	"github.com/microcosm-cc/bluemonday"
	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/vladislavdragonenkov/shopcore/internal/domain"
	"github.com/vladislavdragonenkov/shopcore/internal/metrics"
	"github.com/vladislavdragonenkov/shopcore/internal/service/numbering"
	"github.com/vladislavdragonenkov/shopcore/internal/service/pricing"
	"github.com/vladislavdragonenkov/shopcore/internal/service/stock"
)

const tracerName = "github.com/vladislavdragonenkov/shopcore/internal/service/order"

// DefaultArticleWidth — ширина поля артикула в снимке позиции.
const DefaultArticleWidth = 6

// confirmMu сериализует подтверждения во всём процессе: проверка остатков,
// списание и выдача номера счёта не должны пересекаться между заказами.
var confirmMu sync.Mutex

// Deps — зависимости сервиса заказов.
type Deps struct {
	Orders    domain.OrderRepository
	States    domain.StateChangeRepository
	Carts     domain.CartRepository
	Catalog   domain.CatalogRepository
	Customers domain.CustomerRepository
	Discounts domain.DiscountRepository
	Ledger    *stock.Ledger
	Pricing   *pricing.Calculator
	Numbers   *numbering.Allocator
	Notifier  domain.Notifier
}

// Option настраивает Service.
type Option func(*Service)

// WithLogger задаёт logger.
func WithLogger(logger *log.Entry) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

// WithClock подменяет источник времени.
func WithClock(clock domain.Clock) Option {
	return func(s *Service) {
		s.clock = clock
	}
}

// WithMetrics подключает метрики заказов.
func WithMetrics(m *metrics.CommerceMetrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

// WithArticleWidth задаёт ширину артикула.
func WithArticleWidth(width int) Option {
	return func(s *Service) {
		s.articleWidth = width
	}
}

// WithTracerProvider подменяет провайдер трассировки (по умолчанию глобальный).
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(s *Service) {
		s.tracer = tp.Tracer(tracerName)
	}
}

// Service — сервис заказов.
type Service struct {
	orders    domain.OrderRepository
	states    domain.StateChangeRepository
	carts     domain.CartRepository
	catalog   domain.CatalogRepository
	customers domain.CustomerRepository
	discounts domain.DiscountRepository
	ledger    *stock.Ledger
	pricing   *pricing.Calculator
	numbers   *numbering.Allocator
	notifier  domain.Notifier

	clock        domain.Clock
	logger       *log.Entry
	metrics      *metrics.CommerceMetrics
	tracer       trace.Tracer
	sanitizer    *bluemonday.Policy
	articleWidth int
}

// NewService создаёт сервис заказов.
func NewService(deps Deps, opts ...Option) *Service {
	s := &Service{
		orders:       deps.Orders,
		states:       deps.States,
		carts:        deps.Carts,
		catalog:      deps.Catalog,
		customers:    deps.Customers,
		discounts:    deps.Discounts,
		ledger:       deps.Ledger,
		pricing:      deps.Pricing,
		numbers:      deps.Numbers,
		notifier:     deps.Notifier,
		sanitizer:    bluemonday.StrictPolicy(),
		articleWidth: DefaultArticleWidth,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.clock == nil {
		s.clock = domain.SystemClock{}
	}
	if s.logger == nil {
		s.logger = log.WithField("component", "order-service")
	}
	if s.tracer == nil {
		s.tracer = otel.Tracer(tracerName)
	}
	return s
}

// Get возвращает заказ по идентификатору.
func (s *Service) Get(orderID string) (domain.Order, error) {
	return s.orders.Get(orderID)
}

// GetByNumber возвращает заказ по номеру.
func (s *Service) GetByNumber(orderNumber string) (domain.Order, error) {
	return s.orders.GetByNumber(orderNumber)
}

func (s *Service) startSpan(ctx context.Context, name, orderID string) (context.Context, trace.Span) {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, span := s.tracer.Start(ctx, name)
	if orderID != "" {
		span.SetAttributes(attribute.String("order.id", orderID))
	}
	return ctx, span
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

// save сохраняет заказ и синхронизирует версию локальной копии.
func (s *Service) save(order *domain.Order) error {
	order.UpdatedAt = s.clock.Now()
	if err := s.orders.Save(*order); err != nil {
		return err
	}
	order.Version++
	return nil
}
