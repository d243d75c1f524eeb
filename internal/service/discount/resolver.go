// Package discount вычисляет скидки корзины и заказа по каталогу правил.
package discount

import (
	"fmt"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/shopcore/internal/domain"
	"github.com/vladislavdragonenkov/shopcore/internal/metrics"
)

// couponLength - длина сгенерированного кода купона.
const couponLength = 8

// Option настраивает Resolver.
type Option func(*Resolver)

// WithLogger задаёт logger.
func WithLogger(logger *log.Entry) Option {
	return func(r *Resolver) {
		r.logger = logger
	}
}

// WithClock подменяет источник времени (тесты, пересчёт на дату).
func WithClock(clock domain.Clock) Option {
	return func(r *Resolver) {
		r.clock = clock
	}
}

// WithMetrics подключает счётчик отклонённых купонов.
func WithMetrics(m *metrics.CommerceMetrics) Option {
	return func(r *Resolver) {
		r.metrics = m
	}
}

// ResolveOption уточняет один расчёт.
type ResolveOption func(*resolveConfig)

type resolveConfig struct {
	onlyCoupon bool
}

// WithOnlyCoupon оставляет в результате только скидки с кодом купона корзины.
func WithOnlyCoupon() ResolveOption {
	return func(c *resolveConfig) {
		c.onlyCoupon = true
	}
}

// Result — итог расчёта скидок.
type Result struct {
	Subtotal decimal.Decimal
	// Discount уже ограничен суммой строк.
	Discount decimal.Decimal
	Applied  []domain.Discount
	// LineDiscounts выровнен по индексам строк и содержит только скидки на позиции.
	LineDiscounts []decimal.Decimal
}

// AppliedIDs возвращает идентификаторы применённых скидок в порядке каталога.
func (r Result) AppliedIDs() []string {
	ids := make([]string, 0, len(r.Applied))
	for _, d := range r.Applied {
		ids = append(ids, d.ID)
	}
	return ids
}

// Resolver применяет правила скидок. Счётчики использования не меняет.
type Resolver struct {
	discounts domain.DiscountRepository
	clock     domain.Clock
	logger    *log.Entry
	metrics   *metrics.CommerceMetrics
}

// NewResolver создаёт калькулятор скидок поверх каталога правил.
func NewResolver(discounts domain.DiscountRepository, opts ...Option) *Resolver {
	r := &Resolver{discounts: discounts}
	for _, opt := range opts {
		opt(r)
	}
	if r.clock == nil {
		r.clock = domain.SystemClock{}
	}
	if r.logger == nil {
		r.logger = log.WithField("component", "discount-resolver")
	}
	return r
}

// Resolve подбирает действующие скидки и суммирует их вклад.
func (r *Resolver) Resolve(basket domain.Discountable, opts ...ResolveOption) (Result, error) {
	var cfg resolveConfig
	for _, opt := range opts {
		opt(&cfg)
	}

	lines := basket.DiscountLines()
	coupon := strings.TrimSpace(basket.Coupon())
	result := Result{
		Subtotal:      domain.SubtotalOf(lines),
		Discount:      decimal.Zero,
		LineDiscounts: make([]decimal.Decimal, len(lines)),
	}
	for i := range result.LineDiscounts {
		result.LineDiscounts[i] = decimal.Zero
	}

	catalog, err := r.discounts.List()
	if err != nil {
		return Result{}, fmt.Errorf("list discounts: %w", err)
	}

	now := r.clock.Now()
	total := decimal.Zero
	for _, d := range catalog {
		if !r.applicable(d, lines, coupon, now, cfg) {
			continue
		}
		total = total.Add(r.contribution(d, lines, result.LineDiscounts))
		result.Applied = append(result.Applied, d)
	}

	if total.GreaterThan(result.Subtotal) {
		total = result.Subtotal
	}
	result.Discount = domain.RoundMoney(total)
	for i, v := range result.LineDiscounts {
		result.LineDiscounts[i] = domain.RoundMoney(v)
	}

	if len(result.Applied) > 0 {
		r.logger.WithFields(log.Fields{
			"discounts": result.AppliedIDs(),
			"discount":  result.Discount.StringFixed(domain.MoneyPlaces),
		}).Debug("discounts resolved")
	}
	return result, nil
}

// ValidateCoupon проверяет, что код даёт хотя бы одну действующую скидку для корзины.
func (r *Resolver) ValidateCoupon(basket domain.Discountable, code string) error {
	code = strings.TrimSpace(code)
	if code == "" {
		r.metrics.RecordCouponRejection()
		return &domain.InvalidCouponError{Code: code}
	}

	probe := domain.Basket{Lines: basket.DiscountLines(), CouponCode: code}
	result, err := r.Resolve(probe, WithOnlyCoupon())
	if err != nil {
		return err
	}
	if len(result.Applied) == 0 {
		r.metrics.RecordCouponRejection()
		return &domain.InvalidCouponError{Code: code}
	}
	return nil
}

// UsesLeft возвращает остаток использований скидки; false - лимита нет.
func (r *Resolver) UsesLeft(discount domain.Discount) (int, bool) {
	return discount.UsesLeft()
}

// Prepare дополняет скидку перед сохранением: выдаёт код купона, если он
// нужен, но не задан.
func (r *Resolver) Prepare(discount domain.Discount) domain.Discount {
	discount.CouponCode = strings.TrimSpace(discount.CouponCode)
	if discount.UseCoupon && discount.CouponCode == "" {
		discount.CouponCode = NewCouponCode()
	}
	if discount.Scope == "" {
		discount.Scope = domain.DiscountScopeAll
	}
	return discount
}

// NewCouponCode генерирует случайный код купона из случайной части ULID.
func NewCouponCode() string {
	id := ulid.Make().String()
	return id[len(id)-couponLength:]
}

func (r *Resolver) applicable(d domain.Discount, lines []domain.LineItem, coupon string, now time.Time, cfg resolveConfig) bool {
	if !d.ActiveAt(now) {
		return false
	}
	if d.RequiresCoupon() && !d.MatchesCoupon(coupon) {
		return false
	}
	if cfg.onlyCoupon && !d.MatchesCoupon(coupon) {
		return false
	}
	if d.Exhausted() {
		return false
	}
	return d.MatchesAny(lines)
}

// contribution считает вклад одной скидки и добавляет скидки на позиции в perLine.
func (r *Resolver) contribution(d domain.Discount, lines []domain.LineItem, perLine []decimal.Decimal) decimal.Decimal {
	subtotal := domain.SubtotalOf(lines)
	total := decimal.Zero

	if d.OrderAmount != nil {
		total = total.Add(*d.OrderAmount)
	}
	if d.OrderPercentage != nil {
		total = total.Add(domain.Percent(subtotal, *d.OrderPercentage))
	}

	if d.ItemAmount == nil && d.ItemPercentage == nil {
		return total
	}
	for i, line := range lines {
		if !d.MatchesLine(line) {
			continue
		}
		lineTotal := line.Subtotal()
		value := decimal.Zero
		if d.ItemAmount != nil {
			amount := d.ItemAmount.Mul(decimal.NewFromInt(int64(line.Quantity)))
			if amount.GreaterThan(lineTotal) {
				amount = lineTotal
			}
			value = value.Add(amount)
		}
		if d.ItemPercentage != nil {
			value = value.Add(domain.Percent(lineTotal, *d.ItemPercentage))
		}
		if value.GreaterThan(lineTotal) {
			value = lineTotal
		}
		perLine[i] = perLine[i].Add(value)
		total = total.Add(value)
	}
	return total
}
