package domain

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// DiscountScope ограничивает строки, на которые действует скидка.
type DiscountScope string

const (
	DiscountScopeAll        DiscountScope = "all"
	DiscountScopeProducts   DiscountScope = "products"
	DiscountScopeCategories DiscountScope = "categories"
)

// Discount — правило скидки каталога.
type Discount struct {
	ID   string
	Name string

	// Фиксированная скидка на заказ, применяется один раз.
	OrderAmount *decimal.Decimal
	// Процент от суммы заказа до скидок.
	OrderPercentage *decimal.Decimal
	// Фиксированная скидка за штуку в подходящих строках.
	ItemAmount *decimal.Decimal
	// Процент от суммы подходящих строк.
	ItemPercentage *decimal.Decimal

	Scope       DiscountScope
	ProductIDs  []string
	CategoryIDs []string

	UseCoupon  bool
	CouponCode string

	// UseLimit == nil - без ограничения.
	UseLimit *int
	Used     int

	ValidFrom  *time.Time
	ValidUntil *time.Time
}

// RequiresCoupon сообщает, что скидка действует только по купону.
func (d Discount) RequiresCoupon() bool {
	return d.UseCoupon || strings.TrimSpace(d.CouponCode) != ""
}

// MatchesCoupon сравнивает код купона с учётом регистра, без пробелов по краям.
func (d Discount) MatchesCoupon(code string) bool {
	code = strings.TrimSpace(code)
	own := strings.TrimSpace(d.CouponCode)
	return code != "" && own != "" && own == code
}

// ActiveAt проверяет период действия (границы включительно).
func (d Discount) ActiveAt(now time.Time) bool {
	if d.ValidFrom != nil && now.Before(*d.ValidFrom) {
		return false
	}
	if d.ValidUntil != nil && now.After(*d.ValidUntil) {
		return false
	}
	return true
}

// UsesLeft возвращает остаток использований; limited=false для безлимитных скидок.
func (d Discount) UsesLeft() (left int, limited bool) {
	if d.UseLimit == nil {
		return 0, false
	}
	left = *d.UseLimit - d.Used
	if left < 0 {
		left = 0
	}
	return left, true
}

// Exhausted — лимит использований исчерпан.
func (d Discount) Exhausted() bool {
	left, limited := d.UsesLeft()
	return limited && left == 0
}

// MatchesLine проверяет, попадает ли строка в область действия скидки.
func (d Discount) MatchesLine(line LineItem) bool {
	switch d.Scope {
	case DiscountScopeProducts:
		return contains(d.ProductIDs, line.ProductID)
	case DiscountScopeCategories:
		return intersects(line.CategoryIDs, d.CategoryIDs)
	default:
		return true
	}
}

// MatchesAny — хотя бы одна строка подходит под скидку.
func (d Discount) MatchesAny(lines []LineItem) bool {
	for _, line := range lines {
		if d.MatchesLine(line) {
			return true
		}
	}
	return false
}
