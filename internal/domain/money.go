package domain

import "github.com/shopspring/decimal"

// MoneyPlaces — количество знаков после запятой для денежных сумм.
const MoneyPlaces = 2

var hundred = decimal.NewFromInt(100)

// RoundMoney округляет сумму до копеек.
func RoundMoney(v decimal.Decimal) decimal.Decimal {
	return v.Round(MoneyPlaces)
}

// Percent возвращает pct% от суммы без округления.
func Percent(v, pct decimal.Decimal) decimal.Decimal {
	return v.Mul(pct).Div(hundred)
}

// NonNegative зажимает отрицательные суммы в ноль.
func NonNegative(v decimal.Decimal) decimal.Decimal {
	if v.IsNegative() {
		return decimal.Zero
	}
	return v
}

// VAT — плоская ставка НДС, единая для всего магазина.
type VAT struct {
	percentage decimal.Decimal
	factor     decimal.Decimal
}

// NewVAT создаёт ставку из процента (например, 19).
func NewVAT(percentage decimal.Decimal) VAT {
	return VAT{
		percentage: percentage,
		factor:     percentage.Div(hundred),
	}
}

// Percentage возвращает ставку в процентах.
func (v VAT) Percentage() decimal.Decimal {
	return v.percentage
}

// Amount возвращает сумму налога для суммы без НДС.
func (v VAT) Amount(amount decimal.Decimal) decimal.Decimal {
	return RoundMoney(amount.Mul(v.factor))
}

// Inclusive возвращает сумму с НДС.
func (v VAT) Inclusive(amount decimal.Decimal) decimal.Decimal {
	return RoundMoney(amount.Mul(decimal.NewFromInt(1).Add(v.factor)))
}

// Exclusive выделяет сумму без НДС из суммы с НДС.
func (v VAT) Exclusive(amount decimal.Decimal) decimal.Decimal {
	return RoundMoney(amount.Div(decimal.NewFromInt(1).Add(v.factor)))
}
