package domain

import (
	"testing"

	"github.com/shopspring/decimal"
)

func TestVAT(t *testing.T) {
	vat := NewVAT(decimal.NewFromInt(19))
	amount := decimal.RequireFromString("100.00")

	if got := vat.Amount(amount); !got.Equal(decimal.RequireFromString("19")) {
		t.Fatalf("expected 19, got %s", got)
	}
	if got := vat.Inclusive(amount); !got.Equal(decimal.RequireFromString("119")) {
		t.Fatalf("expected 119, got %s", got)
	}
	if got := vat.Exclusive(decimal.RequireFromString("119")); !got.Equal(amount) {
		t.Fatalf("expected 100, got %s", got)
	}
}

func TestNonNegative(t *testing.T) {
	if got := NonNegative(decimal.NewFromInt(-3)); !got.IsZero() {
		t.Fatalf("expected zero, got %s", got)
	}
	if got := Percent(decimal.RequireFromString("10.00"), decimal.NewFromInt(10)); !got.Equal(decimal.NewFromInt(1)) {
		t.Fatalf("expected 1, got %s", got)
	}
}
