package domain

import (
	"errors"
	"fmt"
	"testing"
)

func TestTypedErrors_MatchSentinels(t *testing.T) {
	cases := []struct {
		err      error
		sentinel error
	}{
		{&StockUnavailableError{Unit: UnitRef{ProductID: "p"}, Requested: 2, Available: 1}, ErrStockUnavailable},
		{&AlreadyConfirmedError{OrderID: "o", InvoiceNumber: 1}, ErrAlreadyConfirmed},
		{&InvalidCouponError{Code: "x"}, ErrInvalidCoupon},
		{&NoEligibleShippingMethodError{Destination: "NL"}, ErrNoEligibleShippingMethod},
		{&PreconditionFailedError{Reason: "cart has no items"}, ErrPreconditionFailed},
		{&ConcurrentNumberingConflictError{Sequence: "order", Err: ErrOrderNumberTaken}, ErrConcurrentNumberingConflict},
		{&InvalidTransitionError{OrderID: "o", From: OrderStateNew, To: OrderStatePaid}, ErrInvalidTransition},
		{&DiscountExhaustedError{DiscountIDs: []string{"d"}}, ErrDiscountExhausted},
	}

	for _, tc := range cases {
		wrapped := fmt.Errorf("outer: %w", tc.err)
		if !errors.Is(wrapped, tc.sentinel) {
			t.Fatalf("expected %T to match %v", tc.err, tc.sentinel)
		}
	}
}

func TestConcurrentNumberingConflict_Unwrap(t *testing.T) {
	err := &ConcurrentNumberingConflictError{Sequence: "order", Number: "WS1", Err: ErrOrderNumberTaken}
	if !errors.Is(err, ErrOrderNumberTaken) {
		t.Fatal("expected unwrap to expose ErrOrderNumberTaken")
	}
}

func TestIsNotFound(t *testing.T) {
	if !IsNotFound(fmt.Errorf("load: %w", ErrCartNotFound)) {
		t.Fatal("expected cart not found to be reported")
	}
	if IsNotFound(ErrStockUnavailable) {
		t.Fatal("stock error is not a not-found error")
	}
}
