package domain

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"

	"fleetdesk/internal/types"
)

// TestCanTransition verifies the state machine transition table.
func TestCanTransition(t *testing.T) {
	cases := []struct {
		from, to Status
		want     bool
	}{
		// intake and payment
		{StatusPendingVerification, StatusProcessing, true},
		{StatusPendingDispatch, StatusProcessing, true},
		// dispatch
		{StatusPendingDispatch, StatusAssigned, true},
		{StatusPendingVerification, StatusAssigned, true},
		{StatusProcessing, StatusAssigned, true},
		// delivery run
		{StatusAssigned, StatusEnRoute, true},
		{StatusAssigned, StatusDelivered, true},
		{StatusEnRoute, StatusDelivered, true},
		{StatusEnRoute, StatusFailed, true},
		{StatusEnRoute, StatusReturned, true},
		// cancellation only before dispatch
		{StatusPendingDispatch, StatusCancelled, true},
		{StatusProcessing, StatusCancelled, true},
		{StatusAssigned, StatusCancelled, false},
		{StatusEnRoute, StatusCancelled, false},
		// terminal statuses have no outgoing transitions
		{StatusDelivered, StatusReturned, false},
		{StatusDelivered, StatusDelivered, false},
		{StatusCancelled, StatusPendingDispatch, false},
		{StatusFailed, StatusFailed, false},
		{StatusReturned, StatusAssigned, false},
		// skipping states
		{StatusPendingDispatch, StatusDelivered, false},
		{StatusProcessing, StatusEnRoute, false},
	}
	for _, tc := range cases {
		if got := CanTransition(tc.from, tc.to); got != tc.want {
			t.Errorf("CanTransition(%s, %s) = %v, want %v", tc.from, tc.to, got, tc.want)
		}
	}
}

func TestTerminalStatusesHaveNoTransitions(t *testing.T) {
	for _, s := range AllStatuses {
		if s.Terminal() && len(NextStatuses(s)) != 0 {
			t.Errorf("terminal status %s has outgoing transitions %v", s, NextStatuses(s))
		}
		if !s.Terminal() && len(NextStatuses(s)) == 0 {
			t.Errorf("non-terminal status %s has no outgoing transitions", s)
		}
	}
}

func TestInitialStatus(t *testing.T) {
	s, p := InitialStatus(PaymentCOD)
	if s != StatusPendingDispatch || p != PaymentVerified {
		t.Fatalf("COD: got %s/%s", s, p)
	}
	s, p = InitialStatus(PaymentBankTransfer)
	if s != StatusPendingVerification || p != PaymentPending {
		t.Fatalf("bank transfer: got %s/%s", s, p)
	}
}

func TestOrderCloneIsDeep(t *testing.T) {
	driver := types.ID("d1")
	pos := 2
	o := &Order{
		ID:               "o1",
		Items:            []LineItem{{ProductID: "p1", Quantity: 1}},
		AssignedDriverID: &driver,
		RoutePosition:    &pos,
	}
	cp := o.Clone()
	cp.Items[0].Quantity = 9
	*cp.RoutePosition = 7
	if o.Items[0].Quantity != 1 || *o.RoutePosition != 2 {
		t.Fatal("clone shares memory with the original")
	}
}

func TestErrorCategories(t *testing.T) {
	cases := []struct {
		err  error
		kind error
	}{
		{ErrOrderNotFound, ErrNotFound},
		{ErrInsufficientStock, ErrPreconditionFailed},
		{ErrSettlementExceedsBalance, ErrPreconditionFailed},
		{ErrAlreadyAssigned, ErrConflict},
	}
	for _, tc := range cases {
		if !errors.Is(tc.err, tc.kind) {
			t.Errorf("%v does not unwrap to %v", tc.err, tc.kind)
		}
	}
}

func TestPositiveAmount(t *testing.T) {
	if err := PositiveAmount("amount", decimal.RequireFromString("40")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for _, s := range []string{"0", "-1", "1.005"} {
		if err := PositiveAmount("amount", decimal.RequireFromString(s)); !errors.Is(err, ErrBadRequest) {
			t.Errorf("%s: expected ErrBadRequest, got %v", s, err)
		}
	}
}

func TestValidate(t *testing.T) {
	type restock struct {
		ProductID string `json:"product_id" validate:"required"`
		Quantity  int    `json:"quantity" validate:"gt=0"`
	}
	if err := Validate(restock{ProductID: "p1", Quantity: 3}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	err := Validate(restock{ProductID: "p1", Quantity: 0})
	if !errors.Is(err, ErrBadRequest) {
		t.Fatalf("expected ErrBadRequest, got %v", err)
	}
}
