package inventory

import (
	"context"
	"errors"
	"math"
	"strings"
	"testing"

	"fleetdesk/internal/domain"
	"fleetdesk/internal/store"
	"fleetdesk/internal/store/memstore"
	"fleetdesk/internal/types"
)

func seedProduct(t *testing.T, svc *Service, id types.ID, stock int) {
	t.Helper()
	_, err := svc.CreateProduct(context.Background(), CreateProductCommand{
		ID:         id,
		SKU:        "SKU-" + string(id),
		Name:       "Product " + string(id),
		Price:      types.MustMoney("8.50"),
		StockLevel: stock,
		Actor:      "admin-1",
	})
	if err != nil {
		t.Fatalf("create product %s: %v", id, err)
	}
}

func stockOf(t *testing.T, s store.Reader, id types.ID) int {
	t.Helper()
	p, err := s.GetProduct(context.Background(), id)
	if err != nil {
		t.Fatalf("get product %s: %v", id, err)
	}
	return p.StockLevel
}

func TestRestock(t *testing.T) {
	s := memstore.New()
	svc := NewService(s, 0)
	ctx := context.Background()
	seedProduct(t, svc, "p1", 3)

	level, err := svc.Restock(ctx, RestockCommand{ProductID: "p1", Quantity: 7, Reason: "supplier delivery", Actor: "admin-1"})
	if err != nil {
		t.Fatalf("restock: %v", err)
	}
	if level != 10 || stockOf(t, s, "p1") != 10 {
		t.Fatalf("expected stock 10, got %d", level)
	}

	history, err := svc.StockHistory(ctx, "p1", 0)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(history) != 1 || history[0].Metadata["newStockLevel"] != 10 {
		t.Fatalf("unexpected history %+v", history)
	}
}

func TestRestockRejectsInvalidInput(t *testing.T) {
	s := memstore.New()
	svc := NewService(s, 0)
	ctx := context.Background()
	seedProduct(t, svc, "p1", 3)

	for _, q := range []int{0, -4} {
		if _, err := svc.Restock(ctx, RestockCommand{ProductID: "p1", Quantity: q}); !errors.Is(err, domain.ErrBadRequest) {
			t.Fatalf("quantity %d: expected ErrBadRequest, got %v", q, err)
		}
	}
	if _, err := svc.Restock(ctx, RestockCommand{ProductID: "nope", Quantity: 1}); !errors.Is(err, domain.ErrProductNotFound) {
		t.Fatalf("expected ErrProductNotFound, got %v", err)
	}
	if stockOf(t, s, "p1") != 3 {
		t.Fatal("stock changed after rejected restocks")
	}
}

func TestCreateProductDuplicateSKU(t *testing.T) {
	svc := NewService(memstore.New(), 0)
	seedProduct(t, svc, "p1", 1)
	_, err := svc.CreateProduct(context.Background(), CreateProductCommand{SKU: "SKU-p1", Name: "again", Price: types.MustMoney("1")})
	if !errors.Is(err, domain.ErrConflict) {
		t.Fatalf("expected conflict, got %v", err)
	}
	_, err = svc.CreateProduct(context.Background(), CreateProductCommand{SKU: "NEG", Name: "neg", Price: types.MustMoney("-1")})
	if !errors.Is(err, domain.ErrBadRequest) {
		t.Fatalf("negative price: expected ErrBadRequest, got %v", err)
	}
}

func TestLowStock(t *testing.T) {
	svc := NewService(memstore.New(), 5)
	seedProduct(t, svc, "a", 2)
	seedProduct(t, svc, "b", 5)
	seedProduct(t, svc, "c", 40)

	low, err := svc.LowStock(context.Background(), 0)
	if err != nil {
		t.Fatalf("low stock: %v", err)
	}
	if len(low) != 2 {
		t.Fatalf("expected 2 products at or below 5, got %d", len(low))
	}
	low, _ = svc.LowStock(context.Background(), 50)
	if len(low) != 3 {
		t.Fatalf("expected 3 products at or below 50, got %d", len(low))
	}
}

func TestReserveIsAllOrNothing(t *testing.T) {
	s := memstore.New()
	svc := NewService(s, 0)
	ctx := context.Background()
	seedProduct(t, svc, "p1", 5)
	seedProduct(t, svc, "p2", 1)

	err := s.InTx(ctx, func(tx store.Tx) error {
		_, err := Reserve(ctx, tx, []Request{{ProductID: "p1", Quantity: 2}, {ProductID: "p2", Quantity: 2}})
		return err
	})
	if !errors.Is(err, domain.ErrInsufficientStock) {
		t.Fatalf("expected ErrInsufficientStock, got %v", err)
	}
	if !strings.Contains(err.Error(), "available 1, requested 2") {
		t.Fatalf("error does not name availability: %v", err)
	}
	if stockOf(t, s, "p1") != 5 || stockOf(t, s, "p2") != 1 {
		t.Fatal("partial deduction after failed reserve")
	}

	err = s.InTx(ctx, func(tx store.Tx) error {
		_, err := Reserve(ctx, tx, []Request{{ProductID: "p1", Quantity: 1}, {ProductID: "ghost", Quantity: 1}})
		return err
	})
	if !errors.Is(err, domain.ErrProductNotFound) || !strings.Contains(err.Error(), "ghost") {
		t.Fatalf("expected ErrProductNotFound naming ghost, got %v", err)
	}
}

func TestReserveSumsRepeatedProducts(t *testing.T) {
	s := memstore.New()
	svc := NewService(s, 0)
	ctx := context.Background()
	seedProduct(t, svc, "p1", 5)

	err := s.InTx(ctx, func(tx store.Tx) error {
		_, err := Reserve(ctx, tx, []Request{{ProductID: "p1", Quantity: 3}, {ProductID: "p1", Quantity: 3}})
		return err
	})
	if !errors.Is(err, domain.ErrInsufficientStock) {
		t.Fatalf("expected ErrInsufficientStock for 6 of 5, got %v", err)
	}
}

// Huge repeated lines must not wrap around into a small or negative total.
func TestReserveRejectsOverflowingTotals(t *testing.T) {
	s := memstore.New()
	svc := NewService(s, 0)
	ctx := context.Background()
	seedProduct(t, svc, "p1", 5)

	cases := [][]Request{
		{{ProductID: "p1", Quantity: math.MaxInt}, {ProductID: "p1", Quantity: math.MaxInt}},
		{{ProductID: "p1", Quantity: domain.MaxStockLevel}, {ProductID: "p1", Quantity: 1}},
		{{ProductID: "p1", Quantity: -3}},
	}
	for i, reqs := range cases {
		err := s.InTx(ctx, func(tx store.Tx) error {
			_, err := Reserve(ctx, tx, reqs)
			return err
		})
		if !errors.Is(err, domain.ErrBadRequest) {
			t.Fatalf("case %d: expected ErrBadRequest, got %v", i, err)
		}
	}
	if stockOf(t, s, "p1") != 5 {
		t.Fatalf("stock changed to %d after rejected reserves", stockOf(t, s, "p1"))
	}
}

func TestRestockRejectsOverflow(t *testing.T) {
	s := memstore.New()
	svc := NewService(s, 0)
	ctx := context.Background()
	seedProduct(t, svc, "p1", 5)
	seedProduct(t, svc, "full", domain.MaxStockLevel-1)

	if _, err := svc.Restock(ctx, RestockCommand{ProductID: "p1", Quantity: math.MaxInt}); !errors.Is(err, domain.ErrBadRequest) {
		t.Fatalf("expected ErrBadRequest for oversized quantity, got %v", err)
	}
	if _, err := svc.Restock(ctx, RestockCommand{ProductID: "full", Quantity: 2}); !errors.Is(err, domain.ErrBadRequest) {
		t.Fatalf("expected ErrBadRequest past the column range, got %v", err)
	}
	if stockOf(t, s, "p1") != 5 || stockOf(t, s, "full") != domain.MaxStockLevel-1 {
		t.Fatal("stock changed after rejected restocks")
	}
	if level, err := svc.Restock(ctx, RestockCommand{ProductID: "full", Quantity: 1}); err != nil || level != domain.MaxStockLevel {
		t.Fatalf("restock to the limit: level %d, err %v", level, err)
	}
}

func TestRestoreOnce(t *testing.T) {
	s := memstore.New()
	svc := NewService(s, 0)
	ctx := context.Background()
	seedProduct(t, svc, "p1", 0)

	o := &domain.Order{ID: "o1", Items: []domain.LineItem{{ProductID: "p1", Quantity: 4}}}
	for i, want := range []bool{true, false} {
		err := s.InTx(ctx, func(tx store.Tx) error {
			restored, err := Restore(ctx, tx, o, "admin-1", "failed delivery")
			if err != nil {
				return err
			}
			if restored != want {
				t.Fatalf("call %d: restored = %v, want %v", i, restored, want)
			}
			return nil
		})
		if err != nil {
			t.Fatalf("restore: %v", err)
		}
	}
	if stockOf(t, s, "p1") != 4 {
		t.Fatalf("expected stock 4 after restore, got %d", stockOf(t, s, "p1"))
	}
	history, _ := svc.StockHistory(ctx, "p1", 0)
	if len(history) != 1 || history[0].Action != domain.ActionStockRestored {
		t.Fatalf("expected a single STOCK_RESTORED entry, got %+v", history)
	}
}
