package testutil

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"fleetdesk/internal/domain"
	"fleetdesk/internal/store"
	"fleetdesk/internal/store/memstore"
	"fleetdesk/internal/types"
)

// NewStore returns an empty in-memory store.
func NewStore(t *testing.T) *memstore.Store {
	t.Helper()
	return memstore.New()
}

// Logger discards everything.
func Logger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func SeedProduct(t *testing.T, s store.Store, id types.ID, price string, stock int) {
	t.Helper()
	now := time.Now().UTC()
	mustTx(t, s, func(ctx context.Context, tx store.Tx) error {
		return tx.InsertProduct(ctx, &domain.Product{
			ID:         id,
			SKU:        "SKU-" + string(id),
			Name:       "Product " + string(id),
			Price:      types.MustMoney(price),
			StockLevel: stock,
			CreatedAt:  now,
			UpdatedAt:  now,
		})
	})
}

// SeedDriver inserts a driver; loc may be nil.
func SeedDriver(t *testing.T, s store.Store, id types.ID, onDuty bool, wallet string, loc *types.Point) {
	t.Helper()
	now := time.Now().UTC()
	d := &domain.Driver{
		ID:         id,
		ExternalID: "uid-" + string(id),
		Name:       "Driver " + string(id),
		OnDuty:     onDuty,
		CODWallet:  types.MustMoney(wallet),
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if loc != nil {
		d.Location = &domain.Location{Point: *loc, RecordedAt: now}
	}
	mustTx(t, s, func(ctx context.Context, tx store.Tx) error {
		return tx.InsertDriver(ctx, d)
	})
}

// SeedOrder inserts o as-is, bypassing stock reservation.
func SeedOrder(t *testing.T, s store.Store, o *domain.Order) {
	t.Helper()
	if o.CreatedAt.IsZero() {
		o.CreatedAt = time.Now().UTC()
		o.UpdatedAt = o.CreatedAt
	}
	mustTx(t, s, func(ctx context.Context, tx store.Tx) error {
		return tx.InsertOrder(ctx, o)
	})
}

func Stock(t *testing.T, s store.Reader, id types.ID) int {
	t.Helper()
	p, err := s.GetProduct(context.Background(), id)
	if err != nil {
		t.Fatalf("get product %s: %v", id, err)
	}
	return p.StockLevel
}

func Wallet(t *testing.T, s store.Reader, id types.ID) string {
	t.Helper()
	d, err := s.GetDriver(context.Background(), id)
	if err != nil {
		t.Fatalf("get driver %s: %v", id, err)
	}
	return d.CODWallet.StringFixed(types.MoneyPlaces)
}

func Order(t *testing.T, s store.Reader, id types.ID) *domain.Order {
	t.Helper()
	o, err := s.GetOrder(context.Background(), id)
	if err != nil {
		t.Fatalf("get order %s: %v", id, err)
	}
	return o
}

func mustTx(t *testing.T, s store.Store, fn func(ctx context.Context, tx store.Tx) error) {
	t.Helper()
	ctx := context.Background()
	if err := s.InTx(ctx, func(tx store.Tx) error { return fn(ctx, tx) }); err != nil {
		t.Fatalf("seed: %v", err)
	}
}

// SaveOrder overwrites an existing order, bypassing the state machine.
func SaveOrder(t *testing.T, s store.Store, o *domain.Order) {
	t.Helper()
	mustTx(t, s, func(ctx context.Context, tx store.Tx) error {
		return tx.UpdateOrder(ctx, o)
	})
}

// AssignOrder puts an order in ASSIGNED for driverID without dispatch checks.
func AssignOrder(t *testing.T, s store.Store, orderID, driverID types.ID) {
	t.Helper()
	o := Order(t, s, orderID)
	o.AssignedDriverID = &driverID
	o.Status = domain.StatusAssigned
	SaveOrder(t, s, o)
}

// NewOrder builds a COD order in the given status delivering to at. Seed it
// with SeedOrder.
func NewOrder(id types.ID, status domain.Status, at types.Point) *domain.Order {
	now := time.Now().UTC()
	return &domain.Order{
		ID:            id,
		CustomerName:  "Customer " + id.String(),
		PaymentMethod: domain.PaymentCOD,
		PaymentStatus: domain.PaymentVerified,
		Status:        status,
		TotalAmount:   types.MustMoney("10.00"),
		Items: []domain.LineItem{{
			ProductID: "P1", ProductName: "Water 5L", Quantity: 1,
			UnitPrice: types.MustMoney("10.00"), Subtotal: types.MustMoney("10.00"),
		}},
		DeliveryAddress: domain.Address{Street: "1 Main St", City: "Manila", Coordinates: at},
		CreatedAt:       now,
		UpdatedAt:       now,
	}
}
