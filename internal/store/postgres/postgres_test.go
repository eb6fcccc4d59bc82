package postgres

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"fleetdesk/internal/domain"
	"fleetdesk/internal/store"
	"fleetdesk/internal/types"
)

func TestSplitSQL(t *testing.T) {
	input := stripSQLComments(`
-- header comment
CREATE TABLE a (id TEXT);

  -- indented comment
CREATE INDEX a_idx ON a (id);
`)
	stmts := splitSQL(input)
	if len(stmts) != 2 {
		t.Fatalf("expected 2 statements, got %d: %q", len(stmts), stmts)
	}
	if stmts[0] != "CREATE TABLE a (id TEXT)" {
		t.Fatalf("unexpected first statement %q", stmts[0])
	}
}

func TestEmbeddedMigrationsParse(t *testing.T) {
	content, err := migrationFS.ReadFile("migrations/0001_init.sql")
	if err != nil {
		t.Fatalf("read migration: %v", err)
	}
	if n := len(splitSQL(stripSQLComments(string(content)))); n < 6 {
		t.Fatalf("expected at least 6 statements, got %d", n)
	}
}

func TestWhereBuilder(t *testing.T) {
	var w where
	w.add("status = $%d", "ASSIGNED")
	w.addRaw("route_position IS NULL")
	w.add("assigned_driver_id = $%d", "d1")
	lim := w.limit(5)
	if got := w.String(); got != " WHERE status = $1 AND route_position IS NULL AND assigned_driver_id = $2" {
		t.Fatalf("unexpected where clause %q", got)
	}
	if lim != " LIMIT $3" || len(w.args) != 3 {
		t.Fatalf("unexpected limit %q args %v", lim, w.args)
	}
}

func TestStoreRoundTripAndLocking(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Microsecond)

	driverID := types.ID("d1")
	err := s.InTx(ctx, func(tx store.Tx) error {
		if err := tx.InsertDriver(ctx, &domain.Driver{ID: driverID, ExternalID: "uid-1", Name: "Dan", OnDuty: true, CODWallet: types.MustMoney("0"), CreatedAt: now, UpdatedAt: now}); err != nil {
			return err
		}
		if err := tx.InsertProduct(ctx, &domain.Product{ID: "p1", SKU: "RICE-5", Name: "Rice 5kg", Price: types.MustMoney("8.50"), StockLevel: 5, CreatedAt: now, UpdatedAt: now}); err != nil {
			return err
		}
		return tx.InsertOrder(ctx, &domain.Order{
			ID:            "o1",
			CustomerName:  "Maria",
			PaymentMethod: domain.PaymentCOD,
			PaymentStatus: domain.PaymentVerified,
			Status:        domain.StatusPendingDispatch,
			TotalAmount:   types.MustMoney("42.50"),
			Items:         []domain.LineItem{{ProductID: "p1", ProductName: "Rice 5kg", Quantity: 5, UnitPrice: types.MustMoney("8.50"), Subtotal: types.MustMoney("42.50")}},
			CreatedAt:     now,
			UpdatedAt:     now,
		})
	})
	if err != nil {
		t.Fatalf("seed: %v", err)
	}

	o, err := s.GetOrder(ctx, "o1")
	if err != nil {
		t.Fatalf("get order: %v", err)
	}
	if !o.TotalAmount.Equal(types.MustMoney("42.50")) || len(o.Items) != 1 || !o.Items[0].UnitPrice.Equal(types.MustMoney("8.50")) {
		t.Fatalf("unexpected order %+v", o)
	}

	err = s.InTx(ctx, func(tx store.Tx) error {
		o, err := tx.GetOrder(ctx, "o1")
		if err != nil {
			return err
		}
		o.AssignedDriverID = &driverID
		o.Status = domain.StatusAssigned
		return tx.UpdateOrder(ctx, o)
	})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	assigned, err := s.ListOrders(ctx, store.OrderFilter{DriverID: driverID, WithoutRoute: true})
	if err != nil || len(assigned) != 1 {
		t.Fatalf("list assigned: %v %d", err, len(assigned))
	}

	err = s.InTx(ctx, func(tx store.Tx) error {
		return tx.InsertProduct(ctx, &domain.Product{ID: "p2", SKU: "RICE-5", Name: "dup", Price: types.MustMoney("1"), CreatedAt: now, UpdatedAt: now})
	})
	if !errors.Is(err, domain.ErrDuplicate) {
		t.Fatalf("expected ErrDuplicate, got %v", err)
	}

	if _, err := s.GetRoute(ctx, "missing"); !errors.Is(err, domain.ErrRouteNotFound) {
		t.Fatalf("expected ErrRouteNotFound, got %v", err)
	}
}

func setupTestStore(t *testing.T) *Store {
	t.Helper()

	dsn := os.Getenv("FLEETDESK_TEST_DSN")
	if dsn == "" {
		t.Skip("FLEETDESK_TEST_DSN not set; skipping postgres store tests")
	}

	ctx := context.Background()
	db, err := pgxpool.New(ctx, dsn)
	if err != nil {
		t.Fatalf("connect db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	if err := Migrate(ctx, db); err != nil {
		t.Fatalf("apply migration: %v", err)
	}
	if _, err := db.Exec(ctx, "TRUNCATE TABLE audit_log, routes, orders, drivers, products, settings"); err != nil {
		t.Fatalf("truncate tables: %v", err)
	}
	return New(db)
}
