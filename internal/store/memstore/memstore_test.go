package memstore

import (
	"context"
	"errors"
	"testing"

	"fleetdesk/internal/domain"
	"fleetdesk/internal/store"
	"fleetdesk/internal/types"
)

func TestInTxRollsBackOnError(t *testing.T) {
	s := New()
	ctx := context.Background()

	if err := s.InTx(ctx, func(tx store.Tx) error {
		return tx.InsertProduct(ctx, &domain.Product{ID: "p1", SKU: "SKU-1", Name: "Rice", StockLevel: 5})
	}); err != nil {
		t.Fatalf("seed: %v", err)
	}

	boom := errors.New("boom")
	err := s.InTx(ctx, func(tx store.Tx) error {
		p, err := tx.GetProduct(ctx, "p1")
		if err != nil {
			return err
		}
		p.StockLevel = 0
		if err := tx.UpdateProduct(ctx, p); err != nil {
			return err
		}
		if err := tx.AppendAudit(ctx, &domain.AuditEntry{ID: "a1", Action: domain.ActionStockRestocked, TargetID: "p1"}); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}

	p, err := s.GetProduct(ctx, "p1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if p.StockLevel != 5 {
		t.Fatalf("expected stock 5 after rollback, got %d", p.StockLevel)
	}
	entries, _ := s.ListAudit(ctx, store.AuditFilter{})
	if len(entries) != 0 {
		t.Fatalf("expected no audit entries after rollback, got %d", len(entries))
	}
}

func TestInTxRollsBackOnPanic(t *testing.T) {
	s := New()
	ctx := context.Background()

	if err := s.InTx(ctx, func(tx store.Tx) error {
		return tx.InsertProduct(ctx, &domain.Product{ID: "p1", SKU: "SKU-1", Name: "Rice", StockLevel: 5})
	}); err != nil {
		t.Fatalf("seed: %v", err)
	}

	func() {
		defer func() {
			if r := recover(); r != "boom" {
				t.Fatalf("expected the panic to propagate, got %v", r)
			}
		}()
		_ = s.InTx(ctx, func(tx store.Tx) error {
			p, err := tx.GetProduct(ctx, "p1")
			if err != nil {
				return err
			}
			p.StockLevel = 0
			if err := tx.UpdateProduct(ctx, p); err != nil {
				return err
			}
			panic("boom")
		})
	}()

	p, err := s.GetProduct(ctx, "p1")
	if err != nil {
		t.Fatalf("get after panic: %v", err)
	}
	if p.StockLevel != 5 {
		t.Fatalf("expected stock 5 after panic rollback, got %d", p.StockLevel)
	}
	// The lock must have been released.
	if err := s.InTx(ctx, func(tx store.Tx) error { return nil }); err != nil {
		t.Fatalf("tx after panic: %v", err)
	}
}

func TestReturnedValuesAreCopies(t *testing.T) {
	s := New()
	ctx := context.Background()
	_ = s.InTx(ctx, func(tx store.Tx) error {
		return tx.InsertOrder(ctx, &domain.Order{ID: "o1", Items: []domain.LineItem{{ProductID: "p1", Quantity: 2}}})
	})

	o, _ := s.GetOrder(ctx, "o1")
	o.Items[0].Quantity = 99
	o.Status = domain.StatusCancelled

	again, _ := s.GetOrder(ctx, "o1")
	if again.Items[0].Quantity != 2 || again.Status != "" {
		t.Fatal("caller mutation leaked into the store")
	}
}

func TestDuplicateKeys(t *testing.T) {
	s := New()
	ctx := context.Background()
	insert := func(fn func(tx store.Tx) error) error { return s.InTx(ctx, fn) }

	if err := insert(func(tx store.Tx) error {
		return tx.InsertProduct(ctx, &domain.Product{ID: "p1", SKU: "A"})
	}); err != nil {
		t.Fatalf("insert: %v", err)
	}
	err := insert(func(tx store.Tx) error {
		return tx.InsertProduct(ctx, &domain.Product{ID: "p2", SKU: "A"})
	})
	if !errors.Is(err, domain.ErrConflict) {
		t.Fatalf("duplicate sku: expected conflict, got %v", err)
	}

	_ = insert(func(tx store.Tx) error { return tx.InsertDriver(ctx, &domain.Driver{ID: "d1", ExternalID: "uid-1"}) })
	err = insert(func(tx store.Tx) error { return tx.InsertDriver(ctx, &domain.Driver{ID: "d2", ExternalID: "uid-1"}) })
	if !errors.Is(err, domain.ErrDuplicate) {
		t.Fatalf("duplicate external id: expected ErrDuplicate, got %v", err)
	}
}

func TestGetMissingReturnsNotFound(t *testing.T) {
	s := New()
	ctx := context.Background()
	checks := map[string]error{}
	_, checks["order"] = s.GetOrder(ctx, "x")
	_, checks["product"] = s.GetProduct(ctx, "x")
	_, checks["driver"] = s.GetDriver(ctx, "x")
	_, checks["route"] = s.GetRoute(ctx, "x")
	_, checks["setting"] = s.GetSetting(ctx, "x")
	for name, err := range checks {
		if !errors.Is(err, domain.ErrNotFound) {
			t.Errorf("%s: expected ErrNotFound, got %v", name, err)
		}
	}
}

func TestListOrdersFilters(t *testing.T) {
	s := New()
	ctx := context.Background()
	d1 := types.ID("d1")
	pos := 1
	seed := []*domain.Order{
		{ID: "o1", CustomerName: "Maria Santos", CustomerPhone: "0917 111", Status: domain.StatusPendingDispatch, PaymentMethod: domain.PaymentCOD},
		{ID: "o2", CustomerName: "Jose Rizal", CustomerPhone: "0917 222", Status: domain.StatusPendingVerification, PaymentMethod: domain.PaymentBankTransfer, PaymentStatus: domain.PaymentPending},
		{ID: "o3", CustomerName: "Ana Cruz", Status: domain.StatusAssigned, AssignedDriverID: &d1},
		{ID: "o4", CustomerName: "Ben Cruz", Status: domain.StatusAssigned, AssignedDriverID: &d1, RoutePosition: &pos},
	}
	_ = s.InTx(ctx, func(tx store.Tx) error {
		for _, o := range seed {
			if err := tx.InsertOrder(ctx, o); err != nil {
				return err
			}
		}
		return nil
	})

	cases := []struct {
		name string
		f    store.OrderFilter
		want []types.ID
	}{
		{"newest first", store.OrderFilter{}, []types.ID{"o4", "o3", "o2", "o1"}},
		{"oldest first", store.OrderFilter{OldestFirst: true, Limit: 2}, []types.ID{"o1", "o2"}},
		{"status", store.OrderFilter{Statuses: []domain.Status{domain.StatusAssigned}}, []types.ID{"o4", "o3"}},
		{"pending payment", store.OrderFilter{PaymentStatus: domain.PaymentPending}, []types.ID{"o2"}},
		{"unassigned", store.OrderFilter{Unassigned: true, OldestFirst: true}, []types.ID{"o1", "o2"}},
		{"driver without route", store.OrderFilter{DriverID: "d1", WithoutRoute: true}, []types.ID{"o3"}},
		{"term name", store.OrderFilter{Term: "cruz"}, []types.ID{"o4", "o3"}},
		{"term phone", store.OrderFilter{Term: "222"}, []types.ID{"o2"}},
	}
	for _, tc := range cases {
		got, err := s.ListOrders(ctx, tc.f)
		if err != nil {
			t.Fatalf("%s: %v", tc.name, err)
		}
		if len(got) != len(tc.want) {
			t.Fatalf("%s: got %d orders, want %d", tc.name, len(got), len(tc.want))
		}
		for i := range got {
			if got[i].ID != tc.want[i] {
				t.Errorf("%s: position %d = %s, want %s", tc.name, i, got[i].ID, tc.want[i])
			}
		}
	}
}

func TestListAuditNewestFirst(t *testing.T) {
	s := New()
	ctx := context.Background()
	_ = s.InTx(ctx, func(tx store.Tx) error {
		_ = tx.AppendAudit(ctx, &domain.AuditEntry{ID: "a1", Action: domain.ActionOrderCreated, ActorID: "admin", TargetID: "o1"})
		_ = tx.AppendAudit(ctx, &domain.AuditEntry{ID: "a2", Action: domain.ActionStockRestocked, ActorID: "admin", TargetID: "p1"})
		return tx.AppendAudit(ctx, &domain.AuditEntry{ID: "a3", Action: domain.ActionOrderCreated, ActorID: "other", TargetID: "o2"})
	})

	all, _ := s.ListAudit(ctx, store.AuditFilter{})
	if len(all) != 3 || all[0].ID != "a3" || all[2].ID != "a1" {
		t.Fatalf("unexpected order: %+v", all)
	}
	created, _ := s.ListAudit(ctx, store.AuditFilter{Actions: []domain.AuditAction{domain.ActionOrderCreated}, ActorID: "admin"})
	if len(created) != 1 || created[0].ID != "a1" {
		t.Fatalf("unexpected filtered entries: %+v", created)
	}
}
