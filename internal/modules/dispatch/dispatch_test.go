package dispatch

import (
	"context"
	"errors"
	"strings"
	"testing"

	"fleetdesk/internal/domain"
	"fleetdesk/internal/modules/audit"
	"fleetdesk/internal/store/memstore"
	"fleetdesk/internal/testutil"
	"fleetdesk/internal/types"
)

func newTestService(t *testing.T) (*Service, *memstore.Store) {
	t.Helper()
	s := testutil.NewStore(t)
	return NewService(s, testutil.Logger()), s
}

func seedOrders(t *testing.T, s *memstore.Store, statuses map[types.ID]domain.Status) {
	t.Helper()
	for id, st := range statuses {
		testutil.SeedOrder(t, s, testutil.NewOrder(id, st, types.Point{Lat: 14.6, Lng: 121}))
	}
}

func TestAssignOrdersToDriver(t *testing.T) {
	svc, s := newTestService(t)
	ctx := context.Background()
	testutil.SeedDriver(t, s, "D1", true, "0", nil)
	seedOrders(t, s, map[types.ID]domain.Status{
		"O1": domain.StatusPendingDispatch,
		"O2": domain.StatusProcessing,
		"O3": domain.StatusPendingVerification,
	})

	orders, err := svc.AssignOrdersToDriver(ctx, AssignCommand{OrderIDs: []types.ID{"O1", "O2", "O3"}, DriverID: "D1", Actor: "admin-1"})
	if err != nil {
		t.Fatalf("assign: %v", err)
	}
	if len(orders) != 3 {
		t.Fatalf("expected 3 orders, got %d", len(orders))
	}
	for _, id := range []types.ID{"O1", "O2", "O3"} {
		o := testutil.Order(t, s, id)
		if o.Status != domain.StatusAssigned || o.AssignedDriverID == nil || *o.AssignedDriverID != "D1" {
			t.Fatalf("order %s not assigned: %+v", id, o)
		}
		entries, err := audit.NewService(s).History(ctx, id, 0, domain.ActionOrderAssigned)
		if err != nil || len(entries) != 1 {
			t.Fatalf("order %s: expected one ORDER_ASSIGNED entry, got %d (%v)", id, len(entries), err)
		}
		if entries[0].ActorID != "admin-1" || entries[0].Metadata["driverId"] != "D1" {
			t.Fatalf("unexpected audit entry %+v", entries[0])
		}
	}
}

func TestAssignRejectsWholeBatch(t *testing.T) {
	tests := []struct {
		name    string
		orders  map[types.ID]domain.Status
		other   types.ID
		ids     []types.ID
		driver  types.ID
		wantErr error
		msg     string
	}{
		{
			name:    "cancelled order",
			orders:  map[types.ID]domain.Status{"O1": domain.StatusPendingDispatch, "O2": domain.StatusCancelled},
			ids:     []types.ID{"O1", "O2"},
			driver:  "D1",
			wantErr: domain.ErrIllegalAssignment,
			msg:     "O2",
		},
		{
			name:    "foreign assignment",
			orders:  map[types.ID]domain.Status{"O1": domain.StatusPendingDispatch, "O2": domain.StatusPendingDispatch},
			other:   "O2",
			ids:     []types.ID{"O1", "O2"},
			driver:  "D1",
			wantErr: domain.ErrAlreadyAssigned,
		},
		{
			name:    "wrong status",
			orders:  map[types.ID]domain.Status{"O1": domain.StatusPendingDispatch, "O2": domain.StatusEnRoute},
			ids:     []types.ID{"O1", "O2"},
			driver:  "D1",
			wantErr: domain.ErrIllegalAssignment,
			msg:     "status: EN_ROUTE",
		},
		{
			name:    "missing orders",
			orders:  map[types.ID]domain.Status{"O1": domain.StatusPendingDispatch},
			ids:     []types.ID{"O1", "X9", "X8"},
			driver:  "D1",
			wantErr: domain.ErrOrderNotFound,
			msg:     "X9, X8",
		},
		{
			name:    "driver off duty",
			orders:  map[types.ID]domain.Status{"O1": domain.StatusPendingDispatch},
			ids:     []types.ID{"O1"},
			driver:  "D2",
			wantErr: domain.ErrDriverUnavailable,
		},
		{
			name:    "unknown driver",
			orders:  map[types.ID]domain.Status{"O1": domain.StatusPendingDispatch},
			ids:     []types.ID{"O1"},
			driver:  "ghost",
			wantErr: domain.ErrDriverUnavailable,
		},
		{
			name:    "duplicate ids",
			orders:  map[types.ID]domain.Status{"O1": domain.StatusPendingDispatch},
			ids:     []types.ID{"O1", "O1"},
			driver:  "D1",
			wantErr: domain.ErrBadRequest,
		},
		{
			name:    "empty batch",
			orders:  map[types.ID]domain.Status{"O1": domain.StatusPendingDispatch},
			ids:     nil,
			driver:  "D1",
			wantErr: domain.ErrBadRequest,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			svc, s := newTestService(t)
			testutil.SeedDriver(t, s, "D1", true, "0", nil)
			testutil.SeedDriver(t, s, "D2", false, "0", nil)
			testutil.SeedDriver(t, s, "D3", true, "0", nil)
			seedOrders(t, s, tc.orders)
			if tc.other != "" {
				o := testutil.Order(t, s, tc.other)
				other := types.ID("D3")
				o.AssignedDriverID = &other
				testutil.SaveOrder(t, s, o)
			}

			_, err := svc.AssignOrdersToDriver(context.Background(), AssignCommand{OrderIDs: tc.ids, DriverID: tc.driver})
			if !errors.Is(err, tc.wantErr) {
				t.Fatalf("expected %v, got %v", tc.wantErr, err)
			}
			if tc.msg != "" && !strings.Contains(err.Error(), tc.msg) {
				t.Fatalf("error %q does not mention %q", err, tc.msg)
			}
			o1 := testutil.Order(t, s, "O1")
			if o1.Status != domain.StatusPendingDispatch || o1.AssignedDriverID != nil {
				t.Fatalf("O1 was mutated by a rejected batch: %+v", o1)
			}
			entries, _ := audit.NewService(s).List(context.Background(), audit.Filter{Action: domain.ActionOrderAssigned})
			if len(entries) != 0 {
				t.Fatalf("rejected batch left %d audit entries", len(entries))
			}
		})
	}
}

func TestReassignToSameDriverIsAllowed(t *testing.T) {
	svc, s := newTestService(t)
	testutil.SeedDriver(t, s, "D1", true, "0", nil)
	seedOrders(t, s, map[types.ID]domain.Status{"O1": domain.StatusProcessing})
	o := testutil.Order(t, s, "O1")
	d1 := types.ID("D1")
	o.AssignedDriverID = &d1
	testutil.SaveOrder(t, s, o)

	if _, err := svc.AssignOrdersToDriver(context.Background(), AssignCommand{OrderIDs: []types.ID{"O1"}, DriverID: "D1"}); err != nil {
		t.Fatalf("assign to same driver: %v", err)
	}
}

func TestAssignedOrdersGroupedByDriver(t *testing.T) {
	svc, s := newTestService(t)
	ctx := context.Background()
	testutil.SeedDriver(t, s, "D1", true, "0", nil)
	testutil.SeedDriver(t, s, "D2", true, "0", nil)
	seedOrders(t, s, map[types.ID]domain.Status{
		"O1": domain.StatusPendingDispatch,
		"O2": domain.StatusPendingDispatch,
		"O3": domain.StatusPendingDispatch,
		"O4": domain.StatusPendingDispatch,
	})
	testutil.AssignOrder(t, s, "O1", "D1")
	testutil.AssignOrder(t, s, "O2", "D1")
	testutil.AssignOrder(t, s, "O3", "D2")

	groups, err := svc.AssignedOrders(ctx, "")
	if err != nil {
		t.Fatalf("assigned orders: %v", err)
	}
	if len(groups) != 2 {
		t.Fatalf("expected 2 groups, got %d", len(groups))
	}
	counts := map[types.ID]int{}
	for _, g := range groups {
		counts[g.DriverID] = len(g.Orders)
		if g.DriverName == unknownDriverName {
			t.Fatalf("driver %s name not resolved", g.DriverID)
		}
	}
	if counts["D1"] != 2 || counts["D2"] != 1 {
		t.Fatalf("unexpected grouping %v", counts)
	}

	one, err := svc.AssignedOrders(ctx, "D2")
	if err != nil || len(one) != 1 || one[0].Orders[0].ID != "O3" {
		t.Fatalf("filter by driver: %v %+v", err, one)
	}
	none, _ := svc.AssignedOrders(ctx, "D9")
	if len(none) != 0 {
		t.Fatalf("expected no groups, got %+v", none)
	}
}
