package driver

import (
	"context"
	"errors"
	"os"
	"sort"
	"sync"
	"testing"

	"github.com/redis/go-redis/v9"

	"fleetdesk/internal/domain"
	"fleetdesk/internal/geo"
	"fleetdesk/internal/modules/settings"
	"fleetdesk/internal/store/memstore"
	"fleetdesk/internal/testutil"
	"fleetdesk/internal/types"
)

// fakeLocator mirrors RedisLocator semantics in memory.
type fakeLocator struct {
	mu        sync.Mutex
	positions map[types.ID]types.Point
	failNext  bool
}

func newFakeLocator() *fakeLocator {
	return &fakeLocator{positions: map[types.ID]types.Point{}}
}

func (f *fakeLocator) Upsert(_ context.Context, id types.ID, p types.Point) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failNext {
		f.failNext = false
		return errors.New("redis down")
	}
	f.positions[id] = p
	return nil
}

func (f *fakeLocator) Remove(_ context.Context, id types.ID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.positions, id)
	return nil
}

func (f *fakeLocator) Within(_ context.Context, p types.Point, radiusKm float64) ([]types.ID, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	ids := make([]types.ID, 0)
	for id, pos := range f.positions {
		if geo.DistanceKm(p, pos) <= radiusKm {
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return geo.DistanceKm(p, f.positions[ids[i]]) < geo.DistanceKm(p, f.positions[ids[j]]) })
	return ids, nil
}

func (f *fakeLocator) has(id types.ID) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.positions[id]
	return ok
}

func newTestService(t *testing.T, loc Locator) (*Service, *memstore.Store) {
	t.Helper()
	s := testutil.NewStore(t)
	return NewService(s, loc, testutil.Logger(), 0), s
}

func TestCreateDriver(t *testing.T) {
	svc, _ := newTestService(t, nil)
	ctx := context.Background()

	d, err := svc.Create(ctx, CreateCommand{ExternalID: "uid-1", Name: "Dan", Phone: "0917", Actor: "admin-1"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if d.OnDuty || !d.CODWallet.IsZero() || d.ID == "" {
		t.Fatalf("unexpected new driver %+v", d)
	}
	if _, err := svc.Create(ctx, CreateCommand{ExternalID: "uid-1", Name: "Dup"}); !errors.Is(err, domain.ErrConflict) {
		t.Fatalf("expected conflict, got %v", err)
	}
	if _, err := svc.Create(ctx, CreateCommand{ExternalID: "uid-2"}); !errors.Is(err, domain.ErrBadRequest) {
		t.Fatalf("missing name: expected ErrBadRequest, got %v", err)
	}
	got, err := svc.ByExternalID(ctx, "uid-1")
	if err != nil || got.ID != d.ID {
		t.Fatalf("lookup by external id: %v %+v", err, got)
	}
}

func TestDutyAndLocationFeedLocator(t *testing.T) {
	loc := newFakeLocator()
	svc, s := newTestService(t, loc)
	ctx := context.Background()
	testutil.SeedDriver(t, s, "D1", false, "0", nil)

	if _, err := svc.UpdateLocation(ctx, LocationCommand{DriverID: "D1", Lat: 14.6, Lng: 121.0}); err != nil {
		t.Fatalf("location: %v", err)
	}
	if loc.has("D1") {
		t.Fatal("off-duty driver was indexed")
	}
	if _, err := svc.SetDuty(ctx, DutyCommand{DriverID: "D1", OnDuty: true, Actor: "uid-D1"}); err != nil {
		t.Fatalf("duty on: %v", err)
	}
	if !loc.has("D1") {
		t.Fatal("on-duty driver with a position was not indexed")
	}
	if _, err := svc.SetDuty(ctx, DutyCommand{DriverID: "D1", OnDuty: false}); err != nil {
		t.Fatalf("duty off: %v", err)
	}
	if loc.has("D1") {
		t.Fatal("driver still indexed after going off duty")
	}

	if _, err := svc.UpdateLocation(ctx, LocationCommand{DriverID: "D1", Lat: 95}); !errors.Is(err, domain.ErrBadRequest) {
		t.Fatalf("expected ErrBadRequest, got %v", err)
	}
	if _, err := svc.SetDuty(ctx, DutyCommand{DriverID: "ghost", OnDuty: true}); !errors.Is(err, domain.ErrDriverNotFound) {
		t.Fatalf("expected ErrDriverNotFound, got %v", err)
	}
}

func TestLocatorFailureDoesNotFailUpdate(t *testing.T) {
	loc := newFakeLocator()
	svc, s := newTestService(t, loc)
	testutil.SeedDriver(t, s, "D1", true, "0", nil)
	loc.failNext = true

	d, err := svc.UpdateLocation(context.Background(), LocationCommand{DriverID: "D1", Lat: 14.6, Lng: 121.0})
	if err != nil {
		t.Fatalf("update should succeed when the index is down: %v", err)
	}
	if d.Location == nil || d.Location.Lat != 14.6 {
		t.Fatalf("position not stored: %+v", d.Location)
	}
}

func TestAvailableSortedByWarehouseDistance(t *testing.T) {
	svc, s := newTestService(t, nil)
	ctx := context.Background()
	testutil.SeedDriver(t, s, "far", true, "0", &types.Point{Lat: 0, Lng: 3})
	testutil.SeedDriver(t, s, "near", true, "0", &types.Point{Lat: 0, Lng: 1})
	testutil.SeedDriver(t, s, "unknown", true, "0", nil)
	testutil.SeedDriver(t, s, "off", false, "0", &types.Point{Lat: 0, Lng: 0})

	list, err := svc.Available(ctx)
	if err != nil {
		t.Fatalf("available: %v", err)
	}
	if len(list) != 3 {
		t.Fatalf("expected 3 on-duty drivers, got %d", len(list))
	}
	for _, a := range list {
		if a.DistanceFromWarehouseKm != nil {
			t.Fatal("distance reported without a warehouse")
		}
	}

	if _, err := settings.NewService(s).SetWarehouse(ctx, settings.SetWarehouseCommand{Lat: 0, Lng: 0}); err != nil {
		t.Fatalf("set warehouse: %v", err)
	}
	list, _ = svc.Available(ctx)
	want := []types.ID{"near", "far", "unknown"}
	for i, a := range list {
		if a.ID != want[i] {
			t.Fatalf("position %d: got %s, want %s", i, a.ID, want[i])
		}
	}
	if km := *list[0].DistanceFromWarehouseKm; km < 111 || km > 112 {
		t.Fatalf("expected ~111 km, got %f", km)
	}
}

func TestNearby(t *testing.T) {
	for _, withLocator := range []bool{false, true} {
		name := "scan"
		var loc Locator
		if withLocator {
			name = "locator"
			loc = newFakeLocator()
		}
		t.Run(name, func(t *testing.T) {
			svc, s := newTestService(t, loc)
			ctx := context.Background()
			for id, lng := range map[types.ID]float64{"a": 0.01, "b": 0.02, "c": 1} {
				testutil.SeedDriver(t, s, id, true, "0", nil)
				if _, err := svc.UpdateLocation(ctx, LocationCommand{DriverID: id, Lat: 0, Lng: lng}); err != nil {
					t.Fatalf("location: %v", err)
				}
			}

			got, err := svc.Nearby(ctx, types.Point{}, 5)
			if err != nil {
				t.Fatalf("nearby: %v", err)
			}
			if len(got) != 2 || got[0].ID != "a" || got[1].ID != "b" {
				t.Fatalf("unexpected nearby drivers %+v", got)
			}
			if _, err := svc.Nearby(ctx, types.Point{Lat: 200}, 5); !errors.Is(err, domain.ErrBadRequest) {
				t.Fatalf("expected ErrBadRequest, got %v", err)
			}
		})
	}
}

func TestRedisLocator(t *testing.T) {
	addr := os.Getenv("FLEETDESK_TEST_REDIS")
	if addr == "" {
		t.Skip("FLEETDESK_TEST_REDIS not set; skipping redis locator test")
	}
	client := redis.NewClient(&redis.Options{Addr: addr})
	t.Cleanup(func() { _ = client.Close() })
	ctx := context.Background()
	client.Del(ctx, driverGeoKey)

	loc := NewRedisLocator(client)
	if err := loc.Upsert(ctx, "r1", types.Point{Lat: 0, Lng: 0.01}); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if err := loc.Upsert(ctx, "r2", types.Point{Lat: 0, Lng: 2}); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	ids, err := loc.Within(ctx, types.Point{}, 5)
	if err != nil {
		t.Fatalf("within: %v", err)
	}
	if len(ids) != 1 || ids[0] != "r1" {
		t.Fatalf("unexpected ids %v", ids)
	}
	if err := loc.Remove(ctx, "r1"); err != nil {
		t.Fatalf("remove: %v", err)
	}
	ids, _ = loc.Within(ctx, types.Point{}, 5)
	if len(ids) != 0 {
		t.Fatalf("expected no drivers after remove, got %v", ids)
	}
}
