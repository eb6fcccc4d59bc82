// README: Driver fleet: registration, duty toggles, positions and proximity queries.
package driver

import (
	"context"
	"errors"
	"log/slog"
	"math"
	"time"

	"github.com/shopspring/decimal"

	"fleetdesk/internal/domain"
	"fleetdesk/internal/geo"
	"fleetdesk/internal/modules/audit"
	"fleetdesk/internal/modules/settings"
	"fleetdesk/internal/store"
	"fleetdesk/internal/types"
)

const DefaultNearbyRadiusKm = 5.0

type Service struct {
	store    store.Store
	locator  Locator
	log      *slog.Logger
	radiusKm float64
}

// NewService wires the fleet service. locator may be nil, in which case
// proximity queries scan the stored last-known positions.
func NewService(s store.Store, locator Locator, log *slog.Logger, nearbyRadiusKm float64) *Service {
	if log == nil {
		log = slog.Default()
	}
	if nearbyRadiusKm <= 0 {
		nearbyRadiusKm = DefaultNearbyRadiusKm
	}
	return &Service{store: s, locator: locator, log: log, radiusKm: nearbyRadiusKm}
}

func (s *Service) Create(ctx context.Context, cmd CreateCommand) (*domain.Driver, error) {
	if err := domain.Validate(cmd); err != nil {
		return nil, err
	}
	now := time.Now().UTC()
	d := &domain.Driver{
		ID:         cmd.ID,
		ExternalID: cmd.ExternalID,
		Name:       cmd.Name,
		Phone:      cmd.Phone,
		OnDuty:     false,
		CODWallet:  decimal.Zero,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if d.ID == "" {
		d.ID = types.NewID()
	}
	err := s.store.InTx(ctx, func(tx store.Tx) error {
		if err := tx.InsertDriver(ctx, d); err != nil {
			return err
		}
		return audit.Record(ctx, tx, domain.ActionDriverCreated, cmd.Actor, d.ID, map[string]any{
			"name":  d.Name,
			"phone": d.Phone,
		})
	})
	if err != nil {
		return nil, err
	}
	return d, nil
}

func (s *Service) Get(ctx context.Context, id types.ID) (*domain.Driver, error) {
	return s.store.GetDriver(ctx, id)
}

// ByExternalID resolves the identity-provider uid of a signed-in driver.
func (s *Service) ByExternalID(ctx context.Context, uid string) (*domain.Driver, error) {
	return s.store.GetDriverByExternalID(ctx, uid)
}

func (s *Service) List(ctx context.Context) ([]*domain.Driver, error) {
	return s.store.ListDrivers(ctx, store.DriverFilter{})
}

func (s *Service) SetDuty(ctx context.Context, cmd DutyCommand) (*domain.Driver, error) {
	if err := domain.Validate(cmd); err != nil {
		return nil, err
	}
	var updated *domain.Driver
	err := s.store.InTx(ctx, func(tx store.Tx) error {
		d, err := tx.GetDriver(ctx, cmd.DriverID)
		if err != nil {
			return err
		}
		d.OnDuty = cmd.OnDuty
		d.UpdatedAt = time.Now().UTC()
		if err := tx.UpdateDriver(ctx, d); err != nil {
			return err
		}
		updated = d
		return audit.Record(ctx, tx, domain.ActionDriverDutyChanged, cmd.Actor, d.ID, map[string]any{
			"onDuty": d.OnDuty,
		})
	})
	if err != nil {
		return nil, err
	}
	s.syncLocator(ctx, updated)
	return updated, nil
}

// UpdateLocation stores the last known position and refreshes the live index.
func (s *Service) UpdateLocation(ctx context.Context, cmd LocationCommand) (*domain.Driver, error) {
	if err := domain.Validate(cmd); err != nil {
		return nil, err
	}
	var updated *domain.Driver
	err := s.store.InTx(ctx, func(tx store.Tx) error {
		d, err := tx.GetDriver(ctx, cmd.DriverID)
		if err != nil {
			return err
		}
		now := time.Now().UTC()
		d.Location = &domain.Location{Point: types.Point{Lat: cmd.Lat, Lng: cmd.Lng}, RecordedAt: now}
		d.UpdatedAt = now
		if err := tx.UpdateDriver(ctx, d); err != nil {
			return err
		}
		updated = d
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.syncLocator(ctx, updated)
	return updated, nil
}

func (s *Service) SetPushToken(ctx context.Context, cmd PushTokenCommand) error {
	if err := domain.Validate(cmd); err != nil {
		return err
	}
	return s.store.InTx(ctx, func(tx store.Tx) error {
		d, err := tx.GetDriver(ctx, cmd.DriverID)
		if err != nil {
			return err
		}
		d.PushToken = cmd.Token
		d.UpdatedAt = time.Now().UTC()
		return tx.UpdateDriver(ctx, d)
	})
}

// Available lists on-duty drivers nearest to the warehouse first. Drivers
// without a position, or all of them when no warehouse is set, come last.
func (s *Service) Available(ctx context.Context) ([]AvailableDriver, error) {
	onDuty := true
	drivers, err := s.store.ListDrivers(ctx, store.DriverFilter{OnDuty: &onDuty})
	if err != nil {
		return nil, err
	}
	warehouse, err := settings.Warehouse(ctx, s.store)
	hasWarehouse := err == nil
	if err != nil && !errors.Is(err, domain.ErrSettingNotFound) {
		return nil, err
	}

	out := make([]AvailableDriver, 0, len(drivers))
	for _, d := range drivers {
		a := AvailableDriver{Driver: d}
		if hasWarehouse && d.Location != nil {
			km := geo.DistanceKm(warehouse, d.Location.Point)
			a.DistanceFromWarehouseKm = &km
		}
		out = append(out, a)
	}
	geo.SortByDistance(out, func(a AvailableDriver) float64 {
		if a.DistanceFromWarehouseKm == nil {
			return math.Inf(1)
		}
		return *a.DistanceFromWarehouseKm
	})
	return out, nil
}

// Nearby lists on-duty drivers within radiusKm of p, nearest first. A zero
// radius uses the configured default.
func (s *Service) Nearby(ctx context.Context, p types.Point, radiusKm float64) ([]NearbyDriver, error) {
	if !p.Valid() {
		return nil, errBadPoint
	}
	if radiusKm <= 0 {
		radiusKm = s.radiusKm
	}

	var candidates []*domain.Driver
	if s.locator != nil {
		ids, err := s.locator.Within(ctx, p, radiusKm)
		if err != nil {
			return nil, err
		}
		for _, id := range ids {
			d, err := s.store.GetDriver(ctx, id)
			if errors.Is(err, domain.ErrNotFound) {
				continue
			}
			if err != nil {
				return nil, err
			}
			candidates = append(candidates, d)
		}
	} else {
		onDuty := true
		all, err := s.store.ListDrivers(ctx, store.DriverFilter{OnDuty: &onDuty})
		if err != nil {
			return nil, err
		}
		candidates = all
	}

	out := make([]NearbyDriver, 0, len(candidates))
	for _, d := range candidates {
		if !d.OnDuty || d.Location == nil {
			continue
		}
		km := geo.DistanceKm(p, d.Location.Point)
		if km > radiusKm {
			continue
		}
		out = append(out, NearbyDriver{Driver: d, DistanceKm: km})
	}
	geo.SortByDistance(out, func(n NearbyDriver) float64 { return n.DistanceKm })
	return out, nil
}

// syncLocator mirrors duty and position into the live index. Failures only
// degrade proximity queries, so they are logged.
func (s *Service) syncLocator(ctx context.Context, d *domain.Driver) {
	if s.locator == nil {
		return
	}
	var err error
	switch {
	case !d.OnDuty:
		err = s.locator.Remove(ctx, d.ID)
	case d.Location != nil:
		err = s.locator.Upsert(ctx, d.ID, d.Location.Point)
	}
	if err != nil {
		s.log.Warn("driver locator sync failed", "driver_id", d.ID, "err", err)
	}
}
