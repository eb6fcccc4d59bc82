// README: Key/value settings; the warehouse location is the only typed one.
package settings

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"fleetdesk/internal/domain"
	"fleetdesk/internal/modules/audit"
	"fleetdesk/internal/store"
	"fleetdesk/internal/types"
)

type Service struct {
	store store.Store
}

func NewService(s store.Store) *Service {
	return &Service{store: s}
}

type SetWarehouseCommand struct {
	Lat   float64 `json:"lat" validate:"gte=-90,lte=90"`
	Lng   float64 `json:"lng" validate:"gte=-180,lte=180"`
	Actor string  `json:"-"`
}

// Warehouse returns the depot every route starts from.
func (s *Service) Warehouse(ctx context.Context) (types.Point, error) {
	return Warehouse(ctx, s.store)
}

func (s *Service) SetWarehouse(ctx context.Context, cmd SetWarehouseCommand) (types.Point, error) {
	if err := domain.Validate(cmd); err != nil {
		return types.Point{}, err
	}
	p := types.Point{Lat: cmd.Lat, Lng: cmd.Lng}
	raw, err := json.Marshal(p)
	if err != nil {
		return types.Point{}, err
	}
	err = s.store.InTx(ctx, func(tx store.Tx) error {
		if err := tx.PutSetting(ctx, &domain.Setting{
			Key:       domain.SettingWarehouseLocation,
			Value:     raw,
			UpdatedAt: time.Now().UTC(),
			UpdatedBy: cmd.Actor,
		}); err != nil {
			return err
		}
		return audit.Record(ctx, tx, domain.ActionSettingUpdated, cmd.Actor, types.ID(domain.SettingWarehouseLocation), map[string]any{
			"lat": p.Lat,
			"lng": p.Lng,
		})
	})
	if err != nil {
		return types.Point{}, err
	}
	return p, nil
}

// Warehouse reads the warehouse location through any reader, including a Tx.
func Warehouse(ctx context.Context, r store.Reader) (types.Point, error) {
	st, err := r.GetSetting(ctx, domain.SettingWarehouseLocation)
	if err != nil {
		return types.Point{}, err
	}
	var p types.Point
	if err := json.Unmarshal(st.Value, &p); err != nil {
		return types.Point{}, fmt.Errorf("decode %s: %w", domain.SettingWarehouseLocation, err)
	}
	return p, nil
}
