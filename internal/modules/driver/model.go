// README: Driver commands and read models.
package driver

import (
	"fmt"

	"fleetdesk/internal/domain"
	"fleetdesk/internal/types"
)

type CreateCommand struct {
	ID         types.ID `json:"id"`
	ExternalID string   `json:"external_id"`
	Name       string   `json:"name" validate:"required"`
	Phone      string   `json:"phone"`
	Actor      string   `json:"-"`
}

type DutyCommand struct {
	DriverID types.ID `json:"driver_id" validate:"required"`
	OnDuty   bool     `json:"on_duty"`
	Actor    string   `json:"-"`
}

type LocationCommand struct {
	DriverID types.ID `json:"driver_id" validate:"required"`
	Lat      float64  `json:"lat" validate:"gte=-90,lte=90"`
	Lng      float64  `json:"lng" validate:"gte=-180,lte=180"`
}

type PushTokenCommand struct {
	DriverID types.ID `json:"driver_id" validate:"required"`
	Token    string   `json:"token" validate:"required"`
}

// AvailableDriver is an on-duty driver with the distance from the warehouse when
// both positions are known.
type AvailableDriver struct {
	*domain.Driver
	DistanceFromWarehouseKm *float64 `json:"distance_from_warehouse_km"`
}

type NearbyDriver struct {
	*domain.Driver
	DistanceKm float64 `json:"distance_km"`
}

var errBadPoint = fmt.Errorf("%w: coordinates out of range", domain.ErrBadRequest)
