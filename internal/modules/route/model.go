package route

import (
	"fleetdesk/internal/domain"
	"fleetdesk/internal/types"
)

type CreateManifestCommand struct {
	RouteID  types.ID   `json:"route_id"`
	DriverID types.ID   `json:"driver_id" validate:"required"`
	OrderIDs []types.ID `json:"order_ids" validate:"required,min=1,unique,dive,required"`
	Actor    string     `json:"-"`
}

type OptimizeCommand struct {
	RouteID  types.ID   `json:"route_id" validate:"required"`
	OrderIDs []types.ID `json:"order_ids" validate:"required,min=1,dive,required"`
	Actor    string     `json:"-"`
}

type ActivateCommand struct {
	RouteID types.ID `json:"route_id" validate:"required"`
	Actor   string   `json:"-"`
}

type ProgressCommand struct {
	RouteID          types.ID `json:"route_id" validate:"required"`
	CurrentStopIndex int      `json:"current_stop_index" validate:"gte=0"`
	Actor            string   `json:"-"`
}

type CompleteCommand struct {
	RouteID types.ID `json:"route_id" validate:"required"`
	Actor   string   `json:"-"`
}

type ListFilter struct {
	DriverID types.ID
	Status   domain.RouteStatus
}

const (
	SourceMaps             = "google_maps"
	SourceNearestNeighbour = "nearest_neighbour"
	SourceStraightLine     = "straight_line"
)

// Suggestion is a proposed visiting order; it is not applied until the
// caller submits it through OptimizeRoute.
type Suggestion struct {
	RouteID    types.ID   `json:"route_id"`
	OrderIDs   []types.ID `json:"order_ids"`
	Source     string     `json:"source"`
	DistanceKm float64    `json:"distance_km"`
	// Skipped lists route orders left out because their order record is gone.
	Skipped []types.ID `json:"skipped,omitempty"`
}

// Leg is one hop of a route. An empty FromOrderID is the warehouse.
type Leg struct {
	FromOrderID     types.ID `json:"from_order_id,omitempty"`
	ToOrderID       types.ID `json:"to_order_id"`
	DistanceKm      float64  `json:"distance_km"`
	DurationSeconds int64    `json:"duration_seconds,omitempty"`
	Source          string   `json:"source"`
}

type LegsReport struct {
	RouteID         types.ID   `json:"route_id"`
	Legs            []Leg      `json:"legs"`
	DistanceKm      float64    `json:"distance_km"`
	DurationSeconds int64      `json:"duration_seconds"`
	Skipped         []types.ID `json:"skipped,omitempty"`
}
