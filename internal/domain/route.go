package domain

import (
	"time"

	"fleetdesk/internal/types"
)

type RouteStatus string

const (
	RouteDraft     RouteStatus = "DRAFT"
	RouteActive    RouteStatus = "ACTIVE"
	RouteCompleted RouteStatus = "COMPLETED"
)

func (s RouteStatus) Valid() bool {
	return s == RouteDraft || s == RouteActive || s == RouteCompleted
}

// Route is a manifest: an ordered batch of orders for one driver and one run.
type Route struct {
	ID          types.ID    `json:"id"`
	DriverID    types.ID    `json:"driver_id"`
	OrderIDs    []types.ID  `json:"order_ids"`
	Status      RouteStatus `json:"status"`
	CreatedAt   time.Time   `json:"created_at"`
	StartedAt   *time.Time  `json:"started_at,omitempty"`
	CompletedAt *time.Time  `json:"completed_at,omitempty"`
}

func (r *Route) Clone() *Route {
	if r == nil {
		return nil
	}
	cp := *r
	cp.OrderIDs = append([]types.ID(nil), r.OrderIDs...)
	cp.StartedAt = clonePtr(r.StartedAt)
	cp.CompletedAt = clonePtr(r.CompletedAt)
	return &cp
}
