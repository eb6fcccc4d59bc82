package maps

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"googlemaps.github.io/maps"

	"fleetdesk/internal/types"
)

var ErrNoRoute = errors.New("no route found")

// RouteService handles interactions with Google Maps API.
type RouteService struct {
	client *maps.Client
}

// NewRouteService creates a new RouteService with the given API Key.
func NewRouteService(apiKey string) (*RouteService, error) {
	client, err := maps.NewClient(maps.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create maps client: %w", err)
	}
	return &RouteService{client: client}, nil
}

// Estimate is the driving distance and duration of a route.
type Estimate struct {
	DistanceKm float64
	Duration   time.Duration
}

// Optimized is a visiting order over the stops passed to OptimizeWaypoints.
// Order[i] is the index of the i-th stop to visit.
type Optimized struct {
	Order []int
	Estimate
	Polyline string
}

// TravelEstimate returns the driving distance and duration from origin to destination.
func (s *RouteService) TravelEstimate(ctx context.Context, origin, destination types.Point) (Estimate, error) {
	r := &maps.DirectionsRequest{
		Origin:      latLng(origin),
		Destination: latLng(destination),
		Mode:        maps.TravelModeDriving,
		Units:       maps.UnitsMetric,
	}
	route, err := s.firstRoute(ctx, r)
	if err != nil {
		return Estimate{}, err
	}
	return sumLegs(route), nil
}

// OptimizeWaypoints asks Directions for the best visiting order of stops
// starting at origin. The last stop stays the destination; the others are
// reordered by the API.
func (s *RouteService) OptimizeWaypoints(ctx context.Context, origin types.Point, stops []types.Point) (*Optimized, error) {
	if len(stops) == 0 {
		return nil, fmt.Errorf("at least one waypoint is required")
	}
	last := len(stops) - 1
	r := &maps.DirectionsRequest{
		Origin:      latLng(origin),
		Destination: latLng(stops[last]),
		Mode:        maps.TravelModeDriving,
		Units:       maps.UnitsMetric,
	}
	if last > 0 {
		r.Optimize = true
		for _, p := range stops[:last] {
			r.Waypoints = append(r.Waypoints, latLng(p))
		}
	}

	route, err := s.firstRoute(ctx, r)
	if err != nil {
		return nil, err
	}

	order := []int{0}
	if last > 0 {
		if len(route.WaypointOrder) != last {
			return nil, fmt.Errorf("maps api returned %d waypoint indexes for %d waypoints", len(route.WaypointOrder), last)
		}
		order = append(append([]int(nil), route.WaypointOrder...), last)
	}
	return &Optimized{Order: order, Estimate: sumLegs(route), Polyline: route.OverviewPolyline.Points}, nil
}

func (s *RouteService) firstRoute(ctx context.Context, r *maps.DirectionsRequest) (maps.Route, error) {
	routes, _, err := s.client.Directions(ctx, r)
	if err != nil {
		return maps.Route{}, fmt.Errorf("maps api error: %w", err)
	}
	if len(routes) == 0 || len(routes[0].Legs) == 0 {
		return maps.Route{}, ErrNoRoute
	}
	return routes[0], nil
}

func sumLegs(route maps.Route) Estimate {
	var est Estimate
	for _, leg := range route.Legs {
		est.DistanceKm += float64(leg.Distance.Meters) / 1000
		est.Duration += leg.Duration
	}
	return est
}

func latLng(p types.Point) string {
	return strconv.FormatFloat(p.Lat, 'f', 6, 64) + "," + strconv.FormatFloat(p.Lng, 'f', 6, 64)
}
