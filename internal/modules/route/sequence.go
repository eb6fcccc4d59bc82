package route

import (
	"fleetdesk/internal/geo"
	"fleetdesk/internal/types"
)

// Stop is one delivery on a route.
type Stop struct {
	OrderID types.ID
	Point   types.Point
}

// NearestNeighbour orders stops greedily: it starts at stops[0] and keeps
// moving to the closest unvisited stop. Equal distances keep the earlier
// stop in the input.
func NearestNeighbour(stops []Stop) []types.ID {
	if len(stops) == 0 {
		return nil
	}
	seq := make([]types.ID, 0, len(stops))
	seq = append(seq, stops[0].OrderID)
	cur := stops[0].Point
	remaining := append([]Stop(nil), stops[1:]...)

	for len(remaining) > 0 {
		best, bestKm := 0, geo.DistanceKm(cur, remaining[0].Point)
		for i := 1; i < len(remaining); i++ {
			if d := geo.DistanceKm(cur, remaining[i].Point); d < bestKm {
				best, bestKm = i, d
			}
		}
		seq = append(seq, remaining[best].OrderID)
		cur = remaining[best].Point
		remaining = append(remaining[:best], remaining[best+1:]...)
	}
	return seq
}

// PathKm is the straight-line length of visiting stops in order, starting
// from origin when it is set.
func PathKm(origin *types.Point, stops []Stop) float64 {
	var km float64
	for i, s := range stops {
		switch {
		case i > 0:
			km += geo.DistanceKm(stops[i-1].Point, s.Point)
		case origin != nil:
			km += geo.DistanceKm(*origin, s.Point)
		}
	}
	return km
}

// reorder returns stops arranged by ids. Ids without a stop are dropped.
func reorder(stops []Stop, ids []types.ID) []Stop {
	byID := make(map[types.ID]Stop, len(stops))
	for _, s := range stops {
		byID[s.OrderID] = s
	}
	out := make([]Stop, 0, len(ids))
	for _, id := range ids {
		if s, ok := byID[id]; ok {
			out = append(out, s)
		}
	}
	return out
}
