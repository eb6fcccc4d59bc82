package geo

import (
	"math"
	"testing"

	"fleetdesk/internal/types"
)

func TestDistanceKm_KnownDistances(t *testing.T) {
	tests := []struct {
		name      string
		a, b      types.Point
		wantKm    float64
		tolerance float64
	}{
		{
			name:      "same point",
			a:         types.Point{Lat: 14.5995, Lng: 120.9842},
			b:         types.Point{Lat: 14.5995, Lng: 120.9842},
			wantKm:    0,
			tolerance: 0.001,
		},
		{
			name:      "one degree of longitude on the equator",
			a:         types.Point{Lat: 0, Lng: 0},
			b:         types.Point{Lat: 0, Lng: 1},
			wantKm:    111.19,
			tolerance: 0.05,
		},
		{
			name:      "New York to Los Angeles (~3944km)",
			a:         types.Point{Lat: 40.7128, Lng: -74.0060},
			b:         types.Point{Lat: 34.0522, Lng: -118.2437},
			wantKm:    3944,
			tolerance: 50,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := DistanceKm(tt.a, tt.b)
			if math.Abs(got-tt.wantKm) > tt.tolerance {
				t.Errorf("DistanceKm() = %f, want %f (±%f)", got, tt.wantKm, tt.tolerance)
			}
		})
	}
}

func TestDistanceKm_Symmetry(t *testing.T) {
	a := types.Point{Lat: 25.0, Lng: 121.0}
	b := types.Point{Lat: 26.0, Lng: 122.0}
	if d1, d2 := DistanceKm(a, b), DistanceKm(b, a); math.Abs(d1-d2) > 0.0001 {
		t.Errorf("haversine is not symmetric: %f vs %f", d1, d2)
	}
}

func TestSortByDistance(t *testing.T) {
	type stop struct {
		id   string
		dist float64
	}
	stops := []stop{{"c", 5}, {"a", 1}, {"b", 3}, {"a2", 1}}

	SortByDistance(stops, func(s stop) float64 { return s.dist })

	want := []string{"a", "a2", "b", "c"}
	for i, s := range stops {
		if s.id != want[i] {
			t.Fatalf("position %d: got %s, want %s (%v)", i, s.id, want[i], stops)
		}
	}
}

func TestSortByDistance_Empty(t *testing.T) {
	var stops []float64
	SortByDistance(stops, func(f float64) float64 { return f })
}
