package geo

import (
	"math"
	"testing"

	"github.com/lupppig/deliverynotify/internal/domain"
)

var abidjan = domain.Position{Lat: 5.3600, Lng: -4.0083}

func TestDistanceZeroForSamePoint(t *testing.T) {
	points := []domain.Position{
		abidjan,
		{Lat: 0, Lng: 0},
		{Lat: 90, Lng: 0},
		{Lat: -33.8688, Lng: 151.2093},
	}
	for _, p := range points {
		if d := DistanceKm(p, p); d != 0 {
			t.Errorf("DistanceKm(%v, %v) = %f, want 0", p, p, d)
		}
	}
}

func TestDistanceSymmetric(t *testing.T) {
	pairs := [][2]domain.Position{
		{abidjan, {Lat: 5.3700, Lng: -4.0100}},
		{{Lat: 48.8566, Lng: 2.3522}, {Lat: 51.5074, Lng: -0.1278}},
		{{Lat: 0, Lng: 0}, {Lat: 0, Lng: 180}},
	}
	for _, p := range pairs {
		ab := DistanceKm(p[0], p[1])
		ba := DistanceKm(p[1], p[0])
		if math.Abs(ab-ba) > 1e-9 {
			t.Errorf("asymmetric distance: %f vs %f", ab, ba)
		}
	}
}

func TestDistanceKnownValues(t *testing.T) {
	tests := []struct {
		name string
		a, b domain.Position
		want float64
		tol  float64
	}{
		{"paris-london", domain.Position{Lat: 48.8566, Lng: 2.3522}, domain.Position{Lat: 51.5074, Lng: -0.1278}, 343.5, 1.0},
		{"one degree of latitude", domain.Position{Lat: 0, Lng: 0}, domain.Position{Lat: 1, Lng: 0}, 111.19, 0.01},
		{"antipodal", domain.Position{Lat: 0, Lng: 0}, domain.Position{Lat: 0, Lng: 180}, math.Pi * EarthRadiusKm, 1e-6},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := DistanceKm(tt.a, tt.b)
			if math.Abs(got-tt.want) > tt.tol {
				t.Errorf("DistanceKm = %f, want %f ± %f", got, tt.want, tt.tol)
			}
			if got < 0 {
				t.Errorf("negative distance %f", got)
			}
		})
	}
}

func BenchmarkDistanceKm(b *testing.B) {
	other := domain.Position{Lat: 5.3700, Lng: -4.0100}
	for i := 0; i < b.N; i++ {
		DistanceKm(abidjan, other)
	}
}
