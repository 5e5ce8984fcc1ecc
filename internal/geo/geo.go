package geo

import (
	"math"

	"github.com/lupppig/deliverynotify/internal/domain"
)

const EarthRadiusKm = 6371.0

// DistanceKm returns the great-circle distance between a and b using the
// haversine formula.
func DistanceKm(a, b domain.Position) float64 {
	lat1 := a.Lat * math.Pi / 180
	lat2 := b.Lat * math.Pi / 180
	deltaLat := (b.Lat - a.Lat) * math.Pi / 180
	deltaLng := (b.Lng - a.Lng) * math.Pi / 180

	h := math.Sin(deltaLat/2)*math.Sin(deltaLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*
			math.Sin(deltaLng/2)*math.Sin(deltaLng/2)
	// Rounding can push h a hair past 1 for antipodal points.
	h = math.Min(1, math.Max(0, h))
	c := 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))

	return EarthRadiusKm * c
}
