// Package geo selects the pizzeria closest to a customer.
package geo

import (
	"github.com/evgen4ikrus/pizza-bot/pkg/domain"
	"github.com/tidwall/geodesic"
)

// DistanceKm returns the geodesic distance between two points on the WGS-84 ellipsoid.
func DistanceKm(a, b domain.Coordinates) float64 {
	var meters float64
	geodesic.WGS84.Inverse(a.Latitude, a.Longitude, b.Latitude, b.Longitude, &meters, nil, nil)
	return meters / 1000
}

// Nearest returns the candidate closest to origin and the distance to it in km.
// Ties keep the earliest candidate. An empty list yields domain.ErrNoLocationsAvailable.
func Nearest(origin domain.Coordinates, candidates []domain.Location) (domain.Location, float64, error) {
	if len(candidates) == 0 {
		return domain.Location{}, 0, domain.ErrNoLocationsAvailable
	}
	best := 0
	bestKm := DistanceKm(origin, candidates[0].Coordinates)
	for i := 1; i < len(candidates); i++ {
		if d := DistanceKm(origin, candidates[i].Coordinates); d < bestKm {
			best, bestKm = i, d
		}
	}
	return candidates[best], bestKm, nil
}
