// Package locator defines the nearby-store collaborator. Deal content
// never comes from here; implementations only map merchants to
// coordinates so results can be annotated with distance.
package locator

import (
	"context"
	"math"
)

type StoreLocation struct {
	MerchantID string  `json:"merchant_id"`
	Name       string  `json:"name"`
	Latitude   float64 `json:"latitude"`
	Longitude  float64 `json:"longitude"`
}

type Provider interface {
	Nearby(ctx context.Context, lat, lng, radiusKm float64) ([]StoreLocation, error)
}

const earthRadiusKm = 6371.0

// Distance returns the great-circle distance in kilometres between two
// coordinates.
func Distance(lat1, lng1, lat2, lng2 float64) float64 {
	dLat := toRadians(lat2 - lat1)
	dLng := toRadians(lng2 - lng1)

	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(toRadians(lat1))*math.Cos(toRadians(lat2))*
			math.Sin(dLng/2)*math.Sin(dLng/2)
	return earthRadiusKm * 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
}

func toRadians(deg float64) float64 {
	return deg * math.Pi / 180
}
