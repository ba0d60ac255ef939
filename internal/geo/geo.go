// Package geo has the distance math behind the "waste near me" view.
package geo

import (
	"math"

	"github.com/waste2worth/backend/internal/data"
)

const earthRadiusKm = 6371.0

// Distance returns the great-circle distance between two points in
// kilometers, by the haversine formula.
func Distance(a, b data.Location) float64 {
	latA := a.Lat * math.Pi / 180
	latB := b.Lat * math.Pi / 180
	dLat := (b.Lat - a.Lat) * math.Pi / 180
	dLng := (b.Lng - a.Lng) * math.Pi / 180

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(latA)*math.Cos(latB)*math.Sin(dLng/2)*math.Sin(dLng/2)
	return 2 * earthRadiusKm * math.Asin(math.Sqrt(h))
}

// Nearby filters posts to those with a location within radiusKm of
// center. Posts without a location are excluded.
func Nearby(posts []*data.WastePost, center data.Location, radiusKm float64) []*data.WastePost {
	var out []*data.WastePost
	for _, p := range posts {
		if p.Location == nil {
			continue
		}
		if Distance(center, *p.Location) <= radiusKm {
			out = append(out, p)
		}
	}
	return out
}
