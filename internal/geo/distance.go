package geo

import (
	"math"

	"github.com/twpayne/go-geom"

	"track-finder/internal/models"
)

const (
	// Earth radius in kilometers
	EarthRadiusKm = 6371.0

	// MilesPerKm converts kilometers to statute miles
	MilesPerKm = 0.621371
)

// Haversine calculates the great-circle distance between two points
// Returns distance in kilometers
func Haversine(lat1, lng1, lat2, lng2 float64) float64 {
	lat1Rad := lat1 * math.Pi / 180
	lat2Rad := lat2 * math.Pi / 180
	deltaLat := (lat2 - lat1) * math.Pi / 180
	deltaLng := (lng2 - lng1) * math.Pi / 180

	a := math.Sin(deltaLat/2)*math.Sin(deltaLat/2) +
		math.Cos(lat1Rad)*math.Cos(lat2Rad)*
			math.Sin(deltaLng/2)*math.Sin(deltaLng/2)

	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))

	return EarthRadiusKm * c
}

// LineString converts an ordered coordinate sequence into a lon/lat line string
func LineString(coords []models.Coordinate) *geom.LineString {
	flat := make([]float64, 0, len(coords)*2)
	for _, c := range coords {
		flat = append(flat, c.Lon, c.Lat)
	}
	return geom.NewLineStringFlat(geom.XY, flat)
}

// LengthKm returns the geodesic length of a line string in kilometers
func LengthKm(ls *geom.LineString) float64 {
	var total float64
	for i := 1; i < ls.NumCoords(); i++ {
		prev, cur := ls.Coord(i-1), ls.Coord(i)
		total += Haversine(prev.Y(), prev.X(), cur.Y(), cur.X())
	}
	return total
}

// LengthMiles returns the length of a coordinate sequence in miles
func LengthMiles(coords []models.Coordinate) float64 {
	if len(coords) < 2 {
		return 0
	}
	return LengthKm(LineString(coords)) * MilesPerKm
}

// Bounds returns the bounding box of all coordinates as (minLon, minLat, maxLon, maxLat).
// ok is false when coords is empty.
func Bounds(coords []models.Coordinate) (minLon, minLat, maxLon, maxLat float64, ok bool) {
	if len(coords) == 0 {
		return 0, 0, 0, 0, false
	}
	b := LineString(coords).Bounds()
	return b.Min(0), b.Min(1), b.Max(0), b.Max(1), true
}
