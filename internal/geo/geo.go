// Package geo provides great-circle helpers for proximity filtering.
package geo

import "math"

// EarthRadiusMeters is the IUGG mean Earth radius
const EarthRadiusMeters = 6371008.8

// Point is a position in degrees
type Point struct {
	Lat float64
	Lon float64
}

// Valid reports whether the point lies within WGS84 bounds
func (p Point) Valid() bool {
	return p.Lat >= -90 && p.Lat <= 90 && p.Lon >= -180 && p.Lon <= 180 &&
		!math.IsNaN(p.Lat) && !math.IsNaN(p.Lon)
}

// DistanceMeters returns the haversine distance between a and b
func DistanceMeters(a, b Point) float64 {
	lat1 := radians(a.Lat)
	lat2 := radians(b.Lat)
	dLat := lat2 - lat1
	dLon := radians(b.Lon - a.Lon)

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLon/2)*math.Sin(dLon/2)
	if h > 1 {
		h = 1
	}
	return 2 * EarthRadiusMeters * math.Asin(math.Sqrt(h))
}

// Box is a lat/lon rectangle that encloses a circle. When WrapsLon is set the
// circle crosses the antimeridian or a pole and longitude must not be filtered.
type Box struct {
	MinLat, MaxLat float64
	MinLon, MaxLon float64
	WrapsLon       bool
}

// Contains reports whether p is inside the box
func (b Box) Contains(p Point) bool {
	if p.Lat < b.MinLat || p.Lat > b.MaxLat {
		return false
	}
	if b.WrapsLon {
		return true
	}
	return p.Lon >= b.MinLon && p.Lon <= b.MaxLon
}

// BoundingBox returns a rectangle that contains every point within radius
// meters of center. It over-approximates; callers still check the distance.
func BoundingBox(center Point, radiusMeters float64) Box {
	angular := radiusMeters / EarthRadiusMeters
	dLat := degrees(angular)

	box := Box{
		MinLat: center.Lat - dLat,
		MaxLat: center.Lat + dLat,
	}
	if box.MinLat <= -90 || box.MaxLat >= 90 {
		box.MinLat = math.Max(box.MinLat, -90)
		box.MaxLat = math.Min(box.MaxLat, 90)
		box.MinLon, box.MaxLon, box.WrapsLon = -180, 180, true
		return box
	}

	dLon := degrees(math.Asin(math.Min(1, math.Sin(angular)/math.Cos(radians(center.Lat)))))
	box.MinLon = center.Lon - dLon
	box.MaxLon = center.Lon + dLon
	if box.MinLon < -180 || box.MaxLon > 180 {
		box.MinLon, box.MaxLon, box.WrapsLon = -180, 180, true
	}
	return box
}

func radians(d float64) float64 { return d * math.Pi / 180 }
func degrees(r float64) float64 { return r * 180 / math.Pi }
