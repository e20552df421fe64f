package geometry

import (
	"math"

	"github.com/paulmach/orb"
)

// EarthRadiusMeters is the mean Earth radius used for haversine distances.
const EarthRadiusMeters = 6371000.0

// Haversine returns the great-circle distance in meters between two
// lon/lat points.
func Haversine(a, b orb.Point) float64 {
	lat1 := a.Lat() * math.Pi / 180
	lat2 := b.Lat() * math.Pi / 180
	dLat := (b.Lat() - a.Lat()) * math.Pi / 180
	dLon := (b.Lon() - a.Lon()) * math.Pi / 180

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLon/2)*math.Sin(dLon/2)
	c := 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))

	return EarthRadiusMeters * c
}

// PointInRing reports whether p lies inside the exterior ring using an
// even-odd ray cast. Holes are not modeled; rings with fewer than 3
// vertices never contain anything.
func PointInRing(p orb.Point, ring orb.Ring) bool {
	n := len(ring)
	if n < 3 {
		return false
	}

	inside := false
	for i, j := 0, n-1; i < n; j, i = i, i+1 {
		xi, yi := ring[i].Lon(), ring[i].Lat()
		xj, yj := ring[j].Lon(), ring[j].Lat()

		if (yi > p.Lat()) != (yj > p.Lat()) &&
			p.Lon() < (xj-xi)*(p.Lat()-yi)/(yj-yi)+xi {
			inside = !inside
		}
	}
	return inside
}

// Centroid returns the arithmetic mean of the ring's vertices. This is
// not an area-weighted centroid; it is only used as a proximity anchor.
// A closing vertex that duplicates the first is ignored so GeoJSON
// rings don't double-weight their start point.
func Centroid(ring orb.Ring) orb.Point {
	n := len(ring)
	if n == 0 {
		return orb.Point{}
	}
	if n > 1 && ring[0] == ring[n-1] {
		n--
	}

	var sumLon, sumLat float64
	for i := 0; i < n; i++ {
		sumLon += ring[i].Lon()
		sumLat += ring[i].Lat()
	}
	return orb.Point{sumLon / float64(n), sumLat / float64(n)}
}

// ValidRing reports whether the ring has at least 3 vertices and only
// finite coordinates. Malformed rings are skipped by callers rather
// than aborting a whole run.
func ValidRing(ring orb.Ring) bool {
	n := len(ring)
	if n > 1 && ring[0] == ring[n-1] {
		n--
	}
	if n < 3 {
		return false
	}
	for _, p := range ring {
		if math.IsNaN(p.Lon()) || math.IsNaN(p.Lat()) ||
			math.IsInf(p.Lon(), 0) || math.IsInf(p.Lat(), 0) {
			return false
		}
	}
	return true
}
