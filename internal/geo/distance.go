package geo

import (
	"math"

	"github.com/golang/geo/s2"
)

// earthRadiusMeters is the mean Earth radius used to turn s2 angles into
// surface distances.
const earthRadiusMeters = 6371008.8

// DistanceMeters returns the great-circle distance between a and b.
// Containment stays planar; this is only used for human-facing readouts.
func DistanceMeters(a, b GeoPoint) float64 {
	la := s2.LatLngFromDegrees(a.Lat, a.Lon)
	lb := s2.LatLngFromDegrees(b.Lat, b.Lon)
	return la.Distance(lb).Radians() * earthRadiusMeters
}

// Interpolate returns the point a fraction t of the way along the great
// circle from a to b. t is clamped to [0, 1].
func Interpolate(a, b GeoPoint, t float64) GeoPoint {
	if t <= 0 {
		return a
	}
	if t >= 1 {
		return b
	}
	pa := s2.PointFromLatLng(s2.LatLngFromDegrees(a.Lat, a.Lon))
	pb := s2.PointFromLatLng(s2.LatLngFromDegrees(b.Lat, b.Lon))
	ll := s2.LatLngFromPoint(s2.Interpolate(t, pa, pb))
	return GeoPoint{Lat: ll.Lat.Degrees(), Lon: ll.Lng.Degrees()}
}

// Bearing returns the initial compass heading from a to b in degrees,
// 0 = north, clockwise, in [0, 360).
func Bearing(a, b GeoPoint) float64 {
	la := s2.LatLngFromDegrees(a.Lat, a.Lon)
	lb := s2.LatLngFromDegrees(b.Lat, b.Lon)
	dLon := (lb.Lng - la.Lng).Radians()

	y := math.Sin(dLon) * math.Cos(lb.Lat.Radians())
	x := math.Cos(la.Lat.Radians())*math.Sin(lb.Lat.Radians()) -
		math.Sin(la.Lat.Radians())*math.Cos(lb.Lat.Radians())*math.Cos(dLon)

	deg := math.Atan2(y, x) * 180 / math.Pi
	return math.Mod(deg+360, 360)
}
