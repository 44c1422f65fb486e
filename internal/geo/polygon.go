package geo

// GeoPoint is a latitude/longitude pair. Containment tests treat the pair as
// planar coordinates with x = Lat and y = Lon.
type GeoPoint struct {
	Lat float64 `json:"latitude"`
	Lon float64 `json:"longitude"`
}

// Polygon is an open ring of vertices; the closing edge from the last vertex
// back to the first is implicit.
type Polygon []GeoPoint

// Clone returns a copy that shares no backing array with p.
func (p Polygon) Clone() Polygon {
	if p == nil {
		return nil
	}
	out := make(Polygon, len(p))
	copy(out, p)
	return out
}

// PointInPolygon reports whether point lies inside polygon using the
// even-odd ray casting rule. Polygons with fewer than 3 vertices contain
// nothing. Points exactly on an edge may classify either way.
func PointInPolygon(point GeoPoint, polygon Polygon) bool {
	if len(polygon) < 3 {
		return false
	}

	x, y := point.Lat, point.Lon
	inside := false
	for i, j := 0, len(polygon)-1; i < len(polygon); j, i = i, i+1 {
		xi, yi := polygon[i].Lat, polygon[i].Lon
		xj, yj := polygon[j].Lat, polygon[j].Lon

		if (yi > y) != (yj > y) && x < (xj-xi)*(y-yi)/(yj-yi)+xi {
			inside = !inside
		}
	}
	return inside
}

// Centroid returns the vertex average of polygon. It is used as a reference
// point for distance readouts, not for containment.
func Centroid(polygon Polygon) (GeoPoint, bool) {
	if len(polygon) == 0 {
		return GeoPoint{}, false
	}
	var sumLat, sumLon float64
	for _, p := range polygon {
		sumLat += p.Lat
		sumLon += p.Lon
	}
	n := float64(len(polygon))
	return GeoPoint{Lat: sumLat / n, Lon: sumLon / n}, true
}
