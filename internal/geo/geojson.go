package geo

import (
	geojson "github.com/paulmach/go.geojson"
)

// Zone kinds used as the "zone" property of exported features.
const (
	ZoneKindAlert   = "alert"
	ZoneKindDefense = "defense"
)

// PolygonFeature converts an open ring into a GeoJSON polygon feature. GeoJSON
// wants [lon, lat] positions and an explicitly closed ring.
func PolygonFeature(polygon Polygon, kind string) *geojson.Feature {
	ring := make([][]float64, 0, len(polygon)+1)
	for _, p := range polygon {
		ring = append(ring, []float64{p.Lon, p.Lat})
	}
	if len(polygon) > 0 && polygon[0] != polygon[len(polygon)-1] {
		ring = append(ring, []float64{polygon[0].Lon, polygon[0].Lat})
	}

	f := geojson.NewPolygonFeature([][][]float64{ring})
	f.SetProperty("zone", kind)
	f.SetProperty("vertices", len(polygon))
	return f
}

// ZonesFeatureCollection bundles the alert and defense polygons.
func ZonesFeatureCollection(alertZone, defenseZone Polygon) *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()
	fc.AddFeature(PolygonFeature(alertZone, ZoneKindAlert))
	fc.AddFeature(PolygonFeature(defenseZone, ZoneKindDefense))
	return fc
}
