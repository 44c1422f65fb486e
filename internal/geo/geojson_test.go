package geo

import "testing"

func TestPolygonFeature_ClosesRing(t *testing.T) {
	f := PolygonFeature(diamond(), ZoneKindDefense)

	if !f.Geometry.IsPolygon() {
		t.Fatalf("Expected polygon geometry, got %s", f.Geometry.Type)
	}
	ring := f.Geometry.Polygon[0]
	if len(ring) != 5 {
		t.Fatalf("Expected closed ring of 5 positions, got %d", len(ring))
	}
	if ring[0][0] != ring[4][0] || ring[0][1] != ring[4][1] {
		t.Errorf("Expected ring to be closed, got first=%v last=%v", ring[0], ring[4])
	}
	// GeoJSON positions are [lon, lat].
	if ring[0][0] != 2 || ring[0][1] != 0 {
		t.Errorf("Expected [lon, lat] = [2 0], got %v", ring[0])
	}
	if kind, _ := f.PropertyString("zone"); kind != ZoneKindDefense {
		t.Errorf("Expected zone property %q, got %q", ZoneKindDefense, kind)
	}
}

func TestPolygonFeature_AlreadyClosed(t *testing.T) {
	closed := append(diamond(), diamond()[0])
	f := PolygonFeature(closed, ZoneKindAlert)

	if n := len(f.Geometry.Polygon[0]); n != 5 {
		t.Errorf("Expected ring to stay at 5 positions, got %d", n)
	}
}

func TestZonesFeatureCollection(t *testing.T) {
	fc := ZonesFeatureCollection(square(2), diamond())
	if len(fc.Features) != 2 {
		t.Fatalf("Expected 2 features, got %d", len(fc.Features))
	}
	if kind, _ := fc.Features[0].PropertyString("zone"); kind != ZoneKindAlert {
		t.Errorf("Expected first feature to be the alert zone, got %q", kind)
	}
}
