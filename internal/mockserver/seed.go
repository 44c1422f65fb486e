package mockserver

import (
	"github.com/smukkama/drone-defense/internal/geo"
	"github.com/smukkama/drone-defense/internal/protocol"
	"github.com/smukkama/drone-defense/internal/zone"
)

// DefaultZones returns the seed zones around the Bangkok test site. Each
// ring repeats its first vertex as a closing point.
func DefaultZones() zone.Zones {
	return zone.Zones{
		DefenseZone: geo.Polygon{
			{Lat: 13.785, Lon: 100.548},
			{Lat: 13.787, Lon: 100.551},
			{Lat: 13.784, Lon: 100.553},
			{Lat: 13.782, Lon: 100.5495},
			{Lat: 13.785, Lon: 100.548},
		},
		AlertZone: geo.Polygon{
			{Lat: 13.79, Lon: 100.556},
			{Lat: 13.792, Lon: 100.545},
			{Lat: 13.78, Lon: 100.54},
			{Lat: 13.775, Lon: 100.555},
			{Lat: 13.79, Lon: 100.556},
		},
	}
}

// DefaultRegion is the initial map viewport.
func DefaultRegion() protocol.Region {
	return protocol.Region{
		Latitude:       13.785,
		Longitude:      100.55,
		LatitudeDelta:  0.01,
		LongitudeDelta: 0.01,
	}
}

// DefaultFleet returns the two seed drones. TARGET 14 shuttles between the
// defense zone and the alert zone; TARGET 15 loops through the defense zone
// and briefly leaves the alert zone.
func DefaultFleet() []DroneSpec {
	return []DroneSpec{
		{
			ID:       protocol.DroneIDFromInt(14),
			Name:     "TARGET 14",
			ImageURL: "drone_1.jpg",
			Speed:    14,
			POI:      20,
			Altitude: 70,
			Waypoints: []geo.GeoPoint{
				{Lat: 13.7845, Lon: 100.551},
				{Lat: 13.789, Lon: 100.5525},
			},
		},
		{
			ID:       protocol.DroneIDFromInt(15),
			Name:     "TARGET 15",
			ImageURL: "drone_2.jpg",
			Speed:    14,
			POI:      20,
			Altitude: 250,
			Waypoints: []geo.GeoPoint{
				{Lat: 13.788, Lon: 100.548},
				{Lat: 13.795, Lon: 100.55},
				{Lat: 13.7855, Lon: 100.55},
				{Lat: 13.783, Lon: 100.544},
			},
		},
	}
}
