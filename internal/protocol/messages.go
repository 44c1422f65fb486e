package protocol

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"github.com/smukkama/drone-defense/internal/geo"
	"github.com/smukkama/drone-defense/internal/zone"
)

// ErrIncompleteHomeData is returned for a home-data payload that lacks one of
// the zones.
var ErrIncompleteHomeData = errors.New("home data is incomplete")

// DroneID identifies a drone for a session. The data source may send it as a
// JSON string or number; both decode to the same ID.
type DroneID string

// UnmarshalJSON accepts "14" and 14 alike.
func (id *DroneID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = DroneID(s)
		return nil
	}

	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("invalid drone id %s: %w", data, err)
	}
	*id = DroneID(n.String())
	return nil
}

// DroneIDFromInt formats a numeric id.
func DroneIDFromInt(n int) DroneID {
	return DroneID(strconv.Itoa(n))
}

// DroneSnapshot is one drone position in a polled batch.
type DroneSnapshot struct {
	ID            DroneID `json:"id"`
	Name          string  `json:"name"`
	Lat           float64 `json:"lat"`
	Lon           float64 `json:"lon"`
	Distance      float64 `json:"distance"`
	ImageURL      string  `json:"imageUrl,omitempty"`
	InDefenseZone bool    `json:"inDefenseZone"`
}

// Position returns the drone location as a GeoPoint.
func (d DroneSnapshot) Position() geo.GeoPoint {
	return geo.GeoPoint{Lat: d.Lat, Lon: d.Lon}
}

// DroneDetail carries the readouts shown for a selected drone.
type DroneDetail struct {
	ID       DroneID `json:"id"`
	Name     string  `json:"name"`
	Distance float64 `json:"distance"`
	Speed    float64 `json:"speed"`
	POI      float64 `json:"POI"`
	Altitude float64 `json:"Altitude"`
	Heading  float64 `json:"Heading"`
	ReachIn  float64 `json:"ReachIn"`
}

// Region is the initial map viewport.
type Region struct {
	Latitude       float64 `json:"latitude"`
	Longitude      float64 `json:"longitude"`
	LatitudeDelta  float64 `json:"latitudeDelta"`
	LongitudeDelta float64 `json:"longitudeDelta"`
}

// HomeData is the snapshot returned by GET /api/home-data.
type HomeData struct {
	Drones        []DroneSnapshot `json:"drones"`
	AlertZone     geo.Polygon     `json:"alertZone"`
	DefenseZone   geo.Polygon     `json:"defenseZone"`
	InitialRegion *Region         `json:"initialRegion,omitempty"`
	Detail        []DroneDetail   `json:"detail"`
}

// Validate checks that both zones are present. An empty list is a valid zone;
// a missing or null one is not.
func (h *HomeData) Validate() error {
	if h == nil {
		return fmt.Errorf("%w: empty payload", ErrIncompleteHomeData)
	}
	if h.AlertZone == nil {
		return fmt.Errorf("%w: missing alertZone", ErrIncompleteHomeData)
	}
	if h.DefenseZone == nil {
		return fmt.Errorf("%w: missing defenseZone", ErrIncompleteHomeData)
	}
	return nil
}

// Zones returns the zone pair carried by the snapshot.
func (h *HomeData) Zones() zone.Zones {
	return zone.Zones{AlertZone: h.AlertZone, DefenseZone: h.DefenseZone}
}

// UpdateZonesRequest is the body of POST /api/update-zones. Omitted zones are
// left unchanged.
type UpdateZonesRequest struct {
	DefenseZone *geo.Polygon `json:"defenseZone,omitempty"`
	AlertZone   *geo.Polygon `json:"alertZone,omitempty"`
}

// ToUpdate converts the request into a store update.
func (r *UpdateZonesRequest) ToUpdate() zone.Update {
	return zone.Update{AlertZone: r.AlertZone, DefenseZone: r.DefenseZone}
}

// UpdateZonesResponse acknowledges a zone update.
type UpdateZonesResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// ReportSummary is the headline block of the report.
type ReportSummary struct {
	TotalDetected   int    `json:"totalDetected"`
	RedZoneDetected int    `json:"redZoneDetected"`
	ActiveHours     string `json:"activeHours"`
}

// Dataset is one chart series.
type Dataset struct {
	Data []int `json:"data"`
}

// WeeklyStats holds per-weekday sighting counts, Sunday first.
type WeeklyStats struct {
	Labels   []string  `json:"labels"`
	Datasets []Dataset `json:"datasets"`
}

// Offender is a drone ranked by how often it was sighted.
type Offender struct {
	Name     string `json:"name"`
	Count    int    `json:"count"`
	LastSeen string `json:"lastSeen"`
}

// ReportData is returned by GET /api/report-data.
type ReportData struct {
	Summary      ReportSummary `json:"summary"`
	WeeklyStats  WeeklyStats   `json:"weeklyStats"`
	TopOffenders []Offender    `json:"topOffenders"`
}

// DecodeHomeData decodes a home-data payload and rejects one without zones.
func DecodeHomeData(data []byte) (*HomeData, error) {
	var hd HomeData
	if err := json.Unmarshal(data, &hd); err != nil {
		return nil, fmt.Errorf("invalid home data: %w", err)
	}
	if err := hd.Validate(); err != nil {
		return nil, err
	}
	return &hd, nil
}
