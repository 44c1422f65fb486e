package mockserver

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smukkama/drone-defense/internal/geo"
	"github.com/smukkama/drone-defense/internal/observability"
	"github.com/smukkama/drone-defense/internal/protocol"
	"github.com/smukkama/drone-defense/internal/zone"
)

func newTestServer(t *testing.T) (*Server, *zone.Store, *observability.MockCollector) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	metrics, err := observability.NewMockCollector(prometheus.NewRegistry())
	require.NoError(t, err)

	store := zone.NewStore(DefaultZones())
	s := NewServer(store, NewFleet(DefaultFleet()), NewHistory(100), metrics, Options{
		Region:        DefaultRegion(),
		ReportTopSize: 5,
	})
	return s, store, metrics
}

func doRequest(router http.Handler, method, path string, body []byte) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, bytes.NewReader(body))
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestHomeData_SeedSnapshot(t *testing.T) {
	s, _, metrics := newTestServer(t)

	w := doRequest(s.Router(), http.MethodGet, EndPointHomeData, nil)
	require.Equal(t, http.StatusOK, w.Code)

	data, err := protocol.DecodeHomeData(w.Body.Bytes())
	require.NoError(t, err)

	require.Len(t, data.Drones, 2)
	assert.Equal(t, "TARGET 14", data.Drones[0].Name)
	assert.True(t, data.Drones[0].InDefenseZone)
	assert.Equal(t, "TARGET 15", data.Drones[1].Name)
	assert.False(t, data.Drones[1].InDefenseZone)
	assert.Equal(t, "drone_1.jpg", data.Drones[0].ImageURL)

	assert.Len(t, data.DefenseZone, 5)
	assert.Len(t, data.AlertZone, 5)
	require.NotNil(t, data.InitialRegion)
	assert.Equal(t, 13.785, data.InitialRegion.Latitude)
	require.Len(t, data.Detail, 2)
	assert.Equal(t, float64(70), data.Detail[0].Altitude)
	assert.Greater(t, data.Detail[1].Distance, data.Detail[0].Distance)

	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.HomeDataRequests))
}

func TestHomeData_FiltersToAlertZone(t *testing.T) {
	s, store, _ := newTestServer(t)

	// Shrink the alert zone so only TARGET 14 is visible.
	store.SetZones(zone.Update{AlertZone: &geo.Polygon{
		{Lat: 13.784, Lon: 100.550},
		{Lat: 13.785, Lon: 100.550},
		{Lat: 13.785, Lon: 100.552},
		{Lat: 13.784, Lon: 100.552},
	}})

	w := doRequest(s.Router(), http.MethodGet, EndPointHomeData, nil)
	require.Equal(t, http.StatusOK, w.Code)

	data, err := protocol.DecodeHomeData(w.Body.Bytes())
	require.NoError(t, err)
	require.Len(t, data.Drones, 1)
	assert.Equal(t, protocol.DroneID("14"), data.Drones[0].ID)
	assert.Len(t, data.Detail, 2, "detail covers the whole fleet")
}

func TestUpdateZones_Partial(t *testing.T) {
	s, store, metrics := newTestServer(t)
	before := store.Zones()

	body := []byte(`{"defenseZone":[{"latitude":1,"longitude":1},{"latitude":2,"longitude":1},{"latitude":2,"longitude":2}]}`)
	w := doRequest(s.Router(), http.MethodPost, EndPointUpdateZones, body)
	require.Equal(t, http.StatusOK, w.Code)

	var resp protocol.UpdateZonesResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.True(t, resp.Success)
	assert.Equal(t, "Zones updated successfully", resp.Message)

	after := store.Zones()
	assert.Len(t, after.DefenseZone, 3)
	assert.Equal(t, before.AlertZone, after.AlertZone)
	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.ZoneUpdates))
}

func TestUpdateZones_InvalidJSON(t *testing.T) {
	s, store, _ := newTestServer(t)
	before := store.Zones()

	w := doRequest(s.Router(), http.MethodPost, EndPointUpdateZones, []byte("not json"))
	assert.Equal(t, http.StatusBadRequest, w.Code)

	var resp protocol.UpdateZonesResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.False(t, resp.Success)
	assert.Equal(t, before, store.Zones())
}

func TestReportData(t *testing.T) {
	s, _, _ := newTestServer(t)
	s.now = func() time.Time { return time.Date(2026, 10, 19, 12, 0, 0, 0, time.UTC) }

	require.NoError(t, s.Tick(context.Background(), 0))

	w := doRequest(s.Router(), http.MethodGet, EndPointReportData, nil)
	require.Equal(t, http.StatusOK, w.Code)

	var report protocol.ReportData
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &report))
	assert.Equal(t, 2, report.Summary.TotalDetected)
	assert.Equal(t, 1, report.Summary.RedZoneDetected)
	require.Len(t, report.TopOffenders, 1)
	assert.Equal(t, "TARGET 14", report.TopOffenders[0].Name)
	assert.Equal(t, "12:00", report.TopOffenders[0].LastSeen)
}

func TestZonesGeoJSON(t *testing.T) {
	s, _, _ := newTestServer(t)

	w := doRequest(s.Router(), http.MethodGet, EndPointZonesGeo, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/geo+json", w.Header().Get("Content-Type"))

	var fc struct {
		Type     string `json:"type"`
		Features []struct {
			Properties map[string]interface{} `json:"properties"`
		} `json:"features"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &fc))
	assert.Equal(t, "FeatureCollection", fc.Type)
	require.Len(t, fc.Features, 2)
	assert.Equal(t, geo.ZoneKindAlert, fc.Features[0].Properties["zone"])
	assert.Equal(t, geo.ZoneKindDefense, fc.Features[1].Properties["zone"])
}

func TestHealthAndMetrics(t *testing.T) {
	s, _, _ := newTestServer(t)
	router := s.Router()

	w := doRequest(router, http.MethodGet, EndPointHealth, nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "healthy")

	w = doRequest(router, http.MethodGet, EndPointMetrics, nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "zone_updates_total")
}

func TestCORSPreflight(t *testing.T) {
	s, _, _ := newTestServer(t)

	w := doRequest(s.Router(), http.MethodOptions, EndPointUpdateZones, nil)
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
}

func TestRunFleetStopsOnCancel(t *testing.T) {
	s, _, _ := newTestServer(t)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		s.RunFleet(ctx, 5*time.Millisecond)
		close(done)
	}()

	time.Sleep(30 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("RunFleet did not return after cancel")
	}
	assert.NotEmpty(t, s.history.Events())
}
