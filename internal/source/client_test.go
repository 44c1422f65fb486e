package source

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smukkama/drone-defense/internal/geo"
	"github.com/smukkama/drone-defense/internal/protocol"
)

const homeDataJSON = `{
  "drones": [{"id": 14, "name": "TARGET 14", "lat": 13.7845, "lon": 100.551, "distance": 40.49}],
  "alertZone": [{"latitude": 13.79, "longitude": 100.556}, {"latitude": 13.792, "longitude": 100.545}, {"latitude": 13.78, "longitude": 100.54}],
  "defenseZone": [{"latitude": 13.785, "longitude": 100.548}, {"latitude": 13.787, "longitude": 100.551}, {"latitude": 13.784, "longitude": 100.553}]
}`

func TestFetchHomeData(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/api/home-data", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, homeDataJSON)
	}))
	defer srv.Close()

	c := NewClient(srv.URL+"/", time.Second)
	data, err := c.FetchHomeData(context.Background())
	require.NoError(t, err)

	require.Len(t, data.Drones, 1)
	assert.Equal(t, protocol.DroneID("14"), data.Drones[0].ID)
	assert.Equal(t, "TARGET 14", data.Drones[0].Name)
	assert.Len(t, data.AlertZone, 3)
	assert.Len(t, data.DefenseZone, 3)
}

func TestFetchHomeDataStatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "upstream down", http.StatusBadGateway)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, time.Second)
	_, err := c.FetchHomeData(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUnexpectedStatus))
	assert.Contains(t, err.Error(), "502")
}

func TestFetchHomeDataMalformedJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"drones": [`)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, time.Second)
	_, err := c.FetchHomeData(context.Background())
	require.Error(t, err)
	assert.False(t, errors.Is(err, ErrUnexpectedStatus))
}

func TestFetchHomeDataCanceled(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	c := NewClient(srv.URL, time.Second)
	_, err := c.FetchHomeData(ctx)
	assert.Error(t, err)
}

func TestUpdateZones(t *testing.T) {
	var got protocol.UpdateZonesRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/update-zones", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		json.NewEncoder(w).Encode(protocol.UpdateZonesResponse{Success: true, Message: "Zones updated successfully"})
	}))
	defer srv.Close()

	defense := geo.Polygon{{Lat: 1, Lon: 1}, {Lat: 2, Lon: 1}, {Lat: 2, Lon: 2}}
	c := NewClient(srv.URL, time.Second)
	resp, err := c.UpdateZones(context.Background(), protocol.UpdateZonesRequest{DefenseZone: &defense})
	require.NoError(t, err)

	assert.True(t, resp.Success)
	assert.Equal(t, "Zones updated successfully", resp.Message)
	require.NotNil(t, got.DefenseZone)
	assert.Equal(t, defense, *got.DefenseZone)
	assert.Nil(t, got.AlertZone)
}

func TestFetchReport(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/report-data", r.URL.Path)
		io.WriteString(w, `{"summary":{"totalDetected":3,"redZoneDetected":1,"activeHours":"Now"},"weeklyStats":{"labels":["Mon"],"datasets":[{"data":[3]}]},"topOffenders":[{"name":"TARGET 14","count":2,"lastSeen":"10:15"}]}`)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, time.Second)
	report, err := c.FetchReport(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 3, report.Summary.TotalDetected)
	assert.Equal(t, "Now", report.Summary.ActiveHours)
	require.Len(t, report.TopOffenders, 1)
	assert.Equal(t, "TARGET 14", report.TopOffenders[0].Name)
}
