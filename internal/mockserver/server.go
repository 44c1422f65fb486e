package mockserver

import (
	"context"
	"math"
	"net/http"
	"time"

	"github.com/apex/log"
	"github.com/gin-gonic/gin"

	"github.com/smukkama/drone-defense/internal/geo"
	"github.com/smukkama/drone-defense/internal/observability"
	"github.com/smukkama/drone-defense/internal/protocol"
	"github.com/smukkama/drone-defense/internal/zone"
)

const (
	EndPointHealth      = "/health"
	EndPointMetrics     = "/metrics"
	EndPointHomeData    = "/api/home-data"
	EndPointUpdateZones = "/api/update-zones"
	EndPointReportData  = "/api/report-data"
	EndPointZonesGeo    = "/api/zones.geojson"
)

// Options configure the mock server.
type Options struct {
	Region        protocol.Region
	ReportTopSize int
}

// Server is the mock drone data source.
type Server struct {
	zones   zone.Repository
	fleet   *Fleet
	history *History
	metrics *observability.MockCollector
	opts    Options
	now     func() time.Time
}

// NewServer creates a mock server. metrics may be nil.
func NewServer(zones zone.Repository, fleet *Fleet, history *History, metrics *observability.MockCollector, opts Options) *Server {
	return &Server{
		zones:   zones,
		fleet:   fleet,
		history: history,
		metrics: metrics,
		opts:    opts,
		now:     time.Now,
	}
}

// Router builds the HTTP routes.
func (s *Server) Router() *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(cors)

	router.GET(EndPointHealth, func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "healthy",
			"service": "drone-mock-server",
			"drones":  s.fleet.Len(),
		})
	})
	if s.metrics != nil {
		router.GET(EndPointMetrics, gin.WrapH(s.metrics.Handler()))
	}

	router.GET(EndPointHomeData, s.HomeData)
	router.POST(EndPointUpdateZones, s.UpdateZones)
	router.GET(EndPointReportData, s.ReportData)
	router.GET(EndPointZonesGeo, s.ZonesGeoJSON)

	return router
}

func cors(c *gin.Context) {
	c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
	c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Accept, Origin")
	c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")

	if c.Request.Method == http.MethodOptions {
		c.AbortWithStatus(http.StatusNoContent)
		return
	}
	c.Next()
}

// HomeData serves the drones visible in the alert zone with their defense
// zone membership, the zones, the map region and per-drone readouts.
func (s *Server) HomeData(c *gin.Context) {
	zones, err := s.zones.Load(c.Request.Context())
	if err != nil {
		log.WithError(err).Error("failed to load zones")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load zones"})
		return
	}

	c.JSON(http.StatusOK, s.buildHomeData(zones))
	s.metrics.IncHomeData()
}

func (s *Server) buildHomeData(zones zone.Zones) protocol.HomeData {
	center, hasCenter := geo.Centroid(zones.DefenseZone)
	region := s.opts.Region

	data := protocol.HomeData{
		Drones:        []protocol.DroneSnapshot{},
		AlertZone:     zones.AlertZone,
		DefenseZone:   zones.DefenseZone,
		InitialRegion: &region,
		Detail:        []protocol.DroneDetail{},
	}

	for _, d := range s.fleet.Drones() {
		distance := 0.0
		if hasCenter {
			distance = roundTo(geo.DistanceMeters(d.Position, center), 2)
		}

		reachIn := 0.0
		if d.Speed > 0 {
			reachIn = math.Round(distance / d.Speed)
		}

		data.Detail = append(data.Detail, protocol.DroneDetail{
			ID:       d.ID,
			Name:     d.Name,
			Distance: distance,
			Speed:    d.Speed,
			POI:      d.POI,
			Altitude: d.Altitude,
			Heading:  math.Round(d.Heading),
			ReachIn:  reachIn,
		})

		if !geo.PointInPolygon(d.Position, zones.AlertZone) {
			continue
		}
		data.Drones = append(data.Drones, protocol.DroneSnapshot{
			ID:            d.ID,
			Name:          d.Name,
			Lat:           d.Position.Lat,
			Lon:           d.Position.Lon,
			Distance:      distance,
			ImageURL:      d.ImageURL,
			InDefenseZone: geo.PointInPolygon(d.Position, zones.DefenseZone),
		})
	}

	return data
}

// UpdateZones replaces the zones present in the body. Omitted zones are
// left unchanged and no geometry validation is done.
func (s *Server) UpdateZones(c *gin.Context) {
	var req protocol.UpdateZonesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, protocol.UpdateZonesResponse{
			Success: false,
			Message: "Invalid request body: " + err.Error(),
		})
		return
	}

	if _, err := s.zones.Apply(c.Request.Context(), req.ToUpdate()); err != nil {
		log.WithError(err).Error("failed to update zones")
		c.JSON(http.StatusInternalServerError, protocol.UpdateZonesResponse{
			Success: false,
			Message: "Failed to update zones",
		})
		return
	}

	log.WithFields(log.Fields{
		"alert_zone":   req.AlertZone != nil,
		"defense_zone": req.DefenseZone != nil,
	}).Info("zones updated")
	s.metrics.IncZoneUpdates()

	c.JSON(http.StatusOK, protocol.UpdateZonesResponse{
		Success: true,
		Message: "Zones updated successfully",
	})
}

// ReportData serves the sighting summary.
func (s *Server) ReportData(c *gin.Context) {
	c.JSON(http.StatusOK, s.history.Report(s.now(), s.opts.ReportTopSize))
}

// ZonesGeoJSON serves both zones as a FeatureCollection.
func (s *Server) ZonesGeoJSON(c *gin.Context) {
	zones, err := s.zones.Load(c.Request.Context())
	if err != nil {
		log.WithError(err).Error("failed to load zones")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load zones"})
		return
	}

	body, err := geo.ZonesFeatureCollection(zones.AlertZone, zones.DefenseZone).MarshalJSON()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to encode zones"})
		return
	}
	c.Data(http.StatusOK, "application/geo+json", body)
}

// Tick advances the fleet by dt and records what the sensors saw.
func (s *Server) Tick(ctx context.Context, dt time.Duration) error {
	s.fleet.Advance(dt)

	zones, err := s.zones.Load(ctx)
	if err != nil {
		return err
	}

	now := s.now()
	for _, d := range s.fleet.Drones() {
		visible := geo.PointInPolygon(d.Position, zones.AlertZone)
		inside := visible && geo.PointInPolygon(d.Position, zones.DefenseZone)
		s.history.Observe(d.ID, d.Name, now, visible, inside)
	}
	return nil
}

// RunFleet ticks the simulation every interval until ctx is done.
func (s *Server) RunFleet(ctx context.Context, interval time.Duration) {
	if err := s.Tick(ctx, 0); err != nil {
		log.WithError(err).Warn("fleet tick failed")
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := s.Tick(ctx, interval); err != nil {
				log.WithError(err).Warn("fleet tick failed")
			}
		}
	}
}

func roundTo(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}
