package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/smukkama/drone-defense/internal/observability"
	"github.com/smukkama/drone-defense/internal/stream"
	"github.com/smukkama/drone-defense/internal/zone"
)

const (
	EndPointHealth   = "/health"
	EndPointMetrics  = "/metrics"
	EndPointAlerts   = "/api/alerts"
	EndPointUnread   = "/api/alerts/unread"
	EndPointMarkRead = "/api/alerts/read"
	EndPointArchive  = "/api/alerts/archive"
	EndPointZones    = "/api/zones"
	EndPointDrones   = "/api/drones"
	EndPointStream   = "/ws"
)

// Deps are the services the monitor API is built on. Archive and Metrics
// are optional. Without an Editor, zone edits go straight to Zones.
type Deps struct {
	Alerts  AlertStore
	Zones   *zone.Store
	Editor  ZoneEditor
	Source  ZoneUpdater
	Drones  DroneView
	Hub     *stream.Hub
	Archive AlertArchive
	Metrics *observability.MonitorCollector
}

// Handler serves the monitor API.
type Handler struct {
	deps Deps
}

// NewHandler creates the monitor API handler.
func NewHandler(deps Deps) *Handler {
	return &Handler{deps: deps}
}

// Router builds the HTTP routes.
func (h *Handler) Router() *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Accept, Origin")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	})

	router.GET(EndPointHealth, h.Health)
	if h.deps.Metrics != nil {
		router.GET(EndPointMetrics, gin.WrapH(h.deps.Metrics.Handler()))
	}

	router.GET(EndPointAlerts, h.GetAlerts)
	router.GET(EndPointUnread, h.GetUnread)
	router.POST(EndPointMarkRead, h.MarkRead)
	router.GET(EndPointArchive, h.GetArchive)
	router.GET(EndPointZones, h.GetZones)
	router.POST(EndPointZones, h.UpdateZones)
	router.GET(EndPointDrones, h.GetDrones)
	router.GET(EndPointStream, h.Stream)

	return router
}

// Health reports liveness together with the poll status and stream load.
func (h *Handler) Health(c *gin.Context) {
	status := h.deps.Drones.Status()
	state := "healthy"
	if status.Stale {
		state = "degraded"
	}
	c.JSON(http.StatusOK, gin.H{
		"status":         state,
		"service":        "drone-monitor",
		"poll":           status,
		"stream_clients": h.deps.Hub.Count(),
	})
}
