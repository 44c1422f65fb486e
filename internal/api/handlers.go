package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/apex/log"
	"github.com/gin-gonic/gin"

	"github.com/smukkama/drone-defense/internal/alerting"
	"github.com/smukkama/drone-defense/internal/alertlog"
	"github.com/smukkama/drone-defense/internal/database"
	"github.com/smukkama/drone-defense/internal/geo"
	"github.com/smukkama/drone-defense/internal/poller"
	"github.com/smukkama/drone-defense/internal/protocol"
	"github.com/smukkama/drone-defense/internal/zone"
)

const defaultArchiveLimit = 50

// AlertStore is the part of the alert log the API reads and marks.
type AlertStore interface {
	All() []alertlog.Record
	UnreadCount() int
	MarkRead()
}

// ZoneUpdater pushes zone edits to the data source.
type ZoneUpdater interface {
	UpdateZones(ctx context.Context, update protocol.UpdateZonesRequest) (*protocol.UpdateZonesResponse, error)
}

// ZoneEditor applies accepted zone edits locally. *poller.Poller satisfies it.
type ZoneEditor interface {
	ApplyZones(u zone.Update) zone.Zones
}

// DroneView exposes the poller's latest batch and health.
type DroneView interface {
	Snapshot() poller.Snapshot
	Status() poller.Status
}

// AlertArchive lists archived alerts.
type AlertArchive interface {
	ListAlerts(ctx context.Context, limit int) ([]database.AlertRow, error)
}

// AlertsResponse is returned by GET /api/alerts.
type AlertsResponse struct {
	Alerts      []alertlog.Record `json:"alerts"`
	UnreadCount int               `json:"unreadCount"`
}

// DronesResponse is returned by GET /api/drones.
type DronesResponse struct {
	Snapshot poller.Snapshot `json:"snapshot"`
	Status   poller.Status   `json:"status"`
}

// ZonesResponse carries the zones known to the monitor.
type ZonesResponse struct {
	AlertZone   geo.Polygon `json:"alertZone"`
	DefenseZone geo.Polygon `json:"defenseZone"`
	Message     string      `json:"message,omitempty"`
}

func zonesResponse(z zone.Zones, message string) ZonesResponse {
	return ZonesResponse{AlertZone: z.AlertZone, DefenseZone: z.DefenseZone, Message: message}
}

// GetAlerts returns the alert history, newest first, with the unread count.
func (h *Handler) GetAlerts(c *gin.Context) {
	alerts := h.deps.Alerts.All()
	if alerts == nil {
		alerts = []alertlog.Record{}
	}
	c.JSON(http.StatusOK, AlertsResponse{
		Alerts:      alerts,
		UnreadCount: h.deps.Alerts.UnreadCount(),
	})
}

// GetUnread returns only the unread count.
func (h *Handler) GetUnread(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"unreadCount": h.deps.Alerts.UnreadCount()})
}

// MarkRead resets the unread count. The history is untouched.
func (h *Handler) MarkRead(c *gin.Context) {
	h.deps.Alerts.MarkRead()
	c.JSON(http.StatusOK, gin.H{"unreadCount": h.deps.Alerts.UnreadCount()})
}

// GetZones returns the zones last mirrored from the data source.
func (h *Handler) GetZones(c *gin.Context) {
	c.JSON(http.StatusOK, zonesResponse(h.deps.Zones.Zones(), ""))
}

// UpdateZones forwards a zone edit to the data source and applies it locally
// once the source accepts it.
func (h *Handler) UpdateZones(c *gin.Context) {
	var req protocol.UpdateZonesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body: " + err.Error()})
		return
	}
	if req.AlertZone == nil && req.DefenseZone == nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "no zones provided"})
		return
	}

	resp, err := h.deps.Source.UpdateZones(c.Request.Context(), req)
	if err != nil {
		log.WithError(err).Warn("zone update rejected by data source")
		c.JSON(http.StatusBadGateway, gin.H{"error": "data source did not accept the update"})
		return
	}
	if !resp.Success {
		c.JSON(http.StatusBadGateway, gin.H{"error": resp.Message})
		return
	}

	var zones zone.Zones
	if h.deps.Editor != nil {
		zones = h.deps.Editor.ApplyZones(req.ToUpdate())
	} else {
		zones = h.deps.Zones.SetZones(req.ToUpdate())
	}
	log.WithFields(log.Fields{
		"alert_zone":   req.AlertZone != nil,
		"defense_zone": req.DefenseZone != nil,
	}).Info("zones updated")

	c.JSON(http.StatusOK, zonesResponse(zones, resp.Message))
}

// GetDrones returns the last classified batch and the poll status.
func (h *Handler) GetDrones(c *gin.Context) {
	snap := h.deps.Drones.Snapshot()
	if snap.Drones == nil {
		snap.Drones = []alerting.ClassifiedDrone{}
	}
	c.JSON(http.StatusOK, DronesResponse{
		Snapshot: snap,
		Status:   h.deps.Drones.Status(),
	})
}

// GetArchive lists archived alerts from Postgres.
func (h *Handler) GetArchive(c *gin.Context) {
	if h.deps.Archive == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "alert archive is not configured"})
		return
	}

	limit := defaultArchiveLimit
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a positive integer"})
			return
		}
		limit = n
	}

	rows, err := h.deps.Archive.ListAlerts(c.Request.Context(), limit)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return
		}
		log.WithError(err).Error("failed to list archived alerts")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list archived alerts"})
		return
	}
	if rows == nil {
		rows = []database.AlertRow{}
	}
	c.JSON(http.StatusOK, gin.H{"alerts": rows, "count": len(rows)})
}
