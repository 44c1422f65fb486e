package database

import (
	"time"

	"github.com/smukkama/drone-defense/internal/protocol"
)

// AlertRow is one archived intrusion alert.
type AlertRow struct {
	ID         int64     `json:"id"`
	Source     string    `json:"source"`
	RecordID   int64     `json:"recordId"`
	DroneID    string    `json:"droneId"`
	DroneName  string    `json:"droneName"`
	Title      string    `json:"title"`
	Message    string    `json:"message"`
	CreatedAt  time.Time `json:"createdAt"`
	ArchivedAt time.Time `json:"archivedAt"`
}

// AlertRowFromNotification maps a fan-out message onto an archive row.
func AlertRowFromNotification(n *protocol.AlertNotification) AlertRow {
	return AlertRow{
		Source:    n.Source,
		RecordID:  int64(n.RecordID),
		DroneID:   n.DroneID,
		DroneName: n.DroneName,
		Title:     n.Title,
		Message:   n.Message,
		CreatedAt: n.CreatedAt,
	}
}
