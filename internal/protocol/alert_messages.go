package protocol

import (
	"encoding/json"
	"time"

	"github.com/smukkama/drone-defense/internal/alertlog"
)

// AlertNotification is the message published to Kafka and NATS for every
// emitted alert.
type AlertNotification struct {
	Type      string    `json:"type"` // INTRUSION_DETECTED
	RecordID  uint64    `json:"record_id"`
	DroneID   string    `json:"drone_id"`
	DroneName string    `json:"drone_name"`
	Title     string    `json:"title"`
	Message   string    `json:"message"`
	CreatedAt time.Time `json:"created_at"`
	Source    string    `json:"source,omitempty"`
}

const (
	AlertTypeIntrusion = "INTRUSION_DETECTED"
)

// NewAlertNotification builds the fan-out message for an alert record.
func NewAlertNotification(rec alertlog.Record, source string) *AlertNotification {
	return &AlertNotification{
		Type:      AlertTypeIntrusion,
		RecordID:  rec.ID,
		DroneID:   rec.DroneID,
		DroneName: rec.DroneName,
		Title:     rec.Title,
		Message:   rec.Message,
		CreatedAt: rec.CreatedAt,
		Source:    source,
	}
}

// EncodeAlertNotification encodes an AlertNotification to JSON
func EncodeAlertNotification(alert *AlertNotification) ([]byte, error) {
	return json.Marshal(alert)
}

// DecodeAlertNotification decodes JSON to AlertNotification
func DecodeAlertNotification(data []byte) (*AlertNotification, error) {
	var alert AlertNotification
	if err := json.Unmarshal(data, &alert); err != nil {
		return nil, err
	}
	return &alert, nil
}

// StreamEventType tags messages on the monitor websocket.
type StreamEventType string

const (
	StreamSnapshot StreamEventType = "snapshot"
	StreamAppended StreamEventType = "appended"
	StreamRead     StreamEventType = "read"
)

// StreamEvent is pushed to websocket clients.
type StreamEvent struct {
	Type        StreamEventType   `json:"type"`
	Alerts      []alertlog.Record `json:"alerts,omitempty"`
	Record      *alertlog.Record  `json:"record,omitempty"`
	UnreadCount int               `json:"unreadCount"`
}

// StreamEventFromChange converts an alert log change.
func StreamEventFromChange(c alertlog.Change) StreamEvent {
	ev := StreamEvent{Type: StreamRead, UnreadCount: c.Unread}
	if c.Kind == alertlog.ChangeAppended {
		ev.Type = StreamAppended
		ev.Record = c.Record
	}
	return ev
}
