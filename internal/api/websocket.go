package api

import (
	"net/http"
	"time"

	"github.com/apex/log"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/smukkama/drone-defense/internal/protocol"
	"github.com/smukkama/drone-defense/internal/stream"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 512
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// Stream upgrades the request and pushes alert log changes to the client,
// starting with a snapshot of the whole log.
func (h *Handler) Stream(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.WithError(err).Warn("websocket upgrade failed")
		return
	}

	client, err := h.deps.Hub.RegisterWith(c.Request.RemoteAddr, h.snapshotEvent)
	if err != nil {
		log.WithError(err).Warn("rejecting stream client")
		conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseTryAgainLater, err.Error()),
			time.Now().Add(writeWait))
		conn.Close()
		return
	}

	go writePump(conn, client)
	go readPump(conn, h.deps.Hub, client.ID)
}

func (h *Handler) snapshotEvent() interface{} {
	alerts := h.deps.Alerts.All()
	return protocol.StreamEvent{
		Type:        protocol.StreamSnapshot,
		Alerts:      alerts,
		UnreadCount: h.deps.Alerts.UnreadCount(),
	}
}

// readPump discards client input and keeps the read deadline fresh. It
// unregisters the client when the connection goes away.
func readPump(conn *websocket.Conn, hub *stream.Hub, id string) {
	defer func() {
		hub.Unregister(id)
		conn.Close()
	}()

	conn.SetReadLimit(maxMessageSize)
	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.WithError(err).WithField("client_id", id).Warn("stream read error")
			}
			return
		}
	}
}

// writePump writes queued events and pings until the hub closes the send
// channel or a write fails.
func writePump(conn *websocket.Conn, client *stream.Client) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		conn.Close()
	}()

	for {
		select {
		case payload, ok := <-client.Send():
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				return
			}

		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
