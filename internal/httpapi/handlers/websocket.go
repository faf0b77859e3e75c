package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"wa-gateway/internal/eventbus"
	"wa-gateway/internal/eventbus/wsedge"
	"wa-gateway/internal/logger"
)

// WebSocketHandler implements the room-per-session WebSocket edge named in
// spec.md §6: one broadcast room per session.
type WebSocketHandler struct {
	bus      *eventbus.Bus
	upgrader websocket.Upgrader
	log      logger.Logger
}

func NewWebSocketHandler(bus *eventbus.Bus, log logger.Logger) *WebSocketHandler {
	return &WebSocketHandler{
		bus: bus,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		log: log,
	}
}

// Join upgrades the connection and subscribes it to one session's events
// until the socket closes.
func (h *WebSocketHandler) Join(c *gin.Context) {
	sessionID := c.Param("session_id")

	ws, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.WarnWithFields("websocket upgrade failed", logger.Fields{"session_id": sessionID, "error": err.Error()})
		return
	}

	conn := wsedge.New(ws, h.log)
	h.bus.Join(sessionID, conn)
	defer h.bus.Leave(sessionID, conn)
	defer conn.Close()

	for {
		if _, _, err := ws.ReadMessage(); err != nil {
			return
		}
	}
}
