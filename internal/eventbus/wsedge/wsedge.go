// Package wsedge adapts a gorilla/websocket connection into an
// eventbus.Subscriber, the concrete subscriber behind spec.md §6's
// WebSocket edge: one room per joined session id, writes serialized
// as JSON per the `qr_updated`/`connection_status`/`new_message` message
// shapes.
package wsedge

import (
	"sync"

	"github.com/gorilla/websocket"

	"wa-gateway/internal/eventbus"
	"wa-gateway/internal/logger"
)

// wireMessage is the {type, data} envelope sent down every websocket
// connection, keyed by the bus's topic names.
type wireMessage struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

var topicWireType = map[eventbus.Topic]string{
	eventbus.TopicQR:               "qr_updated",
	eventbus.TopicConnectionStatus: "connection_status",
	eventbus.TopicMessage:          "new_message",
	eventbus.TopicGroupUpdate:      "group_update",
}

// Conn wraps one client socket. WriteJSON is not goroutine-safe per the
// gorilla/websocket docs, so every Notify call serializes through writeMu -
// the bus already dispatches Notify in its own goroutine, this just keeps
// concurrent notifications for the same connection from racing each other.
type Conn struct {
	ws      *websocket.Conn
	log     logger.Logger
	writeMu sync.Mutex
}

func New(ws *websocket.Conn, log logger.Logger) *Conn {
	return &Conn{ws: ws, log: log}
}

func (c *Conn) Notify(ev eventbus.Event) {
	wireType, ok := topicWireType[ev.Topic]
	if !ok {
		wireType = string(ev.Topic)
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if err := c.ws.WriteJSON(wireMessage{Type: wireType, Data: ev.Payload}); err != nil {
		c.log.WarnWithFields("websocket write failed", logger.Fields{
			"session_id": ev.SessionID,
			"error":      err.Error(),
		})
	}
}

func (c *Conn) Close() error {
	return c.ws.Close()
}
