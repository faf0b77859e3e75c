// Package httpapi wires the gin router: the thin HTTP/WebSocket edge named
// in spec.md §6, kept intentionally small since it exists mainly to drive
// components A-I end to end in tests.
package httpapi

import (
	"time"

	"github.com/gin-gonic/gin"

	"wa-gateway/internal/config"
	"wa-gateway/internal/eventbus"
	"wa-gateway/internal/httpapi/handlers"
	"wa-gateway/internal/httpapi/middleware"
	"wa-gateway/internal/limitguard"
	"wa-gateway/internal/logger"
	"wa-gateway/internal/outboundqueue"
	"wa-gateway/internal/store"
	"wa-gateway/internal/supervisor"
)

// Deps bundles everything the router needs to build its handlers.
type Deps struct {
	Config     *config.Config
	Store      store.Store
	Supervisor *supervisor.Supervisor
	Queue      *outboundqueue.Queue
	Guard      *limitguard.Guard
	Bus        *eventbus.Bus
	Log        logger.Logger
	StartedAt  time.Time
}

// NewRouter builds the gin engine and registers every route named in
// spec.md §6.
func NewRouter(d Deps) *gin.Engine {
	if !d.Config.Server.Debug {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.CORS(d.Config))
	r.Use(middleware.RequestLogger(d.Log))

	sessionH := handlers.NewSessionHandler(d.Store, d.Supervisor, d.Queue, d.Guard, d.Log)
	messageH := handlers.NewMessageHandler(d.Store, d.Queue, d.Guard)
	groupH := handlers.NewGroupHandler(d.Supervisor)
	wsH := handlers.NewWebSocketHandler(d.Bus, d.Log)

	r.GET("/api/health", handlers.Health(d.StartedAt))
	r.GET("/ws/:session_id", wsH.Join)

	api := r.Group("/api")
	api.Use(middleware.Auth(d.Config))
	{
		sessions := api.Group("/sessions")
		sessions.POST("/create", sessionH.Create)
		sessions.GET("", sessionH.List)
		sessions.GET("/:id/status", sessionH.Status)
		sessions.POST("/:id/disconnect", sessionH.Disconnect)

		messages := api.Group("/messages")
		messages.POST("/:session_id/send", messageH.Send)

		groups := api.Group("/groups")
		groups.GET("/:session_id/groups", groupH.List)
		groups.POST("/:session_id/create", groupH.Create)
		groups.GET("/:jid/participants", groupH.Participants)
		groups.POST("/:jid/add-participants", groupH.AddParticipants)
		groups.POST("/:jid/remove-participant", groupH.RemoveParticipant)
		groups.POST("/:jid/promote", groupH.Promote)
		groups.POST("/:jid/broadcast", groupH.Broadcast)
		groups.POST("/:jid/settings", groupH.Settings)
	}

	return r
}
