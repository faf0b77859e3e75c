// Package handlers implements the HTTP edge's route handlers, modeling
// per-org WhatsApp sessions rather than per-user devices.
package handlers

import (
	"time"

	"github.com/gin-gonic/gin"

	"wa-gateway/internal/httpapi/dto"
	"wa-gateway/internal/httpapi/middleware"
	"wa-gateway/internal/httpapi/response"
	"wa-gateway/internal/limitguard"
	"wa-gateway/internal/logger"
	"wa-gateway/internal/models"
	"wa-gateway/internal/outboundqueue"
	"wa-gateway/internal/store"
	"wa-gateway/internal/supervisor"
)

// SessionHandler implements the sessions.* routes named in spec.md §6.
type SessionHandler struct {
	store      store.Store
	supervisor *supervisor.Supervisor
	queue      *outboundqueue.Queue
	guard      *limitguard.Guard
	log        logger.Logger
}

func NewSessionHandler(st store.Store, sup *supervisor.Supervisor, queue *outboundqueue.Queue, guard *limitguard.Guard, log logger.Logger) *SessionHandler {
	return &SessionHandler{store: st, supervisor: sup, queue: queue, guard: guard, log: log}
}

// callerOrg resolves the authenticated caller's organization, per spec.md
// §3's "one [org] per owner" invariant.
func (h *SessionHandler) callerOrg(c *gin.Context) (*models.Organization, bool) {
	userID := middleware.UserID(c)
	org, err := h.store.GetOrganizationByOwner(c.Request.Context(), userID)
	if err != nil {
		response.Error(c, 404, "no organization for this user", nil)
		return nil, false
	}
	return org, true
}

// Create implements `POST /api/sessions/create`: validate the id, check the
// account limit, persist the session row, then ask the Supervisor to bring
// up the client. 403 on limit, 500 on supervisor failure, per spec.md §6.
func (h *SessionHandler) Create(c *gin.Context) {
	var req dto.CreateSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, 400, "invalid request body: "+err.Error(), nil)
		return
	}
	if !models.ValidSessionID(req.SessionID) {
		response.Error(c, 400, "invalid session_id: must be 1-100 chars of [A-Za-z0-9_-]", nil)
		return
	}

	org, ok := h.callerOrg(c)
	if !ok {
		return
	}

	if err := h.guard.CheckAccountLimit(c.Request.Context(), org); err != nil {
		response.FromAppError(c, err)
		return
	}

	if _, err := h.store.CreateSession(c.Request.Context(), req.SessionID, org.ID); err != nil {
		response.Error(c, 500, "failed to create session", nil)
		return
	}

	if err := h.supervisor.Create(c.Request.Context(), req.SessionID, org.ID); err != nil {
		h.log.ErrorWithFields("http: supervisor create failed", logger.Fields{
			"session_id": req.SessionID, "error": err.Error(),
		})
		response.Error(c, 500, "failed to start session", nil)
		return
	}

	response.Created(c, dto.CreateSessionResponse{Success: true, SessionID: req.SessionID})
}

// List implements `GET /api/sessions`.
func (h *SessionHandler) List(c *gin.Context) {
	org, ok := h.callerOrg(c)
	if !ok {
		return
	}

	sessions, err := h.store.ListSessionsByOrg(c.Request.Context(), org.ID)
	if err != nil {
		response.Error(c, 500, "failed to list sessions", nil)
		return
	}

	out := make([]dto.SessionSummary, 0, len(sessions))
	for _, s := range sessions {
		out = append(out, dto.SessionSummary{
			SessionID:   s.SessionID,
			Status:      string(s.Status),
			PhoneNumber: s.PhoneNumber,
			CreatedAt:   s.CreatedAt,
		})
	}
	response.OK(c, out)
}

// Status implements `GET /api/sessions/:id/status`.
func (h *SessionHandler) Status(c *gin.Context) {
	sessionID := c.Param("id")
	sess, err := h.store.GetSession(c.Request.Context(), sessionID)
	if err == store.ErrNotFound {
		response.Error(c, 404, "session not found", nil)
		return
	}
	if err != nil {
		response.Error(c, 500, "failed to load session", nil)
		return
	}

	response.OK(c, dto.SessionStatusResponse{
		SessionID:         sess.SessionID,
		Status:            string(sess.Status),
		PhoneNumber:       sess.PhoneNumber,
		ErrorMessage:      sess.ErrorMessage,
		ReconnectAttempts: sess.ReconnectAttempts,
		LastSeenAt:        sess.LastSeenAt,
	})
}

// Disconnect implements `POST /api/sessions/:id/disconnect`: tears the
// session down entirely via the Supervisor's Destroy, per spec.md §4.C
// (there is no partial-disconnect state in the session model).
func (h *SessionHandler) Disconnect(c *gin.Context) {
	sessionID := c.Param("id")
	h.queue.Stop(sessionID)
	if err := h.supervisor.Destroy(c.Request.Context(), sessionID); err != nil {
		if err == store.ErrNotFound {
			response.Error(c, 404, "session not found", nil)
			return
		}
		response.Error(c, 500, "failed to disconnect session", nil)
		return
	}
	response.OK(c, gin.H{"message": "session disconnected", "session_id": sessionID})
}

// Health implements `GET /api/health`.
func Health(startedAt time.Time) gin.HandlerFunc {
	return func(c *gin.Context) {
		response.OK(c, dto.HealthResponse{
			Status:    "ok",
			Uptime:    time.Since(startedAt).String(),
			Timestamp: time.Now(),
		})
	}
}
