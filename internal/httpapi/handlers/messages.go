package handlers

import (
	"github.com/gin-gonic/gin"

	"wa-gateway/internal/httpapi/dto"
	"wa-gateway/internal/httpapi/response"
	"wa-gateway/internal/limitguard"
	"wa-gateway/internal/models"
	"wa-gateway/internal/outboundqueue"
	"wa-gateway/internal/store"
)

// MessageHandler implements `POST /api/messages/:session_id/send`, validating
// and enqueueing before responding.
type MessageHandler struct {
	store store.Store
	queue *outboundqueue.Queue
	guard *limitguard.Guard
}

func NewMessageHandler(st store.Store, queue *outboundqueue.Queue, guard *limitguard.Guard) *MessageHandler {
	return &MessageHandler{store: st, queue: queue, guard: guard}
}

func (h *MessageHandler) Send(c *gin.Context) {
	sessionID := c.Param("session_id")

	var req dto.SendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, 400, "invalid request body: "+err.Error(), nil)
		return
	}

	sess, err := h.store.GetSession(c.Request.Context(), sessionID)
	if err == store.ErrNotFound {
		response.Error(c, 404, "session not found", nil)
		return
	}
	if err != nil {
		response.Error(c, 500, "failed to load session", nil)
		return
	}
	if sess.Status != models.SessionConnected {
		response.Error(c, 409, "session is not connected", nil)
		return
	}

	org, err := h.store.GetOrganization(c.Request.Context(), sess.OrgID)
	if err != nil {
		response.Error(c, 500, "failed to load organization", nil)
		return
	}
	if err := h.guard.CheckMessageLimit(c.Request.Context(), org); err != nil {
		response.FromAppError(c, err)
		return
	}

	queueID := h.queue.Enqueue(sessionID, req.To, req.Message, "text")
	response.OK(c, dto.SendMessageResponse{QueueID: queueID})
}
