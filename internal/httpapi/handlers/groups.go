package handlers

import (
	"context"

	"github.com/gin-gonic/gin"

	"wa-gateway/internal/httpapi/dto"
	"wa-gateway/internal/httpapi/response"
	"wa-gateway/internal/supervisor"
)

// GroupHandler implements the `/api/groups/*` routes named in spec.md §6,
// delegating to the Supervisor's per-org Session type.
type GroupHandler struct {
	supervisor *supervisor.Supervisor
}

func NewGroupHandler(sup *supervisor.Supervisor) *GroupHandler {
	return &GroupHandler{supervisor: sup}
}

// List implements `GET /api/groups/:session_id/groups`. It returns the
// metadata of the single group named by the `jid` query parameter; the
// session's groups are not enumerated.
func (h *GroupHandler) List(c *gin.Context) {
	sessionID := c.Param("session_id")
	meta, err := h.supervisor.GroupMetadataByJID(c.Request.Context(), sessionID, c.Query("jid"))
	if err != nil {
		response.FromAppError(c, err)
		return
	}
	response.OK(c, meta)
}

// Create implements `POST /api/groups/:session_id/create`.
func (h *GroupHandler) Create(c *gin.Context) {
	sessionID := c.Param("session_id")

	var req dto.CreateGroupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, 400, "invalid request body: "+err.Error(), nil)
		return
	}

	meta, err := h.supervisor.CreateGroup(c.Request.Context(), sessionID, req.Name, req.Participants)
	if err != nil {
		response.FromAppError(c, err)
		return
	}
	response.Created(c, meta)
}

// Participants implements `GET /api/groups/:jid/participants`.
func (h *GroupHandler) Participants(c *gin.Context) {
	sessionID := c.Query("session_id")
	meta, err := h.supervisor.GroupMetadataByJID(c.Request.Context(), sessionID, c.Param("jid"))
	if err != nil {
		response.FromAppError(c, err)
		return
	}
	response.OK(c, meta)
}

// AddParticipants implements `POST /api/groups/:jid/add-participants`.
func (h *GroupHandler) AddParticipants(c *gin.Context) {
	h.participantOp(c, h.supervisor.AddParticipants)
}

// RemoveParticipant implements `POST /api/groups/:jid/remove-participant`.
func (h *GroupHandler) RemoveParticipant(c *gin.Context) {
	h.participantOp(c, h.supervisor.RemoveParticipants)
}

// Promote implements `POST /api/groups/:jid/promote`.
func (h *GroupHandler) Promote(c *gin.Context) {
	h.participantOp(c, h.supervisor.PromoteParticipants)
}

// participantOp shares the bind-session_id/parse-body/call/respond shape
// across add/remove/promote, which differ only in which Supervisor
// method they call.
func (h *GroupHandler) participantOp(c *gin.Context, op func(ctx context.Context, sessionID, groupJID string, participants []string) ([]supervisor.ParticipantResult, error)) {
	sessionID := c.Query("session_id")
	groupJID := c.Param("jid")

	var req dto.ParticipantsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, 400, "invalid request body: "+err.Error(), nil)
		return
	}

	results, err := op(c.Request.Context(), sessionID, groupJID, req.Participants)
	if err != nil {
		response.FromAppError(c, err)
		return
	}
	response.OK(c, results)
}

// Broadcast implements `POST /api/groups/:jid/broadcast`.
func (h *GroupHandler) Broadcast(c *gin.Context) {
	sessionID := c.Query("session_id")
	groupJID := c.Param("jid")

	var req dto.BroadcastRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, 400, "invalid request body: "+err.Error(), nil)
		return
	}

	results, err := h.supervisor.BroadcastToMembers(c.Request.Context(), sessionID, groupJID, req.Message)
	if err != nil {
		response.FromAppError(c, err)
		return
	}
	response.OK(c, results)
}

// Settings implements `POST /api/groups/:jid/settings`.
func (h *GroupHandler) Settings(c *gin.Context) {
	sessionID := c.Query("session_id")
	groupJID := c.Param("jid")

	var req dto.GroupSettingsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, 400, "invalid request body: "+err.Error(), nil)
		return
	}

	upd := supervisor.GroupSettingsUpdate{
		Name: req.Name, Topic: req.Topic, IsAnnounce: req.IsAnnounce, IsLocked: req.IsLocked,
	}
	if err := h.supervisor.UpdateGroupSettings(c.Request.Context(), sessionID, groupJID, upd); err != nil {
		response.FromAppError(c, err)
		return
	}
	response.OK(c, gin.H{"message": "group settings updated"})
}
