package supervisor

import (
	"context"

	"go.mau.fi/whatsmeow"
	"go.mau.fi/whatsmeow/types"

	"wa-gateway/internal/apperrors"
	"wa-gateway/internal/logger"
	"wa-gateway/internal/models"
)

// ParticipantResult is one participant's outcome from an add/remove/promote/
// demote call, mirroring whatsmeow's per-participant error reporting.
type ParticipantResult struct {
	JID   string
	Error string
}

// GroupMetadata is the subset of types.GroupInfo the gateway exposes.
type GroupMetadata struct {
	JID              string
	Name             string
	Topic            string
	OwnerJID         string
	ParticipantCount int
	IsAnnounce       bool
	IsLocked         bool
}

// CreateGroup creates a WhatsApp group. Shares the connected-session
// precondition every group operation here enforces.
func (s *Supervisor) CreateGroup(ctx context.Context, sessionID, name string, participants []string) (*GroupMetadata, error) {
	client, err := s.connectedClient(sessionID)
	if err != nil {
		return nil, err
	}

	jids, _ := parseJIDs(participants)
	info, err := client.CreateGroup(ctx, whatsmeow.ReqCreateGroup{Name: name, Participants: jids})
	if err != nil {
		return nil, apperrors.TransientWrap(err, "creating group on session %s", sessionID)
	}

	meta := groupMetadataFromInfo(info)
	if err := s.store.UpsertGroup(ctx, &models.Group{
		SessionID:        sessionID,
		GroupJID:         meta.JID,
		Name:             meta.Name,
		Description:      meta.Topic,
		ParticipantCount: meta.ParticipantCount,
	}); err != nil {
		s.log.WarnWithFields("supervisor: upserting newly created group failed", logger.Fields{
			"session_id": sessionID, "group_jid": meta.JID, "error": err.Error(),
		})
	}
	return meta, nil
}

// GroupMetadataByJID fetches current metadata for a group the session is a
// member of.
func (s *Supervisor) GroupMetadataByJID(ctx context.Context, sessionID, groupJID string) (*GroupMetadata, error) {
	client, err := s.connectedClient(sessionID)
	if err != nil {
		return nil, err
	}
	jid, err := types.ParseJID(groupJID)
	if err != nil {
		return nil, apperrors.Validation("invalid group JID %q: %v", groupJID, err)
	}
	info, err := client.GetGroupInfo(ctx, jid)
	if err != nil {
		return nil, apperrors.TransientWrap(err, "fetching group info for %s", groupJID)
	}
	return groupMetadataFromInfo(info), nil
}

// AddParticipants, RemoveParticipants, PromoteParticipants, and
// DemoteParticipants all share one precondition (connected session) and one
// whatsmeow call shape (UpdateGroupParticipants with a different
// ParticipantChange).
func (s *Supervisor) AddParticipants(ctx context.Context, sessionID, groupJID string, participants []string) ([]ParticipantResult, error) {
	return s.updateParticipants(ctx, sessionID, groupJID, participants, whatsmeow.ParticipantChangeAdd)
}

func (s *Supervisor) RemoveParticipants(ctx context.Context, sessionID, groupJID string, participants []string) ([]ParticipantResult, error) {
	return s.updateParticipants(ctx, sessionID, groupJID, participants, whatsmeow.ParticipantChangeRemove)
}

func (s *Supervisor) PromoteParticipants(ctx context.Context, sessionID, groupJID string, participants []string) ([]ParticipantResult, error) {
	return s.updateParticipants(ctx, sessionID, groupJID, participants, whatsmeow.ParticipantChangePromote)
}

func (s *Supervisor) DemoteParticipants(ctx context.Context, sessionID, groupJID string, participants []string) ([]ParticipantResult, error) {
	return s.updateParticipants(ctx, sessionID, groupJID, participants, whatsmeow.ParticipantChangeDemote)
}

func (s *Supervisor) updateParticipants(ctx context.Context, sessionID, groupJID string, participants []string, change whatsmeow.ParticipantChange) ([]ParticipantResult, error) {
	client, err := s.connectedClient(sessionID)
	if err != nil {
		return nil, err
	}
	jid, err := types.ParseJID(groupJID)
	if err != nil {
		return nil, apperrors.Validation("invalid group JID %q: %v", groupJID, err)
	}
	jids, _ := parseJIDs(participants)

	results, err := client.UpdateGroupParticipants(ctx, jid, jids, change)
	if err != nil {
		return nil, apperrors.TransientWrap(err, "updating participants on %s", groupJID)
	}

	out := make([]ParticipantResult, 0, len(results))
	for _, r := range results {
		errMsg := ""
		if r.Error != 0 {
			errMsg = "whatsapp rejected this participant"
		}
		out = append(out, ParticipantResult{JID: r.JID.String(), Error: errMsg})
	}
	return out, nil
}

// LeaveGroup removes the session's own account from a group.
func (s *Supervisor) LeaveGroup(ctx context.Context, sessionID, groupJID string) error {
	client, err := s.connectedClient(sessionID)
	if err != nil {
		return err
	}
	jid, err := types.ParseJID(groupJID)
	if err != nil {
		return apperrors.Validation("invalid group JID %q: %v", groupJID, err)
	}
	if err := client.LeaveGroup(ctx, jid); err != nil {
		return apperrors.TransientWrap(err, "leaving group %s", groupJID)
	}
	return nil
}

// UpdateGroupSettings covers name/topic/announce-only/locked, each applied
// only when its pointer is non-nil - an "apply what was provided" shape.
type GroupSettingsUpdate struct {
	Name       *string
	Topic      *string
	IsAnnounce *bool
	IsLocked   *bool
}

func (s *Supervisor) UpdateGroupSettings(ctx context.Context, sessionID, groupJID string, upd GroupSettingsUpdate) error {
	client, err := s.connectedClient(sessionID)
	if err != nil {
		return err
	}
	jid, err := types.ParseJID(groupJID)
	if err != nil {
		return apperrors.Validation("invalid group JID %q: %v", groupJID, err)
	}

	if upd.Name != nil {
		if err := client.SetGroupName(ctx, jid, *upd.Name); err != nil {
			return apperrors.TransientWrap(err, "setting group name on %s", groupJID)
		}
	}
	if upd.Topic != nil {
		if err := client.SetGroupTopic(ctx, jid, "", "", *upd.Topic); err != nil {
			return apperrors.TransientWrap(err, "setting group topic on %s", groupJID)
		}
	}
	if upd.IsAnnounce != nil {
		if err := client.SetGroupAnnounce(ctx, jid, *upd.IsAnnounce); err != nil {
			return apperrors.TransientWrap(err, "setting group announce-only on %s", groupJID)
		}
	}
	if upd.IsLocked != nil {
		if err := client.SetGroupLocked(ctx, jid, *upd.IsLocked); err != nil {
			return apperrors.TransientWrap(err, "setting group locked on %s", groupJID)
		}
	}
	return nil
}

// BroadcastToMembers sends the same text to every participant of a group
// individually (not a WhatsApp-native broadcast list), per spec.md §4.C's
// "broadcast-to-members" group operation.
func (s *Supervisor) BroadcastToMembers(ctx context.Context, sessionID, groupJID, content string) ([]ParticipantResult, error) {
	meta, err := s.GroupMetadataByJID(ctx, sessionID, groupJID)
	if err != nil {
		return nil, err
	}
	client, err := s.connectedClient(sessionID)
	if err != nil {
		return nil, err
	}
	jid, err := types.ParseJID(meta.JID)
	if err != nil {
		return nil, apperrors.Validation("invalid group JID %q: %v", meta.JID, err)
	}
	info, err := client.GetGroupInfo(ctx, jid)
	if err != nil {
		return nil, apperrors.TransientWrap(err, "fetching group participants for %s", groupJID)
	}

	out := make([]ParticipantResult, 0, len(info.Participants))
	for _, p := range info.Participants {
		_, err := client.SendMessage(ctx, p.JID, textMessage(content))
		res := ParticipantResult{JID: p.JID.String()}
		if err != nil {
			res.Error = err.Error()
		}
		out = append(out, res)
	}
	return out, nil
}

func parseJIDs(raw []string) ([]types.JID, []string) {
	jids := make([]types.JID, 0, len(raw))
	var rejected []string
	for _, r := range raw {
		jid, err := toJID(r)
		if err != nil {
			rejected = append(rejected, r)
			continue
		}
		jids = append(jids, jid)
	}
	return jids, rejected
}

func groupMetadataFromInfo(info *types.GroupInfo) *GroupMetadata {
	return &GroupMetadata{
		JID:              info.JID.String(),
		Name:             info.Name,
		Topic:            info.Topic,
		OwnerJID:         info.OwnerJID.String(),
		ParticipantCount: len(info.Participants),
		IsAnnounce:       info.IsAnnounce,
		IsLocked:         info.IsLocked,
	}
}
