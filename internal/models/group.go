package models

import (
	"time"

	"github.com/google/uuid"
)

// Group is a session-scoped WhatsApp group record, upserted best-effort on
// group-update events. Uniqueness is (sessionId, groupJid).
type Group struct {
	ID               uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	SessionID        string    `gorm:"type:varchar(100);not null;uniqueIndex:idx_groups_session_jid" json:"session_id"`
	GroupJID         string    `gorm:"type:varchar(255);not null;uniqueIndex:idx_groups_session_jid" json:"group_jid"`
	Name             string    `gorm:"type:varchar(255)" json:"name"`
	Description      string    `gorm:"type:text" json:"description"`
	ParticipantCount int       `gorm:"not null;default:0" json:"participant_count"`
	IsAdmin          bool      `gorm:"not null;default:false" json:"is_admin"`
	CreatedAt        time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt        time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (Group) TableName() string { return "whatsapp_groups" }
