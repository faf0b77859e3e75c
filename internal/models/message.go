package models

import (
	"time"

	"github.com/google/uuid"
)

// MessageDirection distinguishes WhatsApp-lib-originated traffic from
// gateway-originated sends.
type MessageDirection string

const (
	DirectionInbound  MessageDirection = "inbound"
	DirectionOutbound MessageDirection = "outbound"
)

// MessageStatus tracks delivery/read state for outbound messages and
// terminal failure for either direction.
type MessageStatus string

const (
	MessageStatusPending   MessageStatus = "pending"
	MessageStatusSent      MessageStatus = "sent"
	MessageStatusDelivered MessageStatus = "delivered"
	MessageStatusRead      MessageStatus = "read"
	MessageStatusFailed    MessageStatus = "failed"
)

// Message is one WhatsApp message, inbound or outbound, scoped to a Session
// and its owning Organization. (messageId, sessionId) is unique - the
// WhatsApp library's own id is the dedup key, not our primary key.
type Message struct {
	ID             uuid.UUID        `gorm:"type:uuid;primaryKey" json:"id"`
	SessionID      string           `gorm:"type:varchar(100);not null;uniqueIndex:idx_messages_session_msg" json:"session_id"`
	OrgID          uuid.UUID        `gorm:"type:uuid;not null;index:idx_messages_org" json:"org_id"`
	MessageID      string           `gorm:"type:varchar(255);not null;uniqueIndex:idx_messages_session_msg" json:"message_id"`
	Direction      MessageDirection `gorm:"type:varchar(10);not null" json:"direction"`
	FromNumber     string           `gorm:"type:varchar(32);not null" json:"from_number"`
	ToNumber       string           `gorm:"type:varchar(32);not null" json:"to_number"`
	MessageType    string           `gorm:"type:varchar(20);not null;default:'text'" json:"message_type"`
	Content        JSONMap          `gorm:"type:jsonb" json:"content"`
	Status         MessageStatus    `gorm:"type:varchar(20);not null;default:'pending';index:idx_messages_status" json:"status"`
	IsGroupMessage bool             `gorm:"not null;default:false" json:"is_group_message"`
	GroupJID       *string          `gorm:"type:varchar(255)" json:"group_jid,omitempty"`
	SyncedToCrm    bool             `gorm:"not null;default:false;index:idx_messages_pending_sync" json:"synced_to_crm"`
	CrmMessageID   *string          `gorm:"type:varchar(255)" json:"crm_message_id,omitempty"`
	Timestamp      time.Time        `gorm:"not null" json:"timestamp"`
	CreatedAt      time.Time        `gorm:"autoCreateTime" json:"created_at"`
}

func (Message) TableName() string { return "messages" }

// IsPendingCrmSync matches listPendingCrmSync's filter: inbound, not yet
// synced, not already given up on.
func (m *Message) IsPendingCrmSync() bool {
	return m.Direction == DirectionInbound && !m.SyncedToCrm && m.Status != MessageStatusFailed
}

// MarkSynced records a successful webhook delivery.
func (m *Message) MarkSynced(crmMessageID string) {
	m.SyncedToCrm = true
	if crmMessageID != "" {
		m.CrmMessageID = &crmMessageID
	}
}

// MarkFailed records exhaustion of the webhook dispatcher's retry budget.
func (m *Message) MarkFailed() {
	m.Status = MessageStatusFailed
}

// MessageInput is the Persistence Store's saveMessage argument - distinct
// from Message because ID/CreatedAt are store-assigned.
type MessageInput struct {
	SessionID      string
	OrgID          uuid.UUID
	MessageID      string
	Direction      MessageDirection
	FromNumber     string
	ToNumber       string
	MessageType    string
	Content        JSONMap
	IsGroupMessage bool
	GroupJID       *string
	Timestamp      time.Time
}
