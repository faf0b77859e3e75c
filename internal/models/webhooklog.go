package models

import (
	"time"

	"github.com/google/uuid"
)

// WebhookDeliveryStatus is the outcome of one delivery attempt.
type WebhookDeliveryStatus string

const (
	WebhookPending WebhookDeliveryStatus = "pending"
	WebhookSuccess WebhookDeliveryStatus = "success"
	WebhookFailed  WebhookDeliveryStatus = "failed"
)

// WebhookLog is an append-only audit row for every delivery attempt the
// Dispatcher makes, including retries. Never updated in place - each
// attempt gets its own row.
type WebhookLog struct {
	ID           uuid.UUID             `gorm:"type:uuid;primaryKey" json:"id"`
	OrgID        uuid.UUID             `gorm:"type:uuid;not null;index:idx_webhook_logs_org" json:"org_id"`
	MessageID    uuid.UUID             `gorm:"type:uuid;not null;index:idx_webhook_logs_message" json:"message_id"`
	URL          string                `gorm:"type:text;not null" json:"url"`
	Payload      JSONMap               `gorm:"type:jsonb" json:"payload"`
	HTTPStatus   int                   `gorm:"not null;default:0" json:"http_status"`
	ResponseBody string                `gorm:"type:text" json:"response_body,omitempty"`
	RetryCount   int                   `gorm:"not null;default:0" json:"retry_count"`
	Status       WebhookDeliveryStatus `gorm:"type:varchar(20);not null;index:idx_webhook_logs_status" json:"status"`
	ErrorMessage *string               `gorm:"type:text" json:"error_message,omitempty"`
	CreatedAt    time.Time             `gorm:"autoCreateTime" json:"created_at"`
}

func (WebhookLog) TableName() string { return "webhook_logs" }
