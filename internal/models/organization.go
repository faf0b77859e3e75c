package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// SubscriptionTier bounds an organization's account and message-volume caps.
type SubscriptionTier string

const (
	TierFree       SubscriptionTier = "free"
	TierStarter    SubscriptionTier = "starter"
	TierPro        SubscriptionTier = "pro"
	TierEnterprise SubscriptionTier = "enterprise"
)

func (t SubscriptionTier) IsValid() bool {
	switch t {
	case TierFree, TierStarter, TierPro, TierEnterprise:
		return true
	default:
		return false
	}
}

// Organization is a billing-and-isolation boundary: one per owner, created
// on first signup, owning sessions and messages.
type Organization struct {
	ID                  uuid.UUID        `gorm:"type:uuid;primaryKey" json:"id"`
	OwnerUserID          int              `gorm:"not null;uniqueIndex" json:"owner_user_id"`
	Name                string           `gorm:"type:varchar(255);not null" json:"name"`
	Tier                SubscriptionTier `gorm:"type:varchar(20);not null;default:'free'" json:"tier"`
	MaxAccounts         int              `gorm:"not null" json:"max_accounts"`
	MaxMessagesPerMonth int              `gorm:"not null" json:"max_messages_per_month"`
	WebhookURL          *string          `gorm:"type:text" json:"webhook_url,omitempty"`
	WebhookAPIKey       *string          `gorm:"type:text" json:"-"`
	WebhookLocationID   *string          `gorm:"type:varchar(255)" json:"webhook_location_id,omitempty"`
	CreatedAt           time.Time        `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt           time.Time        `gorm:"autoUpdateTime" json:"updated_at"`
	DeletedAt           gorm.DeletedAt   `gorm:"index" json:"-"`
}

func (Organization) TableName() string { return "organizations" }

func (o *Organization) BeforeCreate(tx *gorm.DB) error {
	if o.ID == uuid.Nil {
		o.ID = uuid.New()
	}
	return nil
}

// HasWebhook reports whether the org has a webhook URL configured.
func (o *Organization) HasWebhook() bool {
	return o.WebhookURL != nil && *o.WebhookURL != ""
}
