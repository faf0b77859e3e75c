package models

import (
	"time"

	"github.com/google/uuid"
)

// UsageRecord is a (orgId, periodStart) keyed counter, upserted on every
// message persist and read by the Limit Guard.
type UsageRecord struct {
	ID               uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	OrgID            uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_usage_org_period" json:"org_id"`
	PeriodStart      time.Time `gorm:"type:date;not null;uniqueIndex:idx_usage_org_period" json:"period_start"`
	MessagesSent     int64     `gorm:"not null;default:0" json:"messages_sent"`
	MessagesReceived int64     `gorm:"not null;default:0" json:"messages_received"`
	ActiveSessions   int64     `gorm:"not null;default:0" json:"active_sessions"`
	APICalls         int64     `gorm:"not null;default:0" json:"api_calls"`
	UpdatedAt        time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (UsageRecord) TableName() string { return "usage_records" }

// CurrentPeriodStart returns the first day of the calendar month containing
// t, truncated to midnight UTC - the key UsageRecord is upserted against.
func CurrentPeriodStart(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
}

// Total returns the combined message volume counted against maxMessagesPerMonth.
func (u *UsageRecord) Total() int64 {
	return u.MessagesSent + u.MessagesReceived
}
