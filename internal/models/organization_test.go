package models_test

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	"wa-gateway/internal/models"
)

func TestHasWebhookRequiresANonEmptyURL(t *testing.T) {
	org := &models.Organization{}
	assert.False(t, org.HasWebhook())

	empty := ""
	org.WebhookURL = &empty
	assert.False(t, org.HasWebhook())

	url := "https://crm.example.com/hooks/wa"
	org.WebhookURL = &url
	assert.True(t, org.HasWebhook())
}

func TestSubscriptionTierIsValid(t *testing.T) {
	valid := []models.SubscriptionTier{models.TierFree, models.TierStarter, models.TierPro, models.TierEnterprise}
	for _, tier := range valid {
		assert.True(t, tier.IsValid(), "expected %q to be valid", tier)
	}

	assert.False(t, models.SubscriptionTier("unlimited").IsValid())
	assert.False(t, models.SubscriptionTier("").IsValid())
}

func TestBeforeCreateAssignsAnIDWhenMissing(t *testing.T) {
	org := &models.Organization{}
	a := assert.New(t)
	a.NoError(org.BeforeCreate(nil))
	a.NotEqual(uuid.Nil, org.ID)
}
