package limitguard

import "wa-gateway/internal/models"

// TierLimits is the resolved (maxAccounts, maxMessagesPerMonth) pair for a
// subscription tier. spec.md §3 names the tiers without giving numbers;
// this table is the Open Question resolution recorded in the design
// ledger. MaxMessagesPerMonth of 0 means unbounded.
type TierLimits struct {
	MaxAccounts         int
	MaxMessagesPerMonth int
}

var defaultTierLimits = map[models.SubscriptionTier]TierLimits{
	models.TierFree:       {MaxAccounts: 1, MaxMessagesPerMonth: 1000},
	models.TierStarter:    {MaxAccounts: 3, MaxMessagesPerMonth: 10000},
	models.TierPro:        {MaxAccounts: 10, MaxMessagesPerMonth: 100000},
	models.TierEnterprise: {MaxAccounts: 0, MaxMessagesPerMonth: 0},
}

// LimitsFor returns the default caps for a tier. Organizations may
// override MaxAccounts/MaxMessagesPerMonth individually (those fields live
// on the Organization row itself); this table only supplies the defaults
// assigned at creation time.
func LimitsFor(tier models.SubscriptionTier) TierLimits {
	if limits, ok := defaultTierLimits[tier]; ok {
		return limits
	}
	return defaultTierLimits[models.TierFree]
}
