// Package limitguard is the Limit Guard (spec.md §4.I): advisory
// pre-checks for account/message caps against an organization's
// subscription tier. It rejects at the edge but never polices established
// sessions mid-send, per spec.md §4.H/I.
package limitguard

import (
	"context"

	"github.com/google/uuid"

	"wa-gateway/internal/apperrors"
	"wa-gateway/internal/models"
)

// CountStore is the narrow store surface the guard needs.
type CountStore interface {
	CountActiveSessions(ctx context.Context, orgID uuid.UUID) (int, error)
	CountMessagesThisMonth(ctx context.Context, orgID uuid.UUID) (int64, error)
}

type Guard struct {
	store CountStore
}

func New(store CountStore) *Guard {
	return &Guard{store: store}
}

// CheckAccountLimit compares the org's active (non-error) session count
// against org.MaxAccounts, before a session create. 0 means unbounded.
func (g *Guard) CheckAccountLimit(ctx context.Context, org *models.Organization) error {
	if org.MaxAccounts <= 0 {
		return nil
	}
	count, err := g.store.CountActiveSessions(ctx, org.ID)
	if err != nil {
		return apperrors.TransientWrap(err, "counting active sessions for org %s", org.ID)
	}
	if count >= org.MaxAccounts {
		return apperrors.LimitExceeded("Account limit reached", count, org.MaxAccounts)
	}
	return nil
}

// CheckMessageLimit compares the org's current-month message total against
// org.MaxMessagesPerMonth, before a send batch. 0 means unbounded.
func (g *Guard) CheckMessageLimit(ctx context.Context, org *models.Organization) error {
	if org.MaxMessagesPerMonth <= 0 {
		return nil
	}
	total, err := g.store.CountMessagesThisMonth(ctx, org.ID)
	if err != nil {
		return apperrors.TransientWrap(err, "counting messages this month for org %s", org.ID)
	}
	if total >= int64(org.MaxMessagesPerMonth) {
		return apperrors.LimitExceeded("Message limit reached", int(total), org.MaxMessagesPerMonth)
	}
	return nil
}

// UsagePercentage reports how close an org is to its account cap, for
// dashboards/near-limit warnings. Returns 0 if the cap is unbounded.
func (g *Guard) UsagePercentage(ctx context.Context, org *models.Organization) (float64, error) {
	if org.MaxAccounts <= 0 {
		return 0, nil
	}
	count, err := g.store.CountActiveSessions(ctx, org.ID)
	if err != nil {
		return 0, apperrors.TransientWrap(err, "counting active sessions for org %s", org.ID)
	}
	return (float64(count) / float64(org.MaxAccounts)) * 100, nil
}
