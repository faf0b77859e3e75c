package limitguard_test

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"wa-gateway/internal/apperrors"
	"wa-gateway/internal/limitguard"
	"wa-gateway/internal/models"
)

type fakeCountStore struct {
	activeSessions int
	messagesMonth  int64
	err            error
}

func (f *fakeCountStore) CountActiveSessions(ctx context.Context, orgID uuid.UUID) (int, error) {
	return f.activeSessions, f.err
}

func (f *fakeCountStore) CountMessagesThisMonth(ctx context.Context, orgID uuid.UUID) (int64, error) {
	return f.messagesMonth, f.err
}

func org(maxAccounts, maxMessages int) *models.Organization {
	return &models.Organization{ID: uuid.New(), MaxAccounts: maxAccounts, MaxMessagesPerMonth: maxMessages}
}

func TestCheckAccountLimit(t *testing.T) {
	t.Run("unbounded when MaxAccounts is zero", func(t *testing.T) {
		g := limitguard.New(&fakeCountStore{activeSessions: 1000})
		assert.NoError(t, g.CheckAccountLimit(context.Background(), org(0, 0)))
	})

	t.Run("passes under the limit", func(t *testing.T) {
		g := limitguard.New(&fakeCountStore{activeSessions: 2})
		assert.NoError(t, g.CheckAccountLimit(context.Background(), org(5, 0)))
	})

	t.Run("rejects at the limit", func(t *testing.T) {
		g := limitguard.New(&fakeCountStore{activeSessions: 5})
		err := g.CheckAccountLimit(context.Background(), org(5, 0))
		require.Error(t, err)
		assert.True(t, apperrors.Is(err, apperrors.KindLimitExceeded))

		var limitErr *apperrors.LimitExceededError
		require.ErrorAs(t, err, &limitErr)
		assert.Equal(t, 5, limitErr.Current)
		assert.Equal(t, 5, limitErr.Limit)
	})

	t.Run("wraps a store error as transient", func(t *testing.T) {
		g := limitguard.New(&fakeCountStore{err: errors.New("connection reset")})
		err := g.CheckAccountLimit(context.Background(), org(5, 0))
		require.Error(t, err)
		assert.True(t, apperrors.Is(err, apperrors.KindTransient))
	})
}

func TestCheckMessageLimit(t *testing.T) {
	t.Run("unbounded when MaxMessagesPerMonth is zero", func(t *testing.T) {
		g := limitguard.New(&fakeCountStore{messagesMonth: 999999})
		assert.NoError(t, g.CheckMessageLimit(context.Background(), org(0, 0)))
	})

	t.Run("rejects once the month total reaches the cap", func(t *testing.T) {
		g := limitguard.New(&fakeCountStore{messagesMonth: 1000})
		err := g.CheckMessageLimit(context.Background(), org(0, 1000))
		require.Error(t, err)
		assert.True(t, apperrors.Is(err, apperrors.KindLimitExceeded))
	})
}

func TestUsagePercentage(t *testing.T) {
	t.Run("zero when unbounded", func(t *testing.T) {
		g := limitguard.New(&fakeCountStore{activeSessions: 10})
		pct, err := g.UsagePercentage(context.Background(), org(0, 0))
		require.NoError(t, err)
		assert.Equal(t, 0.0, pct)
	})

	t.Run("computes the ratio as a percentage", func(t *testing.T) {
		g := limitguard.New(&fakeCountStore{activeSessions: 3})
		pct, err := g.UsagePercentage(context.Background(), org(4, 0))
		require.NoError(t, err)
		assert.Equal(t, 75.0, pct)
	})
}
