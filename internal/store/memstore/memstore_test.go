package memstore_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"wa-gateway/internal/models"
	"wa-gateway/internal/store"
	"wa-gateway/internal/store/memstore"
)

func TestCreateSessionRejectsDuplicateID(t *testing.T) {
	s := memstore.New()
	ctx := context.Background()
	orgID := uuid.New()

	_, err := s.CreateSession(ctx, "sess-1", orgID)
	require.NoError(t, err)

	_, err = s.CreateSession(ctx, "sess-1", orgID)
	assert.ErrorIs(t, err, store.ErrDuplicateMessage)
}

func TestGetOrganizationByOwnerFindsTheOwnersOrg(t *testing.T) {
	s := memstore.New()
	ctx := context.Background()

	org := &models.Organization{OwnerUserID: 42, Name: "Acme"}
	require.NoError(t, s.CreateOrganization(ctx, org))

	got, err := s.GetOrganizationByOwner(ctx, 42)
	require.NoError(t, err)
	assert.Equal(t, "Acme", got.Name)

	_, err = s.GetOrganizationByOwner(ctx, 999)
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestSaveMessageDedupesOnSessionAndMessageID(t *testing.T) {
	s := memstore.New()
	ctx := context.Background()

	input := models.MessageInput{
		SessionID: "sess-1", OrgID: uuid.New(), MessageID: "wamid-1",
		Direction: models.DirectionInbound, FromNumber: "1", ToNumber: "2",
		Timestamp: time.Now(),
	}
	_, err := s.SaveMessage(ctx, input)
	require.NoError(t, err)

	_, err = s.SaveMessage(ctx, input)
	assert.ErrorIs(t, err, store.ErrDuplicateMessage)
}

func TestSaveMessageOutboundStartsSent(t *testing.T) {
	s := memstore.New()
	ctx := context.Background()

	msg, err := s.SaveMessage(ctx, models.MessageInput{
		SessionID: "sess-1", OrgID: uuid.New(), MessageID: "wamid-2",
		Direction: models.DirectionOutbound, Timestamp: time.Now(),
	})
	require.NoError(t, err)
	assert.Equal(t, models.MessageStatusSent, msg.Status)
}

func TestListRestorableSessionsRequiresAuthStateAndLiveStatus(t *testing.T) {
	s := memstore.New()
	ctx := context.Background()
	orgID := uuid.New()

	_, err := s.CreateSession(ctx, "with-state", orgID)
	require.NoError(t, err)
	require.NoError(t, s.SaveAuthState(ctx, "with-state", []byte("blob")))

	_, err = s.CreateSession(ctx, "without-state", orgID)
	require.NoError(t, err)

	_, err = s.CreateSession(ctx, "disconnected", orgID)
	require.NoError(t, err)
	require.NoError(t, s.SaveAuthState(ctx, "disconnected", []byte("blob")))
	require.NoError(t, s.UpdateSessionStatus(ctx, "disconnected", models.SessionDisconnected, nil, nil))

	restorable, err := s.ListRestorableSessions(ctx)
	require.NoError(t, err)
	require.Len(t, restorable, 1)
	assert.Equal(t, "with-state", restorable[0].SessionID)
}

func TestListPendingCrmSyncFiltersAndOrders(t *testing.T) {
	s := memstore.New()
	ctx := context.Background()
	orgID := uuid.New()

	older := time.Now().Add(-time.Hour)
	newer := time.Now()

	_, err := s.SaveMessage(ctx, models.MessageInput{
		SessionID: "sess-1", OrgID: orgID, MessageID: "m-new",
		Direction: models.DirectionInbound, Timestamp: newer,
	})
	require.NoError(t, err)

	_, err = s.SaveMessage(ctx, models.MessageInput{
		SessionID: "sess-1", OrgID: orgID, MessageID: "m-old",
		Direction: models.DirectionInbound, Timestamp: older,
	})
	require.NoError(t, err)

	synced, err := s.SaveMessage(ctx, models.MessageInput{
		SessionID: "sess-1", OrgID: orgID, MessageID: "m-synced",
		Direction: models.DirectionInbound, Timestamp: newer,
	})
	require.NoError(t, err)
	require.NoError(t, s.MarkMessageSynced(ctx, synced.ID, "crm-1"))

	_, err = s.SaveMessage(ctx, models.MessageInput{
		SessionID: "sess-1", OrgID: orgID, MessageID: "m-outbound",
		Direction: models.DirectionOutbound, Timestamp: newer,
	})
	require.NoError(t, err)

	pending, err := s.ListPendingCrmSync(ctx, orgID, 10)
	require.NoError(t, err)
	require.Len(t, pending, 2)
	assert.Equal(t, "m-old", pending[0].MessageID)
	assert.Equal(t, "m-new", pending[1].MessageID)
}

func TestUpsertUsageAccumulatesWithinAPeriod(t *testing.T) {
	s := memstore.New()
	ctx := context.Background()
	orgID := uuid.New()

	require.NoError(t, s.UpsertUsage(ctx, orgID, models.CurrentPeriodStart(time.Now()), 5, 2))
	require.NoError(t, s.UpsertUsage(ctx, orgID, models.CurrentPeriodStart(time.Now()), 3, 1))

	total, err := s.CountMessagesThisMonth(ctx, orgID)
	require.NoError(t, err)
	assert.Equal(t, int64(11), total)
}

func TestCountActiveSessionsExcludesErrorStatusOnly(t *testing.T) {
	s := memstore.New()
	ctx := context.Background()
	orgID := uuid.New()

	_, err := s.CreateSession(ctx, "connecting", orgID)
	require.NoError(t, err)

	_, err = s.CreateSession(ctx, "errored", orgID)
	require.NoError(t, err)
	require.NoError(t, s.UpdateSessionStatus(ctx, "errored", models.SessionError, nil, nil))

	count, err := s.CountActiveSessions(ctx, orgID)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestUpsertGroupPreservesIDAndCreatedAtAcrossUpdates(t *testing.T) {
	s := memstore.New()
	ctx := context.Background()

	g := &models.Group{SessionID: "sess-1", GroupJID: "123@g.us", Name: "Team"}
	require.NoError(t, s.UpsertGroup(ctx, g))
	firstID := g.ID
	firstCreated := g.CreatedAt

	g2 := &models.Group{SessionID: "sess-1", GroupJID: "123@g.us", Name: "Team Renamed"}
	require.NoError(t, s.UpsertGroup(ctx, g2))
	assert.Equal(t, firstID, g2.ID)
	assert.Equal(t, firstCreated, g2.CreatedAt)
}
