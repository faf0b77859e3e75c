package webhook_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"wa-gateway/internal/logger"
	"wa-gateway/internal/models"
	"wa-gateway/internal/store/memstore"
	"wa-gateway/internal/webhook"
)

var errResyncOrgList = errors.New("listing orgs failed")

func saveInboundMessage(t *testing.T, st *memstore.Store, orgID, sessionID, messageID string, org *models.Organization) models.Message {
	t.Helper()
	msg, err := st.SaveMessage(context.Background(), models.MessageInput{
		SessionID:   sessionID,
		OrgID:       org.ID,
		MessageID:   messageID,
		Direction:   models.DirectionInbound,
		FromNumber:  "15551234567@s.whatsapp.net",
		ToNumber:    "15557654321@s.whatsapp.net",
		MessageType: "text",
		Content:     models.JSONMap{"text": "hello"},
		Timestamp:   time.Now(),
	})
	require.NoError(t, err)
	return msg
}

func TestResyncerSweepDispatchesPendingMessagesAcrossOrgs(t *testing.T) {
	st := memstore.New()
	ctx := context.Background()

	var delivered int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&delivered, 1)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	org := newOrgWithWebhook(t, st, srv.URL)
	saveInboundMessage(t, st, org.ID.String(), "sess-1", "m-1", org)
	saveInboundMessage(t, st, org.ID.String(), "sess-1", "m-2", org)

	dispatcher := webhook.New(fastWebhookConfig(), st, st, "", logger.Nop())
	resyncer := webhook.NewResyncer(st, dispatcher, st, 5*time.Millisecond, 10, logger.Nop())

	resyncer.Start(ctx)
	defer resyncer.Stop()

	require.Eventually(t, func() bool {
		return atomic.LoadInt32(&delivered) >= 2
	}, time.Second, 5*time.Millisecond)

	pending, err := st.ListPendingCrmSync(ctx, org.ID, 10)
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func TestResyncerStopWaitsForTheLoopToExit(t *testing.T) {
	st := memstore.New()
	dispatcher := webhook.New(fastWebhookConfig(), st, st, "", logger.Nop())
	resyncer := webhook.NewResyncer(st, dispatcher, st, time.Hour, 10, logger.Nop())

	resyncer.Start(context.Background())

	done := make(chan struct{})
	go func() {
		resyncer.Stop()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Stop did not return")
	}
}

func TestResyncerSkipsOrgsWhoseListFails(t *testing.T) {
	st := memstore.New()
	dispatcher := webhook.New(fastWebhookConfig(), st, st, "", logger.Nop())
	resyncer := webhook.NewResyncer(st, dispatcher, failingOrgLister{}, 5*time.Millisecond, 10, logger.Nop())

	resyncer.Start(context.Background())
	defer resyncer.Stop()

	time.Sleep(20 * time.Millisecond)
}

type failingOrgLister struct{}

func (failingOrgLister) ListOrgIDs(_ context.Context) ([]uuid.UUID, error) {
	return nil, errResyncOrgList
}
