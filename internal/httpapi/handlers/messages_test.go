package handlers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"wa-gateway/internal/httpapi/handlers"
	"wa-gateway/internal/limitguard"
	"wa-gateway/internal/logger"
	"wa-gateway/internal/models"
	"wa-gateway/internal/outboundqueue"
	"wa-gateway/internal/store/memstore"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type noopSender struct {
	mu   sync.Mutex
	sent int
}

func (s *noopSender) Send(_ context.Context, _, _, _, _ string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sent++
	return nil
}

type noopUsage struct{}

func (noopUsage) IncrementSent(_ context.Context, _ string) {}

func fastQueueConfig() outboundqueue.Config {
	return outboundqueue.Config{
		MessagesPerMinute:   1000,
		DelayBetweenSends:   time.Millisecond,
		MaxAttempts:         1,
		RetryDelay:          time.Millisecond,
		BucketExhaustedWait: time.Millisecond,
	}
}

func newMessageTestRouter(t *testing.T) (*gin.Engine, *memstore.Store) {
	t.Helper()
	st := memstore.New()
	queue := outboundqueue.New(fastQueueConfig(), &noopSender{}, noopUsage{}, logger.Nop())
	guard := limitguard.New(st)
	h := handlers.NewMessageHandler(st, queue, guard)

	r := gin.New()
	r.POST("/api/messages/:session_id/send", h.Send)
	return r, st
}

func postJSON(r *gin.Engine, path string, body interface{}) *httptest.ResponseRecorder {
	raw, _ := json.Marshal(body)
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(raw))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func TestSendRejectsAMissingBody(t *testing.T) {
	r, _ := newMessageTestRouter(t)
	rec := postJSON(r, "/api/messages/sess-1/send", map[string]string{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSendRejectsAnUnknownSession(t *testing.T) {
	r, _ := newMessageTestRouter(t)
	rec := postJSON(r, "/api/messages/sess-missing/send", map[string]string{
		"to": "15551234567", "message": "hi",
	})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestSendRejectsASessionThatIsNotConnected(t *testing.T) {
	r, st := newMessageTestRouter(t)
	orgID := createOrg(t, st)
	_, err := st.CreateSession(context.Background(), "sess-1", orgID)
	require.NoError(t, err)

	rec := postJSON(r, "/api/messages/sess-1/send", map[string]string{
		"to": "15551234567", "message": "hi",
	})
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestSendRejectsWhenTheMessageLimitIsReached(t *testing.T) {
	r, st := newMessageTestRouter(t)
	ctx := context.Background()

	org := &models.Organization{MaxAccounts: 5, MaxMessagesPerMonth: 1}
	require.NoError(t, st.CreateOrganization(ctx, org))
	sess, err := st.CreateSession(ctx, "sess-1", org.ID)
	require.NoError(t, err)
	require.NoError(t, st.UpdateSessionStatus(ctx, sess.SessionID, models.SessionConnected, nil, nil))
	require.NoError(t, st.UpsertUsage(ctx, org.ID, models.CurrentPeriodStart(time.Now()), 1, 0))

	rec := postJSON(r, "/api/messages/sess-1/send", map[string]string{
		"to": "15551234567", "message": "hi",
	})
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestSendEnqueuesAndReturnsAQueueID(t *testing.T) {
	r, st := newMessageTestRouter(t)
	ctx := context.Background()
	orgID := createOrg(t, st)
	sess, err := st.CreateSession(ctx, "sess-1", orgID)
	require.NoError(t, err)
	require.NoError(t, st.UpdateSessionStatus(ctx, sess.SessionID, models.SessionConnected, nil, nil))

	rec := postJSON(r, "/api/messages/sess-1/send", map[string]string{
		"to": "15551234567", "message": "hi",
	})
	assert.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Data struct {
			QueueID string `json:"queue_id"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.NotEmpty(t, body.Data.QueueID)
}

func createOrg(t *testing.T, st *memstore.Store) uuid.UUID {
	t.Helper()
	org := &models.Organization{MaxAccounts: 5, MaxMessagesPerMonth: 1000}
	require.NoError(t, st.CreateOrganization(context.Background(), org))
	return org.ID
}
