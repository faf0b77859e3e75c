package handlers_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"wa-gateway/internal/eventbus"
	"wa-gateway/internal/httpapi/handlers"
	"wa-gateway/internal/httpapi/middleware"
	"wa-gateway/internal/limitguard"
	"wa-gateway/internal/logger"
	"wa-gateway/internal/models"
	"wa-gateway/internal/outboundqueue"
	"wa-gateway/internal/registry"
	"wa-gateway/internal/store/memstore"
	"wa-gateway/internal/supervisor"
	"wa-gateway/internal/usage"
	"wa-gateway/internal/webhook"
)

func withFakeUser(userID int) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set(string(middleware.UserIDKey), userID)
		c.Next()
	}
}

type noopReconnectNotifier struct{}

func (noopReconnectNotifier) OnDisconnect(_ context.Context, _ string, _ bool) {}
func (noopReconnectNotifier) Cancel(_ string)                                 {}

func newSessionTestSetup(t *testing.T) (*gin.Engine, *memstore.Store) {
	t.Helper()
	st := memstore.New()
	reg := registry.New()
	bus := eventbus.New()
	dispatcher := webhook.New(webhook.Config{}, st, st, "", logger.Nop())
	meter := usage.New(st, logger.Nop())
	sup := supervisor.New(supervisor.Config{}, st, reg, bus, noopReconnectNotifier{}, dispatcher, meter, logger.Nop())
	queue := outboundqueue.New(fastQueueConfig(), &noopSender{}, noopUsage{}, logger.Nop())
	guard := limitguard.New(st)
	h := handlers.NewSessionHandler(st, sup, queue, guard, logger.Nop())

	r := gin.New()
	r.GET("/api/health", handlers.Health(time.Now()))
	authed := r.Group("/api/sessions", withFakeUser(1))
	authed.POST("/create", h.Create)
	authed.GET("", h.List)
	r.GET("/api/sessions/:id/status", h.Status)
	r.POST("/api/sessions/:id/disconnect", h.Disconnect)
	return r, st
}

func TestCreateRejectsAnInvalidSessionID(t *testing.T) {
	r, _ := newSessionTestSetup(t)
	rec := postJSON(r, "/api/sessions/create", map[string]string{"session_id": "bad id with spaces"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCreateRejectsAUserWithNoOrganization(t *testing.T) {
	r, _ := newSessionTestSetup(t)
	rec := postJSON(r, "/api/sessions/create", map[string]string{"session_id": "sess-1"})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCreateRejectsWhenTheAccountLimitIsReached(t *testing.T) {
	r, st := newSessionTestSetup(t)
	ctx := context.Background()
	org := &models.Organization{OwnerUserID: 1, MaxAccounts: 1}
	require.NoError(t, st.CreateOrganization(ctx, org))
	_, err := st.CreateSession(ctx, "existing-sess", org.ID)
	require.NoError(t, err)

	rec := postJSON(r, "/api/sessions/create", map[string]string{"session_id": "sess-new"})
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestListReturnsOnlyTheCallersSessions(t *testing.T) {
	r, st := newSessionTestSetup(t)
	ctx := context.Background()
	org := &models.Organization{OwnerUserID: 1, MaxAccounts: 10}
	require.NoError(t, st.CreateOrganization(ctx, org))
	_, err := st.CreateSession(ctx, "sess-1", org.ID)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/api/sessions", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	var body struct {
		Data []struct {
			SessionID string `json:"sessionId"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Len(t, body.Data, 1)
	assert.Equal(t, "sess-1", body.Data[0].SessionID)
}

func TestStatusReturns404ForAnUnknownSession(t *testing.T) {
	r, _ := newSessionTestSetup(t)
	req := httptest.NewRequest(http.MethodGet, "/api/sessions/sess-missing/status", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestStatusReturnsTheSessionsCurrentState(t *testing.T) {
	r, st := newSessionTestSetup(t)
	ctx := context.Background()
	org := &models.Organization{OwnerUserID: 1, MaxAccounts: 10}
	require.NoError(t, st.CreateOrganization(ctx, org))
	_, err := st.CreateSession(ctx, "sess-1", org.ID)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/api/sessions/sess-1/status", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	var body struct {
		Data struct {
			Status string `json:"status"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, string(models.SessionConnecting), body.Data.Status)
}

func TestDisconnectReturns404ForASessionThatWasNeverRegistered(t *testing.T) {
	r, _ := newSessionTestSetup(t)
	req := httptest.NewRequest(http.MethodPost, "/api/sessions/sess-missing/disconnect", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHealthReportsOK(t *testing.T) {
	r, _ := newSessionTestSetup(t)
	req := httptest.NewRequest(http.MethodGet, "/api/health", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}
