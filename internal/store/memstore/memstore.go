// Package memstore is an in-memory Store implementation used by unit tests
// across the gateway, per spec.md §4.A's "tests can supply an in-memory
// implementation" requirement.
package memstore

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"wa-gateway/internal/models"
	"wa-gateway/internal/store"
)

type messageKey struct {
	sessionID string
	messageID string
}

type usageKey struct {
	orgID       uuid.UUID
	periodStart time.Time
}

// Store is a mutex-guarded map-of-maps standing in for the Postgres schema.
// Not optimized; correctness and determinism matter more than speed here.
type Store struct {
	mu sync.Mutex

	orgs     map[uuid.UUID]*models.Organization
	sessions map[string]*models.Session
	messages map[uuid.UUID]*models.Message
	msgIndex map[messageKey]uuid.UUID
	groups   map[string]*models.Group // keyed by sessionID+"|"+groupJID
	webhooks []*models.WebhookLog
	usage    map[usageKey]*models.UsageRecord
}

func New() *Store {
	return &Store{
		orgs:     make(map[uuid.UUID]*models.Organization),
		sessions: make(map[string]*models.Session),
		messages: make(map[uuid.UUID]*models.Message),
		msgIndex: make(map[messageKey]uuid.UUID),
		groups:   make(map[string]*models.Group),
		usage:    make(map[usageKey]*models.UsageRecord),
	}
}

func (s *Store) GetOrganization(_ context.Context, orgID uuid.UUID) (*models.Organization, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	org, ok := s.orgs[orgID]
	if !ok {
		return nil, store.ErrNotFound
	}
	cp := *org
	return &cp, nil
}

func (s *Store) GetOrganizationByOwner(_ context.Context, ownerUserID int) (*models.Organization, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, org := range s.orgs {
		if org.OwnerUserID == ownerUserID {
			cp := *org
			return &cp, nil
		}
	}
	return nil, store.ErrNotFound
}

func (s *Store) CreateOrganization(_ context.Context, org *models.Organization) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if org.ID == uuid.Nil {
		org.ID = uuid.New()
	}
	cp := *org
	s.orgs[org.ID] = &cp
	return nil
}

func (s *Store) UpdateOrganizationWebhook(_ context.Context, orgID uuid.UUID, webhookURL, webhookAPIKey, webhookLocationID *string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	org, ok := s.orgs[orgID]
	if !ok {
		return store.ErrNotFound
	}
	org.WebhookURL = webhookURL
	org.WebhookAPIKey = webhookAPIKey
	org.WebhookLocationID = webhookLocationID
	return nil
}

func (s *Store) ListOrgIDs(_ context.Context) ([]uuid.UUID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := make([]uuid.UUID, 0, len(s.orgs))
	for id := range s.orgs {
		ids = append(ids, id)
	}
	return ids, nil
}

func (s *Store) CreateSession(_ context.Context, sessionID string, orgID uuid.UUID) (*models.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.sessions[sessionID]; exists {
		return nil, store.ErrDuplicateMessage
	}
	now := time.Now()
	sess := &models.Session{
		SessionID: sessionID,
		OrgID:     orgID,
		Status:    models.SessionConnecting,
		CreatedAt: now,
		UpdatedAt: now,
	}
	s.sessions[sessionID] = sess
	cp := *sess
	return &cp, nil
}

func (s *Store) GetSession(_ context.Context, sessionID string) (*models.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[sessionID]
	if !ok {
		return nil, store.ErrNotFound
	}
	cp := *sess
	return &cp, nil
}

func (s *Store) LoadAuthState(_ context.Context, sessionID string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[sessionID]
	if !ok {
		return nil, store.ErrNotFound
	}
	return sess.AuthState, nil
}

func (s *Store) SaveAuthState(_ context.Context, sessionID string, blob []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[sessionID]
	if !ok {
		return store.ErrNotFound
	}
	sess.AuthState = blob
	sess.UpdatedAt = time.Now()
	return nil
}

func (s *Store) UpdateSessionStatus(_ context.Context, sessionID string, status models.SessionStatus, phoneNumber, errorMessage *string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[sessionID]
	if !ok {
		return store.ErrNotFound
	}
	sess.Status = status
	if phoneNumber != nil {
		sess.PhoneNumber = phoneNumber
	}
	sess.ErrorMessage = errorMessage
	now := time.Now()
	sess.LastSeenAt = &now
	sess.UpdatedAt = now
	return nil
}

func (s *Store) SaveQRCode(_ context.Context, sessionID string, qr string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[sessionID]
	if !ok {
		return store.ErrNotFound
	}
	sess.LastQR = &qr
	sess.UpdatedAt = time.Now()
	return nil
}

func (s *Store) ListRestorableSessions(_ context.Context) ([]store.RestorableSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []store.RestorableSession
	for _, sess := range s.sessions {
		if (sess.Status == models.SessionConnected || sess.Status == models.SessionConnecting) && len(sess.AuthState) > 0 {
			out = append(out, store.RestorableSession{
				SessionID:   sess.SessionID,
				OrgID:       sess.OrgID,
				AuthState:   sess.AuthState,
				PhoneNumber: sess.PhoneNumber,
			})
		}
	}
	return out, nil
}

func (s *Store) ListSessionsByOrg(_ context.Context, orgID uuid.UUID) ([]models.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Session
	for _, sess := range s.sessions {
		if sess.OrgID == orgID {
			out = append(out, *sess)
		}
	}
	return out, nil
}

func (s *Store) DeleteSession(_ context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sessions[sessionID]; !ok {
		return store.ErrNotFound
	}
	delete(s.sessions, sessionID)
	return nil
}

func (s *Store) IncrementReconnectAttempts(_ context.Context, sessionID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[sessionID]
	if !ok {
		return 0, store.ErrNotFound
	}
	sess.ReconnectAttempts++
	return sess.ReconnectAttempts, nil
}

func (s *Store) ResetReconnectAttempts(_ context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[sessionID]
	if !ok {
		return store.ErrNotFound
	}
	sess.ReconnectAttempts = 0
	return nil
}

func (s *Store) SaveMessage(_ context.Context, input models.MessageInput) (*models.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := messageKey{sessionID: input.SessionID, messageID: input.MessageID}
	if _, exists := s.msgIndex[key]; exists {
		return nil, store.ErrDuplicateMessage
	}
	msg := &models.Message{
		ID:             uuid.New(),
		SessionID:      input.SessionID,
		OrgID:          input.OrgID,
		MessageID:      input.MessageID,
		Direction:      input.Direction,
		FromNumber:     input.FromNumber,
		ToNumber:       input.ToNumber,
		MessageType:    input.MessageType,
		Content:        input.Content,
		Status:         models.MessageStatusPending,
		IsGroupMessage: input.IsGroupMessage,
		GroupJID:       input.GroupJID,
		Timestamp:      input.Timestamp,
		CreatedAt:      time.Now(),
	}
	if input.Direction == models.DirectionOutbound {
		msg.Status = models.MessageStatusSent
	}
	s.messages[msg.ID] = msg
	s.msgIndex[key] = msg.ID
	cp := *msg
	return &cp, nil
}

func (s *Store) MarkMessageSynced(_ context.Context, messageID uuid.UUID, crmMessageID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	msg, ok := s.messages[messageID]
	if !ok {
		return store.ErrNotFound
	}
	msg.MarkSynced(crmMessageID)
	return nil
}

func (s *Store) MarkMessageFailed(_ context.Context, messageID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	msg, ok := s.messages[messageID]
	if !ok {
		return store.ErrNotFound
	}
	msg.MarkFailed()
	return nil
}

func (s *Store) ListPendingCrmSync(_ context.Context, orgID uuid.UUID, limit int) ([]models.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Message
	for _, msg := range s.messages {
		if msg.OrgID == orgID && msg.IsPendingCrmSync() {
			out = append(out, *msg)
		}
	}
	sortMessagesByTimestamp(out)
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func sortMessagesByTimestamp(msgs []models.Message) {
	for i := 1; i < len(msgs); i++ {
		for j := i; j > 0 && msgs[j].Timestamp.Before(msgs[j-1].Timestamp); j-- {
			msgs[j], msgs[j-1] = msgs[j-1], msgs[j]
		}
	}
}

func (s *Store) UpsertGroup(_ context.Context, group *models.Group) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := group.SessionID + "|" + group.GroupJID
	if existing, ok := s.groups[key]; ok {
		group.ID = existing.ID
		group.CreatedAt = existing.CreatedAt
	} else if group.ID == uuid.Nil {
		group.ID = uuid.New()
	}
	group.UpdatedAt = time.Now()
	cp := *group
	s.groups[key] = &cp
	return nil
}

func (s *Store) LogWebhook(_ context.Context, entry *models.WebhookLog) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if entry.ID == uuid.Nil {
		entry.ID = uuid.New()
	}
	entry.CreatedAt = time.Now()
	cp := *entry
	s.webhooks = append(s.webhooks, &cp)
	return nil
}

// WebhookLogsForMessage returns every delivery-attempt row logged for a
// message, in append order. Test-only accessor; gormstore's equivalent
// reads come straight off the webhook_logs table instead.
func (s *Store) WebhookLogsForMessage(messageID uuid.UUID) []*models.WebhookLog {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*models.WebhookLog
	for _, w := range s.webhooks {
		if w.MessageID == messageID {
			out = append(out, w)
		}
	}
	return out
}

func (s *Store) UpsertUsage(_ context.Context, orgID uuid.UUID, periodStart time.Time, sentDelta, receivedDelta int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := usageKey{orgID: orgID, periodStart: periodStart}
	rec, ok := s.usage[key]
	if !ok {
		rec = &models.UsageRecord{ID: uuid.New(), OrgID: orgID, PeriodStart: periodStart}
		s.usage[key] = rec
	}
	rec.MessagesSent += sentDelta
	rec.MessagesReceived += receivedDelta
	rec.UpdatedAt = time.Now()
	return nil
}

func (s *Store) CountActiveSessions(_ context.Context, orgID uuid.UUID) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, sess := range s.sessions {
		if sess.OrgID == orgID && sess.IsActive() {
			n++
		}
	}
	return n, nil
}

func (s *Store) CountMessagesThisMonth(_ context.Context, orgID uuid.UUID) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := usageKey{orgID: orgID, periodStart: models.CurrentPeriodStart(time.Now())}
	rec, ok := s.usage[key]
	if !ok {
		return 0, nil
	}
	return rec.Total(), nil
}

var _ store.Store = (*Store)(nil)
