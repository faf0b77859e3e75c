package gormstore

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"wa-gateway/internal/models"
	"wa-gateway/internal/store"
)

// Store is the Postgres-backed store.Store implementation.
type Store struct {
	conn *Connection
}

func New(conn *Connection) *Store {
	return &Store{conn: conn}
}

func (s *Store) db(ctx context.Context) *gorm.DB {
	return s.conn.DB.WithContext(ctx)
}

// classify turns a GORM/driver error into the sentinel the rest of the
// gateway expects, per the Transient-vs-Fatal split in the error handling
// design: unique-constraint violations are "duplicate", missing rows are
// ErrNotFound, everything else is returned as-is for apperrors.Classify to
// wrap as Fatal or Transient upstream.
func classify(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return store.ErrNotFound
	}
	if isUniqueViolation(err) {
		return store.ErrDuplicateMessage
	}
	return err
}

func isUniqueViolation(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "duplicate key value") || strings.Contains(msg, "violates unique constraint")
}

func (s *Store) GetOrganization(ctx context.Context, orgID uuid.UUID) (*models.Organization, error) {
	var org models.Organization
	if err := s.db(ctx).First(&org, "id = ?", orgID).Error; err != nil {
		return nil, classify(err)
	}
	return &org, nil
}

func (s *Store) GetOrganizationByOwner(ctx context.Context, ownerUserID int) (*models.Organization, error) {
	var org models.Organization
	if err := s.db(ctx).First(&org, "owner_user_id = ?", ownerUserID).Error; err != nil {
		return nil, classify(err)
	}
	return &org, nil
}

func (s *Store) CreateOrganization(ctx context.Context, org *models.Organization) error {
	return classify(s.db(ctx).Create(org).Error)
}

func (s *Store) UpdateOrganizationWebhook(ctx context.Context, orgID uuid.UUID, webhookURL, webhookAPIKey, webhookLocationID *string) error {
	result := s.db(ctx).Model(&models.Organization{}).Where("id = ?", orgID).Updates(map[string]interface{}{
		"webhook_url":         webhookURL,
		"webhook_api_key":     webhookAPIKey,
		"webhook_location_id": webhookLocationID,
	})
	if result.Error != nil {
		return classify(result.Error)
	}
	if result.RowsAffected == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (s *Store) ListOrgIDs(ctx context.Context) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	if err := s.db(ctx).Model(&models.Organization{}).Pluck("id", &ids).Error; err != nil {
		return nil, classify(err)
	}
	return ids, nil
}

func (s *Store) CreateSession(ctx context.Context, sessionID string, orgID uuid.UUID) (*models.Session, error) {
	sess := &models.Session{
		SessionID: sessionID,
		OrgID:     orgID,
		Status:    models.SessionConnecting,
	}
	if err := s.db(ctx).Create(sess).Error; err != nil {
		return nil, classify(err)
	}
	return sess, nil
}

func (s *Store) GetSession(ctx context.Context, sessionID string) (*models.Session, error) {
	var sess models.Session
	if err := s.db(ctx).First(&sess, "session_id = ?", sessionID).Error; err != nil {
		return nil, classify(err)
	}
	return &sess, nil
}

func (s *Store) LoadAuthState(ctx context.Context, sessionID string) ([]byte, error) {
	var sess models.Session
	if err := s.db(ctx).Select("auth_state").First(&sess, "session_id = ?", sessionID).Error; err != nil {
		return nil, classify(err)
	}
	return sess.AuthState, nil
}

// SaveAuthState is an idempotent full overwrite, atomic with respect to
// concurrent readers by virtue of Postgres's MVCC row visibility - a
// reader either sees the old blob in full or the new one, never a mix.
func (s *Store) SaveAuthState(ctx context.Context, sessionID string, blob []byte) error {
	result := s.db(ctx).Model(&models.Session{}).Where("session_id = ?", sessionID).
		Update("auth_state", blob)
	if result.Error != nil {
		return classify(result.Error)
	}
	if result.RowsAffected == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (s *Store) UpdateSessionStatus(ctx context.Context, sessionID string, status models.SessionStatus, phoneNumber, errorMessage *string) error {
	updates := map[string]interface{}{
		"status":        status,
		"error_message": errorMessage,
		"last_seen_at":  time.Now(),
	}
	if phoneNumber != nil {
		updates["phone_number"] = phoneNumber
	}
	result := s.db(ctx).Model(&models.Session{}).Where("session_id = ?", sessionID).Updates(updates)
	if result.Error != nil {
		return classify(result.Error)
	}
	if result.RowsAffected == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (s *Store) SaveQRCode(ctx context.Context, sessionID string, qr string) error {
	result := s.db(ctx).Model(&models.Session{}).Where("session_id = ?", sessionID).Update("last_qr", qr)
	if result.Error != nil {
		return classify(result.Error)
	}
	if result.RowsAffected == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (s *Store) ListRestorableSessions(ctx context.Context) ([]store.RestorableSession, error) {
	var rows []models.Session
	err := s.db(ctx).
		Where("status IN ? AND auth_state IS NOT NULL AND length(auth_state) > 0",
			[]models.SessionStatus{models.SessionConnected, models.SessionConnecting}).
		Find(&rows).Error
	if err != nil {
		return nil, classify(err)
	}
	out := make([]store.RestorableSession, 0, len(rows))
	for _, r := range rows {
		out = append(out, store.RestorableSession{
			SessionID:   r.SessionID,
			OrgID:       r.OrgID,
			AuthState:   r.AuthState,
			PhoneNumber: r.PhoneNumber,
		})
	}
	return out, nil
}

func (s *Store) ListSessionsByOrg(ctx context.Context, orgID uuid.UUID) ([]models.Session, error) {
	var rows []models.Session
	if err := s.db(ctx).Where("org_id = ?", orgID).Order("created_at desc").Find(&rows).Error; err != nil {
		return nil, classify(err)
	}
	return rows, nil
}

func (s *Store) DeleteSession(ctx context.Context, sessionID string) error {
	result := s.db(ctx).Where("session_id = ?", sessionID).Delete(&models.Session{})
	if result.Error != nil {
		return classify(result.Error)
	}
	if result.RowsAffected == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (s *Store) IncrementReconnectAttempts(ctx context.Context, sessionID string) (int, error) {
	var n int
	err := s.conn.WithTransaction(func(tx *gorm.DB) error {
		var sess models.Session
		if err := tx.WithContext(ctx).Clauses(clause.Locking{Strength: "UPDATE"}).
			First(&sess, "session_id = ?", sessionID).Error; err != nil {
			return err
		}
		sess.ReconnectAttempts++
		n = sess.ReconnectAttempts
		return tx.WithContext(ctx).Model(&sess).Update("reconnect_attempts", sess.ReconnectAttempts).Error
	})
	if err != nil {
		return 0, classify(err)
	}
	return n, nil
}

func (s *Store) ResetReconnectAttempts(ctx context.Context, sessionID string) error {
	result := s.db(ctx).Model(&models.Session{}).Where("session_id = ?", sessionID).Update("reconnect_attempts", 0)
	if result.Error != nil {
		return classify(result.Error)
	}
	if result.RowsAffected == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (s *Store) SaveMessage(ctx context.Context, input models.MessageInput) (*models.Message, error) {
	status := models.MessageStatusPending
	if input.Direction == models.DirectionOutbound {
		status = models.MessageStatusSent
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
		Status:         status,
		IsGroupMessage: input.IsGroupMessage,
		GroupJID:       input.GroupJID,
		Timestamp:      input.Timestamp,
	}
	if err := s.db(ctx).Create(msg).Error; err != nil {
		return nil, classify(err)
	}
	return msg, nil
}

func (s *Store) MarkMessageSynced(ctx context.Context, messageID uuid.UUID, crmMessageID string) error {
	updates := map[string]interface{}{"synced_to_crm": true}
	if crmMessageID != "" {
		updates["crm_message_id"] = crmMessageID
	}
	result := s.db(ctx).Model(&models.Message{}).Where("id = ?", messageID).Updates(updates)
	if result.Error != nil {
		return classify(result.Error)
	}
	if result.RowsAffected == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (s *Store) MarkMessageFailed(ctx context.Context, messageID uuid.UUID) error {
	result := s.db(ctx).Model(&models.Message{}).Where("id = ?", messageID).Update("status", models.MessageStatusFailed)
	if result.Error != nil {
		return classify(result.Error)
	}
	if result.RowsAffected == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (s *Store) ListPendingCrmSync(ctx context.Context, orgID uuid.UUID, limit int) ([]models.Message, error) {
	if limit <= 0 {
		limit = 100
	}
	var rows []models.Message
	err := s.db(ctx).
		Where("org_id = ? AND direction = ? AND synced_to_crm = false AND status != ?",
			orgID, models.DirectionInbound, models.MessageStatusFailed).
		Order("timestamp asc").
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, classify(err)
	}
	return rows, nil
}

func (s *Store) UpsertGroup(ctx context.Context, group *models.Group) error {
	return classify(s.db(ctx).
		Where(models.Group{SessionID: group.SessionID, GroupJID: group.GroupJID}).
		Assign(models.Group{
			Name:             group.Name,
			Description:      group.Description,
			ParticipantCount: group.ParticipantCount,
			IsAdmin:          group.IsAdmin,
		}).
		FirstOrCreate(group).Error)
}

func (s *Store) LogWebhook(ctx context.Context, entry *models.WebhookLog) error {
	if entry.ID == uuid.Nil {
		entry.ID = uuid.New()
	}
	return classify(s.db(ctx).Create(entry).Error)
}

func (s *Store) UpsertUsage(ctx context.Context, orgID uuid.UUID, periodStart time.Time, sentDelta, receivedDelta int64) error {
	return s.conn.WithTransaction(func(tx *gorm.DB) error {
		var rec models.UsageRecord
		err := tx.WithContext(ctx).Where("org_id = ? AND period_start = ?", orgID, periodStart).First(&rec).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			rec = models.UsageRecord{
				ID:               uuid.New(),
				OrgID:            orgID,
				PeriodStart:      periodStart,
				MessagesSent:     sentDelta,
				MessagesReceived: receivedDelta,
			}
			return tx.WithContext(ctx).Create(&rec).Error
		}
		if err != nil {
			return err
		}
		return tx.WithContext(ctx).Model(&rec).Updates(map[string]interface{}{
			"messages_sent":     gorm.Expr("messages_sent + ?", sentDelta),
			"messages_received": gorm.Expr("messages_received + ?", receivedDelta),
		}).Error
	})
}

func (s *Store) CountActiveSessions(ctx context.Context, orgID uuid.UUID) (int, error) {
	var n int64
	err := s.db(ctx).Model(&models.Session{}).
		Where("org_id = ? AND status != ?", orgID, models.SessionError).
		Count(&n).Error
	return int(n), classify(err)
}

func (s *Store) CountMessagesThisMonth(ctx context.Context, orgID uuid.UUID) (int64, error) {
	var rec models.UsageRecord
	err := s.db(ctx).Where("org_id = ? AND period_start = ?", orgID, models.CurrentPeriodStart(time.Now())).First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, classify(err)
	}
	return rec.Total(), nil
}

var _ store.Store = (*Store)(nil)
