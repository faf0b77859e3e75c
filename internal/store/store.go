// Package store defines the Persistence Store contract: a transactional
// record store for organizations, sessions, messages, groups, webhook
// logs, and usage counters. Callers never construct SQL; every other
// component depends on this interface so tests can supply the in-memory
// implementation in internal/store/memstore instead of a real database.
package store

import (
	"context"
	"time"

	"github.com/google/uuid"

	"wa-gateway/internal/models"
)

// RestorableSession is the projection listRestorableSessions returns: just
// enough to re-seed a live client without loading the full Session row.
type RestorableSession struct {
	SessionID   string
	OrgID       uuid.UUID
	AuthState   []byte
	PhoneNumber *string
}

// Store is the full Persistence Store contract.
type Store interface {
	// Organizations.
	GetOrganization(ctx context.Context, orgID uuid.UUID) (*models.Organization, error)
	GetOrganizationByOwner(ctx context.Context, ownerUserID int) (*models.Organization, error)
	CreateOrganization(ctx context.Context, org *models.Organization) error
	UpdateOrganizationWebhook(ctx context.Context, orgID uuid.UUID, webhookURL, webhookAPIKey, webhookLocationID *string) error
	ListOrgIDs(ctx context.Context) ([]uuid.UUID, error)

	// Sessions.
	CreateSession(ctx context.Context, sessionID string, orgID uuid.UUID) (*models.Session, error)
	GetSession(ctx context.Context, sessionID string) (*models.Session, error)
	LoadAuthState(ctx context.Context, sessionID string) ([]byte, error)
	SaveAuthState(ctx context.Context, sessionID string, blob []byte) error
	UpdateSessionStatus(ctx context.Context, sessionID string, status models.SessionStatus, phoneNumber, errorMessage *string) error
	SaveQRCode(ctx context.Context, sessionID string, qr string) error
	ListRestorableSessions(ctx context.Context) ([]RestorableSession, error)
	ListSessionsByOrg(ctx context.Context, orgID uuid.UUID) ([]models.Session, error)
	DeleteSession(ctx context.Context, sessionID string) error
	IncrementReconnectAttempts(ctx context.Context, sessionID string) (int, error)
	ResetReconnectAttempts(ctx context.Context, sessionID string) error

	// Messages.
	SaveMessage(ctx context.Context, input models.MessageInput) (*models.Message, error)
	MarkMessageSynced(ctx context.Context, messageID uuid.UUID, crmMessageID string) error
	MarkMessageFailed(ctx context.Context, messageID uuid.UUID) error
	ListPendingCrmSync(ctx context.Context, orgID uuid.UUID, limit int) ([]models.Message, error)

	// Groups.
	UpsertGroup(ctx context.Context, group *models.Group) error

	// Webhook audit.
	LogWebhook(ctx context.Context, entry *models.WebhookLog) error

	// Usage & limits.
	UpsertUsage(ctx context.Context, orgID uuid.UUID, periodStart time.Time, sentDelta, receivedDelta int64) error
	CountActiveSessions(ctx context.Context, orgID uuid.UUID) (int, error)
	CountMessagesThisMonth(ctx context.Context, orgID uuid.UUID) (int64, error)
}

// ErrNotFound is the sentinel "not found" result named in spec.md §4.A.
// Store implementations return it (wrapped, where useful) instead of a
// driver-specific not-found error so callers don't import gorm/sql.
var ErrNotFound = notFoundError{}

type notFoundError struct{}

func (notFoundError) Error() string { return "store: record not found" }

// ErrDuplicateMessage is returned by SaveMessage when (messageId, sessionId)
// already exists, per spec.md §4.A's "must fail cleanly on duplicate" clause.
var ErrDuplicateMessage = duplicateMessageError{}

type duplicateMessageError struct{}

func (duplicateMessageError) Error() string { return "store: duplicate (messageId, sessionId)" }
