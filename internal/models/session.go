package models

import (
	"regexp"
	"time"

	"github.com/google/uuid"
)

// SessionStatus is the lifecycle state of a WhatsApp session, restricted to
// the four states named in the session model.
type SessionStatus string

const (
	SessionConnecting   SessionStatus = "connecting"
	SessionConnected    SessionStatus = "connected"
	SessionDisconnected SessionStatus = "disconnected"
	SessionError        SessionStatus = "error"
)

func (s SessionStatus) IsValid() bool {
	switch s {
	case SessionConnecting, SessionConnected, SessionDisconnected, SessionError:
		return true
	default:
		return false
	}
}

var sessionIDPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{1,100}$`)

// ValidSessionID reports whether id is a legal opaque session identifier:
// at most 100 characters, alphanumeric plus `_`/`-`.
func ValidSessionID(id string) bool {
	return sessionIDPattern.MatchString(id)
}

// Session is a single live (or suspended) WhatsApp-Web client binding,
// scoped to an Organization. AuthState is the opaque, tagged-JSON encoded
// credential/key bundle produced by internal/waauth; it never leaves the
// process boundary and carries no json tag.
type Session struct {
	SessionID         string        `gorm:"type:varchar(100);primaryKey" json:"session_id"`
	OrgID             uuid.UUID     `gorm:"type:uuid;not null;index:idx_sessions_org" json:"org_id"`
	PhoneNumber       *string       `gorm:"type:varchar(32)" json:"phone_number,omitempty"`
	Status            SessionStatus `gorm:"type:varchar(20);not null;default:'connecting';index:idx_sessions_status" json:"status"`
	AuthState         []byte        `gorm:"type:bytea" json:"-"`
	LastQR            *string       `gorm:"type:text" json:"-"`
	LastSeenAt        *time.Time    `json:"last_seen_at,omitempty"`
	ErrorMessage      *string       `gorm:"type:text" json:"error_message,omitempty"`
	ReconnectAttempts int           `gorm:"not null;default:0" json:"reconnect_attempts"`
	CreatedAt         time.Time     `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt         time.Time     `gorm:"autoUpdateTime" json:"updated_at"`
}

func (Session) TableName() string { return "whatsapp_sessions" }

// IsRestorable matches the Fleet Manager's restore-on-boot criteria: a
// connected or connecting status and a persisted auth state to resume from.
func (s *Session) IsRestorable() bool {
	return (s.Status == SessionConnected || s.Status == SessionConnecting) && len(s.AuthState) > 0
}

// IsActive matches the Limit Guard's "counts toward the account cap" rule:
// every session not in a terminal error state.
func (s *Session) IsActive() bool {
	return s.Status != SessionError
}

// SetConnecting moves the session back to connecting and clears any prior
// error, ahead of a fresh QR/pairing attempt.
func (s *Session) SetConnecting() {
	s.Status = SessionConnecting
	s.ErrorMessage = nil
}

// SetConnected records a successful pairing: phone number is populated (the
// connected ⇒ non-null phoneNumber invariant), reconnect attempts reset,
// error cleared.
func (s *Session) SetConnected(phoneNumber string) {
	now := time.Now()
	s.Status = SessionConnected
	s.PhoneNumber = &phoneNumber
	s.LastSeenAt = &now
	s.ErrorMessage = nil
	s.ReconnectAttempts = 0
	s.LastQR = nil
}

// SetDisconnected records a clean or unexpected drop, short of the
// reconnect-attempt cap being reached.
func (s *Session) SetDisconnected() {
	now := time.Now()
	s.Status = SessionDisconnected
	s.LastSeenAt = &now
}

// SetError moves the session to its terminal state: the reconnection
// controller has exhausted its attempt budget, or the device was logged
// out remotely. Per the session model's invariant, error state always
// implies reconnectAttempts has reached the configured cap.
func (s *Session) SetError(message string, maxAttempts int) {
	s.Status = SessionError
	s.ErrorMessage = &message
	if s.ReconnectAttempts < maxAttempts {
		s.ReconnectAttempts = maxAttempts
	}
}

// SetQR stores the latest QR payload for a pending pairing.
func (s *Session) SetQR(qr string) {
	s.LastQR = &qr
}

// IncrementReconnectAttempts bumps the attempt counter, returning the new
// count so the caller can compare it against the configured cap.
func (s *Session) IncrementReconnectAttempts() int {
	s.ReconnectAttempts++
	return s.ReconnectAttempts
}
