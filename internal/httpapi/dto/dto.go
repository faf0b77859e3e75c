// Package dto holds the request/response shapes for the HTTP edge, matching
// the wire contract named in spec.md §6.
package dto

import "time"

type CreateSessionRequest struct {
	SessionID    string `json:"session_id" binding:"required"`
	UserID       int    `json:"user_id"`
	SubAccountID string `json:"sub_account_id"`
}

type CreateSessionResponse struct {
	Success   bool   `json:"success"`
	SessionID string `json:"session_id"`
}

type SessionSummary struct {
	SessionID   string  `json:"sessionId"`
	Status      string  `json:"status"`
	PhoneNumber *string `json:"phoneNumber,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
}

type SessionStatusResponse struct {
	SessionID   string  `json:"sessionId"`
	Status      string  `json:"status"`
	PhoneNumber *string `json:"phoneNumber,omitempty"`
	ErrorMessage *string `json:"errorMessage,omitempty"`
	ReconnectAttempts int `json:"reconnectAttempts"`
	LastSeenAt  *time.Time `json:"lastSeenAt,omitempty"`
}

type SendMessageRequest struct {
	To      string `json:"to" binding:"required"`
	Message string `json:"message" binding:"required"`
}

type SendMessageResponse struct {
	QueueID string `json:"queue_id"`
}

type HealthResponse struct {
	Status    string    `json:"status"`
	Uptime    string    `json:"uptime"`
	Timestamp time.Time `json:"timestamp"`
}

type CreateGroupRequest struct {
	Name         string   `json:"name" binding:"required"`
	Participants []string `json:"participants"`
}

type ParticipantsRequest struct {
	Participants []string `json:"participants" binding:"required"`
}

type BroadcastRequest struct {
	Message string `json:"message" binding:"required"`
}

type GroupSettingsRequest struct {
	Name       *string `json:"name"`
	Topic      *string `json:"topic"`
	IsAnnounce *bool   `json:"is_announce"`
	IsLocked   *bool   `json:"is_locked"`
}
