// Package registry is the process-wide Session Registry: a sessionId ->
// live handle table. It holds no persistence or WhatsApp-client logic of
// its own; the Supervisor is the only writer.
package registry

import (
	"fmt"
	"sync"
	"time"

	"wa-gateway/internal/models"
)

// Handle is the live-process counterpart of a persisted Session row: the
// WhatsApp client socket, its current status, and bookkeeping the
// Supervisor and Reconnection Controller read without going to the store.
type Handle struct {
	SessionID   string
	OrgID       string
	Client      interface{} // *whatsmeow.Client in the Supervisor; kept opaque here to avoid an import cycle
	mu          sync.RWMutex
	status      models.SessionStatus
	phoneNumber string
	createdAt   time.Time
}

func newHandle(sessionID, orgID string, client interface{}) *Handle {
	return &Handle{
		SessionID: sessionID,
		OrgID:     orgID,
		Client:    client,
		status:    models.SessionConnecting,
		createdAt: time.Now(),
	}
}

func (h *Handle) Status() models.SessionStatus {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.status
}

func (h *Handle) PhoneNumber() string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.phoneNumber
}

func (h *Handle) CreatedAt() time.Time {
	return h.createdAt
}

// SetConnected and SetStatus are the only mutators; both are called
// exclusively by the Supervisor's single-threaded per-session event
// consumer, so the lock here only protects concurrent readers (HTTP
// status queries, the Reconnection Controller).
func (h *Handle) SetConnected(phoneNumber string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.status = models.SessionConnected
	h.phoneNumber = phoneNumber
}

func (h *Handle) SetStatus(status models.SessionStatus) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.status = status
}

// ErrAlreadyRegistered is returned by Register when the session id is
// already present.
type ErrAlreadyRegistered struct {
	SessionID string
}

func (e ErrAlreadyRegistered) Error() string {
	return fmt.Sprintf("registry: session %q is already registered", e.SessionID)
}

// Registry is the process-wide sessionId -> *Handle table.
type Registry struct {
	mu       sync.RWMutex
	handles  map[string]*Handle
}

func New() *Registry {
	return &Registry{handles: make(map[string]*Handle)}
}

// Register fails if the id already exists, per spec.md §4.B.
func (r *Registry) Register(sessionID, orgID string, client interface{}) (*Handle, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.handles[sessionID]; exists {
		return nil, ErrAlreadyRegistered{SessionID: sessionID}
	}
	h := newHandle(sessionID, orgID, client)
	r.handles[sessionID] = h
	return h, nil
}

// Deregister is explicit, invoked by the Supervisor on permanent teardown.
func (r *Registry) Deregister(sessionID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.handles, sessionID)
}

// Get returns the live handle for a session, or (nil, false) if it has no
// live handle (never created, or torn down).
func (r *Registry) Get(sessionID string) (*Handle, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	h, ok := r.handles[sessionID]
	return h, ok
}

// Len reports how many sessions currently have a live handle.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.handles)
}

// All returns a snapshot of every currently registered handle.
func (r *Registry) All() []*Handle {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Handle, 0, len(r.handles))
	for _, h := range r.handles {
		out = append(out, h)
	}
	return out
}
