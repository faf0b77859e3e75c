// Package reconnect is the Reconnection Controller (spec.md §4.D): on a
// non-logout disconnect it schedules an exponential-backoff retry of the
// Supervisor's Create operation, up to a fixed attempt cap, debounced so a
// session only ever has one timer pending at a time.
package reconnect

import (
	"context"
	"sync"
	"time"

	"wa-gateway/internal/logger"
)

// Creator is the subset of the Supervisor the controller drives: asking it
// to (re)create a session's live client from its persisted auth state.
type Creator interface {
	Recreate(ctx context.Context, sessionID string) error
}

// AttemptStore persists the reconnect-attempt counter so it survives a
// process restart mid-backoff (restart picks the session back up via
// listRestorableSessions rather than resuming a timer).
type AttemptStore interface {
	IncrementReconnectAttempts(ctx context.Context, sessionID string) (int, error)
	ResetReconnectAttempts(ctx context.Context, sessionID string) error
}

// StatusSetter is the minimal status-mutation surface the controller needs
// without importing the full store.Store interface.
type StatusSetter interface {
	SetConnecting(ctx context.Context, sessionID string) error
	SetError(ctx context.Context, sessionID, reason string) error
}

const (
	DefaultMaxAttempts    = 5
	DefaultBaseDelay      = 5 * time.Second
	DefaultMaxDelay       = 5 * time.Minute
	DefaultRateLimitDelay = 15 * time.Minute
)

// Config holds the backoff parameters, overridable from internal/config.
type Config struct {
	MaxAttempts    int
	BaseDelay      time.Duration
	MaxDelay       time.Duration
	RateLimitDelay time.Duration
}

func DefaultConfig() Config {
	return Config{
		MaxAttempts:    DefaultMaxAttempts,
		BaseDelay:      DefaultBaseDelay,
		MaxDelay:       DefaultMaxDelay,
		RateLimitDelay: DefaultRateLimitDelay,
	}
}

// Delay computes min(baseDelay * 2^n, maxDelay), the boundary spec.md §8
// names explicitly: 5,10,20,40,80,160 capped at 300 for the default config.
func (c Config) Delay(n int) time.Duration {
	d := c.BaseDelay << uint(n)
	if d > c.MaxDelay || d <= 0 {
		return c.MaxDelay
	}
	return d
}

// Controller schedules and debounces reconnection timers, one per session.
type Controller struct {
	cfg     Config
	store   AttemptStore
	status  StatusSetter
	creator Creator
	log     logger.Logger

	mu     sync.Mutex
	timers map[string]*time.Timer
}

func New(cfg Config, store AttemptStore, status StatusSetter, creator Creator, log logger.Logger) *Controller {
	return &Controller{
		cfg:     cfg,
		store:   store,
		status:  status,
		creator: creator,
		log:     log,
		timers:  make(map[string]*time.Timer),
	}
}

// OnDisconnect is called by the Supervisor on every non-logout close
// event. Per spec.md §4.D's concurrency note, a disconnect while a timer is
// already pending for this session is a no-op - the debounce.
func (c *Controller) OnDisconnect(ctx context.Context, sessionID string, rateLimited bool) {
	c.mu.Lock()
	if _, pending := c.timers[sessionID]; pending {
		c.mu.Unlock()
		return
	}
	c.mu.Unlock()

	c.schedule(ctx, sessionID, rateLimited)
}

func (c *Controller) schedule(ctx context.Context, sessionID string, rateLimited bool) {
	n, err := c.store.IncrementReconnectAttempts(ctx, sessionID)
	if err != nil {
		c.log.ErrorWithFields("reconnect: incrementing attempt counter failed", logger.Fields{
			"session_id": sessionID, "error": err.Error(),
		})
		return
	}

	if n > c.cfg.MaxAttempts {
		c.giveUp(ctx, sessionID)
		return
	}

	delay := c.cfg.Delay(n - 1)
	if rateLimited {
		delay = c.cfg.RateLimitDelay
	}

	if err := c.status.SetConnecting(ctx, sessionID); err != nil {
		c.log.WarnWithFields("reconnect: setting status=connecting failed", logger.Fields{
			"session_id": sessionID, "error": err.Error(),
		})
	}

	c.log.InfoWithFields("reconnect: scheduling retry", logger.Fields{
		"session_id": sessionID, "attempt": n, "delay": delay.String(),
	})

	timer := time.AfterFunc(delay, func() {
		c.fire(ctx, sessionID)
	})

	c.mu.Lock()
	c.timers[sessionID] = timer
	c.mu.Unlock()
}

func (c *Controller) fire(ctx context.Context, sessionID string) {
	c.mu.Lock()
	delete(c.timers, sessionID)
	c.mu.Unlock()

	if err := c.creator.Recreate(ctx, sessionID); err != nil {
		c.log.WarnWithFields("reconnect: recreate attempt failed", logger.Fields{
			"session_id": sessionID, "error": err.Error(),
		})
		c.schedule(ctx, sessionID, false)
		return
	}
	// Success: the Supervisor's connection-open handler resets the
	// attempt counter via ResetReconnectAttempts.
}

func (c *Controller) giveUp(ctx context.Context, sessionID string) {
	c.mu.Lock()
	delete(c.timers, sessionID)
	c.mu.Unlock()

	if err := c.status.SetError(ctx, sessionID, "Max reconnection attempts exceeded"); err != nil {
		c.log.ErrorWithFields("reconnect: setting status=error failed", logger.Fields{
			"session_id": sessionID, "error": err.Error(),
		})
	}
}

// Cancel stops any pending timer for a session, invoked by the Supervisor
// on Destroy per spec.md §5's cancellation rules.
func (c *Controller) Cancel(sessionID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if t, ok := c.timers[sessionID]; ok {
		t.Stop()
		delete(c.timers, sessionID)
	}
}

// CancelAll stops every pending timer, invoked on process shutdown.
func (c *Controller) CancelAll() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for id, t := range c.timers {
		t.Stop()
		delete(c.timers, id)
	}
}
