// Package outboundqueue is the Outbound Queue (spec.md §4.E): a per-session
// FIFO of outbound sends, rate-limited by a token bucket, with bounded
// per-message retry. One worker goroutine per session, single-flight,
// grounded on the Setup-Automatizado queue worker's Start/Stop lifecycle
// (stopCh/doneCh) generalized from a LISTEN/NOTIFY-driven repository to an
// in-process channel.
package outboundqueue

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"wa-gateway/internal/apperrors"
	"wa-gateway/internal/logger"
)

// Item is one pending outbound send.
type Item struct {
	QueueID     string
	SessionID   string
	JID         string
	Content     string
	MessageType string
	EnqueuedAt  time.Time
	Attempts    int
}

// Sender is the subset of the Supervisor the queue drives to actually
// transmit a message.
type Sender interface {
	Send(ctx context.Context, sessionID, jid, content, messageType string) error
}

// UsageIncrementer is called after every successful send.
type UsageIncrementer interface {
	IncrementSent(ctx context.Context, sessionID string)
}

// Config holds the queue's timing parameters, per spec.md §4.E's named
// defaults.
type Config struct {
	MessagesPerMinute   int
	DelayBetweenSends   time.Duration
	MaxAttempts         int
	RetryDelay          time.Duration
	BucketExhaustedWait time.Duration
}

func DefaultConfig() Config {
	return Config{
		MessagesPerMinute:   20,
		DelayBetweenSends:   3 * time.Second,
		MaxAttempts:         3,
		RetryDelay:          5 * time.Second,
		BucketExhaustedWait: 60 * time.Second,
	}
}

// sessionQueue is the per-session FIFO plus its worker goroutine.
type sessionQueue struct {
	sessionID string
	items     []Item
	mu        sync.Mutex
	signal    chan struct{}
	bucket    *tokenBucket
	stopCh    chan struct{}
	doneCh    chan struct{}
}

// Queue owns one sessionQueue per session id that has ever enqueued a
// message.
type Queue struct {
	cfg    Config
	sender Sender
	usage  UsageIncrementer
	log    logger.Logger

	mu      sync.Mutex
	queues  map[string]*sessionQueue
	nextTag int
}

func New(cfg Config, sender Sender, usage UsageIncrementer, log logger.Logger) *Queue {
	return &Queue{
		cfg:    cfg,
		sender: sender,
		usage:  usage,
		log:    log,
		queues: make(map[string]*sessionQueue),
	}
}

func (q *Queue) queueFor(sessionID string) *sessionQueue {
	q.mu.Lock()
	defer q.mu.Unlock()
	sq, ok := q.queues[sessionID]
	if !ok {
		sq = &sessionQueue{
			sessionID: sessionID,
			signal:    make(chan struct{}, 1),
			bucket:    newTokenBucket(q.cfg.MessagesPerMinute, time.Minute),
			stopCh:    make(chan struct{}),
			doneCh:    make(chan struct{}),
		}
		q.queues[sessionID] = sq
		go q.worker(sq)
	}
	return sq
}

func (q *Queue) newQueueID() string {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.nextTag++
	return fmt.Sprintf("q-%d-%s", q.nextTag, uuid.NewString()[:8])
}

// Enqueue appends one item and wakes its session's worker. Returns an
// empty queue id and logs a rejection if messageType is neither empty nor
// "text", per spec.md §9.
func (q *Queue) Enqueue(sessionID, jid, content, messageType string) string {
	if err := validateMessageType(messageType); err != nil {
		q.log.WarnWithFields("rejecting enqueue", logger.Fields{
			"session_id": sessionID, "message_type": messageType, "error": err.Error(),
		})
		return ""
	}

	sq := q.queueFor(sessionID)
	item := Item{
		QueueID:     q.newQueueID(),
		SessionID:   sessionID,
		JID:         jid,
		Content:     content,
		MessageType: messageType,
		EnqueuedAt:  time.Now(),
	}

	sq.mu.Lock()
	sq.items = append(sq.items, item)
	sq.mu.Unlock()

	select {
	case sq.signal <- struct{}{}:
	default:
	}
	return item.QueueID
}

// BulkEnqueue enqueues N items and returns their queue ids. No
// transactional guarantee across the batch, per spec.md §4.E.
func (q *Queue) BulkEnqueue(sessionID string, items []Item) []string {
	ids := make([]string, 0, len(items))
	for _, it := range items {
		ids = append(ids, q.Enqueue(sessionID, it.JID, it.Content, it.MessageType))
	}
	return ids
}

// ImmediateSend bypasses the queue and bucket entirely - documented as
// emergency-only in spec.md §4.E.
func (q *Queue) ImmediateSend(ctx context.Context, sessionID, jid, content, messageType string) error {
	return q.sender.Send(ctx, sessionID, jid, content, messageType)
}

func (q *Queue) worker(sq *sessionQueue) {
	defer close(sq.doneCh)
	ctx := context.Background()

	for {
		select {
		case <-sq.stopCh:
			return
		case <-sq.signal:
		}

		for {
			sq.mu.Lock()
			if len(sq.items) == 0 {
				sq.mu.Unlock()
				break
			}
			head := sq.items[0]
			sq.mu.Unlock()

			if !sq.bucket.Allow() {
				select {
				case <-time.After(q.cfg.BucketExhaustedWait):
				case <-sq.stopCh:
					return
				}
				continue
			}

			err := q.sender.Send(ctx, head.SessionID, head.JID, head.Content, head.MessageType)
			if err == nil {
				q.popHead(sq)
				if q.usage != nil {
					q.usage.IncrementSent(ctx, head.SessionID)
				}
				select {
				case <-time.After(q.cfg.DelayBetweenSends):
				case <-sq.stopCh:
					return
				}
				continue
			}

			q.handleFailure(sq, head, err)
			select {
			case <-time.After(q.cfg.RetryDelay):
			case <-sq.stopCh:
				return
			}
		}
	}
}

func (q *Queue) popHead(sq *sessionQueue) {
	sq.mu.Lock()
	defer sq.mu.Unlock()
	if len(sq.items) == 0 {
		return
	}
	sq.items = sq.items[1:]
}

func (q *Queue) handleFailure(sq *sessionQueue, head Item, sendErr error) {
	sq.mu.Lock()
	defer sq.mu.Unlock()
	if len(sq.items) == 0 || sq.items[0].QueueID != head.QueueID {
		return
	}

	sq.items[0].Attempts++
	attempts := sq.items[0].Attempts

	q.log.WarnWithFields("outbound send failed", logger.Fields{
		"session_id": head.SessionID, "queue_id": head.QueueID, "attempt": attempts, "error": sendErr.Error(),
	})

	if attempts >= q.cfg.MaxAttempts {
		sq.items = sq.items[1:]
		q.log.ErrorWithFields("outbound message exhausted retries", logger.Fields{
			"session_id": head.SessionID, "queue_id": head.QueueID,
		})
		return
	}

	failed := sq.items[0]
	sq.items = append(sq.items[1:], failed)
}

// Stop cancels a session's worker, invoked by the session handler's
// Disconnect before it asks the Supervisor to Destroy the session.
func (q *Queue) Stop(sessionID string) {
	q.mu.Lock()
	sq, ok := q.queues[sessionID]
	if ok {
		delete(q.queues, sessionID)
	}
	q.mu.Unlock()
	if !ok {
		return
	}
	close(sq.stopCh)
	<-sq.doneCh
}

// StopAll cancels every session's worker, invoked on process shutdown.
func (q *Queue) StopAll() {
	q.mu.Lock()
	sessions := make([]string, 0, len(q.queues))
	for id := range q.queues {
		sessions = append(sessions, id)
	}
	q.mu.Unlock()
	for _, id := range sessions {
		q.Stop(id)
	}
}

// validateMessageType rejects non-text sends per spec.md §9's resolution
// of the source ambiguity: non-text message types are unsupported by the
// queue even though routes for them might exist upstream.
func validateMessageType(messageType string) error {
	if messageType != "" && messageType != "text" {
		return apperrors.Validation("unsupported message type %q: only text sends are accepted by the outbound queue", messageType)
	}
	return nil
}
