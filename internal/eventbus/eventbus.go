// Package eventbus is the publish-only Event Bus the Supervisor uses to
// notify external subscribers (the websocket edge, primarily) of session
// status, QR, and inbound-message activity, per spec.md §4.G. Delivery is
// best-effort and MUST NOT block core progress on a slow subscriber -
// every publish calls each subscriber's Notify in its own goroutine rather
// than inline.
package eventbus

import "sync"

// Topic names the four per-session channels spec.md §4.G defines.
type Topic string

const (
	TopicQR               Topic = "qr"
	TopicConnectionStatus Topic = "connectionStatus"
	TopicMessage          Topic = "message"
	TopicGroupUpdate      Topic = "groupUpdate"
)

// Event is one published notification.
type Event struct {
	SessionID string
	Topic     Topic
	Payload   interface{}
}

// Subscriber receives events for sessions it has joined. Implementations
// (e.g. the websocket edge) must not block inside Notify for long; the bus
// already isolates slow subscribers from each other but a subscriber that
// never returns still starves its own backlog.
type Subscriber interface {
	Notify(ev Event)
}

// Bus fans out published events to every subscriber joined to a session.
// Keyed per session the same way a connection registry would be, but
// generalized to any Subscriber rather than a hardwired websocket.Conn slice.
type Bus struct {
	mu          sync.RWMutex
	subscribers map[string][]Subscriber
}

func New() *Bus {
	return &Bus{subscribers: make(map[string][]Subscriber)}
}

// Join registers a subscriber for a session's events. A subscriber may
// join multiple times (once per connection, e.g. multiple browser tabs).
func (b *Bus) Join(sessionID string, sub Subscriber) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subscribers[sessionID] = append(b.subscribers[sessionID], sub)
}

// Leave removes one subscriber instance from a session's fan-out list.
func (b *Bus) Leave(sessionID string, sub Subscriber) {
	b.mu.Lock()
	defer b.mu.Unlock()
	subs := b.subscribers[sessionID]
	for i, s := range subs {
		if s == sub {
			b.subscribers[sessionID] = append(subs[:i], subs[i+1:]...)
			break
		}
	}
	if len(b.subscribers[sessionID]) == 0 {
		delete(b.subscribers, sessionID)
	}
}

// Publish fans an event out to every subscriber joined to its session.
// Each delivery runs in its own goroutine so one slow or blocked
// subscriber never delays another.
func (b *Bus) Publish(ev Event) {
	b.mu.RLock()
	subs := append([]Subscriber(nil), b.subscribers[ev.SessionID]...)
	b.mu.RUnlock()

	for _, sub := range subs {
		go sub.Notify(ev)
	}
}

// PublishQR, PublishConnectionStatus, PublishMessage, and PublishGroupUpdate
// are typed convenience wrappers over Publish for the Supervisor's call
// sites.
func (b *Bus) PublishQR(sessionID, qr string) {
	b.Publish(Event{SessionID: sessionID, Topic: TopicQR, Payload: qr})
}

// ConnectionStatusPayload is the payload for TopicConnectionStatus events.
type ConnectionStatusPayload struct {
	Status      string `json:"status"`
	PhoneNumber string `json:"phoneNumber,omitempty"`
}

func (b *Bus) PublishConnectionStatus(sessionID string, payload ConnectionStatusPayload) {
	b.Publish(Event{SessionID: sessionID, Topic: TopicConnectionStatus, Payload: payload})
}

// MessagePayload is the payload for TopicMessage events.
type MessagePayload struct {
	From      string `json:"from"`
	Message   string `json:"message"`
	Timestamp int64  `json:"timestamp"`
}

func (b *Bus) PublishMessage(sessionID string, payload MessagePayload) {
	b.Publish(Event{SessionID: sessionID, Topic: TopicMessage, Payload: payload})
}

func (b *Bus) PublishGroupUpdate(sessionID string, payload interface{}) {
	b.Publish(Event{SessionID: sessionID, Topic: TopicGroupUpdate, Payload: payload})
}
