package eventbus_test

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"wa-gateway/internal/eventbus"
)

type recordingSubscriber struct {
	mu     sync.Mutex
	events []eventbus.Event
}

func (r *recordingSubscriber) Notify(ev eventbus.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

func (r *recordingSubscriber) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.events)
}

func TestPublishFansOutToJoinedSubscribersOnly(t *testing.T) {
	bus := eventbus.New()
	subA := &recordingSubscriber{}
	subB := &recordingSubscriber{}

	bus.Join("sess-a", subA)
	bus.Join("sess-b", subB)

	bus.PublishQR("sess-a", "qr-data")

	require.Eventually(t, func() bool { return subA.count() == 1 }, time.Second, time.Millisecond)
	assert.Equal(t, 0, subB.count())
	assert.Equal(t, eventbus.TopicQR, subA.events[0].Topic)
	assert.Equal(t, "qr-data", subA.events[0].Payload)
}

func TestJoinAllowsMultipleSubscribersPerSession(t *testing.T) {
	bus := eventbus.New()
	sub1 := &recordingSubscriber{}
	sub2 := &recordingSubscriber{}

	bus.Join("sess-a", sub1)
	bus.Join("sess-a", sub2)

	bus.PublishConnectionStatus("sess-a", eventbus.ConnectionStatusPayload{Status: "connected"})

	require.Eventually(t, func() bool { return sub1.count() == 1 && sub2.count() == 1 }, time.Second, time.Millisecond)
}

func TestLeaveRemovesOnlyThatSubscriber(t *testing.T) {
	bus := eventbus.New()
	sub1 := &recordingSubscriber{}
	sub2 := &recordingSubscriber{}

	bus.Join("sess-a", sub1)
	bus.Join("sess-a", sub2)
	bus.Leave("sess-a", sub1)

	bus.PublishMessage("sess-a", eventbus.MessagePayload{From: "123", Message: "hi"})

	require.Eventually(t, func() bool { return sub2.count() == 1 }, time.Second, time.Millisecond)
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, 0, sub1.count())
}

func TestPublishToSessionWithNoSubscribersDoesNotPanic(t *testing.T) {
	bus := eventbus.New()
	assert.NotPanics(t, func() {
		bus.PublishGroupUpdate("nobody-here", map[string]string{"event": "noop"})
	})
}
