package realtime

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingMQTT struct {
	mu       sync.Mutex
	messages map[string][]byte
	err      error
}

func (r *recordingMQTT) Publish(topic string, payload []byte) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.messages == nil {
		r.messages = make(map[string][]byte)
	}
	r.messages[topic] = payload
	return r.err
}

func (r *recordingMQTT) get(topic string) ([]byte, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.messages[topic]
	return p, ok
}

func TestMirrorTopics(t *testing.T) {
	m := NewMirror(&recordingMQTT{}, "qrcall/users/", "qrcall/broadcast", nil)

	assert.Equal(t, "qrcall/users/U1/events", m.RoomTopic("U1"))
	assert.Empty(t, m.RoomTopic("caller_C1"))
	assert.Empty(t, m.RoomTopic(""))
}

func TestMirrorPublishesOwnerRoomsAndBroadcasts(t *testing.T) {
	pub := &recordingMQTT{}
	m := NewMirror(pub, "qrcall/users", "qrcall/broadcast", nil)

	m.Room("U1", NewEvent(EventIncomingCall, map[string]string{"callId": "C1"}))
	m.Room("caller_C1", NewEvent(EventCallAccepted, nil))
	m.Broadcast(NewEvent(EventEmergencyAlert, nil))

	payload, ok := pub.get("qrcall/users/U1/events")
	require.True(t, ok)
	assert.JSONEq(t, `{"event":"incoming-call","data":{"callId":"C1"}}`, string(payload))
	_, ok = pub.get("qrcall/users/caller_C1/events")
	assert.False(t, ok)
	_, ok = pub.get("qrcall/broadcast")
	assert.True(t, ok)
}

func TestMirrorSwallowsPublishErrors(t *testing.T) {
	pub := &recordingMQTT{err: errors.New("broker down")}
	m := NewMirror(pub, "qrcall/users", "", nil)

	assert.NotPanics(t, func() {
		m.Room("U1", NewEvent(EventCallEnded, nil))
		m.Broadcast(NewEvent(EventEmergencyAlert, nil))
	})
}

func TestFanoutDeliversLocallyAndMirrors(t *testing.T) {
	hub := NewHub()
	c := newClient("s1", 4)
	hub.register(c)
	hub.join(c, "U1")
	pub := &recordingMQTT{}
	f := NewFanout(hub, WithMirror(NewMirror(pub, "qrcall/users", "qrcall/broadcast", nil)))

	f.ToRoom(context.Background(), "U1", NewEvent(EventCallRejected, nil))
	f.Broadcast(context.Background(), NewEvent(EventEmergencyAlert, nil))

	assert.Len(t, c.send, 2)
	assert.Eventually(t, func() bool {
		_, room := pub.get("qrcall/users/U1/events")
		_, all := pub.get("qrcall/broadcast")
		return room && all
	}, time.Second, 10*time.Millisecond)
}
