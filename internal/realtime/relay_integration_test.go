//go:build integration

package realtime

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"qrcall/pkg/testutil/containers"
)

type RelaySuite struct {
	suite.Suite
	redis *containers.RedisContainer
}

func TestRelaySuite(t *testing.T) {
	suite.Run(t, new(RelaySuite))
}

func (s *RelaySuite) SetupSuite() {
	s.redis = containers.GetManager().GetRedis(s.T())
}

func (s *RelaySuite) TestEventsCrossInstances() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	hubA, hubB := NewHub(), NewHub()
	relayA := NewRelay(s.redis.Client, "qrcall:test-relay", hubA, nil)
	relayB := NewRelay(s.redis.Client, "qrcall:test-relay", hubB, nil)
	go func() { _ = relayA.Run(ctx) }()
	go func() { _ = relayB.Run(ctx) }()

	onA := newClient("a", 256)
	hubA.register(onA)
	hubA.join(onA, "U1")
	onB := newClient("b", 256)
	hubB.register(onB)
	hubB.join(onB, "U1")

	fanoutA := NewFanout(hubA, WithRelay(relayA))

	// Subscriptions are asynchronous; keep publishing until instance B sees one.
	published := 0
	s.Eventually(func() bool {
		fanoutA.ToRoom(ctx, "U1", NewEvent(EventIncomingCall, map[string]string{"callId": "C1"}))
		published++
		return len(onB.send) > 0
	}, 5*time.Second, 100*time.Millisecond)

	// The origin instance only delivers locally, never again from the relay.
	time.Sleep(200 * time.Millisecond)
	s.Equal(published, len(onA.send))

	fanoutA.Broadcast(ctx, NewEvent(EventEmergencyAlert, nil))
	s.Eventually(func() bool {
		for len(onB.send) > 0 {
			if strings.Contains(string(<-onB.send), `"event":"emergency-alert"`) {
				return true
			}
		}
		return false
	}, 5*time.Second, 50*time.Millisecond)
}
