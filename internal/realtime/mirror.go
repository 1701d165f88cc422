package realtime

import (
	"encoding/json"
	"log/slog"
	"strings"

	"qrcall/internal/calls/models"
)

// MQTTPublisher is satisfied by the platform MQTT client.
type MQTTPublisher interface {
	Publish(topic string, payload []byte) error
}

// Mirror republishes owner room events to MQTT so in-vehicle units without a
// websocket still see incoming calls. Caller rooms are never mirrored.
type Mirror struct {
	publisher      MQTTPublisher
	topicPrefix    string
	broadcastTopic string
	logger         *slog.Logger
}

func NewMirror(publisher MQTTPublisher, topicPrefix, broadcastTopic string, logger *slog.Logger) *Mirror {
	if logger == nil {
		logger = slog.Default()
	}
	return &Mirror{
		publisher:      publisher,
		topicPrefix:    strings.TrimRight(topicPrefix, "/"),
		broadcastTopic: broadcastTopic,
		logger:         logger,
	}
}

// RoomTopic returns the topic for an owner room, or "" for rooms that are not mirrored.
func (m *Mirror) RoomTopic(room string) string {
	if _, isCaller := models.CallIDFromCallerRoom(room); room == "" || isCaller {
		return ""
	}
	return m.topicPrefix + "/" + room + "/events"
}

func (m *Mirror) Room(room string, ev Event) {
	topic := m.RoomTopic(room)
	if topic == "" {
		return
	}
	m.publish(topic, ev)
}

func (m *Mirror) Broadcast(ev Event) {
	if m.broadcastTopic == "" {
		return
	}
	m.publish(m.broadcastTopic, ev)
}

func (m *Mirror) publish(topic string, ev Event) {
	payload, err := json.Marshal(ev)
	if err != nil {
		m.logger.Error("failed to encode mqtt mirror event", "event", ev.Name, "error", err)
		return
	}
	if err := m.publisher.Publish(topic, payload); err != nil {
		m.logger.Warn("mqtt mirror publish failed", "topic", topic, "event", ev.Name, "error", err)
	}
}
