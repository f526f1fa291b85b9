package actor

import (
	"sync"

	"github.com/berfenger/sensorist2mqtt/internal/config"

	"github.com/asynkron/protoactor-go/eventstream"
	"go.uber.org/zap"
)

type PublishedMessage struct {
	Topic   string
	Payload string
	Retain  bool
}

// PublishRecorder collects what a test MQTT actor would have published.
type PublishRecorder struct {
	mu       sync.Mutex
	messages []PublishedMessage
}

func NewPublishRecorder() *PublishRecorder {
	return &PublishRecorder{}
}

func (r *PublishRecorder) record(topic, payload string, retain bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.messages = append(r.messages, PublishedMessage{Topic: topic, Payload: payload, Retain: retain})
}

func (r *PublishRecorder) Messages() []PublishedMessage {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]PublishedMessage, len(r.messages))
	copy(out, r.messages)
	return out
}

// Last returns the latest payload published on topic.
func (r *PublishRecorder) Last(topic string) (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := len(r.messages) - 1; i >= 0; i-- {
		if r.messages[i].Topic == topic {
			return r.messages[i].Payload, true
		}
	}
	return "", false
}

func (r *PublishRecorder) Count(topic string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, m := range r.messages {
		if m.Topic == topic {
			n++
		}
	}
	return n
}

// NewTestMQTTActor runs the MQTT actor against a recorder instead of a
// broker. It connects right after start.
func NewTestMQTTActor(config *config.Config, eventStream *eventstream.EventStream, recorder *PublishRecorder, logger *zap.Logger) *MQTTActor {
	return NewDelayedTestMQTTActor(config, eventStream, recorder, nil, logger)
}

// NewDelayedTestMQTTActor is like NewTestMQTTActor but only connects once
// connected is closed.
func NewDelayedTestMQTTActor(config *config.Config, eventStream *eventstream.EventStream, recorder *PublishRecorder,
	connected <-chan struct{}, logger *zap.Logger) *MQTTActor {
	if recorder == nil {
		recorder = NewPublishRecorder()
	}
	act := NewMQTTActor(config, eventStream, logger)
	act.recorder = recorder
	act.connectGate = connected
	return act
}
