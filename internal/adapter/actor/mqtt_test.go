package actor

import (
	"testing"
	"time"

	"github.com/berfenger/sensorist2mqtt/internal/core/domain"
	"github.com/berfenger/sensorist2mqtt/internal/util"
	"github.com/berfenger/sensorist2mqtt/internal/util/actorutil"

	"github.com/asynkron/protoactor-go/actor"
	"github.com/asynkron/protoactor-go/eventstream"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

func TestMQTTActor(t *testing.T) {

	cfg := util.LoadTestConfig()

	logger := zap.Must(zap.NewDevelopment())

	as := actorutil.NewActorSystemWithZapLogger(logger)

	context := as.Root

	es := eventstream.EventStream{}
	recorder := NewPublishRecorder()

	props := actor.PropsFromProducer(func() actor.Actor { return NewTestMQTTActor(&cfg, &es, recorder, logger) })
	pid := context.Spawn(props)

	msg := domain.ActorHealthRequest{}
	result, err := context.RequestFuture(pid, msg, 2*time.Second).Result()
	if err != nil {
		t.Error(err)
		return
	}
	resp, ok := result.(domain.ActorHealthResponse)
	assert.True(t, ok)
	assert.True(t, resp.Healthy)

	es.Publish(domain.FloatSensorUpdateEvent{
		SensorUpdateEventMixIn: domain.SensorUpdateEventMixIn{
			Id: "sensorist_dev0010_temperature",
		},
		Value:    21.456,
		Decimals: 1,
	})
	es.Publish(domain.SensorAvailabilityUpdateEvent{
		SensorUpdateEventMixIn: domain.SensorUpdateEventMixIn{
			Id: "sensorist_dev0010_humidity",
		},
		Available: false,
	})
	es.Publish(domain.TextSensorUpdateEvent{
		SensorUpdateEventMixIn: domain.SensorUpdateEventMixIn{
			Id: "sensorist_dev0010_firmware",
		},
		Value: "1.4",
	})

	assert.Eventually(t, func() bool {
		_, ok := recorder.Last("sensorist/sensor/sensorist_dev0010_firmware/state")
		return ok
	}, 2*time.Second, 20*time.Millisecond)

	payload, ok := recorder.Last("sensorist/sensor/sensorist_dev0010_temperature/state")
	assert.True(t, ok)
	assert.Equal(t, "21.5", payload)

	payload, ok = recorder.Last("sensorist/sensor/sensorist_dev0010_humidity/availability")
	assert.True(t, ok)
	assert.Equal(t, "offline", payload)

	payload, ok = recorder.Last("sensorist/bridge/state")
	assert.True(t, ok)
	assert.Equal(t, "online", payload)

	context.Stop(pid)

	as.Shutdown()
}

func TestMQTTActorDiscovery(t *testing.T) {

	cfg := util.LoadTestConfig()
	logger := zap.NewNop()
	as := actorutil.NewActorSystemWithZapLogger(logger)
	context := as.Root

	recorder := NewPublishRecorder()
	pid := context.Spawn(actor.PropsFromProducer(func() actor.Actor { return NewTestMQTTActor(&cfg, nil, recorder, logger) }))

	sensors := domain.BridgeSensors(domain.BridgeDevice(cfg.MQTT.BaseTopic))
	result, err := context.RequestFuture(pid, domain.PublishDiscoveryRequest{Sensors: sensors}, 2*time.Second).Result()
	assert.NoError(t, err)
	resp, ok := result.(domain.PublishDiscoveryResponse)
	assert.True(t, ok)
	assert.False(t, resp.HasResponseError())

	topic := "homeassistant/binary_sensor/" + sensors[0].Device.Id + "/" + sensors[0].Id + "/config"
	payload, ok := recorder.Last(topic)
	assert.True(t, ok)
	assert.Contains(t, payload, `"state_topic":"sensorist/bridge/state"`)

	context.Stop(pid)
	as.Shutdown()
}

func TestMQTTActorQueuesUpdatesUntilConnected(t *testing.T) {

	cfg := util.LoadTestConfig()
	logger := zap.NewNop()
	as := actorutil.NewActorSystemWithZapLogger(logger)
	context := as.Root

	es := &eventstream.EventStream{}
	connectedEvents := make(chan struct{}, 4)
	es.Subscribe(func(evt any) {
		if _, ok := evt.(domain.BrokerConnectedEvent); ok {
			connectedEvents <- struct{}{}
		}
	})

	recorder := NewPublishRecorder()
	connected := make(chan struct{})
	pid := context.Spawn(actor.PropsFromProducer(func() actor.Actor {
		return NewDelayedTestMQTTActor(&cfg, es, recorder, connected, logger)
	}))

	// subscribed on start, before the broker is reachable
	assert.Eventually(t, func() bool { return es.Length() == 2 }, 2*time.Second, 10*time.Millisecond)

	es.Publish(domain.TextSensorUpdateEvent{
		SensorUpdateEventMixIn: domain.SensorUpdateEventMixIn{Id: "gw0001_firmware"},
		Value:                  "2.1.0",
	})
	time.Sleep(100 * time.Millisecond)
	assert.Empty(t, recorder.Messages())
	assert.Empty(t, connectedEvents)

	close(connected)

	assert.Eventually(t, func() bool {
		v, ok := recorder.Last("sensorist/sensor/gw0001_firmware/state")
		return ok && v == "2.1.0"
	}, 2*time.Second, 20*time.Millisecond)
	payload, ok := recorder.Last("sensorist/bridge/state")
	assert.True(t, ok)
	assert.Equal(t, "online", payload)

	select {
	case <-connectedEvents:
	case <-time.After(2 * time.Second):
		t.Error("no BrokerConnectedEvent after connect")
	}

	context.Stop(pid)
	as.Shutdown()
}

func TestMQTTActorUnsubscribesOnStop(t *testing.T) {

	cfg := util.LoadTestConfig()
	logger := zap.NewNop()
	as := actorutil.NewActorSystemWithZapLogger(logger)
	defer as.Shutdown()

	es := &eventstream.EventStream{}
	pid := as.Root.Spawn(actor.PropsFromProducer(func() actor.Actor {
		return NewTestMQTTActor(&cfg, es, nil, logger)
	}))
	assert.Eventually(t, func() bool { return es.Length() == 1 }, 2*time.Second, 10*time.Millisecond)

	as.Root.StopFuture(pid).Wait()
	assert.Equal(t, int32(0), es.Length())
}
