package actor

import (
	"sync/atomic"
	"testing"
	"time"

	adactor "github.com/berfenger/sensorist2mqtt/internal/adapter/actor"
	"github.com/berfenger/sensorist2mqtt/internal/adapter/store"
	"github.com/berfenger/sensorist2mqtt/internal/core/domain"
	"github.com/berfenger/sensorist2mqtt/internal/core/port"
	"github.com/berfenger/sensorist2mqtt/internal/util"
	"github.com/berfenger/sensorist2mqtt/internal/util/actorutil"
	"github.com/berfenger/sensorist2mqtt/pkg/sensorist"

	"github.com/asynkron/protoactor-go/actor"
	"github.com/asynkron/protoactor-go/eventstream"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type sensorFixture struct {
	system   *actor.ActorSystem
	sensor   *actor.PID
	recorder *adactor.PublishRecorder
	entity   *domain.SensorEntity
}

func temperatureSensor(t *testing.T) *domain.SensorEntity {
	tree := sensorist.SampleGatewayTree()
	gw := domain.NewGatewayEntity(tree.Gateways[0])
	dev := domain.NewDeviceEntity(tree.Gateways[0].Devices[0], gw)
	s, err := domain.NewSensorEntity(tree.Gateways[0].Devices[0].Sensors[0], dev, gw)
	require.NoError(t, err)
	return s
}

func startSensor(t *testing.T, api *sensorist.TestClient, readings port.ReadingStore) *sensorFixture {
	cfg := util.LoadTestConfig()
	return startSensorWithInterval(t, api, readings, cfg.Sensorist.ScanInterval())
}

func startSensorWithInterval(t *testing.T, api *sensorist.TestClient, readings port.ReadingStore, interval time.Duration) *sensorFixture {
	cfg := util.LoadTestConfig()
	logger := zap.NewNop()
	as := actorutil.NewActorSystemWithZapLogger(logger)
	es := &eventstream.EventStream{}
	recorder := adactor.NewPublishRecorder()

	mqttPID := as.Root.Spawn(actor.PropsFromProducer(func() actor.Actor {
		return adactor.NewTestMQTTActor(&cfg, es, recorder, logger)
	}))
	// subscribed to the event stream once it answers
	_, err := as.Root.RequestFuture(mqttPID, domain.ActorHealthRequest{}, time.Second).Result()
	require.NoError(t, err)
	sensoristPID := as.Root.Spawn(actor.PropsFromProducer(func() actor.Actor {
		return adactor.NewSensoristActor(api, 2*time.Second, nil, logger)
	}))

	entity := temperatureSensor(t)
	pid := as.Root.Spawn(actor.PropsFromProducer(func() actor.Actor {
		return NewSensorActor(SensorActorParams{
			Sensor:         entity,
			SensoristActor: sensoristPID,
			EventStream:    es,
			Store:          readings,
			Interval:       interval,
			RequestTimeout: 2 * time.Second,
		}, logger)
	}))
	t.Cleanup(as.Shutdown)

	return &sensorFixture{system: as, sensor: pid, recorder: recorder, entity: entity}
}

func (f *sensorFixture) reading(t *testing.T) domain.SensorReading {
	res, err := f.system.Root.RequestFuture(f.sensor, domain.GetSensorReadingRequest{}, time.Second).Result()
	require.NoError(t, err)
	resp, ok := res.(domain.GetSensorReadingResponse)
	require.True(t, ok)
	return resp.Reading
}

func TestSensorActorRestoresBeforeFirstPoll(t *testing.T) {

	api := sensorist.NewTestClient()
	api.Hold()
	readings := store.NewMemoryStore()
	updatedAt := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	require.NoError(t, readings.Save("sensorist.DEV0010_temperature", port.Reading{Value: 19.2, UpdatedAt: updatedAt}))

	f := startSensor(t, api, readings)

	reading := f.reading(t)
	require.NotNil(t, reading.Value)
	assert.Equal(t, 19.2, *reading.Value)
	assert.True(t, reading.Restored)
	assert.True(t, reading.Available)
	assert.True(t, updatedAt.Equal(*reading.UpdatedAt))
	assert.Equal(t, "temperature", reading.Kind)

	api.Release()

	assert.Eventually(t, func() bool {
		r := f.reading(t)
		return r.Value != nil && *r.Value == 21.5 && !r.Restored
	}, 3*time.Second, 50*time.Millisecond)

	saved, ok := readings.Load("sensorist.DEV0010_temperature")
	assert.True(t, ok)
	assert.Equal(t, 21.5, saved.Value)
}

func TestSensorActorUnavailableOnRemoteError(t *testing.T) {

	api := sensorist.NewTestClient()
	api.SetDataError(&sensorist.RemoteError{StatusCode: 500, Status: "500 Internal Server Error"})

	f := startSensor(t, api, store.NewMemoryStore())
	availability := "sensorist/sensor/" + f.entity.Component().Id + "/availability"

	assert.Eventually(t, func() bool {
		v, ok := f.recorder.Last(availability)
		return ok && v == "offline"
	}, 3*time.Second, 50*time.Millisecond)

	reading := f.reading(t)
	assert.False(t, reading.Available)
	assert.Nil(t, reading.Value)

	// the actor survives and the next refresh self-corrects
	api.SetDataError(nil)
	f.system.Root.Send(f.sensor, domain.RefreshSensorRequest{})

	assert.Eventually(t, func() bool {
		r := f.reading(t)
		return r.Available && r.Value != nil && *r.Value == 21.5
	}, 3*time.Second, 50*time.Millisecond)

	v, ok := f.recorder.Last(availability)
	assert.True(t, ok)
	assert.Equal(t, "online", v)
}

func TestSensorActorMissingMeasurementIsUnavailable(t *testing.T) {

	api := sensorist.NewTestClient()
	api.ClearValue("1001")

	f := startSensor(t, api, nil)

	assert.Eventually(t, func() bool {
		return api.Calls("1001") == 1
	}, 3*time.Second, 50*time.Millisecond)
	assert.Eventually(t, func() bool {
		v, ok := f.recorder.Last("sensorist/sensor/" + f.entity.Component().Id + "/availability")
		return ok && v == "offline"
	}, 3*time.Second, 50*time.Millisecond)

	assert.False(t, f.reading(t).Available)
}

// failOnceStore panics on the first save, which makes the sensor actor
// restart.
type failOnceStore struct {
	*store.MemoryStore
	failed atomic.Bool
}

func (s *failOnceStore) Save(uniqueID string, reading port.Reading) error {
	if !s.failed.Swap(true) {
		panic("state file gone")
	}
	return s.MemoryStore.Save(uniqueID, reading)
}

func TestSensorActorRestartKeepsPollRate(t *testing.T) {

	api := sensorist.NewTestClient()
	readings := &failOnceStore{MemoryStore: store.NewMemoryStore()}

	startSensorWithInterval(t, api, readings, 300*time.Millisecond)

	// the restarted instance polls right away
	assert.Eventually(t, func() bool {
		return readings.failed.Load() && api.Calls("1001") >= 2
	}, 3*time.Second, 10*time.Millisecond)

	before := api.Calls("1001")
	time.Sleep(1050 * time.Millisecond)
	polls := api.Calls("1001") - before

	// one tick chain: three polls in the window, two chains would give six
	assert.GreaterOrEqual(t, polls, 2)
	assert.LessOrEqual(t, polls, 4)

	_, ok := readings.Load("sensorist.DEV0010_temperature")
	assert.True(t, ok)
}

func TestSensorActorRepublishesState(t *testing.T) {

	api := sensorist.NewTestClient()
	f := startSensor(t, api, store.NewMemoryStore())

	stateTopic := "sensorist/sensor/" + f.entity.Component().Id + "/state"
	availabilityTopic := "sensorist/sensor/" + f.entity.Component().Id + "/availability"
	assert.Eventually(t, func() bool {
		v, ok := f.recorder.Last(availabilityTopic)
		return ok && v == "online"
	}, 3*time.Second, 20*time.Millisecond)

	states := f.recorder.Count(stateTopic)
	availability := f.recorder.Count(availabilityTopic)

	f.system.Root.Send(f.sensor, domain.RepublishStateRequest{})

	assert.Eventually(t, func() bool {
		return f.recorder.Count(stateTopic) > states && f.recorder.Count(availabilityTopic) > availability
	}, 3*time.Second, 20*time.Millisecond)
	v, _ := f.recorder.Last(stateTopic)
	assert.Equal(t, "21.5", v)
	assert.Equal(t, 1, api.Calls("1001"), "republish does not poll")
}
