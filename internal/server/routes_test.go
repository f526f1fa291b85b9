package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/berfenger/sensorist2mqtt/internal/core/domain"
	"github.com/berfenger/sensorist2mqtt/internal/metrics"
	"github.com/berfenger/sensorist2mqtt/pkg/sensorist"

	"github.com/asynkron/protoactor-go/actor"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeMaster struct {
	healthy  bool
	entities []domain.EntityRef
}

func (f *fakeMaster) Receive(ctx actor.Context) {
	switch ctx.Message().(type) {
	case domain.ActorHealthRequest:
		ctx.Respond(domain.ActorHealthResponse{Id: domain.ACTOR_ID_MASTER, Healthy: f.healthy})
	case domain.ListEntitiesRequest:
		ctx.Respond(domain.ListEntitiesResponse{Entities: f.entities})
	}
}

type fakeSensor struct {
	reading domain.SensorReading
}

func (f *fakeSensor) Receive(ctx actor.Context) {
	if _, ok := ctx.Message().(domain.GetSensorReadingRequest); ok {
		ctx.Respond(domain.GetSensorReadingResponse{Reading: f.reading})
	}
}

func newTestServer(t *testing.T, master actor.Actor) (*Server, *actor.ActorSystem) {
	as := actor.NewActorSystem()
	t.Cleanup(as.Shutdown)
	pid := as.Root.Spawn(actor.PropsFromProducer(func() actor.Actor { return master }))
	return &Server{
		rootContext: as.Root,
		masterActor: pid,
		metrics:     metrics.New(),
	}, as
}

func get(t *testing.T, s *Server, path string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	rec := httptest.NewRecorder()
	s.RegisterRoutes().ServeHTTP(rec, req)
	return rec
}

func TestHealthCheckHandler(t *testing.T) {
	s, _ := newTestServer(t, &fakeMaster{healthy: true})
	rec := get(t, s, "/healthcheck")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "health_check: OK", rec.Body.String())

	s, _ = newTestServer(t, &fakeMaster{healthy: false})
	rec = get(t, s, "/healthcheck")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "health_check: FAIL", rec.Body.String())
}

func TestEntitiesHandler(t *testing.T) {
	tree := sensorist.SampleGatewayTree()
	gw := domain.NewGatewayEntity(tree.Gateways[0])
	dev := domain.NewDeviceEntity(tree.Gateways[0].Devices[0], gw)
	sensor, err := domain.NewSensorEntity(tree.Gateways[0].Devices[0].Sensors[0], dev, gw)
	require.NoError(t, err)

	as := actor.NewActorSystem()
	t.Cleanup(as.Shutdown)
	value := 21.5
	sensorPID := as.Root.Spawn(actor.PropsFromProducer(func() actor.Actor {
		return &fakeSensor{reading: domain.SensorReading{UniqueId: sensor.UniqueID(), Value: &value, Available: true}}
	}))
	master := &fakeMaster{healthy: true, entities: []domain.EntityRef{
		{Entity: gw},
		{Entity: sensor, PID: sensorPID},
	}}
	masterPID := as.Root.Spawn(actor.PropsFromProducer(func() actor.Actor { return master }))
	s := &Server{rootContext: as.Root, masterActor: masterPID, metrics: metrics.New()}

	rec := get(t, s, "/entities")
	require.Equal(t, http.StatusOK, rec.Code)

	var views []entityView
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &views))
	require.Len(t, views, 2)

	assert.Equal(t, "GW0001", views[0].UniqueId)
	assert.Equal(t, "gateway", views[0].Type)
	assert.Nil(t, views[0].Reading)

	assert.Equal(t, "sensorist.DEV0010_temperature", views[1].UniqueId)
	assert.Equal(t, int64(1001), views[1].ApiId)
	assert.Equal(t, "sensor", views[1].Type)
	require.NotNil(t, views[1].Reading)
	assert.Equal(t, 21.5, *views[1].Reading.Value)
	assert.True(t, views[1].Reading.Available)
}

func TestMetricsHandler(t *testing.T) {
	s, _ := newTestServer(t, &fakeMaster{healthy: true})
	s.metrics.SensorValue("sensorist.DEV0010_temperature", "temperature", 21.5)

	rec := get(t, s, "/metrics")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), "sensorist2mqtt_sensor_value"))
}
