package domain

import (
	"encoding/json"
	"time"

	"github.com/berfenger/sensorist2mqtt/pkg/sensorist"

	"github.com/asynkron/protoactor-go/actor"
)

const (
	ACTOR_ID_MASTER      = "master"
	ACTOR_ID_SENSORIST   = "sensorist"
	ACTOR_ID_MQTT        = "mqtt"
	ACTOR_ID_INTEGRATION = "integration"
	ACTOR_ID_SENSOR      = "sensor"
)

type ActorRef actor.PID

type ActorRequestMixIn struct {
	ReplyToRef *ActorRef
}

type ActorRequest interface {
	ReplyTo() *ActorRef
}

func (r ActorRequestMixIn) ReplyTo() *ActorRef {
	return r.ReplyToRef
}

type ActorResponseMixIn struct {
	ResponseError error
}

func (r ActorResponseMixIn) GetResponseError() error {
	return r.ResponseError
}

func (r ActorResponseMixIn) HasResponseError() bool {
	return r.ResponseError != nil
}

type ActorResponse interface {
	GetResponseError() error
	HasResponseError() bool
}

// Sensorist API

type CredentialTestRequest struct {
	ActorRequestMixIn
}

type CredentialTestResponse struct {
	ActorResponseMixIn
	Body json.RawMessage
}

type ListGatewaysRequest struct {
	ActorRequestMixIn
}

type ListGatewaysResponse struct {
	ActorResponseMixIn
	Tree *sensorist.GatewayTree
}

type FetchSensorValueRequest struct {
	ActorRequestMixIn
	Sensor *SensorEntity
}

type FetchSensorValueResponse struct {
	ActorResponseMixIn
	UniqueId string
	Value    float64
}

// Integration

type DiscoveryTick struct{}

type DiscoverRequest struct {
	ActorRequestMixIn
}

type DiscoverResponse struct {
	ActorResponseMixIn
	Entities []Entity
}

type EntityRef struct {
	Entity Entity
	PID    *actor.PID
}

type ListEntitiesRequest struct {
	ActorRequestMixIn
}

type ListEntitiesResponse struct {
	ActorResponseMixIn
	Entities []EntityRef
}

// Sensor

type SensorReading struct {
	UniqueId  string     `json:"unique_id"`
	Name      string     `json:"name"`
	Kind      string     `json:"kind"`
	Value     *float64   `json:"value"`
	Available bool       `json:"available"`
	Restored  bool       `json:"restored"`
	UpdatedAt *time.Time `json:"updated_at,omitempty"`
}

type GetSensorReadingRequest struct {
	ActorRequestMixIn
}

type GetSensorReadingResponse struct {
	ActorResponseMixIn
	Reading SensorReading
}

type RefreshSensorRequest struct {
	ActorRequestMixIn
}

// RepublishStateRequest asks a sensor to publish its current reading again.
type RepublishStateRequest struct {
}

// MQTT

type PublishSensorUpdateRequest struct {
	ActorRequestMixIn
	Retain bool
	Event  SensorUpdateEvent
}

type PublishDiscoveryRequest struct {
	ActorRequestMixIn
	Sensors []GenericSensor
}

type PublishDiscoveryResponse struct {
	ActorResponseMixIn
}

// Health

type ActorHealthRequest struct {
	ActorRequestMixIn
}

type ActorHealthResponse struct {
	ActorResponseMixIn
	Id      string
	Healthy bool
	State   string
}
