package domain

import "fmt"

type SensorUpdateEventMixIn struct {
	Id string
}

type SensorUpdateEvent interface {
	SensorUpdateEvent() string
	SensorId() string
}

func (e SensorUpdateEventMixIn) SensorUpdateEvent() string {
	return fmt.Sprintf("%T", e)
}

func (e SensorUpdateEventMixIn) SensorId() string {
	return e.Id
}

type FloatSensorUpdateEvent struct {
	SensorUpdateEventMixIn
	Value    float64
	Decimals uint
}

type TextSensorUpdateEvent struct {
	SensorUpdateEventMixIn
	Value string
}

type BridgeStateUpdateEvent struct {
	SensorUpdateEventMixIn
	Value bool
}

// SensorAvailabilityUpdateEvent marks a single entity online or offline.
type SensorAvailabilityUpdateEvent struct {
	SensorUpdateEventMixIn
	Available bool
}

// BrokerConnectedEvent is published every time the MQTT connection is
// (re)established. Owners of published state answer it by publishing again.
type BrokerConnectedEvent struct {
}

// ensure interface compliance
var (
	_ SensorUpdateEvent = FloatSensorUpdateEvent{}
	_ SensorUpdateEvent = TextSensorUpdateEvent{}
	_ SensorUpdateEvent = BridgeStateUpdateEvent{}
	_ SensorUpdateEvent = SensorAvailabilityUpdateEvent{}
)
