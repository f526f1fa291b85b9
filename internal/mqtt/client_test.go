package mqtt

import (
	"encoding/json"
	"testing"

	"github.com/berfenger/sensorist2mqtt/internal/core/domain"
	"github.com/berfenger/sensorist2mqtt/internal/util"
	"github.com/berfenger/sensorist2mqtt/pkg/sensorist"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testClient() *MQTTClient {
	cfg := util.LoadTestConfig()
	return CreateMQTTClient(&cfg, OptsFromConfig(&cfg), nil, nil)
}

func TestTopics(t *testing.T) {

	assert := assert.New(t)

	c := testClient()
	assert.Equal("sensorist/bridge/state", c.BridgeStateTopic())
	assert.Equal("sensorist/sensor/my_sensor/state", c.SensorStateTopic("my_sensor"))
	assert.Equal("sensorist/sensor/my_sensor/availability", c.SensorAvailabilityTopic("my_sensor"))
	assert.Equal("sensorist/binary_sensor/bridge/state", c.BinarySensorStateTopic("bridge"))
}

func TestWillTopic(t *testing.T) {
	cfg := util.LoadTestConfig()
	opts := OptsFromConfig(&cfg)

	assert.True(t, opts.WillEnabled)
	assert.True(t, opts.WillRetained)
	assert.Equal(t, "sensorist/bridge/state", opts.WillTopic)
	assert.Equal(t, []byte(MQTT_PAYLOAD_OFFLINE), opts.WillPayload)
}

func sampleSensor(t *testing.T) *domain.SensorEntity {
	tree := sensorist.SampleGatewayTree()
	gw := domain.NewGatewayEntity(tree.Gateways[0])
	dev := domain.NewDeviceEntity(tree.Gateways[0].Devices[0], gw)
	s, err := domain.NewSensorEntity(tree.Gateways[0].Devices[0].Sensors[0], dev, gw)
	require.NoError(t, err)
	return s
}

func TestSensorDiscoveryMessage(t *testing.T) {

	assert := assert.New(t)

	c := testClient()
	sensor := sampleSensor(t)
	component := sensor.Component()

	msg := GenericSensorToHADiscoveryMessage(c, component)

	assert.Equal("homeassistant/sensor/dev0010/"+component.Id+"/config", c.HADiscoverySensorTopic(component))
	assert.Equal(c.SensorStateTopic(component.Id), msg.StateTopic)
	assert.Equal(domain.UNIT_CELSIUS, msg.UnitOfMeasurement)
	assert.Equal(domain.DEVICE_CLASS_TEMPERATURE, msg.DeviceClass)
	assert.Equal(domain.STATE_CLASS_MEASUREMENT, msg.StateClass)
	assert.Equal("mdi:thermometer", msg.Icon)
	assert.Equal("all", msg.AvMode)
	assert.Empty(msg.AvTopic)
	assert.Equal([]HADiscoveryAvailability{
		{Topic: "sensorist/bridge/state"},
		{Topic: c.SensorAvailabilityTopic(component.Id)},
	}, msg.Availability)
	assert.Equal("gw0001", msg.Device.ViaDevice)
	assert.Equal(domain.DEVICE_MANUFACTURER, msg.Device.Manufacturer)
	assert.Equal(domain.DEVICE_CONFIGURATION_URL, msg.Device.ConfigurationURL)

	payload, err := json.Marshal(msg)
	assert.NoError(err)
	assert.Contains(string(payload), `"availability_mode":"all"`)
	assert.Contains(string(payload), `"via_device":"gw0001"`)

	// plain sensors carry no binary payloads
	assert.Empty(msg.PayloadOn)
	assert.Empty(msg.PayloadOff)
	assert.NotContains(string(payload), `"payload_on"`)
}

func TestBridgeDiscoveryMessage(t *testing.T) {

	assert := assert.New(t)

	c := testClient()
	bridge := domain.BridgeSensors(domain.BridgeDevice("sensorist"))
	assert.Len(bridge, 1)

	msg := GenericSensorToHADiscoveryMessage(c, bridge[0])
	assert.Equal("sensorist/bridge/state", msg.StateTopic)
	assert.Equal("sensorist/bridge/state", msg.AvTopic)
	assert.Nil(msg.Availability)
	assert.Equal(MQTT_PAYLOAD_ONLINE, msg.PayloadOn)
	assert.Equal(MQTT_PAYLOAD_OFFLINE, msg.PayloadOff)
	assert.Contains(c.HADiscoverySensorTopic(bridge[0]), "homeassistant/binary_sensor/")
}
