package domain

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/berfenger/sensorist2mqtt/internal/core/port"
	"github.com/berfenger/sensorist2mqtt/pkg/sensorist"
)

// Entity is anything that gets registered in Home Assistant.
type Entity interface {
	APIID() sensorist.ID
	UniqueID() string
	Name() string
	Component() GenericSensor
}

// GatewayEntity is a view over one gateway node of a discovery pass.
type GatewayEntity struct {
	data sensorist.Gateway
}

func NewGatewayEntity(data sensorist.Gateway) *GatewayEntity {
	return &GatewayEntity{data: data}
}

func (g *GatewayEntity) APIID() sensorist.ID {
	return g.data.ID
}

func (g *GatewayEntity) Name() string {
	return fmt.Sprintf("Sensorist Gateway %s", g.data.Title)
}

// UniqueID is the gateway serial number.
func (g *GatewayEntity) UniqueID() string {
	return g.data.Serial
}

func (g *GatewayEntity) FirmwareVersion() string {
	return g.data.Firmware
}

func (g *GatewayEntity) Model() string {
	return g.data.Type.Name
}

func (g *GatewayEntity) DeviceInfo() Device {
	return Device{
		Id:               ObjectID(g.UniqueID()),
		Name:             g.Name(),
		Version:          g.FirmwareVersion(),
		Model:            fmt.Sprintf("Gateway %s", g.Model()),
		Manufacturer:     DEVICE_MANUFACTURER,
		ConfigurationURL: DEVICE_CONFIGURATION_URL,
	}
}

func (g *GatewayEntity) Component() GenericSensor {
	return firmwareComponent(g.DeviceInfo(), g.UniqueID())
}

// DeviceEntity is a view over one device node. The gateway reference is
// only used to report the via_device relationship.
type DeviceEntity struct {
	data    sensorist.Device
	gateway *GatewayEntity
}

func NewDeviceEntity(data sensorist.Device, gateway *GatewayEntity) *DeviceEntity {
	return &DeviceEntity{data: data, gateway: gateway}
}

func (d *DeviceEntity) APIID() sensorist.ID {
	return d.data.ID
}

func (d *DeviceEntity) Name() string {
	return fmt.Sprintf("Sensor %s", d.data.Title)
}

func (d *DeviceEntity) UniqueID() string {
	return d.data.Serial
}

func (d *DeviceEntity) FirmwareVersion() string {
	return d.data.Firmware
}

func (d *DeviceEntity) Model() string {
	return d.data.Type.Name
}

func (d *DeviceEntity) Gateway() *GatewayEntity {
	return d.gateway
}

func (d *DeviceEntity) DeviceInfo() Device {
	dev := Device{
		Id:               ObjectID(d.UniqueID()),
		Name:             d.Name(),
		Version:          d.FirmwareVersion(),
		Model:            fmt.Sprintf("Sensor %s", d.Model()),
		Manufacturer:     DEVICE_MANUFACTURER,
		ConfigurationURL: DEVICE_CONFIGURATION_URL,
	}
	if d.gateway != nil {
		dev.ViaDevice = d.gateway.DeviceInfo().Id
	}
	return dev
}

func (d *DeviceEntity) Component() GenericSensor {
	return firmwareComponent(d.DeviceInfo(), d.UniqueID())
}

// SensorEntity is one measurement channel of a device.
type SensorEntity struct {
	data    sensorist.Sensor
	kind    SensorKind
	device  *DeviceEntity
	gateway *GatewayEntity
}

func NewSensorEntity(data sensorist.Sensor, device *DeviceEntity, gateway *GatewayEntity) (*SensorEntity, error) {
	kind, err := ParseSensorKind(data.Type.Name)
	if err != nil {
		return nil, fmt.Errorf("sensor %d (%s): %w", data.ID, data.Title, err)
	}
	return &SensorEntity{
		data:    data,
		kind:    kind,
		device:  device,
		gateway: gateway,
	}, nil
}

func (s *SensorEntity) APIID() sensorist.ID {
	return s.data.ID
}

func (s *SensorEntity) Kind() SensorKind {
	return s.kind
}

func (s *SensorEntity) Metadata() SensorMetadata {
	return s.kind.Metadata()
}

func (s *SensorEntity) Name() string {
	return s.Metadata().Name
}

func (s *SensorEntity) Title() string {
	return s.data.Title
}

func (s *SensorEntity) UniqueID() string {
	return fmt.Sprintf("sensorist.%s_%s", s.device.UniqueID(), strings.ToLower(s.data.Title))
}

func (s *SensorEntity) Device() *DeviceEntity {
	return s.device
}

func (s *SensorEntity) Gateway() *GatewayEntity {
	return s.gateway
}

func (s *SensorEntity) Component() GenericSensor {
	meta := s.Metadata()
	return GenericSensor{
		Device:                s.device.DeviceInfo(),
		Id:                    ObjectID(s.UniqueID()),
		SensorType:            SENSOR_TYPE_SENSOR,
		Name:                  meta.Name,
		UniqueId:              s.UniqueID(),
		UnitOfMeasurement:     meta.UnitOfMeasurement,
		StateClass:            meta.StateClass,
		DeviceClass:           meta.DeviceClass,
		Icon:                  meta.Icon,
		PerEntityAvailability: true,
	}
}

// FetchValue asks the API for the latest measurement of this sensor.
func (s *SensorEntity) FetchValue(ctx context.Context, api port.MeasurementFetcher) (float64, error) {
	// measurements are keyed by the string form of the id
	id := s.APIID().String()
	resp, err := api.GetSensorData(ctx, id)
	if err != nil {
		return 0, err
	}
	return resp.Value(id)
}

var objectIDInvalid = regexp.MustCompile("[^a-z0-9_]+")

// ObjectID turns an identifier into something safe for an MQTT topic level.
func ObjectID(id string) string {
	return objectIDInvalid.ReplaceAllString(strings.ToLower(id), "_")
}

func firmwareComponent(dev Device, uniqueID string) GenericSensor {
	return GenericSensor{
		Device:         dev,
		Id:             ObjectID(fmt.Sprintf("%s_%s", uniqueID, SENSOR_ID_FIRMWARE)),
		SensorType:     SENSOR_TYPE_SENSOR,
		Name:           "Firmware",
		UniqueId:       fmt.Sprintf("sensorist.%s_%s", uniqueID, SENSOR_ID_FIRMWARE),
		EntityCategory: ENTITY_CATEGORY_DIAGNOSTIC,
		Icon:           "mdi:chip",
	}
}

// ensure interface compliance
var (
	_ Entity = (*GatewayEntity)(nil)
	_ Entity = (*DeviceEntity)(nil)
	_ Entity = (*SensorEntity)(nil)
)
