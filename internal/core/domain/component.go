package domain

const (
	SENSOR_ID_BRIDGE_STATE     = "bridge"
	SENSOR_ID_FIRMWARE         = "firmware"
	STATE_CLASS_MEASUREMENT    = "measurement"
	DEVICE_CLASS_VOLTAGE       = "voltage"
	DEVICE_CLASS_POWER_FACTOR  = "power_factor"
	DEVICE_CLASS_TEMPERATURE   = "temperature"
	DEVICE_CLASS_HUMIDITY      = "humidity"
	DEVICE_CLASS_CONNECTIVITY  = "connectivity"
	ENTITY_CATEGORY_DIAGNOSTIC = "diagnostic"
	SENSOR_TYPE_SENSOR         = "sensor"
	SENSOR_TYPE_BINARY         = "binary_sensor"
	UNIT_VOLT                  = "V"
	UNIT_PERCENTAGE            = "%"
	UNIT_CELSIUS               = "°C"
	DEVICE_MANUFACTURER        = "Sensorist"
	DEVICE_CONFIGURATION_URL   = "https://app.sensorist.com"
)

type Device struct {
	Id               string
	Name             string
	Version          string
	Model            string
	Manufacturer     string
	ViaDevice        string
	ConfigurationURL string
}

type GenericSensor struct {
	Device            Device
	Id                string
	SensorType        string
	Name              string
	UniqueId          string
	UnitOfMeasurement string
	StateClass        string // measurement
	DeviceClass       string // voltage, power_factor, temperature, humidity
	EntityCategory    string // diagnostic, nil
	EnabledByDefault  *bool
	Icon              string
	// PerEntityAvailability adds an availability topic owned by the entity
	// on top of the bridge one.
	PerEntityAvailability bool
}
