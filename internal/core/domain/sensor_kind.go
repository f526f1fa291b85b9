package domain

import (
	"errors"
	"fmt"
)

var ErrUnknownSensorType = errors.New("unknown sensor type")

// SensorKind is the closed set of measurement channels a Sensorist device
// reports.
type SensorKind int

const (
	SensorKindBattery SensorKind = iota
	SensorKindWireless
	SensorKindTemperature
	SensorKindHumidity

	sensorKindCount
)

// SensorMetadata is the fixed Home Assistant presentation of a SensorKind.
type SensorMetadata struct {
	Code              string
	Name              string
	Icon              string
	DeviceClass       string
	UnitOfMeasurement string
	StateClass        string
	Decimals          uint
}

var sensorKinds = [sensorKindCount]SensorMetadata{
	SensorKindBattery: {
		Code:              "batt",
		Name:              "Battery",
		Icon:              "mdi:battery",
		DeviceClass:       DEVICE_CLASS_VOLTAGE,
		UnitOfMeasurement: UNIT_VOLT,
		StateClass:        STATE_CLASS_MEASUREMENT,
		Decimals:          2,
	},
	SensorKindWireless: {
		Code:              "wireless",
		Name:              "Signal Strength",
		Icon:              "mdi:wifi",
		DeviceClass:       DEVICE_CLASS_POWER_FACTOR,
		UnitOfMeasurement: UNIT_PERCENTAGE,
		StateClass:        STATE_CLASS_MEASUREMENT,
		Decimals:          0,
	},
	SensorKindTemperature: {
		Code:              "temp",
		Name:              "Temperature",
		Icon:              "mdi:thermometer",
		DeviceClass:       DEVICE_CLASS_TEMPERATURE,
		UnitOfMeasurement: UNIT_CELSIUS,
		StateClass:        STATE_CLASS_MEASUREMENT,
		Decimals:          1,
	},
	SensorKindHumidity: {
		Code:              "humi",
		Name:              "Humidity",
		Icon:              "mdi:water-percent",
		DeviceClass:       DEVICE_CLASS_HUMIDITY,
		UnitOfMeasurement: UNIT_PERCENTAGE,
		StateClass:        STATE_CLASS_MEASUREMENT,
		Decimals:          1,
	},
}

// ParseSensorKind resolves the API type.name of a sensor.
func ParseSensorKind(code string) (SensorKind, error) {
	for kind, meta := range sensorKinds {
		if meta.Code == code {
			return SensorKind(kind), nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownSensorType, code)
}

func SensorKinds() []SensorKind {
	kinds := make([]SensorKind, 0, sensorKindCount)
	for kind := SensorKind(0); kind < sensorKindCount; kind++ {
		kinds = append(kinds, kind)
	}
	return kinds
}

func (k SensorKind) Valid() bool {
	return k >= 0 && k < sensorKindCount
}

// Metadata panics on a value outside the declared kinds.
func (k SensorKind) Metadata() SensorMetadata {
	if !k.Valid() {
		panic(fmt.Sprintf("invalid sensor kind %d", int(k)))
	}
	return sensorKinds[k]
}

func (k SensorKind) String() string {
	if !k.Valid() {
		return fmt.Sprintf("SensorKind(%d)", int(k))
	}
	return sensorKinds[k].Code
}
