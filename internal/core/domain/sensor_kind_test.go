package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSensorKindMetadata(t *testing.T) {

	require := require.New(t)

	expected := map[string]struct {
		unit        string
		deviceClass string
		icon        string
	}{
		"batt":     {UNIT_VOLT, DEVICE_CLASS_VOLTAGE, "mdi:battery"},
		"wireless": {UNIT_PERCENTAGE, DEVICE_CLASS_POWER_FACTOR, "mdi:wifi"},
		"temp":     {UNIT_CELSIUS, DEVICE_CLASS_TEMPERATURE, "mdi:thermometer"},
		"humi":     {UNIT_PERCENTAGE, DEVICE_CLASS_HUMIDITY, "mdi:water-percent"},
	}

	seen := map[[3]string]bool{}
	for code, exp := range expected {
		kind, err := ParseSensorKind(code)
		require.NoError(err, code)
		meta := kind.Metadata()
		assert.Equal(t, code, meta.Code)
		assert.Equal(t, exp.unit, meta.UnitOfMeasurement, code)
		assert.Equal(t, exp.deviceClass, meta.DeviceClass, code)
		assert.Equal(t, exp.icon, meta.Icon, code)
		assert.Equal(t, STATE_CLASS_MEASUREMENT, meta.StateClass, code)

		triple := [3]string{meta.UnitOfMeasurement, meta.DeviceClass, meta.Icon}
		assert.False(t, seen[triple], "triple of %s must be unique", code)
		seen[triple] = true
	}
}

func TestEveryKindHasMetadata(t *testing.T) {

	kinds := SensorKinds()
	assert.Len(t, kinds, int(sensorKindCount))
	for _, kind := range kinds {
		meta := kind.Metadata()
		assert.NotEmpty(t, meta.Code, "kind %d", kind)
		assert.NotEmpty(t, meta.Name, "kind %d", kind)
		assert.NotEmpty(t, meta.UnitOfMeasurement, "kind %d", kind)
		parsed, err := ParseSensorKind(meta.Code)
		assert.NoError(t, err)
		assert.Equal(t, kind, parsed)
	}
}

func TestUnknownSensorKind(t *testing.T) {

	_, err := ParseSensorKind("co2")
	assert.ErrorIs(t, err, ErrUnknownSensorType)

	_, err = ParseSensorKind("")
	assert.ErrorIs(t, err, ErrUnknownSensorType)

	assert.False(t, SensorKind(42).Valid())
	assert.Panics(t, func() { SensorKind(42).Metadata() })
}
