package metrics

import (
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.SensorValue("a", "temperature", 1)
		m.SensorUnavailable("a", "cannot_connect")
		m.EntitiesDiscovered(3)
		m.APIRequest("list_gateways", nil)
		_ = m.Handler()
	})
	assert.Nil(t, m.Registry())
}

func TestSensorMetrics(t *testing.T) {
	m := New()

	m.SensorValue("sensorist.dev0010_temperature", "temperature", 21.5)
	assert.Equal(t, 21.5, testutil.ToFloat64(m.sensorValue.WithLabelValues("sensorist.dev0010_temperature", "temperature")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.available.WithLabelValues("sensorist.dev0010_temperature")))

	m.SensorUnavailable("sensorist.dev0010_temperature", "remote_error")
	assert.Equal(t, 0.0, testutil.ToFloat64(m.available.WithLabelValues("sensorist.dev0010_temperature")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.pollErrors.WithLabelValues("remote_error")))
}

func TestDiscoveryAndAPIMetrics(t *testing.T) {
	m := New()

	m.EntitiesDiscovered(7)
	m.EntitiesDiscovered(0)
	assert.Equal(t, 7.0, testutil.ToFloat64(m.discovered))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.discoverRuns))

	m.APIRequest("fetch", nil)
	m.APIRequest("fetch", errors.New("boom"))
	m.APIRequest("fetch", errors.New("boom"))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.apiRequests.WithLabelValues("fetch", "ok")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.apiRequests.WithLabelValues("fetch", "error")))
}
