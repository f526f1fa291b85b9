package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "sensorist2mqtt"

// Metrics is safe to use through a nil pointer, in which case every call is a no-op.
type Metrics struct {
	registry     *prometheus.Registry
	sensorValue  *prometheus.GaugeVec
	available    *prometheus.GaugeVec
	pollErrors   *prometheus.CounterVec
	discovered   prometheus.Counter
	apiRequests  *prometheus.CounterVec
	discoverRuns prometheus.Counter
}

func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		sensorValue: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "sensor_value",
			Help:      "Last value reported by a Sensorist sensor.",
		}, []string{"unique_id", "kind"}),
		available: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "sensor_available",
			Help:      "Whether the last refresh of a sensor succeeded (1) or not (0).",
		}, []string{"unique_id"}),
		pollErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sensor_poll_errors_total",
			Help:      "Failed sensor refreshes by error class.",
		}, []string{"reason"}),
		discovered: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "discovered_entities_total",
			Help:      "Entities registered by discovery passes.",
		}),
		apiRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "api_requests_total",
			Help:      "Requests sent to the Sensorist API by operation and outcome.",
		}, []string{"operation", "outcome"}),
		discoverRuns: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "discovery_runs_total",
			Help:      "Discovery passes started.",
		}),
	}
	m.registry.MustRegister(
		m.sensorValue,
		m.available,
		m.pollErrors,
		m.discovered,
		m.apiRequests,
		m.discoverRuns,
		prometheus.NewGoCollector(),
		prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}),
	)
	return m
}

func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

func (m *Metrics) SensorValue(uniqueID, kind string, value float64) {
	if m == nil {
		return
	}
	m.sensorValue.WithLabelValues(uniqueID, kind).Set(value)
	m.available.WithLabelValues(uniqueID).Set(1)
}

func (m *Metrics) SensorUnavailable(uniqueID, reason string) {
	if m == nil {
		return
	}
	m.available.WithLabelValues(uniqueID).Set(0)
	m.pollErrors.WithLabelValues(reason).Inc()
}

func (m *Metrics) EntitiesDiscovered(n int) {
	if m == nil {
		return
	}
	m.discoverRuns.Inc()
	m.discovered.Add(float64(n))
}

func (m *Metrics) APIRequest(operation string, err error) {
	if m == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	m.apiRequests.WithLabelValues(operation, outcome).Inc()
}
