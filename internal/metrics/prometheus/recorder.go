// Package prometheus exposes access layer metrics as Prometheus collectors.
package prometheus

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/LavishGent/catalogfetch/internal/config"
	"github.com/LavishGent/catalogfetch/internal/types"
)

const defaultNamespace = "catalogfetch"

// Recorder implements types.MetricsRecorder on a private registry so two
// clients in one process never collide on registration.
type Recorder struct {
	registry *prometheus.Registry

	lookups          *prometheus.CounterVec
	lookupDuration   *prometheus.HistogramVec
	sets             *prometheus.CounterVec
	setBytes         *prometheus.HistogramVec
	shared           *prometheus.CounterVec
	upstreamRequests *prometheus.CounterVec
	upstreamDuration *prometheus.HistogramVec
	rateLimited      *prometheus.CounterVec
	queueDepth       prometheus.Gauge
	errors           *prometheus.CounterVec
	circuitChanges   *prometheus.CounterVec
}

func NewRecorder(cfg config.PrometheusConfig) *Recorder {
	ns := cfg.Namespace
	if ns == "" {
		ns = defaultNamespace
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	return &Recorder{
		registry: reg,
		lookups: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: ns,
			Subsystem: "cache",
			Name:      "lookups_total",
			Help:      "Cache lookups by tier, segment and result.",
		}, []string{"tier", "segment", "result"}),
		lookupDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: ns,
			Subsystem: "cache",
			Name:      "lookup_duration_seconds",
			Help:      "Cache lookup latency.",
			Buckets:   []float64{.00001, .0001, .001, .005, .01, .05, .1},
		}, []string{"tier"}),
		sets: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: ns,
			Subsystem: "cache",
			Name:      "sets_total",
			Help:      "Entries written by tier and segment.",
		}, []string{"tier", "segment"}),
		setBytes: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: ns,
			Subsystem: "cache",
			Name:      "set_bytes",
			Help:      "Size of stored payloads.",
			Buckets:   prometheus.ExponentialBuckets(256, 4, 8),
		}, []string{"tier"}),
		shared: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: ns,
			Subsystem: "cache",
			Name:      "shared_loads_total",
			Help:      "Callers served by another caller's in-flight load.",
		}, []string{"tier", "segment"}),
		upstreamRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: ns,
			Subsystem: "upstream",
			Name:      "requests_total",
			Help:      "Upstream HTTP exchanges by endpoint and status code.",
		}, []string{"endpoint", "code"}),
		upstreamDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: ns,
			Subsystem: "upstream",
			Name:      "request_duration_seconds",
			Help:      "Upstream HTTP latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"endpoint"}),
		rateLimited: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: ns,
			Subsystem: "upstream",
			Name:      "rate_limited_total",
			Help:      "429 responses received from upstream.",
		}, []string{"endpoint"}),
		queueDepth: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: ns,
			Subsystem: "queue",
			Name:      "depth",
			Help:      "Jobs waiting for the upstream worker.",
		}),
		errors: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: ns,
			Name:      "errors_total",
			Help:      "Absorbed internal errors by component and operation.",
		}, []string{"component", "operation"}),
		circuitChanges: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: ns,
			Subsystem: "upstream",
			Name:      "circuit_transitions_total",
			Help:      "Circuit breaker state transitions.",
		}, []string{"to"}),
	}
}

// Registry returns the registry backing this recorder.
func (r *Recorder) Registry() *prometheus.Registry {
	return r.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{Registry: r.registry})
}

func (r *Recorder) RecordHit(tier, segment string, latency time.Duration) {
	r.lookups.WithLabelValues(tier, segment, "hit").Inc()
	r.lookupDuration.WithLabelValues(tier).Observe(latency.Seconds())
}

func (r *Recorder) RecordMiss(tier, segment string, latency time.Duration) {
	r.lookups.WithLabelValues(tier, segment, "miss").Inc()
	r.lookupDuration.WithLabelValues(tier).Observe(latency.Seconds())
}

func (r *Recorder) RecordSet(tier, segment string, size int) {
	r.sets.WithLabelValues(tier, segment).Inc()
	r.setBytes.WithLabelValues(tier).Observe(float64(size))
}

func (r *Recorder) RecordShared(tier, segment string) {
	r.shared.WithLabelValues(tier, segment).Inc()
}

func (r *Recorder) RecordUpstream(endpoint string, status int, latency time.Duration) {
	endpoint = endpointLabel(endpoint)
	r.upstreamRequests.WithLabelValues(endpoint, strconv.Itoa(status)).Inc()
	r.upstreamDuration.WithLabelValues(endpoint).Observe(latency.Seconds())
}

func (r *Recorder) RecordRateLimited(endpoint string, attempt int) {
	r.rateLimited.WithLabelValues(endpointLabel(endpoint)).Inc()
}

func (r *Recorder) RecordQueueDepth(depth int) {
	r.queueDepth.Set(float64(depth))
}

func (r *Recorder) RecordError(component, operation string, err error) {
	r.errors.WithLabelValues(component, operation).Inc()
}

func (r *Recorder) RecordCircuitBreakerStateChange(from, to string) {
	r.circuitChanges.WithLabelValues(to).Inc()
}

// endpointLabel replaces numeric path segments with ":id" to bound label
// cardinality, e.g. /anime/5114/characters becomes /anime/:id/characters.
func endpointLabel(endpoint string) string {
	parts := strings.Split(endpoint, "/")
	for i, p := range parts {
		if p == "" {
			continue
		}
		if _, err := strconv.ParseUint(p, 10, 64); err == nil {
			parts[i] = ":id"
		}
	}
	return strings.Join(parts, "/")
}

var _ types.MetricsRecorder = (*Recorder)(nil)
