package prometheus

import (
	"fmt"
	"strconv"
	"time"

	"github.com/turtacn/ChargeMatch/pkg/errors"
)

// AppMetrics holds all application metrics.
type AppMetrics struct {
	// HTTP Layer
	HTTPRequestsTotal   CounterVec
	HTTPRequestDuration HistogramVec
	HTTPActiveRequests  GaugeVec

	// gRPC Layer
	GRPCRequestsTotal   CounterVec
	GRPCRequestDuration HistogramVec

	// Charge Layer
	ChargeRequestsTotal CounterVec
	ChargeDuration      HistogramVec
	ChargeAtoms         HistogramVec
	ChargeFailures      CounterVec

	// Repository Layer
	RepositoryKeys   GaugeVec
	CacheHitsTotal   CounterVec
	CacheMissesTotal CounterVec

	// Job Layer
	JobsTotal        CounterVec
	JobDuration      HistogramVec
	JobRetries       CounterVec
	JobsDeadLettered CounterVec
	WorkerActive     GaugeVec

	// System Health
	HealthCheckStatus GaugeVec
}

// Default Buckets
var (
	DefaultHTTPDurationBuckets   = []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10}
	DefaultChargeDurationBuckets = []float64{.001, .005, .01, .05, .1, .5, 1, 5, 15, 60}
	DefaultAtomCountBuckets      = []float64{5, 10, 25, 50, 100, 250, 500, 1000}
)

// NewAppMetrics registers all metrics and returns AppMetrics struct.
func NewAppMetrics(collector MetricsCollector) *AppMetrics {
	m := &AppMetrics{}

	// HTTP
	m.HTTPRequestsTotal = collector.RegisterCounter("http_requests_total", "Total HTTP requests", "method", "path", "status_code")
	m.HTTPRequestDuration = collector.RegisterHistogram("http_request_duration_seconds", "HTTP request duration", DefaultHTTPDurationBuckets, "method", "path")
	m.HTTPActiveRequests = collector.RegisterGauge("http_active_requests", "Active HTTP requests", "method", "path")

	// gRPC
	m.GRPCRequestsTotal = collector.RegisterCounter("grpc_requests_total", "Total gRPC requests", "service", "method", "code")
	m.GRPCRequestDuration = collector.RegisterHistogram("grpc_request_duration_seconds", "gRPC request duration", DefaultHTTPDurationBuckets, "service", "method")

	// Charge
	m.ChargeRequestsTotal = collector.RegisterCounter("charge_requests_total", "Charge assignment runs", "variant", "status")
	m.ChargeDuration = collector.RegisterHistogram("charge_duration_seconds", "Charge assignment duration", DefaultChargeDurationBuckets, "variant")
	m.ChargeAtoms = collector.RegisterHistogram("charge_atoms", "Atoms per charged molecule", DefaultAtomCountBuckets, "variant")
	m.ChargeFailures = collector.RegisterCounter("charge_failures_total", "Failed charge runs by error code", "variant", "error_code")

	// Repository
	m.RepositoryKeys = collector.RegisterGauge("repository_keys", "Canonical keys loaded per charge set and shell", "kind", "shell")
	m.CacheHitsTotal = collector.RegisterCounter("cache_hits_total", "Cache hits", "cache")
	m.CacheMissesTotal = collector.RegisterCounter("cache_misses_total", "Cache misses", "cache")

	// Jobs
	m.JobsTotal = collector.RegisterCounter("jobs_total", "Charge jobs processed", "status")
	m.JobDuration = collector.RegisterHistogram("job_duration_seconds", "Charge job processing duration", DefaultChargeDurationBuckets, "status")
	m.JobRetries = collector.RegisterCounter("job_retries_total", "Charge job retries")
	m.JobsDeadLettered = collector.RegisterCounter("jobs_dead_lettered_total", "Charge jobs sent to the dead letter topic")
	m.WorkerActive = collector.RegisterGauge("worker_active", "Charge jobs currently running")

	// System Health
	m.HealthCheckStatus = collector.RegisterGauge("health_check_status", "Health check status (1=up, 0=down)", "component")

	return m
}

// ─────────────────────────────────────────────────────────────────────────────
// Recorders
// ─────────────────────────────────────────────────────────────────────────────

// RecordCharge records a finished charge run.  It satisfies charge.Recorder.
func (m *AppMetrics) RecordCharge(variant string, atoms int, duration time.Duration, err error) {
	status := "success"
	if err != nil {
		status = "failure"
		m.ChargeFailures.WithLabelValues(variant, errors.GetCode(err).String()).Inc()
	}
	m.ChargeRequestsTotal.WithLabelValues(variant, status).Inc()
	m.ChargeDuration.WithLabelValues(variant).Observe(duration.Seconds())
	if atoms > 0 {
		m.ChargeAtoms.WithLabelValues(variant).Observe(float64(atoms))
	}
}

func (m *AppMetrics) RecordHTTPRequest(method, path string, statusCode int, duration time.Duration) {
	m.HTTPRequestsTotal.WithLabelValues(method, path, fmt.Sprintf("%d", statusCode)).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

func (m *AppMetrics) RecordGRPCRequest(service, method, code string, duration time.Duration) {
	m.GRPCRequestsTotal.WithLabelValues(service, method, code).Inc()
	m.GRPCRequestDuration.WithLabelValues(service, method).Observe(duration.Seconds())
}

func (m *AppMetrics) RecordCacheAccess(cache string, hit bool) {
	if hit {
		m.CacheHitsTotal.WithLabelValues(cache).Inc()
	} else {
		m.CacheMissesTotal.WithLabelValues(cache).Inc()
	}
}

// RecordJob records one processed job.  status is "success", "retry" or
// "dead_letter".
func (m *AppMetrics) RecordJob(status string, duration time.Duration) {
	m.JobsTotal.WithLabelValues(status).Inc()
	m.JobDuration.WithLabelValues(status).Observe(duration.Seconds())
	switch status {
	case "retry":
		m.JobRetries.WithLabelValues().Inc()
	case "dead_letter":
		m.JobsDeadLettered.WithLabelValues().Inc()
	}
}

// TrackActiveJob marks a job as running until the returned func is called.
func (m *AppMetrics) TrackActiveJob() func() {
	g := m.WorkerActive.WithLabelValues()
	g.Inc()
	return g.Dec
}

func (m *AppMetrics) SetRepositoryKeys(kind string, shell, keys int) {
	m.RepositoryKeys.WithLabelValues(kind, strconv.Itoa(shell)).Set(float64(keys))
}

func (m *AppMetrics) SetHealth(component string, up bool) {
	v := 0.0
	if up {
		v = 1
	}
	m.HealthCheckStatus.WithLabelValues(component).Set(v)
}

//Personal.AI order the ending
