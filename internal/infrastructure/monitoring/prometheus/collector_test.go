package prometheus

import (
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/ChargeMatch/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/ChargeMatch/internal/testutil"
)

func newTestCollector(t *testing.T) MetricsCollector {
	cfg := CollectorConfig{
		Namespace: "test",
		Subsystem: "unit",
	}
	c, err := NewMetricsCollector(cfg, logging.NewNopLogger())
	require.NoError(t, err)
	return c
}

func scrapeMetrics(t *testing.T, collector MetricsCollector) string {
	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	w := httptest.NewRecorder()
	collector.Handler().ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)
	return w.Body.String()
}

func TestNewMetricsCollector_EmptyNamespace(t *testing.T) {
	_, err := NewMetricsCollector(CollectorConfig{Subsystem: "unit"}, logging.NewNopLogger())
	assert.Error(t, err)
}

func TestNewMetricsCollector_NilLogger(t *testing.T) {
	c, err := NewMetricsCollector(CollectorConfig{Namespace: "test"}, nil)
	require.NoError(t, err)
	c.RegisterCounter("runs_total", "help").WithLabelValues().Inc()
	assert.Contains(t, scrapeMetrics(t, c), "test_runs_total 1")
}

func TestNewMetricsCollector_WithProcessMetrics(t *testing.T) {
	c, err := NewMetricsCollector(CollectorConfig{Namespace: "test", EnableProcessMetrics: true}, nil)
	require.NoError(t, err)
	assert.Contains(t, scrapeMetrics(t, c), "process_cpu_seconds_total")
}

func TestRegisterCounter_WithLabels(t *testing.T) {
	c := newTestCollector(t)
	c.RegisterCounter("solves_total", "Solves", "variant").WithLabelValues("dp").Add(5)

	assert.Contains(t, scrapeMetrics(t, c), `test_unit_solves_total{variant="dp"} 5`)
}

func TestRegisterCounter_DuplicateSharesVector(t *testing.T) {
	c := newTestCollector(t)
	c1 := c.RegisterCounter("dup_total", "help")
	c2 := c.RegisterCounter("dup_total", "help")

	c1.WithLabelValues().Inc()
	c2.WithLabelValues().Inc()

	assert.Contains(t, scrapeMetrics(t, c), "test_unit_dup_total 2")
}

func TestRegisterGauge_Success(t *testing.T) {
	c := newTestCollector(t)
	c.RegisterGauge("pool_size", "Pool size").WithLabelValues().Set(4)

	assert.Contains(t, scrapeMetrics(t, c), "test_unit_pool_size 4")
}

func TestRegisterHistogram_DefaultBuckets(t *testing.T) {
	c := newTestCollector(t)
	c.RegisterHistogram("latency", "Latency", nil).WithLabelValues().Observe(0.1)

	output := scrapeMetrics(t, c)
	assert.Contains(t, output, "test_unit_latency_bucket")
	assert.Contains(t, output, "test_unit_latency_count 1")
}

func TestTimer_MeasuresDuration(t *testing.T) {
	c := newTestCollector(t)
	hist := c.RegisterHistogram("timer_test", "Timer test", nil)
	timer := NewTimer(hist.WithLabelValues())
	time.Sleep(5 * time.Millisecond)
	timer.ObserveDuration()

	assert.Contains(t, scrapeMetrics(t, c), "test_unit_timer_test_count 1")
}

func TestConcurrentRegistration(t *testing.T) {
	c := newTestCollector(t)
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c.RegisterCounter("concurrent_total", "help", "id").WithLabelValues("1").Inc()
		}()
	}
	wg.Wait()

	assert.Contains(t, scrapeMetrics(t, c), `test_unit_concurrent_total{id="1"} 50`)
}

func TestTypeConflict_ReturnsNoop(t *testing.T) {
	logger := testutil.NewMockLogger()
	c, err := NewMetricsCollector(CollectorConfig{Namespace: "test", Subsystem: "unit"}, logger)
	require.NoError(t, err)

	c.RegisterCounter("conflict", "help").WithLabelValues().Inc()
	gauge := c.RegisterGauge("conflict", "help")
	gauge.WithLabelValues().Set(10)

	assert.Contains(t, scrapeMetrics(t, c), "# TYPE test_unit_conflict counter")
	assert.True(t, logger.HasMessage("warn", "metric type mismatch"))
}

func TestMustRegister_AndUnregister(t *testing.T) {
	c := newTestCollector(t)
	pc := prometheus.NewCounter(prometheus.CounterOpts{Name: "custom_collector"})
	c.MustRegister(pc)
	assert.Contains(t, scrapeMetrics(t, c), "custom_collector")

	assert.True(t, c.Unregister(pc))
	assert.NotContains(t, scrapeMetrics(t, c), "custom_collector")
}

//Personal.AI order the ending
