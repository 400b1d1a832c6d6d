package prometheus

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/ChargeMatch/pkg/errors"
)

func newTestAppMetrics(t *testing.T) (*AppMetrics, MetricsCollector) {
	c := newTestCollector(t)
	m := NewAppMetrics(c)
	require.NotNil(t, m)
	return m, c
}

func TestRecordCharge_Success(t *testing.T) {
	m, c := newTestAppMetrics(t)

	m.RecordCharge("dp", 5, 20*time.Millisecond, nil)

	output := scrapeMetrics(t, c)
	assert.Contains(t, output, `test_unit_charge_requests_total{status="success",variant="dp"} 1`)
	assert.Contains(t, output, `test_unit_charge_duration_seconds_count{variant="dp"} 1`)
	assert.Contains(t, output, `test_unit_charge_atoms_sum{variant="dp"} 5`)
	assert.NotContains(t, output, "test_unit_charge_failures_total{")
}

func TestRecordCharge_FailureLabelsErrorCode(t *testing.T) {
	m, c := newTestAppMetrics(t)

	m.RecordCharge("simple", 3, time.Millisecond, errors.New(errors.ErrCodeAssignment, "no charges"))
	m.RecordCharge("simple", 0, time.Millisecond, fmt.Errorf("plain"))

	output := scrapeMetrics(t, c)
	assert.Contains(t, output, `test_unit_charge_requests_total{status="failure",variant="simple"} 2`)
	assert.Contains(t, output, `test_unit_charge_failures_total{error_code="CHG_001",variant="simple"} 1`)
	assert.Contains(t, output, `test_unit_charge_failures_total{error_code="UNKNOWN",variant="simple"} 1`)
	assert.Contains(t, output, `test_unit_charge_atoms_count{variant="simple"} 1`)
}

func TestRecordHTTPRequest(t *testing.T) {
	m, c := newTestAppMetrics(t)

	m.RecordHTTPRequest("POST", "/api/v1/charge", 200, 100*time.Millisecond)

	output := scrapeMetrics(t, c)
	assert.Contains(t, output, `test_unit_http_requests_total{method="POST",path="/api/v1/charge",status_code="200"} 1`)
	assert.Contains(t, output, `test_unit_http_request_duration_seconds_count{method="POST",path="/api/v1/charge"} 1`)
}

func TestRecordGRPCRequest(t *testing.T) {
	m, c := newTestAppMetrics(t)

	m.RecordGRPCRequest("chargematch.v1.ChargeService", "Charge", "OK", 10*time.Millisecond)

	output := scrapeMetrics(t, c)
	assert.Contains(t, output, `test_unit_grpc_requests_total{code="OK",method="Charge",service="chargematch.v1.ChargeService"} 1`)
	assert.Contains(t, output, `test_unit_grpc_request_duration_seconds_count{method="Charge",service="chargematch.v1.ChargeService"} 1`)
}

func TestRecordCacheAccess(t *testing.T) {
	m, c := newTestAppMetrics(t)

	m.RecordCacheAccess("l1", true)
	m.RecordCacheAccess("l1", true)
	m.RecordCacheAccess("l1", false)

	output := scrapeMetrics(t, c)
	assert.Contains(t, output, `test_unit_cache_hits_total{cache="l1"} 2`)
	assert.Contains(t, output, `test_unit_cache_misses_total{cache="l1"} 1`)
}

func TestRecordJob(t *testing.T) {
	m, c := newTestAppMetrics(t)

	m.RecordJob("success", time.Millisecond)
	m.RecordJob("retry", time.Millisecond)
	m.RecordJob("dead_letter", time.Millisecond)

	output := scrapeMetrics(t, c)
	assert.Contains(t, output, `test_unit_jobs_total{status="success"} 1`)
	assert.Contains(t, output, "test_unit_job_retries_total 1")
	assert.Contains(t, output, "test_unit_jobs_dead_lettered_total 1")
}

func TestTrackActiveJob(t *testing.T) {
	m, c := newTestAppMetrics(t)

	done := m.TrackActiveJob()
	assert.Contains(t, scrapeMetrics(t, c), "test_unit_worker_active 1")
	done()
	assert.Contains(t, scrapeMetrics(t, c), "test_unit_worker_active 0")
}

func TestGauges(t *testing.T) {
	m, c := newTestAppMetrics(t)

	m.SetRepositoryKeys("iacm", 2, 140)
	m.SetHealth("redis", true)
	m.SetHealth("postgres", false)

	output := scrapeMetrics(t, c)
	assert.Contains(t, output, `test_unit_repository_keys{kind="iacm",shell="2"} 140`)
	assert.Contains(t, output, `test_unit_health_check_status{component="redis"} 1`)
	assert.Contains(t, output, `test_unit_health_check_status{component="postgres"} 0`)
}

func TestConcurrentMetricRecording(t *testing.T) {
	m, c := newTestAppMetrics(t)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				m.RecordCharge("ilp", 4, time.Millisecond, nil)
			}
		}()
	}
	wg.Wait()

	assert.Contains(t, scrapeMetrics(t, c), `test_unit_charge_requests_total{status="success",variant="ilp"} 1000`)
}

//Personal.AI order the ending
