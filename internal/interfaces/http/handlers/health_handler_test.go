package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type recordingObserver struct {
	mu     sync.Mutex
	status map[string]bool
}

func (o *recordingObserver) SetHealth(component string, up bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.status == nil {
		o.status = map[string]bool{}
	}
	o.status[component] = up
}

func healthEngine(h *HealthHandler) *gin.Engine {
	r := gin.New()
	h.RegisterRoutes(r)
	return r
}

func get(r http.Handler, path string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
	return w
}

func okCheck(name string) HealthChecker {
	return CheckFunc{Component: name, Fn: func(context.Context) error { return nil }}
}

func TestHealthHandler_Liveness(t *testing.T) {
	failing := CheckFunc{Component: "redis", Fn: func(context.Context) error { return errors.New("down") }}
	w := get(healthEngine(NewHealthHandler("1.2.3", failing)), "/healthz")

	assert.Equal(t, http.StatusOK, w.Code)
	var resp LivenessResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "alive", resp.Status)
	assert.Equal(t, "1.2.3", resp.Version)
}

func TestHealthHandler_ReadinessNoCheckers(t *testing.T) {
	w := get(healthEngine(NewHealthHandler("dev")), "/readyz")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ready"}`, w.Body.String())
}

func TestHealthHandler_Readiness(t *testing.T) {
	obs := &recordingObserver{}
	h := NewHealthHandler("dev",
		okCheck("repository"),
		CheckFunc{Component: "minio", Fn: func(context.Context) error { return errors.New("bucket missing") }},
	).WithObserver(obs)

	w := get(healthEngine(h), "/readyz")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)

	var resp ReadinessResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "not_ready", resp.Status)
	assert.Equal(t, "healthy", resp.Components["repository"].Status)
	assert.Equal(t, "unhealthy", resp.Components["minio"].Status)
	assert.Equal(t, "bucket missing", resp.Components["minio"].Error)
	assert.Equal(t, map[string]bool{"repository": true, "minio": false}, obs.status)
}

func TestHealthHandler_Detailed(t *testing.T) {
	w := get(healthEngine(NewHealthHandler("dev", okCheck("repository"), okCheck("canonizer"))), "/healthz/detail")
	assert.Equal(t, http.StatusOK, w.Code)

	var resp DetailedResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "healthy", resp.Status)
	assert.Len(t, resp.Components, 2)
	assert.NotEmpty(t, resp.Components["canonizer"].Latency)
}

//Personal.AI order the ending
