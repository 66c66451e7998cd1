package monitoring

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func scrape(t *testing.T, m *Metrics) string {
	t.Helper()
	w := httptest.NewRecorder()
	m.Handler().ServeHTTP(w, httptest.NewRequest("GET", "/metrics", nil))
	require.Equal(t, http.StatusOK, w.Code)
	return w.Body.String()
}

func TestObserveRun(t *testing.T) {
	m := NewMetrics()

	m.ObserveRun("success", 2*time.Second)
	m.ObserveRun("timeout", 40*time.Second)
	m.ObserveRun("success", time.Second)

	body := scrape(t, m)
	assert.Contains(t, body, `try_automation_runs_total{outcome="success"} 2`)
	assert.Contains(t, body, `try_automation_runs_total{outcome="timeout"} 1`)

	snap := m.Snapshot()
	assert.Equal(t, int64(3), snap.Runs)
	assert.Equal(t, int64(1), snap.FailedRuns)
}

func TestObserveArtifact(t *testing.T) {
	m := NewMetrics()

	m.ObserveArtifact("image/png", 4096)
	m.ObserveArtifact("application/pdf", 10_000)

	assert.Contains(t, scrape(t, m), `try_automation_artifacts_total{type="image/png"} 1`)
	assert.Equal(t, int64(2), m.Snapshot().Artifacts)
}

func TestMiddlewareUsesRouteTemplate(t *testing.T) {
	gin.SetMode(gin.TestMode)
	m := NewMetrics()

	router := gin.New()
	router.Use(Middleware(m))
	router.GET("/examples/:name", func(c *gin.Context) {
		c.String(http.StatusNotFound, "missing")
	})

	for _, name := range []string{"a.js", "b.js"} {
		req := httptest.NewRequest("GET", "/examples/"+name, nil)
		router.ServeHTTP(httptest.NewRecorder(), req)
	}
	router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("GET", "/nope", nil))

	body := scrape(t, m)
	assert.Contains(t, body, `try_automation_http_requests_total{method="GET",path="/examples/:name",status="404"} 2`)
	assert.Contains(t, body, `try_automation_http_requests_total{method="GET",path="unmatched",status="404"} 1`)

	snap := m.Snapshot()
	assert.Equal(t, int64(3), snap.TotalRequests)
	assert.Equal(t, int64(3), snap.TotalErrors)
}

func TestHandlerExposesMetrics(t *testing.T) {
	m := NewMetrics()
	m.TrackInFlight(func() float64 { return 2 })
	m.ObserveRun("success", time.Second)

	body := scrape(t, m)
	assert.Contains(t, body, `try_automation_runs_total{outcome="success"} 1`)
	assert.Contains(t, body, "try_automation_runs_in_flight 2")
	assert.Contains(t, body, "try_automation_uptime_seconds")
	assert.Contains(t, body, "go_goroutines")
}
