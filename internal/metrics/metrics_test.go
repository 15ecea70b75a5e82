package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/paiban/kaowu/pkg/scheduler/optimizer"
)

func TestMetrics_RunLifecycle(t *testing.T) {
	m := New()

	m.RunStarted("sa", 2)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.activeRuns))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.splitCourses))

	m.RunFinished("sa", "completed", 1500*time.Millisecond, 42)
	assert.Equal(t, 0.0, testutil.ToFloat64(m.activeRuns))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.runsTotal.WithLabelValues("sa", "completed")))
	assert.Equal(t, 42.0, testutil.ToFloat64(m.finalCost.WithLabelValues("sa")))

	m.RunStarted("pso", 0)
	m.RunFinished("pso", "failed", time.Second, 0)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.runsTotal.WithLabelValues("pso", "failed")))
	assert.Equal(t, 1, testutil.CollectAndCount(m.finalCost), "failed runs do not report fitness")
}

func TestMetrics_ObserverCountsIterationDeltas(t *testing.T) {
	m := New()
	obs := m.Observer("pso")

	obs.OnStep(optimizer.StepEvent{Iteration: 10, BestCost: 300})
	obs.OnStep(optimizer.StepEvent{Iteration: 20, BestCost: 120})
	obs.OnStep(optimizer.StepEvent{Iteration: 25, Cost: 9999, BestCost: 9999, Final: true})

	assert.Equal(t, 25.0, testutil.ToFloat64(m.iterations.WithLabelValues("pso")))
	assert.Equal(t, 120.0, testutil.ToFloat64(m.bestCost.WithLabelValues("pso")), "final full-model fitness is not a search cost")

	// 新的求解使用新的观察者，从 0 开始计数
	m.Observer("pso").OnStep(optimizer.StepEvent{Iteration: 10})
	assert.Equal(t, 35.0, testutil.ToFloat64(m.iterations.WithLabelValues("pso")))
}

func TestMetrics_HTTPAndEvaluations(t *testing.T) {
	m := New()
	m.ObserveHTTPRequest(http.MethodPost, "/api/v1/runs", http.StatusAccepted, 20*time.Millisecond)
	m.RecordEvaluation(true)
	m.RecordEvaluation(false)
	m.RecordEvaluation(false)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.requestTotal.WithLabelValues("POST", "/api/v1/runs", "202")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.evaluations.WithLabelValues("false")))

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.True(t, strings.Contains(body, "kaowu_http_requests_total"))
	assert.True(t, strings.Contains(body, "kaowu_schedule_evaluations_total"))
}

func TestMetrics_NilSafe(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.ObserveHTTPRequest("GET", "/", 200, time.Millisecond)
		m.RunStarted("sa", 0)
		m.RunFinished("sa", "completed", time.Second, 1)
		m.RecordEvaluation(true)
		m.Observer("sa").OnStep(optimizer.StepEvent{Iteration: 1})
	})

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}
