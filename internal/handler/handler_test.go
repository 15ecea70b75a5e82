package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/paiban/kaowu/internal/config"
	"github.com/paiban/kaowu/internal/repository"
	"github.com/paiban/kaowu/internal/runner"
	"github.com/paiban/kaowu/pkg/errors"
	"github.com/paiban/kaowu/pkg/model"
)

type fakeHistory struct {
	records     map[uuid.UUID]*repository.RunRecord
	assignments map[uuid.UUID][]model.Course
	lastFilter  repository.ListFilter
}

func (f *fakeHistory) GetByID(_ context.Context, id uuid.UUID) (*repository.RunRecord, error) {
	rec, ok := f.records[id]
	if !ok {
		return nil, errors.NotFound("run", id.String())
	}
	return rec, nil
}

func (f *fakeHistory) List(_ context.Context, filter repository.ListFilter) ([]*repository.RunRecord, int, error) {
	f.lastFilter = filter
	out := make([]*repository.RunRecord, 0, len(f.records))
	for _, r := range f.records {
		out = append(out, r)
	}
	return out, len(out), nil
}

func (f *fakeHistory) GetAssignments(_ context.Context, id uuid.UUID) ([]model.Course, error) {
	return f.assignments[id], nil
}

type countingRecorder struct {
	feasible, infeasible int
}

func (c *countingRecorder) RecordEvaluation(feasible bool) {
	if feasible {
		c.feasible++
	} else {
		c.infeasible++
	}
}

type testServer struct {
	mux      *http.ServeMux
	manager  *runner.Manager
	history  *fakeHistory
	recorder *countingRecorder
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	manager := runner.NewManager(config.SolverConfig{
		DefaultAlgorithm: "sa",
		MaxRuntime:       30 * time.Second,
		MaxConcurrent:    4,
		LogBuffer:        50,
	})
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = manager.Shutdown(ctx)
	})

	history := &fakeHistory{
		records:     map[uuid.UUID]*repository.RunRecord{},
		assignments: map[uuid.UUID][]model.Course{},
	}
	recorder := &countingRecorder{}
	mux := http.NewServeMux()
	Register(mux, "/api/v1/", NewRunHandler(manager, history, 0), NewScheduleHandler(recorder, 0))
	return &testServer{mux: mux, manager: manager, history: history, recorder: recorder}
}

func (s *testServer) do(method, path string, body interface{}) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		if raw, ok := body.(string); ok {
			buf.WriteString(raw)
		} else {
			_ = json.NewEncoder(&buf).Encode(body)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	s.mux.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

func startBody(extra map[string]interface{}) map[string]interface{} {
	cfg := map[string]interface{}{
		"start_date":     "2025-12-01",
		"end_date":       "2025-12-05",
		"seed":           3,
		"max_iterations": 40,
	}
	for k, v := range extra {
		cfg[k] = v
	}
	return map[string]interface{}{
		"algorithm": "sa",
		"courses": []map[string]interface{}{
			{"course_id": "C1", "name": "高等数学", "location": "A", "student_count": 25, "duration": 120},
			{"course_id": "C2", "name": "大学英语", "location": "B", "student_count": 30, "duration": 90},
		},
		"rooms": []map[string]interface{}{
			{"room_id": "R1", "capacity": 30, "location": "A"},
			{"room_id": "R2", "capacity": 40, "location": "B"},
		},
		"proctors": []map[string]interface{}{
			{"proctor_id": "P1", "name": "张老师"},
		},
		"config": cfg,
	}
}

func TestRunHandler_StartAndGet(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(http.MethodPost, "/api/v1/runs", startBody(nil))
	require.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())
	body := decode(t, rec)
	assert.Equal(t, "running", body["status"])
	id := uuid.MustParse(body["id"].(string))
	assert.Equal(t, "/api/v1/runs/"+id.String(), rec.Header().Get("Location"))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_, err := s.manager.Wait(ctx, id)
	require.NoError(t, err)

	rec = s.do(http.MethodGet, "/api/v1/runs/"+id.String(), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	body = decode(t, rec)
	assert.Equal(t, "completed", body["status"])
	assert.NotNil(t, body["result"])
	assert.Len(t, body["convergence_history"], 40)

	rec = s.do(http.MethodGet, "/api/v1/runs?status=completed", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, float64(1), decode(t, rec)["total"])

	rec = s.do(http.MethodGet, "/api/v1/runs?status=running", nil)
	assert.Equal(t, float64(0), decode(t, rec)["total"])

	rec = s.do(http.MethodPost, "/api/v1/runs/"+id.String()+"/stop", nil)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, string(errors.CodeRunNotActive), decode(t, rec)["code"])
}

func TestRunHandler_StopRunning(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(http.MethodPost, "/api/v1/runs", startBody(map[string]interface{}{
		"max_iterations":  1000000000,
		"min_temperature": 1e-12,
		"cooling_rate":    0.999999,
	}))
	require.Equal(t, http.StatusAccepted, rec.Code)
	id := decode(t, rec)["id"].(string)

	rec = s.do(http.MethodPost, "/api/v1/runs/"+id+"/stop", nil)
	assert.Equal(t, http.StatusAccepted, rec.Code)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	run, err := s.manager.Wait(ctx, uuid.MustParse(id))
	require.NoError(t, err)
	assert.Equal(t, runner.StatusStopped, run.Status())
}

func TestRunHandler_Errors(t *testing.T) {
	s := newTestServer(t)

	tests := []struct {
		name   string
		method string
		path   string
		body   interface{}
		status int
		code   errors.Code
	}{
		{"malformed json", http.MethodPost, "/api/v1/runs", "{", http.StatusBadRequest, errors.CodeInvalidInput},
		{"unknown field", http.MethodPost, "/api/v1/runs", `{"courses":[],"bogus":1}`, http.StatusBadRequest, errors.CodeInvalidInput},
		{"no courses", http.MethodPost, "/api/v1/runs", `{"rooms":[{"room_id":"R1","capacity":10}]}`, http.StatusBadRequest, errors.CodeValidationFail},
		{"bad algorithm", http.MethodPost, "/api/v1/runs", func() interface{} {
			b := startBody(nil)
			b["algorithm"] = "tabu"
			return b
		}(), http.StatusBadRequest, errors.CodeValidationFail},
		{"bad id", http.MethodGet, "/api/v1/runs/not-a-uuid", nil, http.StatusBadRequest, errors.CodeInvalidInput},
		{"unknown id", http.MethodGet, "/api/v1/runs/" + uuid.NewString(), nil, http.StatusNotFound, errors.CodeNotFound},
		{"stop unknown", http.MethodPost, "/api/v1/runs/" + uuid.NewString() + "/stop", nil, http.StatusNotFound, errors.CodeNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := s.do(tt.method, tt.path, tt.body)
			assert.Equal(t, tt.status, rec.Code, rec.Body.String())
			body := decode(t, rec)
			assert.Equal(t, true, body["error"])
			assert.Equal(t, string(tt.code), body["code"])
		})
	}

	rec := s.do(http.MethodPost, "/api/v1/runs", "{")
	fields, ok := decode(t, rec)["fields"].(map[string]interface{})
	require.True(t, ok)
	assert.NotEmpty(t, fields["reason"])

	rec = s.do(http.MethodDelete, "/api/v1/runs", nil)
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestRunHandler_History(t *testing.T) {
	s := newTestServer(t)
	id := uuid.New()
	s.history.records[id] = &repository.RunRecord{ID: id, Algorithm: "pso", Status: "completed", FinalCost: 42}
	s.history.assignments[id] = []model.Course{{ID: "C1", AssignedRoom: "R1"}}

	rec := s.do(http.MethodGet, "/api/v1/runs/"+id.String(), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, "pso", body["algorithm"])
	assert.Equal(t, float64(42), body["final_cost"])
	assert.Len(t, body["assignments"], 1)

	rec = s.do(http.MethodGet, "/api/v1/runs?persisted=true&status=completed&offset=-5&limit=5&order_by=final_cost&order_dir=asc", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, float64(1), decode(t, rec)["total"])
	assert.Equal(t, "completed", s.history.lastFilter.Status)
	assert.Equal(t, 0, s.history.lastFilter.Offset)
	assert.Equal(t, 5, s.history.lastFilter.Limit)
	assert.Equal(t, "final_cost", s.history.lastFilter.OrderBy)
	assert.Equal(t, "asc", s.history.lastFilter.OrderDir)
}

func TestScheduleHandler_Evaluate(t *testing.T) {
	s := newTestServer(t)

	body := map[string]interface{}{
		"courses": []map[string]interface{}{
			{"course_id": "C1", "location": "A", "student_count": 25, "duration": 120,
				"assigned_date": "2025-12-01", "assigned_time": "09:30", "assigned_room": "R1", "assigned_proctor_id": "P1"},
			{"course_id": "C2", "location": "A", "student_count": 20, "duration": 120,
				"assigned_date": "2025-12-01", "assigned_time": "09:30", "assigned_room": "R1", "assigned_proctor_id": "P1"},
		},
		"rooms":    []map[string]interface{}{{"room_id": "R1", "capacity": 30, "location": "A"}},
		"proctors": []map[string]interface{}{{"proctor_id": "P1"}},
		"config":   map[string]interface{}{"weights": map[string]interface{}{"room_conflict": 10}},
	}

	rec := s.do(http.MethodPost, "/api/v1/schedule/evaluate", body)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	out := decode(t, rec)
	assert.Equal(t, false, out["feasible"])
	violations := out["violations"].(map[string]interface{})
	assert.Equal(t, float64(10), violations["room_conflicts"])
	assert.Equal(t, float64(1000), violations["proctor_conflicts"])
	assert.Equal(t, out["fitness"], violations["total"])
	assert.NotNil(t, out["coverage"])
	assert.NotNil(t, out["fairness"])
	assert.Equal(t, 1, s.recorder.infeasible)

	rec = s.do(http.MethodPost, "/api/v1/schedule/evaluate", `{"courses":[],"rooms":[]}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, 1, s.recorder.infeasible+s.recorder.feasible)
}

func TestConstraintLibrary(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(http.MethodGet, "/api/v1/constraints/library", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	library := decode(t, rec)["library"].([]interface{})
	assert.Len(t, library, 8)
	first := library[0].(map[string]interface{})
	assert.Equal(t, "room_conflicts", first["name"])
}

func TestDecodeJSON_BodyTooLarge(t *testing.T) {
	h := NewScheduleHandler(nil, 16)
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"courses":[{"course_id":"C1"}]}`))
	rec := httptest.NewRecorder()
	h.Evaluate(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "请求体过大")
}
