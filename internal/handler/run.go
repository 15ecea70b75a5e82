package handler

import (
	"context"
	"net/http"
	"strconv"

	"github.com/google/uuid"

	"github.com/paiban/kaowu/internal/repository"
	"github.com/paiban/kaowu/internal/runner"
	"github.com/paiban/kaowu/pkg/errors"
	"github.com/paiban/kaowu/pkg/model"
)

// RunService 求解任务服务，runner.Manager 满足该接口
type RunService interface {
	Start(ctx context.Context, req *runner.StartRequest) (*runner.Run, error)
	Stop(id uuid.UUID) (*runner.Run, error)
	Get(id uuid.UUID) (*runner.Run, error)
	List() []*runner.Run
}

// RunHistory 已持久化的求解记录，repository.RunRepository 满足该接口
type RunHistory interface {
	GetByID(ctx context.Context, id uuid.UUID) (*repository.RunRecord, error)
	List(ctx context.Context, filter repository.ListFilter) ([]*repository.RunRecord, int, error)
	GetAssignments(ctx context.Context, runID uuid.UUID) ([]model.Course, error)
}

// RunHandler 求解任务处理器
type RunHandler struct {
	runs         RunService
	history      RunHistory
	maxBodyBytes int64
}

// NewRunHandler 创建处理器，history 可为空
func NewRunHandler(runs RunService, history RunHistory, maxBodyBytes int64) *RunHandler {
	return &RunHandler{runs: runs, history: history, maxBodyBytes: maxBodyBytes}
}

// RunListResponse 任务列表响应
type RunListResponse struct {
	Runs  []runner.Snapshot `json:"runs"`
	Total int               `json:"total"`
}

// HistoryListResponse 历史记录列表响应
type HistoryListResponse struct {
	Runs  []*repository.RunRecord `json:"runs"`
	Total int                     `json:"total"`
}

// HistoryDetailResponse 历史记录详情响应
type HistoryDetailResponse struct {
	*repository.RunRecord
	Assignments []model.Course `json:"assignments"`
}

// Start POST /runs 启动求解任务
func (h *RunHandler) Start(w http.ResponseWriter, r *http.Request) {
	var req runner.StartRequest
	if err := decodeJSON(w, r, h.maxBodyBytes, &req); err != nil {
		respondError(w, err)
		return
	}

	run, err := h.runs.Start(r.Context(), &req)
	if err != nil {
		respondError(w, err)
		return
	}
	w.Header().Set("Location", r.URL.Path+"/"+run.ID.String())
	respondJSON(w, http.StatusAccepted, run.Snapshot(false))
}

// List GET /runs 列出内存中的任务；?persisted=true 时从数据库分页查询
func (h *RunHandler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	if q.Get("persisted") == "true" {
		h.listHistory(w, r)
		return
	}

	status := q.Get("status")
	algorithm := q.Get("algorithm")
	runs := h.runs.List()
	snaps := make([]runner.Snapshot, 0, len(runs))
	for _, run := range runs {
		snap := run.Snapshot(false)
		if status != "" && string(snap.Status) != status {
			continue
		}
		if algorithm != "" && snap.Algorithm != algorithm {
			continue
		}
		snaps = append(snaps, snap)
	}
	respondJSON(w, http.StatusOK, RunListResponse{Runs: snaps, Total: len(snaps)})
}

func (h *RunHandler) listHistory(w http.ResponseWriter, r *http.Request) {
	if h.history == nil {
		respondError(w, errors.New(errors.CodeInvalidInput, "未启用持久化"))
		return
	}
	q := r.URL.Query()
	offset, _ := strconv.Atoi(q.Get("offset"))
	limit, _ := strconv.Atoi(q.Get("limit"))
	if offset < 0 {
		offset = 0
	}
	filter := repository.DefaultListFilter().
		WithStatus(q.Get("status")).
		WithAlgorithm(q.Get("algorithm")).
		WithOffset(offset).
		WithLimit(limit)
	if orderBy := q.Get("order_by"); orderBy != "" {
		filter.OrderBy = orderBy
		filter.OrderDir = q.Get("order_dir")
	}

	records, total, err := h.history.List(r.Context(), filter)
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, HistoryListResponse{Runs: records, Total: total})
}

// Get GET /runs/{id} 任务详情；内存中不存在时查询历史记录
func (h *RunHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := parseRunID(w, r)
	if !ok {
		return
	}

	run, err := h.runs.Get(id)
	if err == nil {
		respondJSON(w, http.StatusOK, run.Snapshot(true))
		return
	}
	if !errors.Is(err, errors.CodeNotFound) || h.history == nil {
		respondError(w, err)
		return
	}

	record, err := h.history.GetByID(r.Context(), id)
	if err != nil {
		respondError(w, err)
		return
	}
	assignments, err := h.history.GetAssignments(r.Context(), id)
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, HistoryDetailResponse{RunRecord: record, Assignments: assignments})
}

// Stop POST /runs/{id}/stop 请求停止任务
func (h *RunHandler) Stop(w http.ResponseWriter, r *http.Request) {
	id, ok := parseRunID(w, r)
	if !ok {
		return
	}
	run, err := h.runs.Stop(id)
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusAccepted, run.Snapshot(false))
}

func parseRunID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		respondError(w, errors.Wrap(err, errors.CodeInvalidInput, "无效的任务ID格式"))
		return uuid.Nil, false
	}
	return id, true
}
