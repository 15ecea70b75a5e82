package handler

import (
	"net/http"

	"github.com/paiban/kaowu/pkg/model"
	"github.com/paiban/kaowu/pkg/scheduler/optimizer"
	"github.com/paiban/kaowu/pkg/stats"
)

// EvaluationRecorder 记录方案评估，metrics.Metrics 满足该接口
type EvaluationRecorder interface {
	RecordEvaluation(feasible bool)
}

// ScheduleHandler 排考方案处理器
type ScheduleHandler struct {
	recorder     EvaluationRecorder
	maxBodyBytes int64
}

// NewScheduleHandler 创建处理器，recorder 可为空
func NewScheduleHandler(recorder EvaluationRecorder, maxBodyBytes int64) *ScheduleHandler {
	return &ScheduleHandler{recorder: recorder, maxBodyBytes: maxBodyBytes}
}

// EvaluateRequest 方案评估请求，科目上的分配字段即待评估的方案
type EvaluateRequest struct {
	Courses  []model.Course         `json:"courses" validate:"required,min=1,dive"`
	Rooms    []model.Room           `json:"rooms" validate:"required,min=1,dive"`
	Proctors []model.Proctor        `json:"proctors" validate:"dive"`
	Config   map[string]interface{} `json:"config"` // 仅使用 weights 与监考上限
}

// Evaluate POST /schedule/evaluate 用完整约束模型评估方案，附带覆盖与公平性统计
func (h *ScheduleHandler) Evaluate(w http.ResponseWriter, r *http.Request) {
	var req EvaluateRequest
	if err := decodeJSON(w, r, h.maxBodyBytes, &req); err != nil {
		respondError(w, err)
		return
	}
	if err := validateStruct(&req); err != nil {
		respondError(w, err)
		return
	}

	cfg, err := optimizer.ParseAnnealingConfig(req.Config)
	if err != nil {
		respondError(w, err)
		return
	}

	report := stats.NewReport(model.NewSchedule(req.Courses), req.Rooms, req.Proctors, cfg.Weights, cfg.Limits())
	if h.recorder != nil {
		h.recorder.RecordEvaluation(report.Feasible)
	}
	respondJSON(w, http.StatusOK, report)
}
