package stats

import (
	"github.com/paiban/kaowu/pkg/model"
	"github.com/paiban/kaowu/pkg/scheduler/constraint"
)

// Coverage 使用默认阈值分析排考覆盖
func Coverage(schedule *model.Schedule, rooms []model.Room) *CoverageMetrics {
	return NewCoverageAnalyzer().Analyze(schedule, rooms)
}

// Fairness 分析监考工作量公平性
func Fairness(schedule *model.Schedule, proctors []model.Proctor) *FairnessMetrics {
	return NewFairnessAnalyzer().Analyze(schedule, proctors)
}

// Report 方案评估报告：约束明细、覆盖与公平性
type Report struct {
	Fitness     float64            `json:"fitness"`
	Feasible    bool               `json:"feasible"`
	HardPenalty float64            `json:"hard_penalty"`
	SoftPenalty float64            `json:"soft_penalty"`
	Violations  map[string]float64 `json:"violations"` // 按约束类型，含 total
	Coverage    *CoverageMetrics   `json:"coverage"`
	Fairness    *FairnessMetrics   `json:"fairness"`
}

// NewReport 用完整约束模型评估方案并生成报告
func NewReport(schedule *model.Schedule, rooms []model.Room, proctors []model.Proctor, weights constraint.Weights, limits constraint.Limits) *Report {
	if schedule == nil {
		schedule = model.NewSchedule(nil)
	}
	result := constraint.NewChecker(rooms, weights, limits).Details(schedule)
	return &Report{
		Fitness:     result.Total,
		Feasible:    result.Feasible,
		HardPenalty: result.HardPenalty,
		SoftPenalty: result.SoftPenalty,
		Violations:  result.Map(),
		Coverage:    Coverage(schedule, rooms),
		Fairness:    Fairness(schedule, proctors),
	}
}
