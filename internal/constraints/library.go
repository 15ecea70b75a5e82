// Package constraints 排考约束库，说明每条规则及其可配置参数
package constraints

import (
	"strconv"

	"github.com/paiban/kaowu/pkg/scheduler/constraint"
)

// ConstraintParam 约束参数定义
type ConstraintParam struct {
	Name        string `json:"name"` // 配置映射中的键
	Type        string `json:"type"` // int, float
	Description string `json:"description"`
	Default     string `json:"default,omitempty"`
	Min         string `json:"min,omitempty"`
}

// ConstraintDefinition 约束定义
type ConstraintDefinition struct {
	Name        string            `json:"name"` // 与评估明细中的键一致
	DisplayName string            `json:"display_name"`
	Type        string            `json:"type"` // hard 硬约束, soft 软约束
	Description string            `json:"description"`
	FastModel   bool              `json:"fast_model"` // 是否参与搜索期间的快速评估
	Params      []ConstraintParam `json:"params"`
}

// LibraryResponse 约束库响应
type LibraryResponse struct {
	Library []ConstraintDefinition `json:"library"`
}

// GetLibrary 获取完整的约束库，默认值取自当前默认权重与上限
func GetLibrary() []ConstraintDefinition {
	w := constraint.DefaultWeights()
	l := constraint.DefaultLimits()

	return []ConstraintDefinition{
		{
			Name:        string(constraint.TypeRoomConflict),
			DisplayName: "考场冲突",
			Type:        string(constraint.CategoryHard),
			Description: "同一考场同一天的两场考试时间重叠，每对重叠计一次惩罚。",
			FastModel:   true,
			Params:      []ConstraintParam{weight("room_conflict", w.RoomConflict)},
		},
		{
			Name:        string(constraint.TypeRoomCapacity),
			DisplayName: "考场容量",
			Type:        string(constraint.CategoryHard),
			Description: "考生人数超过考场容量，按超出人数计罚；考场编号未知时计一次固定惩罚。",
			FastModel:   true,
			Params:      []ConstraintParam{weight("room_overcapacity", w.RoomOvercapacity)},
		},
		{
			Name:        string(constraint.TypeProctorConflict),
			DisplayName: "监考冲突",
			Type:        string(constraint.CategoryHard),
			Description: "同一监考老师同一天的两场考试时间重叠。",
			FastModel:   true,
			Params:      []ConstraintParam{weight("proctor_conflict", w.ProctorConflict)},
		},
		{
			Name:        string(constraint.TypeLocationMismatch),
			DisplayName: "校区不符",
			Type:        string(constraint.CategorySoft),
			Description: "科目所在校区与考场校区不一致（忽略大小写与首尾空白）。",
			Params:      []ConstraintParam{weight("location_mismatch", w.LocationMismatch)},
		},
		{
			Name:        string(constraint.TypeUnscheduledCourse),
			DisplayName: "未排考科目",
			Type:        string(constraint.CategorySoft),
			Description: "日期、时间或考场任一未分配的科目。",
			Params:      []ConstraintParam{weight("unscheduled_course", w.UnscheduledCourse)},
		},
		{
			Name:        string(constraint.TypeUnderutilization),
			DisplayName: "考场利用率过低",
			Type:        string(constraint.CategorySoft),
			Description: "考场利用率低于 " + formatFloat(constraint.UnderutilizationThreshold*100) + "% 时按空置座位计罚。",
			Params:      []ConstraintParam{weight("underutilization", w.Underutilization)},
		},
		{
			Name:        string(constraint.TypeProctorWeeklyWorkload),
			DisplayName: "监考周工作量",
			Type:        string(constraint.CategorySoft),
			Description: "监考老师每周（周一起算）监考场次超过上限的部分。",
			Params: []ConstraintParam{
				weight("proctor_weekly_overload", w.ProctorWeeklyOverload),
				{Name: "max_exams_per_week", Type: "int", Description: "每周监考上限，0 表示不限", Default: strconv.Itoa(l.MaxExamsPerWeek), Min: "0"},
			},
		},
		{
			Name:        string(constraint.TypeProctorDailyWorkload),
			DisplayName: "监考日工作量",
			Type:        string(constraint.CategorySoft),
			Description: "监考老师每天监考场次超过上限的部分。",
			Params: []ConstraintParam{
				weight("proctor_daily_overload", w.ProctorDailyOverload),
				{Name: "max_exams_per_day", Type: "int", Description: "每日监考上限，0 表示不限", Default: strconv.Itoa(l.MaxExamsPerDay), Min: "0"},
			},
		},
	}
}

// GetByName 按名称获取约束定义
func GetByName(name string) (ConstraintDefinition, bool) {
	for _, def := range GetLibrary() {
		if def.Name == name {
			return def, true
		}
	}
	return ConstraintDefinition{}, false
}

func weight(key string, value float64) ConstraintParam {
	return ConstraintParam{
		Name:        "weights." + key,
		Type:        "float",
		Description: "惩罚权重",
		Default:     formatFloat(value),
		Min:         "0",
	}
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
