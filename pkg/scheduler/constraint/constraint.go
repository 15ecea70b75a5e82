// Package constraint 定义排考约束接口和评估器
package constraint

import (
	"github.com/paiban/kaowu/pkg/model"
)

// Type 约束类型标识
type Type string

const (
	// 硬约束类型
	TypeRoomConflict    Type = "room_conflicts"
	TypeRoomCapacity    Type = "capacity_violations"
	TypeProctorConflict Type = "proctor_conflicts"

	// 软约束类型
	TypeLocationMismatch      Type = "location_mismatches"
	TypeUnscheduledCourse     Type = "unscheduled_courses"
	TypeUnderutilization      Type = "underutilization"
	TypeProctorWeeklyWorkload Type = "proctor_workload_per_week"
	TypeProctorDailyWorkload  Type = "proctor_workload_per_day"
)

// Category 约束类别
type Category string

const (
	CategoryHard Category = "hard" // 硬约束（必须满足）
	CategorySoft Category = "soft" // 软约束（尽量满足）
)

// Constraint 约束接口
type Constraint interface {
	// Name 返回约束名称
	Name() string

	// Type 返回约束类型
	Type() Type

	// Category 返回约束类别
	Category() Category

	// Evaluate 评估整个排考方案，返回惩罚值（>= 0）
	Evaluate(ctx *Context) float64
}

// Weights 约束权重
type Weights struct {
	RoomConflict          float64 `json:"room_conflict" mapstructure:"room_conflict" validate:"gte=0"`
	RoomOvercapacity      float64 `json:"room_overcapacity" mapstructure:"room_overcapacity" validate:"gte=0"`
	ProctorConflict       float64 `json:"proctor_conflict" mapstructure:"proctor_conflict" validate:"gte=0"`
	LocationMismatch      float64 `json:"location_mismatch" mapstructure:"location_mismatch" validate:"gte=0"`
	UnscheduledCourse     float64 `json:"unscheduled_course" mapstructure:"unscheduled_course" validate:"gte=0"`
	Underutilization      float64 `json:"underutilization" mapstructure:"underutilization" validate:"gte=0"`
	ProctorWeeklyOverload float64 `json:"proctor_weekly_overload" mapstructure:"proctor_weekly_overload" validate:"gte=0"`
	ProctorDailyOverload  float64 `json:"proctor_daily_overload" mapstructure:"proctor_daily_overload" validate:"gte=0"`
}

// DefaultWeights 默认约束权重
func DefaultWeights() Weights {
	return Weights{
		RoomConflict:          1000,
		RoomOvercapacity:      500,
		ProctorConflict:       1000,
		LocationMismatch:      50,
		UnscheduledCourse:     2000,
		Underutilization:      5,
		ProctorWeeklyOverload: 200,
		ProctorDailyOverload:  100,
	}
}

// Limits 监考工作量上限，<= 0 表示不限制
type Limits struct {
	MaxExamsPerWeek int `json:"max_exams_per_week"`
	MaxExamsPerDay  int `json:"max_exams_per_day"`
}

// DefaultLimits 默认工作量上限
func DefaultLimits() Limits {
	return Limits{MaxExamsPerWeek: 5, MaxExamsPerDay: 3}
}

// UnderutilizationThreshold 利用率低于该值时计算浪费惩罚
const UnderutilizationThreshold = 0.5

// OverlapFunc 时间重叠判断函数
type OverlapFunc func(time1 string, duration1 int, time2 string, duration2 int) bool

// Context 评估上下文
type Context struct {
	Schedule *model.Schedule

	rooms   map[string]model.Room
	overlap OverlapFunc
}

// NewContext 创建评估上下文
func NewContext(schedule *model.Schedule, rooms map[string]model.Room, overlap OverlapFunc) *Context {
	if overlap == nil {
		overlap = model.ClockOverlaps
	}
	return &Context{Schedule: schedule, rooms: rooms, overlap: overlap}
}

// Room 获取考场
func (c *Context) Room(id string) (model.Room, bool) {
	r, ok := c.rooms[id]
	return r, ok
}

// Overlaps 判断两场考试时间是否重叠
func (c *Context) Overlaps(a, b *model.Course) bool {
	return c.overlap(a.AssignedTime, a.ExamDuration(), b.AssignedTime, b.ExamDuration())
}

// groupKey 分组键
type groupKey struct {
	first, second string
}

// groupCourses 按键分组，保持首次出现的顺序以保证评估结果可复现
func groupCourses(courses []model.Course, key func(c *model.Course) (groupKey, bool)) [][]int {
	index := make(map[groupKey]int)
	var groups [][]int
	for i := range courses {
		k, ok := key(&courses[i])
		if !ok {
			continue
		}
		pos, exists := index[k]
		if !exists {
			pos = len(groups)
			index[k] = pos
			groups = append(groups, nil)
		}
		groups[pos] = append(groups[pos], i)
	}
	return groups
}

// countBy 按键计数，保持首次出现的顺序
func countBy(courses []model.Course, key func(c *model.Course) (groupKey, bool)) []int {
	groups := groupCourses(courses, key)
	counts := make([]int, len(groups))
	for i, g := range groups {
		counts[i] = len(g)
	}
	return counts
}
