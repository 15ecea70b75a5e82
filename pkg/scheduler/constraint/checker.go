package constraint

import (
	"sort"

	"github.com/paiban/kaowu/pkg/model"
)

// Evaluator 方案评估接口
type Evaluator interface {
	// Evaluate 返回方案的总惩罚值，越低越好
	Evaluate(schedule *model.Schedule) float64
}

// Result 约束评估结果
type Result struct {
	Penalties   map[Type]float64 `json:"penalties"`
	HardPenalty float64          `json:"hard_penalty"`
	SoftPenalty float64          `json:"soft_penalty"`
	Total       float64          `json:"total"`
	Feasible    bool             `json:"feasible"`
}

// Map 以约束类型为键返回明细，附带 total
func (r *Result) Map() map[string]float64 {
	m := make(map[string]float64, len(r.Penalties)+1)
	for t, p := range r.Penalties {
		m[string(t)] = p
	}
	m["total"] = r.Total
	return m
}

// Checker 约束检查器（完整模型）
type Checker struct {
	rooms       map[string]model.Room
	constraints []Constraint
	overlap     OverlapFunc
}

// NewChecker 创建包含全部硬约束和软约束的检查器
func NewChecker(rooms []model.Room, weights Weights, limits Limits) *Checker {
	c := newChecker(rooms, model.ClockOverlaps)
	c.Register(NewRoomConflictConstraint(weights.RoomConflict))
	c.Register(NewRoomCapacityConstraint(weights.RoomOvercapacity))
	c.Register(NewProctorConflictConstraint(weights.ProctorConflict))
	c.Register(NewLocationMismatchConstraint(weights.LocationMismatch))
	c.Register(NewUnscheduledCourseConstraint(weights.UnscheduledCourse))
	c.Register(NewUnderutilizationConstraint(weights.Underutilization))
	c.Register(NewProctorWeeklyConstraint(weights.ProctorWeeklyOverload, limits.MaxExamsPerWeek))
	c.Register(NewProctorDailyConstraint(weights.ProctorDailyOverload, limits.MaxExamsPerDay))
	return c
}

// NewDefaultChecker 使用默认权重创建检查器
func NewDefaultChecker(rooms []model.Room) *Checker {
	return NewChecker(rooms, DefaultWeights(), DefaultLimits())
}

func newChecker(rooms []model.Room, overlap OverlapFunc) *Checker {
	return &Checker{
		rooms:       model.IndexRooms(rooms),
		constraints: make([]Constraint, 0, 8),
		overlap:     overlap,
	}
}

// Register 注册约束，同类型约束会被替换
func (c *Checker) Register(constraint Constraint) {
	for i, existing := range c.constraints {
		if existing.Type() == constraint.Type() {
			c.constraints[i] = constraint
			return
		}
	}
	c.constraints = append(c.constraints, constraint)

	// 硬约束在前，同类别保持注册顺序
	sort.SliceStable(c.constraints, func(i, j int) bool {
		return c.constraints[i].Category() == CategoryHard && c.constraints[j].Category() != CategoryHard
	})
}

// Constraints 返回已注册约束
func (c *Checker) Constraints() []Constraint {
	result := make([]Constraint, len(c.constraints))
	copy(result, c.constraints)
	return result
}

// ByCategory 按类别获取约束
func (c *Checker) ByCategory(cat Category) []Constraint {
	var result []Constraint
	for _, constraint := range c.constraints {
		if constraint.Category() == cat {
			result = append(result, constraint)
		}
	}
	return result
}

// Evaluate 计算总惩罚值
func (c *Checker) Evaluate(schedule *model.Schedule) float64 {
	ctx := NewContext(schedule, c.rooms, c.overlap)
	var total float64
	for _, constraint := range c.constraints {
		total += constraint.Evaluate(ctx)
	}
	return total
}

// Details 按约束类型给出惩罚明细，总和与 Evaluate 一致
func (c *Checker) Details(schedule *model.Schedule) *Result {
	ctx := NewContext(schedule, c.rooms, c.overlap)
	result := &Result{Penalties: make(map[Type]float64, len(c.constraints))}

	for _, constraint := range c.constraints {
		p := constraint.Evaluate(ctx)
		result.Penalties[constraint.Type()] = p
		result.Total += p
		if constraint.Category() == CategoryHard {
			result.HardPenalty += p
		} else {
			result.SoftPenalty += p
		}
	}
	result.Feasible = result.HardPenalty == 0
	return result
}

// IsFeasible 三类硬约束惩罚均为 0
func (c *Checker) IsFeasible(schedule *model.Schedule) bool {
	ctx := NewContext(schedule, c.rooms, c.overlap)
	for _, constraint := range c.ByCategory(CategoryHard) {
		if constraint.Evaluate(ctx) > 0 {
			return false
		}
	}
	return true
}
