package constraint

import (
	"github.com/paiban/kaowu/pkg/model"
)

// RoomConflictConstraint 同一考场同一天时间重叠
type RoomConflictConstraint struct {
	weight float64
}

// NewRoomConflictConstraint 创建考场冲突约束
func NewRoomConflictConstraint(weight float64) *RoomConflictConstraint {
	return &RoomConflictConstraint{weight: weight}
}

func (c *RoomConflictConstraint) Name() string       { return "考场冲突" }
func (c *RoomConflictConstraint) Type() Type         { return TypeRoomConflict }
func (c *RoomConflictConstraint) Category() Category { return CategoryHard }

// Evaluate 每对时间重叠的考试计一次惩罚
func (c *RoomConflictConstraint) Evaluate(ctx *Context) float64 {
	courses := ctx.Schedule.Courses
	groups := groupCourses(courses, func(course *model.Course) (groupKey, bool) {
		return groupKey{course.AssignedDate, course.AssignedRoom}, course.IsScheduled()
	})
	return c.weight * float64(countOverlappingPairs(ctx, courses, groups))
}

// RoomCapacityConstraint 考场容量不足
type RoomCapacityConstraint struct {
	weight float64
}

// NewRoomCapacityConstraint 创建考场容量约束
func NewRoomCapacityConstraint(weight float64) *RoomCapacityConstraint {
	return &RoomCapacityConstraint{weight: weight}
}

func (c *RoomCapacityConstraint) Name() string       { return "考场容量" }
func (c *RoomCapacityConstraint) Type() Type         { return TypeRoomCapacity }
func (c *RoomCapacityConstraint) Category() Category { return CategoryHard }

// Evaluate 超员惩罚随超出人数递增，考场不存在按一次超员计
func (c *RoomCapacityConstraint) Evaluate(ctx *Context) float64 {
	var penalty float64
	for i := range ctx.Schedule.Courses {
		course := &ctx.Schedule.Courses[i]
		if !course.IsScheduled() {
			continue
		}
		room, ok := ctx.Room(course.AssignedRoom)
		if !ok {
			penalty += c.weight
			continue
		}
		if course.StudentCount > room.Capacity {
			overflow := float64(course.StudentCount - room.Capacity)
			penalty += c.weight * (1 + overflow/10)
		}
	}
	return penalty
}

// ProctorConflictConstraint 同一监考同一天时间重叠
type ProctorConflictConstraint struct {
	weight float64
}

// NewProctorConflictConstraint 创建监考冲突约束
func NewProctorConflictConstraint(weight float64) *ProctorConflictConstraint {
	return &ProctorConflictConstraint{weight: weight}
}

func (c *ProctorConflictConstraint) Name() string       { return "监考冲突" }
func (c *ProctorConflictConstraint) Type() Type         { return TypeProctorConflict }
func (c *ProctorConflictConstraint) Category() Category { return CategoryHard }

// Evaluate 只检查已排考且已分配监考的科目
func (c *ProctorConflictConstraint) Evaluate(ctx *Context) float64 {
	courses := ctx.Schedule.Courses
	groups := groupCourses(courses, func(course *model.Course) (groupKey, bool) {
		ok := course.IsScheduled() && course.AssignedProctorID != ""
		return groupKey{course.AssignedDate, course.AssignedProctorID}, ok
	})
	return c.weight * float64(countOverlappingPairs(ctx, courses, groups))
}

// countOverlappingPairs 组内两两比较
func countOverlappingPairs(ctx *Context, courses []model.Course, groups [][]int) int {
	conflicts := 0
	for _, g := range groups {
		for i := 0; i < len(g); i++ {
			for j := i + 1; j < len(g); j++ {
				if ctx.Overlaps(&courses[g[i]], &courses[g[j]]) {
					conflicts++
				}
			}
		}
	}
	return conflicts
}

// LocationMismatchConstraint 考场不在科目要求的考点
type LocationMismatchConstraint struct {
	weight float64
}

// NewLocationMismatchConstraint 创建考点不符约束
func NewLocationMismatchConstraint(weight float64) *LocationMismatchConstraint {
	return &LocationMismatchConstraint{weight: weight}
}

func (c *LocationMismatchConstraint) Name() string       { return "考点不符" }
func (c *LocationMismatchConstraint) Type() Type         { return TypeLocationMismatch }
func (c *LocationMismatchConstraint) Category() Category { return CategorySoft }

func (c *LocationMismatchConstraint) Evaluate(ctx *Context) float64 {
	var penalty float64
	for i := range ctx.Schedule.Courses {
		course := &ctx.Schedule.Courses[i]
		if !course.IsScheduled() {
			continue
		}
		room, ok := ctx.Room(course.AssignedRoom)
		if ok && !model.SameLocation(room.Location, course.Location) {
			penalty += c.weight
		}
	}
	return penalty
}

// UnscheduledCourseConstraint 科目未完整排考
type UnscheduledCourseConstraint struct {
	weight float64
}

// NewUnscheduledCourseConstraint 创建未排考约束
func NewUnscheduledCourseConstraint(weight float64) *UnscheduledCourseConstraint {
	return &UnscheduledCourseConstraint{weight: weight}
}

func (c *UnscheduledCourseConstraint) Name() string       { return "未排考" }
func (c *UnscheduledCourseConstraint) Type() Type         { return TypeUnscheduledCourse }
func (c *UnscheduledCourseConstraint) Category() Category { return CategorySoft }

func (c *UnscheduledCourseConstraint) Evaluate(ctx *Context) float64 {
	var penalty float64
	for i := range ctx.Schedule.Courses {
		if !ctx.Schedule.Courses[i].IsScheduled() {
			penalty += c.weight
		}
	}
	return penalty
}

// UnderutilizationConstraint 考场利用率过低
type UnderutilizationConstraint struct {
	weight float64
}

// NewUnderutilizationConstraint 创建利用率约束
func NewUnderutilizationConstraint(weight float64) *UnderutilizationConstraint {
	return &UnderutilizationConstraint{weight: weight}
}

func (c *UnderutilizationConstraint) Name() string       { return "考场利用率" }
func (c *UnderutilizationConstraint) Type() Type         { return TypeUnderutilization }
func (c *UnderutilizationConstraint) Category() Category { return CategorySoft }

// Evaluate 惩罚与空座数成正比
func (c *UnderutilizationConstraint) Evaluate(ctx *Context) float64 {
	var penalty float64
	for i := range ctx.Schedule.Courses {
		course := &ctx.Schedule.Courses[i]
		if !course.IsScheduled() {
			continue
		}
		room, ok := ctx.Room(course.AssignedRoom)
		if !ok || room.Capacity <= 0 {
			continue
		}
		utilization := room.Utilization(course.StudentCount)
		if utilization < UnderutilizationThreshold {
			penalty += c.weight * (1 - utilization) * float64(room.Capacity)
		}
	}
	return penalty
}

// ProctorWorkloadConstraint 监考工作量上限（按周或按天）
type ProctorWorkloadConstraint struct {
	typ    Type
	weight float64
	limit  int
	bucket func(date string) (string, error)
}

// NewProctorWeeklyConstraint 每周（周一起算）监考场次上限
func NewProctorWeeklyConstraint(weight float64, maxPerWeek int) *ProctorWorkloadConstraint {
	return &ProctorWorkloadConstraint{
		typ:    TypeProctorWeeklyWorkload,
		weight: weight,
		limit:  maxPerWeek,
		bucket: model.WeekStart,
	}
}

// NewProctorDailyConstraint 每天监考场次上限
func NewProctorDailyConstraint(weight float64, maxPerDay int) *ProctorWorkloadConstraint {
	return &ProctorWorkloadConstraint{
		typ:    TypeProctorDailyWorkload,
		weight: weight,
		limit:  maxPerDay,
		bucket: dayBucket,
	}
}

func (c *ProctorWorkloadConstraint) Name() string {
	if c.typ == TypeProctorWeeklyWorkload {
		return "监考周工作量"
	}
	return "监考日工作量"
}

func (c *ProctorWorkloadConstraint) Type() Type         { return c.typ }
func (c *ProctorWorkloadConstraint) Category() Category { return CategorySoft }

// Evaluate 超出上限的每一场计一次惩罚，日期无法解析的记录跳过
func (c *ProctorWorkloadConstraint) Evaluate(ctx *Context) float64 {
	if c.limit <= 0 {
		return 0
	}
	counts := countBy(ctx.Schedule.Courses, func(course *model.Course) (groupKey, bool) {
		if course.AssignedProctorID == "" || course.AssignedDate == "" {
			return groupKey{}, false
		}
		b, err := c.bucket(course.AssignedDate)
		if err != nil {
			return groupKey{}, false
		}
		return groupKey{course.AssignedProctorID, b}, true
	})

	var penalty float64
	for _, n := range counts {
		if excess := n - c.limit; excess > 0 {
			penalty += c.weight * float64(excess)
		}
	}
	return penalty
}

// dayBucket 按自然日分桶
func dayBucket(date string) (string, error) {
	t, err := model.ParseDate(date)
	if err != nil {
		return "", err
	}
	return t.Format(model.DateLayout), nil
}
