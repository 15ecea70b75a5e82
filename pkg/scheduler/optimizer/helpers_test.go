package optimizer

import (
	"testing"

	"github.com/paiban/kaowu/pkg/model"
)

func testCourses() []model.Course {
	return []model.Course{
		{ID: "C1", Name: "高等数学", Location: "A", StudentCount: 25, Duration: 120},
		{ID: "C2", Name: "大学英语", Location: "A", StudentCount: 20, Duration: 120},
		{ID: "C3", Name: "线性代数", Location: "B", StudentCount: 30, Duration: 120},
		{ID: "C4", Name: "概率统计", Location: "B", StudentCount: 22, Duration: 120},
	}
}

func testRooms() []model.Room {
	return []model.Room{
		{ID: "R1", Capacity: 30, Location: "A"},
		{ID: "R2", Capacity: 25, Location: "A"},
		{ID: "R3", Capacity: 40, Location: "B"},
	}
}

func testProctors() []model.Proctor {
	return []model.Proctor{
		{ID: "P1", Name: "张老师", Location: "A"},
		{ID: "P2", Name: "李老师", Location: "A"},
		{ID: "P3", Name: "王老师", Location: "B"},
	}
}

func lockedCourse() model.Course {
	return model.Course{
		ID:                "L1",
		Name:              "体育理论",
		Location:          "A",
		StudentCount:      20,
		Duration:          90,
		IsLocked:          true,
		AssignedDate:      "2025-12-03",
		AssignedTime:      "09:30",
		AssignedRoom:      "R2",
		AssignedProctorID: "P1",
	}
}

func windowSettings(extra map[string]interface{}) map[string]interface{} {
	settings := map[string]interface{}{
		"start_date": "2025-12-01",
		"end_date":   "2025-12-10",
		"seed":       42,
	}
	for k, v := range extra {
		settings[k] = v
	}
	return settings
}

// panicEvaluator 用于测试异常处理
type panicEvaluator struct{}

func (panicEvaluator) Evaluate(*model.Schedule) float64 {
	panic("evaluator exploded")
}

// eventRecorder 收集观察者事件
type eventRecorder struct {
	steps    []StepEvent
	progress []int
	logs     []string
	errs     []error
	finished []*model.Schedule
}

func (r *eventRecorder) OnStep(e StepEvent) { r.steps = append(r.steps, e) }
func (r *eventRecorder) OnProgress(p int) { r.progress = append(r.progress, p) }
func (r *eventRecorder) OnLog(msg string) { r.logs = append(r.logs, msg) }
func (r *eventRecorder) OnError(err error) { r.errs = append(r.errs, err) }
func (r *eventRecorder) OnFinished(s *model.Schedule) { r.finished = append(r.finished, s) }

func assertWithinWindow(t *testing.T, s *model.Schedule, from, to string) {
	t.Helper()
	for _, c := range s.Courses {
		if c.IsFixed() {
			continue
		}
		if c.AssignedDate < from || c.AssignedDate > to {
			t.Errorf("Course %s scheduled on %s outside [%s, %s]", c.ID, c.AssignedDate, from, to)
		}
	}
}

func monotonic(history []float64) bool {
	for i := 1; i < len(history); i++ {
		if history[i] > history[i-1] {
			return false
		}
	}
	return true
}
