package model

// Schedule 排考方案：一组科目及其适应度（越低越好）
type Schedule struct {
	Courses      []Course `json:"courses"`
	FitnessScore float64  `json:"fitness_score"`
}

// NewSchedule 用给定科目的副本创建方案
func NewSchedule(courses []Course) *Schedule {
	s := &Schedule{Courses: make([]Course, len(courses))}
	copy(s.Courses, courses)
	return s
}

// Clone 深拷贝方案
func (s *Schedule) Clone() *Schedule {
	if s == nil {
		return nil
	}
	clone := NewSchedule(s.Courses)
	clone.FitnessScore = s.FitnessScore
	return clone
}

// Len 科目数量
func (s *Schedule) Len() int {
	return len(s.Courses)
}

// ScheduledCount 已排考科目数量
func (s *Schedule) ScheduledCount() int {
	n := 0
	for i := range s.Courses {
		if s.Courses[i].IsScheduled() {
			n++
		}
	}
	return n
}

// IsComplete 是否所有科目都已排考
func (s *Schedule) IsComplete() bool {
	return s.ScheduledCount() == len(s.Courses)
}

// Find 按ID查找科目
func (s *Schedule) Find(courseID string) (*Course, bool) {
	for i := range s.Courses {
		if s.Courses[i].ID == courseID {
			return &s.Courses[i], true
		}
	}
	return nil, false
}

// ProctorLoad 统计每位监考老师的场次
func (s *Schedule) ProctorLoad() map[string]int {
	load := make(map[string]int)
	for i := range s.Courses {
		if id := s.Courses[i].AssignedProctorID; id != "" {
			load[id]++
		}
	}
	return load
}
