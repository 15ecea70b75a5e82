package space

import (
	"fmt"

	"github.com/paiban/kaowu/pkg/model"
)

// SplitReport 拆分记录
type SplitReport struct {
	CourseID string   `json:"course_id"`
	Units    []string `json:"units"`
}

// PrepareCourses 预处理科目：对单个考场容纳不下的科目拆分为多个场次
func (s *Space) PrepareCourses(courses []model.Course) ([]model.Course, []SplitReport) {
	processed := make([]model.Course, 0, len(courses))
	var reports []SplitReport

	for _, c := range courses {
		if !s.needsSplit(c) {
			processed = append(processed, c)
			continue
		}
		units := SplitCourse(c, s.splitCapacity(c.Location))
		if len(units) <= 1 {
			processed = append(processed, c)
			continue
		}
		report := SplitReport{CourseID: c.ID}
		for _, u := range units {
			report.Units = append(report.Units, u.ID)
		}
		reports = append(reports, report)
		processed = append(processed, units...)
	}
	return processed, reports
}

// needsSplit 超过最大考场容量或本考点没有能容纳的考场
func (s *Space) needsSplit(c model.Course) bool {
	if c.IsFixed() || c.StudentCount <= 0 {
		return false
	}
	if c.StudentCount > s.maxCapacity {
		return true
	}
	return len(s.SuitableRooms(c.StudentCount, c.Location)) == 0
}

// splitCapacity 拆分基准：本考点最大考场容量，考点无考场时使用全局最大容量
func (s *Space) splitCapacity(location string) int {
	if c := s.maxCapacityByLocale[model.NormalizeLocation(location)]; c > 0 {
		return c
	}
	return s.maxCapacity
}

// SplitCourse 将科目按容量均分为若干场次，余数分配给前面的场次
func SplitCourse(c model.Course, maxCapacity int) []model.Course {
	if maxCapacity <= 0 {
		maxCapacity = DefaultMaxCapacity
	}
	n := (c.StudentCount + maxCapacity - 1) / maxCapacity
	if n <= 1 {
		return []model.Course{c}
	}

	base := c.StudentCount / n
	remainder := c.StudentCount % n
	units := make([]model.Course, n)
	for i := 0; i < n; i++ {
		u := c
		u.ID = fmt.Sprintf("%s_C%d", c.ID, i+1)
		u.StudentCount = base
		if i < remainder {
			u.StudentCount++
		}
		if c.Note != "" {
			u.Note = fmt.Sprintf("%s (场次 %d)", c.Note, i+1)
		} else {
			u.Note = fmt.Sprintf("场次 %d", i+1)
		}
		u.IsLocked = false
		u.ClearSchedule()
		units[i] = u
	}
	return units
}
