// Package stats 提供排考方案统计分析功能
package stats

import (
	"sort"

	"github.com/paiban/kaowu/pkg/model"
)

// DefaultUnderutilization 考场利用率低于该值视为利用不足
const DefaultUnderutilization = 0.5

// CoverageMetrics 排考覆盖指标
type CoverageMetrics struct {
	// 整体
	TotalCourses     int     `json:"total_courses"`     // 科目（场次）总数
	ScheduledCourses int     `json:"scheduled_courses"` // 已排考数
	OverallCoverage  float64 `json:"overall_coverage"`  // 已排考比例 (%)
	TotalStudents    int     `json:"total_students"`

	// 按日期统计
	DailyCoverage map[string]DayCoverage `json:"daily_coverage"`

	// 按考点统计已排考比例 (%)
	LocationCoverage map[string]float64 `json:"location_coverage"`

	// 考场
	RoomUsage          []RoomUsage `json:"room_usage"`
	AverageUtilization float64     `json:"average_utilization"` // 已排考场次的平均利用率 (%)

	// 问题识别
	Unscheduled    []string         `json:"unscheduled"`      // 未排考科目
	Overfull       []SessionProblem `json:"overfull"`         // 人数超过考场容量
	Underutilized  []SessionProblem `json:"underutilized"`    // 利用率过低
	UnknownRoomIDs []string         `json:"unknown_room_ids"` // 引用了不存在的考场
}

// DayCoverage 每日排考情况
type DayCoverage struct {
	Date     string `json:"date"`
	Sessions int    `json:"sessions"`
	Students int    `json:"students"`
	Rooms    int    `json:"rooms"` // 使用的不同考场数
}

// RoomUsage 考场使用情况
type RoomUsage struct {
	RoomID             string  `json:"room_id"`
	Location           string  `json:"location"`
	Capacity           int     `json:"capacity"`
	Sessions           int     `json:"sessions"`
	AverageUtilization float64 `json:"average_utilization"` // (%)
}

// SessionProblem 单场考试的问题
type SessionProblem struct {
	CourseID    string  `json:"course_id"`
	RoomID      string  `json:"room_id"`
	Date        string  `json:"date"`
	Time        string  `json:"time"`
	Students    int     `json:"students"`
	Capacity    int     `json:"capacity"`
	Utilization float64 `json:"utilization"` // (%)
}

// CoverageAnalyzer 覆盖率分析器
type CoverageAnalyzer struct {
	underutilization float64
}

// NewCoverageAnalyzer 创建覆盖率分析器
func NewCoverageAnalyzer() *CoverageAnalyzer {
	return &CoverageAnalyzer{underutilization: DefaultUnderutilization}
}

// SetUnderutilizationThreshold 设置利用不足阈值 (0-1)
func (c *CoverageAnalyzer) SetUnderutilizationThreshold(threshold float64) {
	c.underutilization = threshold
}

// Analyze 分析方案的排考覆盖与考场使用
func (c *CoverageAnalyzer) Analyze(schedule *model.Schedule, rooms []model.Room) *CoverageMetrics {
	metrics := &CoverageMetrics{
		DailyCoverage:    make(map[string]DayCoverage),
		LocationCoverage: make(map[string]float64),
		OverallCoverage:  100,
	}
	if schedule == nil || schedule.Len() == 0 {
		return metrics
	}

	roomIndex := model.IndexRooms(rooms)
	usage := make(map[string]*RoomUsage, len(rooms))
	for _, r := range rooms {
		usage[r.ID] = &RoomUsage{RoomID: r.ID, Location: r.Location, Capacity: r.Capacity}
	}

	locationTotals := make(map[string]int)
	locationScheduled := make(map[string]int)
	dailyRooms := make(map[string]map[string]bool)
	unknown := make(map[string]bool)
	utilSum := 0.0
	utilCount := 0

	metrics.TotalCourses = schedule.Len()
	for _, course := range schedule.Courses {
		metrics.TotalStudents += course.StudentCount
		loc := model.NormalizeLocation(course.Location)
		locationTotals[loc]++

		if !course.IsScheduled() {
			metrics.Unscheduled = append(metrics.Unscheduled, course.ID)
			continue
		}
		metrics.ScheduledCourses++
		locationScheduled[loc]++

		day := metrics.DailyCoverage[course.AssignedDate]
		day.Date = course.AssignedDate
		day.Sessions++
		day.Students += course.StudentCount
		if dailyRooms[course.AssignedDate] == nil {
			dailyRooms[course.AssignedDate] = make(map[string]bool)
		}
		dailyRooms[course.AssignedDate][course.AssignedRoom] = true
		day.Rooms = len(dailyRooms[course.AssignedDate])
		metrics.DailyCoverage[course.AssignedDate] = day

		room, ok := roomIndex[course.AssignedRoom]
		if !ok {
			unknown[course.AssignedRoom] = true
			continue
		}
		util := room.Utilization(course.StudentCount)
		utilSum += util
		utilCount++

		u := usage[room.ID]
		u.AverageUtilization += util
		u.Sessions++

		problem := SessionProblem{
			CourseID:    course.ID,
			RoomID:      room.ID,
			Date:        course.AssignedDate,
			Time:        course.AssignedTime,
			Students:    course.StudentCount,
			Capacity:    room.Capacity,
			Utilization: util * 100,
		}
		switch {
		case !room.CanAccommodate(course.StudentCount):
			metrics.Overfull = append(metrics.Overfull, problem)
		case util < c.underutilization:
			metrics.Underutilized = append(metrics.Underutilized, problem)
		}
	}

	metrics.OverallCoverage = float64(metrics.ScheduledCourses) / float64(metrics.TotalCourses) * 100
	for loc, total := range locationTotals {
		metrics.LocationCoverage[loc] = float64(locationScheduled[loc]) / float64(total) * 100
	}
	if utilCount > 0 {
		metrics.AverageUtilization = utilSum / float64(utilCount) * 100
	}

	metrics.RoomUsage = make([]RoomUsage, 0, len(rooms))
	for _, r := range rooms {
		u := usage[r.ID]
		if u.Sessions > 0 {
			u.AverageUtilization = u.AverageUtilization / float64(u.Sessions) * 100
		}
		metrics.RoomUsage = append(metrics.RoomUsage, *u)
	}

	for id := range unknown {
		metrics.UnknownRoomIDs = append(metrics.UnknownRoomIDs, id)
	}
	sort.Strings(metrics.UnknownRoomIDs)

	return metrics
}
