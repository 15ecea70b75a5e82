// Package space 构建排考搜索空间：日期、时段、考场及科目拆分
package space

import (
	"fmt"
	"math"

	"github.com/paiban/kaowu/pkg/model"
)

const (
	// DefaultStartDate 未配置日期时的起始日期
	DefaultStartDate = "2025-06-01"
	// DefaultSpanDays 未配置日期时的天数
	DefaultSpanDays = 14
	// DefaultMaxCapacity 没有考场时的拆分基准
	DefaultMaxCapacity = 100
)

// DefaultTimeSlots 默认每日考试时段
func DefaultTimeSlots() []string {
	return []string{"07:30", "09:30", "13:30", "15:30"}
}

// Options 搜索空间配置
type Options struct {
	ExamDates []string // 显式日期列表，优先级最高
	StartDate string
	EndDate   string
	TimeSlots []string
}

// Slot 一个 (日期, 时段) 组合
type Slot struct {
	Date string `json:"date"`
	Time string `json:"time"`
}

// Space 搜索空间
type Space struct {
	Dates     []string
	TimeSlots []string
	Slots     []Slot // 日期 × 时段 展平，供粒子群编码使用
	Rooms     []model.Room

	maxCapacity         int
	maxCapacityByLocale map[string]int
}

// New 构建搜索空间
func New(rooms []model.Room, opts Options) (*Space, error) {
	dates, err := BuildDates(opts)
	if err != nil {
		return nil, err
	}
	slots := opts.TimeSlots
	if len(slots) == 0 {
		slots = DefaultTimeSlots()
	}

	s := &Space{
		Dates:               dates,
		TimeSlots:           append([]string(nil), slots...),
		Rooms:               append([]model.Room(nil), rooms...),
		maxCapacityByLocale: make(map[string]int),
	}
	for _, d := range s.Dates {
		for _, t := range s.TimeSlots {
			s.Slots = append(s.Slots, Slot{Date: d, Time: t})
		}
	}
	for _, r := range rooms {
		if r.Capacity > s.maxCapacity {
			s.maxCapacity = r.Capacity
		}
		loc := model.NormalizeLocation(r.Location)
		if r.Capacity > s.maxCapacityByLocale[loc] {
			s.maxCapacityByLocale[loc] = r.Capacity
		}
	}
	if s.maxCapacity == 0 {
		s.maxCapacity = DefaultMaxCapacity
	}
	return s, nil
}

// BuildDates 确定日期集合：显式列表 > 起止日期 > 默认区间
func BuildDates(opts Options) ([]string, error) {
	if len(opts.ExamDates) > 0 {
		dates := make([]string, 0, len(opts.ExamDates))
		for _, d := range opts.ExamDates {
			t, err := model.ParseDate(d)
			if err != nil {
				return nil, fmt.Errorf("考试日期 '%s' 格式错误: %w", d, err)
			}
			dates = append(dates, t.Format(model.DateLayout))
		}
		return dates, nil
	}

	if opts.StartDate != "" && opts.EndDate != "" {
		days, err := model.DateRange{StartDate: opts.StartDate, EndDate: opts.EndDate}.Days()
		if err != nil {
			return nil, fmt.Errorf("日期范围格式错误: %w", err)
		}
		if len(days) == 0 {
			return nil, fmt.Errorf("日期范围为空: %s ~ %s", opts.StartDate, opts.EndDate)
		}
		return days, nil
	}

	start, _ := model.ParseDate(DefaultStartDate)
	dates := make([]string, DefaultSpanDays)
	for i := range dates {
		dates[i] = start.AddDate(0, 0, i).Format(model.DateLayout)
	}
	return dates, nil
}

// NumSlots 展平后的时段数量（时间维度大小）
func (s *Space) NumSlots() int {
	return len(s.Slots)
}

// NumRooms 考场数量（考场维度大小）
func (s *Space) NumRooms() int {
	return len(s.Rooms)
}

// MaxCapacity 所有考场中的最大容量
func (s *Space) MaxCapacity() int {
	return s.maxCapacity
}

// SuitableRooms 指定考点中能容纳该人数的考场
func (s *Space) SuitableRooms(students int, location string) []model.Room {
	var result []model.Room
	for _, r := range s.Rooms {
		if model.SameLocation(r.Location, location) && r.CanAccommodate(students) {
			result = append(result, r)
		}
	}
	return result
}

// FindOptimalRoom 查找最合适的考场
// preferSmaller 为 true 时选择容量最小的可用考场，否则选择利用率最接近 80% 的考场
func (s *Space) FindOptimalRoom(students int, location string, preferSmaller bool) (model.Room, bool) {
	candidates := s.SuitableRooms(students, location)
	if len(candidates) == 0 {
		return model.Room{}, false
	}

	best := candidates[0]
	if preferSmaller {
		for _, r := range candidates[1:] {
			if r.Capacity < best.Capacity {
				best = r
			}
		}
		return best, true
	}

	bestScore := roomScore(best.Utilization(students))
	for _, r := range candidates[1:] {
		if score := roomScore(r.Utilization(students)); score > bestScore {
			best, bestScore = r, score
		}
	}
	return best, true
}

// roomScore 利用率评分：60%-90% 区间内越接近 80% 越好，区间外打折
func roomScore(utilization float64) float64 {
	switch {
	case utilization >= 0.6 && utilization <= 0.9:
		return 1 - math.Abs(utilization-0.8)
	case utilization < 0.6:
		return utilization * 0.5
	default:
		return (1 - utilization) * 0.5
	}
}
