// Package model 定义考试排考引擎的核心数据模型
package model

import (
	"strings"
	"time"
)

const (
	// DateLayout 日期格式
	DateLayout = "2006-01-02"
	// ClockLayout 时刻格式
	ClockLayout = "15:04"
	// DefaultDuration 默认考试时长（分钟）
	DefaultDuration = 90
)

// ClockRange 一天内的时间区间 [Start, End)，单位为分钟
type ClockRange struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

// NewClockRange 根据 "HH:MM" 起始时刻与时长创建时间区间
func NewClockRange(clock string, duration int) (ClockRange, error) {
	t, err := time.Parse(ClockLayout, strings.TrimSpace(clock))
	if err != nil {
		return ClockRange{}, err
	}
	start := t.Hour()*60 + t.Minute()
	return ClockRange{Start: start, End: start + duration}, nil
}

// Overlaps 检查两个区间是否重叠（端点相接不算重叠）
func (r ClockRange) Overlaps(other ClockRange) bool {
	return r.Start < other.End && other.Start < r.End
}

// ClockOverlaps 判断两场考试时间是否重叠，时刻无法解析时视为不重叠
func ClockOverlaps(time1 string, duration1 int, time2 string, duration2 int) bool {
	r1, err := NewClockRange(time1, duration1)
	if err != nil {
		return false
	}
	r2, err := NewClockRange(time2, duration2)
	if err != nil {
		return false
	}
	return r1.Overlaps(r2)
}

// ParseDate 解析 YYYY-MM-DD 日期
func ParseDate(date string) (time.Time, error) {
	return time.Parse(DateLayout, strings.TrimSpace(date))
}

// WeekStart 返回日期所在周的周一
func WeekStart(date string) (string, error) {
	t, err := ParseDate(date)
	if err != nil {
		return "", err
	}
	offset := (int(t.Weekday()) + 6) % 7
	return t.AddDate(0, 0, -offset).Format(DateLayout), nil
}

// DateRange 日期范围
type DateRange struct {
	StartDate string `json:"start_date"` // YYYY-MM-DD
	EndDate   string `json:"end_date"`   // YYYY-MM-DD
}

// Contains 检查日期是否在范围内（含两端）
func (dr DateRange) Contains(date string) bool {
	return date >= dr.StartDate && date <= dr.EndDate
}

// Days 返回范围内的所有日期
func (dr DateRange) Days() ([]string, error) {
	start, err := ParseDate(dr.StartDate)
	if err != nil {
		return nil, err
	}
	end, err := ParseDate(dr.EndDate)
	if err != nil {
		return nil, err
	}
	var days []string
	for d := start; !d.After(end); d = d.AddDate(0, 0, 1) {
		days = append(days, d.Format(DateLayout))
	}
	return days, nil
}

// NormalizeLocation 规范化考点名称（去空白、小写）
func NormalizeLocation(location string) string {
	return strings.ToLower(strings.TrimSpace(location))
}

// SameLocation 比较两个考点是否相同
func SameLocation(a, b string) bool {
	return NormalizeLocation(a) == NormalizeLocation(b)
}
