package model

import "fmt"

// Course 考试科目（一个排考单元）
type Course struct {
	ID           string `json:"course_id" csv:"course_id" validate:"required"`
	Name         string `json:"name" csv:"name"`
	Location     string `json:"location" csv:"location" validate:"required"`
	ExamFormat   string `json:"exam_format,omitempty" csv:"exam_format"`
	Note         string `json:"note,omitempty" csv:"note"`
	StudentCount int    `json:"student_count" csv:"student_count" validate:"gte=0"`
	Duration     int    `json:"duration" csv:"duration" validate:"gte=0"` // 分钟
	IsLocked     bool   `json:"is_locked" csv:"is_locked"`

	// 排考结果，空字符串表示未分配
	AssignedDate      string `json:"assigned_date,omitempty" csv:"assigned_date"`
	AssignedTime      string `json:"assigned_time,omitempty" csv:"assigned_time"`
	AssignedRoom      string `json:"assigned_room,omitempty" csv:"assigned_room"`
	AssignedProctorID string `json:"assigned_proctor_id,omitempty" csv:"assigned_proctor_id"`
}

// Assignment 科目的分配快照，用于回滚
type Assignment struct {
	Date      string `json:"date"`
	Time      string `json:"time"`
	Room      string `json:"room"`
	ProctorID string `json:"proctor_id"`
}

// IsScheduled 日期、时间、考场均已分配（监考不是必需项）
func (c *Course) IsScheduled() bool {
	return c.AssignedDate != "" && c.AssignedTime != "" && c.AssignedRoom != ""
}

// IsFixed 已锁定且已完整排考的科目，日期/时间/考场不可修改
func (c *Course) IsFixed() bool {
	return c.IsLocked && c.IsScheduled()
}

// ExamDuration 返回考试时长，未设置时使用默认值
func (c *Course) ExamDuration() int {
	if c.Duration <= 0 {
		return DefaultDuration
	}
	return c.Duration
}

// Assignment 返回当前分配
func (c *Course) Assignment() Assignment {
	return Assignment{
		Date:      c.AssignedDate,
		Time:      c.AssignedTime,
		Room:      c.AssignedRoom,
		ProctorID: c.AssignedProctorID,
	}
}

// Restore 恢复分配
func (c *Course) Restore(a Assignment) {
	c.AssignedDate = a.Date
	c.AssignedTime = a.Time
	c.AssignedRoom = a.Room
	c.AssignedProctorID = a.ProctorID
}

// ClearSchedule 清除排考结果
func (c *Course) ClearSchedule() {
	c.Restore(Assignment{})
}

// String 实现 Stringer
func (c Course) String() string {
	return fmt.Sprintf("%s(%s, %d人)", c.ID, c.Name, c.StudentCount)
}
