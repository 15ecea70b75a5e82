package csvio

import (
	"encoding/csv"
	"io"
	"os"
	"sort"

	"github.com/gocarina/gocsv"

	"github.com/paiban/kaowu/pkg/errors"
	"github.com/paiban/kaowu/pkg/model"
)

// ScheduleRow 导出的排考行，列名与科目导入一致，可直接作为 evaluate 的输入
type ScheduleRow struct {
	Date         string `csv:"assigned_date"`
	Time         string `csv:"assigned_time"`
	CourseID     string `csv:"course_id"`
	CourseName   string `csv:"name"`
	Location     string `csv:"location"`
	StudentCount int    `csv:"student_count"`
	Duration     int    `csv:"duration"`
	IsLocked     bool   `csv:"is_locked"`
	RoomID       string `csv:"assigned_room"`
	ProctorID    string `csv:"assigned_proctor_id"`
	ProctorName  string `csv:"proctor_name"`
}

// Rows 按日期、时间、考场排序生成导出行，未排考科目排在最后
func Rows(schedule *model.Schedule, proctors []model.Proctor) []*ScheduleRow {
	if schedule == nil {
		return nil
	}
	names := make(map[string]string, len(proctors))
	for _, p := range proctors {
		names[p.ID] = p.Name
	}

	rows := make([]*ScheduleRow, 0, len(schedule.Courses))
	for i := range schedule.Courses {
		c := &schedule.Courses[i]
		rows = append(rows, &ScheduleRow{
			Date:         c.AssignedDate,
			Time:         c.AssignedTime,
			CourseID:     c.ID,
			CourseName:   c.Name,
			Location:     c.Location,
			StudentCount: c.StudentCount,
			Duration:     c.ExamDuration(),
			IsLocked:     c.IsLocked,
			RoomID:       c.AssignedRoom,
			ProctorID:    c.AssignedProctorID,
			ProctorName:  names[c.AssignedProctorID],
		})
	}

	sort.SliceStable(rows, func(i, j int) bool {
		a, b := rows[i], rows[j]
		if (a.Date == "") != (b.Date == "") {
			return b.Date == ""
		}
		if a.Date != b.Date {
			return a.Date < b.Date
		}
		if a.Time != b.Time {
			return a.Time < b.Time
		}
		return a.RoomID < b.RoomID
	})
	return rows
}

// WriteSchedule 将排考结果写为 CSV
func WriteSchedule(out io.Writer, schedule *model.Schedule, proctors []model.Proctor) error {
	rows := Rows(schedule, proctors)
	w := gocsv.NewSafeCSVWriter(csv.NewWriter(out))
	if err := gocsv.MarshalCSV(&rows, w); err != nil {
		return errors.Wrap(err, errors.CodeInternal, "导出排考结果失败")
	}
	return nil
}

// ExportSchedule 将排考结果写入文件，已存在时覆盖
func ExportSchedule(path string, schedule *model.Schedule, proctors []model.Proctor) error {
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrap(err, errors.CodeInternal, "无法创建文件 "+path)
	}
	if err := WriteSchedule(f, schedule, proctors); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
