// Package csvio 提供科目、考场、监考老师的 CSV 导入与排考结果导出
package csvio

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"

	"github.com/gocarina/gocsv"

	"github.com/paiban/kaowu/pkg/errors"
	"github.com/paiban/kaowu/pkg/model"
)

// DefaultDelimiter 默认分隔符
const DefaultDelimiter = ','

// Loader CSV 读取器
type Loader struct {
	delimiter rune
}

// NewLoader 创建读取器，delimiter 为 0 时使用逗号
func NewLoader(delimiter rune) *Loader {
	if delimiter == 0 {
		delimiter = DefaultDelimiter
	}
	return &Loader{delimiter: delimiter}
}

// ReadCourses 读取科目
func (l *Loader) ReadCourses(in io.Reader) ([]model.Course, error) {
	var courses []model.Course
	if err := l.unmarshal(in, &courses); err != nil {
		return nil, errors.Wrap(err, errors.CodeInvalidInput, "科目数据解析失败")
	}
	ve := &errors.ValidationErrors{}
	seen := make(map[string]bool, len(courses))
	for i, c := range courses {
		row := i + 2
		switch {
		case c.ID == "":
			ve.Add(fmt.Sprintf("courses[%d].course_id", row), "不能为空")
		case seen[c.ID]:
			ve.Add(fmt.Sprintf("courses[%d].course_id", row), "重复的科目编号 "+c.ID)
		}
		if c.StudentCount < 0 {
			ve.Add(fmt.Sprintf("courses[%d].student_count", row), "不能为负数")
		}
		seen[c.ID] = true
	}
	if ve.HasErrors() {
		return nil, ve.ToAppError()
	}
	return courses, nil
}

// ReadRooms 读取考场
func (l *Loader) ReadRooms(in io.Reader) ([]model.Room, error) {
	var rooms []model.Room
	if err := l.unmarshal(in, &rooms); err != nil {
		return nil, errors.Wrap(err, errors.CodeInvalidInput, "考场数据解析失败")
	}
	ve := &errors.ValidationErrors{}
	for i, r := range rooms {
		row := i + 2
		if r.ID == "" {
			ve.Add(fmt.Sprintf("rooms[%d].room_id", row), "不能为空")
		}
		if r.Capacity <= 0 {
			ve.Add(fmt.Sprintf("rooms[%d].capacity", row), "必须大于0")
		}
	}
	if ve.HasErrors() {
		return nil, ve.ToAppError()
	}
	return rooms, nil
}

// ReadProctors 读取监考老师
func (l *Loader) ReadProctors(in io.Reader) ([]model.Proctor, error) {
	var proctors []model.Proctor
	if err := l.unmarshal(in, &proctors); err != nil {
		return nil, errors.Wrap(err, errors.CodeInvalidInput, "监考数据解析失败")
	}
	for i, p := range proctors {
		if p.ID == "" {
			return nil, errors.InvalidInput(fmt.Sprintf("proctors[%d].proctor_id", i+2), "不能为空")
		}
	}
	return proctors, nil
}

// LoadCourses 从文件读取科目
func (l *Loader) LoadCourses(path string) ([]model.Course, error) {
	var courses []model.Course
	err := withFile(path, func(f io.Reader) (err error) {
		courses, err = l.ReadCourses(f)
		return err
	})
	return courses, err
}

// LoadRooms 从文件读取考场
func (l *Loader) LoadRooms(path string) ([]model.Room, error) {
	var rooms []model.Room
	err := withFile(path, func(f io.Reader) (err error) {
		rooms, err = l.ReadRooms(f)
		return err
	})
	return rooms, err
}

// LoadProctors 从文件读取监考老师，path 为空时返回空列表
func (l *Loader) LoadProctors(path string) ([]model.Proctor, error) {
	if path == "" {
		return nil, nil
	}
	var proctors []model.Proctor
	err := withFile(path, func(f io.Reader) (err error) {
		proctors, err = l.ReadProctors(f)
		return err
	})
	return proctors, err
}

func (l *Loader) unmarshal(in io.Reader, out interface{}) error {
	r := csv.NewReader(in)
	r.Comma = l.delimiter
	r.TrimLeadingSpace = true
	return gocsv.UnmarshalCSV(r, out)
}

func withFile(path string, fn func(io.Reader) error) error {
	f, err := os.Open(path)
	if err != nil {
		return errors.Wrap(err, errors.CodeInvalidInput, "无法打开文件 "+path)
	}
	defer f.Close()
	return fn(f)
}
