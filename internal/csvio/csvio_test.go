package csvio

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/paiban/kaowu/pkg/errors"
	"github.com/paiban/kaowu/pkg/model"
)

const coursesCSV = `course_id,name,location,student_count,duration,is_locked,assigned_date,assigned_time,assigned_room,assigned_proctor_id
C1,高等数学,A,25,120,false,,,,
C2,大学英语,A,20,,true,2025-12-03,09:30,R1,P1
C3,线性代数,B,30,90,false,,,,
`

func TestLoader_ReadCourses(t *testing.T) {
	courses, err := NewLoader(0).ReadCourses(strings.NewReader(coursesCSV))
	require.NoError(t, err)
	require.Len(t, courses, 3)

	assert.Equal(t, "C1", courses[0].ID)
	assert.Equal(t, "高等数学", courses[0].Name)
	assert.Equal(t, 25, courses[0].StudentCount)
	assert.Equal(t, 120, courses[0].ExamDuration())
	assert.False(t, courses[0].IsScheduled())

	assert.True(t, courses[1].IsFixed())
	assert.Equal(t, model.DefaultDuration, courses[1].ExamDuration())
	assert.Equal(t, "R1", courses[1].AssignedRoom)
	assert.Equal(t, "P1", courses[1].AssignedProctorID)
}

func TestLoader_Delimiter(t *testing.T) {
	in := "room_id;capacity;location\nR1;30;A\nR2;40;B\n"
	rooms, err := NewLoader(';').ReadRooms(strings.NewReader(in))
	require.NoError(t, err)
	assert.Equal(t, []model.Room{
		{ID: "R1", Capacity: 30, Location: "A"},
		{ID: "R2", Capacity: 40, Location: "B"},
	}, rooms)
}

func TestLoader_Validation(t *testing.T) {
	l := NewLoader(0)

	_, err := l.ReadCourses(strings.NewReader("course_id,name,location,student_count\nC1,a,A,10\nC1,b,A,5\n"))
	assert.Equal(t, errors.CodeValidationFail, errors.GetCode(err))

	_, err = l.ReadCourses(strings.NewReader("course_id,name,location,student_count\n,a,A,10\n"))
	assert.Equal(t, errors.CodeValidationFail, errors.GetCode(err))

	_, err = l.ReadRooms(strings.NewReader("room_id,capacity,location\nR1,0,A\n"))
	assert.Equal(t, errors.CodeValidationFail, errors.GetCode(err))

	_, err = l.ReadRooms(strings.NewReader("room_id,capacity,location\nR1,many,A\n"))
	assert.Equal(t, errors.CodeInvalidInput, errors.GetCode(err))

	_, err = l.ReadProctors(strings.NewReader("proctor_id,name\n,王老师\n"))
	assert.Equal(t, errors.CodeInvalidInput, errors.GetCode(err))
}

func TestLoader_Files(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "proctors.csv")
	require.NoError(t, os.WriteFile(path, []byte("proctor_id,name,location\nP1,张老师,A\nP2,李老师,B\n"), 0o644))

	l := NewLoader(0)
	proctors, err := l.LoadProctors(path)
	require.NoError(t, err)
	assert.Len(t, proctors, 2)
	assert.Equal(t, "李老师", proctors[1].Name)

	proctors, err = l.LoadProctors("")
	require.NoError(t, err)
	assert.Nil(t, proctors)

	_, err = l.LoadCourses(filepath.Join(dir, "missing.csv"))
	assert.Equal(t, errors.CodeInvalidInput, errors.GetCode(err))
}

func TestWriteSchedule_RoundTrip(t *testing.T) {
	schedule := model.NewSchedule([]model.Course{
		{ID: "C1", Name: "高等数学", Location: "A", StudentCount: 25, Duration: 120,
			AssignedDate: "2025-12-02", AssignedTime: "14:00", AssignedRoom: "R1", AssignedProctorID: "P1"},
		{ID: "C2", Name: "大学英语", Location: "A", StudentCount: 20},
		{ID: "C3", Name: "线性代数", Location: "B", StudentCount: 30, Duration: 90, IsLocked: true,
			AssignedDate: "2025-12-02", AssignedTime: "09:30", AssignedRoom: "R2", AssignedProctorID: "P2"},
	})
	proctors := []model.Proctor{{ID: "P1", Name: "张老师"}, {ID: "P2", Name: "李老师"}}

	var buf bytes.Buffer
	require.NoError(t, WriteSchedule(&buf, schedule, proctors))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 4)
	assert.Equal(t, "assigned_date,assigned_time,course_id,name,location,student_count,duration,is_locked,assigned_room,assigned_proctor_id,proctor_name", lines[0])
	assert.True(t, strings.HasPrefix(lines[1], "2025-12-02,09:30,C3,"))
	assert.True(t, strings.HasSuffix(lines[1], ",R2,P2,李老师"))
	assert.True(t, strings.HasPrefix(lines[2], "2025-12-02,14:00,C1,"))
	assert.True(t, strings.HasPrefix(lines[3], ",,C2,"))

	courses, err := NewLoader(0).ReadCourses(&buf)
	require.NoError(t, err)
	require.Len(t, courses, 3)
	assert.Equal(t, "C3", courses[0].ID)
	assert.True(t, courses[0].IsFixed())
	assert.Equal(t, model.DefaultDuration, courses[2].Duration)
	assert.False(t, courses[2].IsScheduled())
}

func TestExportSchedule(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.csv")
	schedule := model.NewSchedule([]model.Course{{ID: "C1", Location: "A", StudentCount: 1}})

	require.NoError(t, ExportSchedule(path, schedule, nil))
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), ",C1,")
}
