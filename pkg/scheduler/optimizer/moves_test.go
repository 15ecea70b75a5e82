package optimizer

import (
	"math/rand"
	"reflect"
	"testing"

	"github.com/paiban/kaowu/pkg/model"
	"github.com/paiban/kaowu/pkg/scheduler/space"
)

func newTestNeighborhood(t *testing.T, courses []model.Course) (*neighborhood, *model.Schedule) {
	t.Helper()
	sp, err := space.New(testRooms(), space.Options{StartDate: "2025-12-01", EndDate: "2025-12-10"})
	if err != nil {
		t.Fatalf("space.New failed: %v", err)
	}
	frozen := make([]bool, len(courses))
	for i := range courses {
		frozen[i] = courses[i].IsFixed()
	}
	n := newNeighborhood(rand.New(rand.NewSource(7)), sp, testProctors(), frozen)

	s := model.NewSchedule(courses)
	for i := range s.Courses {
		if frozen[i] {
			continue
		}
		s.Courses[i].AssignedDate = n.randomDate()
		s.Courses[i].AssignedTime = n.randomTime()
		s.Courses[i].AssignedRoom = n.initialRoom(&s.Courses[i])
		s.Courses[i].AssignedProctorID = n.randomProctor()
	}
	return n, s
}

func TestMove_UndoRestoresSchedule(t *testing.T) {
	for _, typ := range []NeighborType{NeighborSwap, NeighborRandom, NeighborSmart} {
		t.Run(string(typ), func(t *testing.T) {
			n, s := newTestNeighborhood(t, append(testCourses(), lockedCourse()))
			original := s.Clone()

			for i := 0; i < 200; i++ {
				move := n.Perturb(s, typ)
				move.Undo(s)
				if !reflect.DeepEqual(s.Courses, original.Courses) {
					t.Fatalf("Iteration %d: undo did not restore schedule", i)
				}
			}
		})
	}
}

func TestMove_UndoInReverseOrder(t *testing.T) {
	s := model.NewSchedule([]model.Course{{ID: "C1", AssignedDate: "2025-12-01"}})

	move := &Move{}
	move.save(s, 0)
	s.Courses[0].AssignedDate = "2025-12-02"
	move.save(s, 0)
	s.Courses[0].AssignedDate = "2025-12-03"

	move.Undo(s)
	if got := s.Courses[0].AssignedDate; got != "2025-12-01" {
		t.Errorf("Expected the earliest snapshot to win, got %s", got)
	}
	if len(move.Indices()) != 2 {
		t.Errorf("Expected 2 recorded indices, got %d", len(move.Indices()))
	}
}

func TestNeighborhood_FrozenCoursesUntouched(t *testing.T) {
	for _, typ := range []NeighborType{NeighborSwap, NeighborRandom, NeighborSmart} {
		t.Run(string(typ), func(t *testing.T) {
			n, s := newTestNeighborhood(t, append(testCourses(), lockedCourse()))
			want := lockedCourse()

			for i := 0; i < 500; i++ {
				n.Perturb(s, typ)
				locked := s.Courses[len(s.Courses)-1]
				if locked.AssignedDate != want.AssignedDate || locked.AssignedTime != want.AssignedTime || locked.AssignedRoom != want.AssignedRoom {
					t.Fatalf("Iteration %d: locked course moved to %s %s %s", i,
						locked.AssignedDate, locked.AssignedTime, locked.AssignedRoom)
				}
			}
		})
	}
}

func TestNeighborhood_SwapExchangesAssignments(t *testing.T) {
	n, s := newTestNeighborhood(t, testCourses())
	before := s.Clone()

	move := n.Perturb(s, NeighborSwap)
	idx := move.Indices()
	if len(idx) != 2 || idx[0] == idx[1] {
		t.Fatalf("Expected two distinct indices, got %v", idx)
	}
	i, j := idx[0], idx[1]
	if s.Courses[i].Assignment() != before.Courses[j].Assignment() ||
		s.Courses[j].Assignment() != before.Courses[i].Assignment() {
		t.Errorf("Expected assignments of %d and %d to be exchanged", i, j)
	}
}

func TestNeighborhood_OnlyProctorWhenNothingMovable(t *testing.T) {
	locked := lockedCourse()
	n, s := newTestNeighborhood(t, []model.Course{locked})

	for i := 0; i < 50; i++ {
		move := n.Perturb(s, NeighborRandom)
		if len(move.Indices()) != 1 {
			t.Fatalf("Expected a single proctor change, got %v", move.Indices())
		}
		c := s.Courses[0]
		if c.AssignedDate != locked.AssignedDate || c.AssignedRoom != locked.AssignedRoom {
			t.Fatalf("Locked course moved")
		}
	}
}

func TestNeighborhood_SmartFixesLocationMismatch(t *testing.T) {
	course := model.Course{
		ID:                "C1",
		Location:          "A",
		StudentCount:      20,
		AssignedDate:      "2025-12-01",
		AssignedTime:      "07:30",
		AssignedRoom:      "R3",
		AssignedProctorID: "P1",
	}
	n, s := newTestNeighborhood(t, []model.Course{course})
	s.Courses[0] = course

	move := n.Perturb(s, NeighborSmart)
	if len(move.Indices()) != 1 || move.Indices()[0] != 0 {
		t.Fatalf("Expected course 0 to be modified, got %v", move.Indices())
	}
	room := model.IndexRooms(testRooms())[s.Courses[0].AssignedRoom]
	if !model.SameLocation(room.Location, "A") {
		t.Errorf("Expected a room at location A, got %s (%s)", room.ID, room.Location)
	}
}

func TestNeighborhood_RerollRoomPrefersOptimal(t *testing.T) {
	n, _ := newTestNeighborhood(t, testCourses())
	// R1 利用率 0.67，R2 利用率 0.8
	course := &model.Course{ID: "X", Location: "A", StudentCount: 20}

	for i := 0; i < 1000; i++ {
		if got := n.rerollRoom(course); got != "R2" {
			t.Fatalf("Draw %d: expected optimal room R2, got %s", i, got)
		}
	}
}

func TestNeighborhood_RerollRoomWithoutSuitableRoom(t *testing.T) {
	n, _ := newTestNeighborhood(t, testCourses())
	oversized := &model.Course{ID: "BIG", Location: "B", StudentCount: 500}

	rooms := model.IndexRooms(testRooms())
	seen := make(map[string]bool)
	for i := 0; i < 200; i++ {
		got := n.rerollRoom(oversized)
		if _, ok := rooms[got]; !ok {
			t.Fatalf("Unknown room %s", got)
		}
		seen[got] = true
	}
	if len(seen) != len(testRooms()) {
		t.Errorf("Expected draws across all rooms, got %v", seen)
	}
}
