package optimizer

import (
	"math/rand"

	"github.com/paiban/kaowu/pkg/model"
	"github.com/paiban/kaowu/pkg/scheduler/space"
)

// NeighborType 邻域类型
type NeighborType string

const (
	NeighborSwap   NeighborType = "swap"   // 交换两门科目的分配
	NeighborRandom NeighborType = "random" // 随机重置一门科目的部分分配
	NeighborSmart  NeighborType = "smart"  // 优先修复考点不符
)

// changeType 随机邻域的修改内容
type changeType int

const (
	changeDate changeType = iota
	changeTime
	changeRoom
	changeProctor
	changeAll
	numChangeTypes
)

// suitableRoomRate 没有最优考场时从可用考场中随机选择的概率，其余时候任选考场
const suitableRoomRate = 0.7

// Move 一次原地扰动的撤销记录
type Move struct {
	indices  []int
	previous []model.Assignment
}

// save 在修改前备份科目的分配
func (m *Move) save(s *model.Schedule, index int) {
	m.indices = append(m.indices, index)
	m.previous = append(m.previous, s.Courses[index].Assignment())
}

// Indices 返回被修改的科目下标
func (m *Move) Indices() []int {
	return m.indices
}

// Undo 撤销扰动，恢复被修改科目的原分配
func (m *Move) Undo(s *model.Schedule) {
	for k := len(m.indices) - 1; k >= 0; k-- {
		s.Courses[m.indices[k]].Restore(m.previous[k])
	}
}

// neighborhood 邻域生成器，只修改未冻结科目的日期/时间/考场
type neighborhood struct {
	rng      *rand.Rand
	space    *space.Space
	rooms    map[string]model.Room
	proctors []model.Proctor
	frozen   []bool
	movable  []int
}

func newNeighborhood(rng *rand.Rand, sp *space.Space, proctors []model.Proctor, frozen []bool) *neighborhood {
	n := &neighborhood{
		rng:      rng,
		space:    sp,
		rooms:    model.IndexRooms(sp.Rooms),
		proctors: proctors,
		frozen:   frozen,
	}
	for i, f := range frozen {
		if !f {
			n.movable = append(n.movable, i)
		}
	}
	return n
}

// Perturb 按邻域类型原地扰动方案，返回撤销记录
func (n *neighborhood) Perturb(s *model.Schedule, typ NeighborType) *Move {
	switch typ {
	case NeighborSwap:
		return n.swap(s)
	case NeighborSmart:
		return n.smart(s)
	default:
		return n.random(s)
	}
}

// swap 交换两门已排考科目的日期、时间、考场和监考
func (n *neighborhood) swap(s *model.Schedule) *Move {
	candidates := make([]int, 0, len(n.movable))
	for _, i := range n.movable {
		if s.Courses[i].IsScheduled() {
			candidates = append(candidates, i)
		}
	}
	if len(candidates) < 2 {
		return n.random(s)
	}

	a := n.rng.Intn(len(candidates))
	b := n.rng.Intn(len(candidates) - 1)
	if b >= a {
		b++
	}
	i, j := candidates[a], candidates[b]

	move := &Move{}
	move.save(s, i)
	move.save(s, j)
	ai, aj := s.Courses[i].Assignment(), s.Courses[j].Assignment()
	s.Courses[i].Restore(aj)
	s.Courses[j].Restore(ai)
	return move
}

// random 随机选择一门可修改科目并重置部分分配；没有可修改科目时只调整监考
func (n *neighborhood) random(s *model.Schedule) *Move {
	move := &Move{}
	if len(s.Courses) == 0 {
		return move
	}

	if len(n.movable) == 0 {
		if len(n.proctors) == 0 {
			return move
		}
		i := n.rng.Intn(len(s.Courses))
		move.save(s, i)
		s.Courses[i].AssignedProctorID = n.randomProctor()
		return move
	}

	i := n.movable[n.rng.Intn(len(n.movable))]
	move.save(s, i)
	course := &s.Courses[i]

	switch changeType(n.rng.Intn(int(numChangeTypes))) {
	case changeDate:
		course.AssignedDate = n.randomDate()
	case changeTime:
		course.AssignedTime = n.randomTime()
	case changeRoom:
		course.AssignedRoom = n.rerollRoom(course)
	case changeProctor:
		if len(n.proctors) > 0 {
			course.AssignedProctorID = n.randomProctor()
		}
	case changeAll:
		course.AssignedDate = n.randomDate()
		course.AssignedTime = n.randomTime()
		course.AssignedRoom = n.rerollRoom(course)
		if len(n.proctors) > 0 {
			course.AssignedProctorID = n.randomProctor()
		}
	}
	return move
}

// smart 修复第一处可修复的考点不符，没有则退化为随机邻域
func (n *neighborhood) smart(s *model.Schedule) *Move {
	for _, i := range n.movable {
		course := &s.Courses[i]
		if !course.IsScheduled() {
			continue
		}
		room, ok := n.rooms[course.AssignedRoom]
		if !ok || model.SameLocation(room.Location, course.Location) {
			continue
		}
		suitable := n.space.SuitableRooms(course.StudentCount, course.Location)
		if len(suitable) == 0 {
			continue
		}
		move := &Move{}
		move.save(s, i)
		course.AssignedRoom = suitable[n.rng.Intn(len(suitable))].ID
		return move
	}
	return n.random(s)
}

// initialRoom 初始考场：最优考场 > 同考点任意考场 > 任意考场
func (n *neighborhood) initialRoom(course *model.Course) string {
	if room, ok := n.space.FindOptimalRoom(course.StudentCount, course.Location, false); ok {
		return room.ID
	}
	return n.fallbackRoom(course)
}

// rerollRoom 重新选择考场：有最优考场时总是取最优考场
func (n *neighborhood) rerollRoom(course *model.Course) string {
	if room, ok := n.space.FindOptimalRoom(course.StudentCount, course.Location, false); ok {
		return room.ID
	}
	suitable := n.space.SuitableRooms(course.StudentCount, course.Location)
	if len(suitable) > 0 && n.rng.Float64() < suitableRoomRate {
		return suitable[n.rng.Intn(len(suitable))].ID
	}
	return n.space.Rooms[n.rng.Intn(len(n.space.Rooms))].ID
}

// fallbackRoom 没有容量足够的考场时，优先同考点
func (n *neighborhood) fallbackRoom(course *model.Course) string {
	var local []model.Room
	for _, r := range n.space.Rooms {
		if model.SameLocation(r.Location, course.Location) {
			local = append(local, r)
		}
	}
	if len(local) > 0 {
		return local[n.rng.Intn(len(local))].ID
	}
	return n.space.Rooms[n.rng.Intn(len(n.space.Rooms))].ID
}

func (n *neighborhood) randomDate() string {
	return n.space.Dates[n.rng.Intn(len(n.space.Dates))]
}

func (n *neighborhood) randomTime() string {
	return n.space.TimeSlots[n.rng.Intn(len(n.space.TimeSlots))]
}

func (n *neighborhood) randomProctor() string {
	return n.proctors[n.rng.Intn(len(n.proctors))].ID
}
