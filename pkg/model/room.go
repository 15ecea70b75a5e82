package model

// Room 考场
type Room struct {
	ID       string `json:"room_id" csv:"room_id" validate:"required"`
	Capacity int    `json:"capacity" csv:"capacity" validate:"gt=0"`
	Location string `json:"location" csv:"location"`
}

// CanAccommodate 考场能否容纳指定人数
func (r Room) CanAccommodate(students int) bool {
	return r.Capacity >= students
}

// Utilization 返回考场利用率
func (r Room) Utilization(students int) float64 {
	if r.Capacity <= 0 {
		return 0
	}
	return float64(students) / float64(r.Capacity)
}

// IndexRooms 按ID建立考场索引
func IndexRooms(rooms []Room) map[string]Room {
	index := make(map[string]Room, len(rooms))
	for _, r := range rooms {
		index[r.ID] = r
	}
	return index
}
