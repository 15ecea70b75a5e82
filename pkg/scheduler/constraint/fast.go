package constraint

import (
	"github.com/paiban/kaowu/pkg/model"
)

// overlapKey 重叠缓存键
type overlapKey struct {
	time1     string
	duration1 int
	time2     string
	duration2 int
}

// OverlapCache 时间重叠判断缓存，生命周期为一次求解，非并发安全
type OverlapCache struct {
	entries map[overlapKey]bool
	hits    int
	misses  int
}

// NewOverlapCache 创建重叠缓存
func NewOverlapCache() *OverlapCache {
	return &OverlapCache{entries: make(map[overlapKey]bool)}
}

// Overlaps 带缓存的重叠判断
func (c *OverlapCache) Overlaps(time1 string, duration1 int, time2 string, duration2 int) bool {
	key := overlapKey{time1, duration1, time2, duration2}
	if v, ok := c.entries[key]; ok {
		c.hits++
		return v
	}
	c.misses++
	v := model.ClockOverlaps(time1, duration1, time2, duration2)
	c.entries[key] = v
	return v
}

// Clear 清空缓存
func (c *OverlapCache) Clear() {
	c.entries = make(map[overlapKey]bool)
	c.hits = 0
	c.misses = 0
}

// Len 缓存条目数
func (c *OverlapCache) Len() int {
	return len(c.entries)
}

// Stats 命中与未命中次数
func (c *OverlapCache) Stats() (hits, misses int) {
	return c.hits, c.misses
}

// FastChecker 只评估硬约束的快速检查器，用于搜索内循环
type FastChecker struct {
	*Checker
	cache *OverlapCache
}

// NewFastChecker 创建快速检查器
func NewFastChecker(rooms []model.Room, weights Weights) *FastChecker {
	cache := NewOverlapCache()
	c := newChecker(rooms, cache.Overlaps)
	c.Register(NewRoomConflictConstraint(weights.RoomConflict))
	c.Register(NewRoomCapacityConstraint(weights.RoomOvercapacity))
	c.Register(NewProctorConflictConstraint(weights.ProctorConflict))
	return &FastChecker{Checker: c, cache: cache}
}

// ClearCache 清空重叠缓存
func (f *FastChecker) ClearCache() {
	f.cache.Clear()
}

// Cache 返回重叠缓存
func (f *FastChecker) Cache() *OverlapCache {
	return f.cache
}
