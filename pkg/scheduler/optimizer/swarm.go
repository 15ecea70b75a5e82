package optimizer

import (
	"context"
	"math"
	"time"

	"github.com/paiban/kaowu/pkg/model"
)

// upperMargin 上界留出的余量，保证截断后的下标落在有效范围内
const upperMargin = 1e-6

// particle 粒子
type particle struct {
	position     []float64
	velocity     []float64
	bestPosition []float64
	bestValue    float64
	value        float64
}

// Swarm 粒子群求解器
//
// 编码：科目 i 对应位置向量的第 2i 维（展平时段下标）和第 2i+1 维（考场下标）。
type Swarm struct {
	*engineCore
	config *SwarmConfig

	particles     []particle
	lower, upper  []float64
	gbestPosition []float64
	gbestValue    float64
}

// NewSwarm 创建粒子群求解器
func NewSwarm(courses []model.Course, rooms []model.Room, proctors []model.Proctor, config *SwarmConfig, opts ...Option) (*Swarm, error) {
	if config == nil {
		config = DefaultSwarmConfig()
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	core, err := newEngineCore(AlgorithmSwarm, courses, rooms, proctors, config.CommonConfig, opts)
	if err != nil {
		return nil, err
	}

	s := &Swarm{engineCore: core, config: config}
	dim := 2 * len(core.courses)
	s.lower = make([]float64, dim)
	s.upper = make([]float64, dim)
	for i := range core.courses {
		s.upper[2*i] = float64(core.space.NumSlots()) - upperMargin
		s.upper[2*i+1] = float64(core.space.NumRooms()) - upperMargin
	}
	return s, nil
}

// Config 返回配置
func (s *Swarm) Config() SwarmConfig {
	return *s.config
}

// Dimensions 位置向量维度
func (s *Swarm) Dimensions() int {
	return len(s.upper)
}

// Reset 清空粒子与运行状态
func (s *Swarm) Reset() {
	s.engineCore.Reset()
	s.particles = nil
	s.gbestPosition = nil
	s.gbestValue = math.Inf(1)
}

// Run 执行粒子群优化
func (s *Swarm) Run(ctx context.Context) (result *model.Schedule, err error) {
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			err = s.abort(r, start)
			result = s.BestSolution()
		}
	}()

	s.begin()
	cfg := s.config

	var best *model.Schedule
	s.initParticles()
	for i := range s.particles {
		p := &s.particles[i]
		schedule, cost := s.evaluate(p.position)
		p.value = cost
		p.bestValue = cost
		copy(p.bestPosition, p.position)
		if cost < s.gbestValue {
			s.gbestValue = cost
			copy(s.gbestPosition, p.position)
			best = schedule
		}
	}
	s.setBest(best)
	s.record(s.gbestValue)
	s.updateStats(func(st *Statistics) {
		st.InitialCost = s.gbestValue
		st.BestCost = s.gbestValue
	})
	s.logf("粒子群初始化完成: 粒子=%d, 维度=%d, 全局最优=%.2f", len(s.particles), s.Dimensions(), s.gbestValue)

	w := cfg.W
	decay := 0.0
	if cfg.InertiaDecay && w > cfg.MinInertia {
		decay = (w - cfg.MinInertia) / float64(cfg.MaxIterations)
	}

	pbestUpdates, gbestUpdates := 0, 0
	iteration := 0
	reason := StopMaxIterations

	for iteration < cfg.MaxIterations {
		if stop, why := s.shouldStop(ctx, start); stop {
			reason = why
			break
		}
		iteration++

		for i := range s.particles {
			p := &s.particles[i]
			s.move(p, w)

			schedule, cost := s.evaluate(p.position)
			p.value = cost
			if cost < p.bestValue {
				p.bestValue = cost
				copy(p.bestPosition, p.position)
				pbestUpdates++

				if cost < s.gbestValue {
					s.gbestValue = cost
					copy(s.gbestPosition, p.position)
					gbestUpdates++
					best = schedule
					s.setBest(best)
					s.logf("迭代 %d: 发现更优解, 代价=%.2f", iteration, cost)
				}
			}
		}

		s.record(s.gbestValue)
		if decay > 0 {
			w = math.Max(cfg.MinInertia, w-decay)
		}

		if iteration%10 == 0 {
			s.observer.OnStep(StepEvent{
				Iteration: iteration,
				Cost:      s.gbestValue,
				BestCost:  s.gbestValue,
				Inertia:   w,
				Rate:      rate(pbestUpdates, iteration*len(s.particles)),
				Updates:   gbestUpdates,
			})
			s.observer.OnProgress(iteration * 100 / cfg.MaxIterations)
		}
		if iteration%100 == 0 {
			s.logf("迭代 %d: 全局最优=%.2f, 惯性权重=%.3f, 个体最优更新=%d, 全局最优更新=%d",
				iteration, s.gbestValue, w, pbestUpdates, gbestUpdates)
		}
	}

	s.updateStats(func(st *Statistics) {
		st.Iterations = iteration
		st.BestCost = s.gbestValue
		st.PBestUpdates = pbestUpdates
		st.GBestUpdates = gbestUpdates
	})

	final := best.Clone()
	s.assignProctors(final)
	return s.finish(final, start, reason), nil
}

// initParticles 在边界内均匀初始化位置，速度取 [-1, 1]
func (s *Swarm) initParticles() {
	dim := s.Dimensions()
	s.particles = make([]particle, s.config.SwarmSize)
	for i := range s.particles {
		p := particle{
			position:     make([]float64, dim),
			velocity:     make([]float64, dim),
			bestPosition: make([]float64, dim),
			bestValue:    math.Inf(1),
			value:        math.Inf(1),
		}
		for d := 0; d < dim; d++ {
			p.position[d] = s.lower[d] + s.rng.Float64()*(s.upper[d]-s.lower[d])
			p.velocity[d] = s.rng.Float64()*2 - 1
		}
		s.particles[i] = p
	}
	s.gbestPosition = make([]float64, dim)
	s.gbestValue = math.Inf(1)
}

// move 速度与位置更新，并裁剪到边界内
func (s *Swarm) move(p *particle, w float64) {
	c1, c2 := s.config.C1, s.config.C2
	for d := range p.position {
		r1, r2 := s.rng.Float64(), s.rng.Float64()
		v := w*p.velocity[d] +
			c1*r1*(p.bestPosition[d]-p.position[d]) +
			c2*r2*(s.gbestPosition[d]-p.position[d])

		span := s.upper[d] - s.lower[d]
		p.velocity[d] = clamp(v, -span, span)
		p.position[d] = clamp(p.position[d]+p.velocity[d], s.lower[d], s.upper[d])
	}
}

// evaluate 解码、分配监考并用搜索评估器打分
func (s *Swarm) evaluate(position []float64) (*model.Schedule, float64) {
	schedule := s.decode(position)
	s.assignProctors(schedule)
	cost := s.search.Evaluate(schedule)
	schedule.FitnessScore = cost
	return schedule, cost
}

// decode 将位置向量解码为新方案，冻结科目保留原分配
func (s *Swarm) decode(position []float64) *model.Schedule {
	schedule := model.NewSchedule(s.courses)
	numSlots, numRooms := s.space.NumSlots(), s.space.NumRooms()
	for i := range schedule.Courses {
		course := &schedule.Courses[i]
		if len(s.proctors) > 0 {
			course.AssignedProctorID = ""
		}
		if s.frozen[i] {
			continue
		}
		slot := s.space.Slots[index(position[2*i], numSlots)]
		room := s.space.Rooms[index(position[2*i+1], numRooms)]
		course.AssignedDate = slot.Date
		course.AssignedTime = slot.Time
		course.AssignedRoom = room.ID
	}
	return schedule
}

// assignProctors 负载均衡分配监考：依次为缺少监考的科目选择本方案中场次最少的老师
func (s *Swarm) assignProctors(schedule *model.Schedule) {
	if len(s.proctors) == 0 {
		return
	}
	load := make([]int, len(s.proctors))
	for i := range schedule.Courses {
		course := &schedule.Courses[i]
		if course.AssignedProctorID != "" {
			continue
		}
		pick := 0
		for k := 1; k < len(load); k++ {
			if load[k] < load[pick] {
				pick = k
			}
		}
		course.AssignedProctorID = s.proctors[pick].ID
		load[pick]++
	}
}

// index 截断并限制在 [0, n)
func index(x float64, n int) int {
	i := int(x)
	if i < 0 {
		return 0
	}
	if i >= n {
		return n - 1
	}
	return i
}

func clamp(x, lo, hi float64) float64 {
	if x < lo {
		return lo
	}
	if x > hi {
		return hi
	}
	return x
}
