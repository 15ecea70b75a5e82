package optimizer

import (
	"context"
	"math"
	"time"

	"github.com/paiban/kaowu/pkg/model"
)

// Annealer 模拟退火求解器：原地扰动 + Metropolis 准则 + 几何降温
type Annealer struct {
	*engineCore
	config *AnnealingConfig
}

// NewAnnealer 创建模拟退火求解器
func NewAnnealer(courses []model.Course, rooms []model.Room, proctors []model.Proctor, config *AnnealingConfig, opts ...Option) (*Annealer, error) {
	if config == nil {
		config = DefaultAnnealingConfig()
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	core, err := newEngineCore(AlgorithmAnnealing, courses, rooms, proctors, config.CommonConfig, opts)
	if err != nil {
		return nil, err
	}
	return &Annealer{engineCore: core, config: config}, nil
}

// Config 返回配置
func (a *Annealer) Config() AnnealingConfig {
	return *a.config
}

// Run 执行模拟退火
func (a *Annealer) Run(ctx context.Context) (result *model.Schedule, err error) {
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			err = a.abort(r, start)
			result = a.BestSolution()
		}
	}()

	a.begin()
	cfg := a.config
	neighbors := newNeighborhood(a.rng, a.space, a.proctors, a.frozen)

	current := a.initialSchedule(neighbors)
	currentCost := a.search.Evaluate(current)
	best := current.Clone()
	best.FitnessScore = currentCost
	bestCost := currentCost
	a.setBest(best)
	a.updateStats(func(s *Statistics) {
		s.InitialCost = currentCost
		s.BestCost = currentCost
	})
	a.logf("初始方案代价: %.2f", currentCost)

	temperature := cfg.InitialTemperature
	accepted, rejected := 0, 0
	iteration := 0
	reason := StopMaxIterations

	for iteration < cfg.MaxIterations {
		if stop, why := a.shouldStop(ctx, start); stop {
			reason = why
			break
		}
		if temperature <= cfg.MinTemperature {
			reason = StopMinTemperature
			break
		}
		iteration++

		move := neighbors.Perturb(current, cfg.NeighborType)
		newCost := a.search.Evaluate(current)

		if a.accept(newCost-currentCost, temperature) {
			currentCost = newCost
			accepted++
			if newCost < bestCost {
				bestCost = newCost
				best = current.Clone()
				best.FitnessScore = newCost
				a.setBest(best)
				a.logf("迭代 %d: 发现更优解, 代价=%.2f", iteration, bestCost)
			}
		} else {
			move.Undo(current)
			rejected++
		}

		a.record(bestCost)
		temperature *= cfg.CoolingRate

		if iteration%10 == 0 {
			a.observer.OnStep(StepEvent{
				Iteration:   iteration,
				Cost:        currentCost,
				BestCost:    bestCost,
				Temperature: temperature,
				Rate:        rate(accepted, iteration),
			})
			a.observer.OnProgress(a.progress(temperature))
		}
		if iteration%100 == 0 {
			a.logf("迭代 %d: 当前代价=%.2f, 最优代价=%.2f, 温度=%.4f, 接受率=%.1f%%",
				iteration, currentCost, bestCost, temperature, rate(accepted, iteration))
		}
	}

	a.updateStats(func(s *Statistics) {
		s.Iterations = iteration
		s.BestCost = bestCost
		s.AcceptedMoves = accepted
		s.RejectedMoves = rejected
	})
	return a.finish(best, start, reason), nil
}

// initialSchedule 随机构造初始方案，冻结科目保留原日期/时间/考场，所有科目随机分配监考
func (a *Annealer) initialSchedule(n *neighborhood) *model.Schedule {
	s := model.NewSchedule(a.courses)
	for i := range s.Courses {
		course := &s.Courses[i]
		if !a.frozen[i] {
			course.AssignedDate = n.randomDate()
			course.AssignedTime = n.randomTime()
			course.AssignedRoom = n.initialRoom(course)
		}
		a.assignRandomProctor(course)
	}
	return s
}

// accept Metropolis 接受准则
func (a *Annealer) accept(delta, temperature float64) bool {
	if delta < 0 {
		return true
	}
	return a.rng.Float64() < boltzmannProbability(delta, temperature)
}

// progress 按温度下降比例估算进度
func (a *Annealer) progress(temperature float64) int {
	span := a.config.InitialTemperature - a.config.MinTemperature
	if span <= 0 {
		return 100
	}
	pct := int((1 - (temperature-a.config.MinTemperature)/span) * 100)
	if pct < 0 {
		return 0
	}
	if pct > 100 {
		return 100
	}
	return pct
}

// boltzmannProbability 计算模拟退火的接受概率
// delta: 代价差 (new - old)
// temperature: 当前温度
func boltzmannProbability(delta, temperature float64) float64 {
	if delta <= 0 {
		return 1.0
	}
	if temperature <= 0 {
		return 0.0
	}
	p := math.Exp(-delta / temperature)
	if math.IsNaN(p) || math.IsInf(p, 0) {
		return 0.0
	}
	return p
}

// rate 百分比
func rate(count, total int) float64 {
	if total <= 0 {
		return 0
	}
	return float64(count) / float64(total) * 100
}
