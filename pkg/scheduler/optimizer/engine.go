// Package optimizer 提供排考元启发式求解算法（模拟退火、粒子群）
package optimizer

import (
	"context"
	"fmt"
	"math/rand"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"

	"github.com/paiban/kaowu/pkg/errors"
	"github.com/paiban/kaowu/pkg/logger"
	"github.com/paiban/kaowu/pkg/model"
	"github.com/paiban/kaowu/pkg/scheduler/constraint"
	"github.com/paiban/kaowu/pkg/scheduler/space"
)

// Engine 求解引擎接口
type Engine interface {
	// Name 返回算法名称
	Name() string

	// Run 同步执行求解，返回最优方案（适应度由完整约束模型计算）
	Run(ctx context.Context) (*model.Schedule, error)

	// Stop 请求在下一次迭代开始前停止
	Stop()

	// BestSolution 返回当前最优方案的副本
	BestSolution() *model.Schedule

	// ConvergenceHistory 每次迭代的最优代价
	ConvergenceHistory() []float64

	// Statistics 返回运行统计
	Statistics() Statistics

	// Reset 清空运行状态，可用相同种子重新运行
	Reset()
}

// StopReason 停止原因
type StopReason string

const (
	StopMaxIterations  StopReason = "max_iterations"
	StopMinTemperature StopReason = "min_temperature"
	StopRequested      StopReason = "stop_requested"
	StopCanceled       StopReason = "canceled"
	StopTimeout        StopReason = "timeout"
	StopError          StopReason = "error"
)

// Statistics 运行统计
type Statistics struct {
	Algorithm             string        `json:"algorithm"`
	Seed                  int64         `json:"seed"`
	ExecutionTime         time.Duration `json:"execution_time"`
	Iterations            int           `json:"total_iterations"`
	InitialCost           float64       `json:"initial_cost"`
	BestCost              float64       `json:"best_cost"`  // 搜索评估器
	FinalCost             float64       `json:"final_cost"` // 完整约束模型
	ImprovementPercentage float64       `json:"improvement_percentage"`
	AcceptedMoves         int           `json:"accepted_moves,omitempty"`
	RejectedMoves         int           `json:"rejected_moves,omitempty"`
	PBestUpdates          int           `json:"pbest_updates,omitempty"`
	GBestUpdates          int           `json:"gbest_updates,omitempty"`
	SplitCourses          int           `json:"split_courses"`
	Feasible              bool          `json:"feasible"`
	StopReason            StopReason    `json:"stop_reason"`
}

// improvement 改进百分比
func improvement(initial, best float64) float64 {
	if initial <= 0 {
		return 0
	}
	return (initial - best) / initial * 100
}

// Option 引擎选项
type Option func(*options)

type options struct {
	observer Observer
	search   constraint.Evaluator
}

// WithObserver 设置事件观察者
func WithObserver(o Observer) Option {
	return func(opts *options) {
		opts.observer = o
	}
}

// WithSearchEvaluator 替换搜索内循环使用的评估器，默认为快速约束模型
func WithSearchEvaluator(e constraint.Evaluator) Option {
	return func(opts *options) {
		opts.search = e
	}
}

// engineCore 两种算法共用的运行时状态
type engineCore struct {
	name     string
	common   CommonConfig
	courses  []model.Course // 预处理后的科目模板，运行期间只读
	frozen   []bool         // 已锁定且已排考
	rooms    []model.Room
	proctors []model.Proctor
	space    *space.Space
	splits   []space.SplitReport

	full     *constraint.Checker
	fast     *constraint.FastChecker
	search   constraint.Evaluator
	observer Observer
	log      *logger.SolverLogger

	seed    int64
	rng     *rand.Rand
	stopped atomic.Bool

	mu      sync.RWMutex
	best    *model.Schedule
	history []float64
	stats   Statistics
}

// newEngineCore 校验输入并完成搜索空间准备
func newEngineCore(name string, courses []model.Course, rooms []model.Room, proctors []model.Proctor, common CommonConfig, opts []Option) (*engineCore, error) {
	if len(courses) == 0 {
		return nil, errors.InvalidInput("courses", "科目列表为空")
	}
	if len(rooms) == 0 {
		return nil, errors.InvalidInput("rooms", "考场列表为空")
	}

	sp, err := space.New(rooms, common.SpaceOptions())
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeInvalidTimeRange, "搜索空间构建失败")
	}

	o := &options{}
	for _, opt := range opts {
		opt(o)
	}

	processed, splits := sp.PrepareCourses(courses)
	frozen := make([]bool, len(processed))
	for i := range processed {
		frozen[i] = processed[i].IsFixed()
	}

	core := &engineCore{
		name:     name,
		common:   common,
		courses:  processed,
		frozen:   frozen,
		rooms:    append([]model.Room(nil), rooms...),
		proctors: append([]model.Proctor(nil), proctors...),
		space:    sp,
		splits:   splits,
		full:     constraint.NewChecker(rooms, common.Weights, common.Limits()),
		observer: o.observer,
		log:      logger.NewSolverLogger(name),
		seed:     common.Seed,
	}
	if core.observer == nil {
		core.observer = ObserverFuncs{}
	}
	if o.search != nil {
		core.search = o.search
	} else {
		core.fast = constraint.NewFastChecker(rooms, common.Weights)
		core.search = core.fast
	}
	if core.seed == 0 {
		core.seed = time.Now().UnixNano()
	}
	core.rng = rand.New(rand.NewSource(core.seed))
	return core, nil
}

// Name 返回算法名称
func (c *engineCore) Name() string {
	return c.name
}

// Stop 请求停止
func (c *engineCore) Stop() {
	c.stopped.Store(true)
}

// BestSolution 返回当前最优方案的副本
func (c *engineCore) BestSolution() *model.Schedule {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.best.Clone()
}

// ConvergenceHistory 返回收敛曲线的副本
func (c *engineCore) ConvergenceHistory() []float64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]float64(nil), c.history...)
}

// Statistics 返回运行统计
func (c *engineCore) Statistics() Statistics {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.stats
}

// Courses 返回预处理后的科目（含拆分后的场次）
func (c *engineCore) Courses() []model.Course {
	return append([]model.Course(nil), c.courses...)
}

// Splits 返回拆分记录
func (c *engineCore) Splits() []space.SplitReport {
	return c.splits
}

// Reset 清空运行状态与停止标志
func (c *engineCore) Reset() {
	c.clearState()
	c.stopped.Store(false)
}

// clearState 清空运行状态并按原种子重建随机源，不清除停止标志
func (c *engineCore) clearState() {
	c.mu.Lock()
	c.best = nil
	c.history = nil
	c.stats = Statistics{}
	c.mu.Unlock()

	c.rng = rand.New(rand.NewSource(c.seed))
	if c.fast != nil {
		c.fast.ClearCache()
	}
}

// begin 运行开始时的公共处理
func (c *engineCore) begin() {
	c.clearState()
	c.mu.Lock()
	c.stats.Algorithm = c.name
	c.stats.Seed = c.seed
	c.stats.SplitCourses = len(c.splits)
	c.mu.Unlock()

	c.log.StartRun(len(c.courses), len(c.rooms), len(c.proctors), c.space.NumSlots(), c.seed)
	c.logf("开始%s求解: 科目=%d, 考场=%d, 监考=%d, 日期=%d, 时段=%d",
		c.name, len(c.courses), len(c.rooms), len(c.proctors), len(c.space.Dates), len(c.space.TimeSlots))
	if len(c.splits) > 0 {
		units := 0
		for _, s := range c.splits {
			units += len(s.Units)
		}
		c.log.CoursesSplit(len(c.splits), units)
		c.logf("拆分 %d 门超额科目为 %d 个场次", len(c.splits), units)
	}
}

// shouldStop 检查停止标志、上下文与运行时限
func (c *engineCore) shouldStop(ctx context.Context, start time.Time) (bool, StopReason) {
	if c.stopped.Load() {
		return true, StopRequested
	}
	if ctx.Err() != nil {
		return true, StopCanceled
	}
	if c.common.MaxRuntime > 0 && time.Since(start) > c.common.MaxRuntime {
		return true, StopTimeout
	}
	return false, ""
}

// logf 发出日志事件
func (c *engineCore) logf(format string, args ...interface{}) {
	msg := fmt.Sprintf(format, args...)
	c.log.Progress(msg)
	c.observer.OnLog(msg)
}

// setBest 记录最优方案（调用方保证 schedule 不再被修改）
func (c *engineCore) setBest(schedule *model.Schedule) {
	c.mu.Lock()
	c.best = schedule
	c.mu.Unlock()
}

// record 追加收敛曲线
func (c *engineCore) record(bestCost float64) {
	c.mu.Lock()
	c.history = append(c.history, bestCost)
	c.mu.Unlock()
}

// updateStats 在锁内修改统计
func (c *engineCore) updateStats(fn func(s *Statistics)) {
	c.mu.Lock()
	fn(&c.stats)
	c.mu.Unlock()
}

// finish 用完整约束模型评估最优方案并发出结束事件
func (c *engineCore) finish(best *model.Schedule, start time.Time, reason StopReason) *model.Schedule {
	final := best.Clone()
	final.FitnessScore = c.full.Evaluate(final)
	feasible := c.full.IsFeasible(final)
	elapsed := time.Since(start)

	var stats Statistics
	c.updateStats(func(s *Statistics) {
		s.ExecutionTime = elapsed
		s.FinalCost = final.FitnessScore
		s.Feasible = feasible
		s.StopReason = reason
		s.ImprovementPercentage = improvement(s.InitialCost, s.BestCost)
		stats = *s
	})
	c.setBest(final.Clone())

	c.log.RunComplete(elapsed, stats.Iterations, final.FitnessScore, feasible, string(reason))
	c.logf("%s求解结束(%s): 用时=%s, 迭代=%d, 初始代价=%.2f, 最优代价=%.2f, 改进=%.1f%%, 最终适应度=%.2f, 可行=%v",
		c.name, reason, elapsed.Round(time.Millisecond), stats.Iterations, stats.InitialCost, stats.BestCost,
		stats.ImprovementPercentage, final.FitnessScore, feasible)

	c.observer.OnStep(StepEvent{
		Iteration: stats.Iterations,
		Cost:      final.FitnessScore,
		BestCost:  final.FitnessScore,
		Final:     true,
	})
	c.observer.OnProgress(100)
	c.observer.OnFinished(final)
	return final
}

// abort 将求解过程中的 panic 转为错误事件
func (c *engineCore) abort(r interface{}, start time.Time) error {
	cause, ok := r.(error)
	if !ok {
		cause = fmt.Errorf("%v", r)
	}
	err := errors.SolverAborted(c.name, cause)
	c.log.RunFailed(err, debug.Stack())
	c.updateStats(func(s *Statistics) {
		s.ExecutionTime = time.Since(start)
		s.StopReason = StopError
	})
	c.observer.OnError(err)
	return err
}

// assignRandomProctor 随机分配监考
func (c *engineCore) assignRandomProctor(course *model.Course) {
	if len(c.proctors) == 0 {
		return
	}
	course.AssignedProctorID = c.proctors[c.rng.Intn(len(c.proctors))].ID
}
