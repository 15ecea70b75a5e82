// Package benchmark 多算法多种子批量求解与结果统计
package benchmark

import (
	"context"
	"math"
	"runtime"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/paiban/kaowu/pkg/errors"
	"github.com/paiban/kaowu/pkg/logger"
	"github.com/paiban/kaowu/pkg/model"
	"github.com/paiban/kaowu/pkg/scheduler/optimizer"
)

// DefaultBaseSeed 配置未指定种子时第一次试验使用的种子
const DefaultBaseSeed int64 = 1

// Input 求解输入
type Input struct {
	Courses  []model.Course
	Rooms    []model.Room
	Proctors []model.Proctor
}

// Options 批量试验选项
type Options struct {
	Algorithms []string               // 为空时使用全部算法
	Trials     int                    // 每个算法的试验次数
	Workers    int                    // 并发数，<=0 时为 CPU 数
	Settings   map[string]interface{} // 引擎配置映射，seed 键作为起始种子
}

// Trial 单次试验结果
type Trial struct {
	Algorithm     string        `json:"algorithm"`
	Seed          int64         `json:"seed"`
	Iterations    int           `json:"iterations"`
	BestCost      float64       `json:"best_cost"`
	FinalCost     float64       `json:"final_cost"`
	ExecutionTime time.Duration `json:"execution_time"`
	Feasible      bool          `json:"feasible"`
	StopReason    string        `json:"stop_reason"`
	Error         string        `json:"error,omitempty"`
}

// Summary 单个算法的汇总
type Summary struct {
	Algorithm     string        `json:"algorithm"`
	Trials        int           `json:"trials"`
	Failures      int           `json:"failures"`
	MinCost       float64       `json:"min_cost"`
	MeanCost      float64       `json:"mean_cost"`
	MaxCost       float64       `json:"max_cost"`
	MeanTime      time.Duration `json:"mean_time"`
	FeasibleRatio float64       `json:"feasible_ratio"` // (%)
}

// Report 批量试验报告
type Report struct {
	Trials    []Trial       `json:"trials"`
	Summaries []Summary     `json:"summaries"`
	Elapsed   time.Duration `json:"elapsed"`
}

// Run 对每个算法以不同种子运行 Trials 次，并发度受 Workers 限制
//
// 引擎构造失败（配置或输入错误）会中止整个批次；单次求解异常只记录在该次试验中。
func Run(ctx context.Context, in Input, opts Options) (*Report, error) {
	if opts.Trials <= 0 {
		return nil, errors.InvalidInput("trials", "试验次数必须大于 0")
	}
	algorithms := opts.Algorithms
	if len(algorithms) == 0 {
		algorithms = optimizer.Algorithms()
	}
	workers := opts.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	baseSeed := seedFrom(opts.Settings)

	log := logger.WithField("component", "benchmark")
	log.Info().
		Strs("algorithms", algorithms).
		Int("trials", opts.Trials).
		Int("workers", workers).
		Int64("base_seed", baseSeed).
		Msg("开始批量试验")

	start := time.Now()
	trials := make([]Trial, len(algorithms)*opts.Trials)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for a, algorithm := range algorithms {
		for i := 0; i < opts.Trials; i++ {
			slot := a*opts.Trials + i
			seed := baseSeed + int64(i)
			g.Go(func() error {
				trial, err := runTrial(gctx, in, algorithm, seed, opts.Settings)
				if err != nil {
					return err
				}
				trials[slot] = trial
				return nil
			})
		}
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	report := &Report{
		Trials:    trials,
		Summaries: Summarize(trials),
		Elapsed:   time.Since(start),
	}
	log.Info().Dur("elapsed", report.Elapsed).Int("trials", len(trials)).Msg("批量试验完成")
	return report, nil
}

// runTrial 运行单次试验
func runTrial(ctx context.Context, in Input, algorithm string, seed int64, settings map[string]interface{}) (Trial, error) {
	engine, err := optimizer.New(algorithm, in.Courses, in.Rooms, in.Proctors, withSeed(settings, seed))
	if err != nil {
		return Trial{}, err
	}

	trial := Trial{Algorithm: engine.Name(), Seed: seed}
	result, runErr := engine.Run(ctx)
	stats := engine.Statistics()
	trial.Iterations = stats.Iterations
	trial.BestCost = stats.BestCost
	trial.ExecutionTime = stats.ExecutionTime
	trial.StopReason = string(stats.StopReason)
	if runErr != nil {
		trial.Error = runErr.Error()
		return trial, nil
	}
	trial.FinalCost = result.FitnessScore
	trial.Feasible = stats.Feasible
	return trial, nil
}

// Summarize 按算法汇总试验结果，失败的试验不计入代价与时间统计
func Summarize(trials []Trial) []Summary {
	index := make(map[string]int)
	var summaries []Summary
	var costs [][]float64
	var times []time.Duration
	var feasible []int

	for _, t := range trials {
		k, ok := index[t.Algorithm]
		if !ok {
			k = len(summaries)
			index[t.Algorithm] = k
			summaries = append(summaries, Summary{Algorithm: t.Algorithm})
			costs = append(costs, nil)
			times = append(times, 0)
			feasible = append(feasible, 0)
		}
		summaries[k].Trials++
		if t.Error != "" {
			summaries[k].Failures++
			continue
		}
		costs[k] = append(costs[k], t.FinalCost)
		times[k] += t.ExecutionTime
		if t.Feasible {
			feasible[k]++
		}
	}

	for k := range summaries {
		s := &summaries[k]
		n := len(costs[k])
		if n == 0 {
			continue
		}
		sorted := append([]float64(nil), costs[k]...)
		sort.Float64s(sorted)
		sum := 0.0
		for _, c := range sorted {
			sum += c
		}
		s.MinCost = sorted[0]
		s.MaxCost = sorted[n-1]
		s.MeanCost = sum / float64(n)
		s.MeanTime = times[k] / time.Duration(n)
		s.FeasibleRatio = float64(feasible[k]) / float64(s.Trials) * 100
	}
	return summaries
}

// Best 返回平均代价最低的算法汇总
func (r *Report) Best() (Summary, bool) {
	best, found := Summary{MeanCost: math.Inf(1)}, false
	for _, s := range r.Summaries {
		if s.Trials > s.Failures && s.MeanCost < best.MeanCost {
			best, found = s, true
		}
	}
	return best, found
}

func seedFrom(settings map[string]interface{}) int64 {
	switch v := settings["seed"].(type) {
	case int:
		if v != 0 {
			return int64(v)
		}
	case int64:
		if v != 0 {
			return v
		}
	case float64:
		if v != 0 {
			return int64(v)
		}
	}
	return DefaultBaseSeed
}

// withSeed 复制配置映射并设置种子
func withSeed(settings map[string]interface{}, seed int64) map[string]interface{} {
	out := make(map[string]interface{}, len(settings)+1)
	for k, v := range settings {
		out[k] = v
	}
	out["seed"] = seed
	return out
}
