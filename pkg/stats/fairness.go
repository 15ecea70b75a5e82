package stats

import (
	"math"
	"sort"

	"github.com/paiban/kaowu/pkg/model"
)

// FairnessMetrics 监考工作量公平性指标
type FairnessMetrics struct {
	// 场次公平性
	SessionGini     float64 `json:"session_gini"` // 场次基尼系数 (0=完全公平, 1=完全不公平)
	SessionVariance float64 `json:"session_variance"`
	SessionStdDev   float64 `json:"session_std_dev"`
	AvgSessions     float64 `json:"avg_sessions"`
	MaxSessions     float64 `json:"max_sessions"`
	MinSessions     float64 `json:"min_sessions"`
	SessionRange    float64 `json:"session_range"`

	// 监考时长公平性
	MinutesGini float64 `json:"minutes_gini"`

	// 跨考点监考占比 (%)，监考老师未登记考点时不计
	CrossLocationRate float64 `json:"cross_location_rate"`

	// 监考级别统计
	ProctorStats []ProctorStat `json:"proctor_stats"`

	// 综合评分
	OverallFairnessScore float64 `json:"overall_fairness_score"` // 0-100
}

// ProctorStat 监考老师统计
type ProctorStat struct {
	ProctorID     string  `json:"proctor_id"`
	ProctorName   string  `json:"proctor_name"`
	Sessions      int     `json:"sessions"`
	TotalMinutes  int     `json:"total_minutes"`
	Days          int     `json:"days"`           // 有监考的天数
	PeakPerDay    int     `json:"peak_per_day"`   // 单日最多场次
	PeakPerWeek   int     `json:"peak_per_week"`  // 单周最多场次
	CrossLocation int     `json:"cross_location"` // 与本人考点不一致的场次
	Deviation     float64 `json:"deviation"`      // 与平均场次的偏差百分比
}

// FairnessAnalyzer 公平性分析器
type FairnessAnalyzer struct{}

// NewFairnessAnalyzer 创建公平性分析器
func NewFairnessAnalyzer() *FairnessAnalyzer {
	return &FairnessAnalyzer{}
}

// Analyze 分析监考工作量公平性；名单中没有监考任务的老师按 0 场次计入
func (f *FairnessAnalyzer) Analyze(schedule *model.Schedule, proctors []model.Proctor) *FairnessMetrics {
	if schedule == nil || (len(proctors) == 0 && len(schedule.ProctorLoad()) == 0) {
		return &FairnessMetrics{OverallFairnessScore: 100}
	}

	stats, crossRate := f.calculateProctorStats(schedule, proctors)

	sessions := make([]float64, len(stats))
	minutes := make([]float64, len(stats))
	for i, s := range stats {
		sessions[i] = float64(s.Sessions)
		minutes[i] = float64(s.TotalMinutes)
	}

	avg := mean(sessions)
	variance := varianceOf(sessions, avg)
	stdDev := math.Sqrt(variance)
	maxS, minS := valueRange(sessions)

	for i := range stats {
		if avg > 0 {
			stats[i].Deviation = (float64(stats[i].Sessions) - avg) / avg * 100
		}
	}

	sessionGini := gini(sessions)
	minutesGini := gini(minutes)

	return &FairnessMetrics{
		SessionGini:          sessionGini,
		SessionVariance:      variance,
		SessionStdDev:        stdDev,
		AvgSessions:          avg,
		MaxSessions:          maxS,
		MinSessions:          minS,
		SessionRange:         maxS - minS,
		MinutesGini:          minutesGini,
		CrossLocationRate:    crossRate,
		ProctorStats:         stats,
		OverallFairnessScore: overallScore(sessionGini, minutesGini, stdDev, avg),
	}
}

// calculateProctorStats 逐个监考老师统计，返回统计结果与跨考点占比
func (f *FairnessAnalyzer) calculateProctorStats(schedule *model.Schedule, proctors []model.Proctor) ([]ProctorStat, float64) {
	type tally struct {
		stat     *ProctorStat
		location string
		days     map[string]int
		weeks    map[string]int
	}

	order := make([]string, 0, len(proctors))
	tallies := make(map[string]*tally, len(proctors))
	add := func(id, name, location string) *tally {
		if t, ok := tallies[id]; ok {
			return t
		}
		t := &tally{
			stat:     &ProctorStat{ProctorID: id, ProctorName: name},
			location: location,
			days:     make(map[string]int),
			weeks:    make(map[string]int),
		}
		tallies[id] = t
		order = append(order, id)
		return t
	}
	for _, p := range proctors {
		add(p.ID, p.Name, p.Location)
	}

	checked, cross := 0, 0
	for i := range schedule.Courses {
		course := &schedule.Courses[i]
		if course.AssignedProctorID == "" {
			continue
		}
		t := add(course.AssignedProctorID, course.AssignedProctorID, "")
		t.stat.Sessions++
		t.stat.TotalMinutes += course.ExamDuration()

		if t.location != "" {
			checked++
			if !model.SameLocation(t.location, course.Location) {
				t.stat.CrossLocation++
				cross++
			}
		}

		if course.AssignedDate == "" {
			continue
		}
		t.days[course.AssignedDate]++
		if week, err := model.WeekStart(course.AssignedDate); err == nil {
			t.weeks[week]++
		}
	}

	result := make([]ProctorStat, 0, len(order))
	for _, id := range order {
		t := tallies[id]
		t.stat.Days = len(t.days)
		t.stat.PeakPerDay = maxCount(t.days)
		t.stat.PeakPerWeek = maxCount(t.weeks)
		result = append(result, *t.stat)
	}

	// 按场次排序
	sort.SliceStable(result, func(i, j int) bool {
		return result[i].Sessions > result[j].Sessions
	})

	crossRate := 0.0
	if checked > 0 {
		crossRate = float64(cross) / float64(checked) * 100
	}
	return result, crossRate
}

func maxCount(counts map[string]int) int {
	peak := 0
	for _, n := range counts {
		if n > peak {
			peak = n
		}
	}
	return peak
}

// mean 计算平均值
func mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

// varianceOf 计算方差
func varianceOf(values []float64, mean float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sumSquares := 0.0
	for _, v := range values {
		diff := v - mean
		sumSquares += diff * diff
	}
	return sumSquares / float64(len(values))
}

// valueRange 计算极值
func valueRange(values []float64) (max, min float64) {
	if len(values) == 0 {
		return 0, 0
	}
	max, min = values[0], values[0]
	for _, v := range values[1:] {
		if v > max {
			max = v
		}
		if v < min {
			min = v
		}
	}
	return
}

// gini 计算基尼系数
func gini(values []float64) float64 {
	n := len(values)
	if n == 0 {
		return 0
	}

	sorted := make([]float64, n)
	copy(sorted, values)
	sort.Float64s(sorted)

	sum := 0.0
	for _, v := range sorted {
		sum += v
	}
	if sum == 0 {
		return 0
	}

	g := 0.0
	for i, v := range sorted {
		g += (2*float64(i+1) - float64(n) - 1) * v
	}
	g = g / (float64(n) * sum)
	return math.Max(0, math.Min(1, g))
}

// overallScore 综合公平性评分
func overallScore(sessionGini, minutesGini, stdDev, avg float64) float64 {
	const (
		sessionWeight = 0.5
		minutesWeight = 0.3
		stdDevWeight  = 0.2
	)

	sessionScore := (1 - sessionGini) * 100
	minutesScore := (1 - minutesGini) * 100

	// 变异系数越低分数越高
	cvScore := 100.0
	if avg > 0 {
		cvScore = math.Max(0, 100-stdDev/avg*200)
	}

	score := sessionWeight*sessionScore + minutesWeight*minutesScore + stdDevWeight*cvScore
	return math.Max(0, math.Min(100, score))
}

// CompareSchedules 比较两个方案的监考公平性
func (f *FairnessAnalyzer) CompareSchedules(schedule1, schedule2 *model.Schedule, proctors []model.Proctor) map[string]float64 {
	metrics1 := f.Analyze(schedule1, proctors)
	metrics2 := f.Analyze(schedule2, proctors)

	return map[string]float64{
		"session_gini_diff":       metrics2.SessionGini - metrics1.SessionGini,
		"minutes_gini_diff":       metrics2.MinutesGini - metrics1.MinutesGini,
		"overall_score_diff":      metrics2.OverallFairnessScore - metrics1.OverallFairnessScore,
		"schedule1_overall_score": metrics1.OverallFairnessScore,
		"schedule2_overall_score": metrics2.OverallFairnessScore,
	}
}
