// Package metrics 提供Prometheus监控指标
package metrics

import (
	"database/sql"
	"net/http"
	"runtime"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/paiban/kaowu/pkg/model"
	"github.com/paiban/kaowu/pkg/scheduler/optimizer"
)

const namespace = "kaowu"

// Metrics 服务指标集合，使用独立注册表
type Metrics struct {
	registry *prometheus.Registry
	handler  http.Handler

	requestTotal    *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec

	runsTotal    *prometheus.CounterVec
	runDuration  *prometheus.HistogramVec
	iterations   *prometheus.CounterVec
	activeRuns   prometheus.Gauge
	bestCost     *prometheus.GaugeVec
	finalCost    *prometheus.GaugeVec
	evaluations  *prometheus.CounterVec
	splitCourses prometheus.Counter
}

// New 创建并注册全部指标
func New() *Metrics {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		registry: registry,
		requestTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP请求总数",
		}, []string{"method", "path", "status"}),
		requestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP请求延迟",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0},
		}, []string{"method", "path"}),
		runsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "solver_runs_total",
			Help:      "求解任务数（按结束状态）",
		}, []string{"algorithm", "status"}),
		runDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "solver_run_duration_seconds",
			Help:      "求解耗时",
			Buckets:   []float64{0.1, 0.5, 1.0, 2.5, 5.0, 10.0, 30.0, 60.0, 120.0, 300.0},
		}, []string{"algorithm"}),
		iterations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "solver_iterations_total",
			Help:      "求解迭代次数",
		}, []string{"algorithm"}),
		activeRuns: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "solver_active_runs",
			Help:      "当前运行中的求解任务数",
		}),
		bestCost: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "solver_best_cost",
			Help:      "最近一次上报的搜索最优代价",
		}, []string{"algorithm"}),
		finalCost: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "solver_final_fitness",
			Help:      "最近一次完成的求解的最终适应度",
		}, []string{"algorithm"}),
		evaluations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "schedule_evaluations_total",
			Help:      "方案评估次数",
		}, []string{"feasible"}),
		splitCourses: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "solver_split_courses_total",
			Help:      "因人数超过最大考场容量而拆分的科目数",
		}),
	}

	goroutines := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "goroutines",
		Help:      "当前协程数",
	}, func() float64 {
		return float64(runtime.NumGoroutine())
	})

	registry.MustRegister(
		m.requestTotal, m.requestDuration,
		m.runsTotal, m.runDuration, m.iterations, m.activeRuns, m.bestCost, m.finalCost,
		m.evaluations, m.splitCourses, goroutines,
	)
	m.handler = promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
	return m
}

// Handler 暴露 /metrics
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		})
	}
	return m.handler
}

// Registry 返回注册表
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// RegisterDB 注册数据库连接池指标
func (m *Metrics) RegisterDB(db *sql.DB, name string) error {
	return m.registry.Register(collectors.NewDBStatsCollector(db, name))
}

// ObserveHTTPRequest 记录HTTP请求
func (m *Metrics) ObserveHTTPRequest(method, path string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	m.requestTotal.WithLabelValues(method, path, strconv.Itoa(status)).Inc()
	m.requestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

// RunStarted 记录求解开始
func (m *Metrics) RunStarted(algorithm string, splitCourses int) {
	if m == nil {
		return
	}
	m.activeRuns.Inc()
	m.splitCourses.Add(float64(splitCourses))
}

// RunFinished 记录求解结束
func (m *Metrics) RunFinished(algorithm, status string, duration time.Duration, fitness float64) {
	if m == nil {
		return
	}
	m.activeRuns.Dec()
	m.runsTotal.WithLabelValues(algorithm, status).Inc()
	m.runDuration.WithLabelValues(algorithm).Observe(duration.Seconds())
	if status == "completed" || status == "stopped" {
		m.finalCost.WithLabelValues(algorithm).Set(fitness)
	}
}

// RecordEvaluation 记录一次方案评估
func (m *Metrics) RecordEvaluation(feasible bool) {
	if m == nil {
		return
	}
	m.evaluations.WithLabelValues(strconv.FormatBool(feasible)).Inc()
}

// Observer 返回把迭代事件转为指标的观察者，每次求解使用一个新实例
func (m *Metrics) Observer(algorithm string) optimizer.Observer {
	if m == nil {
		return optimizer.ObserverFuncs{}
	}
	return &runObserver{metrics: m, algorithm: algorithm}
}

// runObserver 按迭代增量累加迭代计数
type runObserver struct {
	metrics       *Metrics
	algorithm     string
	lastIteration int
}

func (o *runObserver) OnStep(event optimizer.StepEvent) {
	if delta := event.Iteration - o.lastIteration; delta > 0 {
		o.metrics.iterations.WithLabelValues(o.algorithm).Add(float64(delta))
		o.lastIteration = event.Iteration
	}
	if !event.Final {
		o.metrics.bestCost.WithLabelValues(o.algorithm).Set(event.BestCost)
	}
}

func (o *runObserver) OnProgress(int) {}

func (o *runObserver) OnLog(string) {}

func (o *runObserver) OnError(error) {}

func (o *runObserver) OnFinished(*model.Schedule) {}
