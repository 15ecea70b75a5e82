// Package runner 管理后台求解任务：启动、事件记录、停止、查询与持久化
package runner

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/paiban/kaowu/pkg/model"
	"github.com/paiban/kaowu/pkg/scheduler/optimizer"
)

// Status 任务状态
type Status string

const (
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusStopped   Status = "stopped"
	StatusFailed    Status = "failed"
)

// Active 是否仍在运行
func (s Status) Active() bool {
	return s == StatusRunning
}

// Run 一次求解任务，字段由求解协程写入，读取请用 Snapshot
type Run struct {
	ID        uuid.UUID
	Algorithm string
	Config    map[string]interface{}
	CreatedAt time.Time

	engine optimizer.Engine
	done   chan struct{}

	mu         sync.RWMutex
	status     Status
	progress   int
	lastStep   *optimizer.StepEvent
	logs       []string
	logLimit   int
	droppedLog int
	result     *model.Schedule
	stats      optimizer.Statistics
	history    []float64
	err        error
	finishedAt time.Time
}

// Snapshot 任务的只读视图
type Snapshot struct {
	ID          uuid.UUID              `json:"id"`
	Algorithm   string                 `json:"algorithm"`
	Status      Status                 `json:"status"`
	Progress    int                    `json:"progress"`
	Config      map[string]interface{} `json:"config,omitempty"`
	LastStep    *optimizer.StepEvent   `json:"last_step,omitempty"`
	Logs        []string               `json:"logs,omitempty"`
	DroppedLogs int                    `json:"dropped_logs,omitempty"`
	Statistics  *optimizer.Statistics  `json:"statistics,omitempty"`
	History     []float64              `json:"convergence_history,omitempty"`
	Result      *model.Schedule        `json:"result,omitempty"`
	Error       string                 `json:"error,omitempty"`
	CreatedAt   time.Time              `json:"created_at"`
	FinishedAt  *time.Time             `json:"finished_at,omitempty"`
}

func newRun(algorithm string, config map[string]interface{}, logLimit int) *Run {
	return &Run{
		ID:        uuid.New(),
		Algorithm: algorithm,
		Config:    config,
		CreatedAt: time.Now(),
		done:      make(chan struct{}),
		status:    StatusRunning,
		logLimit:  logLimit,
	}
}

// Status 当前状态
func (r *Run) Status() Status {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.status
}

// Done 任务结束时关闭
func (r *Run) Done() <-chan struct{} {
	return r.done
}

// Snapshot 生成只读视图；detail 为 false 时不含日志、收敛曲线和方案
func (r *Run) Snapshot(detail bool) Snapshot {
	r.mu.RLock()
	defer r.mu.RUnlock()

	s := Snapshot{
		ID:        r.ID,
		Algorithm: r.Algorithm,
		Status:    r.status,
		Progress:  r.progress,
		Config:    r.Config,
		CreatedAt: r.CreatedAt,
	}
	if r.lastStep != nil {
		step := *r.lastStep
		s.LastStep = &step
	}
	if r.err != nil {
		s.Error = r.err.Error()
	}
	if !r.status.Active() {
		stats := r.stats
		s.Statistics = &stats
		finished := r.finishedAt
		s.FinishedAt = &finished
	}
	if detail {
		s.Logs = append([]string(nil), r.logs...)
		s.DroppedLogs = r.droppedLog
		s.History = append([]float64(nil), r.history...)
		s.Result = r.result.Clone()
	}
	return s
}

// 以下方法实现 optimizer.Observer，在求解协程中调用

func (r *Run) OnStep(event optimizer.StepEvent) {
	r.mu.Lock()
	r.lastStep = &event
	r.mu.Unlock()
}

func (r *Run) OnProgress(percent int) {
	r.mu.Lock()
	r.progress = percent
	r.mu.Unlock()
}

// OnLog 只保留最近 logLimit 条
func (r *Run) OnLog(message string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.logLimit > 0 && len(r.logs) >= r.logLimit {
		copy(r.logs, r.logs[1:])
		r.logs = r.logs[:len(r.logs)-1]
		r.droppedLog++
	}
	r.logs = append(r.logs, message)
}

func (r *Run) OnError(err error) {
	r.mu.Lock()
	r.err = err
	r.mu.Unlock()
}

func (r *Run) OnFinished(schedule *model.Schedule) {
	r.mu.Lock()
	r.result = schedule
	r.mu.Unlock()
}

// finish 记录结束状态
func (r *Run) finish(status Status, stats optimizer.Statistics, history []float64, result *model.Schedule, err error) {
	r.mu.Lock()
	r.status = status
	r.stats = stats
	r.history = history
	if result != nil {
		r.result = result
	}
	if err != nil {
		r.err = err
	}
	r.finishedAt = time.Now()
	r.mu.Unlock()
	close(r.done)
}
