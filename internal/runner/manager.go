package runner

import (
	"context"
	stderrors "errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/paiban/kaowu/internal/config"
	"github.com/paiban/kaowu/internal/repository"
	"github.com/paiban/kaowu/pkg/errors"
	"github.com/paiban/kaowu/pkg/logger"
	"github.com/paiban/kaowu/pkg/model"
	"github.com/paiban/kaowu/pkg/scheduler/optimizer"
	"github.com/paiban/kaowu/pkg/scheduler/space"
)

var validate = validator.New()

// StartRequest 启动求解请求
type StartRequest struct {
	Algorithm string                 `json:"algorithm"`
	Courses   []model.Course         `json:"courses" validate:"required,min=1,dive"`
	Rooms     []model.Room           `json:"rooms" validate:"required,min=1,dive"`
	Proctors  []model.Proctor        `json:"proctors" validate:"dive"`
	Config    map[string]interface{} `json:"config"`
}

// Store 求解记录持久化，repository.RunRepository 满足该接口
type Store interface {
	Create(ctx context.Context, run *repository.RunRecord) error
	Update(ctx context.Context, run *repository.RunRecord) error
	SaveAssignments(ctx context.Context, runID uuid.UUID, courses []model.Course) error
}

// Recorder 求解指标，metrics.Metrics 满足该接口
type Recorder interface {
	RunStarted(algorithm string, splitCourses int)
	RunFinished(algorithm, status string, duration time.Duration, fitness float64)
	Observer(algorithm string) optimizer.Observer
}

// Option 管理器选项
type Option func(*Manager)

// WithStore 启用持久化
func WithStore(store Store) Option {
	return func(m *Manager) {
		m.store = store
	}
}

// WithRecorder 启用指标
func WithRecorder(rec Recorder) Option {
	return func(m *Manager) {
		m.recorder = rec
	}
}

// Manager 求解任务管理器
type Manager struct {
	cfg      config.SolverConfig
	store    Store
	recorder Recorder
	log      *zerolog.Logger

	mu     sync.RWMutex
	runs   map[uuid.UUID]*Run
	active int
	wg     sync.WaitGroup
	closed bool
}

// NewManager 创建管理器
func NewManager(cfg config.SolverConfig, opts ...Option) *Manager {
	if cfg.DefaultAlgorithm == "" {
		cfg.DefaultAlgorithm = optimizer.AlgorithmAnnealing
	}
	m := &Manager{
		cfg:  cfg,
		runs: make(map[uuid.UUID]*Run),
		log:  logger.WithField("component", "runner"),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Start 校验请求并在后台启动求解，立即返回任务
func (m *Manager) Start(ctx context.Context, req *StartRequest) (*Run, error) {
	if req == nil {
		return nil, errors.InvalidInput("request", "请求为空")
	}
	if err := validateRequest(req); err != nil {
		return nil, err
	}

	algorithm := strings.TrimSpace(req.Algorithm)
	if algorithm == "" {
		algorithm = m.cfg.DefaultAlgorithm
	}
	// 指标标签使用规范名，未知算法交由 optimizer.New 报错
	if name, ok := optimizer.Canonical(algorithm); ok {
		algorithm = name
	}
	settings := m.settings(req.Config)

	run := newRun(algorithm, settings, m.cfg.LogBuffer)
	observers := optimizer.MultiObserver{run}
	if m.recorder != nil {
		observers = append(observers, m.recorder.Observer(algorithm))
	}

	engine, err := optimizer.New(algorithm, req.Courses, req.Rooms, req.Proctors, settings,
		optimizer.WithObserver(observers))
	if err != nil {
		return nil, err
	}
	run.Algorithm = engine.Name()
	run.engine = engine

	m.prune()

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil, errors.New(errors.CodeInternal, "管理器已关闭")
	}
	if m.cfg.MaxConcurrent > 0 && m.active >= m.cfg.MaxConcurrent {
		m.mu.Unlock()
		return nil, errors.New(errors.CodeRateLimited, "并发求解任务已达上限").
			WithField("max_concurrent", m.cfg.MaxConcurrent)
	}
	m.runs[run.ID] = run
	m.active++
	m.wg.Add(1)
	m.mu.Unlock()

	m.persistCreate(ctx, run)
	if m.recorder != nil {
		m.recorder.RunStarted(run.Algorithm, splitCount(engine))
	}

	go m.execute(run)

	m.log.Info().
		Str("run_id", run.ID.String()).
		Str("request_id", logger.RequestIDFromContext(ctx)).
		Str("algorithm", run.Algorithm).
		Int("courses", len(req.Courses)).
		Int("rooms", len(req.Rooms)).
		Int("proctors", len(req.Proctors)).
		Msg("求解任务已启动")
	return run, nil
}

// settings 合并默认运行时长
func (m *Manager) settings(in map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(in)+1)
	for k, v := range in {
		out[k] = v
	}
	if _, ok := out["max_runtime"]; !ok && m.cfg.MaxRuntime > 0 {
		out["max_runtime"] = m.cfg.MaxRuntime.Seconds()
	}
	return out
}

// execute 在独立协程中运行引擎，请求上下文结束不影响任务
func (m *Manager) execute(run *Run) {
	defer m.wg.Done()

	start := time.Now()
	result, err := run.engine.Run(context.Background())
	stats := run.engine.Statistics()

	status := StatusCompleted
	switch {
	case err != nil:
		status = StatusFailed
	case stats.StopReason == optimizer.StopRequested || stats.StopReason == optimizer.StopCanceled:
		status = StatusStopped
	}

	run.finish(status, stats, run.engine.ConvergenceHistory(), result, err)

	m.mu.Lock()
	m.active--
	m.mu.Unlock()

	if m.recorder != nil {
		m.recorder.RunFinished(run.Algorithm, string(status), time.Since(start), stats.FinalCost)
	}
	m.persistFinish(run, result)

	event := m.log.Info()
	if err != nil {
		event = m.log.Error().Err(err)
	}
	event.
		Str("run_id", run.ID.String()).
		Str("status", string(status)).
		Str("stop_reason", string(stats.StopReason)).
		Int("iterations", stats.Iterations).
		Float64("final_cost", stats.FinalCost).
		Dur("duration", time.Since(start)).
		Msg("求解任务结束")
}

// Stop 请求停止运行中的任务
func (m *Manager) Stop(id uuid.UUID) (*Run, error) {
	run, err := m.Get(id)
	if err != nil {
		return nil, err
	}
	if status := run.Status(); !status.Active() {
		return nil, errors.RunNotActive(id.String(), string(status))
	}
	run.engine.Stop()
	m.log.Info().Str("run_id", id.String()).Msg("已请求停止求解任务")
	return run, nil
}

// Get 按ID获取任务
func (m *Manager) Get(id uuid.UUID) (*Run, error) {
	m.mu.RLock()
	run, ok := m.runs[id]
	m.mu.RUnlock()
	if !ok {
		return nil, errors.NotFound("run", id.String())
	}
	return run, nil
}

// List 返回所有任务，按创建时间倒序
func (m *Manager) List() []*Run {
	m.mu.RLock()
	runs := make([]*Run, 0, len(m.runs))
	for _, r := range m.runs {
		runs = append(runs, r)
	}
	m.mu.RUnlock()

	sort.Slice(runs, func(i, j int) bool {
		return runs[i].CreatedAt.After(runs[j].CreatedAt)
	})
	return runs
}

// Active 运行中的任务数
func (m *Manager) Active() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.active
}

// Wait 等待任务结束
func (m *Manager) Wait(ctx context.Context, id uuid.UUID) (*Run, error) {
	run, err := m.Get(id)
	if err != nil {
		return nil, err
	}
	select {
	case <-run.Done():
		return run, nil
	case <-ctx.Done():
		return nil, errors.Wrap(ctx.Err(), errors.CodeTimeout, "等待求解任务超时")
	}
}

// Shutdown 拒绝新任务，停止所有运行中的任务并等待其结束
func (m *Manager) Shutdown(ctx context.Context) error {
	m.mu.Lock()
	m.closed = true
	for _, r := range m.runs {
		if r.Status().Active() {
			r.engine.Stop()
		}
	}
	m.mu.Unlock()

	done := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return errors.Wrap(ctx.Err(), errors.CodeTimeout, "等待求解任务退出超时")
	}
}

// prune 清理超过保留时长的已结束任务
func (m *Manager) prune() {
	if m.cfg.RetainFinished <= 0 {
		return
	}
	cutoff := time.Now().Add(-m.cfg.RetainFinished)

	m.mu.Lock()
	defer m.mu.Unlock()
	for id, r := range m.runs {
		r.mu.RLock()
		expired := !r.status.Active() && r.finishedAt.Before(cutoff)
		r.mu.RUnlock()
		if expired {
			delete(m.runs, id)
		}
	}
}

func (m *Manager) persistCreate(ctx context.Context, run *Run) {
	if m.store == nil {
		return
	}
	record := &repository.RunRecord{
		ID:        run.ID,
		Algorithm: run.Algorithm,
		Status:    string(StatusRunning),
		Config:    run.Config,
		CreatedAt: run.CreatedAt,
	}
	if err := m.store.Create(ctx, record); err != nil {
		m.log.Warn().Err(err).Str("run_id", run.ID.String()).Msg("保存求解记录失败")
	}
}

// persistFinish 写入最终状态与分配结果，使用独立上下文
func (m *Manager) persistFinish(run *Run, result *model.Schedule) {
	if m.store == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	snap := run.Snapshot(false)
	record := &repository.RunRecord{
		ID:         run.ID,
		Algorithm:  run.Algorithm,
		Status:     string(snap.Status),
		Config:     run.Config,
		Error:      snap.Error,
		CreatedAt:  run.CreatedAt,
		FinishedAt: snap.FinishedAt,
	}
	if s := snap.Statistics; s != nil {
		record.Iterations = s.Iterations
		record.InitialCost = s.InitialCost
		record.BestCost = s.BestCost
		record.FinalCost = s.FinalCost
		record.Feasible = s.Feasible
		record.StopReason = string(s.StopReason)
		record.ExecutionMs = s.ExecutionTime.Milliseconds()
	}
	if err := m.store.Update(ctx, record); err != nil {
		m.log.Warn().Err(err).Str("run_id", run.ID.String()).Msg("更新求解记录失败")
		return
	}
	if result == nil {
		return
	}
	if err := m.store.SaveAssignments(ctx, run.ID, result.Courses); err != nil {
		m.log.Warn().Err(err).Str("run_id", run.ID.String()).Msg("保存分配结果失败")
	}
}

// splitCount 大科目拆分数量
func splitCount(engine optimizer.Engine) int {
	type splitter interface {
		Splits() []space.SplitReport
	}
	if s, ok := engine.(splitter); ok {
		return len(s.Splits())
	}
	return 0
}

// validateRequest 校验请求结构
func validateRequest(req *StartRequest) error {
	ve := &errors.ValidationErrors{}
	if err := validate.Struct(req); err != nil {
		var fieldErrs validator.ValidationErrors
		if !stderrors.As(err, &fieldErrs) {
			return errors.Wrap(err, errors.CodeInvalidInput, "请求校验失败")
		}
		for _, fe := range fieldErrs {
			ve.Add(fe.Namespace(), fmt.Sprintf("不满足规则 %s %s", fe.Tag(), fe.Param()))
		}
	}
	// 算法名不区分大小写，空值使用默认算法
	if strings.TrimSpace(req.Algorithm) != "" {
		if _, ok := optimizer.Canonical(req.Algorithm); !ok {
			ve.Add("StartRequest.Algorithm", "未知算法 "+req.Algorithm)
		}
	}
	if ve.HasErrors() {
		return ve.ToAppError()
	}
	return nil
}
