// KaoWu 排考引擎服务
// 主程序入口

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/paiban/kaowu/internal/config"
	"github.com/paiban/kaowu/internal/database"
	"github.com/paiban/kaowu/internal/handler"
	"github.com/paiban/kaowu/internal/metrics"
	"github.com/paiban/kaowu/internal/middleware"
	"github.com/paiban/kaowu/internal/repository"
	"github.com/paiban/kaowu/internal/runner"
	"github.com/paiban/kaowu/internal/security"
	"github.com/paiban/kaowu/pkg/logger"
	"github.com/paiban/kaowu/pkg/scheduler/optimizer"
)

// 构建信息（通过 ldflags 注入）
var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "加载配置失败: %v\n", err)
		os.Exit(1)
	}

	// 初始化日志
	logger.Init(logger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: "stdout",
	})

	fmt.Printf("KaoWu 排考引擎 v%s\n", Version)
	fmt.Printf("Build: %s (%s)\n", BuildTime, GitCommit)
	fmt.Println()

	if err := run(cfg); err != nil {
		logger.Error().Err(err).Msg("服务异常退出")
		os.Exit(1)
	}
}

func run(cfg *config.Config) error {
	m := metrics.New()

	// 可选的持久化
	var (
		store   runner.Store
		history handler.RunHistory
	)
	if cfg.Database.Enabled {
		db, err := database.New(&cfg.Database)
		if err != nil {
			return err
		}
		defer db.Close()

		if cfg.Database.AutoMigrate {
			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			err := db.Migrate(ctx)
			cancel()
			if err != nil {
				return err
			}
		}
		if err := m.RegisterDB(db.DB, cfg.Database.Name); err != nil {
			logger.Warn().Err(err).Msg("注册数据库指标失败")
		}

		repo := repository.NewRunRepository(db)
		store, history = repo, repo
	}

	opts := []runner.Option{runner.WithRecorder(m)}
	if store != nil {
		opts = append(opts, runner.WithStore(store))
	}
	manager := runner.NewManager(cfg.Solver, opts...)

	keys, err := security.NewAPIKeyManagerFromSpecs(cfg.API.Auth.Keys)
	if err != nil {
		return err
	}
	var limiter *security.RateLimiter
	if cfg.API.RateLimit.Requests > 0 {
		limiter = security.NewRateLimiter(cfg.API.RateLimit.Requests, cfg.API.RateLimit.Window)
		defer limiter.Close()
	}

	h := newHandler(cfg, m, manager, history, keys, limiter)

	server := &http.Server{
		Addr:         cfg.Addr(),
		Handler:      h,
		ReadTimeout:  cfg.API.Timeout,
		WriteTimeout: 2 * cfg.API.Timeout,
		IdleTimeout:  120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info().
			Str("addr", server.Addr).
			Str("env", cfg.App.Env).
			Str("version", Version).
			Bool("database", cfg.Database.Enabled).
			Int("api_keys", keys.Len()).
			Msg("服务器启动")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	// 优雅关闭
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case err := <-errCh:
		return err
	case <-quit:
	}

	logger.Info().Int("active_runs", manager.Active()).Msg("正在关闭服务器...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Error().Err(err).Msg("服务器关闭失败")
	}
	if err := manager.Shutdown(ctx); err != nil {
		logger.Error().Err(err).Msg("求解任务未能全部退出")
	}

	logger.Info().Msg("服务器已关闭")
	return nil
}

// newHandler 注册全部路由并套上中间件
func newHandler(cfg *config.Config, m *metrics.Metrics, runs handler.RunService, history handler.RunHistory,
	keys *security.APIKeyManager, limiter *security.RateLimiter) http.Handler {
	mux := http.NewServeMux()
	registerSystemRoutes(mux, cfg, m)
	handler.Register(mux, cfg.API.Prefix,
		handler.NewRunHandler(runs, history, cfg.API.MaxBodyBytes),
		handler.NewScheduleHandler(m, cfg.API.MaxBodyBytes))

	// 中间件执行顺序：requestID -> logging -> recovery -> cors -> rateLimit -> auth -> handler
	return middleware.Chain(mux,
		middleware.RequestID,
		middleware.Logging(m),
		middleware.Recovery,
		middleware.SecurityHeaders,
		middleware.CORS(cfg.API.CORS),
		middleware.RateLimit(limiter),
		middleware.Auth(keys, "/health", "/version", cfg.Metrics.Path),
	)
}

// registerSystemRoutes 健康检查、版本、指标与 API 索引
func registerSystemRoutes(mux *http.ServeMux, cfg *config.Config, m *metrics.Metrics) {
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]string{"status": "ok", "service": cfg.App.Name})
	})

	mux.HandleFunc("GET /version", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]string{
			"version":    Version,
			"build_time": BuildTime,
			"git_commit": GitCommit,
		})
	})

	if cfg.Metrics.Enabled {
		mux.Handle("GET "+cfg.Metrics.Path, m.Handler())
	}

	prefix := cfg.API.Prefix
	mux.HandleFunc("GET "+prefix+"/{$}", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]interface{}{
			"message":    "KaoWu 排考引擎 API v1",
			"algorithms": optimizer.Algorithms(),
			"endpoints": map[string]string{
				"start_run":   "POST " + prefix + "/runs",
				"list_runs":   "GET " + prefix + "/runs",
				"get_run":     "GET " + prefix + "/runs/{id}",
				"stop_run":    "POST " + prefix + "/runs/{id}/stop",
				"evaluate":    "POST " + prefix + "/schedule/evaluate",
				"constraints": "GET " + prefix + "/constraints/library",
			},
		})
	})
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(v)
}
