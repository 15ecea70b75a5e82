// Package logger 提供基于 zerolog 的统一日志
package logger

import (
	"context"
	"io"
	"os"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

var (
	once   sync.Once
	logger zerolog.Logger
)

// Config 日志配置
type Config struct {
	Level      string `yaml:"level" json:"level"`
	Format     string `yaml:"format" json:"format"` // json/console
	Output     string `yaml:"output" json:"output"` // stdout/stderr/file
	FilePath   string `yaml:"file_path,omitempty" json:"file_path,omitempty"`
	TimeFormat string `yaml:"time_format,omitempty" json:"time_format,omitempty"`
}

// DefaultConfig 返回默认配置
func DefaultConfig() Config {
	return Config{
		Level:      "info",
		Format:     "console",
		Output:     "stdout",
		TimeFormat: time.RFC3339,
	}
}

// Init 初始化日志器
func Init(cfg Config) {
	once.Do(func() {
		level := parseLevel(cfg.Level)
		zerolog.SetGlobalLevel(level)

		var output io.Writer
		switch cfg.Output {
		case "stderr":
			output = os.Stderr
		case "file":
			if cfg.FilePath != "" {
				f, err := os.OpenFile(cfg.FilePath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
				if err == nil {
					output = f
				} else {
					output = os.Stdout
				}
			} else {
				output = os.Stdout
			}
		default:
			output = os.Stdout
		}

		if cfg.Format == "console" {
			output = zerolog.ConsoleWriter{
				Out:        output,
				TimeFormat: cfg.TimeFormat,
			}
		}

		logger = zerolog.New(output).With().Timestamp().Logger()
	})
}

// parseLevel 解析日志级别
func parseLevel(level string) zerolog.Level {
	switch level {
	case "debug":
		return zerolog.DebugLevel
	case "info":
		return zerolog.InfoLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	case "fatal":
		return zerolog.FatalLevel
	default:
		return zerolog.InfoLevel
	}
}

// Get 获取日志器，未初始化时使用默认配置
func Get() *zerolog.Logger {
	Init(DefaultConfig())
	return &logger
}

type contextKey int

const requestIDKey contextKey = 0

// ContextWithRequestID 在上下文中记录请求ID
func ContextWithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey, id)
}

// RequestIDFromContext 获取上下文中的请求ID
func RequestIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey).(string)
	return id
}

// WithContext 从上下文创建日志器
func WithContext(ctx context.Context) *zerolog.Logger {
	c := Get().With()
	if id := RequestIDFromContext(ctx); id != "" {
		c = c.Str("request_id", id)
	}
	l := c.Logger()
	return &l
}

// Info 记录信息日志
func Info() *zerolog.Event {
	return Get().Info()
}

// Warn 记录警告日志
func Warn() *zerolog.Event {
	return Get().Warn()
}

// Error 记录错误日志
func Error() *zerolog.Event {
	return Get().Error()
}

// WithField 添加字段
func WithField(key string, value interface{}) *zerolog.Logger {
	l := Get().With().Interface(key, value).Logger()
	return &l
}

// SolverLogger 求解引擎专用日志器
type SolverLogger struct {
	base zerolog.Logger
}

// NewSolverLogger 创建求解引擎日志器
func NewSolverLogger(algorithm string) *SolverLogger {
	return &SolverLogger{
		base: Get().With().Str("component", "solver").Str("algorithm", algorithm).Logger(),
	}
}

// StartRun 记录求解开始
func (l *SolverLogger) StartRun(courses, rooms, proctors, slots int, seed int64) {
	l.base.Info().
		Int("courses", courses).
		Int("rooms", rooms).
		Int("proctors", proctors).
		Int("slots", slots).
		Int64("seed", seed).
		Msg("开始求解")
}

// CoursesSplit 记录科目拆分
func (l *SolverLogger) CoursesSplit(courses, units int) {
	l.base.Info().
		Int("courses", courses).
		Int("units", units).
		Msg("超额科目已拆分")
}

// Progress 记录求解过程中的消息
func (l *SolverLogger) Progress(message string) {
	l.base.Debug().Msg(message)
}

// RunComplete 记录求解完成
func (l *SolverLogger) RunComplete(duration time.Duration, iterations int, fitness float64, feasible bool, reason string) {
	l.base.Info().
		Dur("duration", duration).
		Int("iterations", iterations).
		Float64("fitness", fitness).
		Bool("feasible", feasible).
		Str("stop_reason", reason).
		Msg("求解完成")
}

// RunFailed 记录求解异常
func (l *SolverLogger) RunFailed(err error, stack []byte) {
	l.base.Error().
		Err(err).
		Bytes("stack", stack).
		Msg("求解异常中止")
}
