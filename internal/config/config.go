// Package config 提供配置管理
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// 运行环境
const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
	EnvTest        = "test"
)

// Config 应用配置
type Config struct {
	App      AppConfig
	Database DatabaseConfig
	API      APIConfig
	Solver   SolverConfig
	Log      LogConfig
	Metrics  MetricsConfig
}

// AppConfig 应用基础配置
type AppConfig struct {
	Name string
	Env  string
	Port int
}

// DatabaseConfig 数据库配置；未启用时求解记录只保存在内存中
type DatabaseConfig struct {
	Enabled         bool
	Host            string
	Port            int
	Name            string
	User            string
	Password        string
	SSLMode         string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	AutoMigrate     bool
}

// DSN 返回数据库连接字符串
func (c *DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Name, c.SSLMode,
	)
}

// APIConfig API配置
type APIConfig struct {
	Prefix       string
	Timeout      time.Duration
	MaxBodyBytes int64
	CORS         CORSConfig
	Auth         AuthConfig
	RateLimit    RateLimitConfig
}

// AuthConfig API密钥认证，Keys 为空时不启用
type AuthConfig struct {
	Keys []string // name:key[:scope|scope]
}

// RateLimitConfig 按客户端的请求频率限制，Requests <= 0 时不启用
type RateLimitConfig struct {
	Requests int
	Window   time.Duration
}

// CORSConfig 跨域配置
type CORSConfig struct {
	Enabled bool
	Origins []string
}

// SolverConfig 求解服务配置
type SolverConfig struct {
	DefaultAlgorithm string
	MaxRuntime       time.Duration // 请求未指定 max_runtime 时使用
	MaxConcurrent    int           // 同时运行的求解任务上限
	LogBuffer        int           // 每个任务保留的日志条数
	RetainFinished   time.Duration // 已结束任务在内存中的保留时间
}

// LogConfig 日志配置
type LogConfig struct {
	Level  string
	Format string // json / console
}

// MetricsConfig 监控配置
type MetricsConfig struct {
	Enabled bool
	Path    string
}

// Load 从 .env 文件与环境变量加载配置
func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
			return nil, err
		}
	}

	cfg := &Config{
		App: AppConfig{
			Name: v.GetString("APP_NAME"),
			Env:  v.GetString("APP_ENV"),
			Port: v.GetInt("APP_PORT"),
		},
		Database: DatabaseConfig{
			Enabled:         v.GetBool("DB_ENABLED"),
			Host:            v.GetString("DB_HOST"),
			Port:            v.GetInt("DB_PORT"),
			Name:            v.GetString("DB_NAME"),
			User:            v.GetString("DB_USER"),
			Password:        v.GetString("DB_PASSWORD"),
			SSLMode:         v.GetString("DB_SSL_MODE"),
			MaxOpenConns:    v.GetInt("DB_MAX_OPEN_CONNS"),
			MaxIdleConns:    v.GetInt("DB_MAX_IDLE_CONNS"),
			ConnMaxLifetime: parseDuration(v.GetString("DB_CONN_MAX_LIFETIME"), 5*time.Minute),
			AutoMigrate:     v.GetBool("DB_AUTO_MIGRATE"),
		},
		API: APIConfig{
			Prefix:       v.GetString("API_PREFIX"),
			Timeout:      parseDuration(v.GetString("API_TIMEOUT"), 30*time.Second),
			MaxBodyBytes: v.GetInt64("API_MAX_BODY_BYTES"),
			CORS: CORSConfig{
				Enabled: v.GetBool("API_CORS_ENABLED"),
				Origins: splitAndTrim(v.GetString("API_CORS_ORIGINS")),
			},
			Auth: AuthConfig{
				Keys: splitAndTrim(v.GetString("API_KEYS")),
			},
			RateLimit: RateLimitConfig{
				Requests: v.GetInt("API_RATE_LIMIT"),
				Window:   parseDuration(v.GetString("API_RATE_WINDOW"), time.Minute),
			},
		},
		Solver: SolverConfig{
			DefaultAlgorithm: v.GetString("SOLVER_DEFAULT_ALGORITHM"),
			MaxRuntime:       parseDuration(v.GetString("SOLVER_MAX_RUNTIME"), 300*time.Second),
			MaxConcurrent:    v.GetInt("SOLVER_MAX_CONCURRENT"),
			LogBuffer:        v.GetInt("SOLVER_LOG_BUFFER"),
			RetainFinished:   parseDuration(v.GetString("SOLVER_RETAIN_FINISHED"), time.Hour),
		},
		Log: LogConfig{
			Level:  v.GetString("LOG_LEVEL"),
			Format: v.GetString("LOG_FORMAT"),
		},
		Metrics: MetricsConfig{
			Enabled: v.GetBool("METRICS_ENABLED"),
			Path:    v.GetString("METRICS_PATH"),
		},
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("APP_NAME", "kaowu")
	v.SetDefault("APP_ENV", EnvDevelopment)
	v.SetDefault("APP_PORT", 7012)

	v.SetDefault("DB_ENABLED", false)
	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", 5432)
	v.SetDefault("DB_NAME", "kaowu")
	v.SetDefault("DB_USER", "kaowu")
	v.SetDefault("DB_PASSWORD", "kaowu123")
	v.SetDefault("DB_SSL_MODE", "disable")
	v.SetDefault("DB_MAX_OPEN_CONNS", 25)
	v.SetDefault("DB_MAX_IDLE_CONNS", 5)
	v.SetDefault("DB_CONN_MAX_LIFETIME", "5m")
	v.SetDefault("DB_AUTO_MIGRATE", true)

	v.SetDefault("API_PREFIX", "/api/v1")
	v.SetDefault("API_TIMEOUT", "30s")
	v.SetDefault("API_MAX_BODY_BYTES", 10<<20)
	v.SetDefault("API_CORS_ENABLED", true)
	v.SetDefault("API_CORS_ORIGINS", "*")
	v.SetDefault("API_KEYS", "")
	v.SetDefault("API_RATE_LIMIT", 600)
	v.SetDefault("API_RATE_WINDOW", "1m")

	v.SetDefault("SOLVER_DEFAULT_ALGORITHM", "sa")
	v.SetDefault("SOLVER_MAX_RUNTIME", "300s")
	v.SetDefault("SOLVER_MAX_CONCURRENT", 4)
	v.SetDefault("SOLVER_LOG_BUFFER", 200)
	v.SetDefault("SOLVER_RETAIN_FINISHED", "1h")

	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")

	v.SetDefault("METRICS_ENABLED", true)
	v.SetDefault("METRICS_PATH", "/metrics")
}

// IsDevelopment 检查是否为开发环境
func (c *Config) IsDevelopment() bool {
	return c.App.Env == EnvDevelopment
}

// IsProduction 检查是否为生产环境
func (c *Config) IsProduction() bool {
	return c.App.Env == EnvProduction
}

// IsTest 检查是否为测试环境
func (c *Config) IsTest() bool {
	return c.App.Env == EnvTest
}

// Addr 服务监听地址
func (c *Config) Addr() string {
	return fmt.Sprintf(":%d", c.App.Port)
}

func parseDuration(value string, fallback time.Duration) time.Duration {
	if value == "" {
		return fallback
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return fallback
	}
	return d
}

func splitAndTrim(value string) []string {
	if value == "" {
		return nil
	}
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
