// Package security 提供API密钥认证与请求频率限制
package security

import (
	"crypto/subtle"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"
)

var (
	ErrInvalidAPIKey     = errors.New("无效的API密钥")
	ErrExpiredAPIKey     = errors.New("API密钥已过期")
	ErrRateLimitExceeded = errors.New("请求频率超限")
)

// 权限范围
const (
	ScopeRead  = "read"  // 查询任务、评估方案
	ScopeWrite = "write" // 启动、停止任务
	ScopeAll   = "*"
)

// APIKey API密钥
type APIKey struct {
	Key       string     `json:"-"`
	Name      string     `json:"name"`
	Scopes    []string   `json:"scopes"`
	CreatedAt time.Time  `json:"created_at"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
	Enabled   bool       `json:"enabled"`
}

// IsValid 检查密钥是否有效
func (k *APIKey) IsValid() bool {
	if !k.Enabled {
		return false
	}
	if k.ExpiresAt != nil && k.ExpiresAt.Before(time.Now()) {
		return false
	}
	return true
}

// HasScope 检查密钥是否有某权限
func (k *APIKey) HasScope(scope string) bool {
	for _, s := range k.Scopes {
		if s == scope || s == ScopeAll {
			return true
		}
	}
	return false
}

// ParseKeySpec 解析 name:key[:scope|scope] 格式的密钥配置，未指定权限时拥有全部权限
func ParseKeySpec(spec string) (*APIKey, error) {
	parts := strings.Split(strings.TrimSpace(spec), ":")
	if len(parts) < 2 || len(parts) > 3 || parts[0] == "" || parts[1] == "" {
		return nil, fmt.Errorf("密钥配置格式错误: %q", spec)
	}
	scopes := []string{ScopeAll}
	if len(parts) == 3 && parts[2] != "" {
		scopes = strings.Split(parts[2], "|")
	}
	return &APIKey{
		Key:       parts[1],
		Name:      parts[0],
		Scopes:    scopes,
		CreatedAt: time.Now(),
		Enabled:   true,
	}, nil
}

// APIKeyManager API密钥管理器
type APIKeyManager struct {
	keys map[string]*APIKey // key -> APIKey
	mu   sync.RWMutex
}

// NewAPIKeyManager 创建密钥管理器
func NewAPIKeyManager() *APIKeyManager {
	return &APIKeyManager{
		keys: make(map[string]*APIKey),
	}
}

// NewAPIKeyManagerFromSpecs 按配置创建密钥管理器
func NewAPIKeyManagerFromSpecs(specs []string) (*APIKeyManager, error) {
	m := NewAPIKeyManager()
	for _, spec := range specs {
		key, err := ParseKeySpec(spec)
		if err != nil {
			return nil, err
		}
		m.Add(key)
	}
	return m, nil
}

// Add 注册密钥
func (m *APIKeyManager) Add(key *APIKey) {
	m.mu.Lock()
	m.keys[key.Key] = key
	m.mu.Unlock()
}

// Len 已注册的密钥数
func (m *APIKeyManager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.keys)
}

// Validate 验证密钥
func (m *APIKeyManager) Validate(key string) (*APIKey, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var found *APIKey
	for k, apiKey := range m.keys {
		if subtle.ConstantTimeCompare([]byte(k), []byte(key)) == 1 {
			found = apiKey
		}
	}
	if found == nil {
		return nil, ErrInvalidAPIKey
	}
	if !found.IsValid() {
		return nil, ErrExpiredAPIKey
	}
	return found, nil
}

// Revoke 撤销密钥
func (m *APIKeyManager) Revoke(key string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if apiKey, exists := m.keys[key]; exists {
		apiKey.Enabled = false
	}
}

// RateLimiter 滑动窗口请求频率限制器
type RateLimiter struct {
	requests map[string][]time.Time // 客户端 -> 窗口内的请求时间
	limit    int
	window   time.Duration
	mu       sync.Mutex
	stop     chan struct{}
	once     sync.Once
}

// NewRateLimiter 创建频率限制器，并启动后台清理
func NewRateLimiter(limit int, window time.Duration) *RateLimiter {
	rl := &RateLimiter{
		requests: make(map[string][]time.Time),
		limit:    limit,
		window:   window,
		stop:     make(chan struct{}),
	}
	go rl.cleanup()
	return rl
}

// Allow 检查是否允许请求
func (rl *RateLimiter) Allow(key string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()
	valid := pruneBefore(rl.requests[key], now.Add(-rl.window))
	if len(valid) >= rl.limit {
		rl.requests[key] = valid
		return false
	}
	rl.requests[key] = append(valid, now)
	return true
}

// Close 停止后台清理
func (rl *RateLimiter) Close() {
	rl.once.Do(func() { close(rl.stop) })
}

func (rl *RateLimiter) cleanup() {
	ticker := time.NewTicker(rl.window)
	defer ticker.Stop()

	for {
		select {
		case <-rl.stop:
			return
		case now := <-ticker.C:
			rl.mu.Lock()
			for key, reqs := range rl.requests {
				valid := pruneBefore(reqs, now.Add(-rl.window))
				if len(valid) == 0 {
					delete(rl.requests, key)
				} else {
					rl.requests[key] = valid
				}
			}
			rl.mu.Unlock()
		}
	}
}

// pruneBefore 请求时间按先后追加，丢弃窗口开始前的部分
func pruneBefore(reqs []time.Time, start time.Time) []time.Time {
	i := 0
	for i < len(reqs) && !reqs[i].After(start) {
		i++
	}
	return reqs[i:]
}

// ExtractAPIKey 从请求中提取API密钥
func ExtractAPIKey(r *http.Request) string {
	// 1. 从 Authorization header
	auth := r.Header.Get("Authorization")
	if strings.HasPrefix(auth, "Bearer ") {
		return strings.TrimPrefix(auth, "Bearer ")
	}

	// 2. 从 X-API-Key header
	if key := r.Header.Get("X-API-Key"); key != "" {
		return key
	}

	// 3. 从 query parameter
	if key := r.URL.Query().Get("api_key"); key != "" {
		return key
	}

	return ""
}
