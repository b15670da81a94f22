// Package inflight tracks the newest request per (kind, key) so that late
// results for superseded requests can be dropped.
package inflight

import (
	"context"
	"fmt"
	"sync"
	"time"

	"mailintel/pkg/logger"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Config 请求登记配置
type Config struct {
	TTL  time.Duration `yaml:"ttl"`
	Size int           `yaml:"size"`
}

func (c Config) withDefaults() Config {
	if c.TTL <= 0 {
		c.TTL = 10 * time.Minute
	}
	if c.Size <= 0 {
		c.Size = 4096
	}
	return c
}

// Ticket 一次请求的登记号
type Ticket struct {
	Kind string
	Key  string
	Seq  int64
}

// Registry 记录每个 (kind, key) 的最新请求
type Registry interface {
	// Begin registers a new request and supersedes any earlier one.
	Begin(ctx context.Context, kind, key string) (Ticket, error)
	// Current reports whether t is still the newest request for its key.
	Current(ctx context.Context, t Ticket) (bool, error)
}

func slot(kind, key string) string {
	return fmt.Sprintf("inflight:%s:%s", kind, key)
}

// RedisRegistry 使用 INCR 在多个实例之间共享请求序号
type RedisRegistry struct {
	rdb    *redis.Client
	ttl    time.Duration
	logger *zap.Logger
}

func NewRedisRegistry(rdb *redis.Client, cfg Config, log *zap.Logger) *RedisRegistry {
	cfg = cfg.withDefaults()
	return &RedisRegistry{rdb: rdb, ttl: cfg.TTL, logger: logger.OrNop(log)}
}

func (r *RedisRegistry) Begin(ctx context.Context, kind, key string) (Ticket, error) {
	k := slot(kind, key)
	pipe := r.rdb.TxPipeline()
	incr := pipe.Incr(ctx, k)
	pipe.Expire(ctx, k, r.ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return Ticket{}, fmt.Errorf("register request: %w", err)
	}
	return Ticket{Kind: kind, Key: key, Seq: incr.Val()}, nil
}

func (r *RedisRegistry) Current(ctx context.Context, t Ticket) (bool, error) {
	seq, err := r.rdb.Get(ctx, slot(t.Kind, t.Key)).Int64()
	if err == redis.Nil {
		// 过期后没有更新的请求
		return true, nil
	}
	if err != nil {
		return false, fmt.Errorf("check request: %w", err)
	}
	return seq == t.Seq, nil
}

// MemoryRegistry 单实例使用，LRU 限制占用
type MemoryRegistry struct {
	mu    sync.Mutex
	cache *lru.Cache[string, int64]
}

func NewMemoryRegistry(cfg Config) (*MemoryRegistry, error) {
	cfg = cfg.withDefaults()
	cache, err := lru.New[string, int64](cfg.Size)
	if err != nil {
		return nil, err
	}
	return &MemoryRegistry{cache: cache}, nil
}

func (m *MemoryRegistry) Begin(_ context.Context, kind, key string) (Ticket, error) {
	k := slot(kind, key)
	m.mu.Lock()
	defer m.mu.Unlock()
	seq, _ := m.cache.Get(k)
	seq++
	m.cache.Add(k, seq)
	return Ticket{Kind: kind, Key: key, Seq: seq}, nil
}

func (m *MemoryRegistry) Current(_ context.Context, t Ticket) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	seq, ok := m.cache.Get(slot(t.Kind, t.Key))
	if !ok {
		return true, nil
	}
	return seq == t.Seq, nil
}

// Guard wraps a Registry and lets requests through when it fails.
type Guard struct {
	reg    Registry
	logger *zap.Logger
}

func NewGuard(reg Registry, log *zap.Logger) *Guard {
	return &Guard{reg: reg, logger: logger.OrNop(log)}
}

// Begin returns a ticket, or ok=false when key is empty or the registry is
// unavailable. A request without a ticket is never considered superseded.
func (g *Guard) Begin(ctx context.Context, kind, key string) (Ticket, bool) {
	if g == nil || g.reg == nil || key == "" {
		return Ticket{}, false
	}
	t, err := g.reg.Begin(ctx, kind, key)
	if err != nil {
		// registry 不可用时不阻止处理
		logger.WithTrace(ctx, g.logger).Warn("Request registry unavailable, skipping supersede check",
			zap.String("kind", kind), zap.Error(err))
		return Ticket{}, false
	}
	return t, true
}

// Superseded reports whether a newer request with the same key started.
func (g *Guard) Superseded(ctx context.Context, t Ticket) bool {
	current, err := g.reg.Current(ctx, t)
	if err != nil {
		logger.WithTrace(ctx, g.logger).Warn("Request registry check failed", zap.String("kind", t.Kind), zap.Error(err))
		return false
	}
	return !current
}
