package repository

import (
	"context"
	"time"

	"github.com/mohammad-safakhou/newsie/config"
	"github.com/mohammad-safakhou/newsie/repository/redis_repository"
	"github.com/mohammad-safakhou/newsie/repository/upstash_repository"
)

// KV is the narrow key-value contract the session store needs. Get reports
// presence separately from errors so an absent key is never a fault.
type KV interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string, ttl time.Duration) error
	Del(ctx context.Context, key string) error
	Ping(ctx context.Context) error
}

// NewKV selects the key-value backend once at process start: the Upstash
// REST client when its URL and token are configured, otherwise a direct
// Redis connection.
func NewKV(ctx context.Context, cfg config.DatabasesConfig) (KV, error) {
	if cfg.Upstash.Enabled() {
		return upstash_repository.NewKV(cfg.Upstash.URL, cfg.Upstash.Token, cfg.Upstash.Timeout), nil
	}
	c, err := redis_repository.Conn(ctx, cfg.Redis.Host, cfg.Redis.Port, cfg.Redis.Password, cfg.Redis.DB, cfg.Redis.Timeout)
	if err != nil {
		return nil, err
	}
	return redis_repository.NewKV(c), nil
}
