package pointsconfig

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"sundayschool-points/pkg/config"
	"sundayschool-points/pkg/rediskey"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/redis/go-redis/v9"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var (
	cacheHits = promauto.NewCounter(prometheus.CounterOpts{Name: "points_config_cache_hits_total"})
	cacheMiss = promauto.NewCounter(prometheus.CounterOpts{Name: "points_config_cache_miss_total"})
)

// Cache fronts config reads. A miss or a cache failure always falls through
// to the database.
type Cache interface {
	Get(ctx context.Context, churchID string) (*ChurchPointsConfig, bool)
	Set(ctx context.Context, cfg *ChurchPointsConfig)
	Invalidate(ctx context.Context, churchID string)
}

type CacheParams struct {
	fx.In
	Config *config.Config
	Redis  *redis.Client `optional:"true"`
}

func NewCache(p CacheParams) Cache {
	if p.Redis == nil || p.Config.Points.ConfigCacheTTL <= 0 {
		return noopCache{}
	}
	return &redisCache{rdb: p.Redis, ttl: p.Config.Points.ConfigCacheTTL}
}

type redisCache struct {
	rdb *redis.Client
	ttl time.Duration
}

func (c *redisCache) Get(ctx context.Context, churchID string) (*ChurchPointsConfig, bool) {
	b, err := c.rdb.Get(ctx, rediskey.BuildPointsConfigKey(churchID)).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			zap.L().Warn("points config cache read failed", zap.String("church_id", churchID), zap.Error(err))
		}
		cacheMiss.Inc()
		return nil, false
	}

	var cfg ChurchPointsConfig
	if err := json.Unmarshal(b, &cfg); err != nil {
		zap.L().Warn("points config cache entry corrupt", zap.String("church_id", churchID), zap.Error(err))
		cacheMiss.Inc()
		return nil, false
	}

	cacheHits.Inc()
	return &cfg, true
}

func (c *redisCache) Set(ctx context.Context, cfg *ChurchPointsConfig) {
	b, err := json.Marshal(cfg)
	if err != nil {
		return
	}
	if err := c.rdb.Set(ctx, rediskey.BuildPointsConfigKey(cfg.ChurchID), b, c.ttl).Err(); err != nil {
		zap.L().Warn("points config cache write failed", zap.String("church_id", cfg.ChurchID), zap.Error(err))
	}
}

func (c *redisCache) Invalidate(ctx context.Context, churchID string) {
	if err := c.rdb.Del(ctx, rediskey.BuildPointsConfigKey(churchID)).Err(); err != nil {
		zap.L().Warn("points config cache invalidate failed", zap.String("church_id", churchID), zap.Error(err))
	}
}

type noopCache struct{}

func (noopCache) Get(context.Context, string) (*ChurchPointsConfig, bool) {
	cacheMiss.Inc()
	return nil, false
}
func (noopCache) Set(context.Context, *ChurchPointsConfig) {}
func (noopCache) Invalidate(context.Context, string)       {}
