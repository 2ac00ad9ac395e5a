// Package cache decorates a market data provider with a short-lived Redis cache.
package cache

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"fx-analyst-bot/internal/interfaces"
	"fx-analyst-bot/internal/logger"
	"fx-analyst-bot/internal/marketdata"
	"fx-analyst-bot/internal/types"
)

const defaultNamespace = "fx"

// Provider serves successful values from Redis and falls through to the inner
// provider on a miss or any cache error. Failures are never cached.
type Provider struct {
	inner     interfaces.MarketData
	rdb       *redis.Client
	ttl       time.Duration
	namespace string
}

var _ interfaces.MarketData = (*Provider)(nil)

// New wraps inner. If ttl is 0 it defaults to one minute. A nil rdb disables caching.
func New(rdb *redis.Client, ttl time.Duration, inner interfaces.MarketData) *Provider {
	if ttl <= 0 {
		ttl = time.Minute
	}
	return &Provider{
		inner:     inner,
		rdb:       rdb,
		ttl:       ttl,
		namespace: defaultNamespace,
	}
}

// NewClient connects to Redis and pings it.
func NewClient(ctx context.Context, addr, password string, db int) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping %s: %w", addr, err)
	}
	return rdb, nil
}

func (p *Provider) Name() string { return p.inner.Name() + "+redis" }

func (p *Provider) RSI(ctx context.Context, pair types.Pair) (float64, error) {
	return p.cached(ctx, marketdata.KindRSI, pair, p.inner.RSI)
}

func (p *Provider) Rate(ctx context.Context, pair types.Pair) (float64, error) {
	return p.cached(ctx, marketdata.KindRate, pair, p.inner.Rate)
}

func (p *Provider) cached(ctx context.Context, kind marketdata.Kind, pair types.Pair,
	fetch func(context.Context, types.Pair) (float64, error)) (float64, error) {
	if p.rdb == nil {
		return fetch(ctx, pair)
	}

	key := p.cacheKey(kind, pair.Symbol)

	if s, err := p.rdb.Get(ctx, key).Result(); err == nil {
		if v, err := strconv.ParseFloat(s, 64); err == nil {
			logger.Debug(ctx, "Market data cache hit", "key", key)
			return v, nil
		}
		// corrupted entry
		_ = p.rdb.Del(ctx, key).Err()
	} else if err != redis.Nil {
		logger.Warn(ctx, "Market data cache unavailable", "key", key, "error", err)
	}

	v, err := fetch(ctx, pair)
	if err != nil {
		return 0, err
	}

	if err := p.rdb.Set(ctx, key, strconv.FormatFloat(v, 'f', -1, 64), p.ttl).Err(); err != nil {
		logger.Warn(ctx, "Market data cache write failed", "key", key, "error", err)
	}
	return v, nil
}

// cacheKey is "<namespace>:<kind>:<symbol>".
func (p *Provider) cacheKey(kind marketdata.Kind, symbol string) string {
	return fmt.Sprintf("%s:%s:%s", p.namespace, kind, safe(symbol))
}

func safe(s string) string {
	s = strings.ReplaceAll(s, " ", "_")
	s = strings.ReplaceAll(s, ":", "_")
	return s
}
