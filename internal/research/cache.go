package research

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rotisserie/eris"

	"github.com/sells-group/interval-research/internal/catalog"
	"github.com/sells-group/interval-research/internal/model"
	"github.com/sells-group/interval-research/internal/resilience"
)

// DefaultCacheTTL is how long a research result stays cached.
const DefaultCacheTTL = 24 * time.Hour

// Entry is the cached part of a research result.
type Entry struct {
	Family      string            `json:"family,omitempty"`
	Candidates  []model.Candidate `json:"candidates"`
	SourcesUsed []string          `json:"sources_used"`
	Confidence  int               `json:"confidence"`
}

// Cache stores research results per vehicle. Get reports a miss with
// (nil, nil).
type Cache interface {
	Get(ctx context.Context, v model.Vehicle) (*Entry, error)
	Set(ctx context.Context, v model.Vehicle, e *Entry) error
}

// CacheKey identifies a vehicle in the cache. Makes that route to the same
// manufacturer family share keys. The model is only lowercased: rule tables
// match on its spelling, so "F 150" and "F150" are different vehicles.
func CacheKey(v model.Vehicle) string {
	v = v.Normalized()
	route := strings.ToLower(v.Make)
	if fam, ok := catalog.FamilyForMake(v.Make); ok {
		route = fam.String()
	}
	return fmt.Sprintf("research:%q:%q:%d:%s",
		route, strings.ToLower(v.Model), v.Year, strings.ToLower(string(v.EngineType)))
}

// RedisCache is a Cache backed by Redis. Calls go through a circuit breaker
// so an unreachable Redis is skipped until it recovers.
type RedisCache struct {
	client  redis.UniversalClient
	prefix  string
	ttl     time.Duration
	breaker *resilience.Breaker
}

// CacheOption configures a RedisCache.
type CacheOption func(*RedisCache)

// WithPrefix namespaces every key.
func WithPrefix(prefix string) CacheOption {
	return func(c *RedisCache) { c.prefix = prefix }
}

// WithTTL sets the entry lifetime. Non-positive values keep the default.
func WithTTL(ttl time.Duration) CacheOption {
	return func(c *RedisCache) {
		if ttl > 0 {
			c.ttl = ttl
		}
	}
}

// WithBreaker replaces the default circuit breaker.
func WithBreaker(cb *resilience.Breaker) CacheOption {
	return func(c *RedisCache) { c.breaker = cb }
}

// NewRedisCache wraps client.
func NewRedisCache(client redis.UniversalClient, opts ...CacheOption) *RedisCache {
	c := &RedisCache{
		client:  client,
		prefix:  "intervals:",
		ttl:     DefaultCacheTTL,
		breaker: resilience.NewBreaker(resilience.BreakerOptions{}),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

func (c *RedisCache) key(v model.Vehicle) string {
	return c.prefix + CacheKey(v)
}

func (c *RedisCache) Get(ctx context.Context, v model.Vehicle) (*Entry, error) {
	data, err := resilience.Call(ctx, c.breaker, func(ctx context.Context) ([]byte, error) {
		data, err := c.client.Get(ctx, c.key(v)).Bytes()
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return data, err
	})
	if err != nil {
		return nil, eris.Wrap(err, "cache: get")
	}
	if data == nil {
		return nil, nil
	}

	var e Entry
	if err := json.Unmarshal(data, &e); err != nil {
		return nil, eris.Wrap(err, "cache: decode entry")
	}
	return &e, nil
}

func (c *RedisCache) Set(ctx context.Context, v model.Vehicle, e *Entry) error {
	data, err := json.Marshal(e)
	if err != nil {
		return eris.Wrap(err, "cache: encode entry")
	}
	err = c.breaker.Do(ctx, func(ctx context.Context) error {
		return c.client.Set(ctx, c.key(v), data, c.ttl).Err()
	})
	return eris.Wrap(err, "cache: set")
}

// Ping checks the Redis connection.
func (c *RedisCache) Ping(ctx context.Context) error {
	return eris.Wrap(c.client.Ping(ctx).Err(), "cache: ping")
}

// Close closes the underlying client.
func (c *RedisCache) Close() error {
	return c.client.Close()
}
