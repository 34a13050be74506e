package main

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/interval-research/internal/catalog"
	"github.com/sells-group/interval-research/internal/config"
	"github.com/sells-group/interval-research/internal/db"
	"github.com/sells-group/interval-research/internal/dispatch"
	"github.com/sells-group/interval-research/internal/model"
	"github.com/sells-group/interval-research/internal/monitoring"
	"github.com/sells-group/interval-research/internal/reconcile"
	"github.com/sells-group/interval-research/internal/research"
	"github.com/sells-group/interval-research/internal/resilience"
	"github.com/sells-group/interval-research/internal/store"
)

// appEnv holds the store, research engine, and reconciler shared by the
// research, intervals, and serve commands.
type appEnv struct {
	Store      store.Store
	Engine     *research.Engine
	Reconciler *reconcile.Reconciler
	Metrics    *monitoring.Metrics
	redis      *redis.Client
}

// Close releases resources held by the environment.
func (e *appEnv) Close() {
	if e.redis != nil {
		_ = e.redis.Close()
	}
	if e.Store != nil {
		_ = e.Store.Close()
	}
}

// initStore opens the configured store driver.
func initStore(ctx context.Context) (store.Store, error) {
	switch cfg.Store.Driver {
	case "sqlite":
		return store.NewSQLite(cfg.Store.SQLitePath)
	case "postgres":
		poolCfg := &db.PoolConfig{MaxConns: cfg.Store.MaxConns, MinConns: cfg.Store.MinConns}
		return store.NewPostgres(ctx, cfg.Store.DatabaseURL, poolCfg, backoff(cfg.Retry))
	default:
		return nil, eris.Errorf("unsupported store driver: %s", cfg.Store.Driver)
	}
}

func backoff(c config.RetryConfig) resilience.Backoff {
	return resilience.NewBackoff(c.MaxAttempts, c.InitialBackoffMs, c.MaxBackoffMs, c.Multiplier, c.JitterFraction)
}

// openStore opens and migrates the store.
func openStore(ctx context.Context) (store.Store, error) {
	st, err := initStore(ctx)
	if err != nil {
		return nil, err
	}
	if err := st.Migrate(ctx); err != nil {
		_ = st.Close()
		return nil, eris.Wrap(err, "migrate store")
	}
	return st, nil
}

// initEnv validates config for mode, opens the store, and builds the engine.
// reg receives engine metrics; nil disables them. Callers should defer
// env.Close().
func initEnv(ctx context.Context, mode string, reg prometheus.Registerer) (*appEnv, error) {
	if err := cfg.Validate(mode); err != nil {
		return nil, err
	}

	st, err := openStore(ctx)
	if err != nil {
		return nil, err
	}

	env := &appEnv{Store: st, Reconciler: reconcile.New(st, reconcile.WithBackoff(backoff(cfg.Retry)))}
	if reg != nil {
		env.Metrics = monitoring.NewMetrics(reg)
	}

	opts := []research.Option{research.WithMetrics(env.Metrics)}
	if cfg.Research.CacheEnabled {
		env.redis = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		opts = append(opts, research.WithCache(newCache(env.redis, cfg.Redis, cfg.Research.CacheTTL())))
		zap.L().Info("research cache enabled", zap.String("addr", cfg.Redis.Addr))
	} else {
		zap.L().Debug("research cache disabled")
	}

	d := dispatch.New(catalog.NewDefaultRegistry(), dispatch.WithTimeout(cfg.Research.ProviderTimeout()))
	env.Engine = research.New(d, opts...)
	return env, nil
}

func newCache(client redis.UniversalClient, rc config.RedisConfig, ttl time.Duration) *research.RedisCache {
	cb := resilience.NewBreaker(resilience.BreakerOptions{
		Threshold: rc.BreakerThreshold,
		Cooldown:  time.Duration(rc.BreakerResetTimeSecs) * time.Second,
		OnChange: func(from, to resilience.BreakerState) {
			zap.L().Warn("research cache circuit state changed",
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
		},
	})
	return research.NewRedisCache(client,
		research.WithPrefix(rc.KeyPrefix),
		research.WithTTL(ttl),
		research.WithBreaker(cb),
	)
}

// applyCandidates reconciles cands into the car's intervals and records the
// outcome in the engine metrics.
func applyCandidates(ctx context.Context, env *appEnv, userID, carID int64, cands []model.Candidate) (*reconcile.Summary, error) {
	sum, err := env.Reconciler.Upsert(ctx, userID, carID, cands)
	if err != nil {
		env.Metrics.ObserveReconcile(0, 0, err)
		return nil, err
	}
	env.Metrics.ObserveReconcile(sum.Inserted, sum.Updated, nil)
	return sum, nil
}
