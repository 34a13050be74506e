package monitoring

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/sells-group/interval-research/internal/config"
)

const defaultCheckInterval = 5 * time.Minute

// Checker periodically snapshots research health, publishes it as gauges
// and forwards threshold breaches to the alerter. An alert type that was
// sent stays quiet for the configured repeat window.
type Checker struct {
	collector *Collector
	alerter   *Alerter
	metrics   *Metrics
	cfg       config.MonitoringConfig
	now       func() time.Time

	mu       sync.Mutex
	lastSent map[AlertType]time.Time
}

// NewChecker creates a background checker. metrics may be nil.
func NewChecker(collector *Collector, alerter *Alerter, cfg config.MonitoringConfig, metrics *Metrics) *Checker {
	return &Checker{
		collector: collector,
		alerter:   alerter,
		metrics:   metrics,
		cfg:       cfg,
		now:       func() time.Time { return time.Now().UTC() },
		lastSent:  make(map[AlertType]time.Time),
	}
}

// Run checks once immediately and then on every tick until ctx ends.
func (c *Checker) Run(ctx context.Context) {
	interval := time.Duration(c.cfg.CheckIntervalSecs) * time.Second
	if interval <= 0 {
		interval = defaultCheckInterval
	}

	log := zap.L().With(zap.String("component", "monitoring.checker"))
	log.Info("monitoring: checker started",
		zap.Duration("interval", interval),
		zap.Int("lookback_hours", c.cfg.LookbackWindowHours),
	)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		if ctx.Err() != nil {
			log.Info("monitoring: checker stopped")
			return
		}
		if _, err := c.Check(ctx); err != nil {
			log.Error("monitoring: check failed", zap.Error(err))
		}
		select {
		case <-ctx.Done():
			log.Info("monitoring: checker stopped")
			return
		case <-ticker.C:
		}
	}
}

// Check runs one collection pass and returns how many alerts were delivered.
func (c *Checker) Check(ctx context.Context) (int, error) {
	snap, err := c.collector.Collect(ctx, c.cfg.LookbackWindowHours)
	if err != nil {
		return 0, err
	}
	c.metrics.SetWindow(snap)

	due := c.due(c.alerter.Evaluate(snap))
	if len(due) == 0 {
		return 0, nil
	}

	sent := c.alerter.SendAlerts(ctx, due)
	if sent > 0 {
		c.markSent(due)
	}
	zap.L().Info("monitoring: alerts evaluated",
		zap.Int("due", len(due)),
		zap.Int("sent", sent),
		zap.Int("research_total", snap.ResearchTotal),
	)
	return sent, nil
}

// due drops alerts whose type was sent within the repeat window.
func (c *Checker) due(alerts []Alert) []Alert {
	repeat := c.cfg.AlertRepeat()
	if repeat <= 0 {
		return alerts
	}
	now := c.now()

	c.mu.Lock()
	defer c.mu.Unlock()
	out := alerts[:0:0]
	for _, a := range alerts {
		if last, ok := c.lastSent[a.Type]; ok && now.Sub(last) < repeat {
			continue
		}
		out = append(out, a)
	}
	return out
}

func (c *Checker) markSent(alerts []Alert) {
	now := c.now()
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, a := range alerts {
		c.lastSent[a.Type] = now
	}
}
