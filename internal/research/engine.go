// Package research runs the full research pipeline for a vehicle: dispatch
// to rule providers, sanitize, merge, score, and cache.
package research

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/interval-research/internal/dispatch"
	"github.com/sells-group/interval-research/internal/merge"
	"github.com/sells-group/interval-research/internal/model"
	"github.com/sells-group/interval-research/internal/monitoring"
)

// errorSource is what a failed research log lists as its sources.
const errorSource = "error"

// Result is the outcome of one research call.
type Result struct {
	Vehicle     model.Vehicle     `json:"vehicle" yaml:"vehicle"`
	Family      string            `json:"family,omitempty" yaml:"family,omitempty"`
	Candidates  []model.Candidate `json:"candidates" yaml:"candidates"`
	SourcesUsed []string          `json:"sources_used" yaml:"sources_used"`
	Confidence  int               `json:"confidence" yaml:"confidence"`
	CacheHit    bool              `json:"cache_hit,omitempty" yaml:"cache_hit,omitempty"`
	Log         model.ResearchLog `json:"log" yaml:"log"`
}

// Engine is the research façade used by the CLI and the HTTP server.
type Engine struct {
	dispatcher *dispatch.Dispatcher
	cache      Cache
	metrics    *monitoring.Metrics
	now        func() time.Time
	newID      func() string
}

// Option configures an Engine.
type Option func(*Engine)

// WithCache enables result caching.
func WithCache(c Cache) Option {
	return func(e *Engine) { e.cache = c }
}

// WithMetrics records Prometheus metrics for every call.
func WithMetrics(m *monitoring.Metrics) Option {
	return func(e *Engine) { e.metrics = m }
}

// New creates an Engine over d.
func New(d *dispatch.Dispatcher, opts ...Option) *Engine {
	e := &Engine{
		dispatcher: d,
		now:        func() time.Time { return time.Now().UTC() },
		newID:      uuid.NewString,
	}
	for _, o := range opts {
		o(e)
	}
	return e
}

// Research produces the merged, scored candidate list for v. Provider
// failures degrade the result but never fail it; an error means the vehicle
// was invalid or ctx ended before dispatch.
func (e *Engine) Research(ctx context.Context, v model.Vehicle) (*Result, error) {
	start := time.Now()
	v = v.Normalized()
	log := zap.L().With(
		zap.String("component", "research"),
		zap.String("make", v.Make),
		zap.String("model", v.Model),
		zap.Int("year", v.Year),
	)

	res, err := e.research(ctx, v, log)

	family := ""
	if res != nil {
		family = res.Family
	}
	conf, n := 0, 0
	if err == nil {
		conf, n = res.Confidence, len(res.Candidates)
	}
	e.metrics.ObserveResearch(family, err, time.Since(start), conf, n)

	if err != nil {
		log.Error("research: failed", zap.Error(err))
		return nil, err
	}
	log.Info("research: complete",
		zap.Int("candidates", len(res.Candidates)),
		zap.Strings("sources_used", res.SourcesUsed),
		zap.Int("confidence", res.Confidence),
		zap.Bool("cache_hit", res.CacheHit),
	)
	return res, nil
}

func (e *Engine) research(ctx context.Context, v model.Vehicle, log *zap.Logger) (*Result, error) {
	if err := model.ValidateVehicle(v); err != nil {
		return nil, eris.Wrap(err, "research: validate vehicle")
	}

	if e.cache != nil {
		entry, err := e.cache.Get(ctx, v)
		switch {
		case err != nil:
			e.metrics.CacheLookup("error")
			log.Warn("research: cache lookup failed", zap.Error(err))
		case entry != nil:
			e.metrics.CacheLookup("hit")
			return e.result(v, entry, true), nil
		default:
			e.metrics.CacheLookup("miss")
		}
	}

	dres, err := e.dispatcher.Dispatch(ctx, v)
	if err != nil {
		return nil, eris.Wrap(err, "research: dispatch")
	}
	for _, f := range dres.Failures {
		e.metrics.ProviderFailed(f.Provider)
	}

	clean := make([]model.Candidate, 0, len(dres.Candidates))
	for _, c := range dres.Candidates {
		s := model.Sanitize(c)
		if err := model.Validate(s); err != nil {
			log.Warn("research: dropping invalid candidate",
				zap.String("service_item", c.ServiceItem),
				zap.Error(err),
			)
			continue
		}
		clean = append(clean, s)
	}

	merged := merge.Merge(clean)
	sources := dres.SourcesUsed
	if sources == nil {
		sources = []string{}
	}
	entry := &Entry{
		Family:      dres.Family.String(),
		Candidates:  merged,
		SourcesUsed: sources,
		Confidence:  merge.AggregateConfidence(merged, dres.Corroborating),
	}

	if e.cache != nil {
		if err := e.cache.Set(ctx, v, entry); err != nil {
			log.Warn("research: cache store failed", zap.Error(err))
		}
	}
	return e.result(v, entry, false), nil
}

func (e *Engine) result(v model.Vehicle, entry *Entry, cacheHit bool) *Result {
	return &Result{
		Vehicle:     v,
		Family:      entry.Family,
		Candidates:  entry.Candidates,
		SourcesUsed: entry.SourcesUsed,
		Confidence:  entry.Confidence,
		CacheHit:    cacheHit,
		Log: model.ResearchLog{
			ID:             e.newID(),
			Make:           v.Make,
			Model:          v.Model,
			Year:           v.Year,
			EngineType:     v.EngineType,
			SourcesChecked: entry.SourcesUsed,
			IntervalsFound: len(entry.Candidates),
			SuccessRate:    float64(entry.Confidence) * 10,
			Confidence:     entry.Confidence,
			CacheHit:       cacheHit,
			CreatedAt:      e.now(),
		},
	}
}

// Safe runs Research and never returns an error. A failed call yields a
// zero-candidate, zero-confidence result whose log carries the error text.
func (e *Engine) Safe(ctx context.Context, v model.Vehicle) *Result {
	res, err := e.Research(ctx, v)
	if err == nil {
		return res
	}
	v = v.Normalized()
	return &Result{
		Vehicle:     v,
		Candidates:  []model.Candidate{},
		SourcesUsed: []string{},
		Log: model.ResearchLog{
			ID:             e.newID(),
			Make:           v.Make,
			Model:          v.Model,
			Year:           v.Year,
			EngineType:     v.EngineType,
			SourcesChecked: []string{errorSource},
			Error:          err.Error(),
			CreatedAt:      e.now(),
		},
	}
}
