// Package dispatch routes a vehicle to its manufacturer family provider and
// the base provider, runs them concurrently, and combines their candidates.
package dispatch

import (
	"context"
	"fmt"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/interval-research/internal/catalog"
	"github.com/sells-group/interval-research/internal/model"
)

// DefaultTimeout bounds one dispatch call across all providers.
const DefaultTimeout = 5 * time.Second

// ProviderFailure records a provider that errored, panicked or timed out.
// It contributes zero candidates and never fails the dispatch.
type ProviderFailure struct {
	Provider string
	Err      error
}

func (f *ProviderFailure) Error() string {
	if f.Err == nil {
		return fmt.Sprintf("dispatch: provider %s failed", f.Provider)
	}
	return f.Err.Error()
}

func (f *ProviderFailure) Unwrap() error {
	return f.Err
}

// Result is the combined output of one dispatch call.
type Result struct {
	Family      catalog.Family     `json:"family,omitempty"`
	Candidates  []model.Candidate  `json:"candidates"`
	SourcesUsed []string           `json:"sources_used"`
	Failures    []*ProviderFailure `json:"-"`

	// Corroborating lists the contributing providers whose candidates stand
	// on their own. Base items only fill gaps left by a family provider, so
	// base is listed here only when no family provider contributed.
	Corroborating []string `json:"-"`
}

// Dispatcher fans a vehicle out to the applicable providers.
type Dispatcher struct {
	reg     *catalog.Registry
	timeout time.Duration
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithTimeout sets the aggregate per-call timeout. Non-positive values keep
// the default.
func WithTimeout(d time.Duration) Option {
	return func(disp *Dispatcher) {
		if d > 0 {
			disp.timeout = d
		}
	}
}

// New creates a Dispatcher over the given registry.
func New(reg *catalog.Registry, opts ...Option) *Dispatcher {
	d := &Dispatcher{reg: reg, timeout: DefaultTimeout}
	for _, o := range opts {
		o(d)
	}
	return d
}

type slot struct {
	provider catalog.Provider
	backfill bool
	cands    []model.Candidate
	failure  *ProviderFailure
}

// Dispatch invokes the family provider (if the make is known) and the base
// provider concurrently. Provider failures are isolated and recorded in the
// result. The only error returned is a parent context that is already done.
func (d *Dispatcher) Dispatch(ctx context.Context, v model.Vehicle) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, eris.Wrap(err, "dispatch: context done before dispatch")
	}

	log := zap.L().With(zap.String("component", "dispatch"))
	v = v.Normalized()

	res := &Result{}
	var slots []*slot
	if fam, ok := catalog.FamilyForMake(v.Make); ok {
		res.Family = fam
		if p, ok := d.reg.Get(fam); ok {
			slots = append(slots, &slot{provider: p})
		}
	}
	if base, ok := d.reg.Base(); ok {
		slots = append(slots, &slot{provider: base, backfill: len(slots) > 0})
	}

	q := catalog.Query{Model: v.Model, Year: v.Year, EngineType: v.EngineType}

	callCtx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	var g errgroup.Group
	for _, s := range slots {
		g.Go(func() error {
			cands, err := invoke(callCtx, s.provider, q)
			if err != nil {
				s.failure = &ProviderFailure{Provider: s.provider.Name(), Err: err}
				log.Warn("provider failed",
					zap.String("provider", s.provider.Name()),
					zap.String("make", v.Make),
					zap.Error(err),
				)
				return nil // don't abort other providers on individual failure
			}
			s.cands = FilterEngine(cands, v.EngineType)
			return nil
		})
	}
	_ = g.Wait()

	present := make(map[string]bool)
	for _, s := range slots {
		if s.failure != nil {
			res.Failures = append(res.Failures, s.failure)
			continue
		}
		if len(s.cands) == 0 {
			continue
		}
		res.SourcesUsed = append(res.SourcesUsed, s.provider.Name())
		if !s.backfill || len(res.Corroborating) == 0 {
			res.Corroborating = append(res.Corroborating, s.provider.Name())
		}
		for _, c := range s.cands {
			key := c.Key()
			if present[key] {
				continue
			}
			present[key] = true
			res.Candidates = append(res.Candidates, c)
		}
	}

	log.Debug("dispatch complete",
		zap.String("make", v.Make),
		zap.String("family", res.Family.String()),
		zap.Int("candidates", len(res.Candidates)),
		zap.Strings("sources_used", res.SourcesUsed),
		zap.Int("failures", len(res.Failures)),
	)
	return res, nil
}

// FilterEngine drops candidates tagged for a different concrete engine type
// than the one requested. Untagged and "all" candidates always pass, and an
// unspecified request keeps everything.
func FilterEngine(cands []model.Candidate, engine model.EngineType) []model.Candidate {
	if !engine.Concrete() {
		return cands
	}
	out := make([]model.Candidate, 0, len(cands))
	for _, c := range cands {
		if c.EngineType.Concrete() && c.EngineType != engine {
			continue
		}
		out = append(out, c)
	}
	return out
}

// invoke runs one provider in its own goroutine so a hung or panicking
// provider cannot outlive the call deadline or crash the dispatch.
func invoke(ctx context.Context, p catalog.Provider, q catalog.Query) ([]model.Candidate, error) {
	type outcome struct {
		cands []model.Candidate
		err   error
	}
	ch := make(chan outcome, 1)

	go func() {
		defer func() {
			if r := recover(); r != nil {
				ch <- outcome{err: eris.Errorf("dispatch: provider %s panicked: %v", p.Name(), r)}
			}
		}()
		cands, err := p.Intervals(ctx, q)
		if err != nil {
			err = eris.Wrapf(err, "dispatch: provider %s", p.Name())
		}
		ch <- outcome{cands: cands, err: err}
	}()

	select {
	case o := <-ch:
		return o.cands, o.err
	case <-ctx.Done():
		return nil, eris.Wrapf(ctx.Err(), "dispatch: provider %s", p.Name())
	}
}
