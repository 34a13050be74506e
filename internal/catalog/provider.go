package catalog

import (
	"context"
	"sync"

	"github.com/sells-group/interval-research/internal/model"
)

// Query is the vehicle detail a provider branches on.
type Query struct {
	Model      string
	Year       int
	EngineType model.EngineType
}

// Provider produces candidate intervals for one manufacturer family.
type Provider interface {
	// Name returns the provider identifier reported in sources used.
	Name() string
	// Intervals returns the candidates for the vehicle in a fixed order.
	Intervals(ctx context.Context, q Query) ([]model.Candidate, error)
}

// RuleFunc is a pure rule table keyed on the query.
type RuleFunc func(q Query) []model.Candidate

// ruleProvider adapts a RuleFunc to Provider.
type ruleProvider struct {
	name  string
	rules RuleFunc
}

// NewRuleProvider wraps a pure rule function as a Provider.
func NewRuleProvider(name string, rules RuleFunc) Provider {
	return &ruleProvider{name: name, rules: rules}
}

func (p *ruleProvider) Name() string { return p.name }

func (p *ruleProvider) Intervals(ctx context.Context, q Query) ([]model.Candidate, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return p.rules(q), nil
}

// Registry maps families to providers.
type Registry struct {
	mu        sync.RWMutex
	providers map[Family]Provider
	order     []Family // insertion order for deterministic iteration
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		providers: make(map[Family]Provider),
	}
}

// NewDefaultRegistry returns a registry holding the base provider and every
// manufacturer family.
func NewDefaultRegistry() *Registry {
	r := NewRegistry()
	r.Register(FamilyBase, NewRuleProvider(FamilyBase.String(), BaseIntervals))
	for _, f := range Families() {
		r.Register(f, NewRuleProvider(f.String(), familyRules[f]))
	}
	return r
}

// Register adds or replaces the provider for a family.
func (r *Registry) Register(f Family, p Provider) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.providers[f]; !exists {
		r.order = append(r.order, f)
	}
	r.providers[f] = p
}

// Get returns the provider for a family, or false if none is registered.
func (r *Registry) Get(f Family) (Provider, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.providers[f]
	return p, ok
}

// Base returns the generic provider, or false if it was never registered.
func (r *Registry) Base() (Provider, bool) {
	return r.Get(FamilyBase)
}

// List returns registered families in registration order.
func (r *Registry) List() []Family {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Family, len(r.order))
	copy(out, r.order)
	return out
}

var familyRules = map[Family]RuleFunc{
	FamilyToyota:   ToyotaIntervals,
	FamilyHonda:    HondaIntervals,
	FamilyFord:     FordIntervals,
	FamilyGM:       GMIntervals,
	FamilyBMW:      BMWIntervals,
	FamilyMercedes: MercedesIntervals,
	FamilyVWGroup:  VWGroupIntervals,
	FamilyNissan:   NissanIntervals,
	FamilyMazda:    MazdaIntervals,
	FamilySubaru:   SubaruIntervals,
}
