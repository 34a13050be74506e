package model

import (
	"strings"

	"github.com/rotisserie/eris"
)

// Priority ranks how urgent a maintenance item is.
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
)

// EngineType tags candidates that only apply to one kind of powertrain.
type EngineType string

const (
	EngineUnspecified EngineType = ""
	EngineGas         EngineType = "gas"
	EngineDiesel      EngineType = "diesel"
	EngineHybrid      EngineType = "hybrid"
	EngineElectric    EngineType = "electric"
	EngineAll         EngineType = "all"
)

// ParseEngineType converts user input into an EngineType. Empty input is
// EngineUnspecified.
func ParseEngineType(s string) (EngineType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "":
		return EngineUnspecified, nil
	case "gas", "gasoline", "petrol":
		return EngineGas, nil
	case "diesel":
		return EngineDiesel, nil
	case "hybrid":
		return EngineHybrid, nil
	case "electric", "ev":
		return EngineElectric, nil
	case "all":
		return EngineAll, nil
	default:
		return "", eris.Errorf("unknown engine type: %q (valid: gas, diesel, hybrid, electric, all)", s)
	}
}

// Concrete reports whether the engine type names a single powertrain
// (i.e. it is neither unspecified nor "all").
func (e EngineType) Concrete() bool {
	return e != EngineUnspecified && e != EngineAll
}

// Candidate is an unpersisted service-interval recommendation produced by
// the research engine.
type Candidate struct {
	ServiceItem      string     `json:"service_item" yaml:"service_item" validate:"required,max=255"`
	IntervalMiles    *int       `json:"interval_miles,omitempty" yaml:"interval_miles,omitempty" validate:"omitempty,gt=0"`
	IntervalMonths   *int       `json:"interval_months,omitempty" yaml:"interval_months,omitempty" validate:"omitempty,gt=0"`
	Priority         Priority   `json:"priority,omitempty" yaml:"priority,omitempty" validate:"omitempty,oneof=low medium high"`
	CostEstimateLow  *float64   `json:"cost_estimate_low,omitempty" yaml:"cost_estimate_low,omitempty" validate:"omitempty,gte=0"`
	CostEstimateHigh *float64   `json:"cost_estimate_high,omitempty" yaml:"cost_estimate_high,omitempty" validate:"omitempty,gte=0"`
	Source           string     `json:"source,omitempty" yaml:"source,omitempty"`
	ConfidenceScore  int        `json:"confidence_score" yaml:"confidence_score" validate:"gte=0,lte=10"`
	Notes            string     `json:"notes,omitempty" yaml:"notes,omitempty"`
	EngineType       EngineType `json:"engine_type,omitempty" yaml:"engine_type,omitempty" validate:"omitempty,oneof=gas diesel hybrid electric all"`
}

// Key returns the dedup identity of the candidate.
func (c Candidate) Key() string {
	return NormalizeItem(c.ServiceItem)
}

// Actionable reports whether the candidate carries at least one trigger.
func (c Candidate) Actionable() bool {
	return c.IntervalMiles != nil || c.IntervalMonths != nil
}

// Clone returns a deep copy so callers can mutate pointer fields freely.
func (c Candidate) Clone() Candidate {
	out := c
	out.IntervalMiles = cloneInt(c.IntervalMiles)
	out.IntervalMonths = cloneInt(c.IntervalMonths)
	out.CostEstimateLow = cloneFloat(c.CostEstimateLow)
	out.CostEstimateHigh = cloneFloat(c.CostEstimateHigh)
	return out
}

// Vehicle identifies the car being researched.
type Vehicle struct {
	Make       string     `json:"make" yaml:"make" validate:"required,max=100"`
	Model      string     `json:"model" yaml:"model" validate:"max=100"`
	Year       int        `json:"year" yaml:"year" validate:"gte=1900,lte=2100"`
	EngineType EngineType `json:"engine_type,omitempty" yaml:"engine_type,omitempty" validate:"omitempty,oneof=gas diesel hybrid electric all"`
}

// Normalized trims whitespace from make and model.
func (v Vehicle) Normalized() Vehicle {
	v.Make = strings.TrimSpace(v.Make)
	v.Model = strings.TrimSpace(v.Model)
	return v
}

// Int returns a pointer to v.
func Int(v int) *int { return &v }

// Float returns a pointer to v.
func Float(v float64) *float64 { return &v }

func cloneInt(p *int) *int {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

func cloneFloat(p *float64) *float64 {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}
