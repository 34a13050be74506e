package model

import "time"

// Defaults applied when a candidate is persisted without these fields.
const (
	DefaultPriority = PriorityMedium
	DefaultSource   = "user_entered"
)

// ServiceInterval is a persisted interval row for a car. At most one active
// row may exist per (car_id, case-folded service_item).
type ServiceInterval struct {
	ID               int64     `json:"id" yaml:"id"`
	UserID           int64     `json:"user_id" yaml:"user_id"`
	CarID            int64     `json:"car_id" yaml:"car_id"`
	ServiceItem      string    `json:"service_item" yaml:"service_item"`
	IntervalMiles    *int      `json:"interval_miles,omitempty" yaml:"interval_miles,omitempty"`
	IntervalMonths   *int      `json:"interval_months,omitempty" yaml:"interval_months,omitempty"`
	Priority         Priority  `json:"priority" yaml:"priority"`
	CostEstimateLow  *float64  `json:"cost_estimate_low,omitempty" yaml:"cost_estimate_low,omitempty"`
	CostEstimateHigh *float64  `json:"cost_estimate_high,omitempty" yaml:"cost_estimate_high,omitempty"`
	Notes            string    `json:"notes,omitempty" yaml:"notes,omitempty"`
	Source           string    `json:"source" yaml:"source"`
	IsActive         bool      `json:"is_active" yaml:"is_active"`
	CreatedAt        time.Time `json:"created_at" yaml:"created_at"`
	UpdatedAt        time.Time `json:"updated_at" yaml:"updated_at"`
}

// Candidate converts the stored row back into a candidate shape, e.g. to
// show existing intervals next to fresh research.
func (iv ServiceInterval) Candidate() Candidate {
	return Candidate{
		ServiceItem:      iv.ServiceItem,
		IntervalMiles:    cloneInt(iv.IntervalMiles),
		IntervalMonths:   cloneInt(iv.IntervalMonths),
		Priority:         iv.Priority,
		CostEstimateLow:  cloneFloat(iv.CostEstimateLow),
		CostEstimateHigh: cloneFloat(iv.CostEstimateHigh),
		Source:           iv.Source,
		Notes:            iv.Notes,
	}
}
