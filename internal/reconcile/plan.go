// Package reconcile upserts accepted candidates into a car's persisted
// service intervals.
package reconcile

import (
	"time"

	"github.com/sells-group/interval-research/internal/model"
)

// OpKind says whether an Op writes a new row or overwrites an existing one.
type OpKind int

const (
	OpInsert OpKind = iota
	OpUpdate
)

func (k OpKind) String() string {
	switch k {
	case OpInsert:
		return "insert"
	case OpUpdate:
		return "update"
	default:
		return "unknown"
	}
}

// Op is one planned write. Interval holds the full row as it should look
// after the write.
type Op struct {
	Kind     OpKind
	Interval *model.ServiceInterval
}

// Plan decides, per candidate, whether to update an existing active interval
// or insert a new one. existing is the car's active snapshot and is not
// modified. Items match case-insensitively. A candidate whose item already
// appeared earlier in cands is applied on top of that earlier op instead of
// producing a second row.
func Plan(existing []model.ServiceInterval, cands []model.Candidate, userID, carID int64, now time.Time) []Op {
	byItem := make(map[string]int, len(existing))
	for i, iv := range existing {
		key := model.MatchItem(iv.ServiceItem)
		if _, ok := byItem[key]; !ok {
			byItem[key] = i
		}
	}

	var ops []Op
	opIdx := make(map[string]int, len(cands))
	for _, c := range cands {
		key := model.MatchItem(c.ServiceItem)

		if i, ok := opIdx[key]; ok {
			applyCandidate(ops[i].Interval, c, now)
			continue
		}

		if i, ok := byItem[key]; ok {
			iv := existing[i]
			iv.IntervalMiles = cloneInt(iv.IntervalMiles)
			iv.IntervalMonths = cloneInt(iv.IntervalMonths)
			iv.CostEstimateLow = cloneFloat(iv.CostEstimateLow)
			iv.CostEstimateHigh = cloneFloat(iv.CostEstimateHigh)
			applyCandidate(&iv, c, now)
			opIdx[key] = len(ops)
			ops = append(ops, Op{Kind: OpUpdate, Interval: &iv})
			continue
		}

		opIdx[key] = len(ops)
		ops = append(ops, Op{Kind: OpInsert, Interval: newInterval(c, userID, carID, now)})
	}
	return ops
}

// applyCandidate overwrites the trigger and cost fields unconditionally, so a
// nil in c clears the stored value. Priority, notes and source only change
// when c supplies them.
func applyCandidate(iv *model.ServiceInterval, c model.Candidate, now time.Time) {
	iv.IntervalMiles = cloneInt(c.IntervalMiles)
	iv.IntervalMonths = cloneInt(c.IntervalMonths)
	iv.CostEstimateLow = cloneFloat(c.CostEstimateLow)
	iv.CostEstimateHigh = cloneFloat(c.CostEstimateHigh)
	if c.Priority != "" {
		iv.Priority = c.Priority
	}
	if c.Notes != "" {
		iv.Notes = c.Notes
	}
	if c.Source != "" {
		iv.Source = c.Source
	}
	iv.UpdatedAt = now
}

func newInterval(c model.Candidate, userID, carID int64, now time.Time) *model.ServiceInterval {
	iv := &model.ServiceInterval{
		UserID:           userID,
		CarID:            carID,
		ServiceItem:      c.ServiceItem,
		IntervalMiles:    cloneInt(c.IntervalMiles),
		IntervalMonths:   cloneInt(c.IntervalMonths),
		Priority:         c.Priority,
		CostEstimateLow:  cloneFloat(c.CostEstimateLow),
		CostEstimateHigh: cloneFloat(c.CostEstimateHigh),
		Notes:            c.Notes,
		Source:           c.Source,
		IsActive:         true,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if iv.Priority == "" {
		iv.Priority = model.DefaultPriority
	}
	if iv.Source == "" {
		iv.Source = model.DefaultSource
	}
	return iv
}

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
