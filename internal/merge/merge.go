// Package merge deduplicates research candidates and scores the result set.
package merge

import (
	"github.com/sells-group/interval-research/internal/catalog"
	"github.com/sells-group/interval-research/internal/model"
)

const (
	corroborationBoost = 1.2
	maxConfidence      = 10
)

// Merge groups candidates by normalized service item and folds each group
// left to right in input order. Output order is the first-seen order of each
// item. An empty input yields the industry-standard defaults. Input elements
// are never mutated.
func Merge(cands []model.Candidate) []model.Candidate {
	if len(cands) == 0 {
		return catalog.Defaults()
	}

	index := make(map[string]int, len(cands))
	out := make([]model.Candidate, 0, len(cands))
	for _, c := range cands {
		key := c.Key()
		i, ok := index[key]
		if !ok {
			index[key] = len(out)
			out = append(out, c.Clone())
			continue
		}
		out[i] = Pair(out[i], c)
	}
	return out
}

// Pair resolves two candidates that share an item. The higher confidence
// candidate wins outright. On a tie, miles are averaged (floor), costs are
// averaged where both sides have them, distinct sources are joined, and all
// other fields come from a.
func Pair(a, b model.Candidate) model.Candidate {
	if b.ConfidenceScore > a.ConfidenceScore {
		return b.Clone()
	}
	if a.ConfidenceScore > b.ConfidenceScore {
		return a.Clone()
	}

	out := a.Clone()
	if a.IntervalMiles != nil && b.IntervalMiles != nil {
		out.IntervalMiles = model.Int((*a.IntervalMiles + *b.IntervalMiles) / 2)
	}
	if a.CostEstimateLow != nil && b.CostEstimateLow != nil {
		out.CostEstimateLow = model.Float((*a.CostEstimateLow + *b.CostEstimateLow) / 2)
	}
	if a.CostEstimateHigh != nil && b.CostEstimateHigh != nil {
		out.CostEstimateHigh = model.Float((*a.CostEstimateHigh + *b.CostEstimateHigh) / 2)
	}
	if b.Source != "" && a.Source != b.Source {
		if a.Source == "" {
			out.Source = b.Source
		} else {
			out.Source = a.Source + ", " + b.Source
		}
	}
	return out
}

// AggregateConfidence is the floored mean confidence of cands, boosted by
// 1.2 (capped at 10) when more than one distinct source contributed. The
// result is always within [0, 10].
func AggregateConfidence(cands []model.Candidate, sourcesUsed []string) int {
	if len(cands) == 0 {
		return 0
	}

	sum := 0
	for _, c := range cands {
		sum += c.ConfidenceScore
	}
	mean := float64(sum) / float64(len(cands))

	if distinct(sourcesUsed) > 1 {
		mean *= corroborationBoost
	}
	score := int(mean)
	switch {
	case score < 0:
		score = 0
	case score > maxConfidence:
		score = maxConfidence
	}
	return score
}

func distinct(ss []string) int {
	seen := make(map[string]struct{}, len(ss))
	for _, s := range ss {
		seen[s] = struct{}{}
	}
	return len(seen)
}
