package monitoring

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/interval-research/internal/model"
	"github.com/sells-group/interval-research/internal/store"
)

// collectLimit caps how many research logs one snapshot reads.
const collectLimit = 10000

// MetricsSnapshot holds a point-in-time view of research health.
type MetricsSnapshot struct {
	// Research metrics (within lookback window).
	ResearchTotal     int            `json:"research_total"`
	ResearchFailed    int            `json:"research_failed"`
	ResearchFailRate  float64        `json:"research_fail_rate"`
	CacheHits         int            `json:"cache_hits"`
	AvgConfidence     float64        `json:"avg_confidence"`
	AvgIntervalsFound float64        `json:"avg_intervals_found"`
	LowConfidence     int            `json:"low_confidence"`
	ByMake            map[string]int `json:"by_make,omitempty"`

	// Metadata.
	LookbackHours int       `json:"lookback_hours"`
	CollectedAt   time.Time `json:"collected_at"`
}

// LogLister is the slice of store.Store the collector reads.
type LogLister interface {
	ListResearchLogs(ctx context.Context, filter store.LogFilter) ([]model.ResearchLog, error)
}

// Collector gathers metrics from persisted research logs.
type Collector struct {
	logs          LogLister
	lowConfidence int
	now           func() time.Time
}

// NewCollector creates a new metrics collector. Successful results with a
// confidence below lowConfidence are counted in MetricsSnapshot.LowConfidence.
func NewCollector(logs LogLister, lowConfidence int) *Collector {
	return &Collector{
		logs:          logs,
		lowConfidence: lowConfidence,
		now:           func() time.Time { return time.Now().UTC() },
	}
}

// Collect gathers a snapshot of research metrics over the given lookback window.
func (c *Collector) Collect(ctx context.Context, lookbackHours int) (*MetricsSnapshot, error) {
	now := c.now()
	snap := &MetricsSnapshot{
		ByMake:        make(map[string]int),
		LookbackHours: lookbackHours,
		CollectedAt:   now,
	}

	logs, err := c.logs.ListResearchLogs(ctx, store.LogFilter{
		Since: now.Add(-time.Duration(lookbackHours) * time.Hour),
		Limit: collectLimit,
	})
	if err != nil {
		return nil, eris.Wrap(err, "monitoring: list research logs")
	}

	snap.ResearchTotal = len(logs)
	var totalConfidence, totalFound, succeeded int
	for _, l := range logs {
		snap.ByMake[l.Make]++
		if l.CacheHit {
			snap.CacheHits++
		}
		if l.Failed() {
			snap.ResearchFailed++
			continue
		}
		succeeded++
		totalConfidence += l.Confidence
		totalFound += l.IntervalsFound
		if l.Confidence < c.lowConfidence {
			snap.LowConfidence++
		}
	}

	if snap.ResearchTotal > 0 {
		snap.ResearchFailRate = float64(snap.ResearchFailed) / float64(snap.ResearchTotal)
	}
	if succeeded > 0 {
		snap.AvgConfidence = float64(totalConfidence) / float64(succeeded)
		snap.AvgIntervalsFound = float64(totalFound) / float64(succeeded)
	}
	return snap, nil
}
