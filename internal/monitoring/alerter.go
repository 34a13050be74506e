package monitoring

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/interval-research/internal/config"
	"github.com/sells-group/interval-research/internal/resilience"
)

// AlertType identifies the kind of alert.
type AlertType string

const (
	AlertResearchFailureRate AlertType = "research_failure_rate"
	AlertLowConfidence       AlertType = "low_confidence"
)

// minFinished is the smallest sample a rate alert fires on.
const minFinished = 5

// Alert represents a single alert to be sent.
type Alert struct {
	Type      AlertType      `json:"type"`
	Severity  string         `json:"severity"`
	Message   string         `json:"message"`
	Details   map[string]any `json:"details,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}

// Alerter evaluates a MetricsSnapshot against configured thresholds
// and sends alerts via webhook when thresholds are breached.
type Alerter struct {
	cfg     config.MonitoringConfig
	client  *http.Client
	backoff resilience.Backoff
	now     func() time.Time
}

// NewAlerter creates a new Alerter with the given monitoring config.
func NewAlerter(cfg config.MonitoringConfig) *Alerter {
	return &Alerter{
		cfg:     cfg,
		client:  &http.Client{Timeout: 10 * time.Second},
		backoff: resilience.DefaultBackoff(),
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// Evaluate checks the snapshot against thresholds and returns any alerts.
func (a *Alerter) Evaluate(snap *MetricsSnapshot) []Alert {
	var alerts []Alert
	now := a.now()

	if snap.ResearchTotal >= minFinished && snap.ResearchFailRate > a.cfg.FailureRateThreshold {
		alerts = append(alerts, Alert{
			Type:     AlertResearchFailureRate,
			Severity: "high",
			Message: fmt.Sprintf(
				"Research failure rate %.1f%% exceeds threshold %.1f%% (%d failed / %d calls in last %dh)",
				snap.ResearchFailRate*100, a.cfg.FailureRateThreshold*100,
				snap.ResearchFailed, snap.ResearchTotal, snap.LookbackHours,
			),
			Details: map[string]any{
				"failure_rate": snap.ResearchFailRate,
				"threshold":    a.cfg.FailureRateThreshold,
				"failed":       snap.ResearchFailed,
				"total":        snap.ResearchTotal,
			},
			Timestamp: now,
		})
	}

	succeeded := snap.ResearchTotal - snap.ResearchFailed
	if a.cfg.LowConfidenceRateThreshold > 0 && succeeded >= minFinished {
		rate := float64(snap.LowConfidence) / float64(succeeded)
		if rate > a.cfg.LowConfidenceRateThreshold {
			alerts = append(alerts, Alert{
				Type:     AlertLowConfidence,
				Severity: "medium",
				Message: fmt.Sprintf(
					"%d of %d research results scored below confidence %d in last %dh",
					snap.LowConfidence, succeeded, a.cfg.LowConfidence, snap.LookbackHours,
				),
				Details: map[string]any{
					"low_confidence":  snap.LowConfidence,
					"succeeded":       succeeded,
					"rate":            rate,
					"avg_confidence":  snap.AvgConfidence,
					"confidence_gate": a.cfg.LowConfidence,
				},
				Timestamp: now,
			})
		}
	}

	return alerts
}

// SendAlerts posts each alert to the configured webhook and returns how
// many were accepted. Timeouts and 5xx responses are retried.
func (a *Alerter) SendAlerts(ctx context.Context, alerts []Alert) int {
	if a.cfg.WebhookURL == "" || len(alerts) == 0 {
		return 0
	}

	log := zap.L().With(zap.String("component", "monitoring.alerter"))
	sent := 0
	for _, alert := range alerts {
		err := resilience.Retry(ctx, a.backoff, "alert webhook", func(ctx context.Context) error {
			return a.post(ctx, alert)
		})
		if err != nil {
			log.Error("monitoring: alert not delivered",
				zap.String("type", string(alert.Type)),
				zap.Error(err),
			)
			continue
		}
		log.Info("monitoring: alert delivered",
			zap.String("type", string(alert.Type)),
			zap.String("severity", alert.Severity),
		)
		sent++
	}
	return sent
}

func (a *Alerter) post(ctx context.Context, alert Alert) error {
	payload, err := json.Marshal(alert)
	if err != nil {
		return eris.Wrap(err, "monitoring: marshal alert")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.cfg.WebhookURL, bytes.NewReader(payload))
	if err != nil {
		return eris.Wrap(err, "monitoring: build webhook request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.client.Do(req)
	if err != nil {
		return eris.Wrap(err, "monitoring: webhook request")
	}
	defer resp.Body.Close() //nolint:errcheck

	switch {
	case resp.StatusCode >= 500:
		return resilience.MarkTransient(eris.Errorf("monitoring: webhook returned status %d", resp.StatusCode))
	case resp.StatusCode >= 400:
		return eris.Errorf("monitoring: webhook rejected alert with status %d", resp.StatusCode)
	}
	return nil
}
