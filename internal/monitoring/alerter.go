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

	"github.com/sells-group/company-directory/internal/config"
)

// AlertType identifies the kind of alert.
type AlertType string

const (
	AlertStoreUnavailable AlertType = "store_unavailable"
	AlertDLQBacklog       AlertType = "dlq_backlog"
	AlertDLQGrowth        AlertType = "dlq_growth"
)

// Alert represents a single alert to be sent.
type Alert struct {
	Type      AlertType      `json:"type"`
	Severity  string         `json:"severity"`
	Message   string         `json:"message"`
	Details   map[string]any `json:"details,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}

// Alerter evaluates snapshots against configured thresholds and sends
// alerts via webhook.
type Alerter struct {
	cfg    config.MonitoringConfig
	client *http.Client
}

// NewAlerter creates a new Alerter with the given monitoring config.
func NewAlerter(cfg config.MonitoringConfig) *Alerter {
	return &Alerter{
		cfg:    cfg,
		client: &http.Client{Timeout: 10 * time.Second},
	}
}

// Evaluate checks snap against thresholds and returns any alerts. prev is
// the previous snapshot, if any, and drives the growth check.
func (a *Alerter) Evaluate(snap, prev *Snapshot) []Alert {
	now := snap.CollectedAt
	if now.IsZero() {
		now = time.Now().UTC()
	}

	if !snap.StoreHealthy {
		return []Alert{{
			Type:      AlertStoreUnavailable,
			Severity:  "critical",
			Message:   "Directory store is unreachable: " + snap.StoreError,
			Details:   map[string]any{"error": snap.StoreError},
			Timestamp: now,
		}}
	}

	var alerts []Alert
	if a.cfg.DLQDepthThreshold > 0 && snap.DLQDepth >= a.cfg.DLQDepthThreshold {
		alerts = append(alerts, Alert{
			Type:     AlertDLQBacklog,
			Severity: "high",
			Message: fmt.Sprintf(
				"%d imports parked in the dead letter queue (threshold %d)",
				snap.DLQDepth, a.cfg.DLQDepthThreshold,
			),
			Details: map[string]any{
				"dlq_depth": snap.DLQDepth,
				"threshold": a.cfg.DLQDepthThreshold,
			},
			Timestamp: now,
		})
	}

	if prev != nil && prev.StoreHealthy && a.cfg.DLQGrowthThreshold > 0 {
		if grown := snap.DLQDepth - prev.DLQDepth; grown >= a.cfg.DLQGrowthThreshold {
			alerts = append(alerts, Alert{
				Type:     AlertDLQGrowth,
				Severity: "medium",
				Message: fmt.Sprintf(
					"Dead letter queue grew by %d since %s",
					grown, prev.CollectedAt.Format(time.RFC3339),
				),
				Details: map[string]any{
					"previous": prev.DLQDepth,
					"current":  snap.DLQDepth,
				},
				Timestamp: now,
			})
		}
	}

	return alerts
}

// SendAlerts delivers alerts to the configured webhook URL.
// Returns the number of alerts successfully sent.
func (a *Alerter) SendAlerts(ctx context.Context, alerts []Alert) int {
	if a.cfg.WebhookURL == "" || len(alerts) == 0 {
		return 0
	}

	sent := 0
	for _, alert := range alerts {
		if err := a.sendWebhook(ctx, alert); err != nil {
			zap.L().Error("monitoring: failed to send alert",
				zap.String("type", string(alert.Type)),
				zap.Error(err),
			)
			continue
		}
		zap.L().Info("monitoring: alert sent",
			zap.String("type", string(alert.Type)),
			zap.String("severity", alert.Severity),
		)
		sent++
	}
	return sent
}

func (a *Alerter) sendWebhook(ctx context.Context, alert Alert) error {
	payload, err := json.Marshal(alert)
	if err != nil {
		return eris.Wrap(err, "monitoring: marshal alert")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.cfg.WebhookURL, bytes.NewReader(payload))
	if err != nil {
		return eris.Wrap(err, "monitoring: create webhook request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.client.Do(req)
	if err != nil {
		return eris.Wrap(err, "monitoring: webhook request")
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode >= 400 {
		return eris.Errorf("monitoring: webhook returned status %d", resp.StatusCode)
	}
	return nil
}
