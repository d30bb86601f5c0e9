package publish

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/jborden/git-sentinel/internal/model"
)

// Publisher mirrors detections and remediation outcomes onto NATS subjects so
// a fleet aggregator can consume them. Publishing is best effort: the local
// remediation pipeline never depends on it.
type Publisher struct {
	nc            *nats.Conn
	subjectPrefix string
	logger        *slog.Logger
}

// outcomeEvent is the wire shape for completed remediation runs.
type outcomeEvent struct {
	DetectionID string                   `json:"detection_id"`
	Path        string                   `json:"path"`
	ThreatLabel string                   `json:"threat_label"`
	Outcome     model.RemediationOutcome `json:"outcome"`
	Timestamp   time.Time                `json:"timestamp"`
}

// NewPublisher creates a publisher on the given subject prefix
// (<prefix>.detections and <prefix>.outcomes).
func NewPublisher(nc *nats.Conn, subjectPrefix string, logger *slog.Logger) *Publisher {
	return &Publisher{
		nc:            nc,
		subjectPrefix: subjectPrefix,
		logger:        logger,
	}
}

// PublishDetection publishes a signature hit.
func (p *Publisher) PublishDetection(d *model.Detection) error {
	if p.nc == nil || !p.nc.IsConnected() {
		return fmt.Errorf("NATS connection not available")
	}

	data, err := json.Marshal(d)
	if err != nil {
		return fmt.Errorf("failed to marshal detection: %w", err)
	}

	headers := nats.Header{}
	headers.Set("x-detection-id", d.ID)
	headers.Set("x-threat-label", d.ThreatLabel)

	msg := &nats.Msg{
		Subject: p.subjectPrefix + ".detections",
		Data:    data,
		Header:  headers,
	}
	if err := p.nc.PublishMsg(msg); err != nil {
		return fmt.Errorf("failed to publish detection: %w", err)
	}

	p.logger.Info("Published detection",
		"detection_id", d.ID,
		"threat_label", d.ThreatLabel,
		"subject", msg.Subject)
	return nil
}

// PublishOutcome publishes the outcome of a completed remediation run.
func (p *Publisher) PublishOutcome(d *model.Detection, outcome model.RemediationOutcome) error {
	if p.nc == nil || !p.nc.IsConnected() {
		return fmt.Errorf("NATS connection not available")
	}

	data, err := json.Marshal(outcomeEvent{
		DetectionID: d.ID,
		Path:        d.Path,
		ThreatLabel: d.ThreatLabel,
		Outcome:     outcome,
		Timestamp:   time.Now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("failed to marshal outcome: %w", err)
	}

	subject := p.subjectPrefix + ".outcomes"
	if err := p.nc.Publish(subject, data); err != nil {
		return fmt.Errorf("failed to publish outcome: %w", err)
	}

	p.logger.Info("Published remediation outcome",
		"detection_id", d.ID,
		"actions_executed", outcome.ActionsExecuted,
		"subject", subject)
	return nil
}
