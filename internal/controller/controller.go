package controller

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/jborden/git-sentinel/internal/console"
	"github.com/jborden/git-sentinel/internal/gate"
	"github.com/jborden/git-sentinel/internal/metrics"
	"github.com/jborden/git-sentinel/internal/model"
	"github.com/jborden/git-sentinel/internal/publish"
	"github.com/jborden/git-sentinel/internal/signature"
	"github.com/jborden/git-sentinel/internal/store"
	"github.com/jborden/git-sentinel/internal/workflow"
)

const cooldownCacheSize = 4096

// cooldownEntry remembers the stat fingerprint seen at the last scan of a
// path. Only an event carrying the same fingerprint is a duplicate; a write
// that changed the file must always be rescanned.
type cooldownEntry struct {
	size    int64
	modTime time.Time
	at      time.Time
}

// Controller orchestrates the detection-to-remediation pipeline: gate each
// raw event, scan admitted candidates, and on a hit dispatch a remediation
// workflow run asynchronously so scanning is never blocked by oracle or
// action latency. The controller holds no durable state; everything that
// matters across restarts lives on the filesystem.
type Controller struct {
	gate      *gate.Gate
	engine    *signature.Engine
	runner    *workflow.Runner
	store     *store.MemoryStore
	metrics   *metrics.Metrics
	publisher *publish.Publisher
	console   *console.Console
	logger    *slog.Logger

	cooldown    *lru.Cache[string, cooldownEntry]
	cooldownDur time.Duration

	mu       sync.Mutex
	inflight map[string]struct{}
	wg       sync.WaitGroup
}

// NewController wires the pipeline. metrics and publisher may be nil.
func NewController(
	g *gate.Gate,
	engine *signature.Engine,
	runner *workflow.Runner,
	memStore *store.MemoryStore,
	m *metrics.Metrics,
	publisher *publish.Publisher,
	cons *console.Console,
	cooldown time.Duration,
	logger *slog.Logger,
) *Controller {
	cooldownCache, _ := lru.New[string, cooldownEntry](cooldownCacheSize)

	return &Controller{
		gate:        g,
		engine:      engine,
		runner:      runner,
		store:       memStore,
		metrics:     m,
		publisher:   publisher,
		console:     cons,
		logger:      logger,
		cooldown:    cooldownCache,
		cooldownDur: cooldown,
		inflight:    make(map[string]struct{}),
	}
}

// Run consumes the watch source until the event channel closes or the context
// is cancelled, then returns. In-flight remediation runs keep going; call
// Wait to drain them.
func (c *Controller) Run(ctx context.Context, events <-chan model.FileEvent) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			c.HandleEvent(ctx, ev)
		}
	}
}

// Wait blocks until every dispatched remediation run has reached Done.
// Started runs are never cancelled; shutdown just stops accepting events.
func (c *Controller) Wait() {
	c.wg.Wait()
}

// HandleEvent processes one raw watch event through gate and scan, and
// dispatches remediation on a signature hit. Every failure path degrades to
// "candidate dropped"; nothing here may take the controller down.
func (c *Controller) HandleEvent(ctx context.Context, ev model.FileEvent) {
	if c.metrics != nil {
		c.metrics.EventsTotal.Inc()
	}

	if ev.IsDir {
		return
	}

	if c.isInflight(ev.Path) {
		// The path is already being remediated; the quarantine marker will
		// reject future events once the rename lands.
		return
	}

	candidate, reason := c.gate.Admit(ev)
	if candidate == nil {
		if c.metrics != nil {
			c.metrics.RejectedTotal.WithLabelValues(string(reason)).Inc()
		}
		c.logger.Debug("Event rejected", "path", ev.Path, "reason", reason)
		return
	}

	if c.inCooldown(candidate) {
		return
	}
	if c.metrics != nil {
		c.metrics.CandidatesTotal.Inc()
	}

	threat, err := c.engine.Scan(candidate.Path)
	if err != nil {
		c.logger.Warn("Scan error, candidate dropped", "path", candidate.Path, "error", err)
		return
	}
	if threat == nil {
		return
	}

	detection := &model.Detection{
		ID:          uuid.NewString(),
		Path:        candidate.Path,
		ThreatLabel: threat.Label,
		Matches:     threat.Matches,
		Timestamp:   time.Now().UTC(),
	}

	c.logger.Info("Threat detected",
		"detection_id", detection.ID,
		"path", detection.Path,
		"threat_label", detection.ThreatLabel,
		"matches", detection.Matches)

	c.store.Add(detection)
	c.console.Alert(detection.ThreatLabel, detection.Path)
	if c.metrics != nil {
		c.metrics.DetectionsTotal.WithLabelValues(detection.ThreatLabel).Inc()
	}
	if c.publisher != nil {
		if err := c.publisher.PublishDetection(detection); err != nil {
			c.logger.Warn("Detection publish failed", "detection_id", detection.ID, "error", err)
		}
	}

	c.dispatch(ctx, detection)
}

// dispatch hands the detection to a workflow run on its own goroutine. The
// in-flight set guarantees a single concurrent run per path; across distinct
// paths runs may overlap arbitrarily.
func (c *Controller) dispatch(ctx context.Context, detection *model.Detection) {
	c.mu.Lock()
	c.inflight[detection.Path] = struct{}{}
	c.mu.Unlock()

	if c.metrics != nil {
		c.metrics.InflightRemediations.Inc()
	}

	// Once started, a run always reaches Done: shutdown cancels the event
	// loop, not in-flight remediations.
	runCtx := context.WithoutCancel(ctx)

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		defer func() {
			c.mu.Lock()
			delete(c.inflight, detection.Path)
			c.mu.Unlock()
			if c.metrics != nil {
				c.metrics.InflightRemediations.Dec()
			}
		}()

		outcome := c.runner.Run(runCtx, model.RemediationRequest{
			Path:        detection.Path,
			ThreatLabel: detection.ThreatLabel,
		})

		c.store.SetOutcome(detection.ID, &outcome)
		c.console.Summary(outcome)
		if c.metrics != nil {
			c.metrics.RemediationsTotal.Inc()
		}
		if c.publisher != nil {
			if err := c.publisher.PublishOutcome(detection, outcome); err != nil {
				c.logger.Warn("Outcome publish failed", "detection_id", detection.ID, "error", err)
			}
		}

		c.logger.Info("Remediation complete",
			"detection_id", detection.ID,
			"path", detection.Path,
			"actions_executed", outcome.ActionsExecuted,
			"results", outcome.Results)
	}()
}

// inCooldown suppresses bursts of duplicate events for the same path (editors
// fire create+write pairs for a single save). Suppression requires the stat
// fingerprint to be unchanged: a create followed by the write that fills the
// file in carries a new size or mtime and is scanned normally, so the window
// can never eat the event that actually delivered the content.
func (c *Controller) inCooldown(candidate *model.ScanCandidate) bool {
	now := time.Now()
	last, ok := c.cooldown.Get(candidate.Path)
	if ok && now.Sub(last.at) < c.cooldownDur &&
		last.size == candidate.Size && last.modTime.Equal(candidate.ModTime) {
		return true
	}
	c.cooldown.Add(candidate.Path, cooldownEntry{
		size:    candidate.Size,
		modTime: candidate.ModTime,
		at:      now,
	})
	return false
}

func (c *Controller) isInflight(path string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.inflight[path]
	return ok
}
