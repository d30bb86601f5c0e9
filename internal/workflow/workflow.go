package workflow

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jborden/git-sentinel/internal/metrics"
	"github.com/jborden/git-sentinel/internal/model"
	"github.com/jborden/git-sentinel/internal/oracle"
	"github.com/jborden/git-sentinel/internal/quarantine"
)

// State is a phase of one remediation run.
type State string

const (
	StateIdle      State = "idle"
	StateAnalyzing State = "analyzing"
	StateExecuting State = "executing"
	StateDone      State = "done"
)

// ActionFunc is a registered remediation action. The string result is
// recorded in the outcome whether or not the action succeeded.
type ActionFunc func(ctx context.Context, args map[string]any) (string, error)

// Runner drives the two-stage remediation workflow: ask the oracle which
// actions to take (Analyzing), then execute them in order (Executing). Done
// is terminal; a failed run ends in Done with a failure outcome recorded,
// never silently dropped.
type Runner struct {
	oracle  oracle.Oracle
	actions map[string]ActionFunc
	metrics *metrics.Metrics
	logger  *slog.Logger
}

// NewRunner creates a workflow runner with the closed action set bound to the
// quarantine store. metrics may be nil.
func NewRunner(o oracle.Oracle, store *quarantine.Store, m *metrics.Metrics, logger *slog.Logger) *Runner {
	r := &Runner{
		oracle:  o,
		metrics: m,
		logger:  logger,
	}

	r.actions = map[string]ActionFunc{
		model.ActionQuarantine: func(_ context.Context, args map[string]any) (string, error) {
			path, err := stringArg(args, "path")
			if err != nil {
				return "", err
			}
			return store.Quarantine(path)
		},
		model.ActionReport: func(_ context.Context, args map[string]any) (string, error) {
			path, err := stringArg(args, "path")
			if err != nil {
				return "", err
			}
			label, err := stringArg(args, "threat_label")
			if err != nil {
				return "", err
			}
			advice, _ := args["advice"].(string)
			return store.Report(path, label, advice)
		},
	}

	return r
}

// Run executes one remediation request to completion and returns its outcome.
// Each directive entry is attempted independently: a failed report must not
// block a successful quarantine and vice versa, so there is no rollback and
// no early abort.
func (r *Runner) Run(ctx context.Context, req model.RemediationRequest) model.RemediationOutcome {
	state := StateIdle
	transition := func(next State) {
		r.logger.Debug("Workflow transition",
			"path", req.Path,
			"from", state,
			"to", next)
		state = next
	}

	transition(StateAnalyzing)
	directive, err := r.oracle.Decide(ctx, req)
	if err != nil {
		r.logger.Warn("Oracle decision failed",
			"path", req.Path,
			"threat_label", req.ThreatLabel,
			"error", err)
		if r.metrics != nil {
			r.metrics.OracleFailuresTotal.Inc()
		}
		transition(StateDone)
		return model.RemediationOutcome{
			ActionsExecuted: 0,
			Results:         []string{fmt.Sprintf("oracle error: %v", err)},
		}
	}

	transition(StateExecuting)
	executed := 0
	results := make([]string, 0, len(directive.Actions))

	for _, call := range directive.Actions {
		action, ok := r.actions[call.Name]
		if !ok {
			// Unresolved names are contained per entry; the rest of the
			// directive still runs.
			r.logger.Warn("Directive references unknown action",
				"path", req.Path,
				"action", call.Name)
			if r.metrics != nil {
				r.metrics.ActionFailuresTotal.Inc()
			}
			results = append(results, fmt.Sprintf("unknown action %q", call.Name))
			continue
		}

		r.logger.Info("Executing action",
			"path", req.Path,
			"action", call.Name)

		executed++
		result, err := action(ctx, call.Args)
		if err != nil {
			if r.metrics != nil {
				r.metrics.ActionFailuresTotal.Inc()
			}
			results = append(results, fmt.Sprintf("%s failed: %v", call.Name, err))
			continue
		}
		results = append(results, result)
	}

	transition(StateDone)
	return model.RemediationOutcome{
		ActionsExecuted: executed,
		Results:         results,
	}
}

func stringArg(args map[string]any, key string) (string, error) {
	value, ok := args[key].(string)
	if !ok || value == "" {
		return "", fmt.Errorf("missing required argument %q", key)
	}
	return value, nil
}
