package model

import (
	"time"
)

// EventKind classifies a file-system event delivered by the watch source.
type EventKind string

const (
	EventCreated  EventKind = "created"
	EventModified EventKind = "modified"
)

// FileEvent is a raw file-system notification from the watch source.
type FileEvent struct {
	Path  string    `json:"path"`
	Kind  EventKind `json:"kind"`
	IsDir bool      `json:"is_dir"`
}

// ScanCandidate is a gated file event that is safe to scan. It lives for a
// single scan cycle and carries the stat fingerprint observed at admission so
// the controller can tell a repeated save apart from new content.
type ScanCandidate struct {
	Path    string    `json:"path"`
	Kind    EventKind `json:"kind"`
	Size    int64     `json:"size"`
	ModTime time.Time `json:"mod_time"`
}

// Threat is the result of a signature match: the winning label plus the raw
// occurrence count that cleared its threshold.
type Threat struct {
	Label   string `json:"label"`
	Matches int    `json:"matches"`
}

// RemediationRequest is the unit of work handed to one workflow run. It is
// owned by exactly one run; the controller never dispatches two concurrent
// runs for the same path.
type RemediationRequest struct {
	Path        string `json:"path"`
	ThreatLabel string `json:"threat_label"`
}

// Registered remediation action names. The directive contract between the
// advisory oracle and the workflow is closed over exactly this set.
const (
	ActionQuarantine = "quarantine_file"
	ActionReport     = "write_remediation_report"
)

// ActionCall is a single entry of an ActionDirective: a registered action
// name plus its arguments.
type ActionCall struct {
	Name string         `json:"name"`
	Args map[string]any `json:"args"`
}

// ActionDirective is the ordered action list chosen by the advisory oracle.
type ActionDirective struct {
	Actions []ActionCall `json:"actions"`
}

// RemediationOutcome summarizes one workflow run. Immutable once built.
type RemediationOutcome struct {
	ActionsExecuted int      `json:"actions_executed"`
	Results         []string `json:"results"`
}

// Detection is the record the controller keeps for each signature hit. It
// feeds the HTTP API, metrics, and the optional NATS publisher; durable truth
// stays on the filesystem.
type Detection struct {
	ID          string              `json:"id"`
	Path        string              `json:"path"`
	ThreatLabel string              `json:"threat_label"`
	Matches     int                 `json:"matches"`
	Timestamp   time.Time           `json:"timestamp"`
	Outcome     *RemediationOutcome `json:"outcome,omitempty"`
}
