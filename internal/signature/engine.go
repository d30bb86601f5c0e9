package signature

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/jborden/git-sentinel/internal/model"
)

// Engine matches file content against the configured signature set. It is
// stateless between scans; every call re-reads the file.
type Engine struct {
	signatures         []Signature
	windowBytes        int
	aggregateThreshold int
	logger             *slog.Logger
}

// NewEngine creates a scan engine. The signature slice order is the priority
// order; aggregateThreshold applies to aggregate signatures that do not carry
// their own threshold.
func NewEngine(signatures []Signature, windowBytes, aggregateThreshold int, logger *slog.Logger) (*Engine, error) {
	if len(signatures) == 0 {
		return nil, fmt.Errorf("engine requires at least one signature")
	}

	compiled := make([]Signature, len(signatures))
	copy(compiled, signatures)
	for i := range compiled {
		if compiled[i].re == nil {
			if err := compiled[i].compile(); err != nil {
				return nil, err
			}
		}
	}

	return &Engine{
		signatures:         compiled,
		windowBytes:        windowBytes,
		aggregateThreshold: aggregateThreshold,
		logger:             logger,
	}, nil
}

// Labels returns the signature labels in priority order.
func (e *Engine) Labels() []string {
	labels := make([]string, len(e.signatures))
	for i, sig := range e.signatures {
		labels[i] = sig.Label
	}
	return labels
}

// Scan reads a bounded window of the file and returns at most one threat.
// Vanished files, permission errors, and undecodable content yield (nil, nil)
// so a bad candidate can never take the controller down; any other read error
// is returned for logging but still means "no threat" for this candidate.
func (e *Engine) Scan(path string) (*model.Threat, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) || os.IsPermission(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	raw, err := io.ReadAll(io.LimitReader(f, int64(e.windowBytes)))
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}

	// Permissive decode: undecodable bytes are replaced, never fatal.
	content := strings.ToValidUTF8(string(raw), "�")

	return e.Match(content), nil
}

// Match evaluates the signature set against already-decoded content. The
// first signature whose occurrence count clears its threshold wins, so at
// most one threat comes out of a scan even when several patterns match.
func (e *Engine) Match(content string) *model.Threat {
	for _, sig := range e.signatures {
		count := sig.count(content)
		if count == 0 {
			continue
		}

		threshold := sig.Threshold
		if threshold <= 0 {
			if sig.Aggregate {
				threshold = e.aggregateThreshold
			} else {
				threshold = 1
			}
		}

		if count < threshold {
			e.logger.Debug("Signature below threshold",
				"label", sig.Label,
				"matches", count,
				"threshold", threshold)
			continue
		}

		return &model.Threat{Label: sig.Label, Matches: count}
	}

	return nil
}
