package gate

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/jborden/git-sentinel/internal/model"
)

// RejectReason says why a raw event was not admitted for scanning.
type RejectReason string

const (
	RejectNone           RejectReason = ""
	RejectQuarantined    RejectReason = "quarantine_marker"
	RejectReportArtifact RejectReason = "report_artifact"
	RejectVCSMetadata    RejectReason = "vcs_metadata"
	RejectMissing        RejectReason = "missing"
	RejectExtension      RejectReason = "extension"
)

// Gate filters raw file-system events into scan candidates. It is a pure
// predicate plus transform; it never touches the files beyond a stat.
type Gate struct {
	quarantineSuffix string
	reportPrefix     string
	allowedExts      map[string]struct{}
	logger           *slog.Logger
}

// NewGate creates an event gate for the given artifact naming scheme and
// extension allow-list.
func NewGate(quarantineSuffix, reportPrefix string, allowedExtensions []string, logger *slog.Logger) *Gate {
	exts := make(map[string]struct{}, len(allowedExtensions))
	for _, ext := range allowedExtensions {
		exts[strings.ToLower(ext)] = struct{}{}
	}
	return &Gate{
		quarantineSuffix: quarantineSuffix,
		reportPrefix:     reportPrefix,
		allowedExts:      exts,
		logger:           logger,
	}
}

// Admit applies the rejection rules in order, cheapest first, and returns a
// scan candidate when the event survives all of them.
//
// Rule 1 is what breaks the redetection loop: the quarantined copy still
// contains the secret, so events for marker-suffixed paths must never reach
// the scanner.
func (g *Gate) Admit(ev model.FileEvent) (*model.ScanCandidate, RejectReason) {
	name := filepath.Base(ev.Path)

	if strings.HasSuffix(name, g.quarantineSuffix) {
		return nil, RejectQuarantined
	}

	if strings.Contains(name, g.reportPrefix) {
		return nil, RejectReportArtifact
	}

	for _, segment := range strings.Split(filepath.ToSlash(ev.Path), "/") {
		if segment == ".git" {
			return nil, RejectVCSMetadata
		}
	}

	// Re-check existence: the watch source races against deletes.
	info, err := os.Stat(ev.Path)
	if err != nil || info.IsDir() {
		return nil, RejectMissing
	}

	ext := strings.ToLower(filepath.Ext(name))
	if _, ok := g.allowedExts[ext]; !ok {
		return nil, RejectExtension
	}

	return &model.ScanCandidate{
		Path:    ev.Path,
		Kind:    ev.Kind,
		Size:    info.Size(),
		ModTime: info.ModTime(),
	}, RejectNone
}
