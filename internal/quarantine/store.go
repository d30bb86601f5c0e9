package quarantine

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

const ignoreSectionHeader = "# --- SECURITY SENTINEL RULES ---"

// Store executes the two remediation actions: quarantine (rename + ignore
// manifest patch) and report writing. Both are idempotent; all durable state
// lives on the filesystem and is re-read on every call.
type Store struct {
	quarantineSuffix string
	reportPrefix     string
	logger           *slog.Logger

	// Concurrent quarantines in the same directory race to patch the same
	// .gitignore; the patch is serialized per directory.
	mu       sync.Mutex
	dirLocks map[string]*sync.Mutex
}

// NewStore creates a quarantine store using the given artifact naming scheme.
func NewStore(quarantineSuffix, reportPrefix string, logger *slog.Logger) *Store {
	return &Store{
		quarantineSuffix: quarantineSuffix,
		reportPrefix:     reportPrefix,
		logger:           logger,
		dirLocks:         make(map[string]*sync.Mutex),
	}
}

// QuarantinedPath returns the marker path a file would be renamed to.
func (s *Store) QuarantinedPath(path string) string {
	return path + s.quarantineSuffix
}

// ReportPath returns the report artifact path for a file.
func (s *Store) ReportPath(path string) string {
	dir, name := filepath.Split(path)
	return filepath.Join(dir, s.reportPrefix+name+".md")
}

// Quarantine isolates a file by renaming it with the quarantine marker suffix
// and patching the directory's ignore manifest. It is safe to invoke twice:
// a path that already carries the marker is a no-op success, and a path that
// vanished before the rename is a benign not-found result. The rename is the
// single atomic operation relied on; there is never a window where both the
// original and a partial copy exist.
func (s *Store) Quarantine(path string) (string, error) {
	if strings.HasSuffix(filepath.Base(path), s.quarantineSuffix) {
		return fmt.Sprintf("File already quarantined: %s", filepath.Base(path)), nil
	}

	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return "File not found.", nil
		}
		return "", fmt.Errorf("failed to stat %s: %w", path, err)
	}

	quarantined := s.QuarantinedPath(path)
	if err := os.Rename(path, quarantined); err != nil {
		// The file may have been deleted between the stat and the rename;
		// that is the same benign outcome as not finding it at all.
		if os.IsNotExist(err) {
			return "File not found.", nil
		}
		return "", fmt.Errorf("failed to move file: %w", err)
	}

	s.logger.Info("File quarantined",
		"path", path,
		"quarantined_path", quarantined)

	if err := s.patchIgnoreManifest(filepath.Dir(path)); err != nil {
		// The file is isolated even if the manifest patch failed; report the
		// partial result rather than undoing the rename.
		s.logger.Warn("Ignore manifest patch failed", "dir", filepath.Dir(path), "error", err)
		return fmt.Sprintf("File quarantined to %s but .gitignore patch failed: %v",
			filepath.Base(quarantined), err), nil
	}

	return "File quarantined and .gitignore updated.", nil
}

// patchIgnoreManifest appends the sentinel exclusion patterns to the
// directory's .gitignore, creating it if needed. Only missing patterns are
// appended, so re-running never duplicates an entry.
func (s *Store) patchIgnoreManifest(dir string) error {
	lock := s.dirLock(dir)
	lock.Lock()
	defer lock.Unlock()

	ignorePath := filepath.Join(dir, ".gitignore")
	patterns := []string{
		"*" + s.quarantineSuffix,
		s.reportPrefix + "*.md",
	}

	current := ""
	if data, err := os.ReadFile(ignorePath); err == nil {
		current = string(data)
	} else if !os.IsNotExist(err) {
		return fmt.Errorf("failed to read ignore manifest: %w", err)
	}

	var missing []string
	for _, p := range patterns {
		if !strings.Contains(current, p) {
			missing = append(missing, p)
		}
	}
	if len(missing) == 0 {
		return nil
	}

	f, err := os.OpenFile(ignorePath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("failed to open ignore manifest: %w", err)
	}
	defer f.Close()

	var b strings.Builder
	b.WriteString("\n\n" + ignoreSectionHeader + "\n")
	for _, p := range missing {
		b.WriteString(p + "\n")
	}
	if _, err := f.WriteString(b.String()); err != nil {
		return fmt.Errorf("failed to append ignore patterns: %w", err)
	}

	s.logger.Info("Ignore manifest patched", "path", ignorePath, "patterns", missing)
	return nil
}

func (s *Store) dirLock(dir string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()

	lock, ok := s.dirLocks[dir]
	if !ok {
		lock = &sync.Mutex{}
		s.dirLocks[dir] = lock
	}
	return lock
}

// Report writes the remediation report for a detection next to the original
// file. Same inputs always produce the same file, and an existing report is
// overwritten, so re-running is harmless. The report must stay writable even
// when the quarantine itself failed: a vanished file still deserves an
// explanation of why it was flagged.
func (s *Store) Report(path, threatLabel, advice string) (string, error) {
	name := filepath.Base(path)
	reportPath := s.ReportPath(path)
	quarantinedName := name + s.quarantineSuffix

	content := fmt.Sprintf(`# Security Intervention: %s

**File:** `+"`%s`"+`
**Status:** Quarantined (Renamed to `+"`%s`"+`)

## Why was this blocked?
%s

## How to fix
1. View the file: `+"`cat \"%s\"`"+`
2. Remove the sensitive data (Secrets/PII).
3. Rename it back: `+"`mv \"%s\" \"%s\"`"+`
`, threatLabel, name, quarantinedName, advice, quarantinedName, quarantinedName, name)

	if err := os.WriteFile(reportPath, []byte(content), 0644); err != nil {
		return "", fmt.Errorf("failed to write report: %w", err)
	}

	s.logger.Info("Remediation report generated",
		"report_path", reportPath,
		"threat_label", threatLabel)

	return fmt.Sprintf("Report generated at %s.", filepath.Base(reportPath)), nil
}
