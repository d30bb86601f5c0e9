package console

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/jborden/git-sentinel/internal/model"
)

var (
	bannerStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("6")).
			Padding(0, 2)
	titleStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("6"))
	alertStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("9"))
	pathStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("11"))
	successStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("10"))
	dimStyle     = lipgloss.NewStyle().Faint(true)
)

// Console renders operator-facing status lines. It is purely informational;
// nothing downstream depends on its output. Quiet mode silences it entirely
// (tests, headless deployments).
type Console struct {
	quiet bool
}

// New creates a console. When quiet is true all output is suppressed.
func New(quiet bool) *Console {
	return &Console{quiet: quiet}
}

// Banner prints the startup panel with the watched root and signature list.
func (c *Console) Banner(root string, signatureLabels []string) {
	if c.quiet {
		return
	}
	body := titleStyle.Render("ZERO-TRUST SENTINEL") + "\n" +
		"Watching: " + root + "\n" +
		"Signatures: " + strings.Join(signatureLabels, ", ")
	fmt.Println(bannerStyle.Render(body))
}

// Alert prints the per-detection banner.
func (c *Console) Alert(threatLabel, path string) {
	if c.quiet {
		return
	}
	fmt.Println()
	fmt.Println(alertStyle.Render("SECURITY ALERT: " + threatLabel))
	fmt.Println(pathStyle.Render("File: " + path))
}

// Summary prints the completion line for a finished remediation run.
func (c *Console) Summary(outcome model.RemediationOutcome) {
	if c.quiet {
		return
	}
	fmt.Println(dimStyle.Render(fmt.Sprintf("Executed %d mitigation steps.", outcome.ActionsExecuted)))
	for _, result := range outcome.Results {
		fmt.Println(dimStyle.Render("  - " + result))
	}
	fmt.Println(successStyle.Render("Threat neutralized."))
}

// Stopped prints the shutdown line.
func (c *Console) Stopped() {
	if c.quiet {
		return
	}
	fmt.Println(pathStyle.Render("Sentinel stopped."))
}
