package oracle

import (
	"context"
	"log/slog"

	"github.com/jborden/git-sentinel/internal/model"
	"github.com/jborden/git-sentinel/internal/signature"
)

// adviceTable maps threat labels to the risk explanation written into the
// remediation report.
var adviceTable = map[string]string{
	signature.LabelCredentialKey: "A long-lived access key was committed in plain text. Anyone who " +
		"obtains it can spin up resources on your cloud account, which routinely ends in bill shock " +
		"measured in thousands of dollars. Revoke the key at the provider immediately; rotating the " +
		"file alone does not help once the key has left the repository.",
	signature.LabelSecretToken: "An API secret token was committed in plain text. Treat it as " +
		"compromised: revoke it at the issuing service and generate a replacement before restoring " +
		"this file. Tokens in git history remain recoverable even after the file is edited.",
	signature.LabelPrivateKeyBlock: "A PEM private key block was committed. Private keys grant " +
		"whoever holds them the ability to impersonate the owner (TLS, SSH, or signing). Generate a " +
		"new key pair and revoke or rotate the exposed key everywhere it is trusted.",
	signature.LabelBulkPII: "This file contains bulk personal data (multiple email addresses). " +
		"Storing personal data in a code repository is a GDPR exposure: access is uncontrolled, " +
		"retention is unbounded, and a single clone constitutes a reportable breach. Move the data " +
		"to a governed store and purge it from git history.",
}

const defaultAdvice = "Sensitive data was detected in this file. Remove it, rotate any exposed " +
	"credentials, and keep secrets out of the repository."

// Static is the deterministic built-in oracle: always quarantine first, then
// write a report with advice from a fixed per-label table. It doubles as the
// drop-in test double for the remote decision service.
type Static struct {
	logger *slog.Logger
}

// NewStatic creates the deterministic oracle.
func NewStatic(logger *slog.Logger) *Static {
	return &Static{logger: logger}
}

// Decide always returns the two-step directive: quarantine, then report.
func (s *Static) Decide(_ context.Context, req model.RemediationRequest) (model.ActionDirective, error) {
	advice, ok := adviceTable[req.ThreatLabel]
	if !ok {
		advice = defaultAdvice
	}

	s.logger.Debug("Static oracle decision",
		"path", req.Path,
		"threat_label", req.ThreatLabel)

	return model.ActionDirective{
		Actions: []model.ActionCall{
			{
				Name: model.ActionQuarantine,
				Args: map[string]any{"path": req.Path},
			},
			{
				Name: model.ActionReport,
				Args: map[string]any{
					"path":         req.Path,
					"threat_label": req.ThreatLabel,
					"advice":       advice,
				},
			},
		},
	}, nil
}
