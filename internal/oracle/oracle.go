package oracle

import (
	"context"

	"github.com/jborden/git-sentinel/internal/model"
)

// SystemInstruction is the fixed briefing sent with every decision request.
// It pins the action order: isolate first, explain second.
const SystemInstruction = "You are a Cyber Security Sentinel. You have detected a security violation " +
	"in a git repository. You must IMMEDIATELY quarantine the file. Then, you must write a " +
	"remediation report explaining the specific risks of this threat type. For credential keys, " +
	"explain the risk of cloud bill shock. For bulk PII, explain GDPR risks."

// Oracle decides which remediation actions to run for a detected threat and
// in what order. It is a pluggable black box; a failed decision is a
// recoverable outcome for the workflow, never fatal to the controller.
type Oracle interface {
	Decide(ctx context.Context, req model.RemediationRequest) (model.ActionDirective, error)
}
