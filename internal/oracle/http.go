package oracle

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/xeipuuv/gojsonschema"

	"github.com/jborden/git-sentinel/internal/model"
)

// directiveSchema validates directives coming back from the remote decision
// service before they are handed to the workflow. An out-of-contract response
// is an oracle failure, not a crash.
const directiveSchema = `{
  "type": "object",
  "required": ["actions"],
  "properties": {
    "actions": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["name"],
        "properties": {
          "name": {"type": "string", "minLength": 1},
          "args": {"type": "object"}
        }
      }
    }
  }
}`

// decisionRequest is the payload posted to the decision endpoint.
type decisionRequest struct {
	Path        string `json:"path"`
	ThreatLabel string `json:"threat_label"`
	Instruction string `json:"instruction"`
}

// HTTP is an oracle backed by a remote decision service. It posts the threat
// context and expects an ActionDirective back, schema-validated.
type HTTP struct {
	endpoint string
	client   *http.Client
	schema   *gojsonschema.Schema
	logger   *slog.Logger
}

// NewHTTP creates an HTTP oracle for the given decision endpoint.
func NewHTTP(endpoint string, timeout time.Duration, logger *slog.Logger) (*HTTP, error) {
	schema, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(directiveSchema))
	if err != nil {
		return nil, fmt.Errorf("failed to compile directive schema: %w", err)
	}

	return &HTTP{
		endpoint: endpoint,
		client:   &http.Client{Timeout: timeout},
		schema:   schema,
		logger:   logger,
	}, nil
}

// Decide posts the remediation request and validates the returned directive.
func (h *HTTP) Decide(ctx context.Context, req model.RemediationRequest) (model.ActionDirective, error) {
	payload, err := json.Marshal(decisionRequest{
		Path:        req.Path,
		ThreatLabel: req.ThreatLabel,
		Instruction: SystemInstruction,
	})
	if err != nil {
		return model.ActionDirective{}, fmt.Errorf("failed to marshal decision request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, h.endpoint, bytes.NewReader(payload))
	if err != nil {
		return model.ActionDirective{}, fmt.Errorf("failed to build decision request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := h.client.Do(httpReq)
	if err != nil {
		return model.ActionDirective{}, fmt.Errorf("decision service unreachable: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return model.ActionDirective{}, fmt.Errorf("failed to read decision response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return model.ActionDirective{}, fmt.Errorf("decision service returned %d: %s",
			resp.StatusCode, strings.TrimSpace(string(body)))
	}

	result, err := h.schema.Validate(gojsonschema.NewBytesLoader(body))
	if err != nil {
		return model.ActionDirective{}, fmt.Errorf("failed to validate directive: %w", err)
	}
	if !result.Valid() {
		var reasons []string
		for _, desc := range result.Errors() {
			reasons = append(reasons, desc.String())
		}
		return model.ActionDirective{}, fmt.Errorf("directive failed schema validation: %s",
			strings.Join(reasons, "; "))
	}

	var directive model.ActionDirective
	if err := json.Unmarshal(body, &directive); err != nil {
		return model.ActionDirective{}, fmt.Errorf("failed to decode directive: %w", err)
	}

	h.logger.Debug("Decision service directive accepted",
		"path", req.Path,
		"threat_label", req.ThreatLabel,
		"actions", len(directive.Actions))

	return directive, nil
}
