package oracle

import (
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jborden/git-sentinel/internal/model"
	"github.com/jborden/git-sentinel/internal/signature"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
}

func TestStatic_Decide(t *testing.T) {
	o := NewStatic(testLogger())

	tests := []struct {
		name        string
		threatLabel string
		wantAdvice  string
	}{
		{"credential key gets bill-shock advice", signature.LabelCredentialKey, "bill shock"},
		{"bulk pii gets gdpr advice", signature.LabelBulkPII, "GDPR"},
		{"private key gets rotation advice", signature.LabelPrivateKeyBlock, "key pair"},
		{"unknown label falls back to generic advice", "NovelThreat", "rotate any exposed"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			directive, err := o.Decide(context.Background(), model.RemediationRequest{
				Path:        "/repo/keys.env",
				ThreatLabel: tt.threatLabel,
			})
			require.NoError(t, err)

			// Quarantine always comes first, then the report.
			require.Len(t, directive.Actions, 2)
			assert.Equal(t, model.ActionQuarantine, directive.Actions[0].Name)
			assert.Equal(t, "/repo/keys.env", directive.Actions[0].Args["path"])
			assert.Equal(t, model.ActionReport, directive.Actions[1].Name)
			assert.Equal(t, tt.threatLabel, directive.Actions[1].Args["threat_label"])
			assert.Contains(t, directive.Actions[1].Args["advice"], tt.wantAdvice)
		})
	}
}

func TestHTTP_Decide(t *testing.T) {
	t.Run("accepts a schema-valid directive", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, http.MethodPost, r.Method)
			assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(`{"actions":[{"name":"quarantine_file","args":{"path":"/repo/keys.env"}}]}`))
		}))
		defer server.Close()

		o, err := NewHTTP(server.URL, 5*time.Second, testLogger())
		require.NoError(t, err)

		directive, err := o.Decide(context.Background(), model.RemediationRequest{
			Path:        "/repo/keys.env",
			ThreatLabel: signature.LabelCredentialKey,
		})
		require.NoError(t, err)
		require.Len(t, directive.Actions, 1)
		assert.Equal(t, model.ActionQuarantine, directive.Actions[0].Name)
	})

	t.Run("rejects an out-of-contract directive", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{"steps":["do something"]}`))
		}))
		defer server.Close()

		o, err := NewHTTP(server.URL, 5*time.Second, testLogger())
		require.NoError(t, err)

		_, err = o.Decide(context.Background(), model.RemediationRequest{Path: "/x", ThreatLabel: "y"})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "schema validation")
	})

	t.Run("non-200 is an oracle failure", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "overloaded", http.StatusServiceUnavailable)
		}))
		defer server.Close()

		o, err := NewHTTP(server.URL, 5*time.Second, testLogger())
		require.NoError(t, err)

		_, err = o.Decide(context.Background(), model.RemediationRequest{Path: "/x", ThreatLabel: "y"})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "503")
	})

	t.Run("unreachable endpoint is an oracle failure", func(t *testing.T) {
		o, err := NewHTTP("http://127.0.0.1:1", time.Second, testLogger())
		require.NoError(t, err)

		_, err = o.Decide(context.Background(), model.RemediationRequest{Path: "/x", ThreatLabel: "y"})
		assert.Error(t, err)
	})
}
