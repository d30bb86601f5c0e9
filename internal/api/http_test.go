package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jborden/git-sentinel/internal/model"
	"github.com/jborden/git-sentinel/internal/store"
)

func newTestAPI() *HTTPAPI {
	s := store.NewMemoryStore(8, 16)
	s.Add(&model.Detection{
		ID: "d1", Path: "/repo/keys.env", ThreatLabel: "CredentialKey",
		Matches: 1, Timestamp: time.Now().UTC(),
	})
	s.Add(&model.Detection{
		ID: "d2", Path: "/repo/users.csv", ThreatLabel: "BulkPII",
		Matches: 5, Timestamp: time.Now().UTC(),
	})
	return NewHTTPAPI(s, []string{"CredentialKey", "BulkPII"}, "/repo")
}

func get(t *testing.T, api *HTTPAPI, path string) (*httptest.ResponseRecorder, map[string]interface{}) {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	rec := httptest.NewRecorder()
	api.Router().ServeHTTP(rec, req)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return rec, body
}

func TestHTTPAPI_Health(t *testing.T) {
	rec, body := get(t, newTestAPI(), "/healthz")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "healthy", body["status"])
	assert.Equal(t, "/repo", body["watch_root"])
}

func TestHTTPAPI_Detections(t *testing.T) {
	api := newTestAPI()

	rec, body := get(t, api, "/detections")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, float64(2), body["count"])

	_, filtered := get(t, api, "/detections?label=BulkPII")
	assert.Equal(t, float64(1), filtered["count"])

	_, limited := get(t, api, "/detections?limit=1")
	assert.Equal(t, float64(1), limited["count"])
}

func TestHTTPAPI_Signatures(t *testing.T) {
	rec, body := get(t, newTestAPI(), "/signatures")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, float64(2), body["count"])
}

func TestHTTPAPI_MethodNotAllowed(t *testing.T) {
	api := newTestAPI()
	req := httptest.NewRequest(http.MethodPost, "/detections", nil)
	rec := httptest.NewRecorder()
	api.Router().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}
