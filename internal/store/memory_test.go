package store

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jborden/git-sentinel/internal/model"
)

func detection(id, label string) *model.Detection {
	return &model.Detection{
		ID:          id,
		Path:        "/repo/" + id,
		ThreatLabel: label,
		Matches:     1,
		Timestamp:   time.Now().UTC(),
	}
}

func TestMemoryStore_AddAndDedupe(t *testing.T) {
	s := NewMemoryStore(8, 16)

	assert.True(t, s.Add(detection("d1", "CredentialKey")))
	assert.False(t, s.Add(detection("d1", "CredentialKey")), "same ID must dedupe")
	assert.True(t, s.Add(detection("d2", "BulkPII")))

	assert.Len(t, s.All(), 2)
}

func TestMemoryStore_RingEviction(t *testing.T) {
	s := NewMemoryStore(2, 16)

	s.Add(detection("d1", "CredentialKey"))
	s.Add(detection("d2", "CredentialKey"))
	s.Add(detection("d3", "CredentialKey"))

	all := s.All()
	require.Len(t, all, 2)
	ids := []string{all[0].ID, all[1].ID}
	assert.NotContains(t, ids, "d1", "oldest entry evicted")
}

func TestMemoryStore_ByLabel(t *testing.T) {
	s := NewMemoryStore(8, 16)
	s.Add(detection("d1", "CredentialKey"))
	s.Add(detection("d2", "BulkPII"))
	s.Add(detection("d3", "BulkPII"))

	pii := s.ByLabel("BulkPII")
	require.Len(t, pii, 2)
	for _, d := range pii {
		assert.Equal(t, "BulkPII", d.ThreatLabel)
	}
}

func TestMemoryStore_SetOutcome(t *testing.T) {
	s := NewMemoryStore(8, 16)
	s.Add(detection("d1", "CredentialKey"))

	s.SetOutcome("d1", &model.RemediationOutcome{
		ActionsExecuted: 2,
		Results:         []string{"quarantined", "report"},
	})

	all := s.All()
	require.Len(t, all, 1)
	require.NotNil(t, all[0].Outcome)
	assert.Equal(t, 2, all[0].Outcome.ActionsExecuted)
}

func TestMemoryStore_ReadersGetIsolatedCopies(t *testing.T) {
	s := NewMemoryStore(8, 16)
	s.Add(detection("d1", "CredentialKey"))

	// A snapshot taken before the outcome lands must stay untouched when
	// SetOutcome mutates the stored entry: handlers serialize snapshots
	// outside the store lock while remediation runs complete.
	snapshot := s.All()
	require.Len(t, snapshot, 1)
	require.Nil(t, snapshot[0].Outcome)

	s.SetOutcome("d1", &model.RemediationOutcome{
		ActionsExecuted: 2,
		Results:         []string{"quarantined", "report"},
	})

	assert.Nil(t, snapshot[0].Outcome, "earlier snapshot must not observe the write")

	fresh := s.All()
	require.Len(t, fresh, 1)
	require.NotNil(t, fresh[0].Outcome)

	// Mutating a returned entry must not leak back into the store.
	fresh[0].ThreatLabel = "tampered"
	fresh[0].Outcome.Results[0] = "tampered"
	kept := s.All()
	assert.Equal(t, "CredentialKey", kept[0].ThreatLabel)
	assert.Equal(t, "quarantined", kept[0].Outcome.Results[0])
}

func TestMemoryStore_Stats(t *testing.T) {
	s := NewMemoryStore(8, 16)
	s.Add(detection("d1", "CredentialKey"))
	s.Add(detection("d2", "BulkPII"))

	stats := s.Stats()
	assert.Equal(t, 2, stats["total_detections"])
	byLabel, ok := stats["by_label"].(map[string]int)
	require.True(t, ok)
	assert.Equal(t, 1, byLabel["CredentialKey"])
}
