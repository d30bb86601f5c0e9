package store

import (
	"container/ring"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/jborden/git-sentinel/internal/model"
)

// MemoryStore keeps a bounded in-memory history of detections for the HTTP
// API, with LRU-based deduplication by detection ID. The filesystem remains
// the durable truth; this store is observational only and can be lost on
// restart without any recovery step.
type MemoryStore struct {
	mu         sync.RWMutex
	detections *ring.Ring
	dedupe     *lru.Cache[string, bool]
	capacity   int
}

// NewMemoryStore creates a store holding at most capacity detections.
func NewMemoryStore(capacity, dedupeCap int) *MemoryStore {
	dedupeCache, _ := lru.New[string, bool](dedupeCap)

	return &MemoryStore{
		detections: ring.New(capacity),
		dedupe:     dedupeCache,
		capacity:   capacity,
	}
}

// Add records a detection. Returns false when the detection ID was already
// recorded.
func (s *MemoryStore) Add(d *model.Detection) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.dedupe.Get(d.ID); exists {
		return false
	}
	s.dedupe.Add(d.ID, true)

	s.detections.Value = d
	s.detections = s.detections.Next()
	return true
}

// SetOutcome attaches a workflow outcome to a previously recorded detection.
func (s *MemoryStore) SetOutcome(id string, outcome *model.RemediationOutcome) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.detections.Do(func(value interface{}) {
		if d, ok := value.(*model.Detection); ok && d.ID == id {
			d.Outcome = outcome
		}
	})
}

// All returns the recorded detections, oldest first. Entries are copies:
// readers serialize them outside the store lock while SetOutcome may be
// mutating the originals.
func (s *MemoryStore) All() []*model.Detection {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*model.Detection
	s.detections.Do(func(value interface{}) {
		if d, ok := value.(*model.Detection); ok {
			out = append(out, cloneDetection(d))
		}
	})
	return out
}

// ByLabel returns detections carrying the given threat label, oldest first.
// Entries are copies, same as All.
func (s *MemoryStore) ByLabel(label string) []*model.Detection {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*model.Detection
	s.detections.Do(func(value interface{}) {
		if d, ok := value.(*model.Detection); ok && d.ThreatLabel == label {
			out = append(out, cloneDetection(d))
		}
	})
	return out
}

func cloneDetection(d *model.Detection) *model.Detection {
	c := *d
	if d.Outcome != nil {
		outcome := *d.Outcome
		outcome.Results = append([]string(nil), d.Outcome.Results...)
		c.Outcome = &outcome
	}
	return &c
}

// Stats returns summary counts for the health endpoint.
func (s *MemoryStore) Stats() map[string]interface{} {
	s.mu.RLock()
	defer s.mu.RUnlock()

	total := 0
	byLabel := make(map[string]int)
	s.detections.Do(func(value interface{}) {
		if d, ok := value.(*model.Detection); ok {
			total++
			byLabel[d.ThreatLabel]++
		}
	})

	return map[string]interface{}{
		"total_detections": total,
		"by_label":         byLabel,
		"capacity":         s.capacity,
	}
}
