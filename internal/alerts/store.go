package alerts

import (
	"sort"
	"sync"
	"time"

	"github.com/kjstillabower/air-quality-service/internal/models"
)

const maxHistoryLen = 500

// SeedAlert is the alert present at startup.
func SeedAlert(now time.Time) models.AlertRecord {
	return models.AlertRecord{
		AlertID:       "A-001",
		StationID:     "ST-DEL-001",
		Pollutant:     "PM2.5",
		Threshold:     60,
		ObservedValue: 82,
		Timestamp:     now.UTC(),
		Status:        models.AlertActive,
	}
}

// Store keeps alert records in memory, oldest first. Resolved records beyond
// maxHistoryLen are dropped oldest first; active records are never dropped.
type Store struct {
	mu      sync.RWMutex
	records []models.AlertRecord
	index   map[string]int
}

// NewStore creates a store holding seed.
func NewStore(seed ...models.AlertRecord) *Store {
	s := &Store{index: make(map[string]int)}
	for _, r := range seed {
		s.Add(r)
	}
	return s
}

// Add appends a record.
func (s *Store) Add(r models.AlertRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.index[r.AlertID] = len(s.records)
	s.records = append(s.records, r)
	s.trimLocked()
}

// Resolve marks an active record resolved at t and returns the updated copy.
func (s *Store) Resolve(id string, t time.Time) (models.AlertRecord, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i, ok := s.index[id]
	if !ok || s.records[i].Status != models.AlertActive {
		return models.AlertRecord{}, false
	}
	resolved := t.UTC()
	s.records[i].Status = models.AlertResolved
	s.records[i].ResolvedAt = &resolved
	return s.records[i], true
}

// List returns records matching keep with ts >= since (zero since matches all), newest first.
func (s *Store) List(since time.Time, keep func(models.AlertRecord) bool) []models.AlertRecord {
	s.mu.RLock()
	out := make([]models.AlertRecord, 0, len(s.records))
	for _, r := range s.records {
		if !since.IsZero() && r.Timestamp.Before(since) {
			continue
		}
		if keep != nil && !keep(r) {
			continue
		}
		out = append(out, r)
	}
	s.mu.RUnlock()

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Timestamp.After(out[j].Timestamp)
	})
	return out
}

// ActiveCount returns the number of active records.
func (s *Store) ActiveCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for _, r := range s.records {
		if r.Status == models.AlertActive {
			n++
		}
	}
	return n
}

func (s *Store) trimLocked() {
	excess := len(s.records) - maxHistoryLen
	if excess <= 0 {
		return
	}
	kept := s.records[:0]
	for _, r := range s.records {
		if excess > 0 && r.Status == models.AlertResolved {
			excess--
			continue
		}
		kept = append(kept, r)
	}
	s.records = kept
	s.index = make(map[string]int, len(kept))
	for i, r := range kept {
		s.index[r.AlertID] = i
	}
}
