package store

import (
	"errors"
	"sync"
	"time"

	"github.com/i474232898/weather-events/internal/weather"
)

var (
	// ErrNotFound is returned when no data is available for a given location.
	ErrNotFound = errors.New("no weather data for location")
)

// MemoryStore is a concurrency-safe in-memory history of merged snapshots,
// keyed by location.
type MemoryStore struct {
	mu   sync.RWMutex
	data map[string][]weather.StoredSnapshot

	maxHistory int           // per location; <= 0 is unlimited
	maxAge     time.Duration // <= 0 keeps everything
	now        func() time.Time
}

// NewMemoryStore creates a new MemoryStore with optional limits.
func NewMemoryStore(maxHistory int, maxAge time.Duration) *MemoryStore {
	return &MemoryStore{
		data:       make(map[string][]weather.StoredSnapshot),
		maxHistory: maxHistory,
		maxAge:     maxAge,
		now:        time.Now,
	}
}

// SaveSnapshot appends a snapshot for a location and enforces retention.
// The values map is copied so later merges cannot alias stored state.
func (s *MemoryStore) SaveSnapshot(loc weather.Location, snapshot weather.StoredSnapshot) {
	key := loc.Key()
	snapshot.Values = snapshot.Values.Clone()

	s.mu.Lock()
	defer s.mu.Unlock()

	history := append(s.data[key], snapshot)

	if s.maxHistory > 0 && len(history) > s.maxHistory {
		history = history[len(history)-s.maxHistory:]
	}

	if s.maxAge > 0 {
		cutoff := s.now().Add(-s.maxAge)
		i := 0
		for i < len(history)-1 && history[i].Timestamp.Before(cutoff) {
			i++
		}
		history = history[i:]
	}

	s.data[key] = history
}

// GetLatest returns the most recent snapshot for a location.
func (s *MemoryStore) GetLatest(loc weather.Location) (weather.StoredSnapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	history := s.data[loc.Key()]
	if len(history) == 0 {
		return weather.StoredSnapshot{}, ErrNotFound
	}
	latest := history[len(history)-1]
	latest.Values = latest.Values.Clone()
	return latest, nil
}

// GetRange returns all snapshots for a location between from and to (inclusive).
func (s *MemoryStore) GetRange(loc weather.Location, from, to time.Time) ([]weather.StoredSnapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []weather.StoredSnapshot
	for _, snap := range s.data[loc.Key()] {
		if snap.Timestamp.Before(from) || snap.Timestamp.After(to) {
			continue
		}
		snap.Values = snap.Values.Clone()
		result = append(result, snap)
	}

	if len(result) == 0 {
		return nil, ErrNotFound
	}
	return result, nil
}
