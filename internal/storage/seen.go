package storage

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/vlaradar/vlaradar/internal/cache"
	"github.com/vlaradar/vlaradar/internal/logging"
)

const (
	seenCacheKey = "seen_index"
	seenCacheTTL = 90 * 24 * time.Hour
)

// SeenIndex is the cumulative set of item identity keys observed across
// prior runs, used to suppress already-announced items from a snapshot's
// new-items view. The cache backend keeps it warm between runs; Rebuild
// restores it from stored snapshots when the cache is cold.
type SeenIndex struct {
	mu     sync.RWMutex
	keys   map[string]struct{}
	cache  cache.Cache
	logger *logging.Logger
}

func NewSeenIndex(c cache.Cache, logger *logging.Logger) *SeenIndex {
	s := &SeenIndex{
		keys:   make(map[string]struct{}),
		cache:  c,
		logger: logger,
	}
	s.loadFromCache()
	return s
}

func (s *SeenIndex) loadFromCache() {
	if s.cache == nil {
		return
	}

	cached, ok := s.cache.Get(seenCacheKey)
	if !ok || cached == nil {
		return
	}

	// Redis round-trips []string as []interface{}; re-marshal to recover.
	keys, ok := cached.([]string)
	if !ok {
		raw, err := json.Marshal(cached)
		if err != nil {
			return
		}
		if err := json.Unmarshal(raw, &keys); err != nil {
			return
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, k := range keys {
		s.keys[k] = struct{}{}
	}
}

// Rebuild merges the identity keys of every stored snapshot into the
// index. Unreadable records are skipped by the store.
func (s *SeenIndex) Rebuild(ctx context.Context, store *Store) error {
	snapshots, err := store.LoadRange(ctx, "", "")
	if err != nil {
		return err
	}

	keys := make([]string, 0)
	for _, snap := range snapshots {
		for _, item := range snap.Items {
			keys = append(keys, item.IdentityKey())
		}
	}
	s.Add(keys)

	s.logger.Debug("Rebuilt seen index", logging.WithFields(map[string]interface{}{
		"snapshots": len(snapshots),
		"keys":      s.Len(),
	}))
	return nil
}

// Seen reports whether an identity key was observed in a prior run.
func (s *SeenIndex) Seen(key string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.keys[key]
	return ok
}

func (s *SeenIndex) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.keys)
}

// Add records identity keys and mirrors the full set into the cache.
func (s *SeenIndex) Add(keys []string) {
	if len(keys) == 0 {
		return
	}

	s.mu.Lock()
	for _, k := range keys {
		s.keys[k] = struct{}{}
	}
	all := make([]string, 0, len(s.keys))
	for k := range s.keys {
		all = append(all, k)
	}
	s.mu.Unlock()

	if s.cache != nil {
		s.cache.SetWithTTL(seenCacheKey, all, seenCacheTTL)
	}
}
