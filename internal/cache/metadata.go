package cache

import (
	"fmt"
	"sync"

	"github.com/dgraph-io/ristretto/v2"

	"github.com/veranemoloko/bookvault/internal/domain"
)

// MetadataCache keeps parsed info.json snapshots keyed by work id so chapter
// reads do not re-parse the metadata file every time.
//
// Every Invalidate bumps a per-work generation. A reader takes the generation
// before reading info.json and passes it to Store, which drops the snapshot
// if the work was invalidated in between.
type MetadataCache struct {
	cache *ristretto.Cache[string, *domain.Work]

	mu          sync.Mutex
	generations map[string]uint64
}

// NewMetadataCache creates a cache holding up to maxEntries works.
func NewMetadataCache(maxEntries int64) (*MetadataCache, error) {
	if maxEntries <= 0 {
		maxEntries = 1
	}
	c, err := ristretto.NewCache(&ristretto.Config[string, *domain.Work]{
		NumCounters:        maxEntries * 10,
		MaxCost:            maxEntries,
		BufferItems:        64,
		IgnoreInternalCost: true,
	})
	if err != nil {
		return nil, fmt.Errorf("create metadata cache: %w", err)
	}
	return &MetadataCache{cache: c, generations: make(map[string]uint64)}, nil
}

// Get returns a copy of the cached work.
func (m *MetadataCache) Get(workID string) (*domain.Work, bool) {
	w, ok := m.cache.Get(workID)
	if !ok || w == nil {
		return nil, false
	}
	return w.Clone(), true
}

// Generation returns the current generation of workID.
func (m *MetadataCache) Generation(workID string) uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.generations[workID]
}

// Store saves a copy of work read at generation gen. It reports false and
// stores nothing when workID has been invalidated since. Admission is best
// effort.
func (m *MetadataCache) Store(workID string, gen uint64, work *domain.Work) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.generations[workID] != gen {
		return false
	}
	m.cache.Set(workID, work.Clone(), 1)
	m.cache.Wait()
	return true
}

// Invalidate drops the entry for workID and starts a new generation.
func (m *MetadataCache) Invalidate(workID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.generations[workID]++
	m.cache.Del(workID)
}

// Close stops the cache's background goroutines.
func (m *MetadataCache) Close() {
	m.cache.Close()
}
