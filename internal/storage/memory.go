package storage

import (
	"context"
	"fmt"

	config "github.com/chainwatch/ingestor/configs"
	lru "github.com/hashicorp/golang-lru/v2"
)

// MemoryDeduplicator keeps the most recently committed hashes in process.
// Older hashes are evicted, so it only guards against short-range replays.
type MemoryDeduplicator struct {
	cache *lru.Cache[string, struct{}]
}

func NewMemoryDeduplicator(cfg *config.MemoryConfig) (*MemoryDeduplicator, error) {
	maxItems := 100_000
	if cfg != nil && cfg.MaxItems > 0 {
		maxItems = cfg.MaxItems
	}

	cache, err := lru.New[string, struct{}](maxItems)
	if err != nil {
		return nil, fmt.Errorf("failed to create LRU cache: %w", err)
	}
	return &MemoryDeduplicator{cache: cache}, nil
}

func (m *MemoryDeduplicator) Filter(_ context.Context, partition string, txHashes []string) (map[string]struct{}, error) {
	seen := make(map[string]struct{})
	for _, h := range txHashes {
		if m.cache.Contains(seenKey(partition, h)) {
			seen[h] = struct{}{}
		}
	}
	return seen, nil
}

func (m *MemoryDeduplicator) Mark(_ context.Context, partition string, txHashes []string) error {
	for _, h := range txHashes {
		m.cache.Add(seenKey(partition, h), struct{}{})
	}
	return nil
}

func (m *MemoryDeduplicator) Close() error {
	m.cache.Purge()
	return nil
}
