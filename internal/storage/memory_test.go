package storage

import (
	"context"
	"testing"

	config "github.com/chainwatch/ingestor/configs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryDeduplicator(t *testing.T) {
	d, err := NewMemoryDeduplicator(&config.MemoryConfig{MaxItems: 2})
	require.NoError(t, err)
	defer d.Close()
	ctx := context.Background()

	require.NoError(t, d.Mark(ctx, "mainnet:c:evm", []string{"0x01", "0x02"}))

	seen, err := d.Filter(ctx, "mainnet:c:evm", []string{"0x01", "0x03"})
	require.NoError(t, err)
	assert.Equal(t, map[string]struct{}{"0x01": {}}, seen)

	// hashes are scoped per partition
	seen, err = d.Filter(ctx, "fuji:c:evm", []string{"0x01"})
	require.NoError(t, err)
	assert.Empty(t, seen)

	// oldest entry is evicted once the cache is full
	require.NoError(t, d.Mark(ctx, "mainnet:c:evm", []string{"0x03"}))
	seen, err = d.Filter(ctx, "mainnet:c:evm", []string{"0x01", "0x02", "0x03"})
	require.NoError(t, err)
	assert.Len(t, seen, 2)
	assert.NotContains(t, seen, "0x01")
}
