package orchestrator

import (
	"context"
	"fmt"

	config "github.com/chainwatch/ingestor/configs"
	"github.com/chainwatch/ingestor/internal/lakedb"
	"github.com/chainwatch/ingestor/internal/storage"
)

func newLake(cfg *config.Config) (*lakedb.ConnectionManager, error) {
	catalog, err := lakedb.NewCatalog(cfg.Lake, cfg.S3)
	if err != nil {
		return nil, err
	}
	return lakedb.NewConnectionManager(lakedb.Options{
		Path:                cfg.Lake.Path,
		Readers:             cfg.Lake.Readers,
		CheckpointThreshold: cfg.Lake.CheckpointThreshold,
		MemoryLimit:         cfg.Lake.MemoryLimit,
		Catalog:             catalog,
	}), nil
}

func newArchiver(ctx context.Context, cfg *config.S3Config) (*storage.BatchArchiver, error) {
	if !cfg.Enabled {
		return nil, nil
	}
	backend, err := storage.NewS3Backend(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return storage.NewBatchArchiver(backend, cfg.Prefix, cfg.Compression), nil
}

// newDeduplicator falls back to an in-process set when no kind is configured
// and the catalog cannot reject duplicate keys itself. "none" disables it.
func newDeduplicator(cfg *config.DedupConfig, catalog lakedb.Catalog) (storage.IDeduplicator, error) {
	kind := cfg.Kind
	if kind == "" && !lakedb.EnforcesUniqueness(catalog) {
		kind = "memory"
	}
	switch kind {
	case "", "none":
		return nil, nil
	case "memory":
		d, err := storage.NewMemoryDeduplicator(cfg.Memory)
		if err != nil {
			return nil, err
		}
		return d, nil
	case "redis":
		if cfg.Redis == nil {
			return nil, fmt.Errorf("dedup kind redis requires redis settings")
		}
		d, err := storage.NewRedisDeduplicator(cfg.Redis)
		if err != nil {
			return nil, err
		}
		return d, nil
	default:
		return nil, fmt.Errorf("unknown dedup kind %q", kind)
	}
}

func newJournal(cfg *config.JournalConfig) (storage.IBufferJournal, error) {
	switch cfg.Kind {
	case "", "none":
		return nil, nil
	case "badger":
		j, err := storage.NewBadgerJournal(cfg.Path)
		if err != nil {
			return nil, err
		}
		return j, nil
	case "pebble":
		j, err := storage.NewPebbleJournal(cfg.Path)
		if err != nil {
			return nil, err
		}
		return j, nil
	default:
		return nil, fmt.Errorf("unknown journal kind %q", cfg.Kind)
	}
}

func newLedger(cfg *config.LedgerConfig, lake lakedb.IConnectionManager) (storage.IBatchLedger, error) {
	switch cfg.Kind {
	case "", "none":
		return nil, nil
	case "catalog":
		return storage.NewCatalogLedger(lake), nil
	case "postgres":
		if cfg.Postgres == nil {
			return nil, fmt.Errorf("ledger kind postgres requires postgres settings")
		}
		l, err := storage.NewPostgresLedger(cfg.Postgres)
		if err != nil {
			return nil, err
		}
		return l, nil
	default:
		return nil, fmt.Errorf("unknown ledger kind %q", cfg.Kind)
	}
}
