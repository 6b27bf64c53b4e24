package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	config "github.com/chainwatch/ingestor/configs"
	"github.com/chainwatch/ingestor/internal/columnar"
	"github.com/chainwatch/ingestor/internal/common"
	_ "github.com/lib/pq"
	"github.com/rs/zerolog/log"
)

// PostgresLedger records batches in an external Postgres so that consumers
// without access to the lake can follow ingestion progress.
type PostgresLedger struct {
	db  *sql.DB
	cfg *config.PostgresConfig
}

const createPostgresBatchesSQL = `CREATE TABLE IF NOT EXISTS ingest_batches (
	id BIGSERIAL PRIMARY KEY,
	network TEXT NOT NULL,
	subnet TEXT NOT NULL,
	vm_type TEXT NOT NULL,
	min_block NUMERIC,
	max_block NUMERIC,
	min_block_time TIMESTAMPTZ,
	max_block_time TIMESTAMPTZ,
	tx_count BIGINT NOT NULL,
	file_path TEXT,
	file_size BIGINT,
	checksum TEXT,
	created_at TIMESTAMPTZ NOT NULL
)`

const createPostgresBatchesIndexSQL = `CREATE INDEX IF NOT EXISTS ingest_batches_partition_idx
	ON ingest_batches (network, subnet, vm_type, created_at DESC)`

func NewPostgresLedger(cfg *config.PostgresConfig) (*PostgresLedger, error) {
	connStr := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s",
		cfg.Host, cfg.Port, cfg.Username, cfg.Password, cfg.Database)

	// Default to "require" for security if SSL mode not specified
	sslMode := cfg.SSLMode
	if sslMode == "" {
		sslMode = "require"
		log.Info().Msg("No SSL mode specified, defaulting to 'require' for secure connection")
	}
	connStr += fmt.Sprintf(" sslmode=%s", sslMode)

	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to postgres: %w", err)
	}

	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping postgres: %w", err)
	}
	for _, stmt := range []string{createPostgresBatchesSQL, createPostgresBatchesIndexSQL} {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to create batch ledger table: %w", err)
		}
	}

	log.Info().Str("host", cfg.Host).Str("database", cfg.Database).Msg("Postgres batch ledger ready")
	return &PostgresLedger{db: db, cfg: cfg}, nil
}

func (p *PostgresLedger) RecordBatch(ctx context.Context, meta columnar.BatchMetadata) error {
	query := `INSERT INTO ingest_batches (network, subnet, vm_type, min_block, max_block, min_block_time, max_block_time,
		tx_count, file_path, file_size, checksum, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`

	args := ledgerArgs(meta)
	// lib/pq does not bind uint64
	for _, i := range []int{3, 4} {
		if v, ok := args[i].(uint64); ok {
			args[i] = fmt.Sprintf("%d", v)
		}
	}
	if _, err := p.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to record batch for %s: %w", meta.Partition.Key(), err)
	}
	return nil
}

func (p *PostgresLedger) ListBatches(ctx context.Context, partition common.PartitionConfig, limit int) ([]columnar.BatchMetadata, error) {
	if limit <= 0 {
		limit = 100
	}
	query := `SELECT network, subnet, vm_type, min_block::BIGINT, max_block::BIGINT, min_block_time, max_block_time,
		tx_count, file_path, file_size, checksum, created_at FROM ingest_batches
		WHERE network = $1 AND subnet = $2 AND vm_type = $3 ORDER BY created_at DESC LIMIT $4`

	rows, err := p.db.QueryContext(ctx, query, partition.Network, partition.Subnet, partition.VMType, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list batches for %s: %w", partition.Key(), err)
	}
	return scanBatches(rows)
}

func (p *PostgresLedger) Close() error {
	return p.db.Close()
}
