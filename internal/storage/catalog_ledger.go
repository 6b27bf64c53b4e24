package storage

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/chainwatch/ingestor/internal/columnar"
	"github.com/chainwatch/ingestor/internal/common"
	"github.com/chainwatch/ingestor/internal/lakedb"
)

// CatalogLedger records batches in the ingest_batches table of the attached
// lake catalog.
type CatalogLedger struct {
	conns lakedb.IConnectionManager
	table string
}

func NewCatalogLedger(conns lakedb.IConnectionManager) *CatalogLedger {
	return &CatalogLedger{
		conns: conns,
		table: lakedb.QualifiedTable(conns.Catalog(), lakedb.BatchesTable),
	}
}

func (l *CatalogLedger) RecordBatch(ctx context.Context, meta columnar.BatchMetadata) error {
	query := fmt.Sprintf(`INSERT INTO %s (network, subnet, vm_type, min_block, max_block, min_block_time, max_block_time,
		tx_count, file_path, file_size, checksum, created_at) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`, l.table)
	_, err := l.conns.ExecuteWrite(ctx, query, ledgerArgs(meta)...)
	if err != nil {
		return fmt.Errorf("failed to record batch for %s: %w", meta.Partition.Key(), err)
	}
	return nil
}

func (l *CatalogLedger) ListBatches(ctx context.Context, partition common.PartitionConfig, limit int) ([]columnar.BatchMetadata, error) {
	if limit <= 0 {
		limit = 100
	}
	query := fmt.Sprintf(`SELECT network, subnet, vm_type, min_block, max_block, min_block_time, max_block_time,
		tx_count, file_path, file_size, checksum, created_at FROM %s
		WHERE network = ? AND subnet = ? AND vm_type = ? ORDER BY created_at DESC LIMIT ?`, l.table)

	var out []columnar.BatchMetadata
	err := l.conns.ExecuteRead(ctx, func(conn *sql.Conn) error {
		rows, err := conn.QueryContext(ctx, query, partition.Network, partition.Subnet, partition.VMType, limit)
		if err != nil {
			return err
		}
		out, err = scanBatches(rows)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list batches for %s: %w", partition.Key(), err)
	}
	return out, nil
}

// Close is a no-op, the connection manager is owned by the caller.
func (l *CatalogLedger) Close() error {
	return nil
}

func ledgerArgs(meta columnar.BatchMetadata) []any {
	var minBlock, maxBlock any
	if meta.MinBlock != nil {
		minBlock = *meta.MinBlock
	}
	if meta.MaxBlock != nil {
		maxBlock = *meta.MaxBlock
	}
	return []any{
		meta.Partition.Network,
		meta.Partition.Subnet,
		meta.Partition.VMType,
		minBlock,
		maxBlock,
		meta.MinBlockTime,
		meta.MaxBlockTime,
		int64(meta.TxCount),
		meta.FilePath,
		meta.FileSize,
		meta.Checksum,
		meta.CreatedAt,
	}
}

func scanBatches(rows *sql.Rows) ([]columnar.BatchMetadata, error) {
	defer rows.Close()

	var out []columnar.BatchMetadata
	for rows.Next() {
		var (
			m                  columnar.BatchMetadata
			minBlock, maxBlock sql.NullInt64
			filePath, checksum sql.NullString
			fileSize           sql.NullInt64
			txCount            int64
		)
		err := rows.Scan(&m.Partition.Network, &m.Partition.Subnet, &m.Partition.VMType,
			&minBlock, &maxBlock, &m.MinBlockTime, &m.MaxBlockTime,
			&txCount, &filePath, &fileSize, &checksum, &m.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan batch row: %w", err)
		}
		if minBlock.Valid {
			v := uint64(minBlock.Int64)
			m.MinBlock = &v
		}
		if maxBlock.Valid {
			v := uint64(maxBlock.Int64)
			m.MaxBlock = &v
		}
		m.TxCount = int(txCount)
		m.FilePath = filePath.String
		m.FileSize = fileSize.Int64
		m.Checksum = checksum.String
		out = append(out, m)
	}
	return out, rows.Err()
}
