package storage

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/chainwatch/ingestor/internal/columnar"
	"github.com/chainwatch/ingestor/internal/common"
	"github.com/chainwatch/ingestor/internal/metrics"
	"github.com/rs/zerolog/log"
)

// BatchArchiver writes each flushed batch as one parquet file under the
// partition's Hive-style prefix. File names are derived from the content so
// a retried flush overwrites nothing and uploads nothing new.
type BatchArchiver struct {
	store     IObjectStore
	formatter *columnar.ParquetFormatter
	prefix    string
}

func NewBatchArchiver(store IObjectStore, prefix string, compression string) *BatchArchiver {
	return &BatchArchiver{
		store:     store,
		formatter: &columnar.ParquetFormatter{Compression: compression},
		prefix:    prefix,
	}
}

// Archive uploads records and returns the batch metadata with the storage
// fields filled in.
func (a *BatchArchiver) Archive(ctx context.Context, partition common.PartitionConfig, records []columnar.TransactionRecord) (columnar.BatchMetadata, error) {
	meta := columnar.NewBatchMetadata(partition, records)
	if len(records) == 0 {
		return meta, nil
	}

	data, err := a.formatter.Format(records)
	if err != nil {
		return meta, fmt.Errorf("failed to format batch: %w", err)
	}
	checksum := columnar.Checksum(data)
	key := BatchKey(a.prefix, meta, checksum, a.formatter.FileExtension())

	meta.FilePath = a.store.URI(key)
	meta.FileSize = int64(len(data))
	meta.Checksum = checksum

	exists, err := a.store.Exists(ctx, key)
	if err != nil {
		metrics.UploadErrors.Inc()
		return meta, err
	}
	if exists {
		log.Debug().Str("key", key).Msg("Batch file already uploaded, skipping")
		return meta, nil
	}

	err = a.store.PutObject(ctx, key, data, a.formatter.ContentType(), map[string]string{
		"network":   partition.Network,
		"subnet":    partition.Subnet,
		"vm_type":   partition.VMType,
		"min_block": blockLabel(meta.MinBlock),
		"max_block": blockLabel(meta.MaxBlock),
		"tx_count":  strconv.Itoa(meta.TxCount),
		"timestamp": meta.MinBlockTime.Format(time.RFC3339),
		"checksum":  checksum,
		"file_size": strconv.Itoa(len(data)),
	})
	if err != nil {
		metrics.UploadErrors.Inc()
		return meta, err
	}
	metrics.UploadedBytes.Add(float64(len(data)))

	log.Info().
		Str("partition", partition.Key()).
		Str("min_block", blockLabel(meta.MinBlock)).
		Str("max_block", blockLabel(meta.MaxBlock)).
		Int("tx_count", meta.TxCount).
		Int("file_size_kb", len(data)/1024).
		Str("key", key).
		Msg("Successfully uploaded batch to object storage")
	return meta, nil
}

// BatchKey builds "<prefix>/network=<n>/subnet=<s>/vm_type=<v>/txs_<min>_<max>_<digest><ext>".
func BatchKey(prefix string, meta columnar.BatchMetadata, checksum string, ext string) string {
	digest := checksum
	if len(digest) > 16 {
		digest = digest[:16]
	}
	return fmt.Sprintf("%s/txs_%s_%s_%s%s",
		meta.Partition.HivePath(prefix),
		blockLabel(meta.MinBlock),
		blockLabel(meta.MaxBlock),
		digest,
		ext,
	)
}

func blockLabel(n *uint64) string {
	if n == nil {
		return "na"
	}
	return strconv.FormatUint(*n, 10)
}
