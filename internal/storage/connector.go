package storage

import (
	"context"

	"github.com/chainwatch/ingestor/internal/columnar"
	"github.com/chainwatch/ingestor/internal/common"
)

// IObjectStore holds immutable batch files.
type IObjectStore interface {
	PutObject(ctx context.Context, key string, data []byte, contentType string, metadata map[string]string) error
	Exists(ctx context.Context, key string) (bool, error)
	// URI returns the fully qualified location of key, e.g. s3://bucket/key.
	URI(key string) string
}

// IBatchLedger is the catalog of committed batches.
type IBatchLedger interface {
	RecordBatch(ctx context.Context, meta columnar.BatchMetadata) error
	ListBatches(ctx context.Context, partition common.PartitionConfig, limit int) ([]columnar.BatchMetadata, error)
	Close() error
}

// IDeduplicator remembers transaction hashes that were already committed.
type IDeduplicator interface {
	// Filter returns the subset of hashes that were already marked.
	Filter(ctx context.Context, partition string, txHashes []string) (map[string]struct{}, error)
	Mark(ctx context.Context, partition string, txHashes []string) error
	Close() error
}

// JournalEntry is one buffered transaction together with its position in the
// partition buffer.
type JournalEntry struct {
	Seq    uint64
	Record columnar.TransactionRecord
}

// IBufferJournal persists partition buffers so that transactions accepted but
// not yet flushed survive a crash.
type IBufferJournal interface {
	Append(partition string, entries []JournalEntry) error
	// Remove deletes the given sequence numbers; unknown ones are ignored.
	Remove(partition string, seqs []uint64) error
	Replay(fn func(partition string, entry JournalEntry) error) error
	Close() error
}
