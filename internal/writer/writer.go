package writer

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/chainwatch/ingestor/internal/columnar"
	"github.com/chainwatch/ingestor/internal/common"
	"github.com/chainwatch/ingestor/internal/lakedb"
	"github.com/chainwatch/ingestor/internal/metrics"
	"github.com/chainwatch/ingestor/internal/storage"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

var ErrWriterClosed = errors.New("writer is closed")

const (
	defaultBatchSize        = 1000
	defaultFlushInterval    = 5 * time.Second
	defaultShutdownTimeout  = 30 * time.Second
	defaultFlushConcurrency = 4
)

type Options struct {
	BatchSize        int
	FlushInterval    time.Duration
	ShutdownTimeout  time.Duration
	FlushConcurrency int
}

// Archiver uploads a batch before it is committed to the lake.
type Archiver interface {
	Archive(ctx context.Context, partition common.PartitionConfig, records []columnar.TransactionRecord) (columnar.BatchMetadata, error)
}

type Option func(*Writer)

func WithArchiver(a Archiver) Option {
	return func(w *Writer) { w.archiver = a }
}

func WithLedger(l storage.IBatchLedger) Option {
	return func(w *Writer) { w.ledger = l }
}

func WithDeduplicator(d storage.IDeduplicator) Option {
	return func(w *Writer) { w.dedup = d }
}

func WithJournal(j storage.IBufferJournal) Option {
	return func(w *Writer) { w.journal = j }
}

type IWriter interface {
	WriteTransaction(ctx context.Context, tx common.Transaction, partition common.PartitionConfig) error
	FlushPartition(ctx context.Context, key string) error
	FlushAll(ctx context.Context) error
	Stats() []PartitionStats
	Close(ctx context.Context) error
}

// Writer buffers transactions per partition and commits each buffer as one
// database transaction when it reaches BatchSize or when the periodic flush
// fires.
//
// mapMu only guards the partitions map. Each partition has a buffer lock,
// held for in-memory work only, and a flush lock that orders its flushes.
type Writer struct {
	opts      Options
	conns     lakedb.IConnectionManager
	insertSQL string

	archiver Archiver
	ledger   storage.IBatchLedger
	dedup    storage.IDeduplicator
	journal  storage.IBufferJournal

	mapMu      sync.RWMutex
	partitions map[string]*partition

	closeMu sync.RWMutex
	closed  bool

	ctx       context.Context
	cancel    context.CancelFunc
	stopCh    chan struct{}
	wg        sync.WaitGroup
	closeOnce sync.Once
	closeErr  error
}

// New creates a writer, restores buffered transactions from the journal if
// one is configured and starts the periodic flush.
func New(conns lakedb.IConnectionManager, opts Options, options ...Option) (*Writer, error) {
	if opts.BatchSize <= 0 {
		opts.BatchSize = defaultBatchSize
	}
	if opts.FlushInterval <= 0 {
		opts.FlushInterval = defaultFlushInterval
	}
	if opts.ShutdownTimeout <= 0 {
		opts.ShutdownTimeout = defaultShutdownTimeout
	}
	if opts.FlushConcurrency <= 0 {
		opts.FlushConcurrency = defaultFlushConcurrency
	}

	ctx, cancel := context.WithCancel(context.Background())
	w := &Writer{
		opts:       opts,
		conns:      conns,
		insertSQL:  insertStatement(conns.Catalog()),
		partitions: make(map[string]*partition),
		ctx:        ctx,
		cancel:     cancel,
		stopCh:     make(chan struct{}),
	}
	for _, o := range options {
		o(w)
	}

	if w.journal != nil {
		if err := w.restore(); err != nil {
			cancel()
			return nil, err
		}
	}

	w.wg.Add(1)
	go w.periodicFlush()

	log.Info().
		Int("batch_size", opts.BatchSize).
		Dur("flush_interval", opts.FlushInterval).
		Bool("archive", w.archiver != nil).
		Bool("ledger", w.ledger != nil).
		Bool("dedup", w.dedup != nil).
		Bool("journal", w.journal != nil).
		Msg("Partitioned batch writer started")
	return w, nil
}

// insertStatement skips rows whose key is already committed when the catalog
// can enforce it. Elsewhere the deduplicator is the only guard.
func insertStatement(c lakedb.Catalog) string {
	cols := columnar.ColumnNames()
	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(cols)), ", ")
	stmt := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)", lakedb.QualifiedTable(c, lakedb.TransactionsTable), strings.Join(cols, ", "), placeholders)
	if lakedb.EnforcesUniqueness(c) {
		stmt += " ON CONFLICT DO NOTHING"
	}
	return stmt
}

func (w *Writer) partition(p common.PartitionConfig) *partition {
	key := p.Key()
	w.mapMu.RLock()
	part, ok := w.partitions[key]
	w.mapMu.RUnlock()
	if ok {
		return part
	}

	w.mapMu.Lock()
	defer w.mapMu.Unlock()
	if part, ok = w.partitions[key]; ok {
		return part
	}
	part = newPartition(p)
	w.partitions[key] = part
	return part
}

func (w *Writer) lookup(key string) *partition {
	w.mapMu.RLock()
	defer w.mapMu.RUnlock()
	return w.partitions[key]
}

// WriteTransaction buffers tx in its partition. When the buffer reaches the
// batch size the partition is flushed before returning and the flush error, if
// any, is returned.
func (w *Writer) WriteTransaction(ctx context.Context, tx common.Transaction, p common.PartitionConfig) error {
	if err := p.Validate(); err != nil {
		return err
	}

	blockTime := time.Now().UTC()
	if tx.BlockTimestamp > 0 {
		blockTime = time.Unix(int64(tx.BlockTimestamp), 0).UTC()
	}
	record := columnar.FromChainTransaction(tx, p.Network, p.Subnet, p.VMType, blockTime)
	key := p.Key()
	part := w.partition(p)

	for {
		// a flush that completes after the lookup may have committed the hash
		epoch := anyEpoch
		if w.dedup != nil {
			epoch = part.epoch()
			if w.committed(ctx, key, record.TxHash) {
				metrics.DuplicateTransactions.WithLabelValues(key).Inc()
				return nil
			}
		}

		w.closeMu.RLock()
		if w.closed {
			w.closeMu.RUnlock()
			return ErrWriterClosed
		}
		seq, res := part.reserve(record, epoch)
		switch res {
		case reserveStale:
			w.closeMu.RUnlock()
			continue
		case reserveDuplicate:
			w.closeMu.RUnlock()
			metrics.DuplicateTransactions.WithLabelValues(key).Inc()
			return nil
		}
		e := bufferedEntry{Seq: seq, Record: record}

		if w.journal == nil {
			size := part.push(e)
			w.closeMu.RUnlock()
			return w.sizeReached(ctx, key, size)
		}
		w.closeMu.RUnlock()

		// pushed after a concurrent Close, the entry is left to journal replay
		if err := w.journal.Append(key, []storage.JournalEntry{e}); err != nil {
			part.release(record.TxHash)
			metrics.JournalErrors.WithLabelValues(key).Inc()
			log.Error().Err(err).Str("partition", key).Str("tx_hash", record.TxHash).Msg("Failed to journal buffered transaction")
			return fmt.Errorf("journal %s: %w", record.TxHash, err)
		}
		return w.sizeReached(ctx, key, part.push(e))
	}
}

func (w *Writer) committed(ctx context.Context, key string, hash string) bool {
	seen, err := w.dedup.Filter(ctx, key, []string{hash})
	if err != nil {
		log.Warn().Err(err).Str("partition", key).Msg("Dedup lookup failed, accepting transaction")
		return false
	}
	_, ok := seen[hash]
	return ok
}

func (w *Writer) sizeReached(ctx context.Context, key string, size int) error {
	metrics.BufferedTransactions.WithLabelValues(key).Set(float64(size))
	if size >= w.opts.BatchSize {
		return w.FlushPartition(ctx, key)
	}
	return nil
}

// FlushPartition commits everything currently buffered for key. Records that
// arrive while the flush runs stay buffered for the next one. On failure the
// buffer is left untouched.
func (w *Writer) FlushPartition(ctx context.Context, key string) error {
	part := w.lookup(key)
	if part == nil {
		return nil
	}

	part.flushMu.Lock()
	defer part.flushMu.Unlock()

	batch := part.snapshot()
	if len(batch) == 0 {
		return nil
	}

	start := time.Now()
	meta, err := w.commit(ctx, part.cfg, batch)
	if err != nil {
		part.failed(err)
		metrics.FlushErrors.WithLabelValues(key).Inc()
		log.Error().Err(err).Str("partition", key).Int("tx_count", len(batch)).Msg("Failed to flush partition")
		return fmt.Errorf("flush %s: %w", key, err)
	}

	// marked before the hashes leave the pending set so a concurrent write
	// always sees one of the two
	if w.dedup != nil {
		hashes := make([]string, len(batch))
		for i := range batch {
			hashes[i] = batch[i].Record.TxHash
		}
		if err := w.dedup.Mark(ctx, key, hashes); err != nil {
			log.Warn().Err(err).Str("partition", key).Msg("Failed to mark committed transactions")
		}
	}

	seqs := part.remove(len(batch))
	remaining := part.size()
	duration := time.Since(start)

	metrics.FlushedBatches.WithLabelValues(key).Inc()
	metrics.FlushedTransactions.WithLabelValues(key).Add(float64(len(batch)))
	metrics.FlushDuration.WithLabelValues(key).Observe(duration.Seconds())
	metrics.BufferedTransactions.WithLabelValues(key).Set(float64(remaining))

	w.afterCommit(ctx, key, seqs, meta)

	log.Info().
		Str("partition", key).
		Int("tx_count", len(batch)).
		Int("remaining", remaining).
		Dur("duration", duration).
		Msg("Flushed partition")
	return nil
}

func (w *Writer) commit(ctx context.Context, p common.PartitionConfig, batch []bufferedEntry) (columnar.BatchMetadata, error) {
	records := make([]columnar.TransactionRecord, len(batch))
	for i := range batch {
		records[i] = batch[i].Record
	}

	var meta columnar.BatchMetadata
	if w.archiver != nil {
		var err error
		meta, err = w.archiver.Archive(ctx, p, records)
		if err != nil {
			return meta, fmt.Errorf("archive batch: %w", err)
		}
	} else {
		meta = columnar.NewBatchMetadata(p, records)
	}

	rec := columnar.EncodeColumnar(records)
	defer rec.Release()

	err := w.conns.ExecuteWriteWithTx(ctx, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, w.insertSQL)
		if err != nil {
			return fmt.Errorf("prepare insert: %w", err)
		}
		defer stmt.Close()

		for row := 0; row < int(rec.NumRows()); row++ {
			args, err := columnar.RowArgs(rec, row)
			if err != nil {
				return err
			}
			if _, err := stmt.ExecContext(ctx, args...); err != nil {
				return fmt.Errorf("insert %s: %w", records[row].TxHash, err)
			}
		}
		return nil
	})
	return meta, err
}

// afterCommit runs the bookkeeping that must not undo a committed batch:
// failures are logged and counted only.
func (w *Writer) afterCommit(ctx context.Context, key string, seqs []uint64, meta columnar.BatchMetadata) {
	if w.journal != nil {
		if err := w.journal.Remove(key, seqs); err != nil {
			log.Error().Err(err).Str("partition", key).Msg("Failed to trim buffer journal")
		}
	}
	if w.ledger != nil {
		if err := w.ledger.RecordBatch(ctx, meta); err != nil {
			metrics.LedgerErrors.Inc()
			log.Error().Err(err).Str("partition", key).Msg("Failed to record batch metadata")
		}
	}
}

// FlushAll flushes every non-empty partition, at most FlushConcurrency at a
// time. All partitions are attempted; the errors are joined.
func (w *Writer) FlushAll(ctx context.Context) error {
	w.mapMu.RLock()
	keys := make([]string, 0, len(w.partitions))
	for key, part := range w.partitions {
		if part.size() > 0 {
			keys = append(keys, key)
		}
	}
	w.mapMu.RUnlock()

	var (
		g    errgroup.Group
		mu   sync.Mutex
		errs []error
	)
	g.SetLimit(w.opts.FlushConcurrency)
	for _, key := range keys {
		g.Go(func() error {
			if err := w.FlushPartition(ctx, key); err != nil {
				mu.Lock()
				errs = append(errs, err)
				mu.Unlock()
			}
			return nil
		})
	}
	_ = g.Wait()
	return errors.Join(errs...)
}

func (w *Writer) periodicFlush() {
	defer w.wg.Done()

	ticker := time.NewTicker(w.opts.FlushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if err := w.FlushAll(w.ctx); err != nil && w.ctx.Err() == nil {
				log.Warn().Err(err).Msg("Periodic flush finished with errors")
			}
		case <-w.stopCh:
			return
		}
	}
}

// Close stops the periodic flush, waits for it to return and then flushes all
// partitions within ShutdownTimeout. Transactions that cannot be flushed stay
// in the journal, if any.
func (w *Writer) Close(ctx context.Context) error {
	w.closeOnce.Do(func() {
		w.closeMu.Lock()
		w.closed = true
		w.closeMu.Unlock()

		close(w.stopCh)
		w.cancel()
		w.wg.Wait()

		flushCtx, cancel := context.WithTimeout(ctx, w.opts.ShutdownTimeout)
		defer cancel()

		w.closeErr = w.FlushAll(flushCtx)
		if w.closeErr != nil {
			log.Error().Err(w.closeErr).Msg("Final flush failed, buffered transactions were not persisted")
		} else {
			log.Info().Msg("Partitioned batch writer closed")
		}
	})
	return w.closeErr
}

// restore loads journaled entries back into their partition buffers.
func (w *Writer) restore() error {
	count := 0
	err := w.journal.Replay(func(key string, e storage.JournalEntry) error {
		p, err := common.ParsePartitionKey(key)
		if err != nil {
			log.Warn().Err(err).Msg("Dropping journal entry with unknown partition")
			return nil
		}
		if w.partition(p).restore(e.Seq, e.Record) {
			count++
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("replay buffer journal: %w", err)
	}
	if count > 0 {
		metrics.JournalReplayed.Add(float64(count))
		log.Info().Int("tx_count", count).Msg("Restored buffered transactions from journal")
	}
	return nil
}

type PartitionStats struct {
	Partition common.PartitionConfig `json:"partition"`
	Buffered  int                    `json:"buffered"`
	LastFlush *time.Time             `json:"last_flush,omitempty"`
	LastError string                 `json:"last_error,omitempty"`
}

// Stats returns a snapshot of every known partition ordered by key.
func (w *Writer) Stats() []PartitionStats {
	w.mapMu.RLock()
	parts := make([]*partition, 0, len(w.partitions))
	for _, p := range w.partitions {
		parts = append(parts, p)
	}
	w.mapMu.RUnlock()

	out := make([]PartitionStats, 0, len(parts))
	for _, p := range parts {
		out = append(out, p.stats())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Partition.Key() < out[j].Partition.Key() })
	return out
}
