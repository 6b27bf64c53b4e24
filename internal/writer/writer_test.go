package writer

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/chainwatch/ingestor/internal/columnar"
	"github.com/chainwatch/ingestor/internal/common"
	"github.com/chainwatch/ingestor/internal/lakedb"
	"github.com/chainwatch/ingestor/internal/storage"
	"github.com/chainwatch/ingestor/test/mocks"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

var (
	mainnet = common.PartitionConfig{Network: "mainnet", Subnet: "c-chain", VMType: "evm"}
	fuji    = common.PartitionConfig{Network: "fuji", Subnet: "c-chain", VMType: "evm"}
)

func newTestLake(t *testing.T) *lakedb.ConnectionManager {
	t.Helper()
	m := lakedb.NewConnectionManager(lakedb.Options{
		Readers: 2,
		Catalog: &lakedb.LocalCatalog{CatalogName: "lake", SchemaName: "chain"},
	})
	require.NoError(t, m.Initialize(context.Background()))
	t.Cleanup(func() { _ = m.Close() })
	return m
}

func testTx(n int) common.Transaction {
	to := "0xf02c1c8e6114b1dbe8937a39260b5b0a374432bb"
	status := "0x1"
	return common.Transaction{
		Hash:             fmt.Sprintf("0x%064x", n),
		BlockHash:        "0x9fe3bc0a1e7a1e1e3b4f9a6c8f3b3d8c2d0d5f6a7b8c9d0e1f2a3b4c5d6e7f80",
		BlockNumber:      fmt.Sprintf("0x%x", 1000+n),
		TransactionIndex: "0x0",
		From:             "0xa7d9ddbe1f17865597fbd27ec712455208b6b76d",
		To:               &to,
		Value:            "0xde0b6b3a7640000",
		Gas:              "0x5208",
		GasPrice:         "0x5d21dba00",
		Nonce:            fmt.Sprintf("0x%x", n),
		Input:            "0x",
		Type:             "0x2",
		Status:           &status,
		BlockTimestamp:   1704164645,
	}
}

func countRows(t *testing.T, conns lakedb.IConnectionManager, p *common.PartitionConfig) int {
	t.Helper()
	query := "SELECT count(*) FROM " + lakedb.QualifiedTable(conns.Catalog(), lakedb.TransactionsTable)
	var args []any
	if p != nil {
		query += " WHERE network = ? AND subnet = ? AND vm_type = ?"
		args = []any{p.Network, p.Subnet, p.VMType}
	}
	var n int
	err := conns.ExecuteRead(context.Background(), func(conn *sql.Conn) error {
		return conn.QueryRowContext(context.Background(), query, args...).Scan(&n)
	})
	require.NoError(t, err)
	return n
}

func buffered(w *Writer, p common.PartitionConfig) int {
	for _, s := range w.Stats() {
		if s.Partition == p {
			return s.Buffered
		}
	}
	return 0
}

func newTestWriter(t *testing.T, conns lakedb.IConnectionManager, opts Options, options ...Option) *Writer {
	t.Helper()
	w, err := New(conns, opts, options...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = w.Close(context.Background()) })
	return w
}

func TestSizeTriggeredFlush(t *testing.T) {
	conns := newTestLake(t)
	w := newTestWriter(t, conns, Options{BatchSize: 5, FlushInterval: time.Hour})
	ctx := context.Background()

	for i := 0; i < 6; i++ {
		require.NoError(t, w.WriteTransaction(ctx, testTx(i), mainnet))
	}

	assert.Equal(t, 5, countRows(t, conns, nil))
	assert.Equal(t, 1, buffered(w, mainnet))

	stats := w.Stats()
	require.Len(t, stats, 1)
	assert.NotNil(t, stats[0].LastFlush)
	assert.Empty(t, stats[0].LastError)
}

func TestTimeTriggeredFlush(t *testing.T) {
	conns := newTestLake(t)
	w := newTestWriter(t, conns, Options{BatchSize: 100, FlushInterval: time.Second})
	ctx := context.Background()

	require.NoError(t, w.WriteTransaction(ctx, testTx(1), mainnet))
	require.NoError(t, w.WriteTransaction(ctx, testTx(2), mainnet))
	assert.Equal(t, 0, countRows(t, conns, nil))

	assert.Eventually(t, func() bool {
		return countRows(t, conns, nil) == 2
	}, 3*time.Second, 100*time.Millisecond)
	assert.Equal(t, 0, buffered(w, mainnet))
}

func TestCloseFlushesRemaining(t *testing.T) {
	conns := newTestLake(t)
	w, err := New(conns, Options{BatchSize: 100, FlushInterval: time.Hour})
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, w.WriteTransaction(ctx, testTx(1), mainnet))
	require.NoError(t, w.Close(ctx))

	assert.Equal(t, 1, countRows(t, conns, nil))
	assert.ErrorIs(t, w.WriteTransaction(ctx, testTx(2), mainnet), ErrWriterClosed)
	assert.NoError(t, w.Close(ctx))
}

func TestPartitionIsolation(t *testing.T) {
	conns := newTestLake(t)
	w := newTestWriter(t, conns, Options{BatchSize: 3, FlushInterval: time.Hour})
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		require.NoError(t, w.WriteTransaction(ctx, testTx(i), mainnet))
	}
	require.NoError(t, w.WriteTransaction(ctx, testTx(10), fuji))

	assert.Equal(t, 3, countRows(t, conns, &mainnet))
	assert.Equal(t, 0, countRows(t, conns, &fuji))
	assert.Equal(t, 1, buffered(w, fuji))

	require.NoError(t, w.FlushPartition(ctx, fuji.Key()))
	assert.Equal(t, 1, countRows(t, conns, &fuji))
	assert.Equal(t, 3, countRows(t, conns, &mainnet))
}

func TestConcurrentWritersAcrossPartitions(t *testing.T) {
	conns := newTestLake(t)
	w := newTestWriter(t, conns, Options{BatchSize: 7, FlushInterval: time.Hour, FlushConcurrency: 2})
	ctx := context.Background()

	var wg sync.WaitGroup
	for _, p := range []common.PartitionConfig{mainnet, fuji} {
		for g := 0; g < 4; g++ {
			wg.Add(1)
			go func(p common.PartitionConfig, g int) {
				defer wg.Done()
				for i := 0; i < 25; i++ {
					assert.NoError(t, w.WriteTransaction(ctx, testTx(g*100+i), p))
				}
			}(p, g)
		}
	}
	wg.Wait()
	require.NoError(t, w.FlushAll(ctx))

	assert.Equal(t, 100, countRows(t, conns, &mainnet))
	assert.Equal(t, 100, countRows(t, conns, &fuji))
}

// failingLake commits nothing while fail is set: the inserts run and the
// transaction is then rolled back.
type failingLake struct {
	lakedb.IConnectionManager
	mu   sync.Mutex
	fail bool
}

func (f *failingLake) setFail(v bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fail = v
}

func (f *failingLake) ExecuteWriteWithTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	return f.IConnectionManager.ExecuteWriteWithTx(ctx, func(tx *sql.Tx) error {
		if err := fn(tx); err != nil {
			return err
		}
		f.mu.Lock()
		defer f.mu.Unlock()
		if f.fail {
			return errors.New("disk full")
		}
		return nil
	})
}

func TestFailedFlushKeepsBuffer(t *testing.T) {
	conns := &failingLake{IConnectionManager: newTestLake(t), fail: true}
	w := newTestWriter(t, conns, Options{BatchSize: 100, FlushInterval: time.Hour})
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		require.NoError(t, w.WriteTransaction(ctx, testTx(i), mainnet))
	}

	err := w.FlushPartition(ctx, mainnet.Key())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk full")
	assert.Equal(t, 0, countRows(t, conns, nil))
	assert.Equal(t, 3, buffered(w, mainnet))
	assert.Contains(t, w.Stats()[0].LastError, "disk full")

	conns.setFail(false)
	require.NoError(t, w.FlushPartition(ctx, mainnet.Key()))
	assert.Equal(t, 3, countRows(t, conns, nil))
	assert.Equal(t, 0, buffered(w, mainnet))
	assert.Empty(t, w.Stats()[0].LastError)
}

func TestSizeFlushErrorIsReturned(t *testing.T) {
	conns := &failingLake{IConnectionManager: newTestLake(t), fail: true}
	w := newTestWriter(t, conns, Options{BatchSize: 2, FlushInterval: time.Hour})
	ctx := context.Background()

	require.NoError(t, w.WriteTransaction(ctx, testTx(1), mainnet))
	assert.Error(t, w.WriteTransaction(ctx, testTx(2), mainnet))
	assert.Equal(t, 2, buffered(w, mainnet))
	conns.setFail(false)
}

func TestDuplicateTransactionsAreSkipped(t *testing.T) {
	conns := newTestLake(t)
	dedup, err := storage.NewMemoryDeduplicator(nil)
	require.NoError(t, err)
	w := newTestWriter(t, conns, Options{BatchSize: 100, FlushInterval: time.Hour}, WithDeduplicator(dedup))
	ctx := context.Background()

	require.NoError(t, w.WriteTransaction(ctx, testTx(1), mainnet))
	require.NoError(t, w.WriteTransaction(ctx, testTx(1), mainnet))
	assert.Equal(t, 1, buffered(w, mainnet))

	require.NoError(t, w.FlushPartition(ctx, mainnet.Key()))
	require.NoError(t, w.WriteTransaction(ctx, testTx(1), mainnet))
	assert.Equal(t, 0, buffered(w, mainnet))

	// the same hash on another partition is a different transaction
	require.NoError(t, w.WriteTransaction(ctx, testTx(1), fuji))
	assert.Equal(t, 1, buffered(w, fuji))

	require.NoError(t, w.FlushAll(ctx))
	assert.Equal(t, 1, countRows(t, conns, &mainnet))
	assert.Equal(t, 1, countRows(t, conns, &fuji))
}

func TestJournalReplay(t *testing.T) {
	conns := newTestLake(t)
	journal, err := storage.NewPebbleJournal(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { _ = journal.Close() })
	ctx := context.Background()
	opts := Options{BatchSize: 100, FlushInterval: time.Hour}

	crashed, err := New(conns, opts, WithJournal(journal))
	require.NoError(t, err)
	for i := 0; i < 3; i++ {
		require.NoError(t, crashed.WriteTransaction(ctx, testTx(i), mainnet))
	}
	// stop without the final flush
	close(crashed.stopCh)
	crashed.wg.Wait()

	w, err := New(conns, opts, WithJournal(journal))
	require.NoError(t, err)
	assert.Equal(t, 3, buffered(w, mainnet))

	require.NoError(t, w.WriteTransaction(ctx, testTx(3), mainnet))
	require.NoError(t, w.Close(ctx))
	assert.Equal(t, 4, countRows(t, conns, nil))

	var left int
	require.NoError(t, journal.Replay(func(string, storage.JournalEntry) error {
		left++
		return nil
	}))
	assert.Zero(t, left)
}

func TestArchiveFailureKeepsBuffer(t *testing.T) {
	conns := newTestLake(t)
	store := mocks.NewMockIObjectStore(t)
	store.EXPECT().Exists(mock.Anything, mock.Anything).Return(false, nil)
	store.EXPECT().PutObject(mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return(errors.New("access denied")).Once()
	store.EXPECT().PutObject(mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil)
	store.EXPECT().URI(mock.Anything).RunAndReturn(func(key string) string { return "s3://lake/" + key }).Maybe()

	ledger := storage.NewCatalogLedger(conns)
	w := newTestWriter(t, conns, Options{BatchSize: 100, FlushInterval: time.Hour},
		WithArchiver(storage.NewBatchArchiver(store, "txs", "zstd")), WithLedger(ledger))
	ctx := context.Background()

	require.NoError(t, w.WriteTransaction(ctx, testTx(1), mainnet))
	require.NoError(t, w.WriteTransaction(ctx, testTx(2), mainnet))

	assert.Error(t, w.FlushPartition(ctx, mainnet.Key()))
	assert.Equal(t, 0, countRows(t, conns, nil))
	assert.Equal(t, 2, buffered(w, mainnet))

	require.NoError(t, w.FlushPartition(ctx, mainnet.Key()))
	assert.Equal(t, 2, countRows(t, conns, nil))

	batches, err := ledger.ListBatches(ctx, mainnet, 10)
	require.NoError(t, err)
	require.Len(t, batches, 1)
	assert.Equal(t, 2, batches[0].TxCount)
	assert.Contains(t, batches[0].FilePath, "s3://lake/txs/network=mainnet/")
}

func TestWriteRejectsInvalidPartition(t *testing.T) {
	w := newTestWriter(t, newTestLake(t), Options{FlushInterval: time.Hour})

	err := w.WriteTransaction(context.Background(), testTx(1), common.PartitionConfig{Network: "mainnet"})
	assert.ErrorIs(t, err, common.ErrInvalidPartition)
	assert.Empty(t, w.Stats())
}

func TestFlushUnknownPartition(t *testing.T) {
	w := newTestWriter(t, newTestLake(t), Options{FlushInterval: time.Hour})
	assert.NoError(t, w.FlushPartition(context.Background(), "nope:nope:evm"))
	assert.NoError(t, w.FlushAll(context.Background()))
}

func TestLedgerFailureDoesNotFailFlush(t *testing.T) {
	conns := newTestLake(t)
	ledger := mocks.NewMockIBatchLedger(t)
	ledger.EXPECT().RecordBatch(mock.Anything, mock.MatchedBy(func(meta columnar.BatchMetadata) bool {
		return meta.TxCount == 2 && meta.Partition == mainnet && *meta.MinBlock == 1001 && *meta.MaxBlock == 1002
	})).Return(errors.New("ledger offline")).Once()

	w := newTestWriter(t, conns, Options{BatchSize: 2, FlushInterval: time.Hour}, WithLedger(ledger))
	ctx := context.Background()

	require.NoError(t, w.WriteTransaction(ctx, testTx(1), mainnet))
	require.NoError(t, w.WriteTransaction(ctx, testTx(2), mainnet))

	assert.Equal(t, 2, countRows(t, conns, nil))
	assert.Equal(t, 0, buffered(w, mainnet))
}

func TestJournalTrimmedUnderConcurrentFlushes(t *testing.T) {
	conns := newTestLake(t)
	journal, err := storage.NewBadgerJournal(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { _ = journal.Close() })

	w, err := New(conns, Options{BatchSize: 3, FlushInterval: 20 * time.Millisecond}, WithJournal(journal))
	require.NoError(t, err)
	ctx := context.Background()

	var wg sync.WaitGroup
	for g := 0; g < 4; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			for i := 0; i < 20; i++ {
				assert.NoError(t, w.WriteTransaction(ctx, testTx(g*100+i), mainnet))
			}
		}(g)
	}
	wg.Wait()
	require.NoError(t, w.Close(ctx))

	assert.Equal(t, 80, countRows(t, conns, nil))
	var left int
	require.NoError(t, journal.Replay(func(string, storage.JournalEntry) error {
		left++
		return nil
	}))
	assert.Zero(t, left)
}

func TestRedeliveredTransactionIsStoredOnce(t *testing.T) {
	conns := newTestLake(t)
	w := newTestWriter(t, conns, Options{BatchSize: 100, FlushInterval: time.Hour})
	ctx := context.Background()

	require.NoError(t, w.WriteTransaction(ctx, testTx(1), mainnet))
	require.NoError(t, w.FlushPartition(ctx, mainnet.Key()))

	require.NoError(t, w.WriteTransaction(ctx, testTx(1), mainnet))
	require.NoError(t, w.WriteTransaction(ctx, testTx(2), mainnet))
	require.NoError(t, w.FlushPartition(ctx, mainnet.Key()))

	assert.Equal(t, 2, countRows(t, conns, nil))
	stats := w.Stats()
	require.Len(t, stats, 1)
	assert.Empty(t, stats[0].LastError)
}

// interleavedDedup runs onFilter once, after computing the answer of the
// first lookup and before returning it.
type interleavedDedup struct {
	*storage.MemoryDeduplicator
	onFilter func()
}

func (d *interleavedDedup) Filter(ctx context.Context, partition string, txHashes []string) (map[string]struct{}, error) {
	seen, err := d.MemoryDeduplicator.Filter(ctx, partition, txHashes)
	if f := d.onFilter; f != nil {
		d.onFilter = nil
		f()
	}
	return seen, err
}

func TestDuplicateCommittedDuringLookupIsSkipped(t *testing.T) {
	conns := newTestLake(t)
	mem, err := storage.NewMemoryDeduplicator(nil)
	require.NoError(t, err)
	dedup := &interleavedDedup{MemoryDeduplicator: mem}
	w := newTestWriter(t, conns, Options{BatchSize: 100, FlushInterval: time.Hour}, WithDeduplicator(dedup))
	ctx := context.Background()

	require.NoError(t, w.WriteTransaction(ctx, testTx(1), mainnet))

	dedup.onFilter = func() {
		require.NoError(t, w.FlushPartition(ctx, mainnet.Key()))
	}
	require.NoError(t, w.WriteTransaction(ctx, testTx(1), mainnet))

	assert.Equal(t, 0, buffered(w, mainnet))
	assert.Equal(t, 1, countRows(t, conns, nil))
}

type brokenJournal struct {
	storage.IBufferJournal
}

func (brokenJournal) Append(string, []storage.JournalEntry) error {
	return errors.New("no space left on device")
}

func TestJournalAppendFailureRejectsTransaction(t *testing.T) {
	conns := newTestLake(t)
	journal, err := storage.NewBadgerJournal(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { _ = journal.Close() })

	w := newTestWriter(t, conns, Options{BatchSize: 100, FlushInterval: time.Hour}, WithJournal(brokenJournal{journal}))
	ctx := context.Background()

	err = w.WriteTransaction(ctx, testTx(1), mainnet)
	assert.ErrorContains(t, err, "no space left on device")
	assert.Equal(t, 0, buffered(w, mainnet))

	// the hash is free again for a retry once the journal recovers
	w.journal = journal
	require.NoError(t, w.WriteTransaction(ctx, testTx(1), mainnet))
	assert.Equal(t, 1, buffered(w, mainnet))
}
