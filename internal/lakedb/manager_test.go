package lakedb

import (
	"context"
	"database/sql"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestManager(t *testing.T, readers int) *ConnectionManager {
	t.Helper()
	m := NewConnectionManager(Options{
		Readers:             readers,
		CheckpointThreshold: "16MB",
		Catalog:             &LocalCatalog{CatalogName: "lake", SchemaName: "chain"},
	})
	require.NoError(t, m.Initialize(context.Background()))
	t.Cleanup(func() { _ = m.Close() })
	return m
}

func countRows(t *testing.T, m *ConnectionManager, table string) int {
	t.Helper()
	var n int
	err := m.ExecuteRead(context.Background(), func(conn *sql.Conn) error {
		return conn.QueryRowContext(context.Background(), "SELECT count(*) FROM "+QualifiedTable(m.Catalog(), table)).Scan(&n)
	})
	require.NoError(t, err)
	return n
}

func TestNotInitialized(t *testing.T) {
	m := NewConnectionManager(Options{})
	ctx := context.Background()

	_, _, err := m.GetWriterConnection(ctx)
	assert.ErrorIs(t, err, ErrNotInitialized)
	_, err = m.GetReaderConnection(ctx)
	assert.ErrorIs(t, err, ErrNotInitialized)
	_, err = m.ExecuteWrite(ctx, "SELECT 1")
	assert.ErrorIs(t, err, ErrNotInitialized)
	assert.ErrorIs(t, m.ExecuteWriteWithTx(ctx, func(tx *sql.Tx) error { return nil }), ErrNotInitialized)
	assert.ErrorIs(t, m.ExecuteRead(ctx, func(conn *sql.Conn) error { return nil }), ErrNotInitialized)
	assert.ErrorIs(t, m.HealthCheck(ctx), ErrNotInitialized)
	assert.NoError(t, m.Close())
}

func TestInitializeCreatesTables(t *testing.T) {
	m := newTestManager(t, 2)

	assert.Equal(t, 0, countRows(t, m, TransactionsTable))
	assert.Equal(t, 0, countRows(t, m, BatchesTable))
	assert.Equal(t, 2, m.IdleReaders())
	assert.NoError(t, m.Initialize(context.Background()))
}

func TestWritesVisibleToReaders(t *testing.T) {
	m := newTestManager(t, 2)
	ctx := context.Background()

	_, err := m.ExecuteWrite(ctx, "CREATE TABLE lake.chain.notes (id INTEGER, body VARCHAR)")
	require.NoError(t, err)
	_, err = m.ExecuteWrite(ctx, "INSERT INTO lake.chain.notes VALUES (?, ?)", 1, "hello")
	require.NoError(t, err)

	var body string
	err = m.ExecuteRead(ctx, func(conn *sql.Conn) error {
		return conn.QueryRowContext(ctx, "SELECT body FROM lake.chain.notes WHERE id = 1").Scan(&body)
	})
	require.NoError(t, err)
	assert.Equal(t, "hello", body)
}

func TestReaderPoolCapacity(t *testing.T) {
	m := newTestManager(t, 2)
	ctx := context.Background()

	var conns []*sql.Conn
	for i := 0; i < 3; i++ {
		c, err := m.GetReaderConnection(ctx)
		require.NoError(t, err)
		conns = append(conns, c)
	}
	assert.Equal(t, 0, m.IdleReaders())

	for _, c := range conns {
		m.ReturnReaderConnection(c)
	}
	assert.Equal(t, 2, m.IdleReaders())
}

func TestExecuteWriteWithTxRollsBackOnError(t *testing.T) {
	m := newTestManager(t, 1)
	ctx := context.Background()
	_, err := m.ExecuteWrite(ctx, "CREATE TABLE lake.chain.counter (n INTEGER)")
	require.NoError(t, err)

	boom := errors.New("boom")
	err = m.ExecuteWriteWithTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, "INSERT INTO lake.chain.counter VALUES (1)"); err != nil {
			return err
		}
		return boom
	})
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 0, countRows(t, m, "counter"))

	err = m.ExecuteWriteWithTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, "INSERT INTO lake.chain.counter VALUES (1)")
		return err
	})
	require.NoError(t, err)
	assert.Equal(t, 1, countRows(t, m, "counter"))
}

func TestExecuteWriteWithTxRollsBackOnPanic(t *testing.T) {
	m := newTestManager(t, 1)
	ctx := context.Background()
	_, err := m.ExecuteWrite(ctx, "CREATE TABLE lake.chain.counter (n INTEGER)")
	require.NoError(t, err)

	assert.PanicsWithValue(t, "exploded", func() {
		_ = m.ExecuteWriteWithTx(ctx, func(tx *sql.Tx) error {
			_, _ = tx.ExecContext(ctx, "INSERT INTO lake.chain.counter VALUES (1)")
			panic("exploded")
		})
	})
	assert.Equal(t, 0, countRows(t, m, "counter"))

	// the write lock was released by the panicking call
	_, err = m.ExecuteWrite(ctx, "INSERT INTO lake.chain.counter VALUES (2)")
	require.NoError(t, err)
}

func TestExecuteWriteWithTxIsSerialized(t *testing.T) {
	m := newTestManager(t, 1)
	ctx := context.Background()

	var active, maxActive atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := m.ExecuteWriteWithTx(ctx, func(tx *sql.Tx) error {
				n := active.Add(1)
				for {
					cur := maxActive.Load()
					if n <= cur || maxActive.CompareAndSwap(cur, n) {
						break
					}
				}
				time.Sleep(20 * time.Millisecond)
				active.Add(-1)
				return nil
			})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), maxActive.Load())
}

func TestGetWriterConnectionHonorsContext(t *testing.T) {
	m := newTestManager(t, 1)

	_, release, err := m.GetWriterConnection(context.Background())
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	_, _, err = m.GetWriterConnection(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	release()
	release()

	_, err = m.ExecuteWrite(context.Background(), "SELECT 1")
	assert.NoError(t, err)
}

func TestHealthCheckAndClose(t *testing.T) {
	m := NewConnectionManager(Options{Readers: 1})
	require.NoError(t, m.Initialize(context.Background()))

	assert.NoError(t, m.HealthCheck(context.Background()))
	assert.NoError(t, m.Close())
	assert.NoError(t, m.Close())
	assert.ErrorIs(t, m.HealthCheck(context.Background()), ErrNotInitialized)
}
