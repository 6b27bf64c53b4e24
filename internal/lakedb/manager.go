package lakedb

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/chainwatch/ingestor/internal/metrics"
	"github.com/marcboeker/go-duckdb/v2"
	"github.com/rs/zerolog/log"
)

var ErrNotInitialized = errors.New("connection manager not initialized")

type Options struct {
	// Path of the DuckDB database file, in memory when empty.
	Path                string
	Readers             int
	CheckpointThreshold string
	MemoryLimit         string
	Catalog             Catalog
}

type IConnectionManager interface {
	Initialize(ctx context.Context) error
	GetWriterConnection(ctx context.Context) (*sql.Conn, func(), error)
	GetReaderConnection(ctx context.Context) (*sql.Conn, error)
	ReturnReaderConnection(conn *sql.Conn)
	ExecuteWrite(ctx context.Context, query string, args ...any) (sql.Result, error)
	ExecuteWriteWithTx(ctx context.Context, fn func(tx *sql.Tx) error) error
	ExecuteRead(ctx context.Context, fn func(conn *sql.Conn) error) error
	HealthCheck(ctx context.Context) error
	Catalog() Catalog
	Close() error
}

// ConnectionManager owns the embedded database. It holds exactly one writer
// connection, serialized by writeMu, and a stack of reader connections that
// never holds more than readerCap idle entries.
type ConnectionManager struct {
	opts Options

	mu          sync.RWMutex
	db          *sql.DB
	initialized bool

	writeMu sync.Mutex
	writer  *sql.Conn

	poolMu    sync.Mutex
	readers   []*sql.Conn
	readerCap int
}

func NewConnectionManager(opts Options) *ConnectionManager {
	if opts.Readers <= 0 {
		opts.Readers = 4
	}
	if opts.Catalog == nil {
		opts.Catalog = &LocalCatalog{CatalogName: "lake", SchemaName: "main"}
	}
	return &ConnectionManager{
		opts:      opts,
		readerCap: opts.Readers,
	}
}

// Initialize opens the database, prepares the writer and attaches the catalog,
// then fills the reader pool. Calling it again is a no-op.
func (m *ConnectionManager) Initialize(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.initialized {
		return nil
	}

	connector, err := duckdb.NewConnector(m.opts.Path, func(execer driver.ExecerContext) error {
		_, err := execer.ExecContext(context.Background(), "SET enable_progress_bar = false", nil)
		return err
	})
	if err != nil {
		return fmt.Errorf("failed to open duckdb %q: %w", m.opts.Path, err)
	}
	db := sql.OpenDB(connector)
	// surplus connections handed back to database/sql are closed right away
	db.SetMaxIdleConns(0)

	writer, err := db.Conn(ctx)
	if err != nil {
		db.Close()
		return fmt.Errorf("failed to open writer connection: %w", err)
	}
	if err := m.configureWriter(ctx, writer); err != nil {
		writer.Close()
		db.Close()
		return err
	}
	if err := m.opts.Catalog.attach(ctx, writer); err != nil {
		writer.Close()
		db.Close()
		return err
	}

	readers := make([]*sql.Conn, 0, m.readerCap)
	for i := 0; i < m.readerCap; i++ {
		r, err := db.Conn(ctx)
		if err != nil {
			for _, c := range readers {
				c.Close()
			}
			writer.Close()
			db.Close()
			return fmt.Errorf("failed to open reader connection %d: %w", i, err)
		}
		readers = append(readers, r)
	}

	m.db = db
	m.writer = writer
	m.poolMu.Lock()
	m.readers = readers
	m.poolMu.Unlock()
	m.initialized = true
	metrics.IdleReaders.Set(float64(len(readers)))

	log.Info().
		Str("path", m.opts.Path).
		Str("catalog", m.opts.Catalog.Name()).
		Str("catalog_kind", string(m.opts.Catalog.Kind())).
		Int("readers", len(readers)).
		Msg("Lake connection manager initialized")
	return nil
}

func (m *ConnectionManager) configureWriter(ctx context.Context, writer *sql.Conn) error {
	var stmts []string
	if m.opts.CheckpointThreshold != "" {
		stmts = append(stmts, fmt.Sprintf("SET checkpoint_threshold = '%s'", escapeLiteral(m.opts.CheckpointThreshold)))
	}
	if m.opts.MemoryLimit != "" {
		stmts = append(stmts, fmt.Sprintf("SET memory_limit = '%s'", escapeLiteral(m.opts.MemoryLimit)))
	}
	for _, stmt := range stmts {
		if _, err := writer.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to configure writer (%s): %w", stmt, err)
		}
	}
	return nil
}

func (m *ConnectionManager) Catalog() Catalog {
	return m.opts.Catalog
}

func (m *ConnectionManager) isInitialized() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.initialized
}

// GetWriterConnection hands out the writer with the write lock held. The
// caller must call release exactly once and must not close the connection.
func (m *ConnectionManager) GetWriterConnection(ctx context.Context) (*sql.Conn, func(), error) {
	if !m.isInitialized() {
		return nil, nil, ErrNotInitialized
	}
	if err := m.lockWriter(ctx); err != nil {
		return nil, nil, err
	}
	if m.writer == nil {
		m.writeMu.Unlock()
		return nil, nil, ErrNotInitialized
	}
	var once sync.Once
	return m.writer, func() { once.Do(m.writeMu.Unlock) }, nil
}

// lockWriter waits for the write lock. A context that ends while waiting
// leaves the lock to whoever acquires it.
func (m *ConnectionManager) lockWriter(ctx context.Context) error {
	start := time.Now()
	defer func() { metrics.WriterWaitDuration.Observe(time.Since(start).Seconds()) }()

	if m.writeMu.TryLock() {
		return nil
	}
	acquired := make(chan struct{})
	go func() {
		m.writeMu.Lock()
		close(acquired)
	}()
	select {
	case <-acquired:
		return nil
	case <-ctx.Done():
		go func() {
			<-acquired
			m.writeMu.Unlock()
		}()
		return fmt.Errorf("waiting for writer connection: %w", ctx.Err())
	}
}

func (m *ConnectionManager) ExecuteWrite(ctx context.Context, query string, args ...any) (sql.Result, error) {
	conn, release, err := m.GetWriterConnection(ctx)
	if err != nil {
		return nil, err
	}
	defer release()
	return conn.ExecContext(ctx, query, args...)
}

// ExecuteWriteWithTx runs fn inside a transaction on the writer. The
// transaction is rolled back when fn returns an error or panics; the panic is
// re-raised after the rollback.
func (m *ConnectionManager) ExecuteWriteWithTx(ctx context.Context, fn func(tx *sql.Tx) error) (err error) {
	conn, release, err := m.GetWriterConnection(ctx)
	if err != nil {
		return err
	}
	defer release()

	tx, err := conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin write transaction: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			if rbErr := tx.Rollback(); rbErr != nil {
				log.Error().Err(rbErr).Msg("Rollback after panic failed")
			}
			panic(p)
		}
	}()

	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
			return errors.Join(err, fmt.Errorf("rollback failed: %w", rbErr))
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit write transaction: %w", err)
	}
	return nil
}

// GetReaderConnection pops an idle reader or opens a new one when the pool is
// empty. Every reader must be handed back with ReturnReaderConnection.
func (m *ConnectionManager) GetReaderConnection(ctx context.Context) (*sql.Conn, error) {
	m.mu.RLock()
	db, initialized := m.db, m.initialized
	m.mu.RUnlock()
	if !initialized {
		return nil, ErrNotInitialized
	}

	m.poolMu.Lock()
	if n := len(m.readers); n > 0 {
		conn := m.readers[n-1]
		m.readers[n-1] = nil
		m.readers = m.readers[:n-1]
		metrics.IdleReaders.Set(float64(len(m.readers)))
		m.poolMu.Unlock()
		return conn, nil
	}
	m.poolMu.Unlock()

	conn, err := db.Conn(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to open reader connection: %w", err)
	}
	return conn, nil
}

// ReturnReaderConnection puts conn back on the pool, closing it when the pool
// is already full or the manager is closed.
func (m *ConnectionManager) ReturnReaderConnection(conn *sql.Conn) {
	if conn == nil {
		return
	}
	if m.isInitialized() {
		m.poolMu.Lock()
		if len(m.readers) < m.readerCap {
			m.readers = append(m.readers, conn)
			metrics.IdleReaders.Set(float64(len(m.readers)))
			m.poolMu.Unlock()
			return
		}
		m.poolMu.Unlock()
	}
	if err := conn.Close(); err != nil {
		log.Debug().Err(err).Msg("Failed to close surplus reader connection")
	}
}

func (m *ConnectionManager) ExecuteRead(ctx context.Context, fn func(conn *sql.Conn) error) error {
	conn, err := m.GetReaderConnection(ctx)
	if err != nil {
		return err
	}
	defer m.ReturnReaderConnection(conn)
	return fn(conn)
}

// IdleReaders reports how many readers are waiting in the pool.
func (m *ConnectionManager) IdleReaders() int {
	m.poolMu.Lock()
	defer m.poolMu.Unlock()
	return len(m.readers)
}

// HealthCheck probes the writer and one reader and reports each failure
// separately.
func (m *ConnectionManager) HealthCheck(ctx context.Context) error {
	if !m.isInitialized() {
		return ErrNotInitialized
	}

	var errs []error
	if _, err := m.ExecuteWrite(ctx, "SELECT 1"); err != nil {
		errs = append(errs, fmt.Errorf("writer connection unhealthy: %w", err))
	}
	err := m.ExecuteRead(ctx, func(conn *sql.Conn) error {
		var one int
		return conn.QueryRowContext(ctx, "SELECT 1").Scan(&one)
	})
	if err != nil {
		errs = append(errs, fmt.Errorf("reader connection unhealthy: %w", err))
	}
	return errors.Join(errs...)
}

// Close checkpoints and closes every connection and the database, joining all
// errors. Closing twice is a no-op.
func (m *ConnectionManager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.initialized {
		return nil
	}
	m.initialized = false

	var errs []error

	m.writeMu.Lock()
	if _, err := m.writer.ExecContext(context.Background(), "CHECKPOINT"); err != nil {
		errs = append(errs, fmt.Errorf("checkpoint on shutdown: %w", err))
	}
	if err := m.writer.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close writer: %w", err))
	}
	m.writer = nil
	m.writeMu.Unlock()

	m.poolMu.Lock()
	readers := m.readers
	m.readers = nil
	m.poolMu.Unlock()
	for i, r := range readers {
		if err := r.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close reader %d: %w", i, err))
		}
	}
	metrics.IdleReaders.Set(0)

	if err := m.db.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close database: %w", err))
	}
	m.db = nil

	log.Info().Msg("Lake connection manager closed")
	return errors.Join(errs...)
}
