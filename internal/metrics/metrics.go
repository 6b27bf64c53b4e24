package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Fetcher Metrics
var (
	RPCFetchDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "fetcher_rpc_duration_seconds",
		Help:    "Time spent on a single eth_getBlockBy* call",
		Buckets: prometheus.DefBuckets,
	}, []string{"method"})

	RPCFetchErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fetcher_rpc_errors_total",
		Help: "The total number of failed block fetches",
	}, []string{"method"})

	RPCBlocksNotFound = promauto.NewCounter(prometheus.CounterOpts{
		Name: "fetcher_blocks_not_found_total",
		Help: "The total number of fetches for which the node returned a null block",
	})
)

// Writer Metrics
var (
	BufferedTransactions = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "writer_buffered_transactions",
		Help: "The number of transactions waiting to be flushed per partition",
	}, []string{"partition"})

	FlushedBatches = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "writer_flushed_batches_total",
		Help: "The total number of committed batches per partition",
	}, []string{"partition"})

	FlushedTransactions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "writer_flushed_transactions_total",
		Help: "The total number of committed transactions per partition",
	}, []string{"partition"})

	FlushErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "writer_flush_errors_total",
		Help: "The total number of failed flushes per partition",
	}, []string{"partition"})

	FlushDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "writer_flush_duration_seconds",
		Help:    "Time from flush start until commit",
		Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
	}, []string{"partition"})

	DuplicateTransactions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "writer_duplicate_transactions_total",
		Help: "The total number of transactions skipped because they were already buffered or committed",
	}, []string{"partition"})

	LedgerErrors = promauto.NewCounter(prometheus.CounterOpts{
		Name: "writer_ledger_errors_total",
		Help: "The total number of batches whose metadata could not be recorded",
	})

	JournalErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "writer_journal_errors_total",
		Help: "The total number of transactions rejected because the buffer journal append failed",
	}, []string{"partition"})

	JournalReplayed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "writer_journal_replayed_transactions_total",
		Help: "The total number of transactions restored from the buffer journal on startup",
	})
)

// Object storage Metrics
var (
	UploadedBytes = promauto.NewCounter(prometheus.CounterOpts{
		Name: "storage_uploaded_bytes_total",
		Help: "The total number of parquet bytes uploaded to object storage",
	})

	UploadErrors = promauto.NewCounter(prometheus.CounterOpts{
		Name: "storage_upload_errors_total",
		Help: "The total number of failed batch uploads",
	})
)

// Lake Metrics
var (
	IdleReaders = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "lake_idle_reader_connections",
		Help: "The number of reader connections waiting in the pool",
	})

	WriterWaitDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "lake_writer_wait_seconds",
		Help:    "Time spent waiting for the single writer connection",
		Buckets: prometheus.DefBuckets,
	})
)

// Bus Metrics
var (
	BusMessagesReceived = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "bus_messages_received_total",
		Help: "The total number of persistence messages received per partition",
	}, []string{"partition"})

	BusDecodeErrors = promauto.NewCounter(prometheus.CounterOpts{
		Name: "bus_decode_errors_total",
		Help: "The total number of messages dropped because the subject or payload was malformed",
	})

	BusMessagesPublished = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "bus_messages_published_total",
		Help: "The total number of transactions published per partition",
	}, []string{"partition"})
)
