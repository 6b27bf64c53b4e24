package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	config "github.com/chainwatch/ingestor/configs"
	"github.com/chainwatch/ingestor/internal/bus"
	"github.com/chainwatch/ingestor/internal/handlers"
	"github.com/chainwatch/ingestor/internal/lakedb"
	"github.com/chainwatch/ingestor/internal/storage"
	"github.com/chainwatch/ingestor/internal/writer"
	"github.com/rs/zerolog/log"
)

// Orchestrator owns the lake, the writer and everything feeding it. Shutdown
// runs in dependency order: the bus stops delivering first, the writer then
// flushes and the lake closes last.
type Orchestrator struct {
	cfg *config.Config

	lake       *lakedb.ConnectionManager
	writer     *writer.Writer
	subscriber bus.Subscriber
	server     *http.Server

	ledger  storage.IBatchLedger
	dedup   storage.IDeduplicator
	journal storage.IBufferJournal

	cancel context.CancelFunc
}

func NewOrchestrator(ctx context.Context, cfg *config.Config) (_ *Orchestrator, err error) {
	o := &Orchestrator{cfg: cfg}
	defer func() {
		if err != nil {
			o.closeDependencies()
		}
	}()

	if o.lake, err = newLake(cfg); err != nil {
		return nil, err
	}
	if err = o.lake.Initialize(ctx); err != nil {
		return nil, fmt.Errorf("failed to initialize lake: %w", err)
	}

	opts := []writer.Option{}
	archiver, err := newArchiver(ctx, &cfg.S3)
	if err != nil {
		return nil, err
	}
	if archiver != nil {
		opts = append(opts, writer.WithArchiver(archiver))
	}
	if o.dedup, err = newDeduplicator(&cfg.Dedup, o.lake.Catalog()); err != nil {
		return nil, err
	}
	if o.dedup != nil {
		opts = append(opts, writer.WithDeduplicator(o.dedup))
	}
	if o.journal, err = newJournal(&cfg.Journal); err != nil {
		return nil, err
	}
	if o.journal != nil {
		opts = append(opts, writer.WithJournal(o.journal))
	}
	if o.ledger, err = newLedger(&cfg.Ledger, o.lake); err != nil {
		return nil, err
	}
	if o.ledger != nil {
		opts = append(opts, writer.WithLedger(o.ledger))
	}

	o.writer, err = writer.New(o.lake, writer.Options{
		BatchSize:        cfg.Writer.BatchSize,
		FlushInterval:    time.Duration(cfg.Writer.FlushIntervalMs) * time.Millisecond,
		ShutdownTimeout:  time.Duration(cfg.Writer.ShutdownTimeoutMs) * time.Millisecond,
		FlushConcurrency: cfg.Writer.FlushConcurrency,
	}, opts...)
	if err != nil {
		return nil, err
	}

	if o.subscriber, err = bus.NewSubscriber(&cfg.Bus, o.writer); err != nil {
		_ = o.writer.Close(ctx)
		return nil, err
	}

	if cfg.API.Port > 0 {
		router := handlers.NewRouter(&handlers.Admin{Lake: o.lake, Writer: o.writer, Ledger: o.ledger}, cfg.API.BasicAuth)
		o.server = &http.Server{
			Addr:              fmt.Sprintf("%s:%d", cfg.API.Host, cfg.API.Port),
			Handler:           router,
			ReadHeaderTimeout: 10 * time.Second,
		}
	}
	return o, nil
}

func (o *Orchestrator) Writer() *writer.Writer {
	return o.writer
}

// Start runs until SIGINT or SIGTERM, or until Shutdown is called, and then
// shuts everything down.
func (o *Orchestrator) Start() error {
	ctx, cancel := context.WithCancel(context.Background())
	o.cancel = cancel
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGTERM, syscall.SIGINT)
	defer signal.Stop(sigChan)

	go func() {
		select {
		case sig := <-sigChan:
			log.Info().Msgf("Received signal %v, initiating graceful shutdown", sig)
			cancel()
		case <-ctx.Done():
		}
	}()

	serverErr := make(chan error, 1)
	if o.server != nil {
		go func() {
			log.Info().Str("addr", o.server.Addr).Msg("Starting admin API")
			if err := o.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				serverErr <- err
				cancel()
			}
		}()
	}

	if o.subscriber != nil {
		if err := o.subscriber.Start(ctx); err != nil {
			cancel()
			return errors.Join(err, o.stop())
		}
	} else {
		log.Warn().Msg("No bus configured, the writer only receives data through the admin API")
	}

	<-ctx.Done()

	var runErr error
	select {
	case runErr = <-serverErr:
	default:
	}
	return errors.Join(runErr, o.stop())
}

func (o *Orchestrator) Shutdown() {
	if o.cancel != nil {
		o.cancel()
	}
}

func (o *Orchestrator) stop() error {
	var errs []error

	if o.server != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		errs = append(errs, o.server.Shutdown(ctx))
		cancel()
	}
	if o.subscriber != nil {
		errs = append(errs, o.subscriber.Close())
	}
	errs = append(errs, o.writer.Close(context.Background()))
	errs = append(errs, o.closeDependencies())

	err := errors.Join(errs...)
	if err != nil {
		log.Error().Err(err).Msg("Shutdown finished with errors")
	} else {
		log.Info().Msg("Shutdown complete")
	}
	return err
}

func (o *Orchestrator) closeDependencies() error {
	var errs []error
	if o.ledger != nil {
		errs = append(errs, o.ledger.Close())
	}
	if o.dedup != nil {
		errs = append(errs, o.dedup.Close())
	}
	if o.journal != nil {
		errs = append(errs, o.journal.Close())
	}
	if o.lake != nil {
		errs = append(errs, o.lake.Close())
	}
	return errors.Join(errs...)
}
