package bus

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	config "github.com/chainwatch/ingestor/configs"
	"github.com/chainwatch/ingestor/internal/common"
	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog/log"
)

var ErrNatsConnectionFailed = errors.New("failed to connect to NATS server")

const DefaultQueueGroup = "lake-writers"

// NewNatsConnection connects with reconnect handling and logs connection
// state changes.
func NewNatsConnection(cfg *config.NatsConfig) (*nats.Conn, error) {
	name := cfg.ClientName
	if name == "" {
		hostname, err := os.Hostname()
		if err != nil {
			return nil, err
		}
		name = hostname
	}

	maxReconnects := cfg.MaxReconnects
	if maxReconnects == 0 {
		maxReconnects = 10
	}
	reconnectWait := 2 * time.Second
	if cfg.ReconnectWaitMs > 0 {
		reconnectWait = time.Duration(cfg.ReconnectWaitMs) * time.Millisecond
	}
	pingInterval := 15 * time.Second
	if cfg.PingIntervalMs > 0 {
		pingInterval = time.Duration(cfg.PingIntervalMs) * time.Millisecond
	}

	opts := []nats.Option{
		nats.Name(name),
		nats.ErrorHandler(func(_ *nats.Conn, _ *nats.Subscription, err error) {
			if err != nil {
				log.Error().Err(err).Msg("NATS connection error")
			}
		}),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			ev := log.Warn().Err(err)
			if buffered, bufErr := nc.Buffered(); bufErr == nil {
				ev = ev.Int("buffered", buffered)
			}
			ev.Msg("NATS client disconnected")
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Info().Str("url", nc.ConnectedUrlRedacted()).Msg("NATS client reconnected")
		}),
		nats.ClosedHandler(func(_ *nats.Conn) {
			log.Info().Msg("NATS client closed")
		}),
		nats.RetryOnFailedConnect(true),
		nats.PingInterval(pingInterval),
		nats.MaxPingsOutstanding(2),
		nats.ReconnectBufSize(8 * 1024 * 1024),
		nats.MaxReconnects(maxReconnects),
		nats.ReconnectWait(reconnectWait),
	}

	nc, err := nats.Connect(cfg.URL, opts...)
	if err != nil {
		return nil, errors.Join(ErrNatsConnectionFailed, err)
	}
	return nc, nil
}

// NatsSubscriber consumes every partition's persistence subject as a member
// of a queue group, so several writers can share the load.
type NatsSubscriber struct {
	nc    *nats.Conn
	sink  Sink
	queue string
	sub   *nats.Subscription
	ctx   context.Context
}

func NewNatsSubscriber(nc *nats.Conn, sink Sink, queue string) *NatsSubscriber {
	if queue == "" {
		queue = DefaultQueueGroup
	}
	return &NatsSubscriber{nc: nc, sink: sink, queue: queue, ctx: context.Background()}
}

func (s *NatsSubscriber) Start(ctx context.Context) error {
	s.ctx = ctx
	sub, err := s.nc.QueueSubscribe(common.PersistenceSubjectWildcard, s.queue, s.handle)
	if err != nil {
		return fmt.Errorf("failed to subscribe to %s: %w", common.PersistenceSubjectWildcard, err)
	}
	s.sub = sub
	log.Info().Str("subject", common.PersistenceSubjectWildcard).Str("queue", s.queue).Msg("Subscribed to persistence subjects")
	return nil
}

func (s *NatsSubscriber) handle(msg *nats.Msg) {
	deliver(s.ctx, s.sink, msg.Subject, msg.Data)
}

// Close drains the connection: pending messages are delivered before the
// subscription and the connection close.
func (s *NatsSubscriber) Close() error {
	if s.nc == nil || s.nc.IsClosed() {
		return nil
	}
	if err := s.nc.Drain(); err != nil {
		return fmt.Errorf("failed to drain NATS connection: %w", err)
	}
	for !s.nc.IsClosed() {
		time.Sleep(10 * time.Millisecond)
	}
	return nil
}

type natsPublishConn interface {
	Publish(subject string, data []byte) error
	FlushWithContext(ctx context.Context) error
	Close()
}

type NatsPublisher struct {
	nc natsPublishConn
}

func NewNatsPublisher(nc *nats.Conn) *NatsPublisher {
	return &NatsPublisher{nc: nc}
}

func (p *NatsPublisher) Publish(ctx context.Context, subject string, tx common.Transaction) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := json.Marshal(tx)
	if err != nil {
		return fmt.Errorf("failed to marshal transaction: %w", err)
	}
	return p.nc.Publish(subject, data)
}

// Flush waits until the server has received everything published so far.
func (p *NatsPublisher) Flush(ctx context.Context) error {
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
	}
	return p.nc.FlushWithContext(ctx)
}

func (p *NatsPublisher) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	err := p.nc.FlushWithContext(ctx)
	p.nc.Close()
	return err
}
