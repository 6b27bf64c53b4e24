package bus

import (
	"context"
	"encoding/json"
	"fmt"

	config "github.com/chainwatch/ingestor/configs"
	"github.com/chainwatch/ingestor/internal/common"
	"github.com/chainwatch/ingestor/internal/metrics"
	"github.com/rs/zerolog/log"
)

// Sink receives decoded persistence messages. The partitioned batch writer
// is the only production implementation.
type Sink interface {
	WriteTransaction(ctx context.Context, tx common.Transaction, partition common.PartitionConfig) error
}

type Publisher interface {
	Publish(ctx context.Context, subject string, tx common.Transaction) error
	Close() error
}

type Subscriber interface {
	Start(ctx context.Context) error
	Close() error
}

// PublishBlock stamps every transaction of block with the block time and
// publishes it on the partition's persistence subject. It stops at the first
// failed publish and returns how many were sent.
func PublishBlock(ctx context.Context, pub Publisher, partition common.PartitionConfig, block *common.Block) (int, error) {
	if err := partition.Validate(); err != nil {
		return 0, err
	}
	if block == nil {
		return 0, nil
	}
	block.StampTransactions()

	subject := partition.Subject()
	for i, tx := range block.Transactions {
		if err := pub.Publish(ctx, subject, tx); err != nil {
			return i, fmt.Errorf("failed to publish transaction %s: %w", tx.Hash, err)
		}
		metrics.BusMessagesPublished.WithLabelValues(partition.Key()).Inc()
	}
	return len(block.Transactions), nil
}

// deliver decodes one message and hands it to the sink. Malformed messages
// are dropped; redelivering them would fail the same way.
func deliver(ctx context.Context, sink Sink, subject string, data []byte) {
	partition, err := common.ParseSubject(subject)
	if err != nil {
		metrics.BusDecodeErrors.Inc()
		log.Warn().Err(err).Str("subject", subject).Msg("Dropping message with invalid subject")
		return
	}

	var tx common.Transaction
	if err := json.Unmarshal(data, &tx); err != nil {
		metrics.BusDecodeErrors.Inc()
		log.Warn().Err(err).Str("subject", subject).Msg("Dropping undecodable transaction")
		return
	}
	if tx.Hash == "" {
		metrics.BusDecodeErrors.Inc()
		log.Warn().Str("subject", subject).Msg("Dropping transaction without hash")
		return
	}

	metrics.BusMessagesReceived.WithLabelValues(partition.Key()).Inc()
	// messages drained during shutdown arrive after ctx is cancelled
	if err := sink.WriteTransaction(context.WithoutCancel(ctx), tx, partition); err != nil {
		log.Error().Err(err).Str("partition", partition.Key()).Str("tx_hash", tx.Hash).Msg("Failed to write transaction")
	}
}

// NewPublisher connects the publisher for the configured bus kind.
func NewPublisher(cfg *config.BusConfig) (Publisher, error) {
	switch cfg.Kind {
	case config.BusKindNats:
		nc, err := NewNatsConnection(cfg.Nats)
		if err != nil {
			return nil, err
		}
		return NewNatsPublisher(nc), nil
	case config.BusKindKafka:
		pub, err := NewKafkaPublisher(cfg.Kafka)
		if err != nil {
			return nil, err
		}
		return pub, nil
	default:
		return nil, fmt.Errorf("no publisher for bus kind %q", cfg.Kind)
	}
}

// NewSubscriber connects the subscriber for the configured bus kind. It
// returns nil without error when no bus is configured.
func NewSubscriber(cfg *config.BusConfig, sink Sink) (Subscriber, error) {
	switch cfg.Kind {
	case "":
		return nil, nil
	case config.BusKindNats:
		nc, err := NewNatsConnection(cfg.Nats)
		if err != nil {
			return nil, err
		}
		return NewNatsSubscriber(nc, sink, DefaultQueueGroup), nil
	case config.BusKindKafka:
		sub, err := NewKafkaSubscriber(cfg.Kafka, sink)
		if err != nil {
			return nil, err
		}
		return sub, nil
	default:
		return nil, fmt.Errorf("unknown bus kind %q", cfg.Kind)
	}
}
