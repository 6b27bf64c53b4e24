package bus

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"strings"
	"sync"
	"time"

	config "github.com/chainwatch/ingestor/configs"
	"github.com/chainwatch/ingestor/internal/common"
	"github.com/rs/zerolog/log"
	"github.com/twmb/franz-go/pkg/kgo"
	"github.com/twmb/franz-go/pkg/sasl/plain"
)

// PersistenceTopicPattern matches the topics persistence subjects map to.
const PersistenceTopicPattern = `^chain\.[^.]+\.[^.]+\.[^.]+\.persistence$`

func kafkaOpts(cfg *config.KafkaConfig, clientID string) []kgo.Opt {
	opts := []kgo.Opt{
		kgo.SeedBrokers(strings.Split(cfg.Brokers, ",")...),
		kgo.ClientID(clientID),
		kgo.MetadataMaxAge(60 * time.Second),
		kgo.DialTimeout(10 * time.Second),
	}

	if cfg.Username != "" && cfg.Password != "" {
		opts = append(opts, kgo.SASL(plain.Auth{
			User: cfg.Username,
			Pass: cfg.Password,
		}.AsMechanism()))
	}
	if cfg.EnableTLS || (cfg.Username != "" && cfg.Password != "") {
		tlsDialer := &tls.Dialer{NetDialer: &net.Dialer{Timeout: 10 * time.Second}}
		opts = append(opts, kgo.Dialer(tlsDialer.DialContext))
	}
	return opts
}

func newKafkaClient(opts []kgo.Opt) (*kgo.Client, error) {
	client, err := kgo.NewClient(opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create Kafka client: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := client.Ping(ctx); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to Kafka: %v", err)
	}
	return client, nil
}

type KafkaPublisher struct {
	client *kgo.Client
}

func NewKafkaPublisher(cfg *config.KafkaConfig) (*KafkaPublisher, error) {
	opts := append(kafkaOpts(cfg, "chainwatch-fetcher"),
		kgo.AllowAutoTopicCreation(),
		kgo.ProducerBatchCompression(kgo.SnappyCompression()),
		kgo.ProducerBatchMaxBytes(16_000_000),
	)
	client, err := newKafkaClient(opts)
	if err != nil {
		return nil, err
	}
	return &KafkaPublisher{client: client}, nil
}

// Publish produces tx keyed by its hash, so retries of one transaction land
// on the same partition.
func (p *KafkaPublisher) Publish(ctx context.Context, subject string, tx common.Transaction) error {
	data, err := json.Marshal(tx)
	if err != nil {
		return fmt.Errorf("failed to marshal transaction: %w", err)
	}
	record := &kgo.Record{
		Topic: subject,
		Key:   []byte(tx.Hash),
		Value: data,
		Headers: []kgo.RecordHeader{
			{Key: "content-type", Value: []byte("application/json")},
			{Key: "block_number", Value: []byte(tx.BlockNumber)},
		},
	}
	return p.client.ProduceSync(ctx, record).FirstErr()
}

func (p *KafkaPublisher) Close() error {
	p.client.Close()
	log.Debug().Msg("Kafka publisher closed")
	return nil
}

// KafkaSubscriber consumes every persistence topic as part of a consumer
// group. Offsets are committed after each polled batch has been handed to the
// sink.
type KafkaSubscriber struct {
	client *kgo.Client
	sink   Sink

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewKafkaSubscriber(cfg *config.KafkaConfig, sink Sink) (*KafkaSubscriber, error) {
	group := cfg.GroupID
	if group == "" {
		group = DefaultQueueGroup
	}
	opts := append(kafkaOpts(cfg, "chainwatch-writer"),
		kgo.ConsumerGroup(group),
		kgo.ConsumeRegex(),
		kgo.ConsumeTopics(PersistenceTopicPattern),
		kgo.DisableAutoCommit(),
		kgo.ConsumeResetOffset(kgo.NewOffset().AtStart()),
	)
	client, err := newKafkaClient(opts)
	if err != nil {
		return nil, err
	}
	return &KafkaSubscriber{client: client, sink: sink}, nil
}

func (s *KafkaSubscriber) Start(ctx context.Context) error {
	ctx, s.cancel = context.WithCancel(ctx)
	s.wg.Add(1)
	go s.poll(ctx)
	log.Info().Str("pattern", PersistenceTopicPattern).Msg("Consuming persistence topics")
	return nil
}

func (s *KafkaSubscriber) poll(ctx context.Context) {
	defer s.wg.Done()
	for {
		fetches := s.client.PollFetches(ctx)
		if fetches.IsClientClosed() || ctx.Err() != nil {
			return
		}
		fetches.EachError(func(topic string, partition int32, err error) {
			if !errors.Is(err, context.Canceled) {
				log.Error().Err(err).Str("topic", topic).Int32("partition", partition).Msg("Kafka fetch error")
			}
		})
		fetches.EachRecord(func(r *kgo.Record) {
			s.handle(ctx, r)
		})
		if err := s.client.CommitUncommittedOffsets(ctx); err != nil && ctx.Err() == nil {
			log.Warn().Err(err).Msg("Failed to commit Kafka offsets")
		}
	}
}

func (s *KafkaSubscriber) handle(ctx context.Context, r *kgo.Record) {
	deliver(ctx, s.sink, r.Topic, r.Value)
}

func (s *KafkaSubscriber) Close() error {
	if s.cancel != nil {
		s.cancel()
	}
	s.wg.Wait()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	err := s.client.CommitUncommittedOffsets(ctx)
	s.client.Close()
	return err
}
