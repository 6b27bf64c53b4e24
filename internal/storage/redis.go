package storage

import (
	"context"
	"crypto/tls"
	"fmt"
	"time"

	config "github.com/chainwatch/ingestor/configs"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

const (
	// KeySeenTx is the namespace of committed transaction markers,
	// seen_tx:{partition}:{hash}.
	KeySeenTx = "seen_tx"

	defaultSeenTTL = 7 * 24 * time.Hour
)

// RedisDeduplicator shares committed transaction hashes between ingestor
// replicas.
type RedisDeduplicator struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisDeduplicator(cfg *config.RedisConfig) (*RedisDeduplicator, error) {
	options := &redis.Options{
		Addr:     fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Password: cfg.Password,
		DB:       cfg.DB,
	}
	if cfg.EnableTLS {
		options.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
	}
	client := redis.NewClient(options)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	ttl := defaultSeenTTL
	if cfg.TTLSeconds > 0 {
		ttl = time.Duration(cfg.TTLSeconds) * time.Second
	}

	log.Info().Str("addr", options.Addr).Dur("ttl", ttl).Msg("Redis deduplicator connected")
	return &RedisDeduplicator{client: client, ttl: ttl}, nil
}

func seenKey(partition, hash string) string {
	return fmt.Sprintf("%s:%s:%s", KeySeenTx, partition, hash)
}

func (r *RedisDeduplicator) Filter(ctx context.Context, partition string, txHashes []string) (map[string]struct{}, error) {
	seen := make(map[string]struct{})
	if len(txHashes) == 0 {
		return seen, nil
	}

	pipe := r.client.Pipeline()
	cmds := make([]*redis.IntCmd, len(txHashes))
	for i, h := range txHashes {
		cmds[i] = pipe.Exists(ctx, seenKey(partition, h))
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, fmt.Errorf("failed to check seen transactions: %w", err)
	}
	for i, cmd := range cmds {
		if cmd.Val() > 0 {
			seen[txHashes[i]] = struct{}{}
		}
	}
	return seen, nil
}

func (r *RedisDeduplicator) Mark(ctx context.Context, partition string, txHashes []string) error {
	if len(txHashes) == 0 {
		return nil
	}
	pipe := r.client.Pipeline()
	for _, h := range txHashes {
		pipe.Set(ctx, seenKey(partition, h), 1, r.ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to mark transactions as seen: %w", err)
	}
	return nil
}

func (r *RedisDeduplicator) Close() error {
	return r.client.Close()
}
