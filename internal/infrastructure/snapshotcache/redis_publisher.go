package snapshotcache

import (
	"context"
	"fmt"
	"time"

	jsoniter "github.com/json-iterator/go"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"portfolio_monitor/internal/domain/entity"
	"portfolio_monitor/internal/infrastructure/configloader"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

const writeTimeout = 5 * time.Second

// Commander is the subset of the redis client the publisher needs.
type Commander interface {
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
	Publish(ctx context.Context, channel string, message interface{}) *redis.IntCmd
}

// RedisPublisher mirrors every published snapshot into Redis and announces its summary.
type RedisPublisher struct {
	client  Commander
	key     string
	channel string
	ttl     time.Duration
	logger  *zap.Logger
}

// Connect opens a client and verifies it with PING.
func Connect(ctx context.Context, cfg configloader.RedisConfig) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	pingCtx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping %s: %w", cfg.Addr, err)
	}
	return client, nil
}

// NewRedisPublisher creates a publisher writing to cfg.Key and cfg.Channel.
func NewRedisPublisher(client Commander, cfg configloader.RedisConfig, logger *zap.Logger) *RedisPublisher {
	return &RedisPublisher{
		client:  client,
		key:     cfg.Key,
		channel: cfg.Channel,
		ttl:     time.Duration(cfg.TTLSeconds) * time.Second,
		logger:  logger.Named("RedisPublisher"),
	}
}

// OnSnapshot stores the full snapshot under the key and publishes the summary.
// Errors are logged only.
func (p *RedisPublisher) OnSnapshot(ctx context.Context, snapshot *entity.PortfolioSnapshot) {
	if snapshot == nil {
		return
	}
	ctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()

	full, err := json.Marshal(snapshot)
	if err != nil {
		p.logger.Error("Failed to encode snapshot", zap.Error(err))
		return
	}
	if err := p.client.Set(ctx, p.key, full, p.ttl).Err(); err != nil {
		p.logger.Warn("Failed to store snapshot in redis", zap.String("key", p.key), zap.Error(err))
	}

	summary, err := json.Marshal(snapshot.Summary())
	if err != nil {
		p.logger.Error("Failed to encode summary", zap.Error(err))
		return
	}
	receivers, err := p.client.Publish(ctx, p.channel, summary).Result()
	if err != nil {
		p.logger.Warn("Failed to publish summary", zap.String("channel", p.channel), zap.Error(err))
		return
	}
	p.logger.Debug("Published snapshot summary",
		zap.String("cycleId", snapshot.CycleID),
		zap.Int64("receivers", receivers))
}
