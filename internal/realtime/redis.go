package realtime

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/smartdom/crm-api/internal/config"
	"go.uber.org/zap"
)

// NewRedisClient connects to Redis and verifies the connection
func NewRedisClient(ctx context.Context, cfg *config.RedisConfig) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     10,
		MinIdleConns: 2,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	return client, nil
}

// RedisPublisher publishes events on a Redis pub/sub channel so every API instance sees them
type RedisPublisher struct {
	client  redis.UniversalClient
	channel string
}

func NewRedisPublisher(client redis.UniversalClient, channel string) *RedisPublisher {
	return &RedisPublisher{client: client, channel: channel}
}

func (p *RedisPublisher) Publish(ctx context.Context, event Event) error {
	payload, err := encode(event)
	if err != nil {
		return fmt.Errorf("failed to encode event: %w", err)
	}
	if err := p.client.Publish(ctx, p.channel, payload).Err(); err != nil {
		return fmt.Errorf("failed to publish event: %w", err)
	}
	return nil
}

// Relay forwards events from the Redis channel into hub until ctx is cancelled
func Relay(ctx context.Context, client redis.UniversalClient, channel string, hub *Hub, logger *zap.Logger) error {
	pubsub := client.Subscribe(ctx, channel)
	defer pubsub.Close()

	if _, err := pubsub.Receive(ctx); err != nil {
		return fmt.Errorf("failed to subscribe to %s: %w", channel, err)
	}
	logger.Info("realtime relay subscribed", zap.String("channel", channel))

	messages := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-messages:
			if !ok {
				return nil
			}
			event, err := decode(msg.Payload)
			if err != nil {
				logger.Warn("dropping malformed realtime event", zap.Error(err))
				continue
			}
			_ = hub.Publish(ctx, event)
		}
	}
}

// LoggingPublisher wraps a publisher and logs failures instead of returning them, so a
// broker outage never fails a committed mutation
type LoggingPublisher struct {
	next   Publisher
	logger *zap.Logger
}

func NewLoggingPublisher(next Publisher, logger *zap.Logger) *LoggingPublisher {
	return &LoggingPublisher{next: next, logger: logger}
}

func (p *LoggingPublisher) Publish(ctx context.Context, event Event) error {
	if err := p.next.Publish(ctx, event); err != nil {
		p.logger.Warn("failed to publish change event",
			zap.String("entity", event.Entity),
			zap.String("id", event.ID.String()),
			zap.String("action", event.Action),
			zap.Error(err),
		)
	}
	return nil
}
