package events

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/skinsight/review-console/internal/application/review"
)

type publisher interface {
	Publish(ctx context.Context, channel string, message interface{}) *redis.IntCmd
}

// RedisPublisher announces verified scans on a pub/sub channel.
type RedisPublisher struct {
	client  publisher
	channel string
	log     zerolog.Logger
}

// NewRedisPublisher connects to url (redis://...) and pings it.
func NewRedisPublisher(ctx context.Context, url, channel string, log zerolog.Logger) (*RedisPublisher, *redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}
	return &RedisPublisher{client: client, channel: channel, log: log}, client, nil
}

type verifiedMessage struct {
	Type string `json:"type"`
	review.VerifiedEvent
}

func (p *RedisPublisher) PublishVerified(ctx context.Context, ev review.VerifiedEvent) error {
	payload, err := json.Marshal(verifiedMessage{Type: "scan.verified", VerifiedEvent: ev})
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}
	n, err := p.client.Publish(ctx, p.channel, payload).Result()
	if err != nil {
		return err
	}
	p.log.Debug().Int64("analysis_id", int64(ev.AnalysisID)).Int64("receivers", n).Msg("scan.verified published")
	return nil
}

// Nop discards events; used when redis is not configured.
type Nop struct{}

func (Nop) PublishVerified(context.Context, review.VerifiedEvent) error { return nil }
