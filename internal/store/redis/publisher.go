// Package redis publishes committed indicator rows to Redis.
package redis

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	goredis "github.com/go-redis/redis/v8"

	"github.com/saidmurad/cryptobot-sub000/internal/model"
)

const (
	defaultStreamMaxLen = 5000
	defaultLatestTTL    = 48 * time.Hour
)

// Config configures the Redis publisher.
type Config struct {
	Addr     string // e.g. "localhost:6379"
	Password string
	DB       int
}

// StreamKey is the per-series stream: "ind:row:1h:BTC/USDT".
func StreamKey(inst model.Instrument, tf model.Timeframe) string {
	return "ind:row:" + tf.String() + ":" + string(inst)
}

// Channel is the per-series Pub/Sub channel: "pub:row:1h:BTC/USDT".
func Channel(inst model.Instrument, tf model.Timeframe) string {
	return "pub:row:" + tf.String() + ":" + string(inst)
}

// LatestKey holds the newest row of a series.
func LatestKey(inst model.Instrument, tf model.Timeframe) string {
	return "ind:latest:" + tf.String() + ":" + string(inst)
}

// Publisher implements model.RowSink with XADD + SET + PUBLISH per row.
type Publisher struct {
	client *goredis.Client
	maxLen int64
}

// New connects and pings the server.
func New(cfg Config) (*Publisher, error) {
	client := goredis.NewClient(&goredis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	slog.Info("redis connected", "addr", cfg.Addr)
	return NewWithClient(client), nil
}

// NewWithClient wraps an existing client.
func NewWithClient(client *goredis.Client) *Publisher {
	return &Publisher{client: client, maxLen: defaultStreamMaxLen}
}

// Client returns the underlying Redis client for health checks and the
// shared rate limiter.
func (p *Publisher) Client() *goredis.Client { return p.client }

// PublishRow writes the row in a single pipeline round trip.
func (p *Publisher) PublishRow(ctx context.Context, row model.IndicatorRow) error {
	data := string(row.JSON())

	pipe := p.client.Pipeline()
	pipe.XAdd(ctx, &goredis.XAddArgs{
		Stream: StreamKey(row.Instrument, row.Timeframe),
		MaxLen: p.maxLen,
		Approx: true,
		Values: map[string]interface{}{"data": data},
	})
	pipe.Set(ctx, LatestKey(row.Instrument, row.Timeframe), data, defaultLatestTTL)
	pipe.Publish(ctx, Channel(row.Instrument, row.Timeframe), data)

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis publish %s: %w", row.Key(), err)
	}
	return nil
}

// Latest returns the JSON of the newest published row, or "" if none.
func (p *Publisher) Latest(ctx context.Context, inst model.Instrument, tf model.Timeframe) (string, error) {
	v, err := p.client.Get(ctx, LatestKey(inst, tf)).Result()
	if err == goredis.Nil {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("redis GET latest: %w", err)
	}
	return v, nil
}

// Close closes the client.
func (p *Publisher) Close() error {
	return p.client.Close()
}
