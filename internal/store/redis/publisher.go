// Package redis publishes completed filter runs for downstream
// consumers: a per-run record stream, a latest-summary key per symbol,
// and a pub/sub announcement. Every call goes through a circuit breaker
// so a dead Redis degrades to fast failures instead of stalling runs.
package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	goredis "github.com/go-redis/redis/v8"
	"github.com/rs/zerolog/log"
	"github.com/sony/gobreaker"

	"trendfilter/internal/model"
)

const (
	defaultStreamMaxLen = 10000
	latestTTL           = 24 * time.Hour

	// AnnounceChannel carries one summary JSON per completed run.
	AnnounceChannel = "pub:filt:run"
)

// Config configures the run publisher.
type Config struct {
	Addr         string
	Password     string
	DB           int
	StreamMaxLen int64 // per-run record stream cap; 0 means default
}

// Publisher writes completed runs to Redis.
type Publisher struct {
	client  *goredis.Client
	breaker *gobreaker.CircuitBreaker
	maxLen  int64

	// OnBreakerChange is called on breaker state transitions (optional).
	OnBreakerChange func(from, to gobreaker.State)
}

var _ model.RunPublisher = (*Publisher)(nil)

// New connects to Redis and pings it before returning a Publisher.
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

	log.Info().Str("addr", cfg.Addr).Msg("redis connected")
	return newPublisher(client, cfg), nil
}

func newPublisher(client *goredis.Client, cfg Config) *Publisher {
	p := &Publisher{client: client, maxLen: cfg.StreamMaxLen}
	if p.maxLen <= 0 {
		p.maxLen = defaultStreamMaxLen
	}
	p.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:    "redis-publish",
		Timeout: 30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 3
		},
		OnStateChange: func(_ string, from, to gobreaker.State) {
			log.Warn().Str("from", from.String()).Str("to", to.String()).Msg("redis breaker state change")
			if p.OnBreakerChange != nil {
				p.OnBreakerChange(from, to)
			}
		},
	})
	return p
}

// Client exposes the underlying client for health checks.
func (p *Publisher) Client() *goredis.Client { return p.client }

// StreamKey returns the record stream key for a run.
func StreamKey(runID string) string { return "filt:records:" + runID }

// LatestKey returns the latest-summary key for a symbol.
func LatestKey(symbol string) string { return "filt:run:latest:" + symbol }

// PublishRun streams every record of a completed run, updates the
// symbol's latest-summary key, and announces the run on pub/sub. All
// commands ride one pipeline behind the breaker.
func (p *Publisher) PublishRun(ctx context.Context, sum model.RunSummary, records []model.FilterRecord) error {
	sumJSON, err := json.Marshal(sum)
	if err != nil {
		return fmt.Errorf("marshal run summary: %w", err)
	}

	start := time.Now()
	_, err = p.breaker.Execute(func() (interface{}, error) {
		pipe := p.client.Pipeline()
		stream := StreamKey(sum.RunID)
		for i := range records {
			pipe.XAdd(ctx, &goredis.XAddArgs{
				Stream: stream,
				MaxLen: p.maxLen,
				Approx: true,
				Values: map[string]interface{}{"data": string(records[i].JSON())},
			})
		}
		pipe.Set(ctx, LatestKey(sum.Symbol), string(sumJSON), latestTTL)
		pipe.Publish(ctx, AnnounceChannel, string(sumJSON))
		_, err := pipe.Exec(ctx)
		return nil, err
	})
	if err != nil {
		return fmt.Errorf("redis publish run %s: %w", sum.RunID, err)
	}

	log.Debug().Str("run_id", sum.RunID).Int("records", len(records)).
		Dur("took", time.Since(start)).Msg("published run")
	return nil
}

// Close closes the Redis client.
func (p *Publisher) Close() error {
	return p.client.Close()
}
