// Package transport moves nfdiff messages over Redis: the diffs and verdicts
// pub/sub channels, the capped ingest list and the ground-truth hashes written
// by the load generator.
package transport

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/dshills/nfdiff/internal/config"
)

// Client wraps a Redis connection with the key layout from RedisConfig.
type Client struct {
	rdb  *redis.Client
	keys config.RedisConfig
	now  func() time.Time
}

// Open connects to Redis and verifies the connection with PING.
func Open(ctx context.Context, cfg config.RedisConfig) (*Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("transport: redis %s: %w", cfg.Addr, err)
	}
	return NewClient(rdb, cfg), nil
}

// NewClient wraps an existing go-redis client.
func NewClient(rdb *redis.Client, cfg config.RedisConfig) *Client {
	return &Client{rdb: rdb, keys: cfg, now: time.Now}
}

// Close releases the connection pool.
func (c *Client) Close() error {
	return c.rdb.Close()
}

// Ping reports whether Redis answers.
func (c *Client) Ping(ctx context.Context) error {
	return c.rdb.Ping(ctx).Err()
}

// Subscription is an open pub/sub subscription on one channel.
type Subscription struct {
	ps *redis.PubSub
}

// Subscribe opens a subscription on channel and waits for the server to
// confirm it, so an unreachable server is reported here.
func (c *Client) Subscribe(ctx context.Context, channel string) (*Subscription, error) {
	ps := c.rdb.Subscribe(ctx, channel)
	if _, err := ps.Receive(ctx); err != nil {
		_ = ps.Close()
		return nil, fmt.Errorf("transport: subscribe %s: %w", channel, err)
	}
	return &Subscription{ps: ps}, nil
}

// SubscribeDiffs subscribes to the configured diffs channel.
func (c *Client) SubscribeDiffs(ctx context.Context) (*Subscription, error) {
	return c.Subscribe(ctx, c.keys.DiffsChannel)
}

// SubscribeVerdicts subscribes to the configured verdicts channel.
func (c *Client) SubscribeVerdicts(ctx context.Context) (*Subscription, error) {
	return c.Subscribe(ctx, c.keys.VerdictsChannel)
}

// Receive blocks until the next message arrives and returns its payload.
func (s *Subscription) Receive(ctx context.Context) ([]byte, error) {
	msg, err := s.ps.ReceiveMessage(ctx)
	if err != nil {
		return nil, fmt.Errorf("transport: receive: %w", err)
	}
	return []byte(msg.Payload), nil
}

// Close ends the subscription.
func (s *Subscription) Close() error {
	return s.ps.Close()
}

// Publish sends a verdict record to the verdicts channel.
func (c *Client) Publish(ctx context.Context, payload []byte) error {
	if err := c.rdb.Publish(ctx, c.keys.VerdictsChannel, payload).Err(); err != nil {
		return fmt.Errorf("transport: publish %s: %w", c.keys.VerdictsChannel, err)
	}
	return nil
}

// Push records a raw diff envelope: it is prepended to the ingest list, the
// list is trimmed to its cap and the envelope is published on the diffs
// channel, all in one transaction.
func (c *Client) Push(ctx context.Context, payload []byte) error {
	_, err := c.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.LPush(ctx, c.keys.DiffsList, payload)
		pipe.LTrim(ctx, c.keys.DiffsList, 0, c.keys.DiffsListCap-1)
		pipe.Publish(ctx, c.keys.DiffsChannel, payload)
		return nil
	})
	if err != nil {
		return fmt.Errorf("transport: push %s: %w", c.keys.DiffsList, err)
	}
	return nil
}

// Latest returns up to n of the most recently pushed envelopes, newest first.
func (c *Client) Latest(ctx context.Context, n int64) ([][]byte, error) {
	if n <= 0 {
		return [][]byte{}, nil
	}
	items, err := c.rdb.LRange(ctx, c.keys.DiffsList, 0, n-1).Result()
	if err != nil {
		return nil, fmt.Errorf("transport: latest %s: %w", c.keys.DiffsList, err)
	}
	out := make([][]byte, len(items))
	for i, it := range items {
		out[i] = []byte(it)
	}
	return out, nil
}

// Truth is the ground-truth label the load generator stored for one NF
// instance.
type Truth struct {
	Malicious int
	Timestamp int64
}

// Truth looks up the label for id. A missing label is benign (0) and a
// missing timestamp defaults to the current time.
func (c *Client) Truth(ctx context.Context, id string) (Truth, error) {
	t := Truth{Timestamp: c.now().Unix()}

	mal, err := c.rdb.HGet(ctx, c.keys.TruthHash, id).Result()
	switch {
	case errors.Is(err, redis.Nil):
	case err != nil:
		return Truth{}, fmt.Errorf("transport: truth %s: %w", id, err)
	default:
		if t.Malicious, err = parseLabel(mal); err != nil {
			return Truth{}, fmt.Errorf("transport: truth %s: %w", id, err)
		}
	}

	ts, err := c.rdb.HGet(ctx, c.keys.TruthTSHash, id).Result()
	switch {
	case errors.Is(err, redis.Nil):
	case err != nil:
		return Truth{}, fmt.Errorf("transport: truth_ts %s: %w", id, err)
	default:
		if t.Timestamp, err = parseTimestamp(ts); err != nil {
			return Truth{}, fmt.Errorf("transport: truth_ts %s: %w", id, err)
		}
	}
	return t, nil
}

func parseLabel(raw string) (int, error) {
	n, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return 0, fmt.Errorf("label %q is not an integer", raw)
	}
	return n, nil
}

// parseTimestamp accepts integral or fractional epoch seconds.
func parseTimestamp(raw string) (int64, error) {
	f, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, fmt.Errorf("timestamp %q is not a number", raw)
	}
	return int64(f), nil
}
