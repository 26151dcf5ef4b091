package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"lorentzian-signals/internal/model"

	"github.com/cenkalti/backoff/v4"
	goredis "github.com/go-redis/redis/v8"
)

var _ model.BarStream = (*Consumer)(nil)

// Consumer reads bars from bar:{symbol} streams with XREAD. It implements
// model.BarStream.
type Consumer struct {
	client  *goredis.Client
	startID string
	block   time.Duration
	log     *slog.Logger

	// OnReconnect is called after a failed read, before the backoff wait.
	OnReconnect func(err error, wait time.Duration)
}

// NewConsumer connects to Redis. startID is the stream ID reading begins
// after; "$" (the default) consumes only bars added from now on.
func NewConsumer(ctx context.Context, cfg Config, startID string) (*Consumer, error) {
	client, err := newClient(ctx, cfg)
	if err != nil {
		return nil, err
	}
	if startID == "" {
		startID = "$"
	}
	l := slog.Default().With("component", "redis-consumer")
	l.Info("connected", "addr", cfg.Addr, "start_id", startID)
	return &Consumer{client: client, startID: startID, block: 2 * time.Second, log: l}, nil
}

// ConsumeBars blocks reading bars for symbols into out until ctx is
// cancelled. Read errors are retried with exponential backoff. Bars that are
// not newer than the last bar delivered for their symbol are skipped.
func (c *Consumer) ConsumeBars(ctx context.Context, symbols []string, out chan<- model.Bar) error {
	if len(symbols) == 0 {
		return errors.New("consume bars: no symbols")
	}
	cursor := newStreamCursor(symbols, c.startID)
	lastTS := make(map[string]time.Time, len(symbols))

	b := backoff.NewExponentialBackOff()
	b.MaxElapsedTime = 0
	b.MaxInterval = 30 * time.Second

	for {
		var results []goredis.XStream
		read := func() error {
			res, err := c.client.XRead(ctx, &goredis.XReadArgs{
				Streams: cursor.args(),
				Count:   100,
				Block:   c.block,
			}).Result()
			if err == goredis.Nil {
				results = nil
				return nil
			}
			if err != nil {
				if ctx.Err() != nil {
					return backoff.Permanent(ctx.Err())
				}
				return err
			}
			results = res
			return nil
		}
		notify := func(err error, wait time.Duration) {
			c.log.Warn("xread failed, retrying", "error", err, "wait", wait)
			if c.OnReconnect != nil {
				c.OnReconnect(err, wait)
			}
		}
		if err := backoff.RetryNotify(read, backoff.WithContext(b, ctx), notify); err != nil {
			return err
		}

		for _, stream := range results {
			for _, msg := range stream.Messages {
				cursor.advance(stream.Stream, msg.ID)
				bar, err := decodeBar(msg.Values)
				if err != nil {
					c.log.Warn("skipping malformed bar", "stream", stream.Stream, "id", msg.ID, "error", err)
					continue
				}
				if prev, ok := lastTS[bar.Symbol]; ok && !bar.TS.After(prev) {
					continue
				}
				lastTS[bar.Symbol] = bar.TS
				select {
				case out <- bar:
				case <-ctx.Done():
					return ctx.Err()
				}
			}
		}
	}
}

// Close closes the Redis client.
func (c *Consumer) Close() error {
	return c.client.Close()
}

// streamCursor tracks the last delivered ID per stream in XREAD argument order.
type streamCursor struct {
	keys []string
	ids  []string
	idx  map[string]int
}

func newStreamCursor(symbols []string, startID string) *streamCursor {
	c := &streamCursor{idx: make(map[string]int, len(symbols))}
	for _, s := range symbols {
		key := "bar:" + s
		if _, dup := c.idx[key]; dup {
			continue
		}
		c.idx[key] = len(c.keys)
		c.keys = append(c.keys, key)
		c.ids = append(c.ids, startID)
	}
	return c
}

func (c *streamCursor) args() []string {
	out := make([]string, 0, 2*len(c.keys))
	out = append(out, c.keys...)
	return append(out, c.ids...)
}

func (c *streamCursor) advance(stream, id string) {
	if i, ok := c.idx[stream]; ok {
		c.ids[i] = id
	}
}

func decodeBar(values map[string]interface{}) (model.Bar, error) {
	var bar model.Bar
	data, ok := values["data"].(string)
	if !ok {
		return bar, errors.New("missing data field")
	}
	if err := json.Unmarshal([]byte(data), &bar); err != nil {
		return bar, fmt.Errorf("unmarshal bar: %w", err)
	}
	if bar.Symbol == "" {
		return bar, errors.New("bar without symbol")
	}
	return bar, nil
}
