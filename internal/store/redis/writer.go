package redis

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"lorentzian-signals/internal/model"
	"lorentzian-signals/internal/strategy"

	goredis "github.com/go-redis/redis/v8"
)

const (
	defaultSignalMaxLen = 5000
	defaultBarMaxLen    = 12000
	defaultLatestTTL    = 30 * time.Minute
)

// Config configures the Redis connection shared by Publisher and Consumer.
type Config struct {
	Addr     string // e.g. "localhost:6379"
	Password string
	DB       int

	SignalMaxLen    int64         // approximate MAXLEN for signal:{symbol} streams
	BreakerFailures int           // consecutive failures before the breaker opens
	BreakerReset    time.Duration // time the breaker stays open before probing
	PendingMax      int           // signals buffered while the breaker is open
}

func newClient(ctx context.Context, cfg Config) (*goredis.Client, error) {
	client := goredis.NewClient(&goredis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return client, nil
}

var _ model.BarWriter = (*Publisher)(nil)

// Publisher writes signals to Redis: XADD on signal:{symbol}, SET of the
// latest signal and PUBLISH on pub:signal:{symbol}. Writes pass through a
// circuit breaker; while it is open signals are kept in a bounded buffer and
// replayed once a publish succeeds again.
type Publisher struct {
	client  *goredis.Client
	cb      *CircuitBreaker
	pending *pendingBuffer
	maxLen  int64
	log     *slog.Logger
}

// NewPublisher connects to Redis and pings the server.
func NewPublisher(ctx context.Context, cfg Config) (*Publisher, error) {
	client, err := newClient(ctx, cfg)
	if err != nil {
		return nil, err
	}
	p := newPublisher(client, cfg)
	p.log.Info("connected", "addr", cfg.Addr)
	return p, nil
}

func newPublisher(client *goredis.Client, cfg Config) *Publisher {
	maxLen := cfg.SignalMaxLen
	if maxLen <= 0 {
		maxLen = defaultSignalMaxLen
	}
	failures := cfg.BreakerFailures
	if failures <= 0 {
		failures = 5
	}
	reset := cfg.BreakerReset
	if reset <= 0 {
		reset = 10 * time.Second
	}
	l := slog.Default().With("component", "redis-publisher")
	cb := NewCircuitBreaker(failures, reset)
	cb.OnStateChange = func(from, to State) {
		l.Warn("circuit breaker transition", "from", from.String(), "to", to.String())
	}
	return &Publisher{
		client:  client,
		cb:      cb,
		pending: newPendingBuffer(cfg.PendingMax),
		maxLen:  maxLen,
		log:     l,
	}
}

// Client returns the underlying Redis client for health checks.
func (p *Publisher) Client() *goredis.Client { return p.client }

// Breaker exposes the publish circuit breaker.
func (p *Publisher) Breaker() *CircuitBreaker { return p.cb }

// Pending returns the number of signals waiting for replay.
func (p *Publisher) Pending() int { return p.pending.Len() }

// Ping checks the connection.
func (p *Publisher) Ping(ctx context.Context) error {
	return p.client.Ping(ctx).Err()
}

// Publish writes one signal. A signal that cannot be written is buffered
// and nil is returned unless the buffer had to drop an older signal.
func (p *Publisher) Publish(ctx context.Context, sig *strategy.Signal) error {
	err := p.cb.Execute(func() error {
		return p.writeSignals(ctx, []strategy.Signal{*sig})
	})
	if err != nil {
		if dropped := p.pending.Add(*sig); dropped {
			return fmt.Errorf("publish %s: pending buffer full, oldest signal dropped: %w", sig.Symbol, err)
		}
		return nil
	}
	if p.pending.Len() > 0 {
		p.flush(ctx)
	}
	return nil
}

// Run publishes signals from in until ctx is cancelled or in is closed.
func (p *Publisher) Run(ctx context.Context, in <-chan strategy.Signal) {
	for {
		select {
		case <-ctx.Done():
			return
		case sig, ok := <-in:
			if !ok {
				return
			}
			if err := p.Publish(ctx, &sig); err != nil {
				p.log.Error("publish failed", "symbol", sig.Symbol, "error", err)
			}
		}
	}
}

func (p *Publisher) flush(ctx context.Context) {
	batch := p.pending.Drain()
	if len(batch) == 0 {
		return
	}
	err := p.cb.Execute(func() error { return p.writeSignals(ctx, batch) })
	if err != nil {
		for _, s := range batch {
			p.pending.Add(s)
		}
		p.log.Warn("replay of buffered signals failed", "count", len(batch), "error", err)
		return
	}
	p.log.Info("replayed buffered signals", "count", len(batch))
}

func (p *Publisher) writeSignals(ctx context.Context, sigs []strategy.Signal) error {
	pipe := p.client.Pipeline()
	for i := range sigs {
		s := &sigs[i]
		data := string(s.JSON())
		pipe.XAdd(ctx, &goredis.XAddArgs{
			Stream: s.StreamKey(),
			MaxLen: p.maxLen,
			Approx: true,
			Values: map[string]interface{}{"data": data},
		})
		pipe.Set(ctx, "signal:latest:"+s.Symbol, data, defaultLatestTTL)
		pipe.Publish(ctx, pubChannel(s.StreamKey()), data)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("signal pipeline (%d signals): %w", len(sigs), err)
	}
	return nil
}

// WriteBars appends bars to their bar:{symbol} streams. Used by feeders and
// tests to drive a live Consumer.
func (p *Publisher) WriteBars(ctx context.Context, bars []model.Bar) error {
	if len(bars) == 0 {
		return nil
	}
	pipe := p.client.Pipeline()
	for i := range bars {
		b := &bars[i]
		pipe.XAdd(ctx, &goredis.XAddArgs{
			Stream: b.StreamKey(),
			MaxLen: defaultBarMaxLen,
			Approx: true,
			Values: map[string]interface{}{"data": string(b.JSON())},
		})
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("bar pipeline (%d bars): %w", len(bars), err)
	}
	return nil
}

// Close closes the Redis client.
func (p *Publisher) Close() error {
	return p.client.Close()
}

func pubChannel(streamKey string) string { return "pub:" + streamKey }
