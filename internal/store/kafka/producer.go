// Package kafka publishes signals to a Kafka topic, keyed by symbol so that
// every signal for one symbol lands on the same partition in order.
package kafka

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"lorentzian-signals/internal/strategy"

	"github.com/segmentio/kafka-go"
)

// ProducerConfig configures the signal producer.
type ProducerConfig struct {
	Brokers      []string
	Topic        string
	Compression  string // none, gzip, snappy, lz4, zstd
	BatchSize    int
	BatchTimeout time.Duration
	WriteTimeout time.Duration
}

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Producer wraps a kafka.Writer.
type Producer struct {
	w     messageWriter
	topic string
	log   *slog.Logger
}

// NewProducer builds a producer. No connection is made until the first write.
func NewProducer(cfg ProducerConfig) (*Producer, error) {
	if len(cfg.Brokers) == 0 {
		return nil, errors.New("kafka: brokers are required")
	}
	if cfg.Topic == "" {
		return nil, errors.New("kafka: topic is required")
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 100
	}
	if cfg.BatchTimeout <= 0 {
		cfg.BatchTimeout = 200 * time.Millisecond
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = 10 * time.Second
	}
	w := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Topic:        cfg.Topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireAll,
		Compression:  parseCompression(cfg.Compression),
		MaxAttempts:  3,
		BatchSize:    cfg.BatchSize,
		BatchTimeout: cfg.BatchTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}
	l := slog.Default().With("component", "kafka")
	l.Info("producer ready", "brokers", strings.Join(cfg.Brokers, ","), "topic", cfg.Topic)
	return &Producer{w: w, topic: cfg.Topic, log: l}, nil
}

// Publish writes signals in one batch.
func (p *Producer) Publish(ctx context.Context, sigs ...strategy.Signal) error {
	if len(sigs) == 0 {
		return nil
	}
	msgs := make([]kafka.Message, len(sigs))
	for i := range sigs {
		msgs[i] = signalMessage(&sigs[i])
	}
	if err := p.w.WriteMessages(ctx, msgs...); err != nil {
		return fmt.Errorf("kafka write %s (%d signals): %w", p.topic, len(sigs), err)
	}
	return nil
}

// Run publishes signals from in until ctx is cancelled or in is closed.
// Write failures are logged and the signal is not retried.
func (p *Producer) Run(ctx context.Context, in <-chan strategy.Signal) {
	for {
		select {
		case <-ctx.Done():
			return
		case sig, ok := <-in:
			if !ok {
				return
			}
			if err := p.Publish(ctx, sig); err != nil {
				p.log.Error("publish failed", "symbol", sig.Symbol, "error", err)
			}
		}
	}
}

// Close flushes pending writes and closes the writer.
func (p *Producer) Close() error {
	return p.w.Close()
}

func signalMessage(s *strategy.Signal) kafka.Message {
	return kafka.Message{
		Key:   []byte(s.Symbol),
		Value: s.JSON(),
		Time:  s.TS,
		Headers: []kafka.Header{
			{Key: "action", Value: []byte(s.Action)},
			{Key: "strategy", Value: []byte(s.Strategy)},
		},
	}
}

func parseCompression(name string) kafka.Compression {
	switch strings.ToLower(name) {
	case "gzip":
		return kafka.Gzip
	case "snappy":
		return kafka.Snappy
	case "lz4":
		return kafka.Lz4
	case "zstd":
		return kafka.Zstd
	default:
		return 0
	}
}
