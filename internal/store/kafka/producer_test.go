package kafka

import (
	"context"
	"errors"
	"testing"
	"time"

	"lorentzian-signals/internal/strategy"

	"github.com/segmentio/kafka-go"
)

type fakeWriter struct {
	msgs []kafka.Message
	err  error
}

func (f *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	if f.err != nil {
		return f.err
	}
	f.msgs = append(f.msgs, msgs...)
	return nil
}

func (f *fakeWriter) Close() error { return nil }

func TestNewProducer_Validation(t *testing.T) {
	if _, err := NewProducer(ProducerConfig{Topic: "signals"}); err == nil {
		t.Error("expected error without brokers")
	}
	if _, err := NewProducer(ProducerConfig{Brokers: []string{"localhost:9092"}}); err == nil {
		t.Error("expected error without topic")
	}
	p, err := NewProducer(ProducerConfig{Brokers: []string{"localhost:9092"}, Topic: "signals", Compression: "lz4"})
	if err != nil {
		t.Fatalf("NewProducer: %v", err)
	}
	p.Close()
}

func TestProducer_PublishKeysBySymbol(t *testing.T) {
	fw := &fakeWriter{}
	p := &Producer{w: fw, topic: "signals"}
	ts := time.Date(2024, 5, 6, 15, 0, 0, 0, time.UTC)

	err := p.Publish(context.Background(),
		strategy.Signal{Strategy: "lorentzian", Symbol: "AAPL", TS: ts, Action: strategy.ActionBuy},
		strategy.Signal{Strategy: "lorentzian", Symbol: "MSFT", TS: ts, Action: strategy.ActionSell},
	)
	if err != nil {
		t.Fatalf("Publish: %v", err)
	}
	if len(fw.msgs) != 2 {
		t.Fatalf("got %d messages, want 2", len(fw.msgs))
	}
	if string(fw.msgs[0].Key) != "AAPL" || string(fw.msgs[1].Key) != "MSFT" {
		t.Errorf("keys = %q, %q", fw.msgs[0].Key, fw.msgs[1].Key)
	}
	if !fw.msgs[0].Time.Equal(ts) {
		t.Errorf("message time = %v, want %v", fw.msgs[0].Time, ts)
	}
	if string(fw.msgs[1].Headers[0].Value) != "SELL" {
		t.Errorf("action header = %q", fw.msgs[1].Headers[0].Value)
	}

	if err := p.Publish(context.Background()); err != nil {
		t.Errorf("empty publish: %v", err)
	}
}

func TestProducer_PublishError(t *testing.T) {
	boom := errors.New("broker down")
	p := &Producer{w: &fakeWriter{err: boom}, topic: "signals"}
	err := p.Publish(context.Background(), strategy.Signal{Symbol: "AAPL"})
	if !errors.Is(err, boom) {
		t.Errorf("expected wrapped broker error, got %v", err)
	}
}

func TestParseCompression(t *testing.T) {
	tests := map[string]kafka.Compression{
		"gzip": kafka.Gzip,
		"ZSTD": kafka.Zstd,
		"":     0,
		"none": 0,
	}
	for in, want := range tests {
		if got := parseCompression(in); got != want {
			t.Errorf("parseCompression(%q) = %v, want %v", in, got, want)
		}
	}
}
