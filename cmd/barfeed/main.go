// cmd/barfeed replays stored bars from SQLite into the Redis bar:{symbol}
// streams so a running sigengine can be exercised without a live data feed.
//
// Usage:
//
//	go run ./cmd/barfeed --config=config/config.example.yaml --speed=60 --from=1704067200
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"lorentzian-signals/config"
	"lorentzian-signals/internal/logger"
	"lorentzian-signals/internal/marketdata/replay"
	"lorentzian-signals/internal/model"
	"lorentzian-signals/internal/store/redis"
	sqlitestore "lorentzian-signals/internal/store/sqlite"
)

func main() {
	cfgPath := flag.String("config", "", "Path to YAML config (defaults when empty)")
	speed := flag.Float64("speed", 1, "Playback speed multiplier (0=max, 1=realtime)")
	fromTS := flag.Int64("from", 0, "Unix timestamp to start from (0=all)")
	symbolsFlag := flag.String("symbols", "", "Comma-separated symbols (default: config, then all stored)")
	flag.Parse()

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	log := logger.Init("barfeed", logger.ParseLevel(cfg.LogLevel))

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	reader, err := sqlitestore.NewReader(cfg.Infra.SQLitePath)
	if err != nil {
		log.Error("sqlite open failed", "error", err)
		os.Exit(1)
	}
	defer reader.Close()

	symbols := cfg.Symbols
	if *symbolsFlag != "" {
		symbols = strings.Split(*symbolsFlag, ",")
	}
	if len(symbols) == 0 {
		if symbols, err = reader.Symbols(); err != nil {
			log.Error("list symbols failed", "error", err)
			os.Exit(1)
		}
	}

	pub, err := redis.NewPublisher(ctx, cfg.Redis())
	if err != nil {
		log.Error("redis connect failed", "error", err)
		os.Exit(1)
	}
	defer pub.Close()

	n, err := feed(ctx, replay.New(reader), pub, symbols, *fromTS, *speed)
	if err != nil && ctx.Err() == nil {
		log.Error("feed failed", "error", err, "bars", n)
		os.Exit(1)
	}
	log.Info("feed complete", "bars", n, "symbols", len(symbols))
}

// feed replays bars into w, writing every timestamp's bars as one batch.
func feed(ctx context.Context, r *replay.Replayer, w model.BarWriter, symbols []string, fromTS int64, speed float64) (int, error) {
	ch := make(chan model.Bar, 1024)
	errCh := make(chan error, 1)
	go func() { errCh <- r.Run(ctx, symbols, fromTS, speed, ch) }()

	var (
		batch []model.Bar
		total int
	)
	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		if err := w.WriteBars(ctx, batch); err != nil {
			return err
		}
		total += len(batch)
		slog.Debug("fed bars", "component", "barfeed", "ts", batch[0].TS, "count", len(batch))
		batch = batch[:0]
		return nil
	}

	for b := range ch {
		if len(batch) > 0 && !b.TS.Equal(batch[0].TS) {
			if err := flush(); err != nil {
				return total, err
			}
		}
		batch = append(batch, b)
	}
	if err := flush(); err != nil {
		return total, err
	}
	return total, <-errCh
}
