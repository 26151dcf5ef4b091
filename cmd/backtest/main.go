// cmd/backtest replays stored bars from SQLite through the signal pipeline,
// a paper executor and the adaptive risk manager, then prints a summary.
//
// Usage:
//
//	go run ./cmd/backtest --config=config/config.example.yaml --db=data/bars.db --from=1704067200
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"lorentzian-signals/config"
	"lorentzian-signals/internal/execution"
	"lorentzian-signals/internal/logger"
	"lorentzian-signals/internal/marketdata/replay"
	"lorentzian-signals/internal/marketdata/resample"
	"lorentzian-signals/internal/model"
	"lorentzian-signals/internal/portfolio"
	sqlitestore "lorentzian-signals/internal/store/sqlite"
	"lorentzian-signals/internal/strategy"
)

func main() {
	cfgPath := flag.String("config", "", "Path to YAML config (defaults when empty)")
	dbPath := flag.String("db", "", "Path to SQLite database (overrides config)")
	speed := flag.Float64("speed", 0, "Playback speed multiplier (0=max, 1=realtime, 100=100x)")
	fromTS := flag.Int64("from", 0, "Unix timestamp to start replay from; earlier bars seed warm-up (0=all)")
	symbolsFlag := flag.String("symbols", "", "Comma-separated symbols (default: config, then all stored)")
	journalPath := flag.String("journal", "", "Optional SQLite path for the fill journal")
	record := flag.Bool("record", false, "Persist emitted signals to the database")
	flag.Parse()

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	log := logger.Init("backtest", logger.ParseLevel(cfg.LogLevel))
	if *dbPath != "" {
		cfg.Infra.SQLitePath = *dbPath
	}

	if err := run(cfg, *fromTS, *speed, *symbolsFlag, *journalPath, *record); err != nil {
		log.Error("backtest failed", "error", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, fromTS int64, speed float64, symbolsFlag, journalPath string, record bool) error {
	reader, err := sqlitestore.NewReader(cfg.Infra.SQLitePath)
	if err != nil {
		return fmt.Errorf("sqlite open: %w", err)
	}
	defer reader.Close()

	symbols := splitSymbols(symbolsFlag)
	if len(symbols) == 0 {
		symbols = cfg.Symbols
	}
	if len(symbols) == 0 {
		if symbols, err = reader.Symbols(); err != nil {
			return fmt.Errorf("list symbols: %w", err)
		}
	}
	if len(symbols) == 0 {
		return fmt.Errorf("no symbols to replay in %s", cfg.Infra.SQLitePath)
	}

	registry := strategy.NewRegistry(cfg.Strategy())
	risk := portfolio.NewRiskManager(cfg.RiskModel())
	for _, s := range symbols {
		if err := registry.Add(s); err != nil {
			return err
		}
		risk.AddSymbol(s)
	}

	var ds *resample.Resampler
	if cfg.Features.UseDownsampling {
		ds = resample.New(cfg.Features.DownsampleFactor)
	}

	if fromTS > 0 {
		if err := warmup(reader, registry, ds, symbols, fromTS); err != nil {
			return err
		}
	}

	var journal execution.FillRecorder
	if journalPath != "" {
		j, err := execution.NewJournal(journalPath)
		if err != nil {
			return fmt.Errorf("journal open: %w", err)
		}
		defer j.Close()
		journal = j
	}

	pf := portfolio.New(cfg.Sizing.InitialCash)
	pnl := portfolio.NewPnLTracker()
	exec := execution.NewPaperExecutor(cfg.Execution(), pf, pnl, risk, journal, 0)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	barCh := make(chan model.Bar, 10000)
	replayErr := make(chan error, 1)
	go func() {
		replayErr <- replay.New(reader).Run(ctx, symbols, fromTS, speed, barCh)
	}()

	start := time.Now()
	var (
		bars, signals, newSignals int
		pending                   []strategy.Signal
		emitted                   []strategy.Signal
		curTS                     time.Time
	)
	flush := func() {
		exec.Cycle(pending, registry.KernelStates())
		pending = pending[:0]
	}

	for b := range barCh {
		if ds != nil {
			merged, ok := ds.Process(b)
			if !ok {
				continue
			}
			b = merged
		}
		if !curTS.IsZero() && !b.TS.Equal(curTS) {
			flush()
		}
		curTS = b.TS
		bars++

		sig := registry.OnBar(b)
		k, _ := registry.Kernel(b.Symbol)
		exec.OnBar(b, k)
		if sig == nil {
			continue
		}
		signals++
		if sig.IsNew {
			newSignals++
		}
		pending = append(pending, *sig)
		if record {
			emitted = append(emitted, *sig)
		}
	}
	flush()

	if err := <-replayErr; err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("replay: %w", err)
	}

	if record && len(emitted) > 0 {
		w, err := sqlitestore.New(sqlitestore.WriterConfig{DBPath: cfg.Infra.SQLitePath})
		if err != nil {
			return fmt.Errorf("sqlite writer: %w", err)
		}
		defer w.Close()
		if err := w.WriteSignals(context.Background(), emitted); err != nil {
			return err
		}
	}

	summary := pnl.GetSummary(pf)
	report := risk.LastReport()
	slog.Info("backtest complete", "bars", bars, "elapsed", time.Since(start).Round(time.Millisecond))

	fmt.Println()
	fmt.Println("╔══════════════════════════════════════════╗")
	fmt.Println("║            BACKTEST COMPLETE             ║")
	fmt.Println("╠══════════════════════════════════════════╣")
	fmt.Printf("║  Symbols:           %-20d ║\n", len(symbols))
	fmt.Printf("║  Bars processed:    %-20d ║\n", bars)
	fmt.Printf("║  Signals:           %-20d ║\n", signals)
	fmt.Printf("║  New signals:       %-20d ║\n", newSignals)
	fmt.Printf("║  Fills:             %-20d ║\n", len(exec.GetFills()))
	fmt.Printf("║  Wins / losses:     %-20s ║\n", fmt.Sprintf("%d / %d", summary.Wins, summary.Losses))
	fmt.Printf("║  Realized PnL:      %-20.2f ║\n", summary.RealizedPnL)
	fmt.Printf("║  Unrealized PnL:    %-20.2f ║\n", summary.UnrealizedPnL)
	fmt.Printf("║  Final value:       %-20.2f ║\n", pf.TotalValue())
	fmt.Printf("║  Peak value:        %-20.2f ║\n", risk.PeakValue())
	fmt.Printf("║  Last risk action:  %-20s ║\n", report.Action)
	fmt.Printf("║  Regime:            %-20.3f ║\n", report.Regime.Regime)
	fmt.Println("╚══════════════════════════════════════════╝")
	return nil
}

// warmup feeds every bar at or before fromTS to its symbol's pipeline.
func warmup(reader model.BarReader, registry *strategy.Registry, ds *resample.Resampler, symbols []string, fromTS int64) error {
	for _, s := range symbols {
		all, err := reader.ReadBars(s, 0)
		if err != nil {
			return fmt.Errorf("warm-up read %s: %w", s, err)
		}
		hist := make([]model.Bar, 0, len(all))
		for _, b := range all {
			if b.TS.Unix() > fromTS {
				break
			}
			if ds != nil {
				merged, ok := ds.Process(b)
				if !ok {
					continue
				}
				b = merged
			}
			hist = append(hist, b)
		}
		if err := registry.Warmup(s, hist); err != nil {
			return err
		}
		slog.Info("warmed up", "component", "backtest", "symbol", s, "bars", len(hist))
	}
	return nil
}

func splitSymbols(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
