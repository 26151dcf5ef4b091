// cmd/sigengine consumes live bars from Redis streams, runs the per-symbol
// Lorentzian pipelines and fans signals out to Redis, Kafka, SQLite, the
// WebSocket gateway and the paper executor.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"lorentzian-signals/config"
	"lorentzian-signals/internal/bus"
	"lorentzian-signals/internal/execution"
	"lorentzian-signals/internal/gateway"
	"lorentzian-signals/internal/kernel"
	"lorentzian-signals/internal/logger"
	"lorentzian-signals/internal/marketdata/resample"
	"lorentzian-signals/internal/metrics"
	"lorentzian-signals/internal/model"
	"lorentzian-signals/internal/notification"
	"lorentzian-signals/internal/portfolio"
	"lorentzian-signals/internal/store/kafka"
	"lorentzian-signals/internal/store/redis"
	sqlitestore "lorentzian-signals/internal/store/sqlite"
	"lorentzian-signals/internal/strategy"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

func main() {
	cfgPath := flag.String("config", "", "Path to YAML config (defaults when empty)")
	flag.Parse()

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	log := logger.Init("sigengine", logger.ParseLevel(cfg.LogLevel))

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, cfg, log); err != nil {
		log.Error("sigengine failed", "error", err)
		os.Exit(1)
	}
	log.Info("sigengine stopped")
}

func run(ctx context.Context, cfg *config.Config, log *slog.Logger) error {
	if len(cfg.Symbols) == 0 {
		return fmt.Errorf("no symbols configured (set symbols or SYMBOLS)")
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.NewMetrics(reg)
	health := metrics.NewHealthStatus(true, true)

	// --- Storage ---
	db, err := sqlitestore.New(sqlitestore.WriterConfig{DBPath: cfg.Infra.SQLitePath})
	if err != nil {
		return fmt.Errorf("sqlite open: %w", err)
	}
	defer db.Close()
	history, err := sqlitestore.NewReader(cfg.Infra.SQLitePath)
	if err != nil {
		return fmt.Errorf("sqlite reader: %w", err)
	}
	defer history.Close()

	pub, err := redis.NewPublisher(ctx, cfg.Redis())
	if err != nil {
		return fmt.Errorf("redis publisher: %w", err)
	}
	defer pub.Close()
	pub.Breaker().OnStateChange = func(_, to redis.State) {
		m.RedisCircuitBreakerState.Set(float64(to))
	}

	consumer, err := redis.NewConsumer(ctx, cfg.Redis(), cfg.Infra.RedisStartID)
	if err != nil {
		return fmt.Errorf("redis consumer: %w", err)
	}
	defer consumer.Close()
	consumer.OnReconnect = func(error, time.Duration) {
		m.ConsumerReconnects.Inc()
	}

	var producer *kafka.Producer
	if kcfg, ok := cfg.Kafka(); ok {
		if producer, err = kafka.NewProducer(kcfg); err != nil {
			return fmt.Errorf("kafka producer: %w", err)
		}
		defer producer.Close()
	}

	// --- Pipelines ---
	registry := strategy.NewRegistry(cfg.Strategy())
	risk := portfolio.NewRiskManager(cfg.RiskModel())
	var ds *resample.Resampler
	if cfg.Features.UseDownsampling {
		ds = resample.New(cfg.Features.DownsampleFactor)
	}
	for _, s := range cfg.Symbols {
		if err := registry.Add(s); err != nil {
			return err
		}
		risk.AddSymbol(s)
		if err := warmup(history, registry, ds, s); err != nil {
			return err
		}
	}

	alerts, err := newDispatcher(cfg.Alerts)
	if err != nil {
		return err
	}

	journal, err := execution.NewJournal(cfg.Infra.SQLitePath)
	if err != nil {
		return fmt.Errorf("journal open: %w", err)
	}
	defer journal.Close()
	pf := portfolio.New(cfg.Sizing.InitialCash)
	pnl := portfolio.NewPnLTracker()
	exec := execution.NewPaperExecutor(cfg.Execution(), pf, pnl, instrumentedRisk{risk, m, alerts}, journal, 256)

	engine := strategy.NewEngine(registry, cfg.Infra.SignalBuffer)
	engine.Observe = func(bar model.Bar, sig *strategy.Signal, elapsed time.Duration) {
		m.BarsTotal.WithLabelValues(bar.Symbol).Inc()
		m.PipelineDur.Observe(elapsed.Seconds())
		health.SetLastBarTime(bar.TS)
		k, _ := registry.Kernel(bar.Symbol)
		exec.OnBar(bar, k)
		if sig == nil {
			m.BarsNotReady.Inc()
			return
		}
		m.ObserveSignal(sig)
	}

	// --- Fan-out ---
	fan := bus.New[strategy.Signal](cfg.Infra.SignalBuffer)
	redisCh := fan.Subscribe("redis")
	sqliteCh := fan.Subscribe("sqlite")
	hubCh := fan.Subscribe("gateway")
	execCh := fan.Subscribe("paper")
	var alertCh <-chan strategy.Signal
	if alerts != nil {
		alertCh = fan.Subscribe("alerts")
	}
	var kafkaCh <-chan strategy.Signal
	if producer != nil {
		kafkaCh = fan.Subscribe("kafka")
	}

	hub := gateway.NewHub()
	hub.OnClientCount = func(n int) { m.WSClients.Set(float64(n)) }

	srv, mux := metrics.NewServer(cfg.Infra.MetricsAddr, reg, health)
	gateway.RegisterRoutes(mux, hub, gateway.Routes{
		History: history,
		Kernels: registry.KernelStates,
	})
	srv.Start()

	health.StartLivenessChecker(ctx, pub.Client(), db.DB(), 10*time.Second)

	// --- Run ---
	barCh := make(chan model.Bar, 1000)
	rawCh := barCh
	if ds != nil {
		rawCh = make(chan model.Bar, 1000)
		go ds.Run(ctx, rawCh, barCh)
	}
	go func() {
		defer close(rawCh)
		if err := consumer.ConsumeBars(ctx, cfg.Symbols, rawCh); err != nil && ctx.Err() == nil {
			log.Error("bar consumer stopped", "error", err)
		}
	}()

	go engine.Run(ctx, barCh)
	go fan.Run(ctx, engine.Signals())
	go pub.Run(ctx, redisCh)
	go db.RunSignals(ctx, sqliteCh)
	go hub.Run(ctx, hubCh)
	go exec.Run(ctx, execCh, registry.KernelStates)
	if producer != nil {
		go producer.Run(ctx, kafkaCh)
	}
	if alerts != nil {
		go alerts.Run(ctx, alertCh)
	}
	go observeFills(ctx, exec, pf, pnl, m)

	log.Info("sigengine started",
		"symbols", cfg.Symbols,
		"metrics_addr", cfg.Infra.MetricsAddr,
		"kafka", producer != nil,
		"alerts", alerts != nil,
	)

	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			log.Info("shutting down")
			shutdownCtx, done := context.WithTimeout(context.Background(), 5*time.Second)
			srv.Stop(shutdownCtx)
			done()
			return nil
		case <-ticker.C:
			m.RedisPendingSignals.Set(float64(pub.Pending()))
			m.SignalsDropped.Set(float64(engine.Dropped()))
			ready := 0
			states := registry.KernelStates()
			for _, k := range states {
				if k.Ready {
					ready++
				}
			}
			health.SetSymbols(registry.Len(), ready)
			for _, st := range fan.ChannelStats() {
				if st.Len == st.Cap {
					log.Warn("subscriber saturated", "subscriber", st.Name, "cap", st.Cap)
				}
			}
		}
	}
}

// warmup seeds a symbol's pipeline from stored history.
func warmup(reader model.BarReader, registry *strategy.Registry, ds *resample.Resampler, symbol string) error {
	bars, err := reader.ReadBars(symbol, 0)
	if err != nil {
		return fmt.Errorf("warm-up read %s: %w", symbol, err)
	}
	if ds != nil {
		merged := make([]model.Bar, 0, len(bars)/ds.Factor()+1)
		for _, b := range bars {
			if out, ok := ds.Process(b); ok {
				merged = append(merged, out)
			}
		}
		bars = merged
	}
	if err := registry.Warmup(symbol, bars); err != nil {
		return err
	}
	slog.Info("warmed up", "component", "sigengine", "symbol", symbol, "bars", len(bars))
	return nil
}

// newDispatcher builds the alert dispatcher; nil when no channel is configured.
func newDispatcher(cfg config.AlertsConfig) (*notification.Dispatcher, error) {
	if !cfg.Enabled() {
		return nil, nil
	}
	notifiers := []notification.Notifier{notification.NewLogNotifier()}
	if cfg.WebhookURL != "" {
		notifiers = append(notifiers, notification.NewWebhookNotifier(cfg.WebhookURL))
	}
	if cfg.TelegramToken != "" {
		tg, err := notification.NewTelegramNotifier(cfg.TelegramToken, cfg.TelegramChatID)
		if err != nil {
			return nil, err
		}
		notifiers = append(notifiers, tg)
	}
	return notification.NewDispatcher(cfg.PerMinute, notifiers...), nil
}

// instrumentedRisk reports every risk cycle to Prometheus and posts an alert
// when a rule fires.
type instrumentedRisk struct {
	*portfolio.RiskManager
	m      *metrics.Metrics
	alerts *notification.Dispatcher
}

func (r instrumentedRisk) Evaluate(targets []model.PositionTarget, snap model.PortfolioSnapshot, kernels map[string]kernel.Output) []model.PositionTarget {
	out := r.RiskManager.Evaluate(targets, snap, kernels)
	rep := r.RiskManager.LastReport()
	r.m.ObserveRisk(&rep)
	if r.alerts != nil {
		if a, ok := notification.RiskAlert(rep, time.Now().UTC()); ok && !r.alerts.Post(a) {
			slog.Warn("alert queue full, dropping risk alert", "component", "sigengine", "action", rep.Action)
		}
	}
	return out
}

func observeFills(ctx context.Context, exec *execution.PaperExecutor, pf *portfolio.Portfolio, pnl *portfolio.PnLTracker, m *metrics.Metrics) {
	for {
		select {
		case <-ctx.Done():
			return
		case f := <-exec.Fills():
			m.FillsTotal.WithLabelValues(string(f.Action)).Inc()
			s := pnl.GetSummary(pf)
			m.RealizedPnL.Set(s.RealizedPnL)
			m.PortfolioVal.Set(pf.TotalValue())
			m.OpenPositions.Set(float64(s.OpenPositions))
		}
	}
}
