package metrics

import (
	"context"
	"database/sql"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"lorentzian-signals/internal/portfolio"
	"lorentzian-signals/internal/strategy"

	goredis "github.com/go-redis/redis/v8"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the Prometheus collectors for the signal engine.
type Metrics struct {
	BarsTotal       *prometheus.CounterVec // labels: symbol
	BarsNotReady    prometheus.Counter
	SignalsTotal    *prometheus.CounterVec // labels: action
	NewSignalsTotal *prometheus.CounterVec // labels: action
	FilterRejects   *prometheus.CounterVec // labels: filter
	PipelineDur     prometheus.Histogram
	SignalsDropped  prometheus.Gauge

	RiskActions   *prometheus.CounterVec // labels: action
	Drawdown      prometheus.Gauge
	Leverage      prometheus.Gauge
	Regime        prometheus.Gauge
	Confidence    prometheus.Gauge
	FillsTotal    *prometheus.CounterVec // labels: action
	RealizedPnL   prometheus.Gauge
	PortfolioVal  prometheus.Gauge
	OpenPositions prometheus.Gauge

	RedisCircuitBreakerState prometheus.Gauge // 0=closed, 1=open, 2=half-open
	RedisPendingSignals      prometheus.Gauge
	ConsumerReconnects       prometheus.Counter
	WSClients                prometheus.Gauge
}

// NewMetrics creates the collectors and registers them with reg. A nil reg
// registers with the default Prometheus registry.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	durBuckets := []float64{0.00001, 0.00005, 0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05}
	m := &Metrics{
		BarsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sigengine_bars_total",
			Help: "Bars processed per symbol",
		}, []string{"symbol"}),
		BarsNotReady: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "sigengine_bars_not_ready_total",
			Help: "Bars consumed during indicator or classifier warm-up",
		}),
		SignalsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sigengine_signals_total",
			Help: "Signals emitted by action",
		}, []string{"action"}),
		NewSignalsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sigengine_new_signals_total",
			Help: "Signals whose action changed from the previous bar",
		}, []string{"action"}),
		FilterRejects: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sigengine_filter_rejections_total",
			Help: "Directional predictions vetoed, by failing filter",
		}, []string{"filter"}),
		PipelineDur: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "sigengine_pipeline_duration_seconds",
			Help:    "Per-bar feature, kernel, classifier and fusion latency",
			Buckets: durBuckets,
		}),
		SignalsDropped: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "sigengine_signals_dropped",
			Help: "Signals dropped because the output channel was full",
		}),
		RiskActions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sigengine_risk_actions_total",
			Help: "Risk cycles by the rule that fired",
		}, []string{"action"}),
		Drawdown: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "sigengine_drawdown_ratio",
			Help: "Current drawdown from the portfolio peak",
		}),
		Leverage: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "sigengine_leverage_ratio",
			Help: "Invested value over total portfolio value",
		}),
		Regime: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "sigengine_regime",
			Help: "Aggregate kernel regime in [-1, 1]",
		}),
		Confidence: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "sigengine_regime_confidence",
			Help: "Mean kernel confidence in [0, 1]",
		}),
		FillsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sigengine_fills_total",
			Help: "Paper fills by action",
		}, []string{"action"}),
		RealizedPnL: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "sigengine_realized_pnl",
			Help: "Cumulative realized PnL of the paper portfolio",
		}),
		PortfolioVal: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "sigengine_portfolio_value",
			Help: "Total paper portfolio value",
		}),
		OpenPositions: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "sigengine_open_positions",
			Help: "Open paper positions",
		}),
		RedisCircuitBreakerState: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "sigengine_redis_circuit_breaker_state",
			Help: "Redis publish circuit breaker state (0=closed, 1=open, 2=half-open)",
		}),
		RedisPendingSignals: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "sigengine_redis_pending_signals",
			Help: "Signals buffered while Redis publishing is failing",
		}),
		ConsumerReconnects: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "sigengine_consumer_reconnects_total",
			Help: "Bar stream read retries",
		}),
		WSClients: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "sigengine_ws_clients",
			Help: "Connected WebSocket signal subscribers",
		}),
	}

	reg.MustRegister(
		m.BarsTotal,
		m.BarsNotReady,
		m.SignalsTotal,
		m.NewSignalsTotal,
		m.FilterRejects,
		m.PipelineDur,
		m.SignalsDropped,
		m.RiskActions,
		m.Drawdown,
		m.Leverage,
		m.Regime,
		m.Confidence,
		m.FillsTotal,
		m.RealizedPnL,
		m.PortfolioVal,
		m.OpenPositions,
		m.RedisCircuitBreakerState,
		m.RedisPendingSignals,
		m.ConsumerReconnects,
		m.WSClients,
	)
	return m
}

// ObserveSignal records one emitted signal. Filters are only counted when the
// base prediction was directional and the fused action is HOLD.
func (m *Metrics) ObserveSignal(sig *strategy.Signal) {
	action := string(sig.Action)
	m.SignalsTotal.WithLabelValues(action).Inc()
	if sig.IsNew {
		m.NewSignalsTotal.WithLabelValues(action).Inc()
	}
	if sig.Base == strategy.ActionHold || sig.Action != strategy.ActionHold {
		return
	}
	f := sig.Filters
	if !f.Volatility {
		m.FilterRejects.WithLabelValues("volatility").Inc()
	}
	if !f.Regime {
		m.FilterRejects.WithLabelValues("regime").Inc()
	}
	if !f.ADX {
		m.FilterRejects.WithLabelValues("adx").Inc()
	}
	if !f.Kernel {
		m.FilterRejects.WithLabelValues("kernel").Inc()
	}
}

// ObserveRisk records one risk cycle.
func (m *Metrics) ObserveRisk(r *portfolio.RiskReport) {
	m.RiskActions.WithLabelValues(string(r.Action)).Inc()
	m.Drawdown.Set(r.Drawdown)
	m.Leverage.Set(r.Leverage)
	m.Regime.Set(r.Regime.Regime)
	m.Confidence.Set(r.Regime.Confidence)
}

// HealthStatus is the engine health reported on /healthz.
type HealthStatus struct {
	mu sync.RWMutex

	RedisConnected bool      `json:"redis_connected"`
	SQLiteOK       bool      `json:"sqlite_ok"`
	LastBarTime    time.Time `json:"last_bar_time"`
	Symbols        int       `json:"symbols"`
	ReadySymbols   int       `json:"ready_symbols"`

	RedisLatencyMs  float64   `json:"redis_latency_ms"`
	SQLiteLatencyMs float64   `json:"sqlite_latency_ms"`
	LastCheckAt     time.Time `json:"last_check_at"`
	StartedAt       time.Time `json:"started_at"`

	needRedis  bool
	needSQLite bool
}

// NewHealthStatus returns a health status. needRedis and needSQLite mark which
// dependencies count towards the overall status.
func NewHealthStatus(needRedis, needSQLite bool) *HealthStatus {
	return &HealthStatus{
		StartedAt:  time.Now(),
		needRedis:  needRedis,
		needSQLite: needSQLite,
	}
}

func (h *HealthStatus) SetLastBarTime(t time.Time) {
	h.mu.Lock()
	h.LastBarTime = t
	h.mu.Unlock()
}

func (h *HealthStatus) SetSymbols(total, ready int) {
	h.mu.Lock()
	h.Symbols = total
	h.ReadySymbols = ready
	h.mu.Unlock()
}

// CheckRedis pings Redis and records latency and connectivity.
func (h *HealthStatus) CheckRedis(ctx context.Context, rdb *goredis.Client) {
	start := time.Now()
	err := rdb.Ping(ctx).Err()
	latency := time.Since(start)

	h.mu.Lock()
	h.RedisConnected = err == nil
	h.RedisLatencyMs = float64(latency.Microseconds()) / 1000.0
	h.LastCheckAt = time.Now()
	h.mu.Unlock()
}

// CheckSQLite pings the database and records latency and health.
func (h *HealthStatus) CheckSQLite(ctx context.Context, db *sql.DB) {
	start := time.Now()
	err := db.PingContext(ctx)
	latency := time.Since(start)

	h.mu.Lock()
	h.SQLiteOK = err == nil
	h.SQLiteLatencyMs = float64(latency.Microseconds()) / 1000.0
	h.LastCheckAt = time.Now()
	h.mu.Unlock()
}

// StartLivenessChecker runs periodic dependency checks until ctx is done.
// Either dependency may be nil.
func (h *HealthStatus) StartLivenessChecker(ctx context.Context, rdb *goredis.Client, sqlDB *sql.DB, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				checkCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
				if rdb != nil {
					h.CheckRedis(checkCtx, rdb)
				}
				if sqlDB != nil {
					h.CheckSQLite(checkCtx, sqlDB)
				}
				cancel()
			}
		}
	}()
}

// status returns the overall status and HTTP code.
func (h *HealthStatus) status() (string, int) {
	redisDown := h.needRedis && !h.RedisConnected
	sqliteDown := h.needSQLite && !h.SQLiteOK
	switch {
	case redisDown && sqliteDown:
		return "unhealthy", http.StatusServiceUnavailable
	case redisDown || sqliteDown:
		return "degraded", http.StatusServiceUnavailable
	default:
		return "healthy", http.StatusOK
	}
}

// ServeHTTP handles /healthz.
func (h *HealthStatus) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	overall, code := h.status()
	barAge := ""
	if !h.LastBarTime.IsZero() {
		barAge = time.Since(h.LastBarTime).Round(time.Millisecond).String()
	}

	body := struct {
		Status          string  `json:"status"`
		Uptime          string  `json:"uptime"`
		LastBarTime     string  `json:"last_bar_time"`
		BarAge          string  `json:"bar_age"`
		Symbols         int     `json:"symbols"`
		ReadySymbols    int     `json:"ready_symbols"`
		RedisConnected  bool    `json:"redis_connected"`
		RedisLatencyMs  float64 `json:"redis_latency_ms"`
		SQLiteOK        bool    `json:"sqlite_ok"`
		SQLiteLatencyMs float64 `json:"sqlite_latency_ms"`
		LastCheckAt     string  `json:"last_check_at"`
	}{
		Status:          overall,
		Uptime:          time.Since(h.StartedAt).Round(time.Second).String(),
		LastBarTime:     h.LastBarTime.Format(time.RFC3339),
		BarAge:          barAge,
		Symbols:         h.Symbols,
		ReadySymbols:    h.ReadySymbols,
		RedisConnected:  h.RedisConnected,
		RedisLatencyMs:  h.RedisLatencyMs,
		SQLiteOK:        h.SQLiteOK,
		SQLiteLatencyMs: h.SQLiteLatencyMs,
		LastCheckAt:     h.LastCheckAt.Format(time.RFC3339),
	}

	w.Header().Set("Content-Type", "application/json")
	if code != http.StatusOK {
		w.WriteHeader(code)
	}
	json.NewEncoder(w).Encode(body)
}

// Server exposes /metrics and /healthz.
type Server struct {
	addr string
	srv  *http.Server
}

// NewServer creates the metrics and health server. Extra handlers, such as
// the WebSocket endpoint, may be mounted on the returned mux.
func NewServer(addr string, gatherer prometheus.Gatherer, health *HealthStatus) (*Server, *http.ServeMux) {
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	mux.Handle("/healthz", health)

	return &Server{
		addr: addr,
		srv:  &http.Server{Addr: addr, Handler: mux},
	}, mux
}

// Start launches the HTTP server in a goroutine.
func (s *Server) Start() {
	go func() {
		slog.Info("server listening", "component", "metrics", "addr", s.addr)
		if err := s.srv.ListenAndServe(); err != http.ErrServerClosed {
			slog.Error("server error", "component", "metrics", "error", err)
		}
	}()
}

// Stop gracefully shuts down the server.
func (s *Server) Stop(ctx context.Context) {
	s.srv.Shutdown(ctx)
}
