package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeYAML(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Classifier.Neighbors != 8 || cfg.Classifier.MaxWindow != 2000 {
		t.Errorf("classifier = %+v", cfg.Classifier)
	}
	if cfg.Kernel.Lookback != 8 || cfg.Kernel.StartBar != 25 || cfg.Kernel.Lag != 2 {
		t.Errorf("kernel = %+v", cfg.Kernel)
	}
	if !cfg.Filters.Volatility || !cfg.Filters.Regime || cfg.Filters.ADX || !cfg.Filters.Kernel {
		t.Errorf("filters = %+v", cfg.Filters)
	}
	if cfg.Filters.RegimeThreshold != -0.1 {
		t.Errorf("regime threshold = %v", cfg.Filters.RegimeThreshold)
	}
	if len(cfg.Features.List) != 4 || cfg.Features.List[0] != "RSI" {
		t.Errorf("features = %v", cfg.Features.List)
	}
	if cfg.Risk.BaseMaxLeverage != 2.0 || cfg.Risk.VolatilityLookback != 30 {
		t.Errorf("risk = %+v", cfg.Risk)
	}
	if cfg.Infra.BreakerReset != 10*time.Second {
		t.Errorf("breaker reset = %v", cfg.Infra.BreakerReset)
	}
	if _, enabled := cfg.Kafka(); enabled {
		t.Error("kafka should be disabled without brokers")
	}
}

func TestLoad_YAMLAndEnv(t *testing.T) {
	path := writeYAML(t, `
symbols: [AAPL, MSFT]
classifier:
  n_neighbors: 12
kernel:
  smooth_colors: true
filters:
  volatility_filter: false
  adx_filter: true
  adx_threshold: 25
features:
  feature_list: [rsi, macd, atr]
infra:
  breaker_reset: 3s
`)
	t.Setenv("REDIS_ADDR", "redis:6380")
	t.Setenv("KAFKA_BROKERS", "k1:9092, k2:9092")
	t.Setenv("SYMBOLS", "NVDA")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Classifier.Neighbors != 12 || cfg.Classifier.MaxWindow != 2000 {
		t.Errorf("classifier = %+v", cfg.Classifier)
	}
	sc := cfg.Strategy()
	if !sc.Kernel.SmoothColors || sc.Fusion.Filters.Volatility || !sc.Fusion.Filters.ADX {
		t.Errorf("strategy config = %+v", sc)
	}
	if sc.Fusion.Filters.ADXThreshold != 25 || sc.Classifier.Neighbors != 12 {
		t.Errorf("strategy config = %+v", sc)
	}
	if cfg.Infra.RedisAddr != "redis:6380" || cfg.Redis().Addr != "redis:6380" {
		t.Errorf("redis addr = %q", cfg.Infra.RedisAddr)
	}
	if cfg.Infra.BreakerReset != 3*time.Second {
		t.Errorf("breaker reset = %v", cfg.Infra.BreakerReset)
	}
	kc, enabled := cfg.Kafka()
	if !enabled || len(kc.Brokers) != 2 || kc.Brokers[1] != "k2:9092" {
		t.Errorf("kafka = %+v enabled=%v", kc, enabled)
	}
	if len(cfg.Symbols) != 1 || cfg.Symbols[0] != "NVDA" {
		t.Errorf("symbols = %v", cfg.Symbols)
	}
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"zero neighbours", "classifier:\n  n_neighbors: 0\n"},
		{"unknown feature", "features:\n  feature_list: [RSI, FOO]\n"},
		{"bad log level", "log_level: loud\n"},
		{"drawdown out of range", "risk:\n  base_max_drawdown: 1.5\n"},
		{"bad compression", "infra:\n  kafka_compression: brotli\n"},
		{"lag equals lookback", "kernel:\n  kernel_lookback: 2\n  lag: 2\n"},
		{"lag above lookback", "kernel:\n  kernel_lookback: 3\n  lag: 5\n"},
		{"telegram without chat", "alerts:\n  telegram_token: abc\n"},
		{"bad webhook url", "alerts:\n  webhook_url: not a url\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeYAML(t, tt.body))
			if !errors.Is(err, ErrInvalid) {
				t.Errorf("expected ErrInvalid, got %v", err)
			}
		})
	}
}

func TestLoad_MissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Error("expected error for missing file")
	}
}
