package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"lorentzian-signals/internal/classifier"
	"lorentzian-signals/internal/execution"
	"lorentzian-signals/internal/feature"
	"lorentzian-signals/internal/indicator"
	"lorentzian-signals/internal/kernel"
	"lorentzian-signals/internal/portfolio"
	"lorentzian-signals/internal/store/kafka"
	"lorentzian-signals/internal/store/redis"
	"lorentzian-signals/internal/strategy"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// ErrInvalid wraps every validation failure returned by Load.
var ErrInvalid = errors.New("invalid config")

// Config is the full engine configuration.
type Config struct {
	Symbols    []string         `yaml:"symbols"`
	LogLevel   string           `yaml:"log_level" default:"info" validate:"oneof=debug info warn warning error"`
	Classifier ClassifierConfig `yaml:"classifier"`
	Kernel     KernelConfig     `yaml:"kernel"`
	Filters    FiltersConfig    `yaml:"filters"`
	Features   FeaturesConfig   `yaml:"features"`
	Risk       RiskConfig       `yaml:"risk"`
	Sizing     SizingConfig     `yaml:"sizing"`
	Infra      InfraConfig      `yaml:"infra"`
	Alerts     AlertsConfig     `yaml:"alerts"`
}

type ClassifierConfig struct {
	Neighbors        int     `yaml:"n_neighbors" default:"8" validate:"gte=1"`
	MaxWindow        int     `yaml:"max_window" default:"2000" validate:"gte=1"`
	LorentzianWeight float64 `yaml:"lorentzian_weight" default:"0.5" validate:"gt=0,lte=1"`
	ResetFactor      float64 `yaml:"reset_factor" default:"0.1" validate:"gt=0,lte=1"`
	LabelHorizon     int     `yaml:"label_horizon" default:"4" validate:"gte=1"`
}

type KernelConfig struct {
	Lookback       float64 `yaml:"kernel_lookback" default:"8" validate:"gt=0"`
	RelativeWeight float64 `yaml:"kernel_relative_weighting" default:"8" validate:"gt=0"`
	StartBar       int     `yaml:"kernel_regression_level" default:"25" validate:"gte=2"`
	Lag            int     `yaml:"lag" default:"2" validate:"gte=0"`
	SmoothColors   bool    `yaml:"smooth_colors"`
}

type FiltersConfig struct {
	SignalThreshold float64 `yaml:"signal_threshold" default:"0" validate:"gte=0,lte=1"`
	Volatility      bool    `yaml:"volatility_filter" default:"true"`
	VolatilityCap   float64 `yaml:"volatility_cap" default:"0.05" validate:"gt=0"`
	Regime          bool    `yaml:"regime_filter" default:"true"`
	RegimeThreshold float64 `yaml:"regime_threshold" default:"-0.1" validate:"gte=-1,lte=1"`
	ADX             bool    `yaml:"adx_filter" default:"false"`
	ADXThreshold    float64 `yaml:"adx_threshold" default:"20" validate:"gte=0,lte=100"`
	Kernel          bool    `yaml:"use_kernel_filter" default:"true"`
}

type FeaturesConfig struct {
	List             []string `yaml:"feature_list" default:"[\"RSI\",\"WT\",\"CCI\",\"ADX\"]" validate:"min=1"`
	UseHeikinAshi    bool     `yaml:"use_heikin_ashi"`
	UseDownsampling  bool     `yaml:"use_downsampling"`
	DownsampleFactor int      `yaml:"downsample_factor" default:"4" validate:"gte=1"`
}

type RiskConfig struct {
	BaseMaxDrawdown           float64 `yaml:"base_max_drawdown" default:"0.10" validate:"gt=0,lt=1"`
	BaseMaxLeverage           float64 `yaml:"base_max_leverage" default:"2.0" validate:"gt=0"`
	VolatilityLookback        int     `yaml:"volatility_lookback" default:"30" validate:"gte=2"`
	BaseMaxVolatility         float64 `yaml:"base_max_volatility" default:"0.05" validate:"gt=0"`
	KernelConfidenceThreshold float64 `yaml:"kernel_confidence_threshold" default:"0.7" validate:"gte=0,lte=1"`
}

type SizingConfig struct {
	InitialCash     float64 `yaml:"initial_cash" default:"100000" validate:"gt=0"`
	RiskPerTrade    float64 `yaml:"risk_per_trade" default:"0.01" validate:"gt=0,lte=1"`
	MaxOpenTrades   int     `yaml:"max_open_trades" default:"5" validate:"gte=1"`
	UseDynamicExits bool    `yaml:"use_dynamic_exits"`
	FixedExitBars   int     `yaml:"fixed_exit_bars" default:"4" validate:"gte=1"`
	SlippageBps     float64 `yaml:"slippage_bps" default:"5" validate:"gte=0"`
}

type InfraConfig struct {
	RedisAddr       string        `yaml:"redis_addr" default:"localhost:6379"`
	RedisPassword   string        `yaml:"redis_password"`
	RedisDB         int           `yaml:"redis_db" validate:"gte=0"`
	RedisStartID    string        `yaml:"redis_start_id" default:"$"`
	BreakerFailures int           `yaml:"breaker_failures" default:"5" validate:"gte=1"`
	BreakerReset    time.Duration `yaml:"breaker_reset" default:"10s"`
	SQLitePath      string        `yaml:"sqlite_path" default:"data/bars.db" validate:"required"`
	KafkaBrokers    []string      `yaml:"kafka_brokers"`
	KafkaTopic      string        `yaml:"kafka_topic" default:"signals"`
	KafkaCompress   string        `yaml:"kafka_compression" default:"snappy" validate:"oneof=none gzip snappy lz4 zstd"`
	MetricsAddr     string        `yaml:"metrics_addr" default:":9090"`
	SignalBuffer    int           `yaml:"signal_buffer" default:"1024" validate:"gte=1"`
}

type AlertsConfig struct {
	WebhookURL     string `yaml:"webhook_url" validate:"omitempty,url"`
	TelegramToken  string `yaml:"telegram_token"`
	TelegramChatID int64  `yaml:"telegram_chat_id" validate:"required_with=TelegramToken"`
	PerMinute      int    `yaml:"per_minute" default:"20" validate:"gte=0"`
	LogOnly        bool   `yaml:"log_only"`
}

// Enabled reports whether any alert channel is configured.
func (a AlertsConfig) Enabled() bool {
	return a.LogOnly || a.WebhookURL != "" || a.TelegramToken != ""
}

// Load builds the configuration: struct defaults, then the YAML file at path
// (skipped when path is empty), then .env and environment overrides. The
// result is validated.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	if err := defaults.Set(cfg); err != nil {
		return nil, fmt.Errorf("config defaults: %w", err)
	}

	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("config read %s: %w", path, err)
		}
		if err := yaml.Unmarshal(raw, cfg); err != nil {
			return nil, fmt.Errorf("config parse %s: %w", path, err)
		}
	}

	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		slog.Warn("could not load .env", "component", "config", "error", err)
	}
	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	c.LogLevel = getEnv("LOG_LEVEL", c.LogLevel)
	c.Infra.RedisAddr = getEnv("REDIS_ADDR", c.Infra.RedisAddr)
	c.Infra.RedisPassword = getEnv("REDIS_PASSWORD", c.Infra.RedisPassword)
	c.Infra.SQLitePath = getEnv("SQLITE_PATH", c.Infra.SQLitePath)
	c.Infra.MetricsAddr = getEnv("METRICS_ADDR", c.Infra.MetricsAddr)
	c.Infra.KafkaTopic = getEnv("KAFKA_TOPIC", c.Infra.KafkaTopic)
	if v := os.Getenv("REDIS_DB"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Infra.RedisDB = n
		} else {
			slog.Warn("skipping invalid REDIS_DB", "component", "config", "value", v)
		}
	}
	c.Alerts.WebhookURL = getEnv("ALERT_WEBHOOK_URL", c.Alerts.WebhookURL)
	c.Alerts.TelegramToken = getEnv("TELEGRAM_BOT_TOKEN", c.Alerts.TelegramToken)
	if v := os.Getenv("TELEGRAM_CHAT_ID"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			c.Alerts.TelegramChatID = n
		} else {
			slog.Warn("skipping invalid TELEGRAM_CHAT_ID", "component", "config", "value", v)
		}
	}
	if v := os.Getenv("KAFKA_BROKERS"); v != "" {
		c.Infra.KafkaBrokers = splitList(v)
	}
	if v := os.Getenv("SYMBOLS"); v != "" {
		c.Symbols = splitList(v)
	}
}

var validate = validator.New()

// Validate checks field ranges and the feature list.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	// the lagged estimate uses bandwidth lookback-lag, which must stay positive
	if float64(c.Kernel.Lag) >= c.Kernel.Lookback {
		return fmt.Errorf("%w: kernel lag %d must be below kernel_lookback %v", ErrInvalid, c.Kernel.Lag, c.Kernel.Lookback)
	}
	if _, err := feature.NewBuilder("", c.FeatureConfig()); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	return nil
}

// FeatureConfig returns the feature builder configuration.
func (c *Config) FeatureConfig() feature.Config {
	return feature.Config{
		Features:      c.Features.List,
		UseHeikinAshi: c.Features.UseHeikinAshi,
		Indicators:    indicator.DefaultConfig(),
	}
}

// Strategy returns the per-symbol pipeline configuration.
func (c *Config) Strategy() strategy.Config {
	f := c.Filters
	return strategy.Config{
		Feature: c.FeatureConfig(),
		Classifier: classifier.Config{
			Neighbors:        c.Classifier.Neighbors,
			MaxWindow:        c.Classifier.MaxWindow,
			LorentzianWeight: c.Classifier.LorentzianWeight,
			ResetFactor:      c.Classifier.ResetFactor,
		},
		Kernel: kernel.Config{
			Lookback:       c.Kernel.Lookback,
			RelativeWeight: c.Kernel.RelativeWeight,
			StartBar:       c.Kernel.StartBar,
			Lag:            c.Kernel.Lag,
			SmoothColors:   c.Kernel.SmoothColors,
		},
		Fusion: strategy.FusionConfig{
			Threshold: f.SignalThreshold,
			Filters: strategy.FilterConfig{
				Volatility:      f.Volatility,
				VolatilityCap:   f.VolatilityCap,
				Regime:          f.Regime,
				RegimeThreshold: f.RegimeThreshold,
				ADX:             f.ADX,
				ADXThreshold:    f.ADXThreshold,
				Kernel:          f.Kernel,
			},
		},
		LabelHorizon: c.Classifier.LabelHorizon,
	}
}

// RiskModel returns the risk manager configuration.
func (c *Config) RiskModel() portfolio.RiskConfig {
	r := c.Risk
	return portfolio.RiskConfig{
		BaseMaxDrawdown:           r.BaseMaxDrawdown,
		BaseMaxLeverage:           r.BaseMaxLeverage,
		VolatilityLookback:        r.VolatilityLookback,
		BaseMaxVolatility:         r.BaseMaxVolatility,
		KernelConfidenceThreshold: r.KernelConfidenceThreshold,
	}
}

// Execution returns the paper executor configuration.
func (c *Config) Execution() execution.Config {
	s := c.Sizing
	return execution.Config{
		SlippageBps:     s.SlippageBps,
		RiskPerTrade:    s.RiskPerTrade,
		MaxOpenTrades:   s.MaxOpenTrades,
		UseDynamicExits: s.UseDynamicExits,
		FixedExitBars:   s.FixedExitBars,
	}
}

// Redis returns the Redis store configuration.
func (c *Config) Redis() redis.Config {
	return redis.Config{
		Addr:            c.Infra.RedisAddr,
		Password:        c.Infra.RedisPassword,
		DB:              c.Infra.RedisDB,
		BreakerFailures: c.Infra.BreakerFailures,
		BreakerReset:    c.Infra.BreakerReset,
	}
}

// Kafka returns the producer configuration and whether Kafka is enabled.
func (c *Config) Kafka() (kafka.ProducerConfig, bool) {
	return kafka.ProducerConfig{
		Brokers:     c.Infra.KafkaBrokers,
		Topic:       c.Infra.KafkaTopic,
		Compression: c.Infra.KafkaCompress,
	}, len(c.Infra.KafkaBrokers) > 0
}

func splitList(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func getEnv(key, fallback string) string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	return v
}
