// Package feature assembles the fixed-shape numeric vector the classifier
// consumes, one per bar per symbol.
package feature

import (
	"errors"
	"fmt"
	"strings"

	"lorentzian-signals/internal/indicator"
	"lorentzian-signals/internal/model"
)

// ErrNotReady is returned until every indicator behind the vector is warmed up.
var ErrNotReady = errors.New("feature: indicators not ready")

// Feature names accepted in the feature list.
const (
	RSI       = "RSI"
	WT        = "WT"
	WT2       = "WT2"
	CCI       = "CCI"
	ADX       = "ADX"
	Return    = "RETURN"
	LogReturn = "LOG_RETURN"
	SMARatio  = "SMA_RATIO"
	MACD      = "MACD"
	MACDHist  = "MACD_HIST"
	ATR       = "ATR"
)

// DefaultList is the feature list used when none is configured.
var DefaultList = []string{RSI, WT, CCI, ADX}

var extractors = map[string]func(indicator.Readings) float64{
	RSI:       func(r indicator.Readings) float64 { return r.RSI },
	WT:        func(r indicator.Readings) float64 { return r.WT1 },
	WT2:       func(r indicator.Readings) float64 { return r.WT2 },
	CCI:       func(r indicator.Readings) float64 { return r.CCI },
	ADX:       func(r indicator.Readings) float64 { return r.ADX },
	Return:    func(r indicator.Readings) float64 { return r.Return },
	LogReturn: func(r indicator.Readings) float64 { return r.LogReturn },
	SMARatio: func(r indicator.Readings) float64 {
		if r.SMASlow == 0 {
			return 0
		}
		return r.SMAFast / r.SMASlow
	},
	MACD:     func(r indicator.Readings) float64 { return r.MACD },
	MACDHist: func(r indicator.Readings) float64 { return r.MACDHist },
	ATR:      func(r indicator.Readings) float64 { return r.ATR },
}

// Config controls which features are built and how bars are pre-processed.
type Config struct {
	Features      []string
	UseHeikinAshi bool
	Indicators    indicator.Config
}

// Builder owns one symbol's indicator engine and produces feature vectors.
// Not safe for concurrent use.
type Builder struct {
	symbol  string
	names   []string
	extract []func(indicator.Readings) float64
	engine  *indicator.Engine
	ha      *indicator.HeikinAshi
}

// NewBuilder validates the feature list and creates a builder for symbol.
func NewBuilder(symbol string, cfg Config) (*Builder, error) {
	list := cfg.Features
	if len(list) == 0 {
		list = DefaultList
	}
	b := &Builder{
		symbol:  symbol,
		names:   make([]string, 0, len(list)),
		extract: make([]func(indicator.Readings) float64, 0, len(list)),
		engine:  indicator.NewEngine(cfg.Indicators),
	}
	for _, raw := range list {
		name := strings.ToUpper(strings.TrimSpace(raw))
		fn, ok := extractors[name]
		if !ok {
			return nil, fmt.Errorf("feature: unknown feature %q", raw)
		}
		b.names = append(b.names, name)
		b.extract = append(b.extract, fn)
	}
	if cfg.UseHeikinAshi {
		b.ha = indicator.NewHeikinAshi()
	}
	return b, nil
}

// Names returns the ordered feature names.
func (b *Builder) Names() []string { return b.names }

// Warmup returns how many bars are needed before Update stops returning ErrNotReady.
func (b *Builder) Warmup() int { return b.engine.Warmup() }

// Update feeds one bar. The returned readings are always populated so callers
// can inspect partial state; the vector is only valid when err is nil.
func (b *Builder) Update(bar model.Bar) (model.FeatureVector, indicator.Readings, error) {
	if b.ha != nil {
		bar = b.ha.Transform(bar)
	}
	r := b.engine.Update(bar)
	if !r.Ready() {
		return model.FeatureVector{}, r, ErrNotReady
	}

	values := make([]float64, len(b.extract))
	for i, fn := range b.extract {
		values[i] = fn(r)
	}
	return model.FeatureVector{
		Symbol: b.symbol,
		TS:     bar.TS,
		Names:  b.names,
		Values: values,
	}, r, nil
}
