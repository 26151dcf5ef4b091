package strategy

import (
	"errors"
	"fmt"
	"log/slog"

	"lorentzian-signals/internal/classifier"
	"lorentzian-signals/internal/feature"
	"lorentzian-signals/internal/kernel"
	"lorentzian-signals/internal/model"
)

// Config is the full per-symbol pipeline configuration.
type Config struct {
	Feature      feature.Config
	Classifier   classifier.Config
	Kernel       kernel.Config
	Fusion       FusionConfig
	LabelHorizon int
}

// Lorentzian is one symbol's signal pipeline:
// features → KNN score, kernel update → fusion, then labelling feeds the
// classifier window.
type Lorentzian struct {
	symbol   string
	features *feature.Builder
	clf      *classifier.Lorentzian
	det      *kernel.Detector
	labeler  *classifier.Labeler
	fuser    *Fuser
	log      *slog.Logger
}

// NewLorentzian builds the pipeline for symbol.
func NewLorentzian(symbol string, cfg Config) (*Lorentzian, error) {
	fb, err := feature.NewBuilder(symbol, cfg.Feature)
	if err != nil {
		return nil, fmt.Errorf("strategy %s: %w", symbol, err)
	}
	return &Lorentzian{
		symbol:   symbol,
		features: fb,
		clf:      classifier.New(cfg.Classifier),
		det:      kernel.NewDetector(cfg.Kernel),
		labeler:  classifier.NewLabeler(cfg.LabelHorizon),
		fuser:    NewFuser(cfg.Fusion),
		log:      slog.Default().With("component", "strategy", "symbol", symbol),
	}, nil
}

func (l *Lorentzian) Name() string { return "lorentzian:" + l.symbol }

// Symbol returns the symbol this pipeline serves.
func (l *Lorentzian) Symbol() string { return l.symbol }

// OnBar advances every stage by one bar. Returns nil while any stage is
// still warming up.
func (l *Lorentzian) OnBar(bar model.Bar) *Signal {
	fv, r, ferr := l.features.Update(bar)
	kout := l.det.Update(bar.Close)

	var vec []float64
	if ferr == nil {
		vec = fv.Values
	}
	// The sample released here was seen label_horizon bars ago, so its label
	// only uses closes up to and including this bar.
	if s, ok := l.labeler.Add(bar.Close, vec); ok {
		l.clf.Observe(s)
	}

	if ferr != nil {
		return nil
	}
	score, err := l.clf.Predict(vec)
	if errors.Is(err, classifier.ErrNotReady) {
		return nil
	}

	vol := 0.0
	if bar.Close > 0 {
		vol = r.ATR / bar.Close
	}
	sig := l.fuser.Fuse(Inputs{
		Score:      score,
		Kernel:     kout,
		Volatility: vol,
		ADX:        r.ADX,
	})
	sig.Strategy = l.Name()
	sig.Symbol = l.symbol
	sig.TS = bar.TS
	sig.Price = bar.Close

	if sig.Base != ActionHold && sig.Action == ActionHold {
		l.log.Debug("signal filtered",
			"base", sig.Base, "score", score,
			"volatility", sig.Filters.Volatility, "regime", sig.Filters.Regime,
			"adx", sig.Filters.ADX, "kernel", sig.Filters.Kernel)
	}
	return &sig
}

// Warmup feeds history without emitting, then clears the debounce state so
// the first live signal is judged against HOLD.
func (l *Lorentzian) Warmup(bars []model.Bar) int {
	for _, b := range bars {
		l.OnBar(b)
	}
	l.fuser.Reset()
	return len(bars)
}

// Kernel returns the latest kernel output.
func (l *Lorentzian) Kernel() kernel.Output { return l.det.Last() }

// WindowLen returns the classifier window size.
func (l *Lorentzian) WindowLen() int { return l.clf.Len() }
