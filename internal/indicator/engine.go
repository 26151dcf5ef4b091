package indicator

import (
	"time"

	"lorentzian-signals/internal/model"
)

// Config holds the lookback periods for one symbol's indicator set.
type Config struct {
	RSIPeriod  int
	WTChannel  int
	WTAverage  int
	CCIPeriod  int
	ADXPeriod  int
	SMAFast    int
	SMASlow    int
	MACDFast   int
	MACDSlow   int
	MACDSignal int
	ATRPeriod  int
}

// DefaultConfig returns the standard periods: RSI 14, WT 10/21, CCI 20,
// ADX 14, SMA 10/30, MACD 12/26/9, ATR 14.
func DefaultConfig() Config {
	return Config{
		RSIPeriod:  14,
		WTChannel:  10,
		WTAverage:  21,
		CCIPeriod:  20,
		ADXPeriod:  14,
		SMAFast:    10,
		SMASlow:    30,
		MACDFast:   12,
		MACDSlow:   26,
		MACDSignal: 9,
		ATRPeriod:  14,
	}
}

// Readings is one bar's worth of indicator outputs for a symbol.
type Readings struct {
	TS         time.Time
	Close      float64
	RSI        float64
	WT1        float64
	WT2        float64
	CCI        float64
	ADX        float64
	PlusDI     float64
	MinusDI    float64
	Return     float64
	LogReturn  float64
	SMAFast    float64
	SMASlow    float64
	MACD       float64
	MACDSignal float64
	MACDHist   float64
	ATR        float64

	ready bool
}

// Ready reports whether every indicator in the set had satisfied its lookback.
func (r Readings) Ready() bool { return r.ready }

// Engine computes the full indicator set for a single symbol.
// Not safe for concurrent use; callers own one Engine per symbol.
type Engine struct {
	cfg  Config
	bars int

	rsi     *RSI
	wt      *WaveTrend
	cci     *CCI
	adx     *ADX
	ret     *Returns
	smaFast *SMA
	smaSlow *SMA
	macd    *MACD
	atr     *ATR
}

// NewEngine creates an indicator engine. Zero periods fall back to DefaultConfig.
func NewEngine(cfg Config) *Engine {
	cfg = withDefaults(cfg)
	return &Engine{
		cfg:     cfg,
		rsi:     NewRSI(cfg.RSIPeriod),
		wt:      NewWaveTrend(cfg.WTChannel, cfg.WTAverage),
		cci:     NewCCI(cfg.CCIPeriod),
		adx:     NewADX(cfg.ADXPeriod),
		ret:     NewReturns(),
		smaFast: NewSMA(cfg.SMAFast),
		smaSlow: NewSMA(cfg.SMASlow),
		macd:    NewMACD(cfg.MACDFast, cfg.MACDSlow, cfg.MACDSignal),
		atr:     NewATR(cfg.ATRPeriod),
	}
}

// Update feeds one bar through every indicator and returns the readings.
func (e *Engine) Update(bar model.Bar) Readings {
	e.bars++
	e.rsi.Update(bar.Close)
	e.wt.Update(bar)
	e.cci.Update(bar)
	e.adx.Update(bar)
	e.ret.Update(bar.Close)
	e.smaFast.Update(bar.Close)
	e.smaSlow.Update(bar.Close)
	e.macd.Update(bar.Close)
	e.atr.Update(bar)

	return Readings{
		TS:         bar.TS,
		Close:      bar.Close,
		RSI:        e.rsi.Value(),
		WT1:        e.wt.Value(),
		WT2:        e.wt.Signal(),
		CCI:        e.cci.Value(),
		ADX:        e.adx.Value(),
		PlusDI:     e.adx.PlusDI(),
		MinusDI:    e.adx.MinusDI(),
		Return:     e.ret.Value(),
		LogReturn:  e.ret.Log(),
		SMAFast:    e.smaFast.Value(),
		SMASlow:    e.smaSlow.Value(),
		MACD:       e.macd.Value(),
		MACDSignal: e.macd.Signal(),
		MACDHist:   e.macd.Hist(),
		ATR:        e.atr.Value(),
		ready:      e.Ready(),
	}
}

// Ready reports whether all indicators are warmed up.
func (e *Engine) Ready() bool {
	return e.rsi.Ready() && e.wt.Ready() && e.cci.Ready() && e.adx.Ready() &&
		e.ret.Ready() && e.smaFast.Ready() && e.smaSlow.Ready() &&
		e.macd.Ready() && e.atr.Ready()
}

// Bars returns how many bars have been fed.
func (e *Engine) Bars() int { return e.bars }

// Warmup returns the number of bars needed before Ready can be true.
func (e *Engine) Warmup() int {
	c := e.cfg
	n := c.RSIPeriod
	n = max(n, c.WTChannel, c.WTAverage+3) // wt2 averages 4 wt1 values
	n = max(n, c.CCIPeriod)
	n = max(n, c.ADXPeriod+1) // first bar only seeds the previous H/L/C
	n = max(n, c.SMASlow, c.SMAFast, 2)
	n = max(n, c.MACDSlow+c.MACDSignal-1)
	n = max(n, c.ATRPeriod)
	return n
}

func withDefaults(cfg Config) Config {
	d := DefaultConfig()
	set := func(v *int, def int) {
		if *v <= 0 {
			*v = def
		}
	}
	set(&cfg.RSIPeriod, d.RSIPeriod)
	set(&cfg.WTChannel, d.WTChannel)
	set(&cfg.WTAverage, d.WTAverage)
	set(&cfg.CCIPeriod, d.CCIPeriod)
	set(&cfg.ADXPeriod, d.ADXPeriod)
	set(&cfg.SMAFast, d.SMAFast)
	set(&cfg.SMASlow, d.SMASlow)
	set(&cfg.MACDFast, d.MACDFast)
	set(&cfg.MACDSlow, d.MACDSlow)
	set(&cfg.MACDSignal, d.MACDSignal)
	set(&cfg.ATRPeriod, d.ATRPeriod)
	return cfg
}
