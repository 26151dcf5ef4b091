package indicator

import (
	"math"
	"testing"
	"time"

	"lorentzian-signals/internal/model"
)

func TestEngine_WarmupMatchesReady(t *testing.T) {
	e := NewEngine(DefaultConfig())
	warm := e.Warmup()
	if warm != 34 {
		t.Fatalf("Warmup()=%d, want 34 for default periods", warm)
	}

	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < warm+5; i++ {
		p := 100 + 5*math.Sin(float64(i)/3)
		r := e.Update(model.Bar{
			Symbol: "SPY",
			TS:     base.Add(time.Duration(i) * time.Minute),
			Open:   p, High: p + 1, Low: p - 1, Close: p,
		})
		if got, want := r.Ready(), i+1 >= warm; got != want {
			t.Fatalf("bar %d: Readings.Ready()=%v, want %v", i+1, got, want)
		}
	}
	if e.Bars() != warm+5 {
		t.Errorf("Bars()=%d, want %d", e.Bars(), warm+5)
	}
}

func TestEngine_ZeroConfigUsesDefaults(t *testing.T) {
	e := NewEngine(Config{RSIPeriod: 3})
	if e.cfg.RSIPeriod != 3 {
		t.Errorf("RSIPeriod=%d, want 3", e.cfg.RSIPeriod)
	}
	if e.cfg.MACDSlow != 26 || e.cfg.WTAverage != 21 {
		t.Errorf("unset periods not defaulted: %+v", e.cfg)
	}
}

func TestEngine_ReadingsNoNaN(t *testing.T) {
	e := NewEngine(DefaultConfig())
	var r Readings
	for i := 0; i < 100; i++ {
		r = e.Update(flatBar(100))
	}
	vals := []float64{r.RSI, r.WT1, r.WT2, r.CCI, r.ADX, r.Return, r.LogReturn, r.SMAFast, r.SMASlow, r.MACD, r.MACDHist, r.ATR}
	for i, v := range vals {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			t.Errorf("reading %d is %v on a flat series", i, v)
		}
	}
}
