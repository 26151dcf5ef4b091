package feature

import (
	"errors"
	"math"
	"testing"
	"time"

	"lorentzian-signals/internal/indicator"
	"lorentzian-signals/internal/model"
)

func wave(i int) model.Bar {
	p := 100 + 3*math.Sin(float64(i)/4)
	return model.Bar{
		Symbol: "AAPL",
		TS:     time.Unix(int64(i)*60, 0).UTC(),
		Open:   p, High: p + 0.5, Low: p - 0.5, Close: p,
	}
}

func TestBuilder_WithholdsUntilWarm(t *testing.T) {
	b, err := NewBuilder("AAPL", Config{})
	if err != nil {
		t.Fatal(err)
	}
	warm := b.Warmup()
	for i := 0; i < warm-1; i++ {
		if _, _, err := b.Update(wave(i)); !errors.Is(err, ErrNotReady) {
			t.Fatalf("bar %d: err=%v, want ErrNotReady", i, err)
		}
	}
	fv, r, err := b.Update(wave(warm - 1))
	if err != nil {
		t.Fatalf("bar %d: unexpected err %v", warm-1, err)
	}
	if fv.Len() != 4 {
		t.Fatalf("Len()=%d, want 4", fv.Len())
	}
	if got, _ := fv.Get(RSI); got != r.RSI {
		t.Errorf("RSI feature=%v, readings=%v", got, r.RSI)
	}
	if got, _ := fv.Get(WT); got != r.WT1 {
		t.Errorf("WT feature=%v, readings=%v", got, r.WT1)
	}
	if fv.Symbol != "AAPL" || !fv.TS.Equal(wave(warm-1).TS) {
		t.Errorf("vector identity wrong: %s %v", fv.Symbol, fv.TS)
	}
}

func TestBuilder_CustomListOrder(t *testing.T) {
	b, err := NewBuilder("X", Config{Features: []string{"atr", " sma_ratio", "MACD_HIST"}})
	if err != nil {
		t.Fatal(err)
	}
	want := []string{ATR, SMARatio, MACDHist}
	for i, n := range b.Names() {
		if n != want[i] {
			t.Errorf("name %d = %q, want %q", i, n, want[i])
		}
	}

	var fv model.FeatureVector
	for i := 0; i < 60; i++ {
		fv, _, err = b.Update(wave(i))
	}
	if err != nil {
		t.Fatal(err)
	}
	if ratio := fv.Values[1]; ratio < 0.9 || ratio > 1.1 {
		t.Errorf("SMA_RATIO=%v, want near 1 for an oscillating series", ratio)
	}
}

func TestBuilder_UnknownFeature(t *testing.T) {
	if _, err := NewBuilder("X", Config{Features: []string{"RSI", "VWAP"}}); err == nil {
		t.Fatal("expected error for unknown feature")
	}
}

// gapped opens at the previous close, so the Heikin-Ashi close is not a
// constant shift of the raw close.
func gapped(i int) model.Bar {
	bar := wave(i)
	if i > 0 {
		bar.Open = wave(i - 1).Close
	}
	return bar
}

func TestBuilder_HeikinAshiChangesInput(t *testing.T) {
	plain, _ := NewBuilder("X", Config{Features: []string{RSI}})
	ha, _ := NewBuilder("X", Config{Features: []string{RSI}, UseHeikinAshi: true})

	var a, b model.FeatureVector
	var errA, errB error
	for i := 0; i < 60; i++ {
		bar := gapped(i)
		a, _, errA = plain.Update(bar)
		b, _, errB = ha.Update(bar)
	}
	if errA != nil || errB != nil {
		t.Fatalf("not warm after 60 bars: %v / %v", errA, errB)
	}
	if math.Abs(a.Values[0]-b.Values[0]) < 1e-6 {
		t.Errorf("Heikin-Ashi RSI equals raw RSI (%v)", a.Values[0])
	}
}

func TestHeikinAshi_GappedBars(t *testing.T) {
	tr := indicator.NewHeikinAshi()
	var prevOpen, prevClose float64
	for i := 0; i < 5; i++ {
		raw := gapped(i)
		got := tr.Transform(raw)

		wantClose := (raw.Open + raw.High + raw.Low + raw.Close) / 4
		wantOpen := raw.Open
		if i > 0 {
			wantOpen = (prevOpen + prevClose) / 2
		}
		if math.Abs(got.Close-wantClose) > 1e-12 || math.Abs(got.Open-wantOpen) > 1e-12 {
			t.Fatalf("bar %d: open/close = %v/%v, want %v/%v", i, got.Open, got.Close, wantOpen, wantClose)
		}
		if got.High < math.Max(got.Open, got.Close) || got.Low > math.Min(got.Open, got.Close) {
			t.Errorf("bar %d: high/low %v/%v do not bound open/close", i, got.High, got.Low)
		}
		// bar 0 has open == close, so its offset is 0; later bars must move
		if i > 0 && math.Abs(raw.Close-got.Close) < 1e-9 {
			t.Errorf("bar %d: Heikin-Ashi close equals raw close", i)
		}
		prevOpen, prevClose = got.Open, got.Close
	}
}
