package resample

import (
	"context"
	"testing"
	"time"

	"lorentzian-signals/internal/model"
)

var base = time.Date(2024, 2, 1, 14, 30, 0, 0, time.UTC)

func makeBar(symbol string, i int, open, high, low, close_, vol float64) model.Bar {
	return model.Bar{
		Symbol: symbol,
		TS:     base.Add(time.Duration(i) * time.Minute),
		Open:   open, High: high, Low: low, Close: close_, Volume: vol,
	}
}

func TestResampler_MergesFactorBars(t *testing.T) {
	r := New(4)
	bars := []model.Bar{
		makeBar("AAPL", 0, 100, 102, 99, 101, 10),
		makeBar("AAPL", 1, 101, 105, 100, 104, 20),
		makeBar("AAPL", 2, 104, 104, 97, 98, 30),
		makeBar("AAPL", 3, 98, 100, 96, 99, 40),
	}
	for i, b := range bars[:3] {
		if _, ok := r.Process(b); ok {
			t.Fatalf("bar %d: unexpected completed bar", i)
		}
	}
	if r.Pending("AAPL") != 3 {
		t.Errorf("pending = %d, want 3", r.Pending("AAPL"))
	}

	got, ok := r.Process(bars[3])
	if !ok {
		t.Fatal("expected completed bar after 4 inputs")
	}
	want := model.Bar{Symbol: "AAPL", TS: base, Open: 100, High: 105, Low: 96, Close: 99, Volume: 100}
	if got != want {
		t.Errorf("got %+v, want %+v", got, want)
	}
	if r.Pending("AAPL") != 0 {
		t.Errorf("pending after emit = %d", r.Pending("AAPL"))
	}
}

func TestResampler_SymbolsIndependent(t *testing.T) {
	r := New(2)
	r.Process(makeBar("AAPL", 0, 1, 1, 1, 1, 1))
	if _, ok := r.Process(makeBar("MSFT", 0, 2, 2, 2, 2, 1)); ok {
		t.Fatal("MSFT must not complete with AAPL's bar")
	}
	got, ok := r.Process(makeBar("AAPL", 1, 3, 3, 3, 3, 1))
	if !ok || got.Symbol != "AAPL" || got.Close != 3 || got.Open != 1 {
		t.Errorf("got %+v ok=%v", got, ok)
	}
}

func TestResampler_PassThrough(t *testing.T) {
	for _, factor := range []int{-1, 0, 1} {
		r := New(factor)
		b := makeBar("AAPL", 0, 1, 2, 0.5, 1.5, 9)
		got, ok := r.Process(b)
		if !ok || got != b {
			t.Errorf("factor %d: got %+v ok=%v", factor, got, ok)
		}
	}
}

func TestResampler_Run(t *testing.T) {
	r := New(3)
	in := make(chan model.Bar, 10)
	out := make(chan model.Bar, 10)
	for i := 0; i < 7; i++ {
		in <- makeBar("AAPL", i, 1, 1, 1, float64(i), 1)
	}
	close(in)
	r.Run(context.Background(), in, out)

	var got []model.Bar
	for b := range out {
		got = append(got, b)
	}
	if len(got) != 2 {
		t.Fatalf("got %d bars, want 2", len(got))
	}
	if got[0].Close != 2 || got[1].Close != 5 || got[1].Volume != 3 {
		t.Errorf("bars = %+v", got)
	}
}
