package replay

import (
	"context"
	"testing"
	"time"

	"lorentzian-signals/internal/model"
)

type memReader struct {
	bars []model.Bar
}

func (m *memReader) ReadBars(symbol string, afterTS int64) ([]model.Bar, error) {
	var out []model.Bar
	for _, b := range m.bars {
		if b.Symbol == symbol && b.TS.Unix() > afterTS {
			out = append(out, b)
		}
	}
	return out, nil
}

func (m *memReader) ReadAllBars(afterTS int64) ([]model.Bar, error) {
	var out []model.Bar
	for _, b := range m.bars {
		if b.TS.Unix() > afterTS {
			out = append(out, b)
		}
	}
	return out, nil
}

func (m *memReader) Symbols() ([]string, error) { return nil, nil }
func (m *memReader) Close() error               { return nil }

var t0 = time.Date(2024, 4, 1, 13, 30, 0, 0, time.UTC)

func bar(symbol string, minute int) model.Bar {
	return model.Bar{Symbol: symbol, TS: t0.Add(time.Duration(minute) * time.Minute), Close: float64(minute)}
}

func TestReplayer_OrdersByTimeThenSymbol(t *testing.T) {
	r := New(&memReader{bars: []model.Bar{
		bar("MSFT", 1), bar("AAPL", 2), bar("MSFT", 0), bar("AAPL", 1), bar("AAPL", 0),
	}})
	var slept []time.Duration
	r.sleep = func(_ context.Context, d time.Duration) error {
		slept = append(slept, d)
		return nil
	}

	out := make(chan model.Bar, 10)
	if err := r.Run(context.Background(), []string{"AAPL", "MSFT"}, 0, 60, out); err != nil {
		t.Fatalf("Run: %v", err)
	}

	want := []struct {
		sym    string
		minute int
	}{{"AAPL", 0}, {"MSFT", 0}, {"AAPL", 1}, {"MSFT", 1}, {"AAPL", 2}}
	i := 0
	for b := range out {
		if i >= len(want) {
			t.Fatalf("too many bars")
		}
		if b.Symbol != want[i].sym || b.Close != float64(want[i].minute) {
			t.Errorf("bar %d = %s@%v, want %s@%d", i, b.Symbol, b.Close, want[i].sym, want[i].minute)
		}
		i++
	}
	if i != len(want) {
		t.Fatalf("got %d bars, want %d", i, len(want))
	}
	// Two one-minute gaps at 60x.
	if len(slept) != 2 || slept[0] != time.Second {
		t.Errorf("slept = %v, want [1s 1s]", slept)
	}
}

func TestReplayer_FromTSAndAllSymbols(t *testing.T) {
	r := New(&memReader{bars: []model.Bar{bar("AAPL", 0), bar("AAPL", 1), bar("MSFT", 2)}})
	bars, err := r.Load(nil, t0.Unix())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(bars) != 2 || bars[0].Symbol != "AAPL" || bars[1].Symbol != "MSFT" {
		t.Errorf("bars = %+v", bars)
	}
}

func TestReplayer_Cancelled(t *testing.T) {
	r := New(&memReader{bars: []model.Bar{bar("AAPL", 0), bar("AAPL", 1)}})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	out := make(chan model.Bar)
	err := r.Run(ctx, nil, 0, 0, out)
	if err != context.Canceled {
		t.Errorf("err = %v, want context.Canceled", err)
	}
}
