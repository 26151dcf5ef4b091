package redis

import (
	"testing"
	"time"

	"lorentzian-signals/internal/model"
	"lorentzian-signals/internal/strategy"
)

func TestDecodeBar(t *testing.T) {
	bar := model.Bar{
		Symbol: "AAPL",
		TS:     time.Date(2024, 3, 1, 14, 30, 0, 0, time.UTC),
		Open:   180, High: 181.5, Low: 179.2, Close: 181, Volume: 12000,
	}
	got, err := decodeBar(map[string]interface{}{"data": string(bar.JSON())})
	if err != nil {
		t.Fatalf("decodeBar: %v", err)
	}
	if got.Symbol != "AAPL" || !got.TS.Equal(bar.TS) || got.Close != 181 {
		t.Errorf("decoded %+v, want %+v", got, bar)
	}

	bad := []map[string]interface{}{
		{},
		{"data": 42},
		{"data": "{not json"},
		{"data": `{"close": 1}`},
	}
	for i, v := range bad {
		if _, err := decodeBar(v); err == nil {
			t.Errorf("case %d: expected error", i)
		}
	}
}

func TestStreamCursor(t *testing.T) {
	c := newStreamCursor([]string{"AAPL", "MSFT", "AAPL"}, "$")
	args := c.args()
	want := []string{"bar:AAPL", "bar:MSFT", "$", "$"}
	if len(args) != len(want) {
		t.Fatalf("args = %v, want %v", args, want)
	}
	for i := range want {
		if args[i] != want[i] {
			t.Errorf("args[%d] = %q, want %q", i, args[i], want[i])
		}
	}

	c.advance("bar:MSFT", "1700000000000-0")
	c.advance("bar:UNKNOWN", "1-0")
	args = c.args()
	if args[2] != "$" || args[3] != "1700000000000-0" {
		t.Errorf("after advance args = %v", args)
	}
}

func TestPendingBuffer_DropsOldest(t *testing.T) {
	b := newPendingBuffer(2)
	if b.Add(strategy.Signal{Symbol: "A"}) || b.Add(strategy.Signal{Symbol: "B"}) {
		t.Fatal("no drop expected below capacity")
	}
	if !b.Add(strategy.Signal{Symbol: "C"}) {
		t.Fatal("expected drop at capacity")
	}

	got := b.Drain()
	if len(got) != 2 || got[0].Symbol != "B" || got[1].Symbol != "C" {
		t.Errorf("drain = %v, want [B C]", got)
	}
	if b.Len() != 0 || b.Drain() != nil {
		t.Error("buffer should be empty after drain")
	}
}
