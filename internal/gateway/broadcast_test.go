package gateway

import (
	"bufio"
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"lorentzian-signals/internal/kernel"
	"lorentzian-signals/internal/strategy"

	"github.com/gorilla/websocket"
)

type envelope struct {
	Channel    string          `json:"channel"`
	Data       json.RawMessage `json:"data"`
	TS         string          `json:"ts"`
	Seq        int64           `json:"seq"`
	ChannelSeq int64           `json:"channel_seq"`
	Initial    bool            `json:"initial"`
}

func TestBuildEnvelope(t *testing.T) {
	sig := strategy.Signal{Symbol: "AAPL", Action: strategy.ActionBuy, Score: 0.75}
	now := time.Date(2024, 6, 3, 14, 0, 1, 5, time.UTC)

	buf := buildEnvelope(sig.StreamKey(), sig.JSON(), now, 42, 7)

	var env envelope
	if err := json.Unmarshal(buf, &env); err != nil {
		t.Fatalf("envelope is not valid JSON: %v\nraw: %s", err, buf)
	}
	if env.Channel != "signal:AAPL" || env.Seq != 42 || env.ChannelSeq != 7 {
		t.Errorf("envelope = %+v", env)
	}
	ts, err := time.Parse(time.RFC3339Nano, env.TS)
	if err != nil || !ts.Equal(now) {
		t.Errorf("ts = %q (%v)", env.TS, err)
	}
	var got strategy.Signal
	if err := json.Unmarshal(env.Data, &got); err != nil || got.Score != 0.75 || got.Action != strategy.ActionBuy {
		t.Errorf("data = %s (%v)", env.Data, err)
	}
}

func TestBroadcast_SeqAndFiltering(t *testing.T) {
	h := NewHub()
	all := newClient(h, nil)
	msft := newClient(h, nil)
	msft.subscribe([]string{"MSFT"})
	h.clients[all] = true
	h.clients[msft] = true

	h.Broadcaster.Broadcast("signal:AAPL", []byte(`{"symbol":"AAPL"}`))
	h.Broadcaster.Broadcast("signal:MSFT", []byte(`{"symbol":"MSFT"}`))
	h.Broadcaster.Broadcast("signal:AAPL", []byte(`{"symbol":"AAPL"}`))

	if len(all.send) != 3 {
		t.Errorf("unfiltered client got %d messages, want 3", len(all.send))
	}
	if len(msft.send) != 1 {
		t.Fatalf("MSFT client got %d messages, want 1", len(msft.send))
	}
	var env envelope
	json.Unmarshal(<-msft.send, &env)
	if env.Channel != "signal:MSFT" || env.Seq != 2 || env.ChannelSeq != 1 {
		t.Errorf("MSFT envelope = %+v", env)
	}

	if h.GetChannelSeq("signal:AAPL") != 2 {
		t.Errorf("AAPL channel seq = %d, want 2", h.GetChannelSeq("signal:AAPL"))
	}
	if got := h.GetReplayRange("signal:AAPL", 2, 2); len(got) != 1 {
		t.Errorf("replay range len = %d, want 1", len(got))
	}
	if len(h.GetLatestAll()) != 2 {
		t.Errorf("latest channels = %d, want 2", len(h.GetLatestAll()))
	}
}

func TestMatchesChannel(t *testing.T) {
	c := newClient(NewHub(), nil)
	if !c.matchesChannel("signal:AAPL") {
		t.Error("client without subscriptions should receive everything")
	}
	c.subscribe([]string{" AAPL ", ""})
	if !c.matchesChannel("signal:AAPL") || c.matchesChannel("signal:MSFT") {
		t.Error("subscription filter not applied")
	}
	if !c.matchesChannel("system") {
		t.Error("non-signal channels are always delivered")
	}
	c.unsubscribe([]string{"AAPL"})
	if !c.matchesChannel("signal:MSFT") {
		t.Error("unsubscribing everything restores the firehose")
	}
}

// readEnvelopes reads one frame and splits coalesced envelopes.
func readEnvelopes(t *testing.T, conn *websocket.Conn) []envelope {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, frame, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	var out []envelope
	sc := bufio.NewScanner(bytes.NewReader(frame))
	for sc.Scan() {
		var env envelope
		if err := json.Unmarshal(sc.Bytes(), &env); err != nil {
			t.Fatalf("bad envelope %q: %v", sc.Text(), err)
		}
		out = append(out, env)
	}
	return out
}

func TestWebSocket_EndToEnd(t *testing.T) {
	h := NewHub()
	h.Broadcaster.Broadcast("signal:AAPL", []byte(`{"symbol":"AAPL","action":"BUY"}`))

	mux := http.NewServeMux()
	RegisterRoutes(mux, h, Routes{})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	initial := readEnvelopes(t, conn)
	if len(initial) != 1 || !initial[0].Initial || initial[0].Channel != "signal:AAPL" {
		t.Fatalf("initial state = %+v", initial)
	}

	if err := conn.WriteJSON(map[string]interface{}{"type": "SUBSCRIBE", "symbols": []string{"MSFT"}}); err != nil {
		t.Fatalf("write: %v", err)
	}
	ack := readEnvelopes(t, conn)
	if len(ack) != 1 {
		t.Fatalf("expected subscribe ack, got %+v", ack)
	}

	h.Broadcaster.Broadcast("signal:AAPL", []byte(`{"symbol":"AAPL"}`))
	h.Broadcaster.Broadcast("signal:MSFT", []byte(`{"symbol":"MSFT"}`))
	got := readEnvelopes(t, conn)
	if len(got) != 1 || got[0].Channel != "signal:MSFT" {
		t.Errorf("after subscribe got %+v, want only signal:MSFT", got)
	}
	if h.ClientCount() != 1 {
		t.Errorf("client count = %d, want 1", h.ClientCount())
	}
}

type fakeHistory struct {
	symbol  string
	onlyNew bool
}

func (f *fakeHistory) ReadSignals(symbol string, limit int, onlyNew bool) ([]strategy.Signal, error) {
	f.symbol, f.onlyNew = symbol, onlyNew
	return []strategy.Signal{{Symbol: symbol, Action: strategy.ActionSell}}, nil
}

func TestRESTRoutes(t *testing.T) {
	h := NewHub()
	h.Broadcaster.Broadcast("signal:AAPL", []byte(`{"symbol":"AAPL"}`))
	hist := &fakeHistory{}
	mux := http.NewServeMux()
	RegisterRoutes(mux, h, Routes{
		History: hist,
		Kernels: func() map[string]kernel.Output {
			return map[string]kernel.Output{"AAPL": {Estimate: 101, Trend: kernel.Bullish, Ready: true}}
		},
	})

	get := func(path string) *httptest.ResponseRecorder {
		rec := httptest.NewRecorder()
		mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		return rec
	}

	if rec := get("/api/signals"); rec.Code != http.StatusBadRequest {
		t.Errorf("/api/signals without symbol: code %d", rec.Code)
	}
	rec := get("/api/signals?symbol=MSFT&new=1")
	if rec.Code != http.StatusOK || hist.symbol != "MSFT" || !hist.onlyNew {
		t.Errorf("/api/signals: code %d history=%+v", rec.Code, hist)
	}

	rec = get("/api/missed?channel=signal:AAPL&from=1")
	var missed []envelope
	if err := json.NewDecoder(rec.Body).Decode(&missed); err != nil || len(missed) != 1 {
		t.Errorf("/api/missed = %v (%v)", missed, err)
	}

	rec = get("/api/kernels")
	var kernels map[string]struct {
		Trend string `json:"trend"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&kernels); err != nil || kernels["AAPL"].Trend != kernel.Bullish.String() {
		t.Errorf("/api/kernels = %v (%v)", kernels, err)
	}
}
