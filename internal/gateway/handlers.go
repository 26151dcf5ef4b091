package gateway

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"lorentzian-signals/internal/kernel"
	"lorentzian-signals/internal/strategy"

	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	CheckOrigin:       func(r *http.Request) bool { return true },
	EnableCompression: true,
}

// SignalHistory reads persisted signals, newest first.
type SignalHistory interface {
	ReadSignals(symbol string, limit int, onlyNew bool) ([]strategy.Signal, error)
}

// Routes are the optional data sources behind the REST endpoints.
type Routes struct {
	History SignalHistory                   // /api/signals; 503 when nil
	Kernels func() map[string]kernel.Output // /api/kernels; 503 when nil
}

// SetCORS sets CORS headers for REST endpoints.
func SetCORS(w http.ResponseWriter) {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")
	w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
}

// RegisterRoutes mounts /ws and the REST endpoints on mux.
func RegisterRoutes(mux *http.ServeMux, hub *Hub, routes Routes) {
	mux.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			slog.Warn("ws upgrade failed", "component", "gateway", "error", err)
			return
		}
		hub.Register(conn, r.URL.Query().Get("last_ts"))
	})

	// latest signal per channel
	mux.HandleFunc("/api/signals/latest", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, hub.GetLatestAll())
	})

	// persisted signals: ?symbol=AAPL&limit=100&new=1
	mux.HandleFunc("/api/signals", func(w http.ResponseWriter, r *http.Request) {
		if routes.History == nil {
			writeError(w, http.StatusServiceUnavailable, "signal history not configured")
			return
		}
		q := r.URL.Query()
		symbol := q.Get("symbol")
		if symbol == "" {
			writeError(w, http.StatusBadRequest, "symbol is required")
			return
		}
		limit := 200
		if l, err := strconv.Atoi(q.Get("limit")); err == nil && l > 0 && l <= 5000 {
			limit = l
		}
		onlyNew := q.Get("new") == "1" || q.Get("new") == "true"

		sigs, err := routes.History.ReadSignals(symbol, limit, onlyNew)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		if sigs == nil {
			sigs = []strategy.Signal{}
		}
		writeJSON(w, http.StatusOK, sigs)
	})

	// gap backfill: ?channel=signal:AAPL&from=10&to=20
	mux.HandleFunc("/api/missed", func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		channel := q.Get("channel")
		from, errFrom := strconv.ParseInt(q.Get("from"), 10, 64)
		to, errTo := strconv.ParseInt(q.Get("to"), 10, 64)
		if channel == "" || errFrom != nil {
			writeError(w, http.StatusBadRequest, "channel and from are required")
			return
		}
		if errTo != nil {
			to = hub.GetChannelSeq(channel)
		}
		envelopes := hub.GetReplayRange(channel, from, to)
		out := make([]json.RawMessage, len(envelopes))
		for i, e := range envelopes {
			out[i] = e
		}
		writeJSON(w, http.StatusOK, out)
	})

	// kernel state per symbol
	mux.HandleFunc("/api/kernels", func(w http.ResponseWriter, r *http.Request) {
		if routes.Kernels == nil {
			writeError(w, http.StatusServiceUnavailable, "kernel state not available")
			return
		}
		type kernelOut struct {
			Estimate float64 `json:"estimate"`
			Slope    float64 `json:"slope"`
			Trend    string  `json:"trend"`
			Alert    int     `json:"alert"`
			Ready    bool    `json:"ready"`
		}
		states := routes.Kernels()
		out := make(map[string]kernelOut, len(states))
		for sym, k := range states {
			out[sym] = kernelOut{Estimate: k.Estimate, Slope: k.Slope, Trend: k.Trend.String(), Alert: k.Alert, Ready: k.Ready}
		}
		writeJSON(w, http.StatusOK, out)
	})

	mux.HandleFunc("/api/latency", func(w http.ResponseWriter, r *http.Request) {
		p50, p95, p99 := hub.Latency.Percentiles()
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"p50_ms":  p50,
			"p95_ms":  p95,
			"p99_ms":  p99,
			"samples": hub.Latency.Count(),
			"clients": hub.ClientCount(),
		})
	})
}

func writeJSON(w http.ResponseWriter, code int, v interface{}) {
	SetCORS(w)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]string{"error": msg})
}
