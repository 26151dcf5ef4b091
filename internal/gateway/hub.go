// Package gateway fans live signals out to WebSocket subscribers and serves
// recent and historical signals over REST.
package gateway

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"lorentzian-signals/internal/strategy"

	"github.com/gorilla/websocket"
)

// Hub tracks WebSocket clients, the latest signal per channel and a replay
// buffer per channel for gap backfill.
type Hub struct {
	mu      sync.RWMutex
	clients map[*Client]bool
	latest  map[string]latestEntry
	seq     int64

	// per-channel monotonic sequence numbers for gap detection
	channelSeqs map[string]int64
	replayBufs  map[string]*ReplayBuffer

	Latency     *LatencyTracker
	Broadcaster *Broadcaster

	// OnClientCount is called with the client count after every connect or
	// disconnect (optional).
	OnClientCount func(n int)

	log *slog.Logger
}

type latestEntry struct {
	Data json.RawMessage
	TS   time.Time
	Seq  int64
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	h := &Hub{
		clients:     make(map[*Client]bool),
		latest:      make(map[string]latestEntry),
		channelSeqs: make(map[string]int64),
		replayBufs:  make(map[string]*ReplayBuffer),
		Latency:     NewLatencyTracker(10000),
		log:         slog.Default().With("component", "gateway"),
	}
	h.Broadcaster = NewBroadcaster(h)
	return h
}

// Run broadcasts signals from in until ctx is cancelled or in is closed.
func (h *Hub) Run(ctx context.Context, in <-chan strategy.Signal) {
	for {
		select {
		case <-ctx.Done():
			return
		case sig, ok := <-in:
			if !ok {
				return
			}
			h.Broadcaster.Broadcast(sig.StreamKey(), sig.JSON())
		}
	}
}

// Register attaches an upgraded connection and starts its pumps. lastTS is
// an RFC3339Nano cutoff: only latest entries newer than it are replayed.
func (h *Hub) Register(conn *websocket.Conn, lastTS string) *Client {
	c := newClient(h, conn)
	conn.EnableWriteCompression(true)

	h.mu.Lock()
	h.clients[c] = true
	n := len(h.clients)
	h.mu.Unlock()

	h.log.Info("ws client connected", "clients", n)
	if h.OnClientCount != nil {
		h.OnClientCount(n)
	}

	c.sendInitialState(lastTS)
	go c.writePump()
	go c.readPump()
	return c
}

// RemoveClient detaches c and closes its send channel.
func (h *Hub) RemoveClient(c *Client) {
	h.mu.Lock()
	if !h.clients[c] {
		h.mu.Unlock()
		return
	}
	delete(h.clients, c)
	n := len(h.clients)
	close(c.send)
	h.mu.Unlock()

	h.log.Info("ws client disconnected", "clients", n)
	if h.OnClientCount != nil {
		h.OnClientCount(n)
	}
}

// GetLatestAll returns the latest payload per channel.
func (h *Hub) GetLatestAll() map[string]json.RawMessage {
	h.mu.RLock()
	defer h.mu.RUnlock()
	cp := make(map[string]json.RawMessage, len(h.latest))
	for k, v := range h.latest {
		cp[k] = v.Data
	}
	return cp
}

// GetReplayRange returns buffered envelopes for channel with channel_seq in
// [fromSeq, toSeq].
func (h *Hub) GetReplayRange(channel string, fromSeq, toSeq int64) [][]byte {
	h.mu.RLock()
	rb, exists := h.replayBufs[channel]
	h.mu.RUnlock()
	if !exists {
		return nil
	}
	entries := rb.Range(fromSeq, toSeq)
	out := make([][]byte, len(entries))
	for i, e := range entries {
		out[i] = e.Data
	}
	return out
}

// GetChannelSeq returns the current sequence number for channel.
func (h *Hub) GetChannelSeq(channel string) int64 {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.channelSeqs[channel]
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}
