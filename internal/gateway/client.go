package gateway

import (
	"encoding/json"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = 30 * time.Second
)

// Client is one WebSocket peer. With no subscriptions it receives every
// channel; otherwise only signal:{symbol} channels for subscribed symbols.
type Client struct {
	conn *websocket.Conn
	send chan []byte
	hub  *Hub

	subMu   sync.RWMutex
	symbols map[string]bool
}

// controlMsg is the client → server message.
// {"type":"SUBSCRIBE","symbols":["AAPL"]}, {"type":"UNSUBSCRIBE",...} or {"ping":<ms>}.
type controlMsg struct {
	Type    string   `json:"type"`
	Symbols []string `json:"symbols"`
	Ping    int64    `json:"ping"`
}

func newClient(h *Hub, conn *websocket.Conn) *Client {
	return &Client{
		conn:    conn,
		send:    make(chan []byte, 256),
		hub:     h,
		symbols: make(map[string]bool),
	}
}

func (c *Client) sendInitialState(lastTS string) {
	var cutoff time.Time
	if lastTS != "" {
		if parsed, err := time.Parse(time.RFC3339Nano, lastTS); err == nil {
			cutoff = parsed
		}
	}

	c.hub.mu.RLock()
	defer c.hub.mu.RUnlock()
	for channel, entry := range c.hub.latest {
		if !cutoff.IsZero() && !entry.TS.After(cutoff) {
			continue
		}
		envelope, _ := json.Marshal(map[string]interface{}{
			"channel":     channel,
			"data":        entry.Data,
			"ts":          entry.TS.Format(time.RFC3339Nano),
			"channel_seq": entry.Seq,
			"initial":     true,
		})
		select {
		case c.send <- envelope:
		default:
		}
	}
}

// trySend queues msg unless the client is slow. Caller holds hub.mu.
func (c *Client) trySend(msg []byte) {
	select {
	case c.send <- msg:
	default:
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			// coalesce queued envelopes into one frame, newline separated
			w, err := c.conn.NextWriter(websocket.TextMessage)
			if err != nil {
				return
			}
			w.Write(msg)
			n := len(c.send)
			for i := 0; i < n; i++ {
				w.Write([]byte{'\n'})
				w.Write(<-c.send)
			}
			if err := w.Close(); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *Client) readPump() {
	defer func() {
		c.hub.RemoveClient(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(4096)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			return
		}
		var msg controlMsg
		if json.Unmarshal(raw, &msg) != nil {
			continue
		}
		switch strings.ToUpper(msg.Type) {
		case "SUBSCRIBE":
			c.subscribe(msg.Symbols)
			c.ack("subscribed", msg.Symbols)
		case "UNSUBSCRIBE":
			c.unsubscribe(msg.Symbols)
			c.ack("unsubscribed", msg.Symbols)
		default:
			if msg.Ping > 0 {
				pong, _ := json.Marshal(map[string]interface{}{
					"type":      "pong",
					"ping":      msg.Ping,
					"server_ts": time.Now().UnixMilli(),
				})
				c.hub.mu.RLock()
				c.trySend(pong)
				c.hub.mu.RUnlock()
			}
		}
	}
}

func (c *Client) ack(kind string, symbols []string) {
	out, _ := json.Marshal(map[string]interface{}{"type": kind, "symbols": symbols})
	c.hub.mu.RLock()
	if c.hub.clients[c] {
		c.trySend(out)
	}
	c.hub.mu.RUnlock()
}

func (c *Client) subscribe(symbols []string) {
	c.subMu.Lock()
	for _, s := range symbols {
		if s = strings.TrimSpace(s); s != "" {
			c.symbols[s] = true
		}
	}
	c.subMu.Unlock()
}

func (c *Client) unsubscribe(symbols []string) {
	c.subMu.Lock()
	for _, s := range symbols {
		delete(c.symbols, strings.TrimSpace(s))
	}
	c.subMu.Unlock()
}

// matchesChannel reports whether the client should receive channel.
func (c *Client) matchesChannel(channel string) bool {
	c.subMu.RLock()
	defer c.subMu.RUnlock()
	if len(c.symbols) == 0 {
		return true
	}
	symbol, ok := strings.CutPrefix(channel, "signal:")
	if !ok {
		return true
	}
	return c.symbols[symbol]
}
