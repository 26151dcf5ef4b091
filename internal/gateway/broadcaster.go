package gateway

import (
	"encoding/json"
	"strconv"
	"time"
)

const replayCapacity = 500

// Broadcaster builds envelopes and fans them out to matching clients.
type Broadcaster struct {
	hub *Hub
	now func() time.Time
}

// NewBroadcaster creates a Broadcaster backed by hub.
func NewBroadcaster(hub *Hub) *Broadcaster {
	return &Broadcaster{hub: hub, now: time.Now}
}

// Broadcast records data as the latest payload of channel, appends the
// envelope to the channel's replay buffer and queues it for every client
// subscribed to the channel. Slow clients miss the message.
func (b *Broadcaster) Broadcast(channel string, data []byte) {
	now := b.now().UTC()

	if srcTS := extractTS(data); !srcTS.IsZero() && b.hub.Latency != nil {
		if ms := float64(now.Sub(srcTS).Microseconds()) / 1000.0; ms >= 0 {
			b.hub.Latency.Record(ms)
		}
	}

	b.hub.mu.Lock()
	b.hub.channelSeqs[channel]++
	channelSeq := b.hub.channelSeqs[channel]
	b.hub.seq++
	seq := b.hub.seq
	b.hub.latest[channel] = latestEntry{Data: data, TS: now, Seq: channelSeq}
	rb, exists := b.hub.replayBufs[channel]
	if !exists {
		rb = NewReplayBuffer(replayCapacity)
		b.hub.replayBufs[channel] = rb
	}
	b.hub.mu.Unlock()

	buf := buildEnvelope(channel, data, now, seq, channelSeq)
	rb.Push(channelSeq, buf)

	b.hub.mu.RLock()
	defer b.hub.mu.RUnlock()
	for client := range b.hub.clients {
		if client.matchesChannel(channel) {
			client.trySend(buf)
		}
	}
}

// buildEnvelope writes {"channel":..,"data":..,"ts":..,"seq":..,"channel_seq":..}
// without reflection. data must be valid JSON.
func buildEnvelope(channel string, data []byte, now time.Time, seq, channelSeq int64) []byte {
	buf := make([]byte, 0, len(channel)+len(data)+160)
	buf = append(buf, `{"channel":`...)
	buf = strconv.AppendQuote(buf, channel)
	buf = append(buf, `,"data":`...)
	buf = append(buf, data...)
	buf = append(buf, `,"ts":"`...)
	buf = now.AppendFormat(buf, time.RFC3339Nano)
	buf = append(buf, `","seq":`...)
	buf = strconv.AppendInt(buf, seq, 10)
	buf = append(buf, `,"channel_seq":`...)
	buf = strconv.AppendInt(buf, channelSeq, 10)
	buf = append(buf, '}')
	return buf
}

// extractTS reads the payload's "ts" field, if any.
func extractTS(data []byte) time.Time {
	var partial struct {
		TS time.Time `json:"ts"`
	}
	if err := json.Unmarshal(data, &partial); err == nil {
		return partial.TS
	}
	return time.Time{}
}
