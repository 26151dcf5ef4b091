package model

import "context"

// ── Storage Port Interfaces ──
// These decouple the signal pipeline from concrete stores (SQLite, Redis).

// BarReader reads historical bars for warm-up and replay.
type BarReader interface {
	// ReadBars reads bars for one symbol with ts > afterTS, oldest first.
	ReadBars(symbol string, afterTS int64) ([]Bar, error)

	// ReadAllBars reads bars for every symbol with ts > afterTS, oldest first.
	ReadAllBars(afterTS int64) ([]Bar, error)

	// Symbols lists the symbols that have stored bars.
	Symbols() ([]string, error)

	// Close releases underlying resources.
	Close() error
}

// BarWriter persists bars (used to seed history for replay).
type BarWriter interface {
	WriteBars(ctx context.Context, bars []Bar) error
	Close() error
}

// BarStream delivers live bars in per-symbol time order.
type BarStream interface {
	// ConsumeBars reads bars for the given symbols into out.
	// Blocks until ctx is cancelled.
	ConsumeBars(ctx context.Context, symbols []string, out chan<- Bar) error

	// Close releases underlying resources.
	Close() error
}
