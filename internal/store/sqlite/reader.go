package sqlite

import (
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"lorentzian-signals/internal/model"
	"lorentzian-signals/internal/strategy"

	_ "github.com/mattn/go-sqlite3"
)

var _ model.BarReader = (*Reader)(nil)

// Reader provides read-only access to SQLite for warm-up and replay.
type Reader struct {
	db *sql.DB
}

// NewReader opens a SQLite connection for reading.
func NewReader(dbPath string) (*Reader, error) {
	db, err := sql.Open("sqlite3", dsn(dbPath))
	if err != nil {
		return nil, fmt.Errorf("sqlite open reader: %w", err)
	}
	db.SetMaxOpenConns(2)
	db.SetMaxIdleConns(2)

	slog.Info("opened database", "component", "sqlite-reader", "path", dbPath)
	return &Reader{db: db}, nil
}

// DB returns the underlying sql.DB for health checks.
func (r *Reader) DB() *sql.DB { return r.db }

// ReadBars reads one symbol's bars with ts > afterTS, oldest first.
func (r *Reader) ReadBars(symbol string, afterTS int64) ([]model.Bar, error) {
	rows, err := r.db.Query(`
		SELECT symbol, ts, open, high, low, close, volume
		FROM bars
		WHERE symbol = ? AND ts > ?
		ORDER BY ts ASC
	`, symbol, afterTS)
	if err != nil {
		return nil, fmt.Errorf("sqlite query bars: %w", err)
	}
	defer rows.Close()
	return scanBars(rows)
}

// ReadAllBars reads every symbol's bars with ts > afterTS ordered by time,
// then symbol, so a replay interleaves symbols deterministically.
func (r *Reader) ReadAllBars(afterTS int64) ([]model.Bar, error) {
	rows, err := r.db.Query(`
		SELECT symbol, ts, open, high, low, close, volume
		FROM bars
		WHERE ts > ?
		ORDER BY ts ASC, symbol ASC
	`, afterTS)
	if err != nil {
		return nil, fmt.Errorf("sqlite query all bars: %w", err)
	}
	defer rows.Close()
	return scanBars(rows)
}

func scanBars(rows *sql.Rows) ([]model.Bar, error) {
	var bars []model.Bar
	for rows.Next() {
		var b model.Bar
		var tsUnix int64
		var vol sql.NullFloat64
		if err := rows.Scan(&b.Symbol, &tsUnix, &b.Open, &b.High, &b.Low, &b.Close, &vol); err != nil {
			return nil, fmt.Errorf("sqlite scan bars: %w", err)
		}
		b.TS = time.Unix(tsUnix, 0).UTC()
		b.Volume = vol.Float64
		bars = append(bars, b)
	}
	return bars, rows.Err()
}

// Symbols lists the distinct symbols with stored bars.
func (r *Reader) Symbols() ([]string, error) {
	rows, err := r.db.Query(`SELECT DISTINCT symbol FROM bars ORDER BY symbol`)
	if err != nil {
		return nil, fmt.Errorf("sqlite query symbols: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, fmt.Errorf("sqlite scan symbol: %w", err)
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// ReadSignals returns the last limit signals for symbol, newest first.
// onlyNew restricts the result to debounced (action-changing) signals.
func (r *Reader) ReadSignals(symbol string, limit int, onlyNew bool) ([]strategy.Signal, error) {
	q := `
		SELECT symbol, ts, action, base, score, trend, alert, estimate, price, is_new, f_vol, f_regime, f_adx, f_kernel
		FROM signals
		WHERE symbol = ?`
	if onlyNew {
		q += ` AND is_new = 1`
	}
	q += ` ORDER BY ts DESC LIMIT ?`

	rows, err := r.db.Query(q, symbol, limit)
	if err != nil {
		return nil, fmt.Errorf("sqlite query signals: %w", err)
	}
	defer rows.Close()

	var out []strategy.Signal
	for rows.Next() {
		var s strategy.Signal
		var tsUnix int64
		var action, base string
		if err := rows.Scan(&s.Symbol, &tsUnix, &action, &base, &s.Score, &s.Trend, &s.Alert,
			&s.Estimate, &s.Price, &s.IsNew,
			&s.Filters.Volatility, &s.Filters.Regime, &s.Filters.ADX, &s.Filters.Kernel); err != nil {
			return nil, fmt.Errorf("sqlite scan signal: %w", err)
		}
		s.TS = time.Unix(tsUnix, 0).UTC()
		s.Action = strategy.Action(action)
		s.Base = strategy.Action(base)
		s.Strategy = "lorentzian:" + s.Symbol
		out = append(out, s)
	}
	return out, rows.Err()
}

// Close closes the reader.
func (r *Reader) Close() error {
	return r.db.Close()
}
