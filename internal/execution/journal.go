package execution

import (
	"database/sql"
	"fmt"
	"log/slog"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// Journal persists fills to SQLite for analysis and audit.
type Journal struct {
	mu sync.Mutex
	db *sql.DB
}

// NewJournal opens (or creates) a SQLite journal database.
func NewJournal(dbPath string) (*Journal, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("journal open %s: %w", dbPath, err)
	}

	schema := `
	CREATE TABLE IF NOT EXISTS fills (
		id          INTEGER PRIMARY KEY AUTOINCREMENT,
		order_id    TEXT NOT NULL,
		strategy    TEXT NOT NULL DEFAULT '',
		symbol      TEXT NOT NULL,
		action      TEXT NOT NULL,
		qty         REAL NOT NULL,
		price       REAL NOT NULL,
		slippage    REAL DEFAULT 0,
		realized    REAL DEFAULT 0,
		reason      TEXT,
		filled_at   DATETIME NOT NULL,
		created_at  DATETIME DEFAULT CURRENT_TIMESTAMP
	);
	CREATE INDEX IF NOT EXISTS idx_fills_symbol ON fills(symbol);
	CREATE INDEX IF NOT EXISTS idx_fills_filled_at ON fills(filled_at);
	`
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("journal schema: %w", err)
	}

	slog.Info("opened fill journal", "component", "journal", "path", dbPath)
	return &Journal{db: db}, nil
}

// RecordFill persists a fill to the journal.
func (j *Journal) RecordFill(f Fill) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	_, err := j.db.Exec(
		`INSERT INTO fills (order_id, strategy, symbol, action, qty, price, slippage, realized, reason, filled_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		f.OrderID,
		f.Strategy,
		f.Symbol,
		string(f.Action),
		f.Qty,
		f.Price,
		f.Slippage,
		f.Realized,
		f.Reason,
		f.FilledAt.UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("journal insert %s: %w", f.OrderID, err)
	}
	return nil
}

// FillRecord represents a row from the fills table.
type FillRecord struct {
	ID       int64   `json:"id"`
	OrderID  string  `json:"order_id"`
	Strategy string  `json:"strategy"`
	Symbol   string  `json:"symbol"`
	Action   string  `json:"action"`
	Qty      float64 `json:"qty"`
	Price    float64 `json:"price"`
	Slippage float64 `json:"slippage"`
	Realized float64 `json:"realized"`
	Reason   string  `json:"reason"`
	FilledAt string  `json:"filled_at"`
}

// GetFills returns the last N fills, newest first.
func (j *Journal) GetFills(limit int) ([]FillRecord, error) {
	j.mu.Lock()
	defer j.mu.Unlock()

	rows, err := j.db.Query(
		`SELECT id, order_id, strategy, symbol, action, qty, price, slippage, realized, reason, filled_at
		 FROM fills ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("journal query: %w", err)
	}
	defer rows.Close()

	var out []FillRecord
	for rows.Next() {
		var r FillRecord
		if err := rows.Scan(&r.ID, &r.OrderID, &r.Strategy, &r.Symbol, &r.Action,
			&r.Qty, &r.Price, &r.Slippage, &r.Realized, &r.Reason, &r.FilledAt); err != nil {
			continue
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// Close closes the journal database.
func (j *Journal) Close() error {
	return j.db.Close()
}
