package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"lorentzian-signals/internal/model"
	"lorentzian-signals/internal/strategy"

	_ "github.com/mattn/go-sqlite3"
)

const (
	defaultBatchSize  = 100
	defaultFlushDelay = 200 * time.Millisecond
)

// WriterConfig configures the SQLite writer.
type WriterConfig struct {
	DBPath string // path to SQLite database file, e.g. "data/bars.db"
}

var _ model.BarWriter = (*Writer)(nil)

// Writer is a single-connection SQLite writer with transaction batching.
type Writer struct {
	db  *sql.DB
	log *slog.Logger
}

// DB returns the underlying sql.DB for health checks.
func (w *Writer) DB() *sql.DB { return w.db }

// New opens the database in WAL mode and ensures the schema exists.
func New(cfg WriterConfig) (*Writer, error) {
	db, err := sql.Open("sqlite3", dsn(cfg.DBPath))
	if err != nil {
		return nil, fmt.Errorf("sqlite open: %w", err)
	}

	// single writer
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := createSchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite schema: %w", err)
	}

	l := slog.Default().With("component", "sqlite")
	l.Info("opened database", "path", cfg.DBPath)
	return &Writer{db: db, log: l}, nil
}

func dsn(path string) string {
	return path + "?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000"
}

func createSchema(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS bars (
			symbol     TEXT    NOT NULL,
			ts         INTEGER NOT NULL,
			open       REAL    NOT NULL,
			high       REAL    NOT NULL,
			low        REAL    NOT NULL,
			close      REAL    NOT NULL,
			volume     REAL,
			PRIMARY KEY (symbol, ts)
		);

		CREATE TABLE IF NOT EXISTS signals (
			symbol     TEXT    NOT NULL,
			ts         INTEGER NOT NULL,
			action     TEXT    NOT NULL,
			base       TEXT    NOT NULL,
			score      REAL    NOT NULL,
			trend      TEXT,
			alert      INTEGER,
			estimate   REAL,
			price      REAL,
			is_new     INTEGER NOT NULL,
			f_vol      INTEGER NOT NULL,
			f_regime   INTEGER NOT NULL,
			f_adx      INTEGER NOT NULL,
			f_kernel   INTEGER NOT NULL,
			PRIMARY KEY (symbol, ts)
		);
		CREATE INDEX IF NOT EXISTS idx_signals_new ON signals(symbol, is_new);
	`)
	return err
}

// WriteBars inserts bars in one transaction. Existing (symbol, ts) rows are replaced.
func (w *Writer) WriteBars(ctx context.Context, bars []model.Bar) error {
	if len(bars) == 0 {
		return nil
	}
	tx, err := w.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlite begin: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT OR REPLACE INTO bars (symbol, ts, open, high, low, close, volume)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		tx.Rollback()
		return fmt.Errorf("sqlite prepare bars: %w", err)
	}
	defer stmt.Close()

	for _, b := range bars {
		if _, err := stmt.ExecContext(ctx, b.Symbol, b.TS.Unix(), b.Open, b.High, b.Low, b.Close, b.Volume); err != nil {
			tx.Rollback()
			return fmt.Errorf("sqlite insert bar %s@%d: %w", b.Symbol, b.TS.Unix(), err)
		}
	}
	return tx.Commit()
}

// WriteSignals inserts signals in one transaction.
func (w *Writer) WriteSignals(ctx context.Context, sigs []strategy.Signal) error {
	if len(sigs) == 0 {
		return nil
	}
	tx, err := w.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlite begin: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT OR REPLACE INTO signals
			(symbol, ts, action, base, score, trend, alert, estimate, price, is_new, f_vol, f_regime, f_adx, f_kernel)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		tx.Rollback()
		return fmt.Errorf("sqlite prepare signals: %w", err)
	}
	defer stmt.Close()

	for _, s := range sigs {
		_, err := stmt.ExecContext(ctx, s.Symbol, s.TS.Unix(), string(s.Action), string(s.Base), s.Score,
			s.Trend, s.Alert, s.Estimate, s.Price, s.IsNew,
			s.Filters.Volatility, s.Filters.Regime, s.Filters.ADX, s.Filters.Kernel)
		if err != nil {
			tx.Rollback()
			return fmt.Errorf("sqlite insert signal %s: %w", s.Symbol, err)
		}
	}
	return tx.Commit()
}

// RunSignals reads signals from sigCh and inserts them in batched transactions.
// Flushes every batchSize signals OR every flushDelay, whichever first.
// Blocks until ctx is cancelled or sigCh is closed.
func (w *Writer) RunSignals(ctx context.Context, sigCh <-chan strategy.Signal) {
	batch := make([]strategy.Signal, 0, defaultBatchSize)
	timer := time.NewTimer(defaultFlushDelay)
	defer timer.Stop()

	flush := func() {
		if len(batch) == 0 {
			return
		}
		start := time.Now()
		// ctx may already be cancelled on shutdown; the final flush still has to land.
		if err := w.WriteSignals(context.Background(), batch); err != nil {
			w.log.Error("signal batch insert failed", "error", err)
		} else {
			w.log.Debug("committed signals", "count", len(batch), "took", time.Since(start))
		}
		batch = batch[:0]
	}

	for {
		select {
		case <-ctx.Done():
			flush()
			return

		case sig, ok := <-sigCh:
			if !ok {
				flush()
				return
			}
			batch = append(batch, sig)
			if len(batch) >= defaultBatchSize {
				flush()
				timer.Reset(defaultFlushDelay)
			}

		case <-timer.C:
			flush()
			timer.Reset(defaultFlushDelay)
		}
	}
}

// GetLastTimestamp returns the last stored bar timestamp for a symbol.
// Returns 0 if no bars exist.
func (w *Writer) GetLastTimestamp(symbol string) (int64, error) {
	var ts sql.NullInt64
	err := w.db.QueryRow(`SELECT MAX(ts) FROM bars WHERE symbol = ?`, symbol).Scan(&ts)
	if err != nil {
		return 0, fmt.Errorf("sqlite last ts %s: %w", symbol, err)
	}
	if !ts.Valid {
		return 0, nil
	}
	return ts.Int64, nil
}

// Close closes the database.
func (w *Writer) Close() error {
	return w.db.Close()
}
