// Package replay reads stored bars and emits them in time order at a
// configurable speed for backtesting.
package replay

import (
	"context"
	"log/slog"
	"slices"
	"time"

	"lorentzian-signals/internal/model"
)

// maxGap caps the sleep between two consecutive timestamps.
const maxGap = 5 * time.Second

// Replayer replays bars from a BarReader.
type Replayer struct {
	reader model.BarReader
	log    *slog.Logger
	sleep  func(ctx context.Context, d time.Duration) error
}

// New creates a Replayer backed by reader.
func New(reader model.BarReader) *Replayer {
	return &Replayer{
		reader: reader,
		log:    slog.Default().With("component", "replay"),
		sleep:  sleepCtx,
	}
}

// Load reads the bars for symbols (all stored symbols when empty) with
// ts > fromTS, sorted by time then symbol.
func (r *Replayer) Load(symbols []string, fromTS int64) ([]model.Bar, error) {
	var bars []model.Bar
	if len(symbols) == 0 {
		all, err := r.reader.ReadAllBars(fromTS)
		if err != nil {
			return nil, err
		}
		bars = all
	} else {
		for _, s := range symbols {
			sb, err := r.reader.ReadBars(s, fromTS)
			if err != nil {
				return nil, err
			}
			bars = append(bars, sb...)
		}
	}
	slices.SortStableFunc(bars, func(a, b model.Bar) int {
		if c := a.TS.Compare(b.TS); c != 0 {
			return c
		}
		switch {
		case a.Symbol < b.Symbol:
			return -1
		case a.Symbol > b.Symbol:
			return 1
		}
		return 0
	})
	return bars, nil
}

// Run replays bars into out and closes it when done. speed controls the
// playback rate: 1.0 = real time, 10.0 = 10x, 0 = as fast as possible.
func (r *Replayer) Run(ctx context.Context, symbols []string, fromTS int64, speed float64, out chan<- model.Bar) error {
	defer close(out)

	bars, err := r.Load(symbols, fromTS)
	if err != nil {
		return err
	}
	if len(bars) == 0 {
		r.log.Warn("no bars found")
		return nil
	}
	r.log.Info("loaded bars", "count", len(bars), "speed", speed)

	var prevTS time.Time
	emitted := 0
	for _, b := range bars {
		if speed > 0 && !prevTS.IsZero() {
			if gap := b.TS.Sub(prevTS); gap > 0 {
				wait := min(time.Duration(float64(gap)/speed), maxGap)
				if err := r.sleep(ctx, wait); err != nil {
					r.log.Info("cancelled", "emitted", emitted)
					return err
				}
			}
		}
		prevTS = b.TS

		select {
		case out <- b:
			emitted++
		case <-ctx.Done():
			r.log.Info("cancelled", "emitted", emitted)
			return ctx.Err()
		}
	}

	r.log.Info("completed", "emitted", emitted)
	return nil
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
