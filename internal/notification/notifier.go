// Package notification delivers signal and risk alerts to external channels
// (webhooks, Telegram).
package notification

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"lorentzian-signals/internal/portfolio"
	"lorentzian-signals/internal/strategy"

	"golang.org/x/time/rate"
)

// AlertLevel represents the severity of an alert.
type AlertLevel string

const (
	AlertInfo     AlertLevel = "INFO"
	AlertWarning  AlertLevel = "WARNING"
	AlertCritical AlertLevel = "CRITICAL"
)

// Alert represents a notification to be sent.
type Alert struct {
	Level   AlertLevel `json:"level"`
	Title   string     `json:"title"`
	Message string     `json:"message"`
	Symbol  string     `json:"symbol,omitempty"`
	TS      time.Time  `json:"ts"`
}

// Notifier is the interface for all notification backends.
type Notifier interface {
	// Send delivers an alert. Returns error if delivery fails.
	Send(ctx context.Context, alert Alert) error
}

// LogNotifier writes alerts to the structured log.
type LogNotifier struct {
	log *slog.Logger
}

func NewLogNotifier() *LogNotifier {
	return &LogNotifier{log: slog.Default().With("component", "notify")}
}

func (n *LogNotifier) Send(_ context.Context, alert Alert) error {
	n.log.Info("alert", "level", alert.Level, "title", alert.Title, "symbol", alert.Symbol, "message", alert.Message)
	return nil
}

// SignalAlert converts a signal into an alert. Only new BUY or SELL signals
// produce one.
func SignalAlert(sig strategy.Signal) (Alert, bool) {
	if !sig.IsNew || sig.Action == strategy.ActionHold {
		return Alert{}, false
	}
	return Alert{
		Level:  AlertInfo,
		Title:  fmt.Sprintf("%s %s", sig.Action, sig.Symbol),
		Symbol: sig.Symbol,
		TS:     sig.TS,
		Message: fmt.Sprintf("price %.4f score %.2f kernel %s (estimate %.4f)",
			sig.Price, sig.Score, sig.Trend, sig.Estimate),
	}, true
}

// RiskAlert converts a risk report into an alert. Cycles where no rule
// fired produce none; a drawdown breach is critical.
func RiskAlert(r portfolio.RiskReport, ts time.Time) (Alert, bool) {
	switch r.Action {
	case portfolio.RiskNone, "":
		return Alert{}, false
	case portfolio.RiskDrawdown:
		return Alert{
			Level: AlertCritical,
			Title: "Drawdown limit breached",
			TS:    ts,
			Message: fmt.Sprintf("drawdown %.2f%% exceeds %.2f%% (regime %.2f); targets reduced",
				r.Drawdown*100, r.Limits.MaxDrawdown*100, r.Regime.Regime),
		}, true
	default:
		return Alert{
			Level: AlertWarning,
			Title: fmt.Sprintf("Risk rule fired: %s", r.Action),
			TS:    ts,
			Message: fmt.Sprintf("leverage %.2f (max %.2f), drawdown %.2f%%",
				r.Leverage, r.Limits.MaxLeverage, r.Drawdown*100),
		}, true
	}
}

// Dispatcher sends alerts to every configured notifier, rate limited.
type Dispatcher struct {
	notifiers []Notifier
	limiter   *rate.Limiter
	queue     chan Alert
	log       *slog.Logger
}

// NewDispatcher creates a dispatcher that sends at most perMinute alerts per
// minute (with a burst of the same size). perMinute <= 0 disables limiting.
func NewDispatcher(perMinute int, notifiers ...Notifier) *Dispatcher {
	lim := rate.NewLimiter(rate.Inf, 0)
	if perMinute > 0 {
		lim = rate.NewLimiter(rate.Every(time.Minute/time.Duration(perMinute)), perMinute)
	}
	return &Dispatcher{
		notifiers: notifiers,
		limiter:   lim,
		queue:     make(chan Alert, 64),
		log:       slog.Default().With("component", "notify"),
	}
}

// Notify waits for the rate limiter, then delivers alert to all notifiers.
// Errors from individual notifiers are joined.
func (d *Dispatcher) Notify(ctx context.Context, alert Alert) error {
	if err := d.limiter.Wait(ctx); err != nil {
		return err
	}
	var errs []error
	for _, n := range d.notifiers {
		if err := n.Send(ctx, alert); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Post queues alert for delivery by Run without blocking. It reports false
// when the queue is full and the alert was dropped.
func (d *Dispatcher) Post(alert Alert) bool {
	select {
	case d.queue <- alert:
		return true
	default:
		return false
	}
}

// Run turns signals into alerts and delivers posted alerts until ctx is
// cancelled or in is closed.
func (d *Dispatcher) Run(ctx context.Context, in <-chan strategy.Signal) {
	for {
		select {
		case <-ctx.Done():
			return
		case a := <-d.queue:
			if err := d.Notify(ctx, a); err != nil && ctx.Err() == nil {
				d.log.Warn("alert delivery failed", "title", a.Title, "error", err)
			}
		case sig, ok := <-in:
			if !ok {
				return
			}
			a, ok := SignalAlert(sig)
			if !ok {
				continue
			}
			if err := d.Notify(ctx, a); err != nil && ctx.Err() == nil {
				d.log.Warn("alert delivery failed", "symbol", sig.Symbol, "error", err)
			}
		}
	}
}
