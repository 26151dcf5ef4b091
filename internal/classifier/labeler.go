package classifier

import (
	"lorentzian-signals/internal/model"
	"lorentzian-signals/internal/ringbuf"
)

// DefaultHorizon is the number of bars between a vector and its label.
const DefaultHorizon = 4

type pending struct {
	close    float64
	features []float64
}

// Labeler turns a bar stream into training samples. A vector seen at bar t is
// labelled sign(close[t+h] - close[t]) once bar t+h arrives, so no sample ever
// carries information the classifier could not have had at prediction time.
type Labeler struct {
	horizon int
	buf     *ringbuf.Ring[pending]
}

// NewLabeler creates a labeler with the given horizon (min 1).
func NewLabeler(horizon int) *Labeler {
	if horizon < 1 {
		horizon = DefaultHorizon
	}
	return &Labeler{horizon: horizon, buf: ringbuf.New[pending](horizon + 1)}
}

// Add records the current close and its feature vector (nil while the
// vector is still warming up). It returns the sample whose horizon has just
// elapsed, if any.
func (l *Labeler) Add(close float64, features []float64) (Sample, bool) {
	l.buf.Push(pending{close: close, features: features})
	if l.buf.Len() <= l.horizon {
		return Sample{}, false
	}
	old := l.buf.Oldest(0)
	if old.features == nil {
		return Sample{}, false
	}
	return Sample{Features: old.features, Label: model.Sign(close - old.close)}, true
}

// Horizon returns the label horizon in bars.
func (l *Labeler) Horizon() int { return l.horizon }
