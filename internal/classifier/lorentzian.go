// Package classifier implements the Lorentzian-distance nearest-neighbour
// classifier over a bounded window of labelled feature vectors.
package classifier

import (
	"errors"
	"math"
	"sort"

	"lorentzian-signals/internal/model"
)

// ErrNotReady is returned by Predict while the window holds fewer than k samples.
var ErrNotReady = errors.New("classifier: window smaller than k")

// Classifier is the capability the signal pipeline depends on.
type Classifier interface {
	Observe(s Sample)
	Predict(features []float64) (float64, error)
	Len() int
}

// Sample is a feature vector with its realised forward direction (-1, 0, +1).
type Sample struct {
	Features []float64
	Label    float64
}

// Config holds the classifier parameters.
type Config struct {
	Neighbors        int     // k
	MaxWindow        int     // window capacity
	LorentzianWeight float64 // forced-prune cadence as a fraction of capacity
	ResetFactor      float64 // fraction of the window dropped on each forced prune
}

// Distance is the Lorentzian distance Σ ln(1+|x_i-y_i|) over the common prefix.
func Distance(x, y []float64) float64 {
	n := min(len(x), len(y))
	d := 0.0
	for i := 0; i < n; i++ {
		d += math.Log1p(math.Abs(x[i] - y[i]))
	}
	return d
}

// Lorentzian is a k-nearest-neighbour classifier using Distance.
type Lorentzian struct {
	k      int
	window *Window

	// scratch reused across Predict calls
	cands []candidate
}

type candidate struct {
	dist  float64
	age   int // 0 = newest
	label float64
}

// New creates a classifier. k < 1 is treated as 1.
func New(cfg Config) *Lorentzian {
	k := cfg.Neighbors
	if k < 1 {
		k = 1
	}
	return &Lorentzian{
		k:      k,
		window: NewWindow(cfg.MaxWindow, cfg.LorentzianWeight, cfg.ResetFactor),
	}
}

// Observe inserts a labelled sample.
func (c *Lorentzian) Observe(s Sample) { c.window.Insert(s) }

// Len returns the current window size.
func (c *Lorentzian) Len() int { return c.window.Len() }

// K returns the neighbour count.
func (c *Lorentzian) K() int { return c.k }

// Predict returns the distance-weighted mean label of the k nearest samples,
// clipped to [-1, 1]. Equal distances prefer the more recent sample.
func (c *Lorentzian) Predict(features []float64) (float64, error) {
	n := c.window.Len()
	if n < c.k {
		return 0, ErrNotReady
	}

	c.cands = c.cands[:0]
	age := 0
	c.window.EachNewest(func(s Sample) {
		c.cands = append(c.cands, candidate{
			dist:  Distance(features, s.Features),
			age:   age,
			label: s.Label,
		})
		age++
	})

	sort.Slice(c.cands, func(i, j int) bool {
		if c.cands[i].dist != c.cands[j].dist {
			return c.cands[i].dist < c.cands[j].dist
		}
		return c.cands[i].age < c.cands[j].age
	})

	var num, den float64
	for _, nb := range c.cands[:c.k] {
		w := 1 / (1 + nb.dist)
		num += w * nb.label
		den += w
	}
	if den == 0 {
		return 0, nil
	}
	return model.Clamp(num/den, -1, 1), nil
}
