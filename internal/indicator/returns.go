package indicator

import "math"

// Returns tracks the simple and log return from the previous close.
// A non-positive previous or current price yields 0 for both.
type Returns struct {
	count     int
	prevClose float64
	simple    float64
	log       float64
}

// NewReturns creates a return tracker.
func NewReturns() *Returns { return &Returns{} }

func (r *Returns) Name() string { return "RETURNS" }

func (r *Returns) Update(price float64) {
	r.count++
	prev := r.prevClose
	r.prevClose = price
	if r.count == 1 {
		return
	}
	if prev <= 0 || price <= 0 {
		r.simple, r.log = 0, 0
		return
	}
	r.simple = price/prev - 1
	r.log = math.Log(price / prev)
}

// Value returns the simple return.
func (r *Returns) Value() float64 { return r.simple }

// Log returns the log return.
func (r *Returns) Log() float64 { return r.log }

func (r *Returns) Ready() bool { return r.count >= 2 }
