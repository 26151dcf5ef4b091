package model

import "time"

// FeatureVector is the ordered, fixed-shape feature set produced once per bar
// per symbol. Names and Values are parallel slices.
type FeatureVector struct {
	Symbol string    `json:"symbol"`
	TS     time.Time `json:"ts"`
	Names  []string  `json:"names"`
	Values []float64 `json:"values"`
}

// Get returns the value of a named feature.
func (f *FeatureVector) Get(name string) (float64, bool) {
	for i, n := range f.Names {
		if n == name {
			return f.Values[i], true
		}
	}
	return 0, false
}

// Len returns the number of features.
func (f *FeatureVector) Len() int { return len(f.Values) }
