package classifier

import "testing"

func TestWindow_CapacityEviction(t *testing.T) {
	w := NewWindow(5, 0, 0)
	for i := 0; i < 12; i++ {
		w.Insert(Sample{Label: float64(i)})
		if w.Len() > w.Cap() {
			t.Fatalf("insert %d: Len()=%d exceeds Cap()=%d", i, w.Len(), w.Cap())
		}
	}
	var labels []float64
	w.EachNewest(func(s Sample) { labels = append(labels, s.Label) })
	want := []float64{11, 10, 9, 8, 7}
	for i := range want {
		if labels[i] != want[i] {
			t.Fatalf("newest-first labels = %v, want %v", labels, want)
		}
	}
}

func TestWindow_ForcedPrune(t *testing.T) {
	// capacity 20, weight 0.5 → prune every 10 inserts, dropping 10%
	w := NewWindow(20, 0.5, 0.1)
	if w.ResetEvery() != 10 {
		t.Fatalf("ResetEvery()=%d, want 10", w.ResetEvery())
	}
	for i := 0; i < 9; i++ {
		w.Insert(Sample{Label: float64(i)})
	}
	if w.Len() != 9 {
		t.Fatalf("Len()=%d, want 9", w.Len())
	}
	w.Insert(Sample{Label: 9}) // 10th insert → drop ceil(10·0.1) = 1
	if w.Len() != 9 {
		t.Fatalf("after prune Len()=%d, want 9", w.Len())
	}
	oldest := -1.0
	w.EachNewest(func(s Sample) { oldest = s.Label })
	if oldest != 1 {
		t.Errorf("oldest label after prune = %v, want 1", oldest)
	}
}

func TestWindow_NeverExceedsCapacity(t *testing.T) {
	w := NewWindow(2000, 0.5, 0.1)
	for i := 0; i < 10000; i++ {
		w.Insert(Sample{Label: 1})
		if w.Len() > 2000 {
			t.Fatalf("insert %d: Len()=%d", i, w.Len())
		}
	}
}

func TestLabeler_Horizon(t *testing.T) {
	l := NewLabeler(2)
	closes := []float64{10, 11, 9, 12, 12}
	type want struct {
		ok    bool
		label float64
		first float64
	}
	wants := []want{
		{false, 0, 0},
		{false, 0, 0},
		{true, -1, 0}, // 9 vs 10
		{true, 1, 1},  // 12 vs 11
		{true, 1, 2},  // 12 vs 9
	}
	for i, c := range closes {
		s, ok := l.Add(c, []float64{float64(i)})
		if ok != wants[i].ok {
			t.Fatalf("bar %d: ok=%v, want %v", i, ok, wants[i].ok)
		}
		if !ok {
			continue
		}
		if s.Label != wants[i].label || s.Features[0] != wants[i].first {
			t.Errorf("bar %d: got (%v, %v), want (%v, %v)", i, s.Label, s.Features[0], wants[i].label, wants[i].first)
		}
	}
}

func TestLabeler_SkipsUnreadyVectors(t *testing.T) {
	l := NewLabeler(1)
	l.Add(10, nil)
	if _, ok := l.Add(11, []float64{1}); ok {
		t.Fatal("sample emitted for a bar without features")
	}
	s, ok := l.Add(11, nil)
	if !ok || s.Label != 0 {
		t.Fatalf("flat move: ok=%v label=%v, want true 0", ok, s.Label)
	}
}
