package gateway

import (
	"math"
	"testing"
)

func TestReplayBuffer(t *testing.T) {
	tests := []struct {
		name      string
		capacity  int
		pushes    int64
		from, to  int64
		wantFirst int64
		wantLen   int
	}{
		{"inner range", 100, 10, 3, 7, 3, 5},
		{"evicted head", 5, 8, 1, 10, 4, 5},
		{"empty window", 10, 3, 5, 9, 0, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rb := NewReplayBuffer(tt.capacity)
			for i := int64(1); i <= tt.pushes; i++ {
				rb.Push(i, []byte(`{}`))
			}
			got := rb.Range(tt.from, tt.to)
			if len(got) != tt.wantLen {
				t.Fatalf("Range(%d,%d) len = %d, want %d", tt.from, tt.to, len(got), tt.wantLen)
			}
			for i, e := range got {
				if e.Seq != tt.wantFirst+int64(i) {
					t.Errorf("entry %d seq = %d, want %d", i, e.Seq, tt.wantFirst+int64(i))
				}
			}
		})
	}
}

func TestReplayBuffer_CopiesData(t *testing.T) {
	rb := NewReplayBuffer(2)
	data := []byte("abc")
	rb.Push(1, data)
	data[0] = 'x'
	if got := string(rb.Range(1, 1)[0].Data); got != "abc" {
		t.Errorf("buffered data = %q, want abc", got)
	}
}

func TestLatencyTracker(t *testing.T) {
	lt := NewLatencyTracker(100)
	if p50, p95, p99 := lt.Percentiles(); p50 != 0 || p95 != 0 || p99 != 0 {
		t.Errorf("empty tracker: got (%v,%v,%v)", p50, p95, p99)
	}

	lt.Record(42.5)
	if p50, _, p99 := lt.Percentiles(); p50 != 42.5 || p99 != 42.5 {
		t.Errorf("single sample: p50=%v p99=%v", p50, p99)
	}

	lt = NewLatencyTracker(10)
	for i := 1; i <= 20; i++ {
		lt.Record(float64(i))
	}
	if lt.Count() != 10 {
		t.Fatalf("Count() = %d, want 10", lt.Count())
	}
	p50, p95, _ := lt.Percentiles()
	if math.Abs(p50-15.5) > 1e-9 {
		t.Errorf("p50 of 11..20 = %v, want 15.5", p50)
	}
	if math.Abs(p95-19.55) > 1e-9 {
		t.Errorf("p95 of 11..20 = %v, want 19.55", p95)
	}
}
