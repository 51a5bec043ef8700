package binning

import (
	"errors"
	"math/rand"
	"testing"
)

func TestEdges_Coverage(t *testing.T) {
	tests := []struct {
		duration float64
		n        int
	}{
		{100, 4},
		{3599.7, 500},
		{1, 1},
		{0.3, 7},
		{7261.25, 333},
	}

	for _, tt := range tests {
		bins, err := Bins(tt.duration, tt.n)
		if err != nil {
			t.Fatalf("Bins(%v, %d) returned error: %v", tt.duration, tt.n, err)
		}
		if len(bins) != tt.n {
			t.Fatalf("Bins(%v, %d): expected %d bins, got %d", tt.duration, tt.n, tt.n, len(bins))
		}
		if bins[0].Start != 0 {
			t.Errorf("Bins(%v, %d): first bin starts at %v", tt.duration, tt.n, bins[0].Start)
		}
		if bins[len(bins)-1].End != tt.duration {
			t.Errorf("Bins(%v, %d): last bin ends at %v", tt.duration, tt.n, bins[len(bins)-1].End)
		}
		for i := 1; i < len(bins); i++ {
			if bins[i].Start != bins[i-1].End {
				t.Errorf("Bins(%v, %d): gap between bin %d and %d", tt.duration, tt.n, i-1, i)
			}
			if bins[i].End <= bins[i].Start {
				t.Errorf("Bins(%v, %d): bin %d is empty", tt.duration, tt.n, i)
			}
		}
	}
}

func TestEdges_Invalid(t *testing.T) {
	if _, err := Edges(100, 0); !errors.Is(err, ErrInvalidBinCount) {
		t.Errorf("n=0: expected ErrInvalidBinCount, got %v", err)
	}
	if _, err := Edges(100, -3); !errors.Is(err, ErrInvalidBinCount) {
		t.Errorf("n=-3: expected ErrInvalidBinCount, got %v", err)
	}
	if _, err := Edges(0, 10); !errors.Is(err, ErrInvalidDuration) {
		t.Errorf("duration=0: expected ErrInvalidDuration, got %v", err)
	}
	if _, err := Edges(-1, 10); !errors.Is(err, ErrInvalidDuration) {
		t.Errorf("duration=-1: expected ErrInvalidDuration, got %v", err)
	}
}

func TestCountHits(t *testing.T) {
	counts, dropped, err := CountHits([]float64{10, 10, 55, 99}, 100, 4)
	if err != nil {
		t.Fatalf("CountHits returned error: %v", err)
	}

	want := []int{2, 0, 1, 1}
	for i := range want {
		if counts[i] != want[i] {
			t.Errorf("counts = %v, want %v", counts, want)
			break
		}
	}
	if dropped != 0 {
		t.Errorf("dropped = %d, want 0", dropped)
	}
}

func TestCountHits_Boundaries(t *testing.T) {
	counts, _, err := CountHits([]float64{0, 25, 50, 100}, 100, 4)
	if err != nil {
		t.Fatalf("CountHits returned error: %v", err)
	}

	// bins are half-open except the last, which holds the duration itself
	want := []int{1, 1, 1, 1}
	for i := range want {
		if counts[i] != want[i] {
			t.Fatalf("counts = %v, want %v", counts, want)
		}
	}
}

func TestCountHits_OutOfRange(t *testing.T) {
	counts, dropped, err := CountHits([]float64{-1, 50, 100.5}, 100, 2)
	if err != nil {
		t.Fatalf("CountHits returned error: %v", err)
	}
	if dropped != 2 {
		t.Errorf("dropped = %d, want 2", dropped)
	}
	if counts[0] != 0 || counts[1] != 1 {
		t.Errorf("counts = %v, want [0 1]", counts)
	}
}

func TestCountHits_Conservation(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	duration := 5432.1

	hits := make([]float64, 1000)
	for i := range hits {
		hits[i] = rng.Float64() * duration
	}
	hits = append(hits, 0, duration)

	for _, n := range []int{1, 3, 17, 500} {
		counts, dropped, err := CountHits(hits, duration, n)
		if err != nil {
			t.Fatalf("CountHits returned error: %v", err)
		}
		total := 0
		for _, c := range counts {
			total += c
		}
		if total != len(hits) || dropped != 0 {
			t.Errorf("n=%d: counted %d hits (dropped %d), want %d", n, total, dropped, len(hits))
		}
	}
}

func TestCountHits_Empty(t *testing.T) {
	counts, _, err := CountHits(nil, 100, 5)
	if err != nil {
		t.Fatalf("CountHits returned error: %v", err)
	}
	if len(counts) != 5 {
		t.Fatalf("Expected 5 bins, got %d", len(counts))
	}
	for i, c := range counts {
		if c != 0 {
			t.Errorf("bin %d = %d, want 0", i, c)
		}
	}
}

func TestCountHits_InvalidInput(t *testing.T) {
	if _, _, err := CountHits([]float64{1}, 100, 0); !errors.Is(err, ErrInvalidBinCount) {
		t.Errorf("Expected ErrInvalidBinCount, got %v", err)
	}
	if _, _, err := CountHits(nil, 0, 10); !errors.Is(err, ErrInvalidDuration) {
		t.Errorf("Expected ErrInvalidDuration, got %v", err)
	}
}
