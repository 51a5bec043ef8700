package binning

import (
	"errors"
	"math"
	"testing"
)

func TestAverageSimilarity_SpanWithinOneBin(t *testing.T) {
	values, err := AverageSimilarity([]Span{{Start: 30, End: 40, Score: 0.37}}, 100, 4)
	if err != nil {
		t.Fatalf("AverageSimilarity returned error: %v", err)
	}

	want := []float64{0, 0.37, 0, 0}
	for i := range want {
		if values[i] != want[i] {
			t.Fatalf("values = %v, want %v", values, want)
		}
	}
}

func TestAverageSimilarity_SpanSplitAcrossBins(t *testing.T) {
	values, err := AverageSimilarity([]Span{{Start: 20, End: 30, Score: 0.61}}, 100, 4)
	if err != nil {
		t.Fatalf("AverageSimilarity returned error: %v", err)
	}
	if values[0] != 0.61 || values[1] != 0.61 {
		t.Errorf("Expected both halves to score 0.61, got %v", values)
	}
	if values[2] != 0 || values[3] != 0 {
		t.Errorf("Expected untouched bins to be 0, got %v", values)
	}
}

func TestAverageSimilarity_Weighted(t *testing.T) {
	spans := []Span{
		{Start: 0, End: 10, Score: 1.0},  // 10s in bin 0
		{Start: 5, End: 35, Score: 0.5},  // 20s in bin 0, 10s in bin 1
		{Start: 30, End: 40, Score: 0.2}, // 10s in bin 1
	}
	values, err := AverageSimilarity(spans, 50, 2)
	if err != nil {
		t.Fatalf("AverageSimilarity returned error: %v", err)
	}

	// bin 0: (1.0*10 + 0.5*20) / 30, bin 1: (0.5*10 + 0.2*10) / 20
	want := []float64{20.0 / 30.0, 7.0 / 20.0}
	for i := range want {
		if math.Abs(values[i]-want[i]) > 1e-12 {
			t.Errorf("bin %d = %v, want %v", i, values[i], want[i])
		}
	}
}

func TestAverageSimilarity_SpanBeyondEpisode(t *testing.T) {
	spans := []Span{
		{Start: -10, End: 10, Score: 0.4},
		{Start: 90, End: 120, Score: 0.8},
		{Start: 150, End: 160, Score: 0.9},
	}
	values, err := AverageSimilarity(spans, 100, 4)
	if err != nil {
		t.Fatalf("AverageSimilarity returned error: %v", err)
	}
	want := []float64{0.4, 0, 0, 0.8}
	for i := range want {
		if values[i] != want[i] {
			t.Fatalf("values = %v, want %v", values, want)
		}
	}
}

func TestAverageSimilarity_ZeroLengthSpan(t *testing.T) {
	values, err := AverageSimilarity([]Span{{Start: 10, End: 10, Score: 0.9}}, 100, 4)
	if err != nil {
		t.Fatalf("AverageSimilarity returned error: %v", err)
	}
	for i, v := range values {
		if v != 0 {
			t.Errorf("bin %d = %v, want 0", i, v)
		}
	}
}

func TestAverageSimilarity_Empty(t *testing.T) {
	values, err := AverageSimilarity(nil, 100, 500)
	if err != nil {
		t.Fatalf("AverageSimilarity returned error: %v", err)
	}
	if len(values) != 500 {
		t.Fatalf("Expected 500 bins, got %d", len(values))
	}
	for i, v := range values {
		if v != 0 || math.IsNaN(v) {
			t.Fatalf("bin %d = %v, want 0", i, v)
		}
	}
}

func TestAverageSimilarity_InvalidInput(t *testing.T) {
	if _, err := AverageSimilarity([]Span{{Start: 10, End: 5, Score: 1}}, 100, 4); !errors.Is(err, ErrInvalidSpan) {
		t.Errorf("Expected ErrInvalidSpan, got %v", err)
	}
	if _, err := AverageSimilarity(nil, 100, 0); !errors.Is(err, ErrInvalidBinCount) {
		t.Errorf("Expected ErrInvalidBinCount, got %v", err)
	}
	if _, err := AverageSimilarity(nil, -4, 3); !errors.Is(err, ErrInvalidDuration) {
		t.Errorf("Expected ErrInvalidDuration, got %v", err)
	}
}
