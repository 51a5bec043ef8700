package binning

import (
	"fmt"
	"math"
)

// Span is a scored stretch of an episode, e.g. a transcript chunk and its
// embedding similarity to a search prompt.
type Span struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
	Score float64 `json:"score"`
}

// overlap returns the length of the intersection of s and [lo, hi].
func (s Span) overlap(lo, hi float64) float64 {
	return math.Max(0, math.Min(s.End, hi)-math.Max(s.Start, lo))
}

// AverageSimilarity computes, for every bin, the average score of the spans
// overlapping it, each weighted by the length of its overlap with the bin:
//
//	value = sum(score * overlap) / sum(overlap)
//
// Spans may overlap each other. A bin no span reaches is exactly 0. Spans
// with zero length carry no weight; a span ending before it starts is an
// error.
func AverageSimilarity(spans []Span, duration float64, n int) ([]float64, error) {
	edges, err := Edges(duration, n)
	if err != nil {
		return nil, err
	}

	weighted := make([]float64, n)
	weights := make([]float64, n)
	// lowest and highest contributing score per bin; when they agree the
	// average is that score, without rounding from the weighting
	lowest := make([]float64, n)
	highest := make([]float64, n)

	for _, s := range spans {
		if s.End < s.Start || math.IsNaN(s.Start) || math.IsNaN(s.End) {
			return nil, fmt.Errorf("%w: [%v, %v]", ErrInvalidSpan, s.Start, s.End)
		}
		if math.IsNaN(s.Score) {
			continue
		}

		first := binIndex(edges, math.Max(s.Start, 0))
		if first < 0 {
			// the span starts after the episode ends
			continue
		}
		for i := first; i < n && edges[i] < s.End; i++ {
			w := s.overlap(edges[i], edges[i+1])
			if w <= 0 {
				continue
			}
			if weights[i] == 0 {
				lowest[i], highest[i] = s.Score, s.Score
			} else {
				lowest[i] = math.Min(lowest[i], s.Score)
				highest[i] = math.Max(highest[i], s.Score)
			}
			weighted[i] += s.Score * w
			weights[i] += w
		}
	}

	values := make([]float64, n)
	for i := range values {
		switch {
		case weights[i] == 0:
		case lowest[i] == highest[i]:
			values[i] = lowest[i]
		default:
			values[i] = weighted[i] / weights[i]
		}
	}
	return values, nil
}
