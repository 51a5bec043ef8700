// Package binning turns sparse positional search results into fixed-resolution
// time histograms over an episode.
//
// The episode [0, duration] is split into n equal bins. Bins are half-open
// [start, end) except the last one, which also contains duration itself.
package binning

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/floats"
)

// DefaultBins is the histogram resolution used when none is configured.
const DefaultBins = 500

var (
	ErrInvalidBinCount = errors.New("bin count must be positive")
	ErrInvalidDuration = errors.New("duration must be positive")
	ErrInvalidSpan     = errors.New("span end must not precede its start")
)

// Bin is one time slice of an episode.
type Bin struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
}

// Edges returns the n+1 bin boundaries of [0, duration]. The first edge is
// exactly 0 and the last exactly duration.
func Edges(duration float64, n int) ([]float64, error) {
	if n <= 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidBinCount, n)
	}
	if !(duration > 0) || math.IsInf(duration, 0) {
		return nil, fmt.Errorf("%w: %v", ErrInvalidDuration, duration)
	}
	edges := floats.Span(make([]float64, n+1), 0, duration)
	edges[0], edges[n] = 0, duration
	return edges, nil
}

// Bins returns the n bins partitioning [0, duration].
func Bins(duration float64, n int) ([]Bin, error) {
	edges, err := Edges(duration, n)
	if err != nil {
		return nil, err
	}
	bins := make([]Bin, n)
	for i := range bins {
		bins[i] = Bin{Start: edges[i], End: edges[i+1]}
	}
	return bins, nil
}

// binIndex returns the bin holding t, or -1 when t lies outside [0, duration].
func binIndex(edges []float64, t float64) int {
	n := len(edges) - 1
	if math.IsNaN(t) || t < edges[0] || t > edges[n] {
		return -1
	}
	if t == edges[n] {
		return n - 1
	}
	// first edge strictly greater than t closes t's bin
	return sort.Search(len(edges), func(i int) bool { return edges[i] > t }) - 1
}
