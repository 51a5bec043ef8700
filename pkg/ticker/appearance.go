package ticker

import (
	"errors"
	"fmt"
	"math"
)

var (
	ErrInvalidWidth = errors.New("envelope width must be positive")
	ErrInvalidRange = errors.New("appearance end must be after start")
	ErrTermMismatch = errors.New("cannot merge appearances of different terms")
	ErrNoOverlap    = errors.New("cannot merge non-overlapping appearances")
)

// Appearance is one occurrence of a term on the timeline: the span during which
// the term is shown. It is created from a center timestamp plus an envelope
// width, or from explicit bounds when it is the result of a merge.
//
// Appearances are values; Merge returns a new one and never changes its inputs.
type Appearance struct {
	Term  string  `json:"term"`
	ID    string  `json:"id"`
	Start float64 `json:"start"`
	End   float64 `json:"end"`
	Width float64 `json:"width"`
}

// FromTimestamp builds the appearance [center-width/2, center+width/2].
func FromTimestamp(term, id string, center, width float64) (Appearance, error) {
	if !(width > 0) || math.IsInf(width, 0) {
		return Appearance{}, fmt.Errorf("appearance %s: %w (got %v)", id, ErrInvalidWidth, width)
	}
	return Appearance{
		Term:  term,
		ID:    id,
		Start: center - width/2,
		End:   center + width/2,
		Width: width,
	}, nil
}

// FromRange builds an appearance directly from its bounds.
func FromRange(term, id string, start, end float64) (Appearance, error) {
	if !(end > start) {
		return Appearance{}, fmt.Errorf("appearance %s [%v, %v]: %w", id, start, end, ErrInvalidRange)
	}
	return Appearance{
		Term:  term,
		ID:    id,
		Start: start,
		End:   end,
		Width: end - start,
	}, nil
}

// Frame returns the envelope value at time t: 0 up to Start, 1 from End on,
// linear in between.
func (a Appearance) Frame(t float64) float64 {
	switch {
	case t <= a.Start:
		return 0
	case t >= a.End:
		return 1
	default:
		return (t - a.Start) / (a.End - a.Start)
	}
}

// Overlaps reports whether a and b share a span of positive length.
// Intervals that only touch at a boundary do not overlap.
func (a Appearance) Overlaps(b Appearance) bool {
	return math.Min(a.End, b.End) > math.Max(a.Start, b.Start)
}

func (a Appearance) String() string {
	return fmt.Sprintf("Appearance(%s, %.2f, %.2f)", a.Term, a.Start, a.End)
}

// Merge combines two overlapping appearances of the same term into one spanning
// both. The result keeps the id of the earlier-starting appearance (a on a tie).
func Merge(a, b Appearance) (Appearance, error) {
	if a.Term != b.Term {
		return Appearance{}, fmt.Errorf("%w: %q and %q", ErrTermMismatch, a.Term, b.Term)
	}
	if b.Start < a.Start {
		a, b = b, a
	}
	if !a.Overlaps(b) {
		return Appearance{}, fmt.Errorf("%w: %s and %s", ErrNoOverlap, a, b)
	}
	return FromRange(a.Term, a.ID, a.Start, math.Max(a.End, b.End))
}
