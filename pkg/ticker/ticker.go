package ticker

import (
	"fmt"
	"math"
	"sort"
)

// DefaultFPS is the frame rate the timeline renderer animates at.
const DefaultFPS = 24

// Lane is a time-ordered run of appearances where each one ends no later than
// the next one starts.
type Lane []Appearance

// Ticker is the stacked timeline of an episode: appearances packed into lanes
// so that no two appearances in a lane overlap.
type Ticker struct {
	Lanes []Lane  `json:"lanes"`
	FPS   int     `json:"fps"`
	End   float64 `json:"end"`
}

// New returns an empty ticker.
func New() *Ticker {
	return &Ticker{Lanes: []Lane{}, FPS: DefaultFPS}
}

// AddAppearance places a in the bottom-most lane whose last appearance ends at
// or before a.Start, creating a new lane when none fits.
//
// Packing is only minimal when appearances arrive in non-decreasing start order.
func (t *Ticker) AddAppearance(a Appearance) {
	for i, lane := range t.Lanes {
		if len(lane) == 0 || lane[len(lane)-1].End <= a.Start {
			t.Lanes[i] = append(lane, a)
			t.End = math.Max(t.End, a.End)
			return
		}
	}
	t.Lanes = append(t.Lanes, Lane{a})
	t.End = math.Max(t.End, a.End)
}

// Len returns the number of appearances across all lanes.
func (t *Ticker) Len() int {
	n := 0
	for _, lane := range t.Lanes {
		n += len(lane)
	}
	return n
}

// Frames is the number of frames needed to animate the ticker up to End.
func (t *Ticker) Frames() int {
	if t.End <= 0 || t.FPS <= 0 {
		return 0
	}
	return int(math.Ceil(t.End * float64(t.FPS)))
}

// Value returns the frame value of the appearance with the given id at time ts,
// or 0 if the ticker holds no such appearance.
func (t *Ticker) Value(id string, ts float64) float64 {
	for _, lane := range t.Lanes {
		for _, a := range lane {
			if a.ID == id {
				return a.Frame(ts)
			}
		}
	}
	return 0
}

// Visible is an appearance as seen through a window centred on a playback time.
type Visible struct {
	Appearance
	Lane int `json:"lane"`
	// RelStart and RelEnd are the clipped bounds relative to the window start.
	RelStart float64 `json:"rel_start"`
	RelEnd   float64 `json:"rel_end"`
	Active   bool    `json:"active"`
}

// Window returns the appearances overlapping [ts-width/2, ts+width/2], lane by
// lane. An appearance is Active while ts lies within it.
func (t *Ticker) Window(ts, width float64) []Visible {
	winStart := ts - width/2
	winEnd := ts + width/2

	var out []Visible
	for li, lane := range t.Lanes {
		// lanes are sorted by start, so everything after winEnd is out of view
		for _, a := range lane {
			if a.Start > winEnd {
				break
			}
			if a.End < winStart {
				continue
			}
			out = append(out, Visible{
				Appearance: a,
				Lane:       li,
				RelStart:   math.Max(0, a.Start-winStart),
				RelEnd:     math.Min(width, a.End-winStart),
				Active:     ts >= a.Start && ts <= a.End,
			})
		}
	}
	return out
}

// Build merges the occurrences of every term with the given envelope width and
// packs the result into a ticker. Appearances are fed to the packer sorted by
// start across all terms; ties are broken by term and id so the layout is
// deterministic.
func Build(occurrences map[string][]float64, width float64) (*Ticker, error) {
	if !(width > 0) || math.IsInf(width, 0) {
		return nil, fmt.Errorf("build ticker: %w (got %v)", ErrInvalidWidth, width)
	}
	terms := make([]string, 0, len(occurrences))
	for term := range occurrences {
		terms = append(terms, term)
	}
	sort.Strings(terms)

	var all []Appearance
	for _, term := range terms {
		merged, err := MergeGroup(term, occurrences[term], width)
		if err != nil {
			return nil, err
		}
		all = append(all, merged...)
	}

	sort.SliceStable(all, func(i, j int) bool {
		if all[i].Start != all[j].Start {
			return all[i].Start < all[j].Start
		}
		if all[i].Term != all[j].Term {
			return all[i].Term < all[j].Term
		}
		return all[i].ID < all[j].ID
	})

	t := New()
	for _, a := range all {
		t.AddAppearance(a)
	}
	return t, nil
}
