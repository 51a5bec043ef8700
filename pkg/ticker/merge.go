package ticker

import (
	"fmt"
	"math"
	"sort"
	"strings"
)

// AppearanceID derives the id of the index-th occurrence of term,
// e.g. "New York", 2 -> "new_york.2".
func AppearanceID(term string, index int) string {
	return fmt.Sprintf("%s.%d", strings.ToLower(strings.ReplaceAll(term, " ", "_")), index)
}

// MergeGroup turns the occurrence timestamps of one term into appearances of
// the given width and merges those that overlap.
//
// Occurrences are ranked by timestamp to derive ids, then swept once from left
// to right. An appearance that starts strictly before the current one ends is
// merged into it; one that starts at or after the current end (touching
// included) closes the current appearance and starts a new one.
//
// The returned appearances are sorted by start and pairwise non-overlapping.
// centers is not modified.
func MergeGroup(term string, centers []float64, width float64) ([]Appearance, error) {
	if !(width > 0) || math.IsInf(width, 0) {
		return nil, fmt.Errorf("term %q: %w (got %v)", term, ErrInvalidWidth, width)
	}
	if len(centers) == 0 {
		return nil, nil
	}

	sorted := make([]float64, len(centers))
	copy(sorted, centers)
	sort.Float64s(sorted)

	group := make([]Appearance, len(sorted))
	for i, c := range sorted {
		a, err := FromTimestamp(term, AppearanceID(term, i), c, width)
		if err != nil {
			return nil, err
		}
		group[i] = a
	}

	merged := make([]Appearance, 0, len(group))
	current := group[0]
	for i := 1; i < len(group); i++ {
		next := group[i]
		if current.End <= next.Start {
			merged = append(merged, current)
			current = next
			continue
		}
		m, err := Merge(current, next)
		if err != nil {
			return nil, err
		}
		current = m
	}
	merged = append(merged, current)

	return merged, nil
}
