package binning

// CountHits assigns each hit timestamp to its bin and returns the per-bin
// counts together with the number of hits that fell outside [0, duration]
// and were left out.
//
// An empty hit list yields n zeros.
func CountHits(hits []float64, duration float64, n int) (counts []int, dropped int, err error) {
	edges, err := Edges(duration, n)
	if err != nil {
		return nil, 0, err
	}

	counts = make([]int, n)
	for _, t := range hits {
		i := binIndex(edges, t)
		if i < 0 {
			dropped++
			continue
		}
		counts[i]++
	}
	return counts, dropped, nil
}
