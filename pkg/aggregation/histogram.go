package aggregation

import (
	"context"
	"fmt"

	"gonum.org/v1/gonum/floats"

	"podcast-search/pkg/binning"
	"podcast-search/pkg/worker"
)

// Histogram is the positional density of the active terms over one episode.
//
// Count series (term mode) and similarity series (semantic mode) are kept
// apart: raw counts and similarity scores are not comparable and are drawn on
// separate axes.
type Histogram struct {
	RunID      string             `json:"run_id"`
	EID        string             `json:"eid"`
	Duration   float64            `json:"duration"`
	Bins       int                `json:"bins"`
	Edges      []float64          `json:"edges"`
	Counts     []CountSeries      `json:"counts"`
	Similarity []SimilaritySeries `json:"similarity"`
	Faults     []Fault            `json:"faults,omitempty"`
}

// CountSeries holds the per-bin hit counts of one term.
type CountSeries struct {
	Term    string `json:"term"`
	ColorID int    `json:"color_id"`
	Values  []int  `json:"values"`
	// Dropped counts hits that fell outside the episode.
	Dropped int `json:"dropped,omitempty"`
}

// SimilaritySeries holds the per-bin weighted similarity of one prompt.
type SimilaritySeries struct {
	Term    string    `json:"term"`
	ColorID int       `json:"color_id"`
	Values  []float64 `json:"values"`
}

// CountMatrix returns the count series as a bins x terms matrix, columns in
// the order of Counts.
func (h *Histogram) CountMatrix() [][]int {
	m := make([][]int, h.Bins)
	for b := range m {
		m[b] = make([]int, len(h.Counts))
		for t, s := range h.Counts {
			m[b][t] = s.Values[b]
		}
	}
	return m
}

// StackedMax is the largest per-bin total over all count series, the extent
// of the count axis when series are stacked.
func (h *Histogram) StackedMax() int {
	totals := make([]float64, h.Bins)
	for _, s := range h.Counts {
		for b, v := range s.Values {
			totals[b] += float64(v)
		}
	}
	if len(totals) == 0 {
		return 0
	}
	return int(floats.Max(totals))
}

// BuildHistogram searches every query in episode eid and bins the results
// into nBins equal slices of the episode.
//
// Queries are normalized first (see Normalize). A query whose search fails
// contributes an all-zero series and a Fault, unless the engine is configured
// to abort on error. Failing to look up the episode duration fails the run.
func (e *Engine) BuildHistogram(ctx context.Context, queries []TermQuery, eid string, nBins int) (*Histogram, error) {
	runID, logger := newRun(e.logger, "histogram")

	duration, err := e.cfg.Metadata.Duration(ctx, eid)
	if err != nil {
		return nil, fmt.Errorf("episode %s duration: %w", eid, err)
	}
	edges, err := binning.Edges(duration, nBins)
	if err != nil {
		return nil, fmt.Errorf("episode %s: %w", eid, err)
	}

	queries = Normalize(queries)
	results := e.search(ctx, queries, eid)

	h := &Histogram{
		RunID:      runID,
		EID:        eid,
		Duration:   duration,
		Bins:       nBins,
		Edges:      edges,
		Counts:     []CountSeries{},
		Similarity: []SimilaritySeries{},
	}

	for i, q := range queries {
		res := results[i]
		if res.err != nil {
			if e.cfg.AbortOnError {
				return nil, fmt.Errorf("search %s %q: %w", q.Mode, q.Term, res.err)
			}
			logger.Warn("term search failed", "term", q.Term, "mode", q.Mode.String(), "error", res.err)
			h.Faults = append(h.Faults, Fault{Term: q.Term, Mode: q.Mode, Error: res.err.Error()})
			res.positions = emptyPositions(q.Mode)
		}

		if err := h.add(q, res.positions); err != nil {
			return nil, err
		}
	}

	logger.Info("histogram built", "eid", eid, "terms", len(queries), "faults", len(h.Faults), "bins", nBins)
	return h, nil
}

// add bins one query's positions into the matching series collection.
func (h *Histogram) add(q TermQuery, p Positions) error {
	switch p := p.(type) {
	case Hits:
		counts, dropped, err := binning.CountHits(p, h.Duration, h.Bins)
		if err != nil {
			return fmt.Errorf("bin %q: %w", q.Term, err)
		}
		h.Counts = append(h.Counts, CountSeries{Term: q.Term, ColorID: q.ColorID, Values: counts, Dropped: dropped})
	case Spans:
		values, err := binning.AverageSimilarity(p, h.Duration, h.Bins)
		if err != nil {
			return fmt.Errorf("bin %q: %w", q.Term, err)
		}
		h.Similarity = append(h.Similarity, SimilaritySeries{Term: q.Term, ColorID: q.ColorID, Values: values})
	default:
		return fmt.Errorf("bin %q: unsupported positions %T", q.Term, p)
	}
	return nil
}

func emptyPositions(m Mode) Positions {
	if m == ModeSemantic {
		return Spans{}
	}
	return Hits{}
}

type searchResult struct {
	positions Positions
	err       error
}

// search runs one search per query on the worker pool. Results are returned
// in query order.
func (e *Engine) search(ctx context.Context, queries []TermQuery, eid string) []searchResult {
	results := make([]searchResult, len(queries))
	tasks := make([]worker.Task, len(queries))

	for i, q := range queries {
		i, q := i, q
		tasks[i] = func(ctx context.Context) error {
			p, err := e.searchOne(ctx, q, eid)
			results[i].positions = p
			return err
		}
	}

	for i, err := range e.pool.Run(ctx, tasks) {
		results[i].err = err
	}
	return results
}

func (e *Engine) searchOne(ctx context.Context, q TermQuery, eid string) (Positions, error) {
	switch q.Mode {
	case ModeTerm:
		if e.cfg.Lexical == nil {
			return nil, fmt.Errorf("%w: %s", ErrNoSearcher, q.Mode)
		}
		hits, err := e.cfg.Lexical.Positions(ctx, eid, q.Term)
		if err != nil {
			return nil, err
		}
		return Hits(hits), nil
	case ModeSemantic:
		if e.cfg.Semantic == nil {
			return nil, fmt.Errorf("%w: %s", ErrNoSearcher, q.Mode)
		}
		spans, err := e.cfg.Semantic.Spans(ctx, eid, q.Term)
		if err != nil {
			return nil, err
		}
		return Spans(spans), nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrNoSearcher, q.Mode)
	}
}
