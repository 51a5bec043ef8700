package aggregation

import (
	"context"
	"fmt"
	"sort"
	"time"

	"podcast-search/pkg/worker"
)

// Frequency is the number of hits of one term in one episode.
type Frequency struct {
	Term    string    `json:"term"`
	ColorID int       `json:"color_id"`
	EID     string    `json:"eid"`
	Title   string    `json:"title"`
	PubDate time.Time `json:"pub_date"`
	Count   int       `json:"count"`
	// Total is the word count of the episode transcript, 0 when unknown.
	Total int `json:"total"`
	// Per1000 is Count per thousand transcript words, 0 when Total is unknown.
	Per1000 float64 `json:"per_1000"`
}

// FrequencyReport holds term frequencies across every transcribed episode.
type FrequencyReport struct {
	RunID  string      `json:"run_id"`
	Rows   []Frequency `json:"rows"`
	Faults []Fault     `json:"faults,omitempty"`
}

// TermFrequencies counts every term-mode query across all transcribed
// episodes. Episodes without a hit get an explicit zero row so series line up
// over time. Rows are ordered by publication date, then term order.
func (e *Engine) TermFrequencies(ctx context.Context, queries []TermQuery) (*FrequencyReport, error) {
	if e.cfg.Counter == nil || e.cfg.Episodes == nil {
		return nil, fmt.Errorf("%w: episode counter and lister", ErrNoSource)
	}
	runID, logger := newRun(e.logger, "frequencies")

	episodes, err := e.cfg.Episodes.ListTranscribed(ctx)
	if err != nil {
		return nil, fmt.Errorf("list episodes: %w", err)
	}
	sort.SliceStable(episodes, func(i, j int) bool {
		return episodes[i].PubDate.Before(episodes[j].PubDate)
	})

	totals := map[string]int{}
	if e.cfg.Words != nil && len(episodes) > 0 {
		eids := make([]string, len(episodes))
		for i, ep := range episodes {
			eids[i] = ep.EID
		}
		totals, err = e.cfg.Words.WordCounts(ctx, eids)
		if err != nil {
			if e.cfg.AbortOnError {
				return nil, fmt.Errorf("word counts: %w", err)
			}
			logger.Warn("word counts unavailable", "error", err)
			totals = map[string]int{}
		}
	}

	var terms []TermQuery
	for _, q := range Normalize(queries) {
		if q.Mode == ModeTerm {
			terms = append(terms, q)
		}
	}

	counts, faults, err := e.countAll(ctx, terms)
	if err != nil {
		return nil, err
	}
	if len(faults) > 0 {
		logger.Warn("term counts failed", "faults", len(faults))
	}

	report := &FrequencyReport{
		RunID:  runID,
		Rows:   make([]Frequency, 0, len(episodes)*len(terms)),
		Faults: faults,
	}
	for _, ep := range episodes {
		for i, q := range terms {
			row := Frequency{
				Term:    q.Term,
				ColorID: q.ColorID,
				EID:     ep.EID,
				Title:   ep.Title,
				PubDate: ep.PubDate,
				Count:   counts[i][ep.EID],
				Total:   totals[ep.EID],
			}
			if row.Total > 0 {
				row.Per1000 = float64(row.Count) * 1000 / float64(row.Total)
			}
			report.Rows = append(report.Rows, row)
		}
	}

	logger.Info("frequencies built", "episodes", len(episodes), "terms", len(terms), "faults", len(faults))
	return report, nil
}

func (e *Engine) countAll(ctx context.Context, terms []TermQuery) ([]map[string]int, []Fault, error) {
	counts := make([]map[string]int, len(terms))
	tasks := make([]worker.Task, len(terms))
	for i, q := range terms {
		i, q := i, q
		tasks[i] = func(ctx context.Context) error {
			c, err := e.cfg.Counter.CountByEpisode(ctx, q.Term)
			counts[i] = c
			return err
		}
	}

	var faults []Fault
	for i, err := range e.pool.Run(ctx, tasks) {
		if err == nil {
			continue
		}
		if e.cfg.AbortOnError {
			return nil, nil, fmt.Errorf("count %q: %w", terms[i].Term, err)
		}
		faults = append(faults, Fault{Term: terms[i].Term, Mode: ModeTerm, Error: err.Error()})
		counts[i] = nil
	}
	return counts, faults, nil
}
