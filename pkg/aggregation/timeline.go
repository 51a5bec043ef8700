package aggregation

import (
	"context"
	"fmt"

	"podcast-search/pkg/ticker"
)

// Timeline is the ticker of one episode as served to the timeline renderer.
type Timeline struct {
	RunID string `json:"run_id"`
	EID   string `json:"eid"`
	*ticker.Ticker
	Frames int `json:"frames"`
}

// BuildTicker loads the named-entity occurrences of episode eid and packs
// them into a ticker with the given envelope width.
func (e *Engine) BuildTicker(ctx context.Context, eid string, width float64) (*Timeline, error) {
	if e.cfg.Occurrences == nil {
		return nil, fmt.Errorf("%w: occurrence source", ErrNoSource)
	}
	runID, logger := newRun(e.logger, "ticker")

	occurrences, err := e.cfg.Occurrences.Occurrences(ctx, eid)
	if err != nil {
		return nil, fmt.Errorf("episode %s occurrences: %w", eid, err)
	}

	tk, err := ticker.Build(occurrences, width)
	if err != nil {
		return nil, fmt.Errorf("episode %s ticker: %w", eid, err)
	}
	tk.FPS = e.cfg.FPS

	logger.Info("ticker built", "eid", eid, "terms", len(occurrences), "appearances", tk.Len(), "lanes", len(tk.Lanes))
	return &Timeline{
		RunID:  runID,
		EID:    eid,
		Ticker: tk,
		Frames: tk.Frames(),
	}, nil
}
