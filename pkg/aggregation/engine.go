// Package aggregation turns per-term search results for an episode into the
// shapes the dashboard renders: a lane-packed ticker timeline and a binned
// hit histogram, plus term frequencies across episodes.
//
// Every call builds its output from scratch; an Engine holds no state between
// calls beyond its configuration and collaborators.
package aggregation

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"podcast-search/pkg/binning"
	"podcast-search/pkg/ticker"
	"podcast-search/pkg/worker"
)

// DefaultEnvelopeWidth is the ticker appearance width in seconds.
const DefaultEnvelopeWidth = 120

var (
	ErrNoSearcher = errors.New("no searcher configured for query mode")
	ErrNoSource   = errors.New("collaborator not configured")
)

// Config wires the engine's collaborators and tuning.
type Config struct {
	Lexical     LexicalSearcher
	Semantic    SemanticSearcher
	Metadata    EpisodeMetadata
	Occurrences OccurrenceSource

	// Optional: needed by TermFrequencies only.
	Counter  EpisodeCounter
	Episodes EpisodeLister
	Words    WordCounter

	// Bins is the default histogram resolution (binning.DefaultBins when 0).
	Bins int
	// Workers bounds the per-term fan-out. 1 runs queries sequentially.
	Workers int
	// AbortOnError fails a whole run when any single term fails, instead of
	// degrading that term to zeros and recording a fault.
	AbortOnError bool
	// EnvelopeWidth is the default ticker width (DefaultEnvelopeWidth when 0).
	EnvelopeWidth float64
	// FPS is the ticker frame rate (ticker.DefaultFPS when 0).
	FPS int

	Logger *slog.Logger
}

// Engine aggregates search results for the dashboard.
type Engine struct {
	cfg    Config
	pool   *worker.Manager
	logger *slog.Logger
}

// NewEngine validates cfg and creates an engine.
func NewEngine(cfg Config) (*Engine, error) {
	if cfg.Metadata == nil {
		return nil, fmt.Errorf("episode metadata is required")
	}
	if cfg.Lexical == nil && cfg.Semantic == nil {
		return nil, fmt.Errorf("at least one searcher is required")
	}
	if cfg.Bins == 0 {
		cfg.Bins = binning.DefaultBins
	}
	if cfg.Bins < 0 {
		return nil, fmt.Errorf("%w: %d", binning.ErrInvalidBinCount, cfg.Bins)
	}
	if cfg.EnvelopeWidth == 0 {
		cfg.EnvelopeWidth = DefaultEnvelopeWidth
	}
	if cfg.FPS <= 0 {
		cfg.FPS = ticker.DefaultFPS
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	return &Engine{
		cfg:    cfg,
		pool:   worker.NewManager(cfg.Workers, cfg.Logger),
		logger: cfg.Logger,
	}, nil
}

// DefaultBins returns the configured histogram resolution.
func (e *Engine) DefaultBins() int {
	return e.cfg.Bins
}

// DefaultEnvelopeWidth returns the configured ticker envelope width.
func (e *Engine) DefaultEnvelopeWidth() float64 {
	return e.cfg.EnvelopeWidth
}

// Fault records a term whose search failed during a run.
type Fault struct {
	Term  string `json:"term"`
	Mode  Mode   `json:"mode"`
	Error string `json:"error"`
}

func newRun(logger *slog.Logger, op string) (string, *slog.Logger) {
	runID := uuid.NewString()
	return runID, logger.With("run_id", runID, "op", op)
}
