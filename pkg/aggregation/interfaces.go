package aggregation

import (
	"context"

	"podcast-search/pkg/binning"
	"podcast-search/pkg/domain"
)

// LexicalSearcher finds the timestamps at which a term is spoken in an episode.
type LexicalSearcher interface {
	Positions(ctx context.Context, eid, term string) ([]float64, error)
}

// SemanticSearcher scores stretches of an episode by similarity to a prompt.
type SemanticSearcher interface {
	Spans(ctx context.Context, eid, prompt string) ([]binning.Span, error)
}

// EpisodeMetadata provides the playback length of an episode in seconds.
type EpisodeMetadata interface {
	Duration(ctx context.Context, eid string) (float64, error)
}

// OccurrenceSource provides the named-entity timestamps of an episode,
// grouped by term.
type OccurrenceSource interface {
	Occurrences(ctx context.Context, eid string) (map[string][]float64, error)
}

// EpisodeCounter counts lexical hits of a term per episode across the corpus.
type EpisodeCounter interface {
	CountByEpisode(ctx context.Context, term string) (map[string]int, error)
}

// EpisodeLister lists the episodes that have an indexed transcript.
type EpisodeLister interface {
	ListTranscribed(ctx context.Context) ([]domain.Episode, error)
}

// WordCounter provides transcript word counts per episode.
type WordCounter interface {
	WordCounts(ctx context.Context, eids []string) (map[string]int, error)
}
