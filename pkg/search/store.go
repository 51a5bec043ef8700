// Package search implements lexical and semantic search over indexed
// transcripts stored in Postgres.
package search

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"podcast-search/pkg/binning"
	"podcast-search/pkg/db"
	"podcast-search/pkg/domain"
)

var (
	ErrNoDB       = errors.New("search store has no database handle")
	ErrNoEmbedder = errors.New("semantic search requires an embedder")
)

// headlineOptions mark every match of the whole segment.
const headlineOptions = "HighlightAll=true, StartSel=<mark>, StopSel=</mark>"

var schema = []string{
	`CREATE TABLE IF NOT EXISTS transcript_segment (
		id      TEXT PRIMARY KEY,
		eid     TEXT NOT NULL,
		start_s DOUBLE PRECISION NOT NULL,
		end_s   DOUBLE PRECISION NOT NULL,
		text    TEXT NOT NULL,
		tsv     tsvector GENERATED ALWAYS AS (to_tsvector('simple', text)) STORED
	)`,
	`CREATE INDEX IF NOT EXISTS transcript_segment_eid_idx ON transcript_segment (eid)`,
	`CREATE INDEX IF NOT EXISTS transcript_segment_tsv_idx ON transcript_segment USING GIN (tsv)`,
	`CREATE TABLE IF NOT EXISTS transcript_word (
		segment_id TEXT NOT NULL REFERENCES transcript_segment (id) ON DELETE CASCADE,
		idx        INTEGER NOT NULL,
		word       TEXT NOT NULL,
		start_s    DOUBLE PRECISION NOT NULL,
		PRIMARY KEY (segment_id, idx)
	)`,
	`CREATE TABLE IF NOT EXISTS transcript_chunk (
		eid       TEXT NOT NULL,
		start_s   DOUBLE PRECISION NOT NULL,
		end_s     DOUBLE PRECISION NOT NULL,
		text      TEXT NOT NULL,
		embedding TEXT NOT NULL,
		PRIMARY KEY (eid, start_s)
	)`,
}

// PostgresStore indexes transcripts and answers the engine's search calls.
type PostgresStore struct {
	provider db.DBProvider
	embedder Embedder
	words    *WordCache
	logger   *slog.Logger
}

// NewPostgresStore creates a store over provider. embedder may be nil, in
// which case Spans fails with ErrNoEmbedder. cache may be nil.
func NewPostgresStore(provider db.DBProvider, embedder Embedder, cache *WordCache, logger *slog.Logger) *PostgresStore {
	if cache == nil {
		cache = NewWordCache(DefaultCacheCapacity)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &PostgresStore{
		provider: provider,
		embedder: embedder,
		words:    cache,
		logger:   logger,
	}
}

func (s *PostgresStore) db() (*sql.DB, error) {
	if s.provider == nil || s.provider.DB() == nil {
		return nil, ErrNoDB
	}
	return s.provider.DB(), nil
}

// EnsureSchema creates the search tables if they do not exist.
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	conn, err := s.db()
	if err != nil {
		return err
	}
	for _, stmt := range schema {
		if _, err := conn.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("create schema: %w", err)
		}
	}
	return nil
}

// IndexTranscript replaces the indexed segments and words of an episode.
func (s *PostgresStore) IndexTranscript(ctx context.Context, eid string, segments []domain.Segment) (err error) {
	conn, err := s.db()
	if err != nil {
		return err
	}

	tx, err := conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if _, err = tx.ExecContext(ctx, `DELETE FROM transcript_segment WHERE eid = $1`, eid); err != nil {
		return fmt.Errorf("clear segments: %w", err)
	}

	for _, seg := range segments {
		id := domain.SegmentID(eid, seg)
		_, err = tx.ExecContext(ctx,
			`INSERT INTO transcript_segment (id, eid, start_s, end_s, text) VALUES ($1, $2, $3, $4, $5)
			 ON CONFLICT (id) DO UPDATE SET text = EXCLUDED.text`,
			id, eid, seg.Start, seg.End, seg.Text)
		if err != nil {
			return fmt.Errorf("insert segment %s: %w", id, err)
		}
		for i, w := range seg.Words {
			_, err = tx.ExecContext(ctx,
				`INSERT INTO transcript_word (segment_id, idx, word, start_s) VALUES ($1, $2, $3, $4)
				 ON CONFLICT (segment_id, idx) DO UPDATE SET word = EXCLUDED.word, start_s = EXCLUDED.start_s`,
				id, i, w.Word, w.Start)
			if err != nil {
				return fmt.Errorf("insert word %s/%d: %w", id, i, err)
			}
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	s.words.Reset()

	s.logger.Info("transcript indexed", "eid", eid, "segments", len(segments))
	return nil
}

// StoreChunks replaces the embedded chunks of an episode.
func (s *PostgresStore) StoreChunks(ctx context.Context, eid string, chunks []domain.Chunk) (err error) {
	conn, err := s.db()
	if err != nil {
		return err
	}

	tx, err := conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if _, err = tx.ExecContext(ctx, `DELETE FROM transcript_chunk WHERE eid = $1`, eid); err != nil {
		return fmt.Errorf("clear chunks: %w", err)
	}
	for _, c := range chunks {
		var vec []byte
		vec, err = json.Marshal(c.Embedding)
		if err != nil {
			return fmt.Errorf("encode embedding: %w", err)
		}
		_, err = tx.ExecContext(ctx,
			`INSERT INTO transcript_chunk (eid, start_s, end_s, text, embedding) VALUES ($1, $2, $3, $4, $5)`,
			eid, c.Start, c.End, c.Text, string(vec))
		if err != nil {
			return fmt.Errorf("insert chunk at %g: %w", c.Start, err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	s.logger.Info("chunks stored", "eid", eid, "chunks", len(chunks))
	return nil
}

// Positions returns the start time of every hit of term in episode eid, in
// segment order.
func (s *PostgresStore) Positions(ctx context.Context, eid, term string) ([]float64, error) {
	conn, err := s.db()
	if err != nil {
		return nil, err
	}

	rows, err := conn.QueryContext(ctx,
		`SELECT s.id, s.start_s, ts_headline('simple', s.text, q, $3)
		 FROM transcript_segment s, phraseto_tsquery('simple', $2) q
		 WHERE s.eid = $1 AND s.tsv @@ q
		 ORDER BY s.start_s`,
		eid, term, headlineOptions)
	if err != nil {
		return nil, fmt.Errorf("search %q: %w", term, err)
	}

	type match struct {
		id       string
		start    float64
		fragment string
	}
	var matches []match
	for rows.Next() {
		var m match
		if err := rows.Scan(&m.id, &m.start, &m.fragment); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan match: %w", err)
		}
		matches = append(matches, m)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	phraseLen := PhraseLen(term)
	var positions []float64
	for _, m := range matches {
		indices, err := HighlightedWords(m.fragment, phraseLen)
		if err != nil {
			return nil, err
		}
		starts, err := s.wordStarts(ctx, conn, m.id)
		if err != nil {
			return nil, err
		}
		positions = append(positions, wordTimes(indices, starts, m.start)...)
	}
	return positions, nil
}

func (s *PostgresStore) wordStarts(ctx context.Context, conn *sql.DB, segmentID string) ([]float64, error) {
	if starts, ok := s.words.Get(segmentID); ok {
		return starts, nil
	}

	rows, err := conn.QueryContext(ctx,
		`SELECT start_s FROM transcript_word WHERE segment_id = $1 ORDER BY idx`, segmentID)
	if err != nil {
		return nil, fmt.Errorf("load words of %s: %w", segmentID, err)
	}
	defer rows.Close()

	var starts []float64
	for rows.Next() {
		var start float64
		if err := rows.Scan(&start); err != nil {
			return nil, fmt.Errorf("scan word: %w", err)
		}
		starts = append(starts, start)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	s.words.Put(segmentID, starts)
	return starts, nil
}

// CountByEpisode returns the number of hits of term in each episode that has
// at least one, counted the same way as Positions.
func (s *PostgresStore) CountByEpisode(ctx context.Context, term string) (map[string]int, error) {
	conn, err := s.db()
	if err != nil {
		return nil, err
	}

	rows, err := conn.QueryContext(ctx,
		`SELECT s.eid, ts_headline('simple', s.text, q, $2)
		 FROM transcript_segment s, phraseto_tsquery('simple', $1) q
		 WHERE s.tsv @@ q`,
		term, headlineOptions)
	if err != nil {
		return nil, fmt.Errorf("count %q: %w", term, err)
	}
	defer rows.Close()

	phraseLen := PhraseLen(term)
	counts := make(map[string]int)
	for rows.Next() {
		var eid, fragment string
		if err := rows.Scan(&eid, &fragment); err != nil {
			return nil, fmt.Errorf("scan count: %w", err)
		}
		hits, err := HighlightedWords(fragment, phraseLen)
		if err != nil {
			return nil, err
		}
		if len(hits) > 0 {
			counts[eid] += len(hits)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	return counts, nil
}

// Spans scores every embedded chunk of episode eid by cosine similarity to
// prompt.
func (s *PostgresStore) Spans(ctx context.Context, eid, prompt string) ([]binning.Span, error) {
	if s.embedder == nil {
		return nil, ErrNoEmbedder
	}
	conn, err := s.db()
	if err != nil {
		return nil, err
	}

	query, err := s.embedder.Embed(ctx, prompt)
	if err != nil {
		return nil, err
	}

	rows, err := conn.QueryContext(ctx,
		`SELECT start_s, end_s, embedding FROM transcript_chunk WHERE eid = $1 ORDER BY start_s`, eid)
	if err != nil {
		return nil, fmt.Errorf("load chunks: %w", err)
	}
	defer rows.Close()

	var spans []binning.Span
	for rows.Next() {
		var start, end float64
		var raw string
		if err := rows.Scan(&start, &end, &raw); err != nil {
			return nil, fmt.Errorf("scan chunk: %w", err)
		}
		var vec []float64
		if err := json.Unmarshal([]byte(raw), &vec); err != nil {
			s.logger.Warn("skipping chunk with bad embedding", "eid", eid, "start", start, "error", err)
			continue
		}
		spans = append(spans, binning.Span{Start: start, End: end, Score: Cosine(query, vec)})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	return spans, nil
}
