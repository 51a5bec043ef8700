// Package stats keeps per-episode statistics in a local SQLite database:
// timestamped named-entity tokens and transcript word counts.
package stats

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"podcast-search/pkg/domain"

	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS word_count (
	eid TEXT PRIMARY KEY,
	count INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS named_entity_tokens (
	eid TEXT NOT NULL,
	timestamp REAL NOT NULL,
	token TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS named_entity_tokens_eid ON named_entity_tokens (eid);
`

// Store is the stats database.
type Store struct {
	db *sql.DB
}

// Open opens (creating if needed) the stats database at path and ensures
// the schema exists.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create db dir: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open stats db: %w", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}
	if _, err := db.Exec("PRAGMA busy_timeout=5000"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("set busy timeout: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// SaveTimedTokens replaces the named-entity tokens of an episode.
func (s *Store) SaveTimedTokens(ctx context.Context, eid string, tokens []domain.TimedToken) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM named_entity_tokens WHERE eid = ?`, eid); err != nil {
		return fmt.Errorf("clear tokens: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO named_entity_tokens (eid, timestamp, token) VALUES (?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, tok := range tokens {
		if _, err := stmt.ExecContext(ctx, eid, tok.Timestamp, tok.Token); err != nil {
			return fmt.Errorf("insert token %q: %w", tok.Token, err)
		}
	}
	return tx.Commit()
}

// Occurrences returns the named-entity timestamps of an episode grouped by
// token. An episode without tokens yields an empty map.
func (s *Store) Occurrences(ctx context.Context, eid string) (map[string][]float64, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT token, timestamp FROM named_entity_tokens WHERE eid = ? ORDER BY timestamp`, eid)
	if err != nil {
		return nil, fmt.Errorf("query tokens: %w", err)
	}
	defer rows.Close()

	occurrences := make(map[string][]float64)
	for rows.Next() {
		var token string
		var ts float64
		if err := rows.Scan(&token, &ts); err != nil {
			return nil, fmt.Errorf("scan token: %w", err)
		}
		occurrences[token] = append(occurrences[token], ts)
	}
	return occurrences, rows.Err()
}

// TokenEIDs returns the set of episodes that have named-entity tokens stored.
func (s *Store) TokenEIDs(ctx context.Context) (map[string]bool, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT DISTINCT eid FROM named_entity_tokens`)
	if err != nil {
		return nil, fmt.Errorf("query eids: %w", err)
	}
	defer rows.Close()

	eids := make(map[string]bool)
	for rows.Next() {
		var eid string
		if err := rows.Scan(&eid); err != nil {
			return nil, fmt.Errorf("scan eid: %w", err)
		}
		eids[eid] = true
	}
	return eids, rows.Err()
}

// CountWords returns the number of transcribed words in segments.
func CountWords(segments []domain.Segment) int {
	n := 0
	for _, seg := range segments {
		n += len(seg.Words)
	}
	return n
}

// SaveWordCount stores the transcript word count of an episode.
func (s *Store) SaveWordCount(ctx context.Context, eid string, count int) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO word_count (eid, count) VALUES (?, ?)`, eid, count)
	if err != nil {
		return fmt.Errorf("save word count: %w", err)
	}
	return nil
}

// WordCounts returns the stored word counts of the given episodes. Episodes
// without a stored count are absent from the result.
func (s *Store) WordCounts(ctx context.Context, eids []string) (map[string]int, error) {
	counts := make(map[string]int, len(eids))
	if len(eids) == 0 {
		return counts, nil
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(eids)), ",")
	args := make([]any, len(eids))
	for i, eid := range eids {
		args[i] = eid
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT eid, count FROM word_count WHERE eid IN (`+placeholders+`)`, args...)
	if err != nil {
		return nil, fmt.Errorf("query word counts: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var eid string
		var n int
		if err := rows.Scan(&eid, &n); err != nil {
			return nil, fmt.Errorf("scan word count: %w", err)
		}
		counts[eid] = n
	}
	return counts, rows.Err()
}
