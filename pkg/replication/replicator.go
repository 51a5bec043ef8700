package replication

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"podcast-search/pkg/db"
	"podcast-search/pkg/domain"
	"podcast-search/pkg/worker"
)

const (
	DefaultBatchSize = 100
	DefaultWorkers   = 5
)

var ErrNotConnected = errors.New("postgres DB not connected")

// EpisodeSource lists the episodes to replicate.
type EpisodeSource interface {
	ListTranscribed(ctx context.Context) ([]domain.Episode, error)
}

// Config wires the replication dependencies.
type Config struct {
	Source    EpisodeSource
	Postgres  db.DBProvider
	BatchSize int
	Workers   int
	Logger    *slog.Logger
}

// Replicator copies transcribed episodes from the catalogue into the Postgres
// episodes table, which the Supabase REST API serves.
type Replicator struct {
	source    EpisodeSource
	pg        db.DBProvider
	batchSize int
	manager   *worker.Manager
	logger    *slog.Logger
}

func NewReplicator(cfg Config) (*Replicator, error) {
	if cfg.Source == nil {
		return nil, fmt.Errorf("episode source is required")
	}
	if cfg.Postgres == nil {
		return nil, fmt.Errorf("postgres client is required")
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultBatchSize
	}
	if cfg.Workers <= 0 {
		cfg.Workers = DefaultWorkers
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Replicator{
		source:    cfg.Source,
		pg:        cfg.Postgres,
		batchSize: cfg.BatchSize,
		manager:   worker.NewManager(cfg.Workers, cfg.Logger),
		logger:    cfg.Logger,
	}, nil
}

// ReplicateEpisodes upserts every transcribed episode and returns how many
// rows were written.
func (r *Replicator) ReplicateEpisodes(ctx context.Context) (int, error) {
	if err := r.EnsureSchema(ctx); err != nil {
		return 0, err
	}

	episodes, err := r.source.ListTranscribed(ctx)
	if err != nil {
		return 0, fmt.Errorf("list episodes: %w", err)
	}
	r.logger.Info("replicating episodes", "count", len(episodes), "batch_size", r.batchSize)

	batches := Batches(episodes, r.batchSize)
	written := make([]int, len(batches))
	tasks := make([]worker.Task, len(batches))
	for i, batch := range batches {
		i, batch := i, batch
		tasks[i] = func(ctx context.Context) error {
			n, err := r.upsertTx(ctx, batch)
			written[i] = n
			return err
		}
	}

	total := 0
	for i, err := range r.manager.Run(ctx, tasks) {
		if err != nil {
			return total, fmt.Errorf("batch %d: %w", i, err)
		}
		total += written[i]
	}

	r.logger.Info("replication complete", "episodes", len(episodes), "written", total)
	return total, nil
}

// Batches splits episodes into consecutive slices of at most size elements,
// skipping episodes without an id.
func Batches(episodes []domain.Episode, size int) [][]domain.Episode {
	if size <= 0 {
		size = DefaultBatchSize
	}

	valid := make([]domain.Episode, 0, len(episodes))
	for _, ep := range episodes {
		if ep.EID != "" {
			valid = append(valid, ep)
		}
	}

	var out [][]domain.Episode
	for start := 0; start < len(valid); start += size {
		end := start + size
		if end > len(valid) {
			end = len(valid)
		}
		out = append(out, valid[start:end])
	}
	return out
}

// EnsureSchema creates the episodes table.
func (r *Replicator) EnsureSchema(ctx context.Context) error {
	if r.pg.DB() == nil {
		return ErrNotConnected
	}

	const ddl = `
CREATE TABLE IF NOT EXISTS episodes (
  eid TEXT PRIMARY KEY,
  title TEXT NOT NULL DEFAULT '',
  audio_url TEXT NOT NULL DEFAULT '',
  pub_date TIMESTAMPTZ,
  duration DOUBLE PRECISION NOT NULL DEFAULT 0,
  transcribed BOOLEAN NOT NULL DEFAULT false
);`

	if _, err := r.pg.DB().ExecContext(ctx, ddl); err != nil {
		return fmt.Errorf("create episodes table: %w", err)
	}
	return nil
}

func (r *Replicator) upsertTx(ctx context.Context, batch []domain.Episode) (int, error) {
	tx, err := r.pg.DB().BeginTx(ctx, &sql.TxOptions{})
	if err != nil {
		return 0, fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	const upsert = `
INSERT INTO episodes (eid, title, audio_url, pub_date, duration, transcribed)
VALUES ($1, $2, $3, $4, $5, $6)
ON CONFLICT (eid) DO UPDATE SET
  title = EXCLUDED.title,
  audio_url = EXCLUDED.audio_url,
  pub_date = EXCLUDED.pub_date,
  duration = EXCLUDED.duration,
  transcribed = EXCLUDED.transcribed`

	stmt, err := tx.PrepareContext(ctx, upsert)
	if err != nil {
		return 0, fmt.Errorf("prepare upsert: %w", err)
	}
	defer stmt.Close()

	for _, ep := range batch {
		if _, err := stmt.ExecContext(ctx, ep.EID, ep.Title, ep.AudioURL, ep.PubDate, ep.Duration, ep.Transcribed); err != nil {
			return 0, fmt.Errorf("upsert episode eid=%q: %w", ep.EID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit: %w", err)
	}
	return len(batch), nil
}
