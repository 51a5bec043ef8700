// Package indexservice loads transcript files produced by the transcription
// pipeline into the search and stats stores.
package indexservice

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"podcast-search/pkg/domain"
	"podcast-search/pkg/stats"
	"podcast-search/pkg/worker"
)

var (
	ErrEmptyDir        = errors.New("transcript directory is empty")
	ErrEmptyTranscript = errors.New("transcript has no segments")
)

// TranscriptIndexer stores transcript segments and embedded chunks for search.
type TranscriptIndexer interface {
	IndexTranscript(ctx context.Context, eid string, segments []domain.Segment) error
	StoreChunks(ctx context.Context, eid string, chunks []domain.Chunk) error
}

// StatsWriter stores per-episode statistics.
type StatsWriter interface {
	SaveWordCount(ctx context.Context, eid string, count int) error
	SaveTimedTokens(ctx context.Context, eid string, tokens []domain.TimedToken) error
}

// EpisodeMarker flags episodes whose transcript has been indexed.
type EpisodeMarker interface {
	MarkTranscribed(ctx context.Context, eid string) error
}

// TranscriptFile is the on-disk form of one episode's transcript.
type TranscriptFile struct {
	EID      string              `json:"eid"`
	Segments []domain.Segment    `json:"segments"`
	Entities []domain.TimedToken `json:"entities"`
	Chunks   []domain.Chunk      `json:"chunks"`
}

// Config holds the service's collaborators.
type Config struct {
	Search   TranscriptIndexer
	Stats    StatsWriter
	Episodes EpisodeMarker // optional
	Workers  int
	Logger   *slog.Logger
}

// Service indexes transcript files in parallel.
type Service struct {
	search   TranscriptIndexer
	stats    StatsWriter
	episodes EpisodeMarker
	manager  *worker.Manager
	logger   *slog.Logger
}

// New creates a new index service.
func New(cfg Config) *Service {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Service{
		search:   cfg.Search,
		stats:    cfg.Stats,
		episodes: cfg.Episodes,
		manager:  worker.NewManager(cfg.Workers, cfg.Logger),
		logger:   cfg.Logger,
	}
}

// Result summarizes an IndexDir run.
type Result struct {
	Indexed int
	Failed  int
}

// IndexDir indexes every *.json transcript file in dir. A file that fails
// does not stop the others; all failures are returned joined.
func (s *Service) IndexDir(ctx context.Context, dir string) (Result, error) {
	paths, err := filepath.Glob(filepath.Join(dir, "*.json"))
	if err != nil {
		return Result{}, fmt.Errorf("list transcripts: %w", err)
	}
	if len(paths) == 0 {
		return Result{}, fmt.Errorf("%w: %s", ErrEmptyDir, dir)
	}
	sort.Strings(paths)

	tasks := make([]worker.Task, len(paths))
	for i, p := range paths {
		p := p
		tasks[i] = func(ctx context.Context) error {
			return s.IndexFile(ctx, p)
		}
	}

	var res Result
	var errs []error
	for i, err := range s.manager.Run(ctx, tasks) {
		if err != nil {
			res.Failed++
			errs = append(errs, fmt.Errorf("%s: %w", filepath.Base(paths[i]), err))
			continue
		}
		res.Indexed++
	}

	s.logger.Info("transcripts indexed", "dir", dir, "indexed", res.Indexed, "failed", res.Failed)
	return res, errors.Join(errs...)
}

// IndexFile indexes one transcript file. The episode id defaults to the file
// name without extension.
func (s *Service) IndexFile(ctx context.Context, path string) error {
	tf, err := ReadTranscript(path)
	if err != nil {
		return err
	}
	return s.Index(ctx, tf)
}

// Index stores one transcript: segments and chunks for search, word count
// and named entities for stats, then marks the episode transcribed.
func (s *Service) Index(ctx context.Context, tf *TranscriptFile) error {
	if len(tf.Segments) == 0 {
		return fmt.Errorf("%w: %s", ErrEmptyTranscript, tf.EID)
	}

	if err := s.search.IndexTranscript(ctx, tf.EID, tf.Segments); err != nil {
		return fmt.Errorf("index segments: %w", err)
	}
	if len(tf.Chunks) > 0 {
		if err := s.search.StoreChunks(ctx, tf.EID, tf.Chunks); err != nil {
			return fmt.Errorf("store chunks: %w", err)
		}
	}

	if err := s.stats.SaveWordCount(ctx, tf.EID, stats.CountWords(tf.Segments)); err != nil {
		return err
	}
	if err := s.stats.SaveTimedTokens(ctx, tf.EID, tf.Entities); err != nil {
		return err
	}

	if s.episodes != nil {
		if err := s.episodes.MarkTranscribed(ctx, tf.EID); err != nil {
			return fmt.Errorf("mark transcribed: %w", err)
		}
	}

	s.logger.Debug("episode indexed", "eid", tf.EID, "segments", len(tf.Segments), "entities", len(tf.Entities), "chunks", len(tf.Chunks))
	return nil
}

// ReadTranscript decodes a transcript file.
func ReadTranscript(path string) (*TranscriptFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read transcript: %w", err)
	}

	var tf TranscriptFile
	if err := json.Unmarshal(data, &tf); err != nil {
		return nil, fmt.Errorf("decode transcript: %w", err)
	}
	if tf.EID == "" {
		tf.EID = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}
	return &tf, nil
}
