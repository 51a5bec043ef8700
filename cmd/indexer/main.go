package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"podcast-search/pkg/config"
	"podcast-search/pkg/db"
	"podcast-search/pkg/indexservice"
	"podcast-search/pkg/logging"
	"podcast-search/pkg/replication"
	"podcast-search/pkg/search"
	"podcast-search/pkg/stats"
)

func main() {
	var (
		configPath = flag.String("config", config.DefaultPath(), "Path to the YAML config file")
		dir        = flag.String("dir", "transcripts", "Directory of transcript JSON files")
		workers    = flag.Int("workers", 4, "Number of transcripts indexed in parallel")
		replicate  = flag.Bool("replicate", false, "Copy transcribed episodes from MongoDB into the Postgres episodes table")
	)
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("failed to load config", "path", *configPath, "error", err)
		os.Exit(1)
	}

	logger := logging.BuildLogger(cfg.LogLevel)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	start := time.Now()
	if err := run(ctx, cfg, *dir, *workers, *replicate, logger); err != nil {
		logger.Error("indexing failed", "error", err, "duration", time.Since(start))
		os.Exit(1)
	}
	logger.Info("done", "duration", time.Since(start))
}

func run(ctx context.Context, cfg *config.Config, dir string, workers int, replicate bool, logger *slog.Logger) error {
	sqlClient, err := db.ConnectSearchDB(ctx, cfg.UsesSupabase(), cfg.PostgresClientConfig(), cfg.SupabaseClientConfig())
	if err != nil {
		return err
	}
	defer sqlClient.Close()

	store := search.NewPostgresStore(sqlClient, nil, search.NewWordCache(cfg.Cache.Capacity), logger)
	if err := store.EnsureSchema(ctx); err != nil {
		return err
	}

	statsStore, err := stats.Open(cfg.Stats.Path)
	if err != nil {
		return err
	}
	defer statsStore.Close()

	svcCfg := indexservice.Config{
		Search:  store,
		Stats:   statsStore,
		Workers: workers,
		Logger:  logger,
	}

	var mongo *db.Client
	if cfg.Mongo.URI != "" {
		mongo = db.NewClient(cfg.Mongo.URI, cfg.Mongo.Database, cfg.Mongo.Collection)
		if err := mongo.Connect(ctx); err != nil {
			return err
		}
		defer mongo.Close(context.Background())
		svcCfg.Episodes = mongo
	}

	logger.Info("indexing transcripts", "dir", dir, "workers", workers)
	res, indexErr := indexservice.New(svcCfg).IndexDir(ctx, dir)
	if indexErr != nil {
		// Partial success still gets replicated
		logger.Warn("some transcripts failed", "indexed", res.Indexed, "failed", res.Failed, "error", indexErr)
	}

	if replicate {
		if mongo == nil {
			logger.Warn("replication skipped: mongo not configured")
		} else {
			r, err := replication.NewReplicator(replication.Config{Source: mongo, Postgres: sqlClient, Logger: logger})
			if err != nil {
				return err
			}
			if _, err := r.ReplicateEpisodes(ctx); err != nil {
				return err
			}
		}
	}

	if res.Indexed == 0 {
		return indexErr
	}
	return nil
}
