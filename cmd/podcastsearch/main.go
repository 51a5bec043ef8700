package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"podcast-search/pkg/aggregation"
	"podcast-search/pkg/api"
	"podcast-search/pkg/config"
	"podcast-search/pkg/db"
	"podcast-search/pkg/episodes"
	"podcast-search/pkg/logging"
	"podcast-search/pkg/search"
	"podcast-search/pkg/stats"
)

func main() {
	var (
		configPath = flag.String("config", config.DefaultPath(), "Path to the YAML config file")
		addr       = flag.String("addr", "", "Listen address (overrides server.addr)")
		logLevel   = flag.String("log-level", "", "Log level: debug, info, warn, error (overrides log_level)")
		bins       = flag.Int("bins", 0, "Default histogram bins (overrides aggregation.bins)")
		workers    = flag.Int("workers", 0, "Parallel term searches (overrides aggregation.workers)")
	)
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("failed to load config", "path", *configPath, "error", err)
		os.Exit(1)
	}
	if *addr != "" {
		cfg.Server.Addr = *addr
	}
	if *logLevel != "" {
		cfg.LogLevel = *logLevel
	}
	if *bins > 0 {
		cfg.Aggregation.Bins = *bins
	}
	if *workers > 0 {
		cfg.Aggregation.Workers = *workers
	}

	logger := logging.BuildLogger(cfg.LogLevel)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("podcast-search failed", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	engineCfg := aggregation.Config{
		Bins:          cfg.Aggregation.Bins,
		Workers:       cfg.Aggregation.Workers,
		AbortOnError:  cfg.Aggregation.AbortOnError,
		EnvelopeWidth: cfg.Aggregation.EnvelopeWidth,
		FPS:           cfg.Aggregation.FPS,
		Logger:        logger,
	}

	// Feeds first: they seed the episode catalogue
	var catalog *episodes.FeedCatalog
	if len(cfg.Feed.URLs) > 0 {
		catalog = episodes.NewFeedCatalog(logger)
		for _, u := range cfg.Feed.URLs {
			if _, err := catalog.Load(ctx, u); err != nil {
				logger.Warn("failed to load feed", "url", u, "error", err)
			}
		}
		engineCfg.Metadata = catalog
	}

	if cfg.Mongo.URI != "" {
		mongo := db.NewClient(cfg.Mongo.URI, cfg.Mongo.Database, cfg.Mongo.Collection)
		if err := mongo.Connect(ctx); err != nil {
			return err
		}
		defer mongo.Close(context.Background())

		if catalog != nil {
			if err := syncEpisodes(ctx, mongo, catalog, logger); err != nil {
				logger.Warn("episode sync failed", "error", err)
			}
		}
		engineCfg.Metadata = mongo
		engineCfg.Episodes = mongo
	}

	sqlClient, err := db.ConnectSearchDB(ctx, cfg.UsesSupabase(), cfg.PostgresClientConfig(), cfg.SupabaseClientConfig())
	if err != nil {
		return err
	}
	defer sqlClient.Close()

	if sb, ok := sqlClient.(*db.SupabaseClient); ok && engineCfg.Episodes == nil {
		engineCfg.Episodes = sb
	}

	var embedder search.Embedder
	if cfg.Embedder.URL != "" {
		embedder = search.NewHTTPEmbedder(cfg.Embedder.URL)
	}
	store := search.NewPostgresStore(sqlClient, embedder, search.NewWordCache(cfg.Cache.Capacity), logger)
	if sqlClient.DB() != nil {
		if err := store.EnsureSchema(ctx); err != nil {
			return err
		}
	}
	engineCfg.Lexical = store
	engineCfg.Counter = store
	if embedder != nil {
		engineCfg.Semantic = store
	}

	statsStore, err := stats.Open(cfg.Stats.Path)
	if err != nil {
		return err
	}
	defer statsStore.Close()
	engineCfg.Occurrences = statsStore
	engineCfg.Words = statsStore

	engine, err := aggregation.NewEngine(engineCfg)
	if err != nil {
		return err
	}

	server := api.NewServer(engine, api.Options{AllowOrigins: cfg.Server.AllowOrigins, Logger: logger})

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Listen(cfg.Server.Addr)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	}
}

// syncEpisodes stores feed episodes the database does not know yet.
func syncEpisodes(ctx context.Context, mongo *db.Client, catalog *episodes.FeedCatalog, logger *slog.Logger) error {
	known, err := mongo.GetAllEIDs(ctx)
	if err != nil {
		return err
	}

	added := 0
	for _, ep := range catalog.Episodes() {
		if known[ep.EID] {
			continue
		}
		ep := ep
		if err := mongo.SaveEpisode(ctx, &ep); err != nil {
			return err
		}
		added++
	}
	logger.Info("episodes synced", "added", added, "known", len(known))
	return nil
}
