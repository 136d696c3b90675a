package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/zatekoja/brakebee-search/internal/adapters/database"
	"github.com/zatekoja/brakebee-search/internal/adapters/events"
	"github.com/zatekoja/brakebee-search/internal/adapters/search"
	"github.com/zatekoja/brakebee-search/internal/application/services"
	"github.com/zatekoja/brakebee-search/internal/domain/entities"
	"github.com/zatekoja/brakebee-search/internal/infrastructure/clients/postgres"
	"github.com/zatekoja/brakebee-search/internal/infrastructure/clients/redis"
	"github.com/zatekoja/brakebee-search/internal/infrastructure/clients/typesense"
	"github.com/zatekoja/brakebee-search/internal/infrastructure/observability"
	"github.com/zatekoja/brakebee-search/pkg/config"
)

func main() {
	var (
		reset          bool
		watch          bool
		intervalFlag   string
		categoriesFlag string
		workers        int
	)
	flag.BoolVar(&reset, "reset", false, "drop the category collections before the first reindex")
	flag.StringVar(&intervalFlag, "interval", "", "repeat interval for reindexing (e.g. 6h, 30m)")
	flag.BoolVar(&watch, "watch", false, "apply catalog change events between reindexes")
	flag.StringVar(&categoriesFlag, "categories", "", "comma separated categories to index (default all)")
	flag.IntVar(&workers, "workers", 4, "concurrent index writers")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	observability.InitLogger("brakebee-indexer", cfg.Env)
	observability.SetLogLevel(cfg.LogLevel)

	interval, err := parseInterval(intervalFlag, os.Getenv("REINDEX_INTERVAL"))
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid interval")
	}
	categories, err := parseCategoryList(categoriesFlag)
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid categories")
	}
	if os.Getenv("RESET_TYPESENSE") == "true" {
		reset = true
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pgClient, err := postgres.NewClient(&cfg.Database)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize PostgreSQL client")
	}
	defer pgClient.Close()

	tsClient, err := typesense.NewClient(&cfg.Typesense)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize Typesense client")
	}

	indexer := services.NewIndexService(
		database.NewCatalogAdapter(pgClient, nil),
		search.NewTypesenseIndexer(tsClient),
		workers,
	)

	if watch {
		redisClient, err := redis.NewClient(&cfg.Redis)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to initialize Redis client for -watch")
		}
		defer redisClient.Close()
		bus := events.NewRedisEventBus(redisClient)
		defer bus.Close()

		go func() {
			if err := indexer.Watch(ctx, bus); err != nil {
				log.Error().Err(err).Msg("Catalog watch stopped")
			}
		}()
		log.Info().Msg("Watching catalog updates")
	}

	for {
		indexOnce(ctx, indexer, categories, reset)

		if interval <= 0 && !watch {
			break
		}
		reset = false

		var next <-chan time.Time
		if interval > 0 {
			log.Info().Dur("interval", interval).Msg("Reindex complete, waiting for next run")
			next = time.After(interval)
		}
		select {
		case <-ctx.Done():
			log.Info().Msg("Reindexer shutting down")
			return
		case <-next:
		}
	}
}

func indexOnce(ctx context.Context, indexer *services.IndexService, categories []entities.Category, reset bool) {
	start := time.Now()
	summary, err := indexer.Reindex(ctx, categories, reset)
	if err != nil {
		log.Error().Err(err).Msg("Reindex failed")
		return
	}
	event := log.Info().
		Int("processed", summary.TotalProcessed).
		Int("indexed", summary.SuccessCount).
		Int("failed", summary.FailureCount).
		Dur("took", time.Since(start))
	for c, n := range summary.ByCategory {
		event = event.Int(string(c), n)
	}
	event.Msg("Indexing complete")
}

// parseInterval prefers the flag over the environment; empty means run once
func parseInterval(flagValue, envValue string) (time.Duration, error) {
	value := strings.TrimSpace(flagValue)
	if value == "" {
		value = strings.TrimSpace(envValue)
	}
	if value == "" {
		return 0, nil
	}
	interval, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("invalid interval %q: %w", value, err)
	}
	if interval <= 0 {
		return 0, fmt.Errorf("interval must be greater than zero")
	}
	return interval, nil
}

func parseCategoryList(value string) ([]entities.Category, error) {
	if strings.TrimSpace(value) == "" {
		return entities.AllCategories(), nil
	}
	return entities.ParseCategories(strings.Split(value, ","))
}
