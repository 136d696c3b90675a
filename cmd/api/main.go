package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/zatekoja/brakebee-search/internal/adapters/cache"
	"github.com/zatekoja/brakebee-search/internal/adapters/catalog"
	"github.com/zatekoja/brakebee-search/internal/adapters/database"
	"github.com/zatekoja/brakebee-search/internal/adapters/events"
	"github.com/zatekoja/brakebee-search/internal/adapters/relevance"
	"github.com/zatekoja/brakebee-search/internal/api/handlers"
	"github.com/zatekoja/brakebee-search/internal/api/middleware"
	"github.com/zatekoja/brakebee-search/internal/api/routes"
	"github.com/zatekoja/brakebee-search/internal/application/services"
	"github.com/zatekoja/brakebee-search/internal/domain/providers"
	"github.com/zatekoja/brakebee-search/internal/domain/repositories"
	"github.com/zatekoja/brakebee-search/internal/infrastructure/clients/postgres"
	"github.com/zatekoja/brakebee-search/internal/infrastructure/clients/redis"
	"github.com/zatekoja/brakebee-search/internal/infrastructure/clients/typesense"
	"github.com/zatekoja/brakebee-search/internal/infrastructure/observability"
	"github.com/zatekoja/brakebee-search/pkg/config"
)

// suggestCacheTTL is how long identical suggestion requests are served from Redis
const suggestCacheTTL = 60

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	observability.InitLogger(cfg.OTEL.ServiceName, cfg.Env)
	observability.SetLogLevel(cfg.LogLevel)

	// Set up context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize OpenTelemetry if enabled
	if cfg.OTEL.Enabled && cfg.OTEL.Endpoint != "" {
		shutdown, err := observability.Setup(ctx, cfg.OTEL.ServiceName, cfg.OTEL.ServiceVersion, cfg.OTEL.Endpoint)
		if err != nil {
			log.Warn().Err(err).Msg("Failed to set up OpenTelemetry")
		} else {
			defer func() {
				ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				if err := shutdown(ctx); err != nil {
					log.Error().Err(err).Msg("Error shutting down OpenTelemetry")
				}
			}()
			log.Info().Msg("OpenTelemetry initialized")
		}
	}

	metrics, err := observability.InitMetrics()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize metrics")
	}

	// Postgres backs the catalog replica and search analytics
	var pgClient *postgres.Client
	if cfg.Database.Enabled {
		pgClient, err = postgres.NewClient(&cfg.Database)
		if err != nil {
			if cfg.Catalog.Source == config.CatalogSourcePostgres {
				log.Fatal().Err(err).Msg("Failed to initialize PostgreSQL client")
			}
			log.Warn().Err(err).Msg("PostgreSQL unavailable, search analytics disabled")
			pgClient = nil
		} else {
			defer pgClient.Close()
		}
	} else if cfg.Catalog.Source == config.CatalogSourcePostgres {
		log.Fatal().Msg("CATALOG_SOURCE=postgres requires DB_ENABLED")
	}

	// Redis is optional; without it records are fetched uncached
	var (
		cacheProvider providers.CacheProvider
		eventBus      providers.EventBus
	)
	if cfg.Redis.Enabled {
		redisClient, err := redis.NewClient(&cfg.Redis)
		if err != nil {
			log.Warn().Err(err).Msg("Redis unavailable, running without record cache")
		} else {
			defer redisClient.Close()
			cacheProvider = cache.NewRedisAdapter(redisClient)
			eventBus = events.NewRedisEventBus(redisClient)
		}
	}

	// Entity fetchers
	var catalogRepo repositories.CatalogRepository
	var fetchers providers.FetcherRegistry
	switch cfg.Catalog.Source {
	case config.CatalogSourcePostgres:
		catalogRepo = database.NewCatalogAdapter(pgClient, metrics)
		fetchers = catalog.NewLoaderRegistry(catalogRepo)
	default:
		fetchers = catalog.NewHTTPRegistry(cfg.Catalog.BaseURL, &http.Client{})
	}
	if cacheProvider != nil {
		fetchers = catalog.WithCache(fetchers, cacheProvider, cfg.Catalog.CacheTTLSeconds, metrics)
	}
	log.Info().Str("source", cfg.Catalog.Source).Bool("cached", cacheProvider != nil).Msg("Entity fetchers ready")

	// Relevance source
	var relevanceSource providers.RelevanceSource
	switch cfg.Relevance.Provider {
	case config.RelevanceProviderTypesense:
		tsClient, err := typesense.NewClient(&cfg.Typesense)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to initialize Typesense client")
		}
		relevanceSource = relevance.NewTypesenseSource(tsClient)
	default:
		relevanceSource = relevance.NewLeoClient(relevance.LeoConfig{
			URL:             cfg.Relevance.URL,
			BreakerFailures: cfg.Relevance.BreakerFailures,
			BreakerCooldown: cfg.Relevance.BreakerCooldown,
		}, &http.Client{})
	}
	log.Info().Str("provider", cfg.Relevance.Provider).Msg("Relevance source ready")

	// Initialize services
	aggregator := services.NewResultAggregator(relevanceSource, fetchers, services.AggregatorConfig{
		MaxConcurrentFetches: cfg.Search.MaxConcurrentFetches,
		RelevanceTimeout:     cfg.Relevance.Timeout,
		FetchTimeout:         cfg.Search.FetchTimeout,
	}, metrics)
	sessions := services.NewSessionStore(aggregator, cfg.Search.MaxSessions, cfg.Search.SessionTTL, metrics)
	defer sessions.Close()
	suggestions := services.NewSuggestionService(aggregator)

	var tracker handlers.SearchTracker
	if pgClient != nil {
		tracker = services.NewSearchAnalyticsService(database.NewSearchAnalyticsAdapter(pgClient))
	}

	var cacheInvalidationService *services.CacheInvalidationService
	if cacheProvider != nil && eventBus != nil {
		cacheInvalidationService = services.NewCacheInvalidationService(cacheProvider, eventBus)
		if err := cacheInvalidationService.Start(); err != nil {
			log.Warn().Err(err).Msg("Failed to start cache invalidation service")
			cacheInvalidationService = nil
		}
	}

	if cacheProvider != nil && catalogRepo != nil && cfg.Catalog.CacheWarmInterval > 0 {
		warmingService := services.NewCacheWarmingService(catalogRepo, cacheProvider, cfg.Catalog.CacheTTLSeconds, services.DefaultWarmPerCategory)
		go warmingService.StartPeriodicWarming(ctx, cfg.Catalog.CacheWarmInterval)
	}

	var suggestCache *middleware.ResponseCache
	if cacheProvider != nil {
		suggestCache = middleware.NewResponseCache(cacheProvider, "suggest", suggestCacheTTL, metrics)
	}

	searchHandler := handlers.NewSearchHandler(sessions, suggestions, tracker, cfg.Search.PageSize)
	router := routes.NewRouter(searchHandler, suggestCache, cfg.Server.AllowedOrigins, metrics)

	serverAddr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	server := &http.Server{
		Addr:         serverAddr,
		Handler:      router.SetupRoutes(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: cfg.Relevance.Timeout + cfg.Search.FetchTimeout + 5*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info().Str("addr", serverAddr).Msg("Server starting")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Server failed to start")
		}
	}()

	// Wait for interrupt signal for graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Server shutting down")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Error during server shutdown")
	}

	if eventBus != nil {
		if err := eventBus.Close(); err != nil {
			log.Error().Err(err).Msg("Error closing event bus")
		}
	}
	if cacheInvalidationService != nil {
		cacheInvalidationService.Stop()
	}

	log.Info().Msg("Server stopped")
}
