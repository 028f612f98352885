package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/seanblong/resumatch/internal/ai"
	"github.com/seanblong/resumatch/internal/api"
	"github.com/seanblong/resumatch/internal/config"
	"github.com/seanblong/resumatch/internal/match"
	"github.com/seanblong/resumatch/internal/scoring"
	"github.com/seanblong/resumatch/internal/store"
	"github.com/spf13/pflag"
)

func main() {
	// Create flagset for configuration
	fs := pflag.NewFlagSet("resumatch-api", pflag.ExitOnError)

	// Load configuration
	cfg, err := config.Load("", fs)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	fs.Usage = cfg.Usage

	// Set up logging
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		log.Fatalf("Invalid log level '%s': %v", cfg.LogLevel, err)
	}
	zerolog.SetGlobalLevel(level)
	logger := zerolog.New(os.Stdout).Level(level).With().Timestamp().Logger()
	logger.Info().
		Str("provider", cfg.Provider).
		Str("store", cfg.Store).
		Str("cache", cfg.Cache).
		Str("log_level", cfg.LogLevel).
		Msg("starting resumatch api")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	clientConfig := cfg.ClientConfig()
	c, err := ai.NewClient(clientConfig)
	if err != nil {
		log.Fatalf("Failed to create AI client: %v", err)
	}
	dim := c.Dim()
	logger.Info().Int("embedding_dim", dim).Str("embed_model", clientConfig.EmbedModel).Msg("AI client initialized")

	var pg *store.Store
	if cfg.Store == config.StorePostgres || cfg.Cache == config.CachePostgres {
		pg, err = store.New(ctx, cfg.Database)
		if err != nil {
			log.Fatalf("Failed to connect to database: %v", err)
		}
		defer pg.Close()
		if err := pg.Ping(ctx); err != nil {
			log.Fatalf("Database not reachable: %v", err)
		}

		// Use the AI client's dimension for database migration
		if err := pg.Migrate(ctx, dim); err != nil {
			log.Fatalf("Failed to migrate database: %v", err)
		}
	}

	var embedder ai.Client = c
	switch cfg.Cache {
	case config.CacheRedis:
		rc, err := ai.NewRedisCache(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, cfg.Redis.TTL)
		if err != nil {
			log.Fatalf("Failed to connect to redis: %v", err)
		}
		defer rc.Close()
		embedder = ai.NewCachedClient(c, rc, cacheNamespace(cfg.Provider, clientConfig.EmbedModel, dim))
	case config.CachePostgres:
		embedder = ai.NewCachedClient(c, pg, cacheNamespace(cfg.Provider, clientConfig.EmbedModel, dim))
	}

	var docs store.DocumentStore = store.NewSession()
	if cfg.Store == config.StorePostgres {
		docs = pg
	}

	var skills scoring.SkillVocabulary
	if len(cfg.Skills) > 0 {
		skills = scoring.SkillVocabulary(cfg.Skills)
	}
	scorer, err := scoring.NewScorer(ai.NewResilient(embedder, cfg.EmbedTimeout), cfg.Weights, skills)
	if err != nil {
		log.Fatalf("Failed to create scorer: %v", err)
	}

	srv := api.NewServer(docs, match.New(scorer, cfg.Workers), cfg.Threshold, cfg.MaxUploadBytes())

	address := fmt.Sprintf(":%d", cfg.Port)
	s := &http.Server{
		Addr:              address,
		Handler:           srv.Handler(logger),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := s.Shutdown(shutdownCtx); err != nil {
			logger.Error().Err(err).Msg("shutdown failed")
		}
	}()

	logger.Info().Str("addr", s.Addr).Msg("api server listening")
	if err := s.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatal(err)
	}
	logger.Info().Msg("api server stopped")
}

// cacheNamespace keeps vectors from different models or dimensions apart.
func cacheNamespace(provider, model string, dim int) string {
	return fmt.Sprintf("%s/%s/%d", provider, model, dim)
}
