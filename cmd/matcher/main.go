package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/rs/zerolog"
	zlog "github.com/rs/zerolog/log"
	"github.com/seanblong/resumatch/internal/ai"
	"github.com/seanblong/resumatch/internal/config"
	"github.com/seanblong/resumatch/internal/loader"
	"github.com/seanblong/resumatch/internal/match"
	"github.com/seanblong/resumatch/internal/scoring"
	"github.com/seanblong/resumatch/internal/store"
	"github.com/seanblong/resumatch/pkg/models"
	"github.com/spf13/pflag"
)

func main() {
	fs := pflag.NewFlagSet("resumatch-matcher", pflag.ExitOnError)

	cfg, err := config.Load("", fs)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	fs.Usage = cfg.Usage

	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		log.Fatalf("Invalid log level '%s': %v", cfg.LogLevel, err)
	}
	// stdout carries the report; logs go to stderr.
	zerolog.SetGlobalLevel(level)
	zlog.Logger = zerolog.New(os.Stderr).With().Timestamp().Logger()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, os.Stdout); err != nil {
		log.Fatal(err)
	}
}

func run(ctx context.Context, cfg config.Specification, out io.Writer) error {
	if cfg.JobDescription == "" || cfg.ResumeDir == "" {
		return errors.New("both --jd and --resume-dir are required")
	}

	jd, err := loader.ReadDocument(&loader.DefaultFileReader{}, filepath.Dir(cfg.JobDescription), cfg.JobDescription)
	if err != nil {
		return fmt.Errorf("read job description %s: %w", cfg.JobDescription, err)
	}

	ld := loader.New(cfg.ResumeDir)
	ld.Workers = cfg.Workers
	loaded, err := ld.Load(ctx)
	if err != nil {
		return fmt.Errorf("load resumes: %w", err)
	}
	if len(loaded.Documents) == 0 {
		return fmt.Errorf("no readable resumes in %s", cfg.ResumeDir)
	}

	clientConfig := cfg.ClientConfig()
	c, err := ai.NewClient(clientConfig)
	if err != nil {
		return fmt.Errorf("create AI client: %w", err)
	}

	var embedder ai.Client = c
	namespace := fmt.Sprintf("%s/%s/%d", cfg.Provider, clientConfig.EmbedModel, c.Dim())
	switch cfg.Cache {
	case config.CacheRedis:
		rc, err := ai.NewRedisCache(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, cfg.Redis.TTL)
		if err != nil {
			return fmt.Errorf("connect to redis: %w", err)
		}
		defer rc.Close()
		embedder = ai.NewCachedClient(c, rc, namespace)
	case config.CachePostgres:
		pg, err := store.New(ctx, cfg.Database)
		if err != nil {
			return fmt.Errorf("connect to database: %w", err)
		}
		defer pg.Close()
		if err := pg.Migrate(ctx, c.Dim()); err != nil {
			return fmt.Errorf("migrate database: %w", err)
		}
		embedder = ai.NewCachedClient(c, pg, namespace)
	}

	var skills scoring.SkillVocabulary
	if len(cfg.Skills) > 0 {
		skills = scoring.SkillVocabulary(cfg.Skills)
	}
	scorer, err := scoring.NewScorer(ai.NewResilient(embedder, cfg.EmbedTimeout), cfg.Weights, skills)
	if err != nil {
		return err
	}

	candidates := make([]models.Document, len(loaded.Documents))
	for i, d := range loaded.Documents {
		candidates[i] = d.Document()
	}

	report, err := match.New(scorer, cfg.Workers).Match(ctx, jd.Document(), candidates, cfg.Threshold, nil)
	if err != nil {
		return err
	}
	// Files that could not be read are reported alongside those that could not be scored.
	report.Excluded = append(loaded.Failed, report.Excluded...)

	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(report)
}
