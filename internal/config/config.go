package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/seanblong/resumatch/internal/ai"
	"github.com/seanblong/resumatch/internal/scoring"
	"github.com/spf13/pflag"
	"gopkg.in/yaml.v3"
)

type Specification struct {
	Provider       string             `yaml:"provider"`
	APIKey         string             `yaml:"providerApiKey" envconfig:"PROVIDER_API_KEY"`
	EmbedModel     string             `yaml:"providerEmbedModel" envconfig:"PROVIDER_EMBEDDING_MODEL"`
	ProjectID      string             `yaml:"providerProjectID" envconfig:"PROVIDER_PROJECT_ID"`
	Location       string             `yaml:"providerLocation" envconfig:"PROVIDER_LOCATION"`
	Dim            int                `yaml:"providerDim" envconfig:"EMBED_DIM"`
	Database       string             `yaml:"database" envconfig:"DB_URL"`
	Store          string             `yaml:"store"`
	Cache          string             `yaml:"cache"`
	Redis          RedisSpecification `yaml:"redis"`
	LogLevel       string             `yaml:"logLevel" split_words:"true"`
	Port           int                `yaml:"port" split_words:"true"`
	Workers        int                `yaml:"workers"`
	EmbedTimeout   time.Duration      `yaml:"embedTimeout" split_words:"true"`
	Threshold      float64            `yaml:"threshold"`
	MaxUploadMB    int                `yaml:"maxUploadMB" envconfig:"MAX_UPLOAD_MB"`
	Weights        scoring.Weights    `yaml:"weights"`
	Skills         map[string]float64 `yaml:"skills"`
	JobDescription string             `yaml:"jobDescription" envconfig:"JD"`
	ResumeDir      string             `yaml:"resumeDir" split_words:"true"`

	flags *pflag.FlagSet `ignored:"true"`
}

type RedisSpecification struct {
	Addr     string        `yaml:"addr"`
	Password string        `yaml:"password"`
	DB       int           `yaml:"db"`
	TTL      time.Duration `yaml:"ttl"`
}

const envPrefix = "RESUMATCH"

const (
	StoreMemory   = "memory"
	StorePostgres = "postgres"
	CacheNone     = "none"
	CacheRedis    = "redis"
	CachePostgres = "postgres"
)

func (s *Specification) Usage() {
	fmt.Fprint(os.Stderr, s.flags.FlagUsages())
}

// ClientConfig returns the embedding client settings.
func (s *Specification) ClientConfig() *ai.ClientConfig {
	return &ai.ClientConfig{
		APIKey:     s.APIKey,
		EmbedModel: s.EmbedModel,
		Dim:        s.Dim,
		ProjectID:  s.ProjectID,
		Provider:   ai.Provider(s.Provider),
		Location:   s.Location,
	}
}

// MaxUploadBytes is the request body limit for uploads.
func (s *Specification) MaxUploadBytes() int64 {
	return int64(s.MaxUploadMB) << 20
}

// Load => defaults < YAML < env < flags.
// configPath may be ""; if so we auto-discover.
func Load(configPath string, fs *pflag.FlagSet) (Specification, error) {
	var cfg Specification

	// set defaults (lowest precedence)
	setDefaults(&cfg)
	bindFlags(fs, &cfg)

	// config file
	path := configPath
	if path == "" {
		if v := os.Getenv(envPrefix + "_CONFIG"); v != "" {
			path = v
		} else {
			for _, cand := range []string{
				"config/resumatch.yaml",
				"config/config.yaml",
				"./resumatch.yaml",
				"./config.yaml",
			} {
				if fileExists(cand) {
					path = cand
					break
				}
			}
		}
	}

	if path != "" {
		if !fileExists(path) {
			return Specification{}, fmt.Errorf("config file not found: %s", path)
		}
		if err := loadYAML(path, &cfg); err != nil {
			return Specification{}, fmt.Errorf("load yaml %s: %w", path, err)
		}
	}

	// env overrides config file
	if err := envconfig.Process(envPrefix, &cfg); err != nil {
		return Specification{}, fmt.Errorf("env override: %w", err)
	}

	// flags override everything
	if err := fs.Parse(os.Args[1:]); err != nil {
		return Specification{}, err
	}
	applyChangedFlags(fs, &cfg)

	if strings.TrimSpace(cfg.LogLevel) == "" {
		cfg.LogLevel = "info"
	}
	if err := cfg.Validate(); err != nil {
		return Specification{}, err
	}
	return cfg, nil
}

// Validate checks that the settings can be used together.
func (s *Specification) Validate() error {
	var errs []error
	switch s.Store {
	case StoreMemory, StorePostgres:
	default:
		errs = append(errs, fmt.Errorf("unsupported store %q (memory|postgres)", s.Store))
	}
	switch s.Cache {
	case CacheNone, CacheRedis, CachePostgres:
	default:
		errs = append(errs, fmt.Errorf("unsupported cache %q (none|redis|postgres)", s.Cache))
	}
	if (s.Store == StorePostgres || s.Cache == CachePostgres) && strings.TrimSpace(s.Database) == "" {
		errs = append(errs, errors.New(envPrefix+"_DB_URL is required when store or cache is postgres"))
	}
	if s.Cache == CacheRedis && strings.TrimSpace(s.Redis.Addr) == "" {
		errs = append(errs, errors.New(envPrefix+"_REDIS_ADDR is required when cache is redis"))
	}
	if err := s.Weights.Validate(); err != nil {
		errs = append(errs, err)
	}
	if s.Threshold < 0 || s.Threshold > 100 {
		errs = append(errs, fmt.Errorf("threshold must be within [0,100], got %v", s.Threshold))
	}
	if s.MaxUploadMB <= 0 {
		errs = append(errs, fmt.Errorf("maxUploadMB must be positive, got %d", s.MaxUploadMB))
	}
	if s.Workers < 0 {
		errs = append(errs, fmt.Errorf("workers must not be negative, got %d", s.Workers))
	}
	for name, w := range s.Skills {
		if w < 0 {
			errs = append(errs, fmt.Errorf("skill %q has negative weight %v", name, w))
		}
	}
	return errors.Join(errs...)
}

// ---------- helpers ----------

func loadYAML(path string, into any) error {
	b, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return yaml.Unmarshal(b, into)
}

func fileExists(p string) bool {
	fi, err := os.Stat(p)
	return err == nil && !fi.IsDir()
}

func bindFlags(fs *pflag.FlagSet, c *Specification) {
	fs.String("config", "", "Path to config file")

	// If --config is provided on the command line, capture it now so
	// config discovery (which runs before flags.Parse) can use it.
	for i, a := range os.Args {
		if a == "--config" {
			if i+1 < len(os.Args) && !strings.HasPrefix(os.Args[i+1], "-") {
				_ = os.Setenv(envPrefix+"_CONFIG", os.Args[i+1])
			}
		} else if strings.HasPrefix(a, "--config=") {
			parts := strings.SplitN(a, "=", 2)
			if len(parts) == 2 {
				_ = os.Setenv(envPrefix+"_CONFIG", parts[1])
			}
		}
	}

	fs.String("provider", c.Provider, "Embedding provider (stub|openai|vertexai)")
	fs.String("provider-api-key", c.APIKey, "Provider API key")
	fs.String("provider-embedding-model", c.EmbedModel, "Provider embedding model")
	fs.String("provider-project-id", c.ProjectID, "Provider project ID")
	fs.String("provider-location", c.Location, "Provider location/region")
	fs.Int("embed-dim", c.Dim, "Embedding dimensionality")
	fs.Duration("embed-timeout", c.EmbedTimeout, "Per-batch embedding timeout before fallback vectors are used")

	fs.String("db-url", c.Database, "Database URL (DSN)")
	fs.String("store", c.Store, "Document store (memory|postgres)")
	fs.String("cache", c.Cache, "Embedding cache (none|redis|postgres)")
	fs.String("redis-addr", c.Redis.Addr, "Redis address (host:port)")
	fs.String("redis-password", c.Redis.Password, "Redis password")
	fs.Int("redis-db", c.Redis.DB, "Redis database number")
	fs.Duration("redis-ttl", c.Redis.TTL, "Expiry of cached embeddings in Redis")

	fs.String("log-level", c.LogLevel, "Log level (debug|info|warn|error)")
	fs.Int("port", c.Port, "API server port")
	fs.Int("workers", c.Workers, "Concurrent candidate scorers (0 = min(NumCPU, 8))")
	fs.Int("max-upload-mb", c.MaxUploadMB, "Maximum upload request size in MB")

	fs.Float64("threshold", c.Threshold, "Minimum final score (0-100) for a candidate to be selected")
	fs.Float64("weight-semantic", c.Weights.Semantic, "Blend weight of semantic coverage")
	fs.Float64("weight-keywords", c.Weights.Keywords, "Blend weight of keyword overlap")
	fs.Float64("weight-education", c.Weights.Education, "Blend weight of the education heuristic")
	fs.Float64("weight-experience", c.Weights.Experience, "Blend weight of the experience heuristic")
	fs.Float64("weight-skills", c.Weights.Skills, "Blend weight of the skills heuristic")

	fs.String("jd", c.JobDescription, "Path to the job description file")
	fs.String("resume-dir", c.ResumeDir, "Directory of resumes to match")

	// Used later for usage/help
	// create a shallow copy of fs (so Usage can be called safely without mutating caller)
	copied := pflag.NewFlagSet("temp", pflag.ContinueOnError)
	*copied = *fs
	c.flags = copied
}

func applyChangedFlags(fs *pflag.FlagSet, c *Specification) {
	setStr := func(name string, dst *string) {
		if fs.Changed(name) {
			v, _ := fs.GetString(name)
			*dst = v
		}
	}
	setInt := func(name string, dst *int) {
		if fs.Changed(name) {
			v, _ := fs.GetInt(name)
			*dst = v
		}
	}
	setFloat := func(name string, dst *float64) {
		if fs.Changed(name) {
			v, _ := fs.GetFloat64(name)
			*dst = v
		}
	}
	setDur := func(name string, dst *time.Duration) {
		if fs.Changed(name) {
			v, _ := fs.GetDuration(name)
			*dst = v
		}
	}

	// (We ignore --config here; it's for discovery.)
	setStr("provider", &c.Provider)
	setStr("provider-api-key", &c.APIKey)
	setStr("provider-embedding-model", &c.EmbedModel)
	setStr("provider-project-id", &c.ProjectID)
	setStr("provider-location", &c.Location)
	setInt("embed-dim", &c.Dim)
	setDur("embed-timeout", &c.EmbedTimeout)

	setStr("db-url", &c.Database)
	setStr("store", &c.Store)
	setStr("cache", &c.Cache)
	setStr("redis-addr", &c.Redis.Addr)
	setStr("redis-password", &c.Redis.Password)
	setInt("redis-db", &c.Redis.DB)
	setDur("redis-ttl", &c.Redis.TTL)

	setStr("log-level", &c.LogLevel)
	setInt("port", &c.Port)
	setInt("workers", &c.Workers)
	setInt("max-upload-mb", &c.MaxUploadMB)

	setFloat("threshold", &c.Threshold)
	setFloat("weight-semantic", &c.Weights.Semantic)
	setFloat("weight-keywords", &c.Weights.Keywords)
	setFloat("weight-education", &c.Weights.Education)
	setFloat("weight-experience", &c.Weights.Experience)
	setFloat("weight-skills", &c.Weights.Skills)

	setStr("jd", &c.JobDescription)
	setStr("resume-dir", &c.ResumeDir)
}

func setDefaults(c *Specification) {
	c.LogLevel = "info"
	c.Provider = string(ai.ProviderStub)
	c.Store = StoreMemory
	c.Cache = CacheNone
	c.Redis.Addr = "localhost:6379"
	c.Redis.TTL = 24 * time.Hour
	c.Dim = 0
	c.Location = "us-central1"
	c.Port = 8080
	c.EmbedTimeout = 30 * time.Second
	c.Threshold = 60
	c.MaxUploadMB = 20
	c.Weights = scoring.DefaultWeights()
}
