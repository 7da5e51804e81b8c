package initializers

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

// Config holds every tunable of the service. Values are resolved in order:
// defaults, then the TOML file named by CONFIG_FILE, then environment variables.
type Config struct {
	AppEnv   string `toml:"app_env"`
	LogLevel string `toml:"log_level"`
	Port     string `toml:"port"`

	DatabaseURL   string `toml:"database_url"`
	MigrationsDir string `toml:"migrations_dir"`
	RunMigrations bool   `toml:"run_migrations"`

	BlobDriver  string `toml:"blob_driver"`
	S3Region    string `toml:"s3_region"`
	S3Endpoint  string `toml:"s3_endpoint"`
	S3AccessKey string `toml:"s3_access_key"`
	S3SecretKey string `toml:"s3_secret_key"`
	S3Bucket    string `toml:"s3_bucket"`
	S3PublicURL string `toml:"s3_public_url"`
	S3UseSSL    bool   `toml:"s3_use_ssl"`

	ElasticsearchURL string `toml:"elasticsearch_url"`
	SearchIndex      string `toml:"search_index"`

	RedisAddr  string        `toml:"redis_addr"`
	StagingTTL time.Duration `toml:"-"`

	VectorStore      string `toml:"vector_store"`
	QdrantURL        string `toml:"qdrant_url"`
	QdrantAPIKey     string `toml:"qdrant_api_key"`
	QdrantCollection string `toml:"qdrant_collection"`
	VectorDim        int    `toml:"vector_dim"`

	OpenAIAPIKey   string        `toml:"openai_api_key"`
	OpenAIBaseURL  string        `toml:"openai_base_url"`
	OpenAIModel    string        `toml:"openai_model"`
	EmbeddingModel string        `toml:"embedding_model"`
	OpenAIRetries  int           `toml:"openai_max_retries"`
	OpenAITimeout  time.Duration `toml:"-"`

	SofficePath       string        `toml:"soffice_path"`
	ConversionTimeout time.Duration `toml:"-"`

	ChunkSize    int `toml:"chunk_size"`
	ChunkOverlap int `toml:"chunk_overlap"`

	ClassifyConcurrency    int           `toml:"classify_concurrency"`
	ClauseWriteConcurrency int           `toml:"clause_write_concurrency"`
	VectorSearchLimit      int           `toml:"vector_search_limit"`
	TempDocumentTTL        time.Duration `toml:"-"`
	SweepInterval          time.Duration `toml:"-"`
	RequestTimeout         time.Duration `toml:"-"`
	MaxUploadBytes         int64         `toml:"max_upload_bytes"`

	GlobalRateLimit int      `toml:"global_rate_limit"`
	StrictRateLimit int      `toml:"strict_rate_limit"`
	CORSOrigins     []string `toml:"cors_origins"`

	TracingEnabled     bool    `toml:"tracing_enabled"`
	OTLPEndpoint       string  `toml:"otlp_endpoint"`
	OTLPInsecure       bool    `toml:"otlp_insecure"`
	TracingSampleRatio float64 `toml:"tracing_sample_ratio"`
}

// DefaultConfig returns the configuration used when nothing is overridden.
func DefaultConfig() Config {
	return Config{
		AppEnv:                 "development",
		LogLevel:               "info",
		Port:                   "8080",
		MigrationsDir:          "db/migrations",
		RunMigrations:          true,
		BlobDriver:             "s3",
		S3Region:               "us-east-1",
		S3UseSSL:               true,
		SearchIndex:            "documents",
		StagingTTL:             30 * time.Minute,
		VectorStore:            "qdrant",
		QdrantCollection:       "legal",
		VectorDim:              1536,
		OpenAIBaseURL:          "https://api.openai.com/v1",
		OpenAIModel:            "gpt-4o-mini",
		EmbeddingModel:         "text-embedding-3-small",
		OpenAIRetries:          2,
		OpenAITimeout:          90 * time.Second,
		SofficePath:            "soffice",
		ConversionTimeout:      2 * time.Minute,
		ChunkSize:              600,
		ChunkOverlap:           100,
		ClassifyConcurrency:    8,
		ClauseWriteConcurrency: 8,
		VectorSearchLimit:      5,
		TempDocumentTTL:        24 * time.Hour,
		SweepInterval:          time.Hour,
		RequestTimeout:         2 * time.Minute,
		MaxUploadBytes:         20 << 20,
		GlobalRateLimit:        100,
		StrictRateLimit:        10,
		CORSOrigins:            []string{"*"},
		TracingSampleRatio:     0.1,
	}
}

// LoadConfig resolves the configuration from CONFIG_FILE and the environment.
func LoadConfig() (Config, error) {
	return load(true)
}

// LoadIngestConfig is LoadConfig without the database requirement, for
// tools that only talk to the vector store and the model API.
func LoadIngestConfig() (Config, error) {
	return load(false)
}

func load(requireDB bool) (Config, error) {
	cfg := DefaultConfig()

	if path := strings.TrimSpace(os.Getenv("CONFIG_FILE")); path != "" {
		if err := loadConfigFile(path, &cfg); err != nil {
			return Config{}, err
		}
		log.Printf("Loaded config file %s", path)
	}

	if err := applyEnv(&cfg); err != nil {
		return Config{}, err
	}
	if requireDB && cfg.DatabaseURL == "" {
		return Config{}, fmt.Errorf("env variable DIRECT_URL is empty")
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func loadConfigFile(path string, cfg *Config) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file %s: %w", path, err)
	}
	if err := toml.Unmarshal(raw, cfg); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	// Durations are written as strings ("30m") in the file.
	var durations struct {
		StagingTTL        string `toml:"staging_ttl"`
		ConversionTimeout string `toml:"conversion_timeout"`
		TempDocumentTTL   string `toml:"temp_document_ttl"`
		SweepInterval     string `toml:"sweep_interval"`
		RequestTimeout    string `toml:"request_timeout"`
		OpenAITimeout     string `toml:"openai_timeout"`
	}
	if err := toml.Unmarshal(raw, &durations); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	for _, d := range []struct {
		name string
		raw  string
		dst  *time.Duration
	}{
		{"staging_ttl", durations.StagingTTL, &cfg.StagingTTL},
		{"conversion_timeout", durations.ConversionTimeout, &cfg.ConversionTimeout},
		{"temp_document_ttl", durations.TempDocumentTTL, &cfg.TempDocumentTTL},
		{"sweep_interval", durations.SweepInterval, &cfg.SweepInterval},
		{"request_timeout", durations.RequestTimeout, &cfg.RequestTimeout},
		{"openai_timeout", durations.OpenAITimeout, &cfg.OpenAITimeout},
	} {
		if d.raw == "" {
			continue
		}
		parsed, err := time.ParseDuration(d.raw)
		if err != nil {
			return fmt.Errorf("invalid %s=%q in %s: %w", d.name, d.raw, path, err)
		}
		*d.dst = parsed
	}
	return nil
}

func applyEnv(cfg *Config) error {
	str := func(key string, dst *string) {
		if v := strings.TrimSpace(os.Getenv(key)); v != "" {
			*dst = v
		}
	}
	str("APP_ENV", &cfg.AppEnv)
	str("LOG_LEVEL", &cfg.LogLevel)
	str("PORT", &cfg.Port)
	str("DIRECT_URL", &cfg.DatabaseURL)
	str("MIGRATIONS_DIR", &cfg.MigrationsDir)
	str("BLOB_DRIVER", &cfg.BlobDriver)
	str("SUPABASE_REGION", &cfg.S3Region)
	str("SUPABASE_S3_ENDPOINT", &cfg.S3Endpoint)
	str("SUPABASE_ACCESS_KEY", &cfg.S3AccessKey)
	str("SUPABASE_SECRET_KEY", &cfg.S3SecretKey)
	str("SUPABASE_BUCKET", &cfg.S3Bucket)
	str("SUPABASE_S3_URL", &cfg.S3PublicURL)
	str("ELASTICSEARCH_URL", &cfg.ElasticsearchURL)
	str("SEARCH_INDEX", &cfg.SearchIndex)
	str("REDIS_ADDR", &cfg.RedisAddr)
	str("VECTOR_STORE", &cfg.VectorStore)
	str("QDRANT_HOST", &cfg.QdrantURL)
	str("QDRANT_API_KEY", &cfg.QdrantAPIKey)
	str("QDRANT_COLLECTION", &cfg.QdrantCollection)
	str("OPENAI_API_KEY", &cfg.OpenAIAPIKey)
	str("OPENAI_BASE_URL", &cfg.OpenAIBaseURL)
	str("OPENAI_MODEL", &cfg.OpenAIModel)
	str("EMBEDDING_MODEL", &cfg.EmbeddingModel)
	str("SOFFICE_PATH", &cfg.SofficePath)
	str("OTEL_EXPORTER_OTLP_ENDPOINT", &cfg.OTLPEndpoint)

	var err error
	boolean := func(key string, dst *bool) {
		if v := strings.TrimSpace(os.Getenv(key)); v != "" && err == nil {
			var b bool
			if b, err = strconv.ParseBool(v); err != nil {
				err = fmt.Errorf("invalid %s=%q: %w", key, v, err)
				return
			}
			*dst = b
		}
	}
	integer := func(key string, dst *int) {
		if v := strings.TrimSpace(os.Getenv(key)); v != "" && err == nil {
			var n int
			if n, err = strconv.Atoi(v); err != nil {
				err = fmt.Errorf("invalid %s=%q: %w", key, v, err)
				return
			}
			*dst = n
		}
	}
	duration := func(key string, dst *time.Duration) {
		if v := strings.TrimSpace(os.Getenv(key)); v != "" && err == nil {
			var d time.Duration
			if d, err = time.ParseDuration(v); err != nil {
				err = fmt.Errorf("invalid %s=%q: %w", key, v, err)
				return
			}
			*dst = d
		}
	}

	boolean("RUN_MIGRATIONS", &cfg.RunMigrations)
	boolean("S3_USE_SSL", &cfg.S3UseSSL)
	boolean("OTEL_ENABLED", &cfg.TracingEnabled)
	boolean("OTEL_EXPORTER_OTLP_INSECURE", &cfg.OTLPInsecure)
	integer("QDRANT_VECTOR_DIM", &cfg.VectorDim)
	integer("CHUNK_SIZE", &cfg.ChunkSize)
	integer("CHUNK_OVERLAP", &cfg.ChunkOverlap)
	integer("CLASSIFY_CONCURRENCY", &cfg.ClassifyConcurrency)
	integer("CLAUSE_WRITE_CONCURRENCY", &cfg.ClauseWriteConcurrency)
	integer("VECTOR_SEARCH_LIMIT", &cfg.VectorSearchLimit)
	integer("OPENAI_MAX_RETRIES", &cfg.OpenAIRetries)
	integer("GLOBAL_RATE_LIMIT", &cfg.GlobalRateLimit)
	integer("STRICT_RATE_LIMIT", &cfg.StrictRateLimit)
	duration("STAGING_TTL", &cfg.StagingTTL)
	duration("CONVERSION_TIMEOUT", &cfg.ConversionTimeout)
	duration("TEMP_DOCUMENT_TTL", &cfg.TempDocumentTTL)
	duration("SWEEP_INTERVAL", &cfg.SweepInterval)
	duration("REQUEST_TIMEOUT", &cfg.RequestTimeout)
	duration("OPENAI_TIMEOUT", &cfg.OpenAITimeout)

	if v := strings.TrimSpace(os.Getenv("CORS_ORIGINS")); v != "" {
		cfg.CORSOrigins = nil
		for _, o := range strings.Split(v, ",") {
			if o = strings.TrimSpace(o); o != "" {
				cfg.CORSOrigins = append(cfg.CORSOrigins, o)
			}
		}
	}

	if v := strings.TrimSpace(os.Getenv("OTEL_SAMPLER_RATIO")); v != "" && err == nil {
		f, perr := strconv.ParseFloat(v, 64)
		if perr != nil {
			return fmt.Errorf("invalid OTEL_SAMPLER_RATIO=%q: %w", v, perr)
		}
		cfg.TracingSampleRatio = f
	}
	if v := strings.TrimSpace(os.Getenv("MAX_UPLOAD_BYTES")); v != "" && err == nil {
		n, perr := strconv.ParseInt(v, 10, 64)
		if perr != nil {
			return fmt.Errorf("invalid MAX_UPLOAD_BYTES=%q: %w", v, perr)
		}
		cfg.MaxUploadBytes = n
	}
	return err
}

// Validate checks the values that cannot be defaulted.
func (c Config) Validate() error {
	if c.OpenAIAPIKey == "" {
		return fmt.Errorf("env variable OPENAI_API_KEY is empty")
	}
	switch c.BlobDriver {
	case "s3", "minio":
	default:
		return fmt.Errorf("unknown blob driver %q", c.BlobDriver)
	}
	switch c.VectorStore {
	case "qdrant":
		if c.QdrantURL == "" {
			return fmt.Errorf("env variable QDRANT_HOST is empty")
		}
	case "memory":
	default:
		return fmt.Errorf("unknown vector store %q", c.VectorStore)
	}
	if c.ChunkSize <= 0 || c.ChunkOverlap < 0 || c.ChunkOverlap >= c.ChunkSize {
		return fmt.Errorf("invalid chunking: size=%d overlap=%d", c.ChunkSize, c.ChunkOverlap)
	}
	if c.ClassifyConcurrency < 1 || c.ClauseWriteConcurrency < 1 {
		return fmt.Errorf("concurrency limits must be positive")
	}
	if c.GlobalRateLimit < 1 || c.StrictRateLimit < 1 {
		return fmt.Errorf("rate limits must be positive")
	}
	if c.TracingSampleRatio < 0 || c.TracingSampleRatio > 1 {
		return fmt.Errorf("OTEL_SAMPLER_RATIO must be between 0 and 1")
	}
	if c.OpenAIRetries < 0 {
		return fmt.Errorf("OPENAI_MAX_RETRIES must not be negative")
	}
	return nil
}
