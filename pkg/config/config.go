package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"
)

// Config represents the complete application configuration.
type Config struct {
	Profile       string              `mapstructure:"profile"`
	Storage       StorageConfig       `mapstructure:"storage"`
	RestAPI       RestAPIConfig       `mapstructure:"rest_api"`
	Logging       LoggingConfig       `mapstructure:"logging"`
	Embedding     EmbeddingConfig     `mapstructure:"embedding"`
	Qdrant        QdrantConfig        `mapstructure:"qdrant"`
	Neo4j         Neo4jConfig         `mapstructure:"neo4j"`
	Search        SearchConfig        `mapstructure:"search"`
	Scoring       ScoringConfig       `mapstructure:"scoring"`
	RateLimit     RateLimitConfig     `mapstructure:"rate_limit"`
	WorkingMemory WorkingMemoryConfig `mapstructure:"working_memory"`
	Dedup         DedupConfig         `mapstructure:"dedup"`
	Chunking      ChunkingConfig      `mapstructure:"chunking"`
}

// StorageConfig selects and configures the memory-index backend.
type StorageConfig struct {
	// Backend is "memory" (the in-process reference index) or "sqlite".
	Backend        string        `mapstructure:"backend"`
	SQLitePath     string        `mapstructure:"sqlite_path"`
	BackupInterval time.Duration `mapstructure:"backup_interval"`
	MaxBackups     int           `mapstructure:"max_backups"`
}

// RestAPIConfig holds REST API server configuration.
type RestAPIConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	AutoPort bool   `mapstructure:"auto_port"`
	Port     int    `mapstructure:"port"`
	Host     string `mapstructure:"host"`
	CORS     bool   `mapstructure:"cors"`
	// APIKey, when non-empty, requires a matching Bearer/X-API-Key header
	// on every request except health checks.
	APIKey string `mapstructure:"api_key"`
	// AllowOrigins restricts CORS to specific origins. Empty means allow
	// all origins, which is only safe because APIKey gates access.
	AllowOrigins []string `mapstructure:"allow_origins"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`  // debug, info, warn, error
	Format string `mapstructure:"format"` // console, json
}

// EmbeddingConfig configures the embedding gateway.
type EmbeddingConfig struct {
	Provider   string        `mapstructure:"provider"` // "ollama" or "deterministic" (tests)
	AutoDetect bool          `mapstructure:"auto_detect"`
	BaseURL    string        `mapstructure:"base_url"`
	Model      string        `mapstructure:"model"` // nomic-embed-text
	Dimensions int           `mapstructure:"dimensions"`
	Timeout    time.Duration `mapstructure:"timeout"`
	CacheTTL   time.Duration `mapstructure:"cache_ttl"`
	BatchSize  int           `mapstructure:"batch_size"`
	MaxRetries int           `mapstructure:"max_retries"`
}

// QdrantConfig holds the optional Qdrant ANN-acceleration backend config.
// Verified: HNSW (m=16, ef_construct=100).
type QdrantConfig struct {
	Enabled    bool   `mapstructure:"enabled"`
	AutoDetect bool   `mapstructure:"auto_detect"`
	URL        string `mapstructure:"url"`
}

// Neo4jConfig holds the optional knowledge-graph persisted backend config.
type Neo4jConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	URI      string `mapstructure:"uri"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
}

// SearchConfig holds hybrid-retrieval defaults.
type SearchConfig struct {
	DefaultLimit       int     `mapstructure:"default_limit"`
	DenseWeight        float64 `mapstructure:"dense_weight"`
	SparseWeight       float64 `mapstructure:"sparse_weight"`
	RRFK               int     `mapstructure:"rrf_k"`
	QueryVariants      int     `mapstructure:"query_variants"`
	DuplicateThreshold float64 `mapstructure:"duplicate_threshold"`
}

// ScoringConfig holds composite rescoring weights.
type ScoringConfig struct {
	RecencyWeight    float64 `mapstructure:"recency_weight"`
	ImportanceWeight float64 `mapstructure:"importance_weight"`
	RelevanceWeight  float64 `mapstructure:"relevance_weight"`
	Decay            float64 `mapstructure:"decay"`
}

// RateLimitConfig holds sliding-window rate-limit settings.
type RateLimitConfig struct {
	Enabled bool           `mapstructure:"enabled"`
	Window  time.Duration  `mapstructure:"window"`
	Global  int            `mapstructure:"global"`
	PerOp   map[string]int `mapstructure:"per_op"`
}

// WorkingMemoryConfig holds working-memory-manager defaults.
type WorkingMemoryConfig struct {
	MaxTokens           int     `mapstructure:"max_tokens"`
	ReflectionThreshold float64 `mapstructure:"reflection_threshold"`
	MaxRecentSummaries  int     `mapstructure:"max_recent_summaries"`
	TokensPerWord       float64 `mapstructure:"tokens_per_word"`
}

// DedupConfig holds duplicate/merge-engine defaults.
type DedupConfig struct {
	ScanWindow int `mapstructure:"scan_window"`
}

// ChunkingConfig holds hierarchical content-chunking defaults: content
// stored above MinChunkSize is split into overlapping passages, each
// indexed as its own MemoryUnit alongside the parent.
type ChunkingConfig struct {
	Enabled      bool `mapstructure:"enabled"`
	MaxChunkSize int  `mapstructure:"max_chunk_size"`
	OverlapSize  int  `mapstructure:"overlap_size"`
	MinChunkSize int  `mapstructure:"min_chunk_size"`
}

// DefaultConfig returns configuration with verified default values.
func DefaultConfig() *Config {
	homeDir, _ := os.UserHomeDir()
	configDir := filepath.Join(homeDir, ".mnemocore")

	return &Config{
		Profile: "default",
		Storage: StorageConfig{
			Backend:        "memory",
			SQLitePath:     filepath.Join(configDir, "mnemocore.db"),
			BackupInterval: 24 * time.Hour,
			MaxBackups:     7,
		},
		RestAPI: RestAPIConfig{
			Enabled:      true,
			AutoPort:     true,
			Port:         8085,
			Host:         "localhost",
			CORS:         true,
			APIKey:       "",
			AllowOrigins: nil,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
		Embedding: EmbeddingConfig{
			Provider:   "ollama",
			AutoDetect: true,
			BaseURL:    "http://localhost:11434",
			Model:      "nomic-embed-text",
			Dimensions: 768,
			Timeout:    60 * time.Second,
			CacheTTL:   5 * time.Minute,
			BatchSize:  64,
			MaxRetries: 3,
		},
		Qdrant: QdrantConfig{
			Enabled:    false,
			AutoDetect: true,
			URL:        "http://localhost:6333",
		},
		Neo4j: Neo4jConfig{
			Enabled: false,
			URI:     "bolt://localhost:7687",
		},
		Search: SearchConfig{
			DefaultLimit:       10,
			DenseWeight:        0.6,
			SparseWeight:       0.4,
			RRFK:               60,
			QueryVariants:      3,
			DuplicateThreshold: 0.85,
		},
		Scoring: ScoringConfig{
			RecencyWeight:    1,
			ImportanceWeight: 1,
			RelevanceWeight:  1,
			Decay:            0.99,
		},
		RateLimit: RateLimitConfig{
			Enabled: true,
			Window:  60 * time.Second,
			Global:  200,
			PerOp: map[string]int{
				"store":  60,
				"recall": 100,
				"update": 30,
				"delete": 20,
				"batch":  10,
			},
		},
		WorkingMemory: WorkingMemoryConfig{
			MaxTokens:           128_000,
			ReflectionThreshold: 10.0,
			MaxRecentSummaries:  5,
			TokensPerWord:       1.3,
		},
		Dedup: DedupConfig{
			ScanWindow: 1000,
		},
		Chunking: ChunkingConfig{
			Enabled:      true,
			MaxChunkSize: 1000,
			OverlapSize:  100,
			MinChunkSize: 1500,
		},
	}
}

// Load loads configuration from YAML file with fallback to defaults.
// Searches in multiple locations:
// 1. ./config.yaml (current directory)
// 2. ~/.mnemocore/config.yaml (user home)
// 3. /etc/mnemocore/config.yaml (system-wide)
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("yaml")

	v.AddConfigPath(".")
	homeDir, _ := os.UserHomeDir()
	v.AddConfigPath(filepath.Join(homeDir, ".mnemocore"))
	v.AddConfigPath("/etc/mnemocore")

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return DefaultConfig(), nil
		}
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	config := &Config{}
	if err := v.Unmarshal(config); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return config, nil
}

// setDefaults sets default values in Viper.
func setDefaults(v *viper.Viper) {
	d := DefaultConfig()

	v.SetDefault("profile", d.Profile)

	v.SetDefault("storage.backend", d.Storage.Backend)
	v.SetDefault("storage.sqlite_path", d.Storage.SQLitePath)
	v.SetDefault("storage.backup_interval", d.Storage.BackupInterval)
	v.SetDefault("storage.max_backups", d.Storage.MaxBackups)

	v.SetDefault("rest_api.enabled", d.RestAPI.Enabled)
	v.SetDefault("rest_api.auto_port", d.RestAPI.AutoPort)
	v.SetDefault("rest_api.port", d.RestAPI.Port)
	v.SetDefault("rest_api.host", d.RestAPI.Host)
	v.SetDefault("rest_api.cors", d.RestAPI.CORS)

	v.SetDefault("logging.level", d.Logging.Level)
	v.SetDefault("logging.format", d.Logging.Format)

	v.SetDefault("embedding.provider", d.Embedding.Provider)
	v.SetDefault("embedding.auto_detect", d.Embedding.AutoDetect)
	v.SetDefault("embedding.base_url", d.Embedding.BaseURL)
	v.SetDefault("embedding.model", d.Embedding.Model)
	v.SetDefault("embedding.dimensions", d.Embedding.Dimensions)
	v.SetDefault("embedding.timeout", d.Embedding.Timeout)
	v.SetDefault("embedding.cache_ttl", d.Embedding.CacheTTL)
	v.SetDefault("embedding.batch_size", d.Embedding.BatchSize)
	v.SetDefault("embedding.max_retries", d.Embedding.MaxRetries)

	v.SetDefault("qdrant.enabled", d.Qdrant.Enabled)
	v.SetDefault("qdrant.auto_detect", d.Qdrant.AutoDetect)
	v.SetDefault("qdrant.url", d.Qdrant.URL)

	v.SetDefault("neo4j.enabled", d.Neo4j.Enabled)
	v.SetDefault("neo4j.uri", d.Neo4j.URI)

	v.SetDefault("search.default_limit", d.Search.DefaultLimit)
	v.SetDefault("search.dense_weight", d.Search.DenseWeight)
	v.SetDefault("search.sparse_weight", d.Search.SparseWeight)
	v.SetDefault("search.rrf_k", d.Search.RRFK)
	v.SetDefault("search.query_variants", d.Search.QueryVariants)
	v.SetDefault("search.duplicate_threshold", d.Search.DuplicateThreshold)

	v.SetDefault("scoring.recency_weight", d.Scoring.RecencyWeight)
	v.SetDefault("scoring.importance_weight", d.Scoring.ImportanceWeight)
	v.SetDefault("scoring.relevance_weight", d.Scoring.RelevanceWeight)
	v.SetDefault("scoring.decay", d.Scoring.Decay)

	v.SetDefault("rate_limit.enabled", d.RateLimit.Enabled)
	v.SetDefault("rate_limit.window", d.RateLimit.Window)
	v.SetDefault("rate_limit.global", d.RateLimit.Global)
	v.SetDefault("rate_limit.per_op", d.RateLimit.PerOp)

	v.SetDefault("working_memory.max_tokens", d.WorkingMemory.MaxTokens)
	v.SetDefault("working_memory.reflection_threshold", d.WorkingMemory.ReflectionThreshold)
	v.SetDefault("working_memory.max_recent_summaries", d.WorkingMemory.MaxRecentSummaries)
	v.SetDefault("working_memory.tokens_per_word", d.WorkingMemory.TokensPerWord)

	v.SetDefault("dedup.scan_window", d.Dedup.ScanWindow)

	v.SetDefault("chunking.enabled", d.Chunking.Enabled)
	v.SetDefault("chunking.max_chunk_size", d.Chunking.MaxChunkSize)
	v.SetDefault("chunking.overlap_size", d.Chunking.OverlapSize)
	v.SetDefault("chunking.min_chunk_size", d.Chunking.MinChunkSize)
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.Storage.Backend != "memory" && c.Storage.Backend != "sqlite" {
		return fmt.Errorf("storage.backend must be 'memory' or 'sqlite'")
	}
	if c.Storage.Backend == "sqlite" && c.Storage.SQLitePath == "" {
		return fmt.Errorf("storage.sqlite_path is required when storage.backend is 'sqlite'")
	}
	if c.Storage.MaxBackups < 0 {
		return fmt.Errorf("storage.max_backups must be >= 0")
	}

	if c.RestAPI.Enabled {
		if c.RestAPI.Port < 1 || c.RestAPI.Port > 65535 {
			return fmt.Errorf("rest_api.port must be between 1 and 65535")
		}
		if c.RestAPI.Host == "" {
			return fmt.Errorf("rest_api.host is required when REST API is enabled")
		}
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[c.Logging.Level] {
		return fmt.Errorf("logging.level must be one of: debug, info, warn, error")
	}

	validFormats := map[string]bool{"console": true, "json": true}
	if !validFormats[c.Logging.Format] {
		return fmt.Errorf("logging.format must be one of: console, json")
	}

	if c.Embedding.Provider == "ollama" && c.Embedding.BaseURL == "" {
		return fmt.Errorf("embedding.base_url is required when provider is 'ollama'")
	}
	if c.Embedding.Dimensions <= 0 {
		return fmt.Errorf("embedding.dimensions must be positive")
	}

	if c.Qdrant.Enabled && c.Qdrant.URL == "" {
		return fmt.Errorf("qdrant.url is required when Qdrant is enabled")
	}

	if c.Search.DenseWeight < 0 || c.Search.SparseWeight < 0 {
		return fmt.Errorf("search weights must be non-negative")
	}

	return nil
}

// EnsureConfigDir creates the configuration directory if it doesn't exist.
func (c *Config) EnsureConfigDir() error {
	configDir := filepath.Dir(c.Storage.SQLitePath)
	if err := os.MkdirAll(configDir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	return nil
}

// ConfigPath returns the path to the configuration directory.
func ConfigPath() string {
	homeDir, _ := os.UserHomeDir()
	return filepath.Join(homeDir, ".mnemocore")
}

// DatabasePath returns the default database path.
func DatabasePath() string {
	return filepath.Join(ConfigPath(), "mnemocore.db")
}
