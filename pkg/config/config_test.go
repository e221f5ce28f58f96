package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Storage.MaxBackups != 7 {
		t.Errorf("Expected MaxBackups=7, got %d", cfg.Storage.MaxBackups)
	}
	if cfg.Storage.BackupInterval != 24*time.Hour {
		t.Errorf("Expected BackupInterval=24h, got %v", cfg.Storage.BackupInterval)
	}
	if cfg.Storage.Backend != "memory" {
		t.Errorf("Expected Backend=memory, got %s", cfg.Storage.Backend)
	}

	if !cfg.RestAPI.Enabled {
		t.Error("Expected RestAPI.Enabled=true")
	}
	if cfg.RestAPI.Port != 8085 {
		t.Errorf("Expected Port=8085, got %d", cfg.RestAPI.Port)
	}
	if cfg.RestAPI.Host != "localhost" {
		t.Errorf("Expected Host=localhost, got %s", cfg.RestAPI.Host)
	}
	if !cfg.RestAPI.CORS {
		t.Error("Expected CORS=true")
	}

	if cfg.Embedding.Model != "nomic-embed-text" {
		t.Errorf("Expected Model=nomic-embed-text, got %s", cfg.Embedding.Model)
	}
	if cfg.Embedding.Dimensions != 768 {
		t.Errorf("Expected Dimensions=768, got %d", cfg.Embedding.Dimensions)
	}
	if cfg.Embedding.BaseURL != "http://localhost:11434" {
		t.Errorf("Expected Embedding BaseURL=http://localhost:11434, got %s", cfg.Embedding.BaseURL)
	}

	if cfg.Qdrant.URL != "http://localhost:6333" {
		t.Errorf("Expected Qdrant URL=http://localhost:6333, got %s", cfg.Qdrant.URL)
	}

	if cfg.Search.DefaultLimit != 10 {
		t.Errorf("Expected Search.DefaultLimit=10, got %d", cfg.Search.DefaultLimit)
	}
	if cfg.Search.DenseWeight != 0.6 || cfg.Search.SparseWeight != 0.4 {
		t.Errorf("Expected dense/sparse weights 0.6/0.4, got %v/%v", cfg.Search.DenseWeight, cfg.Search.SparseWeight)
	}
	if cfg.Search.RRFK != 60 {
		t.Errorf("Expected RRFK=60, got %d", cfg.Search.RRFK)
	}

	if cfg.RateLimit.Global != 200 {
		t.Errorf("Expected RateLimit.Global=200, got %d", cfg.RateLimit.Global)
	}
	if cfg.RateLimit.PerOp["store"] != 60 {
		t.Errorf("Expected per_op.store=60, got %d", cfg.RateLimit.PerOp["store"])
	}

	if cfg.WorkingMemory.MaxTokens != 128_000 {
		t.Errorf("Expected WorkingMemory.MaxTokens=128000, got %d", cfg.WorkingMemory.MaxTokens)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name      string
		modify    func(*Config)
		expectErr bool
	}{
		{
			name:      "valid config",
			modify:    func(c *Config) {},
			expectErr: false,
		},
		{
			name: "invalid storage backend",
			modify: func(c *Config) {
				c.Storage.Backend = "postgres"
			},
			expectErr: true,
		},
		{
			name: "sqlite backend without path",
			modify: func(c *Config) {
				c.Storage.Backend = "sqlite"
				c.Storage.SQLitePath = ""
			},
			expectErr: true,
		},
		{
			name: "negative max backups",
			modify: func(c *Config) {
				c.Storage.MaxBackups = -1
			},
			expectErr: true,
		},
		{
			name: "invalid port",
			modify: func(c *Config) {
				c.RestAPI.Port = 99999
			},
			expectErr: true,
		},
		{
			name: "invalid logging level",
			modify: func(c *Config) {
				c.Logging.Level = "invalid"
			},
			expectErr: true,
		},
		{
			name: "empty embedding base url when provider is ollama",
			modify: func(c *Config) {
				c.Embedding.Provider = "ollama"
				c.Embedding.BaseURL = ""
			},
			expectErr: true,
		},
		{
			name: "non-positive embedding dimensions",
			modify: func(c *Config) {
				c.Embedding.Dimensions = 0
			},
			expectErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.modify(cfg)

			err := cfg.Validate()
			if tt.expectErr && err == nil {
				t.Error("Expected error, got nil")
			}
			if !tt.expectErr && err != nil {
				t.Errorf("Expected no error, got: %v", err)
			}
		})
	}
}

func TestLoadConfig_NoFile(t *testing.T) {
	tmpDir := t.TempDir()
	oldWd, _ := os.Getwd()
	defer os.Chdir(oldWd) //nolint:errcheck
	_ = os.Chdir(tmpDir)

	oldHome := os.Getenv("HOME")
	os.Setenv("HOME", tmpDir)
	defer os.Setenv("HOME", oldHome)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Expected no error with missing config, got: %v", err)
	}

	if cfg == nil {
		t.Fatal("Expected config, got nil")
	}

	if cfg.RestAPI.Port != 8085 {
		t.Errorf("Expected default port 8085, got %d", cfg.RestAPI.Port)
	}
}

func TestLoadConfig_WithFile(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	configContent := `
profile: test
storage:
  backend: sqlite
  sqlite_path: /tmp/test.db
  backup_interval: 12h
  max_backups: 3
rest_api:
  enabled: true
  port: 4000
  host: 127.0.0.1
  cors: false
logging:
  level: debug
  format: json
`

	if err := os.WriteFile(configPath, []byte(configContent), 0644); err != nil {
		t.Fatalf("Failed to write config file: %v", err)
	}

	oldWd, _ := os.Getwd()
	defer os.Chdir(oldWd) //nolint:errcheck
	_ = os.Chdir(tmpDir)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	if cfg.Profile != "test" {
		t.Errorf("Expected profile=test, got %s", cfg.Profile)
	}
	if cfg.Storage.SQLitePath != "/tmp/test.db" {
		t.Errorf("Expected sqlite path=/tmp/test.db, got %s", cfg.Storage.SQLitePath)
	}
	if cfg.Storage.MaxBackups != 3 {
		t.Errorf("Expected max_backups=3, got %d", cfg.Storage.MaxBackups)
	}
	if cfg.RestAPI.Port != 4000 {
		t.Errorf("Expected port=4000, got %d", cfg.RestAPI.Port)
	}
	if cfg.RestAPI.CORS {
		t.Error("Expected CORS=false, got true")
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("Expected level=debug, got %s", cfg.Logging.Level)
	}
}

func TestEnsureConfigDir(t *testing.T) {
	tmpDir := t.TempDir()
	cfg := &Config{
		Storage: StorageConfig{
			SQLitePath: filepath.Join(tmpDir, "subdir", "test.db"),
		},
	}

	if err := cfg.EnsureConfigDir(); err != nil {
		t.Fatalf("EnsureConfigDir failed: %v", err)
	}

	if _, err := os.Stat(filepath.Join(tmpDir, "subdir")); os.IsNotExist(err) {
		t.Error("Config directory was not created")
	}
}

func TestConfigPath(t *testing.T) {
	path := ConfigPath()
	if path == "" {
		t.Error("ConfigPath returned empty string")
	}

	homeDir, _ := os.UserHomeDir()
	expected := filepath.Join(homeDir, ".mnemocore")
	if path != expected {
		t.Errorf("Expected %s, got %s", expected, path)
	}
}

func TestDatabasePath(t *testing.T) {
	path := DatabasePath()
	if path == "" {
		t.Error("DatabasePath returned empty string")
	}

	if filepath.Base(path) != "mnemocore.db" {
		t.Errorf("Expected database file named mnemocore.db, got %s", filepath.Base(path))
	}
}
