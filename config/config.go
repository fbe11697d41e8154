// Package config loads the convomesh configuration from YAML and the
// environment.
package config

import (
	"fmt"
	"os"
	"slices"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all convomesh configuration.
type Config struct {
	// Entry surfaces
	Voice ServerConfig `yaml:"voice"`
	Chat  ServerConfig `yaml:"chat"`

	// Providers
	Model      ModelConfig      `yaml:"model"`
	Embeddings EmbeddingsConfig `yaml:"embeddings"`
	APIKeys    APIKeys          `yaml:"api_keys"`

	// Persistence and retrieval
	Storage   StorageConfig   `yaml:"storage"`
	Memory    MemoryConfig    `yaml:"memory"`
	Knowledge KnowledgeConfig `yaml:"knowledge"`

	// Inputs
	Files   FilesConfig   `yaml:"files"`
	Camera  CameraConfig  `yaml:"camera"`
	Prompts PromptsConfig `yaml:"prompts"`

	Engine  EngineConfig  `yaml:"engine"`
	Logging LoggingConfig `yaml:"logging"`
}

// ServerConfig configures one HTTP listener.
type ServerConfig struct {
	Addr    string `yaml:"addr"`
	Enabled bool   `yaml:"enabled"`
}

// ModelConfig selects the chat model.
type ModelConfig struct {
	Provider    string  `yaml:"provider"` // openai, anthropic, gemini, mock
	Name        string  `yaml:"name"`
	BaseURL     string  `yaml:"base_url"`
	MaxTokens   int     `yaml:"max_tokens"`
	Temperature float64 `yaml:"temperature"`
}

// EmbeddingsConfig selects the query embedder of search_knowledge.
type EmbeddingsConfig struct {
	Provider  string `yaml:"provider"` // openai, gemini, none
	Model     string `yaml:"model"`
	CacheSize int    `yaml:"cache_size"`
}

// APIKeys holds vendor credentials. They are normally taken from the
// environment.
type APIKeys struct {
	OpenAI    string `yaml:"openai"`
	Anthropic string `yaml:"anthropic"`
	Gemini    string `yaml:"gemini"`
}

// StorageConfig selects the backend of facts and conversations.
type StorageConfig struct {
	Driver string `yaml:"driver"` // memory, sqlite, postgres
	DSN    string `yaml:"dsn"`    // postgres connection string
	Path   string `yaml:"path"`   // sqlite database file
}

// MemoryConfig configures the scoped fact layer.
type MemoryConfig struct {
	DeletePolicy string `yaml:"delete_policy"` // scoped_then_global, scoped_only
}

// KnowledgeConfig tunes search_knowledge.
type KnowledgeConfig struct {
	Enabled   bool    `yaml:"enabled"`
	Threshold float64 `yaml:"threshold"`
	Count     int     `yaml:"count"`
	// Documents are indexed at startup when the storage driver has no
	// knowledge table.
	Documents []string `yaml:"documents"`
	ChunkSize int      `yaml:"chunk_size"`
}

// FilesConfig bounds shared files and uploads.
type FilesConfig struct {
	MaxChars    int   `yaml:"max_chars"`
	UploadLimit int64 `yaml:"upload_limit"`
}

// CameraConfig tunes camera frame capture of the voice surface.
type CameraConfig struct {
	Enabled         bool   `yaml:"enabled"`
	CaptureInterval string `yaml:"capture_interval"`
	MaxSize         int    `yaml:"max_size"`
	Quality         int    `yaml:"quality"`
}

// PromptsConfig overrides the system prompts. Voice and Text name template
// files; Vars are their template variables.
type PromptsConfig struct {
	Voice string         `yaml:"voice"`
	Text  string         `yaml:"text"`
	Vars  map[string]any `yaml:"vars"`
}

// EngineConfig tunes the generation engines.
type EngineConfig struct {
	MaxToolRounds    int  `yaml:"max_tool_rounds"`
	InboxSize        int  `yaml:"inbox_size"`
	MaxParallelTools int  `yaml:"max_parallel_tools"`
	Stream           bool `yaml:"stream"`
}

// LoggingConfig configures the process logger.
type LoggingConfig struct {
	Level   string `yaml:"level"`   // debug, info, warn, error
	Format  string `yaml:"format"`  // json, text
	Backend string `yaml:"backend"` // slog, zap
}

// Default returns the default configuration.
func Default() *Config {
	return &Config{
		Voice: ServerConfig{Addr: ":7860", Enabled: true},
		Chat:  ServerConfig{Addr: ":7861", Enabled: true},

		Model: ModelConfig{
			Provider:  "openai",
			Name:      "gpt-4o-mini",
			MaxTokens: 1024,
		},
		Embeddings: EmbeddingsConfig{
			Provider:  "openai",
			Model:     "text-embedding-3-small",
			CacheSize: 100,
		},

		Storage: StorageConfig{
			Driver: "memory",
			Path:   "data/convomesh.db",
		},
		Memory: MemoryConfig{DeletePolicy: "scoped_then_global"},
		Knowledge: KnowledgeConfig{
			Enabled:   true,
			Threshold: 0.3,
			Count:     6,
			ChunkSize: 1000,
		},

		Files: FilesConfig{
			MaxChars:    15000,
			UploadLimit: 10 << 20,
		},
		Camera: CameraConfig{
			Enabled:         true,
			CaptureInterval: "2s",
			MaxSize:         512,
			Quality:         60,
		},

		Engine: EngineConfig{
			MaxToolRounds:    5,
			InboxSize:        8,
			MaxParallelTools: 4,
			Stream:           true,
		},
		Logging: LoggingConfig{
			Level:   "info",
			Format:  "json",
			Backend: "slog",
		},
	}
}

// Load reads the YAML file at path over the defaults and applies the
// environment overrides. A missing file yields the defaults.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case os.IsNotExist(err):
		case err != nil:
			return nil, fmt.Errorf("failed to read config: %w", err)
		default:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("failed to parse config: %w", err)
			}
		}
	}

	cfg.ApplyEnv()
	return cfg, nil
}

// Save writes the configuration as YAML.
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

// ApplyEnv overrides settings from CONVOMESH_* variables and the vendor
// credential variables.
func (c *Config) ApplyEnv() {
	setString := func(dst *string, keys ...string) {
		for _, k := range keys {
			if v := os.Getenv(k); v != "" {
				*dst = v
				return
			}
		}
	}

	setString(&c.APIKeys.OpenAI, "OPENAI_API_KEY")
	setString(&c.APIKeys.Anthropic, "ANTHROPIC_API_KEY")
	setString(&c.APIKeys.Gemini, "GEMINI_API_KEY", "GOOGLE_API_KEY")

	setString(&c.Voice.Addr, "CONVOMESH_VOICE_ADDR")
	setString(&c.Chat.Addr, "CONVOMESH_CHAT_ADDR")
	setString(&c.Model.Provider, "CONVOMESH_MODEL_PROVIDER")
	setString(&c.Model.Name, "CONVOMESH_MODEL")
	setString(&c.Model.BaseURL, "CONVOMESH_MODEL_BASE_URL")
	setString(&c.Embeddings.Provider, "CONVOMESH_EMBEDDINGS_PROVIDER")
	setString(&c.Embeddings.Model, "CONVOMESH_EMBEDDINGS_MODEL")
	setString(&c.Storage.Driver, "CONVOMESH_STORAGE_DRIVER")
	setString(&c.Storage.Path, "CONVOMESH_SQLITE_PATH")
	setString(&c.Memory.DeletePolicy, "CONVOMESH_DELETE_POLICY")
	setString(&c.Logging.Level, "CONVOMESH_LOG_LEVEL")
	setString(&c.Logging.Format, "CONVOMESH_LOG_FORMAT")
	setString(&c.Logging.Backend, "CONVOMESH_LOG_BACKEND")

	if dsn := os.Getenv("DATABASE_URL"); dsn != "" {
		c.Storage.DSN = dsn
		if os.Getenv("CONVOMESH_STORAGE_DRIVER") == "" {
			c.Storage.Driver = "postgres"
		}
	}
	if v, err := strconv.Atoi(os.Getenv("CONVOMESH_MAX_FILE_CHARS")); err == nil {
		c.Files.MaxChars = v
	}
}

// CaptureInterval returns the camera capture interval as a duration.
func (c *Config) CaptureInterval() time.Duration {
	d, err := time.ParseDuration(c.Camera.CaptureInterval)
	if err != nil || d <= 0 {
		return 2 * time.Second
	}
	return d
}

// APIKey returns the credential of provider.
func (c *Config) APIKey(provider string) string {
	switch provider {
	case "openai":
		return c.APIKeys.OpenAI
	case "anthropic":
		return c.APIKeys.Anthropic
	case "gemini":
		return c.APIKeys.Gemini
	}
	return ""
}

// Valid option sets.
var (
	ValidModelProviders     = []string{"openai", "anthropic", "gemini", "mock"}
	ValidEmbeddingProviders = []string{"openai", "gemini", "none"}
	ValidStorageDrivers     = []string{"memory", "sqlite", "postgres"}
	ValidDeletePolicies     = []string{"scoped_then_global", "scoped_only"}
	ValidLogFormats         = []string{"json", "text"}
	ValidLogBackends        = []string{"slog", "zap"}
)

// Validate checks option values and that every selected provider has a
// credential.
func (c *Config) Validate() error {
	checks := []struct {
		name  string
		value string
		valid []string
	}{
		{"model.provider", c.Model.Provider, ValidModelProviders},
		{"embeddings.provider", c.Embeddings.Provider, ValidEmbeddingProviders},
		{"storage.driver", c.Storage.Driver, ValidStorageDrivers},
		{"memory.delete_policy", c.Memory.DeletePolicy, ValidDeletePolicies},
		{"logging.format", c.Logging.Format, ValidLogFormats},
		{"logging.backend", c.Logging.Backend, ValidLogBackends},
	}
	for _, ch := range checks {
		if !slices.Contains(ch.valid, ch.value) {
			return fmt.Errorf("invalid %s: %q (valid: %v)", ch.name, ch.value, ch.valid)
		}
	}

	if c.Model.Provider != "mock" && c.APIKey(c.Model.Provider) == "" {
		return fmt.Errorf("no API key for model provider %s", c.Model.Provider)
	}
	if c.Knowledge.Enabled && c.Embeddings.Provider != "none" && c.APIKey(c.Embeddings.Provider) == "" {
		return fmt.Errorf("no API key for embeddings provider %s", c.Embeddings.Provider)
	}
	if c.Storage.Driver == "postgres" && c.Storage.DSN == "" {
		return fmt.Errorf("storage driver postgres requires a dsn (set DATABASE_URL)")
	}
	if c.Storage.Driver == "sqlite" && c.Storage.Path == "" {
		return fmt.Errorf("storage driver sqlite requires a path")
	}
	if c.Files.MaxChars <= 0 {
		return fmt.Errorf("files.max_chars must be positive")
	}
	if c.Files.UploadLimit <= 0 {
		return fmt.Errorf("files.upload_limit must be positive")
	}
	if c.Engine.MaxToolRounds < 0 {
		return fmt.Errorf("engine.max_tool_rounds must not be negative")
	}
	return nil
}
