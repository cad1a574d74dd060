package config

import (
	"errors"
	"fmt"
	"strings"
)

type Config struct {
	Server    ServerConfig
	Engine    EngineConfig
	Embedding EmbeddingConfig
	Analysis  AnalysisConfig
	Storage   StorageConfig
	Log       LogConfig
}

type ServerConfig struct {
	Port int
}

type EngineConfig struct {
	Provider string
	BaseURL  string
	// EmbedModel is empty to use the provider's default model.
	EmbedModel string
}

type EmbeddingConfig struct {
	Concurrency       int
	RequestsPerSecond float64
	// Dimensions, when non-zero, is the vector length every embedding must have.
	Dimensions int
	Cache      bool
}

type AnalysisConfig struct {
	Clusters      int
	Seed          int
	Contamination float64
	Trees         int
	MaxIterations int
}

type StorageConfig struct {
	DataDir string
}

type LogConfig struct {
	Level string
}

func defaults() Config {
	return Config{
		Server: ServerConfig{
			Port: 4000,
		},
		Engine: EngineConfig{
			Provider: "ollama",
			BaseURL:  "http://localhost:11434",
		},
		Embedding: EmbeddingConfig{
			Concurrency: 4,
			Cache:       true,
		},
		Analysis: AnalysisConfig{
			Clusters:      5,
			Seed:          42,
			Contamination: 0.1,
			Trees:         100,
			MaxIterations: 300,
		},
		Storage: StorageConfig{
			DataDir: defaultDataDir(),
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// Load reads configuration from the platform-native backend and environment
// variables, then validates it.
//
// On macOS the backend is UserDefaults (domain: com.lifelens.app).
// On Linux the backend is a JSON file at $XDG_CONFIG_HOME/lifelens/config.json.
//
// Environment variables (LIFELENS_*) override backend values on all platforms.
func Load() (Config, error) {
	return loadWith(newPlatformBackend())
}

func loadWith(b ConfigBackend) (Config, error) {
	cfg := defaults()

	if err := applyBackend(&cfg, b); err != nil {
		return Config{}, err
	}
	applyEnvOverrides(&cfg)

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks value ranges. The clusters/record count relation is
// checked per run, when the record count is known.
func (c Config) Validate() error {
	var errs []error
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("server.port: %d out of range", c.Server.Port))
	}
	switch strings.ToLower(c.Engine.Provider) {
	case "ollama", "fastembed":
	default:
		errs = append(errs, fmt.Errorf("engine.provider: unknown provider %q", c.Engine.Provider))
	}
	if c.Embedding.Concurrency < 1 {
		errs = append(errs, fmt.Errorf("embedding.concurrency: must be at least 1, got %d", c.Embedding.Concurrency))
	}
	if c.Embedding.RequestsPerSecond < 0 {
		errs = append(errs, errors.New("embedding.requests_per_second: must not be negative"))
	}
	if c.Embedding.Dimensions < 0 {
		errs = append(errs, errors.New("embedding.dimensions: must not be negative"))
	}
	if c.Analysis.Clusters < 1 {
		errs = append(errs, fmt.Errorf("analysis.clusters: must be at least 1, got %d", c.Analysis.Clusters))
	}
	if c.Analysis.Seed < 0 {
		errs = append(errs, errors.New("analysis.seed: must not be negative"))
	}
	if c.Analysis.Contamination <= 0 || c.Analysis.Contamination >= 1 {
		errs = append(errs, fmt.Errorf("analysis.contamination: must be in (0, 1), got %g", c.Analysis.Contamination))
	}
	if c.Analysis.Trees < 1 {
		errs = append(errs, fmt.Errorf("analysis.trees: must be at least 1, got %d", c.Analysis.Trees))
	}
	if c.Analysis.MaxIterations < 1 {
		errs = append(errs, fmt.Errorf("analysis.max_iterations: must be at least 1, got %d", c.Analysis.MaxIterations))
	}
	switch strings.ToLower(c.Log.Level) {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, fmt.Errorf("log.level: unknown level %q", c.Log.Level))
	}
	if len(errs) > 0 {
		return fmt.Errorf("invalid config: %w", errors.Join(errs...))
	}
	return nil
}
