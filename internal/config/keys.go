package config

import (
	"fmt"
	"os"
	"strconv"
)

type keyType int

const (
	kString keyType = iota
	kInt
	kBool
	kFloat
)

type keySpec struct {
	key     string
	typ     keyType
	env     string
	apply   func(cfg *Config, v any)
	extract func(cfg Config) any
}

var specs = []keySpec{
	{
		key: "server.port", typ: kInt, env: "LIFELENS_SERVER_PORT",
		apply:   func(cfg *Config, v any) { cfg.Server.Port = v.(int) },
		extract: func(cfg Config) any { return cfg.Server.Port },
	},
	{
		key: "engine.provider", typ: kString, env: "LIFELENS_ENGINE_PROVIDER",
		apply:   func(cfg *Config, v any) { cfg.Engine.Provider = v.(string) },
		extract: func(cfg Config) any { return cfg.Engine.Provider },
	},
	{
		key: "engine.base_url", typ: kString, env: "LIFELENS_ENGINE_BASE_URL",
		apply:   func(cfg *Config, v any) { cfg.Engine.BaseURL = v.(string) },
		extract: func(cfg Config) any { return cfg.Engine.BaseURL },
	},
	{
		key: "engine.embed_model", typ: kString, env: "LIFELENS_ENGINE_EMBED_MODEL",
		apply:   func(cfg *Config, v any) { cfg.Engine.EmbedModel = v.(string) },
		extract: func(cfg Config) any { return cfg.Engine.EmbedModel },
	},
	{
		key: "embedding.concurrency", typ: kInt, env: "LIFELENS_EMBEDDING_CONCURRENCY",
		apply:   func(cfg *Config, v any) { cfg.Embedding.Concurrency = v.(int) },
		extract: func(cfg Config) any { return cfg.Embedding.Concurrency },
	},
	{
		key: "embedding.requests_per_second", typ: kFloat, env: "LIFELENS_EMBEDDING_REQUESTS_PER_SECOND",
		apply:   func(cfg *Config, v any) { cfg.Embedding.RequestsPerSecond = v.(float64) },
		extract: func(cfg Config) any { return cfg.Embedding.RequestsPerSecond },
	},
	{
		key: "embedding.dimensions", typ: kInt, env: "LIFELENS_EMBEDDING_DIMENSIONS",
		apply:   func(cfg *Config, v any) { cfg.Embedding.Dimensions = v.(int) },
		extract: func(cfg Config) any { return cfg.Embedding.Dimensions },
	},
	{
		key: "embedding.cache", typ: kBool, env: "LIFELENS_EMBEDDING_CACHE",
		apply:   func(cfg *Config, v any) { cfg.Embedding.Cache = v.(bool) },
		extract: func(cfg Config) any { return cfg.Embedding.Cache },
	},
	{
		key: "analysis.clusters", typ: kInt, env: "LIFELENS_ANALYSIS_CLUSTERS",
		apply:   func(cfg *Config, v any) { cfg.Analysis.Clusters = v.(int) },
		extract: func(cfg Config) any { return cfg.Analysis.Clusters },
	},
	{
		key: "analysis.seed", typ: kInt, env: "LIFELENS_ANALYSIS_SEED",
		apply:   func(cfg *Config, v any) { cfg.Analysis.Seed = v.(int) },
		extract: func(cfg Config) any { return cfg.Analysis.Seed },
	},
	{
		key: "analysis.contamination", typ: kFloat, env: "LIFELENS_ANALYSIS_CONTAMINATION",
		apply:   func(cfg *Config, v any) { cfg.Analysis.Contamination = v.(float64) },
		extract: func(cfg Config) any { return cfg.Analysis.Contamination },
	},
	{
		key: "analysis.trees", typ: kInt, env: "LIFELENS_ANALYSIS_TREES",
		apply:   func(cfg *Config, v any) { cfg.Analysis.Trees = v.(int) },
		extract: func(cfg Config) any { return cfg.Analysis.Trees },
	},
	{
		key: "analysis.max_iterations", typ: kInt, env: "LIFELENS_ANALYSIS_MAX_ITERATIONS",
		apply:   func(cfg *Config, v any) { cfg.Analysis.MaxIterations = v.(int) },
		extract: func(cfg Config) any { return cfg.Analysis.MaxIterations },
	},
	{
		key: "storage.data_dir", typ: kString, env: "LIFELENS_STORAGE_DATA_DIR",
		apply:   func(cfg *Config, v any) { cfg.Storage.DataDir = v.(string) },
		extract: func(cfg Config) any { return cfg.Storage.DataDir },
	},
	{
		key: "log.level", typ: kString, env: "LIFELENS_LOG_LEVEL",
		apply:   func(cfg *Config, v any) { cfg.Log.Level = v.(string) },
		extract: func(cfg Config) any { return cfg.Log.Level },
	},
}

func lookupSpec(key string) (keySpec, bool) {
	for _, s := range specs {
		if s.key == key {
			return s, true
		}
	}
	return keySpec{}, false
}

// parse converts a raw string into the key's Go type.
func (s keySpec) parse(raw string) (any, error) {
	switch s.typ {
	case kInt:
		return strconv.Atoi(raw)
	case kBool:
		return strconv.ParseBool(raw)
	case kFloat:
		return strconv.ParseFloat(raw, 64)
	default:
		return raw, nil
	}
}

func applyBackend(cfg *Config, b ConfigBackend) error {
	for _, s := range specs {
		if s.typ == kInt {
			v, ok, err := b.GetInt(s.key)
			if err != nil {
				return fmt.Errorf("reading %s: %w", s.key, err)
			}
			if ok {
				s.apply(cfg, v)
			}
			continue
		}

		raw, ok, err := b.GetString(s.key)
		if err != nil {
			return fmt.Errorf("reading %s: %w", s.key, err)
		}
		if !ok || (raw == "" && s.typ != kString) {
			continue
		}
		v, err := s.parse(raw)
		if err != nil {
			fmt.Fprintf(os.Stderr, "[WARN] could not parse config key %s=%q: %v. Using default value.\n", s.key, raw, err)
			continue
		}
		s.apply(cfg, v)
	}
	return nil
}

func applyEnvOverrides(cfg *Config) {
	for _, s := range specs {
		if s.env == "" {
			continue
		}
		raw := os.Getenv(s.env)
		if raw == "" {
			continue
		}
		v, err := s.parse(raw)
		if err != nil {
			fmt.Fprintf(os.Stderr, "[WARN] could not parse env var %s=%q: %v. Using default value.\n", s.env, raw, err)
			continue
		}
		s.apply(cfg, v)
	}
}
