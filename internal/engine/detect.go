package engine

import (
	"fmt"
	"strings"
)

// DetectConfig holds parameters for backend selection.
type DetectConfig struct {
	Provider      string
	OllamaBaseURL string
	Model         string
	CacheDir      string
}

// Detect returns the engine for the configured provider. An empty provider
// selects Ollama.
func Detect(cfg DetectConfig) (Engine, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Provider)) {
	case "", ProviderOllama:
		return NewOllamaEngine(cfg.OllamaBaseURL), nil
	case ProviderFastEmbed:
		return NewFastEmbedEngine(FastEmbedConfig{Model: cfg.Model, CacheDir: cfg.CacheDir})
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownProvider, cfg.Provider)
	}
}

// DefaultModel returns the default embedding model for a provider.
func DefaultModel(provider string) string {
	if strings.EqualFold(provider, ProviderFastEmbed) {
		return DefaultFastEmbedModel
	}
	return DefaultOllamaModel
}
