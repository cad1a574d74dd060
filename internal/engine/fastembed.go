//go:build cgo

package engine

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"

	fastembed "github.com/anush008/fastembed-go"
)

// fastEmbedModels maps accepted model names to fastembed models.
var fastEmbedModels = map[string]fastembed.EmbeddingModel{
	"sentence-transformers/all-MiniLM-L6-v2": fastembed.AllMiniLML6V2,
	"all-MiniLM-L6-v2":                       fastembed.AllMiniLML6V2,
	"BAAI/bge-small-en-v1.5":                 fastembed.BGESmallENV15,
	"BAAI/bge-base-en-v1.5":                  fastembed.BGEBaseENV15,
}

// FastEmbedEngine runs an ONNX sentence encoder in process. The model is
// downloaded into CacheDir on first use.
type FastEmbedEngine struct {
	mu        sync.Mutex
	model     *fastembed.FlagEmbedding
	modelName string
}

// NewFastEmbedEngine loads the configured model.
func NewFastEmbedEngine(cfg FastEmbedConfig) (*FastEmbedEngine, error) {
	name := cfg.Model
	if name == "" {
		name = DefaultFastEmbedModel
	}
	model, ok := fastEmbedModels[name]
	if !ok {
		return nil, fmt.Errorf("%w: unsupported fastembed model %q", ErrUnknownProvider, name)
	}

	cacheDir := cfg.CacheDir
	if cacheDir == "" {
		cacheDir = filepath.Join(".", "local_cache")
	}
	maxLength := cfg.MaxLength
	if maxLength == 0 {
		maxLength = 512
	}
	showProgress := false

	fe, err := fastembed.NewFlagEmbedding(&fastembed.InitOptions{
		Model:                model,
		CacheDir:             cacheDir,
		MaxLength:            maxLength,
		ShowDownloadProgress: &showProgress,
	})
	if err != nil {
		return nil, fmt.Errorf("initializing fastembed: %w", err)
	}
	return &FastEmbedEngine{model: fe, modelName: name}, nil
}

func (e *FastEmbedEngine) Embed(ctx context.Context, _ string, text string) ([]float32, error) {
	vecs, err := e.EmbedBatch(ctx, "", []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

// EmbedBatch encodes texts without any query or passage prefix.
func (e *FastEmbedEngine) EmbedBatch(ctx context.Context, _ string, texts []string) ([][]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.model == nil {
		return nil, fmt.Errorf("fastembed: engine closed")
	}
	vecs, err := e.model.Embed(texts, fastEmbedBatchSize)
	if err != nil {
		return nil, fmt.Errorf("fastembed: %w", err)
	}
	if len(vecs) != len(texts) {
		return nil, fmt.Errorf("fastembed: got %d embeddings for %d inputs", len(vecs), len(texts))
	}
	return vecs, nil
}

func (e *FastEmbedEngine) IsRunning(_ context.Context) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.model != nil
}

func (e *FastEmbedEngine) ListModels(_ context.Context) ([]string, error) {
	return []string{e.modelName}, nil
}

func (e *FastEmbedEngine) HasModel(_ context.Context, name string) bool {
	return name == e.modelName
}

// PullModel is a no-op: the model is fetched when the engine is created.
func (e *FastEmbedEngine) PullModel(_ context.Context, name string, onProgress func(PullProgress)) error {
	if name != e.modelName {
		return fmt.Errorf("fastembed: model %q is not loaded; configure engine.embed_model instead", name)
	}
	if onProgress != nil {
		onProgress(PullProgress{Status: "success"})
	}
	return nil
}

// Close releases the ONNX session.
func (e *FastEmbedEngine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.model == nil {
		return nil
	}
	err := e.model.Destroy()
	e.model = nil
	return err
}
