package engine

import (
	"context"
	"errors"
)

// Provider names accepted by Detect.
const (
	ProviderOllama    = "ollama"
	ProviderFastEmbed = "fastembed"
)

// ErrUnknownProvider is returned by Detect for an unsupported provider name.
var ErrUnknownProvider = errors.New("unknown engine provider")

// Engine abstracts a local embedding backend (an Ollama server or an
// in-process ONNX encoder). The vectorizer uses this interface instead of
// depending on a concrete client.
type Engine interface {
	// Embed returns the embedding vector for the given text using the specified model.
	Embed(ctx context.Context, model string, text string) ([]float32, error)

	// IsRunning reports whether the backend is reachable.
	IsRunning(ctx context.Context) bool

	// ListModels returns the names of all locally available models.
	ListModels(ctx context.Context) ([]string, error)

	// HasModel reports whether the given model name is available locally.
	HasModel(ctx context.Context, name string) bool

	// PullModel downloads a model. The optional callback receives progress updates.
	PullModel(ctx context.Context, name string, onProgress func(PullProgress)) error
}

// BatchEmbedder is implemented by engines that can embed many texts in one
// call. The result has one vector per text, in order.
type BatchEmbedder interface {
	EmbedBatch(ctx context.Context, model string, texts []string) ([][]float32, error)
}

// Closer is implemented by engines holding native resources.
type Closer interface {
	Close() error
}
