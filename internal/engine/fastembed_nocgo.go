//go:build !cgo

package engine

import (
	"context"
	"errors"
)

// ErrFastEmbedUnavailable is returned when the binary was built without cgo.
var ErrFastEmbedUnavailable = errors.New("fastembed: not available (binary built without cgo, use the ollama provider)")

// FastEmbedEngine is a stub for non-cgo builds.
type FastEmbedEngine struct{}

// NewFastEmbedEngine returns ErrFastEmbedUnavailable.
func NewFastEmbedEngine(_ FastEmbedConfig) (*FastEmbedEngine, error) {
	return nil, ErrFastEmbedUnavailable
}

func (e *FastEmbedEngine) Embed(_ context.Context, _ string, _ string) ([]float32, error) {
	return nil, ErrFastEmbedUnavailable
}

func (e *FastEmbedEngine) EmbedBatch(_ context.Context, _ string, _ []string) ([][]float32, error) {
	return nil, ErrFastEmbedUnavailable
}

func (e *FastEmbedEngine) IsRunning(_ context.Context) bool { return false }

func (e *FastEmbedEngine) ListModels(_ context.Context) ([]string, error) {
	return nil, ErrFastEmbedUnavailable
}

func (e *FastEmbedEngine) HasModel(_ context.Context, _ string) bool { return false }

func (e *FastEmbedEngine) PullModel(_ context.Context, _ string, _ func(PullProgress)) error {
	return ErrFastEmbedUnavailable
}

func (e *FastEmbedEngine) Close() error { return nil }
