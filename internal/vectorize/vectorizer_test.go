package vectorize

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kalambet/lifelens/internal/engine"
	"github.com/kalambet/lifelens/internal/journal"
	"github.com/kalambet/lifelens/internal/ollama"
)

// mockEngine returns a vector derived from the text length.
type mockEngine struct {
	mu     sync.Mutex
	calls  []string
	dim    int
	failOn string
	err    error
	dims   map[string]int
}

func (m *mockEngine) Embed(_ context.Context, _ string, text string) ([]float32, error) {
	m.mu.Lock()
	m.calls = append(m.calls, text)
	m.mu.Unlock()
	if m.failOn != "" && text == m.failOn {
		return nil, m.err
	}
	dim := m.dim
	if d, ok := m.dims[text]; ok {
		dim = d
	}
	vec := make([]float32, dim)
	for i := range vec {
		vec[i] = float32(len(text) + i)
	}
	return vec, nil
}
func (m *mockEngine) IsRunning(_ context.Context) bool                { return true }
func (m *mockEngine) ListModels(_ context.Context) ([]string, error) { return nil, nil }
func (m *mockEngine) HasModel(_ context.Context, _ string) bool      { return true }
func (m *mockEngine) PullModel(_ context.Context, _ string, _ func(engine.PullProgress)) error {
	return nil
}

// batchEngine adds EmbedBatch on top of mockEngine.
type batchEngine struct {
	mockEngine
	batches [][]string
}

func (b *batchEngine) EmbedBatch(ctx context.Context, model string, texts []string) ([][]float32, error) {
	b.mu.Lock()
	b.batches = append(b.batches, texts)
	b.mu.Unlock()
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = []float32{float32(len(t)), 1}
	}
	return out, nil
}

type memCache struct {
	mu   sync.Mutex
	vecs map[string][]float32
}

func (c *memCache) GetEmbedding(_ context.Context, key string) ([]float32, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.vecs[key]
	return v, ok, nil
}

func (c *memCache) PutEmbedding(_ context.Context, key, _ string, vec []float32) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.vecs[key] = vec
	return nil
}

func records(texts ...string) []journal.Record {
	out := make([]journal.Record, len(texts))
	for i, t := range texts {
		out[i] = journal.Record{ID: fmt.Sprintf("r%d", i), CombinedText: t}
	}
	return out
}

func TestVectorize_AttachesEmbeddings(t *testing.T) {
	m := &mockEngine{dim: 3}
	in := records("Diary: hello", "", "Voice: hi")
	out, err := New(m, Config{Model: "m"}).Vectorize(context.Background(), in)
	require.NoError(t, err)

	require.Len(t, out, 3)
	assert.Equal(t, []float64{12, 13, 14}, out[0].Embedding)
	assert.Equal(t, []float64{0, 1, 2}, out[1].Embedding, "empty text still embedded")
	assert.Nil(t, in[0].Embedding, "input untouched")
	assert.Contains(t, m.calls, "")
}

func TestVectorize_DedupesTexts(t *testing.T) {
	m := &mockEngine{dim: 2}
	out, err := New(m, Config{}).Vectorize(context.Background(), records("", "", "same", "same"))
	require.NoError(t, err)
	assert.Len(t, m.calls, 2)
	assert.Equal(t, out[2].Embedding, out[3].Embedding)
}

func TestVectorize_BackendError(t *testing.T) {
	m := &mockEngine{dim: 2, failOn: "bad", err: errors.New("boom")}
	_, err := New(m, Config{Concurrency: 1}).Vectorize(context.Background(), records("ok", "bad"))
	require.Error(t, err)

	var me *journal.ModelError
	require.ErrorAs(t, err, &me)
	assert.Equal(t, "r1", me.RecordID)
}

func TestVectorize_BackendUnavailable(t *testing.T) {
	m := &mockEngine{dim: 2, failOn: "x", err: fmt.Errorf("embed request: %w", ollama.ErrUnavailable)}
	_, err := New(m, Config{}).Vectorize(context.Background(), records("x"))
	assert.ErrorIs(t, err, journal.ErrBackendUnavailable)
	assert.True(t, journal.IsModelError(err))
}

func TestVectorize_InconsistentDimensions(t *testing.T) {
	m := &mockEngine{dim: 3, dims: map[string]int{"odd": 2}}
	_, err := New(m, Config{}).Vectorize(context.Background(), records("a", "odd"))
	assert.ErrorIs(t, err, journal.ErrDimensionMismatch)
	assert.True(t, journal.IsModelError(err))
}

func TestVectorize_ConfiguredDimensions(t *testing.T) {
	m := &mockEngine{dim: 3}
	_, err := New(m, Config{Dimensions: 384}).Vectorize(context.Background(), records("a"))
	assert.ErrorIs(t, err, journal.ErrDimensionMismatch)
}

func TestVectorize_ZeroLengthVector(t *testing.T) {
	m := &mockEngine{dim: 0}
	_, err := New(m, Config{}).Vectorize(context.Background(), records("a"))
	assert.ErrorIs(t, err, journal.ErrDimensionMismatch)
}

func TestVectorize_UsesCache(t *testing.T) {
	cache := &memCache{vecs: map[string][]float32{}}
	m := &mockEngine{dim: 2}
	v := New(m, Config{Model: "m"}).WithCache(cache)

	_, err := v.Vectorize(context.Background(), records("a", "b"))
	require.NoError(t, err)
	assert.Len(t, m.calls, 2)
	assert.Len(t, cache.vecs, 2)

	out, err := v.Vectorize(context.Background(), records("a", "b"))
	require.NoError(t, err)
	assert.Len(t, m.calls, 2, "second run served from cache")
	assert.Equal(t, []float64{1, 2}, out[0].Embedding)
}

func TestVectorize_Batches(t *testing.T) {
	b := &batchEngine{}
	out, err := New(b, Config{BatchSize: 2}).Vectorize(context.Background(), records("a", "bb", "ccc"))
	require.NoError(t, err)
	assert.Len(t, b.batches, 2)
	assert.Empty(t, b.calls)
	assert.Equal(t, []float64{3, 1}, out[2].Embedding)
}

func TestVectorize_Paced(t *testing.T) {
	m := &mockEngine{dim: 1}
	out, err := New(m, Config{RequestsPerSecond: 1000}).Vectorize(context.Background(), records("a", "b", "c"))
	require.NoError(t, err)
	assert.Len(t, out, 3)
}

func TestVectorize_Empty(t *testing.T) {
	out, err := New(&mockEngine{}, Config{}).Vectorize(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, out)
}

func TestCacheKey(t *testing.T) {
	assert.Equal(t, CacheKey("m", "text"), CacheKey("m", "text"))
	assert.NotEqual(t, CacheKey("m", "text"), CacheKey("n", "text"))
	assert.NotEqual(t, CacheKey("ab", "c"), CacheKey("a", "bc"))
}
