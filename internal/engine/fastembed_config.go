package engine

// DefaultFastEmbedModel is the in-process encoder used when none is configured.
const DefaultFastEmbedModel = "sentence-transformers/all-MiniLM-L6-v2"

const fastEmbedBatchSize = 64

// FastEmbedConfig configures the in-process encoder.
type FastEmbedConfig struct {
	Model     string
	CacheDir  string
	MaxLength int
}
