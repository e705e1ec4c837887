package port

import "context"

// Embedder generates vector embeddings for text.
type Embedder interface {
	// Embed generates embeddings for the given texts.
	// Returns a slice of vectors, one per input text.
	Embed(ctx context.Context, texts []string) ([][]float32, error)

	// Dimension returns the embedding vector dimension.
	Dimension() int

	// ModelName returns the name of the embedding model.
	ModelName() string
}

// ChatModel generates text completions. The caller picks the temperature:
// assistant replies run warm, interest extraction runs near-deterministic.
type ChatModel interface {
	Complete(ctx context.Context, systemPrompt, userPrompt string, temperature float32) (string, error)

	// ModelName returns the name of the model.
	ModelName() string
}
