package embedding

import (
	"context"
	"errors"
	"fmt"
	"os"

	openai "github.com/sashabaranov/go-openai"

	"ventas/internal/adapter/index"
)

// ErrOracle means the embedding or completion service failed or returned an
// empty result. Callers decide whether to retry; the adapter never substitutes
// zero vectors or fabricated text.
var ErrOracle = errors.New("oracle error")

// OpenAI implements port.Embedder and port.ChatModel over the OpenAI API
// (or any compatible endpoint via base URL).
type OpenAI struct {
	client    *openai.Client
	model     string
	chatModel string
	dimension int
	batchSize int
	maxTokens int
}

// Options configures the OpenAI oracle adapter.
type Options struct {
	APIKeyEnv string
	BaseURL   string
	Model     string
	ChatModel string
	Dimension int
	BatchSize int
	MaxTokens int
}

// NewOpenAI creates the adapter, reading the API key from the configured
// environment variable.
func NewOpenAI(opts Options) (*OpenAI, error) {
	apiKey := os.Getenv(opts.APIKeyEnv)
	if apiKey == "" {
		return nil, fmt.Errorf("API key not found in environment variable: %s", opts.APIKeyEnv)
	}

	cfg := openai.DefaultConfig(apiKey)
	if opts.BaseURL != "" {
		cfg.BaseURL = opts.BaseURL
	}

	dimension := opts.Dimension
	if dimension == 0 {
		switch opts.Model {
		case "text-embedding-3-large":
			dimension = 3072
		default:
			dimension = 1536
		}
	}

	batchSize := opts.BatchSize
	if batchSize <= 0 {
		batchSize = 100
	}

	return &OpenAI{
		client:    openai.NewClientWithConfig(cfg),
		model:     opts.Model,
		chatModel: opts.ChatModel,
		dimension: dimension,
		batchSize: batchSize,
		maxTokens: opts.MaxTokens,
	}, nil
}

// Embed generates embeddings for the given texts, batching requests. Every
// returned vector must have the configured dimension; anything else is a
// contract violation.
func (o *OpenAI) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	all := make([][]float32, 0, len(texts))
	for start := 0; start < len(texts); start += o.batchSize {
		end := start + o.batchSize
		if end > len(texts) {
			end = len(texts)
		}

		resp, err := o.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
			Input: texts[start:end],
			Model: openai.EmbeddingModel(o.model),
		})
		if err != nil {
			return nil, fmt.Errorf("%w: embeddings request failed: %v", ErrOracle, err)
		}
		if len(resp.Data) != end-start {
			return nil, fmt.Errorf("%w: expected %d embeddings, got %d", ErrOracle, end-start, len(resp.Data))
		}

		batch := make([][]float32, end-start)
		for _, d := range resp.Data {
			if d.Index < 0 || d.Index >= len(batch) {
				return nil, fmt.Errorf("%w: embedding index %d out of range", ErrOracle, d.Index)
			}
			if len(d.Embedding) != o.dimension {
				return nil, fmt.Errorf("%w: got vector of dimension %d, expected %d",
					index.ErrDimensionMismatch, len(d.Embedding), o.dimension)
			}
			batch[d.Index] = d.Embedding
		}
		all = append(all, batch...)
	}
	return all, nil
}

// Complete generates a chat completion with the given temperature.
func (o *OpenAI) Complete(ctx context.Context, systemPrompt, userPrompt string, temperature float32) (string, error) {
	resp, err := o.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: o.chatModel,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: userPrompt},
		},
		MaxTokens:   o.maxTokens,
		Temperature: temperature,
	})
	if err != nil {
		return "", fmt.Errorf("%w: completion request failed: %v", ErrOracle, err)
	}
	if len(resp.Choices) == 0 || resp.Choices[0].Message.Content == "" {
		return "", fmt.Errorf("%w: empty completion", ErrOracle)
	}
	return resp.Choices[0].Message.Content, nil
}

// Dimension returns the embedding vector dimension.
func (o *OpenAI) Dimension() int {
	return o.dimension
}

// ModelName returns the name of the embedding model.
func (o *OpenAI) ModelName() string {
	return o.model
}
