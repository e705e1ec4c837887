package embedding

import (
	"context"
	"fmt"
)

// MockEmbedder produces deterministic vectors from the input runes. Useful for
// tests and offline runs.
type MockEmbedder struct {
	dimension int
}

func NewMockEmbedder(dimension int) *MockEmbedder {
	return &MockEmbedder{dimension: dimension}
}

func (e *MockEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	embeddings := make([][]float32, len(texts))
	for i := range texts {
		embeddings[i] = make([]float32, e.dimension)

		for j, r := range texts[i] {
			if j < e.dimension {
				embeddings[i][j] = float32(r) / 1000.0
			}
		}
	}
	return embeddings, nil
}

func (e *MockEmbedder) Dimension() int {
	return e.dimension
}

func (e *MockEmbedder) ModelName() string {
	return "mock"
}

// StubChat replays scripted completions in order. Once the script runs out it
// returns an oracle error.
type StubChat struct {
	Responses []string
	Errs      []error
	Calls     []StubCall
}

// StubCall records one Complete invocation for assertions.
type StubCall struct {
	SystemPrompt string
	UserPrompt   string
	Temperature  float32
}

func (s *StubChat) Complete(_ context.Context, systemPrompt, userPrompt string, temperature float32) (string, error) {
	i := len(s.Calls)
	s.Calls = append(s.Calls, StubCall{SystemPrompt: systemPrompt, UserPrompt: userPrompt, Temperature: temperature})
	if i < len(s.Errs) && s.Errs[i] != nil {
		return "", s.Errs[i]
	}
	if i >= len(s.Responses) {
		return "", fmt.Errorf("%w: no scripted response for call %d", ErrOracle, i)
	}
	return s.Responses[i], nil
}

func (s *StubChat) ModelName() string {
	return "stub"
}
