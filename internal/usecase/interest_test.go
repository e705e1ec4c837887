package usecase

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ventas/internal/adapter/embedding"
	"ventas/internal/adapter/index"
	"ventas/internal/conversation"
	"ventas/internal/domain"
)

func candidateResults() []domain.SearchResult {
	promo := domain.Promotion{ID: 4, Name: "Semana del libro", DiscountPercent: 15}
	return []domain.SearchResult{
		{
			Score: 0.91,
			Record: domain.EmbeddingRecord{
				ProductID: 7,
				Product: domain.ProductData{
					Name:         "Cien años de soledad",
					Description:  "Novela de Gabriel García Márquez",
					CategoryID:   2,
					CategoryName: "Novela",
					CurrentPrice: 120,
					Promotions:   []domain.Promotion{promo},
				},
			},
		},
		{
			Score: 0.80,
			Record: domain.EmbeddingRecord{
				ProductID: 9,
				Product: domain.ProductData{
					Name:         "El amor en los tiempos del cólera",
					CategoryID:   2,
					CategoryName: "Novela",
					CurrentPrice: 110,
					Promotions:   []domain.Promotion{promo},
				},
			},
		},
	}
}

func newTestAnalyzer(store *fakeStore, chat *embedding.StubChat) (*InterestAnalyzer, *index.Handle) {
	embedder := embedding.NewMockEmbedder(8)
	idx := index.NewFlat(8)
	handle := index.NewHandle(idx)
	windows := conversation.New(10)
	chatUC := NewChat(windows, embedder, chat, handle, store, ChatOptions{TopK: 3})
	return NewInterestAnalyzer(chatUC, chat, store, AnalyzerOptions{Temperature: 0.1, CandidateK: 3}), handle
}

func TestParseExtractionStrict(t *testing.T) {
	out, err := parseExtraction(`{"intereses": [{"tipo_interes": "producto", "entidad_id": 7, "nivel_interes": 0.9}]}`)
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, 7, out[0].EntityID)
	assert.Equal(t, 0.9, out[0].Confidence)
}

func TestParseExtractionProseWrapped(t *testing.T) {
	raw := `Claro, aquí está el análisis:
{"intereses": [{"tipo_interes": "categoria", "entidad_id": 2, "entidad_nombre": "Novela", "nivel_interes": 0.7}]}
Espero que sea útil.`
	out, err := parseExtraction(raw)
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, "categoria", out[0].Type)
}

func TestParseExtractionTopLevelList(t *testing.T) {
	out, err := parseExtraction(`[{"tipo_interes": "promocion", "entidad_id": 4, "nivel_interes": 0.8}]`)
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, 4, out[0].EntityID)
}

func TestParseExtractionMissingKeyIsEmpty(t *testing.T) {
	out, err := parseExtraction(`{"resultado": "nada"}`)
	require.NoError(t, err)
	assert.Empty(t, out)
}

func TestParseExtractionMalformed(t *testing.T) {
	for _, raw := range []string{
		"no hay json aquí",
		`{"intereses": [`,
		`{"intereses": "no es una lista"}`,
	} {
		_, err := parseExtraction(raw)
		assert.ErrorIs(t, err, ErrMalformedExtraction, "raw=%q", raw)
	}
}

func TestParseExtractionBracesInsideStrings(t *testing.T) {
	raw := `nota previa {"intereses": [{"tipo_interes": "producto", "entidad_id": 7, "nivel_interes": 0.9, "contexto": "pidió {el} libro"}]} nota posterior`
	out, err := parseExtraction(raw)
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, "pidió {el} libro", out[0].Context)
}

func TestBuildExtractionPromptDeduplicates(t *testing.T) {
	prompt := buildExtractionPrompt("Cliente: busco novelas", candidateResults())

	assert.Contains(t, prompt, "CONVERSACIÓN:\nCliente: busco novelas")
	assert.Contains(t, prompt, "id=7, nombre=Cien años de soledad")
	assert.Contains(t, prompt, "id=9, nombre=El amor en los tiempos del cólera")
	// Both candidates share category 2 and promotion 4: listed once each.
	assert.Equal(t, 1, strings.Count(prompt, "id=2, nombre=Novela"))
	assert.Equal(t, 1, strings.Count(prompt, "id=4, nombre=Semana del libro"))
	assert.Contains(t, prompt, "aplica a: Cien años de soledad, El amor en los tiempos del cólera")
}

func TestExtractConversationStampsAndClamps(t *testing.T) {
	stub := &embedding.StubChat{Responses: []string{
		`{"intereses": [
			{"tipo_interes": "producto", "entidad_id": 7, "entidad_nombre": "Cien años de soledad", "nivel_interes": 1.4},
			{"tipo_interes": "categoria", "entidad_id": 2, "nivel_interes": -0.2},
			{"tipo_interes": "otra_cosa", "entidad_id": 99, "nivel_interes": 0.9}
		]}`,
	}}
	analyzer, _ := newTestAnalyzer(newFakeStore(), stub)

	signals, err := analyzer.ExtractConversation(context.Background(), 5, 12, "Cliente: hola", candidateResults())
	require.NoError(t, err)

	require.Len(t, signals, 2) // unknown type dropped
	assert.Equal(t, domain.InterestProduct, signals[0].Type)
	assert.Equal(t, 1.0, signals[0].Confidence)
	assert.Equal(t, 0.0, signals[1].Confidence)
	for _, sig := range signals {
		assert.Equal(t, 12, sig.ConversationID)
		assert.Equal(t, 5, sig.ClientID)
		assert.False(t, sig.CreatedAt.IsZero())
	}

	require.Len(t, stub.Calls, 1)
	assert.Equal(t, float32(0.1), stub.Calls[0].Temperature)
}

func TestStoreSignalsIdempotent(t *testing.T) {
	store := newFakeStore()
	analyzer, _ := newTestAnalyzer(store, &embedding.StubChat{})

	signals := []domain.InterestSignal{
		{Type: domain.InterestProduct, EntityID: 7, Confidence: 0.9, ConversationID: 1, ClientID: 1},
		{Type: domain.InterestCategory, EntityID: 2, Confidence: 0.7, ConversationID: 1, ClientID: 1},
	}

	first, err := analyzer.StoreSignals(signals)
	require.NoError(t, err)
	assert.Equal(t, 2, first.Stored)
	assert.Equal(t, []bool{true, true}, first.Outcomes)

	second, err := analyzer.StoreSignals(signals)
	require.NoError(t, err)
	assert.Equal(t, 0, second.Stored)
	assert.Equal(t, 2, second.Skipped)
	assert.Equal(t, []bool{false, false}, second.Outcomes)

	assert.Len(t, store.signals, 2)
}

func TestTopInterestsCapAndOrder(t *testing.T) {
	store := newFakeStore()
	analyzer, _ := newTestAnalyzer(store, &embedding.StubChat{})

	now := time.Now()
	for i := 0; i < 10; i++ {
		_, err := store.PutSignal(domain.InterestSignal{
			Type:           domain.InterestProduct,
			EntityID:       i + 1,
			Confidence:     0.05 * float64(i+1), // 0.05 .. 0.50
			ConversationID: i + 1,
			ClientID:       1,
			CreatedAt:      now,
		})
		require.NoError(t, err)
	}

	top, err := analyzer.TopInterests(1, 0, time.Time{}, 3)
	require.NoError(t, err)
	require.Len(t, top, 3)
	assert.Equal(t, 10, top[0].EntityID)
	assert.Equal(t, 9, top[1].EntityID)
	assert.Equal(t, 8, top[2].EntityID)
}

func TestTopInterestsTieBreakMostRecent(t *testing.T) {
	store := newFakeStore()
	analyzer, _ := newTestAnalyzer(store, &embedding.StubChat{})

	now := time.Now()
	older := domain.InterestSignal{Type: domain.InterestProduct, EntityID: 1, Confidence: 0.8,
		ConversationID: 1, ClientID: 1, CreatedAt: now.Add(-time.Hour)}
	newer := domain.InterestSignal{Type: domain.InterestProduct, EntityID: 2, Confidence: 0.8,
		ConversationID: 2, ClientID: 1, CreatedAt: now}

	for _, sig := range []domain.InterestSignal{older, newer} {
		_, err := store.PutSignal(sig)
		require.NoError(t, err)
	}

	top, err := analyzer.TopInterests(1, 0, time.Time{}, 2)
	require.NoError(t, err)
	require.Len(t, top, 2)
	assert.Equal(t, 2, top[0].EntityID)
	assert.Equal(t, 1, top[1].EntityID)
}

func TestAnalyzeClientPartialFailureIsolation(t *testing.T) {
	store := newFakeStore()

	goodResponse := func(entity int) string {
		return fmt.Sprintf(`{"intereses": [{"tipo_interes": "producto", "entidad_id": %d, "nivel_interes": 0.9}]}`, entity)
	}
	stub := &embedding.StubChat{Responses: []string{
		goodResponse(1),
		goodResponse(2),
		"esto no es json",
		goodResponse(4),
		goodResponse(5),
	}}
	analyzer, _ := newTestAnalyzer(store, stub)

	for conv := 1; conv <= 5; conv++ {
		store.addConversation(1, conv, domain.ConversationTurn{Message: fmt.Sprintf("quiero el producto %d", conv)})
	}

	result, err := analyzer.AnalyzeClient(context.Background(), 1)
	require.NoError(t, err)

	assert.Equal(t, 5, result.Conversations)
	assert.Equal(t, 4, result.Extracted)
	assert.Equal(t, 4, result.Stored)
	assert.Equal(t, 1, result.Failed)

	// The failed conversation has an empty, not missing, entry.
	sigs, ok := result.Signals[3]
	require.True(t, ok)
	assert.Empty(t, sigs)
	assert.Len(t, result.Signals[4], 1)

	// Failed conversations stay unanalyzed; successful ones do not repeat.
	remaining, err := store.UnanalyzedConversations(1)
	require.NoError(t, err)
	assert.Equal(t, []int{3}, remaining)
}

func TestClientsWithInterestsExcludesEmptyProfiles(t *testing.T) {
	store := newFakeStore()
	analyzer, _ := newTestAnalyzer(store, &embedding.StubChat{})

	withInterest, err := store.GetOrCreateClient("+111", "Con interés")
	require.NoError(t, err)
	_, err = store.GetOrCreateClient("+222", "Sin interés")
	require.NoError(t, err)

	_, err = store.PutSignal(domain.InterestSignal{
		Type: domain.InterestProduct, EntityID: 7, Confidence: 0.9,
		ConversationID: 1, ClientID: withInterest.ID, CreatedAt: time.Now(),
	})
	require.NoError(t, err)

	profiles, err := analyzer.ClientsWithInterests(0.6, time.Time{}, 3)
	require.NoError(t, err)
	require.Len(t, profiles, 1)
	assert.Equal(t, withInterest.ID, profiles[0].Client.ID)
}
