package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"ventas/internal/conversation"
	"ventas/internal/domain"
	"ventas/internal/port"
)

// ErrMalformedExtraction means the completion did not parse as the expected
// JSON shape. Recovered locally as an empty interest list for that
// conversation; the raw response is logged for diagnosis.
var ErrMalformedExtraction = errors.New("malformed extraction response")

const extractorSystemPrompt = `Eres un analista de intenciones de compra. A partir de una conversación entre un cliente y un asistente de ventas, identificas los productos, categorías y promociones que le interesan al cliente.

Responde ÚNICAMENTE con un objeto JSON con esta forma exacta:
{"intereses": [{"tipo_interes": "producto|categoria|promocion", "entidad_id": <id>, "entidad_nombre": "<nombre>", "nivel_interes": <0.0-1.0>, "contexto": "<por qué>"}]}

Si la conversación no muestra ningún interés, responde {"intereses": []}.`

// InterestAnalyzer extracts interest signals from conversations and
// aggregates them into per-client profiles.
type InterestAnalyzer struct {
	chat        *Chat
	model       port.ChatModel
	store       port.ConversationStore
	temperature float32
	candidateK  int
	historyCap  int
}

// AnalyzerOptions configures extraction and candidate retrieval.
type AnalyzerOptions struct {
	Temperature float32
	CandidateK  int
	HistoryCap  int
}

// NewInterestAnalyzer creates the analyzer. chat supplies candidate retrieval
// over the shared index.
func NewInterestAnalyzer(chat *Chat, model port.ChatModel, store port.ConversationStore, opts AnalyzerOptions) *InterestAnalyzer {
	if opts.CandidateK <= 0 {
		opts.CandidateK = 3
	}
	if opts.HistoryCap <= 0 {
		opts.HistoryCap = 20
	}
	return &InterestAnalyzer{
		chat:        chat,
		model:       model,
		store:       store,
		temperature: opts.Temperature,
		candidateK:  opts.CandidateK,
		historyCap:  opts.HistoryCap,
	}
}

// rawInterest is the wire shape the extractor prompt asks the model for.
type rawInterest struct {
	Type       string  `json:"tipo_interes"`
	EntityID   int     `json:"entidad_id"`
	EntityName string  `json:"entidad_nombre"`
	Confidence float64 `json:"nivel_interes"`
	Context    string  `json:"contexto"`
}

type rawExtraction struct {
	Interests []rawInterest `json:"intereses"`
}

// ExtractConversation asks the model which interests the transcript shows,
// given the candidate products retrieved for it. Every returned signal is
// stamped with the conversation and client ids.
func (a *InterestAnalyzer) ExtractConversation(ctx context.Context, clientID, conversationID int,
	transcript string, candidates []domain.SearchResult) ([]domain.InterestSignal, error) {

	prompt := buildExtractionPrompt(transcript, candidates)

	response, err := a.model.Complete(ctx, extractorSystemPrompt, prompt, a.temperature)
	if err != nil {
		return nil, err
	}

	raw, err := parseExtraction(response)
	if err != nil {
		slog.Warn("extraction response did not parse",
			"conversation", conversationID,
			"raw", response,
			"error", err)
		return nil, err
	}

	now := time.Now()
	signals := make([]domain.InterestSignal, 0, len(raw))
	for _, r := range raw {
		t := domain.InterestType(r.Type)
		if !t.Valid() {
			slog.Debug("dropping interest with unknown type", "type", r.Type, "conversation", conversationID)
			continue
		}
		signals = append(signals, domain.InterestSignal{
			Type:           t,
			EntityID:       r.EntityID,
			EntityName:     r.EntityName,
			Confidence:     clamp01(r.Confidence),
			Context:        r.Context,
			ConversationID: conversationID,
			ClientID:       clientID,
			CreatedAt:      now,
		})
	}
	return signals, nil
}

// buildExtractionPrompt enumerates the transcript and the candidate products,
// categories and promotions the model may refer to. Categories and promotions
// are deduplicated across candidates.
func buildExtractionPrompt(transcript string, candidates []domain.SearchResult) string {
	var b strings.Builder

	b.WriteString("CONVERSACIÓN:\n")
	b.WriteString(transcript)
	b.WriteString("\n\nPRODUCTOS CANDIDATOS:\n")

	type promoEntry struct {
		promo    domain.Promotion
		products []string
	}
	categories := make(map[int]string)
	var categoryOrder []int
	promotions := make(map[int]*promoEntry)
	var promotionOrder []int

	for _, res := range candidates {
		p := res.Record.Product
		fmt.Fprintf(&b, "- id=%d, nombre=%s", res.Record.ProductID, p.Name)
		if p.Description != "" {
			fmt.Fprintf(&b, ", descripción=%s", p.Description)
		}
		fmt.Fprintf(&b, ", categoría=%s\n", p.CategoryName)

		if _, seen := categories[p.CategoryID]; !seen {
			categories[p.CategoryID] = p.CategoryName
			categoryOrder = append(categoryOrder, p.CategoryID)
		}
		for _, promo := range p.Promotions {
			entry, seen := promotions[promo.ID]
			if !seen {
				entry = &promoEntry{promo: promo}
				promotions[promo.ID] = entry
				promotionOrder = append(promotionOrder, promo.ID)
			}
			entry.products = append(entry.products, p.Name)
		}
	}

	b.WriteString("\nCATEGORÍAS CANDIDATAS:\n")
	for _, id := range categoryOrder {
		fmt.Fprintf(&b, "- id=%d, nombre=%s\n", id, categories[id])
	}

	b.WriteString("\nPROMOCIONES CANDIDATAS:\n")
	for _, id := range promotionOrder {
		entry := promotions[id]
		fmt.Fprintf(&b, "- id=%d, nombre=%s", id, entry.promo.Name)
		if entry.promo.Description != "" {
			fmt.Fprintf(&b, ", descripción=%s", entry.promo.Description)
		}
		fmt.Fprintf(&b, ", aplica a: %s\n", strings.Join(entry.products, ", "))
	}

	return b.String()
}

// parseExtraction applies the tagged two-step parse: strict parse of the whole
// response, then strict parse of the first balanced brace span. A top-level
// array is accepted as the interest list; a missing "intereses" key is an
// empty list. Both failures collapse to ErrMalformedExtraction rather than a
// guessed partial result.
func parseExtraction(response string) ([]rawInterest, error) {
	trimmed := strings.TrimSpace(response)

	if out, ok := tryParse(trimmed); ok {
		return out, nil
	}

	if span := firstBalancedBraces(trimmed); span != "" {
		if out, ok := tryParse(span); ok {
			return out, nil
		}
	}

	return nil, ErrMalformedExtraction
}

func tryParse(s string) ([]rawInterest, bool) {
	if strings.HasPrefix(s, "[") {
		var list []rawInterest
		if err := json.Unmarshal([]byte(s), &list); err == nil {
			return list, true
		}
		return nil, false
	}

	var obj rawExtraction
	if err := json.Unmarshal([]byte(s), &obj); err == nil {
		// A missing "intereses" key decodes as nil: treated as empty.
		return obj.Interests, true
	}
	return nil, false
}

// firstBalancedBraces returns the first balanced {...} span in s, respecting
// JSON string literals, or "" if none closes.
func firstBalancedBraces(s string) string {
	start := strings.IndexByte(s, '{')
	if start < 0 {
		return ""
	}
	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(s); i++ {
		c := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return s[start : i+1]
			}
		}
	}
	return ""
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// StoreResult reports per-signal storage outcomes: true means stored, false
// means skipped as a duplicate.
type StoreResult struct {
	Stored   int
	Skipped  int
	Outcomes []bool
}

// StoreSignals persists the signals with insert-if-absent semantics.
func (a *InterestAnalyzer) StoreSignals(signals []domain.InterestSignal) (*StoreResult, error) {
	result := &StoreResult{Outcomes: make([]bool, 0, len(signals))}
	for _, sig := range signals {
		stored, err := a.store.PutSignal(sig)
		if err != nil {
			return result, err
		}
		result.Outcomes = append(result.Outcomes, stored)
		if stored {
			result.Stored++
		} else {
			result.Skipped++
		}
	}
	return result, nil
}

// TopInterests returns the client's top-n signals at or above minConfidence
// created after since, ordered by descending confidence with most-recent-first
// tie-break.
func (a *InterestAnalyzer) TopInterests(clientID int, minConfidence float64, since time.Time, n int) ([]domain.InterestSignal, error) {
	signals, err := a.store.SignalsByClient(clientID, minConfidence, since)
	if err != nil {
		return nil, err
	}

	sort.SliceStable(signals, func(i, j int) bool {
		if signals[i].Confidence != signals[j].Confidence {
			return signals[i].Confidence > signals[j].Confidence
		}
		return signals[i].CreatedAt.After(signals[j].CreatedAt)
	})

	if n > 0 && len(signals) > n {
		signals = signals[:n]
	}
	return signals, nil
}

// AnalysisResult summarizes one client's batch interest analysis.
type AnalysisResult struct {
	Conversations int
	Extracted     int
	Stored        int
	Skipped       int
	Failed        int
	Errors        []string

	// Signals holds the per-conversation extraction outcomes; a conversation
	// whose extraction failed has an empty (not missing) entry.
	Signals map[int][]domain.InterestSignal
}

// AnalyzeClient extracts and stores interests from every conversation of the
// client not yet analyzed. One bad completion never aborts the batch: the
// failing conversation is recorded with an empty result and the rest proceed.
func (a *InterestAnalyzer) AnalyzeClient(ctx context.Context, clientID int) (*AnalysisResult, error) {
	conversations, err := a.store.UnanalyzedConversations(clientID)
	if err != nil {
		return nil, err
	}

	result := &AnalysisResult{
		Conversations: len(conversations),
		Signals:       make(map[int][]domain.InterestSignal, len(conversations)),
	}

	for _, convID := range conversations {
		signals, err := a.analyzeConversation(ctx, clientID, convID)
		if err != nil {
			result.Failed++
			result.Signals[convID] = []domain.InterestSignal{}
			result.Errors = append(result.Errors,
				fmt.Sprintf("conversation %d: %v", convID, err))
			if !errors.Is(err, ErrMalformedExtraction) {
				slog.Warn("conversation analysis failed", "conversation", convID, "error", err)
			}
			continue
		}

		result.Signals[convID] = signals
		result.Extracted += len(signals)

		stored, err := a.StoreSignals(signals)
		if err != nil {
			return result, err
		}
		result.Stored += stored.Stored
		result.Skipped += stored.Skipped

		if err := a.store.MarkAnalyzed(convID); err != nil {
			return result, err
		}
	}

	slog.Info("client analysis complete",
		"client", clientID,
		"conversations", result.Conversations,
		"extracted", result.Extracted,
		"stored", result.Stored,
		"failed", result.Failed)
	return result, nil
}

// analyzeConversation renders the stored transcript, retrieves candidates for
// the client's utterances and extracts signals.
func (a *InterestAnalyzer) analyzeConversation(ctx context.Context, clientID, convID int) ([]domain.InterestSignal, error) {
	history, err := a.store.History(convID, a.historyCap)
	if err != nil {
		return nil, err
	}
	if len(history) == 0 {
		return nil, nil
	}

	transcript := conversation.RenderTranscript(history)

	// Candidates come from what the client actually said, not the bot replies.
	var userParts []string
	for _, turn := range history {
		if !turn.IsBot {
			userParts = append(userParts, turn.Message)
		}
	}
	query := strings.Join(userParts, " ")
	if query == "" {
		query = transcript
	}

	candidates, err := a.chat.RelevantProducts(ctx, query, a.candidateK)
	if err != nil {
		return nil, err
	}

	return a.ExtractConversation(ctx, clientID, convID, transcript, candidates)
}

// ClientsWithInterests returns the profile of every client holding at least
// one qualifying signal, each capped at n interests. Clients with none are
// excluded, not returned empty: they get no marketing follow-up.
func (a *InterestAnalyzer) ClientsWithInterests(minConfidence float64, since time.Time, n int) ([]domain.ClientProfile, error) {
	clients, err := a.store.Clients()
	if err != nil {
		return nil, err
	}

	var profiles []domain.ClientProfile
	for _, client := range clients {
		interests, err := a.TopInterests(client.ID, minConfidence, since, n)
		if err != nil {
			return nil, err
		}
		if len(interests) == 0 {
			continue
		}
		profiles = append(profiles, domain.ClientProfile{Client: client, Interests: interests})
	}
	return profiles, nil
}
