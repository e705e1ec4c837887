package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"ventas/internal/adapter/index"
	"ventas/internal/conversation"
	"ventas/internal/domain"
	"ventas/internal/port"
)

const assistantSystemPrompt = `Eres un asistente de ventas para una tienda online. Tu trabajo es ayudar a los clientes con información sobre productos, precios, promociones y realizar ventas.

CONTEXTO DE LA CONVERSACIÓN:
%s

PRODUCTOS RELEVANTES:
%s

INSTRUCCIONES:
1. Mantén el contexto de la conversación - si el cliente preguntó sobre un producto específico, recuerda cuál es
2. Proporciona información precisa sobre precios, promociones y categorías
3. Sé amigable y útil
4. Si el cliente pregunta sobre precios, especifica a qué producto te refieres
5. Sugiere productos relacionados cuando sea apropiado
6. Si no tienes información específica, sé honesto al respecto`

// Chat answers client messages using the conversation window and the products
// retrieved for the message.
type Chat struct {
	windows     *conversation.Windows
	embedder    port.Embedder
	model       port.ChatModel
	handle      *index.Handle
	store       port.ConversationStore
	topK        int
	temperature float32
	historyCap  int
}

// ChatOptions configures the chat pipeline.
type ChatOptions struct {
	TopK        int
	Temperature float32
	HistoryCap  int
}

// NewChat creates the chat use case. store may be nil for window-only use
// (Respond works, HandleMessage does not).
func NewChat(windows *conversation.Windows, embedder port.Embedder, model port.ChatModel,
	handle *index.Handle, store port.ConversationStore, opts ChatOptions) *Chat {
	if opts.TopK <= 0 {
		opts.TopK = 3
	}
	if opts.HistoryCap <= 0 {
		opts.HistoryCap = 20
	}
	return &Chat{
		windows:     windows,
		embedder:    embedder,
		model:       model,
		handle:      handle,
		store:       store,
		topK:        opts.TopK,
		temperature: opts.Temperature,
		historyCap:  opts.HistoryCap,
	}
}

// Reply is the outcome of one handled client message.
type Reply struct {
	Text           string
	ClientID       int
	ConversationID int
}

// RelevantProducts embeds the query and returns the top-k catalog hits.
func (c *Chat) RelevantProducts(ctx context.Context, query string, k int) ([]domain.SearchResult, error) {
	vectors, err := c.embedder.Embed(ctx, []string{query})
	if err != nil {
		return nil, err
	}
	if len(vectors) != 1 {
		return nil, fmt.Errorf("expected one query vector, got %d", len(vectors))
	}
	return c.handle.Get().Search(vectors[0], k)
}

// Respond generates the assistant reply for a client message. The whole
// append-retrieve-complete-append sequence runs under the client's window
// lock, so two concurrent messages from the same client cannot interleave.
// An oracle failure propagates; there is no partial answer to return.
func (c *Chat) Respond(ctx context.Context, clientID int, message string) (string, error) {
	c.windows.Lock(clientID)
	defer c.windows.Unlock(clientID)

	c.windows.AppendLocked(clientID, domain.ConversationTurn{
		Message:   message,
		Timestamp: time.Now(),
	})
	return c.respondLocked(ctx, clientID, message)
}

// respondLocked runs retrieval and completion for a message whose user turn is
// already in the window. Caller holds the client lock.
func (c *Chat) respondLocked(ctx context.Context, clientID int, message string) (string, error) {
	transcript := c.windows.RenderLocked(clientID)

	results, err := c.RelevantProducts(ctx, message, c.topK)
	if err != nil {
		return "", fmt.Errorf("failed to retrieve products: %w", err)
	}

	systemPrompt := fmt.Sprintf(assistantSystemPrompt, transcript, formatProductContext(results))

	reply, err := c.model.Complete(ctx, systemPrompt, message, c.temperature)
	if err != nil {
		return "", fmt.Errorf("failed to generate reply: %w", err)
	}
	reply = strings.TrimSpace(reply)

	c.windows.AppendLocked(clientID, domain.ConversationTurn{
		Message:   reply,
		IsBot:     true,
		Timestamp: time.Now(),
	})
	return reply, nil
}

// HandleMessage is the full inbound-message flow: resolve client and today's
// conversation, persist the user turn, rebuild the window from stored history
// and respond, persisting the bot turn on success.
func (c *Chat) HandleMessage(ctx context.Context, phone, name, message string) (*Reply, error) {
	client, err := c.store.GetOrCreateClient(phone, name)
	if err != nil {
		return nil, err
	}
	convID, err := c.store.GetOrCreateConversation(client.ID, time.Now())
	if err != nil {
		return nil, err
	}

	userTurn := domain.ConversationTurn{Message: message, Timestamp: time.Now()}
	if err := c.store.SaveMessage(convID, userTurn); err != nil {
		return nil, fmt.Errorf("failed to save message: %w", err)
	}

	c.windows.Lock(client.ID)
	defer c.windows.Unlock(client.ID)

	// The persisted history already contains the user turn just saved.
	history, err := c.store.History(convID, c.historyCap)
	if err != nil {
		return nil, err
	}
	c.windows.HydrateLocked(client.ID, history)

	replyText, err := c.respondLocked(ctx, client.ID, message)
	if err != nil {
		return nil, err
	}

	botTurn := domain.ConversationTurn{Message: replyText, IsBot: true, Timestamp: time.Now()}
	if err := c.store.SaveMessage(convID, botTurn); err != nil {
		return nil, fmt.Errorf("failed to save reply: %w", err)
	}

	slog.Info("message handled", "client", client.ID, "conversation", convID)
	return &Reply{Text: replyText, ClientID: client.ID, ConversationID: convID}, nil
}

// formatProductContext renders retrieved products for the assistant prompt.
func formatProductContext(results []domain.SearchResult) string {
	if len(results) == 0 {
		return "No se encontraron productos relevantes."
	}
	lines := make([]string, 0, len(results))
	for _, res := range results {
		p := res.Record.Product
		line := fmt.Sprintf("- %s: $%.2f", p.Name, p.CurrentPrice)
		if p.Description != "" {
			line += " - " + p.Description
		}
		if len(p.Promotions) > 0 {
			promos := make([]string, len(p.Promotions))
			for i, promo := range p.Promotions {
				promos[i] = fmt.Sprintf("%s (%g%% desc.)", promo.Name, promo.DiscountPercent)
			}
			line += " | Promociones: " + strings.Join(promos, ", ")
		}
		lines = append(lines, line)
	}
	return strings.Join(lines, "\n")
}
