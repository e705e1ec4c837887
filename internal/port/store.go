package port

import (
	"time"

	"ventas/internal/domain"
)

// ConversationStore persists clients, conversation history and interest
// signals. Implementations must guarantee that a conversation marked analyzed
// is never returned by UnanalyzedConversations again, and that PutSignal is
// insert-if-absent on the (conversation, type, entity) natural key.
type ConversationStore interface {
	GetOrCreateClient(phone, name string) (domain.Client, error)

	GetClient(id int) (domain.Client, error)

	Clients() ([]domain.Client, error)

	// GetOrCreateConversation returns the conversation for the client on the
	// given calendar day, creating it if needed.
	GetOrCreateConversation(clientID int, day time.Time) (int, error)

	SaveMessage(conversationID int, turn domain.ConversationTurn) error

	// History returns up to limit most recent turns in chronological order.
	History(conversationID int, limit int) ([]domain.ConversationTurn, error)

	// UnanalyzedConversations returns ids of the client's conversations that
	// hold messages and have not yet been interest-analyzed.
	UnanalyzedConversations(clientID int) ([]int, error)

	MarkAnalyzed(conversationID int) error

	// PutSignal stores the signal unless one already exists for the same
	// conversation, type and entity. Reports whether it was stored.
	PutSignal(signal domain.InterestSignal) (bool, error)

	// SignalsByClient returns the client's signals at or above minConfidence
	// created after since.
	SignalsByClient(clientID int, minConfidence float64, since time.Time) ([]domain.InterestSignal, error)

	Close() error
}
