package usecase

import (
	"fmt"
	"time"

	"ventas/internal/domain"
)

// fakeStore is an in-memory port.ConversationStore for use case tests.
type fakeStore struct {
	nextClientID int
	clients      map[string]domain.Client
	convClients  map[int]int
	convOrder    []int
	histories    map[int][]domain.ConversationTurn
	analyzed     map[int]bool
	signals      map[string]domain.InterestSignal
	signalOrder  []string
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		clients:     make(map[string]domain.Client),
		convClients: make(map[int]int),
		histories:   make(map[int][]domain.ConversationTurn),
		analyzed:    make(map[int]bool),
		signals:     make(map[string]domain.InterestSignal),
	}
}

func (f *fakeStore) addConversation(clientID, convID int, turns ...domain.ConversationTurn) {
	f.convClients[convID] = clientID
	f.convOrder = append(f.convOrder, convID)
	f.histories[convID] = turns
}

func (f *fakeStore) GetOrCreateClient(phone, name string) (domain.Client, error) {
	if c, ok := f.clients[phone]; ok {
		return c, nil
	}
	f.nextClientID++
	c := domain.Client{ID: f.nextClientID, Phone: phone, Name: name}
	f.clients[phone] = c
	return c, nil
}

func (f *fakeStore) GetClient(id int) (domain.Client, error) {
	for _, c := range f.clients {
		if c.ID == id {
			return c, nil
		}
	}
	return domain.Client{}, fmt.Errorf("client not found: %d", id)
}

func (f *fakeStore) Clients() ([]domain.Client, error) {
	var out []domain.Client
	for _, c := range f.clients {
		out = append(out, c)
	}
	return out, nil
}

func (f *fakeStore) GetOrCreateConversation(clientID int, day time.Time) (int, error) {
	for _, convID := range f.convOrder {
		if f.convClients[convID] == clientID {
			return convID, nil
		}
	}
	convID := len(f.convOrder) + 1
	f.addConversation(clientID, convID)
	return convID, nil
}

func (f *fakeStore) SaveMessage(conversationID int, turn domain.ConversationTurn) error {
	f.histories[conversationID] = append(f.histories[conversationID], turn)
	return nil
}

func (f *fakeStore) History(conversationID int, limit int) ([]domain.ConversationTurn, error) {
	turns := f.histories[conversationID]
	if limit > 0 && len(turns) > limit {
		turns = turns[len(turns)-limit:]
	}
	return append(turns[:0:0], turns...), nil
}

func (f *fakeStore) UnanalyzedConversations(clientID int) ([]int, error) {
	var ids []int
	for _, convID := range f.convOrder {
		if f.convClients[convID] != clientID || f.analyzed[convID] || len(f.histories[convID]) == 0 {
			continue
		}
		ids = append(ids, convID)
	}
	return ids, nil
}

func (f *fakeStore) MarkAnalyzed(conversationID int) error {
	f.analyzed[conversationID] = true
	return nil
}

func (f *fakeStore) PutSignal(signal domain.InterestSignal) (bool, error) {
	key := fmt.Sprintf("%d|%s|%d", signal.ConversationID, signal.Type, signal.EntityID)
	if _, ok := f.signals[key]; ok {
		return false, nil
	}
	f.signals[key] = signal
	f.signalOrder = append(f.signalOrder, key)
	return true, nil
}

func (f *fakeStore) SignalsByClient(clientID int, minConfidence float64, since time.Time) ([]domain.InterestSignal, error) {
	var out []domain.InterestSignal
	for _, key := range f.signalOrder {
		sig := f.signals[key]
		if sig.ClientID != clientID || sig.Confidence < minConfidence {
			continue
		}
		if !since.IsZero() && !sig.CreatedAt.After(since) {
			continue
		}
		out = append(out, sig)
	}
	return out, nil
}

func (f *fakeStore) Close() error { return nil }
