package store

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"time"

	"go.etcd.io/bbolt"

	"ventas/internal/domain"
)

var (
	bucketClientsByPhone = []byte("clients_by_phone")
	bucketClientsByID    = []byte("clients_by_id")
	bucketConversations  = []byte("conversations")
	bucketClientDays     = []byte("client_days")
	bucketMessages       = []byte("messages")
	bucketAnalyzed       = []byte("analyzed")
	bucketSignals        = []byte("signals")
)

// Bolt implements port.ConversationStore on a single BoltDB file.
type Bolt struct {
	db *bbolt.DB
}

type conversationMeta struct {
	ID       int    `json:"id"`
	ClientID int    `json:"client_id"`
	Day      string `json:"day"`
}

// NewBolt opens (or creates) the store at path.
func NewBolt(path string) (*Bolt, error) {
	db, err := bbolt.Open(path, 0600, &bbolt.Options{Timeout: 5 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open store: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		for _, name := range [][]byte{
			bucketClientsByPhone, bucketClientsByID, bucketConversations,
			bucketClientDays, bucketMessages, bucketAnalyzed, bucketSignals,
		} {
			if _, err := tx.CreateBucketIfNotExists(name); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create buckets: %w", err)
	}

	return &Bolt{db: db}, nil
}

// Close closes the underlying database.
func (s *Bolt) Close() error {
	return s.db.Close()
}

// GetOrCreateClient looks a client up by phone, creating it on first contact.
func (s *Bolt) GetOrCreateClient(phone, name string) (domain.Client, error) {
	var client domain.Client
	err := s.db.Update(func(tx *bbolt.Tx) error {
		byPhone := tx.Bucket(bucketClientsByPhone)
		if data := byPhone.Get([]byte(phone)); data != nil {
			return json.Unmarshal(data, &client)
		}

		byID := tx.Bucket(bucketClientsByID)
		seq, err := byID.NextSequence()
		if err != nil {
			return err
		}
		if name == "" {
			name = "Cliente_" + phone
		}
		client = domain.Client{ID: int(seq), Phone: phone, Name: name}

		data, err := json.Marshal(client)
		if err != nil {
			return err
		}
		if err := byPhone.Put([]byte(phone), data); err != nil {
			return err
		}
		return byID.Put(itob(client.ID), data)
	})
	if err != nil {
		return domain.Client{}, fmt.Errorf("failed to get or create client: %w", err)
	}
	return client, nil
}

// GetClient returns the client with the given id.
func (s *Bolt) GetClient(id int) (domain.Client, error) {
	var client domain.Client
	err := s.db.View(func(tx *bbolt.Tx) error {
		data := tx.Bucket(bucketClientsByID).Get(itob(id))
		if data == nil {
			return fmt.Errorf("client not found: %d", id)
		}
		return json.Unmarshal(data, &client)
	})
	return client, err
}

// Clients lists all known clients.
func (s *Bolt) Clients() ([]domain.Client, error) {
	var clients []domain.Client
	err := s.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketClientsByID).ForEach(func(_, v []byte) error {
			var c domain.Client
			if err := json.Unmarshal(v, &c); err != nil {
				return err
			}
			clients = append(clients, c)
			return nil
		})
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list clients: %w", err)
	}
	return clients, nil
}

// GetOrCreateConversation returns the client's conversation for the given
// calendar day, creating one if it does not exist yet.
func (s *Bolt) GetOrCreateConversation(clientID int, day time.Time) (int, error) {
	dayKey := append(itob(clientID), []byte(day.Format("2006-01-02"))...)

	var convID int
	err := s.db.Update(func(tx *bbolt.Tx) error {
		days := tx.Bucket(bucketClientDays)
		if data := days.Get(dayKey); data != nil {
			convID = int(btoi(data))
			return nil
		}

		convs := tx.Bucket(bucketConversations)
		seq, err := convs.NextSequence()
		if err != nil {
			return err
		}
		convID = int(seq)

		meta := conversationMeta{ID: convID, ClientID: clientID, Day: day.Format("2006-01-02")}
		data, err := json.Marshal(meta)
		if err != nil {
			return err
		}
		if err := convs.Put(itob(convID), data); err != nil {
			return err
		}
		return days.Put(dayKey, itob(convID))
	})
	if err != nil {
		return 0, fmt.Errorf("failed to get or create conversation: %w", err)
	}
	return convID, nil
}

// SaveMessage appends a turn to the conversation.
func (s *Bolt) SaveMessage(conversationID int, turn domain.ConversationTurn) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		msgs := tx.Bucket(bucketMessages)
		seq, err := msgs.NextSequence()
		if err != nil {
			return err
		}
		data, err := json.Marshal(turn)
		if err != nil {
			return err
		}
		key := append(itob(conversationID), itob(int(seq))...)
		return msgs.Put(key, data)
	})
}

// History returns up to limit most recent turns in chronological order.
func (s *Bolt) History(conversationID int, limit int) ([]domain.ConversationTurn, error) {
	var turns []domain.ConversationTurn
	err := s.db.View(func(tx *bbolt.Tx) error {
		c := tx.Bucket(bucketMessages).Cursor()
		prefix := itob(conversationID)
		for k, v := c.Seek(prefix); k != nil && bytes.HasPrefix(k, prefix); k, v = c.Next() {
			var turn domain.ConversationTurn
			if err := json.Unmarshal(v, &turn); err != nil {
				return err
			}
			turns = append(turns, turn)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to load history: %w", err)
	}
	if limit > 0 && len(turns) > limit {
		turns = turns[len(turns)-limit:]
	}
	return turns, nil
}

// UnanalyzedConversations returns ids of the client's conversations holding
// messages that were never interest-analyzed. A marked conversation is never
// returned again.
func (s *Bolt) UnanalyzedConversations(clientID int) ([]int, error) {
	var ids []int
	err := s.db.View(func(tx *bbolt.Tx) error {
		analyzed := tx.Bucket(bucketAnalyzed)
		msgs := tx.Bucket(bucketMessages)

		return tx.Bucket(bucketConversations).ForEach(func(k, v []byte) error {
			var meta conversationMeta
			if err := json.Unmarshal(v, &meta); err != nil {
				return err
			}
			if meta.ClientID != clientID {
				return nil
			}
			if analyzed.Get(k) != nil {
				return nil
			}
			// Skip conversations without any message
			c := msgs.Cursor()
			if first, _ := c.Seek(k); first == nil || !bytes.HasPrefix(first, k) {
				return nil
			}
			ids = append(ids, meta.ID)
			return nil
		})
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list unanalyzed conversations: %w", err)
	}
	return ids, nil
}

// MarkAnalyzed records that the conversation's interests were extracted.
func (s *Bolt) MarkAnalyzed(conversationID int) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketAnalyzed).Put(itob(conversationID), []byte{1})
	})
}

// PutSignal stores the signal with insert-if-absent semantics on the
// (conversation, type, entity) natural key. A duplicate is silently skipped
// and reported as stored=false.
func (s *Bolt) PutSignal(signal domain.InterestSignal) (bool, error) {
	key := signalKey(signal)
	stored := false
	err := s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketSignals)
		if b.Get(key) != nil {
			return nil
		}
		data, err := json.Marshal(signal)
		if err != nil {
			return err
		}
		stored = true
		return b.Put(key, data)
	})
	if err != nil {
		return false, fmt.Errorf("failed to store signal: %w", err)
	}
	return stored, nil
}

// SignalsByClient returns the client's signals at or above minConfidence and
// created after since.
func (s *Bolt) SignalsByClient(clientID int, minConfidence float64, since time.Time) ([]domain.InterestSignal, error) {
	var signals []domain.InterestSignal
	err := s.db.View(func(tx *bbolt.Tx) error {
		c := tx.Bucket(bucketSignals).Cursor()
		prefix := itob(clientID)
		for k, v := c.Seek(prefix); k != nil && bytes.HasPrefix(k, prefix); k, v = c.Next() {
			var sig domain.InterestSignal
			if err := json.Unmarshal(v, &sig); err != nil {
				return err
			}
			if sig.Confidence < minConfidence {
				continue
			}
			if !since.IsZero() && !sig.CreatedAt.After(since) {
				continue
			}
			signals = append(signals, sig)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to load signals: %w", err)
	}
	return signals, nil
}

// signalKey builds the natural key: client prefix for range scans, then
// conversation, type and entity for the dedup identity.
func signalKey(sig domain.InterestSignal) []byte {
	key := itob(sig.ClientID)
	key = append(key, itob(sig.ConversationID)...)
	key = append(key, []byte(sig.Type)...)
	key = append(key, 0)
	key = append(key, itob(sig.EntityID)...)
	return key
}

func itob(v int) []byte {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, uint64(v))
	return b
}

func btoi(b []byte) uint64 {
	return binary.BigEndian.Uint64(b)
}
