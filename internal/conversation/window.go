package conversation

import (
	"strings"
	"sync"

	"ventas/internal/domain"
)

// Windows holds the bounded per-client context windows. Each client gets its
// own window with its own lock; distinct clients never contend. It is an
// explicit handle constructed once and passed into request-scoped operations.
type Windows struct {
	size int

	mu      sync.Mutex
	clients map[int]*window
}

type window struct {
	mu    sync.Mutex
	turns []domain.ConversationTurn
}

// New creates a keyed window store where each client's window holds at most
// size turns, oldest evicted first.
func New(size int) *Windows {
	return &Windows{
		size:    size,
		clients: make(map[int]*window),
	}
}

func (w *Windows) get(clientID int) *window {
	w.mu.Lock()
	defer w.mu.Unlock()
	win, ok := w.clients[clientID]
	if !ok {
		win = &window{}
		w.clients[clientID] = win
	}
	return win
}

// Lock acquires the client's window lock. The chat pipeline holds it across
// the append-search-respond-append sequence so concurrent messages from the
// same client cannot interleave.
func (w *Windows) Lock(clientID int) {
	w.get(clientID).mu.Lock()
}

// Unlock releases the client's window lock.
func (w *Windows) Unlock(clientID int) {
	w.get(clientID).mu.Unlock()
}

// Append pushes a turn onto the client's window, evicting from the front once
// the window exceeds its size. Callers already holding the client lock must
// use AppendLocked.
func (w *Windows) Append(clientID int, turn domain.ConversationTurn) {
	win := w.get(clientID)
	win.mu.Lock()
	defer win.mu.Unlock()
	w.appendTurn(win, turn)
}

// AppendLocked is Append for callers inside a Lock/Unlock section.
func (w *Windows) AppendLocked(clientID int, turn domain.ConversationTurn) {
	w.appendTurn(w.get(clientID), turn)
}

func (w *Windows) appendTurn(win *window, turn domain.ConversationTurn) {
	win.turns = append(win.turns, turn)
	if excess := len(win.turns) - w.size; excess > 0 {
		win.turns = append(win.turns[:0:0], win.turns[excess:]...)
	}
}

// Render produces the role-prefixed transcript in chronological order, used
// as prompt context. Unknown clients render as the empty string.
func (w *Windows) Render(clientID int) string {
	win := w.get(clientID)
	win.mu.Lock()
	defer win.mu.Unlock()
	return w.renderTurns(win.turns)
}

// RenderLocked is Render for callers inside a Lock/Unlock section.
func (w *Windows) RenderLocked(clientID int) string {
	return w.renderTurns(w.get(clientID).turns)
}

func (w *Windows) renderTurns(turns []domain.ConversationTurn) string {
	return RenderTranscript(turns)
}

// RenderTranscript formats turns as a "Cliente:"/"Bot:" transcript.
func RenderTranscript(turns []domain.ConversationTurn) string {
	if len(turns) == 0 {
		return ""
	}
	lines := make([]string, len(turns))
	for i, turn := range turns {
		role := "Cliente"
		if turn.IsBot {
			role = "Bot"
		}
		lines[i] = role + ": " + turn.Message
	}
	return strings.Join(lines, "\n")
}

// Hydrate replaces the client's window wholesale from persisted history,
// keeping only the most recent turns up to the window size. It is a full
// overwrite, not a merge.
func (w *Windows) Hydrate(clientID int, turns []domain.ConversationTurn) {
	win := w.get(clientID)
	win.mu.Lock()
	defer win.mu.Unlock()
	w.hydrateTurns(win, turns)
}

// HydrateLocked is Hydrate for callers inside a Lock/Unlock section.
func (w *Windows) HydrateLocked(clientID int, turns []domain.ConversationTurn) {
	w.hydrateTurns(w.get(clientID), turns)
}

func (w *Windows) hydrateTurns(win *window, turns []domain.ConversationTurn) {
	if excess := len(turns) - w.size; excess > 0 {
		turns = turns[excess:]
	}
	win.turns = append(win.turns[:0:0], turns...)
}

// Snapshot returns a copy of the client's current turns.
func (w *Windows) Snapshot(clientID int) []domain.ConversationTurn {
	win := w.get(clientID)
	win.mu.Lock()
	defer win.mu.Unlock()
	return append(win.turns[:0:0], win.turns...)
}
