// Package history records finalized utterances: an append-only in-memory
// store for the live session plus an optional SQLite archive.
package history

import (
	"sync"

	"github.com/earshot-labs/earshot/internal/protocol"
)

// Store is the append-only ordered record of the session's finalized
// utterances. The recognition loop is the only writer; Snapshot gives any
// other goroutine a consistent copy while the loop is live.
type Store struct {
	mu      sync.Mutex
	entries []protocol.Utterance
}

func NewStore() *Store {
	return &Store{}
}

// Append records one utterance. Arrival order is preserved; entries are
// never reordered or deduplicated.
func (s *Store) Append(utt protocol.Utterance) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = append(s.entries, utt)
}

// Snapshot returns a copy of the recorded utterances in arrival order.
func (s *Store) Snapshot() []protocol.Utterance {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]protocol.Utterance, len(s.entries))
	copy(out, s.entries)
	return out
}

// Clear discards all recorded utterances.
func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = nil
}

// Len returns the number of recorded utterances.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}
