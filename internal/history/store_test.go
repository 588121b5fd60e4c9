package history

import (
	"testing"

	"github.com/earshot-labs/earshot/internal/protocol"
)

func TestStoreAppendPreservesOrder(t *testing.T) {
	s := NewStore()
	s.Append(protocol.Utterance{Text: "first"})
	s.Append(protocol.Utterance{Text: "second"})
	s.Append(protocol.Utterance{Text: "third"})

	if s.Len() != 3 {
		t.Fatalf("expected 3 entries, got %d", s.Len())
	}
	utts := s.Snapshot()
	for i, want := range []string{"first", "second", "third"} {
		if utts[i].Text != want {
			t.Fatalf("entry %d: expected %q, got %q", i, want, utts[i].Text)
		}
	}
}

func TestStoreSnapshotIsACopy(t *testing.T) {
	s := NewStore()
	s.Append(protocol.Utterance{Text: "original"})

	snap := s.Snapshot()
	snap[0].Text = "mutated"

	if got := s.Snapshot()[0].Text; got != "original" {
		t.Fatalf("snapshot mutation leaked into store: %q", got)
	}
}

func TestStoreClear(t *testing.T) {
	s := NewStore()
	s.Append(protocol.Utterance{Text: "one"})
	s.Append(protocol.Utterance{Text: "two"})
	s.Clear()

	if s.Len() != 0 {
		t.Fatalf("expected empty store after clear, got %d", s.Len())
	}
	if snap := s.Snapshot(); len(snap) != 0 {
		t.Fatalf("expected empty snapshot after clear, got %d", len(snap))
	}
}
