package history

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/earshot-labs/earshot/internal/config"
	"github.com/earshot-labs/earshot/internal/protocol"
)

func newLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError}))
}

func persistentConfig(t *testing.T) config.HistoryConfig {
	t.Helper()
	return config.HistoryConfig{
		Mode:          "persistent",
		Path:          filepath.Join(t.TempDir(), "earshot.db"),
		RetentionDays: 30,
		MaxSessions:   100,
	}
}

func TestEphemeralArchiveIsNoOp(t *testing.T) {
	ctx := context.Background()
	a, err := Open(ctx, config.HistoryConfig{Mode: "ephemeral"}, newLogger())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer a.Close()

	if err := a.BeginSession(ctx, "s1"); err != nil {
		t.Fatalf("BeginSession: %v", err)
	}
	if err := a.AppendUtterance(ctx, protocol.Utterance{SessionID: "s1", Text: "hi"}); err != nil {
		t.Fatalf("AppendUtterance: %v", err)
	}
	utts, err := a.ListSessionUtterances(ctx, "s1", 10)
	if err != nil {
		t.Fatalf("ListSessionUtterances: %v", err)
	}
	if utts != nil {
		t.Fatalf("expected no stored utterances in ephemeral mode, got %d", len(utts))
	}
}

func TestArchiveRoundTrip(t *testing.T) {
	ctx := context.Background()
	a, err := Open(ctx, persistentConfig(t), newLogger())
	if err != nil {
		t.Fatalf("open archive: %v", err)
	}
	defer a.Close()

	if err := a.BeginSession(ctx, "s1"); err != nil {
		t.Fatalf("BeginSession: %v", err)
	}
	captured := time.Date(2026, 8, 23, 12, 0, 0, 0, time.UTC)
	utt := protocol.Utterance{
		SessionID:  "s1",
		Text:       "turn the volume up",
		Scored:     true,
		Confidence: 0.92,
		Start:      0.2,
		End:        1.8,
		Words: []protocol.WordTiming{
			{Word: "turn", Start: 0.2, End: 0.5, Conf: 0.95},
			{Word: "the", Start: 0.6, End: 0.7, Conf: 0.88},
		},
		CapturedAt: captured,
	}
	if err := a.AppendUtterance(ctx, utt); err != nil {
		t.Fatalf("AppendUtterance: %v", err)
	}

	utts, err := a.ListSessionUtterances(ctx, "s1", 10)
	if err != nil {
		t.Fatalf("ListSessionUtterances: %v", err)
	}
	if len(utts) != 1 {
		t.Fatalf("expected 1 utterance, got %d", len(utts))
	}
	got := utts[0]
	if got.Text != utt.Text || !got.Scored || got.Confidence != utt.Confidence {
		t.Fatalf("unexpected utterance: %+v", got)
	}
	if got.Start != utt.Start || got.End != utt.End {
		t.Fatalf("unexpected span [%f, %f]", got.Start, got.End)
	}
	if len(got.Words) != 2 || got.Words[0].Word != "turn" {
		t.Fatalf("word detail not preserved: %+v", got.Words)
	}
}

func TestArchiveUnscoredUtteranceKeepsNilWords(t *testing.T) {
	ctx := context.Background()
	a, err := Open(ctx, persistentConfig(t), newLogger())
	if err != nil {
		t.Fatalf("open archive: %v", err)
	}
	defer a.Close()

	if err := a.BeginSession(ctx, "s1"); err != nil {
		t.Fatalf("BeginSession: %v", err)
	}
	if err := a.AppendUtterance(ctx, protocol.Utterance{SessionID: "s1", Text: "hello"}); err != nil {
		t.Fatalf("AppendUtterance: %v", err)
	}

	utts, err := a.ListSessionUtterances(ctx, "s1", 10)
	if err != nil {
		t.Fatalf("ListSessionUtterances: %v", err)
	}
	if len(utts) != 1 {
		t.Fatalf("expected 1 utterance, got %d", len(utts))
	}
	if utts[0].Words != nil {
		t.Fatalf("expected nil words for text-only utterance, got %+v", utts[0].Words)
	}
	if utts[0].Scored {
		t.Fatal("expected unscored utterance")
	}
}

func TestPruneDropsExpiredSessions(t *testing.T) {
	ctx := context.Background()
	a, err := Open(ctx, persistentConfig(t), newLogger())
	if err != nil {
		t.Fatalf("open archive: %v", err)
	}
	defer a.Close()

	now := time.Date(2026, 8, 23, 12, 0, 0, 0, time.UTC)
	a.clock = func() time.Time { return now.Add(-40 * 24 * time.Hour) }
	if err := a.BeginSession(ctx, "old"); err != nil {
		t.Fatalf("BeginSession old: %v", err)
	}
	if err := a.AppendUtterance(ctx, protocol.Utterance{SessionID: "old", Text: "stale"}); err != nil {
		t.Fatalf("AppendUtterance old: %v", err)
	}

	a.clock = func() time.Time { return now }
	if err := a.BeginSession(ctx, "fresh"); err != nil {
		t.Fatalf("BeginSession fresh: %v", err)
	}
	if err := a.AppendUtterance(ctx, protocol.Utterance{SessionID: "fresh", Text: "recent"}); err != nil {
		t.Fatalf("AppendUtterance fresh: %v", err)
	}

	if err := a.Prune(ctx); err != nil {
		t.Fatalf("Prune: %v", err)
	}

	old, err := a.ListSessionUtterances(ctx, "old", 10)
	if err != nil {
		t.Fatalf("ListSessionUtterances old: %v", err)
	}
	if len(old) != 0 {
		t.Fatalf("expected expired utterances pruned, got %d", len(old))
	}
	fresh, err := a.ListSessionUtterances(ctx, "fresh", 10)
	if err != nil {
		t.Fatalf("ListSessionUtterances fresh: %v", err)
	}
	if len(fresh) != 1 {
		t.Fatalf("expected fresh utterance kept, got %d", len(fresh))
	}
}

func TestPruneEnforcesMaxSessions(t *testing.T) {
	ctx := context.Background()
	cfg := persistentConfig(t)
	cfg.RetentionDays = 0
	cfg.MaxSessions = 1
	a, err := Open(ctx, cfg, newLogger())
	if err != nil {
		t.Fatalf("open archive: %v", err)
	}
	defer a.Close()

	now := time.Date(2026, 8, 23, 12, 0, 0, 0, time.UTC)
	a.clock = func() time.Time { return now.Add(-time.Hour) }
	if err := a.BeginSession(ctx, "older"); err != nil {
		t.Fatalf("BeginSession older: %v", err)
	}
	if err := a.AppendUtterance(ctx, protocol.Utterance{SessionID: "older", Text: "a"}); err != nil {
		t.Fatalf("AppendUtterance older: %v", err)
	}

	a.clock = func() time.Time { return now }
	if err := a.BeginSession(ctx, "newer"); err != nil {
		t.Fatalf("BeginSession newer: %v", err)
	}
	if err := a.AppendUtterance(ctx, protocol.Utterance{SessionID: "newer", Text: "b"}); err != nil {
		t.Fatalf("AppendUtterance newer: %v", err)
	}

	if err := a.Prune(ctx); err != nil {
		t.Fatalf("Prune: %v", err)
	}

	older, err := a.ListSessionUtterances(ctx, "older", 10)
	if err != nil {
		t.Fatalf("ListSessionUtterances older: %v", err)
	}
	if len(older) != 0 {
		t.Fatalf("expected oldest session pruned, got %d utterances", len(older))
	}
	newer, err := a.ListSessionUtterances(ctx, "newer", 10)
	if err != nil {
		t.Fatalf("ListSessionUtterances newer: %v", err)
	}
	if len(newer) != 1 {
		t.Fatalf("expected newest session kept, got %d utterances", len(newer))
	}
}
