package history

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/earshot-labs/earshot/internal/config"
	"github.com/earshot-labs/earshot/internal/protocol"
)

// Archive is a SQLite-backed persistent record of finalized utterances.
// In ephemeral mode it is a no-op. Writes come only from the recognition
// loop's goroutine.
type Archive struct {
	db    *sql.DB
	cfg   config.HistoryConfig
	log   *slog.Logger
	clock func() time.Time
}

// Open initializes the archive according to config.
func Open(ctx context.Context, cfg config.HistoryConfig, log *slog.Logger) (*Archive, error) {
	if cfg.Mode == "ephemeral" {
		return &Archive{cfg: cfg, log: log, clock: time.Now}, nil
	}

	dir := filepath.Dir(cfg.Path)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create data dir: %w", err)
		}
	}

	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=foreign_keys(ON)", cfg.Path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}

	a := &Archive{db: db, cfg: cfg, log: log, clock: time.Now}

	if err := a.initSchema(ctx); err != nil {
		db.Close()
		return nil, err
	}

	if cfg.VacuumOnStart {
		if _, err := a.db.ExecContext(ctx, "VACUUM"); err != nil {
			log.Warn("archive vacuum failed", slog.String("error", err.Error()))
		}
	}
	if err := a.Prune(ctx); err != nil {
		log.Warn("archive prune on start failed", slog.String("error", err.Error()))
	}

	return a, nil
}

func (a *Archive) initSchema(ctx context.Context) error {
	ddl := `
CREATE TABLE IF NOT EXISTS sessions (
    session_id TEXT PRIMARY KEY,
    started_at TIMESTAMP NOT NULL
);
CREATE TABLE IF NOT EXISTS utterances (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    session_id TEXT NOT NULL,
    text TEXT NOT NULL,
    scored INTEGER NOT NULL,
    confidence REAL,
    start_sec REAL,
    end_sec REAL,
    words BLOB,
    captured_at TIMESTAMP NOT NULL,
    FOREIGN KEY(session_id) REFERENCES sessions(session_id) ON DELETE CASCADE
);
CREATE INDEX IF NOT EXISTS idx_utterances_session_captured ON utterances(session_id, captured_at);
`
	_, err := a.db.ExecContext(ctx, ddl)
	return err
}

// Close releases the underlying database.
func (a *Archive) Close() error {
	if a == nil || a.db == nil {
		return nil
	}
	return a.db.Close()
}

// BeginSession ensures a session row exists.
func (a *Archive) BeginSession(ctx context.Context, sessionID string) error {
	if a.db == nil {
		return nil
	}
	_, err := a.db.ExecContext(ctx,
		`INSERT INTO sessions(session_id, started_at) VALUES(?, ?)
		 ON CONFLICT(session_id) DO NOTHING`,
		sessionID, a.clock().UTC())
	return err
}

// AppendUtterance writes one finalized utterance.
func (a *Archive) AppendUtterance(ctx context.Context, utt protocol.Utterance) error {
	if a.db == nil {
		return nil
	}
	var words []byte
	if utt.Words != nil {
		var err error
		words, err = json.Marshal(utt.Words)
		if err != nil {
			return fmt.Errorf("encode words: %w", err)
		}
	}
	capturedAt := utt.CapturedAt
	if capturedAt.IsZero() {
		capturedAt = a.clock().UTC()
	}
	_, err := a.db.ExecContext(ctx,
		`INSERT INTO utterances(session_id, text, scored, confidence, start_sec, end_sec, words, captured_at)
		 VALUES(?, ?, ?, ?, ?, ?, ?, ?)`,
		utt.SessionID, utt.Text, utt.Scored, utt.Confidence, utt.Start, utt.End, words, capturedAt)
	return err
}

// ListSessionUtterances retrieves up to limit utterances for a session in
// capture order.
func (a *Archive) ListSessionUtterances(ctx context.Context, sessionID string, limit int) ([]protocol.Utterance, error) {
	if a.db == nil {
		return nil, nil
	}
	if limit <= 0 {
		limit = 100
	}
	rows, err := a.db.QueryContext(ctx,
		`SELECT session_id, text, scored, confidence, start_sec, end_sec, words, captured_at
		 FROM utterances WHERE session_id = ? ORDER BY id ASC LIMIT ?`, sessionID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var utts []protocol.Utterance
	for rows.Next() {
		var utt protocol.Utterance
		var words []byte
		var captured string
		if err := rows.Scan(&utt.SessionID, &utt.Text, &utt.Scored, &utt.Confidence, &utt.Start, &utt.End, &words, &captured); err != nil {
			return nil, err
		}
		if len(words) > 0 {
			if err := json.Unmarshal(words, &utt.Words); err != nil {
				return nil, fmt.Errorf("decode words: %w", err)
			}
		}
		if ts, err := time.Parse(time.RFC3339Nano, captured); err == nil {
			utt.CapturedAt = ts
		}
		utts = append(utts, utt)
	}
	return utts, rows.Err()
}

// Prune applies configured retention.
func (a *Archive) Prune(ctx context.Context) error {
	if a.db == nil {
		return nil
	}
	tx, err := a.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	if a.cfg.RetentionDays > 0 {
		cutoff := a.clock().Add(-time.Duration(a.cfg.RetentionDays) * 24 * time.Hour).UTC()
		if _, err = tx.ExecContext(ctx, `DELETE FROM utterances WHERE captured_at < ?`, cutoff); err != nil {
			return err
		}
		if _, err = tx.ExecContext(ctx, `DELETE FROM sessions WHERE started_at < ?`, cutoff); err != nil {
			return err
		}
	}
	if a.cfg.MaxSessions > 0 {
		_, err = tx.ExecContext(ctx, `DELETE FROM sessions WHERE session_id IN (
			SELECT session_id FROM sessions ORDER BY started_at DESC LIMIT -1 OFFSET ?
		)`, a.cfg.MaxSessions)
		if err != nil {
			return err
		}
	}
	err = tx.Commit()
	return err
}
