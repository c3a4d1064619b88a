// Package history persists chat messages and answers the time-window and
// aggregate queries the word-cloud pipeline needs.
package history

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	logx "cloudrank/pkg/logx"
)

//go:embed migrations.sql
var migrationsFS embed.FS

// Config configures the sqlite-backed store.
type Config struct {
	Path        string
	BusyTimeout time.Duration // 0 means driver default
}

// Message is one appended chat line.
type Message struct {
	SessionID  string
	SenderID   string
	SenderName string
	Text       string
	Timestamp  time.Time
	IsGroup    bool
}

// SenderCount is one leaderboard row.
type SenderCount struct {
	SenderID   string
	SenderName string
	Count      int
}

// Store is the message history backed by a single sqlite file.
type Store struct {
	db  *sql.DB
	log logx.Logger
}

func Open(cfg Config, log logx.Logger) (*Store, error) {
	if strings.TrimSpace(cfg.Path) == "" {
		return nil, errors.New("history: path is required")
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	if err := os.MkdirAll(filepath.Dir(cfg.Path), 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", cfg.Path)
	if err != nil {
		return nil, err
	}
	// SQLite prefers a small number of concurrent writers.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if cfg.BusyTimeout > 0 {
		_, _ = db.Exec(fmt.Sprintf("PRAGMA busy_timeout = %d", cfg.BusyTimeout.Milliseconds()))
	}
	_, _ = db.Exec("PRAGMA journal_mode = WAL")
	_, _ = db.Exec("PRAGMA synchronous = NORMAL")

	s := &Store{db: db, log: log}
	if err := s.migrate(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) migrate(ctx context.Context) error {
	b, err := migrationsFS.ReadFile("migrations.sql")
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, string(b))
	return err
}

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Append records one message. Timestamps default to now.
func (s *Store) Append(ctx context.Context, m Message) error {
	if strings.TrimSpace(m.Text) == "" {
		return nil // nothing worth counting
	}
	ts := m.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO message_history(session_id, sender_id, sender_name, message, timestamp, is_group)
		 VALUES(?,?,?,?,?,?)`,
		m.SessionID, m.SenderID, m.SenderName, m.Text, ts.Unix(), m.IsGroup,
	)
	return err
}

// Texts returns message bodies for the session since the cutoff, oldest
// first, capped at limit.
func (s *Store) Texts(ctx context.Context, sessionID string, since time.Time, limit int) ([]string, error) {
	if limit <= 0 {
		limit = 1000
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT message FROM message_history
		 WHERE session_id = ? AND timestamp >= ?
		 ORDER BY timestamp ASC LIMIT ?`,
		sessionID, since.Unix(), limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var text string
		if err := rows.Scan(&text); err != nil {
			return nil, err
		}
		out = append(out, text)
	}
	return out, rows.Err()
}

// Count reports how many messages the session has since the cutoff.
func (s *Store) Count(ctx context.Context, sessionID string, since time.Time) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM message_history WHERE session_id = ? AND timestamp >= ?`,
		sessionID, since.Unix(),
	).Scan(&n)
	return n, err
}

// TopSenders returns the most active senders since the cutoff, busiest first.
func (s *Store) TopSenders(ctx context.Context, sessionID string, since time.Time, limit int) ([]SenderCount, error) {
	if limit <= 0 {
		limit = 5
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT sender_id, COALESCE(sender_name, sender_id), COUNT(*) AS n
		 FROM message_history
		 WHERE session_id = ? AND timestamp >= ?
		 GROUP BY sender_id
		 ORDER BY n DESC LIMIT ?`,
		sessionID, since.Unix(), limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []SenderCount
	for rows.Next() {
		var sc SenderCount
		if err := rows.Scan(&sc.SenderID, &sc.SenderName, &sc.Count); err != nil {
			return nil, err
		}
		out = append(out, sc)
	}
	return out, rows.Err()
}

// DistinctSenders counts unique senders in the session since the cutoff.
func (s *Store) DistinctSenders(ctx context.Context, sessionID string, since time.Time) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(DISTINCT sender_id) FROM message_history WHERE session_id = ? AND timestamp >= ?`,
		sessionID, since.Unix(),
	).Scan(&n)
	return n, err
}

// ActiveSessions lists sessions with any traffic since the cutoff.
func (s *Store) ActiveSessions(ctx context.Context, since time.Time, groupsOnly bool) ([]string, error) {
	q := `SELECT DISTINCT session_id FROM message_history WHERE timestamp >= ?`
	if groupsOnly {
		q += ` AND is_group = 1`
	}
	rows, err := s.db.QueryContext(ctx, q, since.Unix())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

// PruneBefore deletes messages older than the cutoff and reports how many
// rows went away.
func (s *Store) PruneBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM message_history WHERE timestamp < ?`, cutoff.Unix())
	if err != nil {
		return 0, err
	}
	n, _ := res.RowsAffected()
	if n > 0 {
		s.log.Info("history pruned", logx.Int64("rows", n), logx.Time("cutoff", cutoff))
	}
	return n, nil
}
