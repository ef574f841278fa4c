// Package audit keeps a write-only SQLite trail of every turn appended to a
// conversation. The database is opened lazily and created on first use.
// If opening the DB or executing queries fails, entries are kept in memory.
//
// Nothing here feeds back into a live conversation; the trail is read only
// by the audit command.
package audit

import (
	"database/sql"
	"fmt"
	"sort"
	"sync"
	"time"

	_ "github.com/glebarez/go-sqlite"

	"github.com/comigor/healthchat/internal/conversation"
	"github.com/comigor/healthchat/internal/logger"
)

// Entry is one recorded turn.
type Entry struct {
	ID        int64     `json:"id"`
	SessionID string    `json:"session_id"`
	TurnID    string    `json:"turn_id"`
	Seq       int       `json:"seq"`
	Sender    string    `json:"sender"`
	Kind      string    `json:"kind,omitempty"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

// Recorder writes entries to SQLite with an in-memory fallback.
type Recorder struct {
	path string

	mu      sync.Mutex
	entries []Entry // in-memory fallback

	dbOnce  sync.Once
	db      *sql.DB
	initErr error
}

var _ conversation.Recorder = (*Recorder)(nil)

// NewRecorder returns a recorder for the database at path. An empty path
// keeps everything in memory.
func NewRecorder(path string) *Recorder {
	return &Recorder{path: path}
}

// initDB lazily opens the SQLite database and creates the turns table if it doesn't exist.
func (r *Recorder) initDB() {
	if r.path == "" {
		r.initErr = fmt.Errorf("no audit database configured")
		logger.L.Info("audit database not configured; using in-memory trail")
		return
	}
	db, err := sql.Open("sqlite", "file:"+r.path+"?_pragma=busy_timeout(10000)")
	if err != nil {
		r.initErr = err
		logger.L.Warn("sqlite open failed; using in-memory audit trail", "error", err)
		return
	}
	if _, err = db.Exec(`CREATE TABLE IF NOT EXISTS turns (
        id INTEGER PRIMARY KEY AUTOINCREMENT,
        session_id TEXT NOT NULL,
        turn_id TEXT NOT NULL,
        seq INTEGER NOT NULL,
        sender TEXT NOT NULL,
        kind TEXT,
        content TEXT NOT NULL,
        created_at DATETIME NOT NULL
    );`); err != nil {
		r.initErr = err
		db.Close()
		logger.L.Warn("sqlite table creation failed; using in-memory audit trail", "error", err)
		return
	}
	r.db = db
	logger.L.Info("sqlite audit DB initialized", "path", r.path)
}

// Record persists a turn to the SQLite database when available and always
// keeps an in-memory copy as fallback.
func (r *Recorder) Record(sessionID string, turn conversation.Turn) error {
	r.dbOnce.Do(r.initDB)

	entry := Entry{
		SessionID: sessionID,
		TurnID:    turn.ID,
		Seq:       turn.Seq,
		Sender:    string(turn.Sender),
		Kind:      string(turn.Kind),
		Content:   turn.Text,
		CreatedAt: turn.CreatedAt,
	}

	var dbErr error
	if r.db != nil {
		res, err := r.db.Exec(`INSERT INTO turns (session_id, turn_id, seq, sender, kind, content, created_at) VALUES (?,?,?,?,?,?,?);`,
			entry.SessionID, entry.TurnID, entry.Seq, entry.Sender, entry.Kind, entry.Content, entry.CreatedAt)
		if err != nil {
			dbErr = fmt.Errorf("insert audit entry: %w", err)
		} else if id, err := res.LastInsertId(); err == nil {
			entry.ID = id
		}
	}

	r.mu.Lock()
	r.entries = append(r.entries, entry)
	r.mu.Unlock()
	return dbErr
}

// List returns all entries of a session in conversation order.
func (r *Recorder) List(sessionID string) ([]Entry, error) {
	r.dbOnce.Do(r.initDB)

	if r.db != nil {
		rows, err := r.db.Query(`SELECT id, session_id, turn_id, seq, sender, kind, content, created_at FROM turns WHERE session_id = ? ORDER BY seq ASC, id ASC;`, sessionID)
		if err != nil {
			return nil, fmt.Errorf("query audit entries: %w", err)
		}
		defer rows.Close()

		var out []Entry
		for rows.Next() {
			var e Entry
			var kind sql.NullString
			if err := rows.Scan(&e.ID, &e.SessionID, &e.TurnID, &e.Seq, &e.Sender, &kind, &e.Content, &e.CreatedAt); err != nil {
				return nil, fmt.Errorf("scan audit entry: %w", err)
			}
			e.Kind = kind.String
			out = append(out, e)
		}
		return out, rows.Err()
	}

	var out []Entry
	r.mu.Lock()
	for _, e := range r.entries {
		if e.SessionID == sessionID {
			out = append(out, e)
		}
	}
	r.mu.Unlock()
	sort.SliceStable(out, func(i, j int) bool { return out[i].Seq < out[j].Seq })
	return out, nil
}

// Sessions lists the recorded session ids, most recent first.
func (r *Recorder) Sessions() ([]string, error) {
	r.dbOnce.Do(r.initDB)

	if r.db != nil {
		rows, err := r.db.Query(`SELECT session_id FROM turns GROUP BY session_id ORDER BY MAX(id) DESC;`)
		if err != nil {
			return nil, fmt.Errorf("query audit sessions: %w", err)
		}
		defer rows.Close()

		var out []string
		for rows.Next() {
			var id string
			if err := rows.Scan(&id); err != nil {
				return nil, fmt.Errorf("scan audit session: %w", err)
			}
			out = append(out, id)
		}
		return out, rows.Err()
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	seen := make(map[string]bool)
	var out []string
	for i := len(r.entries) - 1; i >= 0; i-- {
		id := r.entries[i].SessionID
		if !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	return out, nil
}

// Close releases the database handle.
func (r *Recorder) Close() error {
	if r.db == nil {
		return nil
	}
	return r.db.Close()
}
