// Package conversation holds the chat state: an append-only list of turns
// plus the single in-progress draft.
//
// The store is safe for concurrent use. Replies are appended from timer or
// request goroutines while the render surface submits from its own loop.
package conversation

import (
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/comigor/healthchat/internal/logger"
)

// Sink accepts turns produced outside the store.
type Sink interface {
	AppendTurn(turn Turn) (Turn, error)
}

// Responder produces the reply to a user turn. Implementations must not
// block the caller; replies are delivered later through the sink.
type Responder interface {
	OnUserTurn(turn Turn, sink Sink)
}

// Recorder receives every appended turn, e.g. for an audit trail.
type Recorder interface {
	Record(sessionID string, turn Turn) error
}

// Snapshot is a copy of the store state handed to change listeners.
type Snapshot struct {
	Turns []Turn
	Draft string
}

// Store is the conversation state container.
type Store struct {
	// submitMu keeps user turns reaching the responder in append order.
	submitMu sync.Mutex
	// notifyMu serialises listener calls; notified is the last version delivered.
	notifyMu sync.Mutex
	notified uint64

	mu        sync.Mutex
	sessionID string
	turns     []Turn
	draft     string
	version   uint64
	listeners []func(Snapshot)

	responder Responder
	recorder  Recorder
	log       *slog.Logger
	now       func() time.Time
}

// Option configures a Store.
type Option func(*Store)

// WithResponder sets the component that answers user turns.
func WithResponder(r Responder) Option {
	return func(s *Store) { s.responder = r }
}

// WithRecorder sets the sink every appended turn is copied to.
func WithRecorder(r Recorder) Option {
	return func(s *Store) { s.recorder = r }
}

// WithLogger overrides the package logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Store) { s.log = l }
}

// NewStore creates an empty conversation with a fresh session id.
func NewStore(opts ...Option) *Store {
	s := &Store{
		sessionID: uuid.NewString(),
		turns:     make([]Turn, 0, 16),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.log == nil {
		s.log = logger.L
	}
	s.log = s.log.With("session", s.sessionID)
	return s
}

// SessionID identifies this conversation in logs and the audit trail.
func (s *Store) SessionID() string { return s.sessionID }

// OnChange registers fn to be called after every mutation. Listeners are
// called one at a time and never see an older snapshot after a newer one;
// when mutations race, intermediate snapshots may be skipped. A listener
// must not mutate the store.
func (s *Store) OnChange(fn func(Snapshot)) {
	s.mu.Lock()
	s.listeners = append(s.listeners, fn)
	s.mu.Unlock()
}

// Submit sends the draft text as a user turn. Blank text is ignored and
// leaves both the conversation and the draft untouched. It reports whether
// a turn was appended.
func (s *Store) Submit(draftText string) bool {
	if strings.TrimSpace(draftText) == "" {
		s.log.Debug("ignoring blank submit")
		return false
	}

	s.submitMu.Lock()
	defer s.submitMu.Unlock()

	s.mu.Lock()
	turn := s.appendLocked(Turn{Text: draftText, Sender: SenderUser})
	s.draft = ""
	version, snap, listeners := s.changedLocked()
	responder := s.responder
	s.mu.Unlock()

	s.log.Info("user turn submitted", "seq", turn.Seq, "id", turn.ID)
	s.record(turn)
	s.notify(version, listeners, snap)

	if responder != nil {
		responder.OnUserTurn(turn, s)
	}
	return true
}

// AppendTurn appends any valid turn and returns it with its position,
// id and timestamp filled in.
func (s *Store) AppendTurn(turn Turn) (Turn, error) {
	if strings.TrimSpace(turn.Text) == "" {
		return Turn{}, ErrEmptyTurn
	}

	s.mu.Lock()
	turn = s.appendLocked(turn)
	version, snap, listeners := s.changedLocked()
	s.mu.Unlock()

	s.log.Info("turn appended", "seq", turn.Seq, "sender", turn.Sender, "kind", turn.Kind)
	s.record(turn)
	s.notify(version, listeners, snap)
	return turn, nil
}

// SetDraft replaces the draft as-is.
func (s *Store) SetDraft(text string) {
	s.mu.Lock()
	if s.draft == text {
		s.mu.Unlock()
		return
	}
	s.draft = text
	version, snap, listeners := s.changedLocked()
	s.mu.Unlock()

	s.notify(version, listeners, snap)
}

// Draft returns the unsent input.
func (s *Store) Draft() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.draft
}

// Turns returns a copy of the conversation, oldest first.
func (s *Store) Turns() []Turn {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Turn, len(s.turns))
	copy(out, s.turns)
	return out
}

// Len returns the number of turns.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.turns)
}

// Snapshot returns a copy of turns and draft taken under one lock.
func (s *Store) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap, _ := s.snapshotLocked()
	return snap
}

func (s *Store) appendLocked(turn Turn) Turn {
	turn.Seq = len(s.turns)
	if turn.ID == "" {
		turn.ID = uuid.NewString()
	}
	if turn.CreatedAt.IsZero() {
		turn.CreatedAt = s.now().UTC()
	}
	s.turns = append(s.turns, turn)
	return turn
}

func (s *Store) snapshotLocked() (Snapshot, []func(Snapshot)) {
	turns := make([]Turn, len(s.turns))
	copy(turns, s.turns)
	listeners := make([]func(Snapshot), len(s.listeners))
	copy(listeners, s.listeners)
	return Snapshot{Turns: turns, Draft: s.draft}, listeners
}

// changedLocked bumps the version and captures what listeners should see.
func (s *Store) changedLocked() (uint64, Snapshot, []func(Snapshot)) {
	s.version++
	snap, listeners := s.snapshotLocked()
	return s.version, snap, listeners
}

func (s *Store) record(turn Turn) {
	if s.recorder == nil {
		return
	}
	if err := s.recorder.Record(s.sessionID, turn); err != nil {
		s.log.Warn("failed to record turn", "seq", turn.Seq, "error", err)
	}
}

// notify delivers snap unless a newer one already went out.
func (s *Store) notify(version uint64, listeners []func(Snapshot), snap Snapshot) {
	s.notifyMu.Lock()
	defer s.notifyMu.Unlock()
	if version <= s.notified {
		return
	}
	s.notified = version
	for _, fn := range listeners {
		fn(snap)
	}
}
