package session

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/segmentio/ksuid"
)

// ErrSessionNotFound is returned for an unknown session ID.
var ErrSessionNotFound = errors.New("session: not found")

// Status is the session lifecycle state.
type Status string

const (
	StatusActive Status = "active"
	StatusIdle   Status = "idle"
	StatusClosed Status = "closed"
)

// Session owns a conversation. All turns of a session run under its writer
// lock, so at most one turn mutates session state at a time; concurrent
// submissions queue on the lock in arrival order.
type Session struct {
	ID           string    `json:"id"`
	CreatedAt    time.Time `json:"created_at"`
	LastActiveAt time.Time `json:"last_active_at"`

	mu      sync.Mutex
	writer  sync.Mutex
	status  Status
	turnSeq int
	turns   []*Turn
	cancel  context.CancelFunc
}

// Status returns the current lifecycle state.
func (s *Session) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

// Turns returns a snapshot of the session's turn history.
func (s *Session) Turns() []*Turn {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*Turn, len(s.turns))
	copy(out, s.turns)
	return out
}

// beginTurn allocates the next turn and remembers how to cancel it. It
// returns nil if the session is closed.
func (s *Session) beginTurn(utterance string, cancel context.CancelFunc, now func() time.Time) *Turn {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.status == StatusClosed {
		return nil
	}
	s.status = StatusActive
	s.turnSeq++
	turn := newTurn(s.ID, s.turnSeq, utterance, now)
	s.turns = append(s.turns, turn)
	s.cancel = cancel
	return turn
}

func (s *Session) endTurn(now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cancel = nil
	s.LastActiveAt = now
	if s.status == StatusActive {
		s.status = StatusIdle
	}
}

// close marks the session closed and cancels any in-flight turn.
func (s *Session) close() {
	s.mu.Lock()
	cancel := s.cancel
	s.cancel = nil
	s.status = StatusClosed
	s.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

// Registry tracks live sessions by ID.
type Registry struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	now      func() time.Time
}

func NewRegistry() *Registry {
	return &Registry{sessions: make(map[string]*Session), now: time.Now}
}

// Open creates a new idle session.
func (r *Registry) Open() *Session {
	now := r.now()
	sess := &Session{
		ID:           "sess_" + ksuid.New().String(),
		CreatedAt:    now,
		LastActiveAt: now,
		status:       StatusIdle,
	}
	r.mu.Lock()
	r.sessions[sess.ID] = sess
	r.mu.Unlock()
	return sess
}

// Get looks up a session by ID.
func (r *Registry) Get(id string) (*Session, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	sess, ok := r.sessions[id]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return sess, nil
}

// Close closes the session and drops it from the registry. Closing an
// unknown session returns ErrSessionNotFound.
func (r *Registry) Close(id string) (*Session, error) {
	r.mu.Lock()
	sess, ok := r.sessions[id]
	if ok {
		delete(r.sessions, id)
	}
	r.mu.Unlock()
	if !ok {
		return nil, ErrSessionNotFound
	}
	sess.close()
	return sess, nil
}

// Len reports the number of live sessions.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}
