package service

import (
	"slices"
	"time"

	"github.com/Strob0t/replatform-mcp/internal/domain/agent"
)

// Store is the in-memory session registry. It keeps insertion order and is
// not safe for concurrent use; the Tracker serializes every access.
type Store struct {
	sessions map[string]*agent.Session
	order    []string
	newID    func() string
}

// NewStore returns an empty store that names unnamed sessions with newID.
func NewStore(newID func() string) *Store {
	return &Store{
		sessions: make(map[string]*agent.Session),
		newID:    newID,
	}
}

// Create registers a session. An empty id gets a generated one. Creating an
// id that already exists returns the existing session and false.
func (s *Store) Create(id string, now time.Time) (*agent.Session, bool) {
	if id == "" {
		id = s.newID()
	}
	if existing, ok := s.sessions[id]; ok {
		return existing, false
	}
	sess := agent.NewSession(id, now)
	s.sessions[id] = sess
	s.order = append(s.order, id)
	return sess, true
}

// Get returns the live session for id.
func (s *Store) Get(id string) (*agent.Session, bool) {
	sess, ok := s.sessions[id]
	return sess, ok
}

// List returns the live sessions in insertion order.
func (s *Store) List() []*agent.Session {
	out := make([]*agent.Session, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.sessions[id])
	}
	return out
}

// Remove deletes the session for id and reports whether it existed.
func (s *Store) Remove(id string) bool {
	if _, ok := s.sessions[id]; !ok {
		return false
	}
	delete(s.sessions, id)
	if i := slices.Index(s.order, id); i >= 0 {
		s.order = slices.Delete(s.order, i, i+1)
	}
	return true
}

// Len returns the number of sessions.
func (s *Store) Len() int { return len(s.order) }
