// ABOUTME: Per-session conversation context for the resolver
// ABOUTME: Keeps the last 10 turns per session and sweeps stale sessions

package resolver

import (
	"sync"
	"time"
)

const (
	maxTurnsPerSession = 10
	sessionTTL         = time.Hour
)

// Turn is one recorded query/response pair.
type Turn struct {
	Query     string
	Response  *Response
	Timestamp time.Time
}

type session struct {
	turns       []Turn
	lastUpdated time.Time
}

type sessionStore struct {
	mu       sync.Mutex
	sessions map[string]*session
	now      func() time.Time
}

func newSessionStore() *sessionStore {
	return &sessionStore{
		sessions: make(map[string]*session),
		now:      time.Now,
	}
}

// record appends a turn, trims the ring to the last 10, and sweeps
// sessions idle past the TTL.
func (s *sessionStore) record(sessionID, query string, resp *Response) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()

	sess, ok := s.sessions[sessionID]
	if !ok {
		sess = &session{}
		s.sessions[sessionID] = sess
	}

	sess.turns = append(sess.turns, Turn{Query: query, Response: resp, Timestamp: now})
	if len(sess.turns) > maxTurnsPerSession {
		sess.turns = sess.turns[len(sess.turns)-maxTurnsPerSession:]
	}
	sess.lastUpdated = now

	for id, other := range s.sessions {
		if id != sessionID && now.Sub(other.lastUpdated) > sessionTTL {
			delete(s.sessions, id)
		}
	}
}

// turns returns a copy of the session's recorded turns, oldest first.
func (s *sessionStore) turns(sessionID string) []Turn {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[sessionID]
	if !ok {
		return nil
	}
	out := make([]Turn, len(sess.turns))
	copy(out, sess.turns)
	return out
}
