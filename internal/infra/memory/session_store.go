package memory

import (
	"sync"

	"github.com/dralucard666/weihnachten-sub000/internal/app"
	"github.com/dralucard666/weihnachten-sub000/internal/domain"
)

// SessionStore is the in-memory implementation of app.SessionStore. Lobbies
// of different IDs never coordinate; the store mutex only guards the map
// itself, each session carries its own lock.
type SessionStore struct {
	mu       sync.RWMutex
	sessions map[string]*app.Session
}

func NewSessionStore() *SessionStore {
	return &SessionStore{
		sessions: make(map[string]*app.Session),
	}
}

func (s *SessionStore) Add(session *app.Session) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[session.ID()] = session
}

func (s *SessionStore) Get(lobbyID string) (*app.Session, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	session, ok := s.sessions[lobbyID]
	return session, ok
}

func (s *SessionStore) Delete(lobbyID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, lobbyID)
}

func (s *SessionStore) Lobbies() map[string]domain.Lobby {
	s.mu.RLock()
	sessions := make([]*app.Session, 0, len(s.sessions))
	for _, session := range s.sessions {
		sessions = append(sessions, session)
	}
	s.mu.RUnlock()

	lobbies := make(map[string]domain.Lobby, len(sessions))
	for _, session := range sessions {
		lobby := session.Snapshot()
		lobbies[lobby.ID] = lobby
	}
	return lobbies
}
