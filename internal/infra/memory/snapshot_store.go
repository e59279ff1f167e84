package memory

import (
	"context"
	"sync"

	"github.com/dralucard666/weihnachten-sub000/internal/domain"
)

// SnapshotStore keeps lobby snapshots in process memory. It exists for
// redis-less deployments and tests; restores only survive as long as the
// process does.
type SnapshotStore struct {
	mu      sync.RWMutex
	lobbies map[string]domain.Lobby
}

func NewSnapshotStore() *SnapshotStore {
	return &SnapshotStore{
		lobbies: make(map[string]domain.Lobby),
	}
}

// SaveAll replaces the stored map with the given checkpoint.
func (s *SnapshotStore) SaveAll(_ context.Context, lobbies map[string]domain.Lobby) error {
	copied := make(map[string]domain.Lobby, len(lobbies))
	for id, lobby := range lobbies {
		copied[id] = lobby
	}
	s.mu.Lock()
	s.lobbies = copied
	s.mu.Unlock()
	return nil
}

// Load returns the stored lobby record. A missing record is not an error; it
// signals "nothing to restore".
func (s *SnapshotStore) Load(_ context.Context, lobbyID string) (domain.Lobby, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	lobby, ok := s.lobbies[lobbyID]
	return lobby, ok, nil
}

func (s *SnapshotStore) Delete(_ context.Context, lobbyID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.lobbies, lobbyID)
	return nil
}
