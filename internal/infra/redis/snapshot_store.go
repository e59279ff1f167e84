package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/dralucard666/weihnachten-sub000/internal/domain"
	"github.com/redis/go-redis/v9"
)

const snapshotKey = "lobby:snapshots"

// SnapshotStore persists the whole lobby map as one Redis hash:
// HSET lobby:snapshots {lobbyID} {json}. Per-question answer collections are
// never persisted; a restored lobby starts its current question empty.
type SnapshotStore struct {
	client *redis.Client
	ttl    time.Duration
}

func NewSnapshotStore(client *redis.Client, ttl time.Duration) *SnapshotStore {
	return &SnapshotStore{client: client, ttl: ttl}
}

// SaveAll replaces the stored checkpoint with the given lobby map.
func (s *SnapshotStore) SaveAll(ctx context.Context, lobbies map[string]domain.Lobby) error {
	fields := make(map[string]interface{}, len(lobbies))
	for id, lobby := range lobbies {
		data, err := json.Marshal(lobby)
		if err != nil {
			return fmt.Errorf("marshal lobby %s: %w", id, err)
		}
		fields[id] = data
	}

	pipe := s.client.TxPipeline()
	pipe.Del(ctx, snapshotKey)
	if len(fields) > 0 {
		pipe.HSet(ctx, snapshotKey, fields)
		if s.ttl > 0 {
			pipe.Expire(ctx, snapshotKey, s.ttl)
		}
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("save lobby snapshots: %w", err)
	}
	return nil
}

// Load fetches one lobby record from the checkpoint. A missing record is not
// an error; it signals "nothing to restore".
func (s *SnapshotStore) Load(ctx context.Context, lobbyID string) (domain.Lobby, bool, error) {
	raw, err := s.client.HGet(ctx, snapshotKey, lobbyID).Result()
	if err == redis.Nil {
		return domain.Lobby{}, false, nil
	}
	if err != nil {
		return domain.Lobby{}, false, fmt.Errorf("load lobby snapshot: %w", err)
	}
	var lobby domain.Lobby
	if err := json.Unmarshal([]byte(raw), &lobby); err != nil {
		return domain.Lobby{}, false, fmt.Errorf("unmarshal lobby snapshot: %w", err)
	}
	return lobby, true, nil
}

// Delete scrubs one lobby from the checkpoint, typically when its game ends.
func (s *SnapshotStore) Delete(ctx context.Context, lobbyID string) error {
	if err := s.client.HDel(ctx, snapshotKey, lobbyID).Err(); err != nil {
		return fmt.Errorf("delete lobby snapshot: %w", err)
	}
	return nil
}
