package redis

import (
	"context"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/dralucard666/weihnachten-sub000/internal/domain"
	"github.com/redis/go-redis/v9"
)

func TestSnapshotStoreRoundTrip(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	defer mr.Close()

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	store := NewSnapshotStore(client, time.Minute)
	ctx := context.Background()

	if _, ok, err := store.Load(ctx, "lobby-1"); err != nil || ok {
		t.Fatalf("expected nothing to restore, ok=%v err=%v", ok, err)
	}

	saved := domain.Lobby{
		ID:                "lobby-1",
		GameState:         domain.StatePlaying,
		QuestionSetID:     "set1",
		QuestionIndex:     3,
		CurrentQuestionID: "q4",
		Players: []domain.Player{
			{ID: "p1", Name: "A", Score: 2},
			{ID: "p2", Name: "B", Score: 5},
		},
		CreatedAt: time.Now().UTC().Truncate(time.Second),
	}
	if err := store.SaveAll(ctx, map[string]domain.Lobby{"lobby-1": saved}); err != nil {
		t.Fatalf("save: %v", err)
	}
	if !mr.Exists("lobby:snapshots") {
		t.Fatalf("expected snapshot hash in redis")
	}

	loaded, ok, err := store.Load(ctx, "lobby-1")
	if err != nil || !ok {
		t.Fatalf("load: ok=%v err=%v", ok, err)
	}
	// The record must round-trip exactly.
	if loaded.ID != saved.ID || loaded.GameState != saved.GameState ||
		loaded.QuestionSetID != saved.QuestionSetID ||
		loaded.QuestionIndex != saved.QuestionIndex ||
		loaded.CurrentQuestionID != saved.CurrentQuestionID ||
		len(loaded.Players) != 2 || loaded.Players[1].Score != 5 ||
		!loaded.CreatedAt.Equal(saved.CreatedAt) {
		t.Fatalf("snapshot did not round-trip: %+v vs %+v", loaded, saved)
	}

	if err := store.Delete(ctx, "lobby-1"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, ok, _ := store.Load(ctx, "lobby-1"); ok {
		t.Fatalf("expected snapshot scrubbed")
	}
}

func TestSaveAllReplacesPreviousCheckpoint(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	defer mr.Close()

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	store := NewSnapshotStore(client, time.Minute)
	ctx := context.Background()

	first := map[string]domain.Lobby{
		"lobby-1": {ID: "lobby-1", GameState: domain.StatePlaying},
		"lobby-2": {ID: "lobby-2", GameState: domain.StateLobby},
	}
	if err := store.SaveAll(ctx, first); err != nil {
		t.Fatalf("save: %v", err)
	}

	// lobby-2 went away; the next checkpoint supersedes the old one.
	second := map[string]domain.Lobby{
		"lobby-1": {ID: "lobby-1", GameState: domain.StatePlaying, QuestionIndex: 1},
	}
	if err := store.SaveAll(ctx, second); err != nil {
		t.Fatalf("save: %v", err)
	}

	if _, ok, _ := store.Load(ctx, "lobby-2"); ok {
		t.Fatalf("expected lobby-2 gone after new checkpoint")
	}
	loaded, ok, _ := store.Load(ctx, "lobby-1")
	if !ok || loaded.QuestionIndex != 1 {
		t.Fatalf("expected updated lobby-1, got ok=%v %+v", ok, loaded)
	}
}
