package http

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/dralucard666/weihnachten-sub000/internal/app"
	"github.com/dralucard666/weihnachten-sub000/internal/domain"
	"github.com/dralucard666/weihnachten-sub000/internal/infra/memory"
	"github.com/gorilla/websocket"
)

func TestLobbyGameFlow(t *testing.T) {
	service := app.NewLobbyService(memory.NewSessionStore(), memory.NewSnapshotStore(), nil)
	questions := memory.NewQuestionRepository(memory.NewStaticQuestionSetLoader(testQuestionSets()), time.Minute)
	handler := NewWSHandler(service, questions, nil)

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", handler.ServeWS)
	server := httptest.NewServer(mux)
	defer server.Close()

	wsURL := "ws" + server.URL[len("http"):] + "/ws"

	master, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("master dial: %v", err)
	}
	defer master.Close()

	send(t, master, "createLobby", nil)
	_, created := readUntil(t, master, "lobbyCreated")
	lobbyID, _ := created["id"].(string)
	if lobbyID == "" {
		t.Fatalf("expected lobby id, got %+v", created)
	}

	player, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("player dial: %v", err)
	}
	defer player.Close()

	send(t, player, "joinLobby", map[string]any{"lobbyId": lobbyID})
	_, joined := readUntil(t, player, "joined")
	playerID, _ := joined["playerId"].(string)
	if playerID == "" {
		t.Fatalf("expected player id, got %+v", joined)
	}

	send(t, player, "setPlayerName", map[string]any{"name": "Alice"})
	_, updated := readUntil(t, master, "lobbyUpdated")
	if updated == nil {
		t.Fatalf("expected lobby update after naming")
	}

	send(t, master, "startGame", map[string]any{"questionSetId": "set1"})
	_, question := readUntil(t, master, "question")
	if question["id"] != "q1" {
		t.Fatalf("expected q1 first, got %+v", question)
	}
	readUntil(t, player, "question")

	send(t, player, "setAnswer", map[string]any{"questionId": "q1", "answerId": "o2"})
	_, answered := readUntil(t, master, "playerAnswered")
	if answered["playerId"] != playerID {
		t.Fatalf("expected answer ping for %s, got %+v", playerID, answered)
	}
	readUntil(t, master, "everyoneAnswered")

	send(t, master, "showResult", nil)
	_, result := readUntil(t, master, "questionResult")
	players, _ := result["players"].([]any)
	if len(players) != 1 {
		t.Fatalf("expected one player in result, got %+v", result)
	}
	first, _ := players[0].(map[string]any)
	if score, _ := first["score"].(float64); score != 1 {
		t.Fatalf("expected Alice to score 1, got %+v", first)
	}

	send(t, master, "nextQuestion", nil)
	_, next := readUntil(t, master, "question")
	if next["id"] != "q2" {
		t.Fatalf("expected q2 next, got %+v", next)
	}

	// Advancing past the last question finishes the game.
	send(t, master, "nextQuestion", nil)
	_, finished := readUntil(t, master, "gameFinished")
	if _, ok := finished["players"]; !ok {
		t.Fatalf("expected final ranking, got %+v", finished)
	}
}

func TestPlayersCannotStartGames(t *testing.T) {
	service := app.NewLobbyService(memory.NewSessionStore(), memory.NewSnapshotStore(), nil)
	questions := memory.NewQuestionRepository(memory.NewStaticQuestionSetLoader(testQuestionSets()), time.Minute)
	handler := NewWSHandler(service, questions, nil)

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", handler.ServeWS)
	server := httptest.NewServer(mux)
	defer server.Close()

	wsURL := "ws" + server.URL[len("http"):] + "/ws"

	master, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("master dial: %v", err)
	}
	defer master.Close()
	send(t, master, "createLobby", nil)
	_, created := readUntil(t, master, "lobbyCreated")
	lobbyID, _ := created["id"].(string)

	player, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("player dial: %v", err)
	}
	defer player.Close()
	send(t, player, "joinLobby", map[string]any{"lobbyId": lobbyID})
	readUntil(t, player, "joined")

	send(t, player, "startGame", map[string]any{"questionSetId": "set1"})
	_, errPayload := readUntil(t, player, "error")
	if errPayload["message"] == "" {
		t.Fatalf("expected error message, got %+v", errPayload)
	}
}

func send(t *testing.T, conn *websocket.Conn, msgType string, payload map[string]any) {
	t.Helper()
	msg := map[string]any{"type": msgType}
	if payload != nil {
		msg["payload"] = payload
	}
	if err := conn.WriteJSON(msg); err != nil {
		t.Fatalf("write %s: %v", msgType, err)
	}
}

// readUntil reads messages until one of the expected type arrives, skipping
// unrelated broadcasts.
func readUntil(t *testing.T, conn *websocket.Conn, expect string) (string, map[string]any) {
	t.Helper()
	for i := 0; i < 20; i++ {
		var msg struct {
			Type    string         `json:"type"`
			Payload map[string]any `json:"payload"`
		}
		_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
		if err := conn.ReadJSON(&msg); err != nil {
			t.Fatalf("read while waiting for %s: %v", expect, err)
		}
		if msg.Type == expect {
			return msg.Type, msg.Payload
		}
	}
	t.Fatalf("never received %s", expect)
	return "", nil
}

func testQuestionSets() map[string]domain.QuestionSet {
	return map[string]domain.QuestionSet{
		"set1": {
			ID: "set1",
			Questions: []domain.Question{
				{
					ID:   "q1",
					Type: domain.QuestionMultipleChoice,
					Text: "What is 2 + 2?",
					Options: []domain.AnswerOption{
						{ID: "o1", Text: "3"},
						{ID: "o2", Text: "4", Correct: true},
						{ID: "o3", Text: "5"},
					},
				},
				{
					ID:              "q2",
					Type:            domain.QuestionTextInput,
					Text:            "Which city hosts the Eiffel Tower?",
					AcceptedAnswers: []string{"Paris"},
				},
			},
		},
	}
}
