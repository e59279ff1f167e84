package http

import (
	"context"
	"encoding/json"
	"math/rand"
	"net/http"

	"github.com/dralucard666/weihnachten-sub000/internal/app"
	"github.com/dralucard666/weihnachten-sub000/internal/domain"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

// WSHandler binds websocket connections to lobbies and dispatches inbound
// requests into the lobby service. After every state-changing call it applies
// one of three broadcast disciplines: room-wide, master-only, or a targeted
// reply to the request's initiator.
type WSHandler struct {
	service   *app.LobbyService
	questions app.QuestionRepository
	rooms     *roomRegistry
	upgrader  websocket.Upgrader
	log       *logrus.Logger
}

func NewWSHandler(service *app.LobbyService, questions app.QuestionRepository, log *logrus.Logger) *WSHandler {
	if log == nil {
		log = logrus.New()
	}
	return &WSHandler{
		service:   service,
		questions: questions,
		rooms:     newRoomRegistry(),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		log: log,
	}
}

type inboundMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type lobbyRef struct {
	LobbyID  string `json:"lobbyId"`
	PlayerID string `json:"playerId"`
}

type namePayload struct {
	Name string `json:"name"`
}

type startGamePayload struct {
	QuestionSetID string `json:"questionSetId"`
}

type answerPayload struct {
	QuestionID string   `json:"questionId"`
	AnswerID   string   `json:"answerId"`
	Text       string   `json:"text"`
	Order      []string `json:"order"`
}

type removePlayerPayload struct {
	PlayerID string `json:"playerId"`
}

// ServeWS upgrades the HTTP request and runs the connection's read loop. Each
// inbound message is handled to completion before the next is read.
func (h *WSHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.WithError(err).Warn("ws upgrade failed")
		return
	}
	defer conn.Close()

	c := newClient(conn)
	go c.writePump(h.log)
	defer c.close()

	h.log.WithField("remote", r.RemoteAddr).Info("ws connected")

	for {
		var msg inboundMessage
		if err := conn.ReadJSON(&msg); err != nil {
			break
		}
		h.handleMessage(r.Context(), c, msg)
	}

	h.disconnect(c)
	h.log.WithField("remote", r.RemoteAddr).Info("ws disconnected")
}

// disconnect flags the player as offline and detaches the connection. Players
// are never removed from the lobby just because their socket dropped; an
// explicit removePlayer or leaveLobby does that.
func (h *WSHandler) disconnect(c *client) {
	if c.lobbyID == "" {
		return
	}
	room, ok := h.rooms.get(c.lobbyID)
	if !ok {
		return
	}
	room.drop(c)
	if c.playerID != "" {
		if lobby, err := h.service.SetPlayerConnected(c.lobbyID, c.playerID, false); err == nil {
			room.broadcast(outbound{Type: "lobbyUpdated", Payload: lobby})
		}
	}
}

func (h *WSHandler) handleMessage(ctx context.Context, c *client, msg inboundMessage) {
	switch msg.Type {
	case "createLobby":
		h.createLobby(c)
	case "joinLobby":
		h.joinLobby(c, msg.Payload)
	case "reconnectMaster":
		h.reconnect(ctx, c, msg.Payload, true)
	case "reconnectPlayer":
		h.reconnect(ctx, c, msg.Payload, false)
	case "setPlayerName":
		h.setPlayerName(c, msg.Payload)
	case "startGame":
		h.startGame(ctx, c, msg.Payload)
	case "setAnswer":
		h.setAnswer(c, msg.Payload)
	case "setAnswerOrder":
		h.setAnswerOrder(c, msg.Payload)
	case "submitCustomAnswer":
		h.submitCustomAnswer(c, msg.Payload)
	case "submitTextInput":
		h.submitTextInput(c, msg.Payload)
	case "voteAnswer":
		h.voteAnswer(c, msg.Payload)
	case "getCustomAnswers":
		h.getCustomAnswers(ctx, c)
	case "showResult":
		h.showResult(ctx, c)
	case "nextQuestion":
		h.nextQuestion(ctx, c)
	case "endGame":
		h.endGame(c)
	case "removePlayer":
		h.removePlayer(c, msg.Payload)
	case "leaveLobby":
		h.leaveLobby(c)
	default:
		c.writeError("unsupported message type")
	}
}

func (h *WSHandler) createLobby(c *client) {
	lobby := h.service.CreateLobby()
	c.lobbyID = lobby.ID
	c.isMaster = true
	room := h.rooms.getOrCreate(lobby.ID)
	room.setMaster(c)
	c.write(outbound{Type: "lobbyCreated", Payload: lobby})
}

func (h *WSHandler) joinLobby(c *client, raw json.RawMessage) {
	var p lobbyRef
	if err := json.Unmarshal(raw, &p); err != nil {
		c.writeError("invalid join payload")
		return
	}
	playerID, lobby, err := h.service.JoinLobby(p.LobbyID)
	if err != nil {
		c.writeError(err.Error())
		return
	}
	c.lobbyID = p.LobbyID
	c.playerID = playerID
	room := h.rooms.getOrCreate(p.LobbyID)
	room.addPlayer(playerID, c)
	c.write(outbound{Type: "joined", Payload: map[string]interface{}{
		"playerId": playerID,
		"lobby":    lobby,
	}})
	room.broadcast(outbound{Type: "lobbyUpdated", Payload: lobby})
}

// reconnect re-admits a master or player, rehydrating the lobby from the
// snapshot store if it is no longer in memory.
func (h *WSHandler) reconnect(ctx context.Context, c *client, raw json.RawMessage, asMaster bool) {
	var p lobbyRef
	if err := json.Unmarshal(raw, &p); err != nil {
		c.writeError("invalid reconnect payload")
		return
	}
	lobby, err := h.service.RestoreLobby(ctx, p.LobbyID)
	if err != nil {
		c.writeError(err.Error())
		return
	}
	room := h.rooms.getOrCreate(p.LobbyID)
	c.lobbyID = p.LobbyID
	if asMaster {
		c.isMaster = true
		room.setMaster(c)
	} else {
		updated, err := h.service.SetPlayerConnected(p.LobbyID, p.PlayerID, true)
		if err != nil {
			c.writeError(err.Error())
			return
		}
		lobby = updated
		c.playerID = p.PlayerID
		room.addPlayer(p.PlayerID, c)
	}
	c.write(outbound{Type: "lobbyState", Payload: lobby})
	room.broadcast(outbound{Type: "lobbyUpdated", Payload: lobby})
}

func (h *WSHandler) setPlayerName(c *client, raw json.RawMessage) {
	var p namePayload
	if err := json.Unmarshal(raw, &p); err != nil || p.Name == "" {
		c.writeError("invalid name payload")
		return
	}
	lobby, err := h.service.SetPlayerName(c.lobbyID, c.playerID, p.Name)
	if err != nil {
		c.writeError(err.Error())
		return
	}
	h.broadcastToRoom(c.lobbyID, outbound{Type: "lobbyUpdated", Payload: lobby})
}

func (h *WSHandler) startGame(ctx context.Context, c *client, raw json.RawMessage) {
	if !c.isMaster {
		c.writeError("only the game master can start the game")
		return
	}
	var p startGamePayload
	if err := json.Unmarshal(raw, &p); err != nil {
		c.writeError("invalid start payload")
		return
	}
	set, err := h.questions.GetQuestionSet(ctx, p.QuestionSetID)
	if err != nil {
		c.writeError(err.Error())
		return
	}
	if len(set.Questions) == 0 {
		c.writeError("question set is empty")
		return
	}
	first := set.Questions[0]
	lobby, err := h.service.StartGame(c.lobbyID, set.ID, first.ID)
	if err != nil {
		c.writeError(err.Error())
		return
	}
	room, ok := h.rooms.get(c.lobbyID)
	if !ok {
		return
	}
	room.resetQuestionState()
	room.broadcast(outbound{Type: "gameStarted", Payload: lobby})
	room.broadcast(outbound{Type: "question", Payload: questionView(lobby.QuestionIndex, first)})
}

func (h *WSHandler) setAnswer(c *client, raw json.RawMessage) {
	var p answerPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		c.writeError("invalid answer payload")
		return
	}
	if err := h.service.SetAnswer(c.lobbyID, c.playerID, p.QuestionID, p.AnswerID); err != nil {
		c.writeError(err.Error())
		return
	}
	h.answerProgress(c, "everyoneAnswered", h.service.HasEveryoneAnswered)
}

func (h *WSHandler) setAnswerOrder(c *client, raw json.RawMessage) {
	var p answerPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		c.writeError("invalid order payload")
		return
	}
	if err := h.service.SetAnswerOrder(c.lobbyID, c.playerID, p.QuestionID, p.Order); err != nil {
		c.writeError(err.Error())
		return
	}
	h.answerProgress(c, "everyoneAnswered", h.service.HasEveryoneAnswered)
}

func (h *WSHandler) submitCustomAnswer(c *client, raw json.RawMessage) {
	var p answerPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		c.writeError("invalid submission payload")
		return
	}
	if _, err := h.service.SubmitCustomAnswer(c.lobbyID, c.playerID, p.QuestionID, p.Text); err != nil {
		c.writeError(err.Error())
		return
	}
	h.answerProgress(c, "everyoneSubmittedCustomAnswer", h.service.HasEveryoneSubmittedCustomAnswer)
}

func (h *WSHandler) submitTextInput(c *client, raw json.RawMessage) {
	var p answerPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		c.writeError("invalid text payload")
		return
	}
	if err := h.service.SubmitTextInput(c.lobbyID, c.playerID, p.QuestionID, p.Text); err != nil {
		c.writeError(err.Error())
		return
	}
	h.answerProgress(c, "everyoneSubmittedTextInput", h.service.HasEveryoneSubmittedTextInput)
}

func (h *WSHandler) voteAnswer(c *client, raw json.RawMessage) {
	var p answerPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		c.writeError("invalid vote payload")
		return
	}
	if err := h.service.VoteForAnswer(c.lobbyID, c.playerID, p.QuestionID, p.AnswerID); err != nil {
		c.writeError(err.Error())
		return
	}
	room, ok := h.rooms.get(c.lobbyID)
	if !ok {
		return
	}
	room.toMaster(outbound{Type: "playerVoted", Payload: map[string]string{"playerId": c.playerID}})
	if h.service.HasEveryoneVoted(c.lobbyID) {
		room.signalOnce("everyoneVoted", outbound{Type: "everyoneVoted"})
	}
}

// answerProgress pings the master with the individual submission and emits
// the matching "everyone is done" signal exactly once per question.
func (h *WSHandler) answerProgress(c *client, kind string, done func(string) bool) {
	room, ok := h.rooms.get(c.lobbyID)
	if !ok {
		return
	}
	room.toMaster(outbound{Type: "playerAnswered", Payload: map[string]string{"playerId": c.playerID}})
	if done(c.lobbyID) {
		room.signalOnce(kind, outbound{Type: kind})
	}
}

func (h *WSHandler) getCustomAnswers(ctx context.Context, c *client) {
	if !c.isMaster {
		c.writeError("only the game master can reveal the answer pool")
		return
	}
	q, _, err := h.currentQuestion(ctx, c.lobbyID)
	if err != nil {
		c.writeError(err.Error())
		return
	}
	room, ok := h.rooms.get(c.lobbyID)
	if !ok {
		return
	}
	correctID := room.correctID(uuid.NewString)
	answers, err := h.service.GetAllCustomAnswers(c.lobbyID, correctID, q.CorrectAnswer)
	if err != nil {
		c.writeError(err.Error())
		return
	}
	room.broadcast(outbound{Type: "customAnswers", Payload: map[string]interface{}{
		"questionId": q.ID,
		"answers":    answers,
	}})
}

// showResult scores the current question according to its type and broadcasts
// the updated players together with the type-specific reveal data.
func (h *WSHandler) showResult(ctx context.Context, c *client) {
	if !c.isMaster {
		c.writeError("only the game master can reveal results")
		return
	}
	q, _, err := h.currentQuestion(ctx, c.lobbyID)
	if err != nil {
		c.writeError(err.Error())
		return
	}
	room, ok := h.rooms.get(c.lobbyID)
	if !ok {
		return
	}

	payload := map[string]interface{}{"questionId": q.ID}
	switch q.Type {
	case domain.QuestionMultipleChoice:
		correctID := correctOptionID(q)
		players, err := h.service.ProcessQuestionResult(c.lobbyID, q.ID, correctID)
		if err != nil {
			c.writeError(err.Error())
			return
		}
		payload["players"] = players
		payload["correctAnswerId"] = correctID
	case domain.QuestionCustomAnswers:
		players, answers, err := h.service.ProcessCustomAnswerResult(c.lobbyID, q.ID, room.correctID(uuid.NewString))
		if err != nil {
			c.writeError(err.Error())
			return
		}
		payload["players"] = players
		payload["answers"] = answers
		payload["correctAnswerId"] = room.correctID(uuid.NewString)
	case domain.QuestionTextInput:
		players, submissions, err := h.service.ProcessTextInputResult(c.lobbyID, q.ID, q.AcceptedAnswers)
		if err != nil {
			c.writeError(err.Error())
			return
		}
		payload["players"] = players
		payload["submissions"] = submissions
		payload["acceptedAnswers"] = q.AcceptedAnswers
	case domain.QuestionOrder:
		players, err := h.service.ProcessOrderResult(c.lobbyID, q.ID, q.OrderItems)
		if err != nil {
			c.writeError(err.Error())
			return
		}
		payload["players"] = players
		payload["correctOrder"] = q.OrderItems
	default:
		c.writeError("unknown question type")
		return
	}
	room.broadcast(outbound{Type: "questionResult", Payload: payload})
}

// nextQuestion advances to the next question of the set, or finishes the game
// when the set is exhausted.
func (h *WSHandler) nextQuestion(ctx context.Context, c *client) {
	if !c.isMaster {
		c.writeError("only the game master can advance questions")
		return
	}
	lobby, err := h.service.GetLobby(c.lobbyID)
	if err != nil {
		c.writeError(err.Error())
		return
	}
	set, err := h.questions.GetQuestionSet(ctx, lobby.QuestionSetID)
	if err != nil {
		c.writeError(err.Error())
		return
	}
	next := lobby.QuestionIndex + 1
	if next >= len(set.Questions) {
		h.endGame(c)
		return
	}
	question := set.Questions[next]
	updated, err := h.service.NextQuestion(c.lobbyID, question.ID)
	if err != nil {
		c.writeError(err.Error())
		return
	}
	room, ok := h.rooms.get(c.lobbyID)
	if !ok {
		return
	}
	room.resetQuestionState()
	room.broadcast(outbound{Type: "lobbyUpdated", Payload: updated})
	room.broadcast(outbound{Type: "question", Payload: questionView(updated.QuestionIndex, question)})
}

func (h *WSHandler) endGame(c *client) {
	if !c.isMaster {
		c.writeError("only the game master can end the game")
		return
	}
	ranking, err := h.service.EndGame(c.lobbyID)
	if err != nil {
		c.writeError(err.Error())
		return
	}
	h.broadcastToRoom(c.lobbyID, outbound{Type: "gameFinished", Payload: map[string]interface{}{
		"players": ranking,
	}})
}

func (h *WSHandler) removePlayer(c *client, raw json.RawMessage) {
	if !c.isMaster {
		c.writeError("only the game master can remove players")
		return
	}
	var p removePlayerPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		c.writeError("invalid remove payload")
		return
	}
	h.removeFromLobby(c.lobbyID, p.PlayerID)
}

func (h *WSHandler) leaveLobby(c *client) {
	if c.playerID == "" {
		c.writeError("not joined to a lobby")
		return
	}
	h.removeFromLobby(c.lobbyID, c.playerID)
	c.lobbyID = ""
	c.playerID = ""
}

func (h *WSHandler) removeFromLobby(lobbyID, playerID string) {
	lobby, deleted, err := h.service.RemovePlayer(lobbyID, playerID)
	if err != nil {
		return
	}
	room, ok := h.rooms.get(lobbyID)
	if !ok {
		return
	}
	if removed := room.removePlayer(playerID); removed != nil {
		removed.write(outbound{Type: "removedFromLobby"})
	}
	if deleted {
		h.rooms.delete(lobbyID)
		return
	}
	room.broadcast(outbound{Type: "lobbyUpdated", Payload: lobby})
}

func (h *WSHandler) broadcastToRoom(lobbyID string, msg outbound) {
	if room, ok := h.rooms.get(lobbyID); ok {
		room.broadcast(msg)
	}
}

func (h *WSHandler) currentQuestion(ctx context.Context, lobbyID string) (domain.Question, domain.Lobby, error) {
	lobby, err := h.service.GetLobby(lobbyID)
	if err != nil {
		return domain.Question{}, domain.Lobby{}, err
	}
	set, err := h.questions.GetQuestionSet(ctx, lobby.QuestionSetID)
	if err != nil {
		return domain.Question{}, domain.Lobby{}, err
	}
	q, ok := set.QuestionByID(lobby.CurrentQuestionID)
	if !ok {
		return domain.Question{}, domain.Lobby{}, domain.ErrQuestionNotFound
	}
	return q, lobby, nil
}

func correctOptionID(q domain.Question) string {
	for _, opt := range q.Options {
		if opt.Correct {
			return opt.ID
		}
	}
	return ""
}

// questionView strips everything that would give the answer away before a
// question is broadcast to the room.
func questionView(index int, q domain.Question) map[string]interface{} {
	options := make([]map[string]string, 0, len(q.Options))
	for _, opt := range q.Options {
		options = append(options, map[string]string{"id": opt.ID, "text": opt.Text})
	}
	items := append([]string(nil), q.OrderItems...)
	rand.Shuffle(len(items), func(i, j int) {
		items[i], items[j] = items[j], items[i]
	})
	view := map[string]interface{}{
		"index":    index,
		"id":       q.ID,
		"type":     q.Type,
		"text":     q.Text,
		"mediaUrl": q.MediaURL,
	}
	if len(options) > 0 {
		view["options"] = options
	}
	if len(items) > 0 {
		view["items"] = items
	}
	return view
}
