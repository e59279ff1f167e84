package app

import (
	"context"
	"time"

	"github.com/dralucard666/weihnachten-sub000/internal/domain"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// SessionStore abstracts how live lobby sessions are held in memory.
type SessionStore interface {
	Add(session *Session)
	Get(lobbyID string) (*Session, bool)
	Delete(lobbyID string)
	// Lobbies returns a point-in-time snapshot of every live lobby, used by
	// the persistence bridge for whole-map checkpoints.
	Lobbies() map[string]domain.Lobby
}

// SnapshotStore is the persistence bridge to durable storage. Snapshots are
// an optimization for reconnects, not a correctness requirement: callers
// treat every write as best-effort.
type SnapshotStore interface {
	SaveAll(ctx context.Context, lobbies map[string]domain.Lobby) error
	Load(ctx context.Context, lobbyID string) (domain.Lobby, bool, error)
	Delete(ctx context.Context, lobbyID string) error
}

// QuestionRepository loads question content (from cache/backing store).
type QuestionRepository interface {
	GetQuestionSet(ctx context.Context, setID string) (domain.QuestionSet, error)
}

// LobbyService contains the core lobby/game use cases. All operations are
// synchronous against a single lobby's state; durable snapshot writes are the
// only deferred work and never block a caller.
type LobbyService struct {
	sessions  SessionStore
	snapshots SnapshotStore
	log       *logrus.Logger
}

func NewLobbyService(store SessionStore, snapshots SnapshotStore, log *logrus.Logger) *LobbyService {
	if log == nil {
		log = logrus.New()
	}
	return &LobbyService{sessions: store, snapshots: snapshots, log: log}
}

// NewSession is exported for infrastructure layers that need to seed sessions.
func NewSession(id string) *Session {
	return newSession(id)
}

// NewSessionWithClock is test-only for deterministic timestamps.
func NewSessionWithClock(id string, now func() time.Time) *Session {
	return newSessionWithClock(id, now)
}

// CreateLobby allocates a fresh lobby in state "lobby". It always succeeds.
func (s *LobbyService) CreateLobby() domain.Lobby {
	session := newSession(uuid.NewString())
	s.sessions.Add(session)
	return session.snapshot()
}

// GetLobby returns the current lobby record.
func (s *LobbyService) GetLobby(lobbyID string) (domain.Lobby, error) {
	session, ok := s.sessions.Get(lobbyID)
	if !ok {
		return domain.Lobby{}, domain.ErrLobbyNotFound
	}
	return session.snapshot(), nil
}

// JoinLobby adds a new unnamed player and returns their generated ID.
// Mid-game joins are rejected.
func (s *LobbyService) JoinLobby(lobbyID string) (string, domain.Lobby, error) {
	session, ok := s.sessions.Get(lobbyID)
	if !ok {
		return "", domain.Lobby{}, domain.ErrLobbyNotFound
	}
	return session.join()
}

// SetPlayerName assigns the display name that makes a player visible to
// readiness checks and player counts.
func (s *LobbyService) SetPlayerName(lobbyID, playerID, name string) (domain.Lobby, error) {
	session, ok := s.sessions.Get(lobbyID)
	if !ok {
		return domain.Lobby{}, domain.ErrLobbyNotFound
	}
	return session.setName(playerID, name)
}

// SetPlayerConnected flips a player's connection flag, e.g. when their socket
// drops. Disconnected players are never removed automatically.
func (s *LobbyService) SetPlayerConnected(lobbyID, playerID string, connected bool) (domain.Lobby, error) {
	session, ok := s.sessions.Get(lobbyID)
	if !ok {
		return domain.Lobby{}, domain.ErrLobbyNotFound
	}
	return session.setConnected(playerID, connected)
}

// StartGame transitions the lobby into the playing state with the first
// question of the given set.
func (s *LobbyService) StartGame(lobbyID, questionSetID, questionID string) (domain.Lobby, error) {
	session, ok := s.sessions.Get(lobbyID)
	if !ok {
		return domain.Lobby{}, domain.ErrLobbyNotFound
	}
	return session.start(questionSetID, questionID)
}

// SetAnswer records a multiple-choice selection for the current question.
func (s *LobbyService) SetAnswer(lobbyID, playerID, questionID, answerID string) error {
	session, ok := s.sessions.Get(lobbyID)
	if !ok {
		return domain.ErrLobbyNotFound
	}
	return session.setAnswer(playerID, questionID, answerID)
}

// SetAnswerOrder records a player's ordering for an order question.
func (s *LobbyService) SetAnswerOrder(lobbyID, playerID, questionID string, order []string) error {
	session, ok := s.sessions.Get(lobbyID)
	if !ok {
		return domain.ErrLobbyNotFound
	}
	return session.setAnswerOrder(playerID, questionID, order)
}

// SubmitCustomAnswer records a free-text bluff answer and returns its
// server-generated anonymous submission ID.
func (s *LobbyService) SubmitCustomAnswer(lobbyID, playerID, questionID, text string) (string, error) {
	session, ok := s.sessions.Get(lobbyID)
	if !ok {
		return "", domain.ErrLobbyNotFound
	}
	return session.submitCustomAnswer(playerID, questionID, text)
}

// SubmitTextInput records a free-text answer for a text-input question.
func (s *LobbyService) SubmitTextInput(lobbyID, playerID, questionID, text string) error {
	session, ok := s.sessions.Get(lobbyID)
	if !ok {
		return domain.ErrLobbyNotFound
	}
	return session.submitTextInput(playerID, questionID, text)
}

// VoteForAnswer records a vote in the custom-answers voting sub-phase.
// Voting for one's own submission is rejected outright.
func (s *LobbyService) VoteForAnswer(lobbyID, playerID, questionID, answerID string) error {
	session, ok := s.sessions.Get(lobbyID)
	if !ok {
		return domain.ErrLobbyNotFound
	}
	return session.vote(playerID, questionID, answerID)
}

// HasEveryoneAnswered reports whether every named player has answered the
// current question. A lobby without named players is never "done".
func (s *LobbyService) HasEveryoneAnswered(lobbyID string) bool {
	session, ok := s.sessions.Get(lobbyID)
	if !ok {
		return false
	}
	return session.everyoneAnswered()
}

// HasEveryoneSubmittedCustomAnswer reports whether every named player has
// submitted a bluff answer for the current question.
func (s *LobbyService) HasEveryoneSubmittedCustomAnswer(lobbyID string) bool {
	session, ok := s.sessions.Get(lobbyID)
	if !ok {
		return false
	}
	return session.everyoneSubmittedCustomAnswer()
}

// HasEveryoneSubmittedTextInput reports whether every named player has
// submitted text for the current question.
func (s *LobbyService) HasEveryoneSubmittedTextInput(lobbyID string) bool {
	session, ok := s.sessions.Get(lobbyID)
	if !ok {
		return false
	}
	return session.everyoneSubmittedTextInput()
}

// HasEveryoneVoted reports whether every named player has cast a vote.
func (s *LobbyService) HasEveryoneVoted(lobbyID string) bool {
	session, ok := s.sessions.Get(lobbyID)
	if !ok {
		return false
	}
	return session.everyoneVoted()
}

// GetAllCustomAnswers returns the anonymous, shuffled pool of all player
// submissions plus the true correct answer. The ordering is computed once per
// question and stable across calls.
func (s *LobbyService) GetAllCustomAnswers(lobbyID, correctAnswerID, correctAnswerText string) ([]domain.CustomAnswer, error) {
	session, ok := s.sessions.Get(lobbyID)
	if !ok {
		return nil, domain.ErrLobbyNotFound
	}
	return session.customAnswers(correctAnswerID, correctAnswerText)
}

// ProcessQuestionResult scores the current multiple-choice question: one
// point per player whose answer matches. Stale question IDs yield an empty
// result without touching state.
func (s *LobbyService) ProcessQuestionResult(lobbyID, questionID, correctAnswerID string) ([]domain.Player, error) {
	session, ok := s.sessions.Get(lobbyID)
	if !ok {
		return nil, domain.ErrLobbyNotFound
	}
	return session.processQuestionResult(questionID, correctAnswerID), nil
}

// ProcessCustomAnswerResult scores the voting round and returns the attributed
// reveal view with per-answer vote counts.
func (s *LobbyService) ProcessCustomAnswerResult(lobbyID, questionID, correctAnswerID string) ([]domain.Player, []domain.CustomAnswerResult, error) {
	session, ok := s.sessions.Get(lobbyID)
	if !ok {
		return nil, nil, domain.ErrLobbyNotFound
	}
	players, results := session.processCustomAnswerResult(questionID, correctAnswerID)
	return players, results, nil
}

// ProcessTextInputResult scores text submissions against the accepted answers
// (case-insensitive, surrounding whitespace ignored, otherwise exact).
func (s *LobbyService) ProcessTextInputResult(lobbyID, questionID string, correctAnswers []string) ([]domain.Player, []domain.TextAnswer, error) {
	session, ok := s.sessions.Get(lobbyID)
	if !ok {
		return nil, nil, domain.ErrLobbyNotFound
	}
	players, submissions := session.processTextInputResult(questionID, correctAnswers)
	return players, submissions, nil
}

// ProcessOrderResult scores an order question with partial credit per item in
// its correct absolute position.
func (s *LobbyService) ProcessOrderResult(lobbyID, questionID string, correctOrder []string) ([]domain.Player, error) {
	session, ok := s.sessions.Get(lobbyID)
	if !ok {
		return nil, domain.ErrLobbyNotFound
	}
	return session.processOrderResult(questionID, correctOrder), nil
}

// NextQuestion advances the lobby to the given question, clearing every
// per-question collection and the shuffle cache, and schedules a durable
// checkpoint in the background.
func (s *LobbyService) NextQuestion(lobbyID, questionID string) (domain.Lobby, error) {
	session, ok := s.sessions.Get(lobbyID)
	if !ok {
		return domain.Lobby{}, domain.ErrLobbyNotFound
	}
	lobby, err := session.advance(questionID)
	if err != nil {
		return domain.Lobby{}, err
	}
	s.checkpoint()
	return lobby, nil
}

// EndGame moves the lobby to its terminal state, scrubs its durable snapshot
// (reconnection is no longer meaningful) and returns the final ranking.
func (s *LobbyService) EndGame(lobbyID string) ([]domain.Player, error) {
	session, ok := s.sessions.Get(lobbyID)
	if !ok {
		return nil, domain.ErrLobbyNotFound
	}
	ranking := session.finish()
	s.scrubSnapshot(lobbyID)
	return ranking, nil
}

// RemovePlayer removes the player and their current-question entries. When the
// last player leaves, the whole in-memory lobby is deleted. The returned bool
// reports that deletion.
func (s *LobbyService) RemovePlayer(lobbyID, playerID string) (domain.Lobby, bool, error) {
	session, ok := s.sessions.Get(lobbyID)
	if !ok {
		return domain.Lobby{}, false, domain.ErrLobbyNotFound
	}
	lobby, empty, err := session.removePlayer(playerID)
	if err != nil {
		return domain.Lobby{}, false, err
	}
	if empty {
		s.sessions.Delete(lobbyID)
	}
	return lobby, empty, nil
}

// RestoreLobby returns the live lobby if present, otherwise rehydrates it
// from the durable snapshot store. Restored lobbies start their current
// question with empty answer collections. Loading blocks, which is acceptable
// at reconnect time.
func (s *LobbyService) RestoreLobby(ctx context.Context, lobbyID string) (domain.Lobby, error) {
	if session, ok := s.sessions.Get(lobbyID); ok {
		return session.snapshot(), nil
	}
	if s.snapshots == nil {
		return domain.Lobby{}, domain.ErrLobbyNotFound
	}
	record, found, err := s.snapshots.Load(ctx, lobbyID)
	if err != nil {
		s.log.WithError(err).WithField("lobby", lobbyID).Warn("lobby snapshot load failed")
		return domain.Lobby{}, domain.ErrLobbyNotFound
	}
	if !found {
		return domain.Lobby{}, domain.ErrLobbyNotFound
	}
	session := restoreSession(record)
	s.sessions.Add(session)
	return session.snapshot(), nil
}

// checkpoint persists all live lobbies in the background. Failures are logged
// and otherwise swallowed; the next checkpoint supersedes a failed one.
func (s *LobbyService) checkpoint() {
	if s.snapshots == nil {
		return
	}
	lobbies := s.sessions.Lobbies()
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.snapshots.SaveAll(ctx, lobbies); err != nil {
			s.log.WithError(err).Warn("lobby checkpoint failed")
		}
	}()
}

func (s *LobbyService) scrubSnapshot(lobbyID string) {
	if s.snapshots == nil {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.snapshots.Delete(ctx, lobbyID); err != nil {
			s.log.WithError(err).WithField("lobby", lobbyID).Warn("lobby snapshot delete failed")
		}
	}()
}
