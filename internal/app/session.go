package app

import (
	"math/rand"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/dralucard666/weihnachten-sub000/internal/domain"
	"github.com/google/uuid"
)

// Session is the in-memory aggregate for one lobby: the lobby record itself
// plus the per-question answer and vote collections. All collections are
// keyed by player ID, scoped to the current question only, and cleared on
// every question transition. Every mutation runs under the session mutex, so
// operations on one lobby are atomic with respect to each other; sessions of
// different lobbies never share state.
type Session struct {
	mu sync.Mutex

	id                string
	state             domain.GameState
	players           []*domain.Player
	questionSetID     string
	questionIndex     int
	currentQuestionID string
	createdAt         time.Time

	answers map[string]string           // selected option ID (multiple-choice)
	orders  map[string][]string         // submitted ordering (order questions)
	custom  map[string]customSubmission // free-text submission with anonymous ID
	votes   map[string]string           // answer ID voted for
	texts   map[string]string           // raw free text (text-input)

	// shuffled is the one authoritative ordering of pooled custom answers for
	// the current question. It is computed at most once per question; votes
	// reference IDs from this list, so recomputing (and reshuffling) it would
	// break vote attribution.
	shuffled    []domain.CustomAnswer
	shuffleDone bool

	now func() time.Time
	rnd *rand.Rand
}

type customSubmission struct {
	ID   string
	Text string
}

func newSession(id string) *Session {
	return newSessionWithClock(id, time.Now)
}

// newSessionWithClock allows deterministic timestamps in tests.
func newSessionWithClock(id string, now func() time.Time) *Session {
	s := &Session{
		id:        id,
		state:     domain.StateLobby,
		createdAt: now(),
		now:       now,
		rnd:       rand.New(rand.NewSource(time.Now().UnixNano())),
	}
	s.resetCollectionsLocked()
	return s
}

// restoreSession rehydrates a session from a durable lobby record. In-flight
// per-question answers are not durable, so the restored session starts its
// current question with empty collections and cleared answered flags.
func restoreSession(l domain.Lobby) *Session {
	s := newSession(l.ID)
	s.state = l.GameState
	s.questionSetID = l.QuestionSetID
	s.questionIndex = l.QuestionIndex
	s.currentQuestionID = l.CurrentQuestionID
	if !l.CreatedAt.IsZero() {
		s.createdAt = l.CreatedAt
	}
	s.players = make([]*domain.Player, 0, len(l.Players))
	for _, p := range l.Players {
		p.HasAnswered = false
		p.Connected = false
		player := p
		s.players = append(s.players, &player)
	}
	return s
}

func (s *Session) resetCollectionsLocked() {
	s.answers = make(map[string]string)
	s.orders = make(map[string][]string)
	s.custom = make(map[string]customSubmission)
	s.votes = make(map[string]string)
	s.texts = make(map[string]string)
	s.shuffled = nil
	s.shuffleDone = false
}

func (s *Session) playerLocked(playerID string) (*domain.Player, bool) {
	for _, p := range s.players {
		if p.ID == playerID {
			return p, true
		}
	}
	return nil, false
}

// checkSubmissionLocked enforces the common preconditions of every answer,
// vote and submission call: the game must be running, the referenced question
// must still be current (stale clients re-submit against old questions), and
// the player must exist.
func (s *Session) checkSubmissionLocked(playerID, questionID string) (*domain.Player, error) {
	if s.state != domain.StatePlaying {
		return nil, domain.ErrWrongGameState
	}
	if questionID != s.currentQuestionID {
		return nil, domain.ErrStaleQuestion
	}
	p, ok := s.playerLocked(playerID)
	if !ok {
		return nil, domain.ErrPlayerNotFound
	}
	return p, nil
}

func (s *Session) join() (string, domain.Lobby, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != domain.StateLobby {
		return "", domain.Lobby{}, domain.ErrWrongGameState
	}
	playerID := uuid.NewString()
	s.players = append(s.players, &domain.Player{
		ID:        playerID,
		Connected: true,
	})
	return playerID, s.snapshotLocked(), nil
}

func (s *Session) setName(playerID, name string) (domain.Lobby, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.playerLocked(playerID)
	if !ok {
		return domain.Lobby{}, domain.ErrPlayerNotFound
	}
	p.Name = name
	return s.snapshotLocked(), nil
}

func (s *Session) setConnected(playerID string, connected bool) (domain.Lobby, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.playerLocked(playerID)
	if !ok {
		return domain.Lobby{}, domain.ErrPlayerNotFound
	}
	p.Connected = connected
	return s.snapshotLocked(), nil
}

func (s *Session) start(questionSetID, questionID string) (domain.Lobby, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != domain.StateLobby {
		return domain.Lobby{}, domain.ErrWrongGameState
	}
	s.state = domain.StatePlaying
	s.questionSetID = questionSetID
	s.questionIndex = 0
	s.currentQuestionID = questionID
	s.resetCollectionsLocked()
	for _, p := range s.players {
		p.HasAnswered = false
	}
	return s.snapshotLocked(), nil
}

func (s *Session) setAnswer(playerID, questionID, answerID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, err := s.checkSubmissionLocked(playerID, questionID)
	if err != nil {
		return err
	}
	s.answers[playerID] = answerID
	p.HasAnswered = true
	return nil
}

func (s *Session) setAnswerOrder(playerID, questionID string, order []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, err := s.checkSubmissionLocked(playerID, questionID)
	if err != nil {
		return err
	}
	s.orders[playerID] = append([]string(nil), order...)
	p.HasAnswered = true
	return nil
}

func (s *Session) submitCustomAnswer(playerID, questionID, text string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, err := s.checkSubmissionLocked(playerID, questionID)
	if err != nil {
		return "", err
	}
	sub := customSubmission{ID: uuid.NewString(), Text: text}
	s.custom[playerID] = sub
	p.HasAnswered = true
	return sub.ID, nil
}

func (s *Session) submitTextInput(playerID, questionID, text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, err := s.checkSubmissionLocked(playerID, questionID)
	if err != nil {
		return err
	}
	s.texts[playerID] = text
	p.HasAnswered = true
	return nil
}

func (s *Session) vote(playerID, questionID, answerID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.checkSubmissionLocked(playerID, questionID); err != nil {
		return err
	}
	if sub, ok := s.custom[playerID]; ok && sub.ID == answerID {
		return domain.ErrSelfVote
	}
	for _, a := range s.shuffled {
		if a.ID == answerID && a.PlayerID == playerID {
			return domain.ErrSelfVote
		}
	}
	s.votes[playerID] = answerID
	return nil
}

// everyoneLocked reports whether every named player has an entry in the given
// set of submissions. Unnamed players never count, and with zero named
// players the predicate is always false.
func (s *Session) everyoneLocked(has func(playerID string) bool) bool {
	named := 0
	for _, p := range s.players {
		if !p.Named() {
			continue
		}
		named++
		if !has(p.ID) {
			return false
		}
	}
	return named > 0
}

func (s *Session) everyoneAnswered() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.everyoneLocked(func(id string) bool {
		_, mc := s.answers[id]
		_, ord := s.orders[id]
		return mc || ord
	})
}

func (s *Session) everyoneSubmittedCustomAnswer() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.everyoneLocked(func(id string) bool {
		_, ok := s.custom[id]
		return ok
	})
}

func (s *Session) everyoneSubmittedTextInput() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.everyoneLocked(func(id string) bool {
		_, ok := s.texts[id]
		return ok
	})
}

func (s *Session) everyoneVoted() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.everyoneLocked(func(id string) bool {
		_, ok := s.votes[id]
		return ok
	})
}

// customAnswers pools all player submissions with the one true correct answer,
// shuffles the pool once and caches the attributed ordering for the lifetime
// of the current question. Repeat calls return the cached ordering; the
// returned copy has attribution stripped for the anonymous voting view.
func (s *Session) customAnswers(correctAnswerID, correctAnswerText string) ([]domain.CustomAnswer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != domain.StatePlaying {
		return nil, domain.ErrWrongGameState
	}
	if !s.shuffleDone {
		pool := make([]domain.CustomAnswer, 0, len(s.custom)+1)
		for playerID, sub := range s.custom {
			pool = append(pool, domain.CustomAnswer{ID: sub.ID, Text: sub.Text, PlayerID: playerID})
		}
		pool = append(pool, domain.CustomAnswer{ID: correctAnswerID, Text: correctAnswerText})
		s.rnd.Shuffle(len(pool), func(i, j int) {
			pool[i], pool[j] = pool[j], pool[i]
		})
		s.shuffled = pool
		s.shuffleDone = true
	}

	anonymous := make([]domain.CustomAnswer, len(s.shuffled))
	for i, a := range s.shuffled {
		anonymous[i] = domain.CustomAnswer{ID: a.ID, Text: a.Text}
	}
	return anonymous, nil
}

func (s *Session) processQuestionResult(questionID, correctAnswerID string) []domain.Player {
	s.mu.Lock()
	defer s.mu.Unlock()

	if questionID != s.currentQuestionID {
		return nil
	}
	for _, p := range s.players {
		if s.answers[p.ID] == correctAnswerID && correctAnswerID != "" {
			p.Score++
		}
		p.HasAnswered = false
	}
	return s.playersLocked()
}

// processCustomAnswerResult scores the voting round two ways in one pass:
// voters who picked the correct answer get one point, and every submission's
// author gets one point per vote their submission received, correct or not.
func (s *Session) processCustomAnswerResult(questionID, correctAnswerID string) ([]domain.Player, []domain.CustomAnswerResult) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if questionID != s.currentQuestionID {
		return nil, nil
	}

	votesFor := make(map[string]int)
	for _, answerID := range s.votes {
		votesFor[answerID]++
	}

	for _, p := range s.players {
		if s.votes[p.ID] == correctAnswerID && correctAnswerID != "" {
			p.Score++
		}
	}
	results := make([]domain.CustomAnswerResult, 0, len(s.shuffled))
	for _, a := range s.shuffled {
		if a.PlayerID != "" {
			if author, ok := s.playerLocked(a.PlayerID); ok {
				author.Score += votesFor[a.ID]
			}
		}
		results = append(results, domain.CustomAnswerResult{
			ID:       a.ID,
			Text:     a.Text,
			PlayerID: a.PlayerID,
			Votes:    votesFor[a.ID],
		})
	}
	return s.playersLocked(), results
}

func (s *Session) processTextInputResult(questionID string, correctAnswers []string) ([]domain.Player, []domain.TextAnswer) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if questionID != s.currentQuestionID {
		return nil, nil
	}

	accepted := make(map[string]struct{}, len(correctAnswers))
	for _, a := range correctAnswers {
		accepted[normalizeAnswer(a)] = struct{}{}
	}

	submissions := make([]domain.TextAnswer, 0, len(s.texts))
	for _, p := range s.players {
		raw, ok := s.texts[p.ID]
		if !ok {
			continue
		}
		_, correct := accepted[normalizeAnswer(raw)]
		if correct {
			p.Score++
		}
		submissions = append(submissions, domain.TextAnswer{PlayerID: p.ID, Text: raw, Correct: correct})
	}
	return s.playersLocked(), submissions
}

// processOrderResult awards partial credit: one point per item placed in its
// correct absolute position, never all-or-nothing.
func (s *Session) processOrderResult(questionID string, correctOrder []string) []domain.Player {
	s.mu.Lock()
	defer s.mu.Unlock()

	if questionID != s.currentQuestionID {
		return nil
	}
	for _, p := range s.players {
		order, ok := s.orders[p.ID]
		if !ok {
			continue
		}
		for i, item := range order {
			if i < len(correctOrder) && correctOrder[i] == item {
				p.Score++
			}
		}
	}
	return s.playersLocked()
}

func (s *Session) advance(questionID string) (domain.Lobby, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != domain.StatePlaying {
		return domain.Lobby{}, domain.ErrWrongGameState
	}
	s.questionIndex++
	s.currentQuestionID = questionID
	s.resetCollectionsLocked()
	for _, p := range s.players {
		p.HasAnswered = false
	}
	return s.snapshotLocked(), nil
}

// finish moves the lobby to its terminal state and returns the final ranking,
// sorted by score descending with ties keeping join order.
func (s *Session) finish() []domain.Player {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.state = domain.StateFinished
	ranking := s.playersLocked()
	sort.SliceStable(ranking, func(i, j int) bool {
		return ranking[i].Score > ranking[j].Score
	})
	return ranking
}

// removePlayer deletes the player and their current-question entries.
// It reports whether the session is now empty.
func (s *Session) removePlayer(playerID string) (domain.Lobby, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := -1
	for i, p := range s.players {
		if p.ID == playerID {
			idx = i
			break
		}
	}
	if idx < 0 {
		return domain.Lobby{}, false, domain.ErrPlayerNotFound
	}
	s.players = append(s.players[:idx], s.players[idx+1:]...)
	delete(s.answers, playerID)
	delete(s.orders, playerID)
	delete(s.custom, playerID)
	delete(s.votes, playerID)
	delete(s.texts, playerID)
	return s.snapshotLocked(), len(s.players) == 0, nil
}

// ID returns the lobby identifier this session belongs to.
func (s *Session) ID() string {
	return s.id
}

// Snapshot returns the current lobby record.
func (s *Session) Snapshot() domain.Lobby {
	return s.snapshot()
}

func (s *Session) snapshot() domain.Lobby {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

func (s *Session) snapshotLocked() domain.Lobby {
	return domain.Lobby{
		ID:                s.id,
		GameState:         s.state,
		Players:           s.playersLocked(),
		QuestionSetID:     s.questionSetID,
		QuestionIndex:     s.questionIndex,
		CurrentQuestionID: s.currentQuestionID,
		CreatedAt:         s.createdAt,
	}
}

func (s *Session) playersLocked() []domain.Player {
	players := make([]domain.Player, 0, len(s.players))
	for _, p := range s.players {
		players = append(players, *p)
	}
	return players
}

func normalizeAnswer(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
