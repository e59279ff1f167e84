package domain

import "time"

// GameState tracks the lifecycle of a lobby. Transitions are one-directional:
// lobby -> playing -> finished.
type GameState string

const (
	StateLobby    GameState = "lobby"
	StatePlaying  GameState = "playing"
	StateFinished GameState = "finished"
)

// Player is one participant in a lobby. A player with an empty Name has
// joined a socket but not committed to a display name yet; unnamed players
// are excluded from readiness checks and player counts.
type Player struct {
	ID          string `json:"id"`
	Name        string `json:"name,omitempty"`
	Score       int    `json:"score"`
	Connected   bool   `json:"connected"`
	HasAnswered bool   `json:"hasAnswered"`
}

// Named reports whether the player has completed name assignment.
func (p Player) Named() bool {
	return p.Name != ""
}

// Lobby is the wire and persistence view of one game session. Per-question
// answer and vote collections are deliberately not part of this record; they
// are never persisted and a restored lobby starts its current question with
// zero recorded answers.
type Lobby struct {
	ID                string    `json:"id"`
	GameState         GameState `json:"gameState"`
	Players           []Player  `json:"players"`
	QuestionSetID     string    `json:"questionSetId,omitempty"`
	QuestionIndex     int       `json:"questionIndex"`
	CurrentQuestionID string    `json:"currentQuestionId,omitempty"`
	CreatedAt         time.Time `json:"createdAt"`
}

// NamedPlayerCount counts players that are visible to readiness checks.
func (l Lobby) NamedPlayerCount() int {
	n := 0
	for _, p := range l.Players {
		if p.Named() {
			n++
		}
	}
	return n
}

// QuestionType discriminates the per-question payload and scoring rule.
type QuestionType string

const (
	QuestionMultipleChoice QuestionType = "multiple-choice"
	QuestionCustomAnswers  QuestionType = "custom-answers"
	QuestionTextInput      QuestionType = "text-input"
	QuestionOrder          QuestionType = "order"
)

// AnswerOption is a selectable option of a multiple-choice question.
type AnswerOption struct {
	ID      string `json:"id"`
	Text    string `json:"text"`
	Correct bool   `json:"correct"`
}

// Question is one ordered entry of a question set.
type Question struct {
	ID   string       `json:"id"`
	Type QuestionType `json:"type"`
	Text string       `json:"text"`

	// Options is set for multiple-choice questions.
	Options []AnswerOption `json:"options,omitempty"`
	// CorrectAnswer is the true answer pooled with player submissions in
	// custom-answers mode.
	CorrectAnswer string `json:"correctAnswer,omitempty"`
	// AcceptedAnswers lists the exact answers accepted for text-input
	// questions (matched after normalization).
	AcceptedAnswers []string `json:"acceptedAnswers,omitempty"`
	// OrderItems lists the items of an order question in their correct order.
	OrderItems []string `json:"orderItems,omitempty"`

	MediaURL string `json:"mediaUrl,omitempty"`
}

// QuestionSet is an ordered collection of questions driving one game.
type QuestionSet struct {
	ID        string     `json:"id"`
	Name      string     `json:"name,omitempty"`
	Questions []Question `json:"questions"`
}

// QuestionByID returns the question with the given ID.
func (s QuestionSet) QuestionByID(id string) (Question, bool) {
	for _, q := range s.Questions {
		if q.ID == id {
			return q, true
		}
	}
	return Question{}, false
}

// CustomAnswer is one entry of the shuffled answer pool in custom-answers
// mode. PlayerID is empty for the true correct answer and stripped from the
// anonymous voting view handed to players.
type CustomAnswer struct {
	ID       string `json:"id"`
	Text     string `json:"text"`
	PlayerID string `json:"playerId,omitempty"`
}

// CustomAnswerResult is the reveal view of one pooled answer: attribution
// restored and votes counted.
type CustomAnswerResult struct {
	ID       string `json:"id"`
	Text     string `json:"text"`
	PlayerID string `json:"playerId,omitempty"`
	Votes    int    `json:"votes"`
}

// TextAnswer reports one player's raw text-input submission and whether it
// matched an accepted answer.
type TextAnswer struct {
	PlayerID string `json:"playerId"`
	Text     string `json:"text"`
	Correct  bool   `json:"correct"`
}
