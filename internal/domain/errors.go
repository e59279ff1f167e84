package domain

import "errors"

var (
	// ErrLobbyNotFound is returned when the referenced lobby does not exist.
	ErrLobbyNotFound = errors.New("lobby not found")
	// ErrPlayerNotFound is returned when the referenced player is not part of the lobby.
	ErrPlayerNotFound = errors.New("player not found in lobby")
	// ErrWrongGameState is returned when an operation is attempted against the wrong game state.
	ErrWrongGameState = errors.New("operation not allowed in current game state")
	// ErrStaleQuestion is returned when a request references a question that is no longer current.
	ErrStaleQuestion = errors.New("question is not the lobby's current question")
	// ErrSelfVote is returned when a player votes for their own custom-answer submission.
	ErrSelfVote = errors.New("players cannot vote for their own submission")
	// ErrQuestionSetNotFound indicates the question content could not be loaded.
	ErrQuestionSetNotFound = errors.New("question set not found")
	// ErrQuestionNotFound indicates a question ID is not part of the question set.
	ErrQuestionNotFound = errors.New("question not found")
)
