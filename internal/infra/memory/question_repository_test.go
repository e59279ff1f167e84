package memory

import (
	"context"
	"testing"
	"time"

	"github.com/dralucard666/weihnachten-sub000/internal/domain"
)

func TestQuestionRepositoryCaches(t *testing.T) {
	loader := &countingLoader{
		QuestionSetLoader: NewStaticQuestionSetLoader(map[string]domain.QuestionSet{
			"set1": sampleSet(),
		}),
	}
	repo := NewQuestionRepository(loader, time.Minute)

	if _, err := repo.GetQuestionSet(context.Background(), "set1"); err != nil {
		t.Fatalf("get set: %v", err)
	}
	if loader.calls != 1 {
		t.Fatalf("expected loader called once, got %d", loader.calls)
	}

	// Second call should hit cache, loader not incremented.
	if _, err := repo.GetQuestionSet(context.Background(), "set1"); err != nil {
		t.Fatalf("get set: %v", err)
	}
	if loader.calls != 1 {
		t.Fatalf("expected cache hit, loader calls=%d", loader.calls)
	}
}

func TestStaticLoaderUnknownSet(t *testing.T) {
	loader := NewStaticQuestionSetLoader(nil)
	if _, err := loader.LoadQuestionSet(context.Background(), "missing"); err != domain.ErrQuestionSetNotFound {
		t.Fatalf("expected not-found, got %v", err)
	}
}

type countingLoader struct {
	QuestionSetLoader
	calls int
}

func (l *countingLoader) LoadQuestionSet(ctx context.Context, setID string) (domain.QuestionSet, error) {
	l.calls++
	return l.QuestionSetLoader.LoadQuestionSet(ctx, setID)
}

func sampleSet() domain.QuestionSet {
	return domain.QuestionSet{
		ID: "set1",
		Questions: []domain.Question{
			{
				ID:   "q1",
				Type: domain.QuestionMultipleChoice,
				Text: "What is 2 + 2?",
				Options: []domain.AnswerOption{
					{ID: "o1", Text: "3"},
					{ID: "o2", Text: "4", Correct: true},
				},
			},
		},
	}
}
