package redis

import (
	"context"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/dralucard666/weihnachten-sub000/internal/domain"
	"github.com/dralucard666/weihnachten-sub000/internal/infra/memory"
	"github.com/redis/go-redis/v9"
)

func TestQuestionRepositoryCachesInRedis(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	defer mr.Close()

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})

	loader := &countingLoader{
		QuestionSetLoader: memory.NewStaticQuestionSetLoader(map[string]domain.QuestionSet{
			"set1": sampleSet(),
		}),
	}
	repo := NewQuestionRepository(client, loader, time.Minute)

	set, err := repo.GetQuestionSet(context.Background(), "set1")
	if err != nil {
		t.Fatalf("get set: %v", err)
	}
	if loader.calls != 1 {
		t.Fatalf("expected loader called once, got %d", loader.calls)
	}
	if len(set.Questions) != 2 || set.Questions[1].Type != domain.QuestionCustomAnswers {
		t.Fatalf("unexpected set: %+v", set)
	}

	// Second call should hit the redis cache, loader not incremented.
	cached, err := repo.GetQuestionSet(context.Background(), "set1")
	if err != nil {
		t.Fatalf("get set: %v", err)
	}
	if loader.calls != 1 {
		t.Fatalf("expected cache hit, loader calls=%d", loader.calls)
	}
	if cached.Questions[1].CorrectAnswer != "Canberra" {
		t.Fatalf("expected type payload to survive the cache, got %+v", cached.Questions[1])
	}
}

type countingLoader struct {
	memory.QuestionSetLoader
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
			{
				ID:            "q2",
				Type:          domain.QuestionCustomAnswers,
				Text:          "What is the capital of Australia?",
				CorrectAnswer: "Canberra",
			},
		},
	}
}
