package redis

import (
	"context"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"wellbeing-checkin-service/internal/app"
	"wellbeing-checkin-service/internal/domain"
	"wellbeing-checkin-service/internal/infra/memory"
)

func TestQuestionCacheCachesInRedis(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	defer mr.Close()

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})

	upstream := &countingProvider{
		QuestionProvider: memory.NewStaticQuestionProvider(sampleQuestions()),
	}
	cache := NewQuestionCache(client, upstream, time.Minute)

	slots, err := cache.Questions(context.Background(), "emp-1")
	if err != nil {
		t.Fatalf("questions: %v", err)
	}
	if len(slots) != 3 {
		t.Fatalf("expected 3 slots, got %d", len(slots))
	}
	if upstream.calls != 1 {
		t.Fatalf("expected upstream called once, got %d", upstream.calls)
	}
	if !mr.Exists("checkin:questions:emp-1") {
		t.Fatalf("expected redis hash to be populated")
	}

	// Second call should hit the hash, upstream not incremented.
	slots, err = cache.Questions(context.Background(), "emp-1")
	if err != nil {
		t.Fatalf("questions 2: %v", err)
	}
	if upstream.calls != 1 {
		t.Fatalf("expected cache hit, upstream calls=%d", upstream.calls)
	}
	if slots[1].Type != domain.QuestionFeeling || slots[1].Order != 2 {
		t.Fatalf("cached slots lost canonical order: %+v", slots)
	}
}

func TestQuestionCacheSurvivesExpiry(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	defer mr.Close()

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	upstream := &countingProvider{
		QuestionProvider: memory.NewStaticQuestionProvider(sampleQuestions()),
	}
	cache := NewQuestionCache(client, upstream, time.Minute)

	if _, err := cache.Questions(context.Background(), "emp-1"); err != nil {
		t.Fatalf("questions: %v", err)
	}

	mr.FastForward(2 * time.Minute)

	if _, err := cache.Questions(context.Background(), "emp-1"); err != nil {
		t.Fatalf("questions after expiry: %v", err)
	}
	if upstream.calls != 2 {
		t.Fatalf("expected reload after TTL, upstream calls=%d", upstream.calls)
	}
}

type countingProvider struct {
	app.QuestionProvider
	calls int
}

func (p *countingProvider) Questions(ctx context.Context, employeeID string) ([]domain.QuestionSlot, error) {
	p.calls++
	return p.QuestionProvider.Questions(ctx, employeeID)
}

func sampleQuestions() map[domain.QuestionType]string {
	return map[domain.QuestionType]string{
		domain.QuestionFact:    "What did you finish today?",
		domain.QuestionFeeling: "How tired are you, 0 to 5?",
		domain.QuestionBarrier: "Anything in your way?",
	}
}
