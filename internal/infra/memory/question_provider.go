package memory

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"wellbeing-checkin-service/internal/app"
	"wellbeing-checkin-service/internal/domain"
)

// StaticQuestionProvider serves a fixed text per question type (useful for
// tests/demos and as the no-Postgres fallback). Empty slots are simply
// omitted; the service substitutes its built-in defaults.
type StaticQuestionProvider struct {
	questions map[domain.QuestionType]string
}

func NewStaticQuestionProvider(questions map[domain.QuestionType]string) *StaticQuestionProvider {
	return &StaticQuestionProvider{questions: questions}
}

func (p *StaticQuestionProvider) Questions(_ context.Context, _ string) ([]domain.QuestionSlot, error) {
	slots := make([]domain.QuestionSlot, 0, len(domain.QuestionTypes))
	for i, qt := range domain.QuestionTypes {
		text, ok := p.questions[qt]
		if !ok {
			continue
		}
		slots = append(slots, domain.QuestionSlot{Order: i + 1, Type: qt, Text: text})
	}
	return slots, nil
}

// CachedQuestionProvider caches provider output per employee with TTL to
// avoid hitting an expensive upstream (the AI text service) on every trigger.
type CachedQuestionProvider struct {
	upstream app.QuestionProvider
	ttl      time.Duration
	clock    func() time.Time
	sf       singleflight.Group
	rnd      *rand.Rand

	mu    sync.RWMutex
	cache map[string]cachedSlots
}

type cachedSlots struct {
	slots     []domain.QuestionSlot
	expiresAt time.Time
}

func NewCachedQuestionProvider(upstream app.QuestionProvider, ttl time.Duration) *CachedQuestionProvider {
	return &CachedQuestionProvider{
		upstream: upstream,
		ttl:      ttl,
		clock:    time.Now,
		rnd:      rand.New(rand.NewSource(time.Now().UnixNano())),
		cache:    make(map[string]cachedSlots),
	}
}

func (p *CachedQuestionProvider) Questions(ctx context.Context, employeeID string) ([]domain.QuestionSlot, error) {
	now := p.clock()

	p.mu.RLock()
	if entry, ok := p.cache[employeeID]; ok && entry.expiresAt.After(now) {
		p.mu.RUnlock()
		return entry.slots, nil
	}
	p.mu.RUnlock()

	result, err, _ := p.sf.Do(employeeID, func() (interface{}, error) {
		now := p.clock()
		p.mu.RLock()
		if entry, ok := p.cache[employeeID]; ok && entry.expiresAt.After(now) {
			p.mu.RUnlock()
			return entry.slots, nil
		}
		p.mu.RUnlock()

		slots, err := p.upstream.Questions(ctx, employeeID)
		if err != nil {
			return nil, err
		}

		p.mu.Lock()
		p.cache[employeeID] = cachedSlots{
			slots:     slots,
			expiresAt: now.Add(p.ttlWithJitter()),
		}
		p.mu.Unlock()
		return slots, nil
	})
	if err != nil {
		return nil, err
	}
	return result.([]domain.QuestionSlot), nil
}

func (p *CachedQuestionProvider) ttlWithJitter() time.Duration {
	if p.ttl <= 0 {
		return 0
	}
	// add up to 10% jitter to spread expirations
	jitterMax := int64(p.ttl) / 10
	return p.ttl + time.Duration(p.rnd.Int63n(jitterMax+1))
}
