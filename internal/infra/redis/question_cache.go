package redis

import (
	"context"
	"math/rand"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"

	"wellbeing-checkin-service/internal/app"
	"wellbeing-checkin-service/internal/domain"
)

// QuestionCache caches question provider output in Redis (hash per employee)
// and falls back to the upstream provider on cache miss.
// Questions are stored as: HSET checkin:questions:{employeeID} {type} {text}
type QuestionCache struct {
	client   *redis.Client
	upstream app.QuestionProvider
	ttl      time.Duration
	sf       singleflight.Group
	rnd      *rand.Rand
}

func NewQuestionCache(client *redis.Client, upstream app.QuestionProvider, ttl time.Duration) *QuestionCache {
	return &QuestionCache{
		client:   client,
		upstream: upstream,
		ttl:      ttl,
		rnd:      rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (c *QuestionCache) Questions(ctx context.Context, employeeID string) ([]domain.QuestionSlot, error) {
	key := c.key(employeeID)

	cached, err := c.client.HGetAll(ctx, key).Result()
	if err == nil && len(cached) > 0 {
		return slotsFromCache(cached), nil
	}

	result, err, _ := c.sf.Do(employeeID, func() (interface{}, error) {
		// Re-check cache in case another goroutine filled it.
		cached, err := c.client.HGetAll(ctx, key).Result()
		if err == nil && len(cached) > 0 {
			return slotsFromCache(cached), nil
		}

		slots, err := c.upstream.Questions(ctx, employeeID)
		if err != nil {
			return nil, err
		}

		if len(slots) > 0 {
			pipe := c.client.Pipeline()
			for _, slot := range slots {
				pipe.HSet(ctx, key, string(slot.Type), slot.Text)
			}
			if ttl := c.ttlWithJitter(); ttl > 0 {
				pipe.Expire(ctx, key, ttl)
			}
			_, _ = pipe.Exec(ctx)
		}
		return slots, nil
	})
	if err != nil {
		return nil, err
	}
	return result.([]domain.QuestionSlot), nil
}

func (c *QuestionCache) key(employeeID string) string {
	return "checkin:questions:" + employeeID
}

func slotsFromCache(cached map[string]string) []domain.QuestionSlot {
	slots := make([]domain.QuestionSlot, 0, len(cached))
	for i, qt := range domain.QuestionTypes {
		text, ok := cached[string(qt)]
		if !ok {
			continue
		}
		slots = append(slots, domain.QuestionSlot{Order: i + 1, Type: qt, Text: text})
	}
	return slots
}

func (c *QuestionCache) ttlWithJitter() time.Duration {
	if c.ttl <= 0 {
		return 0
	}
	jitterMax := int64(c.ttl) / 10
	return c.ttl + time.Duration(c.rnd.Int63n(jitterMax+1))
}
