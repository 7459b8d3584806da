package redis

import (
	"context"
	"encoding/json"
	"math/rand"
	"time"

	"quiz-practice-service/internal/app"
	"quiz-practice-service/internal/domain"
	"quiz-practice-service/internal/infra/memory"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"
)

// QuestionBank caches question content in Redis and falls back to a loader on cache miss.
// Filter results are stored as: SET practice:questions:{filterKey} <json []QuestionSpec>
// Single questions as:          SET practice:question:{uid}        <json QuestionSpec>
type QuestionBank struct {
	client *redis.Client
	loader memory.QuestionLoader
	ttl    time.Duration
	sf     singleflight.Group
}

func NewQuestionBank(client *redis.Client, loader memory.QuestionLoader, ttl time.Duration) *QuestionBank {
	return &QuestionBank{
		client: client,
		loader: loader,
		ttl:    ttl,
	}
}

func (b *QuestionBank) SelectQuestions(ctx context.Context, filter domain.QuestionFilter, count int, randomize bool, excludeUIDs []string) ([]domain.QuestionSpec, error) {
	if count <= 0 {
		return nil, nil
	}
	candidates, err := b.candidates(ctx, filter)
	if err != nil {
		return nil, err
	}
	return app.SelectFrom(candidates, count, randomize, excludeUIDs), nil
}

func (b *QuestionBank) FetchByUID(ctx context.Context, uid string) (domain.QuestionSpec, error) {
	key := b.questionKey(uid)
	var cached domain.QuestionSpec
	if b.getJSON(ctx, key, &cached) {
		return cached, nil
	}

	result, err, _ := b.sf.Do(key, func() (interface{}, error) {
		var cached domain.QuestionSpec
		if b.getJSON(ctx, key, &cached) {
			return cached, nil
		}
		q, err := b.loader.LoadQuestion(ctx, uid)
		if err != nil {
			return domain.QuestionSpec{}, err
		}
		if data, err := json.Marshal(q); err == nil {
			_ = b.client.Set(ctx, key, data, b.ttlWithJitter()).Err()
		}
		return q, nil
	})
	if err != nil {
		return domain.QuestionSpec{}, err
	}
	return result.(domain.QuestionSpec).Clone(), nil
}

func (b *QuestionBank) candidates(ctx context.Context, filter domain.QuestionFilter) ([]domain.QuestionSpec, error) {
	key := b.filterKey(filter)
	var cached []domain.QuestionSpec
	if b.getJSON(ctx, key, &cached) {
		return cached, nil
	}

	result, err, _ := b.sf.Do(key, func() (interface{}, error) {
		// Re-check cache in case another goroutine filled it.
		var cached []domain.QuestionSpec
		if b.getJSON(ctx, key, &cached) {
			return cached, nil
		}

		questions, err := b.loader.LoadQuestions(ctx, filter)
		if err != nil {
			return nil, err
		}

		ttl := b.ttlWithJitter()
		pipe := b.client.Pipeline()
		if data, err := json.Marshal(questions); err == nil {
			pipe.Set(ctx, key, data, ttl)
		}
		for _, q := range questions {
			if data, err := json.Marshal(q); err == nil {
				pipe.Set(ctx, b.questionKey(q.UID), data, ttl)
			}
		}
		_, _ = pipe.Exec(ctx)

		return questions, nil
	})
	if err != nil {
		return nil, err
	}
	return result.([]domain.QuestionSpec), nil
}

func (b *QuestionBank) getJSON(ctx context.Context, key string, dst any) bool {
	raw, err := b.client.Get(ctx, key).Bytes()
	if err != nil {
		return false
	}
	return json.Unmarshal(raw, dst) == nil
}

func (b *QuestionBank) filterKey(filter domain.QuestionFilter) string {
	return "practice:questions:" + memory.FilterKey(filter)
}

func (b *QuestionBank) questionKey(uid string) string {
	return "practice:question:" + uid
}

func (b *QuestionBank) ttlWithJitter() time.Duration {
	if b.ttl <= 0 {
		return 0
	}
	jitterMax := int64(b.ttl) / 10
	return b.ttl + time.Duration(rand.Int63n(jitterMax+1))
}
