package memory

import (
	"context"
	"math/rand"
	"sort"
	"strings"
	"sync"
	"time"

	"quiz-practice-service/internal/app"
	"quiz-practice-service/internal/domain"

	"golang.org/x/sync/singleflight"
)

// QuestionLoader fetches question content from a backing store (file, Postgres).
type QuestionLoader interface {
	LoadQuestions(ctx context.Context, filter domain.QuestionFilter) ([]domain.QuestionSpec, error)
	LoadQuestion(ctx context.Context, uid string) (domain.QuestionSpec, error)
}

// QuestionBank caches loader results with a TTL to avoid repeated backing-store hits.
type QuestionBank struct {
	loader QuestionLoader
	ttl    time.Duration
	clock  func() time.Time
	sf     singleflight.Group

	mu        sync.RWMutex
	filters   map[string]cachedQuestions
	questions map[string]cachedQuestion
}

type cachedQuestions struct {
	questions []domain.QuestionSpec
	expiresAt time.Time
}

type cachedQuestion struct {
	question  domain.QuestionSpec
	expiresAt time.Time
}

func NewQuestionBank(loader QuestionLoader, ttl time.Duration) *QuestionBank {
	return &QuestionBank{
		loader:    loader,
		ttl:       ttl,
		clock:     time.Now,
		filters:   make(map[string]cachedQuestions),
		questions: make(map[string]cachedQuestion),
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
	now := b.clock()
	b.mu.RLock()
	if entry, ok := b.questions[uid]; ok && entry.expiresAt.After(now) {
		b.mu.RUnlock()
		return entry.question.Clone(), nil
	}
	b.mu.RUnlock()

	result, err, _ := b.sf.Do("uid:"+uid, func() (interface{}, error) {
		q, err := b.loader.LoadQuestion(ctx, uid)
		if err != nil {
			return domain.QuestionSpec{}, err
		}
		b.mu.Lock()
		b.questions[uid] = cachedQuestion{question: q, expiresAt: now.Add(b.ttlWithJitter())}
		b.mu.Unlock()
		return q, nil
	})
	if err != nil {
		return domain.QuestionSpec{}, err
	}
	return result.(domain.QuestionSpec).Clone(), nil
}

func (b *QuestionBank) candidates(ctx context.Context, filter domain.QuestionFilter) ([]domain.QuestionSpec, error) {
	key := FilterKey(filter)
	now := b.clock()

	b.mu.RLock()
	if entry, ok := b.filters[key]; ok && entry.expiresAt.After(now) {
		b.mu.RUnlock()
		return entry.questions, nil
	}
	b.mu.RUnlock()

	result, err, _ := b.sf.Do("filter:"+key, func() (interface{}, error) {
		now := b.clock()
		b.mu.RLock()
		if entry, ok := b.filters[key]; ok && entry.expiresAt.After(now) {
			b.mu.RUnlock()
			return entry.questions, nil
		}
		b.mu.RUnlock()

		questions, err := b.loader.LoadQuestions(ctx, filter)
		if err != nil {
			return nil, err
		}

		expiresAt := now.Add(b.ttlWithJitter())
		b.mu.Lock()
		b.filters[key] = cachedQuestions{questions: questions, expiresAt: expiresAt}
		for _, q := range questions {
			b.questions[q.UID] = cachedQuestion{question: q, expiresAt: expiresAt}
		}
		b.mu.Unlock()
		return questions, nil
	})
	if err != nil {
		return nil, err
	}
	return result.([]domain.QuestionSpec), nil
}

func (b *QuestionBank) ttlWithJitter() time.Duration {
	if b.ttl <= 0 {
		return 0
	}
	// add up to 10% jitter to spread expirations
	jitterMax := int64(b.ttl) / 10
	return b.ttl + time.Duration(rand.Int63n(jitterMax+1))
}

// FilterKey is a stable cache key for a filter; theme order does not matter.
func FilterKey(filter domain.QuestionFilter) string {
	themes := append([]string(nil), filter.Themes...)
	sort.Strings(themes)
	return filter.GradeLevel + "|" + filter.Discipline + "|" + strings.Join(themes, ",")
}

// StaticQuestionLoader serves questions from memory (tests, demos, YAML files).
type StaticQuestionLoader struct {
	questions []domain.QuestionSpec
}

func NewStaticQuestionLoader(questions []domain.QuestionSpec) *StaticQuestionLoader {
	return &StaticQuestionLoader{questions: questions}
}

func (l *StaticQuestionLoader) LoadQuestions(_ context.Context, filter domain.QuestionFilter) ([]domain.QuestionSpec, error) {
	out := make([]domain.QuestionSpec, 0, len(l.questions))
	for _, q := range l.questions {
		if filter.Matches(q) {
			out = append(out, q.Clone())
		}
	}
	return out, nil
}

func (l *StaticQuestionLoader) LoadQuestion(_ context.Context, uid string) (domain.QuestionSpec, error) {
	for _, q := range l.questions {
		if q.UID == uid {
			return q.Clone(), nil
		}
	}
	return domain.QuestionSpec{}, domain.ErrQuestionNotFound
}
