package redis

import (
	"context"
	"errors"
	"testing"
	"time"

	"quiz-practice-service/internal/app"
	"quiz-practice-service/internal/domain"
	"quiz-practice-service/internal/infra/memory"

	miniredis "github.com/alicebob/miniredis/v2"
)

func newPracticeService(store app.SessionRepository) *app.PracticeService {
	bank := memory.NewQuestionBank(memory.NewStaticQuestionLoader(sampleQuestions()), time.Minute)
	return app.NewPracticeService(store, bank)
}

func practiceSettings() domain.PracticeSettings {
	return domain.PracticeSettings{Discipline: "math", QuestionCount: 2, AllowRetry: true}
}

func TestSessionStorePersistsSnapshots(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	defer mr.Close()

	ctx := context.Background()
	client := newClient(mr)
	store := NewSessionStore(client, time.Minute, "")
	service := newPracticeService(store)

	session, err := service.CreateSession(ctx, "learner-1", practiceSettings())
	if err != nil {
		t.Fatalf("create session: %v", err)
	}
	key := "practice:session:" + session.SessionID
	if !mr.Exists(key) {
		t.Fatalf("expected redis key to be set")
	}
	if ttl := mr.TTL(key); ttl != time.Minute {
		t.Fatalf("expected ttl of a minute, got %v", ttl)
	}

	store.Delete(ctx, session.SessionID)
	if mr.Exists(key) {
		t.Fatalf("expected redis key to be removed")
	}
	if _, err := store.Get(ctx, session.SessionID); !errors.Is(err, domain.ErrSessionNotFound) {
		t.Fatalf("expected deleted session to stay gone, got %v", err)
	}
}

func TestSessionStoreRestoresFromRedis(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	defer mr.Close()

	ctx := context.Background()
	client := newClient(mr)
	first := newPracticeService(NewSessionStore(client, time.Minute, ""))

	session, err := first.CreateSession(ctx, "learner-1", practiceSettings())
	if err != nil {
		t.Fatalf("create session: %v", err)
	}
	served, err := first.GetNextQuestion(ctx, session.SessionID, false)
	if err != nil {
		t.Fatalf("next question: %v", err)
	}
	if _, err := first.SubmitAnswer(ctx, session.SessionID, served.CurrentQuestion.UID, []any{0}, 1200); err != nil {
		t.Fatalf("submit: %v", err)
	}

	// A second instance with an empty local map picks the session up from Redis.
	secondStore := NewSessionStore(client, time.Minute, "")
	second := newPracticeService(secondStore)

	state, err := second.GetSessionState(ctx, session.SessionID)
	if err != nil {
		t.Fatalf("state from second instance: %v", err)
	}
	if len(state.Attempts) != 1 || state.Statistics.IncorrectAnswers != 1 || state.Statistics.TotalTimeSpent != 1200 {
		t.Fatalf("unexpected restored state %+v", state.Statistics)
	}
	if len(secondStore.IDs()) != 1 {
		t.Fatalf("expected restored session in local map")
	}

	if _, err := second.RetryQuestion(ctx, session.SessionID, served.CurrentQuestion.UID); err != nil {
		t.Fatalf("retry: %v", err)
	}
	result, err := second.SubmitAnswer(ctx, session.SessionID, served.CurrentQuestion.UID, []any{1}, 800)
	if err != nil {
		t.Fatalf("resubmit: %v", err)
	}
	if result.Attempt.AttemptNumber != 2 || result.Session.Statistics.CorrectAnswers != 1 {
		t.Fatalf("expected retried attempt counted, got %+v", result.Session.Statistics)
	}

	if _, err := secondStore.Get(ctx, "unknown"); !errors.Is(err, domain.ErrSessionNotFound) {
		t.Fatalf("expected unknown session to be missing, got %v", err)
	}
}

func TestSessionStorePublishesEvents(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	defer mr.Close()

	ctx, cancelCtx := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancelCtx()

	store := NewSessionStore(newClient(mr), time.Minute, "practice:test-events")
	events, cancel, err := store.Events(ctx)
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	defer cancel()

	service := newPracticeService(store)
	session, err := service.CreateSession(ctx, "learner-1", practiceSettings())
	if err != nil {
		t.Fatalf("create session: %v", err)
	}
	if _, err := service.EndSession(ctx, session.SessionID, domain.EndReasonUserQuit); err != nil {
		t.Fatalf("end session: %v", err)
	}

	want := []domain.EventType{domain.EventCreated, domain.EventEnded}
	for _, typ := range want {
		select {
		case ev := <-events:
			if ev.Type != typ || ev.Session.SessionID != session.SessionID {
				t.Fatalf("expected %s for %s, got %s for %s", typ, session.SessionID, ev.Type, ev.Session.SessionID)
			}
		case <-ctx.Done():
			t.Fatalf("timed out waiting for %s", typ)
		}
	}
}

func TestSessionStoreSurfacesRedisFailures(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}

	ctx := context.Background()
	client := newClient(mr)
	first := newPracticeService(NewSessionStore(client, time.Minute, ""))
	session, err := first.CreateSession(ctx, "learner-1", practiceSettings())
	if err != nil {
		t.Fatalf("create session: %v", err)
	}

	second := newPracticeService(NewSessionStore(client, time.Minute, ""))
	mr.Close()

	_, err = second.GetSessionState(ctx, session.SessionID)
	if err == nil {
		t.Fatalf("expected an error with redis down")
	}
	if errors.Is(err, domain.ErrSessionNotFound) {
		t.Fatalf("redis failure reported as a missing session: %v", err)
	}
	if code := domain.ErrorCode(err); code != "internal" {
		t.Fatalf("expected internal error code, got %s", code)
	}
}

func TestSessionStoreKeepsDeletedSessionsGone(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	defer mr.Close()

	ctx := context.Background()
	store := NewSessionStore(newClient(mr), time.Minute, "")
	service := newPracticeService(store)
	session, err := service.CreateSession(ctx, "learner-1", practiceSettings())
	if err != nil {
		t.Fatalf("create session: %v", err)
	}
	key := "practice:session:" + session.SessionID
	snapshot, err := mr.Get(key)
	if err != nil {
		t.Fatalf("read snapshot: %v", err)
	}

	store.Delete(ctx, session.SessionID)
	// A snapshot read just before the delete is written back, as a racing
	// rehydration would see it.
	if err := mr.Set(key, snapshot); err != nil {
		t.Fatalf("restore snapshot: %v", err)
	}

	if _, err := service.GetSessionState(ctx, session.SessionID); !errors.Is(err, domain.ErrSessionNotFound) {
		t.Fatalf("expected evicted session to stay gone, got %v", err)
	}
	if len(store.IDs()) != 0 {
		t.Fatalf("expected no live sessions, got %v", store.IDs())
	}
}
