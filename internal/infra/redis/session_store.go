package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"quiz-practice-service/internal/app"
	"quiz-practice-service/internal/domain"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"
)

// DefaultEventChannel is the pub/sub channel session events are published on.
const DefaultEventChannel = "practice:events"

// SessionStore is a Redis-aware implementation of app.SessionRepository.
// Notes:
//   - Live sessions stay in a local map; the map entry is the execution
//     context commands serialize on.
//   - Every transition writes a JSON snapshot (SET practice:session:{id})
//     and publishes the event, so other instances and read-side caches can follow.
//   - An id missing locally but present in Redis is rehydrated once.
//   - Deleted ids are remembered for the snapshot TTL so a load racing the
//     delete cannot bring an evicted session back.
type SessionStore struct {
	client  *redis.Client
	ttl     time.Duration
	channel string
	clock   func() time.Time
	sf      singleflight.Group

	mu       sync.RWMutex
	sessions map[string]*app.Session
	deleted  map[string]time.Time
}

func NewSessionStore(client *redis.Client, ttl time.Duration, channel string) *SessionStore {
	if channel == "" {
		channel = DefaultEventChannel
	}
	return &SessionStore{
		client:   client,
		ttl:      ttl,
		channel:  channel,
		clock:    time.Now,
		sessions: make(map[string]*app.Session),
		deleted:  make(map[string]time.Time),
	}
}

func (s *SessionStore) Add(_ context.Context, session *app.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[session.ID()] = session
	delete(s.deleted, session.ID())
	return nil
}

// Get returns the live session, rehydrating it from Redis when this process
// has not seen it. A missing snapshot is domain.ErrSessionNotFound; Redis
// failures are returned as they are.
func (s *SessionStore) Get(ctx context.Context, sessionID string) (*app.Session, error) {
	s.mu.RLock()
	session, ok := s.sessions[sessionID]
	_, gone := s.deleted[sessionID]
	s.mu.RUnlock()
	if ok {
		return session, nil
	}
	if gone {
		return nil, domain.ErrSessionNotFound
	}

	result, err, _ := s.sf.Do(sessionID, func() (interface{}, error) {
		snapshot, err := s.load(ctx, sessionID)
		if err != nil {
			return nil, err
		}
		restored := app.RestoreSession(snapshot)

		s.mu.Lock()
		defer s.mu.Unlock()
		if existing, ok := s.sessions[sessionID]; ok {
			return existing, nil
		}
		if _, gone := s.deleted[sessionID]; gone {
			return nil, domain.ErrSessionNotFound
		}
		s.sessions[sessionID] = restored
		return restored, nil
	})
	if err != nil {
		return nil, err
	}
	return result.(*app.Session), nil
}

func (s *SessionStore) Delete(ctx context.Context, sessionID string) {
	now := s.clock()
	s.mu.Lock()
	delete(s.sessions, sessionID)
	s.deleted[sessionID] = now
	for id, at := range s.deleted {
		if now.Sub(at) > s.tombstoneTTL() {
			delete(s.deleted, id)
		}
	}
	s.mu.Unlock()
	_ = s.client.Del(ctx, s.key(sessionID)).Err()
}

func (s *SessionStore) IDs() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := make([]string, 0, len(s.sessions))
	for id := range s.sessions {
		ids = append(ids, id)
	}
	return ids
}

// Persist stores the snapshot and publishes the event in one pipeline.
func (s *SessionStore) Persist(ctx context.Context, event domain.SessionEvent) error {
	snapshot, err := json.Marshal(event.Session)
	if err != nil {
		return fmt.Errorf("marshal session: %w", err)
	}
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	pipe := s.client.TxPipeline()
	pipe.Set(ctx, s.key(event.Session.SessionID), snapshot, s.ttl)
	pipe.Publish(ctx, s.channel, payload)
	_, err = pipe.Exec(ctx)
	return err
}

// Events subscribes to session events published by any instance.
// The returned channel closes once cancel is called or ctx ends.
func (s *SessionStore) Events(ctx context.Context) (<-chan domain.SessionEvent, func(), error) {
	sub := s.client.Subscribe(ctx, s.channel)
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return nil, nil, err
	}

	out := make(chan domain.SessionEvent, 16)
	go func() {
		defer close(out)
		for msg := range sub.Channel() {
			var event domain.SessionEvent
			if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
				continue
			}
			select {
			case out <- event:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, func() { _ = sub.Close() }, nil
}

func (s *SessionStore) load(ctx context.Context, sessionID string) (domain.PracticeSession, error) {
	raw, err := s.client.Get(ctx, s.key(sessionID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return domain.PracticeSession{}, domain.ErrSessionNotFound
	}
	if err != nil {
		return domain.PracticeSession{}, fmt.Errorf("load session %s: %w", sessionID, err)
	}
	var snapshot domain.PracticeSession
	if err := json.Unmarshal(raw, &snapshot); err != nil {
		return domain.PracticeSession{}, fmt.Errorf("unmarshal session: %w", err)
	}
	return snapshot, nil
}

// tombstoneTTL is how long a deleted id is remembered: as long as its
// snapshot could still be sitting in Redis.
func (s *SessionStore) tombstoneTTL() time.Duration {
	if s.ttl <= 0 {
		return time.Hour
	}
	return s.ttl
}

func (s *SessionStore) key(sessionID string) string {
	return "practice:session:" + sessionID
}
