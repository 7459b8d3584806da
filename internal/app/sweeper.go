package app

import (
	"context"
	"time"
)

// SweepExpired evicts every session whose expiresAt has passed, whatever its
// status. Each eviction holds the session's lock, so it never overlaps a
// command on that session; later commands see ErrSessionNotFound.
func (s *PracticeService) SweepExpired(ctx context.Context) int {
	now := s.now()
	evicted := 0
	for _, id := range s.sessions.IDs() {
		session, err := s.sessions.Get(ctx, id)
		if err != nil {
			continue
		}
		session.mu.Lock()
		if !session.evicted && now.After(session.state.ExpiresAt) {
			session.evicted = true
			session.closeSubscribersLocked()
			s.sessions.Delete(ctx, id)
			evicted++
		}
		session.mu.Unlock()
	}
	if evicted > 0 {
		s.logger.Info("expired practice sessions evicted", "count", evicted)
	}
	return evicted
}

// RunSweeper calls SweepExpired every interval until ctx is done.
func (s *PracticeService) RunSweeper(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		<-ctx.Done()
		return nil
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			s.SweepExpired(ctx)
		}
	}
}
