package app

import (
	"sync"

	"quiz-practice-service/internal/domain"
	"quiz-practice-service/internal/stats"
)

// Session is the serialized execution context of one practice session.
// Every command holds mu for its whole duration, so commands against the
// same session never interleave.
type Session struct {
	mu          sync.Mutex
	state       domain.PracticeSession
	questions   map[string]domain.QuestionSpec
	tally       *stats.Tally
	evicted     bool
	subscribers map[chan domain.SessionEvent]struct{}
}

func newSession(state domain.PracticeSession, questions []domain.QuestionSpec) *Session {
	s := &Session{
		state:       state,
		questions:   make(map[string]domain.QuestionSpec, len(questions)),
		tally:       stats.NewTally(),
		subscribers: make(map[chan domain.SessionEvent]struct{}),
	}
	for _, q := range questions {
		s.questions[q.UID] = q.Clone()
	}
	return s
}

// RestoreSession rebuilds a session from a persisted snapshot. Statistics are
// replayed from the attempt log; question specs other than the current one are
// fetched from the question bank on demand.
func RestoreSession(snapshot domain.PracticeSession) *Session {
	state := snapshot.Clone()
	var known []domain.QuestionSpec
	if state.CurrentQuestion != nil {
		known = append(known, *state.CurrentQuestion)
	}
	s := newSession(state, known)
	for _, a := range state.Attempts {
		s.tally.Apply(a)
	}
	s.state.Statistics = s.tally.Statistics()
	if s.state.Attempts == nil {
		s.state.Attempts = []domain.Attempt{}
	}
	return s
}

// ID returns the session id. It never changes after creation.
func (s *Session) ID() string {
	return s.state.SessionID
}

// Snapshot returns a copy of the current state without evaluating expiry.
func (s *Session) Snapshot() domain.PracticeSession {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.Clone()
}

func (s *Session) snapshotLocked() domain.PracticeSession {
	return s.state.Clone()
}

func (s *Session) subscribe() (<-chan domain.SessionEvent, func()) {
	ch := make(chan domain.SessionEvent, 8)

	s.mu.Lock()
	if s.evicted {
		s.mu.Unlock()
		close(ch)
		return ch, func() {}
	}
	s.subscribers[ch] = struct{}{}
	ch <- domain.SessionEvent{Type: domain.EventSnapshot, Session: s.snapshotLocked()}
	s.mu.Unlock()

	cancel := func() {
		s.mu.Lock()
		if _, ok := s.subscribers[ch]; ok {
			delete(s.subscribers, ch)
			close(ch)
		}
		s.mu.Unlock()
	}
	return ch, cancel
}

func (s *Session) broadcastLocked(event domain.SessionEvent) {
	for ch := range s.subscribers {
		ev := event
		ev.Session = event.Session.Clone()
		select {
		case ch <- ev:
		default:
			// Slow subscriber: drop the oldest pending event so the latest state wins.
			select {
			case <-ch:
			default:
			}
			ch <- ev
		}
	}
}

func (s *Session) closeSubscribersLocked() {
	for ch := range s.subscribers {
		delete(s.subscribers, ch)
		close(ch)
	}
}
