package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"quiz-practice-service/internal/domain"
	"quiz-practice-service/internal/grading"
	"quiz-practice-service/internal/stats"

	"github.com/google/uuid"
)

// DefaultSessionTTL applies when no TTL option is given.
const DefaultSessionTTL = time.Hour

// SessionRepository abstracts where sessions live (in-memory, Redis, etc).
// It is the concurrency boundary: Get hands out the single *Session for an
// id, and commands serialize on that session's lock. Get returns
// domain.ErrSessionNotFound only when the session does not exist; backend
// failures come back as other errors.
type SessionRepository interface {
	Add(ctx context.Context, session *Session) error
	Get(ctx context.Context, sessionID string) (*Session, error)
	Delete(ctx context.Context, sessionID string)
	IDs() []string
	// Persist is called after every successful transition.
	Persist(ctx context.Context, event domain.SessionEvent) error
}

// QuestionBank serves question content. It is read-only and safe for
// concurrent use.
type QuestionBank interface {
	SelectQuestions(ctx context.Context, filter domain.QuestionFilter, count int, randomize bool, excludeUIDs []string) ([]domain.QuestionSpec, error)
	FetchByUID(ctx context.Context, uid string) (domain.QuestionSpec, error)
}

// Grader decides answer correctness.
type Grader interface {
	Grade(q domain.QuestionSpec, selected []any) bool
}

// PracticeService drives the practice session state machine.
type PracticeService struct {
	sessions         SessionRepository
	bank             QuestionBank
	grader           Grader
	logger           *slog.Logger
	now              func() time.Time
	newID            func() string
	ttl              time.Duration
	maxQuestionCount int
}

type Option func(*PracticeService)

// WithTTL sets how long a session lives after creation.
func WithTTL(ttl time.Duration) Option { return func(s *PracticeService) { s.ttl = ttl } }

// WithMaxQuestionCount caps settings.QuestionCount; zero means no cap.
func WithMaxQuestionCount(n int) Option {
	return func(s *PracticeService) { s.maxQuestionCount = n }
}

func WithClock(now func() time.Time) Option    { return func(s *PracticeService) { s.now = now } }
func WithIDGenerator(gen func() string) Option { return func(s *PracticeService) { s.newID = gen } }
func WithLogger(logger *slog.Logger) Option    { return func(s *PracticeService) { s.logger = logger } }
func WithGrader(g Grader) Option               { return func(s *PracticeService) { s.grader = g } }

func NewPracticeService(store SessionRepository, bank QuestionBank, opts ...Option) *PracticeService {
	s := &PracticeService{
		sessions: store,
		bank:     bank,
		grader:   grading.NewGrader(),
		logger:   slog.Default(),
		now:      time.Now,
		newID:    uuid.NewString,
		ttl:      DefaultSessionTTL,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// CreateSession selects a question pool and starts an active session.
// A pool shorter than requested is not an error; callers read its length.
func (s *PracticeService) CreateSession(ctx context.Context, userID string, settings domain.PracticeSettings) (domain.PracticeSession, error) {
	if err := s.validateSettings(userID, settings); err != nil {
		return domain.PracticeSession{}, err
	}

	questions, err := s.bank.SelectQuestions(ctx, settings.Filter(), settings.QuestionCount, settings.RandomizeQuestions, nil)
	if err != nil {
		return domain.PracticeSession{}, fmt.Errorf("select questions: %w", err)
	}
	questions = SelectFrom(questions, settings.QuestionCount, false, nil)
	if len(questions) == 0 {
		return domain.PracticeSession{}, domain.ErrEmptyPool
	}

	pool := make([]string, len(questions))
	for i, q := range questions {
		pool[i] = q.UID
	}
	settings.Themes = append([]string(nil), settings.Themes...)

	now := s.now()
	session := newSession(domain.PracticeSession{
		SessionID:    s.newID(),
		UserID:       userID,
		Settings:     settings,
		Status:       domain.StatusActive,
		QuestionPool: pool,
		Attempts:     []domain.Attempt{},
		Statistics:   stats.Empty(),
		CreatedAt:    now,
		ExpiresAt:    now.Add(s.ttl),
	}, questions)

	if err := s.sessions.Add(ctx, session); err != nil {
		return domain.PracticeSession{}, fmt.Errorf("store session: %w", err)
	}

	session.mu.Lock()
	snapshot := s.commitLocked(ctx, session, domain.EventCreated)
	session.mu.Unlock()

	if len(pool) < settings.QuestionCount {
		s.logger.Warn("question pool shorter than requested",
			"session_id", snapshot.SessionID, "requested", settings.QuestionCount, "pool_size", len(pool))
	}
	s.logger.Info("practice session created",
		"session_id", snapshot.SessionID, "user_id", userID, "pool_size", len(pool))
	return snapshot, nil
}

// GetNextQuestion serves the question at the current slot. The first call
// starts the session and serves index 0. Later calls advance the index when
// the current slot has been attempted or skipCurrent is set; otherwise the
// current slot is served again. Past the last entry CurrentQuestion is nil.
func (s *PracticeService) GetNextQuestion(ctx context.Context, sessionID string, skipCurrent bool) (domain.PracticeSession, error) {
	var snapshot domain.PracticeSession
	err := s.withSession(ctx, sessionID, func(session *Session) error {
		if err := s.ensureActiveLocked(ctx, session); err != nil {
			return err
		}
		st := &session.state

		index := st.CurrentQuestionIndex
		if st.StartedAt != nil && index < len(st.QuestionPool) {
			if _, attempted := session.tally.Latest(st.QuestionPool[index]); attempted || skipCurrent {
				index++
			}
		}

		var current *domain.QuestionSpec
		if index < len(st.QuestionPool) {
			q, err := s.questionLocked(ctx, session, st.QuestionPool[index])
			if err != nil {
				return err
			}
			current = &q
		}

		if st.StartedAt == nil {
			now := s.now()
			st.StartedAt = &now
		}
		st.CurrentQuestionIndex = index
		st.CurrentQuestion = current
		snapshot = s.commitLocked(ctx, session, domain.EventQuestionServed)
		return nil
	})
	return snapshot, err
}

// SubmitAnswer grades an answer for the current question and appends the attempt.
func (s *PracticeService) SubmitAnswer(ctx context.Context, sessionID, questionUID string, selected []any, timeSpentMs int64) (domain.SubmissionResult, error) {
	var result domain.SubmissionResult
	err := s.withSession(ctx, sessionID, func(session *Session) error {
		if err := s.ensureActiveLocked(ctx, session); err != nil {
			return err
		}
		st := &session.state
		if st.CurrentQuestion == nil || st.CurrentQuestion.UID != questionUID {
			return fmt.Errorf("%w: %s", domain.ErrQuestionMismatch, questionUID)
		}

		attemptNumber := 1
		if prev, ok := session.tally.Latest(questionUID); ok {
			attemptNumber = prev.AttemptNumber + 1
		}
		if attemptNumber > 1 && !st.Settings.AllowRetry {
			return domain.ErrRetryNotAllowed
		}
		if timeSpentMs < 0 {
			timeSpentMs = 0
		}

		question := *st.CurrentQuestion
		attempt := domain.Attempt{
			QuestionUID:     questionUID,
			SelectedAnswers: append([]any{}, selected...),
			IsCorrect:       s.grader.Grade(question, selected),
			SubmittedAt:     s.now(),
			TimeSpentMs:     timeSpentMs,
			AttemptNumber:   attemptNumber,
		}
		st.Attempts = append(st.Attempts, attempt)
		st.Statistics = session.tally.Apply(attempt)

		result.Attempt = attempt
		result.Attempt.SelectedAnswers = append([]any{}, attempt.SelectedAnswers...)
		if st.Settings.ShowImmediateFeedback {
			result.Feedback = feedbackFor(question)
		}
		result.Session = s.commitLocked(ctx, session, domain.EventAnswerSubmitted)
		return nil
	})
	return result, err
}

// RetryQuestion serves an already attempted question again without moving
// the pool index.
func (s *PracticeService) RetryQuestion(ctx context.Context, sessionID, questionUID string) (domain.PracticeSession, error) {
	var snapshot domain.PracticeSession
	err := s.withSession(ctx, sessionID, func(session *Session) error {
		if err := s.ensureActiveLocked(ctx, session); err != nil {
			return err
		}
		st := &session.state
		if !st.Settings.AllowRetry {
			return domain.ErrRetryNotAllowed
		}
		if _, ok := session.tally.Latest(questionUID); !ok || !st.InPool(questionUID) {
			return fmt.Errorf("%w: %s", domain.ErrQuestionNeverAttempted, questionUID)
		}
		q, err := s.questionLocked(ctx, session, questionUID)
		if err != nil {
			return err
		}
		st.CurrentQuestion = &q
		snapshot = s.commitLocked(ctx, session, domain.EventQuestionRetried)
		return nil
	})
	return snapshot, err
}

// EndSession moves an active session to its terminal state. Ending a session
// that already ended returns its snapshot unchanged.
func (s *PracticeService) EndSession(ctx context.Context, sessionID string, reason domain.EndReason) (domain.PracticeSession, error) {
	if !reason.Valid() {
		return domain.PracticeSession{}, fmt.Errorf("%w: unknown end reason %q", domain.ErrInvalidSettings, reason)
	}
	var snapshot domain.PracticeSession
	err := s.withSession(ctx, sessionID, func(session *Session) error {
		s.expireLocked(ctx, session)
		st := &session.state
		if st.Status != domain.StatusActive {
			snapshot = session.snapshotLocked()
			return nil
		}
		now := s.now()
		st.Status = domain.StatusAbandoned
		if reason == domain.EndReasonCompleted {
			st.Status = domain.StatusCompleted
		}
		st.EndReason = reason
		st.CompletedAt = &now
		snapshot = s.commitLocked(ctx, session, domain.EventEnded)
		s.logger.Info("practice session ended",
			"session_id", sessionID, "reason", string(reason), "attempts", len(st.Attempts))
		return nil
	})
	return snapshot, err
}

// GetSessionState returns the current snapshot, applying lazy expiry first.
func (s *PracticeService) GetSessionState(ctx context.Context, sessionID string) (domain.PracticeSession, error) {
	var snapshot domain.PracticeSession
	err := s.withSession(ctx, sessionID, func(session *Session) error {
		s.expireLocked(ctx, session)
		snapshot = session.snapshotLocked()
		return nil
	})
	return snapshot, err
}

// Subscribe returns a channel of transitions for one session, starting with a
// snapshot event. The channel closes when the session is evicted; callers must
// invoke cancel when done.
func (s *PracticeService) Subscribe(ctx context.Context, sessionID string) (<-chan domain.SessionEvent, func(), error) {
	session, err := s.sessions.Get(ctx, sessionID)
	if err != nil {
		return nil, nil, err
	}
	ch, cancel := session.subscribe()
	return ch, cancel, nil
}

func (s *PracticeService) validateSettings(userID string, settings domain.PracticeSettings) error {
	if userID == "" {
		return fmt.Errorf("%w: user id is required", domain.ErrInvalidSettings)
	}
	if settings.QuestionCount < 1 {
		return fmt.Errorf("%w: questionCount must be at least 1", domain.ErrInvalidSettings)
	}
	if s.maxQuestionCount > 0 && settings.QuestionCount > s.maxQuestionCount {
		return fmt.Errorf("%w: questionCount %d exceeds maximum %d",
			domain.ErrInvalidSettings, settings.QuestionCount, s.maxQuestionCount)
	}
	return nil
}

func (s *PracticeService) withSession(ctx context.Context, sessionID string, fn func(*Session) error) error {
	session, err := s.sessions.Get(ctx, sessionID)
	if err != nil {
		return err
	}
	session.mu.Lock()
	defer session.mu.Unlock()
	if session.evicted {
		return domain.ErrSessionNotFound
	}
	return fn(session)
}

func (s *PracticeService) ensureActiveLocked(ctx context.Context, session *Session) error {
	if s.expireLocked(ctx, session) {
		return domain.ErrSessionExpired
	}
	if session.state.Status != domain.StatusActive {
		return domain.ErrSessionNotActive
	}
	return nil
}

// expireLocked reports whether the session is past expiresAt and, if it was
// still active, abandons it with reason timeout.
func (s *PracticeService) expireLocked(ctx context.Context, session *Session) bool {
	now := s.now()
	st := &session.state
	if !now.After(st.ExpiresAt) {
		return false
	}
	if st.Status == domain.StatusActive {
		st.Status = domain.StatusAbandoned
		st.EndReason = domain.EndReasonTimeout
		st.CompletedAt = &now
		s.commitLocked(ctx, session, domain.EventExpired)
		s.logger.Info("practice session expired", "session_id", st.SessionID)
	}
	return true
}

func (s *PracticeService) questionLocked(ctx context.Context, session *Session, uid string) (domain.QuestionSpec, error) {
	if q, ok := session.questions[uid]; ok {
		return q.Clone(), nil
	}
	q, err := s.bank.FetchByUID(ctx, uid)
	if err != nil {
		return domain.QuestionSpec{}, fmt.Errorf("fetch question %s: %w", uid, err)
	}
	session.questions[uid] = q.Clone()
	return q, nil
}

func (s *PracticeService) commitLocked(ctx context.Context, session *Session, eventType domain.EventType) domain.PracticeSession {
	event := domain.SessionEvent{Type: eventType, At: s.now(), Session: session.snapshotLocked()}
	if err := s.sessions.Persist(ctx, event); err != nil {
		s.logger.Warn("persist session failed",
			"session_id", session.state.SessionID, "event", string(eventType), "error", err)
	}
	session.broadcastLocked(event)
	return session.snapshotLocked()
}

func feedbackFor(q domain.QuestionSpec) *domain.AnswerFeedback {
	switch {
	case q.MultipleChoice != nil:
		return &domain.AnswerFeedback{CorrectOptions: grading.CorrectOptions(q.MultipleChoice)}
	case q.Numeric != nil:
		answer := q.Numeric.CorrectAnswer
		return &domain.AnswerFeedback{CorrectAnswer: &answer, Tolerance: q.Numeric.Tolerance, Unit: q.Numeric.Unit}
	}
	return nil
}
