package domain

import "time"

// QuestionType selects the grading strategy for a question.
type QuestionType string

const (
	QuestionTypeMultipleChoice QuestionType = "multiple_choice"
	QuestionTypeNumeric        QuestionType = "numeric"
)

// SessionStatus is the lifecycle state of a practice session.
type SessionStatus string

const (
	StatusActive    SessionStatus = "active"
	StatusCompleted SessionStatus = "completed"
	StatusAbandoned SessionStatus = "abandoned"
)

// EndReason explains why a session left the active state.
type EndReason string

const (
	EndReasonCompleted EndReason = "completed"
	EndReasonUserQuit  EndReason = "user_quit"
	EndReasonTimeout   EndReason = "timeout"
)

// Valid reports whether r is one of the known end reasons.
func (r EndReason) Valid() bool {
	switch r {
	case EndReasonCompleted, EndReasonUserQuit, EndReasonTimeout:
		return true
	}
	return false
}

// PracticeSettings is fixed for the lifetime of a session.
type PracticeSettings struct {
	GradeLevel            string   `json:"gradeLevel" yaml:"gradeLevel"`
	Discipline            string   `json:"discipline" yaml:"discipline"`
	Themes                []string `json:"themes" yaml:"themes"`
	QuestionCount         int      `json:"questionCount" yaml:"questionCount"`
	ShowImmediateFeedback bool     `json:"showImmediateFeedback" yaml:"showImmediateFeedback"`
	AllowRetry            bool     `json:"allowRetry" yaml:"allowRetry"`
	RandomizeQuestions    bool     `json:"randomizeQuestions" yaml:"randomizeQuestions"`
}

// Filter returns the question bank filter implied by the settings.
func (s PracticeSettings) Filter() QuestionFilter {
	return QuestionFilter{GradeLevel: s.GradeLevel, Discipline: s.Discipline, Themes: s.Themes}
}

// MultipleChoiceAnswer holds options and a parallel slice of correctness flags.
type MultipleChoiceAnswer struct {
	AnswerOptions  []string `json:"answerOptions" yaml:"answerOptions"`
	CorrectAnswers []bool   `json:"correctAnswers" yaml:"correctAnswers"`
}

// NumericAnswer is graded by absolute tolerance. Unit is informational.
type NumericAnswer struct {
	CorrectAnswer float64 `json:"correctAnswer" yaml:"correctAnswer"`
	Tolerance     float64 `json:"tolerance,omitempty" yaml:"tolerance"`
	Unit          string  `json:"unit,omitempty" yaml:"unit"`
}

// QuestionSpec is a question as served by the question bank.
type QuestionSpec struct {
	UID          string       `json:"uid" yaml:"uid"`
	Title        string       `json:"title" yaml:"title"`
	Text         string       `json:"text" yaml:"text"`
	QuestionType QuestionType `json:"questionType" yaml:"questionType"`
	TimeLimit    int          `json:"timeLimit" yaml:"timeLimit"` // seconds
	GradeLevel   string       `json:"gradeLevel" yaml:"gradeLevel"`
	Discipline   string       `json:"discipline" yaml:"discipline"`
	Themes       []string     `json:"themes" yaml:"themes"`

	MultipleChoice *MultipleChoiceAnswer `json:"multipleChoiceAnswer,omitempty" yaml:"multipleChoiceAnswer"`
	Numeric        *NumericAnswer        `json:"numericAnswer,omitempty" yaml:"numericAnswer"`
}

// QuestionFilter narrows the question bank. Empty fields match everything;
// a question matches Themes when it shares at least one theme.
type QuestionFilter struct {
	GradeLevel string   `json:"gradeLevel"`
	Discipline string   `json:"discipline"`
	Themes     []string `json:"themes"`
}

// Matches reports whether q satisfies the filter.
func (f QuestionFilter) Matches(q QuestionSpec) bool {
	if f.GradeLevel != "" && q.GradeLevel != f.GradeLevel {
		return false
	}
	if f.Discipline != "" && q.Discipline != f.Discipline {
		return false
	}
	if len(f.Themes) == 0 {
		return true
	}
	for _, want := range f.Themes {
		for _, have := range q.Themes {
			if want == have {
				return true
			}
		}
	}
	return false
}

// Attempt is one graded submission. Attempts are never mutated once appended.
type Attempt struct {
	QuestionUID     string    `json:"questionUid"`
	SelectedAnswers []any     `json:"selectedAnswers"`
	IsCorrect       bool      `json:"isCorrect"`
	SubmittedAt     time.Time `json:"submittedAt"`
	TimeSpentMs     int64     `json:"timeSpentMs"`
	AttemptNumber   int       `json:"attemptNumber"`
}

// PracticeStatistics is derived from the attempt log.
type PracticeStatistics struct {
	QuestionsAttempted     int      `json:"questionsAttempted"`
	CorrectAnswers         int      `json:"correctAnswers"`
	IncorrectAnswers       int      `json:"incorrectAnswers"`
	AccuracyPercentage     float64  `json:"accuracyPercentage"`
	AverageTimePerQuestion float64  `json:"averageTimePerQuestion"`
	TotalTimeSpent         int64    `json:"totalTimeSpent"`
	TotalAttempts          int      `json:"totalAttempts"`
	RetriedQuestions       []string `json:"retriedQuestions"`
}

// PracticeSession is one learner's run through a fixed question pool.
type PracticeSession struct {
	SessionID            string             `json:"sessionId"`
	UserID               string             `json:"userId"`
	Settings             PracticeSettings   `json:"settings"`
	Status               SessionStatus      `json:"status"`
	EndReason            EndReason          `json:"endReason,omitempty"`
	QuestionPool         []string           `json:"questionPool"`
	CurrentQuestionIndex int                `json:"currentQuestionIndex"`
	CurrentQuestion      *QuestionSpec      `json:"currentQuestion,omitempty"`
	Attempts             []Attempt          `json:"attempts"`
	Statistics           PracticeStatistics `json:"statistics"`
	CreatedAt            time.Time          `json:"createdAt"`
	StartedAt            *time.Time         `json:"startedAt,omitempty"`
	CompletedAt          *time.Time         `json:"completedAt,omitempty"`
	ExpiresAt            time.Time          `json:"expiresAt"`
}

// PoolExhausted reports whether every pool entry has been served.
func (s PracticeSession) PoolExhausted() bool {
	return s.CurrentQuestionIndex >= len(s.QuestionPool)
}

// InPool reports whether uid belongs to the question pool.
func (s PracticeSession) InPool(uid string) bool {
	for _, candidate := range s.QuestionPool {
		if candidate == uid {
			return true
		}
	}
	return false
}

// Clone returns a deep copy safe to hand to other goroutines.
func (s PracticeSession) Clone() PracticeSession {
	out := s
	out.Settings.Themes = append([]string(nil), s.Settings.Themes...)
	out.QuestionPool = append([]string(nil), s.QuestionPool...)
	if s.CurrentQuestion != nil {
		q := s.CurrentQuestion.Clone()
		out.CurrentQuestion = &q
	}
	out.Attempts = make([]Attempt, len(s.Attempts))
	for i, a := range s.Attempts {
		a.SelectedAnswers = append([]any(nil), a.SelectedAnswers...)
		out.Attempts[i] = a
	}
	out.Statistics.RetriedQuestions = append([]string(nil), s.Statistics.RetriedQuestions...)
	if s.StartedAt != nil {
		t := *s.StartedAt
		out.StartedAt = &t
	}
	if s.CompletedAt != nil {
		t := *s.CompletedAt
		out.CompletedAt = &t
	}
	return out
}

// Clone returns a deep copy of the question.
func (q QuestionSpec) Clone() QuestionSpec {
	out := q
	out.Themes = append([]string(nil), q.Themes...)
	if q.MultipleChoice != nil {
		mc := MultipleChoiceAnswer{
			AnswerOptions:  append([]string(nil), q.MultipleChoice.AnswerOptions...),
			CorrectAnswers: append([]bool(nil), q.MultipleChoice.CorrectAnswers...),
		}
		out.MultipleChoice = &mc
	}
	if q.Numeric != nil {
		n := *q.Numeric
		out.Numeric = &n
	}
	return out
}

// AnswerFeedback reveals the answer key after a submission when the
// session was created with ShowImmediateFeedback.
type AnswerFeedback struct {
	CorrectOptions []int    `json:"correctOptions,omitempty"`
	CorrectAnswer  *float64 `json:"correctAnswer,omitempty"`
	Tolerance      float64  `json:"tolerance,omitempty"`
	Unit           string   `json:"unit,omitempty"`
}

// SubmissionResult is returned by SubmitAnswer.
type SubmissionResult struct {
	Attempt  Attempt         `json:"attempt"`
	Feedback *AnswerFeedback `json:"feedback,omitempty"`
	Session  PracticeSession `json:"session"`
}

// EventType names a session transition.
type EventType string

const (
	EventSnapshot        EventType = "snapshot" // initial state sent to a new subscriber
	EventCreated         EventType = "created"
	EventQuestionServed  EventType = "question_served"
	EventAnswerSubmitted EventType = "answer_submitted"
	EventQuestionRetried EventType = "question_retried"
	EventEnded           EventType = "ended"
	EventExpired         EventType = "expired"
)

// SessionEvent is published after every successful state transition.
type SessionEvent struct {
	Type    EventType       `json:"type"`
	At      time.Time       `json:"at"`
	Session PracticeSession `json:"session"`
}
