// Package stats aggregates practice attempts into PracticeStatistics.
//
// A question contributes to the correct/incorrect counters through its latest
// attempt only, while every attempt contributes to time totals. All derived
// ratios are recomputed from integer counters, so the result after any number
// of submissions equals a replay of the attempt log.
package stats

import "quiz-practice-service/internal/domain"

// ApplyAttempt folds a into s. previous is the latest earlier attempt for the
// same question, or nil when a is the first attempt for it.
func ApplyAttempt(s domain.PracticeStatistics, a domain.Attempt, previous *domain.Attempt) domain.PracticeStatistics {
	out := s
	out.RetriedQuestions = append([]string(nil), s.RetriedQuestions...)

	if previous == nil {
		out.QuestionsAttempted++
	} else if previous.IsCorrect {
		out.CorrectAnswers--
	} else {
		out.IncorrectAnswers--
	}
	if a.IsCorrect {
		out.CorrectAnswers++
	} else {
		out.IncorrectAnswers++
	}

	spent := a.TimeSpentMs
	if spent < 0 {
		spent = 0
	}
	out.TotalTimeSpent += spent
	out.TotalAttempts++

	if a.AttemptNumber > 1 && !contains(out.RetriedQuestions, a.QuestionUID) {
		out.RetriedQuestions = append(out.RetriedQuestions, a.QuestionUID)
	}

	return withRatios(out)
}

// Replay rebuilds statistics from an attempt log.
func Replay(attempts []domain.Attempt) domain.PracticeStatistics {
	t := NewTally()
	for _, a := range attempts {
		t.Apply(a)
	}
	return t.Statistics()
}

// Empty returns zero statistics with a non-nil retried list.
func Empty() domain.PracticeStatistics {
	return domain.PracticeStatistics{RetriedQuestions: []string{}}
}

// Tally caches the latest attempt per question so each Apply is O(1).
type Tally struct {
	latest map[string]domain.Attempt
	stats  domain.PracticeStatistics
}

func NewTally() *Tally {
	return &Tally{
		latest: make(map[string]domain.Attempt),
		stats:  Empty(),
	}
}

// Apply records a and returns the updated statistics.
func (t *Tally) Apply(a domain.Attempt) domain.PracticeStatistics {
	var previous *domain.Attempt
	if prev, ok := t.latest[a.QuestionUID]; ok {
		previous = &prev
	}
	t.stats = ApplyAttempt(t.stats, a, previous)
	t.latest[a.QuestionUID] = a
	return t.Statistics()
}

// Statistics returns a copy of the current aggregate.
func (t *Tally) Statistics() domain.PracticeStatistics {
	out := t.stats
	out.RetriedQuestions = append([]string{}, t.stats.RetriedQuestions...)
	return out
}

// Latest returns the most recent attempt recorded for uid.
func (t *Tally) Latest(uid string) (domain.Attempt, bool) {
	a, ok := t.latest[uid]
	return a, ok
}

func withRatios(s domain.PracticeStatistics) domain.PracticeStatistics {
	s.AccuracyPercentage = ratio(float64(s.CorrectAnswers), float64(s.QuestionsAttempted)) * 100
	s.AverageTimePerQuestion = ratio(float64(s.TotalTimeSpent), float64(s.TotalAttempts))
	return s
}

func ratio(num, den float64) float64 {
	if den == 0 {
		return 0
	}
	return num / den
}

func contains(list []string, v string) bool {
	for _, item := range list {
		if item == v {
			return true
		}
	}
	return false
}
