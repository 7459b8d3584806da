package stats

import (
	"math/rand"
	"reflect"
	"testing"

	"quiz-practice-service/internal/domain"
)

func attempt(uid string, number int, correct bool, spent int64) domain.Attempt {
	return domain.Attempt{QuestionUID: uid, AttemptNumber: number, IsCorrect: correct, TimeSpentMs: spent}
}

func TestEmptyStatisticsHaveNoNaN(t *testing.T) {
	s := Replay(nil)
	if s.AccuracyPercentage != 0 || s.AverageTimePerQuestion != 0 {
		t.Fatalf("expected zero ratios, got %+v", s)
	}
	if s.RetriedQuestions == nil {
		t.Fatalf("expected empty, non-nil retried list")
	}
}

func TestRetryCountsLatestAttemptOnly(t *testing.T) {
	s := Replay([]domain.Attempt{
		attempt("q1", 1, false, 1000),
		attempt("q1", 2, true, 500),
		attempt("q2", 1, false, 300),
	})

	if s.QuestionsAttempted != 2 {
		t.Fatalf("expected 2 questions attempted, got %d", s.QuestionsAttempted)
	}
	if s.CorrectAnswers != 1 || s.IncorrectAnswers != 1 {
		t.Fatalf("expected 1 correct / 1 incorrect, got %d / %d", s.CorrectAnswers, s.IncorrectAnswers)
	}
	if s.TotalTimeSpent != 1800 || s.TotalAttempts != 3 {
		t.Fatalf("expected 1800ms over 3 attempts, got %dms over %d", s.TotalTimeSpent, s.TotalAttempts)
	}
	if s.AverageTimePerQuestion != 600 {
		t.Fatalf("expected average 600, got %v", s.AverageTimePerQuestion)
	}
	if s.AccuracyPercentage != 50 {
		t.Fatalf("expected 50%% accuracy, got %v", s.AccuracyPercentage)
	}
	if !reflect.DeepEqual(s.RetriedQuestions, []string{"q1"}) {
		t.Fatalf("expected q1 retried, got %v", s.RetriedQuestions)
	}
}

func TestCorrectThenWrongRetryFlipsCounters(t *testing.T) {
	s := Replay([]domain.Attempt{
		attempt("q1", 1, true, 10),
		attempt("q1", 2, false, 10),
	})
	if s.CorrectAnswers != 0 || s.IncorrectAnswers != 1 || s.AccuracyPercentage != 0 {
		t.Fatalf("expected latest wrong attempt to count, got %+v", s)
	}
}

func TestNegativeTimeCountsAsZero(t *testing.T) {
	s := Replay([]domain.Attempt{attempt("q1", 1, true, -50)})
	if s.TotalTimeSpent != 0 {
		t.Fatalf("expected negative time ignored, got %d", s.TotalTimeSpent)
	}
}

func TestApplyAttemptDoesNotAliasInput(t *testing.T) {
	base := Replay([]domain.Attempt{attempt("q1", 1, false, 1), attempt("q1", 2, false, 1)})
	first := attempt("q2", 1, false, 1)
	_ = ApplyAttempt(base, attempt("q2", 2, true, 1), &first)
	if !reflect.DeepEqual(base.RetriedQuestions, []string{"q1"}) {
		t.Fatalf("input statistics were modified: %v", base.RetriedQuestions)
	}
}

// The tally and a full replay must agree after every submission, and the
// latest-attempt counters must always add up to the attempted questions.
func TestTallyMatchesReplay(t *testing.T) {
	rnd := rand.New(rand.NewSource(7))
	uids := []string{"a", "b", "c", "d", "e"}
	counts := map[string]int{}

	tally := NewTally()
	var log []domain.Attempt
	for i := 0; i < 500; i++ {
		uid := uids[rnd.Intn(len(uids))]
		counts[uid]++
		a := attempt(uid, counts[uid], rnd.Intn(2) == 0, int64(rnd.Intn(5000)))
		log = append(log, a)

		got := tally.Apply(a)
		want := Replay(log)
		if !reflect.DeepEqual(got, want) {
			t.Fatalf("step %d: tally %+v != replay %+v", i, got, want)
		}
		if got.CorrectAnswers+got.IncorrectAnswers != got.QuestionsAttempted {
			t.Fatalf("step %d: counters %d+%d != attempted %d", i, got.CorrectAnswers, got.IncorrectAnswers, got.QuestionsAttempted)
		}
	}

	latest, ok := tally.Latest("a")
	if !ok || latest.AttemptNumber != counts["a"] {
		t.Fatalf("expected latest attempt number %d for a, got %+v", counts["a"], latest)
	}
}
