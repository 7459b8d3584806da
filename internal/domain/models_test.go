package domain

import (
	"fmt"
	"testing"
)

func TestQuestionFilterMatches(t *testing.T) {
	q := QuestionSpec{UID: "q", GradeLevel: "CP", Discipline: "math", Themes: []string{"addition", "mental"}}
	cases := []struct {
		filter QuestionFilter
		want   bool
	}{
		{QuestionFilter{}, true},
		{QuestionFilter{GradeLevel: "CP"}, true},
		{QuestionFilter{GradeLevel: "CE1"}, false},
		{QuestionFilter{Discipline: "physics"}, false},
		{QuestionFilter{Themes: []string{"geometry", "mental"}}, true},
		{QuestionFilter{Themes: []string{"geometry"}}, false},
		{QuestionFilter{GradeLevel: "CP", Discipline: "math", Themes: []string{"addition"}}, true},
	}
	for _, tc := range cases {
		if got := tc.filter.Matches(q); got != tc.want {
			t.Fatalf("%+v.Matches = %v, want %v", tc.filter, got, tc.want)
		}
	}
}

func TestSessionCloneIsDeep(t *testing.T) {
	orig := PracticeSession{
		QuestionPool: []string{"a", "b"},
		CurrentQuestion: &QuestionSpec{
			UID:            "a",
			MultipleChoice: &MultipleChoiceAnswer{AnswerOptions: []string{"x"}, CorrectAnswers: []bool{true}},
		},
		Attempts:   []Attempt{{QuestionUID: "a", SelectedAnswers: []any{0}}},
		Statistics: PracticeStatistics{RetriedQuestions: []string{"a"}},
	}
	c := orig.Clone()
	c.QuestionPool[0] = "z"
	c.CurrentQuestion.MultipleChoice.CorrectAnswers[0] = false
	c.Attempts[0].SelectedAnswers[0] = 9
	c.Statistics.RetriedQuestions[0] = "z"

	if orig.QuestionPool[0] != "a" || !orig.CurrentQuestion.MultipleChoice.CorrectAnswers[0] ||
		orig.Attempts[0].SelectedAnswers[0] != 0 || orig.Statistics.RetriedQuestions[0] != "a" {
		t.Fatalf("clone shares memory with the original: %+v", orig)
	}
}

func TestPoolHelpers(t *testing.T) {
	s := PracticeSession{QuestionPool: []string{"a", "b"}, CurrentQuestionIndex: 1}
	if s.PoolExhausted() || !s.InPool("b") || s.InPool("c") {
		t.Fatalf("unexpected pool helpers for %+v", s)
	}
	s.CurrentQuestionIndex = 2
	if !s.PoolExhausted() {
		t.Fatalf("expected exhausted pool")
	}
}

func TestErrorCode(t *testing.T) {
	wrapped := fmt.Errorf("%w: q-1", ErrQuestionMismatch)
	if got := ErrorCode(wrapped); got != "question_mismatch" {
		t.Fatalf("expected question_mismatch, got %s", got)
	}
	if got := ErrorCode(fmt.Errorf("boom")); got != "internal" {
		t.Fatalf("expected internal, got %s", got)
	}
	if !EndReasonUserQuit.Valid() || EndReason("bored").Valid() {
		t.Fatalf("unexpected end reason validity")
	}
}
