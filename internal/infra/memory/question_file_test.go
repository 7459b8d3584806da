package memory

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"quiz-practice-service/internal/domain"
)

func writeQuestionFile(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "questions.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write file: %v", err)
	}
	return path
}

func TestLoadQuestionFile(t *testing.T) {
	path := writeQuestionFile(t, `
questions:
  - uid: add-1
    title: Addition
    text: "1 + 2 = ?"
    questionType: multiple_choice
    timeLimit: 30
    gradeLevel: CP
    discipline: math
    themes: [addition]
    multipleChoiceAnswer:
      answerOptions: ["2", "3", "4"]
      correctAnswers: [false, true, false]
  - uid: g-1
    questionType: numeric
    discipline: physics
    numericAnswer:
      correctAnswer: 9.81
      tolerance: 0.05
      unit: m/s^2
`)
	questions, err := LoadQuestionFile(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(questions) != 2 {
		t.Fatalf("expected 2 questions, got %d", len(questions))
	}
	if questions[0].QuestionType != domain.QuestionTypeMultipleChoice || !questions[0].MultipleChoice.CorrectAnswers[1] {
		t.Fatalf("unexpected first question %+v", questions[0])
	}
	if n := questions[1].Numeric; n == nil || n.CorrectAnswer != 9.81 || n.Unit != "m/s^2" {
		t.Fatalf("unexpected numeric answer %+v", n)
	}
}

func TestLoadQuestionFileRejectsInvalid(t *testing.T) {
	cases := map[string]struct {
		body string
		want string
	}{
		"duplicate uid": {`
questions:
  - {uid: a, questionType: numeric, numericAnswer: {correctAnswer: 1}}
  - {uid: a, questionType: numeric, numericAnswer: {correctAnswer: 2}}
`, "duplicate uid"},
		"missing uid": {`
questions:
  - {questionType: numeric, numericAnswer: {correctAnswer: 1}}
`, "missing uid"},
		"unknown type": {`
questions:
  - {uid: a, questionType: essay}
`, "unknown questionType"},
		"mismatched options": {`
questions:
  - uid: a
    questionType: multiple_choice
    multipleChoiceAnswer: {answerOptions: [x, y], correctAnswers: [true]}
`, "differ in length"},
		"negative tolerance": {`
questions:
  - {uid: a, questionType: numeric, numericAnswer: {correctAnswer: 1, tolerance: -1}}
`, "negative tolerance"},
		"wrong answer key": {`
questions:
  - {uid: a, questionType: numeric, multipleChoiceAnswer: {answerOptions: [x], correctAnswers: [true]}}
`, "numeric needs only numericAnswer"},
		"bad yaml": {"questions: [", "parse question file"},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := LoadQuestionFile(writeQuestionFile(t, tc.body))
			if err == nil || !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("expected error containing %q, got %v", tc.want, err)
			}
		})
	}
}

func TestLoadQuestionFileMissing(t *testing.T) {
	if _, err := LoadQuestionFile(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatalf("expected error for missing file")
	}
}
