package memory

import (
	"fmt"
	"os"

	"quiz-practice-service/internal/domain"

	"gopkg.in/yaml.v3"
)

// QuestionFile is the YAML layout of a question bank file:
//
//	questions:
//	  - uid: add-1
//	    questionType: multiple_choice
//	    multipleChoiceAnswer:
//	      answerOptions: ["2", "3", "4"]
//	      correctAnswers: [false, true, false]
type QuestionFile struct {
	Questions []domain.QuestionSpec `yaml:"questions"`
}

// LoadQuestionFile reads and validates a YAML question bank.
func LoadQuestionFile(path string) ([]domain.QuestionSpec, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var file QuestionFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse question file %s: %w", path, err)
	}
	seen := make(map[string]struct{}, len(file.Questions))
	for i, q := range file.Questions {
		if err := ValidateQuestion(q); err != nil {
			return nil, fmt.Errorf("question %d in %s: %w", i, path, err)
		}
		if _, dup := seen[q.UID]; dup {
			return nil, fmt.Errorf("question %d in %s: duplicate uid %q", i, path, q.UID)
		}
		seen[q.UID] = struct{}{}
	}
	return file.Questions, nil
}

// ValidateQuestion checks that a question carries exactly the answer key its type needs.
func ValidateQuestion(q domain.QuestionSpec) error {
	if q.UID == "" {
		return fmt.Errorf("missing uid")
	}
	switch q.QuestionType {
	case domain.QuestionTypeMultipleChoice:
		if q.MultipleChoice == nil || q.Numeric != nil {
			return fmt.Errorf("%s: multiple_choice needs only multipleChoiceAnswer", q.UID)
		}
		if len(q.MultipleChoice.AnswerOptions) != len(q.MultipleChoice.CorrectAnswers) {
			return fmt.Errorf("%s: answerOptions and correctAnswers differ in length", q.UID)
		}
	case domain.QuestionTypeNumeric:
		if q.Numeric == nil || q.MultipleChoice != nil {
			return fmt.Errorf("%s: numeric needs only numericAnswer", q.UID)
		}
		if q.Numeric.Tolerance < 0 {
			return fmt.Errorf("%s: negative tolerance", q.UID)
		}
	default:
		return fmt.Errorf("%s: unknown questionType %q", q.UID, q.QuestionType)
	}
	return nil
}
