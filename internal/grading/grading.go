package grading

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"

	"quiz-practice-service/internal/domain"
)

// Strategy decides correctness for one question type.
// Implementations never fail: input they cannot interpret is incorrect.
type Strategy interface {
	Grade(q domain.QuestionSpec, selected []any) bool
}

// Grader routes a question to the strategy registered for its type.
type Grader struct {
	strategies map[domain.QuestionType]Strategy
}

// NewGrader installs the multiple-choice and numeric strategies.
func NewGrader() *Grader {
	return &Grader{
		strategies: map[domain.QuestionType]Strategy{
			domain.QuestionTypeMultipleChoice: multipleChoiceStrategy{},
			domain.QuestionTypeNumeric:        numericStrategy{},
		},
	}
}

// Grade returns whether selected answers q correctly. Unknown question
// types are graded incorrect.
func (g *Grader) Grade(q domain.QuestionSpec, selected []any) bool {
	s, ok := g.strategies[q.QuestionType]
	if !ok {
		return false
	}
	return s.Grade(q, selected)
}

var defaultGrader = NewGrader()

// Grade grades with the default strategies.
func Grade(q domain.QuestionSpec, selected []any) bool {
	return defaultGrader.Grade(q, selected)
}

// CorrectOptions lists the option indices flagged correct.
func CorrectOptions(mc *domain.MultipleChoiceAnswer) []int {
	if mc == nil {
		return nil
	}
	out := make([]int, 0, len(mc.CorrectAnswers))
	for i, ok := range mc.CorrectAnswers {
		if ok {
			out = append(out, i)
		}
	}
	return out
}

type multipleChoiceStrategy struct{}

// Grade compares the deduplicated selection to the set of correct indices.
// Any index that is not an integer within the option range fails the answer.
func (multipleChoiceStrategy) Grade(q domain.QuestionSpec, selected []any) bool {
	mc := q.MultipleChoice
	if mc == nil || len(mc.CorrectAnswers) == 0 {
		return false
	}
	chosen := make(map[int]struct{}, len(selected))
	for _, raw := range selected {
		idx, ok := toIndex(raw)
		if !ok || idx < 0 || idx >= len(mc.CorrectAnswers) {
			return false
		}
		chosen[idx] = struct{}{}
	}
	correct := CorrectOptions(mc)
	if len(chosen) != len(correct) {
		return false
	}
	for _, idx := range correct {
		if _, ok := chosen[idx]; !ok {
			return false
		}
	}
	return true
}

type numericStrategy struct{}

func (numericStrategy) Grade(q domain.QuestionSpec, selected []any) bool {
	if q.Numeric == nil || len(selected) == 0 {
		return false
	}
	v, ok := toFloat(selected[0])
	if !ok {
		return false
	}
	tol := q.Numeric.Tolerance
	if tol < 0 || math.IsNaN(tol) {
		tol = 0
	}
	return math.Abs(v-q.Numeric.CorrectAnswer) <= tol+roundingSlack(v, q.Numeric.CorrectAnswer, tol)
}

// roundingSlack covers the binary rounding of the subtraction and of the
// decimal tolerance, a few ulps of the largest operand, so 3.15 is within
// 0.01 of 3.14. Exact matches (tolerance 0) get no slack.
func roundingSlack(v, target, tol float64) float64 {
	if tol == 0 {
		return 0
	}
	m := math.Max(math.Abs(v), math.Max(math.Abs(target), tol))
	return 4 * (math.Nextafter(m, math.Inf(1)) - m)
}

func toFloat(v any) (float64, bool) {
	var f float64
	switch t := v.(type) {
	case float64:
		f = t
	case float32:
		f = float64(t)
	case int:
		f = float64(t)
	case int32:
		f = float64(t)
	case int64:
		f = float64(t)
	case json.Number:
		parsed, err := t.Float64()
		if err != nil {
			return 0, false
		}
		f = parsed
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(t), 64)
		if err != nil {
			return 0, false
		}
		f = parsed
	default:
		return 0, false
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

func toIndex(v any) (int, bool) {
	f, ok := toFloat(v)
	if !ok || f != math.Trunc(f) || math.Abs(f) > math.MaxInt32 {
		return 0, false
	}
	return int(f), true
}
