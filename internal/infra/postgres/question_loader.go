package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"quiz-practice-service/internal/domain"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"
)

const selectQuestionsSQL = `SELECT data FROM questions
WHERE ($1 = '' OR grade_level = $1)
  AND ($2 = '' OR discipline = $2)
  AND (cardinality($3::text[]) = 0 OR themes && $3::text[])
ORDER BY position`

// QuestionLoader loads question JSONB from Postgres.
type QuestionLoader struct {
	pool *pgxpool.Pool
}

func NewQuestionLoader(pool *pgxpool.Pool) *QuestionLoader {
	return &QuestionLoader{pool: pool}
}

// LoadQuestions returns matching questions in insertion order.
func (l *QuestionLoader) LoadQuestions(ctx context.Context, filter domain.QuestionFilter) ([]domain.QuestionSpec, error) {
	themes := filter.Themes
	if themes == nil {
		themes = []string{}
	}
	rows, err := l.pool.Query(ctx, selectQuestionsSQL, filter.GradeLevel, filter.Discipline, themes)
	if err != nil {
		return nil, fmt.Errorf("load questions: %w", err)
	}
	defer rows.Close()

	var questions []domain.QuestionSpec
	for rows.Next() {
		var raw []byte
		if err := rows.Scan(&raw); err != nil {
			return nil, fmt.Errorf("scan question: %w", err)
		}
		var q domain.QuestionSpec
		if err := json.Unmarshal(raw, &q); err != nil {
			return nil, fmt.Errorf("unmarshal question: %w", err)
		}
		questions = append(questions, q)
	}
	return questions, rows.Err()
}

func (l *QuestionLoader) LoadQuestion(ctx context.Context, uid string) (domain.QuestionSpec, error) {
	var raw []byte
	err := l.pool.QueryRow(ctx, `SELECT data FROM questions WHERE uid=$1`, uid).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.QuestionSpec{}, domain.ErrQuestionNotFound
	}
	if err != nil {
		return domain.QuestionSpec{}, fmt.Errorf("load question: %w", err)
	}
	var q domain.QuestionSpec
	if err := json.Unmarshal(raw, &q); err != nil {
		return domain.QuestionSpec{}, fmt.Errorf("unmarshal question: %w", err)
	}
	return q, nil
}
