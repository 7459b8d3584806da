package postgres

import (
	"context"
	"database/sql"

	"quiz-practice-service/internal/domain"
	pgmigrations "quiz-practice-service/internal/infra/postgres/migrations"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"
	"github.com/uptrace/bun/migrate"
)

type questionRow struct {
	bun.BaseModel `bun:"table:questions"`

	UID        string              `bun:"uid,pk"`
	GradeLevel string              `bun:"grade_level"`
	Discipline string              `bun:"discipline"`
	Themes     []string            `bun:"themes,array"`
	Data       domain.QuestionSpec `bun:"data,type:jsonb"`
}

// OpenDB opens a bun handle over the pgdriver connector.
func OpenDB(dsn string) *bun.DB {
	sqldb := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(dsn)))
	return bun.NewDB(sqldb, pgdialect.New())
}

// Migrate applies all pending migrations.
func Migrate(ctx context.Context, db *bun.DB) error {
	migrator := migrate.NewMigrator(db, pgmigrations.Migrations)
	if err := migrator.Init(ctx); err != nil {
		return err
	}
	_, err := migrator.Migrate(ctx)
	return err
}

// SeedQuestions upserts questions keyed by uid. New rows keep the slice order.
func SeedQuestions(ctx context.Context, db *bun.DB, questions []domain.QuestionSpec) (int, error) {
	if len(questions) == 0 {
		return 0, nil
	}
	rows := make([]questionRow, len(questions))
	for i, q := range questions {
		themes := q.Themes
		if themes == nil {
			themes = []string{}
		}
		rows[i] = questionRow{
			UID:        q.UID,
			GradeLevel: q.GradeLevel,
			Discipline: q.Discipline,
			Themes:     themes,
			Data:       q,
		}
	}
	_, err := db.NewInsert().
		Model(&rows).
		On("CONFLICT (uid) DO UPDATE").
		Set("grade_level = EXCLUDED.grade_level").
		Set("discipline = EXCLUDED.discipline").
		Set("themes = EXCLUDED.themes").
		Set("data = EXCLUDED.data").
		Exec(ctx)
	if err != nil {
		return 0, err
	}
	return len(rows), nil
}
