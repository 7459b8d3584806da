package cli

import (
	"context"
	"fmt"
	"log"

	"quiz-practice-service/internal/config"
	"quiz-practice-service/internal/infra/memory"
	"quiz-practice-service/internal/infra/postgres"

	"github.com/spf13/cobra"
)

// NewSeedCmd loads a YAML question file into Postgres.
func NewSeedCmd(configPath *string) *cobra.Command {
	var file string
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Upsert questions from a YAML file into the question bank",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSeed(cmd.Context(), *configPath, file)
		},
	}
	cmd.Flags().StringVar(&file, "file", "", "question file (defaults to questions.file from config)")
	return cmd
}

func runSeed(ctx context.Context, configPath, file string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if file == "" {
		file = cfg.Questions.File
	}
	if file == "" {
		return fmt.Errorf("no question file given")
	}
	questions, err := memory.LoadQuestionFile(file)
	if err != nil {
		return err
	}
	if err := runMigrationsWithConfig(ctx, cfg); err != nil {
		return err
	}

	db := postgres.OpenDB(cfg.Postgres.URL)
	defer db.Close()

	n, err := postgres.SeedQuestions(ctx, db, questions)
	if err != nil {
		return fmt.Errorf("seed questions: %w", err)
	}
	log.Printf("seeded %d questions from %s", n, file)
	return nil
}
