package cli

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"quiz-practice-service/internal/app"
	"quiz-practice-service/internal/config"
	"quiz-practice-service/internal/domain"
	"quiz-practice-service/internal/infra/memory"
	pgloader "quiz-practice-service/internal/infra/postgres"
	redisinfra "quiz-practice-service/internal/infra/redis"
	transport "quiz-practice-service/internal/transport/http"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

// NewStartCmd builds the CLI subcommand to start the server.
func NewStartCmd(configPath, port *string) *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the practice server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context(), *configPath, *port)
		},
	}
}

func runServer(ctx context.Context, configPath, portFlag string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	if cfg.Postgres.URL != "" {
		if err := runMigrationsWithConfig(ctx, cfg); err != nil {
			return err
		}
	}

	finalPort := portFlag
	if finalPort == "" {
		finalPort = cfg.Server.Port
	}
	if finalPort == "" {
		finalPort = "8080"
	}

	var redisClient *redis.Client
	if cfg.Redis.Addr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer redisClient.Close()
	}

	var pool *pgxpool.Pool
	if cfg.Postgres.URL != "" {
		pool, err = pgxpool.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			return err
		}
		defer pool.Close()
	}

	var loader memory.QuestionLoader
	switch {
	case pool != nil:
		loader = pgloader.NewQuestionLoader(pool)
	case cfg.Questions.File != "":
		questions, err := memory.LoadQuestionFile(cfg.Questions.File)
		if err != nil {
			return err
		}
		loader = memory.NewStaticQuestionLoader(questions)
	default:
		loader = memory.NewStaticQuestionLoader(sampleQuestions())
	}

	cacheTTL := config.TTLDuration(cfg.Questions.CacheTTL, 10*time.Minute)
	sessionTTL := config.TTLDuration(cfg.Practice.TTL, app.DefaultSessionTTL)

	var bank app.QuestionBank
	var store app.SessionRepository
	if redisClient != nil {
		bank = redisinfra.NewQuestionBank(redisClient, loader, cacheTTL)
		// Snapshots outlive the session so lazy expiry can still be observed.
		snapshotTTL := config.TTLDuration(cfg.Redis.TTL, 2*sessionTTL)
		store = redisinfra.NewSessionStore(redisClient, snapshotTTL, cfg.Redis.Channel)
	} else {
		bank = memory.NewQuestionBank(loader, cacheTTL)
		store = memory.NewSessionStore()
	}

	service := app.NewPracticeService(store, bank,
		app.WithTTL(sessionTTL),
		app.WithMaxQuestionCount(cfg.Practice.MaxQuestionCount),
		app.WithLogger(logger),
	)
	wsHandler := transport.NewWSHandler(service)

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})
	mux.HandleFunc("/ws", wsHandler.ServeWS)

	server := &http.Server{
		Addr:         ":" + finalPort,
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		log.Printf("starting practice service on :%s", finalPort)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		return service.RunSweeper(gctx, config.TTLDuration(cfg.Practice.SweepInterval, time.Minute))
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Println("shutting down server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

// sampleQuestions is the fallback bank when neither Postgres nor a question file is configured.
func sampleQuestions() []domain.QuestionSpec {
	return []domain.QuestionSpec{
		{
			UID:          "math-add-1",
			Title:        "Addition",
			Text:         "What is 1 + 2?",
			QuestionType: domain.QuestionTypeMultipleChoice,
			TimeLimit:    30,
			GradeLevel:   "CP",
			Discipline:   "math",
			Themes:       []string{"addition"},
			MultipleChoice: &domain.MultipleChoiceAnswer{
				AnswerOptions:  []string{"2", "3", "4"},
				CorrectAnswers: []bool{false, true, false},
			},
		},
		{
			UID:          "math-pi-1",
			Title:        "Pi",
			Text:         "Give pi to two decimal places.",
			QuestionType: domain.QuestionTypeNumeric,
			TimeLimit:    45,
			GradeLevel:   "CM2",
			Discipline:   "math",
			Themes:       []string{"geometry"},
			Numeric:      &domain.NumericAnswer{CorrectAnswer: 3.14, Tolerance: 0.01},
		},
	}
}
