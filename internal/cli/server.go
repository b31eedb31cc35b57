package cli

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"quiz-readiness-service/internal/app"
	"quiz-readiness-service/internal/config"
	"quiz-readiness-service/internal/infra/memory"
	pgloader "quiz-readiness-service/internal/infra/postgres"
	rediscache "quiz-readiness-service/internal/infra/redis"
	"quiz-readiness-service/internal/infra/sqlstore"
	transport "quiz-readiness-service/internal/transport/http"
)

// NewStartCmd builds the CLI subcommand to start the server.
func NewStartCmd(configPath, port *string) *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the quiz readiness server",
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

	finalPort := portFlag
	if finalPort == "" {
		finalPort = cfg.Server.Port
	}
	if finalPort == "" {
		finalPort = "8080"
	}

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	d, err := buildDeps(ctx, cfg)
	if err != nil {
		return err
	}
	defer d.close()

	server := &http.Server{
		Addr:         ":" + finalPort,
		Handler:      transport.NewRouter(d.service, d.hub, transport.NewAuthenticator(cfg.Auth.JWTSecret)),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Printf("starting quiz readiness service on :%s (store=%s)", finalPort, cfg.DatabaseDriver())
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("listen: %w", err)
		}
		return nil
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

type deps struct {
	service *app.AttemptService
	hub     *app.BenchmarkHub
	closers []func()
}

func (d *deps) close() {
	for i := len(d.closers) - 1; i >= 0; i-- {
		d.closers[i]()
	}
}

// buildDeps selects the store, catalog and cache backends from config.
func buildDeps(ctx context.Context, cfg config.Config) (*deps, error) {
	d := &deps{hub: app.NewBenchmarkHub()}
	lockTimeout := config.Duration(cfg.Attempt.LockTimeout, 2*time.Second)

	var (
		store     app.Store
		directory app.Directory
		loader    memory.QuizLoader
	)
	switch driver := cfg.DatabaseDriver(); driver {
	case "memory":
		sample := memory.Sample()
		mem := memory.NewStore(lockTimeout)
		mem.AddSpecialization(sample.Specializations...)
		dir := memory.NewDirectory()
		dir.AddUser(sample.Users...)
		dir.AddSpecialization(sample.Specializations...)
		store, directory, loader = mem, dir, memory.NewStaticQuizLoader(sample.Quizzes...)
	case "sqlite", "postgres":
		db, err := openMigrated(ctx, cfg)
		if err != nil {
			return nil, err
		}
		d.closers = append(d.closers, func() { db.Close() })
		catalog := sqlstore.NewCatalog(db)
		if cfg.Demo {
			if err := seedSample(ctx, catalog); err != nil {
				d.close()
				return nil, err
			}
		}
		store, directory, loader = sqlstore.NewStore(db, lockTimeout), catalog, catalog

		if driver == "postgres" {
			pool, err := pgxpool.Connect(ctx, cfg.Postgres.URL)
			if err != nil {
				d.close()
				return nil, err
			}
			d.closers = append(d.closers, pool.Close)
			loader = pgloader.NewQuizLoader(pool)
		}
	default:
		return nil, fmt.Errorf("unknown database driver %q", driver)
	}

	quizTTL := config.Duration(cfg.Quiz.TTL, 10*time.Minute)
	opts := []app.Option{
		app.WithTimeLimit(config.Duration(cfg.Attempt.TimeLimit, 30*time.Minute)),
		app.WithRetry(app.RetryConfig{
			MaxAttempts: app.DefaultRetry().MaxAttempts,
			Backoff:     config.Duration(cfg.Attempt.RetryBackoff, app.DefaultRetry().Backoff),
		}),
		app.WithPublisher(d.hub),
	}

	var quizzes app.QuizRepository
	if cfg.Redis.Addr != "" {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		d.closers = append(d.closers, func() { client.Close() })
		quizzes = rediscache.NewQuizCache(client, loader, quizTTL)
		opts = append(opts, app.WithStandingsBoard(rediscache.NewStandingsBoard(client)))
	} else {
		quizzes = memory.NewQuizCache(loader, quizTTL)
	}

	d.service = app.NewAttemptService(store, quizzes, directory, opts...)
	return d, nil
}

// seedSample writes the demo catalog. Existing rows are overwritten.
func seedSample(ctx context.Context, catalog *sqlstore.Catalog) error {
	sample := memory.Sample()
	for _, id := range sample.Specializations {
		if err := catalog.SaveSpecialization(ctx, id, id); err != nil {
			return err
		}
	}
	for _, id := range sample.Users {
		if err := catalog.SaveUser(ctx, id, id); err != nil {
			return err
		}
	}
	for _, quiz := range sample.Quizzes {
		if err := catalog.SaveQuiz(ctx, quiz); err != nil {
			return err
		}
	}
	log.Printf("seeded demo catalog: %d quizzes, %d users", len(sample.Quizzes), len(sample.Users))
	return nil
}
