package integration

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
	goredis "github.com/redis/go-redis/v9"
	tc "github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
	"github.com/uptrace/bun"

	"quiz-readiness-service/internal/app"
	"quiz-readiness-service/internal/domain"
	"quiz-readiness-service/internal/infra/memory"
	pgloader "quiz-readiness-service/internal/infra/postgres"
	infraredis "quiz-readiness-service/internal/infra/redis"
	"quiz-readiness-service/internal/infra/sqlstore"
)

type stack struct {
	db      *bun.DB
	store   *sqlstore.Store
	catalog *sqlstore.Catalog
	service *app.AttemptService
	board   *infraredis.StandingsBoard
}

func TestSubmitAttemptEndToEnd(t *testing.T) {
	ctx := context.Background()
	s := newStack(t, ctx)

	alice := submit(t, ctx, s.service, "user-alice", "quiz-go-basics", 3)
	if *alice.Attempt.Percentage != 100 || !alice.Passed {
		t.Fatalf("expected alice to score 100 and pass, got %+v", alice.Attempt)
	}
	bob := submit(t, ctx, s.service, "user-bob", "quiz-go-basics", 1)
	if *bob.Attempt.Percentage != 33.3 || bob.Passed {
		t.Fatalf("expected bob to score 33.3 and fail, got %+v", bob.Attempt)
	}
	if bob.Benchmark.Percentile != 0 {
		t.Fatalf("expected bob at percentile 0, got %v", bob.Benchmark.Percentile)
	}

	readiness, err := s.service.Readiness(ctx, "user-alice", "spec-backend")
	if err != nil {
		t.Fatalf("readiness: %v", err)
	}
	if readiness.Score != 100 || readiness.AttemptCount != 1 {
		t.Fatalf("unexpected readiness %+v", readiness)
	}

	top, err := s.board.Top(ctx, "spec-backend", 10)
	if err != nil {
		t.Fatalf("top: %v", err)
	}
	if len(top) != 2 || top[0].UserID != "user-alice" || top[0].Percentile != 100 {
		t.Fatalf("expected alice leading the redis board, got %+v", top)
	}

	var stored int
	if err := s.db.NewSelect().TableExpr("peer_benchmarks").ColumnExpr("count(*)").
		Where("specialization_id = ?", "spec-backend").Scan(ctx, &stored); err != nil {
		t.Fatalf("count benchmarks: %v", err)
	}
	if stored != 2 {
		t.Fatalf("expected 2 benchmark rows, got %d", stored)
	}
}

func TestConcurrentSubmitsOnPostgres(t *testing.T) {
	ctx := context.Background()
	s := newStack(t, ctx)

	const users = 8
	attempts := make([]domain.Attempt, users)
	for i := 0; i < users; i++ {
		uid := fmt.Sprintf("load-%d", i)
		if err := s.catalog.SaveUser(ctx, uid, uid); err != nil {
			t.Fatalf("save user: %v", err)
		}
		a, err := s.service.StartAttempt(ctx, uid, "quiz-sql")
		if err != nil {
			t.Fatalf("start: %v", err)
		}
		attempts[i] = a
	}

	var wg sync.WaitGroup
	errs := make(chan error, users)
	for i, a := range attempts {
		wg.Add(1)
		go func(i int, a domain.Attempt) {
			defer wg.Done()
			sub := domain.Submission{"q-iso": "q-iso-A", "q-lock": "q-lock-B"}
			if i%2 == 0 {
				sub = domain.Submission{"q-iso": "q-iso-B", "q-lock": "q-lock-A"}
			}
			_, err := s.service.SubmitAttempt(ctx, a.ID, sub)
			errs <- err
		}(i, a)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		if err != nil {
			t.Fatalf("submit: %v", err)
		}
	}

	// The redis board may briefly lag under concurrent publishes; the
	// committed rows are authoritative.
	snaps, err := s.store.ListBenchmarks(ctx, "spec-backend")
	if err != nil {
		t.Fatalf("list benchmarks: %v", err)
	}
	if len(snaps) != users {
		t.Fatalf("expected %d snapshots, got %d", users, len(snaps))
	}
	for _, snap := range snaps {
		want := 0.0
		if snap.Score == 100 {
			want = 100 * float64(users/2) / float64(users-1)
			want = float64(int(want*10+0.5)) / 10
		}
		if snap.Percentile != want {
			t.Fatalf("user %s score %v: expected percentile %v, got %v", snap.UserID, snap.Score, want, snap.Percentile)
		}
	}
}

func newStack(t *testing.T, ctx context.Context) *stack {
	t.Helper()
	requireDocker(t)

	pgURL, pgCleanup := startPostgres(t, ctx)
	t.Cleanup(pgCleanup)
	redisURL, redisCleanup := startRedis(t, ctx)
	t.Cleanup(redisCleanup)

	db := sqlstore.OpenPostgres(pgURL)
	t.Cleanup(func() { db.Close() })
	if err := sqlstore.Migrate(ctx, db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	catalog := sqlstore.NewCatalog(db)
	seedSample(t, ctx, catalog)

	pool, err := pgxpool.Connect(ctx, pgURL)
	if err != nil {
		t.Fatalf("connect pg: %v", err)
	}
	t.Cleanup(pool.Close)

	redisClient, err := redisClientFromURL(redisURL)
	if err != nil {
		t.Fatalf("redis client: %v", err)
	}
	t.Cleanup(func() { redisClient.Close() })

	board := infraredis.NewStandingsBoard(redisClient)
	quizzes := infraredis.NewQuizCache(redisClient, pgloader.NewQuizLoader(pool), 5*time.Minute)
	store := sqlstore.NewStore(db, 5*time.Second)
	service := app.NewAttemptService(store, quizzes, catalog, app.WithStandingsBoard(board))
	return &stack{db: db, store: store, catalog: catalog, service: service, board: board}
}

// submit starts an attempt and answers the first `correct` questions right
// and the rest wrong.
func submit(t *testing.T, ctx context.Context, service *app.AttemptService, userID, quizID string, correct int) domain.SubmitResult {
	t.Helper()
	attempt, err := service.StartAttempt(ctx, userID, quizID)
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	quiz, err := service.GetQuiz(ctx, quizID)
	if err != nil {
		t.Fatalf("get quiz: %v", err)
	}

	answers := make(domain.Submission, len(quiz.Questions))
	sample := sampleQuiz(t, quizID)
	for i, q := range sample.Questions {
		for _, o := range q.Options {
			if o.Correct == (i < correct) {
				answers[q.ID] = o.ID
				break
			}
		}
	}
	res, err := service.SubmitAttempt(ctx, attempt.ID, answers)
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	return res
}

func sampleQuiz(t *testing.T, quizID string) domain.Quiz {
	t.Helper()
	for _, q := range memory.Sample().Quizzes {
		if q.ID == quizID {
			return q
		}
	}
	t.Fatalf("no sample quiz %s", quizID)
	return domain.Quiz{}
}

func seedSample(t *testing.T, ctx context.Context, catalog *sqlstore.Catalog) {
	t.Helper()
	sample := memory.Sample()
	for _, id := range sample.Specializations {
		if err := catalog.SaveSpecialization(ctx, id, id); err != nil {
			t.Fatalf("seed specialization: %v", err)
		}
	}
	for _, id := range sample.Users {
		if err := catalog.SaveUser(ctx, id, id); err != nil {
			t.Fatalf("seed user: %v", err)
		}
	}
	for _, quiz := range sample.Quizzes {
		if err := catalog.SaveQuiz(ctx, quiz); err != nil {
			t.Fatalf("seed quiz: %v", err)
		}
	}
}

func startPostgres(t *testing.T, ctx context.Context) (string, func()) {
	t.Helper()
	req := tc.ContainerRequest{
		Image:        "postgres:15-alpine",
		Env:          map[string]string{"POSTGRES_USER": "quiz", "POSTGRES_PASSWORD": "quizpass", "POSTGRES_DB": "quizdb"},
		ExposedPorts: []string{"5432/tcp"},
		WaitingFor:   wait.ForLog("database system is ready to accept connections").WithOccurrence(2).WithStartupTimeout(60 * time.Second),
	}
	container, err := tc.GenericContainer(ctx, tc.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		if strings.Contains(err.Error(), "Cannot connect to the Docker daemon") {
			t.Skipf("docker not available: %v", err)
		}
		t.Fatalf("start postgres: %v", err)
	}
	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("host: %v", err)
	}
	port, err := container.MappedPort(ctx, "5432/tcp")
	if err != nil {
		t.Fatalf("port: %v", err)
	}
	dsn := fmt.Sprintf("postgres://quiz:quizpass@%s:%s/quizdb?sslmode=disable", host, port.Port())
	return dsn, func() {
		_ = container.Terminate(ctx)
	}
}

func startRedis(t *testing.T, ctx context.Context) (string, func()) {
	t.Helper()
	req := tc.ContainerRequest{
		Image:        "redis:7-alpine",
		ExposedPorts: []string{"6379/tcp"},
		WaitingFor:   wait.ForListeningPort("6379/tcp").WithStartupTimeout(30 * time.Second),
	}
	container, err := tc.GenericContainer(ctx, tc.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		if strings.Contains(err.Error(), "Cannot connect to the Docker daemon") {
			t.Skipf("docker not available: %v", err)
		}
		t.Fatalf("start redis: %v", err)
	}
	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("redis host: %v", err)
	}
	port, err := container.MappedPort(ctx, "6379/tcp")
	if err != nil {
		t.Fatalf("redis port: %v", err)
	}
	return fmt.Sprintf("redis://%s:%s", host, port.Port()), func() {
		_ = container.Terminate(ctx)
	}
}

func redisClientFromURL(url string) (*goredis.Client, error) {
	opts, err := goredis.ParseURL(url)
	if err != nil {
		return nil, err
	}
	return goredis.NewClient(opts), nil
}

func requireDocker(t *testing.T) {
	t.Helper()
	if _, err := tc.NewDockerProvider(); err != nil {
		t.Skipf("docker not available: %v", err)
	}
}
