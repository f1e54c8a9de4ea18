package evaluationintegrationtests

import (
	"context"
	"log"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/uptrace/bun"
	"go.opentelemetry.io/otel/trace/noop"

	evaluationservice "github.com/inf-monkeys/arena/app/modules/evaluation/application"
	evaluationmetrics "github.com/inf-monkeys/arena/app/modules/evaluation/infrastructure/metrics"
	evaluationdb "github.com/inf-monkeys/arena/app/modules/evaluation/infrastructure/repositories"
	"github.com/inf-monkeys/arena/integration_tests/testutils"
	"github.com/inf-monkeys/arena/internal/eventbus"
)

// Global variables for the test environment, initialized once per package.
var (
	testEnv     *testutils.TestEnvironment
	testEnvOnce sync.Once
	testEnvErr  error
)

// TestDeps holds the dependencies individual tests work with.
type TestDeps struct {
	Ctx       context.Context
	Repo      evaluationdb.Repository
	BunDB     *bun.DB
	Service   evaluationservice.Service
	Generator *testutils.TestDataGenerator
}

func GetTestEnv(t *testing.T) *testutils.TestEnvironment {
	t.Helper()

	testEnvOnce.Do(func() {
		log.Println("Initializing evaluation test environment...")
		env, err := testutils.NewTestEnvironment(t)
		if err != nil {
			testEnvErr = err
			log.Printf("Failed to set up test environment: %v", err)
		} else {
			log.Println("Evaluation test environment initialized successfully.")
			testEnv = env
		}
	})

	if testEnvErr != nil {
		t.Fatalf("Evaluation test environment initialization failed: %v", testEnvErr)
	}
	if testEnv == nil {
		t.Fatalf("Evaluation test environment not initialized")
	}

	return testEnv
}

// SetupTestEvaluationService resets the database and builds a real service
// over it, with an in-process event bus and no-op telemetry.
func SetupTestEvaluationService(t *testing.T) TestDeps {
	t.Helper()

	env := GetTestEnv(t)
	log.Printf("[%s] SetupTestEvaluationService: Starting setup", t.Name())

	resetCtx, resetCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer resetCancel()
	if err := env.Reset(resetCtx); err != nil {
		t.Fatalf("Failed to reset environment: %v", err)
	}

	repo := evaluationdb.New()

	testLogger := slog.New(slog.NewTextHandler(testWriter{t: t}, &slog.HandlerOptions{
		Level: slog.LevelDebug,
	}))
	bus := eventbus.NewInMemoryEventBus(testLogger)
	noOpMetrics := evaluationmetrics.NoOpMetrics{}
	noOpTracer := noop.NewTracerProvider().Tracer("test_evaluation_service")

	service := evaluationservice.NewEvaluationService(
		repo,
		env.DB,
		bus,
		nil, // no judge; auto-evaluation paths use their own fixtures
		nil, // no background queue
		testLogger,
		noOpMetrics,
		noOpTracer,
	)

	t.Cleanup(func() {
		bus.Close()
	})

	return TestDeps{
		Ctx:       env.Ctx,
		Repo:      repo,
		BunDB:     env.DB,
		Service:   service,
		Generator: testutils.NewTestDataGenerator(),
	}
}

// testWriter wraps a testing.T to implement io.Writer for slog.
type testWriter struct {
	t *testing.T
}

func (tw testWriter) Write(p []byte) (n int, err error) {
	tw.t.Log(string(p))
	return len(p), nil
}
