// Package testcontainers spins up disposable Redis and Postgres
// containers for this repo's integration tests. Each TestContext
// hands back a Postgres connection with the render service's own
// schema already applied and a Redis client wired the way
// internal/kvcache expects it, so package tests exercise the same
// driver stack and schema as the running service rather than
// generic container plumbing.
//
// Basic usage:
//
//	func TestMyFeature(t *testing.T) {
//	    tc := testcontainers.NewTestContext(t)
//	    defer tc.Cleanup()
//
//	    _, err := tc.DB.ExecContext(tc.Context(), "SELECT 1 FROM print_jobs")
//	    require.NoError(t, err)
//	}
//
// Or, more concisely:
//
//	func TestMyFeature(t *testing.T) {
//	    testcontainers.WithTestContext(t, func(tc *testcontainers.TestContext) {
//	        // test code here
//	    })
//	}
//
// Prerequisites:
//   - Docker must be installed and running
//   - Network access to pull the redis:latest and postgres:latest images
//
// Environment Variables:
//   - TESTCONTAINERS_RYUK_DISABLED: set to "true" to disable Ryuk (container cleanup)
//   - DOCKER_HOST: custom Docker host (optional)
package testcontainers

import (
	"context"
	"database/sql"
	"fmt"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/gosom/vectorprint/internal/metadatastore"
)

const (
	// defaultTimeout is the maximum time to wait for container startup and initialization.
	defaultTimeout = 30 * time.Second
)

// TestContext holds the render service's test infrastructure and
// handles cleanup of every container and connection it opens, even if
// the test panics.
type TestContext struct {
	t *testing.T

	ctx        context.Context
	cancelFunc context.CancelFunc
	cleanup    []func()

	redisContainer    *RedisContainer
	postgresContainer *PostgresContainer

	Redis *redis.Client // raw Redis client, for asserting on cache/lock state directly
	DB    *sql.DB       // Postgres pool with the render service's schema already applied

	RedisConfig    *RedisConfig
	PostgresConfig *PostgresConfig
}

// Context returns the deadline-bound context that scopes container
// startup and the connections derived from it.
func (tc *TestContext) Context() context.Context {
	return tc.ctx
}

// NewTestContext starts a Redis and a Postgres container, applies the
// render service's schema to Postgres, and returns a ready-to-use
// TestContext. It fails the test if any step doesn't succeed.
func NewTestContext(t *testing.T) *TestContext {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), defaultTimeout)
	tc := &TestContext{
		t:          t,
		ctx:        ctx,
		cancelFunc: cancel,
		cleanup:    make([]func(), 0),
	}

	if err := tc.initRedis(); err != nil {
		t.Fatalf("failed to initialize redis: %v", err)
	}
	if err := tc.initPostgres(); err != nil {
		t.Fatalf("failed to initialize postgres: %v", err)
	}

	return tc
}

// WithTestContext runs fn with a fresh TestContext and guarantees
// cleanup runs afterward, even on panic.
func WithTestContext(t *testing.T, fn func(*TestContext)) {
	t.Helper()
	tc := NewTestContext(t)
	defer tc.Cleanup()
	fn(tc)
}

// Cleanup tears down every resource opened by this context, in
// reverse order of creation.
func (tc *TestContext) Cleanup() {
	for i := len(tc.cleanup) - 1; i >= 0; i-- {
		tc.cleanup[i]()
	}
	tc.cancelFunc()
}

func (tc *TestContext) addCleanup(fn func()) {
	tc.cleanup = append(tc.cleanup, fn)
}

// initRedis starts the Redis container and dials a client against it.
func (tc *TestContext) initRedis() error {
	container, err := NewRedisContainer(tc.ctx)
	if err != nil {
		return fmt.Errorf("create redis container: %w", err)
	}
	tc.redisContainer = container
	tc.addCleanup(func() {
		if err := container.Terminate(tc.ctx); err != nil {
			tc.t.Errorf("terminate redis container: %v", err)
		}
	})

	tc.Redis = redis.NewClient(&redis.Options{
		Addr:     container.GetAddress(),
		Password: container.Password,
		DB:       0,
	})
	tc.addCleanup(func() {
		if err := tc.Redis.Close(); err != nil {
			tc.t.Errorf("close redis client: %v", err)
		}
	})

	tc.RedisConfig = &RedisConfig{
		Host:     container.Host,
		Port:     container.Port,
		Password: container.Password,
	}

	return nil
}

// initPostgres starts the Postgres container, opens a *sql.DB against
// it through the same pgx/v5/stdlib driver the service itself uses,
// and applies the print_jobs/document_access/documents/system_config
// schema so every test starts from a fully migrated database.
func (tc *TestContext) initPostgres() error {
	container, err := NewPostgresContainer(tc.ctx)
	if err != nil {
		return fmt.Errorf("create postgres container: %w", err)
	}
	tc.postgresContainer = container
	tc.addCleanup(func() {
		if err := container.Terminate(tc.ctx); err != nil {
			tc.t.Errorf("terminate postgres container: %v", err)
		}
	})

	db, err := metadatastore.Open(container.GetDSN())
	if err != nil {
		return fmt.Errorf("open postgres: %w", err)
	}
	tc.DB = db
	tc.addCleanup(func() {
		tc.DB.Close()
	})

	if err := metadatastore.EnsureSchema(db); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}

	tc.PostgresConfig = &PostgresConfig{
		Host:     container.Host,
		Port:     container.Port,
		User:     container.User,
		Password: container.Password,
		Database: container.Database,
	}

	return nil
}
