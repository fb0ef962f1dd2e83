// SPDX-License-Identifier: Apache-2.0

// Package testutils provides a shared Postgres test harness for pgslice's
// integration tests, backed by testcontainers-go the way pgroll's own
// pkg/testutils does.
package testutils

import (
	"context"
	"fmt"
	"log"
	"net/url"
	"os"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

// Common Postgres SQLSTATE codes used by tests to assert on constraint
// violations.
const (
	CheckViolationCode      = "23514"
	FKViolationCode         = "23503"
	NotNullViolationCode    = "23502"
	UniqueViolationCode     = "23505"
	LockNotAvailableCode    = "55P03"
	DeadlockDetectedCode    = "40P01"
	InvalidCatalogNameError = "3D000"
)

const defaultPostgresVersion = "16.3"

// tConnStr holds the connection string to the test container created in
// SharedTestMain.
var tConnStr string

// SharedTestMain starts a single Postgres container shared by every test in a
// package, mirroring pgroll's pkg/testutils.SharedTestMain.
func SharedTestMain(m *testing.M) {
	ctx := context.Background()

	waitForLogs := wait.
		ForLog("database system is ready to accept connections").
		WithOccurrence(2).
		WithStartupTimeout(30 * time.Second)

	pgVersion := os.Getenv("POSTGRES_VERSION")
	if pgVersion == "" {
		pgVersion = defaultPostgresVersion
	}

	ctr, err := postgres.RunContainer(ctx,
		testcontainers.WithImage("postgres:"+pgVersion),
		testcontainers.WithWaitStrategy(waitForLogs),
	)
	if err != nil {
		log.Printf("failed to start postgres container: %v", err)
		os.Exit(1)
	}

	tConnStr, err = ctr.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		log.Printf("failed to obtain connection string: %v", err)
		os.Exit(1)
	}

	exitCode := m.Run()

	if err := ctr.Terminate(ctx); err != nil {
		log.Printf("failed to terminate postgres container: %v", err)
	}

	os.Exit(exitCode)
}

// WithPool creates a fresh, uniquely-named database on the shared container,
// opens a pgx pool to it, and invokes fn. The database is dropped on return.
func WithPool(t *testing.T, fn func(ctx context.Context, pool *pgxpool.Pool, connStr string)) {
	t.Helper()
	ctx := context.Background()

	dbName := fmt.Sprintf("pgslice_test_%d", time.Now().UnixNano())

	admin, err := pgxpool.New(ctx, tConnStr)
	if err != nil {
		t.Fatalf("connecting to admin database: %v", err)
	}
	defer admin.Close()

	if _, err := admin.Exec(ctx, "CREATE DATABASE "+dbName); err != nil {
		t.Fatalf("creating test database: %v", err)
	}
	defer func() {
		_, _ = admin.Exec(ctx, "DROP DATABASE IF EXISTS "+dbName+" WITH (FORCE)")
	}()

	connStr := connStringForDB(tConnStr, dbName)

	pool, err := pgxpool.New(ctx, connStr)
	if err != nil {
		t.Fatalf("connecting to test database: %v", err)
	}
	defer pool.Close()

	fn(ctx, pool, connStr)
}

// WithConnectionToContainer is like WithPool but hands the callback a single
// pooled connection rather than the whole pool, for tests that need session
// affinity (e.g. observing a lock held by another connection).
func WithConnectionToContainer(t *testing.T, fn func(ctx context.Context, conn *pgxpool.Conn, connStr string)) {
	t.Helper()
	WithPool(t, func(ctx context.Context, pool *pgxpool.Pool, connStr string) {
		conn, err := pool.Acquire(ctx)
		if err != nil {
			t.Fatalf("acquiring connection: %v", err)
		}
		defer conn.Release()

		fn(ctx, conn, connStr)
	})
}

func connStringForDB(base, dbName string) string {
	// testcontainers returns a URL-shaped connection string; swap the path
	// component for the freshly created database.
	u, err := url.Parse(base)
	if err != nil {
		return base
	}
	u.Path = "/" + dbName
	return u.String()
}
