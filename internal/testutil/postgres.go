package testutil

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"regexp"
	"strings"
	"testing"

	"github.com/gofrs/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/affan-mulla/nextup/internal/database/migrations"
	"github.com/affan-mulla/nextup/internal/database/postgres"
	platformconfig "github.com/affan-mulla/nextup/internal/platform/config"
)

const defaultTestDSN = "postgres://postgres:@localhost:5432/nextup_test?sslmode=disable"

// PostgresDSN returns POSTGRES_DSN or the local default
func PostgresDSN() string {
	if dsn := os.Getenv("POSTGRES_DSN"); dsn != "" {
		return dsn
	}
	return defaultTestDSN
}

// NewIsolatedPostgres creates a fresh schema for the calling test, migrates it
// and returns a client bound to it. The schema is dropped on cleanup.
// Skips unless RUN_DB_TESTS=1.
func NewIsolatedPostgres(t *testing.T) *postgres.Client {
	t.Helper()

	if os.Getenv("RUN_DB_TESTS") != "1" {
		t.Skip("RUN_DB_TESTS not set, skipping database test")
	}

	ctx := context.Background()
	baseDSN := PostgresDSN()

	admin, err := sqlx.ConnectContext(ctx, "postgres", baseDSN)
	if err != nil {
		t.Skipf("PostgreSQL not available: %v", err)
	}

	suffix := strings.ReplaceAll(uuid.Must(uuid.NewV4()).String(), "-", "")[:16]
	schema := fmt.Sprintf("test_%s_%s", SanitizeTestName(t.Name()), suffix)
	if _, err := admin.ExecContext(ctx, fmt.Sprintf(`CREATE SCHEMA %s`, schema)); err != nil {
		admin.Close()
		t.Fatalf("failed to create schema %s: %v", schema, err)
	}

	t.Cleanup(func() {
		if _, err := admin.ExecContext(context.Background(), fmt.Sprintf(`DROP SCHEMA IF EXISTS %s CASCADE`, schema)); err != nil {
			t.Logf("failed to drop schema %s: %v", schema, err)
		}
		admin.Close()
	})

	dsn, err := withSearchPath(baseDSN, schema)
	if err != nil {
		t.Fatalf("invalid POSTGRES_DSN: %v", err)
	}
	if err := migrations.Run(dsn); err != nil {
		t.Fatalf("failed to migrate schema %s: %v", schema, err)
	}

	client, err := postgres.NewClient(ctx, platformconfig.PostgreSQLConfig{
		DSN:          dsn,
		Schema:       schema,
		MaxOpenConns: 20,
	})
	if err != nil {
		t.Fatalf("failed to connect to schema %s: %v", schema, err)
	}
	t.Cleanup(func() { client.Close() })

	return client
}

func withSearchPath(dsn, schema string) (string, error) {
	u, err := url.Parse(dsn)
	if err != nil {
		return "", err
	}
	q := u.Query()
	q.Set("search_path", schema)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

var identifierPattern = regexp.MustCompile(`[^a-zA-Z0-9_]+`)

// SanitizeTestName sanitizes a test name for use as a schema identifier
func SanitizeTestName(name string) string {
	name = strings.ReplaceAll(name, "/", "_")
	name = strings.ReplaceAll(name, " ", "_")
	name = strings.ToLower(identifierPattern.ReplaceAllString(name, ""))

	// 63-char identifier limit minus "test_" and "_" + 16-char suffix
	const maxTestNameLength = 41
	if len(name) > maxTestNameLength {
		name = name[:maxTestNameLength]
	}
	return name
}
