// Package testdb provisions throwaway Postgres databases for integration
// tests of the ledger store.
package testdb

import (
	"context"
	"net/url"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// NewDSN creates an empty database on the server named by POSTGRES_DSN_TEST
// and returns its DSN. The database is dropped when t finishes. Tests are
// skipped when POSTGRES_DSN_TEST is unset.
func NewDSN(t *testing.T) string {
	t.Helper()
	baseDSN := strings.TrimSpace(os.Getenv("POSTGRES_DSN_TEST"))
	if baseDSN == "" {
		t.Skip("POSTGRES_DSN_TEST not set")
	}
	adminDSN := strings.TrimSpace(os.Getenv("POSTGRES_ADMIN_DSN"))
	if adminDSN == "" {
		adminDSN = withDatabase(baseDSN, "postgres")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	adminConn, err := pgx.Connect(ctx, adminDSN)
	if err != nil {
		t.Fatalf("connect admin db: %v", err)
	}

	dbName := "lendeefi_test_" + strings.ReplaceAll(uuid.NewString(), "-", "")
	if _, err := adminConn.Exec(ctx, "CREATE DATABASE "+pgx.Identifier{dbName}.Sanitize()); err != nil {
		_ = adminConn.Close(context.Background())
		t.Fatalf("create database: %v", err)
	}

	dsn := withDatabase(baseDSN, dbName)
	if err := ping(ctx, dsn); err != nil {
		_ = dropDatabase(context.Background(), adminConn, dbName)
		_ = adminConn.Close(context.Background())
		t.Fatalf("connect test db: %v", err)
	}

	t.Cleanup(func() {
		_ = dropDatabase(context.Background(), adminConn, dbName)
		_ = adminConn.Close(context.Background())
	})
	return dsn
}

func ping(ctx context.Context, dsn string) error {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return err
	}
	defer pool.Close()
	return pool.Ping(ctx)
}

func withDatabase(dsn string, dbName string) string {
	parsed, err := url.Parse(dsn)
	if err != nil {
		return dsn
	}
	parsed.Path = "/" + dbName
	return parsed.String()
}

// dropDatabase uses WITH (FORCE) so pooled gorm connections left open by a
// failed test do not block the drop.
func dropDatabase(ctx context.Context, conn *pgx.Conn, name string) error {
	_, err := conn.Exec(ctx, "DROP DATABASE IF EXISTS "+pgx.Identifier{name}.Sanitize()+" WITH (FORCE)")
	return err
}
