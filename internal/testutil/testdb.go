// Package testutil opens scratch substrates for tests outside the store package.
package testutil

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"testing"
	"time"

	"playroom/internal/config"
	"playroom/internal/store"
	"playroom/internal/store/memstore"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var schemaNamePattern = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// Backend is a named substrate for table-driven tests.
type Backend struct {
	Name  string
	Store store.Backend
}

// Backends always returns the in-memory substrate and adds Postgres when
// TEST_POSTGRES_DSN is set. Cleanup is registered on t.
func Backends(t *testing.T) []Backend {
	t.Helper()
	mem := memstore.New()
	t.Cleanup(mem.Close)
	out := []Backend{{Name: "memory", Store: mem}}
	if pg := openPostgres(t); pg != nil {
		out = append(out, Backend{Name: "postgres", Store: pg})
	}
	return out
}

// OpenPostgres returns a store on a fresh schema, or skips the test.
func OpenPostgres(t *testing.T) *store.Store {
	t.Helper()
	st := openPostgres(t)
	if st == nil {
		t.Skip("skip test db: TEST_POSTGRES_DSN not set")
	}
	return st
}

func openPostgres(t *testing.T) *store.Store {
	t.Helper()
	cfg, err := config.LoadTest()
	if err != nil {
		return nil
	}
	dsn := cfg.TestPostgresDSN
	schema := fmt.Sprintf("test_%d", time.Now().UnixNano())
	ctx := context.Background()

	base, err := pgxpool.New(ctx, dsn)
	if err != nil {
		t.Fatalf("open base db: %v", err)
	}
	createSQL, err := schemaDDL("CREATE SCHEMA %s", schema)
	if err != nil {
		base.Close()
		t.Fatalf("invalid schema name: %v", err)
	}
	if _, err := base.Exec(ctx, createSQL); err != nil {
		base.Close()
		t.Fatalf("create schema: %v", err)
	}
	base.Close()

	st, err := store.New(withSearchPath(dsn, schema))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	if err := applySchema(ctx, st); err != nil {
		st.Close()
		t.Fatalf("apply schema: %v", err)
	}
	t.Cleanup(func() {
		st.Close()
		base, err := pgxpool.New(context.Background(), dsn)
		if err != nil {
			return
		}
		defer base.Close()
		if dropSQL, err := schemaDDL("DROP SCHEMA %s CASCADE", schema); err == nil {
			_, _ = base.Exec(context.Background(), dropSQL)
		}
	})
	return st
}

func applySchema(ctx context.Context, st *store.Store) error {
	path, err := findInitMigration()
	if err != nil {
		return err
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	_, err = st.Pool.Exec(ctx, string(b))
	return err
}

func findInitMigration() (string, error) {
	dir, err := os.Getwd()
	if err != nil {
		return "", err
	}
	for i := 0; i < 6; i++ {
		p := filepath.Join(dir, "migrations", "000001_init.up.sql")
		if _, err := os.Stat(p); err == nil {
			return p, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	return "", fmt.Errorf("000001_init.up.sql not found from %s", dir)
}

func withSearchPath(dsn, schema string) string {
	sep := "?"
	if strings.Contains(dsn, "?") {
		sep = "&"
	}
	return dsn + sep + "search_path=" + url.QueryEscape(schema)
}

func schemaDDL(format, schema string) (string, error) {
	if !schemaNamePattern.MatchString(schema) {
		return "", fmt.Errorf("schema %q does not match required pattern", schema)
	}
	return fmt.Sprintf(format, pgx.Identifier{schema}.Sanitize()), nil
}
