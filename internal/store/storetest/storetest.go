// Package storetest готовит базы данных для тестов хранилища.
package storetest

import (
	"database/sql"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/uuid"
	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/iurnickita/abetos/internal/store/config"
)

// SQLite - конфигурация файла SQLite во временном каталоге теста.
func SQLite(t testing.TB) config.Config {
	t.Helper()

	return config.Config{
		Driver: config.DriverSQLite,
		DBDsn:  filepath.Join(t.TempDir(), "abetos.db"),
	}
}

// Postgres - конфигурация PostgreSQL из DATABASE_URI с отдельной схемой на тест.
// Без DATABASE_URI тест пропускается.
func Postgres(t testing.TB) config.Config {
	t.Helper()

	dsn := os.Getenv("DATABASE_URI")
	if dsn == "" {
		t.Skip("DATABASE_URI is not set")
	}

	db, err := sql.Open(config.DriverPostgres, dsn)
	if err != nil {
		t.Fatalf("open postgres: %v", err)
	}
	defer db.Close()

	schema := "abetos_test_" + strings.ReplaceAll(uuid.NewString(), "-", "")
	if _, err = db.Exec("CREATE SCHEMA " + schema); err != nil {
		t.Fatalf("create schema: %v", err)
	}
	t.Cleanup(func() {
		db, err := sql.Open(config.DriverPostgres, dsn)
		if err != nil {
			t.Errorf("open postgres: %v", err)
			return
		}
		defer db.Close()
		if _, err = db.Exec("DROP SCHEMA " + schema + " CASCADE"); err != nil {
			t.Errorf("drop schema: %v", err)
		}
	})

	return config.Config{Driver: config.DriverPostgres, DBDsn: withSearchPath(dsn, schema)}
}

// ForEachDriver запускает test подтестом для каждого драйвера.
func ForEachDriver(t *testing.T, test func(t *testing.T, cfg config.Config)) {
	t.Run(config.DriverSQLite, func(t *testing.T) { test(t, SQLite(t)) })
	t.Run(config.DriverPostgres, func(t *testing.T) { test(t, Postgres(t)) })
}

func withSearchPath(dsn, schema string) string {
	if u, err := url.Parse(dsn); err == nil && (u.Scheme == "postgres" || u.Scheme == "postgresql") {
		q := u.Query()
		q.Set("search_path", schema)
		u.RawQuery = q.Encode()
		return u.String()
	}
	// формат key=value
	return dsn + " search_path=" + schema
}
