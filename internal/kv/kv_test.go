package kv

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"

	"github.com/xxxsen/mdesk/internal/config"
)

func exerciseSurface(t *testing.T, s Surface) {
	t.Helper()
	ctx := context.Background()

	_, ok, err := s.Get(ctx, "files")
	require.NoError(t, err)
	require.False(t, ok)

	require.NoError(t, s.Set(ctx, "files", `[{"id":1}]`))
	value, ok, err := s.Get(ctx, "files")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, `[{"id":1}]`, value)

	require.NoError(t, s.Set(ctx, "files", `[]`))
	value, ok, err = s.Get(ctx, "files")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, `[]`, value)

	require.NoError(t, s.Delete(ctx, "files"))
	_, ok, err = s.Get(ctx, "files")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestMemorySurface(t *testing.T) {
	exerciseSurface(t, NewMemory())
}

func TestSQLiteSurfaceInMemory(t *testing.T) {
	s, err := OpenSQLite(context.Background(), ":memory:")
	require.NoError(t, err)
	defer s.Close()
	exerciseSurface(t, s)
}

func TestSQLiteSurfaceSurvivesReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "workspace.db")

	s, err := OpenSQLite(ctx, path)
	require.NoError(t, err)
	require.NoError(t, s.Set(ctx, "currentDocument", `{"id":7}`))
	require.NoError(t, s.Close())

	reopened, err := OpenSQLite(ctx, path)
	require.NoError(t, err)
	defer reopened.Close()
	value, ok, err := reopened.Get(ctx, "currentDocument")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, `{"id":7}`, value)
}

func TestNewFromConfig(t *testing.T) {
	s, err := New(config.SurfaceConfig{Type: "memory"})
	require.NoError(t, err)
	require.IsType(t, &MemorySurface{}, s)

	s, err = New(config.SurfaceConfig{Type: "SQLite", Data: map[string]interface{}{"path": ":memory:"}})
	require.NoError(t, err)
	require.NoError(t, s.Close())

	_, err = New(config.SurfaceConfig{Type: "sqlite"})
	require.Error(t, err)
	_, err = New(config.SurfaceConfig{Type: "redis"})
	require.Error(t, err)
	_, err = New(config.SurfaceConfig{})
	require.Error(t, err)
	_, err = New(config.SurfaceConfig{Type: "postgres", Data: map[string]interface{}{}})
	require.Error(t, err)
}

func TestPostgresSurfaceQueries(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	s := NewSQL(db, sqlx.DOLLAR)
	ctx := context.Background()

	mock.ExpectQuery(`SELECT v FROM kv_entries WHERE .*\$1`).
		WithArgs("files").
		WillReturnRows(sqlmock.NewRows([]string{"v"}).AddRow(`[{"id":1}]`))
	value, ok, err := s.Get(ctx, "files")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, `[{"id":1}]`, value)

	mock.ExpectQuery(`SELECT v FROM kv_entries WHERE .*\$1`).
		WithArgs("currentDocument").
		WillReturnRows(sqlmock.NewRows([]string{"v"}))
	_, ok, err = s.Get(ctx, "currentDocument")
	require.NoError(t, err)
	require.False(t, ok)

	mock.ExpectExec(`INSERT INTO kv_entries \(k, v, mtime\) VALUES \(\$1, \$2, \$3\)`).
		WithArgs("files", "[]", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	require.NoError(t, s.Set(ctx, "files", "[]"))

	mock.ExpectExec(`DELETE FROM kv_entries WHERE .*\$1`).
		WithArgs("files").
		WillReturnResult(sqlmock.NewResult(0, 1))
	require.NoError(t, s.Delete(ctx, "files"))

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresSurfaceQueryError(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	s := NewSQL(db, sqlx.DOLLAR)

	boom := errors.New("connection refused")
	mock.ExpectQuery(`SELECT v FROM kv_entries`).WillReturnError(boom)
	_, _, err = s.Get(context.Background(), "files")
	require.ErrorIs(t, err, boom)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresConfigDSN(t *testing.T) {
	cfg := &postgresConfig{Host: "db", User: "u", Password: "p", DBName: "mdesk"}
	require.Equal(t, "host=db port=5432 user=u password=p dbname=mdesk sslmode=disable", cfg.dsn())
	cfg = &postgresConfig{DSN: "postgres://x"}
	require.Equal(t, "postgres://x", cfg.dsn())
	require.Empty(t, (&postgresConfig{}).dsn())
}
