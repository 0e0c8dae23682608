package kv

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"sort"
	"strings"
	"time"

	"github.com/didi/gendry/builder"

	"github.com/xxxsen/mdesk/internal/pkg/dbutil"
)

const tableName = "kv_entries"

//go:embed migrations/*.sql
var migrationsFS embed.FS

const upsertQuery = `INSERT INTO kv_entries (k, v, mtime) VALUES (?, ?, ?)
ON CONFLICT (k) DO UPDATE SET v = excluded.v, mtime = excluded.mtime`

// SQLSurface stores entries in a single kv_entries table. bindType is one of
// the sqlx bind constants and decides the placeholder style.
type SQLSurface struct {
	db       *sql.DB
	bindType int
	now      func() time.Time
}

func NewSQL(db *sql.DB, bindType int) *SQLSurface {
	return &SQLSurface{db: db, bindType: bindType, now: time.Now}
}

func (s *SQLSurface) Migrate(ctx context.Context) error {
	entries, err := fs.ReadDir(migrationsFS, "migrations")
	if err != nil {
		return err
	}
	var files []string
	for _, entry := range entries {
		if !entry.IsDir() && strings.HasSuffix(entry.Name(), ".sql") {
			files = append(files, entry.Name())
		}
	}
	sort.Strings(files)
	for _, file := range files {
		content, err := fs.ReadFile(migrationsFS, "migrations/"+file)
		if err != nil {
			return err
		}
		for _, q := range strings.Split(string(content), ";") {
			q = strings.TrimSpace(q)
			if q == "" {
				continue
			}
			if _, err := s.db.ExecContext(ctx, q); err != nil {
				if strings.Contains(err.Error(), "already exists") {
					continue
				}
				return fmt.Errorf("execute query in %s: %w", file, err)
			}
		}
	}
	return nil
}

func (s *SQLSurface) Get(ctx context.Context, key string) (string, bool, error) {
	where := map[string]interface{}{
		"k": key,
	}
	sqlStr, args, err := builder.BuildSelect(tableName, where, []string{"v"})
	if err != nil {
		return "", false, err
	}
	sqlStr, args = dbutil.Finalize(s.bindType, sqlStr, args)
	var value string
	if err := s.db.QueryRowContext(ctx, sqlStr, args...).Scan(&value); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", false, nil
		}
		return "", false, err
	}
	return value, true, nil
}

func (s *SQLSurface) Set(ctx context.Context, key, value string) error {
	sqlStr, args := dbutil.Finalize(s.bindType, upsertQuery, []interface{}{key, value, s.now().UnixMilli()})
	_, err := s.db.ExecContext(ctx, sqlStr, args...)
	return err
}

func (s *SQLSurface) Delete(ctx context.Context, key string) error {
	where := map[string]interface{}{
		"k": key,
	}
	sqlStr, args, err := builder.BuildDelete(tableName, where)
	if err != nil {
		return err
	}
	sqlStr, args = dbutil.Finalize(s.bindType, sqlStr, args)
	_, err = s.db.ExecContext(ctx, sqlStr, args...)
	return err
}

func (s *SQLSurface) Close() error {
	return s.db.Close()
}
