package kv

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"
)

type sqliteConfig struct {
	Path string `json:"path"`
}

func init() {
	Register("sqlite", createSQLiteSurface)
}

func createSQLiteSurface(args interface{}) (Surface, error) {
	cfg := &sqliteConfig{}
	if err := decodeConfig(args, cfg); err != nil {
		return nil, err
	}
	if cfg.Path == "" {
		return nil, fmt.Errorf("sqlite surface path is required")
	}
	return OpenSQLite(context.Background(), cfg.Path)
}

func OpenSQLite(ctx context.Context, path string) (*SQLSurface, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// one connection: ":memory:" is per connection and sqlite has a single writer
	db.SetMaxOpenConns(1)
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	surface := NewSQL(db, sqlx.QUESTION)
	if err := surface.Migrate(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrations: %w", err)
	}
	return surface, nil
}
