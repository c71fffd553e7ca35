package store

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"time"

	_ "github.com/tursodatabase/libsql-client-go/libsql"
	_ "modernc.org/sqlite"

	"phdhunt-engine/internal/config"
)

type DB struct {
	Pool   *sql.DB
	Driver string
}

// Open opens (creating if needed) a local SQLite database at path.
func Open(path string) (*DB, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}
	// modernc sqlite uses DSN like: file:foo.db?_pragma=busy_timeout(5000)
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)", path)

	pool, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}

	// one writer
	pool.SetMaxOpenConns(1)
	pool.SetConnMaxLifetime(5 * time.Minute)

	return ping(pool, "sqlite")
}

// OpenRemote opens a libsql (Turso / sqld) database. token may be empty for
// servers without auth.
func OpenRemote(dsn, token string) (*DB, error) {
	if token != "" {
		u, err := url.Parse(dsn)
		if err != nil {
			return nil, fmt.Errorf("libsql dsn: %w", err)
		}
		q := u.Query()
		q.Set("authToken", token)
		u.RawQuery = q.Encode()
		dsn = u.String()
	}
	pool, err := sql.Open("libsql", dsn)
	if err != nil {
		return nil, err
	}
	return ping(pool, "libsql")
}

// OpenConfig opens the store selected by cfg.Store and applies migrations.
func OpenConfig(cfg config.Config, token string) (*DB, error) {
	var (
		db  *DB
		err error
	)
	switch cfg.Store.Driver {
	case "libsql":
		db, err = OpenRemote(cfg.Store.DSN, token)
	default:
		db, err = Open(cfg.DBPath())
	}
	if err != nil {
		return nil, err
	}
	if err := Migrate(db.Pool); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return db, nil
}

func ping(pool *sql.DB, driver string) (*DB, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := pool.PingContext(ctx); err != nil {
		_ = pool.Close()
		return nil, err
	}
	return &DB{Pool: pool, Driver: driver}, nil
}

func (d *DB) Close() error {
	if d == nil || d.Pool == nil {
		return nil
	}
	return d.Pool.Close()
}

// Local returns the pool when it is backed by a local SQLite file, else nil.
func (d *DB) Local() *sql.DB {
	if d == nil || d.Driver != "sqlite" {
		return nil
	}
	return d.Pool
}
