package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib" // registers the "pgx" driver
	"github.com/jmoiron/sqlx"
)

// Conn is the narrow slice of *sqlx.DB the repositories use.
type Conn interface {
	GetContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error
	SelectContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	NamedExecContext(ctx context.Context, query string, arg interface{}) (sql.Result, error)
	PingContext(ctx context.Context) error
}

// ErrNotConfigured is returned when Handle is called before Configure or Use.
var ErrNotConfigured = errors.New("database: connection not configured")

var (
	mu           sync.Mutex
	conn         Conn
	dsn          string
	maxOpenConns int
)

// Configure records the connection string; nothing is dialled until Handle is first called.
func Configure(connStr string, maxOpen int) {
	mu.Lock()
	defer mu.Unlock()
	dsn = connStr
	maxOpenConns = maxOpen
}

// Handle returns the process-wide connection, opening it on first use.
// Once open the same handle is returned for the lifetime of the process.
// A failed open is not cached, so the next call dials again.
func Handle() (Conn, error) {
	mu.Lock()
	defer mu.Unlock()
	if conn != nil {
		return conn, nil
	}
	if dsn == "" {
		return nil, ErrNotConfigured
	}
	db, err := sqlx.Connect("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("database: connect: %w", err)
	}
	if maxOpenConns > 0 {
		db.SetMaxOpenConns(maxOpenConns)
		db.SetMaxIdleConns(maxOpenConns / 2)
	}
	db.SetConnMaxLifetime(30 * time.Minute)
	conn = db
	return conn, nil
}

// Use installs an already opened connection, e.g. sqlx.NewDb over sqlmock in tests.
func Use(c Conn) {
	mu.Lock()
	defer mu.Unlock()
	conn = c
}

// Ping checks that the handle can reach the server.
func Ping(ctx context.Context) error {
	c, err := Handle()
	if err != nil {
		return err
	}
	return c.PingContext(ctx)
}
