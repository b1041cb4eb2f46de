// Package duckdb mirrors the live rolling window into an in-memory DuckDB
// database so the current traffic can be explored with ad-hoc SQL.
package duckdb

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	_ "github.com/duckdb/duckdb-go/v2"

	"github.com/tinytelemetry/netglobe/internal/duckdb/migrate"
)

const (
	// DefaultQueryTimeout bounds a single read query.
	DefaultQueryTimeout = 5 * time.Second

	// DefaultMaxConcurrentQueries bounds parallel read queries.
	DefaultMaxConcurrentQueries = 4
)

// Store owns the in-memory DuckDB database holding the window mirror.
type Store struct {
	db           *sql.DB
	mu           sync.RWMutex // writers replace the whole window
	reads        chan struct{}
	QueryTimeout time.Duration
}

// NewStore creates an in-memory database and applies the schema.
// An optional queryTimeout can be passed; it defaults to DefaultQueryTimeout.
func NewStore(queryTimeout ...time.Duration) (*Store, error) {
	db, err := sql.Open("duckdb", "")
	if err != nil {
		return nil, fmt.Errorf("duckdb: open: %w", err)
	}

	if err := migrate.NewRunner(db).Run(); err != nil {
		db.Close()
		return nil, fmt.Errorf("duckdb: migrate: %w", err)
	}

	qt := DefaultQueryTimeout
	if len(queryTimeout) > 0 && queryTimeout[0] > 0 {
		qt = queryTimeout[0]
	}

	return &Store{
		db:           db,
		reads:        make(chan struct{}, DefaultMaxConcurrentQueries),
		QueryTimeout: qt,
	}, nil
}

// SetMaxConcurrentQueries bounds parallel read queries. Call before serving.
func (s *Store) SetMaxConcurrentQueries(n int) {
	if n > 0 {
		s.reads = make(chan struct{}, n)
	}
}

// acquireRead takes a read slot, waiting at most until ctx expires.
func (s *Store) acquireRead(ctx context.Context) (func(), error) {
	select {
	case s.reads <- struct{}{}:
		return func() { <-s.reads }, nil
	case <-ctx.Done():
		return nil, fmt.Errorf("duckdb: too many concurrent queries: %w", ctx.Err())
	}
}

// queryCtx returns a context with the store's configured query timeout.
func (s *Store) queryCtx() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), s.QueryTimeout)
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}
