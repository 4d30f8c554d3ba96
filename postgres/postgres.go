// Package postgres implements supplychain.Store on PostgreSQL via pgx.
package postgres

import (
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

// PGStore implements supplychain.Store using PostgreSQL via pgx.
type PGStore struct {
	db  *pgxpool.Pool
	log *zap.Logger
}

// Option configures a PGStore.
type Option func(*PGStore)

// WithLogger sets the logger used for whole-system writes.
func WithLogger(l *zap.Logger) Option {
	return func(s *PGStore) { s.log = l }
}

// New creates a new PGStore backed by the given pgx connection pool.
func New(db *pgxpool.Pool, opts ...Option) *PGStore {
	s := &PGStore{db: db, log: zap.NewNop()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}
