package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/02loveslollipop/estufa-iot/services/api/store"
)

// Store wraps database access helpers.
type Store struct {
	pool *pgxpool.Pool
}

// New creates a Store backed by a pgx pool.
func New(ctx context.Context, databaseURL string) (*Store, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, err
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return &Store{pool: pool}, nil
}

// Close releases the pool resources.
func (s *Store) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

var _ store.StatsStore = (*Store)(nil)

const ensureSchemaSQL = `
    CREATE SCHEMA IF NOT EXISTS estufa;
    CREATE TABLE IF NOT EXISTS estufa.documents (
        id          uuid PRIMARY KEY,
        body        bytea NOT NULL,
        size_bytes  integer NOT NULL,
        received_at timestamptz NOT NULL DEFAULT now()
    );
    CREATE INDEX IF NOT EXISTS documents_received_at_idx ON estufa.documents (received_at, id);
`

// EnsureSchema creates the documents table if it does not exist.
func (s *Store) EnsureSchema(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, ensureSchemaSQL)
	return err
}

const insertDocumentSQL = `
    INSERT INTO estufa.documents (id, body, size_bytes, received_at)
    VALUES ($1, $2, $3, $4)
`

// Put stores the document bytes under a fresh id. The insert either commits
// or leaves nothing behind.
func (s *Store) Put(ctx context.Context, data []byte) (string, error) {
	id := uuid.NewString()
	if _, err := s.pool.Exec(ctx, insertDocumentSQL, id, data, len(data), time.Now().UTC()); err != nil {
		return "", err
	}
	return id, nil
}

const getDocumentSQL = `
    SELECT body
    FROM estufa.documents
    WHERE id = $1
`

// Get returns the stored bytes for id.
func (s *Store) Get(ctx context.Context, id string) ([]byte, error) {
	if err := store.ValidateID(id); err != nil {
		return nil, err
	}

	var body []byte
	if err := s.pool.QueryRow(ctx, getDocumentSQL, id).Scan(&body); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	return body, nil
}

const listDocumentsSQL = `
    SELECT id::text
    FROM estufa.documents
    ORDER BY received_at, id
`

// List returns every stored id in acceptance order.
func (s *Store) List(ctx context.Context) ([]string, error) {
	rows, err := s.pool.Query(ctx, listDocumentsSQL)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	ids := make([]string, 0)
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

const statsSQL = `
    SELECT count(*), COALESCE(sum(size_bytes), 0), max(received_at)
    FROM estufa.documents
`

// Stats returns document count, stored size and last acceptance time.
func (s *Store) Stats(ctx context.Context) (store.Stats, error) {
	var st store.Stats
	if err := s.pool.QueryRow(ctx, statsSQL).Scan(&st.Documents, &st.TotalBytes, &st.LastAt); err != nil {
		return store.Stats{}, err
	}
	return st, nil
}
