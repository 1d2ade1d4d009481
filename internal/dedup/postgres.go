package dedup

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

type rowQuerier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresStore persists the dedup window in the dedup_requests table so it
// survives restarts and is shared across instances.
type PostgresStore struct {
	pool     rowQuerier
	capacity int
}

func NewPostgresStore(pool *pgxpool.Pool, capacity int) *PostgresStore {
	if pool == nil {
		panic("dedup: pgx pool required")
	}
	return newPostgresStoreWithExec(pool, capacity)
}

func newPostgresStoreWithExec(exec rowQuerier, capacity int) *PostgresStore {
	if exec == nil {
		panic("dedup: exec required")
	}
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &PostgresStore{pool: exec, capacity: capacity}
}

func (s *PostgresStore) Track(ctx context.Context, sig string) (bool, json.RawMessage, error) {
	insert := `
		INSERT INTO dedup_requests (signature)
		VALUES ($1)
		ON CONFLICT DO NOTHING
	`
	ct, err := s.pool.Exec(ctx, insert, sig)
	if err != nil {
		return false, nil, fmt.Errorf("dedup: track: %w", err)
	}
	if ct.RowsAffected() == 0 {
		var cached []byte
		err := s.pool.QueryRow(ctx, `SELECT response FROM dedup_requests WHERE signature = $1`, sig).Scan(&cached)
		if err != nil && !errors.Is(err, pgx.ErrNoRows) {
			return false, nil, fmt.Errorf("dedup: read cached response: %w", err)
		}
		if len(cached) == 0 {
			return true, nil, nil
		}
		return true, json.RawMessage(cached), nil
	}

	evict := `
		DELETE FROM dedup_requests
		WHERE seq NOT IN (
			SELECT seq FROM dedup_requests ORDER BY seq DESC LIMIT $1
		)
	`
	if _, err := s.pool.Exec(ctx, evict, s.capacity); err != nil {
		return false, nil, fmt.Errorf("dedup: evict: %w", err)
	}
	return false, nil, nil
}

func (s *PostgresStore) Record(ctx context.Context, sig string, response json.RawMessage) error {
	query := `UPDATE dedup_requests SET response = $2 WHERE signature = $1`
	if _, err := s.pool.Exec(ctx, query, sig, []byte(response)); err != nil {
		return fmt.Errorf("dedup: record: %w", err)
	}
	return nil
}

func (s *PostgresStore) Forget(ctx context.Context, sig string) error {
	if _, err := s.pool.Exec(ctx, `DELETE FROM dedup_requests WHERE signature = $1`, sig); err != nil {
		return fmt.Errorf("dedup: forget: %w", err)
	}
	return nil
}

func (s *PostgresStore) Len(ctx context.Context) (int, error) {
	var n int
	if err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM dedup_requests`).Scan(&n); err != nil {
		return 0, fmt.Errorf("dedup: count: %w", err)
	}
	return n, nil
}

func (s *PostgresStore) Clear(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, `DELETE FROM dedup_requests`); err != nil {
		return fmt.Errorf("dedup: clear: %w", err)
	}
	return nil
}
