package users

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const schemaSQL = `CREATE TABLE IF NOT EXISTS portal_users (
	id         TEXT PRIMARY KEY,
	name       TEXT NOT NULL DEFAULT '',
	email      TEXT NOT NULL DEFAULT '',
	created_at TIMESTAMPTZ NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL
)`

// pgxQuerier is the subset of pgxpool.Pool used by PostgresRepository.
type pgxQuerier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresRepository stores users in the portal_users table.
type PostgresRepository struct {
	db pgxQuerier
}

// NewPool opens and pings a pgx connection pool.
func NewPool(ctx context.Context, url string) (*pgxpool.Pool, error) {
	poolConfig, err := pgxpool.ParseConfig(url)
	if err != nil {
		return nil, fmt.Errorf("users: parse database url: %w", err)
	}
	poolConfig.MaxConns = 10
	poolConfig.MinConns = 1
	poolConfig.MaxConnLifetime = 30 * time.Minute
	poolConfig.MaxConnIdleTime = 10 * time.Minute

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("users: create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("users: ping database: %w", err)
	}
	return pool, nil
}

// NewPostgresRepository wraps a pool (or any compatible querier).
func NewPostgresRepository(db pgxQuerier) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// EnsureSchema creates the backing table when it does not exist.
func (r *PostgresRepository) EnsureSchema(ctx context.Context) error {
	if _, err := r.db.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("users: ensure schema: %w", err)
	}
	return nil
}

func (r *PostgresRepository) Get(ctx context.Context, id string) (*User, error) {
	row := r.db.QueryRow(ctx,
		`SELECT id, name, email, created_at, updated_at FROM portal_users WHERE id = $1`, id)
	u, err := scanUser(row)
	if err != nil {
		return nil, err
	}
	return u, nil
}

func (r *PostgresRepository) Update(ctx context.Context, user *User) error {
	tag, err := r.db.Exec(ctx,
		`UPDATE portal_users SET name = $2, email = $3, updated_at = $4 WHERE id = $1`,
		user.ID, user.Name, user.Email, user.UpdatedAt)
	if err != nil {
		return fmt.Errorf("users: update %s: %w", user.ID, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *PostgresRepository) Upsert(ctx context.Context, user *User) (*User, error) {
	row := r.db.QueryRow(ctx,
		`INSERT INTO portal_users (id, name, email, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $4)
		 ON CONFLICT (id) DO UPDATE SET
		   name = CASE WHEN portal_users.name = '' THEN EXCLUDED.name ELSE portal_users.name END,
		   email = CASE WHEN portal_users.email = '' THEN EXCLUDED.email ELSE portal_users.email END
		 RETURNING id, name, email, created_at, updated_at`,
		user.ID, user.Name, user.Email, user.UpdatedAt)
	return scanUser(row)
}

func scanUser(row pgx.Row) (*User, error) {
	var u User
	if err := row.Scan(&u.ID, &u.Name, &u.Email, &u.CreatedAt, &u.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("users: scan: %w", err)
	}
	return &u, nil
}
