package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrPostgresUnavailable wraps connection failures from the Postgres backend.
var ErrPostgresUnavailable = errors.New("postgres unavailable")

const postgresSchema = `CREATE TABLE IF NOT EXISTS tokenkeeper_session (
	namespace text NOT NULL,
	key       text NOT NULL,
	value     text NOT NULL,
	PRIMARY KEY (namespace, key)
)`

// Postgres keeps the slots as rows of a shared table, so several machines
// can recover the same session.
type Postgres struct {
	pool      *pgxpool.Pool
	namespace string
	timeout   time.Duration
}

// DialPostgres connects with dsn, pings the server and creates the table
// when missing. An empty namespace becomes "tokenkeeper".
func DialPostgres(ctx context.Context, dsn, namespace string) (*Postgres, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPostgresUnavailable, err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("%w: %v", ErrPostgresUnavailable, err)
	}
	if _, err := pool.Exec(ctx, postgresSchema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("create session table: %w", err)
	}
	if namespace == "" {
		namespace = "tokenkeeper"
	}
	return &Postgres{pool: pool, namespace: namespace, timeout: defaultOpTimeout}, nil
}

func (p *Postgres) Get(key string) (string, error) {
	ctx, cancel := context.WithTimeout(context.Background(), p.timeout)
	defer cancel()

	var v string
	err := p.pool.QueryRow(ctx,
		`SELECT value FROM tokenkeeper_session WHERE namespace = $1 AND key = $2`, p.namespace, key).Scan(&v)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrPostgresUnavailable, err)
	}
	return v, nil
}

func (p *Postgres) Set(key, value string) error {
	ctx, cancel := context.WithTimeout(context.Background(), p.timeout)
	defer cancel()

	_, err := p.pool.Exec(ctx,
		`INSERT INTO tokenkeeper_session (namespace, key, value) VALUES ($1, $2, $3)
		 ON CONFLICT (namespace, key) DO UPDATE SET value = EXCLUDED.value`,
		p.namespace, key, value)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrPostgresUnavailable, err)
	}
	return nil
}

func (p *Postgres) Remove(key string) error {
	ctx, cancel := context.WithTimeout(context.Background(), p.timeout)
	defer cancel()

	if _, err := p.pool.Exec(ctx,
		`DELETE FROM tokenkeeper_session WHERE namespace = $1 AND key = $2`, p.namespace, key); err != nil {
		return fmt.Errorf("%w: %v", ErrPostgresUnavailable, err)
	}
	return nil
}

// Close releases the connection pool.
func (p *Postgres) Close() {
	p.pool.Close()
}
