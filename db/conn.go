package db

import (
	"context"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Pinger is satisfied by *pgxpool.Pool.
type Pinger interface {
	Ping(ctx context.Context) error
}

// NewPool constructs a pgx connection pool using the provided connection string.
func NewPool(ctx context.Context, connString string) (*pgxpool.Pool, error) {
	if connString == "" {
		return nil, fmt.Errorf("db: empty connection string")
	}

	cfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, fmt.Errorf("db: parse config: %w", err)
	}

	return pgxpool.NewWithConfig(ctx, cfg)
}

// Connect opens a pool and waits until the server answers a ping, retrying
// with exponential backoff for at most maxWait.
func Connect(ctx context.Context, connString string, maxWait time.Duration) (*pgxpool.Pool, error) {
	pool, err := NewPool(ctx, connString)
	if err != nil {
		return nil, err
	}
	if err := WaitReady(ctx, pool, maxWait); err != nil {
		pool.Close()
		return nil, err
	}
	return pool, nil
}

// WaitReady pings p until it succeeds, ctx ends or maxWait elapses.
func WaitReady(ctx context.Context, p Pinger, maxWait time.Duration) error {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = 100 * time.Millisecond
	bo.MaxInterval = 2 * time.Second
	bo.MaxElapsedTime = maxWait

	attempts := 0
	err := backoff.Retry(func() error {
		attempts++
		pctx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		return p.Ping(pctx)
	}, backoff.WithContext(bo, ctx))
	if err != nil {
		return fmt.Errorf("db: ping after %d attempts: %w", attempts, err)
	}
	return nil
}
