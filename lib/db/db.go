package db

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/banquet-labs/banquet/lib/retry"
)

const (
	maxAttempts     = 3
	sleepIntervalMs = 500
)

type Store interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	Close() error
}

type storeWrapper struct {
	*sql.DB
	retryCfg retry.RetryConfig
}

func (s *storeWrapper) ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return retry.WithRetries(s.retryCfg, func(_ int, _ error) (sql.Result, error) {
		return s.DB.ExecContext(ctx, query, args...)
	})
}

func (s *storeWrapper) QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	return s.DB.QueryContext(ctx, query, args...)
}

func Open(ctx context.Context, driverName, dsn string) (Store, error) {
	database, err := sql.Open(driverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to start a SQL client for driver %q: %w", driverName, err)
	}

	if err = database.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("failed to validate the DB connection for driver %q: %w", driverName, err)
	}

	return NewStoreWrapper(database), nil
}

// NewStoreWrapper is exposed for tests that inject a mocked [*sql.DB].
func NewStoreWrapper(database *sql.DB) Store {
	return &storeWrapper{
		DB: database,
		retryCfg: retry.NewRetryConfig(retry.NewRetryConfigArgs{
			JitterBaseMs:   sleepIntervalMs,
			JitterMaxMs:    5000,
			MaxAttempts:    maxAttempts,
			IsRetryableErr: isRetryableError,
		}),
	}
}
