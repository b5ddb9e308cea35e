package mysql

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// retryMaxElapsed bounds how long a single statement is retried for.
// go-sql-driver/mysql has no retry of its own; stale pooled connections and
// brief network blips surface as errors on the first statement after them.
const retryMaxElapsed = 30 * time.Second

func newRetryBackoff() backoff.BackOff {
	// BackOff implementations are stateful; always return a fresh instance.
	bo := backoff.NewExponentialBackOff()
	bo.MaxElapsedTime = retryMaxElapsed
	return bo
}

// isRetryableError reports whether err is a transient connection error.
func isRetryableError(err error) bool {
	if err == nil {
		return false
	}
	errStr := strings.ToLower(err.Error())
	for _, transient := range []string{
		"driver: bad connection",
		"invalid connection",
		"broken pipe",
		"connection reset",
		"connection refused",
		"lost connection", // MySQL error 2013: mid-query disconnect
		"gone away",       // MySQL error 2006: idle connection timeout
		"i/o timeout",
	} {
		if strings.Contains(errStr, transient) {
			return true
		}
	}
	return false
}

// isUnsentError reports whether err was raised before the statement reached
// the server. go-sql-driver returns driver.ErrBadConn only when nothing was
// written to the connection.
func isUnsentError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, driver.ErrBadConn) {
		return true
	}
	return strings.Contains(strings.ToLower(err.Error()), "connection refused")
}

// withRetry executes op, retrying transient errors with exponential backoff.
func (s *Store) withRetry(ctx context.Context, op func() error) error {
	return s.retryIf(ctx, isRetryableError, op)
}

func (s *Store) retryIf(ctx context.Context, retryable func(error) bool, op func() error) error {
	bo := s.newBackoff()
	return backoff.Retry(func() error {
		err := op()
		if err != nil && retryable(err) {
			s.logger.Debug("retrying transient mysql error", "error", err)
			return err
		}
		if err != nil {
			return backoff.Permanent(err)
		}
		return nil
	}, backoff.WithContext(bo, ctx))
}

func (s *Store) execContext(ctx context.Context, query string, args ...any) (sql.Result, error) {
	var result sql.Result
	err := s.withRetry(ctx, func() error {
		var execErr error
		result, execErr = s.db.ExecContext(ctx, query, args...)
		return execErr
	})
	return result, err
}

// execOnce runs a statement that must not be applied twice. A reply lost
// after the server may have run it is returned to the caller, not retried.
func (s *Store) execOnce(ctx context.Context, query string, args ...any) (sql.Result, error) {
	var result sql.Result
	err := s.retryIf(ctx, isUnsentError, func() error {
		var execErr error
		result, execErr = s.db.ExecContext(ctx, query, args...)
		return execErr
	})
	return result, err
}

func (s *Store) queryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	var rows *sql.Rows
	err := s.withRetry(ctx, func() error {
		var queryErr error
		rows, queryErr = s.db.QueryContext(ctx, query, args...)
		return queryErr
	})
	return rows, err
}

// queryRowContext wraps QueryRowContext with retry. The scan function
// receives the *sql.Row and should call .Scan() on it.
func (s *Store) queryRowContext(ctx context.Context, scan func(*sql.Row) error, query string, args ...any) error {
	return s.withRetry(ctx, func() error {
		row := s.db.QueryRowContext(ctx, query, args...)
		return scan(row)
	})
}
