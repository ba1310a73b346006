package db

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-kit/kit/log"
	"github.com/go-kit/kit/log/level"

	"github.com/guardianone/adsb-traffic/pkg/adsb"
	"github.com/guardianone/adsb-traffic/pkg/config"
)

// connectFunc is swapped in tests.
var connectFunc = Connect

// ReconnectWithRetry attempts to connect to the database with exponential backoff.
// This provides resilience against temporary database outages.
//
// Parameters:
//   - ctx: Cancels the retry loop
//   - logger: Receives one line per failed attempt
//   - cfg: Database configuration
//   - retry: Backoff settings (MaxRetries < 0 retries until ctx is done)
//
// Returns: Connected database or error if all retries exhausted
func ReconnectWithRetry(ctx context.Context, logger log.Logger, cfg config.DatabaseConfig, retry adsb.RetryConfig) (*DB, error) {
	logger = log.With(logger, "component", "db")

	var db *DB
	attempt := 0
	err := adsb.RetryWithBackoff(ctx, retry, func() error {
		attempt++

		conn, err := connectFunc(cfg)
		if err != nil {
			level.Warn(logger).Log("msg", "database connection attempt failed", "attempt", attempt, "err", err)
			return err
		}
		db = conn
		return nil
	})
	if err != nil {
		level.Error(logger).Log("msg", "failed to connect to database", "attempts", attempt, "err", err)
		return nil, err
	}

	level.Info(logger).Log("msg", "database connected", "host", cfg.Host, "attempts", attempt)
	return db, nil
}

// EnsureConnection checks if the database connection is alive and reconnects if needed.
// This should be called periodically or before critical operations.
//
// Returns: Active database connection (either original or new) and error
func EnsureConnection(ctx context.Context, logger log.Logger, db *DB, cfg config.DatabaseConfig) (*DB, error) {
	if db == nil {
		level.Warn(logger).Log("msg", "database connection is nil, reconnecting")
		return ReconnectWithRetry(ctx, logger, cfg, adsb.DefaultRetryConfig())
	}

	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	if err := db.PingContext(pingCtx); err != nil {
		level.Warn(logger).Log("msg", "database connection lost, reconnecting", "err", err)
		db.Close()
		return ReconnectWithRetry(ctx, logger, cfg, adsb.DefaultRetryConfig())
	}

	return db, nil
}

// HealthCheck performs a ping and a trivial query.
// Returns nil if the database is healthy and ready for operations.
func HealthCheck(ctx context.Context, db *DB) error {
	if db == nil {
		return fmt.Errorf("health check failed: no connection")
	}

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		return fmt.Errorf("health check failed: ping: %w", err)
	}

	var result int
	if err := db.QueryRowContext(ctx, "SELECT 1").Scan(&result); err != nil {
		return fmt.Errorf("health check failed: query: %w", err)
	}
	if result != 1 {
		return fmt.Errorf("health check failed: unexpected result %d", result)
	}

	return nil
}

// WithRetry executes a database operation, retrying only connection failures.
// Other errors are returned immediately.
func WithRetry(ctx context.Context, operation func() error, maxRetries int) error {
	retry := adsb.RetryConfig{
		MaxRetries:   maxRetries,
		InitialDelay: time.Second,
		MaxDelay:     10 * time.Second,
		Multiplier:   2.0,
	}

	return adsb.RetryWithBackoff(ctx, retry, func() error {
		err := operation()
		if err != nil && !isConnectionError(err) {
			return adsb.Permanent(err)
		}
		return err
	})
}

// connectionErrors are substrings that indicate a transient connection problem.
var connectionErrors = []string{
	"connection refused",
	"broken pipe",
	"no connection",
	"connection reset",
	"eof",
	"timeout",
}

// isConnectionError reports whether err looks like a lost connection.
func isConnectionError(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	for _, pattern := range connectionErrors {
		if strings.Contains(msg, pattern) {
			return true
		}
	}
	return false
}
