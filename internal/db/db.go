// Package db stores traffic sighting history in PostgreSQL.
package db

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"time"

	_ "github.com/lib/pq" // PostgreSQL driver

	"github.com/guardianone/adsb-traffic/pkg/config"
)

//go:embed schema.sql
var schemaSQL embed.FS

// DB wraps a database connection with helper methods.
type DB struct {
	*sql.DB
	config config.DatabaseConfig
}

// ConnectionString builds the lib/pq key/value connection string.
func ConnectionString(cfg config.DatabaseConfig) string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host,
		cfg.Port,
		cfg.Username,
		cfg.Password,
		cfg.Database,
		cfg.SSLMode,
	)
}

// Connect establishes a connection to the PostgreSQL database.
func Connect(cfg config.DatabaseConfig) (*DB, error) {
	sqlDB, err := sql.Open("postgres", ConnectionString(cfg))
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Configure connection pool
	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(time.Hour)

	// Test connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := sqlDB.PingContext(ctx); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &DB{
		DB:     sqlDB,
		config: cfg,
	}, nil
}

// InitSchema creates the tables if they do not exist.
// This should be called once at application startup.
func (db *DB) InitSchema(ctx context.Context) error {
	schemaBytes, err := schemaSQL.ReadFile("schema.sql")
	if err != nil {
		return fmt.Errorf("failed to read schema file: %w", err)
	}

	if _, err := db.ExecContext(ctx, string(schemaBytes)); err != nil {
		return fmt.Errorf("failed to execute schema: %w", err)
	}

	return nil
}

// CleanupOldData deletes sightings older than maxAge and aircraft not seen
// within maxAge. Returns the number of sightings removed.
// Should be called periodically to prevent unbounded growth.
func (db *DB) CleanupOldData(ctx context.Context, now time.Time, maxAge time.Duration) (int64, error) {
	cutoff := cleanupCutoff(now, maxAge)

	res, err := db.ExecContext(ctx,
		`DELETE FROM traffic_sightings WHERE observed_at < $1`,
		cutoff,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to delete old sightings: %w", err)
	}
	removed, _ := res.RowsAffected()

	_, err = db.ExecContext(ctx,
		`DELETE FROM aircraft WHERE last_seen < $1`,
		cutoff,
	)
	if err != nil {
		return removed, fmt.Errorf("failed to delete old aircraft: %w", err)
	}

	return removed, nil
}

func cleanupCutoff(now time.Time, maxAge time.Duration) time.Time {
	return now.UTC().Add(-maxAge)
}

// Stats summarizes stored history.
type Stats struct {
	Aircraft       int64 `json:"aircraft"`
	ActiveAircraft int64 `json:"active_aircraft"`
	Sightings      int64 `json:"sightings"`
}

// GetStats returns database statistics. Aircraft seen within activeWindow
// of now count as active.
func (db *DB) GetStats(ctx context.Context, now time.Time, activeWindow time.Duration) (Stats, error) {
	var stats Stats

	err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM aircraft`).Scan(&stats.Aircraft)
	if err != nil {
		return stats, fmt.Errorf("failed to count aircraft: %w", err)
	}

	err = db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM aircraft WHERE last_seen >= $1`,
		now.UTC().Add(-activeWindow),
	).Scan(&stats.ActiveAircraft)
	if err != nil {
		return stats, fmt.Errorf("failed to count active aircraft: %w", err)
	}

	err = db.QueryRowContext(ctx, `SELECT COUNT(*) FROM traffic_sightings`).Scan(&stats.Sightings)
	if err != nil {
		return stats, fmt.Errorf("failed to count sightings: %w", err)
	}

	return stats, nil
}
