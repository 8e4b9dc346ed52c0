// Package db keeps an audit log of reconciliation runs in PostgreSQL. The
// service works without it; Init reports ErrNotConfigured and Pool stays nil.
package db

import (
	"context"
	"errors"
	"fmt"
	"os"
	"regexp"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/facturaIA/receipt-reconciler/internal/logger"
)

// Pool is the global database connection pool
var Pool *pgxpool.Pool

// ErrNotConfigured means no database settings were found in the environment
var ErrNotConfigured = errors.New("no database configuration")

var log = logger.WithComponent("db")

// Init initializes the database connection pool and the audit table
func Init() error {
	databaseURL := databaseURLFromEnv()
	if databaseURL == "" {
		log.Info().Msg("no database configuration found, audit log disabled")
		return ErrNotConfigured
	}

	config, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return fmt.Errorf("failed to parse database URL: %w", err)
	}

	// Connection pool settings sized for PgBouncer
	config.MaxConns = 10
	config.MinConns = 1
	config.MaxConnLifetime = 1 * time.Hour
	config.MaxConnIdleTime = 30 * time.Minute
	config.HealthCheckPeriod = 1 * time.Minute

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return fmt.Errorf("failed to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return fmt.Errorf("failed to ping database: %w", err)
	}

	if err := EnsureSchema(ctx, pool); err != nil {
		pool.Close()
		return err
	}

	Pool = pool
	log.Info().Str("schema", SchemaName()).Msg("database connection pool initialized")
	return nil
}

// databaseURLFromEnv prefers DATABASE_URL and falls back to DB_* variables
func databaseURLFromEnv() string {
	if u := os.Getenv("DATABASE_URL"); u != "" {
		return u
	}

	host := os.Getenv("DB_HOST")
	port := os.Getenv("DB_PORT")
	user := os.Getenv("DB_USER")
	password := os.Getenv("DB_PASSWORD")
	dbname := os.Getenv("DB_NAME")

	if host == "" || user == "" || dbname == "" {
		return ""
	}
	if port == "" {
		port = "5432"
	}
	sslmode := os.Getenv("DB_SSLMODE")
	if sslmode == "" {
		sslmode = "disable"
	}
	return fmt.Sprintf("postgresql://%s:%s@%s:%s/%s?sslmode=%s",
		user, password, host, port, dbname, sslmode)
}

// Close closes the database connection pool
func Close() {
	if Pool != nil {
		Pool.Close()
		Pool = nil
		log.Info().Msg("database connection pool closed")
	}
}

// Available reports whether the audit log can be written
func Available() bool {
	return Pool != nil
}

var reIdentifier = regexp.MustCompile(`^[a-z_][a-z0-9_]*$`)

// SchemaName returns the schema holding the audit table (DB_SCHEMA, default public)
func SchemaName() string {
	s := os.Getenv("DB_SCHEMA")
	if s == "" || !reIdentifier.MatchString(s) {
		return "public"
	}
	return s
}
