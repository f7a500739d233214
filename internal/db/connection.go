package db

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/lib/pq"

	"github.com/pv-groupings/internal/config"
)

// Connection holds the database connection
type Connection struct {
	DB *sql.DB
}

// DSNFromEnv builds a connection string from DATABASE_URL, or from the
// standard PG* variables when it is unset.
func DSNFromEnv() string {
	if url := config.GetEnv("DATABASE_URL", ""); url != "" {
		return url
	}
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		config.GetEnv("PGHOST", "localhost"),
		config.GetEnv("PGPORT", "5432"),
		config.GetEnv("PGUSER", "postgres"),
		config.GetEnv("PGPASSWORD", "postgres"),
		config.GetEnv("PGDATABASE", "pv_groupings"),
		config.GetEnv("PGSSLMODE", "disable"))
}

// Open connects to PostgreSQL and checks the connection.
func Open(ctx context.Context, dsn string, maxConns int) (*Connection, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if maxConns <= 0 {
		maxConns = 10
	}
	db.SetMaxOpenConns(maxConns)
	db.SetMaxIdleConns(maxConns / 2)

	return &Connection{DB: db}, nil
}

// Close closes the database connection
func (c *Connection) Close() error {
	return c.DB.Close()
}
